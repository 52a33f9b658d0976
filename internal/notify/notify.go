// Package notify publishes counter changes onto a pubsub topic so other
// processes can follow them.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jfyne/counter"
	"github.com/jfyne/counter/live"
	"gocloud.dev/pubsub"
	_ "gocloud.dev/pubsub/mempubsub"
)

// Change is the message body published for every increment.
type Change struct {
	Socket string `json:"socket"`
	Value  int    `json:"value"`
}

// Publisher sends changes to a topic.
type Publisher struct {
	topic *pubsub.Topic
}

// OpenPublisher opens the topic at url, e.g. "mem://changes".
func OpenPublisher(ctx context.Context, url string) (*Publisher, error) {
	topic, err := pubsub.OpenTopic(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("could not open topic %s: %w", url, err)
	}
	return &Publisher{topic: topic}, nil
}

// Publish a change.
func (p *Publisher) Publish(ctx context.Context, c Change) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("could not encode change: %w", err)
	}
	return p.topic.Send(ctx, &pubsub.Message{
		Body: data,
		Metadata: map[string]string{
			"event": "change",
		},
	})
}

// Hook adapts the publisher to a counter change hook. Publish failures
// are logged, the counter does not see them.
func (p *Publisher) Hook() counter.ChangeHook {
	return func(ctx context.Context, s live.Socket, value int) {
		if err := p.Publish(ctx, Change{Socket: string(s.ID()), Value: value}); err != nil {
			slog.Error("could not publish change", "socket", s.ID(), "value", value, "err", err)
		}
	}
}

// Shutdown flushes and closes the topic.
func (p *Publisher) Shutdown(ctx context.Context) error {
	return p.topic.Shutdown(ctx)
}
