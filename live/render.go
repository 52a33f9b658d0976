package live

import (
	"context"
	"fmt"

	"golang.org/x/net/html"
)

// RenderContext contains the sockets current data for rendering.
type RenderContext struct {
	Socket  Socket
	Assigns any
}

// RenderSocket renders the socket to html. If the socket has rendered
// before the difference is sent to its client as a patch event.
func RenderSocket(ctx context.Context, h *Handler, s Socket) (*html.Node, error) {
	rc := &RenderContext{
		Socket:  s,
		Assigns: s.Assigns(),
	}

	output, err := h.RenderHandler(ctx, rc)
	if err != nil {
		return nil, fmt.Errorf("render error: %w", err)
	}
	render, err := html.Parse(output)
	if err != nil {
		return nil, fmt.Errorf("html parse error: %w", err)
	}
	shapeTree(render)
	anchorTree(render)

	if latest := s.LatestRender(); latest != nil {
		patches, err := Diff(latest, render)
		if err != nil {
			return nil, fmt.Errorf("diff error: %w", err)
		}
		if len(patches) != 0 {
			if err := s.Send(EventPatch, patches); err != nil {
				return nil, fmt.Errorf("patch send error: %w", err)
			}
		}
	}

	return render, nil
}
