package live

import (
	"context"
	"net/http"
)

type contextKey string

const writerKey contextKey = "context_writer"

func contextWithWriter(ctx context.Context, w http.ResponseWriter) context.Context {
	return context.WithValue(ctx, writerKey, w)
}

// Writer pulls out the response writer from a context. This is only
// present during the initial GET, websocket contexts do not carry one.
func Writer(ctx context.Context) http.ResponseWriter {
	w, ok := ctx.Value(writerKey).(http.ResponseWriter)
	if !ok {
		return nil
	}
	return w
}
