package storagewrappers

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/vecinotech/vecinotech/pkg/storage"
)

// ContextTracerWrapper detaches state changing writes from the caller's
// context. A client that disconnects halfway through a claim must not leave
// the caller unsure whether the conditional write happened, so claims,
// completions, messages and ratings run to completion once started.
//
// It must be the first wrapper around the datastore for traces to work.
type ContextTracerWrapper struct {
	storage.Datastore
}

var _ storage.Datastore = (*ContextTracerWrapper)(nil)

func NewContextWrapper(inner storage.Datastore) *ContextTracerWrapper {
	return &ContextTracerWrapper{inner}
}

// queryContext returns a context independent of ctx that keeps its span.
// Already cancelled contexts are returned as is so no write starts.
func queryContext(ctx context.Context) context.Context {
	if ctx.Err() != nil {
		return ctx
	}
	span := trace.SpanFromContext(ctx)
	return trace.ContextWithSpan(context.Background(), span)
}

func (c *ContextTracerWrapper) ClaimRequest(ctx context.Context, id, volunteerID string, now time.Time) (*storage.Request, error) {
	return c.Datastore.ClaimRequest(queryContext(ctx), id, volunteerID, now)
}

func (c *ContextTracerWrapper) CompleteRequest(ctx context.Context, id, actorID string, now time.Time) (*storage.Request, bool, error) {
	return c.Datastore.CompleteRequest(queryContext(ctx), id, actorID, now)
}

func (c *ContextTracerWrapper) CreateMessage(ctx context.Context, m *storage.Message) error {
	return c.Datastore.CreateMessage(queryContext(ctx), m)
}

func (c *ContextTracerWrapper) CreateRating(ctx context.Context, r *storage.Rating) error {
	return c.Datastore.CreateRating(queryContext(ctx), r)
}
