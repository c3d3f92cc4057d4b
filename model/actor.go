package model

import (
	"context"
	"errors"
	"fmt"
)

// Actor identifies the authenticated user performing an operation. It is
// immutable after construction and safe for concurrent reads.
type Actor struct {
	ID            string
	Role          string
	Email         string
	CorrelationID string
	TraceID       string
}

// Validate checks that all mandatory fields are present.
func (a *Actor) Validate() error {
	var errs []error
	if a.ID == "" {
		errs = append(errs, fmt.Errorf("ID is required"))
	}
	if a.Role == "" {
		errs = append(errs, fmt.Errorf("Role is required"))
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

type actorKey struct{}

// WithActor attaches an Actor to the given context.
func WithActor(ctx context.Context, actor *Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFrom extracts the Actor from the context, or returns nil if not
// present.
func ActorFrom(ctx context.Context) *Actor {
	actor, _ := ctx.Value(actorKey{}).(*Actor)
	return actor
}

// MustActor extracts the Actor from the context, panicking if it is not
// present. Safe to call in handlers guaranteed to run behind the
// authentication middleware.
func MustActor(ctx context.Context) *Actor {
	actor := ActorFrom(ctx)
	if actor == nil {
		panic("model: Actor not found in context")
	}
	return actor
}
