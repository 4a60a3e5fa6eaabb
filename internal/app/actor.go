package app

import (
	"context"
	"strings"
)

// WithActor attaches the acting agent id used to attribute timeline entries.
func WithActor(ctx context.Context, actorID string) context.Context {
	return context.WithValue(ctx, actorContextKey{}, strings.TrimSpace(actorID))
}

// ActorFromContext returns the acting agent id when present.
func ActorFromContext(ctx context.Context) (string, bool) {
	actorID, ok := ctx.Value(actorContextKey{}).(string)
	if !ok || actorID == "" {
		return "", false
	}
	return actorID, true
}

// actorContextKey stores context keys for actor attribution.
type actorContextKey struct{}

// actorFor resolves the actor for ctx, falling back to the service default.
func (s *Service) actorFor(ctx context.Context) string {
	if actorID, ok := ActorFromContext(ctx); ok {
		return actorID
	}
	return s.defaultActor
}
