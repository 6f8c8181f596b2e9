package app

import (
	"context"
	"strings"
)

// actorContextKey stores context keys for acting-user attribution.
type actorContextKey struct{}

// WithActor attaches the acting user to context for count and audit attribution.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorContextKey{}, strings.TrimSpace(actor))
}

// ActorFromContext returns the acting user when one was attached.
func ActorFromContext(ctx context.Context) (string, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(string)
	if !ok || actor == "" {
		return "", false
	}
	return actor, true
}

// resolveActor picks the explicit actor, then the context actor, then the configured default.
func (s *Service) resolveActor(ctx context.Context, explicit string) string {
	if actor := strings.TrimSpace(explicit); actor != "" {
		return actor
	}
	if actor, ok := ActorFromContext(ctx); ok {
		return actor
	}
	return s.defaultActor
}
