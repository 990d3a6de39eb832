package auth

import "context"

type contextKey string

const actorKey contextKey = "actorId"

// WithActor returns a context carrying actorID.
func WithActor(ctx context.Context, actorID string) context.Context {
	return context.WithValue(ctx, actorKey, actorID)
}

// ActorFrom extracts the actor id from ctx.
func ActorFrom(ctx context.Context) (string, bool) {
	actor, ok := ctx.Value(actorKey).(string)
	return actor, ok && actor != ""
}

// ContextIdentity resolves the current actor from the request context.
type ContextIdentity struct{}

func (ContextIdentity) CurrentActor(ctx context.Context) (string, bool) {
	return ActorFrom(ctx)
}
