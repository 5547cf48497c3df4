package shared

import "context"

// Actor identifies who performs an operation. Role resolution happens at the
// gateway; the ledger core only cares whether the actor is elevated enough
// for permanent deletes and cross-cutting admin views.
type Actor struct {
	ID       int64
	Role     string
	Elevated bool
}

type actorContextKey struct{}

// ContextWithActor stores the actor in context.
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the actor from context.
func ActorFromContext(ctx context.Context) Actor {
	actor, _ := ctx.Value(actorContextKey{}).(Actor)
	return actor
}

// RequireElevated guards operations restricted to elevated actors.
func RequireElevated(actor Actor) error {
	if !actor.Elevated {
		return NewError(KindForbidden, "elevated role required")
	}
	return nil
}
