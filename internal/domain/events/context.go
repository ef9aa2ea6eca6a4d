package events

import "context"

type actorKey struct{}

// WithActor deja el actor del request en el contexto para la auditoría.
func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

// ActorFrom devuelve el actor del contexto o SystemActor.
func ActorFrom(ctx context.Context) Actor {
	if a, ok := ctx.Value(actorKey{}).(Actor); ok && a.Type != "" && a.ID != "" {
		return a
	}
	return SystemActor
}

type sourceKey struct{}

// WithSource marca el origen de las mutaciones hechas con ctx (CLI, import).
func WithSource(ctx context.Context, s Source) context.Context {
	return context.WithValue(ctx, sourceKey{}, s)
}

// SourceFrom devuelve el origen del contexto o SourceAPI.
func SourceFrom(ctx context.Context) Source {
	if s, ok := ctx.Value(sourceKey{}).(Source); ok && s != "" {
		return s
	}
	return SourceAPI
}
