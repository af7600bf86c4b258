package shared

import (
	"context"

	"github.com/google/uuid"
)

type workspaceContextKey struct{}

type actorContextKey struct{}

// ContextWithWorkspace stores the workspace scope in context.
func ContextWithWorkspace(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, workspaceContextKey{}, id)
}

// WorkspaceFromContext extracts the workspace scope from context.
func WorkspaceFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(workspaceContextKey{}).(uuid.UUID)
	return id, ok && id != uuid.Nil
}

// ContextWithActor stores the acting user identifier in context.
func ContextWithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the acting user identifier, empty when unset.
func ActorFromContext(ctx context.Context) string {
	actor, _ := ctx.Value(actorContextKey{}).(string)
	return actor
}
