package contextkeys

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextKey_String(t *testing.T) {
	key := contextKey("testKey")
	assert.Equal(t, "rockmap-rules context key testKey", key.String())
}

func TestContextKeys_Usage(t *testing.T) {
	ctx := context.Background()
	ctx = context.WithValue(ctx, ProjectIDKey, "rockmap-70133")
	ctx = context.WithValue(ctx, DatabaseIDKey, "RockMap-debug")
	ctx = context.WithValue(ctx, ActorUIDKey, "mogu")
	ctx = context.WithValue(ctx, AppNameKey, "app-1")
	ctx = context.WithValue(ctx, RequestIDKey, "req-456")
	ctx = context.WithValue(ctx, ComponentKey, "harness")
	ctx = context.WithValue(ctx, OperationKey, "update")

	assert.Equal(t, "rockmap-70133", ctx.Value(ProjectIDKey))
	assert.Equal(t, "RockMap-debug", ctx.Value(DatabaseIDKey))
	assert.Equal(t, "mogu", ctx.Value(ActorUIDKey))
	assert.Equal(t, "app-1", ctx.Value(AppNameKey))
	assert.Equal(t, "req-456", ctx.Value(RequestIDKey))
	assert.Equal(t, "harness", ctx.Value(ComponentKey))
	assert.Equal(t, "update", ctx.Value(OperationKey))
	assert.Nil(t, ctx.Value(contextKey("missing")))
}
