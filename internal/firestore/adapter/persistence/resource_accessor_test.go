package persistence_test

import (
	"context"
	"testing"

	"rockmap-rules/internal/firestore/adapter/persistence"
	"rockmap-rules/internal/firestore/adapter/persistence/memory"
	"rockmap-rules/internal/firestore/domain/model"
	"rockmap-rules/internal/shared/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResourceAccessor_GetDocument(t *testing.T) {
	ctx := context.Background()
	store := memory.NewDocumentStore()
	accessor := persistence.NewResourceAccessor(store, nil)

	require.NoError(t, store.Put(ctx, &model.Document{
		Key:    model.DocumentKey{ProjectID: "rockmap-70133", DatabaseID: "RockMap-debug", Path: "users/U1"},
		Fields: map[string]interface{}{"name": "taro"},
	}))

	t.Run("existing document", func(t *testing.T) {
		doc, err := accessor.GetDocument(ctx, "rockmap-70133", "/databases/RockMap-debug/documents/users/U1")
		require.NoError(t, err)
		assert.Equal(t, "taro", doc["name"])

		exists, err := accessor.ExistsDocument(ctx, "rockmap-70133", "/databases/RockMap-debug/documents/users/U1")
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("other project or database", func(t *testing.T) {
		doc, err := accessor.GetDocument(ctx, "other-project", "/databases/RockMap-debug/documents/users/U1")
		require.NoError(t, err)
		assert.Nil(t, doc)

		exists, err := accessor.ExistsDocument(ctx, "rockmap-70133", "/databases/(default)/documents/users/U1")
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("invalid path", func(t *testing.T) {
		_, err := accessor.GetDocument(ctx, "rockmap-70133", "/users/U1")
		require.Error(t, err)
		assert.True(t, errors.IsValidation(err))
	})
}

func TestParseRulesPath(t *testing.T) {
	key, err := persistence.ParseRulesPath("rockmap-70133", "/databases/RockMap-debug/documents/users/U1/rocks/R1")
	require.NoError(t, err)
	assert.Equal(t, model.DocumentKey{ProjectID: "rockmap-70133", DatabaseID: "RockMap-debug", Path: "users/U1/rocks/R1"}, key)

	for _, path := range []string{
		"",
		"/databases/db/documents",
		"/databases/db/documents/users",
		"/dbs/db/documents/users/U1",
	} {
		_, err := persistence.ParseRulesPath("p", path)
		assert.Error(t, err, path)
	}
}
