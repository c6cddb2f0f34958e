package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestReferences_PathsDoNotDependOnClient(t *testing.T) {
	admin := newClient(newMockApp("admin", AppOptions{Admin: true}))
	actor := newClient(newMockApp("actor", AppOptions{Auth: NewAuth("taro")}))

	adminRock := admin.Collection("users").Doc("taro").Collection("rocks").Doc("r1")
	actorRock := actor.Collection("users").Doc("taro").Collection("rocks").Doc("r1")

	assert.Equal(t, "users/taro/rocks/r1", adminRock.Path())
	assert.Equal(t, adminRock.Path(), actorRock.Path())
	assert.Equal(t, "r1", actorRock.ID())
	assert.Equal(t, "users/taro/rocks", actorRock.Parent().Path())
	assert.Equal(t, "rocks", actorRock.Parent().ID())
	assert.Equal(t, actorRock.Path(), actor.Doc("/users/taro/rocks/r1").Path())
	assert.True(t, admin.IsAdmin())
	assert.False(t, actor.IsAdmin())
}

func TestReferences_ResolveWithoutCallingTheEmulator(t *testing.T) {
	app := newMockApp("actor", AppOptions{})
	client := newClient(app)

	_ = client.Collection("users").Doc("a").Collection("rocks").Doc("b")
	app.AssertNotCalled(t, "GetDocument", mock.Anything, mock.Anything)
}

func TestDocumentRef_Operations(t *testing.T) {
	ctx := context.Background()
	app := newMockApp("actor", AppOptions{})
	doc := newClient(app).Collection("users").Doc("taro")
	data := map[string]interface{}{"name": "taro"}

	app.On("GetDocument", ctx, "users/taro").Return(&Snapshot{Path: "users/taro", Exists: true, Data: data}, nil)
	app.On("SetDocument", ctx, "users/taro", data).Return(nil)
	app.On("UpdateDocument", ctx, "users/taro", data).Return(nil)
	app.On("DeleteDocument", ctx, "users/taro").Return(nil)

	snap, err := doc.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, data, snap.Data)
	require.NoError(t, doc.Set(ctx, data))
	require.NoError(t, doc.Update(ctx, data))
	require.NoError(t, doc.Delete(ctx))
	app.AssertExpectations(t)
}
