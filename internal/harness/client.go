package harness

import (
	"context"
	"strings"
)

// Client is an app handle with reference resolution on top. Admin clients
// bypass security rules.
type Client struct {
	app   App
	admin bool
}

func newClient(app App) *Client {
	return &Client{app: app, admin: app.Options().Admin}
}

func (c *Client) Name() string  { return c.app.Name() }
func (c *Client) App() App      { return c.app }
func (c *Client) IsAdmin() bool { return c.admin }

// Collection resolves a top-level collection
func (c *Client) Collection(name string) CollectionRef {
	return CollectionRef{client: c, path: name}
}

// Doc resolves a document by its path relative to the database root
func (c *Client) Doc(path string) DocumentRef {
	return DocumentRef{client: c, path: strings.Trim(path, "/")}
}

// CollectionRef names a collection. Resolving references never contacts the emulator.
type CollectionRef struct {
	client *Client
	path   string
}

func (r CollectionRef) Path() string { return r.path }

func (r CollectionRef) ID() string {
	return r.path[strings.LastIndex(r.path, "/")+1:]
}

// Doc resolves a document of the collection
func (r CollectionRef) Doc(id string) DocumentRef {
	return DocumentRef{client: r.client, path: r.path + "/" + id}
}

// DocumentRef names a document and runs operations on it through its client
type DocumentRef struct {
	client *Client
	path   string
}

func (r DocumentRef) Path() string { return r.path }

func (r DocumentRef) ID() string {
	return r.path[strings.LastIndex(r.path, "/")+1:]
}

// Collection resolves a subcollection of the document
func (r DocumentRef) Collection(name string) CollectionRef {
	return CollectionRef{client: r.client, path: r.path + "/" + name}
}

// Parent returns the collection containing the document
func (r DocumentRef) Parent() CollectionRef {
	idx := strings.LastIndex(r.path, "/")
	if idx < 0 {
		return CollectionRef{client: r.client}
	}
	return CollectionRef{client: r.client, path: r.path[:idx]}
}

func (r DocumentRef) Get(ctx context.Context) (*Snapshot, error) {
	return r.client.app.GetDocument(ctx, r.path)
}

// Set creates the document or replaces all of its fields
func (r DocumentRef) Set(ctx context.Context, data map[string]interface{}) error {
	return r.client.app.SetDocument(ctx, r.path, data)
}

// Update changes the given top-level fields of an existing document
func (r DocumentRef) Update(ctx context.Context, data map[string]interface{}) error {
	return r.client.app.UpdateDocument(ctx, r.path, data)
}

func (r DocumentRef) Delete(ctx context.Context) error {
	return r.client.app.DeleteDocument(ctx, r.path)
}
