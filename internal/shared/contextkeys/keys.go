package contextkeys

// contextKey is an unexported type to prevent collisions with context keys defined in
// other packages.
type contextKey string

// String makes contextKey satisfy the Stringer interface to assist with debugging.
func (c contextKey) String() string {
	return "rockmap-rules context key " + string(c)
}

const (
	// ProjectIDKey is the key for the emulated project in context.Context
	ProjectIDKey = contextKey("projectID")
	// DatabaseIDKey is the key for the emulated database in context.Context
	DatabaseIDKey = contextKey("databaseID")
	// ActorUIDKey is the key for the uid of the actor performing an operation
	ActorUIDKey = contextKey("actorUID")
	// AppNameKey identifies the client handle an operation was issued from
	AppNameKey = contextKey("appName")
	// RequestIDKey is the key for the emulator request id
	RequestIDKey = contextKey("requestID")
	// ComponentKey is the key for the logging component
	ComponentKey = contextKey("component")
	// OperationKey is the key for the document operation (get, create, update, delete)
	OperationKey = contextKey("operation")
)
