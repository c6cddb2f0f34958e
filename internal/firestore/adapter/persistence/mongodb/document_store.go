package mongodb

import (
	"context"
	"time"

	"rockmap-rules/internal/firestore/domain/model"
	"rockmap-rules/internal/firestore/domain/repository"
	"rockmap-rules/internal/shared/errors"
	sharedfs "rockmap-rules/internal/shared/firestore"
	"rockmap-rules/internal/shared/logger"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DocumentsCollection holds every emulated document of every project
const DocumentsCollection = "documents"

// mongoDocument is the stored record. Fields are kept as Firestore typed
// values so integers, timestamps and geo points survive the BSON round trip.
type mongoDocument struct {
	ID         string    `bson:"_id"`
	ProjectID  string    `bson:"project_id"`
	DatabaseID string    `bson:"database_id"`
	Path       string    `bson:"path"`
	Fields     bson.M    `bson:"fields"`
	CreateTime time.Time `bson:"create_time"`
	UpdateTime time.Time `bson:"update_time"`
}

// DocumentStore implements repository.DocumentStore for MongoDB
type DocumentStore struct {
	db  *mongo.Database
	log logger.Logger
}

// NewDocumentStore creates a store over the given database
func NewDocumentStore(db *mongo.Database, log logger.Logger) *DocumentStore {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &DocumentStore{
		db:  db,
		log: log.WithComponent("mongodb_document_store"),
	}
}

// Connect opens a client, verifies it with a ping and returns a store on databaseName
func Connect(ctx context.Context, uri, databaseName string, log logger.Logger) (*DocumentStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, errors.NewInfrastructureError("failed to connect to MongoDB").WithCause(err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, errors.NewInfrastructureError("MongoDB is not reachable").WithCause(err)
	}

	store := NewDocumentStore(client.Database(databaseName), log)
	if err := store.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return store, nil
}

var _ repository.DocumentStore = (*DocumentStore)(nil)

func (s *DocumentStore) collection() *mongo.Collection {
	return s.db.Collection(DocumentsCollection)
}

// EnsureIndexes creates the project index used by DeleteProject
func (s *DocumentStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.collection().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "project_id", Value: 1}},
		Options: options.Index().SetName("project_id_1"),
	})
	if err != nil {
		return errors.NewInfrastructureError("failed to create document indexes").WithCause(err)
	}
	return nil
}

func (s *DocumentStore) Get(ctx context.Context, key model.DocumentKey) (*model.Document, error) {
	var record mongoDocument
	err := s.collection().FindOne(ctx, bson.M{"_id": key.String()}).Decode(&record)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		s.log.WithFields(map[string]interface{}{"key": key.String(), "error": err}).Error("failed to get document")
		return nil, errors.NewInfrastructureError("failed to read document").WithCause(err)
	}

	typed, _ := normalizeBSON(record.Fields).(map[string]interface{})
	fields, err := sharedfs.DecodeFields(typed)
	if err != nil {
		return nil, errors.NewInternalError("corrupt document fields").WithCause(err)
	}

	return &model.Document{
		Key:        key,
		Fields:     fields,
		CreateTime: record.CreateTime.UTC(),
		UpdateTime: record.UpdateTime.UTC(),
	}, nil
}

func (s *DocumentStore) Put(ctx context.Context, doc *model.Document) error {
	fields, err := sharedfs.EncodeFields(doc.Fields)
	if err != nil {
		return err
	}
	record := mongoDocument{
		ID:         doc.Key.String(),
		ProjectID:  doc.Key.ProjectID,
		DatabaseID: doc.Key.DatabaseID,
		Path:       doc.Key.Path,
		Fields:     bson.M(fields),
		CreateTime: doc.CreateTime,
		UpdateTime: doc.UpdateTime,
	}

	_, err = s.collection().ReplaceOne(ctx, bson.M{"_id": record.ID}, record, options.Replace().SetUpsert(true))
	if err != nil {
		s.log.WithFields(map[string]interface{}{"key": record.ID, "error": err}).Error("failed to store document")
		return errors.NewInfrastructureError("failed to store document").WithCause(err)
	}
	return nil
}

func (s *DocumentStore) Delete(ctx context.Context, key model.DocumentKey) error {
	if _, err := s.collection().DeleteOne(ctx, bson.M{"_id": key.String()}); err != nil {
		return errors.NewInfrastructureError("failed to delete document").WithCause(err)
	}
	return nil
}

func (s *DocumentStore) DeleteProject(ctx context.Context, projectID string) error {
	res, err := s.collection().DeleteMany(ctx, bson.M{"project_id": projectID})
	if err != nil {
		return errors.NewInfrastructureError("failed to clear project documents").WithCause(err)
	}
	s.log.WithFields(map[string]interface{}{
		"project_id": projectID,
		"documents":  res.DeletedCount,
	}).Info("project documents cleared from MongoDB")
	return nil
}

// Ping checks the MongoDB connection
func (s *DocumentStore) Ping(ctx context.Context) error {
	if err := s.db.Client().Ping(ctx, nil); err != nil {
		return errors.NewInfrastructureError("mongodb unreachable").WithCause(err)
	}
	return nil
}

// Close disconnects the underlying client
func (s *DocumentStore) Close(ctx context.Context) error {
	return s.db.Client().Disconnect(ctx)
}

// normalizeBSON turns decoded BSON containers back into plain maps and slices
func normalizeBSON(value interface{}) interface{} {
	switch v := value.(type) {
	case primitive.M:
		out := make(map[string]interface{}, len(v))
		for key, item := range v {
			out[key] = normalizeBSON(item)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for key, item := range v {
			out[key] = normalizeBSON(item)
		}
		return out
	case primitive.D:
		out := make(map[string]interface{}, len(v))
		for _, elem := range v {
			out[elem.Key] = normalizeBSON(elem.Value)
		}
		return out
	case primitive.A:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = normalizeBSON(item)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = normalizeBSON(item)
		}
		return out
	default:
		return v
	}
}
