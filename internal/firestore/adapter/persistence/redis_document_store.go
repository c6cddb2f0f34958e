package persistence

import (
	"context"
	"encoding/json"
	"time"

	"rockmap-rules/internal/firestore/domain/model"
	"rockmap-rules/internal/firestore/domain/repository"
	"rockmap-rules/internal/shared/errors"
	sharedfs "rockmap-rules/internal/shared/firestore"
	"rockmap-rules/internal/shared/logger"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "rockmap"

// RedisDocumentStore implements DocumentStore on Redis strings.
// Each document is a JSON record of Firestore typed fields; a set per project
// indexes its document keys so a project can be cleared without SCAN.
type RedisDocumentStore struct {
	client *redis.Client
	logger logger.Logger
}

// redisDocument is the stored JSON record
type redisDocument struct {
	Fields     map[string]interface{} `json:"fields"`
	CreateTime time.Time              `json:"createTime"`
	UpdateTime time.Time              `json:"updateTime"`
}

// NewRedisDocumentStore creates a new Redis-based document store
func NewRedisDocumentStore(client *redis.Client, log logger.Logger) *RedisDocumentStore {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &RedisDocumentStore{
		client: client,
		logger: log.WithComponent("redis_document_store"),
	}
}

var _ repository.DocumentStore = (*RedisDocumentStore)(nil)

func documentKey(key model.DocumentKey) string {
	return redisKeyPrefix + ":doc:" + key.ProjectID + ":" + key.DatabaseID + ":" + key.Path
}

func projectIndexKey(projectID string) string {
	return redisKeyPrefix + ":project:" + projectID
}

func (r *RedisDocumentStore) Get(ctx context.Context, key model.DocumentKey) (*model.Document, error) {
	payload, err := r.client.Get(ctx, documentKey(key)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		r.logger.WithFields(map[string]interface{}{"key": key.String(), "error": err}).Error("failed to read document from Redis")
		return nil, errors.NewInfrastructureError("failed to read document").WithCause(err)
	}

	var record redisDocument
	if err := json.Unmarshal(payload, &record); err != nil {
		return nil, errors.NewInternalError("corrupt document record").WithCause(err)
	}
	fields, err := sharedfs.DecodeFields(record.Fields)
	if err != nil {
		return nil, errors.NewInternalError("corrupt document fields").WithCause(err)
	}

	return &model.Document{
		Key:        key,
		Fields:     fields,
		CreateTime: record.CreateTime,
		UpdateTime: record.UpdateTime,
	}, nil
}

func (r *RedisDocumentStore) Put(ctx context.Context, doc *model.Document) error {
	fields, err := sharedfs.EncodeFields(doc.Fields)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(redisDocument{
		Fields:     fields,
		CreateTime: doc.CreateTime,
		UpdateTime: doc.UpdateTime,
	})
	if err != nil {
		return errors.NewValidationError("document cannot be serialized").WithCause(err)
	}

	redisKey := documentKey(doc.Key)
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, redisKey, payload, 0)
		pipe.SAdd(ctx, projectIndexKey(doc.Key.ProjectID), redisKey)
		return nil
	})
	if err != nil {
		r.logger.WithFields(map[string]interface{}{"key": doc.Key.String(), "error": err}).Error("failed to store document in Redis")
		return errors.NewInfrastructureError("failed to store document").WithCause(err)
	}

	r.logger.WithFields(map[string]interface{}{"key": doc.Key.String()}).Debug("document stored in Redis")
	return nil
}

func (r *RedisDocumentStore) Delete(ctx context.Context, key model.DocumentKey) error {
	redisKey := documentKey(key)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, redisKey)
		pipe.SRem(ctx, projectIndexKey(key.ProjectID), redisKey)
		return nil
	})
	if err != nil {
		return errors.NewInfrastructureError("failed to delete document").WithCause(err)
	}
	return nil
}

func (r *RedisDocumentStore) DeleteProject(ctx context.Context, projectID string) error {
	indexKey := projectIndexKey(projectID)
	keys, err := r.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return errors.NewInfrastructureError("failed to list project documents").WithCause(err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(keys) > 0 {
			pipe.Del(ctx, keys...)
		}
		pipe.Del(ctx, indexKey)
		return nil
	})
	if err != nil {
		return errors.NewInfrastructureError("failed to clear project documents").WithCause(err)
	}

	r.logger.WithFields(map[string]interface{}{
		"project_id": projectID,
		"documents":  len(keys),
	}).Info("project documents cleared from Redis")
	return nil
}

// Ping checks the Redis connection
func (r *RedisDocumentStore) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return errors.NewInfrastructureError("redis unreachable").WithCause(err)
	}
	return nil
}

func (r *RedisDocumentStore) Close(ctx context.Context) error {
	return r.client.Close()
}
