package model

import "time"

// DocumentKey addresses a document inside one emulated project and database.
type DocumentKey struct {
	ProjectID  string `json:"projectId" bson:"project_id"`
	DatabaseID string `json:"databaseId" bson:"database_id"`
	// Path is the document path relative to the database root, e.g. "users/U1/rocks/R1"
	Path string `json:"path" bson:"path"`
}

// String returns a stable identifier for the key.
func (k DocumentKey) String() string {
	return k.ProjectID + "/" + k.DatabaseID + "/" + k.Path
}

// Document represents a stored document.
type Document struct {
	Key        DocumentKey            `json:"key"`
	Fields     map[string]interface{} `json:"fields"`
	CreateTime time.Time              `json:"createTime"`
	UpdateTime time.Time              `json:"updateTime"`
}

// Clone returns a copy whose field map can be modified independently.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	clone := *d
	clone.Fields = CloneFields(d.Fields)
	return &clone
}

// CloneFields deep copies nested maps and slices of a field map.
func CloneFields(fields map[string]interface{}) map[string]interface{} {
	if fields == nil {
		return nil
	}
	out := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		return CloneFields(val)
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return val
	}
}

// MergeFields applies a top-level field update on top of existing fields.
func MergeFields(existing, update map[string]interface{}) map[string]interface{} {
	merged := CloneFields(existing)
	if merged == nil {
		merged = make(map[string]interface{}, len(update))
	}
	for k, v := range update {
		merged[k] = cloneValue(v)
	}
	return merged
}
