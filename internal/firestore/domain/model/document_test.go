package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDocumentKey_String(t *testing.T) {
	key := DocumentKey{ProjectID: "p1", DatabaseID: "(default)", Path: "users/U1"}
	assert.Equal(t, "p1/(default)/users/U1", key.String())
}

func TestDocument_CloneIsIndependent(t *testing.T) {
	doc := &Document{
		Key: DocumentKey{ProjectID: "p1", DatabaseID: "d1", Path: "users/U1"},
		Fields: map[string]interface{}{
			"name":  "taro",
			"links": []interface{}{map[string]interface{}{"link": "@taro"}},
		},
		CreateTime: time.Now(),
	}

	clone := doc.Clone()
	clone.Fields["name"] = "jiro"
	clone.Fields["links"].([]interface{})[0].(map[string]interface{})["link"] = "@jiro"

	assert.Equal(t, "taro", doc.Fields["name"])
	assert.Equal(t, "@taro", doc.Fields["links"].([]interface{})[0].(map[string]interface{})["link"])
	assert.Equal(t, doc.Key, clone.Key)

	var missing *Document
	assert.Nil(t, missing.Clone())
	assert.Nil(t, CloneFields(nil))
}

func TestMergeFields(t *testing.T) {
	existing := map[string]interface{}{"name": "taro", "age": int64(20)}
	merged := MergeFields(existing, map[string]interface{}{"name": "TARO", "intro": "hi"})

	assert.Equal(t, map[string]interface{}{"name": "TARO", "age": int64(20), "intro": "hi"}, merged)
	assert.Equal(t, "taro", existing["name"])

	assert.Equal(t, map[string]interface{}{"a": 1}, MergeFields(nil, map[string]interface{}{"a": 1}))
}
