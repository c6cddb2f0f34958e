package model

import (
	"time"

	sharedfs "rockmap-rules/internal/shared/firestore"
)

// Rock is a document of users/{userId}/rocks/{id}
type Rock struct {
	ID               string
	CreatedAt        time.Time
	UpdatedAt        *time.Time
	ParentPath       string
	Name             string
	Address          string
	PrefectureID     string
	Location         sharedfs.GeoPoint
	Seasons          []string
	Lithology        string
	Desc             string
	RegisteredUserID string
	HeaderURL        *string
	ImageURLs        []string
}

// Fields returns the document data in the shape stored in Firestore
func (r *Rock) Fields() map[string]interface{} {
	var updatedAt interface{}
	if r.UpdatedAt != nil {
		updatedAt = *r.UpdatedAt
	}
	return map[string]interface{}{
		"id":               r.ID,
		"createdAt":        r.CreatedAt,
		"updatedAt":        updatedAt,
		"parentPath":       r.ParentPath,
		"name":             r.Name,
		"address":          r.Address,
		"prefectureId":     r.PrefectureID,
		"location":         r.Location,
		"seasons":          toList(r.Seasons),
		"lithology":        r.Lithology,
		"desc":             r.Desc,
		"registeredUserId": r.RegisteredUserID,
		"headerUrl":        optional(r.HeaderURL),
		"imageUrls":        toList(r.ImageURLs),
	}
}

func toList(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
