// Package model holds the RockMap documents the rules suites write.
package model

import (
	"time"
)

// Collection names
const (
	UsersCollection   = "users"
	RocksCollection   = "rocks"
	CoursesCollection = "courses"
)

// SocialLink is one entry of a user's profile links
type SocialLink struct {
	LinkType string
	Link     string
}

// User is a document of users/{id}
type User struct {
	ID          string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ParentPath  string
	Name        string
	PhotoURL    string
	SocialLinks []SocialLink
	Intro       string
	HeaderURL   *string
	Deleted     bool
	IsRoot      bool
}

// Fields returns the document data in the shape stored in Firestore
func (u *User) Fields() map[string]interface{} {
	links := make([]interface{}, 0, len(u.SocialLinks))
	for _, l := range u.SocialLinks {
		links = append(links, map[string]interface{}{
			"linkType": l.LinkType,
			"link":     l.Link,
		})
	}
	return map[string]interface{}{
		"id":           u.ID,
		"createdAt":    u.CreatedAt,
		"updatedAt":    u.UpdatedAt,
		"parentPath":   u.ParentPath,
		"name":         u.Name,
		"photoURL":     u.PhotoURL,
		"socialLinks":  links,
		"introduction": u.Intro,
		"headerUrl":    optional(u.HeaderURL),
		"deleted":      u.Deleted,
		"isRoot":       u.IsRoot,
	}
}

func optional(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}
