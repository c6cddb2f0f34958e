// Package testutil builds RockMap fixture documents for rules suites.
package testutil

import (
	"strings"
	"time"

	"rockmap-rules/internal/rockmap/model"
	sharedfs "rockmap-rules/internal/shared/firestore"

	"github.com/google/uuid"
)

// FixtureTime is the timestamp every fixture carries
var FixtureTime = time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)

// RandomID returns a fresh document id
func RandomID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// NewUser returns a root user with fixed field values
func NewUser(id string) *model.User {
	return &model.User{
		ID:         id,
		CreatedAt:  FixtureTime,
		UpdatedAt:  FixtureTime,
		ParentPath: "",
		Name:       "test user",
		PhotoURL:   "https://example.com/photo.png",
		SocialLinks: []model.SocialLink{
			{LinkType: "twitter", Link: "@rockmap"},
			{LinkType: "instagram", Link: "rockmap"},
		},
		Intro:   "hello",
		Deleted: false,
		IsRoot:  true,
	}
}

// NewRock returns a rock registered by nobody in particular; callers set
// ParentPath and RegisteredUserID when nesting it under a user
func NewRock(id string) *model.Rock {
	return &model.Rock{
		ID:               id,
		CreatedAt:        FixtureTime,
		ParentPath:       "",
		Name:             "test rock",
		Address:          "Tokyo",
		PrefectureID:     "13",
		Location:         sharedfs.GeoPoint{Latitude: 35.681236, Longitude: 139.767125},
		Seasons:          []string{"spring", "winter"},
		Lithology:        "granite",
		Desc:             "a boulder",
		RegisteredUserID: "",
		ImageURLs:        []string{"https://example.com/rock.png"},
	}
}

// NewRockOf returns a rock nested under userID
func NewRockOf(userID, id string) *model.Rock {
	rock := NewRock(id)
	rock.ParentPath = model.UsersCollection + "/" + userID
	rock.RegisteredUserID = userID
	return rock
}
