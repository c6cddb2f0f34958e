package firestore

import (
	"fmt"
	"regexp"
	"strings"

	"rockmap-rules/internal/shared/errors"
)

// DefaultDatabaseID is the database every Firestore project starts with.
const DefaultDatabaseID = "(default)"

// PathInfo represents parsed Firestore path information
type PathInfo struct {
	ProjectID    string
	DatabaseID   string
	DocumentPath string
	IsDocument   bool
	IsCollection bool
	Segments     []string
}

var (
	// projects/{PROJECT_ID}/databases/{DATABASE_ID}/documents/{DOCUMENT_PATH}
	firestorePathRegex = regexp.MustCompile(`^projects/([^/]+)/databases/([^/]+)/documents(?:/(.*))?$`)

	projectIDPattern  = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{0,62}$`)
	databaseIDPattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9-]{0,62}$`)
	reservedIDPattern = regexp.MustCompile(`^__.*__$`)
)

// ParseFirestorePath parses a complete Firestore resource name
func ParseFirestorePath(path string) (*PathInfo, error) {
	if path == "" {
		return nil, errors.NewValidationError("path cannot be empty")
	}

	path = strings.Trim(path, "/")

	matches := firestorePathRegex.FindStringSubmatch(path)
	if matches == nil {
		return nil, errors.NewValidationError("invalid Firestore path format").
			WithDetail("expected_format", "projects/{PROJECT_ID}/databases/{DATABASE_ID}/documents/{DOCUMENT_PATH}").
			WithDetail("provided_path", path).
			WithCause(errors.ErrInvalidPath)
	}

	projectID, databaseID, documentPath := matches[1], matches[2], matches[3]
	if err := ValidateProjectID(projectID); err != nil {
		return nil, err
	}
	if err := ValidateDatabaseID(databaseID); err != nil {
		return nil, err
	}

	segments := ParseDocumentPath(documentPath)
	for i, segment := range segments {
		if !IsValidID(segment) {
			return nil, errors.NewValidationError("invalid path segment").
				WithDetail("segment", segment).
				WithDetail("position", i).
				WithCause(errors.ErrInvalidPath)
		}
	}

	return &PathInfo{
		ProjectID:    projectID,
		DatabaseID:   databaseID,
		DocumentPath: documentPath,
		IsDocument:   len(segments) > 0 && len(segments)%2 == 0,
		IsCollection: len(segments)%2 == 1,
		Segments:     segments,
	}, nil
}

// ParseDocumentPath parses just the document path part (after /documents/)
func ParseDocumentPath(documentPath string) []string {
	if documentPath == "" {
		return []string{}
	}

	segments := strings.Split(documentPath, "/")
	result := make([]string, 0, len(segments))
	for _, segment := range segments {
		if segment != "" {
			result = append(result, segment)
		}
	}

	return result
}

// BuildFirestorePath constructs a Firestore resource name from components
func BuildFirestorePath(projectID, databaseID, documentPath string) string {
	base := fmt.Sprintf("projects/%s/databases/%s/documents", projectID, databaseID)
	if documentPath == "" {
		return base
	}
	return base + "/" + strings.Trim(documentPath, "/")
}

// BuildDocumentPath constructs a document path from segments
func BuildDocumentPath(segments ...string) string {
	return strings.Join(segments, "/")
}

// RulesPath is the path security rules match against:
// /databases/{database}/documents/{documentPath}
func RulesPath(databaseID, documentPath string) string {
	return "/databases/" + databaseID + "/documents/" + strings.Trim(documentPath, "/")
}

// GetDocumentID returns the document ID from a document path
func GetDocumentID(documentPath string) (string, error) {
	segments := ParseDocumentPath(documentPath)
	if len(segments) == 0 {
		return "", errors.NewValidationError("empty document path")
	}
	if len(segments)%2 == 1 {
		return "", errors.NewValidationError("path is a collection, not a document")
	}
	return segments[len(segments)-1], nil
}

// GetCollectionID returns the collection ID from a path
func GetCollectionID(path string) (string, error) {
	segments := ParseDocumentPath(path)
	if len(segments) == 0 {
		return "", errors.NewValidationError("empty path")
	}
	if len(segments)%2 == 0 {
		return segments[len(segments)-2], nil
	}
	return segments[len(segments)-1], nil
}

// GetParentPath returns the parent path (collection for document, parent document for subcollection)
func GetParentPath(path string) (string, error) {
	segments := ParseDocumentPath(path)
	if len(segments) <= 1 {
		return "", errors.NewValidationError("path has no parent")
	}
	return BuildDocumentPath(segments[:len(segments)-1]...), nil
}

// IsValidID checks a collection or document id against Firestore's constraints:
// non-empty, at most 1500 bytes, no '/', not '.' or '..', not __reserved__.
func IsValidID(id string) bool {
	if id == "" || len(id) > 1500 {
		return false
	}
	if id == "." || id == ".." || strings.Contains(id, "/") {
		return false
	}
	return !reservedIDPattern.MatchString(id)
}

// ValidateProjectID validates a project id
func ValidateProjectID(projectID string) error {
	if !projectIDPattern.MatchString(projectID) {
		return errors.NewValidationError("invalid project ID").
			WithDetail("project_id", projectID).
			WithCause(errors.ErrInvalidProjectID)
	}
	return nil
}

// ValidateDatabaseID validates a database id; "(default)" is always accepted
func ValidateDatabaseID(databaseID string) error {
	if databaseID == DefaultDatabaseID {
		return nil
	}
	if !databaseIDPattern.MatchString(databaseID) {
		return errors.NewValidationError("invalid database ID").
			WithDetail("database_id", databaseID).
			WithCause(errors.ErrInvalidDatabase)
	}
	return nil
}

// IsDocumentPath checks if a path represents a document
func IsDocumentPath(path string) bool {
	segments := ParseDocumentPath(path)
	return len(segments) > 0 && len(segments)%2 == 0
}

// IsCollectionPath checks if a path represents a collection
func IsCollectionPath(path string) bool {
	segments := ParseDocumentPath(path)
	return len(segments) > 0 && len(segments)%2 == 1
}

// ValidateDocumentPath validates a document path
func ValidateDocumentPath(path string) error {
	segments := ParseDocumentPath(path)
	if len(segments) == 0 {
		return errors.NewValidationError("document path cannot be empty").WithCause(errors.ErrInvalidPath)
	}

	if len(segments)%2 != 0 {
		return errors.NewValidationError("invalid document path: must have even number of segments").
			WithDetail("path", path).
			WithCause(errors.ErrInvalidPath)
	}

	for i, segment := range segments {
		if !IsValidID(segment) {
			return errors.NewValidationError("invalid segment in document path").
				WithDetail("segment", segment).
				WithDetail("position", i).
				WithCause(errors.ErrInvalidPath)
		}
	}

	return nil
}

// ValidateCollectionPath validates a collection path
func ValidateCollectionPath(path string) error {
	segments := ParseDocumentPath(path)
	if len(segments) == 0 {
		return errors.NewValidationError("collection path cannot be empty").WithCause(errors.ErrInvalidPath)
	}

	if len(segments)%2 != 1 {
		return errors.NewValidationError("invalid collection path: must have odd number of segments").
			WithDetail("path", path).
			WithCause(errors.ErrInvalidPath)
	}

	for i, segment := range segments {
		if !IsValidID(segment) {
			return errors.NewValidationError("invalid segment in collection path").
				WithDetail("segment", segment).
				WithDetail("position", i).
				WithCause(errors.ErrInvalidPath)
		}
	}

	return nil
}
