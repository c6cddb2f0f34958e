package usecase

import (
	"context"
	"testing"

	"rockmap-rules/internal/firestore/domain/repository"
	"rockmap-rules/internal/rules_translator/adapter/parser"
	"rockmap-rules/internal/rules_translator/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const nestedRules = `rules_version = '2';
service cloud.firestore {
  match /databases/{database}/documents {
    match /users/{userId} {
      allow read: if true;
      allow create, update: if request.auth != null && request.auth.uid == userId;
      allow delete: if false;
      match /rocks/{rockId} {
        allow read;
        allow write: if request.auth != null && request.auth.uid == userId;
      }
    }
    match /{document=**} {
      deny write: if request.auth == null;
    }
  }
}`

func translate(t *testing.T, rules string) *domain.TranslationResult {
	t.Helper()
	parsed, err := parser.NewModernParser().ParseString(context.Background(), rules)
	require.NoError(t, err)

	result, err := NewFastTranslator(nil).Translate(context.Background(), parsed.Ruleset)
	require.NoError(t, err)
	return result
}

func findRule(rules []*repository.SecurityRule, match string) *repository.SecurityRule {
	for _, rule := range rules {
		if rule.Match == match {
			return rule
		}
	}
	return nil
}

func TestTranslate_FlattensNestedMatches(t *testing.T) {
	result := translate(t, nestedRules)
	require.Len(t, result.Rules, 3)
	assert.Equal(t, 3, result.RulesGenerated)
	assert.Empty(t, result.Errors)

	users := findRule(result.Rules, "/databases/{database}/documents/users/{userId}")
	require.NotNil(t, users)
	assert.Equal(t, "true", users.Allow[repository.OperationRead])
	assert.Equal(t, "true", users.Allow[repository.OperationList])
	assert.Equal(t, "request.auth != null && request.auth.uid == userId", users.Allow[repository.OperationCreate])
	assert.Equal(t, users.Allow[repository.OperationCreate], users.Allow[repository.OperationUpdate])
	assert.Equal(t, "false", users.Allow[repository.OperationDelete])
	assert.Empty(t, users.Deny)

	rocks := findRule(result.Rules, "/databases/{database}/documents/users/{userId}/rocks/{rockId}")
	require.NotNil(t, rocks)
	for _, op := range []repository.OperationType{repository.OperationCreate, repository.OperationUpdate, repository.OperationDelete} {
		assert.Equal(t, "request.auth != null && request.auth.uid == userId", rocks.Allow[op], op)
	}

	wildcard := findRule(result.Rules, "/databases/{database}/documents/{document=**}")
	require.NotNil(t, wildcard)
	assert.Empty(t, wildcard.Allow)
	assert.Equal(t, "request.auth == null", wildcard.Deny[repository.OperationCreate])

	assert.Greater(t, rocks.Priority, users.Priority)
	assert.Greater(t, users.Priority, wildcard.Priority)
}

func TestTranslate_CombinesRepeatedOperations(t *testing.T) {
	result := translate(t, `service cloud.firestore {
  match /databases/{database}/documents {
    match /courses/{courseId} {
      allow get: if resource.data.public == true;
      allow read: if request.auth != null;
    }
  }
}`)
	rule := findRule(result.Rules, "/databases/{database}/documents/courses/{courseId}")
	require.NotNil(t, rule)
	assert.Equal(t, "(resource.data.public == true) || (request.auth != null)", rule.Allow[repository.OperationRead])
	assert.Equal(t, "request.auth != null", rule.Allow[repository.OperationList])
}

func TestTranslate_UnknownOperation(t *testing.T) {
	parsed, err := parser.NewModernParser().ParseString(context.Background(), `service cloud.firestore {
  match /databases/{database}/documents {
    match /a/{b} {
      allow modify: if true;
    }
  }
}`)
	require.NoError(t, err)

	translator := NewFastTranslator(nil)
	result, err := translator.Translate(context.Background(), parsed.Ruleset)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown operation 'modify'")
	require.Len(t, result.Errors, 1)

	metrics := translator.GetMetrics()
	assert.Equal(t, int64(1), metrics.TotalTranslations)
	assert.Equal(t, 1.0, metrics.ErrorRate)
}

func TestTranslate_NilRuleset(t *testing.T) {
	_, err := NewFastTranslator(nil).Translate(context.Background(), nil)
	assert.Error(t, err)
}

func TestConvertCondition(t *testing.T) {
	testCases := []struct {
		name      string
		condition string
		expected  string
	}{
		{
			name:      "plain expression",
			condition: "request.auth != null && request.auth.uid == userId",
			expected:  "request.auth != null && request.auth.uid == userId",
		},
		{
			name:      "exists with interpolation",
			condition: "exists(/databases/$(database)/documents/users/$(request.auth.uid))",
			expected:  `exists(("/databases/" + string(database) + "/documents/users/" + string(request.auth.uid)))`,
		},
		{
			name:      "get with field access",
			condition: "get(/databases/$(database)/documents/users/$(userId)).data.admin == true",
			expected:  `get(("/databases/" + string(database) + "/documents/users/" + string(userId))).data.admin == true`,
		},
		{
			name:      "literal path",
			condition: "exists(/databases/db/documents/config/main)",
			expected:  `exists("/databases/db/documents/config/main")`,
		},
		{
			name:      "slash inside string is untouched",
			condition: `resource.data.url == "/a/$(b)"`,
			expected:  `resource.data.url == "/a/$(b)"`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			converted, err := ConvertCondition(tc.condition)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, converted)
		})
	}
}

func TestConvertCondition_Errors(t *testing.T) {
	_, err := ConvertCondition("exists(/users/$(uid")
	assert.Error(t, err)

	_, err = ConvertCondition("exists(/users/$())")
	assert.Error(t, err)

	_, err = ConvertCondition(`x == "open`)
	assert.Error(t, err)
}

func TestCalculatePriority(t *testing.T) {
	translator := NewFastTranslator(nil)

	literal := translator.calculatePriority("/databases/{database}/documents/config/main", 1)
	variable := translator.calculatePriority("/databases/{database}/documents/config/{id}", 1)
	wildcard := translator.calculatePriority("/databases/{database}/documents/{document=**}", 1)

	assert.Greater(t, literal, variable)
	assert.Greater(t, variable, wildcard)
	assert.GreaterOrEqual(t, translator.calculatePriority("/{a=**}/{b=**}/{c=**}/{d=**}/{e=**}/{f=**}/{g=**}/{h=**}/{i=**}/{j=**}/{k=**}", 0), 1)
}
