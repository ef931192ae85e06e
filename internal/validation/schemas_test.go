package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemaValidator_ArticleMessage(t *testing.T) {
	sv, err := NewSchemaValidator()
	require.NoError(t, err)
	assert.True(t, sv.SchemaExists(ArticleMessageSchema))

	tests := []struct {
		name  string
		doc   string
		valid bool
	}{
		{
			name: "valid batch",
			doc: `{"batch_id":"6f1c2a5e-6f0c-4a43-9d7c-2b1f8a6f5a10","published_at":"2024-05-01T10:00:00Z",
				"articles":[{"title":"Storm hits coast","link":"https://news.test/storm","source":"Wire"}]}`,
			valid: true,
		},
		{
			name:  "missing articles",
			doc:   `{"batch_id":"6f1c2a5e-6f0c-4a43-9d7c-2b1f8a6f5a10","published_at":"2024-05-01T10:00:00Z"}`,
			valid: false,
		},
		{
			name: "article without link",
			doc: `{"batch_id":"6f1c2a5e-6f0c-4a43-9d7c-2b1f8a6f5a10","published_at":"2024-05-01T10:00:00Z",
				"articles":[{"title":"Storm hits coast"}]}`,
			valid: false,
		},
		{
			name: "empty article list",
			doc: `{"batch_id":"6f1c2a5e-6f0c-4a43-9d7c-2b1f8a6f5a10","published_at":"2024-05-01T10:00:00Z",
				"articles":[]}`,
			valid: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := sv.ValidateArticleMessage([]byte(tt.doc))
			assert.Equal(t, tt.valid, result.Valid, result.Errors)
			if tt.valid {
				assert.NoError(t, result.Err())
			} else {
				assert.Error(t, result.Err())
			}
		})
	}
}

func TestSchemaValidator_MalformedDocument(t *testing.T) {
	sv, err := NewSchemaValidator()
	require.NoError(t, err)

	result := sv.ValidateArticleMessage("{not json")
	assert.False(t, result.Valid)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "MALFORMED_DOCUMENT", result.Errors[0].Code)
}

func TestSchemaValidator_Interaction(t *testing.T) {
	sv, err := NewSchemaValidator()
	require.NoError(t, err)

	ok := sv.ValidateInteraction(map[string]string{
		"user_id":          "6f1c2a5e-6f0c-4a43-9d7c-2b1f8a6f5a10",
		"article_id":       "0b5e3f7c-1d2a-4c6b-8e9f-a1b2c3d4e5f6",
		"interaction_type": "like",
	})
	assert.True(t, ok.Valid)

	missing := sv.ValidateInteraction(map[string]string{"user_id": "6f1c2a5e-6f0c-4a43-9d7c-2b1f8a6f5a10"})
	assert.False(t, missing.Valid)
}
