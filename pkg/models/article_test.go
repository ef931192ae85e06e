package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestArticleHelpers(t *testing.T) {
	// map values are not addressable, the helpers must still be callable on them
	byLink := map[string]Article{
		"a": {Title: " Storm ", Content: "warning ", Source: " Wire ", Embedding: []float32{1}},
		"b": {Title: "Calm"},
	}

	assert.Equal(t, "wire", byLink["a"].SourceKey())
	assert.True(t, byLink["a"].HasEmbedding())
	assert.False(t, byLink["b"].HasEmbedding())
	assert.Equal(t, "Storm  warning", byLink["a"].EmbeddingText())
	assert.Equal(t, "Calm", byLink["b"].EmbeddingText())
}

func TestUserIsCold(t *testing.T) {
	var missing *User
	assert.True(t, missing.IsCold())
	assert.True(t, (&User{}).IsCold())
	assert.False(t, (&User{InterestVector: []float32{0.1}}).IsCold())
}
