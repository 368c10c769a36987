package validation

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/magazine-cms/internal/content"
)

func TestStructValid(t *testing.T) {
	t.Parallel()

	err := Struct(content.NewArticle{Title: "Reef", Content: "Body", CategoryID: 2})
	assert.NoError(t, err)
}

func TestStructMissingFields(t *testing.T) {
	t.Parallel()

	err := Struct(content.NewArticle{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, content.ErrInvalidInput))

	var verr *Error
	require.True(t, errors.As(err, &verr))
	fields := map[string]string{}
	for _, f := range verr.Fields {
		fields[f.Field] = f.Tag
	}
	assert.Equal(t, "required", fields["title"])
	assert.Equal(t, "required", fields["content"])
	assert.Equal(t, "required", fields["category_id"])
	assert.Contains(t, err.Error(), "title is required")
}

func TestStructLimits(t *testing.T) {
	t.Parallel()

	err := Struct(content.NewArticle{
		Title:      strings.Repeat("x", 501),
		Content:    "Body",
		CategoryID: -1,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "title must be at most 500 characters")
	assert.Contains(t, err.Error(), "category_id must be greater than 0")
}

func TestStructPartialUpdate(t *testing.T) {
	t.Parallel()

	assert.NoError(t, Struct(content.ArticleUpdate{}))

	long := strings.Repeat("x", 1001)
	err := Struct(content.ArticleUpdate{Excerpt: &long})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "excerpt must be at most 1000 characters")

	empty := ""
	err = Struct(content.ArticleUpdate{Title: &empty})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "title must be at least 1 characters")
}

func TestStructCategory(t *testing.T) {
	t.Parallel()

	assert.Error(t, Struct(content.NewCategory{}))
	assert.NoError(t, Struct(content.NewCategory{Name: "Sports"}))
}
