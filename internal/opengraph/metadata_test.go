package opengraph

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"

	"github.com/JakeFAU/magazine-cms/internal/content"
)

var testSite = Site{
	BaseURL:       "https://example.com",
	Name:          "Havaasa",
	Locale:        "dv_MV",
	FallbackImage: "/og-image.png",
}

func TestBuildMetadataFallbackImage(t *testing.T) {
	t.Parallel()

	m := BuildMetadata(content.Article{ID: 42, Title: "Reef report", Content: "Body"}, testSite)

	assert.Equal(t, "https://example.com/og-image.png", m.Image)
	assert.Equal(t, "https://example.com/article/42", m.URL)
	assert.Equal(t, TypeArticle, m.Type)
	assert.Equal(t, "Havaasa", m.SiteName)
	assert.Equal(t, "dv_MV", m.Locale)
	assert.Equal(t, "", m.Category)
}

func TestBuildMetadataUpgradesHTTPImage(t *testing.T) {
	t.Parallel()

	m := BuildMetadata(content.Article{ID: 1, Title: "x", ImageURL: "http://cdn.example.com/x.jpg"}, testSite)
	assert.Equal(t, "https://cdn.example.com/x.jpg", m.Image)
}

func TestBuildMetadataSparseArticleIsFullyPopulated(t *testing.T) {
	t.Parallel()

	m := BuildMetadata(content.Article{ID: 9}, testSite)

	assert.Equal(t, "Havaasa", m.Title)
	assert.Equal(t, "", m.Description)
	assert.NotEmpty(t, m.Image)
	assert.NotEmpty(t, m.URL)
	assert.NotEmpty(t, m.Type)
	assert.NotEmpty(t, m.SiteName)
	assert.NotEmpty(t, m.Locale)
}

func TestBuildMetadataCategory(t *testing.T) {
	t.Parallel()

	m := BuildMetadata(content.Article{ID: 3, Title: "t", CategoryName: "Politics"}, testSite)
	assert.Equal(t, "Politics", m.Category)
}

func TestBuildMetadataTrimsBaseURL(t *testing.T) {
	t.Parallel()

	site := testSite
	site.BaseURL = "https://example.com/"
	m := BuildMetadata(content.Article{ID: 5, Title: "t"}, site)
	assert.Equal(t, "https://example.com/article/5", m.URL)
}

func TestDescribe(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("a", 250)
	tests := []struct {
		name    string
		article content.Article
		want    string
	}{
		{name: "excerpt wins", article: content.Article{Excerpt: "  Short summary ", Content: "ignored"}, want: "Short summary"},
		{name: "short content", article: content.Article{Content: "Hello world"}, want: "Hello world..."},
		{name: "long content truncated", article: content.Article{Content: long}, want: strings.Repeat("a", DescriptionLimit) + "..."},
		{name: "markup stripped", article: content.Article{Content: "<p>Hello <b>reef</b> &amp; sea</p>"}, want: "Hello reef & sea..."},
		{name: "empty", article: content.Article{}, want: ""},
		{name: "markup only", article: content.Article{Content: "<p> </p>"}, want: ""},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Describe(tt.article))
		})
	}
}

func TestDescribeCountsCharactersNotBytes(t *testing.T) {
	t.Parallel()

	thaana := strings.Repeat("ދ", 300)
	got := Describe(content.Article{Content: thaana})

	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, DescriptionLimit+len(ellipsis), utf8.RuneCountInString(got))
}

func TestImageURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		ref  string
		want string
	}{
		{name: "missing", ref: "", want: "https://example.com/og-image.png"},
		{name: "https kept", ref: "https://cdn.example.com/a.png", want: "https://cdn.example.com/a.png"},
		{name: "http upgraded", ref: "http://cdn.example.com/a.png", want: "https://cdn.example.com/a.png"},
		{name: "uppercase scheme", ref: "HTTP://cdn.example.com/a.png", want: "https://cdn.example.com/a.png"},
		{name: "protocol relative", ref: "//cdn.example.com/a.png", want: "https://cdn.example.com/a.png"},
		{name: "relative", ref: "uploads/articles/a.png", want: "https://example.com/uploads/articles/a.png"},
		{name: "root relative", ref: "/uploads/a.png", want: "https://example.com/uploads/a.png"},
		{name: "javascript scheme", ref: "javascript:alert(1)", want: "https://example.com/og-image.png"},
		{name: "data uri", ref: "data:image/png;base64,AAAA", want: "https://example.com/og-image.png"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ImageURL(tt.ref, "https://example.com", "/og-image.png"))
		})
	}
}

func TestImageURLUpgradesHTTPBase(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "https://localhost:3001/og-image.png", ImageURL("", "http://localhost:3001", ""))
	assert.Equal(t, "https://static.example.com/fallback.png",
		ImageURL("", "https://example.com", "http://static.example.com/fallback.png"))
}
