// Package opengraph derives link-preview metadata for articles and renders the
// Open Graph, Twitter Card and JSON-LD document served to social crawlers.
package opengraph

import (
	"html"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"

	"github.com/JakeFAU/magazine-cms/internal/content"
)

const (
	// TypeArticle is the og:type of every article document.
	TypeArticle = "article"
	// DescriptionLimit is the number of characters kept from article content
	// when no excerpt exists.
	DescriptionLimit = 200
	ellipsis         = "..."
)

// Site carries the deployment constants shared by every preview.
type Site struct {
	BaseURL       string
	Name          string
	Locale        string
	FallbackImage string
}

// Metadata is the canonical preview description of one article.
type Metadata struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Image       string `json:"image"`
	URL         string `json:"url"`
	Type        string `json:"type"`
	SiteName    string `json:"site_name"`
	Locale      string `json:"locale"`
	Category    string `json:"category"`
}

var textPolicy = bluemonday.StrictPolicy()

// BuildMetadata computes fully populated preview metadata for a.
func BuildMetadata(a content.Article, site Site) Metadata {
	base := strings.TrimRight(site.BaseURL, "/")
	title := strings.TrimSpace(a.Title)
	if title == "" {
		title = site.Name
	}
	return Metadata{
		Title:       title,
		Description: Describe(a),
		Image:       ImageURL(a.ImageURL, base, site.FallbackImage),
		URL:         base + "/article/" + strconv.FormatInt(a.ID, 10),
		Type:        TypeArticle,
		SiteName:    site.Name,
		Locale:      site.Locale,
		Category:    a.CategoryName,
	}
}

// Describe returns the excerpt, or the first DescriptionLimit characters of
// the article text followed by an ellipsis, or "".
func Describe(a content.Article) string {
	if excerpt := strings.TrimSpace(a.Excerpt); excerpt != "" {
		return excerpt
	}
	text := plainText(a.Content)
	if text == "" {
		return ""
	}
	if utf8.RuneCountInString(text) > DescriptionLimit {
		runes := []rune(text)
		text = strings.TrimRight(string(runes[:DescriptionLimit]), " ")
	}
	return text + ellipsis
}

// plainText strips markup from editor HTML and collapses whitespace.
func plainText(s string) string {
	if strings.ContainsAny(s, "<&") {
		s = html.UnescapeString(textPolicy.Sanitize(s))
	}
	return strings.Join(strings.Fields(s), " ")
}

// ImageURL resolves an article image reference to an absolute HTTPS URL.
// Missing references and non-HTTP schemes fall back to the site image.
func ImageURL(ref, baseURL, fallback string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return fallbackImage(baseURL, fallback)
	}
	lower := strings.ToLower(ref)
	switch {
	case strings.HasPrefix(lower, "https://"):
		return "https://" + ref[len("https://"):]
	case strings.HasPrefix(lower, "http://"):
		return "https://" + ref[len("http://"):]
	case strings.HasPrefix(ref, "//"):
		return "https:" + ref
	}
	if u, err := url.Parse(ref); err != nil || u.Scheme != "" {
		return fallbackImage(baseURL, fallback)
	}
	return httpsBase(baseURL) + "/" + strings.TrimLeft(ref, "/")
}

func fallbackImage(baseURL, fallback string) string {
	if fallback == "" {
		fallback = "/og-image.png"
	}
	lower := strings.ToLower(fallback)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return ImageURL(fallback, baseURL, "")
	}
	return httpsBase(baseURL) + "/" + strings.TrimLeft(fallback, "/")
}

func httpsBase(baseURL string) string {
	base := strings.TrimRight(baseURL, "/")
	if strings.HasPrefix(strings.ToLower(base), "http://") {
		return "https://" + base[len("http://"):]
	}
	return base
}
