package opengraph

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"strings"
)

// Preview image dimensions advertised to unfurlers (1.91:1).
const (
	ImageWidth  = 1200
	ImageHeight = 630
)

// ErrRender wraps template execution failures.
var ErrRender = errors.New("render preview document")

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

type organization struct {
	Type string `json:"@type"`
	Name string `json:"name"`
}

type structuredArticle struct {
	Context        string       `json:"@context"`
	Type           string       `json:"@type"`
	Headline       string       `json:"headline"`
	Description    string       `json:"description"`
	Image          string       `json:"image"`
	URL            string       `json:"url"`
	ArticleSection string       `json:"articleSection,omitempty"`
	InLanguage     string       `json:"inLanguage,omitempty"`
	Publisher      organization `json:"publisher"`
}

type articleView struct {
	Lang        string
	Meta        Metadata
	ImageWidth  int
	ImageHeight int
	LD          structuredArticle
}

type statusView struct {
	Lang     string
	SiteName string
	Title    string
	Message  string
}

// Render produces the crawler-facing HTML document for m. Every value is
// escaped for its context: attributes, element text, URLs and the JSON-LD
// script body.
func Render(m Metadata) ([]byte, error) {
	view := articleView{
		Lang:        language(m.Locale),
		Meta:        m,
		ImageWidth:  ImageWidth,
		ImageHeight: ImageHeight,
		LD: structuredArticle{
			Context:        "https://schema.org",
			Type:           "Article",
			Headline:       m.Title,
			Description:    m.Description,
			Image:          m.Image,
			URL:            m.URL,
			ArticleSection: m.Category,
			InLanguage:     strings.ReplaceAll(m.Locale, "_", "-"),
			Publisher:      organization{Type: "Organization", Name: m.SiteName},
		},
	}
	return execute("article.html", view)
}

// RenderStatus produces a minimal valid HTML page for crawler-facing errors.
func RenderStatus(site Site, title, message string) ([]byte, error) {
	return execute("status.html", statusView{
		Lang:     language(site.Locale),
		SiteName: site.Name,
		Title:    title,
		Message:  message,
	})
}

func execute(name string, data any) ([]byte, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrRender, name, err)
	}
	return buf.Bytes(), nil
}

// language maps a locale such as dv_MV to its html lang code.
func language(locale string) string {
	if locale == "" {
		return "en"
	}
	if i := strings.IndexAny(locale, "_-"); i > 0 {
		return strings.ToLower(locale[:i])
	}
	return strings.ToLower(locale)
}
