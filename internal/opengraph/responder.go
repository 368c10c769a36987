package opengraph

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/goccy/go-json"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/JakeFAU/magazine-cms/internal/cache"
	"github.com/JakeFAU/magazine-cms/internal/content"
	"github.com/JakeFAU/magazine-cms/internal/metrics"
)

// Header values served with every crawler document.
const (
	ContentTypeHTML    = "text/html; charset=utf-8"
	ContentTypeJSON    = "application/json"
	CrawlerCachePolicy = "public, max-age=300"
	CrawlerRobots      = "all"
)

var tracer = otel.Tracer("github.com/JakeFAU/magazine-cms/internal/opengraph")

// Classifier decides whether a user agent belongs to a social crawler and
// names the signature that matched.
type Classifier interface {
	Match(userAgent string) (string, bool)
}

// ArticleGetter loads a single article by id.
type ArticleGetter interface {
	GetArticle(ctx context.Context, id int64) (content.Article, error)
}

// Cache is the subset of the response cache used for single-article payloads.
type Cache interface {
	Get(key string) (any, bool)
	Generation() uint64
	SetIfCurrent(gen uint64, key string, value any) bool
}

// ArticleView is the JSON payload returned to ordinary clients.
type ArticleView struct {
	content.Article
	OG Metadata `json:"og"`
}

// Response is a fully formed reply for one article request.
type Response struct {
	Status    int
	Header    http.Header
	Body      []byte
	Crawler   bool
	Signature string
	CacheHit  bool
}

// Send writes the response to w.
func (r Response) Send(w http.ResponseWriter) error {
	for key, values := range r.Header {
		for _, v := range values {
			w.Header().Add(key, v)
		}
	}
	w.WriteHeader(r.Status)
	_, err := w.Write(r.Body)
	return err
}

// Responder serves an article either as JSON or, for social crawlers, as a
// server-rendered preview document.
type Responder struct {
	classifier Classifier
	articles   ArticleGetter
	cache      Cache
	site       Site
	logger     *zap.Logger
}

// NewResponder wires a Responder. A nil logger is replaced by a no-op logger.
func NewResponder(classifier Classifier, articles ArticleGetter, c Cache, site Site, logger *zap.Logger) *Responder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Responder{
		classifier: classifier,
		articles:   articles,
		cache:      c,
		site:       site,
		logger:     logger,
	}
}

// Respond produces the reply for GET /api/articles/{id}. Crawlers bypass the
// cache in both directions. On error the returned Response still reports the
// caller class so the error can be formatted for it.
func (r *Responder) Respond(ctx context.Context, rawID, userAgent string) (Response, error) {
	signature, crawler := r.classifier.Match(userAgent)
	ctx, span := tracer.Start(ctx, "opengraph.Respond")
	defer span.End()
	span.SetAttributes(
		attribute.String("article.id", rawID),
		attribute.Bool("client.crawler", crawler),
	)

	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil || id <= 0 {
		return r.notFound(crawler, signature)
	}
	key := cache.ArticleKey(id)
	var gen uint64

	if !crawler && r.cache != nil {
		gen = r.cache.Generation()
		if cached, ok := r.cache.Get(key); ok {
			if view, ok := cached.(ArticleView); ok {
				resp, err := jsonResponse(http.StatusOK, view)
				resp.CacheHit = true
				return resp, err
			}
		}
	}

	article, err := r.articles.GetArticle(ctx, id)
	if errors.Is(err, content.ErrNotFound) {
		return r.notFound(crawler, signature)
	}
	if err != nil {
		span.RecordError(err)
		return Response{Crawler: crawler, Signature: signature}, fmt.Errorf("load article %d: %w", id, err)
	}

	meta := BuildMetadata(article, r.site)
	if crawler {
		body, err := Render(meta)
		if err != nil {
			span.RecordError(err)
			return Response{Crawler: true, Signature: signature}, err
		}
		metrics.ObserveCrawlerRender(signature)
		r.logger.Debug("serving crawler preview",
			zap.Int64("article_id", id),
			zap.String("signature", signature),
		)
		return Response{
			Status:    http.StatusOK,
			Header:    crawlerHeader(),
			Body:      body,
			Crawler:   true,
			Signature: signature,
		}, nil
	}

	view := ArticleView{Article: article, OG: meta}
	resp, err := jsonResponse(http.StatusOK, view)
	if err != nil {
		return resp, err
	}
	if r.cache != nil {
		r.cache.SetIfCurrent(gen, key, view)
	}
	return resp, nil
}

// ErrorPage renders a minimal HTML page for crawler-facing failures.
func (r *Responder) ErrorPage(status int, message string) Response {
	body, err := RenderStatus(r.site, http.StatusText(status), message)
	if err != nil {
		return Response{
			Status: http.StatusInternalServerError,
			Header: http.Header{"Content-Type": []string{"text/plain; charset=utf-8"}},
			Body:   []byte(http.StatusText(http.StatusInternalServerError)),
		}
	}
	return Response{
		Status:  status,
		Header:  http.Header{"Content-Type": []string{ContentTypeHTML}},
		Body:    body,
		Crawler: true,
	}
}

func (r *Responder) notFound(crawler bool, signature string) (Response, error) {
	if !crawler {
		return jsonResponse(http.StatusNotFound, map[string]string{"message": "Article not found"})
	}
	body, err := RenderStatus(r.site, "Article not found", "The article you are looking for does not exist.")
	if err != nil {
		return Response{Crawler: true, Signature: signature}, err
	}
	return Response{
		Status:    http.StatusNotFound,
		Header:    http.Header{"Content-Type": []string{ContentTypeHTML}},
		Body:      body,
		Crawler:   true,
		Signature: signature,
	}, nil
}

func crawlerHeader() http.Header {
	h := http.Header{}
	h.Set("Content-Type", ContentTypeHTML)
	h.Set("Cache-Control", CrawlerCachePolicy)
	h.Set("X-Robots-Tag", CrawlerRobots)
	return h
}

func jsonResponse(status int, payload any) (Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Response{}, fmt.Errorf("encode response: %w", err)
	}
	return Response{
		Status: status,
		Header: http.Header{"Content-Type": []string{ContentTypeJSON}},
		Body:   body,
	}, nil
}
