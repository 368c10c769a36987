package opengraph

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/magazine-cms/internal/cache"
	"github.com/JakeFAU/magazine-cms/internal/content"
	"github.com/JakeFAU/magazine-cms/internal/detector"
)

const (
	browserUA  = "Mozilla/5.0 (Macintosh; Intel Mac OS X 14_4) AppleWebKit/605.1.15 Safari/605.1.15"
	facebookUA = "facebookexternalhit/1.1 (+http://www.facebook.com/externalhit_uatext.php)"
)

type stubArticles struct {
	mu       sync.Mutex
	articles map[int64]content.Article
	err      error
	calls    int
	onGet    func()
}

func (s *stubArticles) GetArticle(_ context.Context, id int64) (content.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.onGet != nil {
		s.onGet()
	}
	if s.err != nil {
		return content.Article{}, s.err
	}
	a, ok := s.articles[id]
	if !ok {
		return content.Article{}, content.ErrNotFound
	}
	return a, nil
}

type mapCache struct {
	entries    map[string]any
	generation uint64
}

func (m *mapCache) Get(key string) (any, bool) {
	v, ok := m.entries[key]
	return v, ok
}

func (m *mapCache) Generation() uint64 {
	return m.generation
}

func (m *mapCache) SetIfCurrent(gen uint64, key string, value any) bool {
	if gen != m.generation {
		return false
	}
	m.entries[key] = value
	return true
}

func newTestResponder(t *testing.T) (*Responder, *stubArticles, *mapCache) {
	t.Helper()
	det := detector.New(detector.SignatureSet{
		Version:    "test",
		Signatures: []string{"facebookexternalhit", "WhatsApp", "Twitterbot", "LinkedInBot", "Pinterest", "Slackbot", "TelegramBot"},
	})
	articles := &stubArticles{articles: map[int64]content.Article{
		42: {ID: 42, Title: `The "reef" report`, Content: "Coral is recovering across the atoll.", CategoryName: "Environment"},
	}}
	c := &mapCache{entries: map[string]any{}}
	return NewResponder(det, articles, c, testSite, nil), articles, c
}

func TestRespondJSONForBrowsers(t *testing.T) {
	t.Parallel()
	r, articles, c := newTestResponder(t)

	resp, err := r.Respond(context.Background(), "42", browserUA)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.Status)
	assert.False(t, resp.Crawler)
	assert.Equal(t, ContentTypeJSON, resp.Header.Get("Content-Type"))

	var payload map[string]any
	require.NoError(t, json.Unmarshal(resp.Body, &payload))
	assert.EqualValues(t, 42, payload["id"])
	og, ok := payload["og"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "article", og["type"])
	assert.Equal(t, "dv_MV", og["locale"])
	assert.Equal(t, "Havaasa", og["site_name"])
	assert.Equal(t, "https://example.com/article/42", og["url"])
	assert.Equal(t, "Environment", og["category"])

	assert.Equal(t, 1, articles.calls)
	_, cached := c.entries[cache.ArticleKey(42)]
	assert.True(t, cached)
}

func TestRespondSkipsCacheWhenWriteRacesRead(t *testing.T) {
	t.Parallel()
	r, articles, c := newTestResponder(t)
	articles.onGet = func() { c.generation++ }

	resp, err := r.Respond(context.Background(), "42", browserUA)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status)

	_, cached := c.entries[cache.ArticleKey(42)]
	assert.False(t, cached)
}

func TestRespondServesSecondRequestFromCache(t *testing.T) {
	t.Parallel()
	r, articles, _ := newTestResponder(t)

	first, err := r.Respond(context.Background(), "42", browserUA)
	require.NoError(t, err)
	second, err := r.Respond(context.Background(), "42", browserUA)
	require.NoError(t, err)

	assert.Equal(t, 1, articles.calls)
	assert.False(t, first.CacheHit)
	assert.True(t, second.CacheHit)
	assert.JSONEq(t, string(first.Body), string(second.Body))
}

func TestRespondCrawlerBypassesCache(t *testing.T) {
	t.Parallel()
	r, articles, c := newTestResponder(t)

	resp, err := r.Respond(context.Background(), "42", "Mozilla/5.0 (compatible; FacebookExternalHit/1.1)")
	require.NoError(t, err)

	assert.True(t, resp.Crawler)
	assert.Equal(t, "facebookexternalhit", resp.Signature)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, "text/html; charset=utf-8", resp.Header.Get("Content-Type"))
	assert.Equal(t, "public, max-age=300", resp.Header.Get("Cache-Control"))
	assert.Equal(t, "all", resp.Header.Get("X-Robots-Tag"))
	assert.Contains(t, string(resp.Body), `property="og:title" content="The &#34;reef&#34; report"`)
	assert.Empty(t, c.entries, "crawler responses must not populate the cache")

	c.entries[cache.ArticleKey(42)] = ArticleView{Article: content.Article{ID: 42, Title: "stale"}}
	_, err = r.Respond(context.Background(), "42", facebookUA)
	require.NoError(t, err)
	assert.Equal(t, 2, articles.calls, "crawlers always read through to the store")
}

func TestRespondNotFound(t *testing.T) {
	t.Parallel()
	r, _, _ := newTestResponder(t)

	resp, err := r.Respond(context.Background(), "7", browserUA)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.Status)
	assert.JSONEq(t, `{"message":"Article not found"}`, string(resp.Body))

	resp, err = r.Respond(context.Background(), "7", facebookUA)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.Status)
	assert.Equal(t, ContentTypeHTML, resp.Header.Get("Content-Type"))
	assert.True(t, strings.HasPrefix(string(resp.Body), "<!DOCTYPE html>"))
}

func TestRespondInvalidIDIsNotFound(t *testing.T) {
	t.Parallel()
	r, articles, _ := newTestResponder(t)

	for _, raw := range []string{"abc", "0", "-3", ""} {
		resp, err := r.Respond(context.Background(), raw, browserUA)
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, resp.Status, raw)
	}
	assert.Equal(t, 0, articles.calls)
}

func TestRespondDataAccessError(t *testing.T) {
	t.Parallel()
	r, articles, c := newTestResponder(t)
	boom := errors.New("connection refused")
	articles.err = boom

	resp, err := r.Respond(context.Background(), "42", facebookUA)
	require.ErrorIs(t, err, boom)
	assert.True(t, resp.Crawler)
	assert.Empty(t, c.entries)
}

func TestResponseSend(t *testing.T) {
	t.Parallel()
	r, _, _ := newTestResponder(t)
	resp, err := r.Respond(context.Background(), "42", facebookUA)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	require.NoError(t, resp.Send(rec))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "all", rec.Header().Get("X-Robots-Tag"))
	assert.Equal(t, resp.Body, rec.Body.Bytes())
}

func TestErrorPage(t *testing.T) {
	t.Parallel()
	r, _, _ := newTestResponder(t)

	resp := r.ErrorPage(http.StatusInternalServerError, "Something went wrong")
	assert.Equal(t, http.StatusInternalServerError, resp.Status)
	assert.Equal(t, ContentTypeHTML, resp.Header.Get("Content-Type"))
	assert.Contains(t, string(resp.Body), "Something went wrong")
}
