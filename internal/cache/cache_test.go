package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func newTestCache(t *testing.T, maxEntries int) (*Cache, *fakeClock) {
	t.Helper()
	clk := &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	c, err := New(300*time.Second, maxEntries, clk)
	require.NoError(t, err)
	return c, clk
}

func TestNewRejectsZeroSize(t *testing.T) {
	_, err := New(time.Minute, 0, &fakeClock{})
	assert.ErrorIs(t, err, ErrInvalidSize)
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "article:42", ArticleKey(42))
	assert.Equal(t, "articles:page:2:limit:10", PageKey(2, 10))
	assert.NotEqual(t, PageKey(1, 20), PageKey(2, 10))
}

func TestGetSet(t *testing.T) {
	c, _ := newTestCache(t, 16)

	_, ok := c.Get(ArticleKey(1))
	assert.False(t, ok)

	c.Set(ArticleKey(1), "payload")
	got, ok := c.Get(ArticleKey(1))
	require.True(t, ok)
	assert.Equal(t, "payload", got)

	c.Set(ArticleKey(1), "replaced")
	got, _ = c.Get(ArticleKey(1))
	assert.Equal(t, "replaced", got)
}

func TestExpiryIsLazyAndBehavesLikeMiss(t *testing.T) {
	c, clk := newTestCache(t, 16)
	c.Set(AllArticlesKey, []string{"a"})

	clk.Advance(299 * time.Second)
	_, ok := c.Get(AllArticlesKey)
	assert.True(t, ok, "entry should still be live just before the ttl")

	clk.Advance(time.Second)
	assert.Equal(t, 1, c.Len(), "expired entries are not swept eagerly")
	_, ok = c.Get(AllArticlesKey)
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len(), "reading an expired entry removes it")
}

func TestInvalidateAggregatesLeavesSingletons(t *testing.T) {
	c, _ := newTestCache(t, 16)
	c.Set(ArticleKey(7), "seven")
	c.Set(AllArticlesKey, "all")
	c.Set(PageKey(1, 10), "p1")
	c.Set(PageKey(2, 10), "p2")
	c.Set(CategoriesKey, "cats")

	removed := c.InvalidateAggregates()
	assert.Equal(t, 3, removed)

	_, ok := c.Get(AllArticlesKey)
	assert.False(t, ok)
	_, ok = c.Get(PageKey(1, 10))
	assert.False(t, ok)
	_, ok = c.Get(PageKey(2, 10))
	assert.False(t, ok)

	got, ok := c.Get(ArticleKey(7))
	assert.True(t, ok)
	assert.Equal(t, "seven", got)
	_, ok = c.Get(CategoriesKey)
	assert.True(t, ok)
}

func TestInvalidateArticleAndCategories(t *testing.T) {
	c, _ := newTestCache(t, 16)
	c.Set(ArticleKey(1), "one")
	c.Set(ArticleKey(2), "two")
	c.Set(CategoriesKey, "cats")

	assert.Equal(t, 1, c.InvalidateArticle(1))
	assert.Equal(t, 0, c.InvalidateArticle(1))
	assert.Equal(t, 1, c.InvalidateCategories())

	_, ok := c.Get(ArticleKey(2))
	assert.True(t, ok)
}

func TestSetIfCurrentDropsReadsThatRacedAWrite(t *testing.T) {
	c, _ := newTestCache(t, 16)

	gen := c.Generation()
	assert.True(t, c.SetIfCurrent(gen, AllArticlesKey, "fresh"))

	stale := c.Generation()
	c.InvalidateAggregates()
	assert.False(t, c.SetIfCurrent(stale, AllArticlesKey, "pre-insert list"))
	_, ok := c.Get(AllArticlesKey)
	assert.False(t, ok)

	stale = c.Generation()
	c.InvalidateArticle(7)
	assert.False(t, c.SetIfCurrent(stale, ArticleKey(7), "old article"))

	assert.True(t, c.SetIfCurrent(c.Generation(), AllArticlesKey, "post-insert list"))
	v, ok := c.Get(AllArticlesKey)
	require.True(t, ok)
	assert.Equal(t, "post-insert list", v)
}

func TestEvictsLeastRecentlyUsed(t *testing.T) {
	c, _ := newTestCache(t, 2)
	c.Set(ArticleKey(1), 1)
	c.Set(ArticleKey(2), 2)
	_, _ = c.Get(ArticleKey(1))
	c.Set(ArticleKey(3), 3)

	_, ok := c.Get(ArticleKey(2))
	assert.False(t, ok)
	_, ok = c.Get(ArticleKey(1))
	assert.True(t, ok)
	_, ok = c.Get(ArticleKey(3))
	assert.True(t, ok)
}

func TestConcurrentAccess(t *testing.T) {
	c, _ := newTestCache(t, 64)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := PageKey(j%5+1, 10)
				c.Set(key, fmt.Sprintf("%d-%d", worker, j))
				_, _ = c.Get(key)
				if j%10 == 0 {
					c.InvalidateAggregates()
				}
			}
		}(i)
	}
	wg.Wait()
	assert.LessOrEqual(t, c.Len(), 64)
}
