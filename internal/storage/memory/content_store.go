package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/JakeFAU/magazine-cms/internal/content"
)

// ContentStore provides an in-memory article, category and admin store for
// development and testing.
type ContentStore struct {
	mu             sync.RWMutex
	articles       map[int64]content.Article
	categories     map[int64]content.Category
	admins         map[string]struct{}
	nextArticleID  int64
	nextCategoryID int64
	now            func() time.Time
}

// NewContentStore constructs an empty ContentStore.
func NewContentStore() *ContentStore {
	return &ContentStore{
		articles:   make(map[int64]content.Article),
		categories: make(map[int64]content.Category),
		admins:     make(map[string]struct{}),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// GetArticle fetches an article by ID with its category name joined in.
func (s *ContentStore) GetArticle(_ context.Context, id int64) (content.Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.articles[id]
	if !ok {
		return content.Article{}, content.ErrNotFound
	}
	return s.withCategory(a), nil
}

// ListArticles returns every article, newest first.
func (s *ContentStore) ListArticles(_ context.Context) ([]content.Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sorted(), nil
}

// ListArticlesPage returns limit articles starting at offset plus the total count.
func (s *ContentStore) ListArticlesPage(_ context.Context, offset, limit int) ([]content.Article, int, error) {
	if offset < 0 {
		return nil, 0, fmt.Errorf("%w: negative offset %d", content.ErrInvalidInput, offset)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.sorted()
	total := len(all)
	if offset >= total || limit <= 0 {
		return []content.Article{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return append([]content.Article(nil), all[offset:end]...), total, nil
}

// CreateArticle stores a new article and assigns its ID.
func (s *ContentStore) CreateArticle(_ context.Context, in content.NewArticle) (content.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.categories[in.CategoryID]; !ok {
		return content.Article{}, fmt.Errorf("%w: category %d does not exist", content.ErrInvalidInput, in.CategoryID)
	}
	s.nextArticleID++
	created := in.CreatedAt
	if created.IsZero() {
		created = s.now()
	}
	categoryID := in.CategoryID
	a := content.Article{
		ID:         s.nextArticleID,
		Title:      in.Title,
		Content:    in.Content,
		Excerpt:    in.Excerpt,
		ImageURL:   in.ImageURL,
		ImagePath:  in.ImagePath,
		CategoryID: &categoryID,
		Author:     in.Author,
		CreatedAt:  created,
	}
	s.articles[a.ID] = a
	return s.withCategory(a), nil
}

// UpdateArticle applies the non-nil fields of in.
func (s *ContentStore) UpdateArticle(_ context.Context, id int64, in content.ArticleUpdate) (content.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.articles[id]
	if !ok {
		return content.Article{}, content.ErrNotFound
	}
	if in.CategoryID != nil {
		if _, ok := s.categories[*in.CategoryID]; !ok {
			return content.Article{}, fmt.Errorf("%w: category %d does not exist", content.ErrInvalidInput, *in.CategoryID)
		}
		categoryID := *in.CategoryID
		a.CategoryID = &categoryID
	}
	assign(&a.Title, in.Title)
	assign(&a.Content, in.Content)
	assign(&a.Excerpt, in.Excerpt)
	assign(&a.Author, in.Author)
	assign(&a.ImageURL, in.ImageURL)
	assign(&a.ImagePath, in.ImagePath)
	updated := in.UpdatedAt
	if updated.IsZero() {
		updated = s.now()
	}
	a.UpdatedAt = &updated
	s.articles[id] = a
	return s.withCategory(a), nil
}

// DeleteArticle removes an article and returns the deleted row.
func (s *ContentStore) DeleteArticle(_ context.Context, id int64) (content.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.articles[id]
	if !ok {
		return content.Article{}, content.ErrNotFound
	}
	delete(s.articles, id)
	return s.withCategory(a), nil
}

// ListCategories returns categories ordered by name.
func (s *ContentStore) ListCategories(_ context.Context) ([]content.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]content.Category, 0, len(s.categories))
	for _, c := range s.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// CreateCategory stores a category. Names are unique, case-insensitively.
func (s *ContentStore) CreateCategory(_ context.Context, in content.NewCategory) (content.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.categories {
		if strings.EqualFold(existing.Name, in.Name) {
			return content.Category{}, fmt.Errorf("%w: category %q already exists", content.ErrInvalidInput, in.Name)
		}
	}
	s.nextCategoryID++
	c := content.Category{
		ID:          s.nextCategoryID,
		Name:        in.Name,
		Description: in.Description,
		CreatedAt:   s.now(),
	}
	s.categories[c.ID] = c
	return c, nil
}

// IsAdmin reports whether userID was granted admin rights.
func (s *ContentStore) IsAdmin(_ context.Context, userID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.admins[userID]
	return ok, nil
}

// GrantAdmin marks userID as an administrator.
func (s *ContentStore) GrantAdmin(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.admins[userID] = struct{}{}
}

func (s *ContentStore) sorted() []content.Article {
	out := make([]content.Article, 0, len(s.articles))
	for _, a := range s.articles {
		out = append(out, s.withCategory(a))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (s *ContentStore) withCategory(a content.Article) content.Article {
	a.CategoryName = ""
	if a.CategoryID != nil {
		if c, ok := s.categories[*a.CategoryID]; ok {
			a.CategoryName = c.Name
		}
	}
	return a
}

func assign(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}
