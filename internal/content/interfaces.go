package content

import (
	"context"
	"io"
	"time"
)

// ArticleStore is the data collaborator for articles.
type ArticleStore interface {
	GetArticle(ctx context.Context, id int64) (Article, error)
	ListArticles(ctx context.Context) ([]Article, error)
	ListArticlesPage(ctx context.Context, offset, limit int) ([]Article, int, error)
	CreateArticle(ctx context.Context, in NewArticle) (Article, error)
	UpdateArticle(ctx context.Context, id int64, in ArticleUpdate) (Article, error)
	DeleteArticle(ctx context.Context, id int64) (Article, error)
}

// CategoryStore is the data collaborator for categories.
type CategoryStore interface {
	ListCategories(ctx context.Context) ([]Category, error)
	CreateCategory(ctx context.Context, in NewCategory) (Category, error)
}

// AdminStore answers whether an identity-provider user is an administrator.
type AdminStore interface {
	IsAdmin(ctx context.Context, userID string) (bool, error)
}

// BlobStore writes uploaded images and returns the reference stored on the
// article: an absolute URL, or a site-relative path for backends served by
// this process.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
	DeleteObject(ctx context.Context, path string) error
}

// ObjectReader is implemented by blob stores whose objects are served by this
// process under /uploads.
type ObjectReader interface {
	OpenObject(ctx context.Context, path string) (io.ReadCloser, string, error)
}

// Publisher pushes article lifecycle events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
