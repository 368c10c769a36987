// Package content defines the magazine's core types shared across subsystems.
package content

import (
	"errors"
	"time"
)

var (
	// ErrNotFound signals that the requested article or category does not exist.
	ErrNotFound = errors.New("content not found")
	// ErrInvalidInput signals a write request that failed validation.
	ErrInvalidInput = errors.New("invalid content input")
)

// Article is a published magazine article. CategoryName is denormalized from
// the categories table and is empty when the join found nothing.
type Article struct {
	ID           int64      `json:"id"`
	Title        string     `json:"title"`
	Content      string     `json:"content"`
	Excerpt      string     `json:"excerpt,omitempty"`
	ImageURL     string     `json:"image_url,omitempty"`
	ImagePath    string     `json:"image_path,omitempty"`
	CategoryID   *int64     `json:"category_id"`
	CategoryName string     `json:"category_name,omitempty"`
	Author       string     `json:"author,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    *time.Time `json:"updated_at,omitempty"`
}

// NewArticle carries the fields accepted when creating an article.
type NewArticle struct {
	Title      string    `json:"title" validate:"required,max=500"`
	Content    string    `json:"content" validate:"required"`
	Excerpt    string    `json:"excerpt" validate:"max=1000"`
	CategoryID int64     `json:"category_id" validate:"required,gt=0"`
	Author     string    `json:"author" validate:"max=200"`
	ImageURL   string    `json:"-"`
	ImagePath  string    `json:"-"`
	CreatedAt  time.Time `json:"-"`
}

// ArticleUpdate carries a partial update; nil fields are left untouched.
type ArticleUpdate struct {
	Title      *string   `json:"title" validate:"omitnil,min=1,max=500"`
	Content    *string   `json:"content" validate:"omitnil,min=1"`
	Excerpt    *string   `json:"excerpt" validate:"omitempty,max=1000"`
	CategoryID *int64    `json:"category_id" validate:"omitempty,gt=0"`
	Author     *string   `json:"author" validate:"omitempty,max=200"`
	ImageURL   *string   `json:"-"`
	ImagePath  *string   `json:"-"`
	UpdatedAt  time.Time `json:"-"`
}

// Empty reports whether the update carries no changes.
func (u ArticleUpdate) Empty() bool {
	return u.Title == nil && u.Content == nil && u.Excerpt == nil && u.CategoryID == nil &&
		u.Author == nil && u.ImageURL == nil && u.ImagePath == nil
}

// Category groups articles. Every article belongs to at most one category.
type Category struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewCategory carries the fields accepted when creating a category.
type NewCategory struct {
	Name        string `json:"name" validate:"required,max=200"`
	Description string `json:"description" validate:"max=1000"`
}

// Page is one slice of the article list ordered newest first.
type Page struct {
	Articles   []Article `json:"articles"`
	Total      int       `json:"total"`
	Page       int       `json:"page"`
	Limit      int       `json:"limit"`
	TotalPages int       `json:"totalPages"`
	HasMore    bool      `json:"hasMore"`
}

// NewPage computes the pagination envelope for a 1-based page number.
func NewPage(articles []Article, total, page, limit int) Page {
	if articles == nil {
		articles = []Article{}
	}
	totalPages := 0
	if limit > 0 {
		totalPages = (total + limit - 1) / limit
	}
	return Page{
		Articles:   articles,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages,
		HasMore:    page < totalPages,
	}
}

// Event is published after a successful write.
type Event struct {
	Type       string    `json:"type"`
	ArticleID  int64     `json:"article_id"`
	Title      string    `json:"title,omitempty"`
	Actor      string    `json:"actor,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Article lifecycle event types.
const (
	EventArticleCreated = "article.created"
	EventArticleUpdated = "article.updated"
	EventArticleDeleted = "article.deleted"
)
