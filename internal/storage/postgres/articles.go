package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/JakeFAU/magazine-cms/internal/content"
)

// articleColumns selects from a source aliased "a" joined to categories "c".
const articleColumns = `
	a.id,
	a.title,
	a.content,
	COALESCE(a.excerpt, ''),
	COALESCE(a.image_url, ''),
	COALESCE(a.image_path, ''),
	a.category_id,
	COALESCE(c.name, ''),
	COALESCE(a.author, ''),
	a.created_at,
	a.updated_at`

const categoryJoin = `LEFT JOIN categories c ON c.id = a.category_id`

func scanArticle(row pgx.Row) (content.Article, error) {
	var a content.Article
	err := row.Scan(
		&a.ID,
		&a.Title,
		&a.Content,
		&a.Excerpt,
		&a.ImageURL,
		&a.ImagePath,
		&a.CategoryID,
		&a.CategoryName,
		&a.Author,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	return a, err
}

func collectArticles(rows pgx.Rows) ([]content.Article, error) {
	defer rows.Close()
	articles := []content.Article{}
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("scan article: %w", err)
		}
		articles = append(articles, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate articles: %w", err)
	}
	return articles, nil
}

// GetArticle fetches an article by ID with its category name.
func (s *Store) GetArticle(ctx context.Context, id int64) (content.Article, error) {
	ctx, span := startSpan(ctx, "GetArticle")
	defer span.End()

	query := `SELECT` + articleColumns + `
		FROM articles a ` + categoryJoin + `
		WHERE a.id = $1`
	a, err := scanArticle(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if err = translate(err); err == content.ErrNotFound {
			return content.Article{}, err
		}
		return content.Article{}, recordErr(span, fmt.Errorf("get article: %w", err))
	}
	return a, nil
}

// ListArticles returns every article, newest first.
func (s *Store) ListArticles(ctx context.Context) ([]content.Article, error) {
	ctx, span := startSpan(ctx, "ListArticles")
	defer span.End()

	query := `SELECT` + articleColumns + `
		FROM articles a ` + categoryJoin + `
		ORDER BY a.created_at DESC, a.id DESC`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, recordErr(span, fmt.Errorf("list articles: %w", err))
	}
	articles, err := collectArticles(rows)
	return articles, recordErr(span, err)
}

// ListArticlesPage returns limit articles starting at offset plus the total count.
func (s *Store) ListArticlesPage(ctx context.Context, offset, limit int) ([]content.Article, int, error) {
	if offset < 0 {
		return nil, 0, fmt.Errorf("%w: negative offset %d", content.ErrInvalidInput, offset)
	}
	ctx, span := startSpan(ctx, "ListArticlesPage")
	defer span.End()

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM articles`).Scan(&total); err != nil {
		return nil, 0, recordErr(span, fmt.Errorf("count articles: %w", err))
	}

	query := `SELECT` + articleColumns + `
		FROM articles a ` + categoryJoin + `
		ORDER BY a.created_at DESC, a.id DESC
		LIMIT $1 OFFSET $2`
	rows, err := s.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, recordErr(span, fmt.Errorf("list article page: %w", err))
	}
	articles, err := collectArticles(rows)
	if err != nil {
		return nil, 0, recordErr(span, err)
	}
	return articles, total, nil
}

// CreateArticle inserts an article and returns it with its category name.
func (s *Store) CreateArticle(ctx context.Context, in content.NewArticle) (content.Article, error) {
	ctx, span := startSpan(ctx, "CreateArticle")
	defer span.End()

	createdAt := in.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	query := `
WITH a AS (
	INSERT INTO articles (title, content, excerpt, image_url, image_path, category_id, author, created_at)
	VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''), $6, NULLIF($7, ''), $8)
	RETURNING *
)
SELECT` + articleColumns + `
FROM a ` + categoryJoin

	a, err := scanArticle(s.pool.QueryRow(ctx, query,
		in.Title,
		in.Content,
		in.Excerpt,
		in.ImageURL,
		in.ImagePath,
		in.CategoryID,
		in.Author,
		createdAt,
	))
	if err != nil {
		return content.Article{}, recordErr(span, fmt.Errorf("insert article: %w", translate(err)))
	}
	return a, nil
}

// UpdateArticle applies the non-nil fields of in and stamps updated_at.
func (s *Store) UpdateArticle(ctx context.Context, id int64, in content.ArticleUpdate) (content.Article, error) {
	ctx, span := startSpan(ctx, "UpdateArticle")
	defer span.End()

	updatedAt := in.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}
	query := `
WITH a AS (
	UPDATE articles SET
		title       = COALESCE($2, title),
		content     = COALESCE($3, content),
		excerpt     = COALESCE($4, excerpt),
		category_id = COALESCE($5, category_id),
		author      = COALESCE($6, author),
		image_url   = COALESCE($7, image_url),
		image_path  = COALESCE($8, image_path),
		updated_at  = $9
	WHERE id = $1
	RETURNING *
)
SELECT` + articleColumns + `
FROM a ` + categoryJoin

	a, err := scanArticle(s.pool.QueryRow(ctx, query,
		id,
		in.Title,
		in.Content,
		in.Excerpt,
		in.CategoryID,
		in.Author,
		in.ImageURL,
		in.ImagePath,
		updatedAt,
	))
	if err != nil {
		if err = translate(err); err == content.ErrNotFound {
			return content.Article{}, err
		}
		return content.Article{}, recordErr(span, fmt.Errorf("update article: %w", err))
	}
	return a, nil
}

// DeleteArticle removes an article and returns the deleted row so callers can
// clean up its image.
func (s *Store) DeleteArticle(ctx context.Context, id int64) (content.Article, error) {
	ctx, span := startSpan(ctx, "DeleteArticle")
	defer span.End()

	query := `
WITH a AS (
	DELETE FROM articles WHERE id = $1 RETURNING *
)
SELECT` + articleColumns + `
FROM a ` + categoryJoin

	a, err := scanArticle(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if err = translate(err); err == content.ErrNotFound {
			return content.Article{}, err
		}
		return content.Article{}, recordErr(span, fmt.Errorf("delete article: %w", err))
	}
	return a, nil
}
