package postgres

import (
	"context"
	"fmt"

	"github.com/JakeFAU/magazine-cms/internal/content"
)

// ListCategories returns categories ordered by name.
func (s *Store) ListCategories(ctx context.Context) ([]content.Category, error) {
	ctx, span := startSpan(ctx, "ListCategories")
	defer span.End()

	rows, err := s.pool.Query(ctx, `
		SELECT id, name, COALESCE(description, ''), created_at
		FROM categories
		ORDER BY name`)
	if err != nil {
		return nil, recordErr(span, fmt.Errorf("list categories: %w", err))
	}
	defer rows.Close()

	categories := []content.Category{}
	for rows.Next() {
		var c content.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt); err != nil {
			return nil, recordErr(span, fmt.Errorf("scan category: %w", err))
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, recordErr(span, fmt.Errorf("iterate categories: %w", err))
	}
	return categories, nil
}

// CreateCategory inserts a category. Duplicate names map to content.ErrInvalidInput.
func (s *Store) CreateCategory(ctx context.Context, in content.NewCategory) (content.Category, error) {
	ctx, span := startSpan(ctx, "CreateCategory")
	defer span.End()

	var c content.Category
	err := s.pool.QueryRow(ctx, `
		INSERT INTO categories (name, description)
		VALUES ($1, NULLIF($2, ''))
		RETURNING id, name, COALESCE(description, ''), created_at`,
		in.Name, in.Description,
	).Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt)
	if err != nil {
		return content.Category{}, recordErr(span, fmt.Errorf("insert category: %w", translate(err)))
	}
	return c, nil
}
