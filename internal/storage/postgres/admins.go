package postgres

import (
	"context"
	"fmt"
)

// IsAdmin reports whether userID has a row in admin_users.
func (s *Store) IsAdmin(ctx context.Context, userID string) (bool, error) {
	ctx, span := startSpan(ctx, "IsAdmin")
	defer span.End()

	var ok bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM admin_users WHERE user_id = $1)`, userID,
	).Scan(&ok)
	if err != nil {
		return false, recordErr(span, fmt.Errorf("check admin: %w", err))
	}
	return ok, nil
}
