package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/graaaaa/roomcheck/internal/domain"
)

// CreateAdmin inserts an admin account. Sets a.ID and a.CreatedAt.
func (s *Store) CreateAdmin(ctx context.Context, a *domain.Admin) error {
	const query = `INSERT INTO admins (username, password_hash, created_at) VALUES (?, ?, ?)`

	now := s.now().UTC()
	result, err := s.db.ExecContext(ctx, query, a.Username, a.PasswordHash, formatTime(now))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("admin %q: %w", a.Username, domain.ErrConflict)
		}
		return fmt.Errorf("insert admin: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	a.ID = id
	a.CreatedAt = now
	return nil
}

// AdminByUsername returns the admin with the given username.
func (s *Store) AdminByUsername(ctx context.Context, username string) (domain.Admin, error) {
	const query = `SELECT id, username, password_hash, created_at FROM admins WHERE username = ?`

	var (
		a         domain.Admin
		createdAt string
	)
	err := s.db.QueryRowContext(ctx, query, username).Scan(&a.ID, &a.Username, &a.PasswordHash, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Admin{}, domain.ErrAdminNotFound
	}
	if err != nil {
		return domain.Admin{}, fmt.Errorf("get admin: %w", err)
	}
	if a.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return domain.Admin{}, err
	}
	return a, nil
}

// CountAdmins returns the number of admin accounts.
func (s *Store) CountAdmins(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM admins`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count admins: %w", err)
	}
	return n, nil
}
