package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"proxichat/broker/internal/geo"
	"proxichat/broker/internal/models"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
)

// SQLiteStore keeps accounts in a SQLite database, in memory by default
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Create(ctx context.Context, user *models.User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, name, latitude, longitude, is_online, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, user.ID.String(), user.Name, user.Latitude, user.Longitude, user.IsOnline, user.CreatedAt, user.UpdatedAt)

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
		return fmt.Errorf("%w: %s", ErrNameTaken, user.Name)
	}
	if err != nil {
		return fmt.Errorf("insert user %s: %w", user.Name, err)
	}
	return nil
}

func (s *SQLiteStore) FindByName(ctx context.Context, name string) (*models.User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, latitude, longitude, is_online, created_at, updated_at
		FROM users WHERE name = ?
	`, name)
	return scanSQLiteUser(row, name)
}

func (s *SQLiteStore) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, latitude, longitude, is_online, created_at, updated_at
		FROM users WHERE id = ?
	`, id.String())
	return scanSQLiteUser(row, id.String())
}

func (s *SQLiteStore) UpdatePresence(ctx context.Context, id uuid.UUID, location geo.Coordinate, online bool) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET latitude = ?, longitude = ?, is_online = ?, updated_at = ?
		WHERE id = ?
	`, location.Latitude, location.Longitude, online, time.Now().UTC(), id.String())
	if err != nil {
		return fmt.Errorf("update user %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update user %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func scanSQLiteUser(row *sql.Row, key string) (*models.User, error) {
	var user models.User
	err := row.Scan(&user.ID, &user.Name, &user.Latitude, &user.Longitude, &user.IsOnline, &user.CreatedAt, &user.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("select user %s: %w", key, err)
	}
	return &user, nil
}
