package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"proxichat/broker/internal/geo"
	"proxichat/broker/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

// PostgresStore keeps accounts in the users table of a Postgres database
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Create(ctx context.Context, user *models.User) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, name, latitude, longitude, is_online, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, user.ID, user.Name, user.Latitude, user.Longitude, user.IsOnline, user.CreatedAt, user.UpdatedAt)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", ErrNameTaken, user.Name)
	}
	if err != nil {
		return fmt.Errorf("insert user %s: %w", user.Name, err)
	}
	return nil
}

func (s *PostgresStore) FindByName(ctx context.Context, name string) (*models.User, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, name, latitude, longitude, is_online, created_at, updated_at
		FROM users WHERE name = $1
	`, name)
	return scanPostgresUser(row, name)
}

func (s *PostgresStore) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, name, latitude, longitude, is_online, created_at, updated_at
		FROM users WHERE id = $1
	`, id)
	return scanPostgresUser(row, id.String())
}

func (s *PostgresStore) UpdatePresence(ctx context.Context, id uuid.UUID, location geo.Coordinate, online bool) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE users SET latitude = $1, longitude = $2, is_online = $3, updated_at = $4
		WHERE id = $5
	`, location.Latitude, location.Longitude, online, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update user %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func scanPostgresUser(row pgx.Row, key string) (*models.User, error) {
	var user models.User
	err := row.Scan(&user.ID, &user.Name, &user.Latitude, &user.Longitude, &user.IsOnline, &user.CreatedAt, &user.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("select user %s: %w", key, err)
	}
	return &user, nil
}
