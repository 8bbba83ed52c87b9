package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taskforge/taskify/internal/models"
)

const uniqueViolation = "23505"

// PostgresStore handles user CRUD against PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate creates the users table if it doesn't exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			id              UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			name            VARCHAR(50)  NOT NULL,
			email           VARCHAR(255) UNIQUE NOT NULL,
			password        VARCHAR(255) NOT NULL,
			bio             TEXT         NOT NULL DEFAULT '',
			profile_picture TEXT         NOT NULL DEFAULT '',
			role            VARCHAR(10)  NOT NULL DEFAULT 'user',
			avatar_key      TEXT         NOT NULL DEFAULT '',
			last_login      TIMESTAMPTZ,
			created_at      TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
			updated_at      TIMESTAMPTZ  NOT NULL DEFAULT NOW()
		)
	`)
	return err
}

const userColumns = `id, name, email, password, bio, profile_picture, role, avatar_key, last_login, created_at, updated_at`

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Password, &u.Bio,
		&u.ProfilePicture, &u.Role, &u.AvatarKey, &u.LastLogin, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, name, email, hashedPassword string) (*models.User, error) {
	row := s.pool.QueryRow(ctx,
		`INSERT INTO users (name, email, password)
		 VALUES ($1, LOWER($2), $3)
		 RETURNING `+userColumns,
		name, email, hashedPassword,
	)
	u, err := scanUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return scanUser(s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = LOWER($1)`, email))
}

func (s *PostgresStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return scanUser(s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// UpdateProfile applies only non-nil fields and returns the updated user.
func (s *PostgresStore) UpdateProfile(ctx context.Context, id string, name, bio, profilePicture *string) (*models.User, error) {
	return scanUser(s.pool.QueryRow(ctx,
		`UPDATE users SET
			name            = COALESCE($2, name),
			bio             = COALESCE($3, bio),
			profile_picture = COALESCE($4, profile_picture),
			updated_at      = NOW()
		 WHERE id = $1
		 RETURNING `+userColumns,
		id, name, bio, profilePicture))
}

// SetAvatar records the avatar object key and points profile_picture at
// the avatar endpoint.
func (s *PostgresStore) SetAvatar(ctx context.Context, id, key, profilePicture string) (*models.User, error) {
	return scanUser(s.pool.QueryRow(ctx,
		`UPDATE users SET avatar_key = $2, profile_picture = $3, updated_at = NOW()
		 WHERE id = $1
		 RETURNING `+userColumns,
		id, key, profilePicture))
}

func (s *PostgresStore) UpdatePassword(ctx context.Context, id, hashedPassword string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET password = $2, updated_at = NOW() WHERE id = $1`,
		id, hashedPassword)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) UpdateLastLogin(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE users SET last_login = NOW() WHERE id = $1`, id)
	return err
}

func (s *PostgresStore) DeleteUser(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListUsers returns one page of users plus the total count.
func (s *PostgresStore) ListUsers(ctx context.Context, page, limit int) ([]models.User, int, error) {
	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+userColumns+` FROM users
		 ORDER BY created_at DESC
		 LIMIT $1 OFFSET $2`,
		limit, (page-1)*limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Password, &u.Bio,
			&u.ProfilePicture, &u.Role, &u.AvatarKey, &u.LastLogin, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, 0, err
		}
		users = append(users, u)
	}
	return users, total, rows.Err()
}
