package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/david/opportunity-radar/internal/models"
)

const userCols = `id, email, password_hash, keywords, preferred_states, created_at`

func scanUser(row pgx.Row) (models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Keywords, &u.PreferredStates, &u.CreatedAt)
	return u, err
}

// CreateUser inserts a user. A taken email yields models.ErrDuplicate.
func (s *Store) CreateUser(ctx context.Context, email, passwordHash string) (models.User, error) {
	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
		INSERT INTO users (id, email, password_hash)
		VALUES ($1, $2, $3)
		RETURNING %s
	`, userCols), uuid.New(), email, passwordHash)
	u, err := scanUser(row)
	if err != nil {
		return models.User{}, classify("create user", err)
	}
	return u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx, fmt.Sprintf(`SELECT %s FROM users WHERE email = $1`, userCols), email))
	if err != nil {
		return models.User{}, classify("get user", err)
	}
	return u, nil
}

func (s *Store) GetUser(ctx context.Context, id uuid.UUID) (models.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx, fmt.Sprintf(`SELECT %s FROM users WHERE id = $1`, userCols), id))
	if err != nil {
		return models.User{}, classify("get user", err)
	}
	return u, nil
}

// UpdatePreferences replaces the user's scoring keywords and states.
func (s *Store) UpdatePreferences(ctx context.Context, id uuid.UUID, keywords, states []string) (models.User, error) {
	if keywords == nil {
		keywords = []string{}
	}
	if states == nil {
		states = []string{}
	}
	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
		UPDATE users SET keywords = $2, preferred_states = $3
		WHERE id = $1
		RETURNING %s
	`, userCols), id, keywords, states)
	u, err := scanUser(row)
	if err != nil {
		return models.User{}, classify("update preferences", err)
	}
	return u, nil
}
