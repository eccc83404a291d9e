package models

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID              uuid.UUID `json:"id"`
	Email           string    `json:"email"`
	PasswordHash    string    `json:"-"`
	Keywords        []string  `json:"keywords"`
	PreferredStates []string  `json:"preferred_states"`
	CreatedAt       time.Time `json:"created_at"`
}
