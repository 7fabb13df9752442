package domain

import "time"

// User represents a registered account. Email is unique as stored.
type User struct {
	ID           int64
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
