package storage

import (
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when no row matches the lookup.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when an insert violates a uniqueness constraint.
	ErrConflict = errors.New("already exists")
)

// Link is a short link row. Several rows may share a code, but at most one
// of them has Deleted == false.
type Link struct {
	ID          string     `json:"id"`
	Code        string     `json:"code"`
	Target      string     `json:"target"`
	OwnerID     string     `json:"owner_id"`
	TotalClicks int64      `json:"total_clicks"`
	LastClicked *time.Time `json:"last_clicked"`
	Deleted     bool       `json:"deleted"`
	CreatedAt   time.Time  `json:"created_at"`
}

// User is a registered account.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// DeleteTask asks for the live link with Code owned by OwnerID to be soft deleted.
type DeleteTask struct {
	Code    string
	OwnerID string
}
