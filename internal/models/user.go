package models

import "time"

// User represents an account of the dev stub's login API.
type User struct {
	ID           string
	Username     string
	Role         string
	PasswordHash string
	CreatedAt    time.Time
	LastLoginAt  time.Time
}

// Sanitize returns a copy of the user without sensitive fields populated.
func (u User) Sanitize() User {
	u.PasswordHash = ""
	return u
}
