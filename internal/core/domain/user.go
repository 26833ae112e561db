package domain

import "time"

// User is a registered account.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	IsStaff      bool      `json:"is_staff"`
	CreatedAt    time.Time `json:"created_at"`
}

// Actor is the caller on whose behalf an operation runs. The zero value is
// the anonymous actor.
type Actor struct {
	UserID   string
	Username string
	Staff    bool
}

// Anonymous is the unauthenticated actor.
var Anonymous = Actor{}

// Authenticated reports whether the actor is a logged-in user.
func (a Actor) Authenticated() bool {
	return a.UserID != ""
}

// TokenPair is the result of a successful credential exchange.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}
