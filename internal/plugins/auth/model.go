// Package auth resolves the authenticated actor for a request. Sessions are
// created by the login flow of the account service and stored in Redis; this
// package only reads them and exposes the acting user id to other plugins.
package auth

import "time"

// Session represents an authenticated user session stored in Redis.
// The session token is the key suffix, and this struct is the value
// (JSON-encoded).
type Session struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}
