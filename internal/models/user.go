package models

import "time"

// UserSession is the identity carried by a bearer token.
type UserSession struct {
	UserID    int64     `json:"user_id"`
	SessionID string    `json:"session_id"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}
