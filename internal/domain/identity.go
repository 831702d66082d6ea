package domain

import "time"

// Role distinguishes requesters from support admins.
type Role string

const (
	RoleRequester Role = "REQUESTER"
	RoleAdmin     Role = "ADMIN"
)

// Identity is the domain model for anyone talking to the bot, keyed by
// their stable chat id. Created on first contact, mutated only during
// registration, never deleted.
type Identity struct {
	ChatID       int64
	Username     string
	Name         string
	Phone        string
	Organization string
	Office       string
	Registered   bool
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
