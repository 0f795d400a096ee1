// Package queue defines message payloads exchanged over the message broker
// and the consumers that process them.
package queue

import "time"

// UserRegisteredQueue is the durable queue carrying UserRegisteredEvent.
const UserRegisteredQueue = "user.registered"

// UserRegisteredEvent is published after a new account is stored.  It holds
// enough for downstream consumers (welcome mail, analytics) to act without
// querying the client's database.
type UserRegisteredEvent struct {
	ClientID     string    `json:"client_id"`
	UserID       string    `json:"user_id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	RegisteredAt time.Time `json:"registered_at"`
}
