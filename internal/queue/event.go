// Package queue defines message payloads exchanged over the message broker
// and the publisher that sends them.
package queue

// UserRegisteredQueue is the durable queue user.registered events go to.
const UserRegisteredQueue = "user.registered"

// UserRegisteredEvent is published after an account is created. It carries
// only what downstream consumers (welcome mail, analytics) need and never
// any credential material.
type UserRegisteredEvent struct {
	UserID       string `json:"user_id"`
	Email        string `json:"email"`
	RegisteredAt string `json:"registered_at"`
}
