// Package models contains the plain domain structs shared across the
// storage gateway, webhook adapter, rule engine, and action executor.
package models

// ConnectionState is the lifecycle state of a provider session.
type ConnectionState string

// Connection states reported by connection.update events.
const (
	ConnectionOpen       ConnectionState = "open"
	ConnectionClose      ConnectionState = "close"
	ConnectionConnecting ConnectionState = "connecting"
	ConnectionQR         ConnectionState = "qr"
)

// Instance is a single connected chat-platform session owned by a user.
// Created and owned by an external collaborator; the core only reads it.
type Instance struct {
	InstanceID      string
	OwnerJID        string
	CreatorUserID   string
	APIBaseURL      string
	APIKey          string `json:"-"`
	IsOwner         bool
	ConnectionState ConnectionState
}
