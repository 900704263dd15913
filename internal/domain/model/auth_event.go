package model

import (
	"time"
)

const (
	AuthEventRegister     = "register"
	AuthEventLogin        = "login"
	AuthEventRoleAssigned = "role_assigned"
	AuthEventRoleRemoved  = "role_removed"
	AuthEventUserDeleted  = "user_deleted"

	AuthOutcomeSuccess = "success"
	AuthOutcomeFailure = "failure"
)

// AuthEvent is an audit record of an authentication or authorization outcome.
// It never holds passwords, hashes or tokens.
type AuthEvent struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	UserID     *int64    `json:"userId,omitempty"`
	Identifier string    `json:"identifier"`
	Outcome    string    `json:"outcome"`
	Reason     string    `json:"reason,omitempty"`
	RemoteAddr string    `json:"remoteAddr,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
	// Attempts counts failed inserts by the audit worker. It travels in the
	// queue payload only and is not stored.
	Attempts   int       `json:"attempts,omitempty"`
}
