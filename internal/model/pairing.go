package model

import (
	"time"
)

// PairingCode is the ephemeral record behind a one-time pairing code. It lives
// in the TTL store, never in Postgres. The claim marker kept by the store is
// the authoritative "completed" flag; the record itself stays immutable.
type PairingCode struct {
	Code             string    `json:"code"`
	OwnerID          string    `json:"ownerId"`
	OwnerDisplayName string    `json:"ownerDisplayName"`
	OwnerContact     string    `json:"ownerContact,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
	ExpiresAt        time.Time `json:"expiresAt"`
}

// PairingStatus is what an unauthenticated poller is allowed to see.
type PairingStatus struct {
	Completed   bool       `json:"completed"`
	Expired     bool       `json:"expired"`
	CompletedAt *time.Time `json:"completedAt"`
}

// EphemeralGrant is the payload stored behind an ephemeral token. The token
// authorizes sync calls for its subject until the fixed TTL runs out; it is
// not refreshable.
type EphemeralGrant struct {
	SubjectID   string    `json:"subjectId"`
	DisplayName string    `json:"displayName"`
	ExpiresAt   time.Time `json:"expiresAt"`
}
