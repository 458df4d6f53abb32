package model

import (
	"encoding/json"
	"time"
)

// AccountRecord is the durable, owner-scoped record that accumulates harvested
// credentials over time. (external_id, owner_id) is unique.
type AccountRecord struct {
	ID                string          `db:"id" json:"id"`
	ExternalID        string          `db:"external_id" json:"externalId"`
	OwnerID           string          `db:"owner_id" json:"ownerId"`
	DisplayName       string          `db:"display_name" json:"displayName"`
	SessionCookieBlob string          `db:"session_cookie_blob" json:"-"`
	AccessToken       *string         `db:"access_token" json:"-"`
	CSRFToken         *string         `db:"csrf_token" json:"-"`
	SecondaryTokens   json.RawMessage `db:"secondary_tokens" json:"-"`
	DeviceFingerprint json.RawMessage `db:"device_fingerprint" json:"deviceFingerprint,omitempty"`
	AuthMode          AuthMode        `db:"auth_mode" json:"authMode"`
	TokenStatus       TokenStatus     `db:"token_status" json:"tokenStatus"`
	IsHealthy         bool            `db:"is_healthy" json:"isHealthy"`
	LastError         *string         `db:"last_error" json:"lastError,omitempty"`
	LastErrorAt       *time.Time      `db:"last_error_at" json:"lastErrorAt,omitempty"`
	SyncSource        string          `db:"sync_source" json:"syncSource"`
	LastSyncAt        time.Time       `db:"last_sync_at" json:"lastSyncAt"`
	CreatedAt         time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt         time.Time       `db:"updated_at" json:"updatedAt"`
}

type UpsertAccountRecordParams struct {
	ExternalID        string
	OwnerID           string
	DisplayName       string
	SessionCookieBlob string
	AccessToken       *string
	CSRFToken         *string
	SecondaryTokens   json.RawMessage
	DeviceFingerprint json.RawMessage
	AuthMode          AuthMode
	TokenStatus       TokenStatus
	SyncSource        string
}
