package model

// DeviceFingerprint captures the request identity the harvester presented to
// the upstream surface, so later refresh traffic can reuse the same one.
type DeviceFingerprint struct {
	UserAgent   string            `json:"userAgent"`
	Platform    string            `json:"platform,omitempty"`
	ClientHints map[string]string `json:"clientHints,omitempty"`
}

// CredentialBundle is the transient result of one harvesting run. It is sent
// to the sync endpoint and merged into an AccountRecord; it is never persisted
// as-is.
type CredentialBundle struct {
	ExternalID             string             `json:"externalId"`
	DisplayName            string             `json:"displayName,omitempty"`
	SessionCookieBlob      string             `json:"sessionCookieBlob"`
	AccessToken            *string            `json:"accessToken,omitempty"`
	CSRFToken              *string            `json:"csrfToken,omitempty"`
	SecondaryTokens        map[string]string  `json:"secondaryTokens,omitempty"`
	DeviceFingerprint      *DeviceFingerprint `json:"deviceFingerprint,omitempty"`
	ExtractionMethod       ExtractionMethod   `json:"extractionMethod"`
	NeedsSupplementaryAuth bool               `json:"needsSupplementaryAuth"`
}
