package util

import (
	"regexp"
)

var (
	externalIDRegex = regexp.MustCompile(`^\d+$`)
	tokenRegex      = regexp.MustCompile(`^[0-9a-f]{64}$`)
)

// IsValidExternalID accepts the digits-only identifiers the upstream surface
// assigns to accounts.
func IsValidExternalID(s string) bool {
	return externalIDRegex.MatchString(s)
}

// IsWellFormedToken checks the shape of pairing codes and ephemeral tokens
// before touching the store.
func IsWellFormedToken(s string) bool {
	return tokenRegex.MatchString(s)
}
