package model

// AuthMode describes how a harvested account can authenticate against the
// upstream surface. It is recomputed from the access token on every sync and
// never carried over from a previous record.
type AuthMode string

const (
	AuthModeOAuth      AuthMode = "oauth"
	AuthModeCookieOnly AuthMode = "cookie_only"
)

// TokenStatus tracks the usability of the stored access token.
type TokenStatus string

const (
	TokenStatusValid      TokenStatus = "valid"
	TokenStatusActive     TokenStatus = "active"
	TokenStatusCookieOnly TokenStatus = "cookie_only"
	TokenStatusExpired    TokenStatus = "expired"
)

// ExtractionMethod records which strategy produced the primary token.
type ExtractionMethod string

const (
	ExtractionCookieOnly         ExtractionMethod = "cookie_only"
	ExtractionPageScrape         ExtractionMethod = "page_scrape"
	ExtractionInContextInjection ExtractionMethod = "in_context_injection"
)

func (m ExtractionMethod) Valid() bool {
	switch m {
	case ExtractionCookieOnly, ExtractionPageScrape, ExtractionInContextInjection:
		return true
	}
	return false
}
