package harvester

import (
	"github.com/linkforge/credsync-server-go/internal/model"
)

// RequestProfile is the header identity one candidate fetch presents. Each
// candidate carries its own profile: upstream serves a stripped-down legacy
// shell to clients that do not look like a current browser, and a degraded
// shell has none of the embedded tokens.
type RequestProfile struct {
	Name      string
	UserAgent string
	Headers   map[string]string
}

// Fingerprint converts the profile into the device identity recorded on the
// account, so refresh traffic can keep presenting the same client.
func (p RequestProfile) Fingerprint() *model.DeviceFingerprint {
	fp := &model.DeviceFingerprint{
		UserAgent: p.UserAgent,
		Platform:  p.Headers["Sec-CH-UA-Platform"],
	}
	if len(p.Headers) > 0 {
		fp.ClientHints = make(map[string]string, len(p.Headers))
		for k, v := range p.Headers {
			fp.ClientHints[k] = v
		}
	}
	return fp
}

// Candidate is one target surface paired with the profile used to fetch it.
type Candidate struct {
	Name    string
	URL     string
	Profile RequestProfile
}

// Target describes one upstream site the harvester works against.
type Target struct {
	// Domain the local session cookies belong to.
	Domain string

	// Cookie names that mark an authenticated local session. Both must be
	// present for LoggedIn to hold.
	IdentityCookie string
	SessionCookie  string

	// Candidates are tried in order; order encodes which surfaces are most
	// likely to embed tokens.
	Candidates []Candidate

	// DegradedMarkers are structural signatures of the fallback shell.
	DegradedMarkers []string

	// LoginMarkers identify a bounce to the login flow, in a redirect
	// Location or in the body itself.
	LoginMarkers []string
}

// DesktopProfile mimics a current desktop Chrome with its client-hint set.
func DesktopProfile() RequestProfile {
	return RequestProfile{
		Name:      "desktop",
		UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
		Headers: map[string]string{
			"Accept":             "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
			"Accept-Language":    "en-US,en;q=0.9",
			"Sec-CH-UA":          `"Chromium";v="126", "Google Chrome";v="126", "Not.A/Brand";v="24"`,
			"Sec-CH-UA-Mobile":   "?0",
			"Sec-CH-UA-Platform": `"Windows"`,
			"Sec-Fetch-Dest":     "document",
			"Sec-Fetch-Mode":     "navigate",
			"Sec-Fetch-Site":     "same-origin",
		},
	}
}

// MobileProfile mimics mobile Safari; some surfaces only embed tokens in the
// mobile rendering.
func MobileProfile() RequestProfile {
	return RequestProfile{
		Name:      "mobile",
		UserAgent: "Mozilla/5.0 (iPhone; CPU iPhone OS 17_5 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.5 Mobile/15E148 Safari/604.1",
		Headers: map[string]string{
			"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
			"Accept-Language": "en-US,en;q=0.9",
		},
	}
}

func defaultDegradedMarkers() []string {
	return []string{
		`id="legacy-shell"`,
		`data-rendering="fallback"`,
		`<meta name="renderer" content="lite"`,
	}
}

func defaultLoginMarkers() []string {
	return []string{
		"/login",
		"/passport/web/login",
		`id="login-form"`,
	}
}

// applyDefaults fills in marker lists a caller left empty.
func (t Target) applyDefaults() Target {
	if len(t.DegradedMarkers) == 0 {
		t.DegradedMarkers = defaultDegradedMarkers()
	}
	if len(t.LoginMarkers) == 0 {
		t.LoginMarkers = defaultLoginMarkers()
	}
	if t.IdentityCookie == "" {
		t.IdentityCookie = "uid"
	}
	if t.SessionCookie == "" {
		t.SessionCookie = "sessionid"
	}
	return t
}
