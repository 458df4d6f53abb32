package harvester

import (
	"regexp"
)

// Extractor is one pure attempt to locate a token inside a response body.
// Extractors carry no state and no I/O, which keeps each pattern testable on
// its own and lets chains grow without touching the surrounding control flow.
type Extractor struct {
	Name    string
	pattern *regexp.Regexp
}

// NewRegexExtractor builds an extractor from a pattern whose first capture
// group is the token.
func NewRegexExtractor(name, pattern string) Extractor {
	return Extractor{Name: name, pattern: regexp.MustCompile(pattern)}
}

func (e Extractor) Extract(body string) (string, bool) {
	m := e.pattern.FindStringSubmatch(body)
	if len(m) < 2 || m[1] == "" {
		return "", false
	}
	return m[1], true
}

// Chain is a priority-ordered list of extractors; the first match wins.
type Chain []Extractor

// Run tries each extractor in order and reports the winning value and the
// name of the extractor that produced it.
func (c Chain) Run(body string) (value, extractor string, ok bool) {
	for _, e := range c {
		if v, found := e.Extract(body); found {
			return v, e.Name, true
		}
	}
	return "", "", false
}

// NamedChain binds a chain to the auxiliary token name it harvests.
type NamedChain struct {
	Token string
	Chain Chain
}

// DefaultCSRFChain covers the places upstream has embedded the csrf token
// across its page revisions, newest layout first.
func DefaultCSRFChain() Chain {
	return Chain{
		NewRegexExtractor("meta-tag", `<meta\s+name="csrf-token"\s+content="([^"]+)"`),
		NewRegexExtractor("hidden-input", `name="csrf_token"[^>]*\svalue="([^"]+)"`),
		NewRegexExtractor("json-state", `"csrfToken"\s*:\s*"([^"]+)"`),
		NewRegexExtractor("window-binding", `window\.__CSRF_TOKEN__\s*=\s*"([^"]+)"`),
	}
}

// DefaultAccessTokenChain locates the bearer access token some surfaces embed
// for their own XHR bootstrap.
func DefaultAccessTokenChain() Chain {
	return Chain{
		NewRegexExtractor("json-snake", `"access_token"\s*:\s*"(act\.[0-9A-Za-z._~-]+)"`),
		NewRegexExtractor("json-camel", `"accessToken"\s*:\s*"(act\.[0-9A-Za-z._~-]+)"`),
		NewRegexExtractor("bootstrap-var", `__ACCESS_TOKEN__\s*=\s*"([^"]+)"`),
	}
}

// DefaultSecondaryChains harvests the auxiliary tokens sync wants alongside
// the main credentials, in a fixed name order.
func DefaultSecondaryChains() []NamedChain {
	return []NamedChain{
		{
			Token: "app_id",
			Chain: Chain{
				NewRegexExtractor("json-quoted", `"appId"\s*:\s*"(\d+)"`),
				NewRegexExtractor("json-number", `"appId"\s*:\s*(\d+)`),
			},
		},
		{
			Token: "web_session_id",
			Chain: Chain{
				NewRegexExtractor("json-state", `"webSessionId"\s*:\s*"([^"]+)"`),
				NewRegexExtractor("window-binding", `window\.__WEB_SESSION__\s*=\s*"([^"]+)"`),
			},
		},
		{
			Token: "trace_id",
			Chain: Chain{
				NewRegexExtractor("json-state", `"traceId"\s*:\s*"([^"]+)"`),
			},
		},
	}
}
