package harvester

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
)

// LocalSession is whatever authenticated state exists in the collector's
// environment. LoggedIn requires both the identity marker and the session
// secret; either one alone cannot authenticate a fetch.
type LocalSession struct {
	IdentityID    string
	SessionSecret string
	RawCookies    string
	LoggedIn      bool
}

// CookieSource yields the cookies available for a domain. The collector reads
// a cookie file; tests supply an in-memory source.
type CookieSource interface {
	Cookies(domain string) ([]*http.Cookie, error)
}

// StaticCookieSource serves a fixed cookie set regardless of domain.
type StaticCookieSource []*http.Cookie

func (s StaticCookieSource) Cookies(string) ([]*http.Cookie, error) {
	return s, nil
}

type fileCookie struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Domain string `json:"domain"`
}

// FileCookieSource reads a JSON cookie export: an array of
// {name, value, domain} objects.
type FileCookieSource struct {
	Path string
}

func (s FileCookieSource) Cookies(domain string) ([]*http.Cookie, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("read cookie file: %w", err)
	}

	var raw []fileCookie
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse cookie file: %w", err)
	}

	var cookies []*http.Cookie
	for _, c := range raw {
		if c.Domain != "" && !domainMatches(domain, c.Domain) {
			continue
		}
		cookies = append(cookies, &http.Cookie{Name: c.Name, Value: c.Value, Domain: c.Domain})
	}
	return cookies, nil
}

func domainMatches(requested, cookieDomain string) bool {
	cookieDomain = strings.TrimPrefix(cookieDomain, ".")
	return requested == cookieDomain || strings.HasSuffix(requested, "."+cookieDomain)
}

// ReadLocalSession is a pure read of the session state for the target's
// domain; it performs no network I/O and never fails an unauthenticated
// state. Deciding what to do about a logged-out session is AcquireBundle's
// call.
func ReadLocalSession(src CookieSource, target Target) (LocalSession, error) {
	target = target.applyDefaults()

	cookies, err := src.Cookies(target.Domain)
	if err != nil {
		return LocalSession{}, fmt.Errorf("read local session: %w", err)
	}

	var session LocalSession
	var parts []string
	for _, c := range cookies {
		parts = append(parts, c.Name+"="+c.Value)
		switch c.Name {
		case target.IdentityCookie:
			session.IdentityID = c.Value
		case target.SessionCookie:
			session.SessionSecret = c.Value
		}
	}

	session.RawCookies = strings.Join(parts, "; ")
	session.LoggedIn = session.IdentityID != "" && session.SessionSecret != ""
	return session, nil
}
