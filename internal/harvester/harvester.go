// Package harvester extracts session artifacts from an authenticated upstream
// surface. It runs on the passive-client side: an ordered chain of candidate
// fetches, each with its own request profile, feeding pure pattern extractors.
// Partial results are normal; only a missing local session is fatal.
package harvester

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "github.com/linkforge/credsync-server-go/internal/errors"
	"github.com/linkforge/credsync-server-go/internal/model"
)

const (
	defaultAttemptTimeout = 10 * time.Second

	// maxBodyBytes caps how much of a candidate response the extractors see.
	maxBodyBytes = 4 << 20
)

// ContextProbe is the last-resort extraction strategy: it only yields a token
// when the harvester runs inside a live rendering context of the target and
// can interrogate in-context bindings for a cached one. A detached collector
// wires NoProbe.
type ContextProbe interface {
	CachedToken(ctx context.Context) (string, bool)
}

// NoProbe is the detached-fetch default; it never produces a token.
type NoProbe struct{}

func (NoProbe) CachedToken(context.Context) (string, bool) { return "", false }

type Option func(*Harvester)

func WithHTTPClient(client *http.Client) Option {
	return func(h *Harvester) { h.client = client }
}

func WithProbe(probe ContextProbe) Option {
	return func(h *Harvester) { h.probe = probe }
}

func WithAttemptTimeout(d time.Duration) Option {
	return func(h *Harvester) { h.attemptTimeout = d }
}

func WithCSRFChain(c Chain) Option {
	return func(h *Harvester) { h.csrfChain = c }
}

func WithAccessTokenChain(c Chain) Option {
	return func(h *Harvester) { h.accessChain = c }
}

func WithSecondaryChains(chains []NamedChain) Option {
	return func(h *Harvester) { h.secondaryChains = chains }
}

type Harvester struct {
	target          Target
	client          *http.Client
	probe           ContextProbe
	csrfChain       Chain
	accessChain     Chain
	secondaryChains []NamedChain
	attemptTimeout  time.Duration
}

func New(target Target, opts ...Option) *Harvester {
	h := &Harvester{
		target:          target.applyDefaults(),
		probe:           NoProbe{},
		csrfChain:       DefaultCSRFChain(),
		accessChain:     DefaultAccessTokenChain(),
		secondaryChains: DefaultSecondaryChains(),
		attemptTimeout:  defaultAttemptTimeout,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.client == nil {
		h.client = &http.Client{
			// Redirects are inspected, not followed: a bounce toward the
			// login flow is a signal to move on to the next candidate.
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		}
	}
	return h
}

// AcquireBundle walks the candidate surfaces in order and assembles whatever
// credentials can be extracted. A candidate that is unreachable, degraded, or
// bounced to login is skipped; finding a csrf token ends the walk since it
// proves an authoritative surface was reached. If no candidate produced an
// access token the in-context probe gets one attempt. The only fatal outcome
// is an unauthenticated local session.
func (h *Harvester) AcquireBundle(ctx context.Context, session LocalSession) (*model.CredentialBundle, error) {
	if !session.LoggedIn {
		return nil, apperrors.NotLoggedIn()
	}

	var (
		csrfToken   *string
		accessToken *string
		secondary   = make(map[string]string)
		method      = model.ExtractionCookieOnly
		fingerprint *model.DeviceFingerprint
	)
	if len(h.target.Candidates) > 0 {
		fingerprint = h.target.Candidates[0].Profile.Fingerprint()
	}

	for _, cand := range h.target.Candidates {
		body, err := h.fetch(ctx, cand, session.RawCookies)
		if err != nil {
			log.Warn().Err(err).Str("candidate", cand.Name).Msg("candidate fetch failed, trying next")
			continue
		}
		if marker, ok := matchMarker(body, h.target.DegradedMarkers); ok {
			log.Debug().Str("candidate", cand.Name).Str("marker", marker).Msg("degraded surface served, trying next")
			continue
		}
		if marker, ok := matchMarker(body, h.target.LoginMarkers); ok {
			log.Debug().Str("candidate", cand.Name).Str("marker", marker).Msg("login surface served, trying next")
			continue
		}

		csrfFound := false
		if csrfToken == nil {
			if v, extractor, ok := h.csrfChain.Run(body); ok {
				csrfToken = &v
				csrfFound = true
				log.Debug().Str("candidate", cand.Name).Str("extractor", extractor).Msg("csrf token extracted")
			}
		}

		// Secondary chains run regardless of the csrf outcome; each name is
		// only filled once.
		for _, nc := range h.secondaryChains {
			if _, have := secondary[nc.Token]; have {
				continue
			}
			if v, _, ok := nc.Chain.Run(body); ok {
				secondary[nc.Token] = v
			}
		}

		if accessToken == nil {
			if v, extractor, ok := h.accessChain.Run(body); ok {
				accessToken = &v
				method = model.ExtractionPageScrape
				fingerprint = cand.Profile.Fingerprint()
				log.Debug().Str("candidate", cand.Name).Str("extractor", extractor).Msg("access token extracted")
			} else {
				// Candidate loaded fine but carried no primary token. Not an
				// error for the walk, just a miss worth seeing in debug.
				log.Debug().
					Str("candidate", cand.Name).
					Err(apperrors.ExtractionMiss("access_token")).
					Msg("no primary token on candidate, continuing")
			}
		}

		if csrfFound {
			// A csrf token is the strongest proof of landing on an
			// authoritative surface; no further candidates needed.
			fingerprint = cand.Profile.Fingerprint()
			break
		}
	}

	if accessToken == nil {
		if v, ok := h.probe.CachedToken(ctx); ok {
			accessToken = &v
			method = model.ExtractionInContextInjection
			log.Debug().Msg("access token recovered from in-context bindings")
		}
	}

	bundle := &model.CredentialBundle{
		ExternalID:             session.IdentityID,
		SessionCookieBlob:      session.RawCookies,
		AccessToken:            accessToken,
		CSRFToken:              csrfToken,
		DeviceFingerprint:      fingerprint,
		ExtractionMethod:       method,
		NeedsSupplementaryAuth: accessToken == nil,
	}
	if len(secondary) > 0 {
		bundle.SecondaryTokens = secondary
	}

	log.Info().
		Str("externalId", session.IdentityID).
		Str("extractionMethod", string(method)).
		Bool("csrf", csrfToken != nil).
		Bool("accessToken", accessToken != nil).
		Int("secondaryTokens", len(secondary)).
		Bool("needsSupplementaryAuth", bundle.NeedsSupplementaryAuth).
		Msg("credential bundle assembled")

	return bundle, nil
}

// fetch retrieves one candidate under its profile with a hard per-attempt
// timeout, so one unreachable surface cannot stall the whole walk.
func (h *Harvester) fetch(ctx context.Context, cand Candidate, rawCookies string) (string, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, h.attemptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, cand.URL, nil)
	if err != nil {
		return "", apperrors.UpstreamFetch(cand.Name, err)
	}

	req.Header.Set("User-Agent", cand.Profile.UserAgent)
	for k, v := range cand.Profile.Headers {
		req.Header.Set(k, v)
	}
	req.Header.Set("Cookie", rawCookies)

	resp, err := h.client.Do(req)
	if err != nil {
		return "", apperrors.UpstreamFetch(cand.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 && resp.StatusCode < 400 {
		// Surfaced as a body the marker check understands, since a redirect
		// location is where the login bounce usually shows.
		return resp.Header.Get("Location"), nil
	}
	if resp.StatusCode != http.StatusOK {
		return "", apperrors.UpstreamFetch(cand.Name, fmt.Errorf("status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", apperrors.UpstreamFetch(cand.Name, err)
	}
	return string(body), nil
}

func matchMarker(body string, markers []string) (string, bool) {
	for _, m := range markers {
		if strings.Contains(body, m) {
			return m, true
		}
	}
	return "", false
}
