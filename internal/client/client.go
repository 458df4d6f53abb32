package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/linkforge/credsync-server-go/internal/model"
	"github.com/linkforge/credsync-server-go/internal/service"
)

const requestTimeout = 15 * time.Second

// HarvestTokenHeader mirrors the header the server's sync middleware reads.
const HarvestTokenHeader = "X-Harvest-Token"

// ClaimDenialError is a claim rejected by the server with a reason enum
// (NotFound, Expired, AlreadyUsed). The collector shows it verbatim; there is
// no retry that can fix any of them.
type ClaimDenialError struct {
	Reason string
}

func (e *ClaimDenialError) Error() string {
	return fmt.Sprintf("pairing claim denied: %s", e.Reason)
}

// Client is the collector's API surface against the sync server.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
	}
}

// Claim exchanges the one-time pairing code for an ephemeral token.
func (c *Client) Claim(ctx context.Context, code string) (*service.ClaimResult, error) {
	url := fmt.Sprintf("%s/pairing/codes/%s/claim", c.baseURL, code)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create claim request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("claim request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		var denial struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&denial); err != nil {
			return nil, fmt.Errorf("claim denied with unreadable body: %w", err)
		}
		return nil, &ClaimDenialError{Reason: denial.Error}
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("claim failed with status %d: %s", resp.StatusCode, body)
	}

	var result service.ClaimResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode claim response: %w", err)
	}

	log.Info().
		Str("ownerId", result.OwnerID).
		Time("tokenExpiresAt", result.EphemeralExpiresAt).
		Msg("pairing code claimed")

	return &result, nil
}

// Sync posts a harvested bundle under the ephemeral token.
func (c *Client) Sync(ctx context.Context, token string, bundle model.CredentialBundle) (*service.SyncResult, error) {
	body, err := json.Marshal(bundle)
	if err != nil {
		return nil, fmt.Errorf("marshal bundle: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/accounts/sync", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create sync request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HarvestTokenHeader, token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sync request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("sync failed with status %d: %s", resp.StatusCode, respBody)
	}

	var result service.SyncResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode sync response: %w", err)
	}

	log.Info().
		Str("externalId", result.ExternalID).
		Str("tokenStatus", string(result.TokenStatus)).
		Bool("isNew", result.IsNew).
		Msg("bundle synced")

	return &result, nil
}

// InvalidateToken drops the ephemeral token once the collector is done.
func (c *Client) InvalidateToken(ctx context.Context, token string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/pairing/tokens", nil)
	if err != nil {
		return fmt.Errorf("create invalidate request: %w", err)
	}
	req.Header.Set(HarvestTokenHeader, token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("invalidate request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("invalidate failed with status %d", resp.StatusCode)
	}
	return nil
}
