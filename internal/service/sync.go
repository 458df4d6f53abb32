package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	apperrors "github.com/linkforge/credsync-server-go/internal/errors"
	"github.com/linkforge/credsync-server-go/internal/model"
	"github.com/linkforge/credsync-server-go/internal/repository"
	"github.com/linkforge/credsync-server-go/internal/util"
)

const (
	// oauthTokenPrefix is the reserved prefix upstream stamps on real bearer
	// tokens; session-derived pseudo tokens never carry it.
	oauthTokenPrefix = "act."

	// oauthTokenMinLen is exclusive: real bearer tokens are longer than this.
	oauthTokenMinLen = 100

	// nonBearerSeparator shows up in composite session tokens but never in a
	// bearer access token.
	nonBearerSeparator = ":"

	defaultSyncSource = "collector"
)

type SyncResult struct {
	ExternalID  string            `json:"externalId"`
	DisplayName string            `json:"displayName"`
	TokenStatus model.TokenStatus `json:"tokenStatus"`
	IsNew       bool              `json:"isNew"`
}

// SyncService merges harvested credential bundles into durable account
// records. Concurrent syncs of the same (owner, externalId) are serialized by
// the database's atomic upsert; the service itself holds no locks.
type SyncService struct {
	accounts repository.AccountRecordRepository
}

func NewSyncService(accounts repository.AccountRecordRepository) *SyncService {
	return &SyncService{accounts: accounts}
}

// ClassifyAuthMode derives the authorization mode from the access token alone.
// It is pure and recomputed on every sync; a stored record never pins it.
func ClassifyAuthMode(accessToken *string) model.AuthMode {
	if accessToken == nil {
		return model.AuthModeCookieOnly
	}
	token := *accessToken
	if strings.HasPrefix(token, oauthTokenPrefix) &&
		len(token) > oauthTokenMinLen &&
		!strings.Contains(token, nonBearerSeparator) {
		return model.AuthModeOAuth
	}
	return model.AuthModeCookieOnly
}

func tokenStatusFor(mode model.AuthMode) model.TokenStatus {
	if mode == model.AuthModeOAuth {
		return model.TokenStatusValid
	}
	return model.TokenStatusCookieOnly
}

// SyncAccount validates the bundle and upserts the owner's account record.
// Re-submitting an identical bundle yields an identical record apart from the
// timestamp columns.
func (s *SyncService) SyncAccount(ctx context.Context, ownerID string, bundle model.CredentialBundle) (*SyncResult, error) {
	if !util.IsValidExternalID(bundle.ExternalID) {
		return nil, apperrors.InvalidInput("externalId", "must contain only digits")
	}
	if bundle.SessionCookieBlob == "" {
		return nil, apperrors.MissingRequired("sessionCookieBlob")
	}

	// This classification only decides the insert path. When the upsert hits
	// an existing row the statement reclassifies from the merged token, so a
	// token-less re-sync cannot downgrade a stored oauth record.
	mode := ClassifyAuthMode(bundle.AccessToken)
	status := tokenStatusFor(mode)

	params := model.UpsertAccountRecordParams{
		ExternalID:        bundle.ExternalID,
		OwnerID:           ownerID,
		DisplayName:       bundle.DisplayName,
		SessionCookieBlob: bundle.SessionCookieBlob,
		AccessToken:       bundle.AccessToken,
		CSRFToken:         bundle.CSRFToken,
		AuthMode:          mode,
		TokenStatus:       status,
		SyncSource:        defaultSyncSource,
	}

	if len(bundle.SecondaryTokens) > 0 {
		data, err := json.Marshal(bundle.SecondaryTokens)
		if err != nil {
			return nil, fmt.Errorf("marshal secondary tokens: %w", err)
		}
		params.SecondaryTokens = data
	}
	if bundle.DeviceFingerprint != nil {
		data, err := json.Marshal(bundle.DeviceFingerprint)
		if err != nil {
			return nil, fmt.Errorf("marshal device fingerprint: %w", err)
		}
		params.DeviceFingerprint = data
	}

	record, isNew, err := s.accounts.Upsert(ctx, params)
	if err != nil {
		return nil, apperrors.Persistence(err)
	}

	log.Info().
		Str("externalId", record.ExternalID).
		Str("ownerId", ownerID).
		Str("authMode", string(record.AuthMode)).
		Str("extractionMethod", string(bundle.ExtractionMethod)).
		Bool("isNew", isNew).
		Bool("needsSupplementaryAuth", bundle.NeedsSupplementaryAuth).
		Msg("account synced")

	return &SyncResult{
		ExternalID:  record.ExternalID,
		DisplayName: record.DisplayName,
		TokenStatus: record.TokenStatus,
		IsNew:       isNew,
	}, nil
}

// RecordFailure marks an account unhealthy; sync resets it on the next
// successful run.
func (s *SyncService) RecordFailure(ctx context.Context, ownerID, externalID, message string) error {
	if err := s.accounts.MarkUnhealthy(ctx, ownerID, externalID, message); err != nil {
		return apperrors.Persistence(err)
	}
	log.Warn().
		Str("externalId", externalID).
		Str("ownerId", ownerID).
		Str("reason", message).
		Msg("account marked unhealthy")
	return nil
}

// ListAccounts is the read-only view the admin UI renders; it never mutates.
func (s *SyncService) ListAccounts(ctx context.Context, ownerID string, limit, offset int) ([]model.AccountRecord, int, error) {
	records, err := s.accounts.FindByOwner(ctx, ownerID, limit, offset)
	if err != nil {
		return nil, 0, apperrors.Persistence(err)
	}
	total, err := s.accounts.CountByOwner(ctx, ownerID)
	if err != nil {
		return nil, 0, apperrors.Persistence(err)
	}
	return records, total, nil
}
