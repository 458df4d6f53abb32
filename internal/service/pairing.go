package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/linkforge/credsync-server-go/internal/cache"
	apperrors "github.com/linkforge/credsync-server-go/internal/errors"
	"github.com/linkforge/credsync-server-go/internal/model"
	"github.com/linkforge/credsync-server-go/internal/util"
)

const (
	pairingKeyPrefix = "pairing:"
	tokenKeyPrefix   = "ephemeral:"
)

// GenerateResult is handed to the owner inside the admin app; the owner passes
// code and URL to the passive client environment out of band.
type GenerateResult struct {
	Code             string `json:"code"`
	PairingURL       string `json:"pairingUrl"`
	ExpiresInSeconds int    `json:"expiresInSeconds"`
}

// ClaimResult links the claiming client to the owner and carries the freshly
// minted ephemeral token that authorizes subsequent sync calls.
type ClaimResult struct {
	OwnerID            string    `json:"ownerId"`
	OwnerDisplayName   string    `json:"ownerDisplayName"`
	EphemeralToken     string    `json:"ephemeralToken"`
	EphemeralExpiresAt time.Time `json:"ephemeralExpiresAt"`
}

// PairingService issues one-time pairing codes and mints ephemeral tokens.
// Codes live in the TTL store for longer than their logical expiry so that
// status pollers can still observe completion and late claimers get a
// distinct "expired" answer instead of "not found".
type PairingService struct {
	store              cache.Store
	pairingBaseURL     string
	codeTTL            time.Duration
	completedRetention time.Duration
	tokenTTL           time.Duration
	now                func() time.Time
}

func NewPairingService(
	store cache.Store,
	pairingBaseURL string,
	codeTTL, completedRetention, tokenTTL time.Duration,
) *PairingService {
	return &PairingService{
		store:              store,
		pairingBaseURL:     pairingBaseURL,
		codeTTL:            codeTTL,
		completedRetention: completedRetention,
		tokenTTL:           tokenTTL,
		now:                time.Now,
	}
}

// GenerateCode stores a new one-time pairing code bound to the owner. The
// caller is responsible for having authenticated the owner already.
func (s *PairingService) GenerateCode(ctx context.Context, owner model.Owner) (*GenerateResult, error) {
	code, err := util.GenerateToken()
	if err != nil {
		return nil, fmt.Errorf("generate pairing code: %w", err)
	}

	now := s.now()
	pc := model.PairingCode{
		Code:             code,
		OwnerID:          owner.ID,
		OwnerDisplayName: owner.DisplayName,
		OwnerContact:     owner.Contact,
		CreatedAt:        now,
		ExpiresAt:        now.Add(s.codeTTL),
	}

	payload, err := json.Marshal(pc)
	if err != nil {
		return nil, fmt.Errorf("marshal pairing code: %w", err)
	}

	// Physical TTL outlives the logical expiry so pollStatus and late claims
	// can still tell expired from unknown.
	if err := s.store.Put(ctx, pairingKeyPrefix+code, payload, s.codeTTL+s.completedRetention); err != nil {
		return nil, fmt.Errorf("store pairing code: %w", err)
	}

	log.Info().
		Str("code", util.MaskCode(code)).
		Str("ownerId", owner.ID).
		Time("expiresAt", pc.ExpiresAt).
		Msg("pairing code created")

	return &GenerateResult{
		Code:             code,
		PairingURL:       fmt.Sprintf("%s/pair?code=%s", s.pairingBaseURL, code),
		ExpiresInSeconds: int(s.codeTTL.Seconds()),
	}, nil
}

// PollStatus reports completion and expiry without revealing the owner.
// Polling has no side effects and may be abandoned at any time.
func (s *PairingService) PollStatus(ctx context.Context, code string) (*model.PairingStatus, error) {
	entry, err := s.store.Get(ctx, pairingKeyPrefix+code)
	if errors.Is(err, cache.ErrNotFound) {
		return &model.PairingStatus{Expired: true}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("poll pairing status: %w", err)
	}

	var pc model.PairingCode
	if err := json.Unmarshal(entry.Value, &pc); err != nil {
		return nil, fmt.Errorf("unmarshal pairing code: %w", err)
	}

	return &model.PairingStatus{
		Completed:   entry.ClaimedAt != nil,
		Expired:     !s.now().Before(pc.ExpiresAt),
		CompletedAt: entry.ClaimedAt,
	}, nil
}

// Claim consumes the code exactly once. The store's claim marker is stamped in
// the same atomic step that grants the value, so the "completed" flag seen by
// pollers can never disagree with the consumption itself.
func (s *PairingService) Claim(ctx context.Context, code string) (*ClaimResult, error) {
	key := pairingKeyPrefix + code

	// Expired-but-unclaimed codes should answer Expired, not get consumed.
	if entry, err := s.store.Get(ctx, key); err == nil && entry.ClaimedAt == nil {
		var pc model.PairingCode
		if jsonErr := json.Unmarshal(entry.Value, &pc); jsonErr == nil && !s.now().Before(pc.ExpiresAt) {
			return nil, apperrors.PairingExpired()
		}
	}

	value, err := s.store.Claim(ctx, key)
	switch {
	case errors.Is(err, cache.ErrNotFound):
		log.Warn().Str("code", util.MaskCode(code)).Msg("claim attempt for unknown pairing code")
		return nil, apperrors.PairingNotFound()
	case errors.Is(err, cache.ErrAlreadyClaimed):
		log.Warn().Str("code", util.MaskCode(code)).Msg("claim attempt for consumed pairing code")
		return nil, apperrors.PairingAlreadyUsed()
	case err != nil:
		return nil, fmt.Errorf("claim pairing code: %w", err)
	}

	var pc model.PairingCode
	if err := json.Unmarshal(value, &pc); err != nil {
		return nil, fmt.Errorf("unmarshal pairing code: %w", err)
	}

	// Re-check against the authoritative record; the pre-check above raced.
	// The claim marker is already stamped at this point, so drop the entry
	// entirely: a stamped-but-denied code must not read as completed to
	// pollers or as AlreadyUsed to a retry.
	if !s.now().Before(pc.ExpiresAt) {
		if delErr := s.store.Delete(ctx, key); delErr != nil {
			log.Warn().Err(delErr).Str("code", util.MaskCode(code)).Msg("failed to drop expired pairing code after claim race")
		}
		return nil, apperrors.PairingExpired()
	}

	token, expiresAt, err := s.mintEphemeralToken(ctx, pc.OwnerID, pc.OwnerDisplayName)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("code", util.MaskCode(code)).
		Str("ownerId", pc.OwnerID).
		Time("tokenExpiresAt", expiresAt).
		Msg("pairing code claimed")

	return &ClaimResult{
		OwnerID:            pc.OwnerID,
		OwnerDisplayName:   pc.OwnerDisplayName,
		EphemeralToken:     token,
		EphemeralExpiresAt: expiresAt,
	}, nil
}

// ResolveToken maps a live ephemeral token to its grant. Tokens are reusable
// until expiry: one owner may sync several accounts during one pairing window.
func (s *PairingService) ResolveToken(ctx context.Context, token string) (*model.EphemeralGrant, error) {
	if !util.IsWellFormedToken(token) {
		return nil, apperrors.InvalidToken()
	}

	entry, err := s.store.Get(ctx, tokenKeyPrefix+util.HashToken(token))
	if errors.Is(err, cache.ErrNotFound) {
		return nil, apperrors.InvalidToken()
	}
	if err != nil {
		return nil, fmt.Errorf("resolve ephemeral token: %w", err)
	}

	var grant model.EphemeralGrant
	if err := json.Unmarshal(entry.Value, &grant); err != nil {
		return nil, fmt.Errorf("unmarshal ephemeral grant: %w", err)
	}

	if !s.now().Before(grant.ExpiresAt) {
		return nil, apperrors.InvalidToken()
	}
	return &grant, nil
}

// InvalidateToken revokes an ephemeral token before its TTL runs out.
func (s *PairingService) InvalidateToken(ctx context.Context, token string) error {
	if !util.IsWellFormedToken(token) {
		return apperrors.InvalidToken()
	}
	if err := s.store.Delete(ctx, tokenKeyPrefix+util.HashToken(token)); err != nil {
		return fmt.Errorf("invalidate ephemeral token: %w", err)
	}
	log.Info().Msg("ephemeral token invalidated")
	return nil
}

func (s *PairingService) mintEphemeralToken(ctx context.Context, subjectID, displayName string) (string, time.Time, error) {
	token, err := util.GenerateToken()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("generate ephemeral token: %w", err)
	}

	expiresAt := s.now().Add(s.tokenTTL)
	grant := model.EphemeralGrant{
		SubjectID:   subjectID,
		DisplayName: displayName,
		ExpiresAt:   expiresAt,
	}

	payload, err := json.Marshal(grant)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("marshal ephemeral grant: %w", err)
	}

	// Stored under the token's hash: a dump of the cache never yields usable
	// bearer credentials.
	if err := s.store.Put(ctx, tokenKeyPrefix+util.HashToken(token), payload, s.tokenTTL); err != nil {
		return "", time.Time{}, fmt.Errorf("store ephemeral token: %w", err)
	}

	return token, expiresAt, nil
}
