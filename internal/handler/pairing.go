package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/linkforge/credsync-server-go/internal/audit"
	apperrors "github.com/linkforge/credsync-server-go/internal/errors"
	"github.com/linkforge/credsync-server-go/internal/middleware"
	"github.com/linkforge/credsync-server-go/internal/service"
	"github.com/linkforge/credsync-server-go/internal/util"
)

type PairingHandler struct {
	pairingService *service.PairingService
}

func NewPairingHandler(pairingService *service.PairingService) *PairingHandler {
	return &PairingHandler{
		pairingService: pairingService,
	}
}

// POST /pairing/codes
func (h *PairingHandler) GenerateCode(w http.ResponseWriter, r *http.Request) {
	owner := middleware.GetOwner(r.Context())
	if owner == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Owner authentication required"})
		return
	}

	result, err := h.pairingService.GenerateCode(r.Context(), *owner)
	if err != nil {
		log.Error().Err(err).Msg("failed to generate pairing code")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to generate pairing code"})
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:    audit.EventCodeGenerate,
		OwnerID: owner.ID,
	})

	writeJSON(w, http.StatusCreated, result)
}

// GET /pairing/codes/{code}/status
func (h *PairingHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if code == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Pairing code is required"})
		return
	}

	status, err := h.pairingService.PollStatus(r.Context(), code)
	if err != nil {
		log.Error().Err(err).Str("code", util.MaskCode(code)).Msg("failed to poll pairing status")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, status)
}

// POST /pairing/codes/{code}/claim
//
// Failures come back as 401 with a bare reason enum so the passive client can
// show the right message without parsing prose.
func (h *PairingHandler) Claim(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if code == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Pairing code is required"})
		return
	}

	result, err := h.pairingService.Claim(r.Context(), code)
	if err != nil {
		if reason, denied := claimDenialReason(err); denied {
			audit.LogFromRequest(r, audit.Event{
				Type:    audit.EventClaimDenied,
				Details: map[string]interface{}{"reason": reason},
			})
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": reason})
			return
		}

		log.Error().Err(err).Str("code", util.MaskCode(code)).Msg("failed to claim pairing code")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:    audit.EventClaimSuccess,
		OwnerID: result.OwnerID,
	})

	writeJSON(w, http.StatusOK, result)
}

// DELETE /pairing/tokens
//
// A well-behaved collector drops its token once it is done syncing instead of
// letting it ride out the TTL.
func (h *PairingHandler) InvalidateToken(w http.ResponseWriter, r *http.Request) {
	grant := middleware.GetGrant(r.Context())
	token := r.Header.Get(middleware.HarvestTokenHeader)
	if token == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Token header is required"})
		return
	}

	if err := h.pairingService.InvalidateToken(r.Context(), token); err != nil {
		log.Error().Err(err).Msg("failed to invalidate ephemeral token")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
		return
	}

	event := audit.Event{Type: audit.EventTokenInvalidate}
	if grant != nil {
		event.OwnerID = grant.SubjectID
	}
	audit.LogFromRequest(r, event)

	writeJSON(w, http.StatusOK, map[string]bool{"invalidated": true})
}

func claimDenialReason(err error) (string, bool) {
	switch apperrors.GetCode(err) {
	case apperrors.ErrCodePairingNotFound:
		return "NotFound", true
	case apperrors.ErrCodePairingExpired:
		return "Expired", true
	case apperrors.ErrCodePairingAlreadyUsed:
		return "AlreadyUsed", true
	default:
		return "", false
	}
}
