package handler

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/linkforge/credsync-server-go/internal/audit"
	apperrors "github.com/linkforge/credsync-server-go/internal/errors"
	"github.com/linkforge/credsync-server-go/internal/httputil"
	"github.com/linkforge/credsync-server-go/internal/middleware"
	"github.com/linkforge/credsync-server-go/internal/model"
	"github.com/linkforge/credsync-server-go/internal/service"
)

type AccountHandler struct {
	syncService *service.SyncService
}

func NewAccountHandler(syncService *service.SyncService) *AccountHandler {
	return &AccountHandler{
		syncService: syncService,
	}
}

// POST /accounts/sync
func (h *AccountHandler) Sync(w http.ResponseWriter, r *http.Request) {
	grant := middleware.GetGrant(r.Context())
	if grant == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "InvalidToken"})
		return
	}

	var bundle model.CredentialBundle
	if err := json.NewDecoder(r.Body).Decode(&bundle); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}

	result, err := h.syncService.SyncAccount(r.Context(), grant.SubjectID, bundle)
	if err != nil {
		if _, ok := apperrors.AsAppError(err); ok {
			httputil.WriteError(w, err)
			return
		}
		log.Error().Err(err).Str("ownerId", grant.SubjectID).Msg("account sync failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:      audit.EventAccountSync,
		OwnerID:   grant.SubjectID,
		AccountID: result.ExternalID,
		Details:   map[string]interface{}{"isNew": result.IsNew, "tokenStatus": string(result.TokenStatus)},
	})

	writeJSON(w, http.StatusOK, result)
}

// GET /accounts
//
// Read-only listing for the admin app. Credential material never leaves the
// database here; the model's json tags keep blobs and tokens out of the wire.
func (h *AccountHandler) List(w http.ResponseWriter, r *http.Request) {
	owner := middleware.GetOwner(r.Context())
	if owner == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Owner authentication required"})
		return
	}

	params := ParsePagination(r)

	accounts, total, err := h.syncService.ListAccounts(r.Context(), owner.ID, params.Limit, params.Offset)
	if err != nil {
		log.Error().Err(err).Str("ownerId", owner.ID).Msg("failed to list accounts")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"accounts": accounts,
		"total":    total,
		"limit":    params.Limit,
		"offset":   params.Offset,
	})
}
