package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	apperrors "github.com/linkforge/credsync-server-go/internal/errors"
	"github.com/linkforge/credsync-server-go/internal/model"
	"github.com/linkforge/credsync-server-go/internal/service"
)

type contextKey string

const GrantContextKey contextKey = "grant"

// HarvestTokenHeader carries the ephemeral token the collector received from
// a successful claim.
const HarvestTokenHeader = "X-Harvest-Token"

func GetGrant(ctx context.Context) *model.EphemeralGrant {
	if grant, ok := ctx.Value(GrantContextKey).(*model.EphemeralGrant); ok {
		return grant
	}
	return nil
}

// EphemeralAuthMiddleware gates sync calls behind a live ephemeral token.
type EphemeralAuthMiddleware struct {
	pairing *service.PairingService
}

func NewEphemeralAuthMiddleware(pairing *service.PairingService) *EphemeralAuthMiddleware {
	return &EphemeralAuthMiddleware{pairing: pairing}
}

func (m *EphemeralAuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractToken(r)
		if token == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "InvalidToken",
			})
			return
		}

		grant, err := m.pairing.ResolveToken(r.Context(), token)
		if err != nil {
			if code := apperrors.GetCode(err); code != apperrors.ErrCodeInvalidToken {
				log.Error().Err(err).Msg("ephemeral auth: token resolution error")
				writeJSON(w, http.StatusInternalServerError, map[string]string{
					"error": "Authentication failed",
				})
				return
			}
			log.Warn().Msg("ephemeral auth: invalid token attempt")
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "InvalidToken",
			})
			return
		}

		ctx := context.WithValue(r.Context(), GrantContextKey, grant)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func extractToken(r *http.Request) string {
	if token := r.Header.Get(HarvestTokenHeader); token != "" {
		return token
	}

	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}

	return ""
}
