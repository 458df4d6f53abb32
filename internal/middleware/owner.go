package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/linkforge/credsync-server-go/internal/model"
	"github.com/linkforge/credsync-server-go/internal/util"
)

const OwnerContextKey contextKey = "owner"

// OwnerSessionCookie is issued by the surrounding admin application; this
// service only verifies it.
const OwnerSessionCookie = "owner_session"

func GetOwner(ctx context.Context) *model.Owner {
	if owner, ok := ctx.Value(OwnerContextKey).(*model.Owner); ok {
		return owner
	}
	return nil
}

// OwnerAuthenticator resolves the authenticated admin-app principal from a
// request. The admin application owns login; anything it can express as a
// request check plugs in here.
type OwnerAuthenticator interface {
	Authenticate(r *http.Request) (*model.Owner, error)
}

// SignedCookieAuthenticator verifies the HMAC-signed owner session cookie the
// admin app sets: base payload "ownerId|displayName|expiresUnix" followed by
// its hex HMAC-SHA256 signature.
type SignedCookieAuthenticator struct {
	secret string
}

func NewSignedCookieAuthenticator(secret string) *SignedCookieAuthenticator {
	return &SignedCookieAuthenticator{secret: secret}
}

func (a *SignedCookieAuthenticator) Authenticate(r *http.Request) (*model.Owner, error) {
	cookie, err := r.Cookie(OwnerSessionCookie)
	if err != nil {
		return nil, fmt.Errorf("no owner session cookie")
	}

	payload, signature, ok := strings.Cut(cookie.Value, ".")
	if !ok {
		return nil, fmt.Errorf("malformed owner session cookie")
	}
	if !util.ConstantTimeEqual(signature, util.HmacSHA256(a.secret, payload)) {
		return nil, fmt.Errorf("owner session signature mismatch")
	}

	parts := strings.Split(payload, "|")
	if len(parts) != 3 {
		return nil, fmt.Errorf("malformed owner session payload")
	}

	expiresUnix, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("malformed owner session expiry")
	}
	if time.Now().Unix() >= expiresUnix {
		return nil, fmt.Errorf("owner session expired")
	}

	return &model.Owner{ID: parts[0], DisplayName: parts[1]}, nil
}

// SignOwnerSession builds the cookie value the authenticator accepts. The
// admin app uses the same construction on login.
func SignOwnerSession(secret string, owner model.Owner, expiresAt time.Time) string {
	payload := fmt.Sprintf("%s|%s|%d", owner.ID, owner.DisplayName, expiresAt.Unix())
	return payload + "." + util.HmacSHA256(secret, payload)
}

// OwnerAuthMiddleware gates owner-only endpoints (code generation, account
// listing) behind the collaborating admin app's authentication.
type OwnerAuthMiddleware struct {
	authenticator OwnerAuthenticator
}

func NewOwnerAuthMiddleware(authenticator OwnerAuthenticator) *OwnerAuthMiddleware {
	return &OwnerAuthMiddleware{authenticator: authenticator}
}

func (m *OwnerAuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		owner, err := m.authenticator.Authenticate(r)
		if err != nil {
			log.Warn().Err(err).Msg("owner auth failed")
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "Owner authentication required",
			})
			return
		}

		ctx := context.WithValue(r.Context(), OwnerContextKey, owner)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
