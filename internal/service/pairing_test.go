package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linkforge/credsync-server-go/internal/cache"
	apperrors "github.com/linkforge/credsync-server-go/internal/errors"
	"github.com/linkforge/credsync-server-go/internal/model"
	"github.com/linkforge/credsync-server-go/internal/util"
)

func newTestPairingService() (*PairingService, *cache.MemoryStore) {
	store := cache.NewMemoryStore()
	svc := NewPairingService(store, "https://admin.example.com", 5*time.Minute, 10*time.Minute, time.Hour)
	return svc, store
}

func testOwner() model.Owner {
	return model.Owner{ID: "u1", DisplayName: "Owner One"}
}

func TestGenerateCode(t *testing.T) {
	ctx := context.Background()

	t.Run("returns 64 hex character code with 300 second expiry", func(t *testing.T) {
		svc, _ := newTestPairingService()

		result, err := svc.GenerateCode(ctx, testOwner())
		require.NoError(t, err)
		assert.Len(t, result.Code, 64)
		assert.True(t, util.IsWellFormedToken(result.Code))
		assert.Equal(t, 300, result.ExpiresInSeconds)
		assert.Equal(t, "https://admin.example.com/pair?code="+result.Code, result.PairingURL)
	})

	t.Run("codes are unique per call", func(t *testing.T) {
		svc, _ := newTestPairingService()
		r1, err := svc.GenerateCode(ctx, testOwner())
		require.NoError(t, err)
		r2, err := svc.GenerateCode(ctx, testOwner())
		require.NoError(t, err)
		assert.NotEqual(t, r1.Code, r2.Code)
	})
}

func TestClaim(t *testing.T) {
	ctx := context.Background()

	t.Run("immediate claim succeeds once, second returns AlreadyUsed", func(t *testing.T) {
		svc, _ := newTestPairingService()
		gen, err := svc.GenerateCode(ctx, testOwner())
		require.NoError(t, err)

		claim, err := svc.Claim(ctx, gen.Code)
		require.NoError(t, err)
		assert.Equal(t, "u1", claim.OwnerID)
		assert.Equal(t, "Owner One", claim.OwnerDisplayName)
		assert.Len(t, claim.EphemeralToken, 64)
		assert.WithinDuration(t, time.Now().Add(time.Hour), claim.EphemeralExpiresAt, 2*time.Second)

		_, err = svc.Claim(ctx, gen.Code)
		assert.Equal(t, apperrors.ErrCodePairingAlreadyUsed, apperrors.GetCode(err))
	})

	t.Run("unknown code returns NotFound", func(t *testing.T) {
		svc, _ := newTestPairingService()
		code, _ := util.GenerateToken()

		_, err := svc.Claim(ctx, code)
		assert.Equal(t, apperrors.ErrCodePairingNotFound, apperrors.GetCode(err))
	})

	t.Run("claim 301 seconds after generation returns Expired", func(t *testing.T) {
		svc, _ := newTestPairingService()
		gen, err := svc.GenerateCode(ctx, testOwner())
		require.NoError(t, err)

		svc.now = func() time.Time { return time.Now().Add(301 * time.Second) }
		_, err = svc.Claim(ctx, gen.Code)
		assert.Equal(t, apperrors.ErrCodePairingExpired, apperrors.GetCode(err))
	})

	t.Run("expired claim does not consume the code", func(t *testing.T) {
		svc, _ := newTestPairingService()
		gen, err := svc.GenerateCode(ctx, testOwner())
		require.NoError(t, err)

		svc.now = func() time.Time { return time.Now().Add(301 * time.Second) }
		_, err = svc.Claim(ctx, gen.Code)
		require.Equal(t, apperrors.ErrCodePairingExpired, apperrors.GetCode(err))

		// Still Expired on repeat, not AlreadyUsed.
		_, err = svc.Claim(ctx, gen.Code)
		assert.Equal(t, apperrors.ErrCodePairingExpired, apperrors.GetCode(err))
	})

	t.Run("expiry landing mid-claim never reads as completed", func(t *testing.T) {
		svc, _ := newTestPairingService()
		gen, err := svc.GenerateCode(ctx, testOwner())
		require.NoError(t, err)

		// First clock read (the pre-check) sees a live code, every later one
		// sees it expired, which forces the claim down the post-stamp branch.
		calls := 0
		svc.now = func() time.Time {
			calls++
			if calls == 1 {
				return time.Now()
			}
			return time.Now().Add(301 * time.Second)
		}

		_, err = svc.Claim(ctx, gen.Code)
		require.Equal(t, apperrors.ErrCodePairingExpired, apperrors.GetCode(err))

		// The stamped-but-denied entry is dropped, so a retry sees an absent
		// code rather than AlreadyUsed.
		_, err = svc.Claim(ctx, gen.Code)
		assert.Equal(t, apperrors.ErrCodePairingNotFound, apperrors.GetCode(err))

		// And pollers never observe a completion that did not happen.
		status, err := svc.PollStatus(ctx, gen.Code)
		require.NoError(t, err)
		assert.False(t, status.Completed)
		assert.True(t, status.Expired)
	})
}

func TestPollStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("fresh code is neither completed nor expired", func(t *testing.T) {
		svc, _ := newTestPairingService()
		gen, err := svc.GenerateCode(ctx, testOwner())
		require.NoError(t, err)

		status, err := svc.PollStatus(ctx, gen.Code)
		require.NoError(t, err)
		assert.False(t, status.Completed)
		assert.False(t, status.Expired)
		assert.Nil(t, status.CompletedAt)
	})

	t.Run("unknown code reads as expired", func(t *testing.T) {
		svc, _ := newTestPairingService()
		status, err := svc.PollStatus(ctx, "deadbeef")
		require.NoError(t, err)
		assert.True(t, status.Expired)
		assert.False(t, status.Completed)
	})

	t.Run("claimed code reads as completed with timestamp", func(t *testing.T) {
		svc, _ := newTestPairingService()
		gen, err := svc.GenerateCode(ctx, testOwner())
		require.NoError(t, err)

		_, err = svc.Claim(ctx, gen.Code)
		require.NoError(t, err)

		status, err := svc.PollStatus(ctx, gen.Code)
		require.NoError(t, err)
		assert.True(t, status.Completed)
		require.NotNil(t, status.CompletedAt)
		assert.WithinDuration(t, time.Now(), *status.CompletedAt, time.Second)
	})

	t.Run("code past logical expiry reads as expired while retained", func(t *testing.T) {
		svc, _ := newTestPairingService()
		gen, err := svc.GenerateCode(ctx, testOwner())
		require.NoError(t, err)

		svc.now = func() time.Time { return time.Now().Add(6 * time.Minute) }
		status, err := svc.PollStatus(ctx, gen.Code)
		require.NoError(t, err)
		assert.True(t, status.Expired)
	})
}

func TestEphemeralTokens(t *testing.T) {
	ctx := context.Background()

	t.Run("claimed token resolves repeatedly until invalidated", func(t *testing.T) {
		svc, _ := newTestPairingService()
		gen, err := svc.GenerateCode(ctx, testOwner())
		require.NoError(t, err)
		claim, err := svc.Claim(ctx, gen.Code)
		require.NoError(t, err)

		// Resolving is a read, one owner may sync several accounts.
		for i := 0; i < 3; i++ {
			grant, err := svc.ResolveToken(ctx, claim.EphemeralToken)
			require.NoError(t, err)
			assert.Equal(t, "u1", grant.SubjectID)
		}

		require.NoError(t, svc.InvalidateToken(ctx, claim.EphemeralToken))
		_, err = svc.ResolveToken(ctx, claim.EphemeralToken)
		assert.Equal(t, apperrors.ErrCodeInvalidToken, apperrors.GetCode(err))
	})

	t.Run("malformed token is rejected without store lookup", func(t *testing.T) {
		svc, _ := newTestPairingService()
		_, err := svc.ResolveToken(ctx, "not-a-token")
		assert.Equal(t, apperrors.ErrCodeInvalidToken, apperrors.GetCode(err))
	})

	t.Run("token past expiry is rejected", func(t *testing.T) {
		svc, _ := newTestPairingService()
		gen, err := svc.GenerateCode(ctx, testOwner())
		require.NoError(t, err)
		claim, err := svc.Claim(ctx, gen.Code)
		require.NoError(t, err)

		svc.now = func() time.Time { return time.Now().Add(61 * time.Minute) }
		_, err = svc.ResolveToken(ctx, claim.EphemeralToken)
		assert.Equal(t, apperrors.ErrCodeInvalidToken, apperrors.GetCode(err))
	})
}
