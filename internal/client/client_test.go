package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linkforge/credsync-server-go/internal/model"
	"github.com/linkforge/credsync-server-go/internal/service"
)

func TestClient_Claim(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/pairing/codes/abc123/claim", r.URL.Path)

		json.NewEncoder(w).Encode(service.ClaimResult{
			OwnerID:          "owner-1",
			OwnerDisplayName: "Owner One",
			EphemeralToken:   "token-value",
		})
	}))
	defer server.Close()

	result, err := New(server.URL).Claim(context.Background(), "abc123")
	require.NoError(t, err)
	assert.Equal(t, "owner-1", result.OwnerID)
	assert.Equal(t, "token-value", result.EphemeralToken)
}

func TestClient_ClaimDenied(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"error": "AlreadyUsed"})
	}))
	defer server.Close()

	_, err := New(server.URL).Claim(context.Background(), "abc123")
	require.Error(t, err)

	var denial *ClaimDenialError
	require.ErrorAs(t, err, &denial)
	assert.Equal(t, "AlreadyUsed", denial.Reason)
}

func TestClient_Sync(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/accounts/sync", r.URL.Path)
		assert.Equal(t, "tok", r.Header.Get(HarvestTokenHeader))

		var bundle model.CredentialBundle
		if assert.NoError(t, json.NewDecoder(r.Body).Decode(&bundle)) {
			assert.Equal(t, "12345", bundle.ExternalID)
		}

		json.NewEncoder(w).Encode(service.SyncResult{
			ExternalID:  bundle.ExternalID,
			TokenStatus: model.TokenStatusCookieOnly,
			IsNew:       true,
		})
	}))
	defer server.Close()

	result, err := New(server.URL).Sync(context.Background(), "tok", model.CredentialBundle{
		ExternalID:        "12345",
		SessionCookieBlob: "uid=a",
		ExtractionMethod:  model.ExtractionCookieOnly,
	})
	require.NoError(t, err)
	assert.True(t, result.IsNew)
}

func TestClient_SyncServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := New(server.URL).Sync(context.Background(), "tok", model.CredentialBundle{})
	assert.Error(t, err)
}
