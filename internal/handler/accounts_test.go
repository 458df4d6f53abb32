package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/linkforge/credsync-server-go/internal/middleware"
	"github.com/linkforge/credsync-server-go/internal/model"
	"github.com/linkforge/credsync-server-go/internal/repository"
	"github.com/linkforge/credsync-server-go/internal/service"
)

type mockAccountRepo struct {
	mock.Mock
}

func (m *mockAccountRepo) FindByOwnerAndExternalID(ctx context.Context, ownerID, externalID string) (*model.AccountRecord, error) {
	args := m.Called(ctx, ownerID, externalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AccountRecord), args.Error(1)
}

func (m *mockAccountRepo) FindByOwner(ctx context.Context, ownerID string, limit, offset int) ([]model.AccountRecord, error) {
	args := m.Called(ctx, ownerID, limit, offset)
	return args.Get(0).([]model.AccountRecord), args.Error(1)
}

func (m *mockAccountRepo) CountByOwner(ctx context.Context, ownerID string) (int, error) {
	args := m.Called(ctx, ownerID)
	return args.Int(0), args.Error(1)
}

func (m *mockAccountRepo) Upsert(ctx context.Context, params model.UpsertAccountRecordParams) (*model.AccountRecord, bool, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, false, args.Error(2)
	}
	return args.Get(0).(*model.AccountRecord), args.Bool(1), args.Error(2)
}

func (m *mockAccountRepo) MarkUnhealthy(ctx context.Context, ownerID, externalID, message string) error {
	args := m.Called(ctx, ownerID, externalID, message)
	return args.Error(0)
}

func (m *mockAccountRepo) WithTx(tx *sqlx.Tx) repository.AccountRecordRepository {
	return m
}

func grantContext(ownerID string) context.Context {
	return context.WithValue(context.Background(), middleware.GrantContextKey, &model.EphemeralGrant{
		SubjectID:   ownerID,
		DisplayName: "Owner One",
		ExpiresAt:   time.Now().Add(time.Hour),
	})
}

func TestAccountHandler_Sync(t *testing.T) {
	repo := new(mockAccountRepo)
	h := NewAccountHandler(service.NewSyncService(repo))

	record := &model.AccountRecord{
		ExternalID:  "12345",
		OwnerID:     "owner-1",
		DisplayName: "Account A",
		AuthMode:    model.AuthModeCookieOnly,
		TokenStatus: model.TokenStatusCookieOnly,
		IsHealthy:   true,
	}
	repo.On("Upsert", mock.Anything, mock.MatchedBy(func(p model.UpsertAccountRecordParams) bool {
		return p.OwnerID == "owner-1" && p.ExternalID == "12345"
	})).Return(record, true, nil)

	bundle := model.CredentialBundle{
		ExternalID:        "12345",
		DisplayName:       "Account A",
		SessionCookieBlob: "uid=abc; sessionid=def",
		ExtractionMethod:  model.ExtractionCookieOnly,
	}
	body, _ := json.Marshal(bundle)

	req := httptest.NewRequest(http.MethodPost, "/accounts/sync", bytes.NewReader(body))
	req = req.WithContext(grantContext("owner-1"))
	rec := httptest.NewRecorder()

	h.Sync(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var result service.SyncResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "12345", result.ExternalID)
	assert.True(t, result.IsNew)
	repo.AssertExpectations(t)
}

func TestAccountHandler_SyncRejectsBadExternalID(t *testing.T) {
	repo := new(mockAccountRepo)
	h := NewAccountHandler(service.NewSyncService(repo))

	bundle := model.CredentialBundle{
		ExternalID:        "not-numeric",
		SessionCookieBlob: "uid=abc",
		ExtractionMethod:  model.ExtractionCookieOnly,
	}
	body, _ := json.Marshal(bundle)

	req := httptest.NewRequest(http.MethodPost, "/accounts/sync", bytes.NewReader(body))
	req = req.WithContext(grantContext("owner-1"))
	rec := httptest.NewRecorder()

	h.Sync(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	repo.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
}

func TestAccountHandler_SyncWithoutGrant(t *testing.T) {
	repo := new(mockAccountRepo)
	h := NewAccountHandler(service.NewSyncService(repo))

	req := httptest.NewRequest(http.MethodPost, "/accounts/sync", bytes.NewReader([]byte("{}")))
	rec := httptest.NewRecorder()

	h.Sync(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "InvalidToken")
}

func TestAccountHandler_List(t *testing.T) {
	repo := new(mockAccountRepo)
	h := NewAccountHandler(service.NewSyncService(repo))

	accounts := []model.AccountRecord{
		{ExternalID: "111", OwnerID: "owner-1", DisplayName: "A", SessionCookieBlob: "secret-blob"},
		{ExternalID: "222", OwnerID: "owner-1", DisplayName: "B"},
	}
	repo.On("FindByOwner", mock.Anything, "owner-1", DefaultLimit, 0).Return(accounts, nil)
	repo.On("CountByOwner", mock.Anything, "owner-1").Return(2, nil)

	req := httptest.NewRequest(http.MethodGet, "/accounts", nil)
	ctx := context.WithValue(req.Context(), middleware.OwnerContextKey, &model.Owner{ID: "owner-1"})
	req = req.WithContext(ctx)
	rec := httptest.NewRecorder()

	h.List(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Accounts []map[string]any `json:"accounts"`
		Total    int              `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Total)
	require.Len(t, body.Accounts, 2)

	// Credential material stays out of the listing.
	assert.NotContains(t, rec.Body.String(), "secret-blob")
	repo.AssertExpectations(t)
}
