package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/linkforge/credsync-server-go/internal/model"
)

type AccountRecordRepository interface {
	FindByOwnerAndExternalID(ctx context.Context, ownerID, externalID string) (*model.AccountRecord, error)
	FindByOwner(ctx context.Context, ownerID string, limit, offset int) ([]model.AccountRecord, error)
	CountByOwner(ctx context.Context, ownerID string) (int, error)
	// Upsert creates or merges the record keyed by (owner_id, external_id) in
	// a single statement; the bool result reports whether a new row was
	// inserted. Nil optional fields leave the stored values untouched.
	Upsert(ctx context.Context, params model.UpsertAccountRecordParams) (*model.AccountRecord, bool, error)
	MarkUnhealthy(ctx context.Context, ownerID, externalID, message string) error
	// WithTx returns a new repository that uses the given transaction
	WithTx(tx *sqlx.Tx) AccountRecordRepository
}

type accountRecordRepo struct {
	db sqlxDB
}

// sqlxDB is an interface satisfied by both *sqlx.DB and *sqlx.Tx
type sqlxDB interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func NewAccountRecordRepository(db *sqlx.DB) AccountRecordRepository {
	return &accountRecordRepo{db: db}
}

func (r *accountRecordRepo) WithTx(tx *sqlx.Tx) AccountRecordRepository {
	return &accountRecordRepo{db: tx}
}

func (r *accountRecordRepo) FindByOwnerAndExternalID(ctx context.Context, ownerID, externalID string) (*model.AccountRecord, error) {
	var record model.AccountRecord
	err := r.db.GetContext(ctx, &record, `
		SELECT * FROM account_records
		WHERE owner_id = $1 AND external_id = $2
	`, ownerID, externalID)
	return HandleNotFound(&record, err)
}

func (r *accountRecordRepo) FindByOwner(ctx context.Context, ownerID string, limit, offset int) ([]model.AccountRecord, error) {
	var records []model.AccountRecord
	err := r.db.SelectContext(ctx, &records, `
		SELECT * FROM account_records
		WHERE owner_id = $1
		ORDER BY last_sync_at DESC
		LIMIT $2 OFFSET $3
	`, ownerID, limit, offset)
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (r *accountRecordRepo) CountByOwner(ctx context.Context, ownerID string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM account_records WHERE owner_id = $1
	`, ownerID)
	return count, err
}

// upsertRow carries the xmax-derived insert flag alongside the record.
type upsertRow struct {
	model.AccountRecord
	IsNew bool `db:"is_new"`
}

// Upsert merges in one statement so concurrent syncs of the same key
// serialize inside Postgres. On conflict, auth_mode and token_status are
// recomputed from the post-merge access token (the CASE mirrors
// service.ClassifyAuthMode): a bundle without a token must not downgrade the
// classification of a token it leaves in place.
func (r *accountRecordRepo) Upsert(ctx context.Context, params model.UpsertAccountRecordParams) (*model.AccountRecord, bool, error) {
	var row upsertRow
	err := r.db.GetContext(ctx, &row, `
		INSERT INTO account_records (
			external_id, owner_id, display_name, session_cookie_blob,
			access_token, csrf_token, secondary_tokens, device_fingerprint,
			auth_mode, token_status, is_healthy, last_error, last_error_at,
			sync_source, last_sync_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, TRUE, NULL, NULL, $11, NOW())
		ON CONFLICT (owner_id, external_id) DO UPDATE SET
			display_name        = COALESCE(NULLIF(EXCLUDED.display_name, ''), account_records.display_name),
			session_cookie_blob = EXCLUDED.session_cookie_blob,
			access_token        = COALESCE(EXCLUDED.access_token, account_records.access_token),
			csrf_token          = COALESCE(EXCLUDED.csrf_token, account_records.csrf_token),
			secondary_tokens    = COALESCE(EXCLUDED.secondary_tokens, account_records.secondary_tokens),
			device_fingerprint  = COALESCE(EXCLUDED.device_fingerprint, account_records.device_fingerprint),
			auth_mode           = CASE
				WHEN COALESCE(EXCLUDED.access_token, account_records.access_token) LIKE 'act.%'
					AND length(COALESCE(EXCLUDED.access_token, account_records.access_token)) > 100
					AND strpos(COALESCE(EXCLUDED.access_token, account_records.access_token), ':') = 0
				THEN 'oauth' ELSE 'cookie_only' END,
			token_status        = CASE
				WHEN COALESCE(EXCLUDED.access_token, account_records.access_token) LIKE 'act.%'
					AND length(COALESCE(EXCLUDED.access_token, account_records.access_token)) > 100
					AND strpos(COALESCE(EXCLUDED.access_token, account_records.access_token), ':') = 0
				THEN 'valid' ELSE 'cookie_only' END,
			is_healthy          = TRUE,
			last_error          = NULL,
			last_error_at       = NULL,
			sync_source         = EXCLUDED.sync_source,
			last_sync_at        = NOW(),
			updated_at          = NOW()
		RETURNING *, (xmax = 0) AS is_new
	`,
		params.ExternalID, params.OwnerID, params.DisplayName, params.SessionCookieBlob,
		params.AccessToken, params.CSRFToken, params.SecondaryTokens, params.DeviceFingerprint,
		params.AuthMode, params.TokenStatus, params.SyncSource,
	)
	if err != nil {
		return nil, false, err
	}
	return &row.AccountRecord, row.IsNew, nil
}

func (r *accountRecordRepo) MarkUnhealthy(ctx context.Context, ownerID, externalID, message string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE account_records SET
			is_healthy    = FALSE,
			last_error    = $3,
			last_error_at = $4,
			updated_at    = $4
		WHERE owner_id = $1 AND external_id = $2
	`, ownerID, externalID, message, time.Now())
	return err
}
