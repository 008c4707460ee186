package authorization

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tdeslauriers/portability/internal/util"
	"github.com/tdeslauriers/portability/pkg/data"
)

// Repository persists authorization records.  Records are never deleted.
type Repository interface {
	// Create persists a new record and its resource states.
	Create(ctx context.Context, record *Record) error

	// ReadLatest returns the most recently created record for userId.
	ReadLatest(ctx context.Context, userId string) (*Record, error)

	// Update writes the record's token, retirement and reset fields.  Resource
	// states are merged forward only; a stale record never moves a resource back.
	Update(ctx context.Context, userId string, record *Record) error

	// UpdateResourceState moves one resource from -> to, only if it is currently in from.
	UpdateResourceState(ctx context.Context, recordUuid, resource string, from, to ResourceState) error

	// MarkReset stamps the time the provider grant was reset.
	MarkReset(ctx context.Context, recordUuid string, at time.Time) error
}

// NewRepository returns a mysql backed repository.  The access token and the
// authorization code are encrypted at rest with cryptor.
func NewRepository(db *sql.DB, cryptor data.Cryptor) Repository {
	return &repository{
		db:      db,
		cryptor: cryptor,

		logger: slog.Default().
			With(slog.String(util.ComponentKey, util.ComponentRepository)).
			With(slog.String(util.PackageKey, util.PackageAuthorization)).
			With(slog.String(util.ServiceKey, util.ServicePortability)),
	}
}

var _ Repository = (*repository)(nil)

type repository struct {
	db      *sql.DB
	cryptor data.Cryptor

	logger *slog.Logger
}

// recordRow mirrors authorization_record; field order matches the select/insert column order.
type recordRow struct {
	Uuid              string
	UserId            string
	AntiForgeryToken  string
	AuthorizationCode string
	AccessToken       sql.NullString
	ExpiresAt         data.CustomTime
	CreatedAt         data.CustomTime
	Retired           bool
	ResetAt           data.CustomTime
}

// resourceRow mirrors authorization_resource.
type resourceRow struct {
	AuthorizationUuid string
	Resource          string
	State             string
	UpdatedAt         data.CustomTime
}

const (
	insertRecordQuery = `
		INSERT INTO authorization_record (
			uuid, user_id, anti_forgery_token, authorization_code, access_token, expires_at, created_at, retired, reset_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	insertResourceQuery = `
		INSERT INTO authorization_resource (authorization_uuid, resource, state, updated_at)
		VALUES (?, ?, ?, ?)`

	// only ever moves a resource forward
	upsertResourceQuery = `
		INSERT INTO authorization_resource (authorization_uuid, resource, state, updated_at)
		VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			updated_at = IF(FIELD(VALUES(state), 'granted', 'initiated', 'downloaded') > FIELD(state, 'granted', 'initiated', 'downloaded'), VALUES(updated_at), updated_at),
			state = IF(FIELD(VALUES(state), 'granted', 'initiated', 'downloaded') > FIELD(state, 'granted', 'initiated', 'downloaded'), VALUES(state), state)`

	selectLatestQuery = `
		SELECT uuid, user_id, anti_forgery_token, authorization_code, access_token, expires_at, created_at, retired, reset_at
		FROM authorization_record
		WHERE user_id = ?
		ORDER BY id DESC
		LIMIT 1`

	selectResourcesQuery = `
		SELECT authorization_uuid, resource, state, updated_at
		FROM authorization_resource
		WHERE authorization_uuid = ?`

	selectResourceStateQuery = `
		SELECT state
		FROM authorization_resource
		WHERE authorization_uuid = ? AND resource = ?`

	updateRecordQuery = `
		UPDATE authorization_record
		SET access_token = ?, expires_at = ?, retired = ?, reset_at = ?
		WHERE uuid = ? AND user_id = ?`

	updateResourceStateQuery = `
		UPDATE authorization_resource
		SET state = ?, updated_at = ?
		WHERE authorization_uuid = ? AND resource = ? AND state = ?`

	markResetQuery = `
		UPDATE authorization_record
		SET reset_at = ?
		WHERE uuid = ?`
)

func (r *repository) Create(ctx context.Context, record *Record) error {

	row, err := toRecordRow(record, r.cryptor)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := data.InsertRecord(ctx, tx, insertRecordQuery, row); err != nil {
		return fmt.Errorf("failed to insert authorization record %s: %w", record.Uuid, err)
	}

	now := data.CustomTime{Time: time.Now().UTC()}
	for _, res := range toResourceRows(record, now) {
		if err := data.InsertRecord(ctx, tx, insertResourceQuery, res); err != nil {
			return fmt.Errorf("failed to insert resource %s for authorization record %s: %w", res.Resource, record.Uuid, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit authorization record %s: %w", record.Uuid, err)
	}

	r.logger.Info("authorization record persisted",
		slog.String("user_id", record.UserId),
		slog.String("record_uuid", record.Uuid))

	return nil
}

func (r *repository) ReadLatest(ctx context.Context, userId string) (*Record, error) {

	row, err := data.SelectOneRecord[recordRow](ctx, r.db, selectLatestQuery, userId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: user %s", ErrRecordNotFound, userId)
		}
		return nil, fmt.Errorf("failed to select latest authorization record for user %s: %w", userId, err)
	}

	resources, err := data.SelectRecords[resourceRow](ctx, r.db, selectResourcesQuery, row.Uuid)
	if err != nil {
		return nil, fmt.Errorf("failed to select resources for authorization record %s: %w", row.Uuid, err)
	}

	return fromRows(row, resources, r.cryptor)
}

func (r *repository) Update(ctx context.Context, userId string, record *Record) error {

	if record.UserId != userId {
		return fmt.Errorf("authorization record %s does not belong to user %s", record.Uuid, userId)
	}

	row, err := toRecordRow(record, r.cryptor)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	expiresAt, _ := row.ExpiresAt.Value()
	resetAt, _ := row.ResetAt.Value()
	affected, err := data.UpdateRecord(ctx, tx, updateRecordQuery, row.AccessToken, expiresAt, row.Retired, resetAt, row.Uuid, userId)
	if err != nil {
		return fmt.Errorf("failed to update authorization record %s: %w", record.Uuid, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrRecordNotFound, record.Uuid)
	}

	now := data.CustomTime{Time: time.Now().UTC()}
	for _, res := range toResourceRows(record, now) {
		if err := data.InsertRecord(ctx, tx, upsertResourceQuery, res); err != nil {
			return fmt.Errorf("failed to upsert resource %s for authorization record %s: %w", res.Resource, record.Uuid, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit authorization record %s: %w", record.Uuid, err)
	}

	return nil
}

func (r *repository) UpdateResourceState(ctx context.Context, recordUuid, resource string, from, to ResourceState) error {

	if !from.CanTransitionTo(to) {
		return fmt.Errorf("%w: %s %s -> %s", ErrInvalidTransition, resource, from, to)
	}

	now, _ := data.CustomTime{Time: time.Now().UTC()}.Value()
	affected, err := data.UpdateRecord(ctx, r.db, updateResourceStateQuery, string(to), now, recordUuid, resource, string(from))
	if err != nil {
		return fmt.Errorf("failed to update resource %s on authorization record %s: %w", resource, recordUuid, err)
	}

	if affected == 1 {
		return nil
	}

	// nothing matched: either the resource is unknown or it is not in from
	var current string
	if err := r.db.QueryRowContext(ctx, selectResourceStateQuery, recordUuid, resource).Scan(&current); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s on authorization record %s", ErrUnknownResource, resource, recordUuid)
		}
		return fmt.Errorf("failed to read resource %s on authorization record %s: %w", resource, recordUuid, err)
	}

	return fmt.Errorf("%w: %s is %s, expected %s", ErrInvalidTransition, resource, current, from)
}

func (r *repository) MarkReset(ctx context.Context, recordUuid string, at time.Time) error {

	resetAt, _ := data.CustomTime{Time: at.UTC()}.Value()
	affected, err := data.UpdateRecord(ctx, r.db, markResetQuery, resetAt, recordUuid)
	if err != nil {
		return fmt.Errorf("failed to mark authorization record %s reset: %w", recordUuid, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrRecordNotFound, recordUuid)
	}

	return nil
}

// toRecordRow encrypts the secret fields of record for storage.
func toRecordRow(record *Record, cryptor data.Cryptor) (recordRow, error) {

	code, err := cryptor.EncryptServiceData(record.Code)
	if err != nil {
		return recordRow{}, fmt.Errorf("failed to encrypt authorization code for record %s: %w", record.Uuid, err)
	}

	row := recordRow{
		Uuid:              record.Uuid,
		UserId:            record.UserId,
		AntiForgeryToken:  record.State,
		AuthorizationCode: code,
		CreatedAt:         data.CustomTime{Time: record.CreatedAt.UTC()},
		Retired:           record.Retired,
		ResetAt:           data.TimeOf(record.ResetAt),
	}

	if record.AccessToken != nil {
		token, err := cryptor.EncryptServiceData(record.AccessToken.Value)
		if err != nil {
			return recordRow{}, fmt.Errorf("failed to encrypt access token for record %s: %w", record.Uuid, err)
		}
		row.AccessToken = sql.NullString{String: token, Valid: true}
		row.ExpiresAt = data.CustomTime{Time: record.AccessToken.ExpiresAt.UTC()}
	}

	return row, nil
}

func toResourceRows(record *Record, now data.CustomTime) []resourceRow {

	var rows []resourceRow
	for _, res := range record.Resources() {
		rows = append(rows, resourceRow{
			AuthorizationUuid: record.Uuid,
			Resource:          res,
			State:             string(record.AccessToken.GrantedResources[res]),
			UpdatedAt:         now,
		})
	}
	return rows
}

// fromRows decrypts and assembles a record from its stored rows.
func fromRows(row recordRow, resources []resourceRow, cryptor data.Cryptor) (*Record, error) {

	code, err := cryptor.DecryptServiceData(row.AuthorizationCode)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt authorization code for record %s: %w", row.Uuid, err)
	}

	record := &Record{
		Uuid:      row.Uuid,
		UserId:    row.UserId,
		State:     row.AntiForgeryToken,
		Code:      code,
		CreatedAt: row.CreatedAt.Time,
		Retired:   row.Retired,
		ResetAt:   row.ResetAt.Ptr(),
	}

	if !row.AccessToken.Valid {
		return record, nil
	}

	token, err := cryptor.DecryptServiceData(row.AccessToken.String)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt access token for record %s: %w", row.Uuid, err)
	}

	granted := make(map[string]ResourceState, len(resources))
	for _, res := range resources {
		state := ResourceState(res.State)
		if !state.Valid() {
			return nil, fmt.Errorf("authorization record %s has resource %s in unknown state %q", row.Uuid, res.Resource, res.State)
		}
		granted[res.Resource] = state
	}

	record.AccessToken = &AccessToken{
		Value:            token,
		ExpiresAt:        row.ExpiresAt.Time,
		GrantedResources: granted,
	}

	return record, nil
}
