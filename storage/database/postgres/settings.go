package pgrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/invasionlatina/backend/core"
	"github.com/invasionlatina/backend/core/settings"
)

const settingsColumns = `requests_enabled, current_event_id, loyalty_qr_version, updated_at, updated_by`


type settingsRow struct {
	RequestsEnabled bool        `db:"requests_enabled"`
	CurrentEventID  null.String `db:"current_event_id"`
	QRVersion       int         `db:"loyalty_qr_version"`
	UpdatedAt       time.Time   `db:"updated_at"`
	UpdatedBy       string      `db:"updated_by"`
}

func (r settingsRow) toSettings() settings.Settings {
	return settings.Settings{
		RequestsEnabled: r.RequestsEnabled,
		CurrentEventID:  r.CurrentEventID.String,
		QRVersion:       r.QRVersion,
		UpdatedAt:       r.UpdatedAt.UTC(),
		UpdatedBy:       r.UpdatedBy,
	}
}

// settingsRepository works on the single app_settings row (id = 1) seeded by the migrations.
// Each method is one statement or one transaction holding the row lock: concurrent admin actions
// never overwrite each other.
type settingsRepository struct {
	db core.DB
}

var _ settings.Repository = (*settingsRepository)(nil)

func NewSettingsRepository(db core.DB) *settingsRepository {
	return &settingsRepository{db: db}
}

func (repo settingsRepository) get(ctx context.Context, q, msg string, args ...interface{}) (settings.Settings, error) {
	var row settingsRow
	if err := repo.db.GetContext(ctx, &row, q, args...); err != nil {
		return settings.Settings{}, errors.Wrap(err, msg)
	}
	return row.toSettings(), nil
}

func (repo settingsRepository) GetSettings(ctx context.Context) (settings.Settings, error) {
	return repo.get(ctx, `SELECT `+settingsColumns+` FROM app_settings WHERE id = 1`, "getting settings")
}

func (repo settingsRepository) ToggleRequests(ctx context.Context, by string) (settings.Settings, error) {
	q := `UPDATE app_settings SET requests_enabled = NOT requests_enabled, updated_at = $1, updated_by = $2
		WHERE id = 1
		RETURNING ` + settingsColumns
	return repo.get(ctx, q, "toggling requests", core.NowFunc(), by)
}

func (repo settingsRepository) StartEvent(ctx context.Context, eventID, by string) (settings.Settings, error) {
	q := `UPDATE app_settings SET requests_enabled = TRUE, current_event_id = $1, updated_at = $2, updated_by = $3
		WHERE id = 1
		RETURNING ` + settingsColumns
	return repo.get(ctx, q, "starting event", eventID, core.NowFunc(), by)
}

// EndEvent locks the row before reading the running event, so that two concurrent calls report the
// event each of them actually ended.
func (repo settingsRepository) EndEvent(ctx context.Context, by string) (settings.Settings, string, error) {
	var (
		row      settingsRow
		previous null.String
	)
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		err := tx.GetContext(ctx, &previous, `SELECT current_event_id FROM app_settings WHERE id = 1 FOR UPDATE`)
		if err != nil {
			return errors.Wrap(err, "locking settings")
		}
		err = tx.GetContext(ctx, &row,
			`UPDATE app_settings
			SET requests_enabled = FALSE, current_event_id = NULL, loyalty_qr_version = loyalty_qr_version + 1,
				updated_at = $1, updated_by = $2
			WHERE id = 1
			RETURNING `+settingsColumns,
			core.NowFunc(), by,
		)
		return errors.Wrap(err, "ending event")
	})
	if err != nil {
		return settings.Settings{}, "", err
	}
	return row.toSettings(), previous.String, nil
}
