package pgrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/invasionlatina/backend/core"
	"github.com/invasionlatina/backend/core/loyalty"
	"github.com/invasionlatina/backend/core/user"
)

const (
	eventCodeColumns = `id, event_id, event_name, code, points_value, is_active, scans_count, created_at, created_by`

	// eventCodesLock serializes the writes that change which event code is active.
	eventCodesLock = 730_001
)

type eventCodeRow struct {
	ID         string    `db:"id"`
	EventID    string    `db:"event_id"`
	EventName  string    `db:"event_name"`
	Code       string    `db:"code"`
	Points     int       `db:"points_value"`
	IsActive   bool      `db:"is_active"`
	ScansCount int       `db:"scans_count"`
	CreatedAt  time.Time `db:"created_at"`
	CreatedBy  string    `db:"created_by"`
}

func (r eventCodeRow) toEventCode() loyalty.EventCode {
	return loyalty.EventCode{
		ID:         r.ID,
		EventID:    r.EventID,
		EventName:  r.EventName,
		Code:       r.Code,
		Points:     r.Points,
		IsActive:   r.IsActive,
		ScansCount: r.ScansCount,
		CreatedAt:  r.CreatedAt.UTC(),
		CreatedBy:  r.CreatedBy,
	}
}

type eventScanRow struct {
	ID           string    `db:"id"`
	CodeID       string    `db:"code_id"`
	UserID       string    `db:"user_id"`
	EventID      string    `db:"event_id"`
	EventName    string    `db:"event_name"`
	PointsEarned int       `db:"points_earned"`
	ScannedAt    time.Time `db:"scanned_at"`
}

func lockEventCodes(ctx context.Context, tx *sqlx.Tx) error {
	_, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, eventCodesLock)
	return errors.Wrap(err, "locking event codes")
}

func deactivateEventCodes(ctx context.Context, tx *sqlx.Tx) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE event_qr_codes SET is_active = FALSE, deactivated_at = $1 WHERE is_active`, core.NowFunc().UTC())
	return errors.Wrap(err, "deactivating event codes")
}

func (repo loyaltyRepository) CreateEventCode(ctx context.Context, c loyalty.EventCode) (loyalty.EventCode, error) {
	var row eventCodeRow
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		if err := lockEventCodes(ctx, tx); err != nil {
			return err
		}
		if err := deactivateEventCodes(ctx, tx); err != nil {
			return err
		}
		err := tx.GetContext(ctx, &row,
			`INSERT INTO event_qr_codes (`+eventCodeColumns+`) VALUES ($1, $2, $3, $4, $5, TRUE, 0, $6, $7)
			RETURNING `+eventCodeColumns,
			c.ID, c.EventID, c.EventName, c.Code, c.Points, c.CreatedAt.UTC(), c.CreatedBy,
		)
		return errors.Wrap(err, "inserting event code")
	})
	if err != nil {
		return loyalty.EventCode{}, err
	}
	return row.toEventCode(), nil
}

func (repo loyaltyRepository) GetActiveEventCode(ctx context.Context) (loyalty.EventCode, error) {
	var row eventCodeRow
	err := repo.db.GetContext(ctx, &row, `SELECT `+eventCodeColumns+` FROM event_qr_codes WHERE is_active`)
	if err != nil {
		return loyalty.EventCode{}, trapNoRowsErr(err, loyalty.ErrEventCodeNotFound, "getting active event code")
	}
	return row.toEventCode(), nil
}

func (repo loyaltyRepository) ToggleEventCode(ctx context.Context, id string) (loyalty.EventCode, error) {
	if _, err := uuid.Parse(id); err != nil {
		return loyalty.EventCode{}, loyalty.ErrEventCodeNotFound
	}
	var row eventCodeRow
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		if err := lockEventCodes(ctx, tx); err != nil {
			return err
		}
		var active bool
		err := tx.GetContext(ctx, &active, `SELECT is_active FROM event_qr_codes WHERE id = $1`, id)
		if err != nil {
			return trapNoRowsErr(err, loyalty.ErrEventCodeNotFound, "getting event code")
		}
		if !active {
			if err = deactivateEventCodes(ctx, tx); err != nil {
				return err
			}
		}
		err = tx.GetContext(ctx, &row,
			`UPDATE event_qr_codes SET is_active = $2::boolean, deactivated_at = CASE WHEN $2::boolean THEN NULL ELSE $3::timestamptz END
			WHERE id = $1
			RETURNING `+eventCodeColumns,
			id, !active, core.NowFunc().UTC(),
		)
		return errors.Wrap(err, "toggling event code")
	})
	if err != nil {
		return loyalty.EventCode{}, err
	}
	return row.toEventCode(), nil
}

func (repo loyaltyRepository) QueryEventCodes(ctx context.Context, limit int) ([]loyalty.EventCode, error) {
	var rows []eventCodeRow
	err := repo.db.SelectContext(ctx, &rows,
		`SELECT `+eventCodeColumns+` FROM event_qr_codes ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "querying event codes")
	}
	codes := make([]loyalty.EventCode, 0, len(rows))
	for _, r := range rows {
		codes = append(codes, r.toEventCode())
	}
	return codes, nil
}

// RecordEventScan increments the scans count first: the update locks the code row, so a code being
// deactivated concurrently is either scanned before or refused. The increment is rolled back with the
// rest when the user already scanned the code.
func (repo loyaltyRepository) RecordEventScan(
	ctx context.Context, code string, s loyalty.EventScan, t loyalty.Transaction,
) (loyalty.EventScan, int, error) {
	var total int
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		var ec eventCodeRow
		err := tx.GetContext(ctx, &ec,
			`UPDATE event_qr_codes SET scans_count = scans_count + 1
			WHERE code = $1 AND is_active
			RETURNING `+eventCodeColumns,
			code,
		)
		if err != nil {
			if errors.Cause(err) != sql.ErrNoRows {
				return errors.Wrap(err, "counting event code scan")
			}
			var exists bool
			if err = tx.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM event_qr_codes WHERE code = $1)`, code); err != nil {
				return errors.Wrap(err, "checking event code")
			}
			if exists {
				return loyalty.ErrEventCodeInactive
			}
			return loyalty.ErrEventCodeNotFound
		}
		s.CodeID, s.EventID, s.EventName, s.PointsEarned = ec.ID, ec.EventID, ec.EventName, ec.Points

		var id string
		err = tx.GetContext(ctx, &id,
			`INSERT INTO event_qr_scans (id, code_id, user_id, event_id, points_earned, scanned_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (code_id, user_id) DO NOTHING
			RETURNING id`,
			s.ID, s.CodeID, s.UserID, s.EventID, s.PointsEarned, s.ScannedAt.UTC(),
		)
		if err != nil {
			return trapNoRowsErr(err, loyalty.ErrAlreadyScanned, "inserting event code scan")
		}

		err = tx.GetContext(ctx, &total,
			`UPDATE users SET loyalty_points = loyalty_points + $2 WHERE id = $1 RETURNING loyalty_points`,
			s.UserID, s.PointsEarned,
		)
		if err != nil {
			return trapNoRowsErr(err, user.ErrNotFound, "crediting points")
		}
		t.Points = s.PointsEarned
		return insertTransaction(ctx, tx, t)
	})
	if err != nil {
		return loyalty.EventScan{}, 0, err
	}
	return s, total, nil
}

func (repo loyaltyRepository) QueryEventScans(ctx context.Context, userID string, limit int) ([]loyalty.EventScan, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return []loyalty.EventScan{}, nil
	}
	var rows []eventScanRow
	err := repo.db.SelectContext(ctx, &rows,
		`SELECT s.id, s.code_id, s.user_id, s.event_id, c.event_name, s.points_earned, s.scanned_at
		FROM event_qr_scans AS s
		JOIN event_qr_codes AS c ON c.id = s.code_id
		WHERE s.user_id = $1
		ORDER BY s.scanned_at DESC
		LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, errors.Wrap(err, "querying event code scans")
	}
	scans := make([]loyalty.EventScan, 0, len(rows))
	for _, r := range rows {
		scans = append(scans, loyalty.EventScan{
			ID:           r.ID,
			CodeID:       r.CodeID,
			UserID:       r.UserID,
			EventID:      r.EventID,
			EventName:    r.EventName,
			PointsEarned: r.PointsEarned,
			ScannedAt:    r.ScannedAt.UTC(),
		})
	}
	return scans, nil
}
