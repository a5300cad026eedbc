package pgrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/invasionlatina/backend/core"
	"github.com/invasionlatina/backend/core/loyalty"
	"github.com/invasionlatina/backend/core/user"
)

const (
	transactionColumns = `id, user_id, points, kind, description, created_at`
	rewardColumns      = `id, user_id, kind, code, points_spent, status, created_at, expires_at, redeemed_at, redeemed_by`
)

type transactionRow struct {
	ID          string    `db:"id"`
	UserID      string    `db:"user_id"`
	Points      int       `db:"points"`
	Kind        string    `db:"kind"`
	Description string    `db:"description"`
	CreatedAt   time.Time `db:"created_at"`
}

type rewardRow struct {
	ID          string    `db:"id"`
	UserID      string    `db:"user_id"`
	Kind        string    `db:"kind"`
	Code        string    `db:"code"`
	PointsSpent int       `db:"points_spent"`
	Status      string    `db:"status"`
	CreatedAt   time.Time `db:"created_at"`
	ExpiresAt   time.Time `db:"expires_at"`
	RedeemedAt  null.Time   `db:"redeemed_at"`
	RedeemedBy  null.String `db:"redeemed_by"`
}

func (r rewardRow) toReward() loyalty.Reward {
	return loyalty.Reward{
		ID:          r.ID,
		UserID:      r.UserID,
		Kind:        r.Kind,
		Code:        r.Code,
		PointsSpent: r.PointsSpent,
		Status:      r.Status,
		CreatedAt:   r.CreatedAt.UTC(),
		ExpiresAt:   r.ExpiresAt.UTC(),
		RedeemedAt:  r.RedeemedAt.Ptr(),
		RedeemedBy:  r.RedeemedBy.String,
	}
}

type loyaltyRepository struct {
	db core.DB
}

var _ loyalty.Repository = (*loyaltyRepository)(nil)

func NewLoyaltyRepository(db core.DB) *loyaltyRepository {
	return &loyaltyRepository{db: db}
}

func insertTransaction(ctx context.Context, tx *sqlx.Tx, t loyalty.Transaction) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO loyalty_transactions (`+transactionColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		t.ID, t.UserID, t.Points, t.Kind, t.Description, t.CreatedAt.UTC(),
	)
	return errors.Wrap(err, "inserting loyalty transaction")
}

// RecordCheckin holds a share lock on the settings row while it writes, so that an event ending
// concurrently waits for the check-in (or the check-in sees the new QR version). The points are only
// credited when the (user_id, event_id, qr_version) row is new.
func (repo loyaltyRepository) RecordCheckin(ctx context.Context, c loyalty.Checkin, t loyalty.Transaction) (int, error) {
	var total int
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		var version int
		err := tx.GetContext(ctx, &version, `SELECT loyalty_qr_version FROM app_settings WHERE id = 1 FOR SHARE`)
		if err != nil {
			return errors.Wrap(err, "locking settings")
		}
		if version != c.QRVersion {
			return loyalty.ErrVersionMismatch
		}

		var id string
		err = tx.GetContext(ctx, &id,
			`INSERT INTO loyalty_checkins (id, user_id, event_id, qr_version, points_earned, checked_in_at, checked_in_by)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (user_id, event_id, qr_version) DO NOTHING
			RETURNING id`,
			c.ID, c.UserID, c.EventID, c.QRVersion, c.PointsEarned, c.CheckedInAt.UTC(), c.CheckedInBy,
		)
		if err != nil {
			return trapNoRowsErr(err, loyalty.ErrAlreadyCheckedIn, "inserting check-in")
		}

		err = tx.GetContext(ctx, &total,
			`UPDATE users SET loyalty_points = loyalty_points + $2 WHERE id = $1 RETURNING loyalty_points`,
			c.UserID, c.PointsEarned,
		)
		if err != nil {
			return trapNoRowsErr(err, user.ErrNotFound, "crediting points")
		}
		return insertTransaction(ctx, tx, t)
	})
	return total, err
}

func (repo loyaltyRepository) ResetCheckin(ctx context.Context, userID, eventID string, t loyalty.Transaction) (int, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return 0, loyalty.ErrCheckinNotFound
	}
	var removed int
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		var points []int
		err := tx.SelectContext(ctx, &points,
			`DELETE FROM loyalty_checkins WHERE user_id = $1 AND event_id = $2 RETURNING points_earned`,
			userID, eventID,
		)
		if err != nil {
			return errors.Wrap(err, "deleting check-ins")
		}
		if len(points) == 0 {
			return loyalty.ErrCheckinNotFound
		}
		for _, p := range points {
			removed += p
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE users SET loyalty_points = GREATEST(loyalty_points - $2, 0) WHERE id = $1`, userID, removed)
		if err != nil {
			return errors.Wrap(err, "debiting points")
		}
		t.Points = -removed
		return insertTransaction(ctx, tx, t)
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

func (repo loyaltyRepository) CountCheckins(ctx context.Context, userID string) (int, error) {
	var n int
	if _, err := uuid.Parse(userID); err != nil {
		return 0, nil
	}
	err := repo.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM loyalty_checkins WHERE user_id = $1`, userID)
	return n, errors.Wrap(err, "counting check-ins")
}

func (repo loyaltyRepository) QueryTransactions(ctx context.Context, userID string, limit int) ([]loyalty.Transaction, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return []loyalty.Transaction{}, nil
	}
	var rows []transactionRow
	err := repo.db.SelectContext(ctx, &rows,
		`SELECT `+transactionColumns+` FROM loyalty_transactions WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, errors.Wrap(err, "querying loyalty transactions")
	}
	txs := make([]loyalty.Transaction, 0, len(rows))
	for _, r := range rows {
		txs = append(txs, loyalty.Transaction{
			ID:          r.ID,
			UserID:      r.UserID,
			Points:      r.Points,
			Kind:        r.Kind,
			Description: r.Description,
			CreatedAt:   r.CreatedAt.UTC(),
		})
	}
	return txs, nil
}

// ClaimReward debits the points with a conditional update, so that two concurrent claims cannot
// both spend the same balance. The update locks the user row: concurrent claims of one user reach
// the active reward check one after the other.
func (repo loyaltyRepository) ClaimReward(ctx context.Context, r loyalty.Reward, t loyalty.Transaction) (int, error) {
	var remaining int
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		err := tx.GetContext(ctx, &remaining,
			`UPDATE users SET loyalty_points = loyalty_points - $2
			WHERE id = $1 AND loyalty_points >= $2
			RETURNING loyalty_points`,
			r.UserID, r.PointsSpent,
		)
		if err != nil {
			return trapNoRowsErr(err, loyalty.ErrInsufficientPoints, "debiting points")
		}

		var active bool
		err = tx.GetContext(ctx, &active,
			`SELECT EXISTS (
				SELECT 1 FROM loyalty_rewards WHERE user_id = $1 AND status = 'active' AND expires_at > $2
			)`,
			r.UserID, r.CreatedAt.UTC(),
		)
		if err != nil {
			return errors.Wrap(err, "checking active rewards")
		}
		if active {
			return loyalty.ErrActiveReward
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO loyalty_rewards (`+rewardColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			r.ID, r.UserID, r.Kind, r.Code, r.PointsSpent, r.Status, r.CreatedAt.UTC(), r.ExpiresAt.UTC(),
			null.TimeFromPtr(r.RedeemedAt), null.NewString(r.RedeemedBy, r.RedeemedBy != ""),
		)
		if err != nil {
			return errors.Wrap(err, "inserting reward")
		}
		return insertTransaction(ctx, tx, t)
	})
	return remaining, err
}

func (repo loyaltyRepository) QueryRewards(ctx context.Context, userID string) ([]loyalty.Reward, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return []loyalty.Reward{}, nil
	}
	var rows []rewardRow
	err := repo.db.SelectContext(ctx, &rows,
		`SELECT `+rewardColumns+` FROM loyalty_rewards WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, errors.Wrap(err, "querying rewards")
	}
	rewards := make([]loyalty.Reward, 0, len(rows))
	for _, r := range rows {
		rewards = append(rewards, r.toReward())
	}
	return rewards, nil
}

// RedeemReward only updates a usable reward; when nothing is updated, the current state of the code
// tells why.
func (repo loyaltyRepository) RedeemReward(ctx context.Context, code string, now time.Time, by string) (loyalty.Reward, error) {
	var row rewardRow
	err := repo.db.GetContext(ctx, &row,
		`UPDATE loyalty_rewards SET status = 'redeemed', redeemed_at = $2, redeemed_by = $3
		WHERE code = $1 AND status = 'active' AND expires_at > $2
		RETURNING `+rewardColumns,
		code, now.UTC(), by,
	)
	if err == nil {
		return row.toReward(), nil
	}
	if errors.Cause(err) != sql.ErrNoRows {
		return loyalty.Reward{}, errors.Wrap(err, "redeeming reward")
	}

	var status string
	err = repo.db.GetContext(ctx, &status, `SELECT status FROM loyalty_rewards WHERE code = $1`, code)
	if err != nil {
		return loyalty.Reward{}, trapNoRowsErr(err, loyalty.ErrRewardNotFound, "getting reward status")
	}
	if status == loyalty.RewardRedeemed {
		return loyalty.Reward{}, loyalty.ErrRewardRedeemed
	}
	return loyalty.Reward{}, loyalty.ErrRewardExpired
}

func (repo loyaltyRepository) ExpireRewards(ctx context.Context, now time.Time) (int, error) {
	res, err := repo.db.ExecContext(ctx,
		`UPDATE loyalty_rewards SET status = 'expired' WHERE status = 'active' AND expires_at < $1`, now.UTC())
	if err != nil {
		return 0, errors.Wrap(err, "expiring rewards")
	}
	n, err := res.RowsAffected()
	return int(n), errors.Wrap(err, "counting expired rewards")
}
