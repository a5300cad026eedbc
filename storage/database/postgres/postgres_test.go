package pgrepos

import (
	"context"
	"database/sql/driver"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invasionlatina/backend/core/loyalty"
	"github.com/invasionlatina/backend/core/song"
	"github.com/invasionlatina/backend/core/ticket"
	"github.com/invasionlatina/backend/core/user"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

func columns(list string) []string {
	cols := strings.Split(list, ",")
	for i := range cols {
		cols[i] = strings.TrimSpace(cols[i])
	}
	return cols
}

func songValues(id string, requesters, voters string, status string) []driver.Value {
	votes := len(strings.Split(strings.Trim(voters, "{}"), ","))
	times := len(strings.Split(strings.Trim(requesters, "{}"), ","))
	return []driver.Value{
		id, "evt", "u1", "Alice", "Despacito", "Luis Fonsi", "despacito", "luis fonsi",
		requesters, voters, votes, times, status, nil, nil, nil, time.Now(), nil,
	}
}

func TestSongRepository_SubmitPending(t *testing.T) {
	ctx := context.Background()
	id := uuid.New().String()
	req := song.Request{
		ID:                   id,
		EventID:              "evt",
		UserID:               "u2",
		UserName:             "Bob",
		SongTitle:            " despacito ",
		ArtistName:           "LUIS FONSI",
		SongTitleNormalized:  "despacito",
		ArtistNameNormalized: "luis fonsi",
		Requesters:           []string{"u2"},
		Voters:               []string{"u2"},
		Votes:                1,
		TimesRequested:       1,
		Status:               song.StatusPending,
		RequestedAt:          time.Now(),
	}

	t.Run("appended to the pending request", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewSongRepository(db)

		rows := sqlmock.NewRows(append(columns(songColumns), "inserted")).
			AddRow(append(songValues(uuid.New().String(), "{u1,u2}", "{u1,u2}", "pending"), false)...)
		mock.ExpectQuery(`INSERT INTO song_requests .* ON CONFLICT .* WHERE status = 'pending'`).
			WithArgs(id, "evt", "u2", "Bob", " despacito ", "LUIS FONSI", "despacito", "luis fonsi",
				sqlmock.AnyArg(), sqlmock.AnyArg(), 1, 1, sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnRows(rows)

		got, created, err := repo.SubmitPending(ctx, req)
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, 2, got.TimesRequested)
		assert.Equal(t, 2, got.Votes)
		assert.Equal(t, []string{"u1", "u2"}, got.Requesters)
		assert.Equal(t, song.StatusPending, got.Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("already requested", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewSongRepository(db)

		mock.ExpectQuery(`INSERT INTO song_requests`).
			WillReturnRows(sqlmock.NewRows(append(columns(songColumns), "inserted")))

		_, _, err := repo.SubmitPending(ctx, req)
		assert.Equal(t, song.ErrDuplicateRequest, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSongRepository_AddVote(t *testing.T) {
	ctx := context.Background()
	id := uuid.New().String()
	stateCols := []string{"status", "voted"}

	tests := []struct {
		name    string
		state   *sqlmock.Rows
		wantErr error
	}{
		{name: "unknown request", state: sqlmock.NewRows(stateCols), wantErr: song.ErrNotFound},
		{name: "moderated request", state: sqlmock.NewRows(stateCols).AddRow("played", false), wantErr: song.ErrInvalidState},
		{name: "second vote", state: sqlmock.NewRows(stateCols).AddRow("pending", true), wantErr: song.ErrAlreadyVoted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMock(t)
			repo := NewSongRepository(db)

			mock.ExpectQuery(`UPDATE song_requests\s+SET votes = votes \+ 1`).
				WithArgs(id, "u3").
				WillReturnRows(sqlmock.NewRows(columns(songColumns)))
			mock.ExpectQuery(`SELECT status, .* AS voted FROM song_requests`).
				WithArgs(id, "u3").
				WillReturnRows(tt.state)

			_, err := repo.AddVote(ctx, id, "u3")
			assert.Equal(t, tt.wantErr, err)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}

	t.Run("vote recorded", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewSongRepository(db)

		mock.ExpectQuery(`UPDATE song_requests\s+SET votes = votes \+ 1`).
			WithArgs(id, "u3").
			WillReturnRows(sqlmock.NewRows(columns(songColumns)).AddRow(songValues(id, "{u1}", "{u1,u3}", "pending")...))

		got, err := repo.AddVote(ctx, id, "u3")
		require.NoError(t, err)
		assert.Equal(t, 2, got.Votes)
		assert.True(t, got.HasVoted("u3"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("malformed id", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewSongRepository(db)

		_, err := repo.AddVote(ctx, "nope", "u3")
		assert.Equal(t, song.ErrNotFound, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSongRepository_Moderate(t *testing.T) {
	ctx := context.Background()
	id := uuid.New().String()

	t.Run("already moderated", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewSongRepository(db)

		mock.ExpectQuery(`UPDATE song_requests\s+SET status = \$2`).
			WillReturnRows(sqlmock.NewRows(columns(songColumns)))
		mock.ExpectQuery(`SELECT EXISTS`).WithArgs(id).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

		_, err := repo.Moderate(ctx, id, song.Moderation{Status: song.StatusPlayed, At: time.Now()})
		assert.Equal(t, song.ErrAlreadyModerated, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown request", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewSongRepository(db)

		mock.ExpectQuery(`UPDATE song_requests\s+SET status = \$2`).
			WillReturnRows(sqlmock.NewRows(columns(songColumns)))
		mock.ExpectQuery(`SELECT EXISTS`).WithArgs(id).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

		_, err := repo.Moderate(ctx, id, song.Moderation{Status: song.StatusPlayed, At: time.Now()})
		assert.Equal(t, song.ErrNotFound, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSongRepository_DeleteRequests(t *testing.T) {
	db, mock := newMock(t)
	repo := NewSongRepository(db)

	mock.ExpectExec(`DELETE FROM song_requests WHERE \(NOT \$1 OR status = 'pending'\)`).
		WithArgs(true).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.DeleteRequests(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSettingsRepository_EndEvent(t *testing.T) {
	db, mock := newMock(t)
	repo := NewSettingsRepository(db)

	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT current_event_id FROM app_settings WHERE id = 1 FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"current_event_id"}).AddRow("evt-1"))
	mock.ExpectQuery(`UPDATE app_settings\s+SET .* loyalty_qr_version = loyalty_qr_version \+ 1`).
		WithArgs(sqlmock.AnyArg(), "admin-id").
		WillReturnRows(sqlmock.NewRows(columns(settingsColumns)).AddRow(false, nil, 4, now, "admin-id"))
	mock.ExpectCommit()

	s, prev, err := repo.EndEvent(context.Background(), "admin-id")
	require.NoError(t, err)
	assert.False(t, s.RequestsEnabled)
	assert.Empty(t, s.CurrentEventID)
	assert.Equal(t, 4, s.QRVersion)
	assert.Equal(t, "evt-1", prev)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSettingsRepository_EndEvent_noRunningEvent(t *testing.T) {
	db, mock := newMock(t)
	repo := NewSettingsRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT current_event_id FROM app_settings WHERE id = 1 FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"current_event_id"}).AddRow(nil))
	mock.ExpectQuery(`UPDATE app_settings`).
		WillReturnRows(sqlmock.NewRows(columns(settingsColumns)).AddRow(false, nil, 2, time.Now(), "admin-id"))
	mock.ExpectCommit()

	s, prev, err := repo.EndEvent(context.Background(), "admin-id")
	require.NoError(t, err)
	assert.Equal(t, 2, s.QRVersion)
	assert.Empty(t, prev)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSettingsRepository_ToggleRequests(t *testing.T) {
	db, mock := newMock(t)
	repo := NewSettingsRepository(db)

	mock.ExpectQuery(`UPDATE app_settings SET requests_enabled = NOT requests_enabled`).
		WithArgs(sqlmock.AnyArg(), "admin-id").
		WillReturnRows(sqlmock.NewRows(columns(settingsColumns)).AddRow(true, "evt-1", 2, time.Now(), "admin-id"))

	s, err := repo.ToggleRequests(context.Background(), "admin-id")
	require.NoError(t, err)
	assert.True(t, s.RequestsEnabled)
	assert.Equal(t, "evt-1", s.CurrentEventID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func versionRow(version int) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"loyalty_qr_version"}).AddRow(version)
}

func TestLoyaltyRepository_RecordCheckin(t *testing.T) {
	ctx := context.Background()
	uid := uuid.New().String()
	c := loyalty.Checkin{
		ID:           uuid.New().String(),
		UserID:       uid,
		EventID:      "evt",
		QRVersion:    3,
		PointsEarned: 5,
		CheckedInAt:  time.Now(),
		CheckedInBy:  "staff",
	}
	tx := loyalty.Transaction{ID: uuid.New().String(), UserID: uid, Points: 5, Kind: loyalty.KindCheckin, CreatedAt: time.Now()}

	t.Run("first scan", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewLoyaltyRepository(db)

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT loyalty_qr_version FROM app_settings WHERE id = 1 FOR SHARE`).
			WillReturnRows(versionRow(3))
		mock.ExpectQuery(`INSERT INTO loyalty_checkins .* ON CONFLICT \(user_id, event_id, qr_version\) DO NOTHING`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(c.ID))
		mock.ExpectQuery(`UPDATE users SET loyalty_points = loyalty_points \+ \$2`).
			WithArgs(uid, 5).
			WillReturnRows(sqlmock.NewRows([]string{"loyalty_points"}).AddRow(15))
		mock.ExpectExec(`INSERT INTO loyalty_transactions`).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		total, err := repo.RecordCheckin(ctx, c, tx)
		require.NoError(t, err)
		assert.Equal(t, 15, total)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("second scan", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewLoyaltyRepository(db)

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT loyalty_qr_version FROM app_settings WHERE id = 1 FOR SHARE`).
			WillReturnRows(versionRow(3))
		mock.ExpectQuery(`INSERT INTO loyalty_checkins`).WillReturnRows(sqlmock.NewRows([]string{"id"}))
		mock.ExpectRollback()

		_, err := repo.RecordCheckin(ctx, c, tx)
		assert.Equal(t, loyalty.ErrAlreadyCheckedIn, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("event ended meanwhile", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewLoyaltyRepository(db)

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT loyalty_qr_version FROM app_settings WHERE id = 1 FOR SHARE`).
			WillReturnRows(versionRow(4))
		mock.ExpectRollback()

		_, err := repo.RecordCheckin(ctx, c, tx)
		assert.Equal(t, loyalty.ErrVersionMismatch, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown user", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewLoyaltyRepository(db)

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT loyalty_qr_version FROM app_settings WHERE id = 1 FOR SHARE`).
			WillReturnRows(versionRow(3))
		mock.ExpectQuery(`INSERT INTO loyalty_checkins`).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(c.ID))
		mock.ExpectQuery(`UPDATE users SET loyalty_points`).WillReturnRows(sqlmock.NewRows([]string{"loyalty_points"}))
		mock.ExpectRollback()

		_, err := repo.RecordCheckin(ctx, c, tx)
		assert.Equal(t, user.ErrNotFound, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestLoyaltyRepository_ClaimReward(t *testing.T) {
	ctx := context.Background()
	uid := uuid.New().String()
	r := loyalty.Reward{
		ID:          uuid.New().String(),
		UserID:      uid,
		Kind:        loyalty.RewardFreeEntry,
		Code:        "IL-ABCDEF12",
		PointsSpent: 25,
		Status:      loyalty.RewardActive,
		CreatedAt:   time.Now(),
		ExpiresAt:   time.Now().Add(time.Hour),
	}
	tx := loyalty.Transaction{ID: uuid.New().String(), UserID: uid, Points: -25, Kind: loyalty.KindReward}

	t.Run("enough points", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewLoyaltyRepository(db)

		mock.ExpectBegin()
		mock.ExpectQuery(`UPDATE users SET loyalty_points = loyalty_points - \$2\s+WHERE id = \$1 AND loyalty_points >= \$2`).
			WithArgs(uid, 25).
			WillReturnRows(sqlmock.NewRows([]string{"loyalty_points"}).AddRow(5))
		mock.ExpectQuery(`SELECT EXISTS \(\s*SELECT 1 FROM loyalty_rewards WHERE user_id = \$1 AND status = 'active'`).
			WithArgs(uid, sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
		mock.ExpectExec(`INSERT INTO loyalty_rewards`).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`INSERT INTO loyalty_transactions`).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		remaining, err := repo.ClaimReward(ctx, r, tx)
		require.NoError(t, err)
		assert.Equal(t, 5, remaining)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not enough points", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewLoyaltyRepository(db)

		mock.ExpectBegin()
		mock.ExpectQuery(`UPDATE users SET loyalty_points = loyalty_points - \$2`).
			WillReturnRows(sqlmock.NewRows([]string{"loyalty_points"}))
		mock.ExpectRollback()

		_, err := repo.ClaimReward(ctx, r, tx)
		assert.Equal(t, loyalty.ErrInsufficientPoints, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("active reward held", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewLoyaltyRepository(db)

		mock.ExpectBegin()
		mock.ExpectQuery(`UPDATE users SET loyalty_points = loyalty_points - \$2`).
			WillReturnRows(sqlmock.NewRows([]string{"loyalty_points"}).AddRow(25))
		mock.ExpectQuery(`SELECT EXISTS`).WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
		mock.ExpectRollback()

		_, err := repo.ClaimReward(ctx, r, tx)
		assert.Equal(t, loyalty.ErrActiveReward, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestLoyaltyRepository_RedeemReward(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	t.Run("redeemed", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewLoyaltyRepository(db)

		rows := sqlmock.NewRows(columns(rewardColumns)).AddRow(
			uuid.New().String(), uuid.New().String(), loyalty.RewardFreeEntry, "IL-ABCDEF12", 25, "redeemed",
			now.Add(-time.Hour), now.Add(time.Hour), now, "door-id",
		)
		mock.ExpectQuery(`UPDATE loyalty_rewards SET status = 'redeemed', redeemed_at = \$2, redeemed_by = \$3\s+WHERE code = \$1 AND status = 'active' AND expires_at > \$2`).
			WithArgs("IL-ABCDEF12", sqlmock.AnyArg(), "door-id").
			WillReturnRows(rows)

		r, err := repo.RedeemReward(ctx, "IL-ABCDEF12", now, "door-id")
		require.NoError(t, err)
		assert.Equal(t, loyalty.RewardRedeemed, r.Status)
		assert.Equal(t, "door-id", r.RedeemedBy)
		require.NotNil(t, r.RedeemedAt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	tests := []struct {
		name    string
		state   *sqlmock.Rows
		wantErr error
	}{
		{name: "unknown code", state: sqlmock.NewRows([]string{"status"}), wantErr: loyalty.ErrRewardNotFound},
		{name: "used twice", state: sqlmock.NewRows([]string{"status"}).AddRow("redeemed"), wantErr: loyalty.ErrRewardRedeemed},
		{name: "expired", state: sqlmock.NewRows([]string{"status"}).AddRow("expired"), wantErr: loyalty.ErrRewardExpired},
		{name: "past expiry date", state: sqlmock.NewRows([]string{"status"}).AddRow("active"), wantErr: loyalty.ErrRewardExpired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMock(t)
			repo := NewLoyaltyRepository(db)

			mock.ExpectQuery(`UPDATE loyalty_rewards SET status = 'redeemed'`).
				WillReturnRows(sqlmock.NewRows(columns(rewardColumns)))
			mock.ExpectQuery(`SELECT status FROM loyalty_rewards WHERE code = \$1`).
				WithArgs("IL-ABCDEF12").
				WillReturnRows(tt.state)

			_, err := repo.RedeemReward(ctx, "IL-ABCDEF12", now, "door-id")
			assert.Equal(t, tt.wantErr, err)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestLoyaltyRepository_RecordEventScan(t *testing.T) {
	ctx := context.Background()
	uid := uuid.New().String()
	codeID := uuid.New().String()
	evtID := uuid.New().String()
	scan := loyalty.EventScan{ID: uuid.New().String(), UserID: uid, ScannedAt: time.Now()}
	tx := loyalty.Transaction{ID: uuid.New().String(), UserID: uid, Kind: loyalty.KindEventScan}
	codeRow := func() *sqlmock.Rows {
		return sqlmock.NewRows(columns(eventCodeColumns)).
			AddRow(codeID, evtID, "Salsa Night", "qr-1", 7, true, 12, time.Now(), "admin-id")
	}

	t.Run("first scan", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewLoyaltyRepository(db)

		mock.ExpectBegin()
		mock.ExpectQuery(`UPDATE event_qr_codes SET scans_count = scans_count \+ 1\s+WHERE code = \$1 AND is_active`).
			WithArgs("qr-1").
			WillReturnRows(codeRow())
		mock.ExpectQuery(`INSERT INTO event_qr_scans .* ON CONFLICT \(code_id, user_id\) DO NOTHING`).
			WithArgs(scan.ID, codeID, uid, evtID, 7, sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(scan.ID))
		mock.ExpectQuery(`UPDATE users SET loyalty_points = loyalty_points \+ \$2`).
			WithArgs(uid, 7).
			WillReturnRows(sqlmock.NewRows([]string{"loyalty_points"}).AddRow(17))
		mock.ExpectExec(`INSERT INTO loyalty_transactions`).
			WithArgs(tx.ID, uid, 7, loyalty.KindEventScan, sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		got, total, err := repo.RecordEventScan(ctx, "qr-1", scan, tx)
		require.NoError(t, err)
		assert.Equal(t, 17, total)
		assert.Equal(t, 7, got.PointsEarned)
		assert.Equal(t, "Salsa Night", got.EventName)
		assert.Equal(t, codeID, got.CodeID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("second scan", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewLoyaltyRepository(db)

		mock.ExpectBegin()
		mock.ExpectQuery(`UPDATE event_qr_codes SET scans_count`).WillReturnRows(codeRow())
		mock.ExpectQuery(`INSERT INTO event_qr_scans`).WillReturnRows(sqlmock.NewRows([]string{"id"}))
		mock.ExpectRollback()

		_, _, err := repo.RecordEventScan(ctx, "qr-1", scan, tx)
		assert.Equal(t, loyalty.ErrAlreadyScanned, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	for name, tc := range map[string]struct {
		exists  bool
		wantErr error
	}{
		"inactive code": {exists: true, wantErr: loyalty.ErrEventCodeInactive},
		"unknown code":  {exists: false, wantErr: loyalty.ErrEventCodeNotFound},
	} {
		t.Run(name, func(t *testing.T) {
			db, mock := newMock(t)
			repo := NewLoyaltyRepository(db)

			mock.ExpectBegin()
			mock.ExpectQuery(`UPDATE event_qr_codes SET scans_count`).
				WillReturnRows(sqlmock.NewRows(columns(eventCodeColumns)))
			mock.ExpectQuery(`SELECT EXISTS \(SELECT 1 FROM event_qr_codes WHERE code = \$1\)`).
				WithArgs("qr-1").
				WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(tc.exists))
			mock.ExpectRollback()

			_, _, err := repo.RecordEventScan(ctx, "qr-1", scan, tx)
			assert.Equal(t, tc.wantErr, err)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestLoyaltyRepository_ToggleEventCode(t *testing.T) {
	ctx := context.Background()
	id := uuid.New().String()

	db, mock := newMock(t)
	repo := NewLoyaltyRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(`SELECT pg_advisory_xact_lock\(\$1\)`).WithArgs(eventCodesLock).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT is_active FROM event_qr_codes WHERE id = \$1`).WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"is_active"}).AddRow(false))
	mock.ExpectExec(`UPDATE event_qr_codes SET is_active = FALSE, deactivated_at = \$1 WHERE is_active`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`UPDATE event_qr_codes SET is_active = \$2::boolean`).
		WithArgs(id, true, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(columns(eventCodeColumns)).
			AddRow(id, uuid.New().String(), "Salsa Night", "qr-1", 5, true, 0, time.Now(), "admin-id"))
	mock.ExpectCommit()

	c, err := repo.ToggleEventCode(ctx, id)
	require.NoError(t, err)
	assert.True(t, c.IsActive)
	assert.NoError(t, mock.ExpectationsWereMet())

	_, err = repo.ToggleEventCode(ctx, "not-a-uuid")
	assert.Equal(t, loyalty.ErrEventCodeNotFound, err)
}

func TestUserRepository_GetUserByID(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepository(db)

	_, err := repo.GetUserByID(context.Background(), "not-a-uuid")
	assert.Equal(t, user.ErrNotFound, err)

	id := uuid.New().String()
	mock.ExpectQuery(`SELECT .* FROM users WHERE id = \$1`).WithArgs(id).
		WillReturnRows(sqlmock.NewRows(columns(userColumns)))
	_, err = repo.GetUserByID(context.Background(), id)
	assert.Equal(t, user.ErrNotFound, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTicketRepository_RecordPurchase(t *testing.T) {
	ctx := context.Background()
	uid := uuid.New().String()
	evtID := uuid.New().String()
	newTicket := func() ticket.Ticket {
		return ticket.Ticket{
			ID: uuid.New().String(), EventID: evtID, UserID: uid, Category: ticket.CategoryVIP, Price: 40,
			Code: ticket.NewCode(), Status: ticket.StatusActive, PaymentID: "pi_1", PurchasedAt: time.Now(),
		}
	}
	tickets := []ticket.Ticket{newTicket(), newTicket()}
	tx := loyalty.Transaction{ID: uuid.New().String(), UserID: uid, Points: 8, Kind: loyalty.KindPurchase}

	t.Run("seats left", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewTicketRepository(db)

		mock.ExpectBegin()
		mock.ExpectQuery(`UPDATE ticket_categories SET available_seats = available_seats - \$3\s+WHERE event_id = \$1 AND category = \$2 AND available_seats >= \$3`).
			WithArgs(evtID, ticket.CategoryVIP, 2).
			WillReturnRows(sqlmock.NewRows([]string{"available_seats"}).AddRow(3))
		for _, tk := range tickets {
			mock.ExpectExec(`INSERT INTO tickets`).
				WithArgs(tk.ID, evtID, uid, ticket.CategoryVIP, 40.0, tk.Code, sqlmock.AnyArg(), ticket.StatusActive, "pi_1", sqlmock.AnyArg()).
				WillReturnResult(sqlmock.NewResult(0, 1))
		}
		mock.ExpectQuery(`UPDATE users SET loyalty_points = loyalty_points \+ \$2`).
			WithArgs(uid, 8).
			WillReturnRows(sqlmock.NewRows([]string{"loyalty_points"}).AddRow(20))
		mock.ExpectExec(`INSERT INTO loyalty_transactions`).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		total, err := repo.RecordPurchase(ctx, tickets, tx)
		require.NoError(t, err)
		assert.Equal(t, 20, total)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("sold out meanwhile", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewTicketRepository(db)

		mock.ExpectBegin()
		mock.ExpectQuery(`UPDATE ticket_categories SET available_seats`).
			WillReturnRows(sqlmock.NewRows([]string{"available_seats"}))
		mock.ExpectRollback()

		_, err := repo.RecordPurchase(ctx, tickets, tx)
		assert.Equal(t, ticket.ErrSoldOut, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestTicketRepository_ValidateTicket(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	t.Run("active", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewTicketRepository(db)

		rows := sqlmock.NewRows(columns(ticketColumns)).AddRow(
			uuid.New().String(), uuid.New().String(), uuid.New().String(), ticket.CategoryStandard, 15.0,
			"IL3F9A0C2B", "{}", ticket.StatusUsed, "pi_1", now, now, "door-id",
		)
		mock.ExpectQuery(`UPDATE tickets SET status = 'used', validated_at = \$2, validated_by = \$3\s+WHERE code = \$1 AND status = 'active'`).
			WithArgs("IL3F9A0C2B", sqlmock.AnyArg(), "door-id").
			WillReturnRows(rows)

		tk, err := repo.ValidateTicket(ctx, "IL3F9A0C2B", now, "door-id")
		require.NoError(t, err)
		assert.Equal(t, ticket.StatusUsed, tk.Status)
		assert.Equal(t, "door-id", tk.ValidatedBy)
		require.NotNil(t, tk.ValidatedAt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	for name, tc := range map[string]struct {
		exists  bool
		wantErr error
	}{
		"already used": {exists: true, wantErr: ticket.ErrAlreadyUsed},
		"unknown code": {exists: false, wantErr: ticket.ErrNotFound},
	} {
		t.Run(name, func(t *testing.T) {
			db, mock := newMock(t)
			repo := NewTicketRepository(db)

			mock.ExpectQuery(`UPDATE tickets SET status = 'used'`).
				WillReturnRows(sqlmock.NewRows(columns(ticketColumns)))
			mock.ExpectQuery(`SELECT EXISTS \(SELECT 1 FROM tickets WHERE code = \$1\)`).
				WithArgs("IL3F9A0C2B").
				WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(tc.exists))

			_, err := repo.ValidateTicket(ctx, "IL3F9A0C2B", now, "door-id")
			assert.Equal(t, tc.wantErr, err)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
