package pgrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/invasionlatina/backend/core"
	"github.com/invasionlatina/backend/core/song"
)

const songColumns = `id, event_id, user_id, user_name, song_title, artist_name, song_title_normalized,
	artist_name_normalized, requesters, voters, votes, times_requested, status, rejection_reason,
	rejection_label, moderated_by, requested_at, played_at`

// submitPendingQuery inserts a new request or, when the song is already pending for the event,
// appends the user to its requesters (and voters, unless they voted already).
// It returns no row when the user already requested the song.
const submitPendingQuery = `INSERT INTO song_requests (
		id, event_id, user_id, user_name, song_title, artist_name, song_title_normalized,
		artist_name_normalized, requesters, voters, votes, times_requested, status, requested_at
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	ON CONFLICT (event_id, song_title_normalized, artist_name_normalized) WHERE status = 'pending'
	DO UPDATE SET
		requesters      = array_append(song_requests.requesters, EXCLUDED.user_id),
		times_requested = song_requests.times_requested + 1,
		voters          = CASE WHEN EXCLUDED.user_id = ANY(song_requests.voters) THEN song_requests.voters
		                  ELSE array_append(song_requests.voters, EXCLUDED.user_id) END,
		votes           = CASE WHEN EXCLUDED.user_id = ANY(song_requests.voters) THEN song_requests.votes
		                  ELSE song_requests.votes + 1 END
	WHERE NOT (EXCLUDED.user_id = ANY(song_requests.requesters))
	RETURNING ` + songColumns + `, (xmax = 0) AS inserted`

const addVoteQuery = `UPDATE song_requests
	SET votes = votes + 1, voters = array_append(voters, $2::TEXT)
	WHERE id = $1 AND status = 'pending' AND NOT ($2::TEXT = ANY(voters))
	RETURNING ` + songColumns

const moderateQuery = `UPDATE song_requests
	SET status = $2, rejection_reason = $3, rejection_label = $4, moderated_by = $5, played_at = $6
	WHERE id = $1 AND status = 'pending'
	RETURNING ` + songColumns

type songRow struct {
	ID                   string         `db:"id"`
	EventID              string         `db:"event_id"`
	UserID               string         `db:"user_id"`
	UserName             string         `db:"user_name"`
	SongTitle            string         `db:"song_title"`
	ArtistName           string         `db:"artist_name"`
	SongTitleNormalized  string         `db:"song_title_normalized"`
	ArtistNameNormalized string         `db:"artist_name_normalized"`
	Requesters           pq.StringArray `db:"requesters"`
	Voters               pq.StringArray `db:"voters"`
	Votes                int            `db:"votes"`
	TimesRequested       int            `db:"times_requested"`
	Status               song.Status    `db:"status"`
	RejectionReason      null.String    `db:"rejection_reason"`
	RejectionLabel       null.String    `db:"rejection_label"`
	ModeratedBy          null.String    `db:"moderated_by"`
	RequestedAt          time.Time      `db:"requested_at"`
	PlayedAt             null.Time      `db:"played_at"`
}

func (r songRow) toRequest() song.Request {
	req := song.Request{
		ID:                   r.ID,
		EventID:              r.EventID,
		UserID:               r.UserID,
		UserName:             r.UserName,
		SongTitle:            r.SongTitle,
		ArtistName:           r.ArtistName,
		SongTitleNormalized:  r.SongTitleNormalized,
		ArtistNameNormalized: r.ArtistNameNormalized,
		Requesters:           []string(r.Requesters),
		Voters:               []string(r.Voters),
		Votes:                r.Votes,
		TimesRequested:       r.TimesRequested,
		Status:               r.Status,
		RejectionReason:      song.RejectionReason(r.RejectionReason.String),
		RejectionLabel:       r.RejectionLabel.String,
		ModeratedBy:          r.ModeratedBy.String,
		RequestedAt:          r.RequestedAt.UTC(),
	}
	if r.PlayedAt.Valid {
		t := r.PlayedAt.Time.UTC()
		req.PlayedAt = &t
	}
	return req
}

type songRepository struct {
	db core.DBExecutor
}

var _ song.Repository = (*songRepository)(nil)

func NewSongRepository(db core.DBExecutor) *songRepository {
	return &songRepository{db: db}
}

func (repo songRepository) SubmitPending(ctx context.Context, req song.Request) (song.Request, bool, error) {
	var row struct {
		songRow
		Inserted bool `db:"inserted"`
	}
	err := repo.db.GetContext(ctx, &row, submitPendingQuery,
		req.ID, req.EventID, req.UserID, req.UserName, req.SongTitle, req.ArtistName,
		req.SongTitleNormalized, req.ArtistNameNormalized,
		stringArray(req.Requesters), stringArray(req.Voters), req.Votes, req.TimesRequested,
		req.Status, req.RequestedAt.UTC(),
	)
	if err != nil {
		return song.Request{}, false, trapNoRowsErr(err, song.ErrDuplicateRequest, "submitting song request")
	}
	return row.toRequest(), row.Inserted, nil
}

func (repo songRepository) AddVote(ctx context.Context, id, userID string) (song.Request, error) {
	if _, err := uuid.Parse(id); err != nil {
		return song.Request{}, song.ErrNotFound
	}
	var row songRow
	err := repo.db.GetContext(ctx, &row, addVoteQuery, id, userID)
	if err == nil {
		return row.toRequest(), nil
	}
	if errors.Cause(err) != sql.ErrNoRows {
		return song.Request{}, errors.Wrap(err, "adding vote")
	}

	// nothing updated: tell why
	var state struct {
		Status song.Status `db:"status"`
		Voted  bool        `db:"voted"`
	}
	err = repo.db.GetContext(ctx, &state,
		`SELECT status, $2::TEXT = ANY(voters) AS voted FROM song_requests WHERE id = $1`, id, userID)
	if err != nil {
		return song.Request{}, trapNoRowsErr(err, song.ErrNotFound, "checking song request")
	}
	if state.Status != song.StatusPending {
		return song.Request{}, song.ErrInvalidState
	}
	if state.Voted {
		return song.Request{}, song.ErrAlreadyVoted
	}
	return song.Request{}, errors.New("vote not recorded")
}

func (repo songRepository) Moderate(ctx context.Context, id string, m song.Moderation) (song.Request, error) {
	if _, err := uuid.Parse(id); err != nil {
		return song.Request{}, song.ErrNotFound
	}
	var playedAt null.Time
	if m.Status == song.StatusPlayed {
		playedAt = null.TimeFrom(m.At.UTC())
	}
	var row songRow
	err := repo.db.GetContext(ctx, &row, moderateQuery,
		id, m.Status,
		null.NewString(string(m.RejectionReason), m.RejectionReason != ""),
		null.NewString(m.RejectionLabel, m.RejectionLabel != ""),
		null.NewString(m.By, m.By != ""),
		playedAt,
	)
	if err == nil {
		return row.toRequest(), nil
	}
	if errors.Cause(err) != sql.ErrNoRows {
		return song.Request{}, errors.Wrap(err, "moderating song request")
	}

	var found bool
	if err = repo.db.GetContext(ctx, &found, `SELECT EXISTS (SELECT 1 FROM song_requests WHERE id = $1)`, id); err != nil {
		return song.Request{}, errors.Wrap(err, "checking song request")
	}
	if !found {
		return song.Request{}, song.ErrNotFound
	}
	return song.Request{}, song.ErrAlreadyModerated
}

func (repo songRepository) GetRequest(ctx context.Context, id string) (song.Request, error) {
	if _, err := uuid.Parse(id); err != nil {
		return song.Request{}, song.ErrNotFound
	}
	var row songRow
	if err := repo.db.GetContext(ctx, &row, `SELECT `+songColumns+` FROM song_requests WHERE id = $1`, id); err != nil {
		return song.Request{}, trapNoRowsErr(err, song.ErrNotFound, "finding song request")
	}
	return row.toRequest(), nil
}

func (repo songRepository) selectRequests(ctx context.Context, q string, args ...interface{}) ([]song.Request, error) {
	var rows []songRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, err
	}
	reqs := make([]song.Request, 0, len(rows))
	for _, r := range rows {
		reqs = append(reqs, r.toRequest())
	}
	return reqs, nil
}

func (repo songRepository) QueryRequests(ctx context.Context, filter song.QueryFilter) ([]song.Request, error) {
	q := `SELECT ` + songColumns + ` FROM song_requests
		WHERE ($1 = '' OR status = $1) AND ($2 = '' OR event_id = $2)
		ORDER BY requested_at DESC
		LIMIT $3`
	reqs, err := repo.selectRequests(ctx, q, string(filter.Status), filter.EventID, filter.Limit)
	return reqs, errors.Wrap(err, "querying song requests")
}

func (repo songRepository) QueryUserRequests(ctx context.Context, userID string, limit int) ([]song.Request, error) {
	q := `SELECT ` + songColumns + ` FROM song_requests
		WHERE $1::TEXT = ANY(requesters)
		ORDER BY requested_at DESC
		LIMIT $2`
	reqs, err := repo.selectRequests(ctx, q, userID, limit)
	return reqs, errors.Wrap(err, "querying user song requests")
}

func (repo songRepository) CountRequestsByEvent(ctx context.Context) ([]song.EventStats, error) {
	const q = `SELECT event_id,
			COUNT(*) FILTER (WHERE status = 'pending')  AS pending,
			COUNT(*) FILTER (WHERE status = 'played')   AS played,
			COUNT(*) FILTER (WHERE status = 'rejected') AS rejected,
			COUNT(*)                                    AS total
		FROM song_requests
		GROUP BY event_id
		ORDER BY event_id`
	var rows []struct {
		EventID  string `db:"event_id"`
		Pending  int    `db:"pending"`
		Played   int    `db:"played"`
		Rejected int    `db:"rejected"`
		Total    int    `db:"total"`
	}
	if err := repo.db.SelectContext(ctx, &rows, q); err != nil {
		return nil, errors.Wrap(err, "counting song requests")
	}
	stats := make([]song.EventStats, 0, len(rows))
	for _, r := range rows {
		stats = append(stats, song.EventStats{
			EventID:  r.EventID,
			Pending:  r.Pending,
			Played:   r.Played,
			Rejected: r.Rejected,
			Total:    r.Total,
		})
	}
	return stats, nil
}

func (repo songRepository) DeleteRequest(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return song.ErrNotFound
	}
	res, err := repo.db.ExecContext(ctx, `DELETE FROM song_requests WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting song request")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return song.ErrNotFound
	}
	return nil
}

func (repo songRepository) DeleteRequests(ctx context.Context, onlyPending bool) (int, error) {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM song_requests WHERE (NOT $1 OR status = 'pending')`, onlyPending)
	if err != nil {
		return 0, errors.Wrap(err, "deleting song requests")
	}
	n, err := res.RowsAffected()
	return int(n), errors.Wrap(err, "counting deleted song requests")
}
