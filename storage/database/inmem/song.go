package inmemdb

import (
	"context"
	"sort"

	"github.com/invasionlatina/backend/core/song"
)

type songRepository struct {
	db *DB
}

var _ song.Repository = (*songRepository)(nil)

func NewSongRepository(db *DB) *songRepository {
	return &songRepository{db: db}
}

func copyRequest(r *song.Request) song.Request {
	req := *r
	req.Requesters = copyStrings(r.Requesters)
	req.Voters = copyStrings(r.Voters)
	if r.PlayedAt != nil {
		t := *r.PlayedAt
		req.PlayedAt = &t
	}
	return req
}

func (repo *songRepository) SubmitPending(_ context.Context, req song.Request) (song.Request, bool, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, r := range repo.db.songs {
		if r.Status != song.StatusPending || r.EventID != req.EventID ||
			r.SongTitleNormalized != req.SongTitleNormalized || r.ArtistNameNormalized != req.ArtistNameNormalized {
			continue
		}
		if r.HasRequested(req.UserID) {
			return song.Request{}, false, song.ErrDuplicateRequest
		}
		r.Requesters = append(r.Requesters, req.UserID)
		r.TimesRequested++
		if !r.HasVoted(req.UserID) {
			r.Voters = append(r.Voters, req.UserID)
			r.Votes++
		}
		return copyRequest(r), false, nil
	}

	stored := copyRequest(&req)
	repo.db.songs[req.ID] = &stored
	return copyRequest(&stored), true, nil
}

func (repo *songRepository) AddVote(_ context.Context, id, userID string) (song.Request, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	r, ok := repo.db.songs[id]
	switch {
	case !ok:
		return song.Request{}, song.ErrNotFound
	case r.Status != song.StatusPending:
		return song.Request{}, song.ErrInvalidState
	case r.HasVoted(userID):
		return song.Request{}, song.ErrAlreadyVoted
	}
	r.Voters = append(r.Voters, userID)
	r.Votes++
	return copyRequest(r), nil
}

func (repo *songRepository) Moderate(_ context.Context, id string, m song.Moderation) (song.Request, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	r, ok := repo.db.songs[id]
	if !ok {
		return song.Request{}, song.ErrNotFound
	}
	if r.Status != song.StatusPending {
		return song.Request{}, song.ErrAlreadyModerated
	}
	r.Status = m.Status
	r.RejectionReason = m.RejectionReason
	r.RejectionLabel = m.RejectionLabel
	r.ModeratedBy = m.By
	r.PlayedAt = nil
	if m.Status == song.StatusPlayed {
		t := m.At.UTC()
		r.PlayedAt = &t
	}
	return copyRequest(r), nil
}

func (repo *songRepository) GetRequest(_ context.Context, id string) (song.Request, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if r, ok := repo.db.songs[id]; ok {
		return copyRequest(r), nil
	}
	return song.Request{}, song.ErrNotFound
}

// query returns the requests accepted by keep, newest first, at most limit of them.
func (repo *songRepository) query(keep func(r *song.Request) bool, limit int) []song.Request {
	reqs := make([]song.Request, 0)
	for _, r := range repo.db.songs {
		if keep(r) {
			reqs = append(reqs, copyRequest(r))
		}
	}
	sort.Slice(reqs, func(i, j int) bool { return reqs[i].RequestedAt.After(reqs[j].RequestedAt) })
	if limit > 0 && len(reqs) > limit {
		reqs = reqs[:limit]
	}
	return reqs
}

func (repo *songRepository) QueryRequests(_ context.Context, filter song.QueryFilter) ([]song.Request, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	return repo.query(func(r *song.Request) bool {
		return (filter.Status == "" || r.Status == filter.Status) && (filter.EventID == "" || r.EventID == filter.EventID)
	}, filter.Limit), nil
}

func (repo *songRepository) QueryUserRequests(_ context.Context, userID string, limit int) ([]song.Request, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	return repo.query(func(r *song.Request) bool { return r.HasRequested(userID) }, limit), nil
}

func (repo *songRepository) CountRequestsByEvent(_ context.Context) ([]song.EventStats, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	byEvent := make(map[string]*song.EventStats)
	for _, r := range repo.db.songs {
		st, ok := byEvent[r.EventID]
		if !ok {
			st = &song.EventStats{EventID: r.EventID}
			byEvent[r.EventID] = st
		}
		switch r.Status {
		case song.StatusPending:
			st.Pending++
		case song.StatusPlayed:
			st.Played++
		case song.StatusRejected:
			st.Rejected++
		}
		st.Total++
	}

	stats := make([]song.EventStats, 0, len(byEvent))
	for _, st := range byEvent {
		stats = append(stats, *st)
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].EventID < stats[j].EventID })
	return stats, nil
}

func (repo *songRepository) DeleteRequest(_ context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.songs[id]; !ok {
		return song.ErrNotFound
	}
	delete(repo.db.songs, id)
	return nil
}

func (repo *songRepository) DeleteRequests(_ context.Context, onlyPending bool) (int, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	n := 0
	for id, r := range repo.db.songs {
		if onlyPending && r.Status != song.StatusPending {
			continue
		}
		delete(repo.db.songs, id)
		n++
	}
	return n, nil
}
