package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/invasionlatina/backend/core/loyalty"
	"github.com/invasionlatina/backend/core/user"
)

type loyaltyRepository struct {
	db *DB
}

var _ loyalty.Repository = (*loyaltyRepository)(nil)

func NewLoyaltyRepository(db *DB) *loyaltyRepository {
	return &loyaltyRepository{db: db}
}

func (repo *loyaltyRepository) RecordCheckin(_ context.Context, c loyalty.Checkin, t loyalty.Transaction) (int, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if c.QRVersion != repo.db.settings.QRVersion {
		return 0, loyalty.ErrVersionMismatch
	}
	key := checkinKey{userID: c.UserID, eventID: c.EventID, qrVersion: c.QRVersion}
	if _, ok := repo.db.checkins[key]; ok {
		return 0, loyalty.ErrAlreadyCheckedIn
	}
	usr, ok := repo.db.users[c.UserID]
	if !ok {
		return 0, user.ErrNotFound
	}

	repo.db.checkins[key] = c
	usr.LoyaltyPoints += c.PointsEarned
	repo.db.transactions = append(repo.db.transactions, t)
	return usr.LoyaltyPoints, nil
}

func (repo *loyaltyRepository) ResetCheckin(_ context.Context, userID, eventID string, t loyalty.Transaction) (int, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	removed, found := 0, false
	for key, c := range repo.db.checkins {
		if key.userID == userID && key.eventID == eventID {
			removed += c.PointsEarned
			found = true
			delete(repo.db.checkins, key)
		}
	}
	if !found {
		return 0, loyalty.ErrCheckinNotFound
	}

	if usr, ok := repo.db.users[userID]; ok {
		usr.LoyaltyPoints -= removed
		if usr.LoyaltyPoints < 0 {
			usr.LoyaltyPoints = 0
		}
	}
	t.Points = -removed
	repo.db.transactions = append(repo.db.transactions, t)
	return removed, nil
}

func (repo *loyaltyRepository) CountCheckins(_ context.Context, userID string) (int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	n := 0
	for key := range repo.db.checkins {
		if key.userID == userID {
			n++
		}
	}
	return n, nil
}

func (repo *loyaltyRepository) QueryTransactions(_ context.Context, userID string, limit int) ([]loyalty.Transaction, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	txs := make([]loyalty.Transaction, 0)
	for i := len(repo.db.transactions) - 1; i >= 0; i-- {
		if t := repo.db.transactions[i]; t.UserID == userID {
			txs = append(txs, t)
		}
	}
	sort.SliceStable(txs, func(i, j int) bool { return txs[i].CreatedAt.After(txs[j].CreatedAt) })
	if limit > 0 && len(txs) > limit {
		txs = txs[:limit]
	}
	return txs, nil
}

func (repo *loyaltyRepository) ClaimReward(_ context.Context, r loyalty.Reward, t loyalty.Transaction) (int, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	usr, ok := repo.db.users[r.UserID]
	if !ok || usr.LoyaltyPoints < r.PointsSpent {
		return 0, loyalty.ErrInsufficientPoints
	}
	for _, other := range repo.db.rewards {
		if other.UserID == r.UserID && other.IsUsable(r.CreatedAt) {
			return 0, loyalty.ErrActiveReward
		}
	}
	usr.LoyaltyPoints -= r.PointsSpent
	repo.db.rewards = append(repo.db.rewards, r)
	repo.db.transactions = append(repo.db.transactions, t)
	return usr.LoyaltyPoints, nil
}

func (repo *loyaltyRepository) RedeemReward(_ context.Context, code string, now time.Time, by string) (loyalty.Reward, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for i := range repo.db.rewards {
		r := &repo.db.rewards[i]
		if r.Code != code {
			continue
		}
		switch {
		case r.Status == loyalty.RewardRedeemed:
			return loyalty.Reward{}, loyalty.ErrRewardRedeemed
		case !r.IsUsable(now):
			return loyalty.Reward{}, loyalty.ErrRewardExpired
		}
		redeemedAt := now
		r.Status = loyalty.RewardRedeemed
		r.RedeemedAt = &redeemedAt
		r.RedeemedBy = by
		return *r, nil
	}
	return loyalty.Reward{}, loyalty.ErrRewardNotFound
}

func (repo *loyaltyRepository) QueryRewards(_ context.Context, userID string) ([]loyalty.Reward, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	rewards := make([]loyalty.Reward, 0)
	for i := len(repo.db.rewards) - 1; i >= 0; i-- {
		if r := repo.db.rewards[i]; r.UserID == userID {
			rewards = append(rewards, r)
		}
	}
	sort.SliceStable(rewards, func(i, j int) bool { return rewards[i].CreatedAt.After(rewards[j].CreatedAt) })
	return rewards, nil
}

func (repo *loyaltyRepository) ExpireRewards(_ context.Context, now time.Time) (int, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	n := 0
	for i := range repo.db.rewards {
		r := &repo.db.rewards[i]
		if r.Status == loyalty.RewardActive && r.ExpiresAt.Before(now) {
			r.Status = loyalty.RewardExpired
			n++
		}
	}
	return n, nil
}

func (repo *loyaltyRepository) deactivateEventCodes() {
	for _, c := range repo.db.eventCodes {
		c.IsActive = false
	}
}

func (repo *loyaltyRepository) CreateEventCode(_ context.Context, c loyalty.EventCode) (loyalty.EventCode, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	repo.deactivateEventCodes()
	c.IsActive = true
	repo.db.eventCodes = append(repo.db.eventCodes, &c)
	return c, nil
}

func (repo *loyaltyRepository) GetActiveEventCode(_ context.Context) (loyalty.EventCode, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, c := range repo.db.eventCodes {
		if c.IsActive {
			return *c, nil
		}
	}
	return loyalty.EventCode{}, loyalty.ErrEventCodeNotFound
}

func (repo *loyaltyRepository) ToggleEventCode(_ context.Context, id string) (loyalty.EventCode, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, c := range repo.db.eventCodes {
		if c.ID != id {
			continue
		}
		activate := !c.IsActive
		if activate {
			repo.deactivateEventCodes()
		}
		c.IsActive = activate
		return *c, nil
	}
	return loyalty.EventCode{}, loyalty.ErrEventCodeNotFound
}

func (repo *loyaltyRepository) QueryEventCodes(_ context.Context, limit int) ([]loyalty.EventCode, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	codes := make([]loyalty.EventCode, 0, len(repo.db.eventCodes))
	for i := len(repo.db.eventCodes) - 1; i >= 0; i-- {
		codes = append(codes, *repo.db.eventCodes[i])
	}
	sort.SliceStable(codes, func(i, j int) bool { return codes[i].CreatedAt.After(codes[j].CreatedAt) })
	if limit > 0 && len(codes) > limit {
		codes = codes[:limit]
	}
	return codes, nil
}

func (repo *loyaltyRepository) RecordEventScan(
	_ context.Context, code string, s loyalty.EventScan, t loyalty.Transaction,
) (loyalty.EventScan, int, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	var ec *loyalty.EventCode
	for _, c := range repo.db.eventCodes {
		if c.Code == code {
			ec = c
			break
		}
	}
	switch {
	case ec == nil:
		return loyalty.EventScan{}, 0, loyalty.ErrEventCodeNotFound
	case !ec.IsActive:
		return loyalty.EventScan{}, 0, loyalty.ErrEventCodeInactive
	}
	for _, other := range repo.db.eventScans {
		if other.CodeID == ec.ID && other.UserID == s.UserID {
			return loyalty.EventScan{}, 0, loyalty.ErrAlreadyScanned
		}
	}
	usr, ok := repo.db.users[s.UserID]
	if !ok {
		return loyalty.EventScan{}, 0, user.ErrNotFound
	}

	s.CodeID, s.EventID, s.EventName, s.PointsEarned = ec.ID, ec.EventID, ec.EventName, ec.Points
	ec.ScansCount++
	repo.db.eventScans = append(repo.db.eventScans, s)
	usr.LoyaltyPoints += ec.Points
	t.Points = ec.Points
	repo.db.transactions = append(repo.db.transactions, t)
	return s, usr.LoyaltyPoints, nil
}

func (repo *loyaltyRepository) QueryEventScans(_ context.Context, userID string, limit int) ([]loyalty.EventScan, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	scans := make([]loyalty.EventScan, 0)
	for i := len(repo.db.eventScans) - 1; i >= 0; i-- {
		if s := repo.db.eventScans[i]; s.UserID == userID {
			scans = append(scans, s)
		}
	}
	sort.SliceStable(scans, func(i, j int) bool { return scans[i].ScannedAt.After(scans[j].ScannedAt) })
	if limit > 0 && len(scans) > limit {
		scans = scans[:limit]
	}
	return scans, nil
}
