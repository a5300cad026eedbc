package inmemdb

import (
	"context"

	"github.com/invasionlatina/backend/core"
	"github.com/invasionlatina/backend/core/settings"
)

type settingsRepository struct {
	db *DB
}

var _ settings.Repository = (*settingsRepository)(nil)

func NewSettingsRepository(db *DB) *settingsRepository {
	return &settingsRepository{db: db}
}

func (repo *settingsRepository) GetSettings(_ context.Context) (settings.Settings, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	return repo.db.settings, nil
}

// update applies fn to the settings row under the write lock.
func (repo *settingsRepository) update(by string, fn func(s *settings.Settings)) settings.Settings {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	fn(&repo.db.settings)
	repo.db.settings.UpdatedAt = core.NowFunc()
	repo.db.settings.UpdatedBy = by
	return repo.db.settings
}

func (repo *settingsRepository) ToggleRequests(_ context.Context, by string) (settings.Settings, error) {
	return repo.update(by, func(s *settings.Settings) {
		s.RequestsEnabled = !s.RequestsEnabled
	}), nil
}

func (repo *settingsRepository) StartEvent(_ context.Context, eventID, by string) (settings.Settings, error) {
	return repo.update(by, func(s *settings.Settings) {
		s.RequestsEnabled = true
		s.CurrentEventID = eventID
	}), nil
}

func (repo *settingsRepository) EndEvent(_ context.Context, by string) (settings.Settings, string, error) {
	var previous string
	s := repo.update(by, func(s *settings.Settings) {
		previous = s.CurrentEventID
		s.RequestsEnabled = false
		s.CurrentEventID = ""
		s.QRVersion++
	})
	return s, previous, nil
}
