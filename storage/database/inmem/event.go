package inmemdb

import (
	"context"
	"sort"

	"github.com/invasionlatina/backend/core/event"
)

type eventRepository struct {
	db *DB
}

var _ event.Repository = (*eventRepository)(nil)

func NewEventRepository(db *DB) *eventRepository {
	return &eventRepository{db: db}
}

func (repo *eventRepository) CreateEvent(_ context.Context, evt event.Event) (event.Event, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	repo.db.events[evt.ID] = &evt
	return evt, nil
}

func (repo *eventRepository) GetEvent(_ context.Context, id string) (event.Event, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if evt, ok := repo.db.events[id]; ok {
		return *evt, nil
	}
	return event.Event{}, event.ErrNotFound
}

func (repo *eventRepository) QueryEvents(_ context.Context, filter event.QueryFilter) ([]event.Event, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	events := make([]event.Event, 0, len(repo.db.events))
	for _, evt := range repo.db.events {
		if filter.Status == "" || evt.Status == filter.Status {
			events = append(events, *evt)
		}
	}
	sort.Slice(events, func(i, j int) bool { return events[i].EventDate.Before(events[j].EventDate) })
	return events, nil
}

func (repo *eventRepository) UpdateEvent(_ context.Context, evt event.Event) (event.Event, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.events[evt.ID]; !ok {
		return event.Event{}, event.ErrNotFound
	}
	repo.db.events[evt.ID] = &evt
	return evt, nil
}

func (repo *eventRepository) SetEventStatus(_ context.Context, id, status string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	evt, ok := repo.db.events[id]
	if !ok {
		return event.ErrNotFound
	}
	evt.Status = status
	return nil
}

func (repo *eventRepository) DeleteEvent(_ context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.events[id]; !ok {
		return event.ErrNotFound
	}
	delete(repo.db.events, id)
	for bid, b := range repo.db.bookings {
		if b.EventID == id {
			delete(repo.db.bookings, bid)
		}
	}
	return nil
}
