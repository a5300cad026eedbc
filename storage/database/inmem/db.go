// Package inmemdb implements the core repositories in memory. It backs the API tests and the
// local runs without PostgreSQL.
//
// One lock guards every table, which makes each repository call atomic like the SQL statements
// of the postgres implementation.
package inmemdb

import (
	"sync"

	"github.com/invasionlatina/backend/core/booking"
	"github.com/invasionlatina/backend/core/event"
	"github.com/invasionlatina/backend/core/loyalty"
	"github.com/invasionlatina/backend/core/settings"
	"github.com/invasionlatina/backend/core/song"
	"github.com/invasionlatina/backend/core/ticket"
	"github.com/invasionlatina/backend/core/user"
)

type checkinKey struct {
	userID    string
	eventID   string
	qrVersion int
}

type DB struct {
	mu sync.RWMutex

	users        map[string]*user.User
	events       map[string]*event.Event
	songs        map[string]*song.Request
	settings     settings.Settings
	checkins     map[checkinKey]loyalty.Checkin
	transactions []loyalty.Transaction
	rewards      []loyalty.Reward
	eventCodes   []*loyalty.EventCode
	eventScans   []loyalty.EventScan
	bookings     map[string]*booking.Booking
	categories   map[string][]ticket.Category
	tickets      []ticket.Ticket
}

func Open() *DB {
	return &DB{
		users:      make(map[string]*user.User),
		events:     make(map[string]*event.Event),
		songs:      make(map[string]*song.Request),
		settings:   settings.Defaults(),
		checkins:   make(map[checkinKey]loyalty.Checkin),
		bookings:   make(map[string]*booking.Booking),
		categories: make(map[string][]ticket.Category),
	}
}

// Reset empties every table.
func (db *DB) Reset() {
	fresh := Open()
	db.mu.Lock()
	defer db.mu.Unlock()
	db.users = fresh.users
	db.events = fresh.events
	db.songs = fresh.songs
	db.settings = fresh.settings
	db.checkins = fresh.checkins
	db.transactions = nil
	db.rewards = nil
	db.eventCodes = nil
	db.eventScans = nil
	db.bookings = fresh.bookings
	db.categories = fresh.categories
	db.tickets = nil
}

func copyStrings(s []string) []string {
	return append([]string(nil), s...)
}
