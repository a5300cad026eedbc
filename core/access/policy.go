// Package access decides whether a song request may be made right now.
//
// The decision only depends on its inputs: the caller's role, the optional device location,
// the wall clock and the requests flag of the global settings.
package access

import (
	"fmt"
	"math"
	"time"

	"github.com/invasionlatina/backend/core"
)

// EarthRadius is the mean Earth radius in meters used by Distance.
const EarthRadius = 6371000.0

// Denial reasons.
const (
	ReasonRequestsDisabled = "requests_disabled"
	ReasonLocationRequired = "location_required"
	ReasonTooFar           = "too_far"
	ReasonOutsideHours     = "outside_hours"
)

type (
	Point struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	}

	// Window is a recurring range of hours [Start, End). Start > End wraps past midnight.
	Window struct {
		Start int
		End   int
	}

	Policy struct {
		VenueName    string
		Venue        Point
		RadiusMeters float64
		Hours        Window
		Location     *time.Location
	}

	Input struct {
		Privileged      bool
		RequestsEnabled bool
		Position        *Point // nil when the device did not share its location
		Now             time.Time
	}
)

// NewPolicy builds the policy of the configured venue.
func NewPolicy(conf core.VenueConfig) Policy {
	return Policy{
		VenueName:    conf.Name,
		Venue:        Point{Latitude: conf.Latitude, Longitude: conf.Longitude},
		RadiusMeters: conf.RadiusMeters,
		Hours:        Window{Start: conf.StartHour, End: conf.EndHour},
		Location:     conf.Location(),
	}
}

// Contains reports whether hour (0-23) falls inside the window.
func (w Window) Contains(hour int) bool {
	if w.Start > w.End {
		return hour >= w.Start || hour < w.End
	}
	return hour >= w.Start && hour < w.End
}

// Distance returns the great-circle distance in meters between a and b (haversine).
func Distance(a, b Point) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLon := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * EarthRadius * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// Evaluate applies the rules in order and returns a *core.AccessDeniedError for the first one
// that fails, or nil. Privileged callers are always let through.
func (p Policy) Evaluate(in Input) error {
	if in.Privileged {
		return nil
	}
	if !in.RequestsEnabled {
		return core.NewAccessDeniedError(
			ReasonRequestsDisabled,
			"Les demandes de chansons sont désactivées pour le moment. Revenez pendant l'événement!",
		)
	}
	if in.Position == nil {
		return core.NewAccessDeniedError(ReasonLocationRequired, "Activez votre localisation pour demander une chanson")
	}
	if dist := Distance(*in.Position, p.Venue); dist > p.RadiusMeters {
		return core.NewAccessDeniedError(
			ReasonTooFar,
			fmt.Sprintf("Vous devez être au %s pour demander une chanson (vous êtes à %dm)", p.VenueName, int(dist)),
		)
	}
	if !p.Hours.Contains(p.localHour(in.Now)) {
		return core.NewAccessDeniedError(
			ReasonOutsideHours,
			fmt.Sprintf("Les demandes de chansons sont disponibles uniquement entre %dh et %dh", p.Hours.Start, p.Hours.End),
		)
	}
	return nil
}

func (p Policy) localHour(t time.Time) int {
	if p.Location != nil {
		t = t.In(p.Location)
	}
	return t.Hour()
}
