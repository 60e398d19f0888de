// Package location produces a best-effort human-readable delivery
// location with graceful degradation across data sources: IP lookup
// first, GPS plus reverse geocoding as fallback, manual entry as the
// escape hatch.
package location

import (
	"fmt"
	"time"
)

// Source tags how the current location was obtained
type Source string

const (
	// SourceIP marks a coarse, permission-free IP-lookup result
	SourceIP Source = "ip"
	// SourceGPS marks a device position fix plus reverse geocode
	SourceGPS Source = "gps"
	// SourceManual marks user-entered or user-searched locations
	SourceManual Source = "manual"
	// SourceFallback marks the manual-entry prompt shown when every
	// automatic source failed before anything ever resolved
	SourceFallback Source = "fallback"
)

// State is the resolver's conceptual state
type State int

const (
	StateIdle State = iota
	StateResolvingIP
	StateResolvingGPS
	StateResolved
	StateFailed
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateResolvingIP:
		return "resolving-ip"
	case StateResolvingGPS:
		return "resolving-gps"
	case StateResolved:
		return "resolved"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Accuracy is a coarse label derived from which structured address
// components the reverse geocode returned.
type Accuracy string

const (
	AccuracyStreet      Accuracy = "street-level"
	AccuracyArea        Accuracy = "area-level"
	AccuracyCity        Accuracy = "city-level"
	AccuracyApproximate Accuracy = "approximate"
)

// ManualEntryPrompt is the sentinel displayed when no location has
// ever resolved. Never a blank value: the UI always has something to
// show and it doubles as the call to action.
const ManualEntryPrompt = "Set your delivery location"

// Address is the structured reverse-geocode result. Every field is
// optional; formatting degrades through the priority chain in
// FormatAddress rather than assuming any field is present.
type Address struct {
	HouseNumber   string `json:"house_number,omitempty"`
	Road          string `json:"road,omitempty"`
	Suburb        string `json:"suburb,omitempty"`
	Neighbourhood string `json:"neighbourhood,omitempty"`
	Village       string `json:"village,omitempty"`
	Town          string `json:"town,omitempty"`
	City          string `json:"city,omitempty"`
	StateDistrict string `json:"state_district,omitempty"`
	County        string `json:"county,omitempty"`
	District      string `json:"district,omitempty"`
	State         string `json:"state,omitempty"`
	Country       string `json:"country,omitempty"`
	Postcode      string `json:"postcode,omitempty"`
}

// Resolved is the current best-known delivery location. It is either
// the unresolved sentinel or carries a non-empty formatted string.
type Resolved struct {
	Formatted  string    `json:"formatted"`
	Address    *Address  `json:"address,omitempty"`
	Latitude   float64   `json:"latitude,omitempty"`
	Longitude  float64   `json:"longitude,omitempty"`
	HasCoords  bool      `json:"hasCoords"`
	Source     Source    `json:"source"`
	Accuracy   Accuracy  `json:"accuracy"`
	ResolvedAt time.Time `json:"resolvedAt"`
}

// Coordinates renders the coordinate pair, the last-resort display
// when no address component is available.
func Coordinates(lat, lon float64) string {
	return fmt.Sprintf("%.4f, %.4f", lat, lon)
}
