package location

import (
	"context"

	"github.com/quickplate/storefront/core"
)

// Position is a device position fix
type Position struct {
	Latitude       float64
	Longitude      float64
	AccuracyMeters float64
}

// PositionErrorCode mirrors the standard geolocation error codes
type PositionErrorCode int

const (
	PositionPermissionDenied PositionErrorCode = iota + 1
	PositionUnavailable
	PositionTimeout
	PositionUnsupported
)

// PositionError is the failure surface of a Geolocator. It unwraps to
// the matching core sentinel so callers can classify with errors.Is.
type PositionError struct {
	Code    PositionErrorCode
	Message string
}

// Error returns the string representation of the error
func (e *PositionError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Unwrap().Error()
}

// Unwrap maps the code to a core sentinel error
func (e *PositionError) Unwrap() error {
	switch e.Code {
	case PositionPermissionDenied:
		return core.ErrPermissionDenied
	case PositionUnavailable:
		return core.ErrPositionUnavailable
	case PositionTimeout:
		return core.ErrTimeout
	case PositionUnsupported:
		return core.ErrUnsupported
	default:
		return core.ErrPositionUnavailable
	}
}

// Geolocator is the device/browser geolocation capability. Requesting
// a position may prompt the user for permission and may never resolve
// if they never respond; the resolver bounds every call with its
// configured GPS timeout.
//
// The UI layer supplies the real implementation (wired to the browser
// permission flow); tests supply fakes.
type Geolocator interface {
	CurrentPosition(ctx context.Context) (Position, error)
}
