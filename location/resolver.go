package location

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/quickplate/storefront/core"
)

// Resolver owns the current resolved delivery location and orchestrates
// the fallback chain across the IP-lookup and GPS+reverse-geocode
// sources, with manual entry as the escape hatch.
//
// Expected failures (network, permission, timeout, no results) never
// surface as errors to the caller: the resolver keeps the last good
// location visible, exposes the failure through Err(), and every
// operation returns the location the UI should display right now.
//
// Calls issued while a previous resolution is still in flight follow
// last-write-wins: each operation takes a monotonically increasing
// request token and a result is committed only if its token is still
// the latest issued. A slow, stale IP lookup can never overwrite a
// newer GPS or manual resolution.
type Resolver struct {
	ipLocator  IPLocator
	geocoder   Geocoder
	geolocator Geolocator
	logger     core.Logger
	telemetry  core.Telemetry
	gpsTimeout time.Duration

	latest atomic.Uint64

	mu       sync.RWMutex
	state    State
	current  *Resolved
	errMsg   string
	errCause error

	subMu   sync.Mutex
	subs    map[int]core.Subscriber
	nextSub int
}

// ResolverOptions configures a Resolver
type ResolverOptions struct {
	IPLocator  IPLocator
	Geocoder   Geocoder
	Geolocator Geolocator
	GPSTimeout time.Duration
	Logger     core.Logger
	Telemetry  core.Telemetry
}

// NewResolver creates a resolver. Every collaborator is optional: a
// missing source simply fails that stage of the chain and the resolver
// degrades the same way it does for a runtime failure.
func NewResolver(opts ResolverOptions) *Resolver {
	if opts.Logger == nil {
		opts.Logger = &core.NoOpLogger{}
	}
	if opts.GPSTimeout <= 0 {
		opts.GPSTimeout = 8 * time.Second
	}

	return &Resolver{
		ipLocator:  opts.IPLocator,
		geocoder:   opts.Geocoder,
		geolocator: opts.Geolocator,
		logger:     opts.Logger,
		telemetry:  opts.Telemetry,
		gpsTimeout: opts.GPSTimeout,
		state:      StateIdle,
		subs:       make(map[int]core.Subscriber),
	}
}

// Subscribe registers a change callback and returns an unsubscribe
// function. Callbacks fire on every state transition.
func (r *Resolver) Subscribe(fn core.Subscriber) func() {
	r.subMu.Lock()
	defer r.subMu.Unlock()

	id := r.nextSub
	r.nextSub++
	r.subs[id] = fn

	return func() {
		r.subMu.Lock()
		defer r.subMu.Unlock()
		delete(r.subs, id)
	}
}

func (r *Resolver) notify() {
	r.subMu.Lock()
	subs := make([]core.Subscriber, 0, len(r.subs))
	for _, fn := range r.subs {
		subs = append(subs, fn)
	}
	r.subMu.Unlock()

	for _, fn := range subs {
		fn()
	}
}

// Current returns the location the UI should display: the last good
// resolution, the manual-entry sentinel after a cold-start failure,
// or nil before anything has happened.
func (r *Resolver) Current() *Resolved {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.current == nil {
		return nil
	}
	out := *r.current
	return &out
}

// State returns the resolver state
func (r *Resolver) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Loading reports whether a resolution is in flight
func (r *Resolver) Loading() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state == StateResolvingIP || r.state == StateResolvingGPS
}

// Err returns the user-facing message for the most recent failure, or
// "" when the last transition succeeded
func (r *Resolver) Err() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.errMsg
}

// ErrCause returns the sentinel behind Err for programmatic checks
func (r *Resolver) ErrCause() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.errCause
}

// Resolve attempts the IP-based lookup first (no permission prompt)
// and falls back to the GPS path when it fails.
func (r *Resolver) Resolve(ctx context.Context) *Resolved {
	token := r.begin(StateResolvingIP)

	if r.ipLocator == nil {
		r.logger.Debug("No IP locator configured, going straight to GPS", nil)
		return r.resolveGPS(ctx, token)
	}

	loc, err := r.ipLocator.Lookup(ctx)
	if err != nil {
		r.logger.Warn("IP lookup failed, falling back to GPS", map[string]interface{}{
			"error": err.Error(),
		})
		r.setState(token, StateResolvingGPS)
		return r.resolveGPS(ctx, token)
	}

	return r.commit(ctx, token, &Resolved{
		Formatted:  loc.Formatted(),
		Latitude:   loc.Latitude,
		Longitude:  loc.Longitude,
		HasCoords:  true,
		Source:     SourceIP,
		Accuracy:   AccuracyCity,
		ResolvedAt: time.Now(),
	})
}

// Refresh re-runs the default resolution chain from scratch
func (r *Resolver) Refresh(ctx context.Context) *Resolved {
	return r.Resolve(ctx)
}

// PreciseLocation skips the IP step and goes straight to the GPS plus
// reverse-geocode path.
func (r *Resolver) PreciseLocation(ctx context.Context) *Resolved {
	token := r.begin(StateResolvingGPS)
	return r.resolveGPS(ctx, token)
}

// SetManual immediately resolves with the given text verbatim,
// bypassing all network calls. It also invalidates any resolution
// still in flight: a late network result must not clobber an explicit
// user choice.
func (r *Resolver) SetManual(addressText string) *Resolved {
	token := r.latest.Add(1)
	return r.commit(context.Background(), token, &Resolved{
		Formatted:  addressText,
		Source:     SourceManual,
		Accuracy:   AccuracyApproximate,
		ResolvedAt: time.Now(),
	})
}

// Search resolves a free-text address query through the forward
// geocoder and commits the best match as a manual selection.
func (r *Resolver) Search(ctx context.Context, query string) *Resolved {
	token := r.begin(StateResolvingIP)

	if r.geocoder == nil {
		return r.fail(ctx, token, core.ErrNoResults)
	}

	place, err := r.geocoder.Search(ctx, query)
	if err != nil {
		return r.fail(ctx, token, err)
	}

	formatted := FormatAddress(place.Address)
	if formatted == "" {
		formatted = place.DisplayName
	}
	if formatted == "" {
		formatted = Coordinates(place.Latitude, place.Longitude)
	}

	addr := place.Address
	return r.commit(ctx, token, &Resolved{
		Formatted:  formatted,
		Address:    &addr,
		Latitude:   place.Latitude,
		Longitude:  place.Longitude,
		HasCoords:  true,
		Source:     SourceManual,
		Accuracy:   ClassifyAccuracy(place.Address),
		ResolvedAt: time.Now(),
	})
}

// resolveGPS requests a position fix and reverse-geocodes it. The
// permission prompt may never resolve, so the fix is bounded by the
// configured GPS timeout; expiry is a failure, not a hang.
func (r *Resolver) resolveGPS(ctx context.Context, token uint64) *Resolved {
	if r.geolocator == nil {
		return r.fail(ctx, token, &PositionError{Code: PositionUnsupported})
	}

	gpsCtx, cancel := context.WithTimeout(ctx, r.gpsTimeout)
	defer cancel()

	pos, err := r.geolocator.CurrentPosition(gpsCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = &PositionError{Code: PositionTimeout}
		}
		return r.fail(ctx, token, err)
	}

	if r.geocoder == nil {
		return r.commitCoordsOnly(ctx, token, pos)
	}

	place, err := r.geocoder.Reverse(ctx, pos.Latitude, pos.Longitude)
	if err != nil {
		// We still have a real position; show coordinates rather than
		// discarding the fix over a geocoder outage
		r.logger.Warn("Reverse geocode failed, using raw coordinates", map[string]interface{}{
			"error": err.Error(),
		})
		return r.commitCoordsOnly(ctx, token, pos)
	}

	formatted := FormatAddress(place.Address)
	if formatted == "" {
		formatted = Coordinates(pos.Latitude, pos.Longitude)
	}

	addr := place.Address
	return r.commit(ctx, token, &Resolved{
		Formatted:  formatted,
		Address:    &addr,
		Latitude:   pos.Latitude,
		Longitude:  pos.Longitude,
		HasCoords:  true,
		Source:     SourceGPS,
		Accuracy:   ClassifyAccuracy(place.Address),
		ResolvedAt: time.Now(),
	})
}

func (r *Resolver) commitCoordsOnly(ctx context.Context, token uint64, pos Position) *Resolved {
	return r.commit(ctx, token, &Resolved{
		Formatted:  Coordinates(pos.Latitude, pos.Longitude),
		Latitude:   pos.Latitude,
		Longitude:  pos.Longitude,
		HasCoords:  true,
		Source:     SourceGPS,
		Accuracy:   AccuracyApproximate,
		ResolvedAt: time.Now(),
	})
}

// begin issues a new request token and enters the given resolving state
func (r *Resolver) begin(state State) uint64 {
	token := r.latest.Add(1)

	r.mu.Lock()
	r.state = state
	r.mu.Unlock()

	r.notify()
	return token
}

// setState transitions between resolving states without issuing a new
// token (IP phase handing over to the GPS phase of the same request)
func (r *Resolver) setState(token uint64, state State) {
	if token != r.latest.Load() {
		return
	}

	r.mu.Lock()
	r.state = state
	r.mu.Unlock()

	r.notify()
}

// commit installs a resolution if its token is still the latest.
// Stale results are dropped and the currently displayed location is
// returned unchanged.
func (r *Resolver) commit(ctx context.Context, token uint64, resolved *Resolved) *Resolved {
	r.mu.Lock()
	if token != r.latest.Load() {
		r.logger.Debug("Dropping stale resolution", map[string]interface{}{
			"token":  token,
			"latest": r.latest.Load(),
			"source": string(resolved.Source),
		})
		out := r.current
		r.mu.Unlock()
		return out
	}

	r.current = resolved
	r.state = StateResolved
	r.errMsg = ""
	r.errCause = nil
	r.mu.Unlock()

	r.logger.Info("Location resolved", map[string]interface{}{
		"source":    string(resolved.Source),
		"accuracy":  string(resolved.Accuracy),
		"formatted": resolved.Formatted,
	})
	r.recordResolution(ctx, resolved.Source, "success")
	r.notify()
	return resolved
}

// fail records a failure if its token is still the latest. The last
// good location stays visible; only when nothing has ever resolved
// does the display fall back to the manual-entry sentinel.
func (r *Resolver) fail(ctx context.Context, token uint64, cause error) *Resolved {
	r.mu.Lock()
	if token != r.latest.Load() {
		out := r.current
		r.mu.Unlock()
		return out
	}

	r.state = StateFailed
	r.errCause = cause
	r.errMsg = failureMessage(cause)
	if r.current == nil {
		r.current = &Resolved{
			Formatted:  ManualEntryPrompt,
			Source:     SourceFallback,
			Accuracy:   AccuracyApproximate,
			ResolvedAt: time.Now(),
		}
	}
	out := *r.current
	r.mu.Unlock()

	r.logger.Warn("Location resolution failed", map[string]interface{}{
		"error":   cause.Error(),
		"message": r.Err(),
	})
	r.recordResolution(ctx, SourceFallback, "failure")
	r.notify()
	return &out
}

// failureMessage keys the user-facing message by failure reason.
// Manual entry is always offered as the escape hatch, never a dead end.
func failureMessage(err error) string {
	switch {
	case errors.Is(err, core.ErrPermissionDenied):
		return "Location permission denied. Set your address manually."
	case errors.Is(err, core.ErrTimeout):
		return "Location request timed out. Set your address manually."
	case errors.Is(err, core.ErrUnsupported):
		return "Location services aren't available here. Set your address manually."
	case errors.Is(err, core.ErrPositionUnavailable):
		return "Couldn't determine your position. Set your address manually."
	case errors.Is(err, core.ErrNoResults):
		return "No matching location found. Set your address manually."
	default:
		return "Couldn't look up your location. Set your address manually."
	}
}

func (r *Resolver) recordResolution(ctx context.Context, source Source, outcome string) {
	if r.telemetry != nil {
		r.telemetry.RecordMetric("location.resolutions", 1, map[string]string{
			"source":  string(source),
			"outcome": outcome,
		})
	}
}
