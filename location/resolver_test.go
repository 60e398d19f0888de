package location

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quickplate/storefront/core"
)

type fakeIPLocator struct {
	loc *IPLocation
	err error
	fn  func(ctx context.Context) (*IPLocation, error)
}

func (f *fakeIPLocator) Lookup(ctx context.Context) (*IPLocation, error) {
	if f.fn != nil {
		return f.fn(ctx)
	}
	return f.loc, f.err
}

type fakeGeocoder struct {
	reverse    *Place
	reverseErr error
	search     *Place
	searchErr  error
}

func (f *fakeGeocoder) Reverse(ctx context.Context, lat, lon float64) (*Place, error) {
	return f.reverse, f.reverseErr
}

func (f *fakeGeocoder) Search(ctx context.Context, query string) (*Place, error) {
	return f.search, f.searchErr
}

type fakeGeolocator struct {
	pos Position
	err error
	fn  func(ctx context.Context) (Position, error)
}

func (f *fakeGeolocator) CurrentPosition(ctx context.Context) (Position, error) {
	if f.fn != nil {
		return f.fn(ctx)
	}
	return f.pos, f.err
}

func TestResolve_IPSuccess(t *testing.T) {
	r := NewResolver(ResolverOptions{
		IPLocator: &fakeIPLocator{loc: &IPLocation{
			City:      "Bengaluru",
			Region:    "Karnataka",
			Country:   "India",
			Latitude:  12.9716,
			Longitude: 77.5946,
		}},
	})

	got := r.Resolve(context.Background())
	require.NotNil(t, got)

	assert.Equal(t, "Bengaluru, Karnataka, India", got.Formatted)
	assert.Equal(t, SourceIP, got.Source)
	assert.Equal(t, AccuracyCity, got.Accuracy)
	assert.True(t, got.HasCoords)
	assert.Equal(t, StateResolved, r.State())
	assert.Empty(t, r.Err())
	assert.False(t, r.Loading())
}

func TestResolve_IPFailureFallsBackToGPS(t *testing.T) {
	r := NewResolver(ResolverOptions{
		IPLocator: &fakeIPLocator{err: core.ErrConnectionFailed},
		Geolocator: &fakeGeolocator{pos: Position{
			Latitude:  12.9716,
			Longitude: 77.5946,
		}},
		Geocoder: &fakeGeocoder{reverse: &Place{
			DisplayName: "Indiranagar, Bengaluru",
			Address: Address{
				Suburb:        "Indiranagar",
				City:          "Bengaluru",
				StateDistrict: "Bangalore Urban",
			},
		}},
	})

	got := r.Resolve(context.Background())
	require.NotNil(t, got)

	assert.Equal(t, "Indiranagar, Bengaluru, Bangalore Urban", got.Formatted)
	assert.Equal(t, SourceGPS, got.Source)
	assert.Equal(t, AccuracyArea, got.Accuracy)
	assert.Equal(t, 12.9716, got.Latitude)
	assert.Equal(t, StateResolved, r.State())
}

func TestResolve_BothSourcesFailShowsSentinel(t *testing.T) {
	r := NewResolver(ResolverOptions{
		IPLocator:  &fakeIPLocator{err: core.ErrConnectionFailed},
		Geolocator: &fakeGeolocator{err: &PositionError{Code: PositionPermissionDenied}},
	})

	got := r.Resolve(context.Background())
	require.NotNil(t, got, "the UI always has something to display")

	assert.Equal(t, ManualEntryPrompt, got.Formatted)
	assert.Equal(t, SourceFallback, got.Source)
	assert.Equal(t, StateFailed, r.State())
	assert.Equal(t, "Location permission denied. Set your address manually.", r.Err())
	assert.ErrorIs(t, r.ErrCause(), core.ErrPermissionDenied)
}

func TestResolve_NoSourcesConfigured(t *testing.T) {
	r := NewResolver(ResolverOptions{})

	got := r.Resolve(context.Background())
	require.NotNil(t, got)

	assert.Equal(t, ManualEntryPrompt, got.Formatted)
	assert.Equal(t, "Location services aren't available here. Set your address manually.", r.Err())
	assert.ErrorIs(t, r.ErrCause(), core.ErrUnsupported)
}

func TestResolve_FailureKeepsLastGoodLocation(t *testing.T) {
	ip := &fakeIPLocator{loc: &IPLocation{City: "Bengaluru"}}
	r := NewResolver(ResolverOptions{IPLocator: ip})

	first := r.Resolve(context.Background())
	require.Equal(t, "Bengaluru", first.Formatted)

	// The next refresh fails on every source
	ip.loc = nil
	ip.err = core.ErrConnectionFailed

	got := r.Refresh(context.Background())
	require.NotNil(t, got)

	assert.Equal(t, "Bengaluru", got.Formatted, "last good location stays visible")
	assert.Equal(t, SourceIP, got.Source)
	assert.Equal(t, StateFailed, r.State())
	assert.NotEmpty(t, r.Err())

	current := r.Current()
	require.NotNil(t, current)
	assert.Equal(t, "Bengaluru", current.Formatted)
}

func TestResolve_SuccessClearsPreviousError(t *testing.T) {
	ip := &fakeIPLocator{err: core.ErrConnectionFailed}
	r := NewResolver(ResolverOptions{IPLocator: ip})

	r.Resolve(context.Background())
	require.NotEmpty(t, r.Err())

	ip.err = nil
	ip.loc = &IPLocation{City: "Bengaluru"}

	r.Resolve(context.Background())
	assert.Empty(t, r.Err())
	assert.NoError(t, r.ErrCause())
	assert.Equal(t, StateResolved, r.State())
}

func TestPreciseLocation_SkipsIP(t *testing.T) {
	ipCalled := false
	r := NewResolver(ResolverOptions{
		IPLocator: &fakeIPLocator{fn: func(ctx context.Context) (*IPLocation, error) {
			ipCalled = true
			return &IPLocation{City: "Wrong"}, nil
		}},
		Geolocator: &fakeGeolocator{pos: Position{Latitude: 12.9, Longitude: 77.6}},
		Geocoder:   &fakeGeocoder{reverse: &Place{DisplayName: "x", Address: Address{City: "Bengaluru"}}},
	})

	got := r.PreciseLocation(context.Background())
	require.NotNil(t, got)

	assert.False(t, ipCalled)
	assert.Equal(t, SourceGPS, got.Source)
	assert.Equal(t, "Bengaluru", got.Formatted)
}

func TestPreciseLocation_TimeoutMapsToTimeoutMessage(t *testing.T) {
	r := NewResolver(ResolverOptions{
		GPSTimeout: 10 * time.Millisecond,
		Geolocator: &fakeGeolocator{fn: func(ctx context.Context) (Position, error) {
			<-ctx.Done()
			return Position{}, ctx.Err()
		}},
	})

	got := r.PreciseLocation(context.Background())
	require.NotNil(t, got)

	assert.Equal(t, "Location request timed out. Set your address manually.", r.Err())
	assert.ErrorIs(t, r.ErrCause(), core.ErrTimeout)
}

func TestPreciseLocation_ReverseGeocodeFailureKeepsFix(t *testing.T) {
	r := NewResolver(ResolverOptions{
		Geolocator: &fakeGeolocator{pos: Position{Latitude: 12.9716, Longitude: 77.5946}},
		Geocoder:   &fakeGeocoder{reverseErr: core.ErrConnectionFailed},
	})

	got := r.PreciseLocation(context.Background())
	require.NotNil(t, got)

	// A geocoder outage must not discard a real position fix
	assert.Equal(t, "12.9716, 77.5946", got.Formatted)
	assert.Equal(t, SourceGPS, got.Source)
	assert.Equal(t, AccuracyApproximate, got.Accuracy)
	assert.True(t, got.HasCoords)
	assert.Equal(t, StateResolved, r.State())
	assert.Empty(t, r.Err())
}

func TestSetManual(t *testing.T) {
	r := NewResolver(ResolverOptions{})

	got := r.SetManual("42 MG Road, Bengaluru")
	require.NotNil(t, got)

	assert.Equal(t, "42 MG Road, Bengaluru", got.Formatted)
	assert.Equal(t, SourceManual, got.Source)
	assert.False(t, got.HasCoords)
	assert.Equal(t, StateResolved, r.State())
}

func TestSetManual_InvalidatesInFlightResolution(t *testing.T) {
	release := make(chan struct{})
	r := NewResolver(ResolverOptions{
		IPLocator: &fakeIPLocator{fn: func(ctx context.Context) (*IPLocation, error) {
			<-release
			return &IPLocation{City: "Stale City"}, nil
		}},
	})

	done := make(chan *Resolved, 1)
	go func() {
		done <- r.Resolve(context.Background())
	}()

	// Wait for the resolution to be in flight, then override manually
	require.Eventually(t, r.Loading, time.Second, time.Millisecond)
	r.SetManual("Home")
	close(release)

	got := <-done
	require.NotNil(t, got)

	// The stale IP result was dropped on both the return value and the
	// stored current location
	assert.Equal(t, "Home", got.Formatted)
	assert.Equal(t, SourceManual, got.Source)
	assert.Equal(t, "Home", r.Current().Formatted)
}

func TestSearch(t *testing.T) {
	r := NewResolver(ResolverOptions{
		Geocoder: &fakeGeocoder{search: &Place{
			DisplayName: "Koramangala, Bengaluru, Karnataka, India",
			Latitude:    12.9352,
			Longitude:   77.6245,
			Address: Address{
				Suburb:        "Koramangala",
				City:          "Bengaluru",
				StateDistrict: "Bangalore Urban",
			},
		}},
	})

	got := r.Search(context.Background(), "koramangala")
	require.NotNil(t, got)

	assert.Equal(t, "Koramangala, Bengaluru, Bangalore Urban", got.Formatted)
	assert.Equal(t, SourceManual, got.Source)
	assert.Equal(t, AccuracyArea, got.Accuracy)
	assert.True(t, got.HasCoords)
	assert.Equal(t, 12.9352, got.Latitude)
}

func TestSearch_NoResults(t *testing.T) {
	r := NewResolver(ResolverOptions{
		Geocoder: &fakeGeocoder{searchErr: core.ErrNoResults},
	})

	got := r.Search(context.Background(), "zzzzzz")
	require.NotNil(t, got)

	assert.Equal(t, ManualEntryPrompt, got.Formatted)
	assert.Equal(t, "No matching location found. Set your address manually.", r.Err())
}

func TestSearch_FallsBackToDisplayName(t *testing.T) {
	r := NewResolver(ResolverOptions{
		Geocoder: &fakeGeocoder{search: &Place{
			DisplayName: "Somewhere, India",
			Latitude:    10,
			Longitude:   76,
		}},
	})

	got := r.Search(context.Background(), "somewhere")
	require.NotNil(t, got)
	assert.Equal(t, "Somewhere, India", got.Formatted)
}

func TestCurrent_ReturnsCopy(t *testing.T) {
	r := NewResolver(ResolverOptions{
		IPLocator: &fakeIPLocator{loc: &IPLocation{City: "Bengaluru"}},
	})
	r.Resolve(context.Background())

	first := r.Current()
	first.Formatted = "mutated"

	assert.Equal(t, "Bengaluru", r.Current().Formatted)
}

func TestSubscribe_NotifiesOnTransitions(t *testing.T) {
	r := NewResolver(ResolverOptions{
		IPLocator: &fakeIPLocator{loc: &IPLocation{City: "Bengaluru"}},
	})

	calls := 0
	unsubscribe := r.Subscribe(func() { calls++ })

	r.Resolve(context.Background())
	// One notification entering the resolving state, one on commit
	assert.Equal(t, 2, calls)

	unsubscribe()
	r.Resolve(context.Background())
	assert.Equal(t, 2, calls)
}

func TestPositionError_Unwrap(t *testing.T) {
	tests := []struct {
		code PositionErrorCode
		want error
	}{
		{PositionPermissionDenied, core.ErrPermissionDenied},
		{PositionUnavailable, core.ErrPositionUnavailable},
		{PositionTimeout, core.ErrTimeout},
		{PositionUnsupported, core.ErrUnsupported},
	}
	for _, tt := range tests {
		err := &PositionError{Code: tt.code}
		assert.ErrorIs(t, err, tt.want)
	}
}
