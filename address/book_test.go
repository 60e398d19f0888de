package address

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quickplate/storefront/core"
	"github.com/quickplate/storefront/location"
)

type fakeGeocoder struct {
	place *location.Place
	err   error
	calls int
}

func (f *fakeGeocoder) Reverse(ctx context.Context, lat, lon float64) (*location.Place, error) {
	return f.place, f.err
}

func (f *fakeGeocoder) Search(ctx context.Context, query string) (*location.Place, error) {
	f.calls++
	return f.place, f.err
}

func newTestBook(t *testing.T, opts ...BookOption) *Book {
	t.Helper()
	book, err := NewBook(context.Background(), core.NewMemoryStorage(), opts...)
	require.NoError(t, err)
	return book
}

func TestCreate(t *testing.T) {
	book := newTestBook(t)

	created, err := book.Create(context.Background(), SavedAddress{
		Label:   "Home",
		Address: "42 MG Road, Bengaluru",
		Type:    TypeHome,
	})
	require.NoError(t, err)

	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "Home", created.Label)
	assert.Equal(t, TypeHome, created.Type)
	assert.False(t, created.CreatedAt.IsZero())
	assert.Len(t, book.All(), 1)
}

func TestCreate_RequiresAddressText(t *testing.T) {
	book := newTestBook(t)

	_, err := book.Create(context.Background(), SavedAddress{Label: "Home"})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrAddressRequired)
	assert.Empty(t, book.All())
}

func TestCreate_DefaultsTypeToOther(t *testing.T) {
	book := newTestBook(t)

	created, err := book.Create(context.Background(), SavedAddress{Address: "X"})
	require.NoError(t, err)
	assert.Equal(t, TypeOther, created.Type)
}

func TestDefaultExclusivity(t *testing.T) {
	book := newTestBook(t)
	ctx := context.Background()

	first, err := book.Create(ctx, SavedAddress{Address: "A", IsDefault: true})
	require.NoError(t, err)
	second, err := book.Create(ctx, SavedAddress{Address: "B", IsDefault: true})
	require.NoError(t, err)

	// Creating a second default demotes the first
	assertSingleDefault(t, book, second.ID)

	require.NoError(t, book.SetDefault(ctx, first.ID))
	assertSingleDefault(t, book, first.ID)
}

func assertSingleDefault(t *testing.T, book *Book, wantID string) {
	t.Helper()

	defaults := 0
	for _, a := range book.All() {
		if a.IsDefault {
			defaults++
			assert.Equal(t, wantID, a.ID)
		}
	}
	assert.Equal(t, 1, defaults, "exactly one address may be the default")

	def := book.Default()
	require.NotNil(t, def)
	assert.Equal(t, wantID, def.ID)
}

func TestDefault_NoneSet(t *testing.T) {
	book := newTestBook(t)
	_, err := book.Create(context.Background(), SavedAddress{Address: "A"})
	require.NoError(t, err)

	assert.Nil(t, book.Default())
}

func TestUpdate(t *testing.T) {
	fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := fixed
	book := newTestBook(t, WithClock(func() time.Time { return clock }))
	ctx := context.Background()

	created, err := book.Create(ctx, SavedAddress{Label: "Home", Address: "Old Street"})
	require.NoError(t, err)

	clock = fixed.Add(time.Hour)
	created.Label = "Home Sweet Home"
	updated, err := book.Update(ctx, *created)
	require.NoError(t, err)

	assert.Equal(t, "Home Sweet Home", updated.Label)
	assert.True(t, updated.CreatedAt.Equal(fixed), "creation time is preserved")
	assert.True(t, updated.UpdatedAt.Equal(fixed.Add(time.Hour)))
}

func TestUpdate_UnknownID(t *testing.T) {
	book := newTestBook(t)

	_, err := book.Update(context.Background(), SavedAddress{ID: "ghost", Address: "X"})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrAddressNotFound)
	assert.True(t, core.IsNotFound(err))
}

func TestDelete(t *testing.T) {
	book := newTestBook(t)
	ctx := context.Background()

	created, err := book.Create(ctx, SavedAddress{Address: "A"})
	require.NoError(t, err)

	require.NoError(t, book.Delete(ctx, created.ID))
	assert.Empty(t, book.All())

	err = book.Delete(ctx, created.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrAddressNotFound)
}

func TestSetDefault_UnknownID(t *testing.T) {
	book := newTestBook(t)

	err := book.SetDefault(context.Background(), "ghost")
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrAddressNotFound)
}

func TestPersistenceRoundTrip(t *testing.T) {
	storage := core.NewMemoryStorage()
	ctx := context.Background()

	book, err := NewBook(ctx, storage)
	require.NoError(t, err)

	created, err := book.Create(ctx, SavedAddress{Label: "Home", Address: "A", IsDefault: true})
	require.NoError(t, err)
	_, err = book.Create(ctx, SavedAddress{Label: "Work", Address: "B"})
	require.NoError(t, err)

	reloaded, err := NewBook(ctx, storage)
	require.NoError(t, err)

	assert.Len(t, reloaded.All(), 2)
	def := reloaded.Default()
	require.NotNil(t, def)
	assert.Equal(t, created.ID, def.ID)
}

func TestMalformedPersistedStateStartsEmpty(t *testing.T) {
	storage := core.NewMemoryStorage()
	ctx := context.Background()

	require.NoError(t, storage.Save(ctx, "savedAddresses", []byte("[{broken")))

	book, err := NewBook(ctx, storage)
	require.NoError(t, err)
	assert.Empty(t, book.All())
}

func TestCreate_AttachesCoordinates(t *testing.T) {
	geo := &fakeGeocoder{place: &location.Place{
		DisplayName: "42 MG Road, Bengaluru",
		Latitude:    12.9752,
		Longitude:   77.6057,
	}}
	book := newTestBook(t, WithGeocoder(geo))

	created, err := book.Create(context.Background(), SavedAddress{Address: "42 MG Road"})
	require.NoError(t, err)

	assert.True(t, created.HasCoords)
	assert.Equal(t, 12.9752, created.Latitude)
	assert.Equal(t, 77.6057, created.Longitude)
}

func TestCreate_GeocoderFailureDoesNotBlockSave(t *testing.T) {
	geo := &fakeGeocoder{err: core.ErrNoResults}
	book := newTestBook(t, WithGeocoder(geo))

	created, err := book.Create(context.Background(), SavedAddress{Address: "Unmappable Lane"})
	require.NoError(t, err)
	assert.False(t, created.HasCoords)
}

func TestUpdate_SkipsGeocodeWhenTextUnchanged(t *testing.T) {
	geo := &fakeGeocoder{place: &location.Place{Latitude: 1, Longitude: 2}}
	book := newTestBook(t, WithGeocoder(geo))
	ctx := context.Background()

	created, err := book.Create(ctx, SavedAddress{Address: "Same Street"})
	require.NoError(t, err)
	require.Equal(t, 1, geo.calls)

	created.Label = "Renamed"
	updated, err := book.Update(ctx, *created)
	require.NoError(t, err)

	assert.Equal(t, 1, geo.calls, "unchanged address text must not re-geocode")
	assert.True(t, updated.HasCoords)
	assert.Equal(t, 1.0, updated.Latitude)
}

func TestSubscribe(t *testing.T) {
	book := newTestBook(t)
	ctx := context.Background()

	calls := 0
	unsubscribe := book.Subscribe(func() { calls++ })

	created, err := book.Create(ctx, SavedAddress{Address: "A"})
	require.NoError(t, err)
	require.NoError(t, book.SetDefault(ctx, created.ID))
	assert.Equal(t, 2, calls)

	unsubscribe()
	require.NoError(t, book.Delete(ctx, created.ID))
	assert.Equal(t, 2, calls)
}

func TestNewBook_RequiresStorage(t *testing.T) {
	_, err := NewBook(context.Background(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrMissingConfiguration)
}
