// Package address manages the user's saved delivery addresses: CRUD
// over a small persisted list with a single-default invariant.
package address

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/quickplate/storefront/core"
	"github.com/quickplate/storefront/location"
)

// Persistence key used by the book
const savedAddressesKey = "savedAddresses"

// Type labels a saved address
type Type string

const (
	TypeHome  Type = "home"
	TypeWork  Type = "work"
	TypeOther Type = "other"
)

// SavedAddress is a user-persisted, reusable delivery address distinct
// from the currently resolved one. At most one address is the default
// at any time.
type SavedAddress struct {
	ID        string    `json:"id"`
	Label     string    `json:"label"`
	Address   string    `json:"address"`
	Landmark  string    `json:"landmark,omitempty"`
	Type      Type      `json:"type"`
	IsDefault bool      `json:"isDefault"`
	Latitude  float64   `json:"latitude,omitempty"`
	Longitude float64   `json:"longitude,omitempty"`
	HasCoords bool      `json:"hasCoords"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Book owns the saved-address list. Every mutation persists the whole
// list in one write, so the single-default invariant is never visible
// half-applied to a reader.
type Book struct {
	mu       sync.RWMutex
	storage  core.Storage
	geocoder location.Geocoder
	logger   core.Logger
	now      func() time.Time
	newID    func() string

	addresses []SavedAddress

	subMu   sync.Mutex
	subs    map[int]core.Subscriber
	nextSub int
}

// BookOption configures a Book
type BookOption func(*Book)

// WithLogger sets the book logger
func WithLogger(logger core.Logger) BookOption {
	return func(b *Book) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithGeocoder enables best-effort coordinate lookup on save. A failed
// or absent geocoder never blocks the save.
func WithGeocoder(geocoder location.Geocoder) BookOption {
	return func(b *Book) {
		b.geocoder = geocoder
	}
}

// WithClock overrides the time source (useful for testing)
func WithClock(now func() time.Time) BookOption {
	return func(b *Book) {
		if now != nil {
			b.now = now
		}
	}
}

// NewBook creates an address book seeded from persisted state.
// Malformed persisted documents are treated as absent.
func NewBook(ctx context.Context, storage core.Storage, opts ...BookOption) (*Book, error) {
	if storage == nil {
		return nil, fmt.Errorf("address.NewBook: storage is required: %w", core.ErrMissingConfiguration)
	}

	b := &Book{
		storage: storage,
		logger:  &core.NoOpLogger{},
		now:     time.Now,
		newID:   uuid.NewString,
		subs:    make(map[int]core.Subscriber),
	}
	for _, opt := range opts {
		opt(b)
	}

	data, err := storage.Load(ctx, savedAddressesKey)
	if err != nil {
		b.logger.Warn("Failed to load saved addresses, starting empty", map[string]interface{}{
			"error": err.Error(),
		})
	} else if len(data) > 0 {
		if err := json.Unmarshal(data, &b.addresses); err != nil {
			b.logger.Warn("Discarding malformed saved addresses", map[string]interface{}{
				"error": err.Error(),
			})
			b.addresses = nil
		}
	}

	return b, nil
}

// Subscribe registers a change callback and returns an unsubscribe function
func (b *Book) Subscribe(fn core.Subscriber) func() {
	b.subMu.Lock()
	defer b.subMu.Unlock()

	id := b.nextSub
	b.nextSub++
	b.subs[id] = fn

	return func() {
		b.subMu.Lock()
		defer b.subMu.Unlock()
		delete(b.subs, id)
	}
}

func (b *Book) notify() {
	b.subMu.Lock()
	subs := make([]core.Subscriber, 0, len(b.subs))
	for _, fn := range b.subs {
		subs = append(subs, fn)
	}
	b.subMu.Unlock()

	for _, fn := range subs {
		fn()
	}
}

// All returns a snapshot copy of the saved addresses
func (b *Book) All() []SavedAddress {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]SavedAddress, len(b.addresses))
	copy(out, b.addresses)
	return out
}

// Default returns the default address, or nil if none is set
func (b *Book) Default() *SavedAddress {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for i := range b.addresses {
		if b.addresses[i].IsDefault {
			out := b.addresses[i]
			return &out
		}
	}
	return nil
}

// Create saves a new address. When the new address is marked default,
// the flag is cleared on all others in the same persisted write.
func (b *Book) Create(ctx context.Context, addr SavedAddress) (*SavedAddress, error) {
	if addr.Address == "" {
		return nil, &core.StoreError{
			Op:   "address.Create",
			Kind: "address",
			Err:  core.ErrAddressRequired,
		}
	}
	if addr.Type == "" {
		addr.Type = TypeOther
	}

	addr.ID = b.newID()
	addr.CreatedAt = b.now()
	addr.UpdatedAt = addr.CreatedAt
	b.attachCoords(ctx, &addr)

	b.mu.Lock()
	if addr.IsDefault {
		b.clearDefaultLocked()
	}
	b.addresses = append(b.addresses, addr)
	err := b.persistLocked(ctx)
	b.mu.Unlock()

	if err != nil {
		return nil, err
	}

	b.logger.Debug("Saved address created", map[string]interface{}{
		"id":    addr.ID,
		"label": addr.Label,
	})
	b.notify()
	return &addr, nil
}

// Update edits an existing address by id
func (b *Book) Update(ctx context.Context, addr SavedAddress) (*SavedAddress, error) {
	if addr.Address == "" {
		return nil, &core.StoreError{
			Op:   "address.Update",
			Kind: "address",
			Key:  addr.ID,
			Err:  core.ErrAddressRequired,
		}
	}

	// Geocode outside the lock when the address text changed
	prev := b.find(addr.ID)
	if prev == nil {
		return nil, &core.StoreError{
			Op:   "address.Update",
			Kind: "address",
			Key:  addr.ID,
			Err:  core.ErrAddressNotFound,
		}
	}
	if addr.Address != prev.Address {
		b.attachCoords(ctx, &addr)
	} else {
		addr.Latitude = prev.Latitude
		addr.Longitude = prev.Longitude
		addr.HasCoords = prev.HasCoords
	}
	addr.CreatedAt = prev.CreatedAt
	addr.UpdatedAt = b.now()

	b.mu.Lock()
	idx := -1
	for i := range b.addresses {
		if b.addresses[i].ID == addr.ID {
			idx = i
			break
		}
	}
	if idx < 0 {
		b.mu.Unlock()
		return nil, &core.StoreError{
			Op:   "address.Update",
			Kind: "address",
			Key:  addr.ID,
			Err:  core.ErrAddressNotFound,
		}
	}

	if addr.IsDefault {
		b.clearDefaultLocked()
	}
	b.addresses[idx] = addr
	err := b.persistLocked(ctx)
	b.mu.Unlock()

	if err != nil {
		return nil, err
	}
	b.notify()
	return &addr, nil
}

// Delete removes an address by id
func (b *Book) Delete(ctx context.Context, id string) error {
	b.mu.Lock()
	idx := -1
	for i := range b.addresses {
		if b.addresses[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		b.mu.Unlock()
		return &core.StoreError{
			Op:   "address.Delete",
			Kind: "address",
			Key:  id,
			Err:  core.ErrAddressNotFound,
		}
	}
	b.addresses = append(b.addresses[:idx], b.addresses[idx+1:]...)
	err := b.persistLocked(ctx)
	b.mu.Unlock()

	if err != nil {
		return err
	}
	b.notify()
	return nil
}

// SetDefault marks one address as default and clears the flag on all
// others atomically, in a single persisted write.
func (b *Book) SetDefault(ctx context.Context, id string) error {
	b.mu.Lock()
	idx := -1
	for i := range b.addresses {
		if b.addresses[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		b.mu.Unlock()
		return &core.StoreError{
			Op:   "address.SetDefault",
			Kind: "address",
			Key:  id,
			Err:  core.ErrAddressNotFound,
		}
	}

	b.clearDefaultLocked()
	b.addresses[idx].IsDefault = true
	b.addresses[idx].UpdatedAt = b.now()
	err := b.persistLocked(ctx)
	b.mu.Unlock()

	if err != nil {
		return err
	}
	b.notify()
	return nil
}

// find returns a copy of the address with the given id, or nil
func (b *Book) find(id string) *SavedAddress {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for i := range b.addresses {
		if b.addresses[i].ID == id {
			out := b.addresses[i]
			return &out
		}
	}
	return nil
}

// clearDefaultLocked clears IsDefault everywhere. Callers hold the mutex.
func (b *Book) clearDefaultLocked() {
	for i := range b.addresses {
		b.addresses[i].IsDefault = false
	}
}

// persistLocked writes the whole list. Callers hold the mutex.
func (b *Book) persistLocked(ctx context.Context) error {
	data, err := json.Marshal(b.addresses)
	if err != nil {
		return fmt.Errorf("address.persist: %w", err)
	}
	if err := b.storage.Save(ctx, savedAddressesKey, data); err != nil {
		b.logger.Error("Failed to persist saved addresses", map[string]interface{}{
			"error": err.Error(),
		})
		return fmt.Errorf("address.persist: %w", err)
	}
	return nil
}

// attachCoords forward-geocodes the address text, best effort
func (b *Book) attachCoords(ctx context.Context, addr *SavedAddress) {
	if b.geocoder == nil {
		return
	}

	place, err := b.geocoder.Search(ctx, addr.Address)
	if err != nil {
		b.logger.Debug("Skipping coordinates for saved address", map[string]interface{}{
			"label": addr.Label,
			"error": err.Error(),
		})
		return
	}
	addr.Latitude = place.Latitude
	addr.Longitude = place.Longitude
	addr.HasCoords = true
}
