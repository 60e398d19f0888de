package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/quickplate/storefront/core"
)

// Persistence keys used by the store
const (
	cartKey   = "cart"
	ordersKey = "orders"
)

// Store owns the cart line items and the order history. All mutations
// are serialized under one mutex and persisted before subscribers are
// notified. Construct isolated instances per application (or test)
// instead of sharing process-wide state.
type Store struct {
	mu        sync.RWMutex
	storage   core.Storage
	logger    core.Logger
	telemetry core.Telemetry
	now       func() time.Time
	newID     func() string

	lines  []LineItem
	orders []Order // most recent first

	subMu   sync.Mutex
	subs    map[int]core.Subscriber
	nextSub int
}

// StoreOption configures a Store
type StoreOption func(*Store)

// WithLogger sets the store logger
func WithLogger(logger core.Logger) StoreOption {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithTelemetry sets the store telemetry
func WithTelemetry(telemetry core.Telemetry) StoreOption {
	return func(s *Store) {
		if telemetry != nil {
			s.telemetry = telemetry
		}
	}
}

// WithClock overrides the time source (useful for testing)
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator overrides order id generation (useful for testing)
func WithIDGenerator(newID func() string) StoreOption {
	return func(s *Store) {
		if newID != nil {
			s.newID = newID
		}
	}
}

// NewStore creates a cart store and seeds it from persisted state.
// Malformed persisted documents are treated as absent: a corrupt cart
// never prevents startup.
func NewStore(ctx context.Context, storage core.Storage, opts ...StoreOption) (*Store, error) {
	if storage == nil {
		return nil, fmt.Errorf("cart.NewStore: storage is required: %w", core.ErrMissingConfiguration)
	}

	s := &Store{
		storage: storage,
		logger:  &core.NoOpLogger{},
		now:     time.Now,
		newID:   uuid.NewString,
		subs:    make(map[int]core.Subscriber),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.lines = loadCollection[LineItem](ctx, s.storage, s.logger, cartKey)
	s.orders = loadCollection[Order](ctx, s.storage, s.logger, ordersKey)

	return s, nil
}

// loadCollection reads and decodes a persisted JSON array, returning
// nil on absence or corruption. Decode failures are logged and zeroed,
// never propagated.
func loadCollection[T any](ctx context.Context, storage core.Storage, logger core.Logger, key string) []T {
	data, err := storage.Load(ctx, key)
	if err != nil {
		logger.Warn("Failed to load persisted state, starting empty", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
		return nil
	}
	if len(data) == 0 {
		return nil
	}

	var out []T
	if err := json.Unmarshal(data, &out); err != nil {
		logger.Warn("Discarding malformed persisted state", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
		return nil
	}
	return out
}

// Subscribe registers a change callback and returns an unsubscribe
// function. Callbacks fire after every committed mutation.
func (s *Store) Subscribe(fn core.Subscriber) func() {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn

	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.subs, id)
	}
}

func (s *Store) notify() {
	s.subMu.Lock()
	subs := make([]core.Subscriber, 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.subMu.Unlock()

	for _, fn := range subs {
		fn()
	}
}

// AddItem inserts a new line with quantity 1, or increments the
// quantity of the existing line with the same (itemId, restaurantId).
// The item is validated at the boundary: missing identity or a
// negative price is rejected before any state changes.
func (s *Store) AddItem(ctx context.Context, item Item) error {
	if item.ItemID == "" || item.RestaurantID == 0 {
		return &core.StoreError{
			Op:   "cart.AddItem",
			Kind: "cart",
			Key:  item.ItemID,
			Err:  core.ErrMissingIdentity,
		}
	}
	if item.PriceInCents < 0 {
		return &core.StoreError{
			Op:   "cart.AddItem",
			Kind: "cart",
			Key:  item.ItemID,
			Err:  core.ErrNegativePrice,
		}
	}

	s.mu.Lock()
	found := false
	for i := range s.lines {
		if s.lines[i].ItemID == item.ItemID && s.lines[i].RestaurantID == item.RestaurantID {
			s.lines[i].Quantity++
			found = true
			break
		}
	}
	if !found {
		s.lines = append(s.lines, LineItem{Item: item, Quantity: 1})
	}
	err := s.persistCart(ctx)
	s.mu.Unlock()

	if err != nil {
		return err
	}

	s.logger.Debug("Item added to cart", map[string]interface{}{
		"item_id":       item.ItemID,
		"restaurant_id": item.RestaurantID,
		"merged":        found,
	})
	s.recordMutation(ctx, "add")
	s.notify()
	return nil
}

// RemoveItem deletes the matching line. Removing an absent line is a
// defined no-op, not an error.
func (s *Store) RemoveItem(ctx context.Context, itemID string, restaurantID int64) error {
	s.mu.Lock()
	removed := false
	for i := range s.lines {
		if s.lines[i].ItemID == itemID && s.lines[i].RestaurantID == restaurantID {
			s.lines = append(s.lines[:i], s.lines[i+1:]...)
			removed = true
			break
		}
	}
	var err error
	if removed {
		err = s.persistCart(ctx)
	}
	s.mu.Unlock()

	if err != nil {
		return err
	}
	if removed {
		s.recordMutation(ctx, "remove")
		s.notify()
	}
	return nil
}

// SetQuantity overwrites the quantity of an existing line. A quantity
// of zero or less removes the line, exactly like RemoveItem. Setting a
// quantity on an absent line does not create it.
func (s *Store) SetQuantity(ctx context.Context, itemID string, restaurantID int64, quantity int64) error {
	if quantity <= 0 {
		return s.RemoveItem(ctx, itemID, restaurantID)
	}

	s.mu.Lock()
	changed := false
	for i := range s.lines {
		if s.lines[i].ItemID == itemID && s.lines[i].RestaurantID == restaurantID {
			s.lines[i].Quantity = quantity
			changed = true
			break
		}
	}
	var err error
	if changed {
		err = s.persistCart(ctx)
	}
	s.mu.Unlock()

	if err != nil {
		return err
	}
	if changed {
		s.recordMutation(ctx, "set_quantity")
		s.notify()
	}
	return nil
}

// Clear empties all lines and persists the empty cart
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.lines = nil
	err := s.persistCart(ctx)
	s.mu.Unlock()

	if err != nil {
		return err
	}
	s.recordMutation(ctx, "clear")
	s.notify()
	return nil
}

// Items returns a snapshot copy of the current lines
func (s *Store) Items() []LineItem {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]LineItem, len(s.lines))
	copy(out, s.lines)
	return out
}

// TotalItems returns the sum of quantities over all lines. Always
// recomputed from the live lines, never cached.
func (s *Store) TotalItems() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total int64
	for _, l := range s.lines {
		total += l.Quantity
	}
	return total
}

// TotalPriceInCents returns the sum of price*quantity over all lines
func (s *Store) TotalPriceInCents() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return totalOf(s.lines)
}

func totalOf(lines []LineItem) int64 {
	var total int64
	for _, l := range lines {
		total += l.Subtotal()
	}
	return total
}

// Orders returns a snapshot copy of the order history, most recent first
func (s *Store) Orders() []Order {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Order, len(s.orders))
	copy(out, s.orders)
	return out
}

// CreateOrder snapshots the current cart into a new pending order,
// prepends it to the order history, clears the cart, and persists
// both collections. The snapshot is a structural copy: later cart
// mutations cannot reach into a created order.
func (s *Store) CreateOrder(ctx context.Context, details CheckoutDetails) (*Order, error) {
	s.mu.Lock()

	items := make([]LineItem, len(s.lines))
	copy(items, s.lines)

	order := Order{
		ID:           s.newID(),
		Items:        items,
		Details:      details,
		TotalInCents: totalOf(items),
		Status:       OrderStatusPending,
		CreatedAt:    s.now(),
	}

	s.orders = append([]Order{order}, s.orders...)
	s.lines = nil

	if err := s.persistOrders(ctx); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	err := s.persistCart(ctx)
	s.mu.Unlock()

	if err != nil {
		return nil, err
	}

	s.logger.Info("Order created", map[string]interface{}{
		"order_id":       order.ID,
		"item_count":     len(order.Items),
		"total_in_cents": order.TotalInCents,
	})
	if s.telemetry != nil {
		s.telemetry.RecordMetric("orders.created", 1, map[string]string{
			"status": string(order.Status),
		})
	}
	s.notify()
	return &order, nil
}

// persistCart writes the cart collection. Callers hold the mutex.
func (s *Store) persistCart(ctx context.Context) error {
	data, err := json.Marshal(s.lines)
	if err != nil {
		return fmt.Errorf("cart.persist: %w", err)
	}
	if err := s.storage.Save(ctx, cartKey, data); err != nil {
		s.logger.Error("Failed to persist cart", map[string]interface{}{
			"error": err.Error(),
		})
		return fmt.Errorf("cart.persist: %w", err)
	}
	return nil
}

// persistOrders writes the order history. Callers hold the mutex.
func (s *Store) persistOrders(ctx context.Context) error {
	data, err := json.Marshal(s.orders)
	if err != nil {
		return fmt.Errorf("cart.persistOrders: %w", err)
	}
	if err := s.storage.Save(ctx, ordersKey, data); err != nil {
		s.logger.Error("Failed to persist orders", map[string]interface{}{
			"error": err.Error(),
		})
		return fmt.Errorf("cart.persistOrders: %w", err)
	}
	return nil
}

func (s *Store) recordMutation(ctx context.Context, kind string) {
	if s.telemetry != nil {
		s.telemetry.RecordMetric("cart.mutations", 1, map[string]string{
			"kind": kind,
		})
	}
}
