// Package auth tracks session presence: a name and phone number, no
// real verification. Cart, checkout, and order history are gated on it
// by the composition layer.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/quickplate/storefront/core"
)

// Persistence key used by the store
const userKey = "user"

// User is the signed-in session record
type User struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	PhoneNumber string    `json:"phoneNumber"`
	SignedInAt  time.Time `json:"signedInAt"`
}

// Store holds the current session, persisted under the `user` key so
// it survives reloads.
type Store struct {
	mu      sync.RWMutex
	storage core.Storage
	logger  core.Logger
	now     func() time.Time
	newID   func() string

	user *User

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

// WithClock overrides the time source (useful for testing)
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore creates an auth store seeded from the persisted session.
// A malformed persisted session is treated as signed out.
func NewStore(ctx context.Context, storage core.Storage, opts ...StoreOption) (*Store, error) {
	if storage == nil {
		return nil, fmt.Errorf("auth.NewStore: storage is required: %w", core.ErrMissingConfiguration)
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

	data, err := storage.Load(ctx, userKey)
	if err != nil {
		s.logger.Warn("Failed to load session, starting signed out", map[string]interface{}{
			"error": err.Error(),
		})
	} else if len(data) > 0 {
		var u User
		if err := json.Unmarshal(data, &u); err != nil {
			s.logger.Warn("Discarding malformed session", map[string]interface{}{
				"error": err.Error(),
			})
		} else {
			s.user = &u
		}
	}

	return s, nil
}

// Subscribe registers a change callback and returns an unsubscribe function
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

// SignIn establishes a session. Both fields are required; nothing is
// verified beyond presence.
func (s *Store) SignIn(ctx context.Context, name, phoneNumber string) (*User, error) {
	if name == "" || phoneNumber == "" {
		return nil, &core.StoreError{
			Op:      "auth.SignIn",
			Kind:    "auth",
			Message: "name and phone number are required",
			Err:     core.ErrInvalidConfiguration,
		}
	}

	user := &User{
		ID:          s.newID(),
		Name:        name,
		PhoneNumber: phoneNumber,
		SignedInAt:  s.now(),
	}

	data, err := json.Marshal(user)
	if err != nil {
		return nil, fmt.Errorf("auth.SignIn: %w", err)
	}

	s.mu.Lock()
	if err := s.storage.Save(ctx, userKey, data); err != nil {
		s.mu.Unlock()
		s.logger.Error("Failed to persist session", map[string]interface{}{
			"error": err.Error(),
		})
		return nil, fmt.Errorf("auth.SignIn: %w", err)
	}
	s.user = user
	s.mu.Unlock()

	s.logger.Info("Signed in", map[string]interface{}{
		"user_id": user.ID,
	})
	s.notify()
	out := *user
	return &out, nil
}

// SignOut clears the session. Signing out while signed out is a no-op.
func (s *Store) SignOut(ctx context.Context) error {
	s.mu.Lock()
	if s.user == nil {
		s.mu.Unlock()
		return nil
	}
	if err := s.storage.Delete(ctx, userKey); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("auth.SignOut: %w", err)
	}
	s.user = nil
	s.mu.Unlock()

	s.logger.Info("Signed out", nil)
	s.notify()
	return nil
}

// Current returns the signed-in user, or nil
func (s *Store) Current() *User {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.user == nil {
		return nil
	}
	out := *s.user
	return &out
}

// SignedIn reports whether a session is present
func (s *Store) SignedIn() bool {
	return s.Current() != nil
}
