package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quickplate/storefront/core"
)

func TestSignIn(t *testing.T) {
	store, err := NewStore(context.Background(), core.NewMemoryStorage())
	require.NoError(t, err)

	user, err := store.SignIn(context.Background(), "Asha", "+91 98765 43210")
	require.NoError(t, err)

	assert.NotEmpty(t, user.ID)
	assert.Equal(t, "Asha", user.Name)
	assert.Equal(t, "+91 98765 43210", user.PhoneNumber)
	assert.False(t, user.SignedInAt.IsZero())

	assert.True(t, store.SignedIn())
	current := store.Current()
	require.NotNil(t, current)
	assert.Equal(t, user.ID, current.ID)
}

func TestSignIn_RequiresBothFields(t *testing.T) {
	store, err := NewStore(context.Background(), core.NewMemoryStorage())
	require.NoError(t, err)

	tests := []struct {
		name, userName, phone string
	}{
		{"missing name", "", "+91 98765 43210"},
		{"missing phone", "Asha", ""},
		{"missing both", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.SignIn(context.Background(), tt.userName, tt.phone)
			require.Error(t, err)
			assert.ErrorIs(t, err, core.ErrInvalidConfiguration)
		})
	}
	assert.False(t, store.SignedIn())
}

func TestSignOut(t *testing.T) {
	storage := core.NewMemoryStorage()
	ctx := context.Background()

	store, err := NewStore(ctx, storage)
	require.NoError(t, err)

	_, err = store.SignIn(ctx, "Asha", "12345")
	require.NoError(t, err)

	require.NoError(t, store.SignOut(ctx))
	assert.False(t, store.SignedIn())
	assert.Nil(t, store.Current())

	// The persisted session is gone too
	data, err := storage.Load(ctx, "user")
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestSignOut_WhileSignedOutIsNoOp(t *testing.T) {
	store, err := NewStore(context.Background(), core.NewMemoryStorage())
	require.NoError(t, err)

	assert.NoError(t, store.SignOut(context.Background()))
}

func TestSessionSurvivesReload(t *testing.T) {
	storage := core.NewMemoryStorage()
	ctx := context.Background()

	store, err := NewStore(ctx, storage)
	require.NoError(t, err)
	user, err := store.SignIn(ctx, "Asha", "12345")
	require.NoError(t, err)

	reloaded, err := NewStore(ctx, storage)
	require.NoError(t, err)

	assert.True(t, reloaded.SignedIn())
	current := reloaded.Current()
	require.NotNil(t, current)
	assert.Equal(t, user.ID, current.ID)
	assert.Equal(t, "Asha", current.Name)
}

func TestMalformedSessionStartsSignedOut(t *testing.T) {
	storage := core.NewMemoryStorage()
	ctx := context.Background()

	require.NoError(t, storage.Save(ctx, "user", []byte("{broken")))

	store, err := NewStore(ctx, storage)
	require.NoError(t, err)
	assert.False(t, store.SignedIn())
}

func TestSubscribe(t *testing.T) {
	store, err := NewStore(context.Background(), core.NewMemoryStorage())
	require.NoError(t, err)
	ctx := context.Background()

	calls := 0
	unsubscribe := store.Subscribe(func() { calls++ })

	_, err = store.SignIn(ctx, "Asha", "12345")
	require.NoError(t, err)
	require.NoError(t, store.SignOut(ctx))
	assert.Equal(t, 2, calls)

	// Redundant sign-out does not notify
	require.NoError(t, store.SignOut(ctx))
	assert.Equal(t, 2, calls)

	unsubscribe()
	_, err = store.SignIn(ctx, "Asha", "12345")
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestCurrent_ReturnsCopy(t *testing.T) {
	store, err := NewStore(context.Background(), core.NewMemoryStorage())
	require.NoError(t, err)

	_, err = store.SignIn(context.Background(), "Asha", "12345")
	require.NoError(t, err)

	first := store.Current()
	first.Name = "mutated"
	assert.Equal(t, "Asha", store.Current().Name)
}

func TestWithClock(t *testing.T) {
	fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store, err := NewStore(context.Background(), core.NewMemoryStorage(),
		WithClock(func() time.Time { return fixed }),
	)
	require.NoError(t, err)

	user, err := store.SignIn(context.Background(), "Asha", "12345")
	require.NoError(t, err)
	assert.True(t, user.SignedInAt.Equal(fixed))
}
