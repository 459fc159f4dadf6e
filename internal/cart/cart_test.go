package cart

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campushub/campus-events/internal/model"
	"github.com/campushub/campus-events/internal/statestore"
)

type registeredSet map[string]bool

func (r registeredSet) IsRegistered(id string) bool { return r[id] }

func event(id string, fee float64) model.NormalizedEvent {
	return model.NormalizedEvent{ID: id, DisplayName: "Event " + id, Fee: fee, CapacityMax: 10}
}

func TestAddAndTotal(t *testing.T) {
	ctx := context.Background()
	c, err := Load(ctx, statestore.NewMemory(), "sara@uni.edu", nil)
	require.NoError(t, err)

	require.NoError(t, c.Add(ctx, event("w1", 0)))
	require.NoError(t, c.Add(ctx, event("t1", 250)))

	assert.Equal(t, 2, c.Len())
	assert.Equal(t, 250.0, c.Total())
}

func TestAddDuplicateIsRejectedWithoutMutation(t *testing.T) {
	ctx := context.Background()
	c, err := Load(ctx, statestore.NewMemory(), "sara@uni.edu", nil)
	require.NoError(t, err)

	require.NoError(t, c.Add(ctx, event("t1", 250)))
	err = c.Add(ctx, event("t1", 250))
	require.ErrorIs(t, err, ErrAlreadyInCart)

	assert.Equal(t, 1, c.Len())
	assert.Equal(t, 250.0, c.Total(), "second add must not change the total")
}

func TestAddGuards(t *testing.T) {
	ctx := context.Background()

	full := event("full", 100)
	full.CapacityCurrent = full.CapacityMax

	c, err := Load(ctx, statestore.NewMemory(), "sara@uni.edu", registeredSet{"done": true})
	require.NoError(t, err)

	assert.ErrorIs(t, c.Add(ctx, full), ErrEventFull)
	assert.ErrorIs(t, c.Add(ctx, event("done", 50)), ErrAlreadyRegistered)
	assert.Equal(t, 0, c.Len())
}

func TestFeeCapturedAtAddTime(t *testing.T) {
	ctx := context.Background()
	c, err := Load(ctx, statestore.NewMemory(), "sara@uni.edu", nil)
	require.NoError(t, err)

	ev := event("t1", 250)
	require.NoError(t, c.Add(ctx, ev))

	// A later catalog refresh changing the fee must not affect the cart.
	items := c.Items()
	require.Len(t, items, 1)
	assert.Equal(t, 250.0, items[0].Fee)
	assert.Equal(t, 250.0, c.Total())
}

func TestRemoveIsIdempotent(t *testing.T) {
	ctx := context.Background()
	c, err := Load(ctx, statestore.NewMemory(), "sara@uni.edu", nil)
	require.NoError(t, err)

	require.NoError(t, c.Add(ctx, event("t1", 250)))
	require.NoError(t, c.Remove(ctx, "t1"))
	require.NoError(t, c.Remove(ctx, "t1"))
	require.NoError(t, c.Remove(ctx, "never-added"))
	assert.Equal(t, 0, c.Len())
}

func TestCartSurvivesReload(t *testing.T) {
	ctx := context.Background()
	store := statestore.NewMemory()

	c, err := Load(ctx, store, "sara@uni.edu", nil)
	require.NoError(t, err)
	require.NoError(t, c.Add(ctx, event("t1", 250)))

	reloaded, err := Load(ctx, store, "sara@uni.edu", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, reloaded.Len())
	assert.Equal(t, 250.0, reloaded.Total())
}

func TestCartsAreKeyedPerUser(t *testing.T) {
	ctx := context.Background()
	store := statestore.NewMemory()

	first, err := Load(ctx, store, "sara@uni.edu", nil)
	require.NoError(t, err)
	require.NoError(t, first.Add(ctx, event("t1", 250)))

	other, err := Load(ctx, store, "omar@uni.edu", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, other.Len(), "another user's cart must start empty")
}

func TestCorruptPersistedCartStartsEmpty(t *testing.T) {
	ctx := context.Background()
	store := statestore.NewMemory()
	require.NoError(t, store.Set(ctx, Key("sara@uni.edu"), []byte("{not json")))

	c, err := Load(ctx, store, "sara@uni.edu", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, c.Len())
}

func TestClearRemovesPersistedState(t *testing.T) {
	ctx := context.Background()
	store := statestore.NewMemory()

	c, err := Load(ctx, store, "sara@uni.edu", nil)
	require.NoError(t, err)
	require.NoError(t, c.Add(ctx, event("t1", 250)))
	require.NoError(t, c.Clear(ctx))

	_, err = store.Get(ctx, Key("sara@uni.edu"))
	assert.ErrorIs(t, err, statestore.ErrNotFound)
}

func TestFavoritesToggle(t *testing.T) {
	ctx := context.Background()
	store := statestore.NewMemory()

	f, err := LoadFavorites(ctx, store, "sara@uni.edu")
	require.NoError(t, err)

	on, err := f.Toggle(ctx, "e1")
	require.NoError(t, err)
	assert.True(t, on)
	assert.True(t, f.Contains("e1"))

	reloaded, err := LoadFavorites(ctx, store, "sara@uni.edu")
	require.NoError(t, err)
	assert.True(t, reloaded.Contains("e1"))

	off, err := reloaded.Toggle(ctx, "e1")
	require.NoError(t, err)
	assert.False(t, off)
	assert.False(t, reloaded.Contains("e1"))
}

type failingStore struct {
	statestore.Store
	fail bool
}

func (f *failingStore) Set(ctx context.Context, key string, value []byte) error {
	if f.fail {
		return errors.New("disk full")
	}
	return f.Store.Set(ctx, key, value)
}

func TestAddRollsBackWhenPersistFails(t *testing.T) {
	ctx := context.Background()
	store := &failingStore{Store: statestore.NewMemory()}
	c, err := Load(ctx, store, "sara@uni.edu", nil)
	require.NoError(t, err)

	store.fail = true
	require.Error(t, c.Add(ctx, event("t1", 250)))
	assert.Equal(t, 0, c.Len(), "a failed write must not leave the item in memory")

	store.fail = false
	require.NoError(t, c.Add(ctx, event("t1", 250)))
	assert.Equal(t, 1, c.Len())
}
