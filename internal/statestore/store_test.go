package statestore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	_, err := store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Set(ctx, "k", []byte(`{"a":1}`)))
	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(got))

	require.NoError(t, store.Remove(ctx, "k"))
	_, err = store.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileRoundTripAndReload(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.json")

	store, err := NewFile(path, nil)
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, "cart:sara@uni.edu", []byte(`[{"fee":250}]`)))

	reloaded, err := NewFile(path, nil)
	require.NoError(t, err)
	got, err := reloaded.Get(ctx, "cart:sara@uni.edu")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"fee":250}]`, string(got))

	require.NoError(t, reloaded.Remove(ctx, "cart:sara@uni.edu"))
	third, err := NewFile(path, nil)
	require.NoError(t, err)
	_, err = third.Get(ctx, "cart:sara@uni.edu")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileCorruptStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("not json at all"), 0644))

	store, err := NewFile(path, nil)
	require.NoError(t, err)
	_, err = store.Get(context.Background(), "anything")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetJSONTreatsCorruptValueAsAbsent(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	require.NoError(t, store.Set(ctx, "k", []byte("{broken")))

	var dst map[string]int
	found, err := GetJSON(ctx, store, "k", &dst)
	require.NoError(t, err)
	assert.False(t, found)

	// The corrupt blob is discarded.
	_, err = store.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSetJSONGetJSON(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	type payload struct {
		Name string `json:"name"`
	}
	require.NoError(t, SetJSON(ctx, store, "k", payload{Name: "x"}))

	var got payload
	found, err := GetJSON(ctx, store, "k", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "x", got.Name)
}
