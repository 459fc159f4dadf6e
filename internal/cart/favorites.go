package cart

import (
	"context"
	"fmt"
	"strings"

	"github.com/campushub/campus-events/internal/statestore"
)

// Favorites is a user's persisted list of bookmarked event ids. It shares
// the cart's per-user keying and corruption policy.
type Favorites struct {
	store statestore.Store
	key   string
	ids   []string
}

// FavoritesKey builds the namespaced persisted-state key for a user's
// favorites.
func FavoritesKey(userEmail string) string {
	return "favorites:" + strings.ToLower(strings.TrimSpace(userEmail))
}

// LoadFavorites opens a user's favorites list, seeding from persisted state.
func LoadFavorites(ctx context.Context, store statestore.Store, userEmail string) (*Favorites, error) {
	f := &Favorites{store: store, key: FavoritesKey(userEmail)}
	if _, err := statestore.GetJSON(ctx, store, f.key, &f.ids); err != nil {
		return nil, fmt.Errorf("load favorites: %w", err)
	}
	return f, nil
}

// Toggle adds the event id if absent, removes it if present, and reports
// whether the id is favorited afterwards.
func (f *Favorites) Toggle(ctx context.Context, eventID string) (bool, error) {
	for i, id := range f.ids {
		if id == eventID {
			f.ids = append(f.ids[:i], f.ids[i+1:]...)
			return false, statestore.SetJSON(ctx, f.store, f.key, f.ids)
		}
	}
	f.ids = append(f.ids, eventID)
	return true, statestore.SetJSON(ctx, f.store, f.key, f.ids)
}

// Contains reports whether the event id is favorited.
func (f *Favorites) Contains(eventID string) bool {
	for _, id := range f.ids {
		if id == eventID {
			return true
		}
	}
	return false
}

// IDs returns the favorited event ids in insertion order.
func (f *Favorites) IDs() []string {
	out := make([]string, len(f.ids))
	copy(out, f.ids)
	return out
}
