// Package cart holds a user's in-progress event selections prior to payment.
// The cart is keyed per authenticated user so switching accounts never leaks
// another user's selections, and every mutation is persisted immediately so
// the cart survives reloads within a session.
package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/campushub/campus-events/internal/model"
	"github.com/campushub/campus-events/internal/statestore"
)

// Rejection reasons surfaced to the user by Add. These are expected
// conditions, not failures.
var (
	ErrAlreadyRegistered = errors.New("already registered for this event")
	ErrAlreadyInCart     = errors.New("event is already in your cart")
	ErrEventFull         = errors.New("event is full")
)

// RegistrationChecker answers whether the user already holds a confirmed
// registration for an event. The checkout package's Registrations set
// satisfies it.
type RegistrationChecker interface {
	IsRegistered(eventID string) bool
}

// Cart is one user's pending selections.
type Cart struct {
	store   statestore.Store
	key     string
	checker RegistrationChecker

	mu    sync.Mutex
	items []model.CartItem
}

// Key builds the namespaced persisted-state key for a user's cart.
func Key(userEmail string) string {
	return "cart:" + strings.ToLower(strings.TrimSpace(userEmail))
}

// Load opens the cart for a user, seeding it from persisted state when any
// exists. A corrupt persisted cart is discarded and the cart starts empty.
func Load(ctx context.Context, store statestore.Store, userEmail string, checker RegistrationChecker) (*Cart, error) {
	c := &Cart{store: store, key: Key(userEmail), checker: checker}
	if _, err := statestore.GetJSON(ctx, store, c.key, &c.items); err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	return c, nil
}

// Add appends the event with its fee captured now. It rejects duplicates,
// events the user already registered for, and full events; each rejection is
// a sentinel error meant for direct display, and the cart is not mutated.
func (c *Cart) Add(ctx context.Context, ev model.NormalizedEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.checker != nil && c.checker.IsRegistered(ev.ID) {
		return ErrAlreadyRegistered
	}
	for _, item := range c.items {
		if item.Event.ID == ev.ID {
			return ErrAlreadyInCart
		}
	}
	if ev.IsFull() {
		return ErrEventFull
	}

	c.items = append(c.items, model.CartItem{
		Event:   ev,
		Fee:     ev.Fee,
		AddedAt: time.Now().UTC(),
	})
	if err := c.persistLocked(ctx); err != nil {
		// Keep memory and persisted state in step when the write fails.
		c.items = c.items[:len(c.items)-1]
		return err
	}
	return nil
}

// Remove deletes the item for eventID. Removing an absent id is a no-op.
func (c *Cart) Remove(ctx context.Context, eventID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, item := range c.items {
		if item.Event.ID == eventID {
			c.items = append(c.items[:i], c.items[i+1:]...)
			return c.persistLocked(ctx)
		}
	}
	return nil
}

// Total sums the fees captured at add time.
func (c *Cart) Total() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	var total float64
	for _, item := range c.items {
		total += item.Fee
	}
	return total
}

// Items returns a copy of the cart contents in add order.
func (c *Cart) Items() []model.CartItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.CartItem, len(c.items))
	copy(out, c.items)
	return out
}

// Len returns the number of items.
func (c *Cart) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Clear empties the cart and removes its persisted representation.
func (c *Cart) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = nil
	return c.store.Remove(ctx, c.key)
}

func (c *Cart) persistLocked(ctx context.Context) error {
	return statestore.SetJSON(ctx, c.store, c.key, c.items)
}
