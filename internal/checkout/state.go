package checkout

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/campushub/campus-events/internal/model"
	"github.com/campushub/campus-events/internal/statestore"
)

// Wallet is the client-side view of the user's wallet balance, persisted
// per user. The server value is authoritative; optimistic local arithmetic
// is tolerated only until the next authoritative read overwrites it.
type Wallet struct {
	store statestore.Store
	key   string

	mu    sync.Mutex
	state model.WalletState
}

// WalletKey builds the namespaced persisted-state key for a user's wallet
// snapshot.
func WalletKey(userEmail string) string {
	return "wallet:" + strings.ToLower(strings.TrimSpace(userEmail))
}

// LoadWallet opens a user's wallet snapshot, seeding from persisted state.
// With no persisted value the balance starts at zero and non-authoritative.
func LoadWallet(ctx context.Context, store statestore.Store, userEmail string) (*Wallet, error) {
	w := &Wallet{store: store, key: WalletKey(userEmail)}
	if _, err := statestore.GetJSON(ctx, store, w.key, &w.state); err != nil {
		return nil, fmt.Errorf("load wallet: %w", err)
	}
	return w, nil
}

// State returns the current snapshot.
func (w *Wallet) State() model.WalletState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Balance returns the current balance regardless of authority.
func (w *Wallet) Balance() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state.Balance
}

// SetAuthoritative records a server-confirmed balance.
func (w *Wallet) SetAuthoritative(ctx context.Context, balance float64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.state.SetAuthoritative(balance)
	return statestore.SetJSON(ctx, w.store, w.key, w.state)
}

// DebitEstimate applies an optimistic debit pending server confirmation.
func (w *Wallet) DebitEstimate(ctx context.Context, amount float64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.state.DebitEstimate(amount)
	return statestore.SetJSON(ctx, w.store, w.key, w.state)
}

// CreditEstimate applies an optimistic credit pending server confirmation.
func (w *Wallet) CreditEstimate(ctx context.Context, amount float64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.state.CreditEstimate(amount)
	return statestore.SetJSON(ctx, w.store, w.key, w.state)
}

// Registrations is the user's confirmed-registrations set, persisted per
// user. After any checkout attempt that returned a response, the set is the
// union of its prior contents and every attempted event id, whatever the
// per-item outcomes were.
type Registrations struct {
	store statestore.Store
	key   string

	mu  sync.Mutex
	ids map[string]bool
}

// RegistrationsKey builds the namespaced persisted-state key for a user's
// confirmed registrations.
func RegistrationsKey(userEmail string) string {
	return "registrations:" + strings.ToLower(strings.TrimSpace(userEmail))
}

// LoadRegistrations opens a user's confirmed-registrations set.
func LoadRegistrations(ctx context.Context, store statestore.Store, userEmail string) (*Registrations, error) {
	r := &Registrations{store: store, key: RegistrationsKey(userEmail), ids: make(map[string]bool)}
	var stored []string
	if _, err := statestore.GetJSON(ctx, store, r.key, &stored); err != nil {
		return nil, fmt.Errorf("load registrations: %w", err)
	}
	for _, id := range stored {
		r.ids[id] = true
	}
	return r, nil
}

// IsRegistered implements cart.RegistrationChecker.
func (r *Registrations) IsRegistered(eventID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ids[eventID]
}

// Union adds every id to the set and persists it.
func (r *Registrations) Union(ctx context.Context, eventIDs []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range eventIDs {
		r.ids[id] = true
	}
	return r.persistLocked(ctx)
}

// Remove drops one id, e.g. after a cancellation.
func (r *Registrations) Remove(ctx context.Context, eventID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.ids, eventID)
	return r.persistLocked(ctx)
}

// IDs returns the set's contents, sorted for deterministic output.
func (r *Registrations) IDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.ids))
	for id := range r.ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (r *Registrations) persistLocked(ctx context.Context) error {
	ids := make([]string, 0, len(r.ids))
	for id := range r.ids {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return statestore.SetJSON(ctx, r.store, r.key, ids)
}
