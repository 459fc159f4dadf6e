package model

import "time"

// CartItem is a cart entry: the selected event plus the fee captured at
// add time, so the price is locked even if the catalog changes before
// checkout.
type CartItem struct {
	Event   NormalizedEvent `json:"event"`
	Fee     float64         `json:"fee"`
	AddedAt time.Time       `json:"addedAt"`
}

// FailedEntry records one event the batch endpoint rejected, with the
// backend's reason when it gave one.
type FailedEntry struct {
	EventID string `json:"eventId"`
	Reason  string `json:"reason,omitempty"`
}

// RegistrationOutcome is the reconciled result of one checkout attempt.
// CreatedEventIDs is always a subset of AttemptedEventIDs; attempted ids
// missing from both CreatedEventIDs and FailedEntries are treated as
// already-registered no-ops.
type RegistrationOutcome struct {
	AttemptedEventIDs []string      `json:"attemptedEventIds"`
	CreatedEventIDs   []string      `json:"createdEventIds"`
	FailedEntries     []FailedEntry `json:"failedEntries,omitempty"`
}

// FullSuccess reports whether every attempted event was newly registered.
func (o *RegistrationOutcome) FullSuccess() bool {
	return len(o.CreatedEventIDs) == len(o.AttemptedEventIDs)
}

// WalletState is the client's view of the user's wallet balance. The server
// value is the source of truth; Authoritative is false only while the client
// holds an optimistic estimate that has not yet been confirmed.
type WalletState struct {
	Balance       float64 `json:"balance"`
	Authoritative bool    `json:"authoritative"`
}

// SetAuthoritative overwrites the balance with a server-confirmed value.
func (w *WalletState) SetAuthoritative(balance float64) {
	w.Balance = balance
	w.Authoritative = true
}

// DebitEstimate applies an optimistic local debit. The estimate stands only
// until the next authoritative read overwrites it.
func (w *WalletState) DebitEstimate(amount float64) {
	w.Balance -= amount
	if w.Balance < 0 {
		w.Balance = 0
	}
	w.Authoritative = false
}

// CreditEstimate applies an optimistic local credit, e.g. a refund the
// server has acknowledged but whose balance it did not echo back.
func (w *WalletState) CreditEstimate(amount float64) {
	w.Balance += amount
	w.Authoritative = false
}
