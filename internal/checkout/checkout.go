// Package checkout converts a non-empty cart into confirmed registrations
// and reconciles the backend's per-item outcomes against local cart, wallet,
// and registration state.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/campushub/campus-events/internal/api"
	"github.com/campushub/campus-events/internal/cart"
	"github.com/campushub/campus-events/internal/metrics"
	"github.com/campushub/campus-events/internal/model"
)

// Validation failures reported before any network call is made.
var (
	ErrCartEmpty        = errors.New("your cart is empty")
	ErrNoUser           = errors.New("you must be signed in to check out")
	ErrCheckoutInFlight = errors.New("a checkout is already in progress")
	ErrNoCardConfirmer  = errors.New("card payment is not configured")
)

// InsufficientFundsError reports a wallet balance that cannot cover the cart
// total, with the exact shortfall.
type InsufficientFundsError struct {
	Shortfall float64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient wallet balance: you need %.2f more", e.Shortfall)
}

// Status classifies a completed checkout attempt.
type Status string

const (
	// StatusSuccess means every attempted event was newly registered.
	StatusSuccess Status = "success"
	// StatusPartial means a strict non-empty subset was newly registered.
	StatusPartial Status = "partial"
	// StatusAlreadyRegistered means nothing was newly registered and the
	// backend's reasons indicate duplication; treated as an idempotent
	// no-op, not a failure.
	StatusAlreadyRegistered Status = "already_registered"
	// StatusRejected means nothing was newly registered for a concrete
	// non-duplication reason.
	StatusRejected Status = "rejected"
)

// Result is the reconciled outcome of one checkout attempt that reached
// the backend and got a response.
type Result struct {
	Status               Status                    `json:"status"`
	Message              string                    `json:"message"`
	Outcome              model.RegistrationOutcome `json:"outcome"`
	Wallet               model.WalletState         `json:"wallet"`
	CalendarAdded        int                       `json:"calendarAdded,omitempty"`
	OfferCalendarConnect bool                      `json:"offerCalendarConnect,omitempty"`
}

// PaymentBackend is the slice of the campus API checkout needs. The api
// package's Client satisfies it.
type PaymentBackend interface {
	CreatePaymentIntent(ctx context.Context, req api.PaymentIntentRequest) (*api.PaymentIntent, error)
	BatchRegister(ctx context.Context, req api.BatchRegisterRequest) (*api.BatchRegisterResponse, error)
	CancelRegistration(ctx context.Context, registrationID string) (*api.CancelResponse, error)
}

// Reconciler drives payment and batch submission for a cart, then
// reconciles the response. At most one attempt may be in flight at a time.
type Reconciler struct {
	backend  PaymentBackend
	cards    CardConfirmer
	logger   *slog.Logger
	currency string

	inFlight atomic.Bool
}

// ReconcilerOption configures a Reconciler.
type ReconcilerOption func(*Reconciler)

// WithCardConfirmer enables card payments through the given confirmer.
func WithCardConfirmer(cards CardConfirmer) ReconcilerOption {
	return func(r *Reconciler) { r.cards = cards }
}

// WithCurrency sets the currency for payment intents. Defaults to EGP.
func WithCurrency(currency string) ReconcilerOption {
	return func(r *Reconciler) { r.currency = currency }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ReconcilerOption {
	return func(r *Reconciler) { r.logger = logger }
}

// NewReconciler creates a Reconciler over the given backend.
func NewReconciler(backend PaymentBackend, opts ...ReconcilerOption) *Reconciler {
	r := &Reconciler{backend: backend, logger: slog.Default(), currency: "egp"}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Checkout runs one attempt end to end: validation, payment (skipped for a
// zero total), one batch registration call, then reconciliation. Any error
// before the batch call returns leaves the cart, wallet, and registration
// state untouched so the user can retry. The cart is cleared only once the
// batch call has returned a response.
func (r *Reconciler) Checkout(
	ctx context.Context,
	user model.User,
	userCart *cart.Cart,
	wallet *Wallet,
	regs *Registrations,
	method Method,
) (*Result, error) {
	if !r.inFlight.CompareAndSwap(false, true) {
		return nil, ErrCheckoutInFlight
	}
	defer r.inFlight.Store(false)

	result, err := r.checkout(ctx, user, userCart, wallet, regs, method)
	if err != nil {
		metrics.CheckoutAttempts.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.CheckoutAttempts.WithLabelValues(string(result.Status)).Inc()
	return result, nil
}

func (r *Reconciler) checkout(
	ctx context.Context,
	user model.User,
	userCart *cart.Cart,
	wallet *Wallet,
	regs *Registrations,
	method Method,
) (*Result, error) {
	if user.ID == "" {
		return nil, ErrNoUser
	}
	items := userCart.Items()
	if len(items) == 0 {
		return nil, ErrCartEmpty
	}

	total := userCart.Total()
	if total == 0 {
		method = MethodNone
	}

	var intentID string
	switch method {
	case MethodNone:
		// Free cart, no payment step.
	case MethodWallet:
		// Re-validate right before submission; the UI's balance may be stale.
		if balance := wallet.Balance(); balance < total {
			return nil, &InsufficientFundsError{Shortfall: total - balance}
		}
	case MethodCard:
		if r.cards == nil {
			return nil, ErrNoCardConfirmer
		}
		intent, err := r.backend.CreatePaymentIntent(ctx, api.PaymentIntentRequest{
			Amount:      total,
			Currency:    r.currency,
			Description: fmt.Sprintf("Event registration (%d items)", len(items)),
		})
		if err != nil {
			return nil, fmt.Errorf("create payment intent: %w", err)
		}
		confirmationID, err := r.cards.ConfirmCard(ctx, intent.ClientSecret)
		if err != nil {
			// Provider message goes to the user verbatim.
			return nil, err
		}
		intentID = confirmationID
	default:
		return nil, fmt.Errorf("unsupported payment method %q", method)
	}

	req := api.BatchRegisterRequest{
		CurrentUserID: user.ID,
		Registrations: make([]api.RegistrationEntry, 0, len(items)),
	}
	attempted := make([]string, 0, len(items))
	for _, item := range items {
		attempted = append(attempted, item.Event.ID)
		req.Registrations = append(req.Registrations, api.RegistrationEntry{
			Name:                  user.Name,
			Email:                 user.Email,
			UserID:                user.ID,
			UserType:              model.NormalizeUserType(user.Role),
			EventID:               item.Event.ID,
			EventType:             string(item.Event.Kind),
			AmountPaid:            item.Fee,
			PaymentMethod:         string(method),
			StripePaymentIntentID: intentID,
		})
	}

	resp, err := r.backend.BatchRegister(ctx, req)
	if err != nil {
		// No response means no client-side mutation: the cart stays intact
		// for retry.
		return nil, fmt.Errorf("submit registrations: %w", err)
	}

	return r.reconcile(ctx, userCart, wallet, regs, method, total, attempted, resp)
}

// reconcile folds the batch response into local state. It runs only when
// the backend returned a response, even a partial one.
func (r *Reconciler) reconcile(
	ctx context.Context,
	userCart *cart.Cart,
	wallet *Wallet,
	regs *Registrations,
	method Method,
	total float64,
	attempted []string,
	resp *api.BatchRegisterResponse,
) (*Result, error) {
	created := make([]string, 0, len(resp.Registrations))
	for _, reg := range resp.Registrations {
		created = append(created, reg.EventID)
	}
	failed := make([]model.FailedEntry, 0, len(resp.Errors))
	for _, e := range resp.Errors {
		failed = append(failed, model.FailedEntry{EventID: e.EventID, Reason: e.Reason})
	}

	// Server wallet value wins; fall back to an optimistic debit for a paid
	// wallet checkout the server didn't echo a balance for.
	if resp.User != nil {
		if err := wallet.SetAuthoritative(ctx, resp.User.Wallet); err != nil {
			return nil, fmt.Errorf("store wallet: %w", err)
		}
	} else if method == MethodWallet && total > 0 {
		if err := wallet.DebitEstimate(ctx, total); err != nil {
			return nil, fmt.Errorf("store wallet: %w", err)
		}
	}

	// The confirmed set unions the full attempted list: an item the backend
	// calls "already registered" is still registered from our side.
	if err := regs.Union(ctx, attempted); err != nil {
		return nil, fmt.Errorf("store registrations: %w", err)
	}

	if err := userCart.Clear(ctx); err != nil {
		return nil, fmt.Errorf("clear cart: %w", err)
	}

	result := &Result{
		Outcome: model.RegistrationOutcome{
			AttemptedEventIDs: attempted,
			CreatedEventIDs:   created,
			FailedEntries:     failed,
		},
		Wallet: wallet.State(),
	}

	switch {
	case len(created) == len(attempted):
		result.Status = StatusSuccess
		result.Message = fmt.Sprintf("Successfully registered for %d event(s)", len(created))
	case len(created) > 0:
		result.Status = StatusPartial
		result.Message = fmt.Sprintf("Registered for %d of %d event(s)", len(created), len(attempted))
	default:
		if reason := firstConcreteReason(failed); reason != "" {
			result.Status = StatusRejected
			result.Message = reason
		} else {
			result.Status = StatusAlreadyRegistered
			result.Message = "You are already registered for all selected events"
		}
	}

	if resp.CalendarResults != nil {
		result.CalendarAdded = resp.CalendarResults.Added
	}
	if strings.Contains(strings.ToLower(resp.CalendarError), "not connected") {
		result.OfferCalendarConnect = true
	}
	if resp.CalendarError != "" {
		r.logger.Debug("calendar sync reported an error", slog.String("error", resp.CalendarError))
	}

	return result, nil
}

// firstConcreteReason returns the first failure reason that does not
// indicate duplication. When every reason is a duplicate (or reasons are
// missing entirely), the attempt is framed as already-registered.
func firstConcreteReason(failed []model.FailedEntry) string {
	for _, f := range failed {
		reason := strings.ToLower(f.Reason)
		if reason == "" || strings.Contains(reason, "already") || strings.Contains(reason, "duplicate") {
			continue
		}
		return f.Reason
	}
	return ""
}

// Cancel cancels one confirmed registration and applies the refund to local
// state: the server's wallet balance when it sent one, otherwise an
// optimistic credit of the refund amount.
func (r *Reconciler) Cancel(
	ctx context.Context,
	registrationID, eventID string,
	refund float64,
	wallet *Wallet,
	regs *Registrations,
) (string, error) {
	resp, err := r.backend.CancelRegistration(ctx, registrationID)
	if err != nil {
		return "", fmt.Errorf("cancel registration: %w", err)
	}

	if resp.User != nil {
		if err := wallet.SetAuthoritative(ctx, resp.User.Wallet); err != nil {
			return "", fmt.Errorf("store wallet: %w", err)
		}
	} else if refund > 0 {
		if err := wallet.CreditEstimate(ctx, refund); err != nil {
			return "", fmt.Errorf("store wallet: %w", err)
		}
	}
	if err := regs.Remove(ctx, eventID); err != nil {
		return "", fmt.Errorf("store registrations: %w", err)
	}
	return resp.Message, nil
}
