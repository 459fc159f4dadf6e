package checkout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campushub/campus-events/internal/api"
	"github.com/campushub/campus-events/internal/cart"
	"github.com/campushub/campus-events/internal/catalog"
	"github.com/campushub/campus-events/internal/model"
	"github.com/campushub/campus-events/internal/statestore"
)

type stubBackend struct {
	mu          sync.Mutex
	batchReq    *api.BatchRegisterRequest
	batchResp   *api.BatchRegisterResponse
	batchErr    error
	intentErr   error
	cancelResp  *api.CancelResponse
	cancelErr   error
	batchBlock  chan struct{} // when set, BatchRegister waits on it
	batchCalled int
}

func (s *stubBackend) CreatePaymentIntent(_ context.Context, req api.PaymentIntentRequest) (*api.PaymentIntent, error) {
	if s.intentErr != nil {
		return nil, s.intentErr
	}
	return &api.PaymentIntent{ClientSecret: "cs_test", PaymentIntentID: "pi_test"}, nil
}

func (s *stubBackend) BatchRegister(_ context.Context, req api.BatchRegisterRequest) (*api.BatchRegisterResponse, error) {
	if s.batchBlock != nil {
		<-s.batchBlock
	}
	s.mu.Lock()
	s.batchCalled++
	s.batchReq = &req
	s.mu.Unlock()
	if s.batchErr != nil {
		return nil, s.batchErr
	}
	return s.batchResp, nil
}

func (s *stubBackend) CancelRegistration(context.Context, string) (*api.CancelResponse, error) {
	return s.cancelResp, s.cancelErr
}

type stubCards struct {
	id  string
	err error
}

func (s *stubCards) ConfirmCard(context.Context, string) (string, error) { return s.id, s.err }

var testUser = model.User{ID: "u1", Name: "Sara Adel", Email: "sara@uni.edu", Role: "student"}

// fixture builds a cart holding a free workshop (9/10 seats used) and a 250
// trip, plus the user's wallet and registration state.
func fixture(t *testing.T, balance float64) (*cart.Cart, *Wallet, *Registrations, []model.NormalizedEvent) {
	t.Helper()
	ctx := context.Background()
	store := statestore.NewMemory()

	regs, err := LoadRegistrations(ctx, store, testUser.Email)
	require.NoError(t, err)
	userCart, err := cart.Load(ctx, store, testUser.Email, regs)
	require.NoError(t, err)
	wallet, err := LoadWallet(ctx, store, testUser.Email)
	require.NoError(t, err)
	require.NoError(t, wallet.SetAuthoritative(ctx, balance))

	events := []model.NormalizedEvent{
		{ID: "workshop-1", DisplayName: "Go Workshop", Kind: model.KindWorkshop,
			Fee: 0, CapacityMax: 10, CapacityCurrent: 9},
		{ID: "trip-1", DisplayName: "Desert Trip", Kind: model.KindTrip,
			Fee: 250, CapacityMax: 30, CapacityCurrent: 3},
	}
	require.NoError(t, userCart.Add(ctx, events[0]))
	require.NoError(t, userCart.Add(ctx, events[1]))
	require.Equal(t, 250.0, userCart.Total())

	return userCart, wallet, regs, events
}

func TestCheckoutInsufficientWalletBalance(t *testing.T) {
	ctx := context.Background()
	userCart, wallet, regs, _ := fixture(t, 100)
	backend := &stubBackend{}
	rec := NewReconciler(backend)

	_, err := rec.Checkout(ctx, testUser, userCart, wallet, regs, MethodWallet)

	var insufficient *InsufficientFundsError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, 150.0, insufficient.Shortfall)

	assert.Equal(t, 0, backend.batchCalled, "no network call on validation failure")
	assert.Equal(t, 2, userCart.Len(), "cart untouched")
	assert.Equal(t, 250.0, userCart.Total())
}

func TestCheckoutWalletSuccessServerBalanceWins(t *testing.T) {
	ctx := context.Background()
	userCart, wallet, regs, events := fixture(t, 300)
	backend := &stubBackend{
		batchResp: &api.BatchRegisterResponse{
			User: &api.UserProfile{ID: "u1", Wallet: 50},
			Registrations: []api.CreatedRegistration{
				{ID: "r1", EventID: "workshop-1"},
				{ID: "r2", EventID: "trip-1"},
			},
		},
	}
	rec := NewReconciler(backend)

	result, err := rec.Checkout(ctx, testUser, userCart, wallet, regs, MethodWallet)
	require.NoError(t, err)

	assert.Equal(t, StatusSuccess, result.Status)
	assert.Equal(t, 50.0, wallet.Balance(), "server value wins over 300-250")
	assert.True(t, wallet.State().Authoritative)
	assert.Equal(t, 0, userCart.Len(), "cart cleared")
	assert.True(t, regs.IsRegistered("workshop-1"))
	assert.True(t, regs.IsRegistered("trip-1"))

	catalog.BumpCapacity(events, result.Outcome.CreatedEventIDs)
	assert.Equal(t, 10, events[0].CapacityCurrent)
}

func TestCheckoutPartialSuccess(t *testing.T) {
	ctx := context.Background()
	userCart, wallet, regs, events := fixture(t, 300)
	backend := &stubBackend{
		batchResp: &api.BatchRegisterResponse{
			Registrations: []api.CreatedRegistration{{ID: "r2", EventID: "trip-1"}},
			Errors: []api.RegistrationError{
				{EventID: "workshop-1", Reason: "already registered"},
			},
		},
	}
	rec := NewReconciler(backend)

	result, err := rec.Checkout(ctx, testUser, userCart, wallet, regs, MethodWallet)
	require.NoError(t, err)

	assert.Equal(t, StatusPartial, result.Status)
	assert.Contains(t, result.Message, "1 of 2")

	// Union property: both ids are tracked regardless of per-item outcome.
	assert.True(t, regs.IsRegistered("workshop-1"))
	assert.True(t, regs.IsRegistered("trip-1"))

	// Capacity bumps only for the created id.
	catalog.BumpCapacity(events, result.Outcome.CreatedEventIDs)
	assert.Equal(t, 9, events[0].CapacityCurrent)
	assert.Equal(t, 4, events[1].CapacityCurrent)

	// No server wallet in the response: optimistic debit of the total.
	assert.Equal(t, 50.0, wallet.Balance())
	assert.False(t, wallet.State().Authoritative)
}

func TestCheckoutNetworkFailureLeavesCartIntact(t *testing.T) {
	ctx := context.Background()
	userCart, wallet, regs, _ := fixture(t, 300)
	backend := &stubBackend{batchErr: errors.New("connection reset")}
	rec := NewReconciler(backend)

	before := userCart.Items()

	_, err := rec.Checkout(ctx, testUser, userCart, wallet, regs, MethodWallet)
	require.Error(t, err)

	after := userCart.Items()
	require.Equal(t, len(before), len(after))
	for i := range before {
		assert.Equal(t, before[i].Event.ID, after[i].Event.ID)
		assert.Equal(t, before[i].Fee, after[i].Fee)
	}
	assert.Equal(t, 250.0, userCart.Total())
	assert.False(t, regs.IsRegistered("trip-1"), "no client mutation without a response")
	assert.Equal(t, 300.0, wallet.Balance())
}

func TestCheckoutAllDuplicatesFramedAsAlreadyRegistered(t *testing.T) {
	ctx := context.Background()
	userCart, wallet, regs, _ := fixture(t, 300)
	backend := &stubBackend{
		batchResp: &api.BatchRegisterResponse{
			Errors: []api.RegistrationError{
				{EventID: "workshop-1", Reason: "already registered"},
				{EventID: "trip-1", Reason: "duplicate registration"},
			},
		},
	}
	rec := NewReconciler(backend)

	result, err := rec.Checkout(ctx, testUser, userCart, wallet, regs, MethodWallet)
	require.NoError(t, err)
	assert.Equal(t, StatusAlreadyRegistered, result.Status)
	assert.True(t, regs.IsRegistered("workshop-1"))
	assert.True(t, regs.IsRegistered("trip-1"))
	assert.Equal(t, 0, userCart.Len())
}

func TestCheckoutConcreteRejectionReasonSurfaced(t *testing.T) {
	ctx := context.Background()
	userCart, wallet, regs, _ := fixture(t, 300)
	backend := &stubBackend{
		batchResp: &api.BatchRegisterResponse{
			Errors: []api.RegistrationError{
				{EventID: "workshop-1", Reason: "already registered"},
				{EventID: "trip-1", Reason: "event is full"},
			},
		},
	}
	rec := NewReconciler(backend)

	result, err := rec.Checkout(ctx, testUser, userCart, wallet, regs, MethodWallet)
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, result.Status)
	assert.Equal(t, "event is full", result.Message)
}

func TestCheckoutFreeCartSkipsPayment(t *testing.T) {
	ctx := context.Background()
	store := statestore.NewMemory()
	regs, err := LoadRegistrations(ctx, store, testUser.Email)
	require.NoError(t, err)
	userCart, err := cart.Load(ctx, store, testUser.Email, regs)
	require.NoError(t, err)
	wallet, err := LoadWallet(ctx, store, testUser.Email)
	require.NoError(t, err)

	free := model.NormalizedEvent{ID: "w1", DisplayName: "Free Talk", Kind: model.KindWorkshop, CapacityMax: 50}
	require.NoError(t, userCart.Add(ctx, free))

	backend := &stubBackend{
		batchResp: &api.BatchRegisterResponse{
			Registrations: []api.CreatedRegistration{{ID: "r1", EventID: "w1"}},
		},
	}
	// No card confirmer configured: a free cart must not need one even when
	// the caller asked for card payment.
	rec := NewReconciler(backend)

	result, err := rec.Checkout(ctx, testUser, userCart, wallet, regs, MethodCard)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, result.Status)
	require.NotNil(t, backend.batchReq)
	assert.Equal(t, string(MethodNone), backend.batchReq.Registrations[0].PaymentMethod)
}

func TestCheckoutCardDeclineSurfacedVerbatim(t *testing.T) {
	ctx := context.Background()
	userCart, wallet, regs, _ := fixture(t, 0)
	backend := &stubBackend{}
	rec := NewReconciler(backend, WithCardConfirmer(&stubCards{err: errors.New("Your card was declined.")}))

	_, err := rec.Checkout(ctx, testUser, userCart, wallet, regs, MethodCard)
	require.EqualError(t, err, "Your card was declined.")
	assert.Equal(t, 0, backend.batchCalled)
	assert.Equal(t, 2, userCart.Len())
}

func TestCheckoutCardConfirmationIDForwarded(t *testing.T) {
	ctx := context.Background()
	userCart, wallet, regs, _ := fixture(t, 0)
	backend := &stubBackend{
		batchResp: &api.BatchRegisterResponse{
			Registrations: []api.CreatedRegistration{
				{ID: "r1", EventID: "workshop-1"},
				{ID: "r2", EventID: "trip-1"},
			},
		},
	}
	rec := NewReconciler(backend, WithCardConfirmer(&stubCards{id: "pi_confirmed"}))

	_, err := rec.Checkout(ctx, testUser, userCart, wallet, regs, MethodCard)
	require.NoError(t, err)
	require.NotNil(t, backend.batchReq)
	for _, entry := range backend.batchReq.Registrations {
		assert.Equal(t, "pi_confirmed", entry.StripePaymentIntentID)
		assert.Equal(t, string(MethodCard), entry.PaymentMethod)
	}
}

func TestCheckoutValidation(t *testing.T) {
	ctx := context.Background()
	store := statestore.NewMemory()
	regs, err := LoadRegistrations(ctx, store, testUser.Email)
	require.NoError(t, err)
	emptyCart, err := cart.Load(ctx, store, testUser.Email, regs)
	require.NoError(t, err)
	wallet, err := LoadWallet(ctx, store, testUser.Email)
	require.NoError(t, err)

	rec := NewReconciler(&stubBackend{})

	_, err = rec.Checkout(ctx, model.User{}, emptyCart, wallet, regs, MethodWallet)
	assert.ErrorIs(t, err, ErrNoUser)

	_, err = rec.Checkout(ctx, testUser, emptyCart, wallet, regs, MethodWallet)
	assert.ErrorIs(t, err, ErrCartEmpty)
}

func TestCheckoutSingleFlight(t *testing.T) {
	ctx := context.Background()
	userCart, wallet, regs, _ := fixture(t, 300)

	block := make(chan struct{})
	backend := &stubBackend{
		batchBlock: block,
		batchResp: &api.BatchRegisterResponse{
			Registrations: []api.CreatedRegistration{
				{ID: "r1", EventID: "workshop-1"},
				{ID: "r2", EventID: "trip-1"},
			},
		},
	}
	rec := NewReconciler(backend)

	done := make(chan error, 1)
	go func() {
		_, err := rec.Checkout(ctx, testUser, userCart, wallet, regs, MethodWallet)
		done <- err
	}()

	// Wait until the first attempt is inside the batch call.
	for !rec.inFlight.Load() {
		time.Sleep(time.Millisecond)
	}

	_, err := rec.Checkout(ctx, testUser, userCart, wallet, regs, MethodWallet)
	assert.ErrorIs(t, err, ErrCheckoutInFlight)

	close(block)
	require.NoError(t, <-done)
}

func TestCheckoutUserTypeNormalized(t *testing.T) {
	ctx := context.Background()
	userCart, wallet, regs, _ := fixture(t, 300)
	backend := &stubBackend{batchResp: &api.BatchRegisterResponse{}}
	rec := NewReconciler(backend)

	ta := model.User{ID: "u2", Name: "Omar Nabil", Email: testUser.Email, Role: "teaching assistant"}
	_, err := rec.Checkout(ctx, ta, userCart, wallet, regs, MethodWallet)
	require.NoError(t, err)
	require.NotNil(t, backend.batchReq)
	assert.Equal(t, model.UserTypeTA, backend.batchReq.Registrations[0].UserType)
}

func TestCheckoutCalendarSideChannel(t *testing.T) {
	ctx := context.Background()
	userCart, wallet, regs, _ := fixture(t, 300)
	backend := &stubBackend{
		batchResp: &api.BatchRegisterResponse{
			Registrations: []api.CreatedRegistration{
				{ID: "r1", EventID: "workshop-1"},
				{ID: "r2", EventID: "trip-1"},
			},
			CalendarResults: &api.CalendarResults{Added: 2},
			CalendarError:   "",
		},
	}
	rec := NewReconciler(backend)

	result, err := rec.Checkout(ctx, testUser, userCart, wallet, regs, MethodWallet)
	require.NoError(t, err)
	assert.Equal(t, 2, result.CalendarAdded)
	assert.False(t, result.OfferCalendarConnect)
}

func TestCheckoutCalendarNotConnectedOffersConnect(t *testing.T) {
	ctx := context.Background()
	userCart, wallet, regs, _ := fixture(t, 300)
	backend := &stubBackend{
		batchResp: &api.BatchRegisterResponse{
			Registrations: []api.CreatedRegistration{
				{ID: "r1", EventID: "workshop-1"},
				{ID: "r2", EventID: "trip-1"},
			},
			CalendarError: "Google Calendar not connected",
		},
	}
	rec := NewReconciler(backend)

	result, err := rec.Checkout(ctx, testUser, userCart, wallet, regs, MethodWallet)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, result.Status, "calendar errors never affect the main flow")
	assert.True(t, result.OfferCalendarConnect)
}

func TestCancelAppliesRefund(t *testing.T) {
	ctx := context.Background()
	store := statestore.NewMemory()
	wallet, err := LoadWallet(ctx, store, testUser.Email)
	require.NoError(t, err)
	require.NoError(t, wallet.SetAuthoritative(ctx, 50))
	regs, err := LoadRegistrations(ctx, store, testUser.Email)
	require.NoError(t, err)
	require.NoError(t, regs.Union(ctx, []string{"trip-1"}))

	backend := &stubBackend{
		cancelResp: &api.CancelResponse{
			User:    &api.UserProfile{ID: "u1", Wallet: 300},
			Message: "registration cancelled and refunded",
		},
	}
	rec := NewReconciler(backend)

	msg, err := rec.Cancel(ctx, "r2", "trip-1", 250, wallet, regs)
	require.NoError(t, err)
	assert.Contains(t, msg, "refunded")
	assert.Equal(t, 300.0, wallet.Balance())
	assert.True(t, wallet.State().Authoritative)
	assert.False(t, regs.IsRegistered("trip-1"))
}

func TestCancelWithoutServerBalanceCreditsEstimate(t *testing.T) {
	ctx := context.Background()
	store := statestore.NewMemory()
	wallet, err := LoadWallet(ctx, store, testUser.Email)
	require.NoError(t, err)
	require.NoError(t, wallet.SetAuthoritative(ctx, 50))
	regs, err := LoadRegistrations(ctx, store, testUser.Email)
	require.NoError(t, err)

	backend := &stubBackend{cancelResp: &api.CancelResponse{Message: "cancelled"}}
	rec := NewReconciler(backend)

	_, err = rec.Cancel(ctx, "r2", "trip-1", 250, wallet, regs)
	require.NoError(t, err)
	assert.Equal(t, 300.0, wallet.Balance())
	assert.False(t, wallet.State().Authoritative)
}
