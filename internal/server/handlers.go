package server

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/campushub/campus-events/internal/cart"
	"github.com/campushub/campus-events/internal/catalog"
	"github.com/campushub/campus-events/internal/checkout"
	"github.com/campushub/campus-events/internal/filter"
	"github.com/campushub/campus-events/internal/model"
	"github.com/campushub/campus-events/internal/statestore"
)

var errNoSession = errors.New("not signed in")

// HealthCheck response is intentionally minimal.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ─── Session ──────────────────────────────────────────────────────────────────

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, errNoSession.Error())
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// handlePutSession stores the identity the external auth service issued and
// seeds the wallet snapshot from the login response's balance.
func (s *Server) handlePutSession(w http.ResponseWriter, r *http.Request) {
	var sess Session
	if err := decodeJSON(r, &sess); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if sess.User.Email == "" || sess.User.ID == "" {
		writeError(w, http.StatusBadRequest, "session user requires id and email")
		return
	}
	if err := statestore.SetJSON(r.Context(), s.store, sessionKey, sess); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to store session")
		return
	}
	// A failed seed is tolerated but never silent: the user keeps whatever
	// balance was stored last.
	wallet, err := checkout.LoadWallet(r.Context(), s.store, sess.User.Email)
	if err != nil {
		s.logger.Warn("wallet seed from login failed", slog.String("error", err.Error()))
	} else if err := wallet.SetAuthoritative(r.Context(), sess.User.Wallet); err != nil {
		s.logger.Warn("wallet seed from login failed", slog.String("error", err.Error()))
	}
	writeJSON(w, http.StatusCreated, sess)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Remove(r.Context(), sessionKey); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to clear session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ─── Catalog ──────────────────────────────────────────────────────────────────

type catalogResponse struct {
	Events []model.NormalizedEvent `json:"events"`
	Facets filter.Facets           `json:"facets"`
}

// handleCatalog aggregates, filters, and facets in one pass so the frontend
// renders a consistent snapshot.
func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	role := q.Get("role")
	if role == "" {
		if sess, ok := s.session(r.Context()); ok {
			role = sess.User.Role
		}
	}

	mode := catalog.Mode(q.Get("mode"))
	switch mode {
	case catalog.ModeUpcoming, catalog.ModePast, catalog.ModeRegisterable:
	case "":
		mode = catalog.ModeUpcoming
	default:
		writeError(w, http.StatusBadRequest, "mode must be upcoming, past, or registerable")
		return
	}

	events, err := s.aggregator.Aggregate(r.Context(), role, time.Now(), mode)
	if err != nil {
		writeError(w, http.StatusBadGateway, "event catalog is unavailable")
		return
	}

	f := filter.Filters{
		Search:    q.Get("search"),
		Type:      q.Get("type"),
		Name:      q.Get("name"),
		Location:  q.Get("location"),
		Professor: q.Get("professor"),
		Sort:      filter.SortOrder(q.Get("sort")),
	}
	if from := q.Get("from"); from != "" {
		if t, err := time.Parse("2006-01-02", from); err == nil {
			f.DateFrom = t
		}
	}
	if to := q.Get("to"); to != "" {
		if t, err := time.Parse("2006-01-02", to); err == nil {
			f.DateTo = t
		}
	}

	filtered := filter.Apply(events, f)
	facets := filter.ComputeFacets(events, f)

	if mode == catalog.ModeRegisterable {
		s.mu.Lock()
		s.snapshot = events
		s.mu.Unlock()
	}

	if filtered == nil {
		filtered = []model.NormalizedEvent{}
	}
	writeJSON(w, http.StatusOK, catalogResponse{Events: filtered, Facets: facets})
}

// ─── Cart ─────────────────────────────────────────────────────────────────────

type cartResponse struct {
	Items []model.CartItem `json:"items"`
	Total float64          `json:"total"`
}

func (s *Server) handleGetCart(w http.ResponseWriter, r *http.Request) {
	_, userCart, _, _, err := s.userState(r.Context())
	if err != nil {
		s.stateError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cartResponse{Items: userCart.Items(), Total: userCart.Total()})
}

func (s *Server) handleAddCartItem(w http.ResponseWriter, r *http.Request) {
	var ev model.NormalizedEvent
	if err := decodeJSON(r, &ev); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if ev.ID == "" {
		writeError(w, http.StatusBadRequest, "event id is required")
		return
	}

	_, userCart, _, _, err := s.userState(r.Context())
	if err != nil {
		s.stateError(w, err)
		return
	}

	if err := userCart.Add(r.Context(), ev); err != nil {
		switch {
		case errors.Is(err, cart.ErrAlreadyRegistered),
			errors.Is(err, cart.ErrAlreadyInCart),
			errors.Is(err, cart.ErrEventFull):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to update cart")
		}
		return
	}
	writeJSON(w, http.StatusCreated, cartResponse{Items: userCart.Items(), Total: userCart.Total()})
}

func (s *Server) handleRemoveCartItem(w http.ResponseWriter, r *http.Request) {
	_, userCart, _, _, err := s.userState(r.Context())
	if err != nil {
		s.stateError(w, err)
		return
	}
	if err := userCart.Remove(r.Context(), chi.URLParam(r, "eventID")); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update cart")
		return
	}
	writeJSON(w, http.StatusOK, cartResponse{Items: userCart.Items(), Total: userCart.Total()})
}

func (s *Server) handleClearCart(w http.ResponseWriter, r *http.Request) {
	_, userCart, _, _, err := s.userState(r.Context())
	if err != nil {
		s.stateError(w, err)
		return
	}
	if err := userCart.Clear(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to clear cart")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ─── Checkout ─────────────────────────────────────────────────────────────────

type checkoutRequest struct {
	Method checkout.Method `json:"method"`
}

// checkoutResponse carries the reconciled result plus the cached registerable
// catalog with capacity counters advanced for the newly created
// registrations, so the frontend can refresh its counts without refetching.
type checkoutResponse struct {
	*checkout.Result
	Events []model.NormalizedEvent `json:"events,omitempty"`
}

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	sess, userCart, wallet, regs, err := s.userState(r.Context())
	if err != nil {
		s.stateError(w, err)
		return
	}

	result, err := s.reconciler.Checkout(r.Context(), sess.User, userCart, wallet, regs, req.Method)
	if err != nil {
		var insufficient *checkout.InsufficientFundsError
		switch {
		case errors.Is(err, checkout.ErrCartEmpty), errors.Is(err, checkout.ErrNoUser):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.As(err, &insufficient):
			writeError(w, http.StatusPaymentRequired, err.Error())
		case errors.Is(err, checkout.ErrCheckoutInFlight):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusBadGateway, err.Error())
		}
		return
	}

	s.mu.Lock()
	catalog.BumpCapacity(s.snapshot, result.Outcome.CreatedEventIDs)
	events := make([]model.NormalizedEvent, len(s.snapshot))
	copy(events, s.snapshot)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, checkoutResponse{Result: result, Events: events})
}

func (s *Server) handleWallet(w http.ResponseWriter, r *http.Request) {
	_, _, wallet, _, err := s.userState(r.Context())
	if err != nil {
		s.stateError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wallet.State())
}

func (s *Server) handleRegistrations(w http.ResponseWriter, r *http.Request) {
	_, _, _, regs, err := s.userState(r.Context())
	if err != nil {
		s.stateError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"eventIds": regs.IDs()})
}

type cancelRequest struct {
	EventID string  `json:"eventId"`
	Refund  float64 `json:"refund"`
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	_, _, wallet, regs, err := s.userState(r.Context())
	if err != nil {
		s.stateError(w, err)
		return
	}

	msg, err := s.reconciler.Cancel(r.Context(), chi.URLParam(r, "registrationID"), req.EventID, req.Refund, wallet, regs)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": msg, "wallet": wallet.State()})
}

// ─── Favorites ────────────────────────────────────────────────────────────────

func (s *Server) handleGetFavorites(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, errNoSession.Error())
		return
	}
	favorites, err := cart.LoadFavorites(r.Context(), s.store, sess.User.Email)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load favorites")
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"eventIds": favorites.IDs()})
}

func (s *Server) handleToggleFavorite(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, errNoSession.Error())
		return
	}
	favorites, err := cart.LoadFavorites(r.Context(), s.store, sess.User.Email)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load favorites")
		return
	}
	favorited, err := favorites.Toggle(r.Context(), chi.URLParam(r, "eventID"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update favorites")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"favorited": favorited})
}

func (s *Server) stateError(w http.ResponseWriter, err error) {
	if errors.Is(err, errNoSession) {
		writeError(w, http.StatusUnauthorized, errNoSession.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, "failed to load user state")
}
