// Package server exposes the catalog, cart, and checkout core over HTTP for
// the browser frontends. Handlers translate requests and responses to and
// from the library packages; no business logic lives here.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/campushub/campus-events/internal/cart"
	"github.com/campushub/campus-events/internal/catalog"
	"github.com/campushub/campus-events/internal/checkout"
	"github.com/campushub/campus-events/internal/model"
	"github.com/campushub/campus-events/internal/statestore"
)

// sessionKey is where the current user and token live in the state store.
const sessionKey = "session:current"

// Session is the externally issued identity the façade acts on behalf of.
// The token is opaque; we only store and forward it.
type Session struct {
	User  model.User `json:"user"`
	Token string     `json:"token"`
}

// Server wires the core packages behind a chi router.
type Server struct {
	logger     *slog.Logger
	store      statestore.Store
	aggregator *catalog.Aggregator
	reconciler *checkout.Reconciler

	// snapshot caches the last registerable catalog; checkout bumps its
	// capacity counters and returns it so clients refresh without a refetch.
	mu       sync.Mutex
	snapshot []model.NormalizedEvent
}

// New creates a Server.
func New(store statestore.Store, aggregator *catalog.Aggregator, reconciler *checkout.Reconciler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		logger:     logger,
		store:      store,
		aggregator: aggregator,
		reconciler: reconciler,
	}
}

// Router builds the HTTP routes.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(Logger(s.logger))
	r.Use(CORS)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/session", func(r chi.Router) {
		r.Get("/", s.handleGetSession)
		r.Post("/", s.handlePutSession)
		r.Delete("/", s.handleDeleteSession)
	})

	r.Get("/catalog", s.handleCatalog)

	r.Route("/cart", func(r chi.Router) {
		r.Get("/", s.handleGetCart)
		r.Post("/items", s.handleAddCartItem)
		r.Delete("/items/{eventID}", s.handleRemoveCartItem)
		r.Delete("/", s.handleClearCart)
	})

	r.Post("/checkout", s.handleCheckout)
	r.Get("/wallet", s.handleWallet)
	r.Get("/registrations", s.handleRegistrations)
	r.Post("/registrations/{registrationID}/cancel", s.handleCancel)

	r.Route("/favorites", func(r chi.Router) {
		r.Get("/", s.handleGetFavorites)
		r.Post("/{eventID}/toggle", s.handleToggleFavorite)
	})

	return r
}

// ─── Helper utilities ─────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, model.ErrorResponse{Error: msg})
}

func decodeJSON(r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(nil, r.Body, 1<<20) // 1 MB limit
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// session loads the stored session, if any.
func (s *Server) session(ctx context.Context) (Session, bool) {
	var sess Session
	found, err := statestore.GetJSON(ctx, s.store, sessionKey, &sess)
	if err != nil || !found || strings.TrimSpace(sess.User.Email) == "" {
		return Session{}, false
	}
	return sess, true
}

// userState assembles the per-user stateful modules for the current session.
func (s *Server) userState(ctx context.Context) (Session, *cart.Cart, *checkout.Wallet, *checkout.Registrations, error) {
	sess, ok := s.session(ctx)
	if !ok {
		return Session{}, nil, nil, nil, errNoSession
	}
	regs, err := checkout.LoadRegistrations(ctx, s.store, sess.User.Email)
	if err != nil {
		return Session{}, nil, nil, nil, err
	}
	userCart, err := cart.Load(ctx, s.store, sess.User.Email, regs)
	if err != nil {
		return Session{}, nil, nil, nil, err
	}
	wallet, err := checkout.LoadWallet(ctx, s.store, sess.User.Email)
	if err != nil {
		return Session{}, nil, nil, nil, err
	}
	return sess, userCart, wallet, regs, nil
}
