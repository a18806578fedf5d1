// Package fakeapi is an in-memory implementation of the marketplace REST API.
// It backs the package tests and the serve-fake command.
package fakeapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/grovetools/bnb/logging"
	"github.com/grovetools/bnb/pkg/models"
)

const (
	defaultTokenTTL = time.Hour
	maxBodyBytes    = 1 << 20
)

type account struct {
	user     models.User
	password []byte // bcrypt hash
}

// Server holds the fake backend's state. All handlers are safe for
// concurrent use.
type Server struct {
	secret   []byte
	tokenTTL time.Duration
	logger   *logrus.Entry
	now      func() time.Time

	mu        sync.Mutex
	accounts  map[int64]*account
	listings  map[int64]*models.Listing
	bookings  map[int64]*models.Booking
	favorites map[int64]*models.Favorite
	reviews   map[int64]*models.Review
	revoked   map[string]struct{} // token ids
	nextID    int64
}

// Option configures a Server.
type Option func(*Server)

// WithSecret sets the HMAC key used to sign tokens.
func WithSecret(secret string) Option {
	return func(s *Server) { s.secret = []byte(secret) }
}

// WithTokenTTL sets the lifetime of issued tokens.
func WithTokenTTL(ttl time.Duration) Option {
	return func(s *Server) { s.tokenTTL = ttl }
}

func WithLogger(logger *logrus.Entry) Option {
	return func(s *Server) { s.logger = logger }
}

// WithClock replaces time.Now, for tests that need to expire tokens.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// New creates an empty server.
func New(opts ...Option) *Server {
	s := &Server{
		secret:    []byte("bnb-fake-secret"),
		tokenTTL:  defaultTokenTTL,
		now:       time.Now,
		accounts:  make(map[int64]*account),
		listings:  make(map[int64]*models.Listing),
		bookings:  make(map[int64]*models.Booking),
		favorites: make(map[int64]*models.Favorite),
		reviews:   make(map[int64]*models.Review),
		revoked:   make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logging.NewLogger("fakeapi")
	}
	return s
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	// Public
	r.Post("/login", s.handleLogin)
	r.Post("/users", s.handleRegister)
	r.Get("/listings", s.handleListListings)
	r.Get("/listings/{id}", s.handleGetListing)
	r.Get("/listings/host/{id}", s.handleHostListings)
	r.Post("/listings/{id}/availability", s.handleAvailability)
	r.Get("/reviews", s.handleListReviews)

	r.Group(func(r chi.Router) {
		r.Use(s.authenticate)

		r.Get("/me", s.handleMe)
		r.Delete("/logout", s.handleLogout)
		r.Patch("/users/{id}", s.handleUpdateUser)
		r.Delete("/users/{id}", s.handleDeleteUser)

		r.Patch("/listings/{id}", s.handleUpdateListing)
		r.Delete("/listings/{id}", s.handleDeleteListing)
		r.Get("/listings/{id}/bookings", s.handleListingBookings)

		r.Get("/users/{id}/bookings", s.handleUserBookings)
		r.Post("/users/bookings/{id}", s.handleBook)
		r.Patch("/bookings/{id}", s.handleUpdateBooking)
		r.Delete("/bookings/{id}", s.handleCancelBooking)

		r.Get("/users/{id}/favorites", s.handleUserFavorites)
		r.Post("/favorites", s.handleAddFavorite)
		r.Delete("/favorites/{id}", s.handleRemoveFavorite)

		r.Post("/reviews", s.handleAddReview)
		r.Delete("/reviews/{id}", s.handleDeleteReview)

		r.Group(func(r chi.Router) {
			r.Use(s.requireRole(models.RoleHost))
			r.Post("/listings", s.handleCreateListing)
			r.Get("/host/bookings", s.handleHostBookings)
			r.Put("/host/bookings/{id}", s.handleHostUpdateBooking)
			r.Get("/host/total-earnings", s.handleEarnings)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.requireRole(models.RoleAdmin))
			r.Get("/bookings", s.handleAllBookings)
			r.Patch("/users/{id}/role", s.handleChangeRole)
			r.Patch("/users/{id}/status", s.handleChangeStatus)
			r.Patch("/listings/{id}/status", s.handleListingStatus)
			r.Get("/admin/users", s.handleAdminUsers)
			r.Get("/admin/listings", s.handleAdminListings)
			r.Delete("/admin/listings/{id}", s.handleAdminDeleteListing)
			r.Patch("/admin/listings/{id}/status", s.handleListingStatus)
			r.Get("/admin/analytics", s.handleAnalytics)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "resource not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.WithFields(logrus.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      ww.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
			"request_id":  r.Header.Get("X-Request-ID"),
		}).Debug("request")
	})
}

func (s *Server) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *Server) stamp() models.Time {
	return models.Time{Time: s.now().UTC()}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, models.Message{Error: msg})
}

func writeSuccess(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusOK, models.Message{Success: msg})
}

// decode reads a JSON body into v, answering 400 itself on failure.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// pathID parses the {id} URL parameter, answering 404 itself on failure.
func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusNotFound, "resource not found")
		return 0, false
	}
	return id, true
}
