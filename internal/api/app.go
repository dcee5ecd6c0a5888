package api

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/npezzotti/go-tripplanner/internal/cache"
	"github.com/npezzotti/go-tripplanner/internal/config"
	"github.com/npezzotti/go-tripplanner/internal/database"
	"github.com/npezzotti/go-tripplanner/internal/server"
	"golang.org/x/time/rate"
)

const (
	defaultWriteRate  = rate.Limit(5)
	defaultWriteBurst = 10
)

type TripPlannerApp struct {
	log               *log.Logger
	db                database.TripPlannerRepository
	srv               *http.Server
	hub               *server.Hub
	publisher         server.ChangePublisher
	profiles          cache.ProfileCache
	limiter           *userLimiter
	signingKey        []byte
	allowedOrigins    []string
	opportunitiesPath string
}

type AppOption func(*TripPlannerApp)

// WithPublisher overrides where row changes are sent. By default they go to
// the in-process hub.
func WithPublisher(p server.ChangePublisher) AppOption {
	return func(s *TripPlannerApp) { s.publisher = p }
}

func WithProfileCache(c cache.ProfileCache) AppOption {
	return func(s *TripPlannerApp) { s.profiles = c }
}

// WithWriteRate sets the per-user rate of state-changing requests.
func WithWriteRate(r rate.Limit, burst int) AppOption {
	return func(s *TripPlannerApp) { s.limiter = newUserLimiter(r, burst) }
}

func NewTripPlannerApp(mux *http.ServeMux, logger *log.Logger, hub *server.Hub, db database.TripPlannerRepository, cfg *config.Config, opts ...AppOption) *TripPlannerApp {
	s := &TripPlannerApp{
		log:               logger,
		db:                db,
		hub:               hub,
		profiles:          cache.NoopProfileCache{},
		limiter:           newUserLimiter(defaultWriteRate, defaultWriteBurst),
		signingKey:        cfg.SigningKey,
		allowedOrigins:    cfg.AllowedOrigins,
		opportunitiesPath: cfg.OpportunitiesPath,
	}
	if hub != nil {
		s.publisher = hub
	}

	for _, opt := range opts {
		opt(s)
	}

	mux.HandleFunc("GET /healthz", s.healthCheck)
	mux.HandleFunc("POST /api/auth/register", s.createAccount)
	mux.HandleFunc("POST /api/auth/login", s.login)
	mux.HandleFunc("GET /api/auth/session", s.authMiddleware(s.session))
	mux.HandleFunc("GET /api/auth/logout", s.authMiddleware(s.logout))
	mux.HandleFunc("GET /api/profiles", s.authMiddleware(s.getProfile))
	mux.HandleFunc("POST /api/rooms", s.authMiddleware(s.limit(s.createRoom)))
	mux.HandleFunc("GET /api/rooms", s.authMiddleware(s.getRoom))
	mux.HandleFunc("DELETE /api/rooms", s.authMiddleware(s.limit(s.deleteRoom)))
	mux.HandleFunc("GET /api/rooms/public", s.authMiddleware(s.listPublicRooms))
	mux.HandleFunc("POST /api/rooms/join", s.authMiddleware(s.limit(s.joinRoom)))
	mux.HandleFunc("POST /api/rooms/leave", s.authMiddleware(s.limit(s.leaveRoom)))
	mux.HandleFunc("PUT /api/rooms/selection", s.authMiddleware(s.limit(s.updateSelection)))
	mux.HandleFunc("GET /api/messages", s.authMiddleware(s.getMessages))
	mux.HandleFunc("POST /api/messages", s.authMiddleware(s.limit(s.createMessage)))
	mux.HandleFunc("GET /api/opportunities", s.getOpportunities)
	mux.HandleFunc("GET /ws", s.authMiddleware(s.serveWs))

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept"}),
		handlers.AllowCredentials(),
	)(mux)

	if logger != nil {
		h = handlers.CombinedLoggingHandler(logger.Writer(), h)
	}
	h = s.errorHandler(h)

	s.srv = &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	return s
}

func (s *TripPlannerApp) Handler() http.Handler {
	return s.srv.Handler
}

func (s *TripPlannerApp) Start() error {
	s.log.Printf("starting server on %s\n", s.srv.Addr)
	return s.srv.ListenAndServe()
}

func (s *TripPlannerApp) Shutdown(ctx context.Context) error {
	s.log.Println("shutting down HTTP server...")
	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}
