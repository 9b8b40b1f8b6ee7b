package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"labsched/internal/auth"
	"labsched/internal/config"
	"labsched/internal/database"
	"labsched/internal/domain"
	"labsched/internal/models"
	"labsched/internal/reports"
	"labsched/internal/service"

	"github.com/rs/zerolog"
)

// HTTPServer exposes the reservation API over JSON/HTTP.
type HTTPServer struct {
	cfg           config.Config
	db            *database.DB
	tokens        *auth.TokenManager
	users         *service.UserService
	reservations  domain.ReservationService
	notifications domain.NotificationService
	catalog       *service.CatalogService
	reports       *reports.Service
	limiter       *rateLimiter
	cache         domain.ScheduleCache
	logger        *zerolog.Logger
	server        *http.Server
}

func NewHTTPServer(
	cfg config.Config,
	db *database.DB,
	tokens *auth.TokenManager,
	users *service.UserService,
	reservations domain.ReservationService,
	notifications domain.NotificationService,
	catalog *service.CatalogService,
	reportsSvc *reports.Service,
	cache domain.ScheduleCache,
	logger *zerolog.Logger,
) *HTTPServer {
	srv := &HTTPServer{
		cfg:           cfg,
		db:            db,
		tokens:        tokens,
		users:         users,
		reservations:  reservations,
		notifications: notifications,
		catalog:       catalog,
		reports:       reportsSvc,
		limiter:       newRateLimiter(cfg.Reservations),
		cache:         cache,
		logger:        logger,
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", srv.handleHealth)
	mux.HandleFunc("POST /api/v1/login", srv.handleLogin)

	protected := http.NewServeMux()
	protected.HandleFunc("GET /api/v1/me", srv.handleMe)
	protected.HandleFunc("GET /api/v1/users", srv.handleListUsers)
	protected.HandleFunc("POST /api/v1/users", srv.handleRegisterUser)
	protected.HandleFunc("POST /api/v1/users/{id}/active", srv.handleSetUserActive)

	protected.HandleFunc("GET /api/v1/labs", srv.handleListLabs)
	protected.HandleFunc("POST /api/v1/labs", srv.handleCreateLab)
	protected.HandleFunc("DELETE /api/v1/labs/{id}", srv.handleDeactivateLab)
	protected.HandleFunc("GET /api/v1/labs/{id}/schedule", srv.handleLabSchedule)
	protected.HandleFunc("GET /api/v1/courses", srv.handleListCourses)
	protected.HandleFunc("POST /api/v1/courses", srv.handleCreateCourse)
	protected.HandleFunc("DELETE /api/v1/courses/{id}", srv.handleDeactivateCourse)

	protected.HandleFunc("GET /api/v1/availability", srv.handleAvailability)
	protected.HandleFunc("GET /api/v1/reservations", srv.handleListReservations)
	protected.HandleFunc("POST /api/v1/reservations", srv.handleCreateReservation)
	protected.HandleFunc("GET /api/v1/reservations/{id}", srv.handleGetReservation)
	protected.HandleFunc("POST /api/v1/reservations/{id}/approve", srv.handleTransition(models.StatusApproved))
	protected.HandleFunc("POST /api/v1/reservations/{id}/decline", srv.handleTransition(models.StatusDeclined))
	protected.HandleFunc("POST /api/v1/reservations/{id}/cancel", srv.handleTransition(models.StatusCancelled))

	protected.HandleFunc("GET /api/v1/notifications", srv.handleListNotifications)
	protected.HandleFunc("POST /api/v1/notifications/{id}/read", srv.handleMarkNotificationRead)

	protected.HandleFunc("GET /api/v1/dashboard/stats", srv.handleDashboardStats)
	protected.HandleFunc("GET /api/v1/reports/usage", srv.handleUsageReport)

	mux.Handle("/api/v1/", srv.authMiddleware(srv.rateLimitMiddleware(protected)))

	readTimeout := time.Duration(cfg.Server.ReadTimeoutSec) * time.Second
	writeTimeout := time.Duration(cfg.Server.WriteTimeoutSec) * time.Second

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           srv.loggingMiddleware(mux),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
	}

	return srv
}

// Handler returns the full middleware chain, mainly for tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return errors.New("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.db.PingContext(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "database unreachable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

// writeServiceError maps domain errors onto HTTP status codes.
func writeServiceError(w http.ResponseWriter, err error) {
	var validationErr *service.ValidationError
	var transitionErr *service.InvalidTransitionError

	switch {
	case errors.As(err, &validationErr):
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": validationErr.Error(),
			"field": validationErr.Field,
		})
	case errors.Is(err, database.ErrInvalidWindow),
		errors.Is(err, database.ErrPastStart),
		errors.Is(err, database.ErrWindowTooFar):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrInvalidCredentials), errors.Is(err, auth.ErrInvalidToken):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, service.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, database.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &transitionErr),
		errors.Is(err, database.ErrConflict),
		errors.Is(err, database.ErrConcurrentModification),
		errors.Is(err, database.ErrDuplicate):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, database.ErrLabUnavailable):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
