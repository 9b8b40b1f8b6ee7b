package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"labsched/internal/auth"
	"labsched/internal/metrics"

	"github.com/google/uuid"
)

type contextKey string

const claimsContextKey contextKey = "claims"

// claimsFromContext returns the authenticated caller, or nil outside the
// auth middleware.
func claimsFromContext(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(claimsContextKey).(*auth.Claims)
	return claims
}

func (s *HTTPServer) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		claims, err := s.tokens.Verify(strings.TrimSpace(token))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), claimsContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// rateLimitMiddleware throttles per caller. The shared cache counter is
// authoritative so limits hold across instances; the local token bucket
// covers cache outages.
func (s *HTTPServer) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := claimsFromContext(r.Context())
		if claims == nil {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		limit := s.cfg.Reservations.RateLimitRequests
		window := time.Duration(s.cfg.Reservations.RateLimitWindow) * time.Second
		if limit > 0 && s.cache != nil {
			allowed, err := s.cache.CheckRateLimit(r.Context(), claims.UserID, limit, window)
			if err == nil {
				if !allowed {
					writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
					return
				}
				next.ServeHTTP(w, r)
				return
			}
			s.logger.Warn().Err(err).Msg("Rate limit check failed, using local limiter")
		}

		if !s.limiter.allow(strconv.FormatInt(claims.UserID, 10)) {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := r.Header.Get("X-Request-Id")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", requestID)

		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		metrics.IncHTTP(r.URL.Path, strconv.Itoa(recorder.status))
		s.logger.Info().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}
