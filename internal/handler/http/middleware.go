package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/pharmacy-marketplace/internal/identity"
	"github.com/vasiliy-maslov/pharmacy-marketplace/internal/metrics"
)

type AuthMiddleware struct {
	verifier *identity.TokenVerifier
	users    identity.Provider
}

func NewAuthMiddleware(verifier *identity.TokenVerifier, users identity.Provider) *AuthMiddleware {
	return &AuthMiddleware{verifier: verifier, users: users}
}

// Authenticate resolves the bearer token to the stored user profile and puts
// it into the request context.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found || strings.TrimSpace(token) == "" {
			respondWithError(w, http.StatusUnauthorized, "Authentication required")
			return
		}

		userID, _, err := m.verifier.Verify(strings.TrimSpace(token))
		if err != nil {
			log.Warn().Err(err).Msg("auth: rejected bearer token")
			respondWithError(w, http.StatusUnauthorized, "Invalid token")
			return
		}

		u, err := m.users.GetByID(r.Context(), userID)
		if err != nil {
			if errors.Is(err, identity.ErrUserNotFound) {
				respondWithError(w, http.StatusUnauthorized, "Invalid token")
				return
			}
			log.Error().Err(err).Stringer("user_id", userID).Msg("auth: failed to load user")
			respondWithError(w, http.StatusInternalServerError, "Failed to authenticate")
			return
		}

		next.ServeHTTP(w, r.WithContext(identity.WithUser(r.Context(), u)))
	})
}

// RequireRole must run after Authenticate. The stored role wins over the
// token claim.
func RequireRole(role identity.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, ok := identity.FromContext(r.Context())
			if !ok {
				respondWithError(w, http.StatusUnauthorized, "Authentication required")
				return
			}
			if u.Role != role {
				log.Warn().Stringer("user_id", u.ID).Str("required_role", role.String()).Msg("auth: insufficient role")
				respondWithError(w, http.StatusForbidden, "Insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequestLogger logs one line per request and records HTTP metrics under the
// matched route pattern.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}

		elapsed := time.Since(start)
		metrics.HTTPRequests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
		metrics.HTTPLatencyMS.WithLabelValues(route).Observe(float64(elapsed.Microseconds()) / 1000)

		log.Info().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("route", route).
			Int("status", status).
			Dur("duration", elapsed).
			Msg("http request")
	})
}
