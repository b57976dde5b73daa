package http

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"peer-rental-core/internal/config"
	"peer-rental-core/internal/logger"
	"peer-rental-core/internal/security"
)

const requestIDHeader = "X-Request-ID"

var (
	errMissingToken = errors.New("authorization token is not provided")
	errAccessToken  = errors.New("access token required")
	errRefreshToken = errors.New("refresh token required")
)

type AuthMiddleware struct {
	tokenManager security.TokenManager
}

func NewAuthMiddleware(tm security.TokenManager) *AuthMiddleware {
	return &AuthMiddleware{tokenManager: tm}
}

// Middleware authenticates the request according to the security level of
// the matched route.
func (m *AuthMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := ""
		if route := mux.CurrentRoute(r); route != nil {
			name = route.GetName()
		}
		level := config.GetSecurityLevel(name)

		// Public and provider-signed endpoints skip user auth
		if level == config.SecurityPublic || level == config.SecuritySignature {
			next.ServeHTTP(w, r)
			return
		}

		token, err := extractToken(r)
		if err != nil {
			writeStatus(w, http.StatusUnauthorized, "UNAUTHENTICATED", err.Error())
			return
		}
		claims, err := m.tokenManager.ValidateToken(token)
		if err != nil {
			logger.DebugContext(r.Context(), "Rejected bearer token", "route", name, "error", err)
			writeStatus(w, http.StatusUnauthorized, "UNAUTHENTICATED", fmt.Sprintf("invalid token: %v", err))
			return
		}
		if err := checkSecurityLevel(level, claims); err != nil {
			writeStatus(w, http.StatusForbidden, "FORBIDDEN", err.Error())
			return
		}

		next.ServeHTTP(w, r.WithContext(withCaller(r.Context(), claims, token)))
	})
}

func extractToken(r *http.Request) (string, error) {
	token := r.Header.Get("Authorization")
	if token == "" {
		return "", errMissingToken
	}
	// Remove Bearer prefix if present
	if len(token) > 7 && strings.ToUpper(token[0:7]) == "BEARER " {
		token = token[7:]
	}
	return token, nil
}

func checkSecurityLevel(level config.SecurityLevel, claims *security.UserClaims) error {
	switch level {
	case config.SecurityAccess:
		if claims.Type != security.TokenTypeAccess {
			return errAccessToken
		}
	case config.SecurityRefresh:
		if claims.Type != security.TokenTypeRefresh {
			return errRefreshToken
		}
	}
	return nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// requestLogger tags each request with an id and logs one line per request.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rid := r.Header.Get(requestIDHeader)
		if rid == "" {
			rid = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, rid)
		ctx := logger.WithRequestID(r.Context(), rid)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(ctx))

		logger.InfoContext(ctx, "http",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"latency_ms", time.Since(start).Milliseconds(),
		)
	})
}

func recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.ErrorContext(r.Context(), "Handler panicked", "path", r.URL.Path, "panic", rec)
				writeStatus(w, http.StatusInternalServerError, "INTERNAL", "internal error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}
