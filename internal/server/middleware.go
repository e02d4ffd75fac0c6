package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
	"github.com/user/cesto-ofertas-go/internal/metrics"
	"github.com/user/cesto-ofertas-go/internal/model"
)

type ctxKey int

const sessionKey ctxKey = iota

// authenticate resolves the bearer token into a session
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok {
			writeError(w, r, errMissingToken)
			return
		}
		sess, err := s.svc.Accounts.Resolve(r.Context(), token)
		if err != nil {
			writeError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey, sess)))
	})
}

// requireOnboarded keeps first-login sessions out until the onboarding wizard is done
func (s *Server) requireOnboarded(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if sess := session(r); sess != nil && sess.FirstLogin {
			writeError(w, r, errOnboardingPending)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// session returns the session attached by authenticate
func session(r *http.Request) *model.Session {
	sess, _ := r.Context().Value(sessionKey).(*model.Session)
	return sess
}

// requestLogger logs each request and counts it by route pattern
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.RecordRequest(r.Method, route, status)

		event := log.Debug()
		if status >= http.StatusInternalServerError {
			event = log.Warn()
		}
		event.
			Str("method", r.Method).
			Str("route", route).
			Int("status", status).
			Str("request_id", middleware.GetReqID(r.Context())).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}
