package middleware

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/resumeforge/sessionkit"
	"github.com/resumeforge/sessionkit/session"
	"github.com/rs/zerolog"
)

type sessionContextKey struct{}

// SessionResolver is the part of [sessionkit.Service] the guard needs.
type SessionResolver interface {
	GetSessionByToken(ctx context.Context, accessToken string) (*session.Session, error)
	UpdateSessionActivity(ctx context.Context, sessionID string) error
}

// SessionFromContext returns the session attached by [RequireSession].
func SessionFromContext(ctx context.Context) (*session.Session, bool) {
	sess, ok := ctx.Value(sessionContextKey{}).(*session.Session)
	return sess, ok && sess != nil
}

// Option configures [RequireSession].
type Option func(*guardOptions)

type guardOptions struct {
	sliding bool
	log     zerolog.Logger
}

// WithSlidingExpiration extends the session on every authenticated request.
func WithSlidingExpiration(enabled bool) Option {
	return func(o *guardOptions) {
		o.sliding = enabled
	}
}

// WithLogger sets the logger used for store failures.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *guardOptions) {
		o.log = logger
	}
}

// RequireSession admits requests whose bearer token resolves to a live
// session and stores that session in the request context. Missing or
// unknown tokens get 401; a store outage gets 503.
func RequireSession(svc SessionResolver, opts ...Option) func(http.Handler) http.Handler {
	o := guardOptions{log: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if svc == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			sess, err := svc.GetSessionByToken(r.Context(), token)
			if err != nil {
				if errors.Is(err, sessionkit.ErrStoreUnavailable) {
					o.log.Error().Err(err).Msg("session lookup failed")
					http.Error(w, "service unavailable", http.StatusServiceUnavailable)
					return
				}
				o.log.Warn().Err(err).Msg("session lookup rejected")
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			if sess == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			if o.sliding {
				if err := svc.UpdateSessionActivity(r.Context(), sess.SessionID); err != nil {
					o.log.Warn().Err(err).Str("session_id", sess.SessionID).Msg("sliding expiration update failed")
				}
			}

			ctx := context.WithValue(r.Context(), sessionContextKey{}, sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClientIP records the caller's address with [sessionkit.WithClientIP] so
// refresh throttling and audit events can see it. The host part of
// RemoteAddr is used; forwarding headers are not trusted.
func ClientIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := r.RemoteAddr
		if host, _, err := net.SplitHostPort(ip); err == nil {
			ip = host
		}
		next.ServeHTTP(w, r.WithContext(sessionkit.WithClientIP(r.Context(), ip)))
	})
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}
