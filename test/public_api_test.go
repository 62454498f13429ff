package test

import (
	"context"
	"net/http"
	"testing"

	"github.com/resumeforge/sessionkit"
	"github.com/resumeforge/sessionkit/middleware"
	"github.com/resumeforge/sessionkit/session"
)

// Guards the exported surface consumers compile against.
func TestPublicAPISurfaceCompile(t *testing.T) {
	_ = sessionkit.New
	_ = sessionkit.DefaultConfig
	_ = sessionkit.LoadConfig
	_ = sessionkit.NewSweeper
	_ = sessionkit.WithClientIP

	var _ *sessionkit.Service
	var _ sessionkit.Config
	var _ sessionkit.Tokens
	var _ sessionkit.Stats
	var _ sessionkit.AuditSink = sessionkit.NoOpSink{}
	var _ session.Profile

	var _ error = sessionkit.ErrStoreUnavailable
	var _ error = sessionkit.ErrInvalidUserID
	var _ error = sessionkit.ErrRefreshRateLimited

	var _ middleware.SessionResolver = (*sessionkit.Service)(nil)
	var _ func(http.Handler) http.Handler = middleware.ClientIP

	var _ func(*sessionkit.Service, context.Context, string, session.Profile) (*sessionkit.Tokens, error) = (*sessionkit.Service).CreateSession
	var _ func(*sessionkit.Service, context.Context, string) (*session.Session, error) = (*sessionkit.Service).GetSessionByToken
	var _ func(*sessionkit.Service, context.Context, string) (*session.Session, error) = (*sessionkit.Service).GetSessionByID
	var _ func(*sessionkit.Service, context.Context, string) (*sessionkit.Tokens, error) = (*sessionkit.Service).RefreshSession
	var _ func(*sessionkit.Service, context.Context, string) error = (*sessionkit.Service).UpdateSessionActivity
	var _ func(*sessionkit.Service, context.Context, string) error = (*sessionkit.Service).RemoveSession
	var _ func(*sessionkit.Service, context.Context, string) (int, error) = (*sessionkit.Service).RemoveAllUserSessions
	var _ func(*sessionkit.Service, context.Context, string) ([]*session.Session, error) = (*sessionkit.Service).GetUserSessions
	var _ func(*sessionkit.Service, context.Context) (*sessionkit.Stats, error) = (*sessionkit.Service).GetSessionStats
	var _ func(*sessionkit.Service, context.Context) (int, error) = (*sessionkit.Service).CleanupExpiredSessions
}
