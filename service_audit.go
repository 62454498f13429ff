package sessionkit

import (
	"context"
	"errors"

	"github.com/resumeforge/sessionkit/session"
)

const (
	auditEventSessionCreated     = "session_created"
	auditEventSessionEvicted     = "session_evicted"
	auditEventSessionExpired     = "session_expired"
	auditEventSessionRemoved     = "session_removed"
	auditEventSessionsRemovedAll = "sessions_removed_all"
	auditEventRefreshSuccess     = "refresh_success"
	auditEventRefreshInvalid     = "refresh_invalid"
	auditEventRefreshRateLimited = "refresh_rate_limited"
	auditEventCleanupCompleted   = "cleanup_completed"
)

// AuditErrorCode is the stable, secret-free error classification written
// to [AuditEvent.Error].
type AuditErrorCode string

const (
	auditErrRateLimited    AuditErrorCode = "rate_limited"
	auditErrInvalidToken   AuditErrorCode = "invalid_token"
	auditErrInvalidUser    AuditErrorCode = "invalid_user"
	auditErrCorruptRecord  AuditErrorCode = "corrupt_record"
	auditErrUnavailable    AuditErrorCode = "backend_unavailable"
	auditErrInternal       AuditErrorCode = "internal_error"
	auditErrSessionMissing AuditErrorCode = "session_not_found"
)

func (s *Service) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	sessionID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if s == nil || s.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: s.now().UTC(),
		EventType: eventType,
		UserID:    userID,
		SessionID: sessionID,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	s.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrRefreshRateLimited):
		return auditErrRateLimited
	case errors.Is(err, session.ErrNotFound):
		return auditErrSessionMissing
	case errors.Is(err, errInvalidToken):
		return auditErrInvalidToken
	case errors.Is(err, ErrInvalidUserID):
		return auditErrInvalidUser
	case errors.Is(err, session.ErrCorrupt), errors.Is(err, session.ErrUnsupportedSchema):
		return auditErrCorruptRecord
	case errors.Is(err, ErrStoreUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}

// errInvalidToken classifies refresh attempts that found nothing to rotate.
// It is never returned to callers.
var errInvalidToken = errors.New("invalid token")
