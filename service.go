package sessionkit

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/resumeforge/sessionkit/internal/rate"
	"github.com/resumeforge/sessionkit/internal/token"
	"github.com/resumeforge/sessionkit/session"
	"github.com/rs/zerolog"
)

// Service issues and manages sessions. It is stateless apart from its
// dependencies and safe for concurrent use.
type Service struct {
	config  Config
	store   *session.Store
	limiter *rate.Limiter
	audit   *auditDispatcher
	metrics *Metrics
	log     zerolog.Logger
	now     func() time.Time
}

// Close stops the audit dispatcher after flushing queued events. It does
// not close the Redis client.
func (s *Service) Close() {
	if s == nil {
		return
	}
	if s.audit != nil {
		s.audit.Close()
	}
}

// AuditDropped returns how many audit events were dropped under
// backpressure.
func (s *Service) AuditDropped() uint64 {
	if s == nil || s.audit == nil {
		return 0
	}
	return s.audit.Dropped()
}

// MetricsSnapshot returns the current counters. Empty maps when metrics
// are disabled.
func (s *Service) MetricsSnapshot() MetricsSnapshot {
	if s == nil || s.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return s.metrics.Snapshot()
}

// Config returns a copy of the configuration the Service was built with.
func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return cloneConfig(s.config)
}

func (s *Service) ready() error {
	if s == nil || s.store == nil {
		return ErrServiceNotReady
	}
	return nil
}

func (s *Service) metricInc(id MetricID) {
	if s == nil || s.metrics == nil {
		return
	}
	s.metrics.Inc(id)
}

func (s *Service) storeFailed(err error) {
	if errors.Is(err, ErrStoreUnavailable) {
		s.metricInc(MetricStoreUnavailable)
	}
}

// CreateSession issues a new session for userID and returns its tokens.
//
// The record, both token indices and the membership entry are written in
// one atomic step together with cap enforcement: when the user already has
// MaxSessionsPerUser sessions the oldest-created ones are evicted first.
// A store failure is returned as an error wrapping [ErrStoreUnavailable];
// no partial session is left behind.
func (s *Service) CreateSession(ctx context.Context, userID string, profile session.Profile) (*Tokens, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(userID) == "" {
		return nil, ErrInvalidUserID
	}

	triple, err := token.NewTriple()
	if err != nil {
		return nil, fmt.Errorf("generate session credentials: %w", err)
	}

	ttl := s.config.Session.TTL
	now := s.now()
	p := profile.WithDefaults()

	sess := &session.Session{
		SchemaVersion:  session.CurrentSchemaVersion,
		SessionID:      triple.SessionID,
		UserID:         userID,
		Email:          p.Email,
		ServiceType:    p.ServiceType,
		OrganizationID: p.OrganizationID,
		Role:           p.Role,
		IPAddress:      p.IPAddress,
		UserAgent:      p.UserAgent,
		DeviceInfo:     p.DeviceInfo,
		LocationInfo:   p.LocationInfo,
		Metadata:       p.Metadata,
		AccessHash:     token.Hash(triple.AccessToken),
		RefreshHash:    token.Hash(triple.RefreshToken),
		CreatedAt:      now.UnixMilli(),
		LastActivity:   now.UnixMilli(),
		ExpiresAt:      now.Add(ttl).UnixMilli(),
	}

	evicted, err := s.store.Create(ctx, sess, ttl, s.config.Session.MaxSessionsPerUser)
	if err != nil {
		s.metricInc(MetricSessionCreateFailure)
		s.storeFailed(err)
		s.log.Error().Err(err).Str("user_id", userID).Msg("create session failed")
		return nil, err
	}

	s.metricInc(MetricSessionCreated)
	if len(evicted) > 0 {
		s.metrics.Add(MetricSessionEvicted, uint64(len(evicted)))
		s.log.Info().
			Str("user_id", userID).
			Strs("evicted", evicted).
			Int("max_per_user", s.config.Session.MaxSessionsPerUser).
			Msg("session cap reached; evicted oldest sessions")
		for _, id := range evicted {
			s.emitAudit(ctx, auditEventSessionEvicted, true, userID, id, nil, func() map[string]string {
				return map[string]string{"replaced_by": sess.SessionID}
			})
		}
	}
	s.emitAudit(ctx, auditEventSessionCreated, true, userID, sess.SessionID, nil, func() map[string]string {
		return map[string]string{"service_type": sess.ServiceType}
	})

	return &Tokens{
		SessionID:    triple.SessionID,
		AccessToken:  triple.AccessToken,
		RefreshToken: triple.RefreshToken,
		ExpiresAt:    time.UnixMilli(sess.ExpiresAt),
	}, nil
}

// GetSessionByToken resolves an access token to its live session. It
// returns (nil, nil) when the token is unknown or its session is gone or
// expired.
func (s *Service) GetSessionByToken(ctx context.Context, accessToken string) (*session.Session, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if accessToken == "" {
		return nil, nil
	}

	if s.metrics.LatencyEnabled() {
		start := time.Now()
		defer func() {
			s.metrics.Observe(MetricLookupLatency, time.Since(start))
		}()
	}

	hash := token.Hash(accessToken)
	sessionID, err := s.store.ResolveAccess(ctx, hash)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			s.metricInc(MetricSessionLookupMiss)
			return nil, nil
		}
		s.storeFailed(err)
		return nil, err
	}

	sess, err := s.GetSessionByID(ctx, sessionID)
	if err != nil || sess == nil {
		return nil, err
	}
	// the index may outlive a rotated record
	if subtle.ConstantTimeCompare(sess.AccessHash[:], hash[:]) != 1 {
		s.metricInc(MetricSessionLookupMiss)
		return nil, nil
	}
	return sess, nil
}

// GetSessionByID loads a live session. A session whose ExpiresAt has passed
// is removed on the spot and reported as absent, even if the store has not
// evicted it yet.
func (s *Service) GetSessionByID(ctx context.Context, sessionID string) (*session.Session, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if sessionID == "" {
		return nil, nil
	}

	sess, err := s.store.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			s.metricInc(MetricSessionLookupMiss)
			return nil, nil
		}
		s.storeFailed(err)
		return nil, err
	}

	if sess.Expired(s.now()) {
		s.metricInc(MetricSessionLookupMiss)
		if existed, err := s.removeSession(ctx, sessionID); err != nil {
			s.log.Warn().Err(err).Str("session_id", sessionID).Msg("reap expired session failed")
		} else if existed {
			s.metricInc(MetricSessionExpired)
			s.emitAudit(ctx, auditEventSessionExpired, true, sess.UserID, sessionID, nil, nil)
		}
		return nil, nil
	}

	s.metricInc(MetricSessionLookupHit)
	return sess, nil
}

// RefreshSession redeems a refresh token. The session it belongs to is
// revoked and a new session with the same profile is created, so every
// refresh token works exactly once. Unknown, reused or expired tokens
// return (nil, nil); the caller must re-authenticate.
//
// When refresh throttling is enabled the client IP from [WithClientIP] is
// charged one attempt before anything else happens.
func (s *Service) RefreshSession(ctx context.Context, refreshToken string) (*Tokens, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if refreshToken == "" {
		return nil, nil
	}

	if err := s.limiter.Allow(ctx, clientIPFromContext(ctx)); err != nil {
		if errors.Is(err, rate.ErrRateLimited) {
			s.metricInc(MetricRefreshRateLimited)
			s.emitAudit(ctx, auditEventRefreshRateLimited, false, "", "", ErrRefreshRateLimited, nil)
			return nil, ErrRefreshRateLimited
		}
		s.storeFailed(err)
		return nil, err
	}

	old, err := s.store.ConsumeRefresh(ctx, token.Hash(refreshToken))
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			s.metricInc(MetricRefreshInvalid)
			s.emitAudit(ctx, auditEventRefreshInvalid, false, "", "", errInvalidToken, nil)
			return nil, nil
		}
		s.storeFailed(err)
		return nil, err
	}

	// the record and refresh index are already gone; drop the rest
	if err := s.store.Revoke(ctx, old); err != nil {
		s.log.Warn().Err(err).Str("session_id", old.SessionID).Msg("revoke consumed session indices failed")
	}

	if old.Expired(s.now()) {
		s.metricInc(MetricRefreshInvalid)
		s.metricInc(MetricSessionExpired)
		s.emitAudit(ctx, auditEventRefreshInvalid, false, old.UserID, old.SessionID, errInvalidToken, nil)
		return nil, nil
	}

	tokens, err := s.CreateSession(ctx, old.UserID, old.Profile())
	if err != nil {
		return nil, err
	}

	s.metricInc(MetricRefreshSuccess)
	s.emitAudit(ctx, auditEventRefreshSuccess, true, old.UserID, tokens.SessionID, nil, func() map[string]string {
		return map[string]string{"previous_session_id": old.SessionID}
	})

	return tokens, nil
}

// UpdateSessionActivity slides the session's expiry to now + TTL and
// records the activity time. Absent sessions are a no-op.
func (s *Service) UpdateSessionActivity(ctx context.Context, sessionID string) error {
	if err := s.ready(); err != nil {
		return err
	}

	sess, err := s.GetSessionByID(ctx, sessionID)
	if err != nil || sess == nil {
		return err
	}

	ttl := s.config.Session.TTL
	now := s.now()
	sess.SchemaVersion = session.CurrentSchemaVersion
	sess.LastActivity = now.UnixMilli()
	sess.ExpiresAt = now.Add(ttl).UnixMilli()

	if err := s.store.Touch(ctx, sess, ttl); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			// removed concurrently
			return nil
		}
		s.storeFailed(err)
		return err
	}

	s.metricInc(MetricSessionTouched)
	return nil
}

// RemoveSession deletes a session and its membership entry. Removing an
// unknown session succeeds. Token indices expire on their own and resolve
// to nothing in the meantime.
func (s *Service) RemoveSession(ctx context.Context, sessionID string) error {
	if err := s.ready(); err != nil {
		return err
	}
	if sessionID == "" {
		return nil
	}

	existed, err := s.removeSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if existed {
		s.emitAudit(ctx, auditEventSessionRemoved, true, "", sessionID, nil, nil)
	}
	return nil
}

func (s *Service) removeSession(ctx context.Context, sessionID string) (bool, error) {
	existed, err := s.store.Remove(ctx, sessionID)
	if err != nil {
		s.storeFailed(err)
		return false, err
	}
	if existed {
		s.metricInc(MetricSessionRemoved)
	}
	return existed, nil
}

// RemoveAllUserSessions removes every session listed for userID and
// returns how many existed. Membership entries whose record is already
// gone are pruned.
func (s *Service) RemoveAllUserSessions(ctx context.Context, userID string) (int, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	if userID == "" {
		return 0, ErrInvalidUserID
	}

	ids, err := s.store.MemberIDs(ctx, userID)
	if err != nil {
		s.storeFailed(err)
		return 0, err
	}

	removed := 0
	var stale []string
	for _, id := range ids {
		existed, err := s.removeSession(ctx, id)
		if err != nil {
			return removed, err
		}
		if existed {
			removed++
		} else {
			stale = append(stale, id)
		}
	}
	s.pruneMembers(ctx, userID, stale)

	s.metricInc(MetricRemoveAll)
	s.emitAudit(ctx, auditEventSessionsRemovedAll, true, userID, "", nil, func() map[string]string {
		return map[string]string{"removed": fmt.Sprint(removed)}
	})

	return removed, nil
}

// GetUserSessions lists the user's live sessions, oldest first. Members
// whose record is missing or expired are skipped and pruned.
func (s *Service) GetUserSessions(ctx context.Context, userID string) ([]*session.Session, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if userID == "" {
		return nil, ErrInvalidUserID
	}

	ids, err := s.store.MemberIDs(ctx, userID)
	if err != nil {
		s.storeFailed(err)
		return nil, err
	}

	out := make([]*session.Session, 0, len(ids))
	var stale []string
	for _, id := range ids {
		sess, err := s.GetSessionByID(ctx, id)
		if err != nil {
			if errors.Is(err, session.ErrCorrupt) || errors.Is(err, session.ErrUnsupportedSchema) {
				s.log.Warn().Err(err).Str("session_id", id).Str("user_id", userID).Msg("skipping undecodable session")
				continue
			}
			return nil, err
		}
		if sess == nil {
			stale = append(stale, id)
			continue
		}
		if sess.UserID != userID {
			continue
		}
		out = append(out, sess)
	}
	s.pruneMembers(ctx, userID, stale)

	return out, nil
}

// CountUserSessions returns the number of live sessions for userID.
func (s *Service) CountUserSessions(ctx context.Context, userID string) (int, error) {
	sessions, err := s.GetUserSessions(ctx, userID)
	if err != nil {
		return 0, err
	}
	return len(sessions), nil
}

// Ping checks store availability and returns the round-trip latency.
func (s *Service) Ping(ctx context.Context) (time.Duration, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	return s.store.Ping(ctx)
}

// pruneMembers is best effort; a failure leaves entries for cleanup.
func (s *Service) pruneMembers(ctx context.Context, userID string, ids []string) int {
	if len(ids) == 0 {
		return 0
	}
	n, err := s.store.PruneMembers(ctx, userID, ids...)
	if err != nil {
		s.log.Warn().Err(err).Str("user_id", userID).Int("count", len(ids)).Msg("prune stale session members failed")
		return 0
	}
	return n
}
