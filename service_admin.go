package sessionkit

import (
	"context"
	"errors"
	"fmt"

	"github.com/resumeforge/sessionkit/session"
)

// GetSessionStats scans the whole session key space. It is read-only and
// O(total keys); run it from admin tooling, never per request.
func (s *Service) GetSessionStats(ctx context.Context) (*Stats, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	now := s.now()
	stats := &Stats{SessionsByUser: map[string]int{}}

	err := s.store.ScanSessionIDs(ctx, func(ids []string) error {
		for _, id := range ids {
			sess, err := s.store.GetReadOnly(ctx, id)
			if err != nil {
				switch {
				case errors.Is(err, session.ErrNotFound):
					// evicted between SCAN and GET
					continue
				case errors.Is(err, session.ErrCorrupt), errors.Is(err, session.ErrUnsupportedSchema):
					s.log.Warn().Err(err).Str("session_id", id).Msg("stats: undecodable session")
					continue
				default:
					return err
				}
			}
			stats.TotalSessions++
			if sess.Expired(now) {
				stats.ExpiredSessions++
			} else {
				stats.ActiveSessions++
			}
		}
		return nil
	})
	if err != nil {
		s.storeFailed(err)
		return nil, err
	}

	err = s.store.ScanUserIDs(ctx, func(userIDs []string) error {
		for _, userID := range userIDs {
			ids, err := s.store.MemberIDs(ctx, userID)
			if err != nil {
				return err
			}
			live := 0
			for _, id := range ids {
				sess, err := s.store.GetReadOnly(ctx, id)
				if err != nil {
					if errors.Is(err, ErrStoreUnavailable) {
						return err
					}
					continue
				}
				if sess.UserID == userID && !sess.Expired(now) {
					live++
				}
			}
			if live > 0 {
				stats.SessionsByUser[userID] = live
			}
		}
		return nil
	})
	if err != nil {
		s.storeFailed(err)
		return nil, err
	}

	return stats, nil
}

// CleanupExpiredSessions reaps sessions whose ExpiresAt has passed and
// prunes membership entries that point at records the store already
// evicted. It returns the number of sessions and entries reaped. Like
// [Service.GetSessionStats] it scans the whole key space.
func (s *Service) CleanupExpiredSessions(ctx context.Context) (int, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}

	now := s.now()
	expired := 0

	err := s.store.ScanSessionIDs(ctx, func(ids []string) error {
		for _, id := range ids {
			sess, err := s.store.GetReadOnly(ctx, id)
			if err != nil {
				switch {
				case errors.Is(err, session.ErrNotFound):
					continue
				case errors.Is(err, session.ErrCorrupt), errors.Is(err, session.ErrUnsupportedSchema):
					s.log.Warn().Err(err).Str("session_id", id).Msg("cleanup: undecodable session left in place")
					continue
				default:
					return err
				}
			}
			if !sess.Expired(now) {
				continue
			}
			existed, err := s.removeSession(ctx, id)
			if err != nil {
				return err
			}
			if existed {
				expired++
				s.metricInc(MetricSessionExpired)
			}
		}
		return nil
	})
	if err != nil {
		s.storeFailed(err)
		return expired, err
	}

	dangling := 0
	err = s.store.ScanUserIDs(ctx, func(userIDs []string) error {
		for _, userID := range userIDs {
			ids, err := s.store.MemberIDs(ctx, userID)
			if err != nil {
				return err
			}
			var stale []string
			for _, id := range ids {
				_, err := s.store.GetReadOnly(ctx, id)
				switch {
				case err == nil:
				case errors.Is(err, session.ErrNotFound):
					stale = append(stale, id)
				case errors.Is(err, ErrStoreUnavailable):
					return err
				}
			}
			if len(stale) == 0 {
				continue
			}
			n, err := s.store.PruneMembers(ctx, userID, stale...)
			if err != nil {
				return err
			}
			dangling += n
		}
		return nil
	})
	reaped := expired + dangling
	if err != nil {
		s.storeFailed(err)
		return reaped, err
	}

	s.metricInc(MetricCleanupRun)
	s.metrics.Add(MetricCleanupReaped, uint64(reaped))
	if reaped > 0 {
		s.log.Info().
			Int("expired", expired).
			Int("dangling", dangling).
			Msg("expired sessions cleaned up")
	}
	s.emitAudit(ctx, auditEventCleanupCompleted, true, "", "", nil, func() map[string]string {
		return map[string]string{
			"expired":  fmt.Sprint(expired),
			"dangling": fmt.Sprint(dangling),
		}
	})

	return reaped, nil
}
