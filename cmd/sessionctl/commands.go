package main

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/resumeforge/sessionkit/session"
	"github.com/urfave/cli/v2"
)

func writeJSON(c *cli.Context, v any) error {
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func statsCommand() *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Count live and expired sessions",
		Action: func(c *cli.Context) error {
			rt, err := openService(c, nil)
			if err != nil {
				return err
			}
			defer rt.Close()

			stats, err := rt.svc.GetSessionStats(commandContext(c))
			if err != nil {
				return err
			}
			return writeJSON(c, stats)
		},
	}
}

func cleanupCommand() *cli.Command {
	return &cli.Command{
		Name:  "cleanup",
		Usage: "Reap expired sessions and dangling membership entries once",
		Action: func(c *cli.Context) error {
			rt, err := openService(c, nil)
			if err != nil {
				return err
			}
			defer rt.Close()

			reaped, err := rt.svc.CleanupExpiredSessions(commandContext(c))
			if err != nil {
				return err
			}
			return writeJSON(c, map[string]int{"reaped": reaped})
		},
	}
}

// sessionView is the listing shape; token digests are left out.
type sessionView struct {
	SessionID      string            `json:"session_id"`
	UserID         string            `json:"user_id"`
	Email          string            `json:"email,omitempty"`
	ServiceType    string            `json:"service_type"`
	OrganizationID string            `json:"organization_id,omitempty"`
	Role           string            `json:"role"`
	IPAddress      string            `json:"ip_address,omitempty"`
	UserAgent      string            `json:"user_agent,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	LastActivity   time.Time         `json:"last_activity"`
	ExpiresAt      time.Time         `json:"expires_at"`
}

func newSessionView(s *session.Session) sessionView {
	return sessionView{
		SessionID:      s.SessionID,
		UserID:         s.UserID,
		Email:          s.Email,
		ServiceType:    s.ServiceType,
		OrganizationID: s.OrganizationID,
		Role:           s.Role,
		IPAddress:      s.IPAddress,
		UserAgent:      s.UserAgent,
		Metadata:       s.Metadata,
		CreatedAt:      time.UnixMilli(s.CreatedAt).UTC(),
		LastActivity:   time.UnixMilli(s.LastActivity).UTC(),
		ExpiresAt:      time.UnixMilli(s.ExpiresAt).UTC(),
	}
}

func sessionsCommand() *cli.Command {
	return &cli.Command{
		Name:    "sessions",
		Aliases: []string{"sess"},
		Usage:   "Manage individual sessions",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List a user's live sessions, oldest first",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "user", Aliases: []string{"u"}, Usage: "User ID", Required: true},
				},
				Action: sessionsList,
			},
			{
				Name:  "create",
				Usage: "Issue a session and print its tokens",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "user", Aliases: []string{"u"}, Usage: "User ID", Required: true},
					&cli.StringFlag{Name: "email", Usage: "Email recorded on the session"},
					&cli.StringFlag{Name: "service-type", Usage: "Service type (default web)"},
					&cli.StringFlag{Name: "role", Usage: "Role (default user)"},
				},
				Action: sessionsCreate,
			},
			{
				Name:  "revoke",
				Usage: "Remove one session",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "id", Usage: "Session ID", Required: true},
				},
				Action: sessionsRevoke,
			},
			{
				Name:  "revoke-all",
				Usage: "Remove every session of a user",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "user", Aliases: []string{"u"}, Usage: "User ID", Required: true},
				},
				Action: sessionsRevokeAll,
			},
		},
	}
}

func sessionsList(c *cli.Context) error {
	rt, err := openService(c, nil)
	if err != nil {
		return err
	}
	defer rt.Close()

	sessions, err := rt.svc.GetUserSessions(commandContext(c), c.String("user"))
	if err != nil {
		return err
	}
	views := make([]sessionView, 0, len(sessions))
	for _, s := range sessions {
		views = append(views, newSessionView(s))
	}
	return writeJSON(c, views)
}

func sessionsCreate(c *cli.Context) error {
	rt, err := openService(c, nil)
	if err != nil {
		return err
	}
	defer rt.Close()

	tokens, err := rt.svc.CreateSession(commandContext(c), c.String("user"), session.Profile{
		Email:       c.String("email"),
		ServiceType: c.String("service-type"),
		Role:        c.String("role"),
		UserAgent:   "sessionctl",
	})
	if err != nil {
		return err
	}
	return writeJSON(c, tokens)
}

func sessionsRevoke(c *cli.Context) error {
	id := c.String("id")
	if id == "" {
		return errors.New("--id must not be empty")
	}

	rt, err := openService(c, nil)
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := rt.svc.RemoveSession(commandContext(c), id); err != nil {
		return err
	}
	return writeJSON(c, map[string]string{"removed": id})
}

func sessionsRevokeAll(c *cli.Context) error {
	rt, err := openService(c, nil)
	if err != nil {
		return err
	}
	defer rt.Close()

	removed, err := rt.svc.RemoveAllUserSessions(commandContext(c), c.String("user"))
	if err != nil {
		return err
	}
	return writeJSON(c, map[string]int{"removed": removed})
}
