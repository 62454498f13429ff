package session

import "time"

// CurrentSchemaVersion is the record version written by [Encode].
const CurrentSchemaVersion = sessionFormatVersionCurrent

// Session is the server-side record of an authenticated principal.
//
// Timestamps are Unix milliseconds. AccessHash and RefreshHash are SHA-256
// digests of the live bearer tokens; the tokens themselves are never stored.
type Session struct {
	SchemaVersion uint8

	SessionID      string
	UserID         string
	Email          string
	ServiceType    string
	OrganizationID string
	Role           string

	IPAddress    string
	UserAgent    string
	DeviceInfo   map[string]string
	LocationInfo map[string]string
	Metadata     map[string]string

	AccessHash  [32]byte
	RefreshHash [32]byte

	CreatedAt    int64
	LastActivity int64
	ExpiresAt    int64
}

// Profile is the caller-supplied part of a new session.
type Profile struct {
	Email          string
	ServiceType    string
	OrganizationID string
	Role           string
	IPAddress      string
	UserAgent      string
	DeviceInfo     map[string]string
	LocationInfo   map[string]string
	Metadata       map[string]string
}

const (
	// DefaultServiceType is applied when a profile leaves ServiceType empty.
	DefaultServiceType = "web"
	// DefaultRole is applied when a profile leaves Role empty.
	DefaultRole = "user"
)

// WithDefaults returns a copy of p with empty fields defaulted and maps
// cloned so the caller's maps are never aliased by a stored session.
func (p Profile) WithDefaults() Profile {
	out := p
	if out.ServiceType == "" {
		out.ServiceType = DefaultServiceType
	}
	if out.Role == "" {
		out.Role = DefaultRole
	}
	out.DeviceInfo = cloneMap(p.DeviceInfo)
	out.LocationInfo = cloneMap(p.LocationInfo)
	out.Metadata = cloneMap(p.Metadata)
	return out
}

// Profile extracts the caller-visible profile so a session can be
// recreated with the same fields.
func (s *Session) Profile() Profile {
	return Profile{
		Email:          s.Email,
		ServiceType:    s.ServiceType,
		OrganizationID: s.OrganizationID,
		Role:           s.Role,
		IPAddress:      s.IPAddress,
		UserAgent:      s.UserAgent,
		DeviceInfo:     cloneMap(s.DeviceInfo),
		LocationInfo:   cloneMap(s.LocationInfo),
		Metadata:       cloneMap(s.Metadata),
	}
}

// Expired reports whether ExpiresAt is at or before now.
func (s *Session) Expired(now time.Time) bool {
	return s.ExpiresAt <= now.UnixMilli()
}

// ExpiresAtTime returns ExpiresAt as a time.Time.
func (s *Session) ExpiresAtTime() time.Time {
	return time.UnixMilli(s.ExpiresAt)
}

// LastActivityTime returns LastActivity as a time.Time.
func (s *Session) LastActivityTime() time.Time {
	return time.UnixMilli(s.LastActivity)
}

// CreatedAtTime returns CreatedAt as a time.Time.
func (s *Session) CreatedAtTime() time.Time {
	return time.UnixMilli(s.CreatedAt)
}

func cloneMap(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
