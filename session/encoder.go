package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
)

const (
	sessionFormatVersionCurrent = 2
	sessionFormatVersionV1      = 1
)

// Encode serialises s in the current schema version.
//
// Layout (big endian, strings and map entries are uint16 length-prefixed):
//
//	version | userID | email | serviceType | organizationID | role |
//	ipAddress | userAgent | deviceInfo | locationInfo (v2) | metadata (v2) |
//	accessHash[32] | refreshHash[32] | createdAt | lastActivity | expiresAt
func Encode(s *Session) ([]byte, error) {
	if s == nil {
		return nil, errors.New("nil session")
	}

	var buf bytes.Buffer
	buf.Grow(256)
	buf.WriteByte(sessionFormatVersionCurrent)

	for _, f := range []struct {
		name  string
		value string
	}{
		{"userID", s.UserID},
		{"email", s.Email},
		{"serviceType", s.ServiceType},
		{"organizationID", s.OrganizationID},
		{"role", s.Role},
		{"ipAddress", s.IPAddress},
		{"userAgent", s.UserAgent},
	} {
		if err := writeString(&buf, f.value); err != nil {
			return nil, fmt.Errorf("%s: %w", f.name, err)
		}
	}

	if err := writeMap(&buf, s.DeviceInfo); err != nil {
		return nil, fmt.Errorf("deviceInfo: %w", err)
	}
	if err := writeMap(&buf, s.LocationInfo); err != nil {
		return nil, fmt.Errorf("locationInfo: %w", err)
	}
	if err := writeMap(&buf, s.Metadata); err != nil {
		return nil, fmt.Errorf("metadata: %w", err)
	}

	buf.Write(s.AccessHash[:])
	buf.Write(s.RefreshHash[:])

	for _, ts := range []int64{s.CreatedAt, s.LastActivity, s.ExpiresAt} {
		if err := binary.Write(&buf, binary.BigEndian, ts); err != nil {
			return nil, err
		}
	}

	return buf.Bytes(), nil
}

// Decode parses any supported schema version. The returned session keeps
// the version it was read from in SchemaVersion; SessionID is not part of
// the encoding and must be set by the caller.
func Decode(data []byte) (*Session, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if version != sessionFormatVersionCurrent && version != sessionFormatVersionV1 {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedSchema, version)
	}

	s := &Session{SchemaVersion: version}

	for _, dst := range []*string{
		&s.UserID,
		&s.Email,
		&s.ServiceType,
		&s.OrganizationID,
		&s.Role,
		&s.IPAddress,
		&s.UserAgent,
	} {
		v, err := readString(reader)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		*dst = v
	}

	if s.DeviceInfo, err = readMap(reader); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if version == sessionFormatVersionCurrent {
		if s.LocationInfo, err = readMap(reader); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		if s.Metadata, err = readMap(reader); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
	} else {
		s.LocationInfo = map[string]string{}
		s.Metadata = map[string]string{}
	}

	if _, err := io.ReadFull(reader, s.AccessHash[:]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if _, err := io.ReadFull(reader, s.RefreshHash[:]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	for _, dst := range []*int64{&s.CreatedAt, &s.LastActivity, &s.ExpiresAt} {
		if err := binary.Read(reader, binary.BigEndian, dst); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
	}

	if reader.Len() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrCorrupt, reader.Len())
	}

	return s, nil
}

func writeString(buf *bytes.Buffer, v string) error {
	if len(v) > math.MaxUint16 {
		return errors.New("value too long")
	}
	var n [2]byte
	binary.BigEndian.PutUint16(n[:], uint16(len(v)))
	buf.Write(n[:])
	buf.WriteString(v)
	return nil
}

func readString(r *bytes.Reader) (string, error) {
	var n uint16
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return "", err
	}
	if int(n) > r.Len() {
		return "", io.ErrUnexpectedEOF
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}

// writeMap emits entries in key order so equal maps encode identically.
func writeMap(buf *bytes.Buffer, m map[string]string) error {
	if len(m) > math.MaxUint16 {
		return errors.New("too many entries")
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var n [2]byte
	binary.BigEndian.PutUint16(n[:], uint16(len(keys)))
	buf.Write(n[:])
	for _, k := range keys {
		if err := writeString(buf, k); err != nil {
			return err
		}
		if err := writeString(buf, m[k]); err != nil {
			return err
		}
	}
	return nil
}

func readMap(r *bytes.Reader) (map[string]string, error) {
	var n uint16
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return nil, err
	}
	// every entry needs at least two length prefixes
	if int(n)*4 > r.Len() {
		return nil, io.ErrUnexpectedEOF
	}
	out := make(map[string]string, n)
	for i := 0; i < int(n); i++ {
		k, err := readString(r)
		if err != nil {
			return nil, err
		}
		v, err := readString(r)
		if err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}
