package session

import (
	"errors"

	"github.com/resumeforge/sessionkit/kvstore"
)

// ErrNotFound reports that a session (or the index entry pointing at it)
// does not exist.
var ErrNotFound = errors.New("session not found")

// ErrCorrupt reports a stored record that cannot be decoded.
var ErrCorrupt = errors.New("session record corrupt")

// ErrUnsupportedSchema reports a record written by an unknown encoder version.
var ErrUnsupportedSchema = errors.New("unsupported session schema version")

// ErrUnavailable is the store connectivity failure, shared with kvstore.
var ErrUnavailable = kvstore.ErrUnavailable
