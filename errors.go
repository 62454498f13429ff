package sessionkit

import (
	"errors"

	"github.com/resumeforge/sessionkit/kvstore"
)

var (
	// ErrStoreUnavailable reports that the backing store could not be
	// reached. Session operations never degrade to "allow" on this error.
	ErrStoreUnavailable = kvstore.ErrUnavailable
	// ErrInvalidUserID is returned when an operation needs a user id and got
	// an empty one.
	ErrInvalidUserID = errors.New("invalid user id")
	// ErrRefreshRateLimited is returned when the client exceeded the refresh
	// budget for the current window.
	ErrRefreshRateLimited = errors.New("refresh rate limited")
	// ErrServiceNotReady is returned by methods called on a nil or unbuilt
	// Service.
	ErrServiceNotReady = errors.New("session service not initialized")
)
