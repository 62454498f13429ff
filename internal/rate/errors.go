package rate

import (
	"errors"

	"github.com/resumeforge/sessionkit/kvstore"
)

var (
	// ErrRateLimited reports that the identifier used up its window budget.
	ErrRateLimited = errors.New("rate limited")
	// ErrUnavailable wraps counter store failures.
	ErrUnavailable = kvstore.ErrUnavailable
)
