package kvstore

import (
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// ErrNil reports that a key (or script result) does not exist.
var ErrNil = errors.New("key not found")

// ErrUnavailable reports that the backing store could not serve a command.
var ErrUnavailable = errors.New("session store unavailable")

func wrap(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, redis.Nil) {
		return ErrNil
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
