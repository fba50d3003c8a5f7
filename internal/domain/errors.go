package domain

import (
	"errors"
	"fmt"
)

// ErrValidation marks input that was rejected before entering the pipeline.
var ErrValidation = errors.New("validation error")

var (
	ErrEmptyMessage    = fmt.Errorf("%w: empty message", ErrValidation)
	ErrMessageTooLong  = fmt.Errorf("%w: message too long", ErrValidation)
	ErrBackendTimeout  = errors.New("generation backend timed out")
	ErrNoBackend       = errors.New("no generation backend configured")
	ErrReplyTooShort   = errors.New("generation backend returned an unusable reply")
	ErrPoolUnavailable = errors.New("worker pool rejected task")
)

// IsValidation reports whether err is an input validation failure.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}
