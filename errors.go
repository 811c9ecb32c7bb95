package perfcore

import "errors"

var (
	// ErrInvalidSize is returned for allocation requests of zero or negative size.
	ErrInvalidSize = errors.New("perfcore: invalid allocation size")

	// ErrPoolExhausted means the arena or the descriptor table is full.
	ErrPoolExhausted = errors.New("perfcore: pool exhausted")

	// ErrSecondaryExhausted means the secondary region budget is spent.
	ErrSecondaryExhausted = errors.New("perfcore: secondary region exhausted")

	// ErrUnknownHandle is returned when releasing a handle the allocator does not own.
	ErrUnknownHandle = errors.New("perfcore: unknown allocation handle")

	// ErrInvalidConfig wraps every configuration validation failure.
	ErrInvalidConfig = errors.New("perfcore: invalid config")
)
