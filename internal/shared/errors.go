package shared

import "errors"

var (
	// ErrAccountMissing indicates a request without a usable account.
	ErrAccountMissing = errors.New("account id missing or invalid")
	// ErrLockTimeout occurs when a product lock cannot be acquired in time.
	ErrLockTimeout = errors.New("lock not acquired")
)
