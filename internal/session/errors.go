package session

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrWrongSecret reports that neither unwrap path accepted the
	// candidate secret. It deliberately does not say which path was
	// attempted.
	ErrWrongSecret = errors.New("invalid credential")

	// ErrCorruptedStore reports persisted records that are present but
	// unusable. Callers should offer a data-preserving remediation
	// (export, then reset) instead of "try again".
	ErrCorruptedStore = errors.New("stored vault data is corrupted")

	// ErrLocked reports an operation that requires the unlocked state.
	ErrLocked = errors.New("vault is locked")

	// ErrNotInitialized reports an unlock attempt before any setup.
	ErrNotInitialized = errors.New("vault is not set up")

	// ErrAlreadyInitialized reports a setup attempt over an existing vault.
	ErrAlreadyInitialized = errors.New("vault already set up; unlock instead")
)

// LockoutError refuses an authentication attempt during an active lockout
// window. It is returned before any derivation work is done.
type LockoutError struct {
	Remaining time.Duration
}

func (e *LockoutError) Error() string {
	return fmt.Sprintf("too many failed attempts; locked out for %s", e.Remaining.Round(time.Second))
}

// PersistenceError wraps an I/O failure from the backing store. It is
// recoverable by retry; the in-memory state is never advanced past a
// failed write.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
