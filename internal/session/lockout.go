package session

import (
	"encoding/json"
	"time"
)

const (
	// lockoutThreshold is the number of consecutive failures that opens a
	// lockout window.
	lockoutThreshold = 3
	// lockoutDuration is the length of the lockout window.
	lockoutDuration = time.Hour
)

// LockoutState is the persisted failed-attempt record. It is stored
// unencrypted: it contains no secret and no derived material.
type LockoutState struct {
	FailedAttempts int        `json:"failedAttempts"`
	LockedUntil    *time.Time `json:"lockedUntil,omitempty"`
}

// Remaining reports how much of a lockout window is still active at now.
func (s LockoutState) Remaining(now time.Time) (time.Duration, bool) {
	if s.LockedUntil == nil || !now.Before(*s.LockedUntil) {
		return 0, false
	}
	return s.LockedUntil.Sub(now), true
}

// Fail records one authentication failure. On reaching the threshold the
// expiry is set to now plus the window and the counter resets to zero, so
// lockouts do not compound across cycles.
func (s LockoutState) Fail(now time.Time) LockoutState {
	s.FailedAttempts++
	if s.FailedAttempts >= lockoutThreshold {
		until := now.Add(lockoutDuration)
		s.LockedUntil = &until
		s.FailedAttempts = 0
	}
	return s
}

// Reset clears the counter and any active window unconditionally.
func (s LockoutState) Reset() LockoutState {
	return LockoutState{}
}

func (s LockoutState) encode() (string, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// decodeLockout parses a persisted lockout record. The record is advisory
// (an attacker with store access can delete it outright), so an
// unparseable record degrades to the zero state instead of blocking the
// user behind a corruption error.
func decodeLockout(s string) LockoutState {
	var state LockoutState
	if err := json.Unmarshal([]byte(s), &state); err != nil {
		return LockoutState{}
	}
	return state
}
