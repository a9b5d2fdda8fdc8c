// Package session implements the authentication and session state machine
// for the vault: setup, unlock via master password or recovery code,
// lockout accounting, inactivity auto-lock, and exclusive ownership of the
// in-memory vault key while unlocked.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/keyfort/keyfort/auth"
	"github.com/keyfort/keyfort/internal/vault"
	"github.com/keyfort/keyfort/krypto"
	"github.com/keyfort/keyfort/recovery"
	"github.com/keyfort/keyfort/store"
)

// Store keys for the three independent persisted records.
const (
	KeyConfig  = "config"
	KeyVault   = "vault"
	KeyLockout = "lockout"
)

// DefaultIdleTimeout is the inactivity window after which an unlocked
// session locks itself.
const DefaultIdleTimeout = 5 * time.Minute

// State is the session's lifecycle position. The vault key exists in
// memory if and only if the state is StateUnlocked.
type State int

const (
	// StateUninitialized means no vault config has been persisted yet.
	StateUninitialized State = iota
	// StateLocked means a config exists but no vault key is held.
	StateLocked
	// StateUnlocked means the vault key and decrypted entries are held.
	StateUnlocked
)

func (s State) String() string {
	switch s {
	case StateLocked:
		return "locked"
	case StateUnlocked:
		return "unlocked"
	default:
		return "uninitialized"
	}
}

// Session owns the transient vault key and drives all state transitions.
// All operations are serialized; a second unlock attempt waits for the
// first rather than racing a duplicate derivation.
type Session struct {
	mu          sync.Mutex
	store       store.Store
	params      krypto.Argon2Params
	idleTimeout time.Duration
	now         func() time.Time
	derive      func(secret string, salt []byte, p krypto.Argon2Params) ([]byte, error)

	state   State
	cfg     *vault.Config
	key     []byte
	entries []vault.Entry
	idle    *time.Timer
	idleGen uint64
}

// Option configures a Session.
type Option func(*Session)

// WithArgon2Params overrides the derivation parameters used at setup.
// Stored vaults always unlock with their persisted parameters.
func WithArgon2Params(p krypto.Argon2Params) Option {
	return func(s *Session) { s.params = p }
}

// WithIdleTimeout overrides the inactivity window.
func WithIdleTimeout(d time.Duration) Option {
	return func(s *Session) { s.idleTimeout = d }
}

// WithClock overrides the wall clock, for lockout tests.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// New returns a session bound to a store, in the uninitialized state until
// Load observes a persisted config.
func New(st store.Store, opts ...Option) *Session {
	s := &Session{
		store:       st,
		params:      krypto.DefaultArgon2Params(),
		idleTimeout: DefaultIdleTimeout,
		now:         time.Now,
		derive:      krypto.DeriveKey,
		state:       StateUninitialized,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load reads the persisted config and settles the initial state: missing
// config routes to setup, a present config to the locked state, and an
// unparseable config to ErrCorruptedStore.
func (s *Session) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateUnlocked {
		return nil
	}

	raw, ok, err := s.store.Get(ctx, KeyConfig)
	if err != nil {
		return &PersistenceError{Op: "load config", Err: err}
	}
	if !ok {
		s.state = StateUninitialized
		s.cfg = nil
		return nil
	}

	cfg, err := vault.DecodeConfig(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptedStore, err)
	}

	s.cfg = &cfg
	s.state = StateLocked
	return nil
}

// State reports the current lifecycle position.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Setup initializes a brand-new vault from a master password and a
// generated recovery code. It derives two keys under identical parameters
// and salt, wraps one fresh vault key under each, and persists the initial
// empty vault together with the config: the vault record is written first
// and removed again if the config write fails, so a half-initialized store
// is never left behind. On success the session is unlocked with the
// just-created key, without a second derivation round-trip.
func (s *Session) Setup(ctx context.Context, master, recoveryCode string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateUninitialized {
		return ErrAlreadyInitialized
	}
	if _, ok, err := s.store.Get(ctx, KeyConfig); err != nil {
		return &PersistenceError{Op: "check config", Err: err}
	} else if ok {
		return ErrAlreadyInitialized
	}

	if err := auth.ValidateMasterPassword(master); err != nil {
		return fmt.Errorf("validate master password: %w", err)
	}
	parsedCode, ok := recovery.ParseCode(recoveryCode)
	if !ok {
		return errors.New("malformed recovery code")
	}

	salt, err := krypto.NewSalt()
	if err != nil {
		return fmt.Errorf("generate salt: %w", err)
	}

	passwordKey, err := s.derive(master, salt, s.params)
	if err != nil {
		return fmt.Errorf("derive password key: %w", err)
	}
	defer krypto.Wipe(passwordKey)

	recoveryKey, err := s.derive(parsedCode, salt, s.params)
	if err != nil {
		return fmt.Errorf("derive recovery key: %w", err)
	}
	defer krypto.Wipe(recoveryKey)

	vaultKey, err := vault.NewVaultKey()
	if err != nil {
		return err
	}

	passwordWrap, err := vault.WrapKey(vaultKey, passwordKey)
	if err != nil {
		krypto.Wipe(vaultKey)
		return err
	}
	recoveryWrap, err := vault.WrapKey(vaultKey, recoveryKey)
	if err != nil {
		krypto.Wipe(vaultKey)
		return err
	}

	now := s.now().UTC()
	cfg := vault.Config{
		Version:      1,
		PasswordWrap: passwordWrap,
		RecoveryWrap: recoveryWrap,
		Salt:         encodeSalt(salt),
		KDF: vault.KDFConfig{
			Name:        "argon2id",
			MemoryMB:    s.params.MemoryMB,
			Time:        s.params.Time,
			Parallelism: s.params.Parallelism,
			KeyLen:      s.params.KeyLen,
		},
		SetupComplete: true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.persistInitial(ctx, cfg, vaultKey); err != nil {
		krypto.Wipe(vaultKey)
		return err
	}

	lockout := LockoutState{}
	if encoded, err := lockout.encode(); err == nil {
		_ = s.store.Set(ctx, KeyLockout, encoded)
	}

	s.cfg = &cfg
	s.unlock(vaultKey, []vault.Entry{})
	return nil
}

// persistInitial writes the empty vault and then the config. The store
// offers no cross-key transaction, so ordering plus best-effort rollback
// stands in: a config without a matching vault (or vice versa) would be
// unrecoverable.
func (s *Session) persistInitial(ctx context.Context, cfg vault.Config, vaultKey []byte) error {
	encrypted, err := vault.EncryptEntries([]vault.Entry{}, vaultKey)
	if err != nil {
		return err
	}
	vaultRecord, err := encrypted.Encode()
	if err != nil {
		return err
	}
	configRecord, err := cfg.Encode()
	if err != nil {
		return err
	}

	if err := s.store.Set(ctx, KeyVault, vaultRecord); err != nil {
		return &PersistenceError{Op: "write vault", Err: err}
	}
	if err := s.store.Set(ctx, KeyConfig, configRecord); err != nil {
		_ = s.store.Delete(ctx, KeyVault)
		return &PersistenceError{Op: "write config", Err: err}
	}
	return nil
}

// Authenticate attempts to move Locked → Unlocked with a candidate secret.
// During an active lockout window it refuses with *LockoutError before any
// derivation work. Otherwise it normalizes the input (recovery-shaped
// input is parsed first), derives one key with the stored salt and
// parameters, and tries the password wrap, then the recovery wrap. Only
// the both-fail branch increments the lockout counter.
func (s *Session) Authenticate(ctx context.Context, secret string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateUninitialized:
		return ErrNotInitialized
	case StateUnlocked:
		return nil
	}

	lockout, err := s.loadLockout(ctx)
	if err != nil {
		return err
	}
	if remaining, active := lockout.Remaining(s.now()); active {
		return &LockoutError{Remaining: remaining}
	}

	candidate := secret
	if parsed, ok := recovery.ParseCode(secret); ok {
		candidate = parsed
	}

	salt, err := decodeSalt(s.cfg.Salt)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptedStore, err)
	}

	derived, err := s.derive(candidate, salt, s.cfg.KDF.Params())
	if err != nil {
		return fmt.Errorf("derive key: %w", err)
	}
	defer krypto.Wipe(derived)

	vaultKey, ok := vault.UnwrapKey(s.cfg.PasswordWrap, derived)
	if !ok {
		vaultKey, ok = vault.UnwrapKey(s.cfg.RecoveryWrap, derived)
	}
	if !ok {
		updated := lockout.Fail(s.now())
		s.storeLockout(ctx, updated)
		return ErrWrongSecret
	}

	entries, err := s.loadEntries(ctx, vaultKey)
	if err != nil {
		krypto.Wipe(vaultKey)
		return err
	}

	s.storeLockout(ctx, lockout.Reset())
	s.unlock(vaultKey, entries)
	return nil
}

// loadEntries reads and decrypts the persisted collection. A missing vault
// record next to a present config, or a decrypt failure under a key that
// just unwrapped correctly, is corruption, not a wrong secret.
func (s *Session) loadEntries(ctx context.Context, vaultKey []byte) ([]vault.Entry, error) {
	raw, ok, err := s.store.Get(ctx, KeyVault)
	if err != nil {
		return nil, &PersistenceError{Op: "load vault", Err: err}
	}
	if !ok {
		return nil, fmt.Errorf("%w: config present but vault record missing", ErrCorruptedStore)
	}

	encrypted, err := vault.DecodeEncryptedVault(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptedStore, err)
	}

	entries, err := vault.DecryptEntries(encrypted, vaultKey)
	if err != nil {
		if errors.Is(err, krypto.ErrDecryptFailed) {
			return nil, fmt.Errorf("%w: vault does not decrypt under the unwrapped key", ErrCorruptedStore)
		}
		return nil, err
	}
	return entries, nil
}

// unlock installs the vault key and entries and arms the inactivity timer.
// Callers hold s.mu.
func (s *Session) unlock(vaultKey []byte, entries []vault.Entry) {
	s.key = vaultKey
	s.entries = entries
	s.state = StateUnlocked
	s.armIdleLocked()
}

// Lock drives Unlocked → Locked: the vault key is zeroed and the decrypted
// collection dropped synchronously before the transition completes. Safe
// to call in any state.
func (s *Session) Lock() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lockLocked()
}

func (s *Session) lockLocked() {
	if s.idle != nil {
		s.idle.Stop()
		s.idle = nil
	}
	if s.key != nil {
		krypto.Wipe(s.key)
		s.key = nil
	}
	s.entries = nil
	if s.state == StateUnlocked {
		s.state = StateLocked
	}
}

// Close tears the session down, wiping any held key.
func (s *Session) Close() {
	s.Lock()
}

// Touch signals user activity, resetting the inactivity timer.
func (s *Session) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateUnlocked {
		s.armIdleLocked()
	}
}

// armIdleLocked starts a fresh inactivity timer. Timer.Stop cannot stop
// a callback that has already fired and is waiting on s.mu, so each arm
// bumps a generation and the callback locks only if its generation is
// still the current one.
func (s *Session) armIdleLocked() {
	if s.idleTimeout <= 0 {
		return
	}
	if s.idle != nil {
		s.idle.Stop()
	}
	s.idleGen++
	gen := s.idleGen
	s.idle = time.AfterFunc(s.idleTimeout, func() { s.idleExpired(gen) })
}

func (s *Session) idleExpired(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.idleGen {
		return
	}
	s.lockLocked()
}

// Entries returns a copy of the decrypted collection.
func (s *Session) Entries() ([]vault.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateUnlocked {
		return nil, ErrLocked
	}
	s.armIdleLocked()
	out := make([]vault.Entry, len(s.entries))
	copy(out, s.entries)
	return out, nil
}

// AddEntry appends a credential and persists the re-encrypted collection.
// The in-memory collection only advances after the write succeeds.
func (s *Session) AddEntry(ctx context.Context, e vault.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateUnlocked {
		return ErrLocked
	}

	updated := make([]vault.Entry, 0, len(s.entries)+1)
	updated = append(updated, s.entries...)
	updated = append(updated, e)

	if err := s.persistEntriesLocked(ctx, updated); err != nil {
		return err
	}
	s.entries = updated
	s.armIdleLocked()
	return nil
}

// RemoveEntry deletes the credential with the given id and persists the
// re-encrypted collection.
func (s *Session) RemoveEntry(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateUnlocked {
		return ErrLocked
	}

	updated := make([]vault.Entry, 0, len(s.entries))
	found := false
	for _, e := range s.entries {
		if e.ID == id {
			found = true
			continue
		}
		updated = append(updated, e)
	}
	if !found {
		return fmt.Errorf("entry %s not found", id)
	}

	if err := s.persistEntriesLocked(ctx, updated); err != nil {
		return err
	}
	s.entries = updated
	s.armIdleLocked()
	return nil
}

func (s *Session) persistEntriesLocked(ctx context.Context, entries []vault.Entry) error {
	encrypted, err := vault.EncryptEntries(entries, s.key)
	if err != nil {
		return err
	}
	record, err := encrypted.Encode()
	if err != nil {
		return err
	}
	if err := s.store.Set(ctx, KeyVault, record); err != nil {
		return &PersistenceError{Op: "write vault", Err: err}
	}
	return nil
}

// ChangeMasterPassword verifies the old password and rewraps the
// password-path wrapped key under a key derived from the new one. The
// vault key is never re-derived, so the encrypted collection and the
// recovery path are untouched. Works in the locked or unlocked state.
// The old-password check is a credential verification like Authenticate,
// so it shares the same lockout accounting: refused during an active
// window before any derivation, and a wrong guess increments the counter.
func (s *Session) ChangeMasterPassword(ctx context.Context, oldMaster, newMaster string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateUninitialized {
		return ErrNotInitialized
	}
	if err := auth.ValidateMasterPassword(newMaster); err != nil {
		return fmt.Errorf("validate new master password: %w", err)
	}

	lockout, err := s.loadLockout(ctx)
	if err != nil {
		return err
	}
	if remaining, active := lockout.Remaining(s.now()); active {
		return &LockoutError{Remaining: remaining}
	}

	salt, err := decodeSalt(s.cfg.Salt)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptedStore, err)
	}

	oldKey, err := s.derive(oldMaster, salt, s.cfg.KDF.Params())
	if err != nil {
		return fmt.Errorf("derive old key: %w", err)
	}
	defer krypto.Wipe(oldKey)

	vaultKey, ok := vault.UnwrapKey(s.cfg.PasswordWrap, oldKey)
	if !ok {
		s.storeLockout(ctx, lockout.Fail(s.now()))
		return ErrWrongSecret
	}
	defer krypto.Wipe(vaultKey)
	s.storeLockout(ctx, lockout.Reset())

	newKey, err := s.derive(newMaster, salt, s.cfg.KDF.Params())
	if err != nil {
		return fmt.Errorf("derive new key: %w", err)
	}
	defer krypto.Wipe(newKey)

	return s.rewrapLocked(ctx, vaultKey, newKey, true)
}

// RotateRecoveryCode generates a fresh recovery code while unlocked and
// rewraps the recovery path under it. The new code is returned exactly
// once for the user to transcribe.
func (s *Session) RotateRecoveryCode(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateUnlocked {
		return "", ErrLocked
	}

	code, err := recovery.GenerateCode()
	if err != nil {
		return "", err
	}
	parsed, ok := recovery.ParseCode(code)
	if !ok {
		return "", errors.New("generated recovery code failed to parse")
	}

	salt, err := decodeSalt(s.cfg.Salt)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCorruptedStore, err)
	}

	recoveryKey, err := s.derive(parsed, salt, s.cfg.KDF.Params())
	if err != nil {
		return "", fmt.Errorf("derive recovery key: %w", err)
	}
	defer krypto.Wipe(recoveryKey)

	if err := s.rewrapLocked(ctx, s.key, recoveryKey, false); err != nil {
		return "", err
	}
	return code, nil
}

// rewrapLocked replaces one wrapped key in the config and persists it.
// Callers hold s.mu and own both key arguments.
func (s *Session) rewrapLocked(ctx context.Context, vaultKey, derivedKey []byte, passwordPath bool) error {
	wrapped, err := vault.WrapKey(vaultKey, derivedKey)
	if err != nil {
		return err
	}

	updated := *s.cfg
	if passwordPath {
		updated.PasswordWrap = wrapped
	} else {
		updated.RecoveryWrap = wrapped
	}
	updated.UpdatedAt = s.now().UTC()

	record, err := updated.Encode()
	if err != nil {
		return err
	}
	if err := s.store.Set(ctx, KeyConfig, record); err != nil {
		return &PersistenceError{Op: "write config", Err: err}
	}

	s.cfg = &updated
	return nil
}

// LockoutRemaining reports how long an active lockout window has left.
func (s *Session) LockoutRemaining(ctx context.Context) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lockout, err := s.loadLockout(ctx)
	if err != nil {
		return 0, err
	}
	remaining, _ := lockout.Remaining(s.now())
	return remaining, nil
}

func (s *Session) loadLockout(ctx context.Context) (LockoutState, error) {
	raw, ok, err := s.store.Get(ctx, KeyLockout)
	if err != nil {
		return LockoutState{}, &PersistenceError{Op: "load lockout", Err: err}
	}
	if !ok {
		return LockoutState{}, nil
	}
	return decodeLockout(raw), nil
}

// storeLockout persists the lockout record best-effort: the counter is
// advisory and a failed write must not mask the authentication outcome.
func (s *Session) storeLockout(ctx context.Context, state LockoutState) {
	encoded, err := state.encode()
	if err != nil {
		return
	}
	_ = s.store.Set(ctx, KeyLockout, encoded)
}
