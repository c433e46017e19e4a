package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
)

const (
	defaultAccessTTL   = 15 * time.Minute
	defaultMaxAttempts = 5
	defaultLockWindow  = 15 * time.Minute
)

// UserStore is the credential store. GetByUsername returns ErrUserNotFound
// when no user matches.
type UserStore interface {
	GetByUsername(ctx context.Context, username string) (User, error)
}

// AttemptStore tracks consecutive failed logins per username.
type AttemptStore interface {
	GetLoginAttempt(ctx context.Context, username string) (LoginAttempt, error)
	RegisterFailedAttempt(ctx context.Context, username string, maxAttempts int, lockDuration time.Duration, now time.Time) (*time.Time, error)
	ResetLoginAttempt(ctx context.Context, username string) error
}

type UserWriter interface {
	UpsertUser(ctx context.Context, user User, plainPassword string) error
}

type Service struct {
	users        UserStore
	attempts     AttemptStore
	signer       *Signer
	recorder     Recorder
	now          func() time.Time
	accessTTL    time.Duration
	maxAttempts  int
	lockDuration time.Duration
}

// NewService builds the authenticator. attempts may be nil to disable the
// username lockout.
func NewService(users UserStore, attempts AttemptStore, signer *Signer) *Service {
	return &Service{
		users:        users,
		attempts:     attempts,
		signer:       signer,
		recorder:     noopRecorder{},
		now:          time.Now,
		accessTTL:    defaultAccessTTL,
		maxAttempts:  defaultMaxAttempts,
		lockDuration: defaultLockWindow,
	}
}

func (s *Service) WithSecurityConfig(maxAttempts int, lockDuration time.Duration, accessTTL time.Duration) {
	if maxAttempts > 0 {
		s.maxAttempts = maxAttempts
	}
	if lockDuration > 0 {
		s.lockDuration = lockDuration
	}
	if accessTTL > 0 {
		s.accessTTL = accessTTL
	}
}

func (s *Service) WithRecorder(recorder Recorder) {
	if recorder != nil {
		s.recorder = recorder
	}
}

// Authenticate checks credential against the credential store and issues an
// access token. Unknown usernames and wrong passwords both return
// ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, credential Credential) (Token, error) {
	token, err := s.authenticate(ctx, credential)
	s.recorder.AuthAttempt(attemptResult(err))
	return token, err
}

func (s *Service) authenticate(ctx context.Context, credential Credential) (Token, error) {
	// Passwords are compared byte for byte; only the username is normalized.
	username := strings.TrimSpace(strings.ToLower(credential.Username))
	password := credential.Password

	if username == "" || strings.TrimSpace(password) == "" {
		return Token{}, ErrInvalidCredentials
	}

	now := s.now().UTC()
	if s.attempts != nil {
		attempt, err := s.attempts.GetLoginAttempt(ctx, username)
		if err != nil {
			return Token{}, fmt.Errorf("%w: %w", ErrUpstreamLookup, err)
		}
		if attempt.LockedUntil != nil && now.Before(*attempt.LockedUntil) {
			return Token{}, ErrLoginLocked{Until: *attempt.LockedUntil}
		}
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if !errors.Is(err, ErrUserNotFound) {
			return Token{}, fmt.Errorf("%w: %w", ErrUpstreamLookup, err)
		}
		// Spend the same bcrypt work as a real comparison.
		_ = bcrypt.CompareHashAndPassword(dummyPasswordHash(), []byte(password))
		return Token{}, s.registerFailure(ctx, username, now)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return Token{}, s.registerFailure(ctx, username, now)
	}

	if s.attempts != nil {
		if err := s.attempts.ResetLoginAttempt(ctx, username); err != nil {
			return Token{}, fmt.Errorf("%w: %w", ErrUpstreamLookup, err)
		}
	}

	return s.signer.Issue(ClaimsFromUser(user), s.accessTTL)
}

func (s *Service) registerFailure(ctx context.Context, username string, now time.Time) error {
	if s.attempts == nil {
		return ErrInvalidCredentials
	}

	lockedUntil, err := s.attempts.RegisterFailedAttempt(ctx, username, s.maxAttempts, s.lockDuration, now)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUpstreamLookup, err)
	}
	if lockedUntil != nil {
		return ErrLoginLocked{Until: *lockedUntil}
	}
	return ErrInvalidCredentials
}

// BootstrapAdmin upserts a global-access user from startup configuration.
// Both values empty is a no-op.
func BootstrapAdmin(ctx context.Context, writer UserWriter, username, password string, cityID int64) error {
	username = strings.TrimSpace(strings.ToLower(username))
	blankPassword := strings.TrimSpace(password) == ""

	if username == "" && blankPassword {
		return nil
	}
	if username == "" || blankPassword {
		return fmt.Errorf("ADMIN_USERNAME and ADMIN_PASSWORD are required together")
	}

	return writer.UpsertUser(ctx, User{Username: username, FirstName: username, CityID: cityID}, password)
}

func attemptResult(err error) string {
	var lockedErr ErrLoginLocked
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.As(err, &lockedErr):
		return "locked"
	case errors.Is(err, ErrUpstreamLookup):
		return "upstream_failure"
	default:
		return "error"
	}
}

var (
	dummyHashOnce sync.Once
	dummyHash     []byte
)

func dummyPasswordHash() []byte {
	dummyHashOnce.Do(func() {
		hash, err := bcrypt.GenerateFromPassword([]byte("cityinfo-dummy-password"), bcrypt.DefaultCost)
		if err != nil {
			panic(fmt.Sprintf("generate dummy bcrypt hash: %v", err))
		}
		dummyHash = hash
	})
	return dummyHash
}
