// Package identity provides email/password accounts and cookie sessions.
package identity

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/mail"
	"sync"
	"time"

	"github.com/ashureev/genie/internal/domain"
	"github.com/ashureev/genie/internal/store"
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 6

var (
	// ErrInvalidCredentials is returned for an unknown email or wrong password.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrEmailTaken is returned when registering an existing email.
	ErrEmailTaken = errors.New("email already registered")
	// ErrInvalidEmail is returned for a malformed email address.
	ErrInvalidEmail = errors.New("invalid email address")
	// ErrWeakPassword is returned for passwords shorter than MinPasswordLength.
	ErrWeakPassword = fmt.Errorf("password must be at least %d characters", MinPasswordLength)
)

// Options configures a Service.
type Options struct {
	AdminEmail     string
	SessionTTL     time.Duration
	HashIterations int
}

// Service registers users and manages their sessions.
type Service struct {
	repo       store.Repository
	adminEmail string
	ttl        time.Duration
	iterations int
	now        func() time.Time
	verify     func(encoded, password string) bool

	dummyOnce sync.Once
	dummyHash string
}

// NewService creates an identity service.
func NewService(repo store.Repository, opts Options) *Service {
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 7 * 24 * time.Hour
	}
	if opts.HashIterations <= 0 {
		opts.HashIterations = DefaultHashIterations
	}
	return &Service{
		repo:       repo,
		adminEmail: domain.NormalizeEmail(opts.AdminEmail),
		ttl:        opts.SessionTTL,
		iterations: opts.HashIterations,
		now:        time.Now,
		verify:     VerifyPassword,
	}
}

// Register creates a new account.
func (s *Service) Register(ctx context.Context, email, password string) (*domain.User, error) {
	email = domain.NormalizeEmail(email)
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return nil, ErrInvalidEmail
	}
	if len(password) < MinPasswordLength {
		return nil, ErrWeakPassword
	}

	hash, err := HashPassword(password, s.iterations)
	if err != nil {
		return nil, err
	}

	now := s.now()
	user := &domain.User{
		Email:        email,
		PasswordHash: hash,
		LastSeenAt:   now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// Login checks credentials and opens a new session.
func (s *Service) Login(ctx context.Context, email, password string) (*domain.User, *domain.Session, error) {
	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, nil, fmt.Errorf("lookup user: %w", err)
	}
	if user == nil {
		// Spend the same PBKDF2 work as a real check so timing does not
		// reveal whether the account exists.
		s.verify(s.unknownUserHash(), password)
		return nil, nil, ErrInvalidCredentials
	}
	if !s.verify(user.PasswordHash, password) {
		return nil, nil, ErrInvalidCredentials
	}

	session, err := s.StartSession(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	return user, session, nil
}

// StartSession opens a session for an already authenticated user.
func (s *Service) StartSession(ctx context.Context, user *domain.User) (*domain.Session, error) {
	token, err := generateToken()
	if err != nil {
		return nil, err
	}
	now := s.now()
	session := &domain.Session{
		Token:     token,
		UserID:    user.UserID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.repo.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	if err := s.repo.UpdateLastSeen(ctx, user.UserID, now); err != nil {
		return nil, fmt.Errorf("update last seen: %w", err)
	}
	return session, nil
}

// Logout ends a session. Unknown tokens are ignored.
func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.repo.DeleteSession(ctx, token)
}

// Authenticate resolves a session token to its user. It returns nil, nil for
// unknown or expired sessions.
func (s *Service) Authenticate(ctx context.Context, token string) (*domain.User, error) {
	if !isValidToken(token) {
		return nil, nil
	}
	session, err := s.repo.GetSession(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("lookup session: %w", err)
	}
	if session == nil {
		return nil, nil
	}
	if session.Expired(s.now()) {
		if err := s.repo.DeleteSession(ctx, token); err != nil {
			return nil, fmt.Errorf("delete expired session: %w", err)
		}
		return nil, nil
	}
	return s.repo.GetUser(ctx, session.UserID)
}

// IsAdmin reports whether user is the configured administrator.
func (s *Service) IsAdmin(user *domain.User) bool {
	return user.IsAdmin(s.adminEmail)
}

// SessionTTL returns the lifetime of new sessions.
func (s *Service) SessionTTL() time.Duration {
	return s.ttl
}

// unknownUserHash returns a throwaway hash with the service's work factor.
func (s *Service) unknownUserHash() string {
	s.dummyOnce.Do(func() {
		hash, err := HashPassword(generateDummySecret(), s.iterations)
		if err != nil {
			hash = fmt.Sprintf("%s$%d$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA", hashScheme, s.iterations)
		}
		s.dummyHash = hash
	})
	return s.dummyHash
}

func generateDummySecret() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func isValidToken(token string) bool {
	if len(token) != 64 {
		return false
	}
	_, err := hex.DecodeString(token)
	return err == nil
}
