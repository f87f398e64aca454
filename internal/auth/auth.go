// Package auth registers users and verifies their credentials.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/crypto/bcrypt"

	"github.com/seenimoa/investa/internal/logging"
	"github.com/seenimoa/investa/internal/storage"
	"github.com/seenimoa/investa/pkg/models"
)

// Authentication errors.
var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUserExists         = errors.New("username already exists")
	ErrUnauthenticated    = errors.New("please log in to access this feature")
	ErrInvalidUsername    = errors.New("username must not be empty")
	ErrInvalidPassword    = errors.New("password must be between 1 and 72 bytes")
)

// maxPasswordBytes is bcrypt's input limit.
const maxPasswordBytes = 72

// Identity is a user whose credentials were verified by Service.
// The zero value is unauthenticated.
type Identity struct {
	Username string
	verified bool
}

// Authenticated reports whether the identity came from a successful
// signup or login.
func (id Identity) Authenticated() bool { return id.verified && id.Username != "" }

// UserStore is the subset of the store Service needs.
type UserStore interface {
	CreateUser(ctx context.Context, u models.User) error
	GetUser(ctx context.Context, username string) (models.User, error)
}

// Service handles signup and login.
type Service struct {
	store  UserStore
	cost   int
	now    func() time.Time
	logger arbor.ILogger
}

// Option configures a Service.
type Option func(*Service)

// WithCost sets the bcrypt cost. Tests use bcrypt.MinCost.
func WithCost(cost int) Option {
	return func(s *Service) { s.cost = cost }
}

// WithClock sets the clock used for CreatedAt and the initial reset date.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(l arbor.ILogger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService creates an auth service over store.
func NewService(store UserStore, opts ...Option) *Service {
	s := &Service{store: store, cost: bcrypt.DefaultCost, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	s.logger = logging.OrSilent(s.logger)
	return s
}

// Signup creates a user with a zero usage count and returns its identity.
func (s *Service) Signup(ctx context.Context, username, password string) (Identity, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return Identity{}, ErrInvalidUsername
	}
	if err := checkPassword(password); err != nil {
		return Identity{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return Identity{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	err = s.store.CreateUser(ctx, models.User{
		Username:      username,
		PasswordHash:  string(hash),
		LastResetDate: now.Format(models.DateLayout),
		CreatedAt:     now,
	})
	if errors.Is(err, storage.ErrUserExists) {
		return Identity{}, ErrUserExists
	}
	if err != nil {
		return Identity{}, fmt.Errorf("create user: %w", err)
	}

	s.logger.Info().Str("username", username).Msg("User signed up")
	return Identity{Username: username, verified: true}, nil
}

// Login verifies username and password. Unknown users and wrong passwords
// both fail with ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, username, password string) (Identity, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return Identity{}, ErrInvalidCredentials
	}

	u, err := s.store.GetUser(ctx, username)
	if errors.Is(err, storage.ErrUserNotFound) {
		return Identity{}, ErrInvalidCredentials
	}
	if err != nil {
		return Identity{}, fmt.Errorf("load user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		s.logger.Warn().Str("username", username).Msg("Login failed")
		return Identity{}, ErrInvalidCredentials
	}
	return Identity{Username: u.Username, verified: true}, nil
}

func checkPassword(password string) error {
	if password == "" || len(password) > maxPasswordBytes {
		return ErrInvalidPassword
	}
	return nil
}
