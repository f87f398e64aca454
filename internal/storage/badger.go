// Package storage persists user credentials and usage counters in Badger.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/seenimoa/investa/internal/logging"
	"github.com/seenimoa/investa/pkg/models"
)

// Store errors.
var (
	ErrUserExists   = errors.New("storage: user already exists")
	ErrUserNotFound = errors.New("storage: user not found")
)

// Store is the user table. The database is opened for each operation and
// closed afterwards; operations are serialised within the process.
type Store struct {
	path   string
	mu     sync.Mutex
	logger arbor.ILogger
}

// Open prepares a store rooted at path, creating the directory if needed.
func Open(path string, logger arbor.ILogger) (*Store, error) {
	if path == "" {
		return nil, errors.New("storage: path is required")
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create directory: %w", err)
	}
	return &Store{path: path, logger: logging.OrSilent(logger)}, nil
}

// Path returns the database directory.
func (s *Store) Path() string { return s.path }

// with opens the database, runs fn and closes it again.
func (s *Store) with(ctx context.Context, fn func(*badgerhold.Store) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	options := badgerhold.DefaultOptions
	options.Dir = s.path
	options.ValueDir = s.path
	options.Logger = nil // badger's own logger is too chatty

	store, err := badgerhold.Open(options)
	if err != nil {
		return fmt.Errorf("storage: open %s: %w", s.path, err)
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			s.logger.Warn().Err(cerr).Str("path", s.path).Msg("Failed to close store")
		}
	}()
	return fn(store)
}

// CreateUser inserts u. It fails with ErrUserExists if the username is taken.
func (s *Store) CreateUser(ctx context.Context, u models.User) error {
	return s.with(ctx, func(store *badgerhold.Store) error {
		err := store.Insert(u.Username, &u)
		if errors.Is(err, badgerhold.ErrKeyExists) {
			return ErrUserExists
		}
		if err != nil {
			return fmt.Errorf("storage: insert user: %w", err)
		}
		s.logger.Debug().Str("username", u.Username).Msg("User created")
		return nil
	})
}

// GetUser loads the user called username.
func (s *Store) GetUser(ctx context.Context, username string) (models.User, error) {
	var u models.User
	err := s.with(ctx, func(store *badgerhold.Store) error {
		err := store.Get(username, &u)
		if errors.Is(err, badgerhold.ErrNotFound) {
			return ErrUserNotFound
		}
		if err != nil {
			return fmt.Errorf("storage: get user: %w", err)
		}
		return nil
	})
	return u, err
}

// UpdateUser applies fn to the stored user inside one transaction. If fn
// returns an error nothing is written and the error is returned unchanged.
func (s *Store) UpdateUser(ctx context.Context, username string, fn func(*models.User) error) (models.User, error) {
	var u models.User
	err := s.with(ctx, func(store *badgerhold.Store) error {
		return store.Badger().Update(func(tx *badger.Txn) error {
			err := store.TxGet(tx, username, &u)
			if errors.Is(err, badgerhold.ErrNotFound) {
				return ErrUserNotFound
			}
			if err != nil {
				return fmt.Errorf("storage: get user: %w", err)
			}
			if err := fn(&u); err != nil {
				return err
			}
			u.Username = username
			if err := store.TxUpdate(tx, username, &u); err != nil {
				return fmt.Errorf("storage: update user: %w", err)
			}
			return nil
		})
	})
	if err != nil {
		return models.User{}, err
	}
	return u, nil
}

// CountUsers returns the number of registered users.
func (s *Store) CountUsers(ctx context.Context) (int, error) {
	var n uint64
	err := s.with(ctx, func(store *badgerhold.Store) error {
		var err error
		n, err = store.Count(&models.User{}, nil)
		return err
	})
	return int(n), err
}
