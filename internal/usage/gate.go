// Package usage enforces the per-user daily report quota.
package usage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/seenimoa/investa/internal/auth"
	"github.com/seenimoa/investa/internal/logging"
	"github.com/seenimoa/investa/pkg/models"
)

// DefaultDailyLimit is the number of reports a user may generate per day.
const DefaultDailyLimit = 5

// ErrQuotaExceeded is returned once the day's limit is reached.
var ErrQuotaExceeded = errors.New("daily report limit reached, please try again tomorrow")

// Store is the subset of the user store the gate needs.
type Store interface {
	GetUser(ctx context.Context, username string) (models.User, error)
	UpdateUser(ctx context.Context, username string, fn func(*models.User) error) (models.User, error)
}

// Status is a user's usage for the current day.
type Status struct {
	Used  int    `json:"used"`
	Limit int    `json:"limit"`
	Date  string `json:"date"`
}

// String renders the status as "used/limit".
func (s Status) String() string { return fmt.Sprintf("%d/%d", s.Used, s.Limit) }

// Remaining returns how many reports are left today.
func (s Status) Remaining() int { return max(s.Limit-s.Used, 0) }

// Exhausted reports whether the limit is reached.
func (s Status) Exhausted() bool { return s.Used >= s.Limit }

// Gate checks and records report generation against the daily limit.
// The day boundary is the local calendar date.
type Gate struct {
	store  Store
	limit  int
	now    func() time.Time
	logger arbor.ILogger
}

// Option configures a Gate.
type Option func(*Gate)

// WithClock sets the clock that decides the current date.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) { g.now = now }
}

// WithLogger sets the logger.
func WithLogger(l arbor.ILogger) Option {
	return func(g *Gate) { g.logger = l }
}

// NewGate creates a gate allowing limit reports per day. A non-positive
// limit uses DefaultDailyLimit.
func NewGate(store Store, limit int, opts ...Option) *Gate {
	if limit <= 0 {
		limit = DefaultDailyLimit
	}
	g := &Gate{store: store, limit: limit, now: time.Now}
	for _, o := range opts {
		o(g)
	}
	g.logger = logging.OrSilent(g.logger)
	return g
}

// Limit returns the daily limit.
func (g *Gate) Limit() int { return g.limit }

func (g *Gate) today() string { return g.now().Format(models.DateLayout) }

// resetIfNewDay zeroes the counter when the stored date is not today.
func resetIfNewDay(u *models.User, today string) {
	if u.LastResetDate != today {
		u.UsageCount = 0
		u.LastResetDate = today
	}
}

// CheckAndReserve applies the day reset, persists it, and fails with
// ErrQuotaExceeded when the user has no reports left today.
func (g *Gate) CheckAndReserve(ctx context.Context, id auth.Identity) (Status, error) {
	if !id.Authenticated() {
		return Status{}, auth.ErrUnauthenticated
	}
	today := g.today()
	u, err := g.store.UpdateUser(ctx, id.Username, func(u *models.User) error {
		resetIfNewDay(u, today)
		return nil
	})
	if err != nil {
		return Status{}, fmt.Errorf("check usage: %w", err)
	}

	st := Status{Used: u.UsageCount, Limit: g.limit, Date: today}
	if st.Exhausted() {
		g.logger.Warn().Str("username", id.Username).Str("usage", st.String()).Msg("Daily limit reached")
		return st, ErrQuotaExceeded
	}
	return st, nil
}

// RecordUse counts one report. The limit is checked again inside the same
// transaction, so concurrent requests cannot push the count past it.
func (g *Gate) RecordUse(ctx context.Context, id auth.Identity) (Status, error) {
	if !id.Authenticated() {
		return Status{}, auth.ErrUnauthenticated
	}
	today := g.today()
	u, err := g.store.UpdateUser(ctx, id.Username, func(u *models.User) error {
		resetIfNewDay(u, today)
		if u.UsageCount >= g.limit {
			return ErrQuotaExceeded
		}
		u.UsageCount++
		return nil
	})
	if errors.Is(err, ErrQuotaExceeded) {
		return Status{Used: g.limit, Limit: g.limit, Date: today}, ErrQuotaExceeded
	}
	if err != nil {
		return Status{}, fmt.Errorf("record usage: %w", err)
	}

	st := Status{Used: u.UsageCount, Limit: g.limit, Date: today}
	g.logger.Info().Str("username", id.Username).Str("usage", st.String()).Msg("Report usage recorded")
	return st, nil
}

// Status reports the user's usage for today without writing. A stale date
// reads as zero.
func (g *Gate) Status(ctx context.Context, id auth.Identity) (Status, error) {
	if !id.Authenticated() {
		return Status{}, auth.ErrUnauthenticated
	}
	u, err := g.store.GetUser(ctx, id.Username)
	if err != nil {
		return Status{}, fmt.Errorf("usage status: %w", err)
	}
	today := g.today()
	resetIfNewDay(&u, today)
	return Status{Used: u.UsageCount, Limit: g.limit, Date: today}, nil
}
