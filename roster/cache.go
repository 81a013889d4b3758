package roster

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultTTL           = 10 * time.Minute
	DefaultRetryInterval = time.Minute

	// Shorter entries are spreadsheet noise such as stray markers
	minNicknameLength = 2
)

// ErrEmptyRoster is reported when the source returns no usable nicknames
var ErrEmptyRoster = errors.New("roster source returned no nicknames")

// Source fetches the raw roster
type Source interface {
	FetchNicknames(ctx context.Context) ([]string, error)
}

// Status is a snapshot of the cache state
type Status struct {
	Populated   bool      `json:"populated"`
	Entries     int       `json:"entries"`
	LastRefresh time.Time `json:"last_refresh"`
	LastAttempt time.Time `json:"last_attempt"`
	LastError   string    `json:"last_error,omitempty"`
}

// RefreshResult describes one refresh attempt
type RefreshResult struct {
	Entries  int
	Duration time.Duration
	Err      error
}

// Cache answers nickname lookups from a time-boxed copy of the roster.
// A cache that has never loaded rejects every nickname.
type Cache struct {
	mu            sync.Mutex
	source        Source
	clock         clockwork.Clock
	ttl           time.Duration
	retryInterval time.Duration
	observer      func(RefreshResult)

	entries     map[string]struct{}
	lastRefresh time.Time
	lastAttempt time.Time
	lastErr     error
}

// Option configures a Cache
type Option func(*Cache)

// WithClock replaces the wall clock
func WithClock(clock clockwork.Clock) Option {
	return func(c *Cache) {
		c.clock = clock
	}
}

// WithTTL sets how long a loaded roster is trusted
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithRetryInterval sets the minimum gap between attempts after a failed refresh
func WithRetryInterval(interval time.Duration) Option {
	return func(c *Cache) {
		if interval > 0 {
			c.retryInterval = interval
		}
	}
}

// WithRefreshObserver registers a callback invoked after every refresh attempt
func WithRefreshObserver(observer func(RefreshResult)) Option {
	return func(c *Cache) {
		c.observer = observer
	}
}

// NewCache creates a cache over source
func NewCache(source Source, opts ...Option) *Cache {
	c := &Cache{
		source:        source,
		clock:         clockwork.NewRealClock(),
		ttl:           DefaultTTL,
		retryInterval: DefaultRetryInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func normalize(nickname string) string {
	return strings.ToLower(strings.TrimSpace(nickname))
}

// IsValidNickname reports whether the nickname is on the roster, ignoring case and surrounding space.
// An expired roster is reloaded before answering, which blocks the caller.
func (c *Cache) IsValidNickname(ctx context.Context, nickname string) bool {
	key := normalize(nickname)
	if key == "" {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.expired() && c.retryDue() {
		_ = c.refreshLocked(ctx)
	}

	if c.entries == nil {
		log.WithField("nickname", nickname).Warn("Roster has never loaded, rejecting nickname")
		return false
	}

	_, ok := c.entries[key]
	return ok
}

// Refresh reloads the roster now
func (c *Cache) Refresh(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refreshLocked(ctx)
}

// Status returns a snapshot of the cache state
func (c *Cache) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	status := Status{
		Populated:   c.entries != nil,
		Entries:     len(c.entries),
		LastRefresh: c.lastRefresh,
		LastAttempt: c.lastAttempt,
	}
	if c.lastErr != nil {
		status.LastError = c.lastErr.Error()
	}
	return status
}

func (c *Cache) expired() bool {
	return c.entries == nil || c.clock.Since(c.lastRefresh) > c.ttl
}

func (c *Cache) retryDue() bool {
	return c.lastAttempt.IsZero() || c.clock.Since(c.lastAttempt) >= c.retryInterval
}

// refreshLocked keeps the previous entries when the fetch fails or comes back empty. Caller holds c.mu.
func (c *Cache) refreshLocked(ctx context.Context) error {
	started := c.clock.Now()
	c.lastAttempt = started

	nicknames, err := c.source.FetchNicknames(ctx)
	if err == nil {
		entries := ingest(nicknames)
		if len(entries) == 0 {
			err = ErrEmptyRoster
		} else {
			c.entries = entries
			c.lastRefresh = c.clock.Now()
		}
	}
	c.lastErr = err

	result := RefreshResult{
		Entries:  len(c.entries),
		Duration: c.clock.Since(started),
		Err:      err,
	}
	if c.observer != nil {
		c.observer(result)
	}

	if err != nil {
		log.WithFields(log.Fields{
			"error":        err,
			"stale":        c.entries != nil,
			"cachedValues": len(c.entries),
		}).Warn("Roster refresh failed")
		return fmt.Errorf("failed to refresh roster: %w", err)
	}

	log.WithField("entries", len(c.entries)).Info("Roster cache refreshed")
	return nil
}

func ingest(nicknames []string) map[string]struct{} {
	entries := make(map[string]struct{}, len(nicknames))
	for _, nickname := range nicknames {
		key := normalize(nickname)
		if len([]rune(key)) < minNicknameLength {
			continue
		}
		entries[key] = struct{}{}
	}
	return entries
}
