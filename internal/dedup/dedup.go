package dedup

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
)

const DefaultWindow = 120 * time.Second

// Set is the time-windowed "recently announced" set. Keys are normalized
// identifiers, optionally scoped by originating channel. A single deadline is
// kept per key; re-remembering updates it in place instead of stacking
// timers, and a periodic sweep evicts expired entries.
type Set struct {
	mu        sync.Mutex
	window    time.Duration
	deadlines map[string]time.Time
	logger    *slog.Logger
	now       func() time.Time
}

func New(window time.Duration, logger *slog.Logger) *Set {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Set{
		window:    window,
		deadlines: make(map[string]time.Time),
		logger:    logger,
		now:       time.Now,
	}
}

// Normalize uppercases the key, folds the URL-encoded colon into a literal
// one, and appends the scope suffix when present. Exported so callers can
// reason about key identity in tests.
func Normalize(key, scope string) string {
	normalized := strings.ToUpper(strings.TrimSpace(key))
	normalized = strings.ReplaceAll(normalized, "%3A", ":")
	if scope = strings.TrimSpace(scope); scope != "" {
		normalized += "#" + strings.ToUpper(scope)
	}
	return normalized
}

// Suppressed reports whether the key was remembered within the window.
func (s *Set) Suppressed(key, scope string) bool {
	normalized := Normalize(key, scope)
	s.mu.Lock()
	defer s.mu.Unlock()
	deadline, ok := s.deadlines[normalized]
	if !ok {
		return false
	}
	if s.now().After(deadline) {
		delete(s.deadlines, normalized)
		return false
	}
	return true
}

// Remember inserts the key, restarting its expiry.
func (s *Set) Remember(key, scope string) {
	normalized := Normalize(key, scope)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deadlines[normalized] = s.now().Add(s.window)
}

// Sweep evicts expired entries and returns how many were removed.
func (s *Set) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	removed := 0
	for key, deadline := range s.deadlines {
		if now.After(deadline) {
			delete(s.deadlines, key)
			removed++
		}
	}
	return removed
}

// Run sweeps periodically until the context is cancelled.
func (s *Set) Run(ctx context.Context) error {
	interval := s.window / 4
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if removed := s.Sweep(); removed > 0 {
				s.logger.Debug("dedup sweep", "removed", removed)
			}
		}
	}
}
