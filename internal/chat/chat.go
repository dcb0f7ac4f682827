// Package chat keeps the per-session conversation log.
//
// A log is append-only. Each turn starts pending and is resolved exactly once
// by its own ID, so answers that arrive out of order land on the right turn.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ThinkingText is the bot text of a pending turn.
const ThinkingText = "Thinking..."

var (
	ErrTurnNotFound    = errors.New("turn not found")
	ErrTurnResolved    = errors.New("turn already resolved")
	ErrSessionNotFound = errors.New("session not found")
)

// Turn is one question and its answer.
type Turn struct {
	ID        string    `json:"id"`
	UserText  string    `json:"userText"`
	BotText   string    `json:"botText"`
	Pending   bool      `json:"pending"`
	Failed    bool      `json:"failed"`
	CreatedAt time.Time `json:"createdAt"`
}

// Log is an append-only list of turns.
type Log struct {
	mu       sync.Mutex
	turns    []Turn
	index    map[string]int
	lastSeen time.Time
	now      func() time.Time
}

// NewLog creates an empty log.
func NewLog() *Log {
	return newLog(time.Now)
}

func newLog(now func() time.Time) *Log {
	return &Log{index: make(map[string]int), now: now, lastSeen: now()}
}

// Begin appends a pending turn and returns its ID.
func (l *Log) Begin(userText string) string {
	var id string
	l.update(func() error {
		id = uuid.NewString()
		l.index[id] = len(l.turns)
		l.turns = append(l.turns, Turn{
			ID:        id,
			UserText:  userText,
			BotText:   ThinkingText,
			Pending:   true,
			CreatedAt: l.now(),
		})
		return nil
	})
	return id
}

// Resolve sets the bot text of a pending turn. failed marks an error answer.
func (l *Log) Resolve(id, botText string, failed bool) error {
	return l.update(func() error {
		i, ok := l.index[id]
		if !ok {
			return fmt.Errorf("%w: %s", ErrTurnNotFound, id)
		}
		if !l.turns[i].Pending {
			return fmt.Errorf("%w: %s", ErrTurnResolved, id)
		}
		l.turns[i].BotText = botText
		l.turns[i].Pending = false
		l.turns[i].Failed = failed
		return nil
	})
}

// Turns returns a copy of the log.
func (l *Log) Turns() []Turn {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Turn, len(l.turns))
	copy(out, l.turns)
	return out
}

// Turn returns one turn by ID.
func (l *Log) Turn(id string) (Turn, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	i, ok := l.index[id]
	if !ok {
		return Turn{}, false
	}
	return l.turns[i], true
}

// update is the single mutation path for the log.
func (l *Log) update(fn func() error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := fn(); err != nil {
		return err
	}
	l.lastSeen = l.now()
	return nil
}

func (l *Log) idleSince() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastSeen
}

// Sessions maps session IDs to logs. Everything is held in memory and dropped
// after the session has been idle for the TTL.
type Sessions struct {
	mu   sync.Mutex
	logs map[string]*Log
	ttl  time.Duration
	now  func() time.Time
}

// NewSessions creates an empty session set.
func NewSessions(ttl time.Duration) *Sessions {
	return &Sessions{logs: make(map[string]*Log), ttl: ttl, now: time.Now}
}

// Get returns the log for id. An empty or unknown id starts a new session
// under a freshly minted ID; callers never choose session IDs. The returned ID
// is the session the log belongs to.
func (s *Sessions) Get(id string) (string, *Log) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id != "" {
		if log, ok := s.logs[id]; ok {
			return id, log
		}
	}
	id = uuid.NewString()
	log := newLog(s.now)
	s.logs[id] = log
	return id, log
}

// Lookup returns an existing log.
func (s *Sessions) Lookup(id string) (*Log, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	log, ok := s.logs[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return log, nil
}

// Len returns the number of live sessions.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.logs)
}

// Sweep drops sessions idle longer than the TTL and returns how many went.
func (s *Sessions) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.now().Add(-s.ttl)
	removed := 0
	for id, log := range s.logs {
		if log.idleSince().Before(cutoff) {
			delete(s.logs, id)
			removed++
		}
	}
	return removed
}

// StartSweeper runs Sweep every interval until ctx is done.
func (s *Sessions) StartSweeper(ctx context.Context, interval time.Duration, logger *slog.Logger) {
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := s.Sweep(); n > 0 && logger != nil {
					logger.Debug("expired chat sessions", slog.Int("removed", n), slog.Int("remaining", s.Len()))
				}
			}
		}
	}()
}
