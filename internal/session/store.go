// ABOUTME: In-memory per-user session store with lazy expiry and per-user locks
// ABOUTME: Backend session ids are obtained from a Creator so the store stays strategy-agnostic

package session

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultTimeout is the idle time after which a session is considered expired.
const DefaultTimeout = 5 * time.Minute

// Creator establishes a new session with the assistant backend and returns its
// opaque id. Strategies that defer id acquisition return an empty id.
type Creator interface {
	CreateSession(ctx context.Context) (string, error)
}

// CreatorFunc adapts a function to the Creator interface.
type CreatorFunc func(ctx context.Context) (string, error)

// CreateSession calls f.
func (f CreatorFunc) CreateSession(ctx context.Context) (string, error) {
	return f(ctx)
}

// Session is one user's conversation state. Values returned by the Store are
// copies; mutate state through Store methods.
type Session struct {
	// ID is the local identity of this session. A forced re-creation always
	// produces a new ID, even when the backend id is unchanged.
	ID string

	User      string
	BackendID string

	CreatedAt  time.Time
	LastActive time.Time

	History     []string
	LastContext map[string]any
}

func (s *Session) clone() *Session {
	c := *s
	c.History = slices.Clone(s.History)
	c.LastContext = maps.Clone(s.LastContext)
	return &c
}

// Options configures a Store.
type Options struct {
	// Timeout is the idle duration after which IsExpired reports true.
	Timeout time.Duration

	// MaxTurns caps History; zero means unbounded.
	MaxTurns int

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Store holds the active session of every user.
type Store struct {
	creator  Creator
	timeout  time.Duration
	maxTurns int
	now      func() time.Time
	logger   *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session

	locksMu sync.Mutex
	locks   map[string]*userLock
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

// New creates an empty Store.
func New(creator Creator, opts Options, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Store{
		creator:  creator,
		timeout:  opts.Timeout,
		maxTurns: opts.MaxTurns,
		now:      opts.Now,
		logger:   logger.With("component", "sessions"),
		sessions: make(map[string]*Session),
		locks:    make(map[string]*userLock),
	}
}

// Now returns the store's current time.
func (s *Store) Now() time.Time {
	return s.now()
}

// Timeout returns the configured idle timeout.
func (s *Store) Timeout() time.Duration {
	return s.timeout
}

// Get returns the user's session without side effects.
func (s *Store) Get(user string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[user]
	if !ok {
		return nil, false
	}
	return sess.clone(), true
}

// Create establishes a new backend session and stores it for the user,
// replacing any prior session. A Creator failure is returned unchanged in
// the chain so callers can detect configuration-class errors.
func (s *Store) Create(ctx context.Context, user string) (*Session, error) {
	backendID, err := s.creator.CreateSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating session for %s: %w", user, err)
	}

	now := s.now()
	sess := &Session{
		ID:         uuid.New().String(),
		User:       user,
		BackendID:  backendID,
		CreatedAt:  now,
		LastActive: now,
	}

	s.mu.Lock()
	_, replaced := s.sessions[user]
	s.sessions[user] = sess
	s.mu.Unlock()

	s.logger.Debug("session created",
		"user", user,
		"session_id", sess.ID,
		"backend_id", backendID,
		"replaced", replaced)

	return sess.clone(), nil
}

// GetOrCreate returns the user's existing session or creates one.
// Expiry is not considered; see IsExpired.
func (s *Store) GetOrCreate(ctx context.Context, user string) (*Session, error) {
	if sess, ok := s.Get(user); ok {
		return sess, nil
	}
	return s.Create(ctx, user)
}

// IsExpired reports whether the session has been idle for at least the timeout.
func (s *Store) IsExpired(sess *Session, now time.Time) bool {
	return now.Sub(sess.LastActive) >= s.timeout
}

// Refresh marks the user's session as active now.
func (s *Store) Refresh(user string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[user]; ok {
		sess.LastActive = s.now()
	}
}

// AppendTurn appends an utterance to the user's history and replaces the
// last context. A nil context leaves the previous one in place.
func (s *Store) AppendTurn(user, utterance string, assistantContext map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[user]
	if !ok {
		return
	}
	sess.History = append(sess.History, utterance)
	if s.maxTurns > 0 && len(sess.History) > s.maxTurns {
		sess.History = slices.Clone(sess.History[len(sess.History)-s.maxTurns:])
	}
	if assistantContext != nil {
		sess.LastContext = assistantContext
	}
}

// ReplaceBackendID records a rotated backend session id and refreshes the
// session. A user without a session gets a fresh one carrying the id.
func (s *Store) ReplaceBackendID(user, backendID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	sess, ok := s.sessions[user]
	if !ok {
		sess = &Session{ID: uuid.New().String(), User: user, CreatedAt: now}
		s.sessions[user] = sess
	}
	if sess.BackendID != backendID {
		s.logger.Debug("backend session rotated", "user", user, "backend_id", backendID)
	}
	sess.BackendID = backendID
	sess.LastActive = now
}

// Delete drops the user's session so the next message starts a new one.
func (s *Store) Delete(user string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.sessions[user]
	delete(s.sessions, user)
	return ok
}

// List returns copies of all sessions ordered by user.
func (s *Store) List() []*Session {
	s.mu.RLock()
	out := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess.clone())
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b *Session) int {
		return strings.Compare(a.User, b.User)
	})
	return out
}

// Len returns the number of stored sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Lock serializes work for one user and returns the unlock function.
// Locks for different users never contend.
func (s *Store) Lock(user string) func() {
	s.locksMu.Lock()
	l, ok := s.locks[user]
	if !ok {
		l = &userLock{}
		s.locks[user] = l
	}
	l.refs++
	s.locksMu.Unlock()

	l.mu.Lock()

	return func() {
		l.mu.Unlock()

		s.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, user)
		}
		s.locksMu.Unlock()
	}
}
