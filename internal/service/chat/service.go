package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zhouzirui/taleforge/internal/model/chat"
)

var (
	ErrSessionRequired = errors.New("session id is required")
	ErrSessionNotFound = errors.New("session not found")
)

const (
	// DefaultWindow is the number of recent turns sent upstream.
	DefaultWindow = 10
	// DefaultRetain bounds the turns kept per session, excluding the directive.
	DefaultRetain = 40
)

// Option configures a Service.
type Option func(*Service)

// WithDirective seeds every new session with a system turn.
func WithDirective(text string) Option {
	return func(s *Service) { s.directive = strings.TrimSpace(text) }
}

// WithRetain bounds stored history to the directive plus n turns.
func WithRetain(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.retain = n
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service owns per-session conversation history. Turns for one session are
// serialized through Acquire; distinct sessions never contend beyond the map
// lookup.
type Service struct {
	mu        sync.RWMutex
	sessions  map[string]*entry
	directive string
	retain    int
	now       func() time.Time
}

type entry struct {
	// turn admits one in-flight turn at a time.
	turn chan struct{}

	mu      sync.Mutex
	session chat.Session
}

// NewService bootstraps the in-memory session store.
func NewService(opts ...Option) *Service {
	s := &Service{
		sessions: make(map[string]*entry),
		retain:   DefaultRetain,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewSessionID mints an identifier for a new player.
func NewSessionID() string {
	return uuid.NewString()
}

// CreateSession provisions a session under a fresh identifier.
func (s *Service) CreateSession(ctx context.Context) (chat.Session, error) {
	return s.GetOrCreate(ctx, NewSessionID())
}

// GetOrCreate returns a snapshot of the session, creating it on first use.
func (s *Service) GetOrCreate(_ context.Context, sessionID string) (chat.Session, error) {
	e, err := s.entry(sessionID, true)
	if err != nil {
		return chat.Session{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return snapshot(e.session), nil
}

// GetSession retrieves a session by identifier.
func (s *Service) GetSession(_ context.Context, sessionID string) (chat.Session, error) {
	e, err := s.entry(sessionID, false)
	if err != nil {
		return chat.Session{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return snapshot(e.session), nil
}

// Append records a turn and trims the stored history to the retain bound.
func (s *Service) Append(_ context.Context, sessionID string, role chat.Role, content string) error {
	e, err := s.entry(sessionID, true)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.session.Turns = append(e.session.Turns, chat.Turn{Role: role, Content: content})
	e.session.Turns = trim(e.session.Turns, s.retain)
	e.session.LastActiveAt = s.now()
	return nil
}

// HistoryWindow returns the directive, if any, followed by the latest k turns.
func (s *Service) HistoryWindow(_ context.Context, sessionID string, k int) ([]chat.Turn, error) {
	e, err := s.entry(sessionID, false)
	if err != nil {
		return nil, err
	}
	if k <= 0 {
		k = DefaultWindow
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return trim(e.session.Turns, k), nil
}

// LoadTranscript returns every stored turn for the session.
func (s *Service) LoadTranscript(_ context.Context, sessionID string) ([]chat.Turn, error) {
	e, err := s.entry(sessionID, false)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]chat.Turn(nil), e.session.Turns...), nil
}

// Acquire blocks until the caller holds the session's turn slot or ctx ends.
// The returned release must be called exactly once.
func (s *Service) Acquire(ctx context.Context, sessionID string) (func(), error) {
	for {
		e, err := s.entry(sessionID, true)
		if err != nil {
			return nil, err
		}
		select {
		case e.turn <- struct{}{}:
		case <-ctx.Done():
			return nil, ctx.Err()
		}

		// The entry may have been evicted while we waited.
		s.mu.RLock()
		current := s.sessions[strings.TrimSpace(sessionID)]
		s.mu.RUnlock()
		if current == e {
			return func() { <-e.turn }, nil
		}
		<-e.turn
	}
}

// EvictIdle drops sessions idle for longer than ttl and reports how many were
// removed. Sessions with a turn in flight are kept.
func (s *Service) EvictIdle(ttl time.Duration) int {
	if ttl <= 0 {
		return 0
	}
	cutoff := s.now().Add(-ttl)

	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for id, e := range s.sessions {
		select {
		case e.turn <- struct{}{}:
		default:
			continue
		}
		e.mu.Lock()
		idle := e.session.LastActiveAt.Before(cutoff)
		e.mu.Unlock()
		<-e.turn

		if idle {
			delete(s.sessions, id)
			evicted++
		}
	}
	return evicted
}

// Len reports the number of live sessions.
func (s *Service) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *Service) entry(sessionID string, create bool) (*entry, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, ErrSessionRequired
	}

	s.mu.RLock()
	e, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if ok {
		return e, nil
	}
	if !create {
		return nil, ErrSessionNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.sessions[sessionID]; ok {
		return e, nil
	}

	now := s.now()
	e = &entry{
		turn: make(chan struct{}, 1),
		session: chat.Session{
			ID:           sessionID,
			Turns:        make([]chat.Turn, 0, 16),
			CreatedAt:    now,
			LastActiveAt: now,
		},
	}
	if s.directive != "" {
		e.session.Turns = append(e.session.Turns, chat.Turn{Role: chat.RoleSystem, Content: s.directive})
	}
	s.sessions[sessionID] = e
	return e, nil
}

// trim keeps a leading system directive plus the last n other turns. The
// result never aliases turns.
func trim(turns []chat.Turn, n int) []chat.Turn {
	var head []chat.Turn
	body := turns
	if len(turns) > 0 && turns[0].Role == chat.RoleSystem {
		head, body = turns[:1], turns[1:]
	}
	if len(body) > n {
		body = body[len(body)-n:]
	}
	out := make([]chat.Turn, 0, len(head)+len(body))
	out = append(out, head...)
	return append(out, body...)
}

func snapshot(s chat.Session) chat.Session {
	s.Turns = append([]chat.Turn(nil), s.Turns...)
	return s
}
