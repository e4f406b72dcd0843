package citysense

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	moderr "github.com/lizzyg/citysense/errors"
	"github.com/lizzyg/citysense/internal/config"
	"github.com/lizzyg/citysense/internal/metrics"
)

// SessionState is the conversation loop state.
type SessionState int

const (
	StateIdle SessionState = iota
	StateActive
)

func (s SessionState) String() string {
	if s == StateActive {
		return "active"
	}
	return "idle"
}

// RunnerFactory builds the agent binding when a session activates.
type RunnerFactory func() (Runner, error)

// ConfigRunnerFactory returns a factory that builds an Agent from cfg.
func ConfigRunnerFactory(cfg *config.Config, opts ...Option) RunnerFactory {
	return func() (Runner, error) {
		return NewAgent(cfg, opts...)
	}
}

// Session is one conversation: an agent binding plus its transcript.
// Sends on a session are serialized. Readers never wait for an in-flight
// send; they see the transcript as of the last completed turn.
type Session struct {
	ID        string
	CreatedAt time.Time

	factory RunnerFactory
	turn    sync.Mutex // serializes Start, Send and Reset

	mu         sync.RWMutex // guards the fields below
	runner     Runner
	transcript Transcript
	updatedAt  time.Time
}

func NewSession(factory RunnerFactory) *Session {
	now := time.Now().UTC()
	return &Session{ID: uuid.NewString(), CreatedAt: now, updatedAt: now, factory: factory}
}

func (s *Session) State() SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.runner == nil {
		return StateIdle
	}
	return StateActive
}

// Start moves the session from Idle to Active. It is a no-op when already
// active and surfaces configuration errors from the factory.
func (s *Session) Start() error {
	s.turn.Lock()
	defer s.turn.Unlock()
	_, err := s.start()
	return err
}

// start must be called with s.turn held.
func (s *Session) start() (Runner, error) {
	s.mu.RLock()
	r := s.runner
	s.mu.RUnlock()
	if r != nil {
		return r, nil
	}
	r, err := s.factory()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.runner = r
	s.mu.Unlock()
	return r, nil
}

// Send appends a user turn, runs the agent over the full transcript and
// returns the final reply. The transcript is replaced by the run's history
// only when the run succeeds.
func (s *Session) Send(ctx context.Context, text string) (string, error) {
	msg := UserMessage(text)
	if msg.Content == "" {
		return "", moderr.ErrEmptyMessage
	}

	s.turn.Lock()
	defer s.turn.Unlock()
	runner, err := s.start()
	if err != nil {
		return "", err
	}
	input := append(s.Transcript(), msg)
	res, err := runner.Run(ctx, input)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.transcript = res.History
	s.updatedAt = time.Now().UTC()
	s.mu.Unlock()
	return res.FinalOutput, nil
}

// Transcript returns a copy of the conversation so far.
func (s *Session) Transcript() Transcript {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.transcript.Clone()
}

func (s *Session) UpdatedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updatedAt
}

// Reset ends the session: the transcript is dropped and the state returns
// to Idle. It waits for an in-flight send to finish.
func (s *Session) Reset() {
	s.turn.Lock()
	defer s.turn.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runner = nil
	s.transcript = nil
	s.updatedAt = time.Now().UTC()
}

// SessionStore holds concurrent sessions by ID. Sessions share nothing but
// the factory.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	factory  RunnerFactory
	metrics  *metrics.Metrics
}

func NewSessionStore(factory RunnerFactory, m *metrics.Metrics) *SessionStore {
	return &SessionStore{sessions: make(map[string]*Session), factory: factory, metrics: m}
}

// Create starts a new session. The agent is built eagerly so configuration
// errors are reported before the first message.
func (st *SessionStore) Create() (*Session, error) {
	s := NewSession(st.factory)
	if err := s.Start(); err != nil {
		return nil, err
	}
	st.mu.Lock()
	st.sessions[s.ID] = s
	st.mu.Unlock()
	st.metrics.SessionOpened()
	return s, nil
}

func (st *SessionStore) Get(id string) (*Session, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	s, ok := st.sessions[id]
	if !ok {
		return nil, moderr.ErrSessionNotFound
	}
	return s, nil
}

func (st *SessionStore) Delete(id string) error {
	st.mu.Lock()
	s, ok := st.sessions[id]
	delete(st.sessions, id)
	st.mu.Unlock()
	if !ok {
		return moderr.ErrSessionNotFound
	}
	s.Reset()
	st.metrics.SessionClosed()
	return nil
}

func (st *SessionStore) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}
