package onboarding

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kdimtricp/anilights/internal/logging"
	"github.com/kdimtricp/anilights/internal/metrics"
	"github.com/kdimtricp/anilights/internal/sampling"
	"github.com/kdimtricp/anilights/internal/taste"
)

type Config struct {
	DisplaySize int
	SessionTTL  time.Duration
}

// Manager keeps the live sessions of the process. Every session is built on
// the same shared Classification. Actions on one session run one at a time;
// different sessions do not block each other.
type Manager struct {
	classification *taste.Classification
	sampler        *sampling.Sampler
	displaySize    int
	ttl            time.Duration
	now            func() time.Time

	sessions   map[string]*entry
	sessionsMu sync.RWMutex
}

type entry struct {
	mu         sync.Mutex
	session    *Session
	submitting bool
	discarded  bool
	lastSeen   time.Time
}

func NewManager(classification *taste.Classification, sampler *sampling.Sampler, config Config) *Manager {
	if config.DisplaySize == 0 {
		config.DisplaySize = DefaultDisplaySize
	}
	if config.SessionTTL == 0 {
		config.SessionTTL = time.Hour
	}

	return &Manager{
		classification: classification,
		sampler:        sampler,
		displaySize:    config.DisplaySize,
		ttl:            config.SessionTTL,
		now:            time.Now,
		sessions:       make(map[string]*entry),
	}
}

// Create starts a new session at step 0 and returns its id.
func (m *Manager) Create() string {
	id := uuid.New().String()
	e := &entry{
		session:  NewSession(m.classification, m.sampler, m.displaySize),
		lastSeen: m.now(),
	}

	m.sessionsMu.Lock()
	m.sessions[id] = e
	active := len(m.sessions)
	m.sessionsMu.Unlock()

	metrics.SessionsCreated.Inc()
	metrics.SessionsActive.Set(float64(active))
	logging.Info().Str("session_id", id).Msg("Session created")
	return id
}

func (m *Manager) lookup(id string) (*entry, error) {
	m.sessionsMu.RLock()
	e, ok := m.sessions[id]
	m.sessionsMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return e, nil
}

// lock returns the entry for id with its mutex held.
func (m *Manager) lock(id string) (*entry, error) {
	e, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	if e.discarded {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	e.lastSeen = m.now()
	return e, nil
}

// Do runs fn against the session with exclusive access. Sessions awaiting a
// recommendation reply reject every action with ErrSubmissionPending.
func (m *Manager) Do(id string, fn func(*Session) error) error {
	e, err := m.lock(id)
	if err != nil {
		return err
	}
	defer e.mu.Unlock()

	if e.submitting {
		return ErrSubmissionPending
	}
	return fn(e.session)
}

// View runs fn with exclusive access but is also allowed while a submission is
// pending. fn may read options, which samples an unvisited round, but must not
// pick or navigate. pending reports the frozen state.
func (m *Manager) View(id string, fn func(s *Session, pending bool) error) error {
	e, err := m.lock(id)
	if err != nil {
		return err
	}
	defer e.mu.Unlock()
	return fn(e.session, e.submitting)
}

// BeginSubmit freezes a complete session and returns its picks. The caller
// must follow up with FinishSubmit.
func (m *Manager) BeginSubmit(id string) ([]int, error) {
	e, err := m.lock(id)
	if err != nil {
		return nil, err
	}
	defer e.mu.Unlock()

	if e.submitting {
		return nil, ErrSubmissionPending
	}
	if !e.session.Complete() {
		return nil, fmt.Errorf("%w: %d of %d picks made", ErrInvalidTransition, e.session.Step(), e.session.Total())
	}

	e.submitting = true
	return e.session.Picks(), nil
}

// Outcome is how a submission ended.
type Outcome int

const (
	// Delivered: recommendations came back; the session is discarded.
	Delivered Outcome = iota
	// Failed: the service reported an error; the session reopens at its last round.
	Failed
	// Abandoned: the caller gave up waiting; the session stays complete.
	Abandoned
)

func (o Outcome) String() string {
	switch o {
	case Delivered:
		return "delivered"
	case Failed:
		return "failed"
	case Abandoned:
		return "abandoned"
	default:
		return "unknown"
	}
}

// FinishSubmit unfreezes a session after BeginSubmit.
func (m *Manager) FinishSubmit(id string, outcome Outcome) error {
	e, err := m.lock(id)
	if err != nil {
		return err
	}
	defer e.mu.Unlock()

	if !e.submitting {
		return fmt.Errorf("%w: no submission in progress", ErrInvalidTransition)
	}
	e.submitting = false

	switch outcome {
	case Delivered:
		m.remove(id, e)
	case Failed:
		if err := e.session.Reopen(); err != nil {
			return err
		}
		logging.Info().Str("session_id", id).Int("step", e.session.Step()).Msg("Session reopened after failed submission")
	}
	return nil
}

// Discard drops a session. A session whose picks are out with the
// recommendation service cannot be dropped until FinishSubmit.
func (m *Manager) Discard(id string) error {
	e, err := m.lock(id)
	if err != nil {
		return err
	}
	defer e.mu.Unlock()

	if e.submitting {
		return ErrSubmissionPending
	}
	m.remove(id, e)
	return nil
}

// remove must be called with e.mu held.
func (m *Manager) remove(id string, e *entry) {
	e.discarded = true

	m.sessionsMu.Lock()
	delete(m.sessions, id)
	active := len(m.sessions)
	m.sessionsMu.Unlock()

	metrics.SessionsActive.Set(float64(active))
	logging.Debug().Str("session_id", id).Msg("Session discarded")
}

// Sweep evicts sessions idle for longer than the TTL and returns how many went.
// Sessions with a submission in flight are kept.
func (m *Manager) Sweep(now time.Time) int {
	m.sessionsMu.RLock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.sessionsMu.RUnlock()

	evicted := 0
	for _, id := range ids {
		e, err := m.lookup(id)
		if err != nil {
			continue
		}
		e.mu.Lock()
		if !e.discarded && !e.submitting && now.Sub(e.lastSeen) > m.ttl {
			m.remove(id, e)
			evicted++
		}
		e.mu.Unlock()
	}

	if evicted > 0 {
		metrics.SessionsExpired.Add(float64(evicted))
		logging.Info().Int("evicted", evicted).Msg("Expired idle sessions")
	}
	return evicted
}

// RunSweeper calls Sweep every interval until ctx is done.
func (m *Manager) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case t := <-ticker.C:
			m.Sweep(t)
		}
	}
}

func (m *Manager) Len() int {
	m.sessionsMu.RLock()
	defer m.sessionsMu.RUnlock()
	return len(m.sessions)
}

func (m *Manager) Classification() *taste.Classification {
	return m.classification
}
