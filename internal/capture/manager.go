package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrSessionNotFound is returned for unknown or forgotten session ids.
	ErrSessionNotFound = errors.New("capture session not found")
	// ErrUnknownSource is returned by Open for unregistered sources.
	ErrUnknownSource = errors.New("unknown capture source")
)

// OpenRequest describes a session to open.
type OpenRequest struct {
	Source  string      `json:"source"`
	Env     Environment `json:"-"`
	Devices []Device    `json:"devices,omitempty"`
	Torch   bool        `json:"torch,omitempty"`
}

// Backend is the device side of one session.
type Backend struct {
	Decoder Decoder
	Media   MediaSource
	// Env overrides the request environment, for devices local to the server.
	Env *Environment
	// Close is called once after the session closes.
	Close func()
	// Replay returns events a new subscriber missed, such as a device
	// command published before it connected.
	Replay func() []Event
}

// BackendFactory builds the backend for a new session. publish delivers
// events to the session's subscribers.
type BackendFactory func(id string, req OpenRequest, publish func(Event)) (Backend, error)

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	MaxSessions   int
	MaxWait       time.Duration
	OpenTimeout   time.Duration
	IdleTimeout   time.Duration
	SweepInterval time.Duration
	Logger        *slog.Logger
}

// Manager owns the live capture sessions of the application.
type Manager struct {
	cfg     ManagerConfig
	log     *slog.Logger
	limiter *SessionLimiter

	// base is the parent context of every Start; cancelled by CloseAll.
	base       context.Context
	cancelBase context.CancelFunc

	mu       sync.RWMutex
	sources  map[string]BackendFactory
	sessions map[string]*Entry
}

// Entry is a managed session with its backend and subscribers.
type Entry struct {
	session *Session
	backend Backend
	created time.Time

	listenerMu sync.Mutex
	listeners  []chan Event
	done       bool

	finalize sync.Once
	release  func()
}

// NewManager creates a Manager with no registered sources.
func NewManager(cfg ManagerConfig) *Manager {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 5 * time.Minute
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	base, cancel := context.WithCancel(context.Background())
	return &Manager{
		cfg:        cfg,
		log:        logger,
		limiter:    NewSessionLimiter(cfg.MaxSessions, cfg.MaxWait),
		base:       base,
		cancelBase: cancel,
		sources:    make(map[string]BackendFactory),
		sessions:   make(map[string]*Entry),
	}
}

// RegisterSource makes a backend available under name.
// Panics if the name is already registered.
func (m *Manager) RegisterSource(name string, factory BackendFactory) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sources[name]; exists {
		panic(fmt.Sprintf("capture source already registered: %s", name))
	}
	m.sources[name] = factory
}

// Sources returns the registered source names, sorted.
func (m *Manager) Sources() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.sources))
	for name := range m.sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open creates a session and starts it in the background.
func (m *Manager) Open(ctx context.Context, req OpenRequest) (*Entry, error) {
	m.mu.RLock()
	factory, ok := m.sources[req.Source]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSource, req.Source)
	}

	if err := m.limiter.Acquire(ctx); err != nil {
		return nil, err
	}

	id := uuid.New().String()
	entry := &Entry{
		created: time.Now(),
		release: m.limiter.Release,
	}

	backend, err := factory(id, req, entry.publish)
	if err != nil {
		m.limiter.Release()
		return nil, fmt.Errorf("create %s backend: %w", req.Source, err)
	}
	entry.backend = backend

	env := req.Env
	if backend.Env != nil {
		env = *backend.Env
	}

	entry.session = NewSession(Options{
		ID:          id,
		Decoder:     backend.Decoder,
		Media:       backend.Media,
		Env:         env,
		Feedback:    CueFeedback{Publish: entry.publish},
		OpenTimeout: m.cfg.OpenTimeout,
		Logger:      m.log,
		OnEvent:     entry.observe,
	})

	m.mu.Lock()
	m.sessions[id] = entry
	m.mu.Unlock()

	m.log.Info("capture session opened", "session_id", id, "source", req.Source)

	go func() {
		if err := entry.session.Start(m.base); err != nil {
			m.log.Debug("capture session did not reach scanning", "session_id", id, "error", err)
		}
	}()

	return entry, nil
}

// Get returns a managed session.
func (m *Manager) Get(id string) (*Entry, error) {
	m.mu.RLock()
	entry, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return entry, nil
}

// Close closes a session. The entry stays readable until swept.
func (m *Manager) Close(ctx context.Context, id string) error {
	entry, err := m.Get(id)
	if err != nil {
		return err
	}
	return entry.session.Close(ctx)
}

// Status returns the limiter state.
func (m *Manager) Status() LimiterStatus {
	return m.limiter.Status()
}

// CloseAll closes every session and waits for their slots to drain.
func (m *Manager) CloseAll(ctx context.Context) error {
	m.cancelBase()

	m.mu.RLock()
	entries := make([]*Entry, 0, len(m.sessions))
	for _, e := range m.sessions {
		entries = append(entries, e)
	}
	m.mu.RUnlock()

	for _, e := range entries {
		if err := e.session.Close(ctx); err != nil {
			m.log.Warn("failed to close capture session", "session_id", e.session.ID(), "error", err)
		}
	}
	return m.limiter.WaitForDrain(ctx)
}

// StartSweeper periodically closes idle sessions and forgets closed ones.
// It returns when ctx is cancelled.
func (m *Manager) StartSweeper(ctx context.Context) error {
	m.log.Info("capture sweeper started",
		"idle_timeout", m.cfg.IdleTimeout,
		"interval", m.cfg.SweepInterval,
	)

	ticker := time.NewTicker(m.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.log.Info("capture sweeper stopped")
			return nil
		case <-ticker.C:
			m.Sweep(ctx, time.Now())
		}
	}
}

// Sweep runs one sweep pass as of now and returns how many sessions were
// closed and forgotten.
func (m *Manager) Sweep(ctx context.Context, now time.Time) (closed, forgotten int) {
	m.mu.RLock()
	entries := make(map[string]*Entry, len(m.sessions))
	for id, e := range m.sessions {
		entries[id] = e
	}
	m.mu.RUnlock()

	for id, e := range entries {
		if now.Sub(e.session.LastActivity()) < m.cfg.IdleTimeout {
			continue
		}
		if e.session.Snapshot().Status != StatusClosed {
			if err := e.session.Close(ctx); err != nil {
				m.log.Warn("failed to close idle capture session", "session_id", id, "error", err)
				continue
			}
			closed++
			continue
		}
		m.mu.Lock()
		delete(m.sessions, id)
		m.mu.Unlock()
		forgotten++
	}

	if closed > 0 || forgotten > 0 {
		m.log.Info("capture sweep completed", "closed", closed, "forgotten", forgotten)
	}
	return closed, forgotten
}

// Session returns the underlying session.
func (e *Entry) Session() *Session {
	return e.session
}

// Created returns when the session was opened.
func (e *Entry) Created() time.Time {
	return e.created
}

// Backend returns the device side of the session.
func (e *Entry) Backend() Backend {
	return e.backend
}

// Subscribe returns a channel of session events, primed with the current
// snapshot and any backend replay. The channel is closed once the session
// is closed; call the returned func to unsubscribe earlier.
func (e *Entry) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 16)

	e.listenerMu.Lock()
	snap := e.session.Snapshot()
	ch <- Event{Type: EventState, Snapshot: &snap}
	if e.backend.Replay != nil && !e.done {
		for _, ev := range e.backend.Replay() {
			select {
			case ch <- ev:
			default:
			}
		}
	}
	if e.done {
		close(ch)
		e.listenerMu.Unlock()
		return ch, func() {}
	}
	e.listeners = append(e.listeners, ch)
	e.listenerMu.Unlock()

	return ch, func() { e.unsubscribe(ch) }
}

func (e *Entry) unsubscribe(ch chan Event) {
	e.listenerMu.Lock()
	defer e.listenerMu.Unlock()
	for i, l := range e.listeners {
		if l == ch {
			e.listeners = append(e.listeners[:i], e.listeners[i+1:]...)
			close(ch)
			return
		}
	}
}

// observe is the session's OnEvent hook.
func (e *Entry) observe(ev Event) {
	e.publish(ev)
	if ev.Type == EventState && ev.Snapshot != nil && ev.Snapshot.Status == StatusClosed {
		e.finalize.Do(e.shutdown)
	}
}

// publish fans an event out to subscribers, dropping it for slow ones.
func (e *Entry) publish(ev Event) {
	e.listenerMu.Lock()
	defer e.listenerMu.Unlock()
	if e.done {
		return
	}
	for _, ch := range e.listeners {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (e *Entry) shutdown() {
	if e.backend.Close != nil {
		e.backend.Close()
	}

	e.listenerMu.Lock()
	e.done = true
	for _, ch := range e.listeners {
		close(ch)
	}
	e.listeners = nil
	e.listenerMu.Unlock()

	if e.release != nil {
		e.release()
	}
}
