package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/smazurov/vcap/internal/config"
	"github.com/smazurov/vcap/internal/events"
	"github.com/smazurov/vcap/internal/logging"
	"github.com/smazurov/vcap/internal/metrics"
	"github.com/smazurov/vcap/pkg/linuxav/v4l2"
)

// Manager owns one streaming Session per device path. Sessions are opened
// on first use and kept until released or the manager closes.
type Manager struct {
	opts     Options
	bus      *events.Bus
	profiles *config.ProfileStore
	newDev   func(path string) Device
	deviceID func(path string) string
	logger   *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
	opening  map[string]*pendingOpen
	closed   bool
}

// pendingOpen lets concurrent callers wait for a session another caller is
// opening. err is set before done is closed.
type pendingOpen struct {
	done chan struct{}
	err  error
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithDeviceFactory replaces v4l2.NewCamera, mainly for tests.
func WithDeviceFactory(fn func(path string) Device) ManagerOption {
	return func(m *Manager) { m.newDev = fn }
}

// WithDeviceIDs maps a device path to its stable ID so profiles keyed by ID
// are found.
func WithDeviceIDs(fn func(path string) string) ManagerOption {
	return func(m *Manager) { m.deviceID = fn }
}

// WithProfiles sets the store consulted when sessions open.
func WithProfiles(store *config.ProfileStore) ManagerOption {
	return func(m *Manager) { m.profiles = store }
}

// NewManager creates a manager. bus may be nil.
func NewManager(opts Options, bus *events.Bus, options ...ManagerOption) *Manager {
	m := &Manager{
		opts:     opts,
		bus:      bus,
		newDev:   func(path string) Device { return v4l2.NewCamera(path) },
		deviceID: func(string) string { return "" },
		logger:   logging.GetLogger("capture"),
		sessions: make(map[string]*Session),
		opening:  make(map[string]*pendingOpen),
	}
	for _, opt := range options {
		opt(m)
	}
	return m
}

// ErrManagerClosed is returned by Session after Close.
var ErrManagerClosed = errors.New("capture manager closed")

// Session returns the streaming session for path, opening and starting it
// if needed. Opening (and the warm-up that follows) runs without holding the
// manager lock; concurrent callers for the same path wait for it.
func (m *Manager) Session(ctx context.Context, path string) (*Session, error) {
	for {
		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			return nil, ErrManagerClosed
		}
		if s, ok := m.sessions[path]; ok {
			m.mu.Unlock()
			return s, nil
		}
		pending, busy := m.opening[path]
		if !busy {
			pending = &pendingOpen{done: make(chan struct{})}
			m.opening[path] = pending
		}
		m.mu.Unlock()

		if !busy {
			s, err := m.open(ctx, path)
			pending.err = err
			close(pending.done)
			return s, err
		}

		select {
		case <-pending.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		// The opener's own cancellation says nothing about this caller; try again.
		if pending.err != nil && !errors.Is(pending.err, context.Canceled) && !errors.Is(pending.err, context.DeadlineExceeded) {
			return nil, pending.err
		}
	}
}

// open creates, opens and starts a session for path and registers it. The
// caller owns the opening entry for path.
func (m *Manager) open(ctx context.Context, path string) (*Session, error) {
	s := NewSession(m.newDev(path), m.opts, m.bus)
	profile, hasProfile := m.profileFor(path)
	var p *config.Profile
	if hasProfile {
		p = &profile
	}

	err := s.Open(p)
	if err == nil {
		if err = s.Start(ctx); err != nil {
			_ = s.Close()
		}
	}

	m.mu.Lock()
	delete(m.opening, path)
	closed := m.closed
	if err == nil && !closed {
		m.sessions[path] = s
	}
	m.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if closed {
		_ = s.Close()
		return nil, ErrManagerClosed
	}
	m.logger.Info("Capture session created", "device", path, "session", s.ID(), "profile", hasProfile)
	return s, nil
}

// Lookup returns an existing session without opening one.
func (m *Manager) Lookup(path string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[path]
	return s, ok
}

// Sessions returns the active sessions ordered by device.
func (m *Manager) Sessions() []*Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Device() < out[j].Device() })
	return out
}

// Snapshot grabs one decoded frame from path and encodes it.
func (m *Manager) Snapshot(ctx context.Context, path string, format ImageFormat, quality int) ([]byte, *Frame, error) {
	s, err := m.Session(ctx, path)
	if err != nil {
		return nil, nil, err
	}

	frame, err := s.Grab(ctx, format != ImageRaw, false)
	if err != nil {
		return nil, nil, err
	}

	var buf bytes.Buffer
	if err := Encode(&buf, frame, format, quality); err != nil {
		return nil, nil, fmt.Errorf("encode %s: %w", format, err)
	}
	return buf.Bytes(), frame, nil
}

// Release closes and forgets the session for path, e.g. after the device
// was unplugged.
func (m *Manager) Release(path string) error {
	m.mu.Lock()
	s, ok := m.sessions[path]
	delete(m.sessions, path)
	m.mu.Unlock()

	metrics.DeleteDevice(path)
	if !ok {
		return nil
	}
	m.logger.Info("Capture session released", "device", path, "session", s.ID())
	return s.Close()
}

// ApplyProfiles re-applies profiles to the open sessions they match. It is
// the reload handler for the profiles file watcher.
func (m *Manager) ApplyProfiles(ctx context.Context, profiles config.Profiles) {
	for _, s := range m.Sessions() {
		p, ok := lookupProfile(profiles, s.Device(), m.deviceID(s.Device()))
		if !ok {
			continue
		}
		if _, err := s.ApplyProfile(ctx, p); err != nil {
			m.logger.Warn("Failed to re-apply profile", "device", s.Device(), "error", err)
		}
	}
}

// Close releases every session.
func (m *Manager) Close() error {
	m.mu.Lock()
	m.closed = true
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	var errs []error
	for path, s := range sessions {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", path, err))
		}
	}
	return errors.Join(errs...)
}

func (m *Manager) profileFor(path string) (config.Profile, bool) {
	if m.profiles == nil {
		return config.Profile{}, false
	}
	if p, ok := m.profiles.Get(path); ok {
		return p, true
	}
	if id := m.deviceID(path); id != "" {
		return m.profiles.Get(id)
	}
	return config.Profile{}, false
}

func lookupProfile(profiles config.Profiles, path, id string) (config.Profile, bool) {
	if p, ok := profiles.Profiles[path]; ok {
		return p, true
	}
	if id != "" {
		p, ok := profiles.Profiles[id]
		return p, ok
	}
	return config.Profile{}, false
}
