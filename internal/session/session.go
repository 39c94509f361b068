// Package session drives one chat session from connection to readiness and
// gates the router until the session is Ready.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"commlink/internal/llm"
	"commlink/internal/logging"
	"commlink/internal/router"
	"commlink/internal/store"
	"commlink/internal/types"

	"github.com/google/uuid"
)

// DefaultHandshakeStep is the pause before each handshake announcement.
const DefaultHandshakeStep = 400 * time.Millisecond

// Announcements is the handshake script, in order. It is presentation only;
// nothing is negotiated or verified.
var Announcements = []string{
	"🛰️ Connecting to relay...",
	"🔑 Exchanging session keys...",
	"🧬 Verifying channel fingerprint...",
	"🔐 Secure channel established.",
}

// errReset is returned by Start when Reset interrupts it.
var errReset = errors.New("session reset during start")

// Config configures a Machine.
type Config struct {
	// Token resolves a stable identity. Empty means anonymous provisioning.
	Token string
	// HandshakeStep is the delay before each announcement. Zero means none.
	HandshakeStep time.Duration
	// Router is passed to every router the machine creates. Phase is set by
	// the machine.
	Router router.Options

	// OnPhase is called after every phase change, outside the lock.
	OnPhase func(types.SessionPhase)
	// OnAnnounce receives each handshake announcement.
	OnAnnounce func(string)
}

// Machine is the session state machine. Phases only advance; Reset is the
// one way back to Unauthenticated.
type Machine struct {
	store     store.Store
	llm       llm.Client
	reminders router.Reminders
	cfg       Config

	mu       sync.RWMutex
	phase    types.SessionPhase
	identity types.Identity
	router   *router.Router
	gen      uint64
	cancel   context.CancelFunc

	busy atomic.Bool
}

// New creates a Machine in the Unauthenticated phase.
func New(st store.Store, client llm.Client, reminders router.Reminders, cfg Config) *Machine {
	if cfg.HandshakeStep < 0 {
		cfg.HandshakeStep = DefaultHandshakeStep
	}
	m := &Machine{
		store:     st,
		llm:       client,
		reminders: reminders,
		cfg:       cfg,
	}
	m.router = m.newRouter()
	return m
}

func (m *Machine) newRouter() *router.Router {
	opts := m.cfg.Router
	opts.Phase = m.Phase
	return router.New(m.store, m.llm, m.reminders, opts)
}

// Phase returns the current phase.
func (m *Machine) Phase() types.SessionPhase {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.phase
}

// Identity returns the resolved identity. It is zero until Authenticating
// completes.
func (m *Machine) Identity() types.Identity {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.identity
}

// Router returns the router of the current session.
func (m *Machine) Router() *router.Router {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.router
}

// Busy reports whether a dispatch is in flight.
func (m *Machine) Busy() bool {
	return m.busy.Load()
}

// Start runs the session from Unauthenticated to Ready. It blocks through
// the handshake script and fails if the session was already started.
func (m *Machine) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.phase != types.PhaseUnauthenticated || m.cancel != nil {
		m.mu.Unlock()
		return fmt.Errorf("session already started (phase %s)", m.phase)
	}
	ctx, cancel := context.WithCancel(ctx)
	gen := m.gen
	m.cancel = cancel
	m.mu.Unlock()

	defer func() {
		cancel()
		m.mu.Lock()
		if m.gen == gen {
			m.cancel = nil
		}
		m.mu.Unlock()
	}()

	timer := logging.StartTimer(logging.CategorySession, "Start")
	defer timer.Stop()

	if err := m.store.Ping(ctx); err != nil {
		logging.Get(logging.CategorySession).Error("store unreachable: %v", err)
		return m.interrupted(gen, fmt.Errorf("connect to store: %w", err))
	}
	if err := m.advance(gen, types.PhaseAuthenticating); err != nil {
		return err
	}

	id := resolveIdentity(m.cfg.Token)
	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		return errReset
	}
	m.identity = id
	m.mu.Unlock()
	logging.Session("identity resolved: %s (anonymous=%v)", id.ID, id.Anonymous)

	if err := m.advance(gen, types.PhaseHandshakeInProgress); err != nil {
		return err
	}
	for _, line := range Announcements {
		if err := sleep(ctx, m.cfg.HandshakeStep); err != nil {
			return m.interrupted(gen, err)
		}
		if m.stale(gen) {
			return errReset
		}
		logging.SessionDebug("announce: %s", line)
		if m.cfg.OnAnnounce != nil {
			m.cfg.OnAnnounce(line)
		}
	}
	return m.advance(gen, types.PhaseReady)
}

// Submit routes one utterance. It returns ErrNotReady before the session is
// Ready and ErrBusy while a previous dispatch is in flight. Nothing is queued.
func (m *Machine) Submit(ctx context.Context, text string) (router.Reply, error) {
	m.mu.RLock()
	phase, id, r := m.phase, m.identity, m.router
	m.mu.RUnlock()

	if phase != types.PhaseReady {
		return router.Reply{}, fmt.Errorf("%w: phase is %s", types.ErrNotReady, phase)
	}
	if !m.busy.CompareAndSwap(false, true) {
		return router.Reply{}, types.ErrBusy
	}
	defer m.busy.Store(false)

	return r.Route(ctx, id, text), nil
}

// Reset starts a new session: the phase returns to Unauthenticated, the
// identity is dropped, a running Start is cancelled and a fresh router
// replaces the old one together with any pending confirmation.
func (m *Machine) Reset() {
	m.mu.Lock()
	m.gen++
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.phase = types.PhaseUnauthenticated
	m.identity = types.Identity{}
	m.router = m.newRouter()
	m.mu.Unlock()

	logging.Session("session reset")
	m.notify(types.PhaseUnauthenticated)
}

func (m *Machine) advance(gen uint64, next types.SessionPhase) error {
	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		return errReset
	}
	if next <= m.phase {
		cur := m.phase
		m.mu.Unlock()
		return fmt.Errorf("phase cannot move from %s to %s", cur, next)
	}
	prev := m.phase
	m.phase = next
	m.mu.Unlock()

	logging.Session("phase %s -> %s", prev, next)
	m.notify(next)
	return nil
}

func (m *Machine) notify(p types.SessionPhase) {
	if m.cfg.OnPhase != nil {
		m.cfg.OnPhase(p)
	}
}

func (m *Machine) stale(gen uint64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.gen != gen
}

// interrupted reports errReset instead of err when a Reset caused it.
func (m *Machine) interrupted(gen uint64, err error) error {
	if m.stale(gen) {
		return errReset
	}
	return err
}

// resolveIdentity derives a stable id from a token, or provisions an
// anonymous one. The token itself is never stored.
func resolveIdentity(token string) types.Identity {
	if token == "" {
		return types.Identity{ID: types.SenderID("anon-" + uuid.NewString()), Anonymous: true}
	}
	return types.Identity{ID: types.SenderID(uuid.NewSHA1(uuid.NameSpaceOID, []byte(token)).String())}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
