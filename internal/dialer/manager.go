package dialer

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/DivyanshuTiwari-1/aicall-cold-sub000/internal/conversation"
	"github.com/DivyanshuTiwari-1/aicall-cold-sub000/internal/observability"
	"github.com/DivyanshuTiwari-1/aicall-cold-sub000/internal/telephony"
)

// ErrDuplicateSession reports a create for a call id that already has a live
// machine.
var ErrDuplicateSession = errors.New("session already exists")

// ErrUnknownSession reports an operation against a call id with no live
// machine.
var ErrUnknownSession = errors.New("unknown session")

// MachineFactory builds the state machine for one new call. The manager owns
// the machine's lifecycle after creation.
type MachineFactory func(meta conversation.Metadata, ch telephony.Channel) *conversation.Machine

type session struct {
	machine *conversation.Machine
	cancel  context.CancelFunc
}

// Manager is the registry of live call sessions. It guarantees at most one
// machine per call id and routes inbound channel events to the owning
// machine; events for one call are consumed in arrival order by that call's
// task while different calls proceed in parallel.
type Manager struct {
	factory MachineFactory
	metrics *observability.Metrics
	log     *zap.Logger

	mu       sync.RWMutex
	sessions map[string]*session
	wg       sync.WaitGroup
}

func NewManager(factory MachineFactory, metrics *observability.Metrics, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		factory:  factory,
		metrics:  metrics,
		log:      log,
		sessions: make(map[string]*session),
	}
}

// Create registers a new call session and starts its task. The task runs
// until the call reaches a terminal state, then deregisters itself.
func (m *Manager) Create(ctx context.Context, meta conversation.Metadata, ch telephony.Channel) error {
	machine := m.factory(meta, ch)
	callCtx, cancel := context.WithCancel(ctx)

	m.mu.Lock()
	if _, exists := m.sessions[meta.CallID]; exists {
		m.mu.Unlock()
		cancel()
		return ErrDuplicateSession
	}
	m.sessions[meta.CallID] = &session{machine: machine, cancel: cancel}
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.ActiveCalls.Inc()
	}
	m.log.Info("session created",
		zap.String("call_id", meta.CallID),
		zap.String("campaign_id", meta.CampaignID))

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		machine.Run(callCtx)
		m.remove(meta.CallID)
	}()
	return nil
}

// Dispatch routes one channel event to its session. Events for unknown calls
// are dropped with a warning: the channel often outlives the session under a
// hangup race, and that is expected. A hangup-shaped event cancels the
// session's context before delivery so in-flight provider calls are
// abandoned immediately.
func (m *Manager) Dispatch(ev telephony.Event) {
	m.mu.RLock()
	sess, ok := m.sessions[ev.CallID]
	m.mu.RUnlock()
	if !ok {
		m.log.Warn("event for unknown session",
			zap.String("call_id", ev.CallID),
			zap.String("type", string(ev.Type)))
		return
	}

	if isHangup(ev) {
		sess.cancel()
	}
	sess.machine.Deliver(ev)
}

// Terminate force-ends a live session.
func (m *Manager) Terminate(callID string) error {
	m.mu.RLock()
	sess, ok := m.sessions[callID]
	m.mu.RUnlock()
	if !ok {
		return ErrUnknownSession
	}
	sess.cancel()
	return nil
}

// StateOf reports the current phase of a live session.
func (m *Manager) StateOf(callID string) (conversation.State, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[callID]
	if !ok {
		return "", false
	}
	return sess.machine.State(), true
}

// ActiveCount reports the number of live sessions.
func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Shutdown cancels every session and waits for their tasks to finalize, up
// to the given grace period.
func (m *Manager) Shutdown(grace time.Duration) {
	m.mu.RLock()
	for _, sess := range m.sessions {
		sess.cancel()
	}
	m.mu.RUnlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(grace):
		m.log.Warn("shutdown grace period expired with sessions still live",
			zap.Int("remaining", m.ActiveCount()))
	}
}

func (m *Manager) remove(callID string) {
	m.mu.Lock()
	sess, ok := m.sessions[callID]
	if ok {
		delete(m.sessions, callID)
	}
	m.mu.Unlock()
	if !ok {
		return
	}
	sess.cancel()
	if m.metrics != nil {
		m.metrics.ActiveCalls.Dec()
	}
	m.log.Info("session released", zap.String("call_id", callID))
}

func isHangup(ev telephony.Event) bool {
	if ev.Type == telephony.EventChannelDestroyed {
		return true
	}
	return ev.Type == telephony.EventChannelStateChange && ev.State == telephony.StateDown
}
