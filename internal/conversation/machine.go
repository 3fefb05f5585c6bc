package conversation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/DivyanshuTiwari-1/aicall-cold-sub000/internal/broadcast"
	"github.com/DivyanshuTiwari-1/aicall-cold-sub000/internal/observability"
	"github.com/DivyanshuTiwari-1/aicall-cold-sub000/internal/policy"
	"github.com/DivyanshuTiwari-1/aicall-cold-sub000/internal/reliability"
	"github.com/DivyanshuTiwari-1/aicall-cold-sub000/internal/response"
	"github.com/DivyanshuTiwari-1/aicall-cold-sub000/internal/script"
	"github.com/DivyanshuTiwari-1/aicall-cold-sub000/internal/store"
	"github.com/DivyanshuTiwari-1/aicall-cold-sub000/internal/stt"
	"github.com/DivyanshuTiwari-1/aicall-cold-sub000/internal/telephony"
	"github.com/DivyanshuTiwari-1/aicall-cold-sub000/internal/tts"
)

// Call outcomes written to the disposition record.
const (
	OutcomeScheduled     = "scheduled"
	OutcomeInterested    = "interested"
	OutcomeNotInterested = "not_interested"
	OutcomeCallback      = "callback"
	OutcomeDNCRequest    = "dnc_request"
	OutcomeVoicemail     = "voicemail"
	OutcomeTransferred   = "transferred"
	OutcomeFailed        = "failed"
)

const (
	repromptText   = "Are you still there? I didn't catch that."
	noResponseText = "It seems now isn't a good time. I'll let you go. Have a great day!"
	noAgentText    = "I'm sorry, no one is available to take the call right now. We'll follow up with you soon. Have a great day!"
)

// Metadata identifies the call a machine is driving.
type Metadata struct {
	CallID         string
	OrganizationID string
	CampaignID     string
	Phone          string
	// Vars fill script placeholders such as {contact_name} and {company}.
	Vars map[string]string
}

// Options bound a call's turn and time budget.
type Options struct {
	MaxTurns           int
	TurnTimeout        time.Duration
	NoResponseLimit    int
	LowConfidenceFloor float64
	TransferEndpoint   string
}

// Deps are the collaborators one machine drives. Store should already wrap
// retry behavior; the machine logs persistence failures and keeps going.
type Deps struct {
	Channel  telephony.Channel
	Speaker  *tts.Pipeline
	Listener *stt.Pipeline
	Engine   *response.Engine
	Scripts  script.Provider
	Store    store.Store
	DNC      policy.DNCRegistrar
	Hub      *broadcast.Hub
	Metrics  *observability.Metrics
	Log      *zap.Logger
}

// Machine is the per-call state controller. It is the single writer of its
// session state; all channel events for the call are consumed in arrival
// order from its queue.
type Machine struct {
	meta Metadata
	opts Options
	deps Deps
	log  *zap.Logger

	events   chan telephony.Event
	fallback *script.StaticProvider

	mu                sync.Mutex
	state             State
	turn              int
	noResponseRuns    int
	lowConfidenceRuns int
	pendingDigit      string
	lastPrompt        string
	pendingIntent     string
	pendingEmotion    string
	dncIssued         bool
	finalized         bool
	startedAt         time.Time
}

func NewMachine(meta Metadata, opts Options, deps Deps) *Machine {
	if opts.MaxTurns <= 0 {
		opts.MaxTurns = 20
	}
	if opts.TurnTimeout <= 0 {
		opts.TurnTimeout = 45 * time.Second
	}
	if opts.NoResponseLimit <= 0 {
		opts.NoResponseLimit = 3
	}
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Machine{
		meta:     meta,
		opts:     opts,
		deps:     deps,
		log:      log.With(zap.String("call_id", meta.CallID)),
		events:   make(chan telephony.Event, 16),
		fallback: script.NewStaticProvider(),
		state:    StateIdle,
	}
}

// State returns the current phase of the call.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Deliver queues one channel event for the call's task. Delivery never
// blocks; a full queue drops the event with a warning.
func (m *Machine) Deliver(ev telephony.Event) {
	if m.deps.Metrics != nil {
		m.deps.Metrics.CallEvents.WithLabelValues(string(ev.Type)).Inc()
	}
	select {
	case m.events <- ev:
	default:
		if m.deps.Metrics != nil {
			m.deps.Metrics.DroppedEvents.WithLabelValues(string(ev.Type)).Inc()
		}
		m.log.Warn("event queue full, dropping event", zap.String("type", string(ev.Type)))
	}
}

// Run drives the call to a terminal state and guarantees exactly one
// disposition write, whatever path the call takes.
func (m *Machine) Run(ctx context.Context) {
	m.mu.Lock()
	m.startedAt = time.Now()
	m.mu.Unlock()

	err := m.run(ctx)
	if err != nil {
		if errors.Is(err, telephony.ErrChannelClosed) || errors.Is(err, context.Canceled) {
			m.log.Info("call ended by remote side", zap.String("state", string(m.State())))
		} else {
			m.log.Error("call failed", zap.Error(err))
		}
		m.transition(StateFailed)
		outcome, intent, emotion := m.partialOutcome()
		m.finalize(outcome, "channel_error: "+err.Error(), intent, emotion)
		return
	}

	// Normal paths finalize before run returns; this is a safety net.
	if !m.isFinalized() {
		m.transition(StateFailed)
		m.finalize(OutcomeFailed, "no terminal outcome", "", "")
	}
}

func (m *Machine) run(ctx context.Context) error {
	if err := m.awaitAnswered(ctx); err != nil {
		return err
	}

	if !m.transition(StateGreeting) {
		return fmt.Errorf("cannot enter greeting from %s", m.State())
	}
	if err := m.deps.Channel.Answer(ctx); err != nil {
		return err
	}
	m.publish(broadcast.EventCallStarted, map[string]any{
		"phone":       m.meta.Phone,
		"campaign_id": m.meta.CampaignID,
	})

	greeting := m.resolveScript(ctx, script.TypeGreeting)
	if err := m.speak(ctx, greeting); err != nil {
		return err
	}
	m.appendTurn(store.Turn{AgentText: greeting})

	if !m.transition(StateScripted) {
		return fmt.Errorf("cannot enter scripted from %s", m.State())
	}
	pitch := m.resolveScript(ctx, script.TypeMainPitch)
	if err := m.speak(ctx, pitch); err != nil {
		return err
	}
	m.appendTurn(store.Turn{AgentText: pitch})
	m.setLastPrompt(pitch)

	for {
		done, err := m.exchange(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

// exchange runs one listen/analyze/respond cycle. It returns true when the
// call reached a terminal state.
func (m *Machine) exchange(ctx context.Context) (bool, error) {
	if !m.transition(StateListeningForResponse) {
		return false, fmt.Errorf("cannot listen from %s", m.State())
	}

	turnStart := time.Now()
	utt, digit, err := m.listen(ctx)
	if err != nil {
		return false, err
	}

	if !m.transition(StateAnalyzing) {
		return false, fmt.Errorf("cannot analyze from %s", m.State())
	}

	if utt.Empty && digit == "" {
		return m.handleNoResponse(ctx)
	}
	m.mu.Lock()
	m.noResponseRuns = 0
	snap := response.Snapshot{Turn: m.turn, LowConfidenceRuns: m.lowConfidenceRuns}
	m.mu.Unlock()

	d := m.deps.Engine.Decide(ctx, snap, utt.Text, digit)

	m.mu.Lock()
	if d.Confidence < m.opts.LowConfidenceFloor {
		m.lowConfidenceRuns++
	} else {
		m.lowConfidenceRuns = 0
	}
	m.pendingIntent = d.Intent
	m.pendingEmotion = d.Emotion
	m.mu.Unlock()

	if !m.transition(StateResponding) {
		return false, fmt.Errorf("cannot respond from %s", m.State())
	}

	m.appendTurn(store.Turn{
		CustomerText: utt.Text,
		Digit:        digit,
		AgentText:    d.Utterance,
		Intent:       d.Intent,
		Emotion:      d.Emotion,
		Confidence:   d.Confidence,
	})

	if d.AddToDNC {
		m.addToDNC(ctx)
	}

	if err := m.speak(ctx, d.Utterance); err != nil {
		return false, err
	}
	if m.deps.Metrics != nil {
		m.deps.Metrics.ObserveTurnLatency(time.Since(turnStart))
	}

	switch d.Action {
	case response.ActionTransfer:
		return true, m.doTransfer(ctx, d)
	case response.ActionEnd:
		return true, m.doEnd(ctx, m.outcomeFor(d), "engine_end", d)
	default:
		if d.Repeat {
			if err := m.speak(ctx, m.getLastPrompt()); err != nil {
				return false, err
			}
		} else {
			m.setLastPrompt(d.Utterance)
		}
		if m.turnCount() >= m.opts.MaxTurns {
			closing := m.resolveScript(ctx, script.TypeClosing)
			if err := m.speak(ctx, closing); err != nil {
				return false, err
			}
			m.appendTurn(store.Turn{AgentText: closing})
			return true, m.doEnd(ctx, m.naturalOutcome(), "max_turns", d)
		}
		return false, nil
	}
}

func (m *Machine) handleNoResponse(ctx context.Context) (bool, error) {
	m.mu.Lock()
	m.noResponseRuns++
	runs := m.noResponseRuns
	m.mu.Unlock()

	if !m.transition(StateResponding) {
		return false, fmt.Errorf("cannot respond from %s", m.State())
	}

	if runs >= m.opts.NoResponseLimit {
		m.appendTurn(store.Turn{AgentText: noResponseText, Intent: "no_response"})
		if err := m.speak(ctx, noResponseText); err != nil {
			return false, err
		}
		return true, m.doEnd(ctx, OutcomeVoicemail, "no_response_limit", response.Decision{})
	}

	prompt := repromptText + " " + m.getLastPrompt()
	m.appendTurn(store.Turn{AgentText: prompt, Intent: "no_response"})
	if err := m.speak(ctx, prompt); err != nil {
		return false, err
	}
	return false, nil
}

func (m *Machine) doTransfer(ctx context.Context, d response.Decision) error {
	if !m.transition(StateTransferring) {
		return fmt.Errorf("cannot transfer from %s", m.State())
	}

	if m.opts.TransferEndpoint == "" {
		// Nowhere to hand the call; close it out politely instead.
		m.log.Warn("transfer requested but no endpoint configured")
		m.appendTurn(store.Turn{AgentText: noAgentText, Intent: d.Intent, Emotion: d.Emotion})
		if err := m.speak(ctx, noAgentText); err != nil {
			return err
		}
		if err := m.deps.Channel.Hangup(ctx); err != nil && !errors.Is(err, telephony.ErrChannelClosed) {
			m.log.Warn("hangup after failed transfer", zap.Error(err))
		}
		m.transition(StateCompleted)
		m.finalize(OutcomeVoicemail, "transfer_unavailable", d.Intent, d.Emotion)
		return nil
	}

	if err := m.deps.Channel.Redirect(ctx, m.opts.TransferEndpoint); err != nil {
		return err
	}
	m.transition(StateCompleted)
	outcome := OutcomeTransferred
	if d.AddToDNC {
		outcome = OutcomeDNCRequest
	}
	m.finalize(outcome, "transferred", d.Intent, d.Emotion)
	return nil
}

func (m *Machine) doEnd(ctx context.Context, outcome, reason string, d response.Decision) error {
	if !m.transition(StateEnding) {
		return fmt.Errorf("cannot end from %s", m.State())
	}
	if err := m.deps.Channel.Hangup(ctx); err != nil && !errors.Is(err, telephony.ErrChannelClosed) {
		m.log.Warn("hangup failed", zap.Error(err))
	}
	m.transition(StateCompleted)
	m.finalize(outcome, reason, d.Intent, d.Emotion)
	return nil
}

func (m *Machine) awaitAnswered(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, m.opts.TurnTimeout)
	defer cancel()
	for {
		ev, err := m.awaitEvent(waitCtx)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
				return fmt.Errorf("channel never answered: %w", err)
			}
			return err
		}
		if ev.Type == telephony.EventChannelStateChange && ev.State == telephony.StateUp {
			return nil
		}
	}
}

// awaitEvent pops the next event, translating hangup-shaped events into
// ErrChannelClosed. DTMF pressed outside a listening window is stashed so the
// next listen sees it (barge-in during playback).
func (m *Machine) awaitEvent(ctx context.Context) (telephony.Event, error) {
	select {
	case ev := <-m.events:
		switch ev.Type {
		case telephony.EventChannelDestroyed:
			return ev, telephony.ErrChannelClosed
		case telephony.EventChannelStateChange:
			if ev.State == telephony.StateDown {
				return ev, telephony.ErrChannelClosed
			}
		}
		return ev, nil
	case <-ctx.Done():
		return telephony.Event{}, ctx.Err()
	}
}

func (m *Machine) speak(ctx context.Context, text string) error {
	return m.deps.Speaker.Speak(ctx, m.deps.Channel, text, func(waitCtx context.Context, playbackID string) error {
		for {
			ev, err := m.awaitEvent(waitCtx)
			if err != nil {
				return err
			}
			switch ev.Type {
			case telephony.EventPlaybackFinished:
				if ev.PlaybackID == "" || ev.PlaybackID == playbackID {
					return nil
				}
			case telephony.EventChannelDtmf:
				m.stashDigit(ev.Digit)
			}
		}
	})
}

// listen waits for either a completed recording or a DTMF press, whichever
// arrives first. DTMF short-circuits transcription entirely.
func (m *Machine) listen(ctx context.Context) (stt.Utterance, string, error) {
	if digit := m.takeDigit(); digit != "" {
		return stt.Utterance{Empty: true}, digit, nil
	}

	listenCtx, cancel := context.WithTimeout(ctx, m.opts.TurnTimeout)
	defer cancel()

	name := fmt.Sprintf("%s_turn_%d", m.meta.CallID, m.turnCount()+1)
	utt, err := m.deps.Listener.Listen(listenCtx, m.deps.Channel, name, func(waitCtx context.Context) (string, error) {
		for {
			ev, err := m.awaitEvent(waitCtx)
			if err != nil {
				return "", err
			}
			switch ev.Type {
			case telephony.EventRecordingFinished:
				if ev.RecordingName != "" && ev.RecordingName != name {
					// Completion of a window we already walked away from
					// (barge-in or timeout); the next matching one is ours.
					m.log.Debug("ignoring stale recording completion",
						zap.String("recording", ev.RecordingName))
					continue
				}
				return ev.RecordingRef, nil
			case telephony.EventChannelDtmf:
				m.stashDigit(ev.Digit)
				return "", nil
			}
		}
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			// The callee simply never finished a recording window.
			return stt.Utterance{Empty: true}, "", nil
		}
		return stt.Utterance{}, "", err
	}
	if digit := m.takeDigit(); digit != "" {
		return stt.Utterance{Empty: true}, digit, nil
	}
	return utt, "", nil
}

func (m *Machine) resolveScript(ctx context.Context, t script.Type) string {
	tpl, err := m.deps.Scripts.ResolveScript(ctx, m.meta.CampaignID, t)
	if err != nil {
		m.log.Warn("script lookup failed, using default", zap.String("type", string(t)), zap.Error(err))
		tpl, _ = m.fallback.ResolveScript(ctx, m.meta.CampaignID, t)
	}
	if missing := script.Unresolved(tpl.Content, m.meta.Vars); len(missing) > 0 {
		m.log.Warn("unresolved script placeholders", zap.Strings("placeholders", missing))
	}
	return script.Resolve(tpl.Content, m.meta.Vars)
}

// appendTurn assigns the next turn number and persists the record. A write
// failure is logged by the store wrapper and never interrupts the call.
func (m *Machine) appendTurn(turn store.Turn) {
	m.mu.Lock()
	m.turn++
	turn.Seq = m.turn
	m.mu.Unlock()

	turn.CallID = m.meta.CallID
	turn.CreatedAt = time.Now().UTC()
	if err := m.deps.Store.AppendTurn(context.Background(), turn); err != nil {
		m.log.Warn("turn not persisted", zap.Int("seq", turn.Seq), zap.Error(err))
	}

	m.publish(broadcast.EventConversationTurn, map[string]any{
		"seq":           turn.Seq,
		"customer_text": turn.CustomerText,
		"agent_text":    turn.AgentText,
		"intent":        turn.Intent,
		"emotion":       turn.Emotion,
		"confidence":    turn.Confidence,
	})
}

func (m *Machine) addToDNC(ctx context.Context) {
	m.mu.Lock()
	if m.dncIssued || m.deps.DNC == nil {
		m.mu.Unlock()
		return
	}
	m.dncIssued = true
	m.mu.Unlock()

	err := m.deps.DNC.Add(ctx, m.meta.Phone, "callee request")
	if err != nil && reliability.IsTransient(err) {
		err = m.deps.DNC.Add(ctx, m.meta.Phone, "callee request")
	}
	if err != nil {
		m.log.Error("dnc registration failed", zap.Error(err))
	}
}

// finalize writes the disposition exactly once and notifies subscribers.
func (m *Machine) finalize(outcome, reason, intent, emotion string) {
	m.mu.Lock()
	if m.finalized {
		m.mu.Unlock()
		return
	}
	m.finalized = true
	turns := m.turn
	duration := time.Since(m.startedAt)
	if m.dncIssued {
		outcome = OutcomeDNCRequest
	}
	state := m.state
	m.mu.Unlock()

	d := store.Disposition{
		CallID:    m.meta.CallID,
		Outcome:   outcome,
		Reason:    reason,
		Intent:    intent,
		Emotion:   emotion,
		TurnCount: turns,
		Duration:  duration,
		AddToDNC:  outcome == OutcomeDNCRequest,
	}
	if err := m.deps.Store.WriteDisposition(context.Background(), d); err != nil && !errors.Is(err, store.ErrDispositionExists) {
		m.log.Error("disposition not persisted", zap.String("outcome", outcome), zap.Error(err))
	}
	if m.deps.Metrics != nil {
		m.deps.Metrics.Dispositions.WithLabelValues(outcome).Inc()
	}

	m.publish(broadcast.EventCallStatusUpdate, map[string]any{
		"state":   string(state),
		"outcome": outcome,
	})
	m.publish(broadcast.EventCallEnded, map[string]any{
		"outcome":     outcome,
		"reason":      reason,
		"turn_count":  turns,
		"duration_ms": duration.Milliseconds(),
	})
	m.log.Info("call finalized",
		zap.String("outcome", outcome),
		zap.String("reason", reason),
		zap.Int("turns", turns),
		zap.Duration("duration", duration))
}

func (m *Machine) outcomeFor(d response.Decision) string {
	switch {
	case d.AddToDNC:
		return OutcomeDNCRequest
	case d.Intent == "not_interested":
		return OutcomeNotInterested
	case d.Intent == "schedule_meeting":
		return OutcomeScheduled
	case d.Intent == "objection_timing":
		return OutcomeCallback
	case d.Emotion == "interested" || d.Emotion == "positive":
		return OutcomeInterested
	default:
		return OutcomeNotInterested
	}
}

// naturalOutcome classifies a call that ran to its turn budget.
func (m *Machine) naturalOutcome() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pendingEmotion == "interested" || m.pendingEmotion == "positive" {
		return OutcomeInterested
	}
	return OutcomeNotInterested
}

// partialOutcome is the best-known outcome when the channel dies mid-call.
func (m *Machine) partialOutcome() (outcome, intent, emotion string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dncIssued {
		return OutcomeDNCRequest, m.pendingIntent, m.pendingEmotion
	}
	if m.pendingIntent == "not_interested" {
		return OutcomeNotInterested, m.pendingIntent, m.pendingEmotion
	}
	return OutcomeFailed, m.pendingIntent, m.pendingEmotion
}

func (m *Machine) transition(to State) bool {
	m.mu.Lock()
	from := m.state
	ok := CanTransition(from, to)
	if ok {
		m.state = to
	}
	m.mu.Unlock()

	if !ok {
		m.log.Warn("rejected state transition",
			zap.String("from", string(from)),
			zap.String("to", string(to)))
		if m.deps.Metrics != nil {
			m.deps.Metrics.RejectedSteps.WithLabelValues(string(from), string(to)).Inc()
		}
	}
	return ok
}

func (m *Machine) publish(eventType string, data map[string]any) {
	if m.deps.Hub == nil {
		return
	}
	m.deps.Hub.Publish(broadcast.Event{
		Type:           eventType,
		CallID:         m.meta.CallID,
		OrganizationID: m.meta.OrganizationID,
		Data:           data,
	})
}

func (m *Machine) isFinalized() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.finalized
}

func (m *Machine) turnCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.turn
}

func (m *Machine) stashDigit(d string) {
	m.mu.Lock()
	if m.pendingDigit == "" {
		m.pendingDigit = d
	}
	m.mu.Unlock()
}

func (m *Machine) takeDigit() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.pendingDigit
	m.pendingDigit = ""
	return d
}

func (m *Machine) setLastPrompt(p string) {
	m.mu.Lock()
	m.lastPrompt = p
	m.mu.Unlock()
}

func (m *Machine) getLastPrompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastPrompt
}
