package broadcast

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/DivyanshuTiwari-1/aicall-cold-sub000/internal/observability"
	"github.com/DivyanshuTiwari-1/aicall-cold-sub000/internal/policy"
)

// Event types pushed to dashboard subscribers.
const (
	EventCallStarted      = "call_started"
	EventConversationTurn = "conversation_turn"
	EventCallStatusUpdate = "call_status_update"
	EventCallEnded        = "call_ended"
)

// Event is the envelope delivered to every subscriber of the owning
// organization.
type Event struct {
	Type           string         `json:"type"`
	CallID         string         `json:"call_id"`
	OrganizationID string         `json:"organization_id"`
	Data           map[string]any `json:"data,omitempty"`
	Timestamp      time.Time      `json:"timestamp"`
}

// Subscription receives events for one organization until Close is called.
type Subscription struct {
	C chan Event

	hub *Hub
	org string
}

func (s *Subscription) Close() {
	s.hub.unsubscribe(s)
}

// Hub fans call events out to per-organization subscribers. Delivery is
// best-effort: a subscriber that cannot keep up has events dropped rather
// than blocking the calls producing them.
type Hub struct {
	mu      sync.RWMutex
	subs    map[string]map[*Subscription]struct{}
	metrics *observability.Metrics
	log     *zap.Logger
}

func NewHub(metrics *observability.Metrics, log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		subs:    make(map[string]map[*Subscription]struct{}),
		metrics: metrics,
		log:     log,
	}
}

// Subscribe registers a listener for one organization's events. buffer
// bounds how far the listener may fall behind before events are dropped.
func (h *Hub) Subscribe(orgID string, buffer int) *Subscription {
	if buffer <= 0 {
		buffer = 16
	}
	sub := &Subscription{
		C:   make(chan Event, buffer),
		hub: h,
		org: orgID,
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[orgID] == nil {
		h.subs[orgID] = make(map[*Subscription]struct{})
	}
	h.subs[orgID][sub] = struct{}{}
	return sub
}

func (h *Hub) unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.subs[sub.org]
	if set == nil {
		return
	}
	if _, ok := set[sub]; !ok {
		return
	}
	delete(set, sub)
	if len(set) == 0 {
		delete(h.subs, sub.org)
	}
	close(sub.C)
}

// Publish redacts PII from text payload fields and delivers the event to the
// organization's subscribers.
func (h *Hub) Publish(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	ev.Data = redactData(ev.Data)

	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs[ev.OrganizationID] {
		select {
		case sub.C <- ev:
			if h.metrics != nil {
				h.metrics.BroadcastMessages.WithLabelValues(ev.Type, "delivered").Inc()
			}
		default:
			if h.metrics != nil {
				h.metrics.BroadcastMessages.WithLabelValues(ev.Type, "dropped").Inc()
			}
			h.log.Warn("dropping broadcast event for slow subscriber",
				zap.String("type", ev.Type),
				zap.String("call_id", ev.CallID))
		}
	}
}

// SubscriberCount reports how many listeners an organization currently has.
func (h *Hub) SubscriberCount(orgID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[orgID])
}

func redactData(data map[string]any) map[string]any {
	if len(data) == 0 {
		return data
	}
	out := make(map[string]any, len(data))
	for k, v := range data {
		if s, ok := v.(string); ok {
			out[k], _ = policy.RedactPII(s)
		} else {
			out[k] = v
		}
	}
	return out
}
