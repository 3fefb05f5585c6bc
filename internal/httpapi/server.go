package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/DivyanshuTiwari-1/aicall-cold-sub000/internal/broadcast"
	"github.com/DivyanshuTiwari-1/aicall-cold-sub000/internal/config"
	"github.com/DivyanshuTiwari-1/aicall-cold-sub000/internal/conversation"
	"github.com/DivyanshuTiwari-1/aicall-cold-sub000/internal/dialer"
	"github.com/DivyanshuTiwari-1/aicall-cold-sub000/internal/observability"
	"github.com/DivyanshuTiwari-1/aicall-cold-sub000/internal/store"
	"github.com/DivyanshuTiwari-1/aicall-cold-sub000/internal/telephony"
)

// Server exposes the call control API and the dashboard event stream.
type Server struct {
	cfg      config.Config
	manager  *dialer.Manager
	channels telephony.ChannelProvider
	hub      *broadcast.Hub
	store    store.Store
	metrics  *observability.Metrics
	log      *zap.Logger
	upgrader websocket.Upgrader
}

func New(cfg config.Config, manager *dialer.Manager, channels telephony.ChannelProvider, hub *broadcast.Hub, st store.Store, metrics *observability.Metrics, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		cfg:      cfg,
		manager:  manager,
		channels: channels,
		hub:      hub,
		store:    st,
		metrics:  metrics,
		log:      log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Only same-origin browser connections unless explicitly opened
				// up; non-browser clients omit Origin and are allowed.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Post("/v1/calls", s.handleCreateCall)
	r.Post("/v1/calls/{id}/events", s.handleCallEvent)
	r.Post("/v1/calls/{id}/terminate", s.handleTerminateCall)
	r.Get("/v1/calls/{id}", s.handleGetCall)
	r.Get("/v1/calls/{id}/transcript", s.handleGetTranscript)
	r.Get("/v1/events/ws", s.handleEventsWS)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"active_calls": s.manager.ActiveCount(),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

type createCallRequest struct {
	CallID         string            `json:"call_id"`
	Phone          string            `json:"phone"`
	CampaignID     string            `json:"campaign_id"`
	OrganizationID string            `json:"organization_id"`
	Vars           map[string]string `json:"vars"`
}

func (s *Server) handleCreateCall(w http.ResponseWriter, r *http.Request) {
	var req createCallRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.Phone) == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "phone is required")
		return
	}
	if strings.TrimSpace(req.CallID) == "" {
		req.CallID = uuid.NewString()
	}
	if strings.TrimSpace(req.OrganizationID) == "" {
		req.OrganizationID = s.cfg.OrganizationID
	}

	ch, err := s.channels.ChannelFor(r.Context(), req.CallID)
	if err != nil {
		respondError(w, http.StatusBadGateway, "channel_unavailable", err.Error())
		return
	}

	meta := conversation.Metadata{
		CallID:         req.CallID,
		OrganizationID: req.OrganizationID,
		CampaignID:     req.CampaignID,
		Phone:          req.Phone,
		Vars:           req.Vars,
	}
	// The session outlives this request; Shutdown is its cancellation path.
	if err := s.manager.Create(context.Background(), meta, ch); err != nil {
		if errors.Is(err, dialer.ErrDuplicateSession) {
			respondError(w, http.StatusConflict, "duplicate_call", err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, "create_failed", err.Error())
		return
	}

	state, _ := s.manager.StateOf(req.CallID)
	respondJSON(w, http.StatusCreated, map[string]any{
		"call_id": req.CallID,
		"state":   string(state),
	})
}

func (s *Server) handleCallEvent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var ev telephony.Event
	if err := decodeJSON(r, &ev); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_event", err.Error())
		return
	}
	if ev.Type == "" {
		respondError(w, http.StatusBadRequest, "invalid_event", "type is required")
		return
	}
	ev.CallID = id
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	// Events racing a finished call are dropped by the manager; that is not
	// an API error.
	s.manager.Dispatch(ev)
	respondJSON(w, http.StatusAccepted, map[string]any{"accepted": true})
}

func (s *Server) handleTerminateCall(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.manager.Terminate(id); err != nil {
		respondError(w, http.StatusNotFound, "call_not_found", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"terminating": true})
}

func (s *Server) handleGetCall(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if state, ok := s.manager.StateOf(id); ok {
		respondJSON(w, http.StatusOK, map[string]any{
			"call_id": id,
			"live":    true,
			"state":   string(state),
		})
		return
	}

	d, err := s.store.DispositionFor(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNoDisposition) {
			respondError(w, http.StatusNotFound, "call_not_found", "no live session or disposition")
			return
		}
		respondError(w, http.StatusInternalServerError, "lookup_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"call_id":     id,
		"live":        false,
		"outcome":     d.Outcome,
		"reason":      d.Reason,
		"turn_count":  d.TurnCount,
		"duration_ms": d.Duration.Milliseconds(),
		"add_to_dnc":  d.AddToDNC,
	})
}

func (s *Server) handleGetTranscript(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	turns, err := s.store.Turns(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "lookup_failed", err.Error())
		return
	}
	if len(turns) == 0 {
		respondError(w, http.StatusNotFound, "call_not_found", "no turns recorded")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"call_id":    id,
		"turns":      turns,
		"transcript": store.Transcript(turns),
	})
}

func (s *Server) handleEventsWS(w http.ResponseWriter, r *http.Request) {
	orgID := strings.TrimSpace(r.URL.Query().Get("organization_id"))
	if orgID == "" {
		orgID = s.cfg.OrganizationID
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	sub := s.hub.Subscribe(orgID, 64)
	defer sub.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadLimit(4 << 10)
		for {
			// Dashboard clients only listen; reads just detect disconnects.
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case ev, ok := <-sub.C:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		}
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
