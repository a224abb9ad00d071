// Package http exposes the engine to telephony carriers and monitoring tools.
//
// Carrier webhooks always answer 200 with a well-formed markup document: a
// failure anywhere on the call path degrades to the fallback document rather
// than an HTTP error the carrier might turn into a dropped call.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/dialtone/internal/logging"
	"github.com/aretw0/dialtone/internal/presentation/graph"
	"github.com/aretw0/dialtone/pkg/domain"
	"github.com/aretw0/dialtone/pkg/markup"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// DefaultStepTimeout bounds the work done for one carrier callback.
const DefaultStepTimeout = 5 * time.Second

// InputPath receives the results of Gather, Record and Dial.
const InputPath = "/voice/input"

// Engine is the call-handling core driven by the webhooks.
// Call methods always return an instruction that is safe to render, even
// alongside an error.
type Engine interface {
	StartCall(ctx context.Context, call domain.CallInitiated) (domain.Instruction, error)
	ContinueCall(ctx context.Context, in domain.InputReceived) (domain.Instruction, error)
	UpdateStatus(ctx context.Context, st domain.StatusChanged) error
	Flows(ctx context.Context) ([]*domain.FlowGraph, error)
	Flow(ctx context.Context, id string) (*domain.FlowGraph, error)
	Call(ctx context.Context, callID string) (*domain.Session, error)
	AbortCall(ctx context.Context, callID string, cause error) (domain.Instruction, error)
}

// EventStream is the realtime event source behind /events.
type EventStream interface {
	// ServeHTTP upgrades the request to a websocket subscription.
	http.Handler
	Subscribe(buffer int) (<-chan domain.Event, func())
}

// Server holds the webhook handlers.
type Server struct {
	Engine      Engine
	Events      EventStream
	Metrics     http.Handler
	StepTimeout time.Duration
	BaseURL     string

	renderer *markup.Renderer
	logger   *slog.Logger
	observe  func(webhook string, d time.Duration)
}

// Option configures the Server.
type Option func(*Server)

// WithStepTimeout overrides DefaultStepTimeout.
func WithStepTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.StepTimeout = d
		}
	}
}

// WithBaseURL sets the public URL carriers use to reach the server.
// Gather, Record and Dial post their results to BaseURL + InputPath.
// Without it the action is the relative InputPath.
func WithBaseURL(url string) Option {
	return func(s *Server) {
		s.BaseURL = strings.TrimRight(url, "/")
	}
}

// WithEvents mounts the realtime event endpoints.
func WithEvents(events EventStream) Option {
	return func(s *Server) {
		s.Events = events
	}
}

// WithMetrics mounts a Prometheus handler at /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) {
		s.Metrics = h
	}
}

// WithStepObserver receives the duration of every carrier webhook.
func WithStepObserver(fn func(webhook string, d time.Duration)) Option {
	return func(s *Server) {
		s.observe = fn
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a Server.
func NewServer(engine Engine, opts ...Option) *Server {
	s := &Server{
		Engine:      engine,
		StepTimeout: DefaultStepTimeout,
		logger:      logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.renderer = markup.NewRenderer(s.BaseURL + InputPath)
	return s
}

// NewHandler creates the HTTP handler for the engine.
func NewHandler(engine Engine, opts ...Option) http.Handler {
	return NewServer(engine, opts...).Routes()
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Route("/voice", func(r chi.Router) {
		r.Post("/incoming", s.Incoming)
		r.Post("/input", s.Input)
		r.Post("/status", s.Status)
	})

	r.Get("/flows", s.ListFlows)
	r.Get("/flows/{id}/graph", s.GetFlowGraph)
	r.Get("/health", s.GetHealth)

	if s.Events != nil {
		r.Get("/events", s.Events.ServeHTTP)
		r.Get("/events/stream", s.StreamEvents)
	}
	if s.Metrics != nil {
		r.Handle("/metrics", s.Metrics)
	}
	return r
}

// Incoming handles the call-initiated webhook.
func (s *Server) Incoming(w http.ResponseWriter, r *http.Request) {
	defer s.track("incoming", time.Now())

	call, err := ParseCallInitiated(r)
	if err != nil {
		s.logger.Warn("Incoming: rejected callback", "err", err, "request_id", middleware.GetReqID(r.Context()))
		s.writeMarkup(w, markup.Fallback())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.StepTimeout)
	defer cancel()

	instr, err := s.Engine.StartCall(ctx, call)
	if err != nil {
		s.logCallError("Incoming", call.CallID, err)
	}
	s.writeMarkup(w, s.renderer.Render(instr))
}

// Input handles the input-received webhook.
func (s *Server) Input(w http.ResponseWriter, r *http.Request) {
	defer s.track("input", time.Now())

	ctx, cancel := context.WithTimeout(r.Context(), s.StepTimeout)
	defer cancel()

	in, err := ParseInputReceived(r)
	if err != nil {
		s.logger.Warn("Input: rejected callback", "err", err, "call_id", in.CallID, "request_id", middleware.GetReqID(r.Context()))
		if in.CallID == "" || !(errors.Is(err, domain.ErrInputTooLarge) || errors.Is(err, domain.ErrInvalidUTF8)) {
			s.writeMarkup(w, markup.Fallback())
			return
		}
		instr, aerr := s.Engine.AbortCall(ctx, in.CallID, err)
		if aerr != nil {
			s.logCallError("Input", in.CallID, aerr)
		}
		s.writeMarkup(w, s.renderer.Render(instr))
		return
	}

	instr, err := s.Engine.ContinueCall(ctx, in)
	if err != nil {
		s.logCallError("Input", in.CallID, err)
	}
	s.writeMarkup(w, s.renderer.Render(instr))
}

// Status handles the status-changed webhook. It acknowledges with an empty document.
func (s *Server) Status(w http.ResponseWriter, r *http.Request) {
	defer s.track("status", time.Now())

	st, err := ParseStatusChanged(r)
	if err != nil {
		s.logger.Warn("Status: rejected callback", "err", err, "request_id", middleware.GetReqID(r.Context()))
		s.writeMarkup(w, markup.Empty())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.StepTimeout)
	defer cancel()

	if err := s.Engine.UpdateStatus(ctx, st); err != nil {
		s.logCallError("Status", st.CallID, err)
	}
	s.writeMarkup(w, markup.Empty())
}

func (s *Server) track(webhook string, start time.Time) {
	if s.observe != nil {
		s.observe(webhook, time.Since(start))
	}
}

func (s *Server) logCallError(op, callID string, err error) {
	switch {
	case errors.Is(err, domain.ErrSessionTerminated), errors.Is(err, domain.ErrRouteNotFound):
		s.logger.Info(op+": call not continued", "call_id", callID, "reason", err)
	default:
		s.logger.Error(op+": call failed", "call_id", callID, "err", err)
	}
}

func (s *Server) writeMarkup(w http.ResponseWriter, doc []byte) {
	w.Header().Set("Content-Type", markup.ContentType)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(doc); err != nil {
		s.logger.Debug("Markup write failed", "err", err)
	}
}

// FlowSummary describes a deployed flow.
type FlowSummary struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Version int    `json:"version"`
	Nodes   int    `json:"nodes"`
}

// ListFlows handles GET /flows.
func (s *Server) ListFlows(w http.ResponseWriter, r *http.Request) {
	flows, err := s.Engine.Flows(r.Context())
	if err != nil {
		http.Error(w, fmt.Sprintf("list flows: %v", err), http.StatusInternalServerError)
		s.logger.Error("ListFlows failed", "err", err)
		return
	}

	out := make([]FlowSummary, 0, len(flows))
	for _, f := range flows {
		out = append(out, FlowSummary{ID: f.ID, Name: f.Name, Version: f.Version, Nodes: len(f.Nodes())})
	}
	writeJSON(w, http.StatusOK, out)
}

// GetFlowGraph handles GET /flows/{id}/graph, returning Mermaid text.
// With ?call_id= the nodes visited by that call are highlighted.
func (s *Server) GetFlowGraph(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	flow, err := s.Engine.Flow(r.Context(), id)
	if errors.Is(err, domain.ErrFlowNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, fmt.Sprintf("load flow: %v", err), http.StatusInternalServerError)
		s.logger.Error("GetFlowGraph failed", "flow_id", id, "err", err)
		return
	}

	var overlay *graph.GraphOverlay
	if callID := r.URL.Query().Get("call_id"); callID != "" {
		call, err := s.Engine.Call(r.Context(), callID)
		if errors.Is(err, domain.ErrSessionNotFound) || (err == nil && call.FlowID != id) {
			http.Error(w, fmt.Sprintf("call %s is not active on flow %s", callID, id), http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, fmt.Sprintf("load call: %v", err), http.StatusInternalServerError)
			s.logger.Error("GetFlowGraph failed", "flow_id", id, "call_id", callID, "err", err)
			return
		}
		overlay = &graph.GraphOverlay{VisitedNodes: call.History, CurrentNode: call.CurrentNodeID}
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(graph.GenerateMermaid(flow, overlay)))
}

// GetHealth handles GET /health.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// StreamEvents handles GET /events/stream as Server-Sent Events.
// Optional filters: call_id, and type (comma separated event types).
func (s *Server) StreamEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	callID := r.URL.Query().Get("call_id")
	types := make(map[domain.EventType]bool)
	if raw := r.URL.Query().Get("type"); raw != "" {
		for _, t := range strings.Split(raw, ",") {
			types[domain.EventType(strings.TrimSpace(t))] = true
		}
	}

	events, cancel := s.Events.Subscribe(0)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			if callID != "" && evt.CallID != callID {
				continue
			}
			if len(types) > 0 && !types[evt.Type] {
				continue
			}
			data, err := json.Marshal(evt)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Type, data)
			flusher.Flush()
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
