package dialtone

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/dialtone/internal/compiler"
	"github.com/aretw0/dialtone/internal/logging"
	"github.com/aretw0/dialtone/internal/runtime"
	"github.com/aretw0/dialtone/internal/validator"
	httpAdapter "github.com/aretw0/dialtone/pkg/adapters/http"
	"github.com/aretw0/dialtone/pkg/adapters/memory"
	"github.com/aretw0/dialtone/pkg/domain"
	"github.com/aretw0/dialtone/pkg/observability"
	"github.com/aretw0/dialtone/pkg/ports"
	"github.com/aretw0/dialtone/pkg/routing"
	"github.com/aretw0/dialtone/pkg/session"
	"github.com/google/uuid"
)

// Engine is the high-level entry point of the library.
// It binds the routing registry, the session manager and the step evaluator
// together and answers carrier callbacks for every deployed flow.
type Engine struct {
	flows     ports.FlowRepository
	routes    *routing.Registry
	sessions  *session.Manager
	evaluator *runtime.Evaluator
	publisher ports.EventPublisher
	hooks     domain.LifecycleHooks
	logger    *slog.Logger
	now       func() time.Time

	sessionStore ports.SessionStore
	routeStore   ports.RouteStore
	locker       ports.DistributedLocker
	userHooks    domain.LifecycleHooks
	maxHops      int
	routeTTL     time.Duration
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithSessionStore replaces the in-memory session store.
func WithSessionStore(store ports.SessionStore) Option {
	return func(e *Engine) {
		e.sessionStore = store
	}
}

// WithRouteStore replaces the in-memory route store.
func WithRouteStore(store ports.RouteStore) Option {
	return func(e *Engine) {
		e.routeStore = store
	}
}

// WithFlowRepository replaces the in-memory flow repository.
func WithFlowRepository(repo ports.FlowRepository) Option {
	return func(e *Engine) {
		e.flows = repo
	}
}

// WithLocker serializes each call across replicas sharing a session store.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(e *Engine) {
		e.locker = locker
	}
}

// WithPublisher sets where call events are sent.
func WithPublisher(p ports.EventPublisher) Option {
	return func(e *Engine) {
		e.publisher = p
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.userHooks = hooks
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithMaxHops bounds how many nodes a single callback may chain through.
func WithMaxHops(n int) Option {
	return func(e *Engine) {
		e.maxHops = n
	}
}

// WithRouteCacheTTL sets how long resolved routes are cached.
func WithRouteCacheTTL(ttl time.Duration) Option {
	return func(e *Engine) {
		e.routeTTL = ttl
	}
}

// New creates an engine. Without options it keeps everything in memory,
// which suits a single-instance deployment.
func New(opts ...Option) *Engine {
	e := &Engine{
		logger:   logging.NewNop(),
		now:      time.Now,
		maxHops:  runtime.DefaultMaxHops,
		routeTTL: routing.DefaultCacheTTL,
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.flows == nil {
		e.flows = memory.NewFlowRepository()
	}
	if e.sessionStore == nil {
		e.sessionStore = memory.NewStore()
	}
	if e.routeStore == nil {
		e.routeStore = memory.NewRouteStore()
	}

	e.hooks = observability.Combine(e.eventHooks(), e.userHooks)

	sessionOpts := []session.Option{session.WithLogger(e.logger), session.WithClock(e.now)}
	if e.locker != nil {
		sessionOpts = append(sessionOpts, session.WithLocker(e.locker))
	}
	e.sessions = session.NewManager(e.sessionStore, sessionOpts...)
	e.routes = routing.NewRegistry(e.routeStore,
		routing.WithCacheTTL(e.routeTTL),
		routing.WithLogger(e.logger),
		routing.WithClock(e.now),
	)
	e.evaluator = runtime.NewEvaluator(
		runtime.WithLogger(e.logger),
		runtime.WithLifecycleHooks(e.hooks),
		runtime.WithMaxHops(e.maxHops),
	)
	return e
}

// Routes exposes the routing registry.
func (e *Engine) Routes() *routing.Registry { return e.routes }

// Sessions exposes the session manager.
func (e *Engine) Sessions() *session.Manager { return e.sessions }

// Handler returns the webhook and monitoring HTTP handler.
func (e *Engine) Handler(opts ...httpAdapter.Option) http.Handler {
	opts = append([]httpAdapter.Option{httpAdapter.WithLogger(e.logger)}, opts...)
	return httpAdapter.NewHandler(e, opts...)
}

// NewJanitor returns a sweeper reclaiming sessions idle for longer than maxAge.
func (e *Engine) NewJanitor(maxAge, interval time.Duration) *session.Janitor {
	return session.NewJanitor(e.sessions, maxAge, interval, e.logger)
}

// Deploy validates graph, stores it as a new version and binds numbers to it.
// Calls already in progress keep the version they started with.
func (e *Engine) Deploy(ctx context.Context, graph *domain.FlowGraph, numbers ...string) (*domain.FlowGraph, error) {
	return e.DeployWithVoice(ctx, graph, domain.VoiceSettings{}, numbers...)
}

// DeployWithVoice is Deploy with a voice applied to calls arriving on numbers.
func (e *Engine) DeployWithVoice(ctx context.Context, graph *domain.FlowGraph, voice domain.VoiceSettings, numbers ...string) (*domain.FlowGraph, error) {
	if err := validator.Validate(graph); err != nil {
		return nil, err
	}
	stored, err := e.flows.Put(ctx, graph)
	if err != nil {
		return nil, fmt.Errorf("store flow %s: %w", graph.ID, err)
	}
	for _, number := range numbers {
		if _, err := e.routes.Register(ctx, number, stored.ID, stored.Name, voice); err != nil {
			return stored, fmt.Errorf("bind %s to %s: %w", number, stored.ID, err)
		}
	}
	e.logger.Info("Flow deployed",
		"flow_id", stored.ID,
		"version", stored.Version,
		"nodes", len(stored.Nodes()),
		"numbers", numbers,
	)
	return stored, nil
}

// LoadDir deploys every flow document found in dir.
// Nothing is deployed unless every document parses and validates.
func (e *Engine) LoadDir(ctx context.Context, dir string) ([]*domain.FlowGraph, error) {
	flows, err := compiler.LoadDir(dir)
	if err != nil {
		return nil, err
	}
	for _, f := range flows {
		if err := validator.Validate(f.Graph); err != nil {
			return nil, fmt.Errorf("%s: %w", f.Source, err)
		}
	}

	deployed := make([]*domain.FlowGraph, 0, len(flows))
	for _, f := range flows {
		g, err := e.DeployWithVoice(ctx, f.Graph, f.Voice, f.Numbers...)
		if err != nil {
			return deployed, fmt.Errorf("%s: %w", f.Source, err)
		}
		deployed = append(deployed, g)
	}
	return deployed, nil
}

// Flows returns the newest version of every deployed flow.
func (e *Engine) Flows(ctx context.Context) ([]*domain.FlowGraph, error) {
	return e.flows.List(ctx)
}

// Flow returns the newest version of a deployed flow.
func (e *Engine) Flow(ctx context.Context, id string) (*domain.FlowGraph, error) {
	return e.flows.Latest(ctx, id)
}

// Call returns the session of an active call.
func (e *Engine) Call(ctx context.Context, callID string) (*domain.Session, error) {
	return e.sessions.Load(ctx, callID)
}

// StartCall answers the first callback of a call. Calls to unmapped numbers
// get the unavailable instruction together with domain.ErrRouteNotFound.
// A redelivered call-initiated callback replays the previous instruction.
func (e *Engine) StartCall(ctx context.Context, call domain.CallInitiated) (domain.Instruction, error) {
	route, err := e.routes.Resolve(ctx, call.To)
	if errors.Is(err, domain.ErrRouteNotFound) {
		e.publish(domain.Event{
			Type:   domain.EventRouteMissing,
			CallID: call.CallID,
			Detail: map[string]string{"to": call.To, "from": call.From},
		})
		return domain.UnavailableInstruction(), err
	}
	if err != nil {
		return domain.FallbackInstruction(), err
	}

	graph, err := e.flows.Latest(ctx, route.FlowID)
	if err != nil {
		return domain.FallbackInstruction(), fmt.Errorf("route %s: %w", route.Number, err)
	}

	s, created, err := e.sessions.GetOrCreate(ctx, call.CallID, func() (*domain.Session, error) {
		s := domain.NewSession(call.CallID, graph, e.now())
		s.From = call.From
		s.To = route.Number
		s.Voice = route.Voice
		return s, nil
	})
	if err != nil {
		return domain.FallbackInstruction(), fmt.Errorf("start session: %w", err)
	}

	if !created && s.LastInstruction != nil {
		e.logger.Debug("Replaying instruction for redelivered call", "call_id", call.CallID)
		return *s.LastInstruction, nil
	}
	if created && e.hooks.OnCallStart != nil {
		e.hooks.OnCallStart(ctx, s)
	}
	return e.step(ctx, call.CallID, domain.Input{}, true)
}

// ContinueCall applies the caller's answer and returns the next instruction.
// Input for a finished call is ignored: the result is a bare hangup with
// domain.ErrSessionTerminated.
func (e *Engine) ContinueCall(ctx context.Context, in domain.InputReceived) (domain.Instruction, error) {
	return e.step(ctx, in.CallID, in.Input, false)
}

// AbortCall ends a call whose callback could not be accepted, such as input
// that failed sanitizing. The caller gets the fallback instruction and the
// session is marked terminal, the same as a failed step.
func (e *Engine) AbortCall(ctx context.Context, callID string, cause error) (domain.Instruction, error) {
	var res runtime.StepResult
	_, err := e.sessions.Update(ctx, callID, func(s *domain.Session) error {
		res = e.evaluator.Abort(ctx, s, cause)
		*s = *res.Session
		instr := res.Instruction
		s.LastInstruction = &instr
		return nil
	})
	switch {
	case errors.Is(err, domain.ErrSessionTerminated):
		return domain.Instruction{Kind: domain.InstructionHangup}, err
	case err != nil:
		return domain.FallbackInstruction(), fmt.Errorf("abort %s: %w", callID, err)
	}
	return res.Instruction, res.Failed
}

// UpdateStatus records a carrier status. Terminal statuses destroy the session.
func (e *Engine) UpdateStatus(ctx context.Context, st domain.StatusChanged) error {
	if !st.Status.IsTerminal() {
		_, err := e.sessions.Update(ctx, st.CallID, func(s *domain.Session) error {
			s.Variables[domain.VarCallStatus] = string(st.Status)
			return nil
		})
		if errors.Is(err, domain.ErrSessionNotFound) || errors.Is(err, domain.ErrSessionTerminated) {
			return nil
		}
		return err
	}

	s, err := e.sessions.Load(ctx, st.CallID)
	if errors.Is(err, domain.ErrSessionNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	if !s.Terminal && e.hooks.OnCallEnd != nil {
		s.Terminal = true
		e.hooks.OnCallEnd(ctx, s, string(st.Status))
	}
	return e.sessions.Terminate(ctx, st.CallID)
}

// errReplayed aborts an update whose call already received its first instruction.
var errReplayed = errors.New("instruction replayed")

// step evaluates one callback under the call lock. For the call-initiated
// callback, a session that already has an instruction was stepped by a
// concurrent delivery, so that instruction is returned unchanged.
func (e *Engine) step(ctx context.Context, callID string, input domain.Input, start bool) (domain.Instruction, error) {
	var res runtime.StepResult
	current, err := e.sessions.Update(ctx, callID, func(s *domain.Session) error {
		if start && s.LastInstruction != nil {
			res.Instruction = *s.LastInstruction
			return errReplayed
		}
		graph, err := e.flows.Get(ctx, s.FlowID, s.FlowVersion)
		if err != nil {
			e.logger.Error("Bound flow version unavailable",
				"call_id", callID, "flow_id", s.FlowID, "version", s.FlowVersion, "err", err)
			graph = nil
		}
		if !input.Empty() {
			e.publish(domain.Event{
				Type:   domain.EventInputReceived,
				CallID: callID,
				FlowID: s.FlowID,
				NodeID: s.CurrentNodeID,
				Detail: inputDetail(input),
			})
		}

		res = e.evaluator.Step(ctx, graph, s, input)
		*s = *res.Session
		instr := res.Instruction
		s.LastInstruction = &instr
		return nil
	})

	switch {
	case errors.Is(err, errReplayed):
		e.logger.Debug("Replaying instruction for redelivered call", "call_id", callID)
		return res.Instruction, nil
	case errors.Is(err, domain.ErrSessionTerminated):
		if start && current != nil && current.LastInstruction != nil {
			return *current.LastInstruction, nil
		}
		return domain.Instruction{Kind: domain.InstructionHangup}, err
	case err != nil:
		return domain.FallbackInstruction(), fmt.Errorf("step %s: %w", callID, err)
	}
	return res.Instruction, res.Failed
}

func inputDetail(in domain.Input) map[string]string {
	d := make(map[string]string, 4)
	if in.Speech != "" {
		d["speech"] = in.Speech
	}
	if in.Digits != "" {
		d["digits"] = in.Digits
	}
	if in.RecordingURL != "" {
		d["recording_url"] = in.RecordingURL
	}
	if in.DialStatus != "" {
		d["dial_status"] = in.DialStatus
	}
	return d
}

// eventHooks turns lifecycle transitions into realtime events.
func (e *Engine) eventHooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnCallStart: func(_ context.Context, s *domain.Session) {
			e.publish(domain.Event{
				Type:   domain.EventCallStarted,
				CallID: s.CallID,
				FlowID: s.FlowID,
				Detail: map[string]string{"from": s.From, "to": s.To},
			})
		},
		OnNodeEnter: func(_ context.Context, s *domain.Session, n domain.Node) {
			e.publish(domain.Event{
				Type:     domain.EventNodeEntered,
				CallID:   s.CallID,
				FlowID:   s.FlowID,
				NodeID:   n.NodeID(),
				NodeKind: n.Kind(),
			})
		},
		OnCallEnd: func(_ context.Context, s *domain.Session, reason string) {
			e.publish(domain.Event{
				Type:   domain.EventCallTerminated,
				CallID: s.CallID,
				FlowID: s.FlowID,
				NodeID: s.CurrentNodeID,
				Detail: map[string]string{"reason": reason},
			})
		},
		OnStepFailed: func(_ context.Context, s *domain.Session, err error) {
			e.publish(domain.Event{
				Type:   domain.EventStepFailed,
				CallID: s.CallID,
				FlowID: s.FlowID,
				NodeID: s.CurrentNodeID,
				Detail: map[string]string{"error": err.Error()},
			})
		},
	}
}

func (e *Engine) publish(evt domain.Event) {
	if e.publisher == nil {
		return
	}
	evt.ID = uuid.NewString()
	evt.Timestamp = e.now().UTC()
	e.publisher.Publish(evt)
}
