package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aretw0/dialtone/internal/logging"
	"github.com/aretw0/dialtone/pkg/domain"
)

// DefaultMaxHops bounds how many nodes one step may chain through.
// Input-free cycles (say -> pause -> say ...) hit it instead of spinning.
const DefaultMaxHops = 64

// StepResult is the outcome of one evaluation step.
type StepResult struct {
	// Session is the updated copy of the input session.
	Session     *domain.Session
	Instruction domain.Instruction
	Terminal    bool
	// Failed is set when the step fell back to the apology-and-hangup instruction.
	Failed error
}

// Evaluator walks a flow graph one carrier callback at a time.
// It is stateless and safe for concurrent use.
type Evaluator struct {
	logger       *slog.Logger
	hooks        domain.LifecycleHooks
	interpolator Interpolator
	maxHops      int
}

// Option configures the Evaluator.
type Option func(*Evaluator)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Evaluator) {
		e.logger = logger
	}
}

// WithLifecycleHooks registers observability callbacks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Evaluator) {
		e.hooks = hooks
	}
}

// WithInterpolator replaces DefaultInterpolator.
func WithInterpolator(interp Interpolator) Option {
	return func(e *Evaluator) {
		e.interpolator = interp
	}
}

// WithMaxHops overrides DefaultMaxHops.
func WithMaxHops(n int) Option {
	return func(e *Evaluator) {
		if n > 0 {
			e.maxHops = n
		}
	}
}

// NewEvaluator creates an evaluator.
func NewEvaluator(opts ...Option) *Evaluator {
	e := &Evaluator{
		logger:       logging.NewNop(),
		interpolator: DefaultInterpolator,
		maxHops:      DefaultMaxHops,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Step advances session through graph given the callback input.
//
// Nodes are chained within one step until a node needs the carrier
// (Collect, Record, Transfer, End, or a Say that expects input).
// Step never panics and never returns an error: any failure produces the
// fallback instruction, marks the session terminal and is reported in
// StepResult.Failed.
func (e *Evaluator) Step(ctx context.Context, graph *domain.FlowGraph, session *domain.Session, input domain.Input) (res StepResult) {
	s := session.Clone()
	if s == nil {
		s = &domain.Session{Variables: make(map[string]string)}
	}
	res.Session = s

	defer func() {
		if r := recover(); r != nil {
			err := &domain.EvaluationError{NodeID: s.CurrentNodeID, Reason: fmt.Sprintf("panic: %v", r)}
			res = e.fail(ctx, s, err)
		}
	}()

	if s.Terminal {
		res.Instruction = domain.Instruction{Kind: domain.InstructionHangup}
		res.Terminal = true
		res.Failed = domain.ErrSessionTerminated
		return res
	}

	instr, err := e.run(ctx, graph, s, input)
	if err != nil {
		return e.fail(ctx, s, err)
	}

	res.Instruction = instr
	res.Terminal = s.Terminal
	if s.Terminal && e.hooks.OnCallEnd != nil {
		e.hooks.OnCallEnd(ctx, s, string(instr.Kind))
	}
	return res
}

// Abort ends session with the fallback instruction without evaluating a node.
// It is used for callbacks rejected before they reach the flow.
func (e *Evaluator) Abort(ctx context.Context, session *domain.Session, cause error) StepResult {
	s := session.Clone()
	if s.Terminal {
		return StepResult{Session: s, Instruction: domain.Instruction{Kind: domain.InstructionHangup}, Terminal: true, Failed: domain.ErrSessionTerminated}
	}
	return e.fail(ctx, s, cause)
}

func (e *Evaluator) fail(ctx context.Context, s *domain.Session, err error) StepResult {
	s.Terminal = true
	s.AwaitingInput = false

	e.logger.Error("Step failed, falling back",
		"call_id", s.CallID,
		"flow_id", s.FlowID,
		"node_id", s.CurrentNodeID,
		"err", err,
	)
	if e.hooks.OnStepFailed != nil {
		e.hooks.OnStepFailed(ctx, s, err)
	}
	if e.hooks.OnCallEnd != nil {
		e.hooks.OnCallEnd(ctx, s, "fallback")
	}

	instr := domain.FallbackInstruction()
	for i := range instr.Speech {
		instr.Speech[i].Voice = s.Voice.Voice
		instr.Speech[i].Language = s.Voice.Language
	}
	return StepResult{Session: s, Instruction: instr, Terminal: true, Failed: err}
}

func (e *Evaluator) run(ctx context.Context, graph *domain.FlowGraph, s *domain.Session, input domain.Input) (domain.Instruction, error) {
	var instr domain.Instruction

	if graph == nil {
		return instr, &domain.EvaluationError{Reason: fmt.Sprintf("flow %q is not loaded", s.FlowID)}
	}

	if s.AwaitingInput {
		if err := e.consume(graph, s, input); err != nil {
			return instr, err
		}
	}
	answer := input.Value()

	for hops := 0; ; hops++ {
		if err := ctx.Err(); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return instr, fmt.Errorf("%w: step exceeded its time budget", domain.ErrUpstreamTimeout)
			}
			return instr, err
		}
		if hops >= e.maxHops {
			return instr, &domain.EvaluationError{
				NodeID: s.CurrentNodeID,
				Reason: fmt.Sprintf("exceeded %d nodes in one step (cycle without input?)", e.maxHops),
			}
		}

		node, ok := graph.Node(s.CurrentNodeID)
		if !ok {
			return instr, &domain.EvaluationError{
				NodeID: s.CurrentNodeID,
				Reason: fmt.Sprintf("node not found in flow %s v%d", graph.ID, graph.Version),
			}
		}

		s.History = append(s.History, node.NodeID())
		if e.hooks.OnNodeEnter != nil {
			e.hooks.OnNodeEnter(ctx, s, node)
		}

		switch n := node.(type) {
		case *domain.Say:
			if err := e.speak(ctx, &instr, s, n.Text, n.Voice); err != nil {
				return instr, err
			}
			if n.ExpectInput {
				instr.Kind = domain.InstructionGather
				instr.Gather = &domain.Gather{Input: domain.InputAny}
				if n.Next == "" {
					return instr, &domain.EvaluationError{NodeID: n.ID, Reason: "no transition to follow"}
				}
				s.AwaitingInput = true
				return instr, nil
			}
			if instr.Kind == "" {
				instr.Kind = domain.InstructionSpeak
			}
			if err := e.advance(s, n.NodeID(), n.Next); err != nil {
				return instr, err
			}

		case *domain.Collect:
			if err := e.speak(ctx, &instr, s, n.Prompt, n.Voice); err != nil {
				return instr, err
			}
			mode := n.Input
			if mode == "" {
				mode = domain.InputAny
			}
			instr.Kind = domain.InstructionGather
			instr.Gather = &domain.Gather{Input: mode, Timeout: n.Timeout, MaxLength: n.MaxLength}
			s.AwaitingInput = true
			return instr, nil

		case *domain.Decision:
			value := answer
			if n.Variable != "" {
				value = s.Variables[n.Variable]
			}
			target := Decide(n, value)
			e.logger.Debug("Decision resolved",
				"call_id", s.CallID, "node_id", n.ID, "value", value, "target", target)
			if err := e.advance(s, n.NodeID(), target); err != nil {
				return instr, err
			}

		case *domain.Transfer:
			if err := e.speak(ctx, &instr, s, n.Text, n.Voice); err != nil {
				return instr, err
			}
			instr.Kind = domain.InstructionTransfer
			instr.Dial = &domain.Dial{Destination: n.Destination, Timeout: n.Timeout}
			if n.Next == "" {
				s.Terminal = true
			} else {
				s.AwaitingInput = true
			}
			return instr, nil

		case *domain.Record:
			if err := e.speak(ctx, &instr, s, n.Prompt, n.Voice); err != nil {
				return instr, err
			}
			instr.Kind = domain.InstructionRecord
			instr.Record = &domain.RecordSpec{MaxLength: n.MaxLength, FinishOnKey: n.FinishOnKey}
			s.AwaitingInput = true
			return instr, nil

		case *domain.Pause:
			instr.Silence(n.Length)
			if instr.Kind == "" {
				instr.Kind = domain.InstructionSpeak
			}
			if err := e.advance(s, n.NodeID(), n.Next); err != nil {
				return instr, err
			}

		case *domain.End:
			if err := e.speak(ctx, &instr, s, n.Text, n.Voice); err != nil {
				return instr, err
			}
			instr.Kind = domain.InstructionSpeak
			if n.Hangup {
				instr.Kind = domain.InstructionHangup
			}
			s.Terminal = true
			return instr, nil

		default:
			return instr, &domain.EvaluationError{NodeID: node.NodeID(), Reason: fmt.Sprintf("unsupported node kind %q", node.Kind())}
		}
	}
}

// consume applies a callback to the node that asked for it.
func (e *Evaluator) consume(graph *domain.FlowGraph, s *domain.Session, input domain.Input) error {
	s.AwaitingInput = false
	if v := input.Value(); v != "" {
		s.Variables[domain.VarLastInput] = v
	}

	node, ok := graph.Node(s.CurrentNodeID)
	if !ok {
		return &domain.EvaluationError{NodeID: s.CurrentNodeID, Reason: "awaiting node not found"}
	}

	switch n := node.(type) {
	case *domain.Collect:
		s.Variables[n.VariableName()] = input.Value()
		return e.advance(s, n.ID, n.Next)
	case *domain.Record:
		s.Variables[n.VariableName()] = input.RecordingURL
		return e.advance(s, n.ID, n.Next)
	case *domain.Transfer:
		if input.DialStatus != "" {
			s.Variables[n.ID+"_status"] = input.DialStatus
		}
		return e.advance(s, n.ID, n.Next)
	case *domain.Say:
		return e.advance(s, n.ID, n.Next)
	}
	return &domain.EvaluationError{NodeID: node.NodeID(), Reason: fmt.Sprintf("%s node does not take input", node.Kind())}
}

func (e *Evaluator) advance(s *domain.Session, from, to string) error {
	if to == "" {
		return &domain.EvaluationError{NodeID: from, Reason: "no transition to follow"}
	}
	s.CurrentNodeID = to
	return nil
}

func (e *Evaluator) speak(ctx context.Context, instr *domain.Instruction, s *domain.Session, text, voice string) error {
	if text == "" {
		return nil
	}
	rendered, err := e.interpolator(ctx, text, s.TemplateData())
	if err != nil {
		return &domain.EvaluationError{NodeID: s.CurrentNodeID, Reason: fmt.Sprintf("interpolation failed: %v", err)}
	}
	if voice == "" {
		voice = s.Voice.Voice
	}
	instr.Say(rendered, voice, s.Voice.Language)
	return nil
}

// Decide returns the target of the first row matching value, compared
// case-insensitively after trimming, or the default.
func Decide(d *domain.Decision, value string) string {
	value = strings.TrimSpace(value)
	for _, m := range d.Matches {
		if strings.EqualFold(strings.TrimSpace(m.Value), value) {
			return m.Target
		}
	}
	return d.Default
}
