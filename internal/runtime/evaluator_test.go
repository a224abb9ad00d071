package runtime_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/dialtone/internal/runtime"
	"github.com/aretw0/dialtone/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func supportGraph() *domain.FlowGraph {
	return domain.NewFlowGraph("support", 1, "Support Line", []domain.Node{
		&domain.Say{ID: "start", Text: "Thanks for calling, {{from}}.", Next: "collect_reason"},
		&domain.Collect{ID: "collect_reason", Prompt: "Sales, support, or billing?", Input: domain.InputSpeech, Variable: "reason", Next: "route_decision"},
		&domain.Decision{ID: "route_decision", Matches: []domain.Match{
			{Value: "sales", Target: "transfer_sales"},
			{Value: "support", Target: "transfer_support"},
		}, Default: "say_goodbye"},
		&domain.Transfer{ID: "transfer_sales", Text: "Connecting you to sales.", Destination: "+15550001111"},
		&domain.Transfer{ID: "transfer_support", Text: "Connecting you to support.", Destination: "+15550002222"},
		&domain.End{ID: "say_goodbye", Text: "Goodbye.", Hangup: true},
	}, nil)
}

func startSession(g *domain.FlowGraph) *domain.Session {
	s := domain.NewSession("CA1", g, time.Now())
	s.From = "+15557654321"
	s.Voice = domain.VoiceSettings{Voice: "alice", Language: "en-US"}
	return s
}

func TestEvaluator_ChainsUntilInputIsNeeded(t *testing.T) {
	e := runtime.NewEvaluator()
	g := supportGraph()

	res := e.Step(context.Background(), g, startSession(g), domain.Input{})
	require.NoError(t, res.Failed)

	assert.Equal(t, domain.InstructionGather, res.Instruction.Kind)
	require.Len(t, res.Instruction.Speech, 2)
	assert.Equal(t, "Thanks for calling, +15557654321.", res.Instruction.Speech[0].Text)
	assert.Equal(t, "alice", res.Instruction.Speech[0].Voice)
	assert.Equal(t, domain.InputSpeech, res.Instruction.Gather.Input)

	assert.Equal(t, "collect_reason", res.Session.CurrentNodeID)
	assert.True(t, res.Session.AwaitingInput)
	assert.False(t, res.Terminal)
	assert.Equal(t, []string{"start", "collect_reason"}, res.Session.History)
}

func TestEvaluator_DecisionIsCaseInsensitive(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Support", "transfer_support"},
		{"  SALES ", "transfer_sales"},
		{"support", "transfer_support"},
		{"something else", "say_goodbye"},
		{"", "say_goodbye"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			e := runtime.NewEvaluator()
			g := supportGraph()
			first := e.Step(context.Background(), g, startSession(g), domain.Input{})

			res := e.Step(context.Background(), g, first.Session, domain.Input{Speech: tt.input})
			require.NoError(t, res.Failed)
			assert.Equal(t, tt.want, res.Session.CurrentNodeID)
			assert.Equal(t, strings.TrimSpace(tt.input), res.Session.Variables["reason"])
		})
	}
}

func TestEvaluator_TransferWithoutNextIsTerminal(t *testing.T) {
	e := runtime.NewEvaluator()
	g := supportGraph()
	first := e.Step(context.Background(), g, startSession(g), domain.Input{})

	res := e.Step(context.Background(), g, first.Session, domain.Input{Speech: "Support"})
	require.NoError(t, res.Failed)
	assert.Equal(t, domain.InstructionTransfer, res.Instruction.Kind)
	assert.Equal(t, "+15550002222", res.Instruction.Dial.Destination)
	assert.True(t, res.Terminal)
}

func TestEvaluator_EndHangsUpAndTerminates(t *testing.T) {
	var ended string
	e := runtime.NewEvaluator(runtime.WithLifecycleHooks(domain.LifecycleHooks{
		OnCallEnd: func(_ context.Context, _ *domain.Session, reason string) { ended = reason },
	}))
	g := supportGraph()
	first := e.Step(context.Background(), g, startSession(g), domain.Input{})

	res := e.Step(context.Background(), g, first.Session, domain.Input{Digits: "9"})
	require.NoError(t, res.Failed)
	assert.Equal(t, domain.InstructionHangup, res.Instruction.Kind)
	assert.True(t, res.Terminal)
	assert.True(t, res.Session.Terminal)
	assert.Equal(t, string(domain.InstructionHangup), ended)

	// Input after termination is not re-executed.
	again := e.Step(context.Background(), g, res.Session, domain.Input{Speech: "sales"})
	assert.ErrorIs(t, again.Failed, domain.ErrSessionTerminated)
	assert.Empty(t, again.Instruction.Speech)
	assert.Equal(t, "say_goodbye", again.Session.CurrentNodeID)
}

func TestEvaluator_DoesNotMutateInputSession(t *testing.T) {
	e := runtime.NewEvaluator()
	g := supportGraph()
	s := startSession(g)

	_ = e.Step(context.Background(), g, s, domain.Input{})
	assert.Equal(t, "start", s.CurrentNodeID)
	assert.Empty(t, s.History)
}

func TestEvaluator_Fallbacks(t *testing.T) {
	cycle := domain.NewFlowGraph("loop", 1, "", []domain.Node{
		&domain.Say{ID: "intro", Text: "hello", Next: "start"},
		&domain.Say{ID: "start", Text: "again", Next: "wait"},
		&domain.Pause{ID: "wait", Length: time.Second, Next: "start"},
	}, nil)

	tests := []struct {
		name    string
		graph   *domain.FlowGraph
		session func() *domain.Session
		ctx     func() (context.Context, context.CancelFunc)
		want    error
	}{
		{
			name:    "nil graph",
			graph:   nil,
			session: func() *domain.Session { return &domain.Session{CallID: "CA1", CurrentNodeID: "start"} },
			want:    domain.ErrEvaluationFailure,
		},
		{
			name:  "unknown node",
			graph: supportGraph(),
			session: func() *domain.Session {
				s := startSession(supportGraph())
				s.CurrentNodeID = "ghost"
				return s
			},
			want: domain.ErrEvaluationFailure,
		},
		{
			name:    "hop limit",
			graph:   cycle,
			session: func() *domain.Session { return domain.NewSession("CA1", cycle, time.Now()) },
			want:    domain.ErrEvaluationFailure,
		},
		{
			name:    "deadline",
			graph:   supportGraph(),
			session: func() *domain.Session { return startSession(supportGraph()) },
			ctx: func() (context.Context, context.CancelFunc) {
				return context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
			},
			want: domain.ErrUpstreamTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var failed error
			e := runtime.NewEvaluator(runtime.WithLifecycleHooks(domain.LifecycleHooks{
				OnStepFailed: func(_ context.Context, _ *domain.Session, err error) { failed = err },
			}))
			ctx, cancel := context.Background(), context.CancelFunc(func() {})
			if tt.ctx != nil {
				ctx, cancel = tt.ctx()
			}
			defer cancel()

			res := e.Step(ctx, tt.graph, tt.session(), domain.Input{})
			assert.ErrorIs(t, res.Failed, tt.want)
			assert.ErrorIs(t, failed, tt.want)
			assert.True(t, res.Terminal)
			assert.True(t, res.Session.Terminal)
			assert.Equal(t, domain.InstructionHangup, res.Instruction.Kind)
			require.Len(t, res.Instruction.Speech, 1)
			assert.Equal(t, domain.FallbackMessage, res.Instruction.Speech[0].Text)
		})
	}
}

func TestEvaluator_RecoversPanics(t *testing.T) {
	e := runtime.NewEvaluator(runtime.WithInterpolator(func(context.Context, string, map[string]string) (string, error) {
		panic("template engine exploded")
	}))
	g := supportGraph()

	res := e.Step(context.Background(), g, startSession(g), domain.Input{})
	var evalErr *domain.EvaluationError
	require.True(t, errors.As(res.Failed, &evalErr))
	assert.Contains(t, evalErr.Reason, "template engine exploded")
	assert.True(t, res.Session.Terminal)
}

func TestEvaluator_RecordAndTransferCallbacks(t *testing.T) {
	g := domain.NewFlowGraph("vm", 1, "", []domain.Node{
		&domain.Record{ID: "start", Prompt: "Leave a message", MaxLength: time.Minute, Variable: "voicemail", Next: "escalate"},
		&domain.Transfer{ID: "escalate", Destination: "+15550003333", Next: "bye"},
		&domain.End{ID: "bye", Text: "Bye {{voicemail}}"},
	}, nil)
	e := runtime.NewEvaluator()
	ctx := context.Background()

	res := e.Step(ctx, g, domain.NewSession("CA1", g, time.Now()), domain.Input{})
	require.NoError(t, res.Failed)
	assert.Equal(t, domain.InstructionRecord, res.Instruction.Kind)
	assert.Equal(t, time.Minute, res.Instruction.Record.MaxLength)

	res = e.Step(ctx, g, res.Session, domain.Input{RecordingURL: "https://rec/1"})
	require.NoError(t, res.Failed)
	assert.Equal(t, "https://rec/1", res.Session.Variables["voicemail"])
	assert.Equal(t, domain.InstructionTransfer, res.Instruction.Kind)
	assert.False(t, res.Terminal, "transfer with a next node waits for the dial callback")

	res = e.Step(ctx, g, res.Session, domain.Input{DialStatus: "completed"})
	require.NoError(t, res.Failed)
	assert.Equal(t, "completed", res.Session.Variables["escalate_status"])
	assert.Equal(t, "Bye https://rec/1", res.Instruction.Speech[0].Text)
	assert.True(t, res.Terminal)
}

func TestEvaluator_SayExpectingInputFeedsDecision(t *testing.T) {
	g := domain.NewFlowGraph("menu", 1, "", []domain.Node{
		&domain.Say{ID: "start", Text: "Press 1 for hours", Next: "menu", ExpectInput: true},
		&domain.Decision{ID: "menu", Matches: []domain.Match{{Value: "1", Target: "hours"}}, Default: "bye"},
		&domain.End{ID: "hours", Text: "We are open nine to five.", Hangup: false},
		&domain.End{ID: "bye"},
	}, nil)
	e := runtime.NewEvaluator()

	res := e.Step(context.Background(), g, domain.NewSession("CA1", g, time.Now()), domain.Input{})
	require.NoError(t, res.Failed)
	assert.Equal(t, domain.InstructionGather, res.Instruction.Kind)
	assert.Equal(t, "start", res.Session.CurrentNodeID)
	assert.True(t, res.Session.AwaitingInput)

	res = e.Step(context.Background(), g, res.Session, domain.Input{Digits: "1"})
	require.NoError(t, res.Failed)
	assert.Equal(t, domain.InstructionSpeak, res.Instruction.Kind, "end without hangup keeps the channel")
	assert.Equal(t, "hours", res.Session.CurrentNodeID)
	assert.True(t, res.Terminal)
}

func TestEvaluator_SayExpectingInputRunsNextNode(t *testing.T) {
	t.Run("transfer", func(t *testing.T) {
		g := domain.NewFlowGraph("menu", 1, "", []domain.Node{
			&domain.Say{ID: "start", Text: "Press any key to reach an agent", Next: "agent", ExpectInput: true},
			&domain.Transfer{ID: "agent", Destination: "+15550009999", Next: "bye"},
			&domain.End{ID: "bye", Text: "Bye", Hangup: true},
		}, nil)
		e := runtime.NewEvaluator()

		res := e.Step(context.Background(), g, domain.NewSession("CA1", g, time.Now()), domain.Input{})
		require.NoError(t, res.Failed)

		res = e.Step(context.Background(), g, res.Session, domain.Input{Digits: "1"})
		require.NoError(t, res.Failed)
		assert.Equal(t, domain.InstructionTransfer, res.Instruction.Kind)
		require.NotNil(t, res.Instruction.Dial)
		assert.Equal(t, "+15550009999", res.Instruction.Dial.Destination)
		assert.Equal(t, "agent", res.Session.CurrentNodeID)
		assert.Equal(t, "1", res.Session.Variables[domain.VarLastInput])
		assert.False(t, res.Terminal)
	})

	t.Run("collect", func(t *testing.T) {
		g := domain.NewFlowGraph("menu", 1, "", []domain.Node{
			&domain.Say{ID: "start", Text: "Press 1 to continue", Next: "account", ExpectInput: true},
			&domain.Collect{ID: "account", Prompt: "What is your account number?", Input: domain.InputDTMF, Next: "bye"},
			&domain.End{ID: "bye", Text: "Got {{account}}", Hangup: true},
		}, nil)
		e := runtime.NewEvaluator()

		res := e.Step(context.Background(), g, domain.NewSession("CA1", g, time.Now()), domain.Input{})
		require.NoError(t, res.Failed)

		res = e.Step(context.Background(), g, res.Session, domain.Input{Digits: "1"})
		require.NoError(t, res.Failed)
		assert.Equal(t, domain.InstructionGather, res.Instruction.Kind)
		require.Len(t, res.Instruction.Speech, 1)
		assert.Equal(t, "What is your account number?", res.Instruction.Speech[0].Text)
		assert.Equal(t, "account", res.Session.CurrentNodeID)
		assert.Empty(t, res.Session.Variables["account"])

		res = e.Step(context.Background(), g, res.Session, domain.Input{Digits: "4242"})
		require.NoError(t, res.Failed)
		assert.Equal(t, "Got 4242", res.Instruction.Speech[0].Text)
		assert.True(t, res.Terminal)
	})
}

func TestDefaultInterpolator(t *testing.T) {
	out, err := runtime.DefaultInterpolator(context.Background(),
		"Hi {{name}}, your code is {{ .code }}{{missing}}.",
		map[string]string{"name": "Ana", "code": "42"})
	require.NoError(t, err)
	assert.Equal(t, "Hi Ana, your code is 42.", out)
}
