package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/aretw0/dialtone"
	"github.com/aretw0/dialtone/internal/compiler"
	"github.com/aretw0/dialtone/internal/logging"
	"github.com/aretw0/dialtone/internal/presentation/tui"
	"github.com/aretw0/dialtone/pkg/domain"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// simulatedNumber is dialed when the flow document binds no number.
const simulatedNumber = "+15550000000"

var simulateCmd = &cobra.Command{
	Use:   "simulate <file>",
	Short: "Place a simulated call through a flow in the terminal",
	Long: `Deploys a flow into an in-memory engine and walks one call through it.
Prompts are printed; each line you type is the caller's answer. Digits (and
* or #) are sent as keypad input, anything else as recognized speech.
End of input hangs up.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		from, _ := cmd.Flags().GetString("from")
		verbose, _ := cmd.Flags().GetBool("verbose")
		return runSimulation(cmd.Context(), args[0], from, verbose, cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(simulateCmd)
	simulateCmd.Flags().String("from", "+15550001111", "Caller number")
	simulateCmd.Flags().BoolP("verbose", "v", false, "Log engine activity to stderr")
}

func runSimulation(ctx context.Context, path, from string, verbose bool, in io.Reader, out io.Writer) error {
	flow, err := compiler.LoadFile(path)
	if err != nil {
		return err
	}

	logger := logging.NewNop()
	if verbose {
		logger = logging.New(logging.ParseLevel("debug"), "text")
	}
	engine := dialtone.New(dialtone.WithLogger(logger))

	number := simulatedNumber
	if len(flow.Numbers) > 0 {
		number = flow.Numbers[0]
	}
	if _, err := engine.DeployWithVoice(ctx, flow.Graph, flow.Voice, number); err != nil {
		return err
	}

	sim := &simulator{
		engine: engine,
		reader: bufio.NewReader(in),
		out:    out,
		style:  tui.NewStyles(out),
		callID: "SIM-" + uuid.NewString(),
	}
	return sim.run(ctx, domain.CallInitiated{CallID: sim.callID, From: from, To: number})
}

type simulator struct {
	engine *dialtone.Engine
	reader *bufio.Reader
	out    io.Writer
	style  tui.Styles
	callID string
}

func (s *simulator) run(ctx context.Context, call domain.CallInitiated) error {
	fmt.Fprintln(s.out, s.style.System(fmt.Sprintf("Calling %s from %s", call.To, call.From)))

	instr, err := s.engine.StartCall(ctx, call)
	for {
		if err != nil && !errors.Is(err, domain.ErrSessionTerminated) {
			fmt.Fprintln(s.out, s.style.Error(fmt.Sprintf("[error] %v", err)))
		}
		s.render(instr)

		if s.ended(ctx, instr) {
			fmt.Fprintln(s.out, s.style.System("[call ended]"))
			return nil
		}

		input, ok := s.answer(instr)
		if !ok {
			fmt.Fprintln(s.out, s.style.System("[caller hung up]"))
			return s.engine.UpdateStatus(ctx, domain.StatusChanged{CallID: s.callID, Status: domain.CallCompleted})
		}
		instr, err = s.engine.ContinueCall(ctx, domain.InputReceived{CallID: s.callID, Input: input})
	}
}

func (s *simulator) render(instr domain.Instruction) {
	for _, sp := range instr.Speech {
		if sp.Text == "" {
			fmt.Fprintln(s.out, s.style.System(fmt.Sprintf("(pause %s)", sp.Pause)))
			continue
		}
		fmt.Fprintln(s.out, s.style.Speech(sp.Text))
	}
	switch {
	case instr.Dial != nil:
		fmt.Fprintln(s.out, s.style.System(fmt.Sprintf("[transfer to %s]", instr.Dial.Destination)))
	case instr.Record != nil:
		fmt.Fprintln(s.out, s.style.System("[recording, type a line to finish]"))
	}
}

// ended reports whether the carrier would tear the call down now.
func (s *simulator) ended(ctx context.Context, instr domain.Instruction) bool {
	if instr.Kind == domain.InstructionHangup {
		return true
	}
	sess, err := s.engine.Sessions().Load(ctx, s.callID)
	if err != nil {
		return true
	}
	return sess.Terminal
}

// answer reads the caller's next line and shapes it for the pending instruction.
func (s *simulator) answer(instr domain.Instruction) (domain.Input, bool) {
	fmt.Fprint(s.out, s.style.Prompt())
	line, err := s.reader.ReadString('\n')
	if err != nil && line == "" {
		fmt.Fprintln(s.out)
		return domain.Input{}, false
	}
	text, err := domain.SanitizeInput(strings.TrimSpace(line), 0)
	if err != nil {
		fmt.Fprintln(s.out, s.style.Error(fmt.Sprintf("Error: %v.", err)))
		return s.answer(instr)
	}

	switch instr.Kind {
	case domain.InstructionRecord:
		return domain.Input{RecordingURL: "simulated://recording/" + s.callID}, true
	case domain.InstructionTransfer:
		if text == "" {
			text = "completed"
		}
		return domain.Input{DialStatus: text}, true
	}
	if isKeypad(text) {
		return domain.Input{Digits: text}, true
	}
	return domain.Input{Speech: text}, true
}

func isKeypad(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) && r != '*' && r != '#' {
			return false
		}
	}
	return true
}
