package tui

import (
	"io"

	"github.com/muesli/termenv"
)

// Styles renders the roles of a simulated call.
type Styles struct {
	out *termenv.Output
}

// NewStyles detects the color profile of w.
func NewStyles(w io.Writer) Styles {
	return Styles{out: termenv.NewOutput(w)}
}

// Speech is what the caller hears.
func (s Styles) Speech(text string) string {
	return s.out.String(text).Bold().String()
}

// System is carrier activity: pauses, transfers, recordings, hangups.
func (s Styles) System(text string) string {
	return s.out.String(text).Faint().String()
}

// Error reports a failed step.
func (s Styles) Error(text string) string {
	return s.out.String(text).Foreground(s.out.Color("#f87171")).String()
}

// Prompt precedes the caller's answer.
func (s Styles) Prompt() string {
	return s.out.String("> ").Foreground(s.out.Color("#34d399")).String()
}
