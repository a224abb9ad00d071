package domain

import "time"

// NodeKind identifies the variant of a Node.
type NodeKind string

const (
	// KindSay speaks a message and moves on (soft step).
	KindSay NodeKind = "say"
	// KindCollect speaks a prompt and halts until the caller answers (hard step).
	KindCollect NodeKind = "collect"
	// KindDecision branches on caller input without speaking (silent step).
	KindDecision NodeKind = "decision"
	// KindTransfer bridges the caller to another number.
	KindTransfer NodeKind = "transfer"
	// KindRecord captures a voice recording.
	KindRecord NodeKind = "record"
	// KindPause inserts silence (also used for timers).
	KindPause NodeKind = "pause"
	// KindEnd finishes the conversation.
	KindEnd NodeKind = "end"
)

// InputMode defines how a caller may answer a prompt.
type InputMode string

const (
	InputSpeech InputMode = "speech"
	InputDTMF   InputMode = "dtmf"
	InputAny    InputMode = "dtmf speech"
)

// Node is a step of a flow graph.
// The set of implementations is closed: only the node types of this package satisfy it.
type Node interface {
	NodeID() string
	Kind() NodeKind
	node()
}

// Say speaks Text and continues with Next.
// When ExpectInput is set the call waits on the Say. The answer is stored as
// last_input and evaluation continues at Next on the following callback.
type Say struct {
	ID          string
	Text        string
	Voice       string
	Next        string
	ExpectInput bool
}

// Collect speaks Prompt and waits for speech or keypad input.
type Collect struct {
	ID        string
	Prompt    string
	Voice     string
	Timeout   time.Duration
	MaxLength int
	Input     InputMode
	// Variable receives the captured input. Defaults to the node ID.
	Variable string
	Next     string
}

// Match is a single row of a Decision table.
type Match struct {
	Value  string
	Target string
}

// Decision routes on the current input (or on Variable when set).
// Matches are compared case-insensitively in declared order; first match wins.
type Decision struct {
	ID       string
	Variable string
	Matches  []Match
	Default  string
}

// Transfer speaks Text and dials Destination.
// Next is only used if the carrier returns control after the bridged call.
type Transfer struct {
	ID          string
	Text        string
	Voice       string
	Destination string
	Timeout     time.Duration
	Next        string
}

// Record speaks Prompt and records the caller.
type Record struct {
	ID          string
	Prompt      string
	Voice       string
	MaxLength   time.Duration
	FinishOnKey string
	Variable    string
	Next        string
}

// Pause holds the line silently for Length.
type Pause struct {
	ID     string
	Length time.Duration
	Next   string
}

// End speaks Text and finishes the flow. Hangup tears the channel down.
type End struct {
	ID     string
	Text   string
	Voice  string
	Hangup bool
}

func (n *Say) NodeID() string      { return n.ID }
func (n *Collect) NodeID() string  { return n.ID }
func (n *Decision) NodeID() string { return n.ID }
func (n *Transfer) NodeID() string { return n.ID }
func (n *Record) NodeID() string   { return n.ID }
func (n *Pause) NodeID() string    { return n.ID }
func (n *End) NodeID() string      { return n.ID }

func (n *Say) Kind() NodeKind      { return KindSay }
func (n *Collect) Kind() NodeKind  { return KindCollect }
func (n *Decision) Kind() NodeKind { return KindDecision }
func (n *Transfer) Kind() NodeKind { return KindTransfer }
func (n *Record) Kind() NodeKind   { return KindRecord }
func (n *Pause) Kind() NodeKind    { return KindPause }
func (n *End) Kind() NodeKind      { return KindEnd }

func (*Say) node()      {}
func (*Collect) node()  {}
func (*Decision) node() {}
func (*Transfer) node() {}
func (*Record) node()   {}
func (*Pause) node()    {}
func (*End) node()      {}

// VariableName returns the context key the collected input is saved to.
func (n *Collect) VariableName() string {
	if n.Variable != "" {
		return n.Variable
	}
	return n.ID
}

// VariableName returns the context key the recording URL is saved to.
func (n *Record) VariableName() string {
	if n.Variable != "" {
		return n.Variable
	}
	return n.ID
}

// IsTerminal reports whether the node ends the flow.
func IsTerminal(n Node) bool {
	_, ok := n.(*End)
	return ok
}

// Targets lists every node ID that n may transition to, in declaration order.
// Empty references are omitted.
func Targets(n Node) []string {
	var out []string
	add := func(id string) {
		if id != "" {
			out = append(out, id)
		}
	}
	switch v := n.(type) {
	case *Say:
		add(v.Next)
	case *Collect:
		add(v.Next)
	case *Decision:
		for _, m := range v.Matches {
			add(m.Target)
		}
		add(v.Default)
	case *Transfer:
		add(v.Next)
	case *Record:
		add(v.Next)
	case *Pause:
		add(v.Next)
	}
	return out
}
