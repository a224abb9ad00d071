package domain

import "time"

// InstructionKind classifies what the carrier is asked to do after speaking.
type InstructionKind string

const (
	// InstructionSpeak only plays speech.
	InstructionSpeak InstructionKind = "speak"
	// InstructionGather plays speech inside an input collection.
	InstructionGather InstructionKind = "gather"
	// InstructionTransfer plays speech then dials another party.
	InstructionTransfer InstructionKind = "transfer"
	// InstructionRecord plays speech then records the caller.
	InstructionRecord InstructionKind = "record"
	// InstructionHangup plays speech then tears the call down.
	InstructionHangup InstructionKind = "hangup"
)

// Speech is one element of what the caller hears.
// A zero Text with a positive Pause is a silence.
type Speech struct {
	Text     string        `json:"text,omitempty"`
	Voice    string        `json:"voice,omitempty"`
	Language string        `json:"language,omitempty"`
	Pause    time.Duration `json:"pause,omitempty"`
}

// Gather describes an input collection.
type Gather struct {
	Input     InputMode     `json:"input"`
	Timeout   time.Duration `json:"timeout,omitempty"`
	MaxLength int           `json:"max_length,omitempty"`
}

// Dial describes a call transfer.
type Dial struct {
	Destination string        `json:"destination"`
	Timeout     time.Duration `json:"timeout,omitempty"`
}

// RecordSpec describes a recording.
type RecordSpec struct {
	MaxLength   time.Duration `json:"max_length,omitempty"`
	FinishOnKey string        `json:"finish_on_key,omitempty"`
}

// Instruction is the outbound response for one carrier callback.
type Instruction struct {
	Kind   InstructionKind `json:"kind"`
	Speech []Speech        `json:"speech,omitempty"`
	Gather *Gather         `json:"gather,omitempty"`
	Dial   *Dial           `json:"dial,omitempty"`
	Record *RecordSpec     `json:"record,omitempty"`
}

// Say appends spoken text.
func (i *Instruction) Say(text, voice, language string) {
	if text == "" {
		return
	}
	i.Speech = append(i.Speech, Speech{Text: text, Voice: voice, Language: language})
}

// Silence appends a pause.
func (i *Instruction) Silence(d time.Duration) {
	if d <= 0 {
		return
	}
	i.Speech = append(i.Speech, Speech{Pause: d})
}

// FallbackMessage is spoken whenever a call cannot be continued.
const FallbackMessage = "We're sorry, an application error has occurred. Please try your call again later. Goodbye."

// UnavailableMessage is spoken when the dialed number has no active flow.
const UnavailableMessage = "We're sorry, this service is currently unavailable. Please try again later. Goodbye."

// FallbackInstruction is the safe terminal response: an apology then hangup.
func FallbackInstruction() Instruction {
	return Instruction{
		Kind:   InstructionHangup,
		Speech: []Speech{{Text: FallbackMessage}},
	}
}

// UnavailableInstruction answers calls to numbers without a route.
func UnavailableInstruction() Instruction {
	return Instruction{
		Kind:   InstructionHangup,
		Speech: []Speech{{Text: UnavailableMessage}},
	}
}
