package domain

import (
	"strings"
	"time"
)

// VoiceSettings selects the text-to-speech voice for a route.
type VoiceSettings struct {
	Voice    string `json:"voice,omitempty" yaml:"voice,omitempty"`
	Language string `json:"language,omitempty" yaml:"language,omitempty"`
}

// RouteEntry binds a phone number to a deployed flow.
type RouteEntry struct {
	Number    string        `json:"number"`
	FlowID    string        `json:"flow_id"`
	FlowName  string        `json:"flow_name"`
	Voice     VoiceSettings `json:"voice"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// NormalizeNumber strips formatting characters from a phone number.
// A leading '+' is preserved.
func NormalizeNumber(number string) string {
	number = strings.TrimSpace(number)
	var sb strings.Builder
	for i, r := range number {
		switch {
		case r >= '0' && r <= '9':
			sb.WriteRune(r)
		case r == '+' && i == 0:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// CallStatus is the carrier-reported state of a call.
type CallStatus string

const (
	CallRinging    CallStatus = "ringing"
	CallAnswered   CallStatus = "answered"
	CallCompleted  CallStatus = "completed"
	CallFailed     CallStatus = "failed"
	CallBusy       CallStatus = "busy"
	CallNoAnswer   CallStatus = "no-answer"
	CallCanceled   CallStatus = "canceled"
	CallStatusNone CallStatus = ""
)

// ParseCallStatus maps carrier spellings onto CallStatus.
// Unknown values are returned verbatim (lower-cased).
func ParseCallStatus(raw string) CallStatus {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch s {
	case "in-progress", "in_progress", "answered":
		return CallAnswered
	case "no_answer", "noanswer", "no-answer":
		return CallNoAnswer
	case "cancelled", "canceled":
		return CallCanceled
	case "queued", "initiated", "ringing":
		return CallRinging
	}
	return CallStatus(s)
}

// IsTerminal reports whether the status ends the call.
func (s CallStatus) IsTerminal() bool {
	switch s {
	case CallCompleted, CallFailed, CallBusy, CallNoAnswer, CallCanceled:
		return true
	}
	return false
}
