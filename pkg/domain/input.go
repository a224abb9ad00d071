package domain

import "strings"

// Input is what the carrier reported back for the node awaiting a callback.
type Input struct {
	Speech       string `json:"speech,omitempty"`
	Digits       string `json:"digits,omitempty"`
	RecordingURL string `json:"recording_url,omitempty"`
	DialStatus   string `json:"dial_status,omitempty"`
}

// Value returns the caller's answer, preferring recognized speech over keypad digits.
func (i Input) Value() string {
	if s := strings.TrimSpace(i.Speech); s != "" {
		return s
	}
	return strings.TrimSpace(i.Digits)
}

// Empty reports whether the callback carried nothing.
func (i Input) Empty() bool {
	return i.Value() == "" && i.RecordingURL == "" && i.DialStatus == ""
}
