package http

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/aretw0/dialtone/pkg/domain"
	"github.com/tidwall/gjson"
)

// maxBodySize bounds webhook payloads.
const maxBodySize = 64 << 10

// ErrMissingCallID is returned when a callback does not identify its call.
var ErrMissingCallID = errors.New("webhook: missing call id")

// fields resolves carrier parameters from either a form or a JSON body.
// Each logical field lists the names carriers use for it, first match wins.
type fields struct {
	get func(names ...string) string
}

var (
	callIDNames       = []string{"CallSid", "call_id", "callId", "call.id"}
	fromNames         = []string{"From", "from", "caller", "call.from"}
	toNames           = []string{"To", "to", "called", "call.to"}
	speechNames       = []string{"SpeechResult", "speech", "speech_result", "input.speech"}
	digitsNames       = []string{"Digits", "digits", "dtmf", "input.digits"}
	recordingURLNames = []string{"RecordingUrl", "recording_url", "recordingUrl", "input.recording_url"}
	dialStatusNames   = []string{"DialCallStatus", "dial_status", "dialStatus"}
	statusNames       = []string{"CallStatus", "status", "call_status", "call.status"}
)

func parseFields(r *http.Request) (fields, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	body := http.MaxBytesReader(nil, r.Body, maxBodySize)

	if mediaType == "application/json" {
		raw, err := io.ReadAll(body)
		if err != nil {
			return fields{}, fmt.Errorf("read body: %w", err)
		}
		if len(raw) > 0 && !gjson.ValidBytes(raw) {
			return fields{}, fmt.Errorf("malformed JSON body")
		}
		doc := gjson.ParseBytes(raw)
		return fields{get: func(names ...string) string {
			for _, name := range names {
				if v := doc.Get(name); v.Exists() && v.String() != "" {
					return strings.TrimSpace(v.String())
				}
			}
			return ""
		}}, nil
	}

	r.Body = body
	if err := r.ParseForm(); err != nil {
		return fields{}, fmt.Errorf("parse form: %w", err)
	}
	return fields{get: func(names ...string) string {
		for _, name := range names {
			if v := strings.TrimSpace(r.Form.Get(name)); v != "" {
				return v
			}
		}
		return ""
	}}, nil
}

// ParseCallInitiated reads a call-initiated callback.
func ParseCallInitiated(r *http.Request) (domain.CallInitiated, error) {
	f, err := parseFields(r)
	if err != nil {
		return domain.CallInitiated{}, err
	}
	call := domain.CallInitiated{
		CallID: f.get(callIDNames...),
		From:   f.get(fromNames...),
		To:     f.get(toNames...),
	}
	if call.CallID == "" {
		return call, ErrMissingCallID
	}
	return call, nil
}

// ParseInputReceived reads an input-received callback.
func ParseInputReceived(r *http.Request) (domain.InputReceived, error) {
	f, err := parseFields(r)
	if err != nil {
		return domain.InputReceived{}, err
	}
	in := domain.InputReceived{
		CallID: f.get(callIDNames...),
		Input: domain.Input{
			Speech:       f.get(speechNames...),
			Digits:       f.get(digitsNames...),
			RecordingURL: f.get(recordingURLNames...),
			DialStatus:   f.get(dialStatusNames...),
		},
	}
	if in.CallID == "" {
		return in, ErrMissingCallID
	}
	clean, err := in.Input.Sanitize(domain.DefaultMaxInputSize)
	if err != nil {
		return in, err
	}
	in.Input = clean
	return in, nil
}

// ParseStatusChanged reads a status-changed callback.
func ParseStatusChanged(r *http.Request) (domain.StatusChanged, error) {
	f, err := parseFields(r)
	if err != nil {
		return domain.StatusChanged{}, err
	}
	st := domain.StatusChanged{
		CallID: f.get(callIDNames...),
		Status: domain.ParseCallStatus(f.get(statusNames...)),
	}
	if st.CallID == "" {
		return st, ErrMissingCallID
	}
	return st, nil
}
