// Package markup renders instructions as carrier XML documents.
//
// The vocabulary follows the TwiML conventions most programmable voice
// carriers accept: a <Response> root holding Say, Pause, Gather, Dial, Record,
// Redirect and Hangup verbs.
package markup

import (
	"encoding/xml"
	"fmt"
	"math"
	"time"

	"github.com/aretw0/dialtone/pkg/domain"
)

// ContentType is the media type of every rendered document.
const ContentType = "application/xml; charset=utf-8"

const (
	fallbackDocument = xml.Header + `<Response><Say>` + "We&#39;re sorry, an application error has occurred. Please try your call again later. Goodbye." + `</Say><Hangup></Hangup></Response>`

	unavailableDocument = xml.Header + `<Response><Say>` + "We&#39;re sorry, this service is currently unavailable. Please try again later. Goodbye." + `</Say><Hangup></Hangup></Response>`

	emptyDocument = xml.Header + `<Response></Response>`
)

// Fallback returns the apology-and-hangup document. It never fails.
func Fallback() []byte { return []byte(fallbackDocument) }

// Unavailable returns the document for numbers without a route. It never fails.
func Unavailable() []byte { return []byte(unavailableDocument) }

// Empty returns a document without verbs, used to acknowledge status callbacks.
func Empty() []byte { return []byte(emptyDocument) }

type response struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []any
}

type sayVerb struct {
	XMLName  xml.Name `xml:"Say"`
	Voice    string   `xml:"voice,attr,omitempty"`
	Language string   `xml:"language,attr,omitempty"`
	Text     string   `xml:",chardata"`
}

type pauseVerb struct {
	XMLName xml.Name `xml:"Pause"`
	Length  int      `xml:"length,attr"`
}

type gatherVerb struct {
	XMLName   xml.Name `xml:"Gather"`
	Input     string   `xml:"input,attr"`
	Action    string   `xml:"action,attr,omitempty"`
	Method    string   `xml:"method,attr,omitempty"`
	Timeout   int      `xml:"timeout,attr,omitempty"`
	NumDigits int      `xml:"numDigits,attr,omitempty"`
	Verbs     []any
}

type dialVerb struct {
	XMLName xml.Name `xml:"Dial"`
	Action  string   `xml:"action,attr,omitempty"`
	Method  string   `xml:"method,attr,omitempty"`
	Timeout int      `xml:"timeout,attr,omitempty"`
	Number  string   `xml:",chardata"`
}

type recordVerb struct {
	XMLName     xml.Name `xml:"Record"`
	Action      string   `xml:"action,attr,omitempty"`
	Method      string   `xml:"method,attr,omitempty"`
	MaxLength   int      `xml:"maxLength,attr,omitempty"`
	FinishOnKey string   `xml:"finishOnKey,attr,omitempty"`
}

type redirectVerb struct {
	XMLName xml.Name `xml:"Redirect"`
	Method  string   `xml:"method,attr,omitempty"`
	URL     string   `xml:",chardata"`
}

type hangupVerb struct {
	XMLName xml.Name `xml:"Hangup"`
}

// Renderer builds documents whose callbacks point at ActionURL.
type Renderer struct {
	// ActionURL receives gather, record and dial callbacks (the input webhook).
	ActionURL string
}

// NewRenderer creates a renderer posting callbacks to actionURL.
func NewRenderer(actionURL string) *Renderer {
	return &Renderer{ActionURL: actionURL}
}

// Render dispatches on the instruction kind.
// A document is always returned: render failures yield Fallback.
func (r *Renderer) Render(instr domain.Instruction) []byte {
	var (
		out []byte
		err error
	)
	switch instr.Kind {
	case domain.InstructionSpeak:
		out, err = r.Speak(instr.Speech)
	case domain.InstructionGather:
		out, err = r.SpeakGather(instr.Speech, instr.Gather)
	case domain.InstructionTransfer:
		out, err = r.SpeakTransfer(instr.Speech, instr.Dial)
	case domain.InstructionRecord:
		out, err = r.SpeakRecord(instr.Speech, instr.Record)
	case domain.InstructionHangup:
		out, err = r.SpeakHangup(instr.Speech)
	default:
		err = fmt.Errorf("unknown instruction kind %q", instr.Kind)
	}
	if err != nil || len(out) == 0 {
		return Fallback()
	}
	return out
}

// Speak plays speech and lets the carrier continue.
func (r *Renderer) Speak(speech []domain.Speech) ([]byte, error) {
	return encode(speechVerbs(speech))
}

// SpeakGather plays speech inside an input collection. If the caller stays
// silent the carrier is redirected back to the action URL with no input.
func (r *Renderer) SpeakGather(speech []domain.Speech, g *domain.Gather) ([]byte, error) {
	if g == nil {
		g = &domain.Gather{Input: domain.InputAny}
	}
	input := g.Input
	if input == "" {
		input = domain.InputAny
	}
	gather := gatherVerb{
		Input:     string(input),
		Action:    r.ActionURL,
		Method:    r.method(),
		Timeout:   seconds(g.Timeout),
		NumDigits: g.MaxLength,
		Verbs:     speechVerbs(speech),
	}
	verbs := []any{gather}
	if r.ActionURL != "" {
		verbs = append(verbs, redirectVerb{Method: "POST", URL: r.ActionURL})
	}
	return encode(verbs)
}

// SpeakTransfer plays speech then bridges the caller to d.Destination.
func (r *Renderer) SpeakTransfer(speech []domain.Speech, d *domain.Dial) ([]byte, error) {
	if d == nil || d.Destination == "" {
		return nil, fmt.Errorf("transfer without destination")
	}
	verbs := append(speechVerbs(speech), dialVerb{
		Action:  r.ActionURL,
		Method:  r.method(),
		Timeout: seconds(d.Timeout),
		Number:  d.Destination,
	})
	return encode(verbs)
}

// SpeakRecord plays speech then records the caller.
func (r *Renderer) SpeakRecord(speech []domain.Speech, rec *domain.RecordSpec) ([]byte, error) {
	if rec == nil {
		rec = &domain.RecordSpec{}
	}
	verbs := append(speechVerbs(speech), recordVerb{
		Action:      r.ActionURL,
		Method:      r.method(),
		MaxLength:   seconds(rec.MaxLength),
		FinishOnKey: rec.FinishOnKey,
	})
	return encode(verbs)
}

// SpeakHangup plays speech then ends the call.
func (r *Renderer) SpeakHangup(speech []domain.Speech) ([]byte, error) {
	return encode(append(speechVerbs(speech), hangupVerb{}))
}

func (r *Renderer) method() string {
	if r.ActionURL == "" {
		return ""
	}
	return "POST"
}

func speechVerbs(speech []domain.Speech) []any {
	verbs := make([]any, 0, len(speech))
	for _, s := range speech {
		if s.Text == "" {
			if s.Pause > 0 {
				verbs = append(verbs, pauseVerb{Length: max(1, seconds(s.Pause))})
			}
			continue
		}
		verbs = append(verbs, sayVerb{Voice: s.Voice, Language: s.Language, Text: s.Text})
	}
	return verbs
}

func encode(verbs []any) ([]byte, error) {
	body, err := xml.Marshal(response{Verbs: verbs})
	if err != nil {
		return nil, fmt.Errorf("failed to render markup: %w", err)
	}
	return append([]byte(xml.Header), body...), nil
}

// seconds rounds d up to whole seconds.
func seconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds()))
}
