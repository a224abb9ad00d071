// Package compiler turns flow documents (YAML or JSON) into domain flow graphs.
package compiler

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aretw0/dialtone/internal/dto"
	"github.com/aretw0/dialtone/pkg/domain"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Flow is a compiled document: the graph plus its deployment hints.
type Flow struct {
	Graph   *domain.FlowGraph
	Numbers []string
	Voice   domain.VoiceSettings
	Source  string
}

// Parser converts raw documents into flows.
type Parser struct{}

// NewParser creates a new parser instance.
func NewParser() *Parser {
	return &Parser{}
}

// Parse decodes data as JSON when it looks like JSON, YAML otherwise.
// The returned graph is not validated.
func (p *Parser) Parse(data []byte) (*Flow, error) {
	var doc dto.FlowDocument
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "{") {
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse flow json: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse flow yaml: %w", err)
		}
	}
	return p.Compile(doc)
}

// Compile builds a flow from an already decoded document.
func (p *Parser) Compile(doc dto.FlowDocument) (*Flow, error) {
	if strings.TrimSpace(doc.ID) == "" {
		return nil, fmt.Errorf("flow missing id")
	}

	nodes := make([]domain.Node, 0, len(doc.Nodes))
	for i, raw := range doc.Nodes {
		n, err := decodeNode(raw)
		if err != nil {
			return nil, fmt.Errorf("flow %s: node #%d: %w", doc.ID, i, err)
		}
		nodes = append(nodes, n)
	}

	edges := make([]domain.Edge, 0, len(doc.Edges))
	for _, e := range doc.Edges {
		edges = append(edges, domain.Edge{From: e.From, To: e.To})
	}

	numbers := make([]string, 0, len(doc.Numbers))
	for _, n := range doc.Numbers {
		if norm := domain.NormalizeNumber(n); norm != "" {
			numbers = append(numbers, norm)
		}
	}

	return &Flow{
		Graph:   domain.NewFlowGraph(doc.ID, 0, doc.Name, nodes, edges),
		Numbers: numbers,
		Voice:   domain.VoiceSettings{Voice: doc.Voice, Language: doc.Lang},
	}, nil
}

// LoadFile parses a single flow document from disk.
func LoadFile(path string) (*Flow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read flow: %w", err)
	}
	flow, err := NewParser().Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	flow.Source = path
	return flow, nil
}

// LoadDir parses every .yaml, .yml and .json file directly under dir, sorted by name.
func LoadDir(dir string) ([]*Flow, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read flows directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !IsFlowFile(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	flows := make([]*Flow, 0, len(names))
	for _, name := range names {
		flow, err := LoadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		flows = append(flows, flow)
	}
	return flows, nil
}

// IsFlowFile reports whether name has a flow document extension.
func IsFlowFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml", ".json":
		return true
	}
	return false
}

func decodeNode(raw map[string]any) (domain.Node, error) {
	var h dto.NodeHeader
	if err := decode(raw, &h); err != nil {
		return nil, err
	}
	if h.ID == "" {
		return nil, fmt.Errorf("node missing id")
	}

	switch domain.NodeKind(strings.ToLower(h.Type)) {
	case domain.KindSay:
		var b dto.SayBody
		if err := decode(raw, &b); err != nil {
			return nil, fmt.Errorf("say %s: %w", h.ID, err)
		}
		return &domain.Say{ID: h.ID, Text: b.Text, Voice: b.Voice, Next: b.Next, ExpectInput: b.ExpectInput}, nil

	case domain.KindCollect:
		var b dto.CollectBody
		if err := decode(raw, &b); err != nil {
			return nil, fmt.Errorf("collect %s: %w", h.ID, err)
		}
		timeout, err := parseDuration(b.Timeout)
		if err != nil {
			return nil, fmt.Errorf("collect %s: timeout: %w", h.ID, err)
		}
		return &domain.Collect{
			ID: h.ID, Prompt: b.Prompt, Voice: b.Voice, Timeout: timeout,
			MaxLength: b.MaxLength, Input: parseInput(b.Input), Variable: b.Variable, Next: b.Next,
		}, nil

	case domain.KindDecision:
		var b dto.DecisionBody
		if err := decode(raw, &b); err != nil {
			return nil, fmt.Errorf("decision %s: %w", h.ID, err)
		}
		matches := make([]domain.Match, 0, len(b.Matches))
		for _, m := range b.Matches {
			matches = append(matches, domain.Match{Value: m.Value, Target: m.Target})
		}
		return &domain.Decision{ID: h.ID, Variable: b.Variable, Matches: matches, Default: b.Default}, nil

	case domain.KindTransfer:
		var b dto.TransferBody
		if err := decode(raw, &b); err != nil {
			return nil, fmt.Errorf("transfer %s: %w", h.ID, err)
		}
		timeout, err := parseDuration(b.Timeout)
		if err != nil {
			return nil, fmt.Errorf("transfer %s: timeout: %w", h.ID, err)
		}
		return &domain.Transfer{
			ID: h.ID, Text: b.Text, Voice: b.Voice, Destination: b.Destination, Timeout: timeout, Next: b.Next,
		}, nil

	case domain.KindRecord:
		var b dto.RecordBody
		if err := decode(raw, &b); err != nil {
			return nil, fmt.Errorf("record %s: %w", h.ID, err)
		}
		maxLen, err := parseDuration(b.MaxLength)
		if err != nil {
			return nil, fmt.Errorf("record %s: max_length: %w", h.ID, err)
		}
		return &domain.Record{
			ID: h.ID, Prompt: b.Prompt, Voice: b.Voice, MaxLength: maxLen,
			FinishOnKey: b.FinishOnKey, Variable: b.Variable, Next: b.Next,
		}, nil

	case domain.KindPause:
		var b dto.PauseBody
		if err := decode(raw, &b); err != nil {
			return nil, fmt.Errorf("pause %s: %w", h.ID, err)
		}
		length, err := parseDuration(b.Length)
		if err != nil {
			return nil, fmt.Errorf("pause %s: length: %w", h.ID, err)
		}
		return &domain.Pause{ID: h.ID, Length: length, Next: b.Next}, nil

	case domain.KindEnd:
		var b dto.EndBody
		if err := decode(raw, &b); err != nil {
			return nil, fmt.Errorf("end %s: %w", h.ID, err)
		}
		hangup := true
		if b.Hangup != nil {
			hangup = *b.Hangup
		}
		return &domain.End{ID: h.ID, Text: b.Text, Voice: b.Voice, Hangup: hangup}, nil
	}
	return nil, fmt.Errorf("node %s: unknown type %q", h.ID, h.Type)
}

// decode maps a loosely typed node onto a body struct.
// Numbers written as strings (and vice versa) are accepted.
func decode(raw map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(raw)
}

// parseDuration accepts Go durations ("5s", "1m30s") or bare seconds ("5").
func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	return time.ParseDuration(s)
}

func parseInput(s string) domain.InputMode {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "":
		return ""
	case "dtmf", "digits", "keypad":
		return domain.InputDTMF
	case "speech", "voice":
		return domain.InputSpeech
	case "any", "both", "dtmf speech", "speech dtmf":
		return domain.InputAny
	}
	return domain.InputMode(s)
}
