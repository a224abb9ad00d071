// Package dto holds the on-disk shape of flow documents.
package dto

// FlowDocument is a flow as written in YAML or JSON.
// Nodes stay loosely typed until their "type" field selects a body.
type FlowDocument struct {
	ID      string           `json:"id" yaml:"id"`
	Name    string           `json:"name" yaml:"name"`
	Numbers []string         `json:"numbers" yaml:"numbers"`
	Voice   string           `json:"voice" yaml:"voice"`
	Lang    string           `json:"language" yaml:"language"`
	Nodes   []map[string]any `json:"nodes" yaml:"nodes"`
	Edges   []EdgeDocument   `json:"edges" yaml:"edges"`
}

// EdgeDocument is a declared edge.
type EdgeDocument struct {
	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`
}

// NodeHeader is decoded first to pick the body type.
type NodeHeader struct {
	ID   string `mapstructure:"id"`
	Type string `mapstructure:"type"`
}

type SayBody struct {
	Text        string `mapstructure:"text"`
	Voice       string `mapstructure:"voice"`
	Next        string `mapstructure:"next"`
	ExpectInput bool   `mapstructure:"expect_input"`
}

type CollectBody struct {
	Prompt    string `mapstructure:"prompt"`
	Voice     string `mapstructure:"voice"`
	Timeout   string `mapstructure:"timeout"`
	MaxLength int    `mapstructure:"max_length"`
	Input     string `mapstructure:"input"`
	Variable  string `mapstructure:"save_to"`
	Next      string `mapstructure:"next"`
}

type MatchBody struct {
	Value  string `mapstructure:"value"`
	Target string `mapstructure:"target"`
}

type DecisionBody struct {
	Variable string      `mapstructure:"variable"`
	Matches  []MatchBody `mapstructure:"matches"`
	Default  string      `mapstructure:"default"`
}

type TransferBody struct {
	Text        string `mapstructure:"text"`
	Voice       string `mapstructure:"voice"`
	Destination string `mapstructure:"destination"`
	Timeout     string `mapstructure:"timeout"`
	Next        string `mapstructure:"next"`
}

type RecordBody struct {
	Prompt      string `mapstructure:"prompt"`
	Voice       string `mapstructure:"voice"`
	MaxLength   string `mapstructure:"max_length"`
	FinishOnKey string `mapstructure:"finish_on_key"`
	Variable    string `mapstructure:"save_to"`
	Next        string `mapstructure:"next"`
}

type PauseBody struct {
	Length string `mapstructure:"length"`
	Next   string `mapstructure:"next"`
}

type EndBody struct {
	Text   string `mapstructure:"text"`
	Voice  string `mapstructure:"voice"`
	Hangup *bool  `mapstructure:"hangup"`
}
