package engine

import (
	"ddl-alterator/internal/catalog"
	"ddl-alterator/internal/compat"
	"ddl-alterator/internal/diff"
)

// Status is the terminal state of one table.
type Status string

const (
	StatusSkipped   Status = "skipped"
	StatusNew       Status = "new"
	StatusIdentical Status = "identical"
	StatusSuccess   Status = "success"
	StatusError     Status = "error"
)

// SkipReason tells why a table was skipped.
type SkipReason string

const (
	FormatError       SkipReason = "FormatError"
	NonCreateError    SkipReason = "NonCreateError"
	ValidationError   SkipReason = "ValidationError"
	PartitionMismatch SkipReason = "PartitionMismatch"
	IncompatibleType  SkipReason = "IncompatibleType"
	SequenceMismatch  SkipReason = "SequenceMismatch"
)

const (
	FromDDL     = "DDL"
	FromCatalog = "CATALOG"
)

// Details carries the column level detail reported with an outcome.
type Details struct {
	Compatible   []compat.TypeChange `json:"compatible,omitempty"`
	Incompatible []compat.TypeChange `json:"incompatible,omitempty"`
	Add          []catalog.Column    `json:"add,omitempty"`
	Delete       []catalog.Column    `json:"delete,omitempty"`
	Rename       []catalog.Rename    `json:"rename,omitempty"`
	Positions    []catalog.Move      `json:"positions,omitempty"`
	Problems     []string            `json:"problems,omitempty"`
}

// Outcome is the result of processing one DDL file. Status selects which of
// the remaining fields are meaningful.
type Outcome struct {
	File   string `json:"file"`
	Table  string `json:"table_name,omitempty"`
	Status Status `json:"status"`

	// skipped
	Reason   SkipReason `json:"reason,omitempty"`
	RuleType string     `json:"type,omitempty"`
	From     string     `json:"from,omitempty"`

	// success
	PreviousVersion string `json:"previous_version,omitempty"`
	CurrentVersion  string `json:"current_version,omitempty"`

	// error
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`

	Details *Details     `json:"details,omitempty"`
	Result  *diff.Result `json:"result,omitempty"`
}

type Stats struct {
	Analyzed  int `json:"num_tables_analyzed"`
	Updates   int `json:"num_updates"`
	Skipped   int `json:"num_skipped"`
	New       int `json:"num_new"`
	Errored   int `json:"num_errored"`
	Identical int `json:"num_identical"`
}

// Summary is the folded result of a batch.
type Summary struct {
	Validation bool      `json:"validation"`
	Force      bool      `json:"force"`
	Stats      Stats     `json:"stats"`
	Skipped    []Outcome `json:"skipped,omitempty"`
	New        []Outcome `json:"new,omitempty"`
	Success    []Outcome `json:"success,omitempty"`
	Errored    []Outcome `json:"errored,omitempty"`
	Identical  []Outcome `json:"identical,omitempty"`
}

// Add folds one outcome into the summary.
func (s *Summary) Add(o Outcome) {
	s.Stats.Analyzed++
	switch o.Status {
	case StatusSkipped:
		s.Stats.Skipped++
		s.Skipped = append(s.Skipped, o)
	case StatusNew:
		s.Stats.New++
		s.New = append(s.New, o)
	case StatusIdentical:
		s.Stats.Identical++
		s.Identical = append(s.Identical, o)
	case StatusSuccess:
		s.Stats.Updates++
		s.Success = append(s.Success, o)
	default:
		s.Stats.Errored++
		s.Errored = append(s.Errored, o)
	}
}

// Report wraps the summary the way results are published.
type Report struct {
	ResponseMetadata *Summary `json:"ResponseMetadata"`
}
