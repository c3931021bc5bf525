package logging

import "time"

// #region provenance-entry
// ProvenanceEntry is a single row in the provenance_log table: one question
// written to a dataset file.
type ProvenanceEntry struct {
	RunID         string
	TemplateClass string
	TemplateIndex int
	GroupType     string
	GroupIndex    int
	Question      string
	AnswersJSON   string
	Decision      string // "accept" | "reject"
	Reason        string
	CreatedAt     time.Time
}

// #endregion provenance-entry

// #region options
// Options selects the logger level and encoding.
type Options struct {
	Verbose bool // debug level
	JSON    bool // JSON encoding instead of console
}

// #endregion options
