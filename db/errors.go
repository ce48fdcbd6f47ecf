package db

import "errors"

var (
	// ErrNotFound is returned by edit/delete when no record carries the roll.
	ErrNotFound = errors.New("student not found")
	// ErrDuplicateRoll is only returned when the store rejects duplicate rolls.
	ErrDuplicateRoll = errors.New("roll number already exists")
	// ErrUnencodable means a field holds a line break and cannot be persisted on one line.
	ErrUnencodable = errors.New("field contains a line break")
)

// SkippedEntry describes one persisted entry that did not yield a record.
type SkippedEntry struct {
	Line   int    `json:"line,omitempty"` // 1-based line, row or position; 0 when unknown
	Reason string `json:"reason"`         // Why it was rejected
}

// LoadReport summarises a LoadAll call. Skipped entries are warnings, not errors.
type LoadReport struct {
	Loaded  int            `json:"loaded"`
	Skipped []SkippedEntry `json:"skipped,omitempty"`
}

func (r *LoadReport) skip(line int, reason string) {
	r.Skipped = append(r.Skipped, SkippedEntry{Line: line, Reason: reason})
}
