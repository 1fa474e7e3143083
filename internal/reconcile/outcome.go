package reconcile

import (
	"log/slog"
)

// Outcome is the result of reconciling one item.
type Outcome int

const (
	OutcomeNoChange Outcome = iota
	OutcomeUpdated
	OutcomeSkippedIncomplete
	OutcomeSkippedCollision
	OutcomeSkippedMissingFolder
	OutcomeSkippedRenameFailed
	OutcomeError
	// OutcomePlanned is reported in dry-run mode when a rename was computed
	// but not performed.
	OutcomePlanned
)

var outcomeNames = map[Outcome]string{
	OutcomeNoChange:             "no_change",
	OutcomeUpdated:              "updated",
	OutcomeSkippedIncomplete:    "skipped_incomplete",
	OutcomeSkippedCollision:     "skipped_collision",
	OutcomeSkippedMissingFolder: "skipped_missing_folder",
	OutcomeSkippedRenameFailed:  "skipped_rename_failed",
	OutcomeError:                "error",
	OutcomePlanned:              "planned",
}

func (o Outcome) String() string {
	if name, ok := outcomeNames[o]; ok {
		return name
	}
	return "unknown"
}

// Skipped reports whether the outcome is one of the skip outcomes.
func (o Outcome) Skipped() bool {
	switch o {
	case OutcomeSkippedIncomplete, OutcomeSkippedCollision, OutcomeSkippedMissingFolder, OutcomeSkippedRenameFailed:
		return true
	default:
		return false
	}
}

// Result describes what happened to one item.
type Result struct {
	ItemID  int64
	Title   string
	Outcome Outcome
	OldPath string
	NewPath string
	// Forced is set when the remote record was updated although the rename failed.
	Forced bool
	Err    error
}

// Stats aggregates the results of a pass.
type Stats struct {
	Processed int
	Updated   int
	Skipped   int
	Errored   int
	ByOutcome map[Outcome]int
}

// Add records one result.
func (s *Stats) Add(r Result) {
	if s.ByOutcome == nil {
		s.ByOutcome = make(map[Outcome]int)
	}

	s.Processed++
	s.ByOutcome[r.Outcome]++

	switch {
	case r.Outcome == OutcomeUpdated:
		s.Updated++
	case r.Outcome == OutcomeError:
		s.Errored++
	case r.Outcome.Skipped():
		s.Skipped++
	}
}

// Count returns the number of results with outcome o.
func (s Stats) Count(o Outcome) int {
	return s.ByOutcome[o]
}

// LogValue renders the stats as a log group.
func (s Stats) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Int("processed", s.Processed),
		slog.Int("updated", s.Updated),
		slog.Int("skipped", s.Skipped),
		slog.Int("errored", s.Errored),
	}
	for o := OutcomeNoChange; o <= OutcomePlanned; o++ {
		if n := s.ByOutcome[o]; n > 0 {
			attrs = append(attrs, slog.Int(o.String(), n))
		}
	}
	return slog.GroupValue(attrs...)
}
