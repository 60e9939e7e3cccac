package controller

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/multierr"

	"github.com/yuriy-kovalchuk/yk-blocklist-sync/internal/dns"
)

// Status is the outcome of one pipeline stage.
type Status string

const (
	StatusOK      Status = "ok"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// StageResult records what happened in one stage.
type StageResult struct {
	Stage    string
	Status   Status
	Err      error
	Duration time.Duration
}

// Report summarizes one run.
type Report struct {
	RunID    string
	ListName string
	ListID   int64 // id of the recreated list, 0 if unknown
	Added    int   // hostnames accepted by the service
	Total    int   // hostnames read from the import
	Stages   []StageResult
	Elapsed  time.Duration
}

// Stage returns the result for name.
func (r *Report) Stage(name string) (StageResult, bool) {
	for _, s := range r.Stages {
		if s.Stage == name {
			return s, true
		}
	}
	return StageResult{}, false
}

// Succeeded reports whether every hostname was added and no stage failed.
// A lookup that found no list counts as success, since there is none before
// the first run.
func (r *Report) Succeeded() bool {
	for _, s := range r.Stages {
		if s.Status == StatusFailed && !errors.Is(s.Err, dns.ErrListNotFound) {
			return false
		}
	}
	return r.Added == r.Total
}

// Err combines the errors of all failed stages, or returns nil.
func (r *Report) Err() error {
	var err error
	for _, s := range r.Stages {
		if s.Err != nil {
			err = multierr.Append(err, fmt.Errorf("%s: %w", s.Stage, s.Err))
		}
	}
	return err
}

// FormatReport returns a human-readable summary of a run.
func FormatReport(r *Report) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Blocklist sync %s (run %s)\n", r.ListName, r.RunID)
	for _, s := range r.Stages {
		fmt.Fprintf(&b, "  %-12s %-7s", s.Stage, s.Status)
		if s.Status != StatusSkipped {
			fmt.Fprintf(&b, " %s", s.Duration.Round(time.Millisecond))
		}
		if s.Err != nil {
			hint := ""
			if IsAuthFailure(s.Err) {
				hint = " [authorization]"
			}
			fmt.Fprintf(&b, " error=%v%s", s.Err, hint)
		}
		fmt.Fprintln(&b)
	}
	if r.ListID != 0 {
		fmt.Fprintf(&b, "  list id: %d\n", r.ListID)
	}
	fmt.Fprintf(&b, "  destinations: %d/%d\n", r.Added, r.Total)
	fmt.Fprintf(&b, "  took %.3f minutes\n", r.Elapsed.Minutes())

	return b.String()
}
