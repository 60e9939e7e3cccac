package controller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"

	"github.com/yuriy-kovalchuk/yk-blocklist-sync/internal/config"
	"github.com/yuriy-kovalchuk/yk-blocklist-sync/internal/dns"
	"github.com/yuriy-kovalchuk/yk-blocklist-sync/internal/metrics"
)

// Pipeline stages, in execution order.
const (
	StageAuthenticate = "authenticate"
	StageResolve      = "resolve"
	StageDelete       = "delete"
	StageCreate       = "create"
	StagePopulate     = "populate"
)

// BlocklistReconciler replaces a named destination list with the hostnames
// of one CSV import. Each Reconcile call is one independent run; nothing is
// kept between runs.
type BlocklistReconciler struct {
	Log       logr.Logger
	DNS       dns.Provider
	List      dns.ListSpec
	OnError   string // config.OnErrorContinue or config.OnErrorAbort
	BatchSize int    // hostnames per request, at least 1
	Metrics   *metrics.Recorder
}

// run holds the state threaded through the stages of one Reconcile call.
type run struct {
	log     logr.Logger
	session dns.Session
	oldID   int64
	newID   int64
	report  *Report
}

// Reconcile runs authenticate, resolve, delete, create and populate in order.
// With OnError "continue" every stage runs regardless of earlier failures and
// each failure is logged; with "abort" the first failure skips the rest.
// The outcome of every stage is returned in the Report.
func (r *BlocklistReconciler) Reconcile(ctx context.Context, hostnames []string) *Report {
	start := time.Now()
	report := &Report{RunID: uuid.NewString(), ListName: r.List.Name, Total: len(hostnames)}
	st := &run{
		log:    r.Log.WithValues("run", report.RunID, "list", r.List.Name),
		report: report,
	}

	st.log.Info("starting blocklist sync", "hostnames", len(hostnames))

	stages := []struct {
		name string
		fn   func(context.Context, *run) error
	}{
		{StageAuthenticate, r.authenticate},
		{StageResolve, r.resolve},
		{StageDelete, r.delete},
		{StageCreate, r.create},
		{StagePopulate, func(ctx context.Context, st *run) error { return r.populate(ctx, st, hostnames) }},
	}

	aborted := false
	for _, stage := range stages {
		if aborted {
			r.record(st, StageResult{Stage: stage.name, Status: StatusSkipped})
			continue
		}
		if stage.name == StageDelete && st.oldID == 0 {
			// Nothing to delete when the lookup did not find the list.
			r.record(st, StageResult{Stage: stage.name, Status: StatusSkipped})
			continue
		}

		began := time.Now()
		err := stage.fn(ctx, st)
		res := StageResult{Stage: stage.name, Status: StatusOK, Duration: time.Since(began)}
		if err != nil {
			res.Status = StatusFailed
			res.Err = err
			st.log.Error(err, "stage failed", "stage", stage.name)
			// A missing list is the normal state before the first run, so it
			// never stops the pipeline.
			if r.OnError == config.OnErrorAbort && !errors.Is(err, dns.ErrListNotFound) {
				aborted = true
			}
		}
		r.record(st, res)
	}

	report.ListID = st.newID
	report.Elapsed = time.Since(start)
	r.Metrics.SetAdded(report.Added)
	if report.Succeeded() {
		r.Metrics.MarkSuccess(time.Now())
		st.log.Info("successfully imported all destinations", "listID", report.ListID, "added", report.Added)
	}
	st.log.Info("blocklist sync finished", "minutes", fmt.Sprintf("%.3f", report.Elapsed.Minutes()))
	return report
}

func (r *BlocklistReconciler) record(st *run, res StageResult) {
	st.report.Stages = append(st.report.Stages, res)
	r.Metrics.ObserveStage(res.Stage, string(res.Status))
}

// authenticate stores the bearer token on success. On failure the run keeps
// the empty session, so later calls go out unauthenticated and fail there.
func (r *BlocklistReconciler) authenticate(ctx context.Context, st *run) error {
	s, err := r.DNS.Authenticate(ctx)
	if err != nil {
		return err
	}
	st.session = s
	st.log.Info("successfully pulled access token")
	return nil
}

func (r *BlocklistReconciler) lookup(ctx context.Context, st *run) (dns.DestinationList, error) {
	lists, err := r.DNS.ListDestinationLists(ctx, st.session)
	if err != nil {
		return dns.DestinationList{}, fmt.Errorf("listing destination lists: %w", err)
	}
	return dns.FindList(lists, r.List.Name)
}

func (r *BlocklistReconciler) resolve(ctx context.Context, st *run) error {
	list, err := r.lookup(ctx, st)
	if err != nil {
		return err
	}
	st.oldID = list.ID
	st.log.V(1).Info("resolved existing destination list", "id", list.ID)
	return nil
}

func (r *BlocklistReconciler) delete(ctx context.Context, st *run) error {
	if err := r.DNS.DeleteDestinationList(ctx, st.session, st.oldID); err != nil {
		return fmt.Errorf("deleting destination list %d: %w", st.oldID, err)
	}
	st.log.Info("successfully deleted destination list", "id", st.oldID)
	return nil
}

func (r *BlocklistReconciler) create(ctx context.Context, st *run) error {
	list, err := r.DNS.CreateDestinationList(ctx, st.session, r.List)
	if err != nil {
		return fmt.Errorf("creating destination list: %w", err)
	}
	st.newID = list.ID
	st.log.Info("successfully created destination list", "id", list.ID)
	return nil
}

// populate posts hostnames in order, BatchSize per request. The first
// failing request ends the stage; hostnames after it are not sent.
func (r *BlocklistReconciler) populate(ctx context.Context, st *run, hostnames []string) error {
	if st.newID == 0 {
		// Creation did not report an id; find the list by name instead.
		list, err := r.lookup(ctx, st)
		if err != nil {
			return fmt.Errorf("locating destination list to populate: %w", err)
		}
		st.newID = list.ID
	}

	size := r.BatchSize
	if size < 1 {
		size = 1
	}
	for i := 0; i < len(hostnames); i += size {
		end := min(i+size, len(hostnames))
		if err := r.DNS.AddDestinations(ctx, st.session, st.newID, hostnames[i:end]); err != nil {
			return fmt.Errorf("adding destination %q (%d of %d): %w", hostnames[i], i+1, len(hostnames), err)
		}
		st.report.Added = end
		st.log.V(1).Info("added destinations", "from", i+1, "to", end)
	}
	return nil
}

// PrepareHostnames turns CSV values into the destinations to send. Values
// are kept as read unless opts.Normalize is set. The host part of each value
// is checked; invalid ones are logged and, with opts.SkipInvalid, dropped.
func PrepareHostnames(log logr.Logger, entries []config.Hostname, opts config.ImportConfig) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		normalized := dns.NormalizeHostname(e.Name)
		host, _ := dns.SplitDestination(normalized)
		if !dns.ValidHostname(host) {
			if opts.SkipInvalid {
				log.Info("skipping invalid hostname", "line", e.Line, "value", e.Name)
				continue
			}
			log.Info("hostname does not look valid, sending anyway", "line", e.Line, "value", e.Name)
		}
		if opts.Normalize {
			out = append(out, normalized)
		} else {
			out = append(out, e.Name)
		}
	}
	return out
}

// IsAuthFailure reports whether err stems from a missing or rejected token.
func IsAuthFailure(err error) bool {
	var ae *dns.AuthError
	return errors.As(err, &ae) || dns.IsUnauthorized(err)
}
