// Package syncer drives the per-view sync runs: fetch every configured
// source, merge, and atomically persist the output calendar.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"scoutcal/internal/config"
	"scoutcal/internal/event"
	"scoutcal/internal/fileutil"
	"scoutcal/internal/ics"
	appLog "scoutcal/internal/log"
	"scoutcal/internal/merge"
)

// Status classifies the outcome of one view's sync.
type Status string

const (
	// StatusSynced means the output file was written.
	StatusSynced Status = "synced"
	// StatusSkipped means no output was produced: either the view has
	// no sources, or none of them could be fetched. The previous
	// output file, if any, is left untouched.
	StatusSkipped Status = "skipped"
	// StatusFailed means the merge or the write failed.
	StatusFailed Status = "failed"
)

// ViewResult is the outcome of syncing one view.
type ViewResult struct {
	Name     string
	Output   string
	Status   Status
	Examined int
	Retained int
	Err      error
}

// Summary aggregates the outcomes of a full run.
type Summary struct {
	Views   []ViewResult
	Synced  int
	Skipped int
	Failed  int
}

// OK reports whether no view failed. Skipped views degrade the run but
// do not fail it.
func (s Summary) OK() bool {
	return s.Failed == 0
}

func (s *Summary) add(res ViewResult) {
	s.Views = append(s.Views, res)
	switch res.Status {
	case StatusSynced:
		s.Synced++
	case StatusSkipped:
		s.Skipped++
	case StatusFailed:
		s.Failed++
	}
}

// Runner owns one sync pipeline over a loaded configuration.
type Runner struct {
	cfg     *config.Config
	fetcher *ics.Fetcher
}

// New creates a Runner for the given configuration.
func New(cfg *config.Config) *Runner {
	timeout := time.Duration(cfg.Sync.TimeoutSeconds) * time.Second
	return &Runner{
		cfg:     cfg,
		fetcher: ics.NewFetcher(cfg.Sync.CacheDir, timeout),
	}
}

// Run syncs every configured view. Views are independent: a failure in
// one never aborts the others.
func (r *Runner) Run(ctx context.Context) Summary {
	var summary Summary
	for _, cal := range r.cfg.Calendars {
		summary.add(r.syncView(ctx, cal))
	}

	appLog.Info("sync run complete",
		"synced", summary.Synced,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
	)
	return summary
}

// RunOne syncs a single view by name.
func (r *Runner) RunOne(ctx context.Context, name string) (Summary, error) {
	cal, ok := r.cfg.FindCalendar(name)
	if !ok {
		return Summary{}, fmt.Errorf("calendar %q not found in config", name)
	}

	var summary Summary
	summary.add(r.syncView(ctx, cal))
	return summary, nil
}

func (r *Runner) syncView(ctx context.Context, cal config.CalendarConfig) ViewResult {
	res := ViewResult{Name: cal.Name, Output: cal.Output}

	appLog.Info("syncing calendar",
		"calendar", cal.Name,
		"output", cal.Output,
		"visibility", cal.Visibility,
		"include_opties", cal.IncludeOpties,
		"sources", len(cal.Sources),
	)

	level, err := merge.ParseLevel(cal.Visibility)
	if err != nil {
		res.Status = StatusFailed
		res.Err = err
		appLog.Error("invalid calendar config", err, "calendar", cal.Name)
		return res
	}

	if len(cal.Sources) == 0 {
		res.Status = StatusSkipped
		appLog.Info("no sources configured, skipping", "calendar", cal.Name)
		return res
	}

	sources := r.fetchSources(ctx, cal)
	if len(sources) == 0 {
		res.Status = StatusSkipped
		res.Err = errors.New("no sources could be fetched")
		appLog.Error("no sources could be fetched, skipping", res.Err, "calendar", cal.Name)
		return res
	}

	merged, err := merge.Merge(sources, level, merge.Metadata{
		Name:        cal.Metadata.CalName,
		Description: cal.Metadata.Description,
		Timezone:    cal.Metadata.Timezone,
	}, cal.IncludeOpties)
	if err != nil {
		res.Status = StatusFailed
		res.Err = err
		appLog.Error("merge failed", err, "calendar", cal.Name)
		return res
	}
	res.Examined = merged.Examined
	res.Retained = merged.Retained

	if err := os.MkdirAll(r.cfg.Server.OutputDir, 0o755); err != nil {
		res.Status = StatusFailed
		res.Err = err
		return res
	}

	outPath := filepath.Join(r.cfg.Server.OutputDir, cal.Output)
	if err := fileutil.WriteAtomic(outPath, merged.Bytes()); err != nil {
		res.Status = StatusFailed
		res.Err = err
		appLog.Error("write failed", err, "calendar", cal.Name, "path", outPath)
		return res
	}

	res.Status = StatusSynced
	appLog.Info("calendar synced", "calendar", cal.Name, "path", outPath, "retained", res.Retained)
	return res
}

// fetchSources fetches and parses every source of a view with a bounded
// worker pool. Failed sources are logged and dropped; the survivors
// keep their configuration order, which the merge relies on for
// first-seen-wins precedence.
func (r *Runner) fetchSources(ctx context.Context, cal config.CalendarConfig) []merge.Source {
	type outcome struct {
		src    ics.Source
		events []event.Event
		err    error
	}

	outcomes := make([]outcome, len(cal.Sources))
	sem := make(chan struct{}, r.cfg.Sync.MaxParallel)
	var wg sync.WaitGroup

	for i, sc := range cal.Sources {
		src := ics.Source{Name: sc.Name, Emoji: sc.Emoji, URL: sc.URL.String()}
		if src.URL == "" {
			outcomes[i] = outcome{src: src, err: errors.New("source has no URL")}
			continue
		}

		wg.Add(1)
		go func(i int, src ics.Source) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			fetched, err := r.fetcher.FetchOne(ctx, src)
			if err != nil {
				outcomes[i] = outcome{src: src, err: err}
				return
			}

			events, err := ics.ParseICS(src, fetched.Body)
			outcomes[i] = outcome{src: src, events: events, err: err}
		}(i, src)
	}
	wg.Wait()

	sources := make([]merge.Source, 0, len(outcomes))
	for _, o := range outcomes {
		if o.err != nil {
			appLog.Error("source excluded from run", o.err, "calendar", cal.Name, "source", o.src.Name)
			continue
		}
		sources = append(sources, merge.Source{
			Name:   o.src.Name,
			Emoji:  o.src.Emoji,
			Events: o.events,
		})
	}
	return sources
}
