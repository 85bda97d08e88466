// Package merge turns per-source event streams into one deduplicated,
// visibility-filtered output calendar.
package merge

import (
	"strings"
	"time"

	"scoutcal/internal/event"
	appLog "scoutcal/internal/log"
)

// optieTag marks speculative ("option") events in the source feeds.
// Matching is case-insensitive on the normalized summary.
const optieTag = "[optie]"

// Source is one upstream feed with its already-parsed events, in feed
// order.
type Source struct {
	Name   string
	Emoji  string
	Events []event.Event
}

// Metadata is the display metadata of the output calendar.
type Metadata struct {
	Name        string
	Description string
	Timezone    string
}

// Merged is the assembled output calendar. It is built from scratch on
// every run and never mutated afterwards.
type Merged struct {
	Meta        Metadata
	GeneratedAt time.Time
	Events      []event.Event

	// Examined counts every event seen across all sources, Retained
	// the ones that made it into the output.
	Examined int
	Retained int
}

// Merge combines the given sources into one calendar.
//
// Source order and per-source event order are both significant: on a
// duplicate dedup key the first-seen event wins, so callers control
// precedence through ordering (typically configuration order). Events
// tagged [optie] are skipped entirely unless includeOpties is set;
// skipped events do not claim their dedup key.
//
// The only failure mode is an invalid visibility level.
func Merge(sources []Source, level Level, meta Metadata, includeOpties bool) (*Merged, error) {
	m := &Merged{
		Meta:        meta,
		GeneratedAt: time.Now().UTC(),
	}

	seen := make(map[string]struct{})

	for _, src := range sources {
		appLog.Debug("merging source", "source", src.Name, "events", len(src.Events))

		for _, ev := range src.Events {
			m.Examined++

			summary := strings.ToLower(event.NormText(ev.Summary))
			if strings.Contains(summary, optieTag) && !includeOpties {
				appLog.Debug("skipping [optie] event", "summary", ev.Summary)
				continue
			}

			key := Key(ev)
			if _, dup := seen[key]; dup {
				appLog.Debug("skipping duplicate event", "key", key)
				continue
			}
			seen[key] = struct{}{}

			filtered, err := Filter(ev, level, src.Name, src.Emoji)
			if err != nil {
				return nil, err
			}

			m.Events = append(m.Events, filtered)
			m.Retained++
		}
	}

	appLog.Info("merge completed", "examined", m.Examined, "retained", m.Retained, "visibility", level)
	return m, nil
}
