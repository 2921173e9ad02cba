// Package calendar combines event sources into one event set.
package calendar

import (
	"context"
	"time"

	"vaultcal/internal/event"
	appLog "vaultcal/internal/log"
)

// Range is a half-open time window [Start, End).
type Range struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether [start, end] intersects r. A zero end is treated
// as an instant at start.
func (r Range) Overlaps(start, end time.Time) bool {
	if end.IsZero() || end.Before(start) {
		end = start
	}
	if !start.Before(r.End) {
		return false
	}
	return end.After(r.Start) || !start.Before(r.Start)
}

// Source yields the events of one origin.
type Source interface {
	Name() string
	Events(ctx context.Context, r Range) ([]event.Event, error)
}

// LoadResult is the outcome of one aggregation.
type LoadResult struct {
	Events *event.Set
	// Failed maps source names to the error that made them skip.
	Failed map[string]error
	// Duplicates lists combined ids dropped because an earlier source
	// already produced them.
	Duplicates []string
}

// Aggregator loads every source into one event.Set.
type Aggregator struct {
	sources []Source
}

func NewAggregator(sources ...Source) *Aggregator {
	return &Aggregator{sources: sources}
}

func (a *Aggregator) Sources() []Source {
	return append([]Source(nil), a.sources...)
}

// Load queries each source in order. A failing source is logged and
// skipped; the other sources still load.
func (a *Aggregator) Load(ctx context.Context, r Range) LoadResult {
	res := LoadResult{
		Events: event.NewSet(),
		Failed: make(map[string]error),
	}

	for _, src := range a.sources {
		events, err := src.Events(ctx, r)
		if err != nil {
			res.Failed[src.Name()] = err
			appLog.Error("calendar: source failed", err, "source", src.Name())
			continue
		}
		for _, ev := range events {
			if err := res.Events.Add(ev); err != nil {
				res.Duplicates = append(res.Duplicates, event.CombinedID(ev))
				appLog.Error("calendar: duplicate event dropped", err, "source", src.Name())
			}
		}
		appLog.Debug("calendar: source loaded", "source", src.Name(), "count", len(events))
	}

	appLog.Info("calendar: load completed",
		"sources", len(a.sources),
		"events", res.Events.Len(),
		"failed", len(res.Failed),
		"duplicates", len(res.Duplicates),
	)
	return res
}
