package calendar

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"vaultcal/internal/event"
	appLog "vaultcal/internal/log"
)

// WindowFunc returns the range to load for a refresh started at now.
type WindowFunc func(now time.Time) Range

// DaysWindow loads backfill days before now and horizon days after it.
func DaysWindow(backfill, horizon int, loc *time.Location) WindowFunc {
	if loc == nil {
		loc = time.Local
	}
	return func(now time.Time) Range {
		now = now.In(loc)
		day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
		return Range{
			Start: day.AddDate(0, 0, -backfill),
			End:   day.AddDate(0, 0, horizon+1),
		}
	}
}

// Refresher keeps the latest aggregate in memory and reloads it on a cron
// schedule.
type Refresher struct {
	agg    *Aggregator
	window WindowFunc
	now    func() time.Time

	mu        sync.RWMutex
	snapshot  LoadResult
	loadedAt  time.Time
	loadRange Range

	cron *cron.Cron
}

func NewRefresher(agg *Aggregator, window WindowFunc) *Refresher {
	return &Refresher{
		agg:    agg,
		window: window,
		now:    time.Now,
		snapshot: LoadResult{
			Events: event.NewSet(),
			Failed: map[string]error{},
		},
	}
}

// Refresh reloads all sources synchronously.
func (r *Refresher) Refresh(ctx context.Context) LoadResult {
	now := r.now()
	rng := r.window(now)
	res := r.agg.Load(ctx, rng)

	r.mu.Lock()
	r.snapshot = res
	r.loadedAt = now
	r.loadRange = rng
	r.mu.Unlock()

	return res
}

// Snapshot returns the last loaded result and its range.
func (r *Refresher) Snapshot() (LoadResult, Range, time.Time) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshot, r.loadRange, r.loadedAt
}

// Start runs Refresh on spec until ctx is canceled. spec uses the standard
// five-field cron syntax.
func (r *Refresher) Start(ctx context.Context, spec string) error {
	c := cron.New(cron.WithLocation(time.Local))
	_, err := c.AddFunc(spec, func() {
		appLog.Info("calendar: scheduled refresh")
		r.Refresh(ctx)
	})
	if err != nil {
		return fmt.Errorf("calendar: invalid refresh schedule %q: %w", spec, err)
	}

	r.mu.Lock()
	r.cron = c
	r.mu.Unlock()

	c.Start()
	go func() {
		<-ctx.Done()
		stopCtx := c.Stop()
		<-stopCtx.Done()
		appLog.Info("calendar: refresh scheduler stopped")
	}()
	return nil
}
