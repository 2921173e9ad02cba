package calendar

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vaultcal/internal/event"
	"vaultcal/internal/model"
)

type staticSource struct {
	name   string
	events []event.Event
	err    error
	calls  int
}

func (s *staticSource) Name() string { return s.name }

func (s *staticSource) Events(_ context.Context, _ Range) ([]event.Event, error) {
	s.calls++
	return s.events, s.err
}

func data(t *testing.T, hour int) model.EventFrontmatter {
	t.Helper()
	start := time.Date(2024, 1, 1, hour, 0, 0, 0, time.UTC)
	fm, err := model.NewFrontmatter("ev", start, start.Add(time.Hour), false)
	require.NoError(t, err)
	return fm
}

func TestAggregator_Load(t *testing.T) {
	t.Parallel()

	local := &staticSource{name: "vault", events: []event.Event{
		event.NewLocalEvent("events/a.md", data(t, 9)),
		event.NewLocalEvent("x", data(t, 10)),
	}}
	broken := &staticSource{name: "work-ics", err: errors.New("dns failure")}
	feed := &staticSource{name: "home-ics", events: []event.Event{
		event.NewICSEvent("mirror", data(t, 11), "x"),
		event.NewICSEvent("mirror", data(t, 12), "x"),
	}}

	res := NewAggregator(local, broken, feed).Load(context.Background(), Range{})

	assert.Equal(t, 3, res.Events.Len())
	require.Contains(t, res.Failed, "work-ics")
	assert.Equal(t, []string{"ics:x"}, res.Duplicates)

	_, ok := res.Events.Get("local:x")
	assert.True(t, ok)
	got, ok := res.Events.Get("ics:x")
	require.True(t, ok)
	assert.Equal(t, 11, got.Data().Start.Hour())
}

func TestRange_Overlaps(t *testing.T) {
	t.Parallel()

	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	r := Range{Start: day, End: day.Add(24 * time.Hour)}

	tests := []struct {
		name       string
		start, end time.Time
		want       bool
	}{
		{"inside", day.Add(time.Hour), day.Add(2 * time.Hour), true},
		{"crosses start", day.Add(-time.Hour), day.Add(time.Hour), true},
		{"ends at start", day.Add(-time.Hour), day, false},
		{"starts at end", day.Add(24 * time.Hour), day.Add(25 * time.Hour), false},
		{"instant at start", day, time.Time{}, true},
		{"instant before", day.Add(-time.Minute), time.Time{}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, r.Overlaps(tc.start, tc.end))
		})
	}
}

func TestRefresher_RefreshUpdatesSnapshot(t *testing.T) {
	t.Parallel()

	src := &staticSource{name: "vault", events: []event.Event{event.NewLocalEvent("a.md", data(t, 9))}}
	fixed := time.Date(2024, 1, 10, 15, 30, 0, 0, time.UTC)

	r := NewRefresher(NewAggregator(src), DaysWindow(1, 7, time.UTC))
	r.now = func() time.Time { return fixed }

	before, _, _ := r.Snapshot()
	assert.Equal(t, 0, before.Events.Len())

	r.Refresh(context.Background())

	snap, rng, at := r.Snapshot()
	assert.Equal(t, 1, snap.Events.Len())
	assert.Equal(t, fixed, at)
	assert.Equal(t, time.Date(2024, 1, 9, 0, 0, 0, 0, time.UTC), rng.Start)
	assert.Equal(t, time.Date(2024, 1, 18, 0, 0, 0, 0, time.UTC), rng.End)
	assert.Equal(t, 1, src.calls)
}

func TestRefresher_StartRejectsBadSchedule(t *testing.T) {
	t.Parallel()

	r := NewRefresher(NewAggregator(), DaysWindow(0, 1, nil))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	assert.Error(t, r.Start(ctx, "every now and then"))
	assert.NoError(t, r.Start(ctx, "*/15 * * * *"))
}
