package ics

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vaultcal/internal/calendar"
	"vaultcal/internal/event"
)

const sampleFeed = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//vaultcal//test//EN\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:single-1\r\n" +
	"SUMMARY:Dentist\r\n" +
	"DTSTART:20240102T090000Z\r\n" +
	"DTEND:20240102T100000Z\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:weekly-1\r\n" +
	"SUMMARY:Standup\r\n" +
	"DTSTART:20240101T100000Z\r\n" +
	"DTEND:20240101T103000Z\r\n" +
	"RRULE:FREQ=DAILY;COUNT=5\r\n" +
	"EXDATE:20240103T100000Z\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:weekly-1\r\n" +
	"SUMMARY:Standup (moved)\r\n" +
	"RECURRENCE-ID:20240104T100000Z\r\n" +
	"DTSTART:20240104T140000Z\r\n" +
	"DTEND:20240104T143000Z\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"SUMMARY:No uid\r\n" +
	"DTSTART:20240102T090000Z\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

func week() ExpandConfig {
	return ExpandConfig{
		DisplayLocation: time.UTC,
		RangeStart:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		RangeEnd:        time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC),
	}
}

func TestParseICS(t *testing.T) {
	t.Parallel()

	feed := Feed{ID: "work", URL: "https://example.com/cal.ics?token=secret"}
	events, err := ParseICS(feed, []byte(sampleFeed))
	require.NoError(t, err)
	require.Len(t, events, 3)

	assert.Equal(t, "single-1", events[0].UID)
	assert.Equal(t, "Dentist", events[0].Summary)
	assert.False(t, events[0].AllDay)
	assert.False(t, events[0].Recurring())

	assert.Equal(t, "FREQ=DAILY;COUNT=5", events[1].RawRRule)
	require.Len(t, events[1].ExDates, 1)
	assert.True(t, events[1].Recurring())

	assert.True(t, events[2].IsOverride)
	require.NotNil(t, events[2].Recurrence)

	_, err = ParseICS(feed, nil)
	assert.Error(t, err)
}

func TestParseICS_AllDay(t *testing.T) {
	t.Parallel()

	body := "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:x\r\n" +
		"BEGIN:VEVENT\r\nUID:holiday\r\nSUMMARY:Holiday\r\n" +
		"DTSTART;VALUE=DATE:20240101\r\n" +
		"END:VEVENT\r\nEND:VCALENDAR\r\n"

	events, err := ParseICS(Feed{ID: "h"}, []byte(body))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.True(t, events[0].AllDay)
	assert.Equal(t, 24*time.Hour, events[0].End.Sub(events[0].Start))
}

func TestEvents_IDsAndOverrides(t *testing.T) {
	t.Parallel()

	parsed, err := ParseICS(Feed{ID: "work"}, []byte(sampleFeed))
	require.NoError(t, err)

	events, err := Events(parsed, "calendar/ics", week())
	require.NoError(t, err)

	byID := map[string]event.Event{}
	for _, ev := range events {
		assert.Equal(t, "ics", ev.Prefix())
		byID[ev.Identifier()] = ev
	}

	// 1 single + 5 daily - 1 exdate = 5
	require.Len(t, events, 5)
	require.Contains(t, byID, "work/single-1")
	assert.Equal(t, "Dentist", byID["work/single-1"].Data().Title)

	assert.Contains(t, byID, "work/weekly-1@20240101T100000Z")
	assert.NotContains(t, byID, "work/weekly-1@20240103T100000Z")

	moved, ok := byID["work/weekly-1@20240104T100000Z"]
	require.True(t, ok, "override keeps the id of its slot")
	assert.Equal(t, "Standup (moved)", moved.Data().Title)
	assert.Equal(t, 14, moved.Data().Start.Hour())

	ics := byID["work/weekly-1@20240101T100000Z"].(*event.ICSEvent)
	assert.Equal(t, "calendar/ics/work/weekly-1@20240101T100000Z.md", ics.Path())
	require.NotNil(t, ics.Data().Recurrence)
	assert.Equal(t, "FREQ=DAILY;COUNT=5", ics.Data().Recurrence.RRule)
}

func TestEvents_TwoFeedsSameUIDDoNotCollide(t *testing.T) {
	t.Parallel()

	a, err := ParseICS(Feed{ID: "a"}, []byte(sampleFeed))
	require.NoError(t, err)
	b, err := ParseICS(Feed{ID: "b"}, []byte(sampleFeed))
	require.NoError(t, err)

	evA, err := Events(a, "m", week())
	require.NoError(t, err)
	evB, err := Events(b, "m", week())
	require.NoError(t, err)

	set := event.NewSet()
	for _, ev := range append(evA, evB...) {
		require.NoError(t, set.Add(ev))
	}
	assert.Equal(t, len(evA)+len(evB), set.Len())
}

func TestExpandOccurrences_CapAndRange(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	ev := ParsedEvent{
		Feed:     Feed{ID: "f"},
		UID:      "busy",
		Start:    start,
		End:      start.Add(time.Hour),
		RawRRule: "FREQ=HOURLY",
	}

	cfg := week()
	cfg.MaxOccurrencesPerEvent = 10
	res, err := ExpandOccurrences([]ParsedEvent{ev}, cfg)
	require.NoError(t, err)
	assert.Len(t, res.Occurrences, 10)
	assert.Equal(t, []string{"busy"}, res.TruncatedEvents)

	bad := week()
	bad.RangeEnd = bad.RangeStart.Add(-time.Hour)
	_, err = ExpandOccurrences(nil, bad)
	assert.Error(t, err)
}

func TestExpandOccurrences_AllDayKeepsDate(t *testing.T) {
	t.Parallel()

	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	body := "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:x\r\n" +
		"BEGIN:VEVENT\r\nUID:holiday\r\nSUMMARY:Holiday\r\n" +
		"DTSTART;VALUE=DATE:20240101\r\n" +
		"DTEND;VALUE=DATE:20240102\r\n" +
		"END:VEVENT\r\n" +
		"BEGIN:VEVENT\r\nUID:gym\r\nSUMMARY:Gym\r\n" +
		"DTSTART;VALUE=DATE:20240102\r\n" +
		"RRULE:FREQ=DAILY;COUNT=2\r\n" +
		"END:VEVENT\r\nEND:VCALENDAR\r\n"
	parsed, err := ParseICS(Feed{ID: "h"}, []byte(body))
	require.NoError(t, err)

	res, err := ExpandOccurrences(parsed, ExpandConfig{
		DisplayLocation: ny,
		RangeStart:      time.Date(2024, 1, 1, 0, 0, 0, 0, ny),
		RangeEnd:        time.Date(2024, 2, 1, 0, 0, 0, 0, ny),
	})
	require.NoError(t, err)
	require.Len(t, res.Occurrences, 3)

	holiday := res.Occurrences[0]
	assert.True(t, holiday.Event.AllDay)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, ny), holiday.Start)
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, ny), holiday.End)
	assert.Equal(t, ny, holiday.Start.Location())

	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, ny), res.Occurrences[1].Start)
	assert.Equal(t, time.Date(2024, 1, 3, 0, 0, 0, 0, ny), res.Occurrences[2].Start)

	fm := Frontmatter(holiday)
	assert.True(t, fm.AllDay)
	assert.Equal(t, 1, fm.Start.Day())
	assert.Equal(t, time.January, fm.Start.Month())
}

func TestExpandOccurrences_RangeIsHalfOpen(t *testing.T) {
	t.Parallel()

	cfg := week()
	endsAtStart := ParsedEvent{
		Feed:  Feed{ID: "f"},
		UID:   "before",
		Start: cfg.RangeStart.Add(-time.Hour),
		End:   cfg.RangeStart,
	}
	startsAtEnd := ParsedEvent{
		Feed:  Feed{ID: "f"},
		UID:   "after",
		Start: cfg.RangeEnd,
		End:   cfg.RangeEnd.Add(time.Hour),
	}
	startsAtStart := ParsedEvent{
		Feed:  Feed{ID: "f"},
		UID:   "first",
		Start: cfg.RangeStart,
		End:   cfg.RangeStart.Add(time.Hour),
	}
	daily := ParsedEvent{
		Feed:     Feed{ID: "f"},
		UID:      "daily",
		Start:    cfg.RangeStart.Add(-24 * time.Hour),
		End:      cfg.RangeStart,
		RawRRule: "FREQ=DAILY;COUNT=2",
	}

	res, err := ExpandOccurrences([]ParsedEvent{endsAtStart, startsAtEnd, startsAtStart, daily}, cfg)
	require.NoError(t, err)

	var uids []string
	for _, occ := range res.Occurrences {
		uids = append(uids, occ.Event.UID)
		rng := calendar.Range{Start: cfg.RangeStart, End: cfg.RangeEnd}
		assert.True(t, rng.Overlaps(occ.Start, occ.End), occ.Event.UID)
	}
	assert.Equal(t, []string{"first", "daily"}, uids)
}

func TestFetcher_ConditionalAndFallback(t *testing.T) {
	t.Parallel()

	var hits, notModified atomic.Int32
	var down atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if down.Load() {
			http.Error(w, "boom", http.StatusBadGateway)
			return
		}
		if r.Header.Get("If-None-Match") == `"v1"` {
			notModified.Add(1)
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write([]byte(sampleFeed))
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir(), srv.Client())
	feed := Feed{ID: "work", URL: srv.URL + "/private.ics?token=abc"}
	ctx := context.Background()

	first, err := f.Fetch(ctx, feed)
	require.NoError(t, err)
	assert.False(t, first.FromCache)

	second, err := f.Fetch(ctx, feed)
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, first.Body, second.Body)
	assert.EqualValues(t, 1, notModified.Load())

	down.Store(true)
	third, err := f.Fetch(ctx, feed)
	require.NoError(t, err)
	assert.True(t, third.FromCache)
	assert.EqualValues(t, 3, hits.Load())

	_, err = f.Fetch(ctx, Feed{ID: "empty"})
	assert.Error(t, err)
}

func TestFetcher_MetaWithoutBodySkipsValidators(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-None-Match") != "" || r.Header.Get("If-Modified-Since") != "" {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v2"`)
		_, _ = w.Write([]byte(sampleFeed))
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir(), srv.Client())
	feed := Feed{ID: "work", URL: srv.URL + "/cal.ics"}

	dir := f.cacheDirFor(feed.URL)
	require.NoError(t, os.MkdirAll(dir, 0o700))
	meta, err := json.Marshal(cacheMeta{URL: feed.URL, ETag: `"v1"`, LastModified: "Mon, 01 Jan 2024 00:00:00 GMT"})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "meta.json"), meta, 0o600))

	res, err := f.Fetch(context.Background(), feed)
	require.NoError(t, err)
	assert.False(t, res.FromCache)
	assert.Equal(t, sampleFeed, string(res.Body))

	body, err := os.ReadFile(filepath.Join(dir, "body.ics"))
	require.NoError(t, err)
	assert.Equal(t, sampleFeed, string(body))
}

func TestFetcher_UnusableCacheDir(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write([]byte(sampleFeed))
	}))
	defer srv.Close()

	// A regular file where the cache root should be makes MkdirAll fail.
	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	f := NewFetcher(filepath.Join(blocker, "ics-cache"), srv.Client())
	feed := Feed{ID: "work", URL: srv.URL + "/cal.ics"}

	for range 2 {
		res, err := f.Fetch(context.Background(), feed)
		require.NoError(t, err)
		assert.False(t, res.FromCache)
		assert.Equal(t, sampleFeed, string(res.Body))
	}
	assert.EqualValues(t, 2, hits.Load())
}

func TestSource_Events(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(sampleFeed))
	}))
	defer srv.Close()

	src := NewSource(Feed{ID: "work", URL: srv.URL}, NewFetcher(t.TempDir(), srv.Client()), "mirror", time.UTC)
	assert.Equal(t, "ics:work", src.Name())

	cfg := week()
	events, err := src.Events(context.Background(), calendar.Range{Start: cfg.RangeStart, End: cfg.RangeEnd})
	require.NoError(t, err)
	assert.Len(t, events, 5)
	for _, ev := range events {
		assert.True(t, strings.HasPrefix(ev.Identifier(), "work/"))
	}
}

func TestRedactURL(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "https://example.com/...(redacted)", RedactURL("https://example.com/path/private.ics?token=abcd"))
	assert.Equal(t, "ics://...(redacted)", RedactURL("not a url"))
}
