package ics

import (
	"context"
	"fmt"
	"time"

	"vaultcal/internal/calendar"
	"vaultcal/internal/event"
	"vaultcal/internal/model"
)

// InstanceLayout formats the slot of a recurrence instance inside its id.
const InstanceLayout = "20060102T150405Z"

// Source adapts one feed to calendar.Source.
type Source struct {
	feed      Feed
	fetcher   *Fetcher
	mirrorDir string
	loc       *time.Location
}

// NewSource builds a feed source. mirrorDir is where mirror notes of the
// feed's events would live.
func NewSource(feed Feed, fetcher *Fetcher, mirrorDir string, loc *time.Location) *Source {
	return &Source{
		feed:      feed,
		fetcher:   fetcher,
		mirrorDir: mirrorDir,
		loc:       loc,
	}
}

func (s *Source) Name() string {
	return "ics:" + s.feed.ID
}

// Events fetches, parses and expands the feed into ICS events.
func (s *Source) Events(ctx context.Context, r calendar.Range) ([]event.Event, error) {
	res, err := s.fetcher.Fetch(ctx, s.feed)
	if err != nil {
		return nil, err
	}
	parsed, err := ParseICS(s.feed, res.Body)
	if err != nil {
		return nil, fmt.Errorf("ics: parse %s: %w", s.feed.ID, err)
	}
	return Events(parsed, s.mirrorDir, ExpandConfig{
		DisplayLocation: s.loc,
		RangeStart:      r.Start,
		RangeEnd:        r.End,
	})
}

// Events turns parsed VEVENTs into ICS events within cfg's range.
func Events(parsed []ParsedEvent, mirrorDir string, cfg ExpandConfig) ([]event.Event, error) {
	expanded, err := ExpandOccurrences(parsed, cfg)
	if err != nil {
		return nil, err
	}
	out := make([]event.Event, 0, len(expanded.Occurrences))
	for _, occ := range expanded.Occurrences {
		out = append(out, event.NewICSEvent(mirrorDir, Frontmatter(occ), OccurrenceID(occ)))
	}
	return out, nil
}

// OccurrenceID namespaces the UID by feed: "<feed>/<uid>" for single
// events and "<feed>/<uid>@<slot>" for recurrence instances.
func OccurrenceID(occ Occurrence) string {
	id := occ.Event.Feed.ID + "/" + occ.Event.UID
	if !occ.Slot.IsZero() {
		id += "@" + occ.Slot.UTC().Format(InstanceLayout)
	}
	return id
}

// Frontmatter converts an occurrence into the core event record.
func Frontmatter(occ Occurrence) model.EventFrontmatter {
	fm := model.EventFrontmatter{
		Title:  occ.Event.Summary,
		Start:  occ.Start,
		AllDay: occ.Event.AllDay,
	}
	if occ.End.After(occ.Start) {
		end := occ.End
		fm.End = &end
	}
	if occ.Event.RawRRule != "" {
		fm.Recurrence = &model.Recurrence{
			RRule:   occ.Event.RawRRule,
			ExDates: append([]time.Time(nil), occ.Event.ExDates...),
		}
	}
	return fm
}
