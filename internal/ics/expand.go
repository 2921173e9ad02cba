package ics

import (
	"errors"
	"time"

	"github.com/teambition/rrule-go"

	"vaultcal/internal/calendar"
	appLog "vaultcal/internal/log"
)

const defaultMaxOccurrencesPerEvent = 5000

// Occurrence is one concrete instance of a ParsedEvent.
type Occurrence struct {
	Event ParsedEvent
	// Slot is the undisturbed instance start of a recurring event, stable
	// even when an override moves the instance. Zero for single events.
	Slot time.Time
	// Start / End are in the display location.
	Start time.Time
	End   time.Time
}

// ExpandConfig controls recurrence expansion.
type ExpandConfig struct {
	// DisplayLocation defaults to time.Local.
	DisplayLocation *time.Location

	RangeStart time.Time
	RangeEnd   time.Time

	// MaxOccurrencesPerEvent caps runaway rules. Zero means the default.
	MaxOccurrencesPerEvent int
}

// ExpandResult lists occurrences and the UIDs that hit the cap.
type ExpandResult struct {
	Occurrences     []Occurrence
	TruncatedEvents []string
}

// ExpandOccurrences expands single events, RRULEs with EXDATEs and
// RECURRENCE-ID overrides into occurrences overlapping the range.
func ExpandOccurrences(events []ParsedEvent, cfg ExpandConfig) (ExpandResult, error) {
	var result ExpandResult

	if cfg.RangeEnd.Before(cfg.RangeStart) {
		return result, errors.New("ics: expand range end is before start")
	}
	if cfg.DisplayLocation == nil {
		cfg.DisplayLocation = time.Local
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}

	// Base events keep their feed order; overrides are grouped by UID.
	var bases []ParsedEvent
	overrides := make(map[string][]ParsedEvent)
	for _, ev := range events {
		if ev.IsOverride && ev.Recurrence != nil {
			overrides[ev.UID] = append(overrides[ev.UID], ev)
			continue
		}
		bases = append(bases, ev)
	}

	truncated := make(map[string]bool)
	for _, ev := range bases {
		var occ []Occurrence
		if ev.RawRRule == "" {
			occ = expandSingle(ev, overrides[ev.UID], cfg)
		} else {
			var hitCap bool
			occ, hitCap = expandRecurring(ev, overrides[ev.UID], cfg)
			if hitCap && !truncated[ev.UID] {
				truncated[ev.UID] = true
				result.TruncatedEvents = append(result.TruncatedEvents, ev.UID)
				appLog.Error("ics: occurrences truncated", errors.New("max occurrences reached"),
					"uid", ev.UID, "cap", cfg.MaxOccurrencesPerEvent)
			}
		}
		result.Occurrences = append(result.Occurrences, occ...)
	}

	return result, nil
}

func expandSingle(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) []Occurrence {
	if o, ok := findOverride(overrides, ev.Start); ok {
		ev = o
	}
	occ := makeOccurrence(ev, time.Time{}, ev.Start, ev.End, cfg.DisplayLocation)
	if !inRange(occ, cfg) {
		return nil
	}
	return []Occurrence{occ}
}

func expandRecurring(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) ([]Occurrence, bool) {
	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		appLog.Error("ics: bad RRULE", err, "uid", ev.UID, "rrule", ev.RawRRule)
		return nil, false
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	// Widen the lower bound by the event length so instances that started
	// before the range but still run into it are kept.
	dur := ev.End.Sub(ev.Start)
	from := cfg.RangeStart.Add(-dur).In(ev.Start.Location())
	to := cfg.RangeEnd.In(ev.Start.Location())

	starts := set.Between(from, to, true)
	hitCap := false
	if len(starts) > cfg.MaxOccurrencesPerEvent {
		starts = starts[:cfg.MaxOccurrencesPerEvent]
		hitCap = true
	}

	out := make([]Occurrence, 0, len(starts))
	for _, s := range starts {
		e := s.Add(dur)
		if ev.AllDay {
			s = time.Date(s.Year(), s.Month(), s.Day(), 0, 0, 0, 0, s.Location())
			days := int(dur.Hours()/24 + 0.5)
			if days < 1 {
				days = 1
			}
			e = s.AddDate(0, 0, days)
		}

		inst, slot := ev, s
		if o, ok := findOverride(overrides, s); ok {
			inst = o
			s, e = o.Start, o.End
		}
		occ := makeOccurrence(inst, slot, s, e, cfg.DisplayLocation)
		if !inRange(occ, cfg) {
			continue
		}
		out = append(out, occ)
	}
	return out, hitCap
}

// findOverride matches a RECURRENCE-ID against an instance start.
func findOverride(overrides []ParsedEvent, start time.Time) (ParsedEvent, bool) {
	for _, ov := range overrides {
		if ov.Recurrence != nil && ov.Recurrence.Equal(start) {
			return ov, true
		}
	}
	return ParsedEvent{}, false
}

// makeOccurrence moves timed instances into loc. All-day instances keep
// their calendar date and become midnight in loc.
func makeOccurrence(ev ParsedEvent, slot, start, end time.Time, loc *time.Location) Occurrence {
	if ev.AllDay {
		return Occurrence{Event: ev, Slot: slot, Start: dateIn(start, loc), End: dateIn(end, loc)}
	}
	return Occurrence{
		Event: ev,
		Slot:  slot,
		Start: start.In(loc),
		End:   end.In(loc),
	}
}

func dateIn(t time.Time, loc *time.Location) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// inRange uses the same half-open check as calendar.Range.
func inRange(occ Occurrence, cfg ExpandConfig) bool {
	return calendar.Range{Start: cfg.RangeStart, End: cfg.RangeEnd}.Overlaps(occ.Start, occ.End)
}
