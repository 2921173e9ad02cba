package model

import (
	"errors"
	"time"
)

// ErrEndBeforeStart is returned when an event's end precedes its start.
var ErrEndBeforeStart = errors.New("model: end is before start")

// Recurrence is the opaque recurrence descriptor carried alongside an event.
// The core never expands it; only source adapters interpret it.
type Recurrence struct {
	RRule   string      `yaml:"rrule,omitempty" json:"rrule,omitempty"`
	ExDates []time.Time `yaml:"exdates,omitempty" json:"exdates,omitempty"`
}

// EventFrontmatter is the normalized, source-agnostic description of a
// single event. It doubles as the YAML frontmatter block of a local note.
//
// Treat values as immutable: the With* helpers return modified copies.
type EventFrontmatter struct {
	Title string `yaml:"title" json:"title"`

	Start time.Time `yaml:"start" json:"start"`
	// End is nil when the source gave no end.
	End *time.Time `yaml:"end,omitempty" json:"end,omitempty"`

	AllDay bool `yaml:"allDay,omitempty" json:"allDay"`

	Recurrence *Recurrence `yaml:"recurrence,omitempty" json:"recurrence,omitempty"`
}

// NewFrontmatter builds a validated frontmatter. A zero end means "absent".
func NewFrontmatter(title string, start, end time.Time, allDay bool) (EventFrontmatter, error) {
	fm := EventFrontmatter{
		Title:  title,
		Start:  start,
		AllDay: allDay,
	}
	if !end.IsZero() {
		fm.End = &end
	}
	if err := fm.Validate(); err != nil {
		return EventFrontmatter{}, err
	}
	return fm, nil
}

// Validate checks that End, if present, is not before Start.
func (f EventFrontmatter) Validate() error {
	if f.End != nil && f.End.Before(f.Start) {
		return ErrEndBeforeStart
	}
	return nil
}

// HasEnd reports whether an end is present.
func (f EventFrontmatter) HasEnd() bool {
	return f.End != nil
}

// EndOrStart returns End when present, otherwise Start.
func (f EventFrontmatter) EndOrStart() time.Time {
	if f.End != nil {
		return *f.End
	}
	return f.Start
}

// Duration is zero when End is absent.
func (f EventFrontmatter) Duration() time.Duration {
	if f.End == nil {
		return 0
	}
	return f.End.Sub(f.Start)
}

// WithTiming returns a copy with new timing. The receiver is untouched.
func (f EventFrontmatter) WithTiming(start, end time.Time, allDay bool) (EventFrontmatter, error) {
	out := f.clone()
	out.Start = start
	out.AllDay = allDay
	out.End = nil
	if !end.IsZero() {
		out.End = &end
	}
	if err := out.Validate(); err != nil {
		return EventFrontmatter{}, err
	}
	return out, nil
}

// clone copies pointer fields so the result shares no memory with f.
func (f EventFrontmatter) clone() EventFrontmatter {
	out := f
	if f.End != nil {
		end := *f.End
		out.End = &end
	}
	if f.Recurrence != nil {
		rec := *f.Recurrence
		rec.ExDates = append([]time.Time(nil), f.Recurrence.ExDates...)
		out.Recurrence = &rec
	}
	return out
}
