// Package gcal reads events from Google Calendar and exposes them as
// read-only remote events.
package gcal

import (
	"context"
	"errors"
	"fmt"
	"time"

	calendarapi "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"vaultcal/internal/calendar"
	"vaultcal/internal/event"
	appLog "vaultcal/internal/log"
	"vaultcal/internal/model"
)

// Lister is the subset of the Calendar API the source needs.
type Lister interface {
	ListEvents(ctx context.Context, calendarID string, from, to time.Time, pageToken string) (*calendarapi.Events, error)
}

// apiLister calls the real service.
type apiLister struct {
	svc *calendarapi.Service
}

// NewLister builds a Lister authenticated with an API key. Extra client
// options (endpoint, HTTP client) are appended after the key.
func NewLister(ctx context.Context, apiKey string, opts ...option.ClientOption) (Lister, error) {
	if apiKey == "" {
		return nil, errors.New("gcal: api key is empty")
	}
	svc, err := calendarapi.NewService(ctx, append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("gcal: new service: %w", err)
	}
	return &apiLister{svc: svc}, nil
}

func (l *apiLister) ListEvents(ctx context.Context, calendarID string, from, to time.Time, pageToken string) (*calendarapi.Events, error) {
	call := l.svc.Events.List(calendarID).
		Context(ctx).
		SingleEvents(true).
		OrderBy("startTime").
		TimeMin(from.Format(time.RFC3339)).
		TimeMax(to.Format(time.RFC3339))
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}
	return call.Do()
}

// Source lists one Google calendar.
type Source struct {
	lister     Lister
	calendarID string
	mirrorDir  string
	loc        *time.Location
}

func NewSource(lister Lister, calendarID, mirrorDir string, loc *time.Location) *Source {
	if loc == nil {
		loc = time.Local
	}
	return &Source{
		lister:     lister,
		calendarID: calendarID,
		mirrorDir:  mirrorDir,
		loc:        loc,
	}
}

func (s *Source) Name() string {
	return "gcal:" + s.calendarID
}

// Events pages through the calendar. Entries with unusable times are logged
// and skipped.
func (s *Source) Events(ctx context.Context, r calendar.Range) ([]event.Event, error) {
	var out []event.Event
	token := ""
	for {
		page, err := s.lister.ListEvents(ctx, s.calendarID, r.Start, r.End, token)
		if err != nil {
			return nil, fmt.Errorf("gcal: list %s: %w", s.calendarID, err)
		}
		for _, item := range page.Items {
			if item == nil || item.Status == "cancelled" {
				continue
			}
			fm, err := Frontmatter(item, s.loc)
			if err != nil {
				appLog.Error("gcal: event skipped", err, "calendar", s.calendarID, "id", item.Id)
				continue
			}
			out = append(out, event.NewRemoteEvent(s.mirrorDir, fm, s.calendarID, item.Id, item.HtmlLink))
		}
		if page.NextPageToken == "" {
			return out, nil
		}
		token = page.NextPageToken
	}
}

// Frontmatter converts an API event. All-day entries carry Date; timed
// entries carry DateTime.
func Frontmatter(item *calendarapi.Event, loc *time.Location) (model.EventFrontmatter, error) {
	if item.Start == nil {
		return model.EventFrontmatter{}, errors.New("gcal: event has no start")
	}
	start, allDay, err := parseDateTime(item.Start, loc)
	if err != nil {
		return model.EventFrontmatter{}, err
	}

	var end time.Time
	if item.End != nil {
		if end, _, err = parseDateTime(item.End, loc); err != nil {
			return model.EventFrontmatter{}, err
		}
	}

	fm, err := model.NewFrontmatter(item.Summary, start, end, allDay)
	if err != nil {
		return model.EventFrontmatter{}, err
	}
	if len(item.Recurrence) > 0 {
		fm.Recurrence = &model.Recurrence{RRule: item.Recurrence[0]}
	}
	return fm, nil
}

func parseDateTime(dt *calendarapi.EventDateTime, loc *time.Location) (time.Time, bool, error) {
	if dt.DateTime != "" {
		t, err := time.Parse(time.RFC3339, dt.DateTime)
		if err != nil {
			return time.Time{}, false, fmt.Errorf("gcal: bad dateTime %q: %w", dt.DateTime, err)
		}
		return t.In(loc), false, nil
	}
	if dt.Date != "" {
		zone := loc
		if dt.TimeZone != "" {
			if l, err := time.LoadLocation(dt.TimeZone); err == nil {
				zone = l
			}
		}
		t, err := time.ParseInLocation("2006-01-02", dt.Date, zone)
		if err != nil {
			return time.Time{}, true, fmt.Errorf("gcal: bad date %q: %w", dt.Date, err)
		}
		return t, true, nil
	}
	return time.Time{}, false, errors.New("gcal: empty date")
}
