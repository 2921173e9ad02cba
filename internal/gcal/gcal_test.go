package gcal

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	calendarapi "google.golang.org/api/calendar/v3"

	"vaultcal/internal/calendar"
	"vaultcal/internal/event"
)

type pagedLister struct {
	pages map[string]*calendarapi.Events
	err   error
	calls []string
}

func (l *pagedLister) ListEvents(_ context.Context, _ string, _, _ time.Time, token string) (*calendarapi.Events, error) {
	l.calls = append(l.calls, token)
	if l.err != nil {
		return nil, l.err
	}
	return l.pages[token], nil
}

func TestSource_Events(t *testing.T) {
	t.Parallel()

	lister := &pagedLister{pages: map[string]*calendarapi.Events{
		"": {
			Items: []*calendarapi.Event{
				{
					Id:       "abc",
					Summary:  "Planning",
					HtmlLink: "https://calendar.google.com/event?eid=abc",
					Start:    &calendarapi.EventDateTime{DateTime: "2024-01-01T09:00:00Z"},
					End:      &calendarapi.EventDateTime{DateTime: "2024-01-01T10:00:00Z"},
				},
				{Id: "gone", Status: "cancelled"},
			},
			NextPageToken: "p2",
		},
		"p2": {
			Items: []*calendarapi.Event{
				{
					Id:      "holiday",
					Summary: "Holiday",
					Start:   &calendarapi.EventDateTime{Date: "2024-01-02"},
					End:     &calendarapi.EventDateTime{Date: "2024-01-03"},
				},
				{Id: "broken", Start: &calendarapi.EventDateTime{DateTime: "yesterday"}},
			},
		},
	}}

	src := NewSource(lister, "primary", "calendar/remote", time.UTC)
	assert.Equal(t, "gcal:primary", src.Name())

	events, err := src.Events(context.Background(), calendar.Range{})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, []string{"", "p2"}, lister.calls)

	first := events[0].(*event.RemoteEvent)
	assert.Equal(t, "gcal:abc", event.CombinedID(first))
	assert.Equal(t, "primary", first.CalendarID())
	assert.Equal(t, "calendar/remote/abc.md", first.Path())
	assert.Equal(t, time.Hour, first.Data().Duration())
	assert.False(t, first.Data().AllDay)

	second := events[1]
	assert.True(t, second.Data().AllDay)
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), second.Data().Start)
}

func TestSource_ListError(t *testing.T) {
	t.Parallel()

	src := NewSource(&pagedLister{err: errors.New("quota")}, "primary", "m", nil)
	_, err := src.Events(context.Background(), calendar.Range{})
	assert.ErrorContains(t, err, "quota")
}

func TestFrontmatter_Errors(t *testing.T) {
	t.Parallel()

	_, err := Frontmatter(&calendarapi.Event{Id: "x"}, time.UTC)
	assert.Error(t, err)

	_, err = Frontmatter(&calendarapi.Event{
		Id:    "backwards",
		Start: &calendarapi.EventDateTime{DateTime: "2024-01-01T10:00:00Z"},
		End:   &calendarapi.EventDateTime{DateTime: "2024-01-01T09:00:00Z"},
	}, time.UTC)
	assert.Error(t, err)
}

func TestNewLister_RequiresKey(t *testing.T) {
	t.Parallel()

	_, err := NewLister(context.Background(), "")
	assert.Error(t, err)
}
