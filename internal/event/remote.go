package event

import (
	"context"

	"vaultcal/internal/model"
)

// RemoteEvent is an entry of a hosted calendar service. Like ICSEvent it is
// read-only and opens only a local mirror note.
type RemoteEvent struct {
	data       model.EventFrontmatter
	id         string
	calendarID string
	link       string
	path       string
}

func NewRemoteEvent(dir string, data model.EventFrontmatter, calendarID, id, link string) *RemoteEvent {
	return &RemoteEvent{
		data:       data,
		id:         id,
		calendarID: calendarID,
		link:       link,
		path:       mirrorPath(dir, id),
	}
}

func (e *RemoteEvent) Kind() Kind                   { return KindRemote }
func (e *RemoteEvent) Prefix() string               { return RemotePrefix }
func (e *RemoteEvent) Identifier() string           { return e.id }
func (e *RemoteEvent) Data() model.EventFrontmatter { return e.data }

func (e *RemoteEvent) CalendarID() string { return e.calendarID }

// Link is the service's own URL for the event, if any.
func (e *RemoteEvent) Link() string { return e.link }

func (e *RemoteEvent) Path() string { return e.path }

func (e *RemoteEvent) OpenIn(ctx context.Context, store DocumentStore, surface Surface) error {
	return openDocument(ctx, store, surface, e.path, RemotePrefix, e.id)
}
