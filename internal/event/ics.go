package event

import (
	"context"

	"vaultcal/internal/model"
)

// ICSEvent is an entry of a remote ICS feed. It has no writable backing
// store; Path is only looked up for a local mirror note.
type ICSEvent struct {
	data model.EventFrontmatter
	id   string
	path string
}

// NewICSEvent builds an ICS event. Path is "<dir>/<id>.md"; id is not
// sanitized, so an id containing '/' yields extra path segments.
func NewICSEvent(dir string, data model.EventFrontmatter, id string) *ICSEvent {
	return &ICSEvent{
		data: data,
		id:   id,
		path: mirrorPath(dir, id),
	}
}

func (e *ICSEvent) Kind() Kind                   { return KindICS }
func (e *ICSEvent) Prefix() string               { return ICSPrefix }
func (e *ICSEvent) Identifier() string           { return e.id }
func (e *ICSEvent) Data() model.EventFrontmatter { return e.data }

// ID is the raw id assigned by the feed.
func (e *ICSEvent) ID() string { return e.id }

// Path is the virtual mirror location of the event.
func (e *ICSEvent) Path() string { return e.path }

// OpenIn opens the mirror note if one exists.
func (e *ICSEvent) OpenIn(ctx context.Context, store DocumentStore, surface Surface) error {
	return openDocument(ctx, store, surface, e.path, ICSPrefix, e.id)
}

func mirrorPath(dir, id string) string {
	return dir + "/" + id + ".md"
}
