package event

import (
	"context"
	"fmt"

	"vaultcal/internal/model"
)

// LocalEvent is backed by exactly one note in the vault. Its identifier is
// the note's vault path.
type LocalEvent struct {
	data model.EventFrontmatter
	path string
}

func NewLocalEvent(path string, data model.EventFrontmatter) *LocalEvent {
	return &LocalEvent{data: data, path: path}
}

// LoadLocalEvent reads the frontmatter of path through cache.
func LoadLocalEvent(cache MetadataCache, path string) (*LocalEvent, error) {
	data, err := cache.Frontmatter(path)
	if err != nil {
		return nil, fmt.Errorf("event: load %s: %w", path, err)
	}
	if err := data.Validate(); err != nil {
		return nil, fmt.Errorf("event: load %s: %w", path, err)
	}
	return NewLocalEvent(path, data), nil
}

func (e *LocalEvent) Kind() Kind                   { return KindLocal }
func (e *LocalEvent) Prefix() string               { return LocalPrefix }
func (e *LocalEvent) Identifier() string           { return e.path }
func (e *LocalEvent) Data() model.EventFrontmatter { return e.data }
func (e *LocalEvent) Path() string                 { return e.path }

func (e *LocalEvent) OpenIn(ctx context.Context, store DocumentStore, surface Surface) error {
	return openDocument(ctx, store, surface, e.path, LocalPrefix, e.path)
}

// Modify persists data for the note and returns a new event. The receiver
// keeps its old data whether or not the write succeeds.
func (e *LocalEvent) Modify(ctx context.Context, w FrontmatterWriter, data model.EventFrontmatter) (*LocalEvent, error) {
	if err := data.Validate(); err != nil {
		return nil, err
	}
	if err := w.WriteFrontmatter(ctx, e.path, data); err != nil {
		return nil, fmt.Errorf("event: modify %s: %w", e.path, err)
	}
	return NewLocalEvent(e.path, data), nil
}

// Modify dispatches a modification on the variant of e. Non-editable
// variants return ErrReadOnly without touching w.
func Modify(ctx context.Context, e Event, w FrontmatterWriter, data model.EventFrontmatter) (Event, error) {
	if !Editable(e.Kind()) {
		return nil, fmt.Errorf("%w: %s", ErrReadOnly, CombinedID(e))
	}
	switch v := e.(type) {
	case *LocalEvent:
		return v.Modify(ctx, w, data)
	default:
		return nil, fmt.Errorf("%w: %s", ErrReadOnly, CombinedID(e))
	}
}
