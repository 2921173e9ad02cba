package render

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"vaultcal/internal/event"
	appLog "vaultcal/internal/log"
	"vaultcal/internal/model"
)

var (
	ErrUnknownEvent  = errors.New("render: unknown event")
	ErrNotSelectable = errors.New("render: selection disabled")
	ErrDestroyed     = errors.New("render: renderer destroyed")
)

// EventSource is an opaque feed of events.
type EventSource interface {
	Events(ctx context.Context) ([]event.Event, error)
}

// EventSourceFunc adapts a function to EventSource.
type EventSourceFunc func(ctx context.Context) ([]event.Event, error)

func (f EventSourceFunc) Events(ctx context.Context) ([]event.Event, error) {
	return f(ctx)
}

// Handlers are the optional interaction callbacks.
type Handlers struct {
	// EventClick is called when an event is activated.
	EventClick func(ctx context.Context, e event.Event) error
	// Select is called for a new time range. Returning nil commits the
	// creation; an error aborts it.
	Select func(ctx context.Context, start, end time.Time, allDay bool) error
	// ModifyEvent decides on a drag or resize. true commits, false reverts.
	ModifyEvent func(ctx context.Context, e event.Event, proposed, prior model.EventFrontmatter) (bool, error)
	// EventMouseEnter is a hover notification.
	EventMouseEnter func(e event.Event)
}

// Settings configure a Renderer.
type Settings struct {
	Handlers Handlers
	FirstDay time.Weekday
	// Width is the reported viewport width; zero means unknown (desktop).
	Width       int
	MobileWidth int
	// Notice receives errors that are reported to the user and swallowed.
	Notice func(err error)
}

// Selection is a pending range selection.
type Selection struct {
	Start  time.Time
	End    time.Time
	AllDay bool
}

type entry struct {
	ev    event.Event
	shown model.EventFrontmatter
}

// Renderer owns a mounted component until Destroy. Gestures are serialized
// by gesture; mu guards state and is never held while a handler runs, so
// handlers may call Replace. Handlers must not call Render.
type Renderer struct {
	comp     Component
	sources  []EventSource
	settings Settings
	opts     Options

	gesture sync.Mutex

	mu        sync.Mutex
	order     []string
	entries   map[string]*entry
	pending   *Selection
	destroyed bool
}

// New mounts comp with options built from settings and renders once.
func New(ctx context.Context, comp Component, sources []EventSource, settings Settings) (*Renderer, error) {
	r := &Renderer{
		comp:     comp,
		sources:  sources,
		settings: settings,
		opts:     BuildOptions(settings),
		entries:  make(map[string]*entry),
	}
	if err := comp.Mount(r.opts); err != nil {
		return nil, fmt.Errorf("render: mount: %w", err)
	}
	r.Render(ctx)
	return r, nil
}

func (r *Renderer) Options() Options {
	return r.opts
}

// Render reloads every source and replaces the displayed events. A failing
// source is reported and the others still render.
func (r *Renderer) Render(ctx context.Context) {
	r.gesture.Lock()
	defer r.gesture.Unlock()

	var (
		order   []string
		entries = make(map[string]*entry)
	)
	for _, src := range r.sources {
		events, err := src.Events(ctx)
		if err != nil {
			r.notice(fmt.Errorf("render: load events: %w", err))
			continue
		}
		for _, ev := range events {
			id := event.CombinedID(ev)
			if _, dup := entries[id]; dup {
				r.notice(fmt.Errorf("%w: %s", event.ErrDuplicateID, id))
				continue
			}
			entries[id] = &entry{ev: ev, shown: ev.Data()}
			order = append(order, id)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.destroyed {
		return
	}
	r.order = order
	r.entries = entries
	r.comp.SetEvents(r.displays())
}

// Displayed returns what the component currently shows for id.
func (r *Renderer) Displayed(id string) (Display, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	en, ok := r.entries[id]
	if !ok {
		return Display{}, false
	}
	return newDisplay(en.ev, en.shown), true
}

// Event returns the event behind a combined id.
func (r *Renderer) Event(id string) (event.Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	en, ok := r.entries[id]
	if !ok {
		return nil, false
	}
	return en.ev, true
}

// Pending returns the selection awaiting a decision, if any.
func (r *Renderer) Pending() (Selection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pending == nil {
		return Selection{}, false
	}
	return *r.pending, true
}

// Click activates an event. Handler errors are reported through Notice and
// returned to the caller; renderer state is unchanged either way.
func (r *Renderer) Click(ctx context.Context, id string) error {
	r.gesture.Lock()
	defer r.gesture.Unlock()

	ev, err := r.current(id)
	if err != nil {
		return err
	}
	if r.settings.Handlers.EventClick == nil {
		return nil
	}
	if err := r.settings.Handlers.EventClick(ctx, ev); err != nil {
		r.notice(err)
		return err
	}
	return nil
}

// MouseEnter forwards a hover notification.
func (r *Renderer) MouseEnter(id string) {
	ev, err := r.current(id)
	if err != nil || r.settings.Handlers.EventMouseEnter == nil {
		return
	}
	r.settings.Handlers.EventMouseEnter(ev)
}

// Select proposes creating an event over a range. The selection stays
// pending until the handler returns, then is cleared either way.
func (r *Renderer) Select(ctx context.Context, start, end time.Time, allDay bool) error {
	r.gesture.Lock()
	defer r.gesture.Unlock()

	if r.settings.Handlers.Select == nil {
		return ErrNotSelectable
	}

	r.mu.Lock()
	if r.destroyed {
		r.mu.Unlock()
		return ErrDestroyed
	}
	r.pending = &Selection{Start: start, End: end, AllDay: allDay}
	r.mu.Unlock()

	err := r.settings.Handlers.Select(ctx, start, end, allDay)

	r.mu.Lock()
	r.pending = nil
	if !r.destroyed {
		r.comp.Unselect()
	}
	r.mu.Unlock()

	if err != nil {
		r.notice(err)
		return err
	}
	return nil
}

// Drop proposes moving an event to new timing, keeping its all-day flag
// unless allDay differs.
func (r *Renderer) Drop(ctx context.Context, id string, start, end time.Time, allDay bool) (bool, error) {
	return r.propose(ctx, id, func(prior model.EventFrontmatter) (model.EventFrontmatter, error) {
		return prior.WithTiming(start, end, allDay)
	})
}

// Resize proposes a new end for an event.
func (r *Renderer) Resize(ctx context.Context, id string, end time.Time) (bool, error) {
	return r.propose(ctx, id, func(prior model.EventFrontmatter) (model.EventFrontmatter, error) {
		return prior.WithTiming(prior.Start, end, prior.AllDay)
	})
}

// propose runs the two-phase gesture: build the proposal, await the
// decision, then commit or revert. Only a handler saying true commits.
func (r *Renderer) propose(ctx context.Context, id string, change func(model.EventFrontmatter) (model.EventFrontmatter, error)) (bool, error) {
	r.gesture.Lock()
	defer r.gesture.Unlock()

	r.mu.Lock()
	en, err := r.lookup(id)
	if err != nil {
		r.mu.Unlock()
		return false, err
	}
	ev, prior := en.ev, en.shown
	r.mu.Unlock()

	revert := func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if !r.destroyed {
			r.comp.RevertEvent(newDisplay(ev, prior))
		}
	}

	handler := r.settings.Handlers.ModifyEvent
	if handler == nil || !event.Editable(ev.Kind()) {
		revert()
		appLog.Debug("render: gesture reverted on read-only event", "id", id)
		return false, nil
	}

	proposed, err := change(prior)
	if err != nil {
		revert()
		return false, nil
	}

	ok, err := handler(ctx, ev, proposed, prior)
	if err != nil {
		r.notice(err)
		revert()
		return false, nil
	}
	if !ok {
		revert()
		return false, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.destroyed {
		return false, ErrDestroyed
	}
	en.shown = proposed
	r.comp.UpdateEvent(newDisplay(en.ev, proposed))
	return true, nil
}

// Replace swaps the event behind its combined id, e.g. after a modify
// produced a new instance. The displayed timing follows the new data.
func (r *Renderer) Replace(e event.Event) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	en, ok := r.entries[event.CombinedID(e)]
	if !ok {
		return false
	}
	en.ev = e
	en.shown = e.Data()
	r.comp.UpdateEvent(newDisplay(e, en.shown))
	return true
}

// Destroy disposes of the component. Later gestures fail with ErrDestroyed.
func (r *Renderer) Destroy() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.destroyed {
		return
	}
	r.destroyed = true
	r.comp.Destroy()
}

// current returns the event behind id under mu.
func (r *Renderer) current(id string) (event.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	en, err := r.lookup(id)
	if err != nil {
		return nil, err
	}
	return en.ev, nil
}

// lookup requires mu.
func (r *Renderer) lookup(id string) (*entry, error) {
	if r.destroyed {
		return nil, ErrDestroyed
	}
	en, ok := r.entries[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEvent, id)
	}
	return en, nil
}

func (r *Renderer) displays() []Display {
	out := make([]Display, 0, len(r.order))
	for _, id := range r.order {
		en := r.entries[id]
		out = append(out, newDisplay(en.ev, en.shown))
	}
	return out
}

func (r *Renderer) notice(err error) {
	appLog.Error("render: interaction failed", err)
	if r.settings.Notice != nil {
		r.settings.Notice(err)
	}
}
