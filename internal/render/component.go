package render

import (
	"sync"
	"time"

	"vaultcal/internal/event"
	"vaultcal/internal/model"
)

// Display is what the grid shows for one event.
type Display struct {
	ID       string     `json:"id"`
	Kind     string     `json:"source"`
	Title    string     `json:"title"`
	Start    time.Time  `json:"start"`
	End      *time.Time `json:"end,omitempty"`
	AllDay   bool       `json:"allDay"`
	Editable bool       `json:"editable"`
}

func newDisplay(e event.Event, data model.EventFrontmatter) Display {
	d := Display{
		ID:       event.CombinedID(e),
		Kind:     e.Prefix(),
		Title:    data.Title,
		Start:    data.Start,
		AllDay:   data.AllDay,
		Editable: event.Editable(e.Kind()),
	}
	if data.End != nil {
		end := *data.End
		d.End = &end
	}
	return d
}

// Component is the visual grid. The renderer only tells it what to show;
// the component never moves an event on its own before a decision.
type Component interface {
	Mount(opts Options) error
	SetEvents(events []Display)
	// UpdateEvent commits an accepted gesture.
	UpdateEvent(d Display)
	// RevertEvent snaps a rejected gesture back to d.
	RevertEvent(d Display)
	// Unselect clears the pending range selection.
	Unselect()
	Destroy()
}

// MemoryComponent keeps the grid state in memory. The web layer serves it to
// browsers; tests inspect it.
type MemoryComponent struct {
	mu        sync.RWMutex
	opts      Options
	mounted   bool
	destroyed bool
	order     []string
	events    map[string]Display
	unselects int
	reverts   int
}

func NewMemoryComponent() *MemoryComponent {
	return &MemoryComponent{events: make(map[string]Display)}
}

func (c *MemoryComponent) Mount(opts Options) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opts = opts
	c.mounted = true
	return nil
}

func (c *MemoryComponent) SetEvents(events []Display) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order = c.order[:0]
	c.events = make(map[string]Display, len(events))
	for _, d := range events {
		c.order = append(c.order, d.ID)
		c.events[d.ID] = d
	}
}

func (c *MemoryComponent) UpdateEvent(d Display) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events[d.ID] = d
}

func (c *MemoryComponent) RevertEvent(d Display) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events[d.ID] = d
	c.reverts++
}

func (c *MemoryComponent) Unselect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.unselects++
}

func (c *MemoryComponent) Destroy() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.destroyed = true
	c.events = map[string]Display{}
	c.order = nil
}

// Options returns the mounted configuration.
func (c *MemoryComponent) Options() Options {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.opts
}

// Events returns the displayed events in load order.
func (c *MemoryComponent) Events() []Display {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Display, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.events[id])
	}
	return out
}

func (c *MemoryComponent) Event(id string) (Display, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.events[id]
	return d, ok
}

func (c *MemoryComponent) Reverts() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.reverts
}

func (c *MemoryComponent) Unselects() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.unselects
}

func (c *MemoryComponent) Destroyed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.destroyed
}
