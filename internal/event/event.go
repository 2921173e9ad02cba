// Package event holds the source-polymorphic calendar event model.
//
// Every event, whatever its origin, is addressed by a combined identifier
// "<prefix>:<identifier>". The prefix is constant per variant and unique
// across variants, so raw ids from different sources never collide.
//
// Variants are dispatched on Kind rather than through a type hierarchy.
// Document-store and surface handles are passed to OpenIn per call and are
// never retained by an event.
package event

import (
	"context"
	"errors"
	"strings"

	"vaultcal/internal/model"
)

// Kind tags the origin of an event.
type Kind int

const (
	KindLocal Kind = iota + 1
	KindICS
	KindRemote
)

// Variant prefixes. Constant per Kind and unique across Kinds.
const (
	LocalPrefix  = "local"
	ICSPrefix    = "ics"
	RemotePrefix = "gcal"
)

// ErrUnknownPrefix is returned by ParseCombinedID for unregistered prefixes.
var ErrUnknownPrefix = errors.New("event: unknown prefix")

var kinds = []Kind{KindLocal, KindICS, KindRemote}

// Kinds lists every variant known to the running system.
func Kinds() []Kind {
	return append([]Kind(nil), kinds...)
}

// Prefix returns the namespace tag of a variant, or "" for an unknown Kind.
func Prefix(k Kind) string {
	switch k {
	case KindLocal:
		return LocalPrefix
	case KindICS:
		return ICSPrefix
	case KindRemote:
		return RemotePrefix
	default:
		return ""
	}
}

// Editable reports whether events of kind k accept modifications.
// Mutability is a property of the variant, not of an instance.
func Editable(k Kind) bool {
	return k == KindLocal
}

func (k Kind) String() string {
	if p := Prefix(k); p != "" {
		return p
	}
	return "unknown"
}

// KindOf maps a prefix back to its Kind.
func KindOf(prefix string) (Kind, bool) {
	for _, k := range kinds {
		if Prefix(k) == prefix {
			return k, true
		}
	}
	return 0, false
}

// Event is the contract shared by every variant.
type Event interface {
	Kind() Kind
	// Prefix is the variant namespace tag, equal to Prefix(Kind()).
	Prefix() string
	// Identifier is unique within the variant's namespace.
	Identifier() string
	Data() model.EventFrontmatter
	// OpenIn displays the backing document in surface. It returns a
	// *NotFoundError when no document backs the event.
	OpenIn(ctx context.Context, store DocumentStore, surface Surface) error
}

// CombinedID returns "<prefix>:<identifier>".
func CombinedID(e Event) string {
	return JoinID(e.Prefix(), e.Identifier())
}

// JoinID builds a combined id from its parts.
func JoinID(prefix, identifier string) string {
	return prefix + ":" + identifier
}

// ParseCombinedID splits a combined id at the first ':' and resolves the Kind.
// Identifiers may themselves contain ':'.
func ParseCombinedID(combined string) (Kind, string, error) {
	prefix, identifier, ok := strings.Cut(combined, ":")
	if !ok {
		return 0, "", ErrUnknownPrefix
	}
	k, ok := KindOf(prefix)
	if !ok {
		return 0, "", ErrUnknownPrefix
	}
	return k, identifier, nil
}

// File is a node in the document store.
type File interface {
	Path() string
	IsFolder() bool
}

// DocumentStore resolves vault paths. Implementations are borrowed, never
// owned by events.
type DocumentStore interface {
	// GetFileAt returns the node at path, or false if nothing exists there.
	GetFileAt(path string) (File, bool)
}

// Surface is a pane able to display a document.
type Surface interface {
	OpenFile(ctx context.Context, f File) error
}

// MetadataCache reads the event frontmatter of a note.
type MetadataCache interface {
	Frontmatter(path string) (model.EventFrontmatter, error)
}

// FrontmatterWriter persists frontmatter for a note.
type FrontmatterWriter interface {
	WriteFrontmatter(ctx context.Context, path string, data model.EventFrontmatter) error
}

// openDocument is the shared OpenIn body: only a genuine file opens.
func openDocument(ctx context.Context, store DocumentStore, surface Surface, path, prefix, id string) error {
	if store == nil {
		return &NotFoundError{Prefix: prefix, ID: id, Path: path}
	}
	f, ok := store.GetFileAt(path)
	if !ok || f == nil || f.IsFolder() {
		return &NotFoundError{Prefix: prefix, ID: id, Path: path}
	}
	if err := surface.OpenFile(ctx, f); err != nil {
		return &OpenError{Prefix: prefix, ID: id, Err: err}
	}
	return nil
}
