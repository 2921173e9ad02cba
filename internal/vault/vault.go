// Package vault is a filesystem-backed note store. It serves as the document
// store, metadata cache and frontmatter writer of the event model.
package vault

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"vaultcal/internal/event"
	appLog "vaultcal/internal/log"
	"vaultcal/internal/model"
)

const fence = "---"

var (
	// ErrNoFrontmatter is returned for notes without a leading YAML block.
	ErrNoFrontmatter = errors.New("vault: note has no frontmatter")
	// ErrOutsideVault is returned for paths escaping the vault root.
	ErrOutsideVault = errors.New("vault: path outside vault")
)

// File is a vault node addressed by its slash-separated vault path.
type File struct {
	path   string
	folder bool
}

func (f File) Path() string   { return f.path }
func (f File) IsFolder() bool { return f.folder }

// Vault is rooted at a directory on disk.
type Vault struct {
	root string
}

func New(root string) *Vault {
	return &Vault{root: root}
}

func (v *Vault) Root() string {
	return v.root
}

// abs maps a vault path onto the filesystem.
func (v *Vault) abs(p string) (string, error) {
	clean := path.Clean(strings.TrimPrefix(p, "/"))
	if !filepath.IsLocal(filepath.FromSlash(clean)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideVault, p)
	}
	return filepath.Join(v.root, filepath.FromSlash(clean)), nil
}

// GetFileAt implements event.DocumentStore.
func (v *Vault) GetFileAt(p string) (event.File, bool) {
	abs, err := v.abs(p)
	if err != nil {
		return nil, false
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, false
	}
	return File{path: p, folder: info.IsDir()}, true
}

// ReadFile returns the raw content of the note at p.
func (v *Vault) ReadFile(p string) ([]byte, error) {
	abs, err := v.abs(p)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(abs)
}

// Frontmatter implements event.MetadataCache.
func (v *Vault) Frontmatter(p string) (model.EventFrontmatter, error) {
	var fm model.EventFrontmatter

	data, err := v.ReadFile(p)
	if err != nil {
		return fm, err
	}
	head, _, ok := splitFrontmatter(data)
	if !ok {
		return fm, fmt.Errorf("%w: %s", ErrNoFrontmatter, p)
	}
	if err := yaml.Unmarshal(head, &fm); err != nil {
		return fm, fmt.Errorf("vault: parse frontmatter %s: %w", p, err)
	}
	return fm, nil
}

// WriteFrontmatter implements event.FrontmatterWriter. The note body after
// the frontmatter block is preserved.
func (v *Vault) WriteFrontmatter(_ context.Context, p string, data model.EventFrontmatter) error {
	abs, err := v.abs(p)
	if err != nil {
		return err
	}

	var body []byte
	existing, err := os.ReadFile(abs)
	switch {
	case err == nil:
		if _, rest, ok := splitFrontmatter(existing); ok {
			body = rest
		} else {
			body = existing
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return err
	}

	head, err := yaml.Marshal(data)
	if err != nil {
		return fmt.Errorf("vault: marshal frontmatter: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString(fence + "\n")
	buf.Write(head)
	buf.WriteString(fence + "\n")
	buf.Write(body)

	return writeAtomic(abs, buf.Bytes())
}

// Create writes a new note for data under dir and returns its vault path.
// Names look like "2024-01-01 Title 1a2b3c4d.md".
func (v *Vault) Create(ctx context.Context, dir string, data model.EventFrontmatter) (string, error) {
	if err := data.Validate(); err != nil {
		return "", err
	}
	name := fmt.Sprintf("%s %s %s.md",
		data.Start.Format("2006-01-02"),
		safeTitle(data.Title),
		strings.SplitN(uuid.NewString(), "-", 2)[0],
	)
	p := path.Join(dir, name)
	if err := v.WriteFrontmatter(ctx, p, data); err != nil {
		return "", err
	}
	appLog.Info("vault note created", "path", p)
	return p, nil
}

// splitFrontmatter returns the YAML block and the remaining body.
func splitFrontmatter(data []byte) (head, body []byte, ok bool) {
	data = bytes.TrimPrefix(data, []byte("\ufeff"))
	if !bytes.HasPrefix(data, []byte(fence+"\n")) && !bytes.HasPrefix(data, []byte(fence+"\r\n")) {
		return nil, data, false
	}
	rest := data[bytes.IndexByte(data, '\n')+1:]

	offset := 0
	for offset <= len(rest) {
		nl := bytes.IndexByte(rest[offset:], '\n')
		var line []byte
		if nl < 0 {
			line = rest[offset:]
		} else {
			line = rest[offset : offset+nl]
		}
		if string(bytes.TrimRight(line, "\r")) == fence {
			head = rest[:offset]
			if nl < 0 {
				return head, nil, true
			}
			return head, rest[offset+nl+1:], true
		}
		if nl < 0 {
			break
		}
		offset += nl + 1
	}
	return nil, data, false
}

func safeTitle(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return "Event"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', '#', '^', '[', ']':
			return '-'
		}
		return r
	}, title)
}

// writeAtomic writes via a temp file in the same directory then renames.
func writeAtomic(abs string, data []byte) error {
	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".vaultcal-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, abs)
}
