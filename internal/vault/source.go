package vault

import (
	"context"
	"errors"
	"io/fs"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"vaultcal/internal/calendar"
	"vaultcal/internal/event"
	appLog "vaultcal/internal/log"
)

// Source yields a LocalEvent for each note under a vault directory.
type Source struct {
	vault *Vault
	dir   string
}

func NewSource(v *Vault, dir string) *Source {
	return &Source{vault: v, dir: strings.Trim(dir, "/")}
}

func (s *Source) Name() string {
	return "vault:" + s.dir
}

// Dir is the vault directory new notes are created in.
func (s *Source) Dir() string {
	return s.dir
}

// Events walks the directory. Notes whose frontmatter is missing or invalid
// are logged and skipped; a missing directory yields no events.
func (s *Source) Events(ctx context.Context, r calendar.Range) ([]event.Event, error) {
	root, err := s.vault.abs(s.dir)
	if err != nil {
		return nil, err
	}

	var paths []string
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			// A directory nobody has created yet holds no events.
			if p == root && errors.Is(err, fs.ErrNotExist) {
				appLog.Debug("vault: events dir missing", "dir", s.dir)
				return filepath.SkipDir
			}
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			if p != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.EqualFold(filepath.Ext(d.Name()), ".md") {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		paths = append(paths, path.Join(s.dir, filepath.ToSlash(rel)))
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	out := make([]event.Event, 0, len(paths))
	for _, p := range paths {
		ev, err := event.LoadLocalEvent(s.vault, p)
		if err != nil {
			appLog.Debug("vault: skipping note", "path", p, "reason", err.Error())
			continue
		}
		fm := ev.Data()
		if !r.Start.IsZero() && !r.Overlaps(fm.Start, fm.EndOrStart()) {
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}
