package web

import (
	"context"

	"vaultcal/internal/event"
	"vaultcal/internal/vault"
)

// responseSurface "opens" a note by reading it into the HTTP response.
type responseSurface struct {
	vault   *vault.Vault
	path    string
	content []byte
}

func (s *responseSurface) OpenFile(_ context.Context, f event.File) error {
	data, err := s.vault.ReadFile(f.Path())
	if err != nil {
		return err
	}
	s.path = f.Path()
	s.content = data
	return nil
}

// selection carries request data the Select callback has no parameter for.
type selection struct {
	title string
	path  string
}

type ctxKey int

const (
	surfaceKey ctxKey = iota
	selectionKey
)

func withSurface(ctx context.Context, s event.Surface) context.Context {
	return context.WithValue(ctx, surfaceKey, s)
}

func surfaceFrom(ctx context.Context) (event.Surface, bool) {
	s, ok := ctx.Value(surfaceKey).(event.Surface)
	return s, ok
}

func withSelection(ctx context.Context, s *selection) context.Context {
	return context.WithValue(ctx, selectionKey, s)
}

func selectionFrom(ctx context.Context) (*selection, bool) {
	s, ok := ctx.Value(selectionKey).(*selection)
	return s, ok
}
