package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"vaultcal/internal/calendar"
	"vaultcal/internal/config"
	"vaultcal/internal/event"
	appLog "vaultcal/internal/log"
	"vaultcal/internal/model"
	"vaultcal/internal/render"
	"vaultcal/internal/vault"
)

// Server exposes the calendar grid over HTTP. Browser gestures are routed
// through a render.Renderer whose handlers act on the vault.
type Server struct {
	cfg       *config.Config
	vault     *vault.Vault
	refresher *calendar.Refresher
	debug     bool
	mux       *http.ServeMux

	comp     *render.MemoryComponent
	renderer *render.Renderer

	// renderedAt is the snapshot time last pushed into the renderer.
	syncMu     sync.Mutex
	renderedAt time.Time
}

// NewServer constructs a Server and mounts its renderer on the current
// refresher snapshot.
func NewServer(ctx context.Context, cfg *config.Config, v *vault.Vault, refresher *calendar.Refresher, debug bool) (*Server, error) {
	s := &Server{
		cfg:       cfg,
		vault:     v,
		refresher: refresher,
		debug:     debug,
		mux:       http.NewServeMux(),
		comp:      render.NewMemoryComponent(),
	}

	snapshot := render.EventSourceFunc(func(context.Context) ([]event.Event, error) {
		res, _, _ := s.refresher.Snapshot()
		return res.Events.All(), nil
	})

	r, err := render.New(ctx, s.comp, []render.EventSource{snapshot}, render.Settings{
		Handlers: render.Handlers{
			EventClick:  s.openEvent,
			Select:      s.createEvent,
			ModifyEvent: s.modifyEvent,
			EventMouseEnter: func(e event.Event) {
				appLog.Debug("web: hover", "id", event.CombinedID(e))
			},
		},
		FirstDay:    cfg.FirstDay(),
		MobileWidth: cfg.MobileWidth,
		Notice: func(err error) {
			appLog.Error("web: calendar notice", err)
		},
	})
	if err != nil {
		return nil, err
	}
	s.renderer = r
	_, _, s.renderedAt = refresher.Snapshot()

	s.registerRoutes()
	return s, nil
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.debug {
		h = requestLogger(h)
	}
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// Close destroys the renderer.
func (s *Server) Close() {
	s.renderer.Destroy()
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured. Empty
// credentials count as disabled.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="vaultcal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requestLogger logs each request at debug level.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		appLog.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// Combined ids contain '/' and must be path-escaped by clients, e.g.
// /api/events/local:calendar%2Fevents%2Fsync.md/open.
func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/options", s.handleOptions)
	s.mux.HandleFunc("GET /api/events", s.handleEvents)
	s.mux.HandleFunc("POST /api/refresh", s.handleRefresh)
	s.mux.HandleFunc("POST /api/events/{id}/open", s.handleOpen)
	s.mux.HandleFunc("POST /api/events/{id}/modify", s.handleModify)
	s.mux.HandleFunc("POST /api/select", s.handleSelect)
	s.mux.HandleFunc("GET /calendar", s.handleCalendar)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleOptions returns the grid configuration for the reported viewport.
//
// GET /api/options?width=390
func (s *Server) handleOptions(w http.ResponseWriter, r *http.Request) {
	width := parseIntDefault(r.URL.Query().Get("width"), 0)
	writeJSON(w, http.StatusOK, s.options(width))
}

func (s *Server) options(width int) render.Options {
	opts := s.renderer.Options()
	settings := render.Settings{
		FirstDay:    s.cfg.FirstDay(),
		Width:       width,
		MobileWidth: s.cfg.MobileWidth,
	}
	viewport := render.BuildOptions(settings)
	viewport.Selectable = opts.Selectable
	viewport.SelectMirror = opts.SelectMirror
	viewport.Editable = opts.Editable
	return viewport
}

// eventsResponse is the JSON response shape for /api/events.
type eventsResponse struct {
	Events          []render.Display `json:"events"`
	FailedSources   []string         `json:"failed_sources,omitempty"`
	RangeStart      time.Time        `json:"range_start"`
	RangeEnd        time.Time        `json:"range_end"`
	LoadedAt        time.Time        `json:"loaded_at"`
	DisplayTimeZone string           `json:"display_timezone"`
	WeekStart       string           `json:"week_start"`
}

// handleEvents returns what the grid currently shows.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	s.syncRenderer(r.Context())

	res, rng, loadedAt := s.refresher.Snapshot()
	failed := make([]string, 0, len(res.Failed))
	for name := range res.Failed {
		failed = append(failed, name)
	}
	sort.Strings(failed)

	writeJSON(w, http.StatusOK, eventsResponse{
		Events:          s.comp.Events(),
		FailedSources:   failed,
		RangeStart:      rng.Start,
		RangeEnd:        rng.End,
		LoadedAt:        loadedAt,
		DisplayTimeZone: s.cfg.Location().String(),
		WeekStart:       s.cfg.WeekStart,
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	res := s.refresher.Refresh(r.Context())
	s.render(r.Context(), true)
	writeJSON(w, http.StatusOK, map[string]int{
		"events": res.Events.Len(),
		"failed": len(res.Failed),
	})
}

// syncRenderer re-renders when the refresher produced a newer snapshot.
func (s *Server) syncRenderer(ctx context.Context) {
	s.render(ctx, false)
}

func (s *Server) render(ctx context.Context, force bool) {
	s.syncMu.Lock()
	defer s.syncMu.Unlock()

	_, _, loadedAt := s.refresher.Snapshot()
	if !force && !loadedAt.After(s.renderedAt) {
		return
	}
	s.renderer.Render(ctx)
	s.renderedAt = loadedAt
}

type openResponse struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// handleOpen opens the backing note of an event into the response.
func (s *Server) handleOpen(w http.ResponseWriter, r *http.Request) {
	s.syncRenderer(r.Context())

	surface := &responseSurface{vault: s.vault}
	ctx := withSurface(r.Context(), surface)

	err := s.renderer.Click(ctx, r.PathValue("id"))
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, openResponse{Path: surface.path, Content: string(surface.content)})
	case errors.Is(err, event.ErrNotFound), errors.Is(err, render.ErrUnknownEvent):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) openEvent(ctx context.Context, e event.Event) error {
	surface, ok := surfaceFrom(ctx)
	if !ok {
		return errors.New("web: no surface for open")
	}
	return e.OpenIn(ctx, s.vault, surface)
}

type modifyRequest struct {
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	AllDay bool      `json:"allDay"`
	// Resize changes only the end.
	Resize bool `json:"resize"`
}

type modifyResponse struct {
	Accepted bool           `json:"accepted"`
	Event    render.Display `json:"event"`
}

// handleModify applies a drag or resize. The response always carries what
// the grid shows afterwards, so a rejected gesture snaps back.
func (s *Server) handleModify(w http.ResponseWriter, r *http.Request) {
	var req modifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	s.syncRenderer(r.Context())

	id := r.PathValue("id")
	var (
		accepted bool
		err      error
	)
	if req.Resize {
		accepted, err = s.renderer.Resize(r.Context(), id, req.End)
	} else {
		accepted, err = s.renderer.Drop(r.Context(), id, req.Start, req.End, req.AllDay)
	}
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, render.ErrUnknownEvent) {
			status = http.StatusNotFound
		}
		writeError(w, status, err.Error())
		return
	}

	shown, _ := s.renderer.Displayed(id)
	writeJSON(w, http.StatusOK, modifyResponse{Accepted: accepted, Event: shown})
}

func (s *Server) modifyEvent(ctx context.Context, e event.Event, proposed, _ model.EventFrontmatter) (bool, error) {
	updated, err := event.Modify(ctx, e, s.vault, proposed)
	if errors.Is(err, event.ErrReadOnly) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	s.renderer.Replace(updated)
	appLog.Info("web: event modified", "id", event.CombinedID(updated))
	return true, nil
}

type selectRequest struct {
	Title  string    `json:"title"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	AllDay bool      `json:"allDay"`
}

type selectResponse struct {
	Path string `json:"path"`
}

// handleSelect creates a note for a selected range, then reloads so the new
// event shows up.
func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Start.IsZero() {
		writeError(w, http.StatusBadRequest, "start is required")
		return
	}

	created := &selection{title: req.Title}
	ctx := withSelection(r.Context(), created)
	if err := s.renderer.Select(ctx, req.Start, req.End, req.AllDay); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, model.ErrEndBeforeStart) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err.Error())
		return
	}

	s.refresher.Refresh(r.Context())
	s.render(r.Context(), true)
	writeJSON(w, http.StatusCreated, selectResponse{Path: created.path})
}

func (s *Server) createEvent(ctx context.Context, start, end time.Time, allDay bool) error {
	sel, ok := selectionFrom(ctx)
	if !ok {
		sel = &selection{}
	}
	title := sel.title
	if title == "" {
		title = "New event"
	}
	fm, err := model.NewFrontmatter(title, start, end, allDay)
	if err != nil {
		return err
	}
	p, err := s.vault.Create(ctx, s.cfg.Vault.EventsDir, fm)
	if err != nil {
		return fmt.Errorf("web: create note: %w", err)
	}
	sel.path = p
	return nil
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
