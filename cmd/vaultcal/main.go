package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"vaultcal/internal/calendar"
	"vaultcal/internal/capture"
	"vaultcal/internal/config"
	"vaultcal/internal/event"
	"vaultcal/internal/gcal"
	"vaultcal/internal/ics"
	appLog "vaultcal/internal/log"
	"vaultcal/internal/vault"
	"vaultcal/internal/web"
)

const version = "0.1.0"

// flagConfig holds CLI flag values.
type flagConfig struct {
	configPath    string
	listen        string
	once          bool
	snapshot      string
	snapshotWidth int
	debug         bool
}

func main() {
	flags := parseFlags()
	if flags.debug {
		appLog.SetLevel(appLog.LevelDebug)
	}
	appLog.Info("vaultcal starting", "version", version)

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	if err := conf.Validate(); err != nil {
		appLog.Error("invalid config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Location().String(),
		"refresh", conf.RefreshCron,
		"horizon_days", conf.HorizonDays,
		"vault", conf.Vault.Root,
		"events_dir", conf.Vault.EventsDir,
		"mirror_dir", conf.MirrorDir,
		"ics_count", len(conf.ICS),
		"google", conf.GoogleEnabled(),
		"once", flags.once,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, conf, flags); err != nil {
		appLog.Error("vaultcal failed", err)
		os.Exit(1)
	}
	appLog.Info("vaultcal exiting")
}

func run(ctx context.Context, conf *config.Config, flags flagConfig) error {
	v := vault.New(conf.Vault.Root)
	sources, err := buildSources(ctx, conf, v, flags.debug)
	if err != nil {
		return err
	}

	agg := calendar.NewAggregator(sources...)
	loc := conf.Location()
	refresher := calendar.NewRefresher(agg, calendar.DaysWindow(conf.BackfillDays, conf.HorizonDays, loc))
	res := refresher.Refresh(ctx)

	if flags.once && flags.snapshot == "" {
		printSummary(res, loc)
		return nil
	}

	srv, err := web.NewServer(ctx, conf, v, refresher, flags.debug)
	if err != nil {
		return err
	}
	defer srv.Close()

	httpSrv := &http.Server{
		Addr:              conf.Listen,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	// Listen before serving so a snapshot never races the bind.
	ln, err := net.Listen("tcp", conf.Listen)
	if err != nil {
		return fmt.Errorf("listen %s: %w", conf.Listen, err)
	}
	serveErr := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+conf.Listen, "debug", flags.debug)
		if err := httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	if flags.snapshot != "" {
		err := takeSnapshot(ctx, conf, flags)
		if flags.once {
			shutdown(httpSrv)
			return err
		}
		if err != nil {
			appLog.Error("snapshot failed", err, "path", flags.snapshot)
		}
	}

	if err := refresher.Start(ctx, conf.RefreshCron); err != nil {
		shutdown(httpSrv)
		return err
	}

	select {
	case <-ctx.Done():
		appLog.Info("shutting down")
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}
	shutdown(httpSrv)
	return nil
}

// buildSources assembles the vault, ICS and Google sources in that order,
// so local notes win duplicate ids.
func buildSources(ctx context.Context, conf *config.Config, v *vault.Vault, debug bool) ([]calendar.Source, error) {
	loc := conf.Location()
	sources := []calendar.Source{vault.NewSource(v, conf.Vault.EventsDir)}

	cacheDir := conf.CacheDir
	if debug && cacheDir == config.DefaultCacheDir {
		cacheDir = "./cache/ics-cache"
	}
	fetcher := ics.NewFetcher(cacheDir, &http.Client{Timeout: 30 * time.Second})
	for _, feed := range conf.ICS {
		sources = append(sources, ics.NewSource(
			ics.Feed{ID: feed.ID, URL: feed.URL, Name: feed.Name},
			fetcher,
			conf.MirrorDir,
			loc,
		))
	}

	if conf.GoogleEnabled() {
		lister, err := gcal.NewLister(ctx, conf.Google.APIKey)
		if err != nil {
			return nil, err
		}
		for _, id := range conf.Google.Calendars {
			sources = append(sources, gcal.NewSource(lister, id, conf.MirrorDir, loc))
		}
	}
	return sources, nil
}

func takeSnapshot(ctx context.Context, conf *config.Config, flags flagConfig) error {
	if err := os.MkdirAll(filepath.Dir(flags.snapshot), 0o755); err != nil {
		return err
	}
	opts := capture.Options{
		BaseURL:    "http://" + conf.Listen,
		OutputPath: flags.snapshot,
		Width:      flags.snapshotWidth,
	}
	if conf.BasicAuth != nil {
		opts.Username = conf.BasicAuth.Username
		opts.Password = conf.BasicAuth.Password
	}
	return capture.Calendar(ctx, opts)
}

func shutdown(srv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		appLog.Error("http shutdown failed", err)
	}
}

// printSummary writes the loaded events to stdout, ordered by start.
func printSummary(res calendar.LoadResult, loc *time.Location) {
	events := res.Events.All()
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Data().Start.Before(events[j].Data().Start)
	})
	for _, ev := range events {
		fm := ev.Data()
		when := fm.Start.In(loc).Format("2006-01-02 15:04")
		if fm.AllDay {
			when = fm.Start.In(loc).Format("2006-01-02") + " all-day"
		}
		ro := ""
		if !event.Editable(ev.Kind()) {
			ro = " (read-only)"
		}
		fmt.Printf("%s  %s  [%s]%s\n", when, fm.Title, event.CombinedID(ev), ro)
	}
	names := make([]string, 0, len(res.Failed))
	for name := range res.Failed {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("source %s failed: %v\n", name, res.Failed[name])
	}
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/vaultcal/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Load all sources once, print a summary and exit")
	flag.StringVar(&cfg.snapshot, "snapshot", "", "Write a PNG snapshot of /calendar to this path")
	flag.IntVar(&cfg.snapshotWidth, "snapshot-width", capture.DefaultWidth, "Viewport width for -snapshot")
	flag.BoolVar(&cfg.debug, "debug", false, "Debug logging and local cache directory")

	flag.Parse()

	return cfg
}
