// Package capture takes PNG snapshots of the /calendar page with a headless
// Chromium.
package capture

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/chromedp/chromedp"

	appLog "vaultcal/internal/log"
)

// Default capture parameters. DefaultWidth is above the mobile threshold so
// the week layout is captured unless a narrower width is asked for.
const (
	DefaultWidth   = 1280
	DefaultHeight  = 900
	DefaultTimeout = 30 * time.Second
)

// Options defines parameters for a snapshot.
type Options struct {
	// BaseURL of a running server, e.g. "http://127.0.0.1:8080".
	BaseURL string

	// OutputPath is where the PNG is written.
	OutputPath string

	// Width and Height are the viewport size in pixels. Width is also passed
	// to /calendar so the page picks the matching layout.
	Width  int
	Height int

	// Username and Password are sent as basic auth when set.
	Username string
	Password string

	Timeout time.Duration
}

func (o *Options) normalize() error {
	if o.BaseURL == "" {
		return errors.New("capture: BaseURL is required")
	}
	if o.OutputPath == "" {
		return errors.New("capture: OutputPath is required")
	}
	if o.Width <= 0 {
		o.Width = DefaultWidth
	}
	if o.Height <= 0 {
		o.Height = DefaultHeight
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	return nil
}

// PageURL is the /calendar URL captured for o.
func (o Options) PageURL() (string, error) {
	u, err := url.Parse(o.BaseURL)
	if err != nil {
		return "", fmt.Errorf("capture: base url: %w", err)
	}
	u = u.JoinPath("calendar")
	q := u.Query()
	q.Set("width", strconv.Itoa(o.Width))
	u.RawQuery = q.Encode()
	if o.Username != "" {
		u.User = url.UserPassword(o.Username, o.Password)
	}
	return u.String(), nil
}

// Calendar navigates to /calendar, waits for the page to signal
// data-ready="true", and writes a full-page PNG.
func Calendar(parentCtx context.Context, opts Options) error {
	if err := opts.normalize(); err != nil {
		return err
	}
	target, err := opts.PageURL()
	if err != nil {
		return err
	}

	ctx, cancel := chromedp.NewContext(parentCtx)
	defer cancel()

	ctx, timeoutCancel := context.WithTimeout(ctx, opts.Timeout)
	defer timeoutCancel()

	var png []byte
	tasks := chromedp.Tasks{
		chromedp.EmulateViewport(int64(opts.Width), int64(opts.Height)),
		chromedp.Navigate(target),
		chromedp.WaitVisible(`[data-ready="true"]`, chromedp.ByQuery),
		// Allow final paints.
		chromedp.Sleep(300 * time.Millisecond),
		chromedp.FullScreenshot(&png, 100),
	}

	started := time.Now()
	if err := chromedp.Run(ctx, tasks); err != nil {
		return fmt.Errorf("capture: chromedp run failed: %w", err)
	}

	if err := os.WriteFile(opts.OutputPath, png, 0o644); err != nil {
		return fmt.Errorf("capture: failed to write PNG: %w", err)
	}

	appLog.Info("capture: snapshot written",
		"path", opts.OutputPath,
		"width", opts.Width,
		"bytes", len(png),
		"elapsed_ms", time.Since(started).Milliseconds(),
	)
	return nil
}
