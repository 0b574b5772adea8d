package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/Vodeneev/ttmonitor/internal/pkg/config"
)

const (
	hideWebdriver   = `Object.defineProperty(navigator, 'webdriver', {get: () => undefined})`
	readyStateCheck = `document.readyState === "complete"`

	readyStateTimeout = 10 * time.Second
	defaultPageWait   = 3 * time.Second
	reloadSettle      = 2 * time.Second
	aliveTimeout      = 5 * time.Second
)

var _ Browser = (*Chrome)(nil)

// Chrome drives one headless Chrome tab through chromedp. The browser process
// is started on first use.
type Chrome struct {
	cfg config.BrowserConfig

	mu          sync.Mutex
	tabCtx      context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
	url         string
}

func NewChrome(cfg config.BrowserConfig) *Chrome {
	return &Chrome{cfg: cfg}
}

func (c *Chrome) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", c.cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-plugins", true),
	)
	if c.cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(c.cfg.UserAgent))
	}
	if c.cfg.WindowWidth > 0 && c.cfg.WindowHeight > 0 {
		opts = append(opts, chromedp.WindowSize(c.cfg.WindowWidth, c.cfg.WindowHeight))
	}
	if c.cfg.ChromePath != "" {
		opts = append(opts, chromedp.ExecPath(c.cfg.ChromePath))
	}
	return opts
}

// start launches Chrome. c.mu must be held.
func (c *Chrome) start() error {
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), c.allocatorOptions()...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx, chromedp.WithErrorf(func(format string, v ...any) {
		slog.Debug("chromedp", "message", fmt.Sprintf(format, v...))
	}))

	err := chromedp.Run(tabCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		_, err := page.AddScriptToEvaluateOnNewDocument(hideWebdriver).Do(ctx)
		return err
	}))
	if err != nil {
		cancelTab()
		cancelAlloc()
		return err
	}

	c.tabCtx, c.cancelTab, c.cancelAlloc = tabCtx, cancelTab, cancelAlloc
	slog.Info("Chrome started", "headless", c.cfg.Headless)
	return nil
}

// stop shuts Chrome down. c.mu must be held.
func (c *Chrome) stop() {
	if c.cancelTab != nil {
		c.cancelTab()
	}
	if c.cancelAlloc != nil {
		c.cancelAlloc()
	}
	c.tabCtx, c.cancelTab, c.cancelAlloc = nil, nil, nil
}

// runCtx derives a context from the tab that also ends when ctx does.
// Cancelling it never closes the tab.
func (c *Chrome) runCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	run, cancel := context.WithCancel(c.tabCtx)
	if deadline, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		run, cancelDeadline = context.WithDeadline(run, deadline)
		prev := cancel
		cancel = func() { cancelDeadline(); prev() }
	}
	stopAfter := context.AfterFunc(ctx, cancel)
	return run, func() {
		stopAfter()
		cancel()
	}
}

func (c *Chrome) Fetch(ctx context.Context, url, waitSelector string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.tabCtx == nil {
		if err := c.start(); err != nil {
			return "", Wrap("start", "", err)
		}
	}

	run, cancel := c.runCtx(ctx)
	defer cancel()

	slog.Info("Navigating", "url", url)
	var wait chromedp.Action = chromedp.Sleep(defaultPageWait)
	if waitSelector != "" {
		wait = chromedp.WaitReady(waitSelector, chromedp.ByQuery)
	}
	if err := chromedp.Run(run, chromedp.Navigate(url), wait); err != nil {
		return "", Wrap("fetch", url, contextErr(run, err))
	}
	c.url = url

	html, err := c.readRendered(run, c.cfg.RenderDelay)
	if err != nil {
		return "", Wrap("fetch", url, contextErr(run, err))
	}
	return html, nil
}

func (c *Chrome) RefreshInPlace(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.tabCtx == nil || c.url == "" {
		return "", Wrap("refresh", c.url, errors.New("no page loaded"))
	}

	run, cancel := c.runCtx(ctx)
	defer cancel()

	if err := chromedp.Run(run, chromedp.Reload()); err != nil {
		return "", Wrap("refresh", c.url, contextErr(run, err))
	}
	html, err := c.readRendered(run, reloadSettle)
	if err != nil {
		return "", Wrap("refresh", c.url, contextErr(run, err))
	}
	return html, nil
}

// readRendered waits for the document to finish loading and for scripts to
// settle, then returns the outer HTML.
func (c *Chrome) readRendered(ctx context.Context, settle time.Duration) (string, error) {
	var ready bool
	err := chromedp.Run(ctx, chromedp.Poll(readyStateCheck, &ready, chromedp.WithPollingTimeout(readyStateTimeout)))
	if err != nil {
		if ctx.Err() != nil {
			return "", err
		}
		slog.Warn("Page readyState timeout, proceeding anyway", "error", err)
	}

	var html string
	var actions []chromedp.Action
	if settle > 0 {
		actions = append(actions, chromedp.Sleep(settle))
	}
	actions = append(actions, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	if err := chromedp.Run(ctx, actions...); err != nil {
		return "", err
	}
	return html, nil
}

// IsAlive checks the tab with a cheap round trip.
func (c *Chrome) IsAlive(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.tabCtx == nil {
		return false
	}
	aliveCtx, cancel := context.WithTimeout(ctx, aliveTimeout)
	defer cancel()
	run, stop := c.runCtx(aliveCtx)
	defer stop()

	var loc string
	return chromedp.Run(run, chromedp.Location(&loc)) == nil
}

func (c *Chrome) Restart(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	slog.Info("Restarting Chrome")
	c.stop()
	c.url = ""
	if err := ctx.Err(); err != nil {
		return Wrap("restart", "", err)
	}
	return Wrap("restart", "", c.start())
}

func (c *Chrome) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stop()
	return nil
}

// contextErr prefers the context's error so deadline expiry is reported as
// such instead of as a generic chromedp failure.
func contextErr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
		return errors.Join(ctxErr, err)
	}
	return err
}
