// Package bridge drives Chrome over the DevTools protocol: it owns the
// browser connection, tracks tabs and exposes each tab as a fill target.
package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/rifatshampod/typeless-forms-chrome-extension/internal/assets"
	"github.com/rifatshampod/typeless-forms-chrome-extension/internal/config"
)

type Bridge struct {
	AllocCtx      context.Context
	AllocCancel   context.CancelFunc
	BrowserCtx    context.Context
	BrowserCancel context.CancelFunc
	Config        *config.RuntimeConfig
	*TabManager
	CaptureScript string

	initMu      sync.Mutex
	initialized bool
}

// New returns a bridge whose tab manager attaches to browserCtx, or to the
// browser EnsureChrome starts when browserCtx is nil.
func New(allocCtx, browserCtx context.Context, cfg *config.RuntimeConfig) *Bridge {
	b := &Bridge{
		AllocCtx:      allocCtx,
		BrowserCtx:    browserCtx,
		Config:        cfg,
		CaptureScript: assets.CaptureScript,
	}
	patterns := config.DefaultRestrictedURLs
	opts := TabOptions{OnAttach: b.injectCapture}
	if cfg != nil {
		patterns = cfg.RestrictedURLs
		opts.MaxTabs = cfg.MaxTabs
		opts.ActionTimeout = cfg.ActionTimeout
	}
	r, err := NewRestrictions(patterns)
	if err != nil {
		slog.Warn("invalid restricted url patterns, using defaults", "err", err)
		r, _ = NewRestrictions(config.DefaultRestrictedURLs)
	}
	opts.Restricted = r
	b.TabManager = NewTabManager(browserCtx, opts)
	return b
}

// injectCapture installs the setter capture script for future documents
// of the tab and runs it once on the current one. A page loaded before
// the install keeps whatever setters its scripts left on the prototypes.
func (b *Bridge) injectCapture(ctx context.Context) {
	if b.CaptureScript == "" {
		return
	}
	if err := chromedp.Run(ctx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(b.CaptureScript).Do(ctx)
			return err
		}),
		chromedp.Evaluate(b.CaptureScript, nil),
	); err != nil {
		slog.Warn("setter capture injection failed", "err", err)
	}
}

func (b *Bridge) EnsureChrome(cfg *config.RuntimeConfig) error {
	b.initMu.Lock()
	defer b.initMu.Unlock()

	if b.initialized || b.BrowserCtx != nil {
		return nil
	}

	allocCtx, allocCancel, browserCtx, browserCancel, err := InitChrome(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize chrome: %w", err)
	}

	b.AllocCtx = allocCtx
	b.AllocCancel = allocCancel
	b.BrowserCtx = browserCtx
	b.BrowserCancel = browserCancel
	b.initialized = true
	b.attachBrowser(browserCtx)
	return nil
}

// Close shuts the browser connection down. For a remote browser this only
// detaches.
func (b *Bridge) Close() {
	if b.BrowserCancel != nil {
		b.BrowserCancel()
	}
	if b.AllocCancel != nil {
		b.AllocCancel()
	}
}
