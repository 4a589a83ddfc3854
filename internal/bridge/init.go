package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/rifatshampod/typeless-forms-chrome-extension/internal/assets"
	"github.com/rifatshampod/typeless-forms-chrome-extension/internal/config"
)

const chromeStartTimeout = 15 * time.Second

// InitChrome connects to the browser named by cfg.CdpURL, or launches a
// local Chrome, and returns the allocator and browser contexts. A local
// launch that fails is retried once with session restore data cleared.
func InitChrome(cfg *config.RuntimeConfig) (context.Context, context.CancelFunc, context.Context, context.CancelFunc, error) {
	slog.Info("starting chrome", "headless", cfg.Headless, "profile", cfg.ProfileDir, "cdp", cfg.CdpURL)

	allocCtx, allocCancel, err := setupAllocator(cfg)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	browserCtx, browserCancel, err := startChrome(allocCtx)
	if err != nil && cfg.CdpURL == "" {
		slog.Warn("Chrome startup failed, clearing sessions and retrying once", "err", err)
		allocCancel()
		ClearChromeSessions(cfg.ProfileDir)
		MarkCleanExit(cfg.ProfileDir)

		if allocCtx, allocCancel, err = setupAllocator(cfg); err != nil {
			return nil, nil, nil, nil, err
		}
		browserCtx, browserCancel, err = startChrome(allocCtx)
	}
	if err != nil {
		allocCancel()
		return nil, nil, nil, nil, fmt.Errorf("failed to start chrome: %w", err)
	}

	slog.Info("chrome ready", "headless", cfg.Headless)
	return allocCtx, allocCancel, browserCtx, browserCancel, nil
}

func setupAllocator(cfg *config.RuntimeConfig) (context.Context, context.CancelFunc, error) {
	if cfg.CdpURL != "" {
		slog.Info("connecting to Chrome", "url", cfg.CdpURL)
		ctx, cancel := chromedp.NewRemoteAllocator(context.Background(), cfg.CdpURL)
		return ctx, cancel, nil
	}

	if err := PrepareProfile(cfg.ProfileDir); err != nil {
		return nil, nil, fmt.Errorf("prepare profile dir: %w", err)
	}
	slog.Info("launching Chrome", "profile", cfg.ProfileDir, "headless", cfg.Headless)

	ctx, cancel := chromedp.NewExecAllocator(context.Background(), buildChromeOpts(cfg)...)
	return ctx, cancel, nil
}

func buildChromeOpts(cfg *config.RuntimeConfig) []chromedp.ExecAllocatorOption {
	opts := []chromedp.ExecAllocatorOption{
		chromedp.UserDataDir(cfg.ProfileDir),
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,

		chromedp.Flag("disable-infobars", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-background-timer-throttling", true),
		chromedp.Flag("disable-backgrounding-occluded-windows", true),
		chromedp.Flag("disable-renderer-backgrounding", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("disable-session-crashed-bubble", true),
		chromedp.Flag("hide-crash-restore-bubble", true),

		chromedp.WindowSize(1280, 900),
	}

	if cfg.ChromeBinary != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ChromeBinary))
	}
	if cfg.ChromeExtraFlags != "" {
		for _, f := range strings.Fields(cfg.ChromeExtraFlags) {
			if k, v, ok := strings.Cut(f, "="); ok {
				opts = append(opts, chromedp.Flag(strings.TrimLeft(k, "-"), v))
			} else {
				opts = append(opts, chromedp.Flag(strings.TrimLeft(f, "-"), true))
			}
		}
	}

	if cfg.Headless {
		opts = append(opts, chromedp.Headless)
	} else {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	return opts
}

// startChrome opens the first tab and installs the setter capture script
// on it.
func startChrome(allocCtx context.Context) (context.Context, context.CancelFunc, error) {
	bCtx, bCancel := chromedp.NewContext(allocCtx)

	startCtx, startDone := context.WithTimeout(context.Background(), chromeStartTimeout)
	defer startDone()

	errCh := make(chan error, 1)
	go func() {
		errCh <- chromedp.Run(bCtx,
			chromedp.ActionFunc(func(ctx context.Context) error {
				_, err := page.AddScriptToEvaluateOnNewDocument(assets.CaptureScript).Do(ctx)
				return err
			}),
		)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			bCancel()
			return nil, nil, err
		}
		return bCtx, bCancel, nil
	case <-startCtx.Done():
		bCancel()
		return nil, nil, fmt.Errorf("timed out after %s", chromeStartTimeout)
	}
}

// RegisterInitialTab tracks the tab the browser context was opened on. A
// remote browser has no such tab of ours.
func (b *Bridge) RegisterInitialTab() {
	if b.Config == nil || b.Config.CdpURL != "" || b.BrowserCtx == nil || b.TabManager == nil {
		return
	}
	c := chromedp.FromContext(b.BrowserCtx)
	if c == nil || c.Target == nil {
		return
	}
	id := string(c.Target.TargetID)
	b.RegisterTab(id, b.BrowserCtx)
	slog.Info("initial tab", "id", id)
}
