package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	cdp "github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"github.com/rifatshampod/typeless-forms-chrome-extension/internal/autofill"
)

// ErrNoBrowser is returned by tab operations before a browser is attached.
var ErrNoBrowser = errors.New("no browser connection")

// TabSetupFunc runs once on every tab context the manager attaches to.
type TabSetupFunc func(ctx context.Context)

// TabEntry is one tracked tab. Pass is the id of the fill pass holding the
// tab, empty when idle.
type TabEntry struct {
	Ctx     context.Context
	Cancel  context.CancelFunc
	Pass    string
	Passes  int
	LastURL string
}

// TabManager tracks the tabs fill passes run on. It owns each tab's
// chromedp context, the pass lock that serializes fills on a tab and the
// URL restrictions checked before a tab is handed out as a document.
type TabManager struct {
	Locks      *LockManager
	Restricted *Restrictions

	maxTabs  int
	timeout  time.Duration
	onAttach TabSetupFunc

	mu         sync.RWMutex
	browserCtx context.Context
	tabs       map[string]*TabEntry
}

// TabOptions configures a TabManager.
type TabOptions struct {
	MaxTabs       int
	ActionTimeout time.Duration
	Restricted    *Restrictions
	OnAttach      TabSetupFunc
}

func NewTabManager(browserCtx context.Context, opts TabOptions) *TabManager {
	if opts.ActionTimeout <= 0 {
		opts.ActionTimeout = 15 * time.Second
	}
	return &TabManager{
		Locks:      NewLockManager(),
		Restricted: opts.Restricted,
		maxTabs:    opts.MaxTabs,
		timeout:    opts.ActionTimeout,
		onAttach:   opts.OnAttach,
		browserCtx: browserCtx,
		tabs:       make(map[string]*TabEntry),
	}
}

// attachBrowser sets the browser connection once Chrome is up.
func (tm *TabManager) attachBrowser(ctx context.Context) {
	tm.mu.Lock()
	tm.browserCtx = ctx
	tm.mu.Unlock()
}

func (tm *TabManager) browser() (context.Context, error) {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	if tm.browserCtx == nil {
		return nil, ErrNoBrowser
	}
	return tm.browserCtx, nil
}

// BrowserContext returns the browser connection, nil before it is attached.
func (tm *TabManager) BrowserContext() context.Context {
	ctx, _ := tm.browser()
	return ctx
}

// OpenDocument resolves tabID (empty means the first tab) and returns it as
// a fill target. Restricted pages are refused before any field is read.
func (tm *TabManager) OpenDocument(ctx context.Context, tabID string) (autofill.Document, PageInfo, error) {
	tabCtx, resolved, err := tm.TabContext(tabID)
	if err != nil {
		return nil, PageInfo{}, err
	}

	doc := NewDocument(tabCtx, resolved, tm.timeout)
	lctx, done := doc.scope(ctx)
	defer done()
	url, title, err := PageLocation(lctx)
	if err != nil {
		return nil, PageInfo{}, fmt.Errorf("tab %s location: %w", resolved, err)
	}
	info := PageInfo{TabID: resolved, URL: url, Title: title}
	tm.note(resolved, func(e *TabEntry) { e.LastURL = url })

	if err := tm.Restricted.Check(url); err != nil {
		return nil, info, err
	}
	return doc, info, nil
}

// TabContext returns the chromedp context of tabID, attaching to the tab
// on first use.
func (tm *TabManager) TabContext(tabID string) (context.Context, string, error) {
	if tabID == "" {
		first, err := tm.firstTab()
		if err != nil {
			return nil, "", err
		}
		tabID = first
	}

	tm.mu.RLock()
	e, ok := tm.tabs[tabID]
	tm.mu.RUnlock()
	if ok && e.Ctx != nil {
		return e.Ctx, tabID, nil
	}
	ctx, err := tm.attach(tabID)
	if err != nil {
		return nil, "", err
	}
	return ctx, tabID, nil
}

func (tm *TabManager) firstTab() (string, error) {
	pages, err := tm.ListTargets()
	if err != nil {
		return "", fmt.Errorf("list targets: %w", err)
	}
	if len(pages) == 0 {
		return "", fmt.Errorf("no tabs open")
	}
	return string(pages[0].TargetID), nil
}

func (tm *TabManager) attach(tabID string) (context.Context, error) {
	bctx, err := tm.browser()
	if err != nil {
		return nil, err
	}

	tm.mu.Lock()
	defer tm.mu.Unlock()
	if e, ok := tm.tabs[tabID]; ok && e.Ctx != nil {
		return e.Ctx, nil
	}

	ctx, cancel := chromedp.NewContext(bctx, chromedp.WithTargetID(target.ID(tabID)))
	if err := chromedp.Run(ctx); err != nil {
		cancel()
		return nil, fmt.Errorf("tab %s not found: %w", tabID, err)
	}
	if tm.onAttach != nil {
		tm.onAttach(ctx)
	}
	tm.track(tabID, ctx, cancel)
	return ctx, nil
}

// track records a tab context; the caller holds tm.mu.
func (tm *TabManager) track(tabID string, ctx context.Context, cancel context.CancelFunc) {
	if e, ok := tm.tabs[tabID]; ok {
		e.Ctx, e.Cancel = ctx, cancel
		return
	}
	tm.tabs[tabID] = &TabEntry{Ctx: ctx, Cancel: cancel}
}

func (tm *TabManager) note(tabID string, f func(*TabEntry)) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	if e, ok := tm.tabs[tabID]; ok {
		f(e)
	}
}

// Entry returns a copy of the tracked state of tabID.
func (tm *TabManager) Entry(tabID string) (TabEntry, bool) {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	e, ok := tm.tabs[tabID]
	if !ok {
		return TabEntry{}, false
	}
	return *e, true
}

// CreateTab opens url (about:blank when empty) in a new tab with the
// setter capture already installed.
func (tm *TabManager) CreateTab(url string) (string, context.Context, context.CancelFunc, error) {
	bctx, err := tm.browser()
	if err != nil {
		return "", nil, nil, err
	}
	if tm.maxTabs > 0 {
		pages, err := tm.ListTargets()
		if err != nil {
			return "", nil, nil, fmt.Errorf("check tab count: %w", err)
		}
		if len(pages) >= tm.maxTabs {
			return "", nil, nil, fmt.Errorf("tab limit reached (%d/%d), close a tab first", len(pages), tm.maxTabs)
		}
	}
	if url == "" {
		url = "about:blank"
	}

	var id target.ID
	cctx, ccancel := context.WithTimeout(bctx, 10*time.Second)
	err = chromedp.Run(cctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		id, err = target.CreateTarget(url).Do(ctx)
		return err
	}))
	ccancel()
	if err != nil {
		return "", nil, nil, fmt.Errorf("create target: %w", err)
	}

	ctx, cancel := chromedp.NewContext(bctx, chromedp.WithTargetID(id))
	if tm.onAttach != nil {
		tm.onAttach(ctx)
	}
	tm.mu.Lock()
	tm.track(string(id), ctx, cancel)
	tm.tabs[string(id)].LastURL = url
	tm.mu.Unlock()
	return string(id), ctx, cancel, nil
}

// CloseTab closes tabID. A tab held by a fill pass is not closed.
func (tm *TabManager) CloseTab(tabID string) error {
	if l := tm.Locks.Get(tabID); l != nil {
		return fmt.Errorf("%w: tab %s is held by pass %s", ErrTabBusy, tabID, l.Owner)
	}
	bctx, err := tm.browser()
	if err != nil {
		return err
	}

	tm.mu.Lock()
	e, tracked := tm.tabs[tabID]
	delete(tm.tabs, tabID)
	tm.mu.Unlock()
	if tracked && e.Cancel != nil {
		e.Cancel()
	}

	cctx, ccancel := context.WithTimeout(bctx, 5*time.Second)
	defer ccancel()
	if err := target.CloseTarget(target.ID(tabID)).Do(cdp.WithExecutor(cctx, chromedp.FromContext(cctx).Browser)); err != nil {
		if !tracked {
			return fmt.Errorf("tab %s not found", tabID)
		}
		slog.Debug("close target", "tabId", tabID, "err", err)
	}
	return nil
}

// ListTargets returns the open page targets.
func (tm *TabManager) ListTargets() ([]*target.Info, error) {
	bctx, err := tm.browser()
	if err != nil {
		return nil, err
	}
	var all []*target.Info
	if err := chromedp.Run(bctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		all, err = target.GetTargets().Do(ctx)
		return err
	})); err != nil {
		return nil, fmt.Errorf("get targets: %w", err)
	}

	pages := make([]*target.Info, 0, len(all))
	for _, t := range all {
		if t.Type == TargetTypePage {
			pages = append(pages, t)
		}
	}
	return pages, nil
}

// RegisterTab tracks a tab context created outside the manager.
func (tm *TabManager) RegisterTab(tabID string, ctx context.Context) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	tm.track(tabID, ctx, nil)
}

// Lock takes the pass lock of tabID for the pass owner.
func (tm *TabManager) Lock(tabID, owner string, ttl time.Duration) error {
	if err := tm.Locks.TryLock(tabID, owner, ttl); err != nil {
		return err
	}
	tm.note(tabID, func(e *TabEntry) { e.Pass = owner })
	return nil
}

// Unlock releases the pass lock and counts the finished pass.
func (tm *TabManager) Unlock(tabID, owner string) error {
	if err := tm.Locks.Unlock(tabID, owner); err != nil {
		return err
	}
	tm.note(tabID, func(e *TabEntry) {
		if e.Pass == owner {
			e.Pass = ""
			e.Passes++
		}
	})
	return nil
}

func (tm *TabManager) TabLockInfo(tabID string) *LockInfo {
	return tm.Locks.Get(tabID)
}

// CleanStaleTabs drops tabs that were closed outside the manager, together
// with any pass lock they still hold.
func (tm *TabManager) CleanStaleTabs(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		pages, err := tm.ListTargets()
		if err != nil {
			continue
		}
		alive := make(map[string]bool, len(pages))
		for _, p := range pages {
			alive[string(p.TargetID)] = true
		}
		tm.sweep(alive)
	}
}

func (tm *TabManager) sweep(alive map[string]bool) []string {
	tm.mu.Lock()
	var gone []string
	for id, e := range tm.tabs {
		if alive[id] {
			continue
		}
		if e.Cancel != nil {
			e.Cancel()
		}
		delete(tm.tabs, id)
		gone = append(gone, id)
	}
	tm.mu.Unlock()

	for _, id := range gone {
		tm.Locks.Release(id)
		slog.Info("cleaned stale tab", "id", id)
	}
	return gone
}
