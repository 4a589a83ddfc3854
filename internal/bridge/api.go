package bridge

import (
	"context"
	"time"

	"github.com/chromedp/cdproto/target"
	"github.com/rifatshampod/typeless-forms-chrome-extension/internal/autofill"
)

// BridgeAPI abstracts browser tab operations for handler testing.
type BridgeAPI interface {
	BrowserContext() context.Context
	TabContext(tabID string) (ctx context.Context, resolvedID string, err error)
	ListTargets() ([]*target.Info, error)
	CreateTab(url string) (tabID string, ctx context.Context, cancel context.CancelFunc, err error)
	CloseTab(tabID string) error

	OpenDocument(ctx context.Context, tabID string) (autofill.Document, PageInfo, error)

	TabLockInfo(tabID string) *LockInfo
	Lock(tabID, owner string, ttl time.Duration) error
	Unlock(tabID, owner string) error
}

type LockInfo struct {
	Owner     string
	ExpiresAt time.Time
}

// PageInfo identifies the page behind a tab.
type PageInfo struct {
	TabID string `json:"tabId"`
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
}
