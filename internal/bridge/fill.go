package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/rifatshampod/typeless-forms-chrome-extension/internal/autofill"
)

// FillTab runs one fill pass on a tab while holding the tab's pass lock,
// so two passes never interleave on one document. The lock owner is the
// pass id.
func FillTab(ctx context.Context, b BridgeAPI, svc *autofill.Service, tabID string, ttl time.Duration) (autofill.Report, error) {
	doc, info, err := b.OpenDocument(ctx, tabID)
	if err != nil {
		return autofill.Report{}, err
	}

	if ttl <= 0 {
		ttl = DefaultLockTimeout
	}
	passID := uuid.NewString()
	if err := b.Lock(info.TabID, passID, ttl); err != nil {
		return autofill.Report{}, err
	}
	defer func() {
		if err := b.Unlock(info.TabID, passID); err != nil {
			slog.Warn("release pass lock", "tabId", info.TabID, "err", err)
		}
	}()

	rep := svc.Fill(ctx, doc, autofill.PassTarget{PassID: passID, TabID: info.TabID, URL: info.URL})
	return rep, nil
}

// PreviewTab matches saved pairs against a tab without writing.
func PreviewTab(ctx context.Context, b BridgeAPI, svc *autofill.Service, tabID string) (autofill.Plan, PageInfo, error) {
	doc, info, err := b.OpenDocument(ctx, tabID)
	if err != nil {
		return autofill.Plan{}, info, err
	}
	plan, err := svc.Preview(ctx, doc)
	if err != nil {
		return autofill.Plan{}, info, fmt.Errorf("preview tab %s: %w", info.TabID, err)
	}
	return plan, info, nil
}
