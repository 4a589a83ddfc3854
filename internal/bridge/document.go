package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
	"github.com/rifatshampod/typeless-forms-chrome-extension/internal/assets"
	"github.com/rifatshampod/typeless-forms-chrome-extension/internal/autofill"
)

// Document is one browser tab seen as a fill target. Field refs are
// backend node ids; every call resolves them again, so a ref outlives
// neither a navigation nor the removal of its element.
type Document struct {
	TabID   string
	tabCtx  context.Context
	timeout time.Duration
}

func NewDocument(tabCtx context.Context, tabID string, timeout time.Duration) *Document {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Document{TabID: tabID, tabCtx: tabCtx, timeout: timeout}
}

// scope derives a tab context bounded by the action timeout that is also
// cancelled with ctx.
func (d *Document) scope(ctx context.Context) (context.Context, context.CancelFunc) {
	tctx, cancel := context.WithTimeout(d.tabCtx, d.timeout)
	stop := context.AfterFunc(ctx, cancel)
	return tctx, func() {
		stop()
		cancel()
	}
}

type fieldDescription struct {
	Detached    bool   `json:"detached"`
	Tag         string `json:"tag"`
	Type        string `json:"type"`
	ID          string `json:"id"`
	Name        string `json:"name"`
	Placeholder string `json:"placeholder"`
	LabelText   string `json:"labelText"`
	Value       string `json:"value"`
	Disabled    bool   `json:"disabled"`
	ReadOnly    bool   `json:"readOnly"`
}

func (fd fieldDescription) field(ref string) autofill.Field {
	f := autofill.Field{
		Ref:         ref,
		Type:        fd.Type,
		ID:          fd.ID,
		Name:        fd.Name,
		Placeholder: fd.Placeholder,
		LabelText:   fd.LabelText,
		Value:       fd.Value,
		Disabled:    fd.Disabled,
		ReadOnly:    fd.ReadOnly,
	}
	switch fd.Tag {
	case "input":
		f.Kind = autofill.KindTextInput
	case "textarea":
		f.Kind = autofill.KindTextarea
	default:
		f.Kind = autofill.KindOther
	}
	return f
}

func (d *Document) Fields(ctx context.Context) ([]autofill.Field, error) {
	tctx, done := d.scope(ctx)
	defer done()

	var nodes []*cdp.Node
	if err := chromedp.Run(tctx,
		chromedp.Nodes("input, textarea", &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0)),
	); err != nil {
		return nil, fmt.Errorf("query fields: %w", err)
	}

	ids := make([]int64, len(nodes))
	for i, n := range nodes {
		ids[i] = int64(n.BackendNodeID)
	}
	return collectFields(tctx, d.TabID, ids, func(id int64) (fieldDescription, error) {
		var desc fieldDescription
		err := callOnNode(tctx, id, assets.DescribeFn, nil, &desc)
		return desc, err
	})
}

// collectFields describes each node in order. A node that detached or
// cannot be described is left out; only a dead context fails the call.
func collectFields(ctx context.Context, tabID string, ids []int64, describe func(int64) (fieldDescription, error)) ([]autofill.Field, error) {
	fields := make([]autofill.Field, 0, len(ids))
	for _, id := range ids {
		desc, err := describe(id)
		if err != nil {
			if cerr := ctx.Err(); cerr != nil {
				return nil, fmt.Errorf("describe node %d: %w", id, cerr)
			}
			if !errors.Is(err, autofill.ErrDetached) {
				slog.Warn("describe field failed, skipping", "tab", tabID, "node", id, "err", err)
			}
			continue
		}
		if desc.Detached {
			continue
		}
		fields = append(fields, desc.field(strconv.FormatInt(id, 10)))
	}
	return fields, nil
}

func (d *Document) Apply(ctx context.Context, ref string, ops []autofill.Op) (autofill.Applied, error) {
	id, err := strconv.ParseInt(ref, 10, 64)
	if err != nil {
		return autofill.Applied{}, fmt.Errorf("bad ref %q: %w", ref, autofill.ErrDetached)
	}

	tctx, done := d.scope(ctx)
	defer done()

	var res struct {
		Detached  bool              `json:"detached"`
		Occupied  bool              `json:"occupied"`
		PrevStyle map[string]string `json:"prevStyle"`
	}
	if err := callOnNode(tctx, id, assets.ApplyFn, []any{ops}, &res); err != nil {
		return autofill.Applied{}, err
	}
	if res.Detached {
		return autofill.Applied{}, fmt.Errorf("node %d: %w", id, autofill.ErrDetached)
	}
	if res.Occupied {
		return autofill.Applied{}, fmt.Errorf("node %d: %w", id, autofill.ErrOccupied)
	}
	return autofill.Applied{PrevStyle: res.PrevStyle}, nil
}

// Announce shows n as the page banner.
func (d *Document) Announce(ctx context.Context, n autofill.Notice) error {
	dur := n.Duration
	if dur <= 0 {
		dur = autofill.NoticeDuration
	}
	bg, border := n.Level.Colors()
	expr, err := scriptCall(assets.BannerFn, autofill.NotificationID, n.Message, bg, border, dur.Milliseconds())
	if err != nil {
		return err
	}

	tctx, done := d.scope(ctx)
	defer done()
	var shown bool
	if err := chromedp.Run(tctx, chromedp.Evaluate(expr, &shown)); err != nil {
		return fmt.Errorf("show banner: %w", err)
	}
	return nil
}
