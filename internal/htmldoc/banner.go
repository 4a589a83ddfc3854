package htmldoc

import (
	"context"
	"fmt"

	"github.com/antchfx/htmlquery"
	"github.com/rifatshampod/typeless-forms-chrome-extension/internal/autofill"
	"golang.org/x/net/html"
)

// Announce shows n as a banner at the end of the body, replacing any
// earlier banner. A static document has no clock, so the banner is not
// dismissed.
func (d *Document) Announce(ctx context.Context, n autofill.Notice) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if old := htmlquery.FindOne(d.root, "//*[@id="+xpathLiteral(NotificationID)+"]"); old != nil && old.Parent != nil {
		old.Parent.RemoveChild(old)
	}

	body := htmlquery.FindOne(d.root, "//body")
	if body == nil {
		return fmt.Errorf("announce: document has no body")
	}

	bg, border := n.Level.Colors()
	div := &html.Node{
		Type: html.ElementNode,
		Data: "div",
		Attr: []html.Attribute{
			{Key: "id", Val: NotificationID},
			{Key: "data-level", Val: string(n.Level)},
			{Key: "style", Val: fmt.Sprintf(
				"position: fixed; top: 20px; right: 20px; background: %s; color: white; padding: 16px 24px; "+
					"border-radius: 8px; z-index: 999999; font-size: 14px; max-width: 400px; border: 2px solid %s;",
				bg, border)},
		},
	}
	div.AppendChild(&html.Node{Type: html.TextNode, Data: n.Message})
	body.AppendChild(div)
	d.notices = append(d.notices, n)
	return nil
}

// Notices returns every notice announced on the document.
func (d *Document) Notices() []autofill.Notice {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]autofill.Notice, len(d.notices))
	copy(out, d.notices)
	return out
}
