// Package htmldoc runs fill passes against a parsed HTML document instead
// of a live browser tab.
package htmldoc

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/antchfx/htmlquery"
	"github.com/rifatshampod/typeless-forms-chrome-extension/internal/autofill"
	"golang.org/x/net/html"
)

const NotificationID = autofill.NotificationID

// Event is one event dispatched on an element.
type Event struct {
	Ref        string `json:"ref"`
	Type       string `json:"type"`
	Bubbles    bool   `json:"bubbles,omitempty"`
	Cancelable bool   `json:"cancelable,omitempty"`
	InputType  string `json:"inputType,omitempty"`
	Data       string `json:"data,omitempty"`
}

// Document is a parsed HTML tree with the live state a browser would keep
// beside it: current values, focus and dispatched events.
type Document struct {
	mu      sync.Mutex
	root    *html.Node
	refs    map[string]*html.Node
	nodeRef map[*html.Node]string
	values  map[*html.Node]string
	focused *html.Node
	events  []Event
	notices []autofill.Notice

	// InputEvents reports whether the InputEvent constructor exists.
	// Without it, typed input dispatches are dropped.
	InputEvents bool
}

func Parse(r io.Reader) (*Document, error) {
	root, err := htmlquery.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return New(root), nil
}

func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

func New(root *html.Node) *Document {
	return &Document{
		root:        root,
		refs:        make(map[string]*html.Node),
		nodeRef:     make(map[*html.Node]string),
		values:      make(map[*html.Node]string),
		InputEvents: true,
	}
}

// Root returns the underlying tree. Callers mutating it play the role of
// page scripts re-rendering the DOM.
func (d *Document) Root() *html.Node { return d.root }

func (d *Document) Fields(ctx context.Context) ([]autofill.Field, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	nodes, err := htmlquery.QueryAll(d.root, "//*[self::input or self::textarea]")
	if err != nil {
		return nil, fmt.Errorf("query fields: %w", err)
	}
	fields := make([]autofill.Field, 0, len(nodes))
	for _, n := range nodes {
		fields = append(fields, d.describe(n))
	}
	return fields, nil
}

func (d *Document) describe(n *html.Node) autofill.Field {
	f := autofill.Field{
		Ref:         d.refFor(n),
		ID:          attr(n, "id"),
		Name:        attr(n, "name"),
		Placeholder: attr(n, "placeholder"),
		Value:       d.value(n),
		Disabled:    hasAttr(n, "disabled"),
		ReadOnly:    hasAttr(n, "readonly"),
	}
	switch n.Data {
	case "textarea":
		f.Kind = autofill.KindTextarea
		f.Type = "textarea"
	case "input":
		f.Kind = autofill.KindTextInput
		f.Type = strings.ToLower(attr(n, "type"))
		if f.Type == "" {
			f.Type = "text"
		}
	default:
		f.Kind = autofill.KindOther
	}
	if label := d.labelFor(n); label != nil {
		f.LabelText = htmlquery.InnerText(label)
	}
	return f
}

func (d *Document) refFor(n *html.Node) string {
	if ref, ok := d.nodeRef[n]; ok {
		return ref
	}
	ref := fmt.Sprintf("h%d", len(d.refs)+1)
	d.refs[ref] = n
	d.nodeRef[n] = ref
	return ref
}

// labelFor finds the label associated with n: an explicit label[for],
// then the nearest label ancestor, then a label immediately before n.
func (d *Document) labelFor(n *html.Node) *html.Node {
	if id := attr(n, "id"); id != "" {
		if l := htmlquery.FindOne(d.root, "//label[@for="+xpathLiteral(id)+"]"); l != nil {
			return l
		}
	}
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode && p.Data == "label" {
			return p
		}
	}
	if prev := previousElementSibling(n); prev != nil && prev.Data == "label" {
		return prev
	}
	return nil
}

// value returns the live value: the last value written through the
// setter, or else the markup default.
func (d *Document) value(n *html.Node) string {
	if v, ok := d.values[n]; ok {
		return v
	}
	if n.Data == "textarea" {
		return htmlquery.InnerText(n)
	}
	return attr(n, "value")
}

func (d *Document) resolve(ref string) (*html.Node, error) {
	n, ok := d.refs[ref]
	if !ok {
		return nil, fmt.Errorf("unknown ref %q: %w", ref, autofill.ErrDetached)
	}
	if !d.attached(n) {
		return nil, fmt.Errorf("ref %q: %w", ref, autofill.ErrDetached)
	}
	return n, nil
}

func (d *Document) attached(n *html.Node) bool {
	for p := n; p != nil; p = p.Parent {
		if p == d.root {
			return true
		}
	}
	return false
}

func (d *Document) Apply(ctx context.Context, ref string, ops []autofill.Op) (autofill.Applied, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	n, err := d.resolve(ref)
	if err != nil {
		return autofill.Applied{}, err
	}

	applied := autofill.Applied{}
	for _, op := range ops {
		switch op.Kind {
		case autofill.OpRequireEmpty:
			if strings.TrimSpace(d.value(n)) != "" {
				return applied, fmt.Errorf("%s: %w", ref, autofill.ErrOccupied)
			}
		case autofill.OpSetNativeValue:
			d.values[n] = op.Value
		case autofill.OpSetAttribute:
			setAttr(n, op.Name, op.Value)
		case autofill.OpDispatch:
			if op.InputType != "" && !d.InputEvents {
				continue
			}
			ev := Event{Ref: ref, Type: op.Name, Bubbles: op.Bubbles, Cancelable: op.Cancelable, InputType: op.InputType}
			if op.InputType != "" {
				ev.Data = op.Value
			}
			d.events = append(d.events, ev)
		case autofill.OpFocus:
			if d.focused == n {
				continue
			}
			if d.focused != nil {
				d.events = append(d.events, Event{Ref: d.nodeRef[d.focused], Type: "blur"})
			}
			d.focused = n
			d.events = append(d.events, Event{Ref: ref, Type: "focus"})
		case autofill.OpBlur:
			if d.focused == n {
				d.focused = nil
				d.events = append(d.events, Event{Ref: ref, Type: "blur"})
			}
		case autofill.OpSetStyle:
			prev, err := setStyle(n, op.Name, op.Value)
			if err != nil {
				return applied, fmt.Errorf("style %s: %w", op.Name, err)
			}
			if applied.PrevStyle == nil {
				applied.PrevStyle = make(map[string]string)
			}
			if _, seen := applied.PrevStyle[op.Name]; !seen {
				applied.PrevStyle[op.Name] = prev
			}
		default:
			return applied, fmt.Errorf("unknown op %q", op.Kind)
		}
	}
	return applied, nil
}

// Value returns the live value of the field behind ref.
func (d *Document) Value(ref string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n, err := d.resolve(ref)
	if err != nil {
		return "", err
	}
	return d.value(n), nil
}

// Events returns the events dispatched so far.
func (d *Document) Events() []Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Event, len(d.events))
	copy(out, d.events)
	return out
}

// Focused returns the ref of the focused element, or "".
func (d *Document) Focused() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.focused == nil {
		return ""
	}
	return d.nodeRef[d.focused]
}

// Style returns the inline style property of the field behind ref.
func (d *Document) Style(ref, property string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n, err := d.resolve(ref)
	if err != nil {
		return "", err
	}
	decls, err := parseStyle(attr(n, "style"))
	if err != nil {
		return "", err
	}
	for _, dcl := range decls {
		if dcl.property == property {
			return dcl.value, nil
		}
	}
	return "", nil
}

// Render writes the document with the live values serialized into the
// markup: input value attributes and textarea contents.
func (d *Document) Render(w io.Writer) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for n, v := range d.values {
		switch n.Data {
		case "textarea":
			for c := n.FirstChild; c != nil; {
				next := c.NextSibling
				n.RemoveChild(c)
				c = next
			}
			n.AppendChild(&html.Node{Type: html.TextNode, Data: v})
		default:
			setAttr(n, "value", v)
		}
	}
	return html.Render(w, d.root)
}
