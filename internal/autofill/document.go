// Package autofill matches saved label/value pairs against the fillable
// fields of a document and writes values into them in a way that UI
// frameworks observe.
package autofill

import (
	"context"
	"errors"
)

// ErrDetached is returned by a Document when a field reference no longer
// resolves to an element attached to the document.
var ErrDetached = errors.New("element detached")

// ErrOccupied is returned by Apply when an OpRequireEmpty op finds the
// element already holding a value, typically typed after enumeration.
var ErrOccupied = errors.New("element already has a value")

// Kind is the element kind of a field.
type Kind string

const (
	KindTextInput Kind = "text-input"
	KindTextarea  Kind = "textarea"
	KindOther     Kind = "other"
)

// Field is a read-only snapshot of one candidate element, taken when the
// document is enumerated. Ref is an opaque handle the Document resolves
// again for every Apply call.
type Field struct {
	Ref         string `json:"ref"`
	Kind        Kind   `json:"kind"`
	Type        string `json:"type,omitempty"`
	ID          string `json:"id,omitempty"`
	Name        string `json:"name,omitempty"`
	Placeholder string `json:"placeholder,omitempty"`
	LabelText   string `json:"labelText,omitempty"`
	Value       string `json:"-"`
	Disabled    bool   `json:"disabled,omitempty"`
	ReadOnly    bool   `json:"readOnly,omitempty"`
}

// Document is the page a fill pass runs against.
//
// Fields returns every input and textarea element in document order.
// LabelText must already hold the associated label text, discovered in
// order: label[for=id], nearest label ancestor, immediately preceding
// sibling label.
//
// Apply runs ops against the element behind ref as one uninterrupted unit
// and reports the inline style values that SetStyle ops replaced.
type Document interface {
	Fields(ctx context.Context) ([]Field, error)
	Apply(ctx context.Context, ref string, ops []Op) (Applied, error)
}

// Announcer is implemented by documents that can show an on-page banner.
type Announcer interface {
	Announce(ctx context.Context, n Notice) error
}

// OpKind names one primitive DOM write.
type OpKind string

const (
	// OpRequireEmpty stops the Apply call with ErrOccupied, before any
	// later op runs, when the element's trimmed value is non-empty.
	OpRequireEmpty OpKind = "requireEmpty"
	// OpSetNativeValue writes through the element kind's original value
	// setter, bypassing any accessor the page installed on the element.
	OpSetNativeValue OpKind = "setNativeValue"
	OpSetAttribute   OpKind = "setAttribute"
	// OpDispatch dispatches an event. With InputType set and InputEvent
	// available it is dispatched as an InputEvent; without InputEvent
	// support the op is dropped.
	OpDispatch OpKind = "dispatch"
	OpFocus    OpKind = "focus"
	OpBlur     OpKind = "blur"
	// OpSetStyle sets an inline style property; an empty Value removes it.
	OpSetStyle OpKind = "setStyle"
)

type Op struct {
	Kind       OpKind `json:"kind"`
	Name       string `json:"name,omitempty"`
	Value      string `json:"value,omitempty"`
	Bubbles    bool   `json:"bubbles,omitempty"`
	Cancelable bool   `json:"cancelable,omitempty"`
	InputType  string `json:"inputType,omitempty"`
}

// Applied reports what an Apply call replaced.
type Applied struct {
	PrevStyle map[string]string `json:"prevStyle,omitempty"`
}
