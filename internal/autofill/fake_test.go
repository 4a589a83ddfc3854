package autofill

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

type applyCall struct {
	ref string
	ops []Op
}

// fakeDoc is an in-memory Document. SetNativeValue ops update the field's
// value so a second pass sees the fill. typed holds values that land in a
// field after enumeration, just before its first Apply.
type fakeDoc struct {
	mu         sync.Mutex
	fields     []Field
	style      map[string]map[string]string
	calls      []applyCall
	detached   map[string]bool
	typed      map[string]string
	fieldsErr  error
	panicOn    string
	notices    []Notice
	enumerated int
}

func newFakeDoc(fields ...Field) *fakeDoc {
	for i := range fields {
		if fields[i].Ref == "" {
			fields[i].Ref = fmt.Sprintf("f%d", i)
		}
		if fields[i].Kind == "" {
			fields[i].Kind = KindTextInput
		}
	}
	return &fakeDoc{fields: fields, style: map[string]map[string]string{}, detached: map[string]bool{}, typed: map[string]string{}}
}

func (d *fakeDoc) Fields(ctx context.Context) ([]Field, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.enumerated++
	if d.fieldsErr != nil {
		return nil, d.fieldsErr
	}
	out := make([]Field, len(d.fields))
	copy(out, d.fields)
	return out, nil
}

func (d *fakeDoc) Apply(ctx context.Context, ref string, ops []Op) (Applied, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if ref == d.panicOn {
		panic("boom")
	}
	if d.detached[ref] {
		return Applied{}, ErrDetached
	}
	d.calls = append(d.calls, applyCall{ref: ref, ops: ops})
	if v, ok := d.typed[ref]; ok {
		delete(d.typed, ref)
		d.setValue(ref, v)
	}
	applied := Applied{PrevStyle: map[string]string{}}
	for _, op := range ops {
		switch op.Kind {
		case OpRequireEmpty:
			if strings.TrimSpace(d.valueLocked(ref)) != "" {
				return Applied{}, ErrOccupied
			}
		case OpSetNativeValue:
			d.setValue(ref, op.Value)
		case OpSetStyle:
			st := d.style[ref]
			if st == nil {
				st = map[string]string{}
				d.style[ref] = st
			}
			applied.PrevStyle[op.Name] = st[op.Name]
			st[op.Name] = op.Value
		}
	}
	return applied, nil
}

func (d *fakeDoc) Announce(ctx context.Context, n Notice) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.notices = append(d.notices, n)
	return nil
}

func (d *fakeDoc) setValue(ref, v string) {
	for i := range d.fields {
		if d.fields[i].Ref == ref {
			d.fields[i].Value = v
		}
	}
}

func (d *fakeDoc) value(ref string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.valueLocked(ref)
}

func (d *fakeDoc) valueLocked(ref string) string {
	for _, f := range d.fields {
		if f.Ref == ref {
			return f.Value
		}
	}
	return ""
}

func (d *fakeDoc) callsFor(ref string) []applyCall {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []applyCall
	for _, c := range d.calls {
		if c.ref == ref {
			out = append(out, c)
		}
	}
	return out
}

type recordingNotifier struct {
	reports []Report
}

func (n *recordingNotifier) Notify(ctx context.Context, rep Report) {
	n.reports = append(n.reports, rep)
}
