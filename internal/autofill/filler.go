package autofill

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

const (
	HighlightColor      = "#d4f4dd"
	HighlightTransition = "background 0.3s ease"
)

// Timing holds the delays of the deferred fill steps.
type Timing struct {
	BlurDelay     time.Duration
	HighlightHold time.Duration
	HighlightFade time.Duration
	// ScheduledTimeout bounds each deferred Apply call.
	ScheduledTimeout time.Duration
}

func DefaultTiming() Timing {
	return Timing{
		BlurDelay:        50 * time.Millisecond,
		HighlightHold:    1000 * time.Millisecond,
		HighlightFade:    300 * time.Millisecond,
		ScheduledTimeout: 5 * time.Second,
	}
}

// Filler writes values into fields.
type Filler struct {
	Scheduler Scheduler
	Timing    Timing
	Highlight bool
}

func NewFiller(s Scheduler, t Timing) *Filler {
	if s == nil {
		s = TimerScheduler{}
	}
	return &Filler{Scheduler: s, Timing: t, Highlight: true}
}

// WriteOps is the synchronous part of a fill: a check that the field is
// still empty, the native-setter write, the attribute fallback, the three
// framework events, focus and the trailing change event.
func WriteOps(value string) []Op {
	return []Op{
		{Kind: OpRequireEmpty},
		{Kind: OpSetNativeValue, Value: value},
		{Kind: OpSetAttribute, Name: "value", Value: value},
		{Kind: OpDispatch, Name: "input", Bubbles: true, Cancelable: true},
		{Kind: OpDispatch, Name: "change", Bubbles: true, Cancelable: true},
		{Kind: OpDispatch, Name: "input", Bubbles: true, Cancelable: true, InputType: "insertText", Value: value},
		{Kind: OpFocus},
		{Kind: OpDispatch, Name: "change", Bubbles: true},
	}
}

// HighlightOps starts the fill highlight.
func HighlightOps() []Op {
	return []Op{
		{Kind: OpSetStyle, Name: "transition", Value: HighlightTransition},
		{Kind: OpSetStyle, Name: "background", Value: HighlightColor},
	}
}

// Fill writes value into field. Everything up to the highlight start runs
// in one Apply call; the blur and the highlight revert are scheduled and
// outlive the call.
func (f *Filler) Fill(ctx context.Context, doc Document, field Field, value string) error {
	ops := WriteOps(value)
	if f.Highlight {
		ops = append(ops, HighlightOps()...)
	}

	applied, err := doc.Apply(ctx, field.Ref, ops)
	if err != nil {
		return fmt.Errorf("fill %s: %w", field.Ref, err)
	}

	ref := field.Ref
	bg := context.WithoutCancel(ctx)

	f.Scheduler.AfterFunc(f.Timing.BlurDelay, func() {
		f.applyLater(bg, doc, ref, []Op{{Kind: OpBlur}})
	})

	if f.Highlight {
		prevBackground := applied.PrevStyle["background"]
		prevTransition := applied.PrevStyle["transition"]
		f.Scheduler.AfterFunc(f.Timing.HighlightHold, func() {
			f.applyLater(bg, doc, ref, []Op{{Kind: OpSetStyle, Name: "background", Value: prevBackground}})
			f.Scheduler.AfterFunc(f.Timing.HighlightFade, func() {
				f.applyLater(bg, doc, ref, []Op{{Kind: OpSetStyle, Name: "transition", Value: prevTransition}})
			})
		})
	}
	return nil
}

func (f *Filler) applyLater(ctx context.Context, doc Document, ref string, ops []Op) {
	if f.Timing.ScheduledTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.Timing.ScheduledTimeout)
		defer cancel()
	}
	if _, err := doc.Apply(ctx, ref, ops); err != nil {
		slog.Debug("deferred fill step dropped", "ref", ref, "op", ops[0].Kind, "err", err)
	}
}
