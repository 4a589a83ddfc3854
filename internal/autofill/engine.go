package autofill

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rifatshampod/typeless-forms-chrome-extension/internal/pairs"
)

// Engine runs fill passes.
type Engine struct {
	Filler *Filler
}

func NewEngine(f *Filler) *Engine {
	return &Engine{Filler: f}
}

// Run matches list against doc and fills every assigned field. It never
// returns a partial report: any enumeration failure, panic or cancellation
// turns the whole pass into an error outcome. A field that fails to fill
// is counted in Failed and the pass moves on; one that gained a value
// after enumeration is counted in Skipped.
func (e *Engine) Run(ctx context.Context, doc Document, list []pairs.Pair) (rep Report) {
	rep.StartedAt = time.Now()
	defer func() {
		if r := recover(); r != nil {
			rep = errorReport(rep, fmt.Errorf("panic: %v", r))
		}
		rep.DurationMs = time.Since(rep.StartedAt).Milliseconds()
	}()

	if len(list) == 0 {
		rep.Outcome = OutcomeNoData
		rep.Message = msgNoData
		return rep
	}

	fields, err := doc.Fields(ctx)
	if err != nil {
		return errorReport(rep, fmt.Errorf("enumerate fields: %w", err))
	}
	slog.Debug("fill candidates", "fields", len(fields), "pairs", len(list))

	plan := PlanFill(fields, list)
	rep.Skipped = plan.Skipped

	for _, a := range plan.Assignments {
		if err := ctx.Err(); err != nil {
			return errorReport(rep, fmt.Errorf("pass interrupted: %w", err))
		}
		if err := e.Filler.Fill(ctx, doc, a.Field, a.Pair.Value); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return errorReport(rep, fmt.Errorf("pass interrupted: %w", ctxErr))
			}
			if errors.Is(err, ErrOccupied) {
				rep.Skipped++
				slog.Debug("field filled since enumeration, skipping", "ref", a.Field.Ref)
				continue
			}
			rep.Failed++
			if errors.Is(err, ErrDetached) {
				slog.Debug("field detached, skipping", "ref", a.Field.Ref)
			} else {
				slog.Warn("field fill failed, skipping", "ref", a.Field.Ref, "err", err)
			}
			continue
		}
		rep.Filled++
		rep.Fields = append(rep.Fields, FilledField{
			Ref:   a.Field.Ref,
			ID:    a.Field.ID,
			Name:  a.Field.Name,
			Label: a.Pair.Label,
			Facet: a.Facet,
		})
		slog.Debug("filled field", "ref", a.Field.Ref, "label", a.Pair.Label, "facet", a.Facet)
	}

	if rep.Filled > 0 {
		rep.Outcome = OutcomeFilled
		rep.Message = filledMessage(rep.Result)
	} else {
		rep.Outcome = OutcomeNoMatches
		rep.Message = msgNoMatches
	}
	return rep
}

func errorReport(rep Report, err error) Report {
	rep.Outcome = OutcomeError
	rep.Result = Result{}
	rep.Fields = nil
	rep.Failed = 0
	rep.Message = msgError
	rep.Error = err.Error()
	return rep
}
