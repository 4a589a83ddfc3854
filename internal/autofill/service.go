package autofill

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/rifatshampod/typeless-forms-chrome-extension/internal/pairs"
)

// PairSource loads the saved pairs for a pass.
type PairSource interface {
	Load(ctx context.Context) ([]pairs.Pair, error)
}

// Notifier receives every finished report.
type Notifier interface {
	Notify(ctx context.Context, rep Report)
}

// Service is the fill trigger: it loads pairs, runs one pass, shows the
// banner on the document and fans the report out to notifiers.
type Service struct {
	Pairs     PairSource
	Engine    *Engine
	Notifiers []Notifier
	// Banner controls whether documents that implement Announcer show
	// the outcome on the page.
	Banner    bool
	newPassID func() string
}

func NewService(src PairSource, e *Engine, notifiers ...Notifier) *Service {
	return &Service{
		Pairs:     src,
		Engine:    e,
		Notifiers: notifiers,
		Banner:    true,
		newPassID: uuid.NewString,
	}
}

type requestIDKey struct{}

// WithRequestID tags ctx with the id of the request that triggered a pass.
// The pass logs it and copies it into its report.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// PassTarget identifies the page a pass runs against, for reporting. An
// empty PassID gets a fresh one.
type PassTarget struct {
	PassID string
	TabID  string
	URL    string
}

// Fill runs one complete fill pass. The pair load is awaited before the
// document is touched; a storage failure aborts the pass with an error
// outcome and no DOM access.
func (s *Service) Fill(ctx context.Context, doc Document, target PassTarget) Report {
	passID := target.PassID
	if passID == "" {
		passID = s.newPassID()
	}
	log := slog.With("passId", passID, "tabId", target.TabID)
	rid := RequestIDFrom(ctx)
	if rid != "" {
		log = log.With("requestId", rid)
	}

	list, err := s.Pairs.Load(ctx)
	var rep Report
	if err != nil {
		log.Error("load pairs", "err", err)
		rep = errorReport(Report{StartedAt: time.Now()}, fmt.Errorf("load pairs: %w", err))
	} else {
		rep = s.Engine.Run(ctx, doc, list)
	}
	rep.PassID = passID
	rep.RequestID = rid
	rep.TabID = target.TabID
	rep.URL = target.URL

	switch rep.Outcome {
	case OutcomeError:
		log.Error("fill pass failed", "err", rep.Error)
	default:
		log.Info("fill pass", "outcome", rep.Outcome, "filled", rep.Filled, "skipped", rep.Skipped, "failed", rep.Failed, "ms", rep.DurationMs)
	}

	if s.Banner {
		if a, ok := doc.(Announcer); ok {
			if err := a.Announce(ctx, rep.Notice()); err != nil {
				log.Warn("notification banner", "err", err)
			}
		}
	}
	for _, n := range s.Notifiers {
		n.Notify(ctx, rep)
	}
	return rep
}

// Preview matches pairs against doc without writing anything.
func (s *Service) Preview(ctx context.Context, doc Document) (Plan, error) {
	list, err := s.Pairs.Load(ctx)
	if err != nil {
		return Plan{}, fmt.Errorf("load pairs: %w", err)
	}
	if len(list) == 0 {
		return Plan{}, nil
	}
	fields, err := doc.Fields(ctx)
	if err != nil {
		return Plan{}, fmt.Errorf("enumerate fields: %w", err)
	}
	return PlanFill(fields, list), nil
}
