package handlers

import (
	"context"
	"net/http"
	"sync"

	"github.com/rifatshampod/typeless-forms-chrome-extension/internal/autofill"
	"github.com/rifatshampod/typeless-forms-chrome-extension/internal/web"
)

// FillMetrics counts fill passes by outcome and the fields they touched.
type FillMetrics struct {
	mu       sync.Mutex
	outcomes map[autofill.Outcome]uint64
	filled   uint64
	skipped  uint64
	failed   uint64
}

func NewFillMetrics() *FillMetrics {
	return &FillMetrics{outcomes: make(map[autofill.Outcome]uint64)}
}

func (m *FillMetrics) Notify(ctx context.Context, rep autofill.Report) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes[rep.Outcome]++
	m.filled += uint64(rep.Filled)
	m.skipped += uint64(rep.Skipped)
	m.failed += uint64(rep.Failed)
}

func (m *FillMetrics) Snapshot() map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	outcomes := make(map[string]uint64, len(m.outcomes))
	var passes uint64
	for o, n := range m.outcomes {
		outcomes[string(o)] = n
		passes += n
	}
	return map[string]any{
		"passes":        passes,
		"outcomes":      outcomes,
		"fieldsFilled":  m.filled,
		"fieldsSkipped": m.skipped,
		"fieldsFailed":  m.failed,
	}
}

func (h *Handlers) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	web.JSON(w, 200, map[string]any{
		"http":        requestMetrics.snapshot(),
		"fills":       h.Metrics.Snapshot(),
		"subscribers": h.Events.Subscribers(),
	})
}
