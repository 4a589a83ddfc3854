package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/rifatshampod/typeless-forms-chrome-extension/internal/autofill"
)

const eventBuffer = 16

// Event is one message of the /events stream.
type Event struct {
	Type        string           `json:"type"`
	Subscribers int              `json:"subscribers,omitempty"`
	Report      *autofill.Report `json:"report,omitempty"`
}

// EventHub fans fill reports out to websocket subscribers. A subscriber
// that falls behind loses reports rather than stalling passes.
type EventHub struct {
	mu   sync.Mutex
	subs map[chan autofill.Report]struct{}
}

func NewEventHub() *EventHub {
	return &EventHub{subs: make(map[chan autofill.Report]struct{})}
}

func (hub *EventHub) Notify(ctx context.Context, rep autofill.Report) {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	for ch := range hub.subs {
		select {
		case ch <- rep:
		default:
			slog.Debug("event subscriber behind, dropping report", "passId", rep.PassID)
		}
	}
}

func (hub *EventHub) Subscribe() (<-chan autofill.Report, func()) {
	ch := make(chan autofill.Report, eventBuffer)
	hub.mu.Lock()
	hub.subs[ch] = struct{}{}
	hub.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			hub.mu.Lock()
			delete(hub.subs, ch)
			hub.mu.Unlock()
		})
	}
}

func (hub *EventHub) Subscribers() int {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	return len(hub.subs)
}

// HandleEvents upgrades to a websocket and streams every fill report as a
// JSON text message, after an initial hello.
func (h *Handlers) HandleEvents(w http.ResponseWriter, r *http.Request) {
	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		slog.Error("ws upgrade failed", "err", err)
		return
	}
	defer func() { _ = conn.Close() }()

	reports, unsubscribe := h.Events.Subscribe()
	defer unsubscribe()

	send := func(ev Event) error {
		data, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		return wsutil.WriteServerText(conn, data)
	}
	if err := send(Event{Type: "hello", Subscribers: h.Events.Subscribers()}); err != nil {
		return
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := wsutil.ReadClientData(conn); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(30 * time.Second)
	defer ping.Stop()
	for {
		select {
		case rep := <-reports:
			if err := send(Event{Type: "report", Report: &rep}); err != nil {
				return
			}
		case <-ping.C:
			if err := wsutil.WriteServerMessage(conn, ws.OpPing, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
