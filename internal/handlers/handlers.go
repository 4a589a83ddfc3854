// Package handlers provides the HTTP API of the fill server.
package handlers

import (
	"net/http"

	"github.com/rifatshampod/typeless-forms-chrome-extension/internal/autofill"
	"github.com/rifatshampod/typeless-forms-chrome-extension/internal/bridge"
	"github.com/rifatshampod/typeless-forms-chrome-extension/internal/config"
	"github.com/rifatshampod/typeless-forms-chrome-extension/internal/pairs"
)

type Handlers struct {
	Bridge  bridge.BridgeAPI
	Config  *config.RuntimeConfig
	Pairs   *pairs.Manager
	Service *autofill.Service
	Events  *EventHub
	Metrics *FillMetrics
}

// New wires the fill service so every report reaches the event stream,
// the fill metrics and any extra notifiers.
func New(b bridge.BridgeAPI, cfg *config.RuntimeConfig, mgr *pairs.Manager, engine *autofill.Engine, extra ...autofill.Notifier) *Handlers {
	h := &Handlers{
		Bridge:  b,
		Config:  cfg,
		Pairs:   mgr,
		Events:  NewEventHub(),
		Metrics: NewFillMetrics(),
	}
	notifiers := append([]autofill.Notifier{h.Events, h.Metrics}, extra...)
	h.Service = autofill.NewService(mgr, engine, notifiers...)
	h.Service.Banner = cfg.Banner
	return h
}

func (h *Handlers) RegisterRoutes(mux *http.ServeMux, doShutdown func()) {
	mux.HandleFunc("GET /health", h.HandleHealth)
	mux.HandleFunc("GET /metrics", h.HandleMetrics)
	mux.HandleFunc("GET /tabs", h.HandleTabs)
	mux.HandleFunc("POST /tabs", h.HandleOpenTab)
	mux.HandleFunc("DELETE /tabs/{id}", h.HandleCloseTab)
	mux.HandleFunc("POST /fill", h.HandleFill)
	mux.HandleFunc("POST /tabs/{id}/fill", h.HandleTabFill)
	mux.HandleFunc("GET /pairs", h.HandleListPairs)
	mux.HandleFunc("POST /pairs", h.HandleAddPair)
	mux.HandleFunc("DELETE /pairs/{id}", h.HandleDeletePair)
	mux.HandleFunc("GET /pairs/export", h.HandleExportPairs)
	mux.HandleFunc("POST /pairs/import", h.HandleImportPairs)
	mux.HandleFunc("GET /events", h.HandleEvents)

	if doShutdown != nil {
		mux.HandleFunc("POST /shutdown", h.HandleShutdown(doShutdown))
	}
}

// Handler returns the routed API wrapped in the middleware chain.
func (h *Handlers) Handler(doShutdown func()) http.Handler {
	mux := http.NewServeMux()
	h.RegisterRoutes(mux, doShutdown)
	limiter := NewRateLimiter(rateWindow)
	return RequestIDMiddleware(LoggingMiddleware(CorsMiddleware(limiter.Middleware(AuthMiddleware(h.Config, mux)))))
}
