package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/rifatshampod/typeless-forms-chrome-extension/internal/bridge"
	"github.com/rifatshampod/typeless-forms-chrome-extension/internal/web"
)

func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"status": "ok", "cdp": h.Config.CdpURL, "store": h.Config.StoreDriver}

	if list, err := h.Pairs.Load(r.Context()); err != nil {
		resp["status"] = "degraded"
		resp["storeError"] = err.Error()
	} else {
		resp["pairs"] = len(list)
	}

	targets, err := h.Bridge.ListTargets()
	if err != nil {
		resp["status"] = "disconnected"
		resp["error"] = err.Error()
	} else {
		resp["tabs"] = len(targets)
	}
	web.JSON(w, 200, resp)
}

func (h *Handlers) HandleTabs(w http.ResponseWriter, r *http.Request) {
	targets, err := h.Bridge.ListTargets()
	if err != nil {
		web.Error(w, 500, err)
		return
	}

	tabs := make([]map[string]any, 0, len(targets))
	for _, t := range targets {
		entry := map[string]any{
			"id":    string(t.TargetID),
			"url":   t.URL,
			"title": t.Title,
		}
		if lock := h.Bridge.TabLockInfo(string(t.TargetID)); lock != nil {
			entry["passId"] = lock.Owner
			entry["lockedUntil"] = lock.ExpiresAt.Format(time.RFC3339)
		}
		tabs = append(tabs, entry)
	}
	web.JSON(w, 200, map[string]any{"tabs": tabs})
}

func (h *Handlers) HandleOpenTab(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL string `json:"url"`
	}
	if err := web.DecodeJSON(w, r, &req, true); err != nil {
		web.Error(w, 400, err)
		return
	}

	tabID, _, _, err := h.Bridge.CreateTab(req.URL)
	if err != nil {
		web.Error(w, 500, fmt.Errorf("open tab: %w", err))
		return
	}
	slog.Info("tab opened", "tabId", tabID, "url", req.URL)
	web.JSON(w, 201, map[string]any{"tabId": tabID, "url": req.URL})
}

func (h *Handlers) HandleCloseTab(w http.ResponseWriter, r *http.Request) {
	tabID := r.PathValue("id")
	if err := h.Bridge.CloseTab(tabID); err != nil {
		if errors.Is(err, bridge.ErrTabBusy) {
			web.ErrorCode(w, 409, "tab_busy", err.Error(), true, nil)
			return
		}
		web.ErrorCode(w, 404, "tab_not_found", err.Error(), false, nil)
		return
	}
	web.JSON(w, 200, map[string]any{"closed": true, "tabId": tabID})
}
