package handlers

import (
	"errors"
	"net/http"

	"github.com/rifatshampod/typeless-forms-chrome-extension/internal/autofill"
	"github.com/rifatshampod/typeless-forms-chrome-extension/internal/bridge"
	"github.com/rifatshampod/typeless-forms-chrome-extension/internal/web"
)

type fillRequest struct {
	TabID  string `json:"tabId"`
	DryRun bool   `json:"dryRun"`
}

// HandleFill runs a fill pass on the tab named in the body, or the first
// tab when none is named.
func (h *Handlers) HandleFill(w http.ResponseWriter, r *http.Request) {
	var req fillRequest
	if err := web.DecodeJSON(w, r, &req, true); err != nil {
		web.Error(w, 400, err)
		return
	}
	h.fill(w, r, req)
}

func (h *Handlers) HandleTabFill(w http.ResponseWriter, r *http.Request) {
	var req fillRequest
	if err := web.DecodeJSON(w, r, &req, true); err != nil {
		web.Error(w, 400, err)
		return
	}
	req.TabID = r.PathValue("id")
	h.fill(w, r, req)
}

func (h *Handlers) fill(w http.ResponseWriter, r *http.Request, req fillRequest) {
	if req.DryRun || r.URL.Query().Get("dryRun") == "true" {
		h.preview(w, r, req.TabID)
		return
	}

	rep, err := bridge.FillTab(r.Context(), h.Bridge, h.Service, req.TabID, h.Config.PassLockTTL)
	if err != nil {
		fillError(w, err)
		return
	}
	w.Header().Set(headerPassID, rep.PassID)
	web.JSON(w, 200, rep)
}

type previewField struct {
	Ref   string         `json:"ref"`
	ID    string         `json:"id,omitempty"`
	Name  string         `json:"name,omitempty"`
	Label string         `json:"label"`
	Facet autofill.Facet `json:"facet"`
}

func (h *Handlers) preview(w http.ResponseWriter, r *http.Request, tabID string) {
	plan, info, err := bridge.PreviewTab(r.Context(), h.Bridge, h.Service, tabID)
	if err != nil {
		fillError(w, err)
		return
	}
	fields := make([]previewField, 0, len(plan.Assignments))
	for _, a := range plan.Assignments {
		fields = append(fields, previewField{
			Ref:   a.Field.Ref,
			ID:    a.Field.ID,
			Name:  a.Field.Name,
			Label: a.Pair.Label,
			Facet: a.Facet,
		})
	}
	web.JSON(w, 200, map[string]any{
		"tabId":      info.TabID,
		"url":        info.URL,
		"dryRun":     true,
		"candidates": plan.Candidates,
		"skipped":    plan.Skipped,
		"excluded":   plan.Excluded,
		"unmatched":  plan.Unmatched,
		"fields":     fields,
	})
}

func fillError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, bridge.ErrRestrictedPage):
		web.ErrorCode(w, 422, "restricted_page", err.Error(), false, nil)
	case errors.Is(err, bridge.ErrTabBusy):
		web.ErrorCode(w, 409, "tab_busy", err.Error(), true, nil)
	default:
		web.ErrorCode(w, 502, "browser_error", err.Error(), true, nil)
	}
}
