package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/rifatshampod/typeless-forms-chrome-extension/internal/pairs"
	"github.com/rifatshampod/typeless-forms-chrome-extension/internal/web"
)

func pairsError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, pairs.ErrInvalidPair):
		web.ErrorCode(w, 400, "invalid_pair", err.Error(), false, nil)
	case errors.Is(err, pairs.ErrNotFound):
		web.ErrorCode(w, 404, "pair_not_found", err.Error(), false, nil)
	case errors.Is(err, pairs.ErrStorageUnavailable):
		web.ErrorCode(w, 503, "storage_unavailable", err.Error(), true, nil)
	default:
		web.Error(w, 500, err)
	}
}

// HandleListPairs lists saved pairs, filtered by ?q= over label and value.
func (h *Handlers) HandleListPairs(w http.ResponseWriter, r *http.Request) {
	list, err := h.Pairs.List(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		pairsError(w, err)
		return
	}
	if list == nil {
		list = []pairs.Pair{}
	}
	web.JSON(w, 200, map[string]any{"pairs": list, "count": len(list)})
}

// HandleAddPair saves a pair. A label already saved has its value
// replaced in place.
func (h *Handlers) HandleAddPair(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Label string `json:"label"`
		Value string `json:"value"`
	}
	if err := web.DecodeJSON(w, r, &req, false); err != nil {
		web.Error(w, 400, err)
		return
	}

	p, created, err := h.Pairs.Add(r.Context(), req.Label, req.Value)
	if err != nil {
		pairsError(w, err)
		return
	}
	code := 200
	if created {
		code = 201
	}
	web.JSON(w, code, map[string]any{"pair": p, "created": created})
}

func (h *Handlers) HandleDeletePair(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		web.Error(w, 400, fmt.Errorf("bad pair id %q", r.PathValue("id")))
		return
	}
	if err := h.Pairs.Delete(r.Context(), id); err != nil {
		pairsError(w, err)
		return
	}
	web.JSON(w, 200, map[string]any{"deleted": true, "id": id})
}

// HandleExportPairs downloads every pair as JSON or, with ?format=yaml,
// YAML.
func (h *Handlers) HandleExportPairs(w http.ResponseWriter, r *http.Request) {
	format := pairs.FormatFromName(r.URL.Query().Get("format"))
	list, err := h.Pairs.Load(r.Context())
	if err != nil {
		pairsError(w, err)
		return
	}

	if format == pairs.FormatYAML {
		web.Attachment(w, "application/yaml", "typeless-pairs.yaml")
	} else {
		web.Attachment(w, "application/json", "typeless-pairs.json")
	}
	if err := pairs.Export(w, list, format); err != nil {
		web.Error(w, 500, err)
	}
}

// HandleImportPairs merges an exported document into the saved pairs.
// The format comes from ?format= or the Content-Type.
func (h *Handlers) HandleImportPairs(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" && strings.Contains(r.Header.Get("Content-Type"), "yaml") {
		format = pairs.FormatYAML
	}

	incoming, err := pairs.Decode(http.MaxBytesReader(w, r.Body, web.MaxBodySize), pairs.FormatFromName(format))
	if err != nil {
		web.ErrorCode(w, 400, "invalid_import", err.Error(), false, nil)
		return
	}
	created, updated, err := h.Pairs.Import(r.Context(), incoming)
	if err != nil {
		pairsError(w, err)
		return
	}
	web.JSON(w, 200, map[string]any{"created": created, "updated": updated})
}
