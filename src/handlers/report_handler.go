// src/handlers/report_handler.go
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/username/coinfolio/backend/src/logger"
	"github.com/username/coinfolio/backend/src/models"
	"github.com/username/coinfolio/backend/src/services"
	"github.com/username/coinfolio/backend/src/utils"
)

type ReportHandler struct {
	taxService services.TaxService
}

func NewReportHandler(s services.TaxService) *ReportHandler {
	return &ReportHandler{taxService: s}
}

// sendReportError maps report retrieval failures to a status code.
// An empty store is a 404, not a server error.
func sendReportError(w http.ResponseWriter, what string, err error) {
	if errors.Is(err, services.ErrNoReport) {
		utils.SendJSONError(w, "No report available yet, upload a ledger first", http.StatusNotFound)
		return
	}
	logger.L.Error("Failed to get "+what, "error", err)
	utils.SendJSONError(w, "Failed to retrieve "+what, http.StatusInternalServerError)
}

// HandleGetSummary serves the per-year, per-symbol summary rows.
// Supports conditional requests via ETag so the frontend can poll
// cheaply.
func (h *ReportHandler) HandleGetSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.taxService.GetSummary()
	if err != nil {
		sendReportError(w, "summary", err)
		return
	}

	etag, err := utils.GenerateETag(summary)
	if err == nil {
		w.Header().Set("ETag", etag)
		if match := r.Header.Get("If-None-Match"); match != "" && match == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(summary); err != nil {
		logger.L.Error("Failed to encode summary response", "error", err)
	}
}

// HandleGetDetail serves every sale pairing as display-ready rows,
// ordered by sell date.
func (h *ReportHandler) HandleGetDetail(w http.ResponseWriter, r *http.Request) {
	detail, err := h.taxService.GetDetailRows()
	if err != nil {
		sendReportError(w, "detail rows", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(struct {
		Header []string    `json:"header"`
		Rows   interface{} `json:"rows"`
	}{Header: models.DetailHeader, Rows: detail}); err != nil {
		logger.L.Error("Failed to encode detail response", "error", err)
	}
}

// HandleGetPivot serves a year-by-symbol pivot. ?kind=gainloss (the
// default) or ?kind=income.
func (h *ReportHandler) HandleGetPivot(w http.ResponseWriter, r *http.Request) {
	kind := r.URL.Query().Get("kind")
	if kind == "" {
		kind = "gainloss"
	}

	pivot, err := h.taxService.GetPivot(kind)
	if err != nil {
		if strings.Contains(err.Error(), "unknown pivot kind") {
			utils.SendJSONError(w, "Unknown pivot kind, use 'gainloss' or 'income'", http.StatusBadRequest)
			return
		}
		sendReportError(w, "pivot", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(pivot); err != nil {
		logger.L.Error("Failed to encode pivot response", "error", err)
	}
}

func (h *ReportHandler) HandleGetUnsoldLots(w http.ResponseWriter, r *http.Request) {
	lots, err := h.taxService.GetUnsoldLots()
	if err != nil {
		sendReportError(w, "unsold lots", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(lots); err != nil {
		logger.L.Error("Failed to encode unsold lots response", "error", err)
	}
}

func (h *ReportHandler) HandleGetSymbolReport(w http.ResponseWriter, r *http.Request) {
	symbol := r.PathValue("symbol")
	if symbol == "" {
		utils.SendJSONError(w, "Missing symbol", http.StatusBadRequest)
		return
	}

	report, err := h.taxService.GetSymbolReport(symbol)
	if err != nil {
		sendReportError(w, "symbol report", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(report); err != nil {
		logger.L.Error("Failed to encode symbol report response", "error", err)
	}
}
