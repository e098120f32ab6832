// src/handlers/upload_handler.go
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/username/coinfolio/backend/src/config"
	"github.com/username/coinfolio/backend/src/logger"
	"github.com/username/coinfolio/backend/src/services"
	"github.com/username/coinfolio/backend/src/utils"
)

type UploadHandler struct {
	taxService services.TaxService
}

func NewUploadHandler(s services.TaxService) *UploadHandler {
	return &UploadHandler{taxService: s}
}

// HandleUpload accepts a multipart upload of one ledger export or
// exchange report, processes it and returns the rebuilt report.
// The "source" form field selects the parser; it defaults to "ledger".
func (h *UploadHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, config.Cfg.MaxUploadSizeBytes)
	if err := r.ParseMultipartForm(config.Cfg.MaxUploadSizeBytes); err != nil {
		utils.SendJSONError(w, "File too large or invalid form", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		utils.SendJSONError(w, "Invalid file upload", http.StatusBadRequest)
		return
	}
	defer file.Close()

	source := r.FormValue("source")
	logger.L.Info("Received file upload", "filename", header.Filename, "size", header.Size, "source", source)

	report, err := h.taxService.ProcessLedger(file, source)
	if err != nil {
		if errors.Is(err, services.ErrParsingFailed) {
			logger.L.Warn("Upload parsing failed", "filename", header.Filename, "error", err)
			utils.SendJSONError(w, "Failed to parse the uploaded file", http.StatusUnprocessableEntity)
			return
		}
		logger.L.Error("Failed to process upload", "filename", header.Filename, "error", err)
		utils.SendJSONError(w, "Failed to process the uploaded file", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(report); err != nil {
		logger.L.Error("Failed to encode upload response", "error", err)
	}
}
