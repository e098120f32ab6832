// src/handlers/transaction_handler.go
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/username/coinfolio/backend/src/logger"
	"github.com/username/coinfolio/backend/src/services"
	"github.com/username/coinfolio/backend/src/utils"
)

type TransactionHandler struct {
	taxService services.TaxService
}

func NewTransactionHandler(s services.TaxService) *TransactionHandler {
	return &TransactionHandler{taxService: s}
}

func (h *TransactionHandler) HandleGetTransactions(w http.ResponseWriter, r *http.Request) {
	transactions, err := h.taxService.GetProcessedTransactions()
	if err != nil {
		logger.L.Error("Failed to get processed transactions", "error", err)
		utils.SendJSONError(w, "Failed to retrieve transactions", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(transactions); err != nil {
		logger.L.Error("Failed to encode transactions response", "error", err)
	}
}

// HandleDeleteTransactions wipes all stored transactions and derived
// match results.
func (h *TransactionHandler) HandleDeleteTransactions(w http.ResponseWriter, r *http.Request) {
	if err := h.taxService.DeleteAllTransactions(); err != nil {
		logger.L.Error("Failed to delete transactions", "error", err)
		utils.SendJSONError(w, "Failed to delete transactions", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
