package services

import (
	"errors"
	"io"
	"time"

	"github.com/username/coinfolio/backend/src/models"
)

var (
	ErrParsingFailed = errors.New("parsing failed")
	ErrNoReport      = errors.New("no report available, upload a ledger first")
)

// NormalizationStats counts what the normalizer diverted on the last
// ledger upload.
type NormalizationStats struct {
	TotalLegs          int `json:"total_legs"`
	SpamLegs           int `json:"spam_legs"`
	ApprovalLegs       int `json:"approval_legs"`
	EmptyLegs          int `json:"empty_legs"`
	StableSwapLegs     int `json:"stable_swap_legs"`
	EquivalentSwapLegs int `json:"equivalent_swap_legs"`
	MalformedLegs      int `json:"malformed_legs"`
	SuppressedBatches  int `json:"suppressed_batches"`
}

// TaxReport holds the full output of one processing run.
type TaxReport struct {
	RunID          string                     `json:"run_id"`
	GeneratedAt    time.Time                  `json:"generated_at"`
	Stats          NormalizationStats         `json:"stats"`
	Detail         []models.SaleDetailRow     `json:"detail"`
	Summary        []models.SummaryRow        `json:"summary"`
	GainLossPivot  models.PivotTable          `json:"gain_loss_pivot"`
	IncomePivot    models.PivotTable          `json:"income_pivot"`
	SymbolReports  []models.SymbolReport      `json:"symbol_reports"`
	UnsoldLots     []models.Lot               `json:"unsold_lots"`
	UnmatchedSales []models.UnmatchedSale     `json:"unmatched_sales"`
	MissingPrices  []models.TransactionRecord `json:"missing_prices"`
}

// TaxService is the core orchestration surface: ingest ledger exports
// and exchange reports, run the HIFO pass per symbol, serve the
// aggregated results.
type TaxService interface {
	ProcessLedger(fileReader io.Reader, source string) (*TaxReport, error)
	LatestReport() (*TaxReport, error)
	GetSummary() ([]models.SummaryRow, error)
	GetDetailRows() ([]models.SaleDetailRow, error)
	GetPivot(kind string) (models.PivotTable, error)
	GetUnsoldLots() ([]models.Lot, error)
	GetSymbolReport(symbol string) (models.SymbolReport, error)
	GetProcessedTransactions() ([]models.TransactionRecord, error)
	DeleteAllTransactions() error
}

// PriceService resolves USD values for buy/sell/income records before
// they enter the matcher. The matcher itself never prices anything.
type PriceService interface {
	// PriceRecords returns all records, with USD values filled where a
	// source could resolve them, plus the subset still missing a price.
	PriceRecords(records []models.TransactionRecord) (priced []models.TransactionRecord, missing []models.TransactionRecord)
}
