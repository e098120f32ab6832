package processors

import (
	"github.com/username/coinfolio/backend/src/models"
)

// MalformedLeg is a raw leg the normalizer refused to classify, with
// the reason it was rejected. Malformed legs are excluded from the
// output but never abort the run.
type MalformedLeg struct {
	Leg    models.RawLeg `json:"leg"`
	Reason string        `json:"reason"`
}

// NormalizeResult carries the canonical records plus the side channels
// for everything diverted on the way.
type NormalizeResult struct {
	Records         []models.TransactionRecord
	Spam            []models.RawLeg
	Approvals       []models.RawLeg
	Empty           []models.RawLeg
	StableSwaps     []models.RawLeg
	EquivalentSwaps []models.RawLeg
	Malformed       []MalformedLeg
	Suppressed      []string // source ids silenced by an explicitly empty override
}

// MatchResult is the outcome of one symbol's HIFO pass.
type MatchResult struct {
	Pairings       []models.SalePairing
	UnsoldLots     []models.Lot
	UnmatchedSales []models.UnmatchedSale
	Unpriced       []models.TransactionRecord // excluded from matching, flagged for the missing channel
}

// Normalizer turns raw ledger legs into canonical transaction records.
type Normalizer interface {
	Normalize(legs []models.RawLeg) NormalizeResult
}

// Matcher pairs sales against acquisition lots for one symbol.
type Matcher interface {
	Match(transactions []models.TransactionRecord, symbol string) MatchResult
}

// Aggregator folds pairings, unsold lots and incomes into report data.
// It performs no matching logic.
type Aggregator interface {
	DetailRows(pairings []models.SalePairing) []models.SaleDetailRow
	Summarize(pairings []models.SalePairing, incomes []models.TransactionRecord) []models.SummaryRow
	SymbolReport(symbol string, res MatchResult, incomes []models.TransactionRecord) models.SymbolReport
	PivotGainLoss(summary []models.SummaryRow) models.PivotTable
	PivotIncome(summary []models.SummaryRow) models.PivotTable
}
