package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Lot is a still-or-partially-unconsumed acquisition (buy or income).
// RemainingQuantity is decremented exclusively by the HIFO matcher and
// never goes below zero; an exhausted lot is dropped from the ledger.
type Lot struct {
	AcquiredAt        time.Time       `json:"acquired_at"`
	Symbol            string          `json:"symbol"`
	UnitCost          decimal.Decimal `json:"unit_cost"`
	RemainingQuantity decimal.Decimal `json:"remaining_quantity"`
	OriginalQuantity  decimal.Decimal `json:"original_quantity"`
	Chain             string          `json:"chain"`
	OriginID          string          `json:"origin_id"` // back-reference to the acquisition record
}

// CostBasis returns the remaining cost basis held in the lot.
func (l Lot) CostBasis() decimal.Decimal {
	return l.RemainingQuantity.Mul(l.UnitCost)
}

// SalePairing is the immutable result of matching part of one sale
// against part of one lot.
type SalePairing struct {
	Symbol          string          `json:"symbol"`
	MatchedQuantity decimal.Decimal `json:"matched_quantity"`
	BuyDate         time.Time       `json:"buy_date"`
	SellDate        time.Time       `json:"sell_date"`
	CostBasis       decimal.Decimal `json:"cost_basis"`
	Proceeds        decimal.Decimal `json:"proceeds"`
	GainLoss        decimal.Decimal `json:"gain_loss"`
	HoldingDays     int             `json:"holding_days"`
	BuyChain        string          `json:"buy_chain"`
	BuyRef          string          `json:"buy_ref"`
	SellChain       string          `json:"sell_chain"`
	SellRef         string          `json:"sell_ref"`
}

// ShortTerm reports whether the pairing falls under short-term treatment.
func (p SalePairing) ShortTerm() bool {
	return p.HoldingDays < 365
}

// Term returns the holding-period class, "ST" or "LT".
func (p SalePairing) Term() string {
	if p.ShortTerm() {
		return "ST"
	}
	return "LT"
}

// UnmatchedSale records the portion of a sale that could not be paired
// because the lot ledger ran out. The quantity is reported, never
// matched against a fabricated zero-cost lot.
type UnmatchedSale struct {
	Symbol            string          `json:"symbol"`
	SellDate          time.Time       `json:"sell_date"`
	UnmatchedQuantity decimal.Decimal `json:"unmatched_quantity"`
	SellRef           string          `json:"sell_ref"`
}
