package models

import (
	"github.com/shopspring/decimal"
)

// DetailHeader is the column contract of the detail table. Downstream
// tax-form generators rely on this exact order.
var DetailHeader = []string{
	"symbol",
	"buy_date",
	"sell_date",
	"qty",
	"cost_basis",
	"proceeds",
	"gain_loss",
	"duration_held",
	"sell_year",
	"term",
	"buy_ref",
	"sell_ref",
}

// SaleDetailRow is one line of the detail table, ordered by sale date.
type SaleDetailRow struct {
	Symbol       string          `json:"symbol"`
	BuyDate      string          `json:"buy_date"` // YYYY-MM-DD
	SellDate     string          `json:"sell_date"`
	Qty          decimal.Decimal `json:"qty"`
	CostBasis    decimal.Decimal `json:"cost_basis"`
	Proceeds     decimal.Decimal `json:"proceeds"`
	GainLoss     decimal.Decimal `json:"gain_loss"`
	DurationHeld int             `json:"duration_held"`
	SellYear     int             `json:"sell_year"`
	Term         string          `json:"term"` // "ST" or "LT"
	BuyRef       string          `json:"buy_ref"`
	SellRef      string          `json:"sell_ref"`
}

// Record renders the row in DetailHeader order for CSV export. Money
// columns are rounded to cents for display only; the underlying decimal
// values stay exact.
func (r SaleDetailRow) Record() []string {
	return []string{
		r.Symbol,
		r.BuyDate,
		r.SellDate,
		r.Qty.String(),
		r.CostBasis.StringFixed(2),
		r.Proceeds.StringFixed(2),
		r.GainLoss.StringFixed(2),
		decimal.NewFromInt(int64(r.DurationHeld)).String(),
		decimal.NewFromInt(int64(r.SellYear)).String(),
		r.Term,
		r.BuyRef,
		r.SellRef,
	}
}

// SummaryRow is one line of the per-(year, symbol) summary table.
type SummaryRow struct {
	Year          int             `json:"year"`
	Symbol        string          `json:"symbol"`
	TotalGainLoss decimal.Decimal `json:"total_gain_loss"`
	TotalIncome   decimal.Decimal `json:"total_income"`
}

// PivotTable is a symbol-by-year view over the summary. Rows and
// columns whose totals are zero are elided.
type PivotTable struct {
	Rows         []string                           `json:"rows"`    // symbols, sorted case-insensitively
	Columns      []int                              `json:"columns"` // years, ascending
	Cells        map[string]map[int]decimal.Decimal `json:"cells"`
	RowTotals    map[string]decimal.Decimal         `json:"row_totals"`
	ColumnTotals map[int]decimal.Decimal            `json:"column_totals"`
	GrandTotal   decimal.Decimal                    `json:"grand_total"`
}

// YearActivity is one year's slice of a symbol report.
type YearActivity struct {
	Year         int             `json:"year"`
	NumPairings  int             `json:"num_pairings"`
	QuantitySold decimal.Decimal `json:"quantity_sold"`
	GainLoss     decimal.Decimal `json:"gain_loss"`
	Income       decimal.Decimal `json:"income"`
}

// SymbolReport gathers everything known about one symbol after
// matching. A symbol with no activity yields a report with empty
// slices; callers need no special casing.
type SymbolReport struct {
	Symbol            string              `json:"symbol"`
	RemainingQuantity decimal.Decimal     `json:"remaining_quantity"`
	AvgUnitCost       decimal.NullDecimal `json:"avg_unit_cost"` // unset when nothing remains
	Years             []YearActivity      `json:"years"`
	Pairings          []SalePairing       `json:"pairings"`
	UnsoldLots        []Lot               `json:"unsold_lots"`
	Incomes           []TransactionRecord `json:"incomes"`
	UnmatchedSales    []UnmatchedSale     `json:"unmatched_sales"`
}
