package processors

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/username/coinfolio/backend/src/models"
	"github.com/username/coinfolio/backend/src/utils"
)

// aggregatorImpl folds already-computed pairings, lots and incomes into
// report tables. No matching logic lives here.
type aggregatorImpl struct{}

func NewAggregator() Aggregator {
	return &aggregatorImpl{}
}

// DetailRows renders pairings as detail-table rows, ordered by sale
// date. Column order is the models.DetailHeader contract.
func (a *aggregatorImpl) DetailRows(pairings []models.SalePairing) []models.SaleDetailRow {
	sorted := make([]models.SalePairing, len(pairings))
	copy(sorted, pairings)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].SellDate.Before(sorted[j].SellDate)
	})

	rows := make([]models.SaleDetailRow, 0, len(sorted))
	for _, p := range sorted {
		rows = append(rows, models.SaleDetailRow{
			Symbol:       p.Symbol,
			BuyDate:      p.BuyDate.Format(utils.DayFormat),
			SellDate:     p.SellDate.Format(utils.DayFormat),
			Qty:          p.MatchedQuantity,
			CostBasis:    p.CostBasis,
			Proceeds:     p.Proceeds,
			GainLoss:     p.GainLoss,
			DurationHeld: p.HoldingDays,
			SellYear:     p.SellDate.Year(),
			Term:         p.Term(),
			BuyRef:       p.BuyRef,
			SellRef:      p.SellRef,
		})
	}
	return rows
}

// Summarize rolls pairings and priced income records into one row per
// (year, symbol), ordered by year then symbol.
func (a *aggregatorImpl) Summarize(pairings []models.SalePairing, incomes []models.TransactionRecord) []models.SummaryRow {
	type key struct {
		year   int
		symbol string
	}
	totals := make(map[key]*models.SummaryRow)

	upsert := func(year int, symbol string) *models.SummaryRow {
		k := key{year, strings.ToLower(symbol)}
		row, ok := totals[k]
		if !ok {
			row = &models.SummaryRow{Year: year, Symbol: symbol}
			totals[k] = row
		}
		return row
	}

	for _, p := range pairings {
		row := upsert(p.SellDate.Year(), p.Symbol)
		row.TotalGainLoss = row.TotalGainLoss.Add(p.GainLoss)
	}
	for _, inc := range incomes {
		if inc.Kind != models.KindIncome || !inc.Priced() {
			continue
		}
		row := upsert(inc.Date.Year(), inc.Symbol)
		row.TotalIncome = row.TotalIncome.Add(inc.USDValue.Decimal)
	}

	rows := make([]models.SummaryRow, 0, len(totals))
	for _, row := range totals {
		rows = append(rows, *row)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Year != rows[j].Year {
			return rows[i].Year < rows[j].Year
		}
		return strings.ToLower(rows[i].Symbol) < strings.ToLower(rows[j].Symbol)
	})
	return rows
}

// SymbolReport assembles everything known about one symbol after its
// matching pass. Symbols with no activity yield an empty report rather
// than an error.
func (a *aggregatorImpl) SymbolReport(symbol string, res MatchResult, incomes []models.TransactionRecord) models.SymbolReport {
	report := models.SymbolReport{
		Symbol:         symbol,
		Pairings:       res.Pairings,
		UnsoldLots:     res.UnsoldLots,
		UnmatchedSales: res.UnmatchedSales,
	}

	for _, inc := range incomes {
		if inc.Kind == models.KindIncome && strings.EqualFold(inc.Symbol, symbol) {
			report.Incomes = append(report.Incomes, inc)
		}
	}

	remaining := decimal.Zero
	basis := decimal.Zero
	for _, lot := range res.UnsoldLots {
		remaining = remaining.Add(lot.RemainingQuantity)
		basis = basis.Add(lot.CostBasis())
	}
	report.RemainingQuantity = remaining
	if remaining.IsPositive() {
		report.AvgUnitCost = decimal.NullDecimal{Decimal: basis.Div(remaining), Valid: true}
	}

	report.Years = yearActivity(res.Pairings, report.Incomes)
	return report
}

func yearActivity(pairings []models.SalePairing, incomes []models.TransactionRecord) []models.YearActivity {
	byYear := make(map[int]*models.YearActivity)
	upsert := func(year int) *models.YearActivity {
		y, ok := byYear[year]
		if !ok {
			y = &models.YearActivity{Year: year}
			byYear[year] = y
		}
		return y
	}

	for _, p := range pairings {
		y := upsert(p.SellDate.Year())
		y.NumPairings++
		y.QuantitySold = y.QuantitySold.Add(p.MatchedQuantity)
		y.GainLoss = y.GainLoss.Add(p.GainLoss)
	}
	for _, inc := range incomes {
		if !inc.Priced() {
			continue
		}
		y := upsert(inc.Date.Year())
		y.Income = y.Income.Add(inc.USDValue.Decimal)
	}

	years := make([]models.YearActivity, 0, len(byYear))
	for _, y := range byYear {
		years = append(years, *y)
	}
	sort.Slice(years, func(i, j int) bool { return years[i].Year < years[j].Year })
	return years
}

// PivotGainLoss builds the symbol-by-year gain/loss pivot.
func (a *aggregatorImpl) PivotGainLoss(summary []models.SummaryRow) models.PivotTable {
	return buildPivot(summary, func(r models.SummaryRow) decimal.Decimal { return r.TotalGainLoss })
}

// PivotIncome builds the symbol-by-year income pivot.
func (a *aggregatorImpl) PivotIncome(summary []models.SummaryRow) models.PivotTable {
	return buildPivot(summary, func(r models.SummaryRow) decimal.Decimal { return r.TotalIncome })
}

// buildPivot folds summary rows into a symbol-by-year table, dropping
// rows and columns that sum to zero.
func buildPivot(summary []models.SummaryRow, value func(models.SummaryRow) decimal.Decimal) models.PivotTable {
	cells := make(map[string]map[int]decimal.Decimal)
	rowTotals := make(map[string]decimal.Decimal)
	colTotals := make(map[int]decimal.Decimal)

	for _, r := range summary {
		v := value(r)
		if _, ok := cells[r.Symbol]; !ok {
			cells[r.Symbol] = make(map[int]decimal.Decimal)
		}
		cells[r.Symbol][r.Year] = cells[r.Symbol][r.Year].Add(v)
		rowTotals[r.Symbol] = rowTotals[r.Symbol].Add(v)
		colTotals[r.Year] = colTotals[r.Year].Add(v)
	}

	pivot := models.PivotTable{
		Cells:        make(map[string]map[int]decimal.Decimal),
		RowTotals:    make(map[string]decimal.Decimal),
		ColumnTotals: make(map[int]decimal.Decimal),
	}

	for symbol, total := range rowTotals {
		if total.IsZero() {
			continue
		}
		pivot.Rows = append(pivot.Rows, symbol)
	}
	sortCaseInsensitive(pivot.Rows)

	for year, total := range colTotals {
		if total.IsZero() {
			continue
		}
		pivot.Columns = append(pivot.Columns, year)
	}
	sort.Ints(pivot.Columns)

	for _, symbol := range pivot.Rows {
		pivot.Cells[symbol] = make(map[int]decimal.Decimal)
		for _, year := range pivot.Columns {
			if v, ok := cells[symbol][year]; ok {
				pivot.Cells[symbol][year] = v
				pivot.RowTotals[symbol] = pivot.RowTotals[symbol].Add(v)
				pivot.ColumnTotals[year] = pivot.ColumnTotals[year].Add(v)
				pivot.GrandTotal = pivot.GrandTotal.Add(v)
			}
		}
	}

	return pivot
}

func sortCaseInsensitive(s []string) {
	sort.SliceStable(s, func(i, j int) bool {
		return strings.ToLower(s[i]) < strings.ToLower(s[j])
	})
}
