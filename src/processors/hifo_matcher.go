package processors

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/username/coinfolio/backend/src/logger"
	"github.com/username/coinfolio/backend/src/models"
	"github.com/username/coinfolio/backend/src/utils"
)

// HIFOMatcher pairs each sale against the highest-unit-cost open lot
// acquired on or before the sale date. Lots are consumed exactly, in
// decimal arithmetic; rounding happens only at display time.
type HIFOMatcher struct {
	warnThreshold decimal.Decimal // single-pairing gains above this are flagged for review
}

func NewHIFOMatcher(warnThreshold decimal.Decimal) *HIFOMatcher {
	return &HIFOMatcher{warnThreshold: warnThreshold}
}

// Match runs one symbol's HIFO pass. The input may contain records for
// other symbols and of other kinds; only priced buy/income/sell records
// matching the symbol (case-insensitively) take part. Unpriced records
// of those kinds are excluded and reported in the result.
//
// The lot ledger built here is owned by this call alone and discarded
// afterward; passes for different symbols share no state.
func (m *HIFOMatcher) Match(transactions []models.TransactionRecord, symbol string) MatchResult {
	var res MatchResult

	var lots []*models.Lot
	var sales []models.TransactionRecord

	target := strings.ToLower(symbol)
	for _, tx := range transactions {
		if strings.ToLower(tx.Symbol) != target {
			continue
		}
		switch tx.Kind {
		case models.KindBuy, models.KindIncome:
			unit, ok := tx.UnitValue()
			if !ok {
				res.Unpriced = append(res.Unpriced, tx)
				continue
			}
			lots = append(lots, &models.Lot{
				AcquiredAt:        tx.Date,
				Symbol:            tx.Symbol,
				UnitCost:          unit,
				RemainingQuantity: tx.Quantity,
				OriginalQuantity:  tx.Quantity,
				Chain:             tx.Chain,
				OriginID:          tx.SourceID,
			})
		case models.KindSell:
			if !tx.Priced() {
				res.Unpriced = append(res.Unpriced, tx)
				continue
			}
			sales = append(sales, tx)
		}
	}

	// Highest unit cost first. Ties go to the earliest acquisition, then
	// the origin id, so a rerun over the same input picks the same lots.
	sort.SliceStable(lots, func(i, j int) bool {
		if !lots[i].UnitCost.Equal(lots[j].UnitCost) {
			return lots[i].UnitCost.GreaterThan(lots[j].UnitCost)
		}
		if !lots[i].AcquiredAt.Equal(lots[j].AcquiredAt) {
			return lots[i].AcquiredAt.Before(lots[j].AcquiredAt)
		}
		return lots[i].OriginID < lots[j].OriginID
	})

	// Sales must be consumed in date order; processing them out of order
	// would let a later sale see lots a previous sale should have taken.
	sort.SliceStable(sales, func(i, j int) bool {
		if !sales[i].Date.Equal(sales[j].Date) {
			return sales[i].Date.Before(sales[j].Date)
		}
		return sales[i].SourceID < sales[j].SourceID
	})

	for _, sale := range sales {
		m.matchSale(sale, lots, &res)
	}

	for _, lot := range lots {
		if lot.RemainingQuantity.IsPositive() {
			res.UnsoldLots = append(res.UnsoldLots, *lot)
		}
	}
	sort.SliceStable(res.UnsoldLots, func(i, j int) bool {
		return res.UnsoldLots[i].AcquiredAt.Before(res.UnsoldLots[j].AcquiredAt)
	})

	return res
}

func (m *HIFOMatcher) matchSale(sale models.TransactionRecord, lots []*models.Lot, res *MatchResult) {
	remaining := sale.Quantity
	sellUnit, _ := sale.UnitValue()

	for remaining.IsPositive() {
		lot := nextEligibleLot(lots, sale)
		if lot == nil {
			// The ledger claims a disposal exceeding known acquisitions.
			// Partial pairings stand; the remainder is reported, never
			// matched against a fabricated zero-cost lot.
			logger.L.Warn("Lot ledger exhausted for sale",
				"symbol", sale.Symbol,
				"sellDate", sale.Date.Format(utils.DayFormat),
				"unmatchedQty", remaining.String(),
				"sellRef", sale.SourceID)
			res.UnmatchedSales = append(res.UnmatchedSales, models.UnmatchedSale{
				Symbol:            sale.Symbol,
				SellDate:          sale.Date,
				UnmatchedQuantity: remaining,
				SellRef:           sale.SourceID,
			})
			return
		}

		matched := utils.MinDecimal(remaining, lot.RemainingQuantity)
		costBasis := matched.Mul(lot.UnitCost)
		proceeds := matched.Mul(sellUnit)
		gainLoss := proceeds.Sub(costBasis)
		holdingDays := utils.DaysBetween(lot.AcquiredAt, sale.Date)

		res.Pairings = append(res.Pairings, models.SalePairing{
			Symbol:          sale.Symbol,
			MatchedQuantity: matched,
			BuyDate:         lot.AcquiredAt,
			SellDate:        sale.Date,
			CostBasis:       costBasis,
			Proceeds:        proceeds,
			GainLoss:        gainLoss,
			HoldingDays:     holdingDays,
			BuyChain:        lot.Chain,
			BuyRef:          lot.OriginID,
			SellChain:       sale.Chain,
			SellRef:         sale.SourceID,
		})

		if m.warnThreshold.IsPositive() && gainLoss.GreaterThan(m.warnThreshold) {
			logger.L.Warn("Large realized gain on single pairing",
				"symbol", sale.Symbol,
				"gainLoss", gainLoss.StringFixed(2),
				"qty", matched.String(),
				"sellDate", sale.Date.Format(utils.DayFormat),
				"heldDays", holdingDays)
		}

		lot.RemainingQuantity = lot.RemainingQuantity.Sub(matched)
		remaining = remaining.Sub(matched)
	}
}

// nextEligibleLot returns the open lot with the highest unit cost among
// those acquired on or before the sale date. The slice is already in
// HIFO order, so the first eligible entry wins.
func nextEligibleLot(lots []*models.Lot, sale models.TransactionRecord) *models.Lot {
	for _, lot := range lots {
		if lot.RemainingQuantity.IsPositive() && !lot.AcquiredAt.After(sale.Date) {
			return lot
		}
	}
	return nil
}
