// src/parsers/coinbase/parser.go
package coinbase

import (
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/shopspring/decimal"
	"github.com/username/coinfolio/backend/src/config"
	"github.com/username/coinfolio/backend/src/models"
	"github.com/username/coinfolio/backend/src/utils"
)

// Rewards below this value are noise and not worth tracking.
var rewardFloor = decimal.NewFromFloat(0.40)

// CoinbaseParser reads a Coinbase transaction export. Buy, conversion
// and reward rows become transaction records; transfer rows carry no
// tax meaning and are skipped.
type CoinbaseParser struct {
	rules *config.TaxRules
}

func NewParser(rules *config.TaxRules) *CoinbaseParser {
	return &CoinbaseParser{rules: rules}
}

// Expected columns:
// id, txn_type, date, asset, qty, cost_basis, data_source, asset_disposed, qty_disposed, proceeds
func (p *CoinbaseParser) Parse(file io.Reader) ([]models.TransactionRecord, error) {
	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	if _, err := reader.Read(); err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	var txs []models.TransactionRecord
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read coinbase record: %w", err)
		}
		row, ok := parseRow(record)
		if !ok {
			continue
		}

		switch row.txnType {
		case "Reward", "Interest", "Fork":
			if row.costBasis.GreaterThan(rewardFloor) {
				tx := recordFor(models.KindIncome, row.date, row.asset, row.qty, "", decimal.Zero, row.txnType, row.id)
				txs = append(txs, tx.WithUSDValue(row.costBasis))
			}

		case "Buy":
			if p.rules.IsStable(row.asset) {
				continue
			}
			tx := recordFor(models.KindBuy, row.date, row.asset, row.qty, "USD", row.costBasis, row.txnType, row.id)
			txs = append(txs, tx.WithUSDValue(row.costBasis))

		case "Converted from":
			// The matching "Converted to" side is the next row.
			next, err := reader.Read()
			if err != nil {
				log.Printf("Coinbase conversion row %s has no matching target row: %v", row.id, err)
				continue
			}
			to, ok := parseRow(next)
			if !ok {
				log.Printf("Coinbase conversion row %s has malformed target row", row.id)
				continue
			}
			txs = append(txs, p.conversionRecords(row, to)...)

		case "Deposit", "Incoming", "Receive", "Send", "Withdrawal":
			// Transfers, not transactions.

		default:
			log.Printf("ERROR: Unhandled coinbase row type %q (id %s)", row.txnType, row.id)
		}
	}

	return txs, nil
}

// conversionRecords turns a Converted-from/next-row pair into sell
// and/or buy records, depending on which side is stable.
func (p *CoinbaseParser) conversionRecords(from, to coinbaseRow) []models.TransactionRecord {
	fromAsset, fromQty := from.assetDisposed, from.qtyDisposed
	toAsset, toQty := to.asset, to.qty

	switch {
	case p.rules.IsStable(fromAsset):
		buy := recordFor(models.KindBuy, to.date, toAsset, toQty, fromAsset, fromQty, to.txnType, to.id)
		return []models.TransactionRecord{buy.WithUSDValue(to.costBasis)}

	case p.rules.IsStable(toAsset):
		sell := recordFor(models.KindSell, to.date, fromAsset, fromQty, toAsset, toQty, to.txnType, to.id)
		return []models.TransactionRecord{sell.WithUSDValue(to.costBasis)}

	default:
		sell := recordFor(models.KindSell, to.date, fromAsset, fromQty, toAsset, toQty, "Converted from", to.id)
		buy := recordFor(models.KindBuy, to.date, toAsset, toQty, fromAsset, fromQty, to.txnType, to.id)
		return []models.TransactionRecord{
			sell.WithUSDValue(to.costBasis),
			buy.WithUSDValue(to.costBasis),
		}
	}
}

type coinbaseRow struct {
	id            string
	txnType       string
	date          time.Time
	asset         string
	qty           decimal.Decimal
	costBasis     decimal.Decimal
	assetDisposed string
	qtyDisposed   decimal.Decimal
}

func parseRow(record []string) (coinbaseRow, bool) {
	if len(record) < 10 {
		log.Printf("Skipping coinbase row with %d columns, want 10", len(record))
		return coinbaseRow{}, false
	}

	date, err := parseCoinbaseTime(record[2])
	if err != nil {
		log.Printf("Skipping coinbase row due to invalid date %q: %v", record[2], err)
		return coinbaseRow{}, false
	}

	return coinbaseRow{
		id:            record[0],
		txnType:       record[1],
		date:          date,
		asset:         record[3],
		qty:           parseDecimal(record[4]),
		costBasis:     parseDecimal(record[5]),
		assetDisposed: record[7],
		qtyDisposed:   parseDecimal(record[8]),
	}, true
}

func parseCoinbaseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	return time.Parse(utils.DefaultDateFormat, s)
}

func parseDecimal(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return v
}

func recordFor(kind models.TransactionKind, date time.Time, symbol string, qty decimal.Decimal, counter string, counterQty decimal.Decimal, txName, id string) models.TransactionRecord {
	return models.TransactionRecord{
		Date:            date,
		Kind:            kind,
		Symbol:          symbol,
		Quantity:        qty,
		CounterSymbol:   counter,
		CounterQuantity: counterQty,
		Chain:           "coinbase",
		Project:         "coinbase",
		TxName:          txName,
		Wallet:          "coinbase",
		SourceID:        id,
	}
}
