// src/parsers/manual/parser.go
package manual

import (
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/username/coinfolio/backend/src/config"
	"github.com/username/coinfolio/backend/src/models"
	"github.com/username/coinfolio/backend/src/utils"
)

// ManualParser reads hand-kept purchase records. Only buys settled in a
// stable-value asset are supported; anything else is logged and
// skipped.
type ManualParser struct {
	rules *config.TaxRules
}

func NewParser(rules *config.TaxRules) *ManualParser {
	return &ManualParser{rules: rules}
}

// Expected columns:
// date, tx_type, token, qty, purchase_token, purchase_token_qty, fees, usd, location, id
func (p *ManualParser) Parse(file io.Reader) ([]models.TransactionRecord, error) {
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
			return nil, fmt.Errorf("failed to read manual record: %w", err)
		}
		if len(record) < 10 {
			log.Printf("Skipping manual row with %d columns, want 10", len(record))
			continue
		}

		dateStr, txType, token := record[0], record[1], record[2]
		qtyStr, purchaseToken, purchaseQtyStr := record[3], record[4], record[5]
		location, id := record[8], record[9]

		if !strings.EqualFold(txType, "Buy") {
			log.Printf("Skipping unsupported manual transaction type %q", txType)
			continue
		}
		if !p.rules.IsStable(purchaseToken) {
			log.Printf("Skipping manual buy of %s settled in non-stable %s", token, purchaseToken)
			continue
		}

		date, err := time.Parse(utils.DefaultDateFormat, dateStr)
		if err != nil {
			log.Printf("Skipping manual row due to invalid date %q: %v", dateStr, err)
			continue
		}
		qty, err := decimal.NewFromString(qtyStr)
		if err != nil || !qty.IsPositive() {
			log.Printf("Skipping manual row due to invalid quantity %q", qtyStr)
			continue
		}
		purchaseQty, err := decimal.NewFromString(purchaseQtyStr)
		if err != nil || !purchaseQty.IsPositive() {
			log.Printf("Skipping manual row due to invalid purchase quantity %q", purchaseQtyStr)
			continue
		}

		tx := models.TransactionRecord{
			Date:            date,
			Kind:            models.KindBuy,
			Symbol:          token,
			Quantity:        qty,
			CounterSymbol:   purchaseToken,
			CounterQuantity: purchaseQty,
			Chain:           location,
			Project:         location,
			TxName:          txType,
			Wallet:          location,
			SourceID:        id,
		}
		txs = append(txs, tx.WithUSDValue(purchaseQty))
	}

	return txs, nil
}
