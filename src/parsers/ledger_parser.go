package parsers

import (
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/username/coinfolio/backend/src/models"
)

// Column names of the flattened ledger-aggregator export. Any source
// producing this shape is acceptable.
const (
	colBatch          = "number"
	colSub            = "sub"
	colID             = "id"
	colTimeAt         = "time_at"
	colTxName         = "tx.name"
	colSpam           = "spam"
	colApproval       = "approval"
	colChain          = "project.chain"
	colProject        = "project.name"
	colWallet         = "wallet"
	colSendAmount     = "sends.amount"
	colSendTokenID    = "sends.token_id"
	colSendSymbol     = "sends.token.symbol"
	colReceiveAmount  = "receives.amount"
	colReceiveTokenID = "receives.token_id"
	colReceiveSymbol  = "receives.token.symbol"
)

type LedgerCSVParser struct{}

func NewLedgerCSVParser() *LedgerCSVParser {
	return &LedgerCSVParser{}
}

// Parse reads a flattened ledger export. Columns are located by header
// name, so extra columns and reordering are tolerated; missing required
// columns are an error.
func (p *LedgerCSVParser) Parse(file io.Reader) ([]models.RawLeg, error) {
	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(name)] = i
	}
	for _, required := range []string{colBatch, colSub, colID, colTimeAt} {
		if _, ok := index[required]; !ok {
			return nil, fmt.Errorf("ledger export missing required column %q", required)
		}
	}

	field := func(record []string, name string) string {
		i, ok := index[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var legs []models.RawLeg
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV record at line %d: %w", line, err)
		}

		timeAt, err := strconv.ParseInt(field(record, colTimeAt), 10, 64)
		if err != nil {
			log.Printf("Skipping ledger line %d due to invalid timestamp: %v", line, err)
			continue
		}

		leg := models.RawLeg{
			BatchIndex:     parseIntField(field(record, colBatch)),
			SubIndex:       parseIntField(field(record, colSub)),
			SourceID:       field(record, colID),
			Timestamp:      timeAt,
			TxName:         field(record, colTxName),
			Chain:          field(record, colChain),
			Project:        field(record, colProject),
			Wallet:         field(record, colWallet),
			Spam:           parseBoolField(field(record, colSpam)),
			Approval:       parseBoolField(field(record, colApproval)),
			SendSymbol:     field(record, colSendSymbol),
			SendTokenID:    field(record, colSendTokenID),
			SendAmount:     parseDecimalField(field(record, colSendAmount)),
			ReceiveSymbol:  field(record, colReceiveSymbol),
			ReceiveTokenID: field(record, colReceiveTokenID),
			ReceiveAmount:  parseDecimalField(field(record, colReceiveAmount)),
		}
		legs = append(legs, leg)
	}

	return legs, nil
}

func parseIntField(s string) int {
	v, _ := strconv.Atoi(s)
	return v
}

func parseBoolField(s string) bool {
	switch strings.ToLower(s) {
	case "true", "1", "yes":
		return true
	}
	return false
}

func parseDecimalField(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return v
}
