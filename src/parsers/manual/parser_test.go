// src/parsers/manual/parser_test.go
package manual

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/coinfolio/backend/src/config"
	"github.com/username/coinfolio/backend/src/models"
)

const header = "date,tx_type,token,qty,purchase_token,purchase_token_qty,fees,usd,location,id\n"

func rules() *config.TaxRules {
	return config.NewTaxRules([]string{"USD", "USDC"}, nil, nil, nil, nil)
}

func TestParseManualBuy(t *testing.T) {
	csvData := header +
		"2023-01-15 10:00:00,Buy,BTC,0.5,USD,10000,10,10010,kraken,m1\n"

	txs, err := NewParser(rules()).Parse(strings.NewReader(csvData))

	require.NoError(t, err)
	require.Len(t, txs, 1)

	tx := txs[0]
	assert.Equal(t, models.KindBuy, tx.Kind)
	assert.Equal(t, "BTC", tx.Symbol)
	assert.True(t, tx.Quantity.Equal(decimal.RequireFromString("0.5")))
	assert.Equal(t, "USD", tx.CounterSymbol)
	assert.Equal(t, "kraken", tx.Chain)
	assert.Equal(t, "m1", tx.SourceID)
	require.True(t, tx.Priced())
	assert.True(t, tx.USDValue.Decimal.Equal(decimal.RequireFromString("10000")),
		"the settled stable amount is the USD value")
}

func TestParseManualSkipsUnsupportedRows(t *testing.T) {
	csvData := header +
		"2023-01-15 10:00:00,Sell,BTC,0.5,USD,10000,10,10010,kraken,m1\n" + // unsupported type
		"2023-01-15 10:00:00,Buy,BTC,0.5,ETH,5,0,0,kraken,m2\n" + // non-stable settlement
		"15/01/2023,Buy,BTC,0.5,USD,10000,10,10010,kraken,m3\n" + // bad date
		"2023-01-15 10:00:00,Buy,BTC,zero,USD,10000,10,10010,kraken,m4\n" + // bad quantity
		"2023-01-16 10:00:00,buy,ETH,2,USDC,4000,5,4005,kraken,m5\n" // valid, type case-insensitive

	txs, err := NewParser(rules()).Parse(strings.NewReader(csvData))

	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "m5", txs[0].SourceID)
	assert.Equal(t, "ETH", txs[0].Symbol)
}

func TestParseManualShortRow(t *testing.T) {
	csvData := header + "2023-01-15 10:00:00,Buy,BTC\n"

	txs, err := NewParser(rules()).Parse(strings.NewReader(csvData))

	require.NoError(t, err)
	assert.Empty(t, txs)
}
