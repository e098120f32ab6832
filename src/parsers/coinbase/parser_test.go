// src/parsers/coinbase/parser_test.go
package coinbase

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/coinfolio/backend/src/config"
	"github.com/username/coinfolio/backend/src/models"
)

const header = "id,txn_type,date,asset,qty,cost_basis,data_source,asset_disposed,qty_disposed,proceeds\n"

func rules() *config.TaxRules {
	return config.NewTaxRules([]string{"USD", "USDC"}, nil, nil, nil, nil)
}

func TestParseCoinbaseBuy(t *testing.T) {
	csvData := header +
		"c1,Buy,2023-01-15 10:00:00,BTC,0.5,10000,coinbase,,,\n" +
		"c2,Buy,2023-01-16 10:00:00,USDC,500,500,coinbase,,,\n" // stable buys are not lots

	txs, err := NewParser(rules()).Parse(strings.NewReader(csvData))

	require.NoError(t, err)
	require.Len(t, txs, 1)

	tx := txs[0]
	assert.Equal(t, models.KindBuy, tx.Kind)
	assert.Equal(t, "BTC", tx.Symbol)
	assert.Equal(t, "c1", tx.SourceID)
	assert.Equal(t, "coinbase", tx.Wallet)
	require.True(t, tx.Priced())
	assert.True(t, tx.USDValue.Decimal.Equal(decimal.RequireFromString("10000")))
}

func TestParseCoinbaseRewards(t *testing.T) {
	csvData := header +
		"c1,Reward,2023-01-15 10:00:00,ALGO,10,5.50,coinbase,,,\n" +
		"c2,Reward,2023-01-16 10:00:00,ALGO,0.1,0.05,coinbase,,,\n" + // below the floor, noise
		"c3,Interest,2023-02-01 10:00:00,USDC,2,2,coinbase,,,\n"

	txs, err := NewParser(rules()).Parse(strings.NewReader(csvData))

	require.NoError(t, err)
	require.Len(t, txs, 2)

	assert.Equal(t, models.KindIncome, txs[0].Kind)
	assert.Equal(t, "ALGO", txs[0].Symbol)
	assert.True(t, txs[0].USDValue.Decimal.Equal(decimal.RequireFromString("5.5")))

	assert.Equal(t, models.KindIncome, txs[1].Kind)
	assert.Equal(t, "c3", txs[1].SourceID)
}

func TestParseCoinbaseConversion(t *testing.T) {
	csvData := header +
		"c1,Converted from,2023-03-01 10:00:00,,,,coinbase,BTC,0.5,\n" +
		"c2,Converted to,2023-03-01 10:00:00,ETH,6,11000,coinbase,,,\n"

	txs, err := NewParser(rules()).Parse(strings.NewReader(csvData))

	require.NoError(t, err)
	require.Len(t, txs, 2, "a crypto-to-crypto conversion is a sell and a buy")

	sell, buy := txs[0], txs[1]
	assert.Equal(t, models.KindSell, sell.Kind)
	assert.Equal(t, "BTC", sell.Symbol)
	assert.True(t, sell.Quantity.Equal(decimal.RequireFromString("0.5")))
	assert.True(t, sell.USDValue.Decimal.Equal(decimal.RequireFromString("11000")))

	assert.Equal(t, models.KindBuy, buy.Kind)
	assert.Equal(t, "ETH", buy.Symbol)
	assert.True(t, buy.Quantity.Equal(decimal.RequireFromString("6")))
	assert.True(t, buy.USDValue.Decimal.Equal(decimal.RequireFromString("11000")))
}

func TestParseCoinbaseConversionFromStable(t *testing.T) {
	csvData := header +
		"c1,Converted from,2023-03-01 10:00:00,,,,coinbase,USDC,1000,\n" +
		"c2,Converted to,2023-03-01 10:00:00,ETH,0.5,1000,coinbase,,,\n"

	txs, err := NewParser(rules()).Parse(strings.NewReader(csvData))

	require.NoError(t, err)
	require.Len(t, txs, 1, "spending a stable asset is only an acquisition")
	assert.Equal(t, models.KindBuy, txs[0].Kind)
	assert.Equal(t, "ETH", txs[0].Symbol)
}

func TestParseCoinbaseConversionToStable(t *testing.T) {
	csvData := header +
		"c1,Converted from,2023-03-01 10:00:00,,,,coinbase,ETH,0.5,\n" +
		"c2,Converted to,2023-03-01 10:00:00,USDC,1000,1000,coinbase,,,\n"

	txs, err := NewParser(rules()).Parse(strings.NewReader(csvData))

	require.NoError(t, err)
	require.Len(t, txs, 1, "cashing out to a stable asset is only a disposal")
	assert.Equal(t, models.KindSell, txs[0].Kind)
	assert.Equal(t, "ETH", txs[0].Symbol)
	assert.True(t, txs[0].USDValue.Decimal.Equal(decimal.RequireFromString("1000")))
}

func TestParseCoinbaseSkipsTransfers(t *testing.T) {
	csvData := header +
		"c1,Deposit,2023-01-15 10:00:00,BTC,1,20000,coinbase,,,\n" +
		"c2,Send,2023-01-16 10:00:00,BTC,1,20000,coinbase,,,\n" +
		"c3,Withdrawal,2023-01-17 10:00:00,BTC,1,20000,coinbase,,,\n"

	txs, err := NewParser(rules()).Parse(strings.NewReader(csvData))

	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestParseCoinbaseRFC3339Dates(t *testing.T) {
	csvData := header +
		"c1,Buy,2023-01-15T10:00:00Z,BTC,0.5,10000,coinbase,,,\n"

	txs, err := NewParser(rules()).Parse(strings.NewReader(csvData))

	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, 2023, txs[0].Date.Year())
}
