package parsers

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/coinfolio/backend/src/config"
)

const ledgerHeader = "number,sub,id,time_at,tx.name,spam,approval,project.chain,project.name,wallet,sends.amount,sends.token_id,sends.token.symbol,receives.amount,receives.token_id,receives.token.symbol"

func TestParseLedgerCSV(t *testing.T) {
	csvData := ledgerHeader + "\n" +
		"1,0,0xaaa,1700000000,swap,false,false,eth,uniswap,0xwallet,1.5,0xweth,WETH,3000,0xusdc,USDC\n" +
		"2,0,0xbbb,1700000100,claim,true,false,eth,sushi,0xwallet,,,,100,0xscam,SCAM\n"

	parser := NewLedgerCSVParser()
	legs, err := parser.Parse(strings.NewReader(csvData))

	require.NoError(t, err)
	require.Len(t, legs, 2)

	first := legs[0]
	assert.Equal(t, 1, first.BatchIndex)
	assert.Equal(t, 0, first.SubIndex)
	assert.Equal(t, "0xaaa", first.SourceID)
	assert.Equal(t, int64(1700000000), first.Timestamp)
	assert.Equal(t, "swap", first.TxName)
	assert.Equal(t, "eth", first.Chain)
	assert.Equal(t, "uniswap", first.Project)
	assert.False(t, first.Spam)
	assert.Equal(t, "WETH", first.SendSymbol)
	assert.True(t, first.SendAmount.Equal(decimal.RequireFromString("1.5")))
	assert.Equal(t, "USDC", first.ReceiveSymbol)
	assert.True(t, first.ReceiveAmount.Equal(decimal.RequireFromString("3000")))

	second := legs[1]
	assert.True(t, second.Spam)
	assert.Equal(t, "", second.SendSymbol)
	assert.True(t, second.SendAmount.IsZero())
}

func TestParseLedgerToleratesReorderedAndExtraColumns(t *testing.T) {
	csvData := "extra,id,time_at,sub,number\n" +
		"x,0xccc,1700000000,1,42\n"

	parser := NewLedgerCSVParser()
	legs, err := parser.Parse(strings.NewReader(csvData))

	require.NoError(t, err)
	require.Len(t, legs, 1)
	assert.Equal(t, 42, legs[0].BatchIndex)
	assert.Equal(t, "0xccc", legs[0].SourceID)
}

func TestParseLedgerMissingRequiredColumn(t *testing.T) {
	csvData := "number,sub,id\n1,0,0xaaa\n"

	parser := NewLedgerCSVParser()
	_, err := parser.Parse(strings.NewReader(csvData))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "time_at")
}

func TestParseLedgerSkipsInvalidTimestamp(t *testing.T) {
	csvData := ledgerHeader + "\n" +
		"1,0,0xaaa,not-a-number,swap,false,false,eth,uniswap,0xwallet,,,,,,\n" +
		"2,0,0xbbb,1700000000,swap,false,false,eth,uniswap,0xwallet,,,,,,\n"

	parser := NewLedgerCSVParser()
	legs, err := parser.Parse(strings.NewReader(csvData))

	require.NoError(t, err)
	require.Len(t, legs, 1)
	assert.Equal(t, "0xbbb", legs[0].SourceID)
}

func TestParseBoolField(t *testing.T) {
	assert.True(t, parseBoolField("true"))
	assert.True(t, parseBoolField("TRUE"))
	assert.True(t, parseBoolField("1"))
	assert.True(t, parseBoolField("yes"))
	assert.False(t, parseBoolField("false"))
	assert.False(t, parseBoolField(""))
	assert.False(t, parseBoolField("0"))
}

func TestGetReportParser(t *testing.T) {
	rules := config.NewTaxRules(nil, nil, nil, nil, nil)

	for _, source := range []string{"manual", "coinbase"} {
		parser, err := GetReportParser(source, rules)
		require.NoError(t, err, source)
		assert.NotNil(t, parser)
	}

	_, err := GetReportParser("kraken", rules)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kraken")
}
