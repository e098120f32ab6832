package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/coinfolio/backend/src/models"
)

func TestTaxRulesLookups(t *testing.T) {
	rules := NewTaxRules(
		[]string{"USDC", "usdt"},
		[][]string{{"ETH", "WETH"}, {"BTC", "WBTC"}},
		[]string{"claim", "harvest"},
		nil, nil,
	)

	assert.True(t, rules.IsStable("USDC"))
	assert.True(t, rules.IsStable("usdc"))
	assert.True(t, rules.IsStable("USDT"))
	assert.False(t, rules.IsStable("ETH"))
	assert.False(t, rules.IsStable(""))

	assert.True(t, rules.IsEquivalentPair("ETH", "WETH"))
	assert.True(t, rules.IsEquivalentPair("weth", "eth"), "pair order and case must not matter")
	assert.True(t, rules.IsEquivalentPair("WBTC", "BTC"))
	assert.False(t, rules.IsEquivalentPair("ETH", "BTC"))

	assert.True(t, rules.IsIncomeTxn("claim"))
	assert.False(t, rules.IsIncomeTxn("swap"))
}

func TestNewTaxRulesIgnoresMalformedEquivalents(t *testing.T) {
	rules := NewTaxRules(nil, [][]string{{"ETH"}, {"A", "B", "C"}}, nil, nil, nil)

	assert.False(t, rules.IsEquivalentPair("A", "B"))
}

func TestLoadTaxRules(t *testing.T) {
	content := `{
		"stablecoins": ["USDC"],
		"equivalents": [["ETH", "WETH"]],
		"income_txn_names": ["claim"],
		"token_name_overrides": {"0xdead": "RENAMED"},
		"transaction_overrides": {
			"tx-1": [],
			"tx-2": [{"date": "2023-06-15 12:00:00", "kind": "buy", "symbol": "ETH", "quantity": "0.7"}]
		}
	}`
	path := filepath.Join(t.TempDir(), "taxrules.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	rules, err := LoadTaxRules(path)
	require.NoError(t, err)

	assert.True(t, rules.IsStable("usdc"))
	assert.True(t, rules.IsEquivalentPair("WETH", "ETH"))
	assert.True(t, rules.IsIncomeTxn("claim"))
	assert.Equal(t, "RENAMED", rules.TokenNameOverrides["0xdead"])

	entries, ok := rules.TxOverrides["tx-1"]
	assert.True(t, ok, "an empty override entry must stay present, it suppresses its batch")
	assert.Empty(t, entries)
	assert.Len(t, rules.TxOverrides["tx-2"], 1)
}

func TestLoadTaxRulesMissingFile(t *testing.T) {
	_, err := LoadTaxRules(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
}

func TestOverrideRecordToRecord(t *testing.T) {
	usd := decimal.RequireFromString("1200")
	o := OverrideRecord{
		Date:     "2023-06-15 12:00:00",
		Kind:     "Buy",
		Symbol:   "ETH",
		Quantity: decimal.RequireFromString("0.7"),
		USDValue: &usd,
	}

	rec, err := o.ToRecord("tx-9")
	require.NoError(t, err)

	assert.Equal(t, models.KindBuy, rec.Kind, "kind is normalized to lower case")
	assert.Equal(t, "tx-9", rec.SourceID)
	assert.Equal(t, 2023, rec.Date.Year())
	require.True(t, rec.Priced())
	assert.True(t, rec.USDValue.Decimal.Equal(usd))
}

func TestOverrideRecordToRecordBadDate(t *testing.T) {
	o := OverrideRecord{Date: "June 15th", Kind: "buy", Symbol: "ETH"}

	_, err := o.ToRecord("tx-9")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid date")
}
