// src/services/price_service_test.go
package services

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/coinfolio/backend/src/config"
	"github.com/username/coinfolio/backend/src/logger"
	"github.com/username/coinfolio/backend/src/models"
)

func TestMain(m *testing.M) {
	logger.InitLogger("error")
	os.Exit(m.Run())
}

func priceTestRules() *config.TaxRules {
	return config.NewTaxRules([]string{"USDC"}, nil, nil, nil, nil)
}

func writePriceTable(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "prices.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func rec(kind models.TransactionKind, symbol, qty string, date time.Time) models.TransactionRecord {
	return models.TransactionRecord{
		Date:     date,
		Kind:     kind,
		Symbol:   symbol,
		Quantity: decimal.RequireFromString(qty),
		SourceID: "r-" + symbol,
	}
}

func TestPriceRecordsStableFaceValue(t *testing.T) {
	svc := NewPriceService(priceTestRules(), "", "")

	in := []models.TransactionRecord{
		rec(models.KindSell, "USDC", "150", time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC)),
	}
	priced, missing := svc.PriceRecords(in)

	assert.Empty(t, missing)
	require.Len(t, priced, 1)
	require.True(t, priced[0].Priced())
	assert.True(t, priced[0].USDValue.Decimal.Equal(decimal.RequireFromString("150")))
}

func TestPriceRecordsManualTable(t *testing.T) {
	path := writePriceTable(t, `[
		{"symbol": "ETH", "date": "2023-05-01", "unit_price": "1900"}
	]`)
	svc := NewPriceService(priceTestRules(), path, "")

	in := []models.TransactionRecord{
		rec(models.KindBuy, "eth", "2", time.Date(2023, 5, 1, 14, 30, 0, 0, time.UTC)),
	}
	priced, missing := svc.PriceRecords(in)

	assert.Empty(t, missing)
	require.Len(t, priced, 1)
	require.True(t, priced[0].Priced())
	assert.True(t, priced[0].USDValue.Decimal.Equal(decimal.RequireFromString("3800")),
		"2 units at the table price of 1900")
}

func TestPriceRecordsUnresolvedStaysUnpriced(t *testing.T) {
	svc := NewPriceService(priceTestRules(), "", "")

	in := []models.TransactionRecord{
		rec(models.KindBuy, "OBSCURE", "10", time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC)),
	}
	priced, missing := svc.PriceRecords(in)

	require.Len(t, missing, 1)
	assert.Equal(t, "OBSCURE", missing[0].Symbol)
	require.Len(t, priced, 1, "unresolved records stay in the output")
	assert.False(t, priced[0].Priced())
}

func TestPriceRecordsLeavesPricedAndNonTaxableAlone(t *testing.T) {
	svc := NewPriceService(priceTestRules(), "", "")

	already := rec(models.KindSell, "ETH", "1", time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC)).
		WithUSDValue(decimal.RequireFromString("1850"))
	send := rec(models.KindSend, "OBSCURE", "5", time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC))

	priced, missing := svc.PriceRecords([]models.TransactionRecord{already, send})

	assert.Empty(t, missing, "sends never need a price")
	require.Len(t, priced, 2)
	assert.True(t, priced[0].USDValue.Decimal.Equal(decimal.RequireFromString("1850")),
		"existing values are never overwritten")
	assert.False(t, priced[1].Priced())
}

func TestNewPriceServiceMissingTableIsNotFatal(t *testing.T) {
	svc := NewPriceService(priceTestRules(), filepath.Join(t.TempDir(), "missing.json"), "")
	require.NotNil(t, svc)

	_, missing := svc.PriceRecords([]models.TransactionRecord{
		rec(models.KindBuy, "ETH", "1", time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC)),
	})
	assert.Len(t, missing, 1)
}
