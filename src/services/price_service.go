// src/services/price_service.go
package services

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
	"github.com/username/coinfolio/backend/src/config"
	"github.com/username/coinfolio/backend/src/logger"
	"github.com/username/coinfolio/backend/src/models"
	"github.com/username/coinfolio/backend/src/utils"
)

// manualPriceEntry is one row of the manual price table data file.
type manualPriceEntry struct {
	Symbol    string          `json:"symbol"`
	Date      string          `json:"date"` // YYYY-MM-DD
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// historicalPriceResponse is the shape of the llama.fi-style
// historical price endpoint.
type historicalPriceResponse struct {
	Coins map[string]struct {
		Price  float64 `json:"price"`
		Symbol string  `json:"symbol"`
	} `json:"coins"`
}

// priceServiceImpl resolves prices in order: stable-value rule, manual
// table, then the optional historical price API. Resolution failures
// are never fatal; the record simply stays unpriced.
type priceServiceImpl struct {
	rules      *config.TaxRules
	manual     map[string]decimal.Decimal // "symbol|YYYY-MM-DD", lowercased symbol
	httpClient http.Client
	baseURL    string
	priceCache *cache.Cache
}

// NewPriceService creates the price resolution collaborator. A missing
// or unreadable manual table is logged and treated as empty.
func NewPriceService(rules *config.TaxRules, tablePath, baseURL string) PriceService {
	s := &priceServiceImpl{
		rules:   rules,
		manual:  make(map[string]decimal.Decimal),
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: http.Client{
			Timeout: 20 * time.Second,
		},
		priceCache: cache.New(12*time.Hour, 1*time.Hour),
	}

	if tablePath != "" {
		if err := s.loadManualTable(tablePath); err != nil {
			logger.L.Warn("Could not load manual price table, continuing without it", "path", tablePath, "error", err)
		}
	}

	return s
}

func (s *priceServiceImpl) loadManualTable(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var entries []manualPriceEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("failed to parse price table %s: %w", path, err)
	}
	for _, e := range entries {
		s.manual[manualKey(e.Symbol, e.Date)] = e.UnitPrice
	}
	logger.L.Info("Manual price table loaded", "path", path, "entries", len(entries))
	return nil
}

func manualKey(symbol, day string) string {
	return strings.ToLower(symbol) + "|" + day
}

func (s *priceServiceImpl) PriceRecords(records []models.TransactionRecord) ([]models.TransactionRecord, []models.TransactionRecord) {
	priced := make([]models.TransactionRecord, 0, len(records))
	var missing []models.TransactionRecord

	for _, rec := range records {
		needsPrice := (rec.Kind == models.KindBuy || rec.Kind == models.KindSell || rec.Kind == models.KindIncome) && !rec.Priced()
		if !needsPrice {
			priced = append(priced, rec)
			continue
		}

		if unit, ok := s.resolveUnitPrice(rec); ok {
			priced = append(priced, rec.WithUSDValue(rec.Quantity.Mul(unit)))
			continue
		}

		logger.L.Warn("No price found for record, excluding from matching",
			"symbol", rec.Symbol,
			"kind", string(rec.Kind),
			"date", rec.Date.Format(utils.DayFormat),
			"sourceID", rec.SourceID)
		missing = append(missing, rec)
		priced = append(priced, rec) // kept in output, still unpriced
	}

	return priced, missing
}

func (s *priceServiceImpl) resolveUnitPrice(rec models.TransactionRecord) (decimal.Decimal, bool) {
	// Stable-value assets are worth their face amount.
	if s.rules.IsStable(rec.Symbol) {
		return decimal.NewFromInt(1), true
	}

	day := rec.Date.Format(utils.DayFormat)
	if unit, ok := s.manual[manualKey(rec.Symbol, day)]; ok {
		return unit, true
	}

	if s.baseURL != "" && rec.Chain != "" && rec.TokenID != "" {
		if unit, ok := s.fetchHistoricalPrice(rec); ok {
			return unit, true
		}
	}

	return decimal.Zero, false
}

func (s *priceServiceImpl) fetchHistoricalPrice(rec models.TransactionRecord) (decimal.Decimal, bool) {
	coin := rec.Chain + ":" + rec.TokenID
	cacheKey := coin + "|" + rec.Date.Format(utils.DayFormat)

	if cached, found := s.priceCache.Get(cacheKey); found {
		return cached.(decimal.Decimal), true
	}

	url := fmt.Sprintf("%s/prices/historical/%d/%s", s.baseURL, rec.Date.Unix(), coin)
	resp, err := s.httpClient.Get(url)
	if err != nil {
		logger.L.Warn("Historical price request failed", "url", url, "error", err)
		return decimal.Zero, false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logger.L.Warn("Historical price request returned non-OK status", "url", url, "status", resp.StatusCode)
		return decimal.Zero, false
	}

	var parsed historicalPriceResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		logger.L.Warn("Failed to decode historical price response", "url", url, "error", err)
		return decimal.Zero, false
	}

	entry, ok := parsed.Coins[coin]
	if !ok || entry.Price <= 0 {
		return decimal.Zero, false
	}

	unit := decimal.NewFromFloat(entry.Price)
	s.priceCache.Set(cacheKey, unit, cache.DefaultExpiration)
	return unit, true
}
