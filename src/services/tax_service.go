// src/services/tax_service.go
package services

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
	"github.com/username/coinfolio/backend/src/config"
	"github.com/username/coinfolio/backend/src/database"
	"github.com/username/coinfolio/backend/src/logger"
	"github.com/username/coinfolio/backend/src/models"
	"github.com/username/coinfolio/backend/src/parsers"
	"github.com/username/coinfolio/backend/src/processors"
	"github.com/username/coinfolio/backend/src/utils"
)

const (
	ckLatestReport = "res_latest_tax_report"

	DefaultCacheExpiration = 15 * time.Minute
	CacheCleanupInterval   = 30 * time.Minute
)

type taxServiceImpl struct {
	rules        *config.TaxRules
	ledgerParser parsers.LedgerParser
	normalizer   processors.Normalizer
	matcher      processors.Matcher
	aggregator   processors.Aggregator
	priceService PriceService
	reportCache  *cache.Cache
}

func NewTaxService(
	rules *config.TaxRules,
	ledgerParser parsers.LedgerParser,
	normalizer processors.Normalizer,
	matcher processors.Matcher,
	aggregator processors.Aggregator,
	priceService PriceService,
	reportCache *cache.Cache,
) TaxService {
	return &taxServiceImpl{
		rules:        rules,
		ledgerParser: ledgerParser,
		normalizer:   normalizer,
		matcher:      matcher,
		aggregator:   aggregator,
		priceService: priceService,
		reportCache:  reportCache,
	}
}

// ProcessLedger ingests one uploaded file, stores its normalized
// records and rebuilds the full report from everything stored so far.
// source "ledger" goes through the batch normalizer; exchange-report
// sources are parsed into records directly.
func (s *taxServiceImpl) ProcessLedger(fileReader io.Reader, source string) (*TaxReport, error) {
	overallStartTime := time.Now()
	logger.L.Info("ProcessLedger START", "source", source)

	var records []models.TransactionRecord
	var stats NormalizationStats

	switch source {
	case "", "ledger":
		legs, err := s.ledgerParser.Parse(fileReader)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrParsingFailed, err)
		}
		norm := s.normalizer.Normalize(legs)
		records = norm.Records
		stats = NormalizationStats{
			TotalLegs:          len(legs),
			SpamLegs:           len(norm.Spam),
			ApprovalLegs:       len(norm.Approvals),
			EmptyLegs:          len(norm.Empty),
			StableSwapLegs:     len(norm.StableSwaps),
			EquivalentSwapLegs: len(norm.EquivalentSwaps),
			MalformedLegs:      len(norm.Malformed),
			SuppressedBatches:  len(norm.Suppressed),
		}
		for _, m := range norm.Malformed {
			logger.L.Error("Malformed ledger leg excluded from output",
				"sourceID", m.Leg.SourceID, "reason", m.Reason)
		}
	default:
		parser, err := parsers.GetReportParser(source, s.rules)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrParsingFailed, err)
		}
		records, err = parser.Parse(fileReader)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrParsingFailed, err)
		}
	}

	// Resolve what prices we can before storing, so the stored rows
	// carry their USD values.
	priced, _ := s.priceService.PriceRecords(records)

	if err := s.insertTransactions(priced); err != nil {
		return nil, err
	}

	s.InvalidateCache()

	report, err := s.computeReport(stats)
	if err != nil {
		return nil, err
	}
	s.reportCache.Set(ckLatestReport, report, cache.NoExpiration)

	logger.L.Info("ProcessLedger END", "source", source, "newRecords", len(records), "duration", time.Since(overallStartTime))
	return report, nil
}

func (s *taxServiceImpl) insertTransactions(records []models.TransactionRecord) error {
	if len(records) == 0 {
		return nil
	}

	dbTx, err := database.DB.Begin()
	if err != nil {
		return fmt.Errorf("error beginning database transaction: %w", err)
	}
	defer dbTx.Rollback()

	stmt, err := dbTx.Prepare(`INSERT INTO transactions (date, kind, symbol, token_id, quantity, usd_value, counter_symbol, counter_quantity, chain, project, tx_name, wallet, source_id, hash_id) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("error preparing insert statement: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		var usd interface{}
		if rec.Priced() {
			usd = rec.USDValue.Decimal.String()
		}
		hashID := generateHash(rec)
		_, err := stmt.Exec(
			rec.Date.Format(utils.DefaultDateFormat),
			string(rec.Kind),
			rec.Symbol,
			rec.TokenID,
			rec.Quantity.String(),
			usd,
			rec.CounterSymbol,
			rec.CounterQuantity.String(),
			rec.Chain,
			rec.Project,
			rec.TxName,
			rec.Wallet,
			rec.SourceID,
			hashID,
		)
		if err != nil {
			if strings.Contains(strings.ToLower(err.Error()), "unique constraint failed") {
				logger.L.Debug("Skipping duplicate transaction on upload", "hashID", hashID, "sourceID", rec.SourceID)
				continue
			}
			return fmt.Errorf("error inserting transaction (sourceID: %s): %w", rec.SourceID, err)
		}
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("error committing transactions: %w", err)
	}
	return nil
}

// computeReport rebuilds everything from the stored transactions: one
// independent HIFO pass per symbol, then a pure fold into the report
// tables. Match results are persisted for audit under a fresh run id.
func (s *taxServiceImpl) computeReport(stats NormalizationStats) (*TaxReport, error) {
	transactions, err := s.fetchTransactions()
	if err != nil {
		return nil, err
	}

	priced, missing := s.priceService.PriceRecords(transactions)

	var matchable []models.TransactionRecord
	for _, tx := range priced {
		if (tx.Kind == models.KindBuy || tx.Kind == models.KindSell || tx.Kind == models.KindIncome) && tx.Priced() {
			matchable = append(matchable, tx)
		}
	}
	symbols := processors.SymbolsOf(matchable)

	runID := uuid.NewString()
	report := &TaxReport{
		RunID:       runID,
		GeneratedAt: time.Now().UTC(),
		Stats:       stats,
	}

	var allPairings []models.SalePairing
	for _, symbol := range symbols {
		if s.rules.IsStable(symbol) {
			continue
		}
		res := s.matcher.Match(priced, symbol)
		allPairings = append(allPairings, res.Pairings...)
		report.UnsoldLots = append(report.UnsoldLots, res.UnsoldLots...)
		report.UnmatchedSales = append(report.UnmatchedSales, res.UnmatchedSales...)
		report.SymbolReports = append(report.SymbolReports, s.aggregator.SymbolReport(symbol, res, priced))
	}

	report.Detail = s.aggregator.DetailRows(allPairings)
	report.Summary = s.aggregator.Summarize(allPairings, priced)
	report.GainLossPivot = s.aggregator.PivotGainLoss(report.Summary)
	report.IncomePivot = s.aggregator.PivotIncome(report.Summary)
	report.MissingPrices = missing

	if err := s.persistMatchResults(runID, allPairings, report.UnmatchedSales); err != nil {
		logger.L.Error("Failed to persist match results", "runID", runID, "error", err)
	}

	return report, nil
}

func (s *taxServiceImpl) persistMatchResults(runID string, pairings []models.SalePairing, unmatched []models.UnmatchedSale) error {
	dbTx, err := database.DB.Begin()
	if err != nil {
		return fmt.Errorf("error beginning database transaction: %w", err)
	}
	defer dbTx.Rollback()

	// Results are derived data; each run replaces the previous one.
	if _, err := dbTx.Exec(`DELETE FROM sale_pairings`); err != nil {
		return fmt.Errorf("error clearing sale_pairings: %w", err)
	}
	if _, err := dbTx.Exec(`DELETE FROM unmatched_sales`); err != nil {
		return fmt.Errorf("error clearing unmatched_sales: %w", err)
	}

	pairingStmt, err := dbTx.Prepare(`INSERT INTO sale_pairings (run_id, symbol, matched_quantity, buy_date, sell_date, cost_basis, proceeds, gain_loss, holding_days, buy_chain, buy_ref, sell_chain, sell_ref) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("error preparing pairing insert: %w", err)
	}
	defer pairingStmt.Close()

	for _, p := range pairings {
		_, err := pairingStmt.Exec(
			runID,
			p.Symbol,
			p.MatchedQuantity.String(),
			p.BuyDate.Format(utils.DefaultDateFormat),
			p.SellDate.Format(utils.DefaultDateFormat),
			p.CostBasis.String(),
			p.Proceeds.String(),
			p.GainLoss.String(),
			p.HoldingDays,
			p.BuyChain,
			p.BuyRef,
			p.SellChain,
			p.SellRef,
		)
		if err != nil {
			return fmt.Errorf("error inserting pairing (%s): %w", p.Symbol, err)
		}
	}

	unmatchedStmt, err := dbTx.Prepare(`INSERT INTO unmatched_sales (run_id, symbol, sell_date, unmatched_quantity, sell_ref) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("error preparing unmatched insert: %w", err)
	}
	defer unmatchedStmt.Close()

	for _, u := range unmatched {
		_, err := unmatchedStmt.Exec(
			runID,
			u.Symbol,
			u.SellDate.Format(utils.DefaultDateFormat),
			u.UnmatchedQuantity.String(),
			u.SellRef,
		)
		if err != nil {
			return fmt.Errorf("error inserting unmatched sale (%s): %w", u.Symbol, err)
		}
	}

	return dbTx.Commit()
}

func (s *taxServiceImpl) fetchTransactions() ([]models.TransactionRecord, error) {
	rows, err := database.DB.Query(`
		SELECT date, kind, symbol, token_id, quantity, usd_value, counter_symbol,
		counter_quantity, chain, project, tx_name, wallet, source_id
		FROM transactions
		ORDER BY date ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("error querying transactions: %w", err)
	}
	defer rows.Close()

	var transactions []models.TransactionRecord
	for rows.Next() {
		var dateStr, kind, symbol, tokenID, qtyStr, counterSymbol, counterQtyStr string
		var chain, project, txName, wallet, sourceID string
		var usdStr sql.NullString
		if err := rows.Scan(&dateStr, &kind, &symbol, &tokenID, &qtyStr, &usdStr,
			&counterSymbol, &counterQtyStr, &chain, &project, &txName, &wallet, &sourceID); err != nil {
			return nil, fmt.Errorf("error scanning transaction: %w", err)
		}

		date, err := time.Parse(utils.DefaultDateFormat, dateStr)
		if err != nil {
			logger.L.Error("Skipping stored transaction with invalid date", "date", dateStr, "sourceID", sourceID)
			continue
		}
		qty, err := decimal.NewFromString(qtyStr)
		if err != nil {
			logger.L.Error("Skipping stored transaction with invalid quantity", "quantity", qtyStr, "sourceID", sourceID)
			continue
		}
		counterQty, err := decimal.NewFromString(counterQtyStr)
		if err != nil {
			counterQty = decimal.Zero
		}

		rec := models.TransactionRecord{
			Date:            date,
			Kind:            models.TransactionKind(kind),
			Symbol:          symbol,
			TokenID:         tokenID,
			Quantity:        qty,
			CounterSymbol:   counterSymbol,
			CounterQuantity: counterQty,
			Chain:           chain,
			Project:         project,
			TxName:          txName,
			Wallet:          wallet,
			SourceID:        sourceID,
		}
		if usdStr.Valid && usdStr.String != "" {
			if usd, err := decimal.NewFromString(usdStr.String); err == nil {
				rec = rec.WithUSDValue(usd)
			}
		}
		transactions = append(transactions, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over transactions: %w", err)
	}

	return transactions, nil
}

// LatestReport returns the cached report, recomputing from the
// database on a cache miss. With nothing stored yet it returns
// ErrNoReport instead of an empty report.
func (s *taxServiceImpl) LatestReport() (*TaxReport, error) {
	if cached, found := s.reportCache.Get(ckLatestReport); found {
		logger.L.Debug("Cache hit for latest tax report")
		return cached.(*TaxReport), nil
	}

	var count int
	if err := database.DB.QueryRow(`SELECT COUNT(*) FROM transactions`).Scan(&count); err != nil {
		return nil, fmt.Errorf("error counting transactions: %w", err)
	}
	if count == 0 {
		return nil, ErrNoReport
	}

	logger.L.Info("Cache miss for tax report, recalculating from DB")
	report, err := s.computeReport(NormalizationStats{})
	if err != nil {
		return nil, err
	}
	s.reportCache.Set(ckLatestReport, report, cache.NoExpiration)
	return report, nil
}

func (s *taxServiceImpl) GetSummary() ([]models.SummaryRow, error) {
	report, err := s.LatestReport()
	if err != nil {
		return nil, err
	}
	return report.Summary, nil
}

func (s *taxServiceImpl) GetDetailRows() ([]models.SaleDetailRow, error) {
	report, err := s.LatestReport()
	if err != nil {
		return nil, err
	}
	return report.Detail, nil
}

func (s *taxServiceImpl) GetPivot(kind string) (models.PivotTable, error) {
	report, err := s.LatestReport()
	if err != nil {
		return models.PivotTable{}, err
	}
	switch kind {
	case "gainloss":
		return report.GainLossPivot, nil
	case "income":
		return report.IncomePivot, nil
	default:
		return models.PivotTable{}, fmt.Errorf("unknown pivot kind: %s", kind)
	}
}

func (s *taxServiceImpl) GetUnsoldLots() ([]models.Lot, error) {
	report, err := s.LatestReport()
	if err != nil {
		return nil, err
	}
	return report.UnsoldLots, nil
}

// GetSymbolReport returns the report for one symbol. Symbols with no
// activity yield an empty report, not an error.
func (s *taxServiceImpl) GetSymbolReport(symbol string) (models.SymbolReport, error) {
	report, err := s.LatestReport()
	if err != nil {
		return models.SymbolReport{}, err
	}
	for _, sr := range report.SymbolReports {
		if strings.EqualFold(sr.Symbol, symbol) {
			return sr, nil
		}
	}
	return models.SymbolReport{Symbol: symbol}, nil
}

func (s *taxServiceImpl) GetProcessedTransactions() ([]models.TransactionRecord, error) {
	return s.fetchTransactions()
}

func (s *taxServiceImpl) DeleteAllTransactions() error {
	dbTx, err := database.DB.Begin()
	if err != nil {
		return fmt.Errorf("error beginning database transaction: %w", err)
	}
	defer dbTx.Rollback()

	for _, table := range []string{"transactions", "sale_pairings", "unmatched_sales"} {
		if _, err := dbTx.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("error clearing %s: %w", table, err)
		}
	}
	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("error committing delete: %w", err)
	}

	s.InvalidateCache()
	logger.L.Info("Deleted all stored transactions and match results")
	return nil
}

// InvalidateCache clears the cached report, forcing a rebuild on the
// next request.
func (s *taxServiceImpl) InvalidateCache() {
	s.reportCache.Delete(ckLatestReport)
	logger.L.Info("Invalidated tax report cache")
}

// generateHash creates a unique hash for the transaction based on source data.
func generateHash(rec models.TransactionRecord) string {
	input := fmt.Sprintf("%s|%s|%s|%s|%s|%s",
		rec.Date.Format(time.RFC3339), rec.Kind, rec.Symbol,
		rec.Quantity.String(), rec.SourceID, rec.Wallet)
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:])
}
