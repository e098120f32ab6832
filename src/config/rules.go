package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/username/coinfolio/backend/src/models"
	"github.com/username/coinfolio/backend/src/utils"
)

// OverrideRecord is one literal transaction record from the manual
// override table, keyed by the source id of the batch it replaces.
type OverrideRecord struct {
	Date            string           `json:"date"` // "2006-01-02 15:04:05"
	Kind            string           `json:"kind"`
	Symbol          string           `json:"symbol"`
	TokenID         string           `json:"token_id"`
	Quantity        decimal.Decimal  `json:"quantity"`
	USDValue        *decimal.Decimal `json:"usd_value,omitempty"`
	CounterSymbol   string           `json:"counter_symbol"`
	CounterQuantity decimal.Decimal  `json:"counter_quantity"`
	Chain           string           `json:"chain"`
	Project         string           `json:"project"`
	TxName          string           `json:"tx_name"`
}

// ToRecord converts the override entry into a transaction record
// carrying the source id of the batch it replaced.
func (o OverrideRecord) ToRecord(sourceID string) (models.TransactionRecord, error) {
	date, err := time.Parse(utils.DefaultDateFormat, o.Date)
	if err != nil {
		return models.TransactionRecord{}, fmt.Errorf("override %s: invalid date %q: %w", sourceID, o.Date, err)
	}
	rec := models.TransactionRecord{
		Date:            date,
		Kind:            models.TransactionKind(strings.ToLower(o.Kind)),
		Symbol:          o.Symbol,
		TokenID:         o.TokenID,
		Quantity:        o.Quantity,
		CounterSymbol:   o.CounterSymbol,
		CounterQuantity: o.CounterQuantity,
		Chain:           o.Chain,
		Project:         o.Project,
		TxName:          o.TxName,
		SourceID:        sourceID,
	}
	if o.USDValue != nil {
		rec = rec.WithUSDValue(*o.USDValue)
	}
	return rec, nil
}

// taxRulesFile mirrors the on-disk JSON layout of the rule tables.
type taxRulesFile struct {
	Stablecoins          []string                    `json:"stablecoins"`
	Equivalents          [][]string                  `json:"equivalents"`
	IncomeTxnNames       []string                    `json:"income_txn_names"`
	TokenNameOverrides   map[string]string           `json:"token_name_overrides"`
	TransactionOverrides map[string][]OverrideRecord `json:"transaction_overrides"`
}

// TaxRules holds the externally loaded classification tables. It is
// passed explicitly into the normalizer; nothing here is mutated after
// load.
type TaxRules struct {
	stablecoins        map[string]bool
	equivalents        map[string]bool // "a|b" with a <= b, lowercased
	incomeTxnNames     map[string]bool
	TokenNameOverrides map[string]string
	TxOverrides        map[string][]OverrideRecord
}

// LoadTaxRules reads the rule tables from a JSON data file.
func LoadTaxRules(path string) (*TaxRules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tax rules file %s: %w", path, err)
	}
	var file taxRulesFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse tax rules file %s: %w", path, err)
	}
	return NewTaxRules(file.Stablecoins, file.Equivalents, file.IncomeTxnNames,
		file.TokenNameOverrides, file.TransactionOverrides), nil
}

// NewTaxRules builds rule tables from already-parsed slices. Symbols
// are matched case-insensitively.
func NewTaxRules(
	stablecoins []string,
	equivalents [][]string,
	incomeTxnNames []string,
	tokenNameOverrides map[string]string,
	txOverrides map[string][]OverrideRecord,
) *TaxRules {
	r := &TaxRules{
		stablecoins:        make(map[string]bool, len(stablecoins)),
		equivalents:        make(map[string]bool, len(equivalents)),
		incomeTxnNames:     make(map[string]bool, len(incomeTxnNames)),
		TokenNameOverrides: tokenNameOverrides,
		TxOverrides:        txOverrides,
	}
	if r.TokenNameOverrides == nil {
		r.TokenNameOverrides = map[string]string{}
	}
	if r.TxOverrides == nil {
		r.TxOverrides = map[string][]OverrideRecord{}
	}
	for _, s := range stablecoins {
		r.stablecoins[strings.ToLower(s)] = true
	}
	for _, pair := range equivalents {
		if len(pair) != 2 {
			continue
		}
		r.equivalents[equivalentKey(pair[0], pair[1])] = true
	}
	for _, n := range incomeTxnNames {
		r.incomeTxnNames[n] = true
	}
	return r
}

func equivalentKey(a, b string) string {
	a, b = strings.ToLower(a), strings.ToLower(b)
	if a > b {
		a, b = b, a
	}
	return a + "|" + b
}

// IsStable reports whether the symbol is a recognized stable-value asset.
func (r *TaxRules) IsStable(symbol string) bool {
	return r.stablecoins[strings.ToLower(symbol)]
}

// IsEquivalentPair reports whether two symbols form a configured
// equivalence class (e.g. wrapped/native forms).
func (r *TaxRules) IsEquivalentPair(a, b string) bool {
	return r.equivalents[equivalentKey(a, b)]
}

// IsIncomeTxn reports whether the transaction name marks a receive-only
// leg as income (claim/harvest vocabulary).
func (r *TaxRules) IsIncomeTxn(txName string) bool {
	return r.incomeTxnNames[txName]
}
