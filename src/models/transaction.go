package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionKind classifies a normalized transaction record.
type TransactionKind string

const (
	KindBuy     TransactionKind = "buy"
	KindSell    TransactionKind = "sell"
	KindIncome  TransactionKind = "income"
	KindSend    TransactionKind = "send"
	KindReceive TransactionKind = "receive"
)

// Acquisition reports whether records of this kind open cost-basis lots.
func (k TransactionKind) Acquisition() bool {
	return k == KindBuy || k == KindIncome
}

// TransactionRecord is the canonical normalized event produced by the
// batch normalizer. Records are created once and never mutated.
type TransactionRecord struct {
	Date            time.Time           `json:"date"` // second precision
	Kind            TransactionKind     `json:"kind"`
	Symbol          string              `json:"symbol"`
	TokenID         string              `json:"token_id"`
	Quantity        decimal.Decimal     `json:"quantity"` // always > 0
	USDValue        decimal.NullDecimal `json:"usd_value"`
	CounterSymbol   string              `json:"counter_symbol"` // asset on the other side of the trade, may be empty
	CounterQuantity decimal.Decimal     `json:"counter_quantity"`
	Chain           string              `json:"chain"`
	Project         string              `json:"project"`
	TxName          string              `json:"tx_name"`
	Wallet          string              `json:"wallet"`
	SourceID        string              `json:"source_id"`
}

// Priced reports whether the record carries a resolved USD value.
func (t TransactionRecord) Priced() bool {
	return t.USDValue.Valid
}

// UnitValue returns the USD value per unit. The second return is false
// for unpriced records and records with a non-positive quantity; such
// records must not enter the matcher.
func (t TransactionRecord) UnitValue() (decimal.Decimal, bool) {
	if !t.USDValue.Valid || !t.Quantity.IsPositive() {
		return decimal.Zero, false
	}
	return t.USDValue.Decimal.Div(t.Quantity), true
}

// WithUSDValue returns a copy of the record with the USD value set.
func (t TransactionRecord) WithUSDValue(v decimal.Decimal) TransactionRecord {
	t.USDValue = decimal.NullDecimal{Decimal: v, Valid: true}
	return t
}
