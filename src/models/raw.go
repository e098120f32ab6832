package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// RawLeg is one line of a flattened ledger-aggregator export. A single
// on-chain transaction with multiple token movements appears as several
// consecutive legs sharing the same BatchIndex, with SubIndex counting
// up from zero inside the batch.
type RawLeg struct {
	BatchIndex     int             `json:"batch_index"`
	SubIndex       int             `json:"sub_index"`
	SourceID       string          `json:"source_id"` // stable external id, keys manual overrides
	Timestamp      int64           `json:"timestamp"` // epoch seconds
	TxName         string          `json:"tx_name"`
	Chain          string          `json:"chain"`
	Project        string          `json:"project"`
	Wallet         string          `json:"wallet"`
	Spam           bool            `json:"spam"`
	Approval       bool            `json:"approval"`
	SendSymbol     string          `json:"send_symbol"`
	SendTokenID    string          `json:"send_token_id"`
	SendAmount     decimal.Decimal `json:"send_amount"`
	ReceiveSymbol  string          `json:"receive_symbol"`
	ReceiveTokenID string          `json:"receive_token_id"`
	ReceiveAmount  decimal.Decimal `json:"receive_amount"`
}

// Time returns the leg timestamp as UTC wall time.
func (l RawLeg) Time() time.Time {
	return time.Unix(l.Timestamp, 0).UTC()
}

// HasSend reports whether the leg carries a send side.
func (l RawLeg) HasSend() bool {
	return l.SendSymbol != "" && l.SendAmount.IsPositive()
}

// HasReceive reports whether the leg carries a receive side.
func (l RawLeg) HasReceive() bool {
	return l.ReceiveSymbol != "" && l.ReceiveAmount.IsPositive()
}

// Empty reports a leg with neither side filled. These legs carry no
// economic meaning and are diverted to a side channel.
func (l RawLeg) Empty() bool {
	return l.SendSymbol == "" && l.ReceiveSymbol == ""
}
