package parsers

import (
	"io"

	"github.com/username/coinfolio/backend/src/models"
)

// LedgerParser parses a flattened ledger-aggregator export into raw
// legs for the batch normalizer.
type LedgerParser interface {
	Parse(file io.Reader) ([]models.RawLeg, error)
}

// ReportParser parses an exchange report (manual records, Coinbase
// export) directly into transaction records, bypassing the normalizer.
type ReportParser interface {
	Parse(file io.Reader) ([]models.TransactionRecord, error)
}
