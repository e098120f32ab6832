package parsers

import (
	"fmt"

	"github.com/username/coinfolio/backend/src/config"
	"github.com/username/coinfolio/backend/src/parsers/coinbase"
	"github.com/username/coinfolio/backend/src/parsers/manual"
)

// GetReportParser returns the parser for an exchange-report source.
// The ledger-export format has its own parser (NewLedgerCSVParser) and
// feeds the normalizer instead.
func GetReportParser(source string, rules *config.TaxRules) (ReportParser, error) {
	switch source {
	case "manual":
		return manual.NewParser(rules), nil
	case "coinbase":
		return coinbase.NewParser(rules), nil
	default:
		return nil, fmt.Errorf("no parser available for source: %s", source)
	}
}
