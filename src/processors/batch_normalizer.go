package processors

import (
	"strings"

	"github.com/shopspring/decimal"
	"github.com/username/coinfolio/backend/src/config"
	"github.com/username/coinfolio/backend/src/logger"
	"github.com/username/coinfolio/backend/src/models"
)

// BatchNormalizer groups raw multi-leg ledger events into batches and
// classifies each leg as buy/sell/income/send/receive. All
// classification tables come in through the constructor; the normalizer
// holds no mutable state and is safe to reuse across runs.
type BatchNormalizer struct {
	rules           *config.TaxRules
	includeSends    bool
	includeReceives bool
}

func NewBatchNormalizer(rules *config.TaxRules, includeSends, includeReceives bool) *BatchNormalizer {
	return &BatchNormalizer{
		rules:           rules,
		includeSends:    includeSends,
		includeReceives: includeReceives,
	}
}

// Normalize processes the legs in input order. Quick-pass filters
// divert spam, approvals, empty legs, stablecoin swaps and
// equivalent-token swaps to side channels; everything else is grouped
// into batches of consecutive legs sharing a batch index and classified
// batch by batch.
//
// The quick pass runs before the manual-override lookup, so overrides
// only apply to batches that survive it: a spam-flagged leg stays
// diverted even when its source id has an override entry. Overrides
// correct classification, they do not resurrect filtered legs.
func (n *BatchNormalizer) Normalize(legs []models.RawLeg) NormalizeResult {
	var res NormalizeResult

	var batch []models.RawLeg
	flush := func() {
		if len(batch) > 0 {
			n.processBatch(batch, &res)
			batch = nil
		}
	}

	for _, leg := range legs {
		leg = n.applyTokenNameOverrides(leg)

		if leg.Spam {
			res.Spam = append(res.Spam, leg)
			continue
		}
		if leg.Approval || leg.TxName == "approve" {
			res.Approvals = append(res.Approvals, leg)
			continue
		}
		if leg.Empty() {
			res.Empty = append(res.Empty, leg)
			continue
		}
		if n.rules.IsStable(leg.SendSymbol) && n.rules.IsStable(leg.ReceiveSymbol) {
			res.StableSwaps = append(res.StableSwaps, leg)
			continue
		}
		if leg.SendSymbol != "" && leg.ReceiveSymbol != "" &&
			n.rules.IsEquivalentPair(leg.SendSymbol, leg.ReceiveSymbol) {
			res.EquivalentSwaps = append(res.EquivalentSwaps, leg)
			continue
		}

		if len(batch) > 0 && leg.BatchIndex != batch[0].BatchIndex {
			flush()
		}
		batch = append(batch, leg)
	}
	flush()

	return res
}

// applyTokenNameOverrides rewrites token symbols from the per-token-id
// override table. The input leg is copied, never mutated in place.
func (n *BatchNormalizer) applyTokenNameOverrides(leg models.RawLeg) models.RawLeg {
	if sym, ok := n.rules.TokenNameOverrides[leg.SendTokenID]; ok && leg.SendTokenID != "" {
		leg.SendSymbol = sym
	}
	if sym, ok := n.rules.TokenNameOverrides[leg.ReceiveTokenID]; ok && leg.ReceiveTokenID != "" {
		leg.ReceiveSymbol = sym
	}
	return leg
}

func (n *BatchNormalizer) processBatch(batch []models.RawLeg, res *NormalizeResult) {
	sourceID := batch[0].SourceID

	// Manual overrides always win: an entry for this source id bypasses
	// classification entirely. An explicitly empty entry suppresses the
	// whole batch.
	if entries, ok := n.rules.TxOverrides[sourceID]; ok {
		if len(entries) == 0 {
			logger.L.Warn("Skipping batch due to empty manual override", "sourceID", sourceID)
			res.Suppressed = append(res.Suppressed, sourceID)
			return
		}
		logger.L.Warn("Applying manual override", "sourceID", sourceID, "records", len(entries))
		for _, entry := range entries {
			rec, err := entry.ToRecord(sourceID)
			if err != nil {
				res.Malformed = append(res.Malformed, MalformedLeg{Leg: batch[0], Reason: err.Error()})
				continue
			}
			res.Records = append(res.Records, rec)
		}
		return
	}

	batch = averageMultiLegAmounts(batch)

	for _, leg := range batch {
		n.classifyLeg(leg, res)
	}
}

// averageMultiLegAmounts reconstructs per-leg shares of a single
// multi-output deposit or withdrawal: when exactly one distinct token
// was sent against multiple received legs (or vice versa), every leg
// gets the one-sided token with the arithmetic mean of the amounts.
// This is a documented heuristic, not an exact reconstruction; it is
// only known to be reasonable for two-leg batches.
func averageMultiLegAmounts(batch []models.RawLeg) []models.RawLeg {
	if len(batch) < 2 {
		return batch
	}

	nonzeroSends, nonzeroRecvs := 0, 0
	sendTotal, recvTotal := decimal.Zero, decimal.Zero
	var sendLeg, recvLeg models.RawLeg
	for _, leg := range batch {
		if leg.SendAmount.IsPositive() {
			nonzeroSends++
			sendTotal = sendTotal.Add(leg.SendAmount)
			sendLeg = leg
		}
		if leg.ReceiveAmount.IsPositive() {
			nonzeroRecvs++
			recvTotal = recvTotal.Add(leg.ReceiveAmount)
			recvLeg = leg
		}
	}

	count := decimal.NewFromInt(int64(len(batch)))
	out := make([]models.RawLeg, len(batch))
	copy(out, batch)

	if nonzeroSends == 1 && nonzeroRecvs == len(batch) {
		mean := sendTotal.Div(count)
		for i := range out {
			out[i].SendSymbol = sendLeg.SendSymbol
			out[i].SendTokenID = sendLeg.SendTokenID
			out[i].SendAmount = mean
		}
	}

	if nonzeroRecvs == 1 && nonzeroSends == len(batch) {
		mean := recvTotal.Div(count)
		for i := range out {
			out[i].ReceiveSymbol = recvLeg.ReceiveSymbol
			out[i].ReceiveTokenID = recvLeg.ReceiveTokenID
			out[i].ReceiveAmount = mean
		}
	}

	return out
}

func (n *BatchNormalizer) classifyLeg(leg models.RawLeg, res *NormalizeResult) {
	// Validate the shape before classifying: a named side must carry a
	// positive amount, and an amount must belong to a named token.
	if leg.SendSymbol != "" && !leg.SendAmount.IsPositive() {
		res.Malformed = append(res.Malformed, MalformedLeg{Leg: leg, Reason: "send side has symbol but no positive amount"})
		return
	}
	if leg.ReceiveSymbol != "" && !leg.ReceiveAmount.IsPositive() {
		res.Malformed = append(res.Malformed, MalformedLeg{Leg: leg, Reason: "receive side has symbol but no positive amount"})
		return
	}
	if leg.SendSymbol == "" && leg.SendAmount.IsPositive() {
		res.Malformed = append(res.Malformed, MalformedLeg{Leg: leg, Reason: "send amount without token symbol"})
		return
	}
	if leg.ReceiveSymbol == "" && leg.ReceiveAmount.IsPositive() {
		res.Malformed = append(res.Malformed, MalformedLeg{Leg: leg, Reason: "receive amount without token symbol"})
		return
	}

	switch {
	case leg.HasSend() && leg.HasReceive():
		// A swap disposes of one asset and acquires another. Unless a
		// side is stable-valued, both a buy and a sell record come out
		// of the same leg.
		if !n.rules.IsStable(leg.ReceiveSymbol) {
			buy := recordFromLeg(models.KindBuy, leg)
			if n.rules.IsStable(leg.SendSymbol) {
				buy = buy.WithUSDValue(leg.SendAmount)
			}
			res.Records = append(res.Records, buy)
		}
		if !n.rules.IsStable(leg.SendSymbol) {
			sell := recordFromLeg(models.KindSell, leg)
			if n.rules.IsStable(leg.ReceiveSymbol) {
				sell = sell.WithUSDValue(leg.ReceiveAmount)
			}
			res.Records = append(res.Records, sell)
		}

	case leg.HasReceive():
		if n.rules.IsIncomeTxn(leg.TxName) {
			res.Records = append(res.Records, recordFromLeg(models.KindIncome, leg))
		} else if n.includeReceives {
			res.Records = append(res.Records, recordFromLeg(models.KindReceive, leg))
		}

	case leg.HasSend():
		if n.includeSends {
			res.Records = append(res.Records, recordFromLeg(models.KindSend, leg))
		}
	}
}

// recordFromLeg builds a transaction record of the given kind from a
// leg. For sells the disposed (sent) asset is the subject; for every
// other kind it is the received asset.
func recordFromLeg(kind models.TransactionKind, leg models.RawLeg) models.TransactionRecord {
	rec := models.TransactionRecord{
		Date:     leg.Time(),
		Kind:     kind,
		Chain:    leg.Chain,
		Project:  leg.Project,
		TxName:   leg.TxName,
		Wallet:   leg.Wallet,
		SourceID: leg.SourceID,
	}
	if kind == models.KindSell || kind == models.KindSend {
		rec.Symbol = leg.SendSymbol
		rec.TokenID = leg.SendTokenID
		rec.Quantity = leg.SendAmount
		rec.CounterSymbol = leg.ReceiveSymbol
		rec.CounterQuantity = leg.ReceiveAmount
	} else {
		rec.Symbol = leg.ReceiveSymbol
		rec.TokenID = leg.ReceiveTokenID
		rec.Quantity = leg.ReceiveAmount
		rec.CounterSymbol = leg.SendSymbol
		rec.CounterQuantity = leg.SendAmount
	}
	return rec
}

// SymbolsOf returns the distinct symbols appearing in the records,
// sorted case-insensitively.
func SymbolsOf(records []models.TransactionRecord) []string {
	seen := make(map[string]bool)
	var symbols []string
	for _, rec := range records {
		key := strings.ToLower(rec.Symbol)
		if !seen[key] {
			seen[key] = true
			symbols = append(symbols, rec.Symbol)
		}
	}
	sortCaseInsensitive(symbols)
	return symbols
}
