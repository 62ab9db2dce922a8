package telemetry

// ModelPrice is a per-million-token USD price pair for one model, the same
// shape the teacher's cost package keys its catalog by, narrowed here to a
// flat table since this runtime has no model-role concept.
type ModelPrice struct {
	InputPer1M  float64
	OutputPer1M float64
}

// PriceTable maps a model id (or "default" for the fallback) to its price.
type PriceTable map[string]ModelPrice

// DefaultPriceTable is the built-in table. It holds only a conservative
// "default" price; it has no per-model entries, so every model is priced at
// the default unless the caller's table or overrides name it.
var DefaultPriceTable = PriceTable{
	"default": {InputPer1M: 3.0, OutputPer1M: 15.0},
}

// Cost is a priced amount in a single currency.
type Cost struct {
	Amount   float64
	Currency string
}

// ProjectCost prices a Summary's per-model token usage against prices,
// falling back to overrides first, then prices, then prices["default"].
// Unpriced usage (no table entry at all, including no default) is skipped.
func ProjectCost(s Summary, prices, overrides PriceTable) Cost {
	total := Cost{Currency: "USD"}
	for model, usage := range s.ModelTokens {
		price, ok := lookupPrice(model, prices, overrides)
		if !ok {
			continue
		}
		total.Amount += float64(usage.TokensIn)/1_000_000*price.InputPer1M +
			float64(usage.TokensOut)/1_000_000*price.OutputPer1M
	}
	return total
}

func lookupPrice(model string, prices, overrides PriceTable) (ModelPrice, bool) {
	if overrides != nil {
		if p, ok := overrides[model]; ok {
			return p, true
		}
	}
	if p, ok := prices[model]; ok {
		return p, true
	}
	if p, ok := prices["default"]; ok {
		return p, true
	}
	return ModelPrice{}, false
}

// SavingsReport compares two cost figures, typically a baseline run against
// a candidate run with different adaptive settings.
type SavingsReport struct {
	Baseline   Cost
	Candidate  Cost
	AbsoluteUSD float64
	PercentOff  float64
}

// ComputeSavings returns the absolute and percentage difference of
// candidate relative to baseline. PercentOff is 0 when baseline is 0.
func ComputeSavings(baseline, candidate Cost) SavingsReport {
	r := SavingsReport{
		Baseline:    baseline,
		Candidate:   candidate,
		AbsoluteUSD: baseline.Amount - candidate.Amount,
	}
	if baseline.Amount != 0 {
		r.PercentOff = r.AbsoluteUSD / baseline.Amount * 100
	}
	return r
}
