package cost

// DefaultModel is the model whose rates the estimator uses unless told otherwise.
const DefaultModel = "deepseek-chat"

// Estimator converts actual token usage into USD at fixed rates.
type Estimator struct {
	pricing ModelPricing
}

// NewEstimator returns an estimator with the given per-million-token rates.
func NewEstimator(inputPer1M, outputPer1M float64) *Estimator {
	return &Estimator{pricing: ModelPricing{InputPer1M: inputPer1M, OutputPer1M: outputPer1M}}
}

// ForModel returns an estimator using the calculator's rates for model,
// falling back to DefaultModel rates when the model is unknown.
func ForModel(c *Calculator, model string) *Estimator {
	if c == nil {
		c = DefaultCalculator
	}
	p, ok := c.GetPricing(model)
	if !ok {
		p, _ = c.GetPricing(DefaultModel)
	}
	if p == nil {
		return NewEstimator(0, 0)
	}
	return &Estimator{pricing: *p}
}

// EstimateUSD returns promptTokens/1e6*input + completionTokens/1e6*output.
func (e *Estimator) EstimateUSD(promptTokens, completionTokens int) float64 {
	return e.pricing.cost(promptTokens, completionTokens).TotalCost
}

// Rates returns the input and output price per million tokens.
func (e *Estimator) Rates() (inputPer1M, outputPer1M float64) {
	return e.pricing.InputPer1M, e.pricing.OutputPer1M
}
