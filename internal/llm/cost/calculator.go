package cost

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ModelPricing contains pricing information for a specific model
type ModelPricing struct {
	Model       string
	InputPer1M  float64 // Cost per 1M input tokens in USD
	OutputPer1M float64 // Cost per 1M output tokens in USD
}

// Usage represents token usage for a single completion call
type Usage struct {
	Model        string
	InputTokens  int
	OutputTokens int
}

// Cost represents the calculated cost for a completion call
type Cost struct {
	InputCost  float64
	OutputCost float64
	TotalCost  float64
	Currency   string
}

// Calculator maps models to their prices
type Calculator struct {
	pricing map[string]*ModelPricing
	mu      sync.RWMutex
}

// NewCalculator creates a new cost calculator with default pricing
func NewCalculator() *Calculator {
	c := &Calculator{
		pricing: make(map[string]*ModelPricing),
	}
	c.loadDefaultPricing()
	return c
}

// loadDefaultPricing initializes pricing for OpenAI-compatible chat models.
// DeepSeek prices are cache-miss input and output rates.
func (c *Calculator) loadDefaultPricing() {
	models := []*ModelPricing{
		{Model: "deepseek-chat", InputPer1M: 0.28, OutputPer1M: 0.42},
		{Model: "deepseek-reasoner", InputPer1M: 0.28, OutputPer1M: 0.42},

		{Model: "gpt-4o", InputPer1M: 2.5, OutputPer1M: 10.0},
		{Model: "gpt-4o-mini", InputPer1M: 0.15, OutputPer1M: 0.60},
		{Model: "gpt-4.1", InputPer1M: 2.0, OutputPer1M: 8.0},
		{Model: "gpt-4.1-mini", InputPer1M: 0.4, OutputPer1M: 1.6},
	}

	for _, pricing := range models {
		c.pricing[pricing.Model] = pricing
	}
}

// AddPricing adds or updates pricing for a model
func (c *Calculator) AddPricing(pricing *ModelPricing) {
	if pricing == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pricing[pricing.Model] = pricing
}

// GetPricing retrieves pricing for a model by exact name, falling back to
// the longest registered prefix.
func (c *Calculator) GetPricing(model string) (*ModelPricing, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	pricing, ok := c.pricing[model]
	if !ok {
		keys := make([]string, 0, len(c.pricing))
		for k := range c.pricing {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool {
			if len(keys[i]) != len(keys[j]) {
				return len(keys[i]) > len(keys[j])
			}
			return keys[i] < keys[j]
		})
		for _, key := range keys {
			if strings.HasPrefix(model, key) {
				pricing = c.pricing[key]
				break
			}
		}
	}

	if pricing == nil {
		return nil, false
	}

	// Return a copy to prevent concurrent modification
	pricingCopy := *pricing
	return &pricingCopy, true
}

// Calculate computes the cost for the given usage
func (c *Calculator) Calculate(usage *Usage) (*Cost, error) {
	pricing, ok := c.GetPricing(usage.Model)
	if !ok {
		return nil, fmt.Errorf("no pricing found for model: %s", usage.Model)
	}
	return pricing.cost(usage.InputTokens, usage.OutputTokens), nil
}

func (p *ModelPricing) cost(inputTokens, outputTokens int) *Cost {
	c := &Cost{Currency: "USD"}
	if inputTokens > 0 {
		c.InputCost = (float64(inputTokens) / 1_000_000) * p.InputPer1M
	}
	if outputTokens > 0 {
		c.OutputCost = (float64(outputTokens) / 1_000_000) * p.OutputPer1M
	}
	c.TotalCost = c.InputCost + c.OutputCost
	return c
}

// DefaultCalculator is the global cost calculator instance
var DefaultCalculator = NewCalculator()
