package cost

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetPricing_NoConcurrentModification(t *testing.T) {
	calc := NewCalculator()

	calc.AddPricing(&ModelPricing{
		Model:       "test-model",
		InputPer1M:  10.0,
		OutputPer1M: 20.0,
	})

	var wg sync.WaitGroup
	numGoroutines := 100

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pricing, ok := calc.GetPricing("test-model")
			if !ok {
				t.Errorf("expected to find pricing")
				return
			}
			// Modify the returned pricing (should not affect the calculator)
			pricing.InputPer1M = 999.0
		}()
	}

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			calc.AddPricing(&ModelPricing{
				Model:       "concurrent-model",
				InputPer1M:  float64(id),
				OutputPer1M: float64(id * 2),
			})
		}(i)
	}

	wg.Wait()

	pricing, ok := calc.GetPricing("test-model")
	require.True(t, ok)
	assert.Equal(t, 10.0, pricing.InputPer1M)
}

func TestGetPricing_PrefixMatchDeterministic(t *testing.T) {
	calc := &Calculator{
		pricing: make(map[string]*ModelPricing),
	}

	calc.AddPricing(&ModelPricing{Model: "test-model", InputPer1M: 30.0, OutputPer1M: 60.0})
	calc.AddPricing(&ModelPricing{Model: "test-model-pro", InputPer1M: 2.5, OutputPer1M: 10.0})

	// Should match "test-model-pro" (longer prefix) not "test-model"
	pricing, ok := calc.GetPricing("test-model-pro-v2")
	require.True(t, ok)
	assert.Equal(t, 2.5, pricing.InputPer1M)
}

func TestGetPricing_NotFound(t *testing.T) {
	calc := NewCalculator()

	pricing, ok := calc.GetPricing("nonexistent-model")
	assert.False(t, ok)
	assert.Nil(t, pricing)
}

func TestCalculate(t *testing.T) {
	calc := NewCalculator()

	c, err := calc.Calculate(&Usage{Model: "deepseek-chat", InputTokens: 1_000_000, OutputTokens: 1_000_000})
	require.NoError(t, err)
	assert.InDelta(t, 0.28, c.InputCost, 1e-12)
	assert.InDelta(t, 0.42, c.OutputCost, 1e-12)
	assert.InDelta(t, 0.70, c.TotalCost, 1e-12)
	assert.Equal(t, "USD", c.Currency)

	_, err = calc.Calculate(&Usage{Model: "unknown"})
	assert.Error(t, err)
}

func TestEstimator_EstimateUSD(t *testing.T) {
	e := ForModel(nil, DefaultModel)

	assert.Equal(t, 0.0, e.EstimateUSD(0, 0))
	assert.InDelta(t, 1200.0/1e6*0.28+300.0/1e6*0.42, e.EstimateUSD(1200, 300), 1e-15)

	in, out := e.Rates()
	assert.Equal(t, 0.28, in)
	assert.Equal(t, 0.42, out)
}

func TestEstimator_Linear(t *testing.T) {
	e := NewEstimator(1.0, 2.0)

	one := e.EstimateUSD(1000, 1000)
	two := e.EstimateUSD(2000, 2000)
	assert.InDelta(t, 2*one, two, 1e-15)
}

func TestForModel_UnknownFallsBackToDefault(t *testing.T) {
	e := ForModel(NewCalculator(), "some-local-model")
	in, out := e.Rates()
	assert.Equal(t, 0.28, in)
	assert.Equal(t, 0.42, out)
}
