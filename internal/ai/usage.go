package ai

import (
	"strings"
	"sync"
)

// Usage accumulates token counts and cost. The zero value is ready to use and
// safe for concurrent use.
type Usage struct {
	mu           sync.Mutex
	inputTokens  int
	outputTokens int
	cost         float64
}

// UsageSnapshot is a point-in-time copy of Usage.
type UsageSnapshot struct {
	InputTokens  int     `json:"input_tokens" yaml:"input_tokens"`
	OutputTokens int     `json:"output_tokens" yaml:"output_tokens"`
	Cost         float64 `json:"cost" yaml:"cost"`
}

// Add increments the counters. Negative values are ignored so totals never decrease.
func (u *Usage) Add(inputTokens, outputTokens int, cost float64) {
	if u == nil {
		return
	}
	u.mu.Lock()
	defer u.mu.Unlock()

	if inputTokens > 0 {
		u.inputTokens += inputTokens
	}
	if outputTokens > 0 {
		u.outputTokens += outputTokens
	}
	if cost > 0 {
		u.cost += cost
	}
}

// Snapshot returns the current totals.
func (u *Usage) Snapshot() UsageSnapshot {
	if u == nil {
		return UsageSnapshot{}
	}
	u.mu.Lock()
	defer u.mu.Unlock()

	return UsageSnapshot{InputTokens: u.inputTokens, OutputTokens: u.outputTokens, Cost: u.cost}
}

// Reset zeroes the counters.
func (u *Usage) Reset() {
	if u == nil {
		return
	}
	u.mu.Lock()
	defer u.mu.Unlock()

	u.inputTokens, u.outputTokens, u.cost = 0, 0, 0
}

// Price is the cost in USD per million tokens.
type Price struct {
	Input  float64 `mapstructure:"input" json:"input" yaml:"input"`
	Output float64 `mapstructure:"output" json:"output" yaml:"output"`
}

// PriceTable maps model identifiers to prices.
type PriceTable map[string]Price

// Cost prices a call. Models missing from the table cost nothing.
func (t PriceTable) Cost(model string, inputTokens, outputTokens int) float64 {
	price, ok := t[strings.TrimSpace(model)]
	if !ok {
		return 0
	}
	return float64(inputTokens)*price.Input/1e6 + float64(outputTokens)*price.Output/1e6
}

// DefaultPrices returns the built-in price list.
func DefaultPrices() PriceTable {
	return PriceTable{
		"gpt-4o-mini":      {Input: 0.15, Output: 0.075},
		"gpt-4o":           {Input: 2.50, Output: 1.25},
		"o3-mini":          {Input: 1.10, Output: 4.40},
		"gpt-5":            {Input: 1.25, Output: 10.00},
		"gpt-4.1":          {Input: 2.00, Output: 8.00},
		"gemini-2.5-flash": {Input: 0.30, Output: 2.50},
		"gemini-2.5-pro":   {Input: 1.25, Output: 10.00},
	}
}
