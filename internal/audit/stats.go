package audit

import (
	"sync"

	"github.com/entropyguard/entropyguard/internal/core/domain"
)

// CostModel parameterizes the estimated_api_savings figure. The price
// constant is a field on an overridable struct instead of a hard-coded
// literal, so a caller that knows its actual embedding-API price point
// can supply one.
type CostModel struct {
	// CharsPerToken approximates the char-to-token ratio (default 4).
	CharsPerToken float64
	// PricePerThousandTokens is the USD price per 1K tokens (default
	// 0.00013, tied to a historical embedding-API price point).
	PricePerThousandTokens float64
}

// DefaultCostModel is the fixed heuristic: ~4 chars per token, priced at
// a historical embedding-API rate. A display figure, not a contract.
func DefaultCostModel() CostModel {
	return CostModel{CharsPerToken: 4, PricePerThousandTokens: 0.00013}
}

func (c CostModel) estimate(totalDroppedChars int64) float64 {
	tokens := float64(totalDroppedChars) / c.CharsPerToken
	return (tokens / 1000) * c.PricePerThousandTokens
}

// StatsBuilder accumulates domain.Stats incrementally as the orchestrator
// drives batches through the pipeline. Written only by the driver thread.
type StatsBuilder struct {
	mu        sync.Mutex
	stats     domain.Stats
	costModel CostModel
}

// NewStatsBuilder creates a StatsBuilder with the given cost model.
func NewStatsBuilder(costModel CostModel) *StatsBuilder {
	return &StatsBuilder{costModel: costModel}
}

func (b *StatsBuilder) AddOriginal(n int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stats.OriginalRows += n
}

func (b *StatsBuilder) AddAfterSanitization(n int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stats.AfterSanitizationRows += n
}

func (b *StatsBuilder) AddAfterChunking(n int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stats.AfterChunkingRows += n
}

func (b *StatsBuilder) AddAfterExactDedup(n int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stats.AfterExactDedupRows += n
}

func (b *StatsBuilder) AddAfterSemanticDedup(n int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stats.AfterSemanticDedupRows += n
}

func (b *StatsBuilder) AddAfterValidation(n int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stats.AfterValidationRows += n
}

func (b *StatsBuilder) AddExactDuplicatesRemoved(n int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stats.ExactDuplicatesRemoved += n
}

func (b *StatsBuilder) AddSemanticDuplicatesRemoved(n int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stats.SemanticDuplicatesRemoved += n
}

// RecordDrop accounts for one dropped row's character count, updating
// total_dropped, total_dropped_chars, and the derived cost estimate.
func (b *StatsBuilder) RecordDrop(chars int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stats.TotalDropped++
	b.stats.TotalDroppedChars += int64(chars)
	b.stats.EstimatedAPISavingsUSD = b.costModel.estimate(b.stats.TotalDroppedChars)
}

// RecordDrops is a bulk convenience over RecordDrop for a slice of texts.
func (b *StatsBuilder) RecordDrops(texts []string) {
	for _, t := range texts {
		b.RecordDrop(len([]rune(t)))
	}
}

// Snapshot returns the current Stats by value.
func (b *StatsBuilder) Snapshot() domain.Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats
}
