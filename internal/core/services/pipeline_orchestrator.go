// Package services holds the core business logic driving the cleaning
// pipeline. PipelineOrchestrator is the only stateful driver: it streams
// batches from the row source, runs the sanitize/chunk/dedup/embed/index/
// validate stages in order, carries the fingerprint map and vector index
// across batches, and feeds the audit log and stats continuously.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/entropyguard/entropyguard/internal/audit"
	"github.com/entropyguard/entropyguard/internal/checkpoint"
	"github.com/entropyguard/entropyguard/internal/chunking"
	"github.com/entropyguard/entropyguard/internal/core/domain"
	"github.com/entropyguard/entropyguard/internal/core/ports/driven"
	"github.com/entropyguard/entropyguard/internal/core/ports/driving"
	"github.com/entropyguard/entropyguard/internal/dedup"
	"github.com/entropyguard/entropyguard/internal/guard"
	"github.com/entropyguard/entropyguard/internal/sanitizer"
	"github.com/entropyguard/entropyguard/internal/validation"
	"github.com/entropyguard/entropyguard/internal/vectorindex"
)

// embedSubBatchSize bounds how many texts are handed to the embedding
// backend per call, keeping peak memory proportional to the sub-batch
// regardless of the configured pipeline batch size.
const embedSubBatchSize = 256

var _ driving.Pipeline = (*PipelineOrchestrator)(nil)

// PipelineOrchestratorConfig holds dependencies for PipelineOrchestrator.
type PipelineOrchestratorConfig struct {
	Source       driven.RowSource
	Sink         driven.RowSink
	Index        driven.VectorIndex
	Embedder     driven.EmbeddingService
	Checkpointer driven.Checkpointer // optional; failures never fail the run
	AuditLog     *audit.Log
	Stats        *audit.StatsBuilder
	Metrics      *audit.MetricsRecorder // optional
	MemGuard     *guard.MemoryGuard     // optional in-flight headroom check
	Logger       *slog.Logger

	// InputFingerprint identifies the input for checkpoint binding.
	InputFingerprint string

	// Progress, when non-nil, is called once per batch with the number of
	// raw rows ingested so far.
	Progress func(rowsIngested int64)
}

// PipelineOrchestrator coordinates the cleaning pipeline over a stream of
// batches. It owns the cross-batch state: the fingerprint registry and
// the vector index. All stage calls happen on the driver goroutine;
// in-batch parallelism is internal to the stages themselves.
type PipelineOrchestrator struct {
	source       driven.RowSource
	sink         driven.RowSink
	index        driven.VectorIndex
	embedder     driven.EmbeddingService
	checkpointer driven.Checkpointer
	auditLog     *audit.Log
	stats        *audit.StatsBuilder
	metrics      *audit.MetricsRecorder
	memGuard     *guard.MemoryGuard
	logger       *slog.Logger

	inputFingerprint string
	progress         func(int64)

	fingerprints *dedup.Registry
	nextIndex    int64
}

// NewPipelineOrchestrator creates a pipeline orchestrator.
func NewPipelineOrchestrator(cfg PipelineOrchestratorConfig) *PipelineOrchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &PipelineOrchestrator{
		source:           cfg.Source,
		sink:             cfg.Sink,
		index:            cfg.Index,
		embedder:         cfg.Embedder,
		checkpointer:     cfg.Checkpointer,
		auditLog:         cfg.AuditLog,
		stats:            cfg.Stats,
		metrics:          cfg.Metrics,
		memGuard:         cfg.MemGuard,
		logger:           logger,
		inputFingerprint: cfg.InputFingerprint,
		progress:         cfg.Progress,
		fingerprints:     dedup.NewRegistry(),
	}
}

// Run drives the whole pipeline to completion. On a hard stage failure
// the run aborts with that stage's error category; output and audit
// written so far stay on disk for forensics.
func (o *PipelineOrchestrator) Run(ctx context.Context, cfg domain.Config) (*domain.Stats, error) {
	san := sanitizer.New(cfg)
	val := validation.New(cfg)

	var splitter *chunking.Splitter
	if cfg.ChunkSize > 0 {
		splitter = chunking.New(cfg.ChunkSize, cfg.ChunkOverlap, cfg.Separators)
	}

	thresholdSq := vectorindex.ThresholdSq(cfg.DedupThreshold)
	configFP := domain.ConfigFingerprint("")
	if o.checkpointer != nil {
		configFP = checkpoint.ConfigFingerprint(cfg)
	}

	batchNum := 0
	for {
		if err := guard.CheckExpired(ctx); err != nil {
			return o.abort(cfg, err)
		}
		if o.memGuard != nil {
			if err := o.memGuard.CheckHeadroom(cfg.MaxMemBytes); err != nil {
				return o.abort(cfg, err)
			}
		}

		batch, err := o.readBatch(ctx, cfg)
		if err != nil {
			return o.abort(cfg, err)
		}
		if len(batch.Records) == 0 {
			break
		}
		batchNum++
		logger := o.logger.With("batch", batchNum)
		logger.Debug("batch ingested", "rows", len(batch.Records))

		survivors, err := o.processBatch(ctx, logger, cfg, batch, san, splitter, val, thresholdSq, configFP)
		if err != nil {
			return o.abort(cfg, err)
		}

		for _, rec := range survivors {
			if err := o.sink.Write(ctx, rec); err != nil {
				return o.abort(cfg, fmt.Errorf("write output: %w", err))
			}
		}

		if o.progress != nil {
			o.progress(o.nextIndex)
		}
	}

	if err := o.auditLog.Flush(cfg.AuditLogPath); err != nil {
		return o.abort(cfg, domain.NewResourceError("audit.Flush", err))
	}
	stats := o.stats.Snapshot()
	return &stats, nil
}

// abort flushes forensic state best-effort and returns err unchanged.
func (o *PipelineOrchestrator) abort(cfg domain.Config, err error) (*domain.Stats, error) {
	if flushErr := o.auditLog.Flush(cfg.AuditLogPath); flushErr != nil {
		o.logger.Warn("audit flush on abort failed", "error", flushErr)
	}
	return nil, err
}

// readBatch pulls up to cfg.BatchSize rows from the source, assigning
// each a globally monotonic original_index. A malformed row is recorded
// in the audit log and skipped; it still consumes an index so forensics
// can name the offending position.
func (o *PipelineOrchestrator) readBatch(ctx context.Context, cfg domain.Config) (domain.Batch, error) {
	batch := domain.Batch{Records: make([]domain.Record, 0, cfg.BatchSize)}
	for len(batch.Records) < cfg.BatchSize {
		row, ok, err := o.source.Next(ctx)
		if err != nil {
			if !ok {
				return batch, domain.NewProcessingError("ingest", "Next", err)
			}
			// Row-level failure: audit it, keep streaming.
			idx := o.nextIndex
			o.nextIndex++
			o.stats.AddOriginal(1)
			o.recordDrop(domain.AuditEvent{
				RowIndex: idx,
				Reason:   domain.ReasonValidationEmpty,
				Details:  fmt.Sprintf("malformed input row: %v", err),
			}, 0)
			continue
		}
		if !ok {
			break
		}

		idx := o.nextIndex
		o.nextIndex++
		o.stats.AddOriginal(1)

		text := row[cfg.TextColumn]
		passthrough := make(map[string]string, len(row))
		for k, v := range row {
			if k == cfg.TextColumn {
				continue
			}
			passthrough[k] = v
		}
		batch.Records = append(batch.Records, domain.Record{
			OriginalIndex: idx,
			Text:          text,
			Passthrough:   passthrough,
			ChunkPosition: -1,
		})
	}
	return batch, nil
}

// processBatch runs one batch through sanitize, chunk, exact dedup,
// embed, semantic dedup, and validation, returning the surviving records
// in arrival order.
func (o *PipelineOrchestrator) processBatch(
	ctx context.Context,
	logger *slog.Logger,
	cfg domain.Config,
	batch domain.Batch,
	san *sanitizer.Sanitizer,
	splitter *chunking.Splitter,
	val *validation.Validator,
	thresholdSq float64,
	configFP domain.ConfigFingerprint,
) ([]domain.Record, error) {
	// Sanitize.
	start := time.Now()
	sanResult, err := san.SanitizeBatch(ctx, batch.Records)
	if err != nil {
		return nil, err
	}
	for _, ev := range sanResult.Dropped {
		o.recordDrop(ev, 0)
	}
	o.stats.AddAfterSanitization(int64(len(sanResult.Records)))
	o.observeStage("sanitize", start)

	// Chunk.
	records := sanResult.Records
	if splitter != nil {
		start = time.Now()
		records = o.chunkBatch(records, splitter)
		o.observeStage("chunk", start)
	}
	o.stats.AddAfterChunking(int64(len(records)))

	// Exact dedup. First-wins: within a batch arrival order is index
	// order, so the smallest original_index is always canonical.
	start = time.Now()
	kept := records[:0]
	for _, rec := range records {
		canonical, duplicate := o.fingerprints.CheckAndAdd(rec.Text, rec.OriginalIndex)
		if duplicate {
			o.recordDrop(domain.AuditEvent{
				RowIndex: rec.OriginalIndex,
				Reason:   domain.ReasonExactDuplicate,
				Details:  fmt.Sprintf("exact duplicate of row %d", canonical),
			}, len([]rune(rec.Text)))
			o.stats.AddExactDuplicatesRemoved(1)
			continue
		}
		kept = append(kept, rec)
	}
	records = kept
	o.stats.AddAfterExactDedup(int64(len(records)))
	o.observeStage("exact_dedup", start)
	o.checkpoint(ctx, logger, driven.StageAfterExactDedup, configFP, records)

	// Embed. Hashing already removed exact copies, so the expensive stage
	// only ever sees distinct texts.
	start = time.Now()
	embeddings, err := o.embedBatch(ctx, records)
	if err != nil {
		return nil, err
	}
	kept = records[:0]
	keptEmb := make([]domain.Embedding, 0, len(embeddings))
	for i, emb := range embeddings {
		if emb == nil {
			o.recordDrop(domain.AuditEvent{
				RowIndex: records[i].OriginalIndex,
				Reason:   domain.ReasonValidationEmpty,
				Details:  "degenerate input produced a zero embedding",
			}, len([]rune(records[i].Text)))
			continue
		}
		kept = append(kept, records[i])
		keptEmb = append(keptEmb, emb)
	}
	records = kept
	o.observeStage("embed", start)

	// Semantic dedup against everything indexed so far, this batch included.
	start = time.Now()
	records, err = o.semanticDedup(ctx, logger, records, keptEmb, thresholdSq)
	if err != nil {
		return nil, err
	}
	o.stats.AddAfterSemanticDedup(int64(len(records)))
	o.observeStage("semantic_dedup", start)
	o.checkpoint(ctx, logger, driven.StageAfterSemanticDedup, configFP, records)

	// Validate.
	start = time.Now()
	survivors := make([]domain.Record, 0, len(records))
	for _, rec := range records {
		if ev := val.Check(rec); ev != nil {
			o.recordDrop(*ev, len([]rune(rec.Text)))
			continue
		}
		survivors = append(survivors, rec)
	}
	o.stats.AddAfterValidation(int64(len(survivors)))
	o.observeStage("validate", start)
	o.checkpoint(ctx, logger, driven.StageAfterValidation, configFP, survivors)

	return survivors, nil
}

// chunkBatch splits each record whose text exceeds the chunk size into
// overlapping windows. Chunks inherit the parent's original_index and
// passthrough fields and flow through the rest of the pipeline as
// independent records.
func (o *PipelineOrchestrator) chunkBatch(records []domain.Record, splitter *chunking.Splitter) []domain.Record {
	out := make([]domain.Record, 0, len(records))
	for _, rec := range records {
		chunks := splitter.Split(rec.Text)
		if len(chunks) == 1 {
			out = append(out, rec)
			continue
		}
		for _, c := range chunks {
			out = append(out, domain.Record{
				OriginalIndex: rec.OriginalIndex,
				Text:          c.Text,
				Passthrough:   rec.Passthrough,
				ChunkPosition: c.Position,
			})
		}
	}
	return out
}

// embedBatch runs the embedding backend over the batch's texts in bounded
// sub-batches. A transient backend failure is retried once per sub-batch
// before surfacing as a processing error.
func (o *PipelineOrchestrator) embedBatch(ctx context.Context, records []domain.Record) ([]domain.Embedding, error) {
	out := make([]domain.Embedding, 0, len(records))
	for off := 0; off < len(records); off += embedSubBatchSize {
		end := off + embedSubBatchSize
		if end > len(records) {
			end = len(records)
		}
		texts := make([]string, 0, end-off)
		for _, rec := range records[off:end] {
			texts = append(texts, rec.Text)
		}

		embs, err := o.embedder.Embed(ctx, texts)
		if err != nil {
			o.logger.Warn("embedding call failed, retrying once", "error", err)
			embs, err = o.embedder.Embed(ctx, texts)
			if err != nil {
				return nil, domain.NewProcessingError("embed", "Embed", err)
			}
		}
		if len(embs) != len(texts) {
			return nil, domain.NewProcessingError("embed", "Embed",
				fmt.Errorf("backend returned %d embeddings for %d texts", len(embs), len(texts)))
		}
		out = append(out, embs...)
	}
	return out, nil
}

// semanticDedup inserts the batch's vectors into the cross-batch index,
// then removes every batch member that lands in a duplicate group with a
// smaller original_index, whether that canonical arrived in this batch
// or in an earlier one.
func (o *PipelineOrchestrator) semanticDedup(
	ctx context.Context,
	logger *slog.Logger,
	records []domain.Record,
	embeddings []domain.Embedding,
	thresholdSq float64,
) ([]domain.Record, error) {
	if len(records) == 0 {
		return records, nil
	}

	originalIndexes := make([]int64, len(records))
	for i, rec := range records {
		originalIndexes[i] = rec.OriginalIndex
	}

	entries, err := o.index.Add(ctx, embeddings, originalIndexes)
	if err != nil {
		logger.Warn("index insert failed, retrying once", "error", err)
		entries, err = o.index.Add(ctx, embeddings, originalIndexes)
		if err != nil {
			return nil, domain.NewProcessingError("index", "Add", err)
		}
	}
	if len(entries) < len(records) {
		logger.Warn("degenerate vectors skipped by index",
			"skipped", len(records)-len(entries), "category", "processing")
	}

	candidateIDs := make([]int, len(entries))
	for i, e := range entries {
		candidateIDs[i] = e.GlobalVectorID
	}

	groups, err := o.index.FindDuplicates(ctx, thresholdSq, candidateIDs)
	if err != nil {
		return nil, domain.NewProcessingError("index", "FindDuplicates", err)
	}

	// Canonical member (smallest original_index) for each group; the
	// index assigns ids in insertion order, so earlier batches always win.
	drop := make(map[int64]int64)
	for _, g := range groups {
		for _, member := range g.Members {
			if member != g.Canonical {
				drop[member] = g.Canonical
			}
		}
	}
	if len(drop) == 0 {
		return records, nil
	}

	kept := records[:0]
	for _, rec := range records {
		if canonical, dup := drop[rec.OriginalIndex]; dup {
			o.recordDrop(domain.AuditEvent{
				RowIndex: rec.OriginalIndex,
				Reason:   domain.ReasonSemanticDuplicate,
				Details:  fmt.Sprintf("semantic duplicate of row %d", canonical),
			}, len([]rune(rec.Text)))
			o.stats.AddSemanticDuplicatesRemoved(1)
			continue
		}
		kept = append(kept, rec)
	}
	return kept, nil
}

// recordDrop appends the audit event and keeps every counter in step with
// it: total_dropped, total_dropped_chars, the metrics drop counter.
func (o *PipelineOrchestrator) recordDrop(ev domain.AuditEvent, chars int) {
	o.auditLog.Append(ev)
	o.stats.RecordDrop(chars)
	if o.metrics != nil {
		o.metrics.RecordDrop(ev.Reason)
	}
}

// checkpoint persists the batch shard best-effort. Failure to persist
// never fails the run.
func (o *PipelineOrchestrator) checkpoint(
	ctx context.Context,
	logger *slog.Logger,
	stage driven.CheckpointStage,
	configFP domain.ConfigFingerprint,
	records []domain.Record,
) {
	if o.checkpointer == nil {
		return
	}
	key := driven.CheckpointKey{
		InputFingerprint:  o.inputFingerprint,
		ConfigFingerprint: configFP,
		Stage:             stage,
	}
	if err := o.checkpointer.Save(ctx, key, records); err != nil {
		logger.Warn("checkpoint save failed", "stage", stage, "error", err)
	}
}

func (o *PipelineOrchestrator) observeStage(stage string, start time.Time) {
	if o.metrics != nil {
		o.metrics.ObserveStage(stage, time.Since(start).Seconds())
	}
}

