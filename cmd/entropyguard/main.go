// Package main implements the entropyguard CLI: a batch data-quality
// firewall that deduplicates and sanitizes text corpora before they feed
// retrieval or training pipelines.
//
// Usage:
//
//	entropyguard --input data.jsonl --output clean.jsonl
//	cat data.jsonl | entropyguard --min-length 80 --dedup-threshold 0.92 > clean.jsonl
//	entropyguard --input data.csv --dry-run --json
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/redis/go-redis/v9"
	"github.com/schollz/progressbar/v3"
	flag "github.com/spf13/pflag"

	"github.com/entropyguard/entropyguard/internal/audit"
	"github.com/entropyguard/entropyguard/internal/checkpoint"
	"github.com/entropyguard/entropyguard/internal/config"
	"github.com/entropyguard/entropyguard/internal/core/domain"
	"github.com/entropyguard/entropyguard/internal/core/ports/driven"
	"github.com/entropyguard/entropyguard/internal/core/services"
	"github.com/entropyguard/entropyguard/internal/embedding"
	"github.com/entropyguard/entropyguard/internal/guard"
	"github.com/entropyguard/entropyguard/internal/ingestion"
	"github.com/entropyguard/entropyguard/internal/runtime"
	"github.com/entropyguard/entropyguard/internal/telemetry"
	"github.com/entropyguard/entropyguard/internal/vectorindex"
)

var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	var (
		showVersion = flag.BoolP("version", "V", false, "Show version and exit")

		input           = flag.StringP("input", "i", "-", "Input path, or - for stdin")
		output          = flag.StringP("output", "o", "-", "Output path, or - for stdout")
		textColumn      = flag.String("text-column", "", "Text column name (auto-detected if omitted)")
		requiredColumns = flag.StringSlice("required-columns", nil, "Columns that must exist in the input schema")
		minLength       = flag.Int("min-length", 50, "Minimum text length in characters after sanitization")
		dedupThreshold  = flag.Float64("dedup-threshold", 0.95, "Cosine similarity above which rows are semantic duplicates [0,1]")
		modelName       = flag.String("model-name", "local", "Embedding model identifier")
		batchSize       = flag.Int("batch-size", 10000, "Rows processed per batch")
		chunkSize       = flag.Int("chunk-size", 0, "Split texts longer than this many characters (0 disables chunking)")
		chunkOverlap    = flag.Int("chunk-overlap", 50, "Characters of overlap between consecutive chunks")
		separators      = flag.StringArray("separators", nil, "Ordered separator list for the chunker")
		missingPolicy   = flag.String("missing-value-policy", "drop", "Handling for null/empty text: drop or fill")
		fillValue       = flag.String("fill-value", "", "Replacement text when --missing-value-policy=fill")
		normalizeText   = flag.Bool("normalize-text", false, "Emit lowercased, whitespace-collapsed text instead of preserving casing")

		auditLogPath  = flag.String("audit-log", "", "Write the audit event array to this path")
		metricsPath   = flag.String("metrics-path", "", "Write Prometheus text-format counters to this path at run end")
		checkpointDir = flag.String("checkpoint-dir", "", "Directory for best-effort stage checkpoints")
		telemetryURL  = flag.String("telemetry-url", "", "POST the audit array to this collector URL at completion")

		maxDiskBytes   = flag.Int64("max-disk-bytes", 0, "Estimated output footprint for the pre-flight disk check (0 = estimate from input)")
		maxMemBytes    = flag.Int64("max-mem-bytes", 0, "Resident memory ceiling in bytes (0 = unlimited)")
		timeoutSeconds = flag.Int("timeout-seconds", 0, "Wall-clock budget for the whole run (0 = unlimited)")

		configPath = flag.StringP("config", "c", "", "Config file (JSON, YAML, or TOML); flags override file values")
		jsonOut    = flag.Bool("json", false, "Machine-readable run summary (on stdout, or on stderr when records go to stdout)")
		verbose    = flag.BoolP("verbose", "v", false, "Debug-level logging")
		quiet      = flag.BoolP("quiet", "q", false, "Suppress non-error output")
		dryRun     = flag.Bool("dry-run", false, "Validate input and config, print the effective config, process nothing")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("entropyguard %s\n", version)
		return 0
	}

	logger := newLogger(*verbose, *quiet)

	overrides := domain.Config{
		Input:              *input,
		Output:             *output,
		TextColumn:         *textColumn,
		RequiredColumns:    *requiredColumns,
		MinLength:          *minLength,
		DedupThreshold:     *dedupThreshold,
		ModelName:          *modelName,
		BatchSize:          *batchSize,
		ChunkSize:          *chunkSize,
		ChunkOverlap:       *chunkOverlap,
		Separators:         *separators,
		MissingValuePolicy: *missingPolicy,
		FillValue:          *fillValue,
		NormalizeText:      *normalizeText,
		AuditLogPath:       *auditLogPath,
		MetricsPath:        *metricsPath,
		CheckpointDir:      *checkpointDir,
		TelemetryURL:       *telemetryURL,
		MaxDiskBytes:       *maxDiskBytes,
		MaxMemBytes:        *maxMemBytes,
		TimeoutSecond:      *timeoutSeconds,
		JSON:               *jsonOut,
		Verbose:            *verbose,
		Quiet:              *quiet,
		DryRun:             *dryRun,
	}

	configRegistry := config.DefaultRegistry()
	fileCfg, err := config.Load(configRegistry, *configPath)
	if err != nil {
		return fail(logger, err)
	}
	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	cfg := config.Merge(fileCfg, overrides, set)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Warn("shutdown signal received, finishing current batch")
		cancel()
	}()

	return runPipeline(ctx, logger, cfg)
}

func runPipeline(ctx context.Context, logger *slog.Logger, cfg domain.Config) int {
	rtCtx := domain.NewRuntimeContext(checkpointBackendName(cfg))
	rtCtx.SetChunkingEnabled(cfg.ChunkSize > 0)
	rtCtx.SetYAMLConfigAvailable(true)
	rtCtx.SetTOMLConfigAvailable(true)
	rtCtx.SetMetricsConfigured(cfg.MetricsPath != "")
	svcs := runtime.NewServices(rtCtx)
	defer svcs.Close()

	// Open the input once; schema probing and the run share the stream,
	// since stdin cannot be reopened.
	sourceRegistry := ingestion.DefaultRegistry()
	source, err := sourceRegistry.Open(ctx, cfg.Input)
	if err != nil {
		return fail(logger, domain.NewValidationError("open input", err))
	}
	defer source.Close()

	if cfg.TextColumn == "" {
		detected, err := ingestion.DetectTextColumnFromSource(ctx, source, 100)
		if err != nil {
			return fail(logger, domain.NewValidationError("detect text column", err))
		}
		if detected == "" {
			return fail(logger, domain.NewValidationError("detect text column",
				errors.New("no string column found in input sample")))
		}
		logger.Info("auto-detected text column", "column", detected)
		cfg.TextColumn = detected
	}

	if err := config.Validate(ctx, cfg, source); err != nil {
		return fail(logger, err)
	}

	if cfg.DryRun {
		return printDryRun(cfg)
	}

	// Pre-flight resource guards.
	inputFP, estimatedOut := statInput(cfg.Input)
	if cfg.MaxDiskBytes > 0 {
		estimatedOut = cfg.MaxDiskBytes
	}
	if cfg.Output != "-" && cfg.Output != "" {
		if err := guard.NewDiskGuard().CheckFreeSpace(outputVolume(cfg.Output), estimatedOut); err != nil {
			return fail(logger, err)
		}
	}
	memGuard := guard.NewMemoryGuard()
	if err := memGuard.CheckHeadroom(cfg.MaxMemBytes); err != nil {
		return fail(logger, err)
	}
	timeout := guard.NewTimeoutGuard(time.Duration(cfg.TimeoutSecond) * time.Second)
	ctx, cancelTimeout := timeout.WithDeadline(ctx)
	defer cancelTimeout()

	runID := newRunID()

	// Optional cross-process coordination through one shared Redis
	// client: the run lock plus the latest-checkpoint pointer cache.
	var runLock *guard.RunLock
	var pointerCache *checkpoint.RedisPointerCache
	if redisURL := os.Getenv("ENTROPYGUARD_REDIS_URL"); redisURL != "" {
		client, err := newRedisClient(ctx, redisURL)
		if err != nil {
			return fail(logger, err)
		}
		defer client.Close()

		runLock = guard.NewRunLock(client, runID)
		release, err := acquireRunLock(ctx, logger, runLock, cfg.Input)
		if err != nil {
			return fail(logger, err)
		}
		defer release()
		svcs.SetLock(runLock)
		pointerCache = checkpoint.NewRedisPointerCache(client)
	}

	// Credentials sidecar: API keys never live in the plain config file.
	creds, err := loadCredentials(logger)
	if err != nil {
		return fail(logger, err)
	}

	// Embedding backend.
	factory := embedding.NewFactory()
	factory.APIKey = creds.EmbeddingAPIKey
	factory.BaseURL = creds.EmbeddingBaseURL
	embedder, err := factory.CreateEmbeddingService(cfg.ModelName)
	if err != nil {
		return fail(logger, domain.NewResourceError("create embedding service", err))
	}
	if err := svcs.ValidateAndSetEmbedding(ctx, embedder); err != nil {
		return fail(logger, domain.NewResourceError("embedding backend unavailable", err))
	}

	// Optional checkpointing. A Postgres store wins over the local
	// filesystem one when configured, for pipelines running across
	// ephemeral containers with no shared disk.
	var checkpointer driven.Checkpointer
	if dbURL := os.Getenv("ENTROPYGUARD_CHECKPOINT_DATABASE_URL"); dbURL != "" {
		db, err := checkpoint.Connect(ctx, checkpoint.DefaultConfig(dbURL))
		if err != nil {
			return fail(logger, domain.NewResourceError("checkpoint database unavailable", err))
		}
		defer db.Close()
		checkpointer = checkpoint.NewPostgresStore(db)
	} else if cfg.CheckpointDir != "" {
		checkpointer = checkpoint.NewFSStore(cfg.CheckpointDir)
	}
	if checkpointer != nil && pointerCache != nil {
		if stage, ok, err := pointerCache.Latest(ctx, inputFP, string(checkpoint.ConfigFingerprint(cfg))); err != nil {
			logger.Warn("checkpoint pointer lookup failed", "error", err)
		} else if ok {
			logger.Info("prior checkpoint found for this input and config", "stage", stage)
		}
		checkpointer = checkpoint.TrackPointer(checkpointer, pointerCache)
	}
	if checkpointer != nil {
		svcs.SetCheckpointer(checkpointer)
	}

	// Optional telemetry.
	if cfg.TelemetryURL != "" {
		secret := creds.TelemetrySecret
		if secret == "" {
			secret = os.Getenv("ENTROPYGUARD_TELEMETRY_SECRET")
		}
		svcs.SetTelemetry(telemetry.NewHTTPReporter(cfg.TelemetryURL, secret))
	}

	sink, err := ingestion.NewNDJSONSink(cfg.Output, cfg.TextColumn)
	if err != nil {
		return fail(logger, err)
	}

	auditLog := audit.NewLog()
	stats := audit.NewStatsBuilder(audit.DefaultCostModel())
	var metrics *audit.MetricsRecorder
	if cfg.MetricsPath != "" {
		metrics = audit.NewMetricsRecorder()
	}

	orchestrator := services.NewPipelineOrchestrator(services.PipelineOrchestratorConfig{
		Source:           source,
		Sink:             sink,
		Index:            newIndex(svcs.EmbeddingService().Dimensions()),
		Embedder:         svcs.EmbeddingService(),
		Checkpointer:     svcs.Checkpointer(),
		AuditLog:         auditLog,
		Stats:            stats,
		Metrics:          metrics,
		MemGuard:         memGuard,
		Logger:           logger,
		InputFingerprint: inputFP,
		Progress:         newProgress(ctx, logger, cfg, runLock),
	})

	result, runErr := orchestrator.Run(ctx, cfg)
	if closeErr := sink.Close(); closeErr != nil && runErr == nil {
		runErr = closeErr
	}

	if metrics != nil {
		if err := metrics.WriteFile(cfg.MetricsPath); err != nil {
			logger.Warn("metrics write failed", "error", err)
		}
	}

	if runErr != nil {
		return fail(logger, runErr)
	}

	if t := svcs.Telemetry(); t != nil {
		if err := t.Report(runID, checkpoint.ConfigFingerprint(cfg), cfg.AuditLogPath); err != nil {
			logger.Warn("telemetry delivery failed", "error", err)
		}
	}

	printSummary(cfg, *result, auditLog.Len())
	return 0
}

// newIndex is a seam for tests; the flat index is the only backend wired
// into this build.
var newIndex = func(dim int) driven.VectorIndex {
	return vectorindex.New(dim)
}

// newRedisClient parses and connects the shared Redis client used by the
// run lock and the checkpoint pointer cache.
func newRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, domain.NewValidationError("parse redis url", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, domain.NewResourceError("redis unavailable", err)
	}
	return client, nil
}

// acquireRunLock takes the lease for this input. The initial TTL is
// short; the per-batch heartbeat in newProgress keeps it alive for as
// long as the run actually makes progress.
func acquireRunLock(ctx context.Context, logger *slog.Logger, lock *guard.RunLock, input string) (func(), error) {
	ok, err := lock.Acquire(ctx, input, guard.DefaultLockTTL)
	if err != nil {
		return nil, domain.NewResourceError("acquire run lock", err)
	}
	if !ok {
		holder, herr := lock.Holder(ctx, input)
		if herr != nil || holder == "" {
			holder = "unknown"
		}
		return nil, domain.NewResourceError("acquire run lock",
			fmt.Errorf("input %s is already being processed by %s", input, holder))
	}
	logger.Debug("run lock acquired", "input", input, "token", lock.Token())
	return func() {
		if err := lock.Release(context.Background(), input); err != nil {
			logger.Warn("run lock release failed", "error", err)
		}
	}, nil
}

// loadCredentials decrypts the sealed credentials sidecar when both the
// file and the master passphrase are configured. Absent either, it
// returns empty credentials and the env-var fallbacks apply.
func loadCredentials(logger *slog.Logger) (config.Credentials, error) {
	path := os.Getenv("ENTROPYGUARD_CREDENTIALS_FILE")
	passphrase := os.Getenv("ENTROPYGUARD_MASTER_KEY")
	if path == "" {
		return config.Credentials{}, nil
	}
	if passphrase == "" {
		return config.Credentials{}, domain.NewValidationError("load credentials",
			errors.New("ENTROPYGUARD_CREDENTIALS_FILE is set but ENTROPYGUARD_MASTER_KEY is not"))
	}
	creds, err := config.LoadCredentials(path, config.DeriveKey(passphrase))
	if err != nil {
		return config.Credentials{}, domain.NewValidationError("load credentials", err)
	}
	logger.Debug("credentials loaded", "path", path)
	return creds, nil
}

// newProgress returns the per-batch progress callback: it renders the
// spinner when stderr is a terminal, and renews the run-lock lease so a
// live run never loses its input to another worker. Returns nil when
// neither job applies.
func newProgress(ctx context.Context, logger *slog.Logger, cfg domain.Config, lock *guard.RunLock) func(int64) {
	var bar *progressbar.ProgressBar
	if !cfg.Quiet && !cfg.JSON && isatty.IsTerminal(os.Stderr.Fd()) {
		bar = progressbar.NewOptions64(-1,
			progressbar.OptionSetDescription("cleaning"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSpinnerType(14),
			progressbar.OptionShowCount(),
		)
	}
	if bar == nil && lock == nil {
		return nil
	}
	return func(rows int64) {
		if bar != nil {
			_ = bar.Set64(rows)
		}
		if lock != nil {
			if err := lock.Extend(ctx, cfg.Input, guard.DefaultLockTTL); err != nil {
				logger.Warn("run lock heartbeat failed", "error", err)
			}
		}
	}
}

func newLogger(verbose, quiet bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	if quiet {
		level = slog.LevelWarn
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// fail logs err and maps it to the process exit code: 2 validation,
// 3 resource, 1 anything else.
func fail(logger *slog.Logger, err error) int {
	msg := err.Error()
	if isatty.IsTerminal(os.Stderr.Fd()) {
		msg = color.RedString(msg)
	}
	logger.Error(msg)
	return domain.ExitCode(err)
}

func printDryRun(cfg domain.Config) int {
	if cfg.JSON {
		out, _ := json.MarshalIndent(cfg, "", "  ")
		fmt.Println(string(out))
		return 0
	}
	fmt.Printf("dry run: input %s is valid\n", cfg.Input)
	fmt.Printf("  text column:      %s\n", cfg.TextColumn)
	fmt.Printf("  min length:       %d\n", cfg.MinLength)
	fmt.Printf("  dedup threshold:  %.2f\n", cfg.DedupThreshold)
	fmt.Printf("  batch size:       %d\n", cfg.BatchSize)
	if cfg.ChunkSize > 0 {
		fmt.Printf("  chunking:         size %d, overlap %d\n", cfg.ChunkSize, cfg.ChunkOverlap)
	} else {
		fmt.Printf("  chunking:         disabled\n")
	}
	return 0
}

func printSummary(cfg domain.Config, stats domain.Stats, auditEvents int) {
	if cfg.JSON {
		payload := struct {
			domain.Stats
			AuditEvents int `json:"audit_events"`
		}{stats, auditEvents}
		out, _ := json.MarshalIndent(payload, "", "  ")
		if cfg.Output == "-" {
			// Stdout carries records; the summary goes to stderr.
			fmt.Fprintln(os.Stderr, string(out))
		} else {
			fmt.Println(string(out))
		}
		return
	}
	if cfg.Quiet {
		return
	}
	w := os.Stderr
	fmt.Fprintf(w, "rows:            %d in, %d out\n", stats.OriginalRows, stats.AfterValidationRows)
	fmt.Fprintf(w, "exact dupes:     %d removed\n", stats.ExactDuplicatesRemoved)
	fmt.Fprintf(w, "semantic dupes:  %d removed\n", stats.SemanticDuplicatesRemoved)
	fmt.Fprintf(w, "total dropped:   %d rows, %d chars\n", stats.TotalDropped, stats.TotalDroppedChars)
	fmt.Fprintf(w, "est. savings:    $%.6f\n", stats.EstimatedAPISavingsUSD)
}

// statInput fingerprints the input for checkpoint binding and estimates
// the output footprint from the input size. Stdin has neither; both
// degrade gracefully.
func statInput(path string) (fingerprint string, estimatedBytes int64) {
	if path == "-" || path == "" {
		return checkpoint.InputFingerprint("stdin", 0, 0), 0
	}
	info, err := os.Stat(path)
	if err != nil {
		return checkpoint.InputFingerprint(path, 0, 0), 0
	}
	return checkpoint.InputFingerprint(path, info.Size(), info.ModTime().UnixNano()), info.Size()
}

func outputVolume(path string) string {
	if path == "-" || path == "" {
		return "."
	}
	if dir := filepath.Dir(path); dir != "" {
		return dir
	}
	return "."
}

func checkpointBackendName(cfg domain.Config) string {
	if os.Getenv("ENTROPYGUARD_CHECKPOINT_DATABASE_URL") != "" {
		return "postgres"
	}
	if cfg.CheckpointDir != "" {
		return "local"
	}
	return ""
}

func newRunID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("run-%d", time.Now().UnixNano())
	}
	return "run-" + hex.EncodeToString(buf)
}
