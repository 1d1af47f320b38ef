package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"quarterly_metrics/pkg/core/catalog"
	"quarterly_metrics/pkg/core/config"
	"quarterly_metrics/pkg/core/dictionary"
	"quarterly_metrics/pkg/core/llm"
	"quarterly_metrics/pkg/core/logging"
	"quarterly_metrics/pkg/core/pipeline"
	"quarterly_metrics/pkg/core/store"
	"quarterly_metrics/pkg/models"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "normalize",
	Short: "Build the canonical quarterly metrics dataset from interim reports",
	Long: `Extracts income statement figures from each catalogued report, maps them onto
canonical metrics, normalizes units and fiscal periods, resolves Group/Company variants
and writes the dataset plus an audit report.`,
	SilenceUsage: true,
	RunE:         runNormalize,
}

var (
	configPath  string
	catalogPath string
	scanDir     string
	offline     bool
	saveDB      bool
	pretty      bool
)

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "YAML configuration file (defaults apply when omitted)")
	rootCmd.Flags().StringVar(&catalogPath, "catalog", "", "CSV document catalog (symbol, document_id, path, period_hint)")
	rootCmd.Flags().StringVar(&scanDir, "scan-dir", "", "Directory of {SYMBOL}_{report}.pdf files to catalog")
	rootCmd.Flags().BoolVar(&offline, "offline", false, "Use cached extractions only; never call the oracle")
	rootCmd.Flags().BoolVar(&saveDB, "db", false, "Also persist the batch to Postgres (DATABASE_URL)")
	rootCmd.Flags().BoolVar(&pretty, "pretty", false, "Human-readable console logs")
	rootCmd.MarkFlagsMutuallyExclusive("catalog", "scan-dir")
	rootCmd.MarkFlagsOneRequired("catalog", "scan-dir")
}

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "warning: .env: %v\n", err)
	}
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runNormalize(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := logging.New(cfg.LogLevel, pretty)

	dict, err := loadDictionary(cfg)
	if err != nil {
		return err
	}
	docs, err := loadCatalog()
	if err != nil {
		return err
	}
	log.Info().Int("documents", len(docs)).Int("metrics", len(dict.IDs())).Msg("catalog loaded")

	oracle, err := buildOracle(ctx, cfg, log)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	metrics := pipeline.NewMetrics(reg)
	engine, err := pipeline.New(cfg, dict, oracle, pipeline.WithLogger(log), pipeline.WithMetrics(metrics))
	if err != nil {
		return err
	}

	res, err := engine.Run(ctx, docs)
	if err != nil {
		return err
	}

	if err := store.WriteFiles(cfg.Output.Dir, cfg.Output.DatasetFile, cfg.Output.AuditFile, res.Records, res.Audit, res.Metrics); err != nil {
		return err
	}
	log.Info().
		Str("batch_id", res.BatchID).
		Int("records", len(res.Records)).
		Int("audit_entries", len(res.Audit)).
		Int("errors", countSeverity(res.Audit, models.SeverityError)).
		Str("dir", cfg.Output.Dir).
		Msg("dataset written")

	if saveDB {
		if err := persist(ctx, cfg, res); err != nil {
			return err
		}
		log.Info().Msg("batch saved to database")
	}
	if cfg.PushgatewayURL != "" {
		if err := push.New(cfg.PushgatewayURL, "quarterly_metrics").Gatherer(reg).Grouping("batch_id", res.BatchID).Push(); err != nil {
			log.Warn().Err(err).Str("url", cfg.PushgatewayURL).Msg("failed to push run metrics")
		}
	}
	return nil
}

func loadDictionary(cfg config.Config) (*dictionary.Dictionary, error) {
	if cfg.DictionaryPath == "" {
		return dictionary.Default(cfg.SimilarityThreshold), nil
	}
	return dictionary.Load(cfg.DictionaryPath, cfg.SimilarityThreshold)
}

func loadCatalog() ([]models.SourceDocument, error) {
	if scanDir != "" {
		return catalog.ScanDir(scanDir)
	}
	return catalog.LoadCSV(catalogPath)
}

func buildOracle(ctx context.Context, cfg config.Config, log zerolog.Logger) (pipeline.Oracle, error) {
	cache, err := store.NewExtractionCache(cfg.CacheDir)
	if err != nil {
		return nil, err
	}
	if offline {
		return store.NewCachedOracle(cache, nil, log), nil
	}
	gemini, err := llm.NewGeminiOracle(ctx, cfg.Gemini, log)
	if err != nil {
		return nil, eris.Wrap(err, "oracle unavailable (use --offline to run from the cache)")
	}
	return store.NewCachedOracle(cache, gemini, log), nil
}

func persist(ctx context.Context, cfg config.Config, res *pipeline.Result) error {
	if err := store.InitDB(ctx, cfg.DatabaseURL); err != nil {
		return err
	}
	defer store.Close()

	repo := store.NewRepository(nil)
	if err := repo.EnsureSchema(ctx); err != nil {
		return err
	}
	if err := repo.SaveDataset(ctx, res.Records); err != nil {
		return err
	}
	return repo.SaveAudit(ctx, res.Audit)
}

func countSeverity(audit []models.AuditEntry, sev models.Severity) int {
	n := 0
	for _, a := range audit {
		if a.Severity == sev {
			n++
		}
	}
	return n
}
