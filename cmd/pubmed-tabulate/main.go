// Command pubmed-tabulate builds PubMed search expressions and tabulates
// article counts across journals or authors and publication date ranges.
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/henrybloomingdale/pubmed-tabulate/internal/cache"
	"github.com/henrybloomingdale/pubmed-tabulate/internal/config"
	"github.com/henrybloomingdale/pubmed-tabulate/internal/eutils"
	"github.com/henrybloomingdale/pubmed-tabulate/internal/mesh"
	"github.com/henrybloomingdale/pubmed-tabulate/internal/ncbi"
	"github.com/henrybloomingdale/pubmed-tabulate/internal/observability"
	"github.com/henrybloomingdale/pubmed-tabulate/internal/output"
)

var (
	flagConfig      string
	flagAPIKey      string
	flagFormat      string
	flagOutputDir   string
	flagCache       string
	flagCachePath   string
	flagLogLevel    string
	flagMetricsFile string
)

// Resolved by the root command before any subcommand runs.
var (
	cfg     *config.Config
	logger  = zerolog.Nop()
	metrics *observability.Metrics
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "pubmed-tabulate",
	Short: "PubMed query, count and tabulation tool",
	Long: `Build PubMed boolean search expressions, count matching articles and
tabulate counts for journals or authors across publication date ranges.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			return nil
		}
		return metrics.WriteTextfile(cfg.Metrics.Textfile)
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagConfig, "config", "", "Config file (default ./pubmed-tabulate.yaml)")
	pf.StringVar(&flagAPIKey, "api-key", "", "NCBI API key (or set NCBI_API_KEY env var)")
	pf.StringVarP(&flagFormat, "format", "o", "", "Output format: plain, json, human or csv")
	pf.StringVar(&flagOutputDir, "output-dir", "", "Directory receiving tabulation report files")
	pf.StringVar(&flagCache, "cache", "", "Result cache backend: none, memory, file or sqlite")
	pf.StringVar(&flagCachePath, "cache-path", "", "Cache file for the file and sqlite backends")
	pf.StringVar(&flagLogLevel, "log-level", "", "Log level: trace, debug, info, warn, error or off")
	pf.StringVar(&flagMetricsFile, "metrics-file", "", "Write Prometheus metrics to this file after the run")

	rootCmd.AddCommand(expressionCmd)
	rootCmd.AddCommand(rangesCmd)
	rootCmd.AddCommand(countCmd)
	rootCmd.AddCommand(firstAuthorCmd)
	rootCmd.AddCommand(tabulateCmd)
	rootCmd.AddCommand(meshCmd)
	rootCmd.AddCommand(cacheCmd)
}

// configFlags maps config keys to the persistent flags overriding them.
func configFlags(flags *pflag.FlagSet) map[string]*pflag.Flag {
	return map[string]*pflag.Flag{
		"ncbi.api_key":      flags.Lookup("api-key"),
		"report.format":     flags.Lookup("format"),
		"report.output_dir": flags.Lookup("output-dir"),
		"cache.backend":     flags.Lookup("cache"),
		"cache.path":        flags.Lookup("cache-path"),
		"logging.level":     flags.Lookup("log-level"),
		"metrics.textfile":  flags.Lookup("metrics-file"),
	}
}

func setup(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load(flagConfig, configFlags(cmd.Root().PersistentFlags()))
	if err != nil {
		return err
	}

	logger = observability.NewLogger(observability.LoggingConfig{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Output:    cfg.Logging.Output,
		AddSource: cfg.Logging.AddSource,
	})
	metrics = observability.NewMetrics(cfg.Metrics.Namespace)
	return nil
}

func outputCfg() (output.OutputConfig, error) {
	return output.ConfigFor(cfg.Report.Format, cfg.Report.OutputDir)
}

func newBaseClient() *ncbi.BaseClient {
	opts := []ncbi.Option{
		ncbi.WithBaseURL(cfg.NCBI.BaseURL),
		ncbi.WithTool(cfg.NCBI.Tool),
		ncbi.WithTimeout(cfg.NCBI.Timeout),
		ncbi.WithMaxRetries(cfg.NCBI.MaxRetries),
		ncbi.WithObserver(metrics.ObserveRequest),
	}
	if cfg.NCBI.APIKey != "" {
		opts = append(opts, ncbi.WithAPIKey(cfg.NCBI.APIKey))
	}
	if cfg.NCBI.Email != "" {
		opts = append(opts, ncbi.WithEmail(cfg.NCBI.Email))
	}
	if cfg.NCBI.RateLimit > 0 {
		opts = append(opts, ncbi.WithRateLimit(cfg.NCBI.RateLimit))
	}
	return ncbi.NewBaseClient(opts...)
}

// newEutilsClient wraps base. Clients built on the same base share its
// rate limiter.
func newEutilsClient(base *ncbi.BaseClient) *eutils.Client {
	c := eutils.NewClientWithBase(base)
	c.MaxPages = cfg.NCBI.MaxPages
	return c
}

func newMeshClient(base *ncbi.BaseClient) *mesh.Client {
	return mesh.NewClient(base)
}

func openCache() (cache.Store, error) {
	store, err := cache.Open(cfg.Cache.Backend, cfg.Cache.Path)
	if err != nil {
		return nil, fmt.Errorf("opening %s cache: %w", cfg.Cache.Backend, err)
	}
	return store, nil
}
