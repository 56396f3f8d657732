package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/henrybloomingdale/pubmed-tabulate/internal/firstauthor"
	"github.com/henrybloomingdale/pubmed-tabulate/internal/mesh"
	"github.com/henrybloomingdale/pubmed-tabulate/internal/output"
	"github.com/henrybloomingdale/pubmed-tabulate/internal/tabulate"
)

// defaultTargetFolder receives the report files when no folder is configured.
const defaultTargetFolder = "results"

var (
	flagJournalsPath string
	flagAuthorsPath  string
	flagKeywordsPath string
	flagMeSHPath     string
	flagTabFrom      string
	flagTabTo        string
	flagTabInterval  int
	flagTargetFolder string
	flagJob          string
	flagCheckMeSH    bool
)

func init() {
	f := tabulateCmd.Flags()
	f.StringVarP(&flagJournalsPath, "journals", "J", "", "File listing journals, one per line")
	f.StringVarP(&flagAuthorsPath, "authors", "A", "", "File listing authors, one per line")
	f.StringVarP(&flagKeywordsPath, "keywords", "K", "", "File listing free-text terms, one per line")
	f.StringVarP(&flagMeSHPath, "mesh", "M", "", "File listing MeSH terms, one per line")
	f.StringVarP(&flagTabFrom, "from", "F", "01-01-1900", "Start date (MM-DD-YYYY)")
	f.StringVarP(&flagTabTo, "to", "T", "", "End date (MM-DD-YYYY, default today)")
	f.IntVarP(&flagTabInterval, "interval", "I", 0, "Range length in years (0 for a single range)")
	f.StringVar(&flagTargetFolder, "target-folder", "", "Directory receiving the report files (default \"results\")")
	f.StringVar(&flagJob, "job", "", "YAML job file describing the tabulation")
	f.BoolVar(&flagCheckMeSH, "check-mesh", false, "Warn about MeSH terms PubMed does not recognise")

	tabulateCmd.MarkFlagsMutuallyExclusive("journals", "authors")
	tabulateCmd.MarkFlagsMutuallyExclusive("job", "journals")
	tabulateCmd.MarkFlagsMutuallyExclusive("job", "authors")
	tabulateCmd.MarkFlagsMutuallyExclusive("job", "keywords")
	tabulateCmd.MarkFlagsMutuallyExclusive("job", "mesh")
}

// tabulateCmd implements the tabulate subcommand.
var tabulateCmd = &cobra.Command{
	Use:   "tabulate",
	Short: "Tabulate article counts across items and date ranges",
	Long: `Count PubMed articles for every journal (-J) or author (-A) in every date
range, with and without the keyword filter (-K, -M). Without journals or
authors the keywords alone are counted. Author runs also count the articles
each author is listed first on.

Results are written as CSV files plus a query log to the target folder.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		job, err := resolveJob(cmd)
		if err != nil {
			return err
		}
		in, err := job.Input(time.Now())
		if err != nil {
			return err
		}

		ocfg, err := outputCfg()
		if err != nil {
			return err
		}
		ocfg.Dir = targetFolder(job)

		base := newBaseClient()
		client := newEutilsClient(base)
		if flagCheckMeSH && len(in.MeSHTerms) > 0 {
			if err := checkMeSH(cmd.Context(), newMeshClient(base), in.MeSHTerms); err != nil {
				return err
			}
		}

		store, err := openCache()
		if err != nil {
			return err
		}
		defer store.Close()

		driver := tabulate.New(client,
			tabulate.WithFirstAuthorFilter(firstauthor.NewFilter(client, firstauthor.WithLogger(logger))),
			tabulate.WithCache(store),
			tabulate.WithLogger(logger),
			tabulate.WithMetrics(metrics),
			tabulate.WithPageSize(cfg.NCBI.PageSize),
		)
		report, runErr := driver.Run(cmd.Context(), in)
		if report == nil {
			return runErr
		}
		if err := output.FormatReport(os.Stdout, report, ocfg); err != nil {
			return err
		}
		return runErr
	},
}

// resolveJob loads --job, or assembles a job from the list file flags.
// Explicit date, interval and folder flags override the job file.
func resolveJob(cmd *cobra.Command) (*tabulate.Job, error) {
	job := &tabulate.Job{
		JournalsFile:  flagJournalsPath,
		AuthorsFile:   flagAuthorsPath,
		KeywordsFile:  flagKeywordsPath,
		MeSHFile:      flagMeSHPath,
		From:          flagTabFrom,
		To:            flagTabTo,
		IntervalYears: flagTabInterval,
		TargetFolder:  flagTargetFolder,
	}
	if flagJob == "" {
		return job, nil
	}

	loaded, err := tabulate.LoadJob(flagJob)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("from") {
		loaded.From = flagTabFrom
	}
	if flags.Changed("to") {
		loaded.To = flagTabTo
	}
	if flags.Changed("interval") {
		loaded.IntervalYears = flagTabInterval
	}
	if flags.Changed("target-folder") {
		loaded.TargetFolder = flagTargetFolder
	}
	return loaded, nil
}

// targetFolder picks the report directory: the job's folder, then the
// configured output directory, then "results".
func targetFolder(job *tabulate.Job) string {
	switch {
	case job.TargetFolder != "":
		return job.TargetFolder
	case cfg.Report.OutputDir != "":
		return cfg.Report.OutputDir
	default:
		return defaultTargetFolder
	}
}

// meshResolver is satisfied by *mesh.Client.
type meshResolver interface {
	Unresolved(ctx context.Context, terms []string) ([]string, error)
}

// checkMeSH logs a warning for each MeSH term without a descriptor. Only a
// failed lookup stops the run.
func checkMeSH(ctx context.Context, resolver meshResolver, terms []string) error {
	missing, err := resolver.Unresolved(ctx, terms)
	if err != nil {
		return fmt.Errorf("checking MeSH terms: %w", err)
	}
	for _, term := range missing {
		logger.Warn().Str("term", term).Msg("no MeSH descriptor matches term; PubMed will search it as free text")
	}
	return nil
}

var _ meshResolver = (*mesh.Client)(nil)
