package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/henrybloomingdale/pubmed-tabulate/internal/daterange"
	"github.com/henrybloomingdale/pubmed-tabulate/internal/firstauthor"
	"github.com/henrybloomingdale/pubmed-tabulate/internal/output"
	"github.com/henrybloomingdale/pubmed-tabulate/internal/query"
)

var (
	flagJournal  string
	flagAuthor   string
	flagCustom   string
	flagKeywords []string
	flagMeSH     []string
	flagFrom     string
	flagTo       string
	flagIDs      bool

	flagRangeFrom string
	flagRangeTo   string
	flagInterval  int
)

func init() {
	for _, cmd := range []*cobra.Command{expressionCmd, countCmd} {
		f := cmd.Flags()
		f.StringVar(&flagJournal, "journal", "", "Journal name")
		f.StringVar(&flagAuthor, "author", "", "Author name")
		f.StringVar(&flagCustom, "custom", "", "Raw PubMed expression, inserted verbatim")
		f.StringSliceVarP(&flagKeywords, "keyword", "k", nil, "Free-text term (repeatable)")
		f.StringSliceVarP(&flagMeSH, "mesh", "m", nil, "MeSH term (repeatable)")
		f.StringVarP(&flagFrom, "from", "F", "", "Earliest publication date (MM-DD-YYYY)")
		f.StringVarP(&flagTo, "to", "T", "", "Latest publication date (MM-DD-YYYY)")
	}
	countCmd.Flags().BoolVar(&flagIDs, "ids", false, "Retrieve every matching PMID")

	rangesCmd.Flags().StringVarP(&flagRangeFrom, "from", "F", "01-01-1900", "Start date (MM-DD-YYYY)")
	rangesCmd.Flags().StringVarP(&flagRangeTo, "to", "T", "", "End date (MM-DD-YYYY, default today)")
	rangesCmd.Flags().IntVarP(&flagInterval, "interval", "I", 0, "Range length in years (0 for a single range)")

	cacheCmd.AddCommand(cacheClearCmd)
}

// buildCriteria assembles search criteria from the expression flags.
func buildCriteria(args []string) (query.Criteria, error) {
	opts := []query.Option{
		query.WithJournal(flagJournal),
		query.WithAuthor(flagAuthor),
		query.WithCustom(flagCustom),
		query.WithTextTerms(flagKeywords...),
		query.WithMeSHTerms(flagMeSH...),
	}
	if len(args) > 0 {
		if flagCustom != "" {
			return query.Criteria{}, errors.New("pass a custom expression either as arguments or with --custom")
		}
		opts = append(opts, query.WithCustom(strings.Join(args, " ")))
	}

	from, err := parseOptionalDate(flagFrom)
	if err != nil {
		return query.Criteria{}, fmt.Errorf("--from: %w", err)
	}
	to, err := parseOptionalDate(flagTo)
	if err != nil {
		return query.Criteria{}, fmt.Errorf("--to: %w", err)
	}
	if from.IsZero() && !to.IsZero() {
		return query.Criteria{}, errors.New("--to requires --from")
	}
	opts = append(opts, query.WithDates(from, to))

	return query.New(opts...)
}

func parseOptionalDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return daterange.ParseDate(s)
}

// expressionCmd implements the expression subcommand.
var expressionCmd = &cobra.Command{
	Use:   "expression [custom expression...]",
	Short: "Print the PubMed search expression for the given filters",
	Long: `Build a PubMed boolean search expression from journal, author, free-text,
MeSH and publication date filters without querying PubMed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		criteria, err := buildCriteria(args)
		if err != nil {
			return err
		}
		ocfg, err := outputCfg()
		if err != nil {
			return err
		}
		return output.FormatExpression(os.Stdout, criteria.Expression(), ocfg)
	},
}

// rangesCmd implements the ranges subcommand.
var rangesCmd = &cobra.Command{
	Use:   "ranges",
	Short: "Partition a date span into consecutive ranges",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		from, err := daterange.ParseDate(flagRangeFrom)
		if err != nil {
			return fmt.Errorf("--from: %w", err)
		}
		to := daterange.Day(time.Now())
		if flagRangeTo != "" {
			if to, err = daterange.ParseDate(flagRangeTo); err != nil {
				return fmt.Errorf("--to: %w", err)
			}
		}

		ranges, err := daterange.Partition(from, to, flagInterval)
		if err != nil {
			return err
		}
		ocfg, err := outputCfg()
		if err != nil {
			return err
		}
		return output.FormatRanges(os.Stdout, ranges, ocfg)
	},
}

// countCmd implements the count subcommand.
var countCmd = &cobra.Command{
	Use:   "count [custom expression...]",
	Short: "Count PubMed articles matching the given filters",
	Long: `Count PubMed articles matching an expression built from the filters.
With --ids every matching PMID is retrieved, page by page.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		criteria, err := buildCriteria(args)
		if err != nil {
			return err
		}
		expr := criteria.Expression()
		if expr == "" {
			return errors.New("no search filters given")
		}
		ocfg, err := outputCfg()
		if err != nil {
			return err
		}

		client := newEutilsClient(newBaseClient())
		result := output.CountResult{Expression: expr}
		if flagIDs {
			res, err := client.SearchAll(cmd.Context(), expr, cfg.NCBI.PageSize)
			if err != nil {
				return fmt.Errorf("search failed: %w", err)
			}
			result = output.FromSearch(expr, res)
		} else {
			if result.Count, err = client.Count(cmd.Context(), expr); err != nil {
				return fmt.Errorf("count failed: %w", err)
			}
		}
		return output.FormatCount(os.Stdout, result, ocfg)
	},
}

// firstAuthorCmd implements the first-author subcommand.
var firstAuthorCmd = &cobra.Command{
	Use:   "first-author <full name> <pmid> [pmid...]",
	Short: "Keep the articles whose first author matches a name",
	Long: `Check which of the given articles list the named person as first author.
The name is matched as "family initials", e.g. "Reshma Jagsi" matches "Jagsi R".`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ocfg, err := outputCfg()
		if err != nil {
			return err
		}
		name, ids := args[0], args[1:]

		filter := firstauthor.NewFilter(newEutilsClient(newBaseClient()), firstauthor.WithLogger(logger))
		kept, err := filter.Filter(cmd.Context(), name, ids)
		if err != nil {
			return fmt.Errorf("first-author lookup failed: %w", err)
		}
		metrics.RecordFirstNamed(len(kept))

		return output.FormatFirstAuthor(os.Stdout, output.FirstAuthorResult{
			Author:     name,
			Normalized: firstauthor.NormalizeName(name),
			Checked:    len(ids),
			IDs:        kept,
		}, ocfg)
	},
}

// meshCmd implements the mesh subcommand.
var meshCmd = &cobra.Command{
	Use:   "mesh <term>",
	Short: "Look up a MeSH descriptor",
	Long:  `Retrieve the MeSH descriptor for a term, including tree numbers, scope note and entry terms.`,
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ocfg, err := outputCfg()
		if err != nil {
			return err
		}
		record, err := newMeshClient(newBaseClient()).Lookup(cmd.Context(), strings.Join(args, " "))
		if err != nil {
			return fmt.Errorf("MeSH lookup failed: %w", err)
		}
		return output.FormatMeSHRecord(os.Stdout, record, ocfg)
	},
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the result cache",
}

// cacheClearCmd implements the cache clear subcommand.
var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every cached result",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openCache()
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.Clear(cmd.Context()); err != nil {
			return fmt.Errorf("clearing cache: %w", err)
		}
		logger.Info().Str("backend", cfg.Cache.Backend).Msg("cache cleared")
		return nil
	},
}
