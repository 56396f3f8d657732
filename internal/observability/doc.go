// Package observability provides logging and metrics for pubmed-tabulate.
//
// # Logging
//
// Create a logger from configuration:
//
//	logger := observability.NewLogger(observability.LoggingConfig{
//	    Level:  "debug",
//	    Format: "json",
//	    Output: "stderr",
//	})
//	logger = observability.WithRunContext(logger, runID)
//
// # Metrics
//
// Metrics are collected on a per-run registry and written once at the end
// of a run:
//
//	metrics := observability.NewMetrics("pubmed_tabulate")
//	client := eutils.NewClient(ncbi.WithObserver(metrics.ObserveRequest))
//	...
//	metrics.WriteTextfile("pubmed_tabulate.prom")
//
// # Standard Fields
//
//   - run_id: tabulation run identifier
//   - expression: PubMed search expression
//   - count: declared result count
//   - cached: whether the result came from the cache
//   - pmid: article identifier
package observability
