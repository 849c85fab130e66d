package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/agentic-research/evidencegraph/internal/content"
	"github.com/agentic-research/evidencegraph/internal/graph"
	"github.com/agentic-research/evidencegraph/internal/ingest"
	"github.com/agentic-research/evidencegraph/internal/preview"
	"github.com/agentic-research/evidencegraph/internal/telemetry"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

type ingestFlags struct {
	listOnly    bool
	blindReport bool
	outputDir   string
	metricsFile string
}

func newIngestCmd(g *globalFlags) *cobra.Command {
	f := &ingestFlags{}
	c := &cobra.Command{
		Use:   "ingest [source] [output.db]",
		Short: "Ingest a report file, container or export directory into a SQLite evidence graph",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd, g, f, args[0], args[1])
		},
	}
	c.Flags().BoolVar(&f.listOnly, "list-only", false, "Only count items and bytes")
	c.Flags().BoolVar(&f.blindReport, "blind-report", false, "Export metadata as content for every record")
	c.Flags().StringVarP(&f.outputDir, "output-dir", "o", "", "Directory for preview documents (default: next to the database)")
	c.Flags().StringVar(&f.metricsFile, "metrics-file", "", "Write metrics in text exposition format to this file")
	return c
}

func runIngest(cmd *cobra.Command, g *globalFlags, f *ingestFlags, source, output string) error {
	cfg, log, err := g.load(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("list-only") {
		cfg.ListOnly = f.listOnly
	}
	if cmd.Flags().Changed("blind-report") {
		cfg.BlindReport = f.blindReport
	}
	if f.outputDir != "" {
		cfg.OutputDir = f.outputDir
	}
	if f.metricsFile != "" {
		cfg.Metrics.Enabled = true
	}
	outDir := cfg.OutputDir
	if outDir == "" {
		outDir = filepath.Dir(output)
	}
	log = log.With("run_id", uuid.NewString())

	src, err := ingest.LocateReport(source)
	if err != nil {
		return err
	}
	report, archive, err := src.Open()
	if err != nil {
		return fmt.Errorf("open report: %w", err)
	}
	defer func() { _ = report.Close() }()

	resolver := content.NewResolver(osfs.New(src.Root), archive, log)
	defer func() { _ = resolver.Close() }()

	var (
		registry *prometheus.Registry
		metrics  *telemetry.Collector
	)
	if cfg.Metrics.Enabled {
		registry = prometheus.NewRegistry()
		metrics = telemetry.NewCollector(cfg.Metrics.Namespace, registry)
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	previews := preview.New(osfs.New(outDir), resolver,
		preview.WithLogger(log),
		preview.WithMetrics(metrics),
		preview.WithMaxNameLength(cfg.MaxNameLength))

	if err := os.Remove(output); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("replace %s: %w", output, err)
	}
	writer, err := graph.NewSQLiteWriter(output, cfg.BlindReport, log)
	if err != nil {
		return err
	}

	engine := ingest.NewEngine(writer, resolver, previews, ingest.Options{
		EvidenceName:  src.Name,
		EvidenceSize:  src.Size,
		ListOnly:      cfg.ListOnly,
		PhoneParsers:  cfg.PhoneParsers,
		MaxNameLength: cfg.MaxNameLength,
		Logger:        log,
		Metrics:       metrics,
	})

	start := time.Now()
	log.Info("ingesting", "source", source, "output", output, "list_only", cfg.ListOnly)
	res, runErr := engine.Run(cmd.Context(), report)
	if err := writer.Close(); err != nil && runErr == nil {
		runErr = err
	}
	if runErr != nil {
		return runErr
	}

	if registry != nil {
		path := f.metricsFile
		if path == "" {
			path = output + ".prom"
		}
		if err := prometheus.WriteToTextfile(path, registry); err != nil {
			log.Warn("write metrics failed", "path", path, "err", err)
		}
	}

	status := "done"
	if res.Canceled {
		status = "canceled"
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s: %d items, %d merged, discovered %d items / %d bytes in %v\n",
		status, res.Emitted, res.Merged, res.DiscoveredCount, res.DiscoveredVolume,
		time.Since(start).Round(time.Millisecond))
	return err
}
