package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/docpipe/internal/core/domain"
	"github.com/custodia-labs/docpipe/internal/core/ports/driving"
)

var batchCmd = &cobra.Command{
	Use:   "batch [catalog[/subcatalog]]",
	Short: "Convert and chunk a whole catalog",
	Long: `Converts every unconverted document of a catalog (or one subcatalog) and
runs the selected chunkers on each. Documents are processed concurrently and
one failing document never stops the others.

Chunkers come from --chunker flags or from a YAML plan:

  catalog: research
  include: ["papers/*"]
  workers: 4
  chunkers:
    - chunker: sentence_v1
      config:
        sentences_per_chunk: 5
    - chunker: recursive_v1
      version: "1.0"

Flags given on the command line override the plan.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBatch,
}

// batchPlan is the YAML plan file format.
type batchPlan struct {
	Catalog        string                     `yaml:"catalog"`
	Include        []string                   `yaml:"include"`
	Workers        int                        `yaml:"workers"`
	ChunkerWorkers int                        `yaml:"chunker_workers"`
	Force          bool                       `yaml:"force"`
	RetryFailed    bool                       `yaml:"retry_failed"`
	Chunkers       []driving.ChunkerSelection `yaml:"chunkers"`
}

// Batch flags.
var (
	batchPlanFile       string
	batchChunkers       []string
	batchInclude        []string
	batchWorkers        int
	batchChunkerWorkers int
	batchForce          bool
	batchRetryFailed    bool
	batchMetricsFile    string
)

func init() {
	batchCmd.Flags().StringVar(&batchPlanFile, "plan", "", "YAML batch plan")
	batchCmd.Flags().StringArrayVar(&batchChunkers, "chunker", nil, "Chunker to run as name[@version] (repeatable)")
	batchCmd.Flags().StringArrayVar(&batchInclude, "include", nil, "Only documents matching subcatalog/document glob (repeatable)")
	batchCmd.Flags().IntVar(&batchWorkers, "workers", 0, "Documents processed concurrently (default from config)")
	batchCmd.Flags().IntVar(&batchChunkerWorkers, "chunker-workers", 0, "Chunkers run concurrently per document (default from config)")
	batchCmd.Flags().BoolVar(&batchForce, "force", false, "Regenerate chunked files even when unchanged")
	batchCmd.Flags().BoolVar(&batchRetryFailed, "retry-failed", false, "Retry documents whose conversion failed")
	batchCmd.Flags().StringVar(&batchMetricsFile, "metrics-file", "", "Write Prometheus metrics to this file when done")
	rootCmd.AddCommand(batchCmd)
}

func runBatch(cmd *cobra.Command, args []string) error {
	if batchService == nil {
		return errNotConfigured("batch")
	}

	plan := &batchPlan{}
	if batchPlanFile != "" {
		var err error
		if plan, err = loadBatchPlan(batchPlanFile); err != nil {
			return err
		}
	}
	if err := applyBatchFlags(cmd, plan, args); err != nil {
		return err
	}
	if plan.Catalog == "" {
		return fmt.Errorf("%w: give a catalog argument or a plan with catalog", domain.ErrInvalidInput)
	}

	opts := driving.BatchOptions{
		Workers:        plan.Workers,
		ChunkerWorkers: plan.ChunkerWorkers,
		Include:        plan.Include,
		Force:          plan.Force,
		RetryFailed:    plan.RetryFailed,
	}
	progress := isTerminal(cmd)
	if progress {
		opts.OnProgress = func(processed, total int) {
			cmd.Printf("\rProcessed %d/%d documents", processed, total)
		}
	}

	report, err := batchService.ProcessCatalog(cmd.Context(), plan.Catalog, plan.Chunkers, opts)
	if err != nil {
		return fmt.Errorf("batch failed: %w", err)
	}
	if progress && report.Total > 0 {
		cmd.Println()
	}

	printBatchReport(cmd, report)

	if batchMetricsFile != "" && pipelineMetrics != nil {
		if err := pipelineMetrics.WriteTextfile(batchMetricsFile); err != nil {
			return fmt.Errorf("failed to write metrics: %w", err)
		}
	}

	if report.Cancelled {
		return errors.New("batch cancelled")
	}
	if n := report.Failed(); n > 0 {
		return fmt.Errorf("%d of %d items failed", n, len(report.Items))
	}
	return nil
}

func loadBatchPlan(path string) (*batchPlan, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open plan: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)

	var plan batchPlan
	if err := dec.Decode(&plan); err != nil {
		return nil, fmt.Errorf("%w: plan %s: %v", domain.ErrInvalidInput, path, err)
	}
	return &plan, nil
}

// applyBatchFlags lets explicit flags and the argument override the plan.
func applyBatchFlags(cmd *cobra.Command, plan *batchPlan, args []string) error {
	if len(args) == 1 {
		plan.Catalog = args[0]
	}
	flags := cmd.Flags()
	if flags.Changed("chunker") {
		plan.Chunkers = plan.Chunkers[:0]
		for _, ref := range batchChunkers {
			name, version := parseChunkerRef(ref)
			if name == "" {
				return fmt.Errorf("%w: empty chunker in %q", domain.ErrInvalidInput, ref)
			}
			plan.Chunkers = append(plan.Chunkers, driving.ChunkerSelection{Chunker: name, Version: version})
		}
	}
	if flags.Changed("include") {
		plan.Include = batchInclude
	}
	if flags.Changed("workers") {
		plan.Workers = batchWorkers
	}
	if flags.Changed("chunker-workers") {
		plan.ChunkerWorkers = batchChunkerWorkers
	}
	if flags.Changed("force") {
		plan.Force = batchForce
	}
	if flags.Changed("retry-failed") {
		plan.RetryFailed = batchRetryFailed
	}
	if plan.Workers == 0 && appConfig != nil {
		plan.Workers = appConfig.Batch.Workers
	}
	if plan.ChunkerWorkers == 0 && appConfig != nil {
		plan.ChunkerWorkers = appConfig.Batch.ChunkerWorkers
	}
	return nil
}

func printBatchReport(cmd *cobra.Command, report *driving.BatchReport) {
	counts := map[string]int{}
	for _, it := range report.Items {
		counts[it.Status]++
		label := it.Stage
		if it.Chunker != "" {
			label = it.Chunker
			if it.Version != "" {
				label += "@" + it.Version
			}
		}
		switch it.Status {
		case driving.BatchStatusFailed:
			cmd.Printf("  %s %-24s %-18s %s\n", errorStyle.Render("failed "), it.Document, label, it.Error)
		case driving.BatchStatusSkipped:
			cmd.Printf("  %s %-24s %-18s %s\n", warningStyle.Render("skipped"), it.Document, label, mutedStyle.Render(it.Error))
		default:
			detail := ""
			if it.Stage == driving.BatchStageChunk {
				detail = fmt.Sprintf("%d chunks", it.NumChunks)
			}
			cmd.Printf("  %s %-24s %-18s %s\n", successStyle.Render("ok     "), it.Document, label, mutedStyle.Render(detail))
		}
	}

	cmd.Printf("\nBatch %s: %d/%d documents, %d ok, %d skipped, %d failed\n",
		report.Catalog, report.Processed, report.Total,
		counts[driving.BatchStatusOK], counts[driving.BatchStatusSkipped], counts[driving.BatchStatusFailed])
	if report.Cancelled {
		cmd.Println(warningStyle.Render("Cancelled before every document was processed."))
	}
}

// isTerminal reports whether command output goes to an interactive terminal.
func isTerminal(cmd *cobra.Command) bool {
	f, ok := cmd.OutOrStdout().(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
