package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ppiankov/entityshape/internal/pipeline"
	"github.com/ppiankov/entityshape/internal/worker"
)

var (
	batchSchemas string
	concurrency  int
	outputDir    string
	batchTimeout time.Duration
	writeMD      bool
)

var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Compare many entities from a file in parallel",
	Long: `Batch compares every entity id listed in the input file (one per line,
# comments allowed, "-" reads stdin) against the same EntitySchemas and
writes one report per entity to the output directory.

Example:
  entityshape batch humans.txt --schema E10
  entityshape batch humans.txt --schema E10,E236 --concurrency 8 --output-dir ./reports --md`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().StringVarP(&batchSchemas, "schema", "s", "", "EntitySchema id(s), comma separated (required)")
	batchCmd.Flags().IntVar(&concurrency, "concurrency", 0, "number of concurrent entities (default from config)")
	batchCmd.Flags().StringVar(&outputDir, "output-dir", "./entityshape-reports", "output directory for reports")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 30*time.Minute, "total timeout for batch processing")
	batchCmd.Flags().BoolVar(&writeMD, "md", false, "also write Markdown reports")
	batchCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable cache (force fresh fetch)")
	addSharedFlags(batchCmd)
	_ = batchCmd.MarkFlagRequired("schema")
}

func runBatch(cmd *cobra.Command, args []string) error {
	file := args[0]
	schemaIDs := pipeline.SplitIDs(batchSchemas)
	if len(schemaIDs) == 0 {
		return fmt.Errorf("no schema ids in --schema %q", batchSchemas)
	}

	cfg, err := commandConfig(cmd)
	if err != nil {
		return err
	}
	if concurrency > 0 {
		cfg.Concurrency.BatchWorkers = concurrency
	}
	logger := newLogger(cfg)
	defer func() { _ = logger.Sync() }()

	ids, err := worker.ReadIDsFromFile(file)
	if err != nil {
		return fmt.Errorf("read ids: %w", err)
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Input file:   %s (%d entities)\n", file, len(ids))
	fmt.Fprintf(os.Stderr, "  Schemas:      %v\n", schemaIDs)
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", cfg.Concurrency.BatchWorkers)
	fmt.Fprintf(os.Stderr, "  Output dir:   %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "\n")

	ctx, cancel := context.WithTimeout(cmd.Context(), batchTimeout)
	defer cancel()

	p := pipeline.NewPipeline(cfg, logger)
	processor := worker.NewBatchProcessor(p, cfg.Concurrency.BatchWorkers, schemaIDs, cfg.Wikidata.Language).
		OnProgress(func(done int, r worker.Result) {
			res := r.(*worker.CompareResult)
			logger.Debug("entity compared",
				zap.String("entity", res.EntityID),
				zap.Int("done", done),
				zap.Int("total", len(ids)),
				zap.Error(res.Error))
		})

	results := processor.ProcessIDs(ctx, ids)
	renderer := p.Renderer()

	var conforming, nonConforming, failures int
	for _, res := range results {
		if res.Error != nil {
			failures++
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", res.EntityID, res.Error)
			continue
		}

		base := filepath.Join(outputDir, res.EntityID)
		if err := renderer.WriteFile(base+".json", func(w io.Writer) error { return renderer.RenderJSON(w, res.Report) }); err != nil {
			failures++
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", res.EntityID, err)
			continue
		}
		if writeMD {
			if err := renderer.WriteFile(base+".md", func(w io.Writer) error { return renderer.RenderMarkdown(w, res.Report.Schemas...) }); err != nil {
				fmt.Fprintf(os.Stderr, "✗ %s: %v\n", res.EntityID, err)
			}
		}

		if res.Conforms() {
			conforming++
			fmt.Fprintf(os.Stderr, "✓ %s\n", res.EntityID)
		} else {
			nonConforming++
			for _, r := range res.Report.Schemas {
				fmt.Fprintf(os.Stderr, "• %s\n", renderer.SummaryLine(r))
			}
		}
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Total:          %d entities\n", len(results))
	fmt.Fprintf(os.Stderr, "  Conforming:     %d\n", conforming)
	fmt.Fprintf(os.Stderr, "  Not conforming: %d\n", nonConforming)
	fmt.Fprintf(os.Stderr, "  Failures:       %d\n", failures)
	fmt.Fprintf(os.Stderr, "  Output:         %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "\n")

	if len(results) < len(ids) {
		return fmt.Errorf("batch interrupted after %d of %d entities: %w", len(results), len(ids), ctx.Err())
	}
	return nil
}
