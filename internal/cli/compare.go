package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/entityshape/internal/model"
	"github.com/ppiankov/entityshape/internal/pipeline"
	"github.com/ppiankov/entityshape/internal/worker"
)

var (
	schemaList     string
	outJSON        string
	outMD          string
	compareTimeout time.Duration
	noCache        bool
	strict         bool
)

var errNotConforming = errors.New("entity does not conform")

var compareCmd = &cobra.Command{
	Use:   "compare <entity-id>",
	Short: "Compare one entity against one or more EntitySchemas",
	Long: `Compare fetches the entity and the schemas, then reports for every
property whether it is required, optional or forbidden and whether its
statements match, plus a verdict for every statement.

Without --json or --md the JSON report is written to stdout.

Example:
  entityshape compare Q42 --schema E10
  entityshape compare Q42 --schema E10,E236 --language de --md report.md
  entityshape compare Q42 --schema E10 --schemas-dir ./schemas --strict`,
	Args: cobra.ExactArgs(1),
	RunE: runCompare,
}

func init() {
	rootCmd.AddCommand(compareCmd)

	compareCmd.Flags().StringVarP(&schemaList, "schema", "s", "", "EntitySchema id(s), comma separated (required)")
	compareCmd.Flags().StringVar(&outJSON, "json", "", `output JSON path ("-" for stdout)`)
	compareCmd.Flags().StringVar(&outMD, "md", "", `output Markdown path ("-" for stdout)`)
	compareCmd.Flags().DurationVar(&compareTimeout, "timeout", 2*time.Minute, "overall timeout")
	compareCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable cache (force fresh fetch)")
	compareCmd.Flags().BoolVar(&strict, "strict", false, "exit non-zero when the entity does not conform")
	addSharedFlags(compareCmd)
	_ = compareCmd.MarkFlagRequired("schema")
}

// addSharedFlags registers the config-backed flags of compare and batch
func addSharedFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("language", "l", "", "label language (default from config, en)")
	cmd.Flags().Bool("omit-not-in-schema", false, "leave out properties the schema does not mention")
	cmd.Flags().String("schemas-dir", "", "directory holding {id}.json ShExJ documents")
	cmd.Flags().String("schema-url", "", "URL template for ShExJ documents, %s is the schema id")
	cmd.Flags().String("http-proxy", "", "HTTP proxy URL (overrides HTTP_PROXY env var)")
	cmd.Flags().String("https-proxy", "", "HTTPS proxy URL (overrides HTTPS_PROXY env var)")
}

// bindSharedFlags binds the shared flags of the running command to viper keys
func bindSharedFlags(cmd *cobra.Command) {
	bindings := map[string]string{
		"language":           "wikidata.language",
		"omit-not-in-schema": "output.omit_not_in_schema",
		"schemas-dir":        "schemas.dir",
		"schema-url":         "schemas.url_template",
		"http-proxy":         "http.http_proxy",
		"https-proxy":        "http.https_proxy",
	}
	for flag, key := range bindings {
		if f := cmd.Flags().Lookup(flag); f != nil {
			_ = viper.BindPFlag(key, f)
		}
	}
}

func commandConfig(cmd *cobra.Command) (*model.Config, error) {
	bindSharedFlags(cmd)
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if noCache {
		cfg.Cache.Enabled = false
	}
	applyCacheDir(cfg)
	return cfg, nil
}

func runCompare(cmd *cobra.Command, args []string) error {
	entityID := worker.NormalizeEntityID(args[0])
	schemaIDs := pipeline.SplitIDs(schemaList)
	if len(schemaIDs) == 0 {
		return fmt.Errorf("no schema ids in --schema %q", schemaList)
	}

	cfg, err := commandConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithTimeout(cmd.Context(), compareTimeout)
	defer cancel()

	if verbose {
		fmt.Fprintf(os.Stderr, "Comparing %s against %v\n", entityID, schemaIDs)
		fmt.Fprintf(os.Stderr, "Wikibase: %s (cache: %v)\n\n", cfg.Wikidata.BaseURL, cfg.Cache.Enabled)
	}

	p := pipeline.NewPipeline(cfg, logger)

	var (
		reports []*model.Report
		payload any
	)
	if len(schemaIDs) == 1 {
		report, err := p.Compare(ctx, schemaIDs[0], entityID, cfg.Wikidata.Language)
		if err != nil {
			return fmt.Errorf("compare failed: %w", err)
		}
		reports, payload = []*model.Report{report}, report
	} else {
		multi, err := p.CompareMany(ctx, schemaIDs, entityID, cfg.Wikidata.Language)
		if err != nil {
			return fmt.Errorf("compare failed: %w", err)
		}
		reports, payload = multi.Schemas, multi
	}

	if err := writeOutputs(p.Renderer(), payload, reports, outJSON, outMD); err != nil {
		return err
	}

	conforms := true
	for _, r := range reports {
		fmt.Fprintln(os.Stderr, p.Renderer().SummaryLine(r))
		if r.Error != "" || !r.Summary.Conforms {
			conforms = false
		}
	}
	if strict && !conforms {
		return errNotConforming
	}
	return nil
}

func writeOutputs(r *pipeline.Renderer, payload any, reports []*model.Report, jsonPath, mdPath string) error {
	if jsonPath == "" && mdPath == "" {
		jsonPath = "-"
	}
	if jsonPath != "" {
		if err := r.WriteFile(jsonPath, func(w io.Writer) error { return r.RenderJSON(w, payload) }); err != nil {
			return fmt.Errorf("render JSON: %w", err)
		}
		if verbose && jsonPath != "-" {
			fmt.Fprintf(os.Stderr, "✓ Wrote JSON: %s\n", jsonPath)
		}
	}
	if mdPath != "" {
		if err := r.WriteFile(mdPath, func(w io.Writer) error { return r.RenderMarkdown(w, reports...) }); err != nil {
			return fmt.Errorf("render markdown: %w", err)
		}
		if verbose && mdPath != "-" {
			fmt.Fprintf(os.Stderr, "✓ Wrote Markdown: %s\n", mdPath)
		}
	}
	return nil
}
