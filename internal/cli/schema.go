package cli

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/entityshape/internal/cache"
	"github.com/ppiankov/entityshape/internal/compare"
	"github.com/ppiankov/entityshape/internal/model"
	"github.com/ppiankov/entityshape/internal/shex"
	"github.com/ppiankov/entityshape/internal/util"
)

var schemaRaw bool

var schemaCmd = &cobra.Command{
	Use:   "schema <entityschema-id>",
	Short: "Show the constraints an EntitySchema imposes",
	Long: `Schema loads an EntitySchema and lists the property constraints of its
start shape as the comparison engine sees them: necessity, cardinality and
allowed values. OneOf branches and shape references are not evaluated and
are therefore not listed.

Example:
  entityshape schema E10
  entityshape schema E10 --raw > E10.json`,
	Args: cobra.ExactArgs(1),
	RunE: runSchema,
}

func init() {
	rootCmd.AddCommand(schemaCmd)

	schemaCmd.Flags().BoolVar(&schemaRaw, "raw", false, "print the ShExJ document instead of the constraint table")
	schemaCmd.Flags().String("schemas-dir", "", "directory holding {id}.json ShExJ documents")
	schemaCmd.Flags().String("schema-url", "", "URL template for ShExJ documents, %s is the schema id")
}

func runSchema(cmd *cobra.Command, args []string) error {
	cfg, err := commandConfig(cmd)
	if err != nil {
		return err
	}

	logger := newLogger(cfg)
	defer func() { _ = logger.Sync() }()

	httpClient := util.NewHTTPClient(cfg.Wikidata.Timeout, cfg.HTTP)
	store := shex.NewStore(cfg.Schemas, httpClient, cfg.Wikidata.UserAgent, cache.New(cfg.Cache), cfg.Cache.DiskTTL, logger.Named("schemas"))

	ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
	defer cancel()

	if schemaRaw {
		data, err := store.Raw(ctx, args[0])
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}

	schema, err := store.Load(ctx, args[0])
	if err != nil {
		return err
	}
	printConstraints(cmd.OutOrStdout(), args[0], schema)
	return nil
}

func printConstraints(w io.Writer, id string, schema *model.ShapeSchema) {
	flat := compare.Flatten(schema)
	fmt.Fprintf(w, "%s: %s\n\n", id, shex.Describe(schema))
	if len(flat.Constraints) == 0 {
		fmt.Fprintln(w, "no property constraints on the start shape")
		return
	}

	seen := make(map[model.PropertyID]bool)
	for _, c := range flat.Constraints {
		if c.Property == "" {
			continue
		}
		note := ""
		if seen[c.Property] {
			note = " (ignored, earlier constraint wins)"
		}
		seen[c.Property] = true
		if flat.Extra[c.Property] {
			note += " EXTRA"
		}

		fmt.Fprintf(w, "%-8s %-12s %s  %s%s\n",
			c.Property, compare.Necessity(c.Min, c.Max), cardinality(c), allowedValues(c), note)
	}
}

func cardinality(c *model.TripleConstraint) string {
	upper := "*"
	if c.MaxCount() != model.Unbounded {
		upper = fmt.Sprint(c.MaxCount())
	}
	return fmt.Sprintf("{%d,%s}", c.MinCount(), upper)
}

func allowedValues(c *model.TripleConstraint) string {
	nc, ok := c.ValueExpr.(*model.NodeConstraint)
	if !ok || !nc.HasValueSet() {
		return "any value"
	}
	values := make([]string, 0, len(nc.Values)+len(nc.Literals))
	for iri := range nc.Values {
		values = append(values, strings.TrimPrefix(string(iri), model.EntityIRIPrefix))
	}
	sort.Strings(values)
	values = append(values, nc.Literals...)
	return "[" + strings.Join(values, " ") + "]"
}
