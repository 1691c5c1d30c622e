package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/entityshape/internal/api"
	"github.com/ppiankov/entityshape/internal/pipeline"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve comparisons over HTTP",
	Long: `Serve starts an HTTP server with:

  GET /api?entityschema=E10&entity=Q42&language=en
  GET /api/v2?entityschema=E10,E236&entity=Q42&language=en
  GET /healthz`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_ = viper.BindPFlag("server.addr", cmd.Flags().Lookup("addr"))
		cfg, err := commandConfig(cmd)
		if err != nil {
			return err
		}
		logger := newLogger(cfg)
		defer func() { _ = logger.Sync() }()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		p := pipeline.NewPipeline(cfg, logger)
		return api.NewServer(p, cfg.Server, pipeline.SplitIDs, logger.Named("api")).ListenAndServe(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "listen address (default from config, :8080)")
	serveCmd.Flags().String("schemas-dir", "", "directory holding {id}.json ShExJ documents")
	serveCmd.Flags().String("schema-url", "", "URL template for ShExJ documents, %s is the schema id")
}
