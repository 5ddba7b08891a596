// File: cmd/serve.go
package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/exam-autofill/internal/mcp"
	"github.com/xkilldash9x/exam-autofill/internal/observability"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve exam actions over HTTP until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()
			cfg, err := configFromContext(ctx)
			if err != nil {
				return err
			}

			comps, err := initializeComponents(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer comps.Shutdown(logger)

			logger.Info("Serving exam actions",
				zap.String("listen_addr", cfg.Server.ListenAddr),
				zap.String("browser_mode", cfg.Browser.Mode),
				zap.Int64("id_threshold", cfg.Exam.IDThreshold),
			)
			server := mcp.NewServer(logger, cfg, comps.registry, comps.metrics)
			return server.Run(ctx)
		},
	}
	cmd.Flags().String("listen", "", "address for the action server (overrides server.listen_addr)")
	return cmd
}
