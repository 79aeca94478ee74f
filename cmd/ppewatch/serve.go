package main

import (
	"github.com/spf13/cobra"

	"github.com/teslashibe/go-ppewatch/pkg/server"
)

var servePort string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the one-shot /analyze endpoint and gallery API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if servePort != "" {
			cfg.Server.Port = servePort
		}

		provider, err := newProvider(ctx)
		if err != nil {
			return err
		}
		defer provider.Close()

		adapter, err := newAdapter(provider)
		if err != nil {
			return err
		}

		var opts []server.Option
		if b := newBuckets(ctx); b != nil {
			opts = append(opts, server.WithBuckets(b, cfg.Vision.AWS.Region))
		}

		srv := server.New(cfg.Server, provider, adapter, opts...)
		return srv.Listen(ctx, ":"+cfg.Server.Port)
	},
}

func init() {
	serveCmd.Flags().StringVar(&servePort, "port", "", "HTTP port (overrides config and PORT)")
	rootCmd.AddCommand(serveCmd)
}
