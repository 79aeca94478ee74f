package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-ppewatch/internal/config"
	"github.com/teslashibe/go-ppewatch/internal/log"
	"github.com/teslashibe/go-ppewatch/pkg/detection"
	"github.com/teslashibe/go-ppewatch/pkg/identity"
	"github.com/teslashibe/go-ppewatch/pkg/vision"
)

// Version is the application version.
const Version = "1.0.0"

var (
	cfgPath      string
	debugFlag    bool
	providerFlag string

	// cfg is loaded once before any subcommand runs.
	cfg config.Config
)

var rootCmd = &cobra.Command{
	Use:           "ppewatch",
	Short:         "Safety equipment and face recognition against a cloud vision service",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(cfgPath)
		if err != nil {
			return err
		}
		if providerFlag != "" {
			loaded.Vision.Provider = providerFlag
			loaded.ApplyProvider()
		}
		if debugFlag {
			loaded.LogLevel = "debug"
			loaded.Server.Debug = true
		}

		log.Init(loaded.LogLevel)

		if errs := loaded.Validate(); len(errs) > 0 {
			return fmt.Errorf("invalid config: %s", strings.Join(errs, "; "))
		}
		cfg = loaded
		return nil
	},
}

// Execute runs the root command with a context cancelled on SIGINT or SIGTERM.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "ppewatch.json", "Path to JSON config file (missing file uses defaults)")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "Enable debug logging and request logs")
	rootCmd.PersistentFlags().StringVar(&providerFlag, "provider", "", "Vision provider: rekognition or google")
}

// newProvider connects to the configured vision provider.
func newProvider(ctx context.Context) (vision.Provider, error) {
	p, err := vision.New(ctx, cfg.Vision)
	if err != nil {
		return nil, fmt.Errorf("connect vision provider: %w", err)
	}
	log.Info("vision provider ready", "provider", p.Name(), "region", cfg.Vision.AWS.Region)
	return p, nil
}

// newAdapter wires the provider to the identity table.
func newAdapter(p vision.Provider) (*detection.Adapter, error) {
	names, err := identity.LoadFile(cfg.IdentitiesFile)
	if err != nil {
		return nil, err
	}
	log.Debug("identity table loaded", "entries", names.Len(), "file", cfg.IdentitiesFile)
	return detection.New(p, names, cfg.Detection), nil
}

// newBuckets returns a bucket prober, or nil when the provider cannot
// read from S3.
func newBuckets(ctx context.Context) *vision.Buckets {
	if cfg.Vision.Provider != vision.ProviderRekognition {
		return nil
	}
	b, err := vision.NewBuckets(ctx, cfg.Vision.AWS)
	if err != nil {
		log.Warn("bucket probe unavailable", "error", err)
		return nil
	}
	return b
}
