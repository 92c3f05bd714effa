package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/tendant/simple-blob/pkg/simpleblob"
	"github.com/tendant/simple-blob/pkg/simpleblob/config"
)

// ProviderFunc builds the initialized provider the commands run against
type ProviderFunc func(ctx context.Context, flags *Flags) (simpleblob.Provider, error)

// Flags holds the persistent flags shared by every command
type Flags struct {
	EnvPrefix    string
	Container    string
	OnMissingURL string
	FilePath     string
	Verbose      bool
}

func Execute() {
	if err := NewRootCmd(EnvProvider).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// NewRootCmd creates the simpleblob command tree. The provider is built once,
// before the first subcommand runs.
func NewRootCmd(build ProviderFunc) *cobra.Command {
	flags := &Flags{}
	var provider simpleblob.Provider

	rootCmd := &cobra.Command{
		Use:   "simpleblob",
		Short: "Manage blobs in a remote object store",
		Long: `simpleblob stores blobs named {uuid}{extension} in the container
configured through BLOB_URL (memory://, s3:// or minio://).`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" {
				return nil
			}
			p, err := build(cmd.Context(), flags)
			if err != nil {
				return err
			}
			provider = p
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&flags.EnvPrefix, "env-prefix", "", "Prefix of the environment variables to read")
	rootCmd.PersistentFlags().StringVar(&flags.Container, "container", "", "Container holding the blobs (overrides BLOB_URL)")
	rootCmd.PersistentFlags().StringVar(&flags.OnMissingURL, "on-missing-url", "", "URL policy for missing blobs: fail, empty or placeholder")
	rootCmd.PersistentFlags().StringVar(&flags.FilePath, "path", "", "Host file path reported with failures (default /{file})")
	rootCmd.PersistentFlags().BoolVarP(&flags.Verbose, "verbose", "v", false, "Log failure events to stderr")

	current := func() simpleblob.Provider { return provider }
	rootCmd.AddCommand(
		newUploadCmd(current, flags),
		newDownloadCmd(current, flags),
		newDeleteCmd(current, flags),
		newExistsCmd(current, flags),
		newURLCmd(current, flags),
		newCopyCmd(current, flags),
		newMoveCmd(current, flags),
		newPropsCmd(current, flags),
	)
	return rootCmd
}

// EnvProvider loads the configuration from the environment, applies the
// flag overrides and initializes the provider.
func EnvProvider(ctx context.Context, flags *Flags) (simpleblob.Provider, error) {
	opts := []config.Option{config.WithEnv(flags.EnvPrefix)}
	if flags.Container != "" {
		opts = append(opts, config.WithContainer(flags.Container))
	}
	if flags.OnMissingURL != "" {
		opts = append(opts, config.WithMissingURLPolicy(flags.OnMissingURL))
	}

	cfg, err := config.Load(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	sink := simpleblob.NewNoopFailureSink()
	if flags.Verbose {
		sink = simpleblob.NewSlogFailureSink(slog.New(slog.NewTextHandler(os.Stderr, nil)))
	}
	return cfg.BuildProvider(ctx, simpleblob.WithFailureSink(sink))
}
