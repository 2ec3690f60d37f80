// Command minutesctl inspects and operates a local loqa-minutes data directory.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/loqalabs/loqa-minutes/internal/config"
	"github.com/loqalabs/loqa-minutes/internal/recordstore"
	"github.com/loqalabs/loqa-minutes/internal/runtime"
)

var version = "0.1.0-dev"

// app holds state shared by subcommands.
type app struct {
	configPath string
	cfg        config.Config
	logger     *slog.Logger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "minutesctl",
		Short:         "Operate a local loqa-minutes installation",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = runtime.NewLogger(cfg.Telemetry, cmd.ErrOrStderr())
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "Path to configuration file")

	root.AddCommand(
		newVersionCmd(),
		newConfigCmd(a),
		newListCmd(a),
		newShowCmd(a),
		newExportCmd(a),
		newProcessCmd(a),
		newEventsCmd(a),
		newKeyringCmd(a),
		newWatchCmd(a),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Load and validate the configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// loading already validated it
			fmt.Fprintf(cmd.OutOrStdout(), "config valid (data dir %s, stt %s, summary %s)\n",
				a.cfg.Storage.DataDir, a.cfg.STT.Mode, a.cfg.Summary.Mode)
			return nil
		},
	})
	return cmd
}

// openStore opens the recording store with the keyring passphrase resolved.
func (a *app) openStore(ctx context.Context) (*recordstore.Store, error) {
	storageCfg, err := runtime.ResolveStorage(a.cfg.Storage)
	if err != nil {
		return nil, err
	}
	return recordstore.Open(ctx, storageCfg, a.logger)
}
