package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/syntrixbase/searchsync/internal/config"
	"github.com/syntrixbase/searchsync/internal/logging"
	"github.com/syntrixbase/searchsync/internal/services"
)

type app struct {
	configDir string
	cfg       *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:               "searchsync",
		Short:             "Search index synchronization for collection records",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.preRun,
		PersistentPostRun: func(*cobra.Command, []string) { _ = logging.Shutdown() },
	}
	root.PersistentFlags().StringVarP(&a.configDir, "config-dir", "c", "config", "`directory` holding config.yml and config.local.yml")

	root.AddCommand(
		a.reindexCmd(),
		a.listenCmd(),
		a.watchCmd(),
		a.searchCmd(),
		a.quickSearchCmd(),
		a.truncateCmd(),
		a.optimizeCmd(),
		a.checkCmd(),
		a.emitCmd(),
		versionCmd(),
	)
	return root
}

func (a *app) preRun(cmd *cobra.Command, _ []string) error {
	if cmd.Name() == "version" {
		return nil
	}
	cfg, err := config.LoadConfig(a.configDir)
	if err != nil {
		return err
	}
	a.cfg = cfg
	return logging.Initialize(cfg.Logging)
}

// withManager runs fn with an initialized manager and shuts it down after.
func (a *app) withManager(ctx context.Context, opts services.Options, fn func(*services.Manager) error) error {
	m := services.NewManager(a.cfg, opts, slog.Default())
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		m.Shutdown(shutdownCtx)
	}()
	if err := m.Init(ctx); err != nil {
		return err
	}
	return fn(m)
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of searchsync",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "searchsync version %s\n", Version)
		},
	}
}
