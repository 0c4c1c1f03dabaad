package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/syntrixbase/searchsync/internal/reindex"
	"github.com/syntrixbase/searchsync/internal/services"
)

func (a *app) reindexCmd() *cobra.Command {
	var opts reindex.Options
	cmd := &cobra.Command{
		Use:   "reindex [table...]",
		Short: "Rebuild the search indices from the record store",
		Long: "Reads every record of the given tables (all indexed tables when none\n" +
			"are given) from the record store and writes their documents.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()
			opts.Tables = args
			return a.withManager(ctx, services.Options{RecordStore: true}, func(m *services.Manager) error {
				r, err := m.Reindexer()
				if err != nil {
					return err
				}
				jobs, runErr := r.Run(ctx, opts)
				printJobs(cmd, jobs)
				return runErr
			})
		},
	}
	cmd.Flags().BoolVar(&opts.Truncate, "truncate", false, "drop and recreate the indices first")
	cmd.Flags().BoolVar(&opts.Resume, "resume", false, "continue from the last checkpoints")
	return cmd
}

func printJobs(cmd *cobra.Command, jobs []reindex.JobProgress) {
	out := cmd.OutOrStdout()
	for _, job := range jobs {
		line := fmt.Sprintf("%-24s %-10s %8d rows", job.Table, job.Status, job.RowsIndexed)
		if job.Failures > 0 {
			line += fmt.Sprintf(" %d failed", job.Failures)
		}
		if !job.EndTime.IsZero() {
			line += fmt.Sprintf(" in %s", job.EndTime.Sub(job.StartTime).Round(time.Millisecond))
		}
		if job.Error != "" {
			line += " error: " + job.Error
		}
		fmt.Fprintln(out, strings.TrimRight(line, " "))
	}
}

func (a *app) listenCmd() *cobra.Command {
	var metricsAddr string
	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Apply record change events from NATS as they arrive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()
			return a.withManager(ctx, services.Options{RecordStore: true, MetricsAddr: metricsAddr}, func(m *services.Manager) error {
				m.Start()
				return m.Listen(ctx)
			})
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", ":2112", "address to serve Prometheus metrics on, empty to disable")
	return cmd
}

func (a *app) watchCmd() *cobra.Command {
	var metricsAddr string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Publish change events for new record store change log entries",
		Long: `Watch tails the record store change log through a MongoDB change stream
and publishes a save or delete event to NATS for every new entry. The stream
position is checkpointed so a restarted watcher resumes where it stopped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()
			return a.withManager(ctx, services.Options{RecordStore: true, MetricsAddr: metricsAddr}, func(m *services.Manager) error {
				m.Start()
				return m.Watch(ctx)
			})
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", ":2113", "address to serve Prometheus metrics on, empty to disable")
	return cmd
}
