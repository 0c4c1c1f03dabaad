package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/syntrixbase/searchsync/internal/services"
)

func (a *app) truncateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "truncate [table...]",
		Short: "Drop and recreate indices, leaving them empty",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withManager(cmd.Context(), services.Options{}, func(m *services.Manager) error {
				if err := m.Mapping().Truncate(cmd.Context(), args...); err != nil {
					return err
				}
				for _, index := range m.Mapping().Indices(args...) {
					fmt.Fprintf(cmd.OutOrStdout(), "truncated %s\n", index)
				}
				return nil
			})
		},
	}
}

func (a *app) optimizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "optimize [table...]",
		Short: "Merge index segments",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withManager(cmd.Context(), services.Options{}, func(m *services.Manager) error {
				tables := args
				if len(tables) == 0 {
					tables = m.Mapping().Tables()
				}
				for _, table := range tables {
					if err := m.Mapping().Optimize(cmd.Context(), table); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "optimized %s\n", m.Mapping().IndexName(table))
				}
				return nil
			})
		},
	}
}

func (a *app) checkCmd() *cobra.Command {
	var create bool
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Report indices that do not exist yet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withManager(cmd.Context(), services.Options{}, func(m *services.Manager) error {
				missing, err := m.Mapping().CheckIndexes(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(missing) == 0 {
					fmt.Fprintln(out, "all indices exist")
					return nil
				}
				for _, index := range missing {
					fmt.Fprintf(out, "missing %s\n", index)
				}
				if !create {
					return nil
				}
				if err := m.Mapping().RefreshMapping(cmd.Context(), false); err != nil {
					return err
				}
				fmt.Fprintf(out, "created %d indices\n", len(missing))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&create, "create", false, "create the missing indices")
	return cmd
}
