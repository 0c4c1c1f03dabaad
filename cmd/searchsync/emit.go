package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/syntrixbase/searchsync/internal/listener"
	"github.com/syntrixbase/searchsync/internal/recordstore"
	"github.com/syntrixbase/searchsync/internal/services"
	"github.com/syntrixbase/searchsync/pkg/model"
)

func (a *app) emitCmd() *cobra.Command {
	var (
		ev    listener.Event
		attr  recordstore.Attribute
		value string
	)
	cmd := &cobra.Command{
		Use:   "emit <save|delete|remove_field|attribute> <table> <row-id> | <table/row-id>",
		Short: "Publish a record change event",
		Long: "Publishes one change event to the stream the listener consumes.\n" +
			"Record store integrations publish these events; emit is for testing\n" +
			"and for requeueing single records by hand.",
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			row, err := parseRow(args[1:])
			if err != nil {
				return err
			}
			ev.Kind = listener.Kind(args[0])
			ev.Table = row.Table
			ev.RowID = row.ID
			if ev.Kind == listener.KindAttribute {
				attr.Value = value
				ev.Attribute = &attr
			}
			if err := ev.Validate(); err != nil {
				return err
			}

			m := services.NewManager(a.cfg, services.Options{}, nil)
			defer m.Shutdown(cmd.Context())
			pub, err := m.Publisher(cmd.Context())
			if err != nil {
				return err
			}
			if err := pub.Publish(cmd.Context(), &ev); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "published %s to %s\n", ev.Kind, ev.Subject(a.cfg.Listener.Subject))
			return nil
		},
	}
	f := cmd.Flags()
	f.StringSliceVar(&ev.Fields, "field", nil, "fields to remove (remove_field)")
	f.StringVar(&ev.FieldTable, "field-table", "", "table the removed fields belong to (remove_field)")
	f.Int64Var(&ev.ContentRowID, "content-row-id", 0, "content row that produced the values (remove_field)")
	f.StringVar(&attr.Field, "element", "", "element code or field name (attribute)")
	f.Int64Var(&attr.ID, "value-id", 0, "id of the value row (attribute)")
	f.StringVar(&value, "value", "", "value to index (attribute)")
	return cmd
}

// parseRow accepts either "<table> <row-id>" or "<table/row-id>".
func parseRow(args []string) (model.RowKey, error) {
	if len(args) == 1 {
		return model.ParseRowKey(args[0])
	}
	id, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return model.RowKey{}, fmt.Errorf("bad row id %q: %w", args[1], err)
	}
	return model.RowKey{Table: args[0], ID: id}, nil
}
