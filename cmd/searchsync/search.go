package main

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/syntrixbase/searchsync/internal/query"
	"github.com/syntrixbase/searchsync/internal/services"
	"github.com/syntrixbase/searchsync/pkg/model"
)

func (a *app) searchCmd() *cobra.Command {
	var (
		params  query.Params
		raw     string
		filters []string
		asJSON  bool
	)
	cmd := &cobra.Command{
		Use:   "search <table> <expression>",
		Short: "Run a search expression against a table's index",
		Example: `  searchsync search ca_objects 'ca_objects.description:chair' --sort ca_objects.idno
  searchsync search ca_objects chair --params 'page=2&sort=ca_objects.idno&direction=desc'
  searchsync search ca_objects '*' --filter 'ca_objects.is_deaccessioned==0'`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			fs, err := parseFilters(filters)
			if err != nil {
				return err
			}
			p, err := mergeParams(params, raw)
			if err != nil {
				return err
			}
			req := query.Request{Table: args[0], Expression: args[1], Filters: fs, Params: p}
			return a.withManager(cmd.Context(), services.Options{}, func(m *services.Manager) error {
				res, err := m.Searcher().Search(cmd.Context(), req)
				if err != nil {
					return err
				}
				if asJSON {
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					return enc.Encode(res)
				}
				printResult(cmd, res)
				return nil
			})
		},
	}
	f := cmd.Flags()
	f.IntVar(&params.Page, "page", 1, "page number")
	f.IntVar(&params.Limit, "limit", 0, "hits per page (0 uses the configured default)")
	f.StringVar(&params.Sort, "sort", "", "field to sort by, relevance when empty")
	f.StringVar(&params.Direction, "direction", "asc", "sort direction: asc or desc")
	f.StringVar(&params.ExportFormat, "export", "", "return every hit instead of one page")
	f.StringVar(&raw, "params", "", "request parameters as a query string, applied over the flags above")
	f.StringArrayVar(&filters, "filter", nil, "filter as <field><op><value>, e.g. ca_objects.is_deaccessioned==0")
	f.BoolVar(&asJSON, "json", false, "print the full result as JSON")
	return cmd
}

func printResult(cmd *cobra.Command, res *query.Result) {
	out := cmd.OutOrStdout()
	for _, w := range res.Warnings {
		fmt.Fprintf(out, "warning: %s\n", w)
	}
	fmt.Fprintf(out, "%d hits, page %d of %d (%s)\n", res.Total, res.Page.Page(), res.Page.Pages(), res.Took)
	for _, id := range res.IDs {
		fmt.Fprintln(out, id)
	}
}

// mergeParams applies a query string such as "page=2&sort=ca_objects.idno"
// over params.
func mergeParams(params query.Params, raw string) (query.Params, error) {
	if raw == "" {
		return params, nil
	}
	values, err := url.ParseQuery(raw)
	if err != nil {
		return query.Params{}, fmt.Errorf("%w: bad params %q: %w", model.ErrInvalidQuery, raw, err)
	}
	return params.Merge(values)
}

// filterOps is ordered so that two-character operators match first.
var filterOps = []model.FilterOp{model.OpEq, model.OpNe, model.OpGte, model.OpLte, model.OpGt, model.OpLt}

func parseFilters(args []string) (model.Filters, error) {
	var fs model.Filters
	for _, arg := range args {
		f, err := parseFilter(arg)
		if err != nil {
			return nil, err
		}
		fs = append(fs, f)
	}
	return fs, nil
}

func parseFilter(arg string) (model.Filter, error) {
	for _, op := range filterOps {
		field, value, ok := strings.Cut(arg, string(op))
		if !ok {
			continue
		}
		f := model.Filter{Field: strings.TrimSpace(field), Op: op, Value: strings.TrimSpace(value)}
		if !f.Validate() {
			break
		}
		return f, nil
	}
	return model.Filter{}, fmt.Errorf("%w: bad filter %q", model.ErrInvalidQuery, arg)
}

func (a *app) quickSearchCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "quicksearch <table> <text>",
		Short: "Print the ids of records matching text, best match first",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withManager(cmd.Context(), services.Options{}, func(m *services.Manager) error {
				ids, err := m.Searcher().QuickSearch(cmd.Context(), args[0], args[1], limit)
				if err != nil {
					return err
				}
				for _, id := range ids {
					fmt.Fprintln(cmd.OutOrStdout(), id)
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "max ids, 0 for all")
	return cmd
}
