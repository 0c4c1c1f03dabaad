package query

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/gorilla/schema"

	"github.com/syntrixbase/searchsync/internal/mapping"
	"github.com/syntrixbase/searchsync/internal/query/config"
	"github.com/syntrixbase/searchsync/pkg/model"
)

// ModeFromResults asks for every hit of a previous result set.
const ModeFromResults = "from_results"

// Params are the request parameters of a search.
type Params struct {
	Page         int    `schema:"page"`
	Start        int    `schema:"start"`
	Limit        int    `schema:"limit"`
	Sort         string `schema:"sort"`
	Direction    string `schema:"direction"`
	ExportFormat string `schema:"export_format"`
	Mode         string `schema:"mode"`
}

// DecodeParams reads search parameters from query values. Unknown keys are ignored.
func DecodeParams(values url.Values) (Params, error) {
	return Params{}.Merge(values)
}

// Merge returns p with the parameters present in values applied over it.
func (p Params) Merge(values url.Values) (Params, error) {
	decoder := schema.NewDecoder()
	decoder.IgnoreUnknownKeys(true)
	if err := decoder.Decode(&p, values); err != nil {
		return Params{}, fmt.Errorf("%w: %w", model.ErrInvalidQuery, err)
	}
	return p, nil
}

// Export reports whether the caller wants every hit instead of one page.
func (p Params) Export() bool {
	return strings.TrimSpace(p.ExportFormat) != "" || p.Mode == ModeFromResults
}

// Window returns the offset and size of the requested page. Exports start at
// zero and request the largest window the index allows.
func (p Params) Window(cfg config.Config) (from, size int) {
	if p.Export() {
		return 0, mapping.MaxResultWindow
	}
	size = p.Limit
	if size <= 0 {
		size = cfg.DefaultPageSize
	}
	if cfg.MaxPageSize > 0 && size > cfg.MaxPageSize {
		size = cfg.MaxPageSize
	}
	switch {
	case p.Start > 0:
		from = p.Start
	case p.Page > 1:
		from = size * (p.Page - 1)
	}
	return from, size
}
