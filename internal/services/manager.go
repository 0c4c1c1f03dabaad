// Package services wires configuration into the running pieces of
// searchsync: the search index client, the record store, the query
// searcher, the reindexer and the change event listener.
package services

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/nats-io/nats.go"

	"github.com/syntrixbase/searchsync/internal/changelog"
	"github.com/syntrixbase/searchsync/internal/config"
	"github.com/syntrixbase/searchsync/internal/fieldtype"
	"github.com/syntrixbase/searchsync/internal/mapping"
	"github.com/syntrixbase/searchsync/internal/recordstore"
	"github.com/syntrixbase/searchsync/internal/reindex"
	"github.com/syntrixbase/searchsync/internal/schema"
	"github.com/syntrixbase/searchsync/internal/searchindex"
)

// RecordStore is what the manager needs from the record store backend.
type RecordStore interface {
	recordstore.Loader
	recordstore.Scanner
	changelog.Source
	fieldtype.Vocabulary
	Close(ctx context.Context) error
}

// Options selects the components Init connects to.
type Options struct {
	// RecordStore opens the record store. Searching alone does not need it.
	RecordStore bool
	// MetricsAddr serves Prometheus metrics when not empty.
	MetricsAddr string
}

type Manager struct {
	cfg    *config.Config
	opts   Options
	logger *slog.Logger

	schema   *schema.Schema
	registry *fieldtype.Registry
	client   searchindex.Client
	mapping  *mapping.Manager
	store    RecordStore
	changes  *changelog.Builder
	progress *reindex.ProgressStore
	natsConn *nats.Conn

	servers     []*http.Server
	serverNames []string
	wg          sync.WaitGroup
}

func NewManager(cfg *config.Config, opts Options, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		cfg:    cfg,
		opts:   opts,
		logger: logger,
	}
}

func (m *Manager) Schema() *schema.Schema { return m.schema }
func (m *Manager) Registry() *fieldtype.Registry { return m.registry }
func (m *Manager) Client() searchindex.Client { return m.client }
func (m *Manager) Mapping() *mapping.Manager { return m.mapping }
func (m *Manager) Store() RecordStore { return m.store }
func (m *Manager) ChangeLog() *changelog.Builder { return m.changes }
