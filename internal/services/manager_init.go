package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/syntrixbase/searchsync/internal/changelog"
	"github.com/syntrixbase/searchsync/internal/fieldtype"
	"github.com/syntrixbase/searchsync/internal/logging"
	"github.com/syntrixbase/searchsync/internal/mapping"
	"github.com/syntrixbase/searchsync/internal/schema"
	"github.com/syntrixbase/searchsync/internal/searchindex"
	search "github.com/syntrixbase/searchsync/internal/searchindex/config"
	"github.com/syntrixbase/searchsync/internal/searchindex/elastic"
	"github.com/syntrixbase/searchsync/internal/searchindex/mem_store"
	storage "github.com/syntrixbase/searchsync/internal/storage/config"
	"github.com/syntrixbase/searchsync/internal/storage/mongo"
)

var clientFactory = func(cfg search.Config, logger *slog.Logger) (searchindex.Client, error) {
	if cfg.Backend == search.BackendMemory {
		return mem_store.New(), nil
	}
	client, err := elastic.New(elastic.Config{
		Addresses:      []string{cfg.BaseURL},
		Username:       cfg.Username,
		Password:       cfg.Password,
		MaxRetries:     cfg.MaxRetries,
		RequestTimeout: cfg.RequestTimeout,
	}, logging.WithMinLevel(logger, cfg.LogLevel))
	if err != nil {
		return nil, err
	}
	return client, nil
}

var storageFactory = func(ctx context.Context, cfg storage.Config) (RecordStore, error) {
	backend, err := mongo.NewBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return backend, nil
}

var loadSchema = schema.LoadFromFile

// Init loads the data model and connects to the search index, plus the
// record store when Options.RecordStore is set.
func (m *Manager) Init(ctx context.Context) error {
	sch, err := loadSchema(m.cfg.Schema.Path)
	if err != nil {
		return fmt.Errorf("failed to load data model: %w", err)
	}
	m.schema = sch

	env := &fieldtype.Env{Schema: sch, Logger: m.logger.With("component", "fieldtype")}
	if m.opts.RecordStore {
		if err := m.initRecordStore(ctx); err != nil {
			return err
		}
		env.Vocabulary = m.store
	}
	m.registry = fieldtype.NewRegistry(env)
	if m.store != nil {
		m.changes = changelog.NewBuilder(m.store, m.registry)
	}

	if err := m.initSearchIndex(ctx); err != nil {
		return err
	}

	if m.opts.MetricsAddr != "" {
		m.initMetricsServer()
	}
	return nil
}

func (m *Manager) initRecordStore(ctx context.Context) error {
	store, err := storageFactory(ctx, m.cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to connect to record store: %w", err)
	}
	m.store = store
	m.logger.Info("Connected to record store", "database", m.cfg.Storage.Database)
	return nil
}

func (m *Manager) initSearchIndex(ctx context.Context) error {
	client, err := clientFactory(m.cfg.Search, m.logger.With("component", "searchindex"))
	if err != nil {
		return fmt.Errorf("failed to create search index client: %w", err)
	}
	m.client = client
	m.mapping = mapping.NewManager(client, m.schema, m.cfg.Search.IndexPrefix, m.logger)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := m.mapping.Ping(pingCtx); err != nil {
		return fmt.Errorf("search index is not reachable: %w", err)
	}
	m.logger.Info("Connected to search index", "backend", m.cfg.Search.Backend, "prefix", m.cfg.Search.IndexPrefix)
	return nil
}

func (m *Manager) initMetricsServer() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	m.servers = append(m.servers, &http.Server{
		Addr:              m.opts.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	})
	m.serverNames = append(m.serverNames, "Metrics Server")
}
