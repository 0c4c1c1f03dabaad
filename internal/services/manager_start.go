package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/nats-io/nats.go"

	"github.com/syntrixbase/searchsync/internal/indexer"
	"github.com/syntrixbase/searchsync/internal/listener"
	"github.com/syntrixbase/searchsync/internal/puller"
	pullercfg "github.com/syntrixbase/searchsync/internal/puller/config"
	"github.com/syntrixbase/searchsync/internal/query"
	"github.com/syntrixbase/searchsync/internal/reindex"
	"github.com/syntrixbase/searchsync/internal/storage/mongo"
)

var natsConnect = func(url string) (*nats.Conn, error) {
	return nats.Connect(url, nats.Name("searchsync"), nats.MaxReconnects(-1))
}

var errNoRecordStore = errors.New("record store is not initialized")

// pullerSource opens the change stream and checkpoint store of a record store.
var pullerSource = func(store RecordStore, cfg pullercfg.Config) (puller.Source, puller.CheckpointStore, error) {
	backend, ok := store.(*mongo.Backend)
	if !ok {
		return nil, nil, fmt.Errorf("record store %T has no change stream", store)
	}
	return puller.NewMongoSource(backend.ChangeLog()),
		puller.NewMongoStore(backend.DB(), cfg.CheckpointCollection, cfg.ID), nil
}

// Start serves the configured HTTP endpoints until Shutdown.
func (m *Manager) Start() {
	for i, srv := range m.servers {
		m.wg.Add(1)
		go func(s *http.Server, name string) {
			defer m.wg.Done()
			m.logger.Info("Listening", "server", name, "addr", s.Addr)
			if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				m.logger.Error("Server stopped", "server", name, "error", err)
			}
		}(srv, m.serverNames[i])
	}
}

// Searcher returns a searcher over the configured indices.
func (m *Manager) Searcher() *query.Searcher {
	return query.NewSearcher(m.client, m.registry, m.cfg.Search.IndexPrefix, m.cfg.Query, m.logger)
}

// NewSession returns an indexing session writing through the manager's
// client. Documents carry change log metadata when the record store is open.
func (m *Manager) NewSession(opts ...indexer.Option) *indexer.Session {
	opts = append([]indexer.Option{indexer.WithLogger(m.logger)}, opts...)
	if m.changes != nil {
		opts = append(opts, indexer.WithChangeLog(m.changes))
	}
	return indexer.NewSession(m.client, m.registry, m.cfg.Search.IndexPrefix, m.cfg.Indexing, opts...)
}

// Reindexer returns a reindexer reading from the record store. Checkpoints
// are kept when a progress path is configured.
func (m *Manager) Reindexer() (*reindex.Reindexer, error) {
	if m.store == nil {
		return nil, errNoRecordStore
	}
	deps := reindex.Deps{
		Client:   m.client,
		Registry: m.registry,
		Mapping:  m.mapping,
		Scanner:  m.store,
		Indexing: m.cfg.Indexing,
		Logger:   m.logger,
	}
	if m.changes != nil {
		deps.ChangeLog = m.changes
	}
	if m.cfg.Reindex.ProgressPath != "" && m.progress == nil {
		progress, err := reindex.OpenProgressStore(m.cfg.Reindex.ProgressPath, m.cfg.Reindex.BlockCacheSize)
		if err != nil {
			return nil, err
		}
		m.progress = progress
	}
	deps.Progress = m.progress
	return reindex.New(m.cfg.Reindex, deps), nil
}

// Listen consumes change events until ctx is cancelled.
func (m *Manager) Listen(ctx context.Context) error {
	if m.store == nil {
		return errNoRecordStore
	}
	nc, err := m.connectNATS()
	if err != nil {
		return err
	}
	handler := listener.NewHandler(m.store, m.logger.With("component", "listener"))
	newSession := func() listener.Session { return m.NewSession() }
	consumer, err := listener.NewConsumer(nc, handler, newSession, m.cfg.Listener, m.logger)
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}
	return consumer.Start(ctx)
}

// Watch publishes record store changes as change events until ctx is
// cancelled.
func (m *Manager) Watch(ctx context.Context) error {
	if m.store == nil {
		return errNoRecordStore
	}
	source, checkpoints, err := pullerSource(m.store, m.cfg.Puller)
	if err != nil {
		return err
	}
	pub, err := m.Publisher(ctx)
	if err != nil {
		return err
	}
	return puller.New(source, checkpoints, pub, m.cfg.Puller, m.logger).Run(ctx)
}

// Publisher returns a publisher for change events.
func (m *Manager) Publisher(ctx context.Context) (*listener.Publisher, error) {
	nc, err := m.connectNATS()
	if err != nil {
		return nil, err
	}
	return listener.NewPublisher(ctx, nc, m.cfg.Listener)
}

func (m *Manager) connectNATS() (*nats.Conn, error) {
	if m.natsConn != nil {
		return m.natsConn, nil
	}
	nc, err := natsConnect(m.cfg.Listener.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	m.natsConn = nc
	m.logger.Info("Connected to NATS", "url", m.cfg.Listener.URL)
	return nc, nil
}
