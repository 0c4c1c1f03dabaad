package mapping

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/syntrixbase/searchsync/internal/schema"
	"github.com/syntrixbase/searchsync/internal/searchindex"
)

// Manager administers the indices of one index prefix.
type Manager struct {
	client searchindex.Client
	schema *schema.Schema
	prefix string
	logger *slog.Logger
}

// NewManager creates a manager for the indexed tables of sch.
func NewManager(client searchindex.Client, sch *schema.Schema, prefix string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		client: client,
		schema: sch,
		prefix: prefix,
		logger: logger.With("component", "mapping"),
	}
}

// Prefix returns the index name prefix.
func (m *Manager) Prefix() string {
	return m.prefix
}

// IndexName returns the index of table.
func (m *Manager) IndexName(table string) string {
	return searchindex.IndexName(m.prefix, table)
}

// Tables returns the tables that have their own index. Label tables are
// indexed into the documents of the table they label.
func (m *Manager) Tables() []string {
	var tables []string
	for _, t := range m.schema.Tables() {
		if t.IsLabel {
			continue
		}
		tables = append(tables, t.Name)
	}
	return tables
}

// Indices returns the index names of tables, or of every indexed table when
// none are given.
func (m *Manager) Indices(tables ...string) []string {
	if len(tables) == 0 {
		tables = m.Tables()
	}
	names := make([]string, 0, len(tables))
	for _, t := range tables {
		names = append(names, m.IndexName(t))
	}
	return names
}

// RefreshMapping creates missing indices. With force it also installs the
// index template and pushes settings and mappings to existing indices.
func (m *Manager) RefreshMapping(ctx context.Context, force bool) error {
	if force {
		if err := m.client.PutTemplate(ctx, m.prefix, TemplateBody(m.prefix)); err != nil {
			return fmt.Errorf("failed to put index template: %w", err)
		}
	}

	for _, table := range m.Tables() {
		name := m.IndexName(table)
		exists, err := m.client.IndexExists(ctx, name)
		if err != nil {
			return fmt.Errorf("failed to check index %s: %w", name, err)
		}
		if !exists {
			if err := m.client.CreateIndex(ctx, name, IndexBody()); err != nil {
				return fmt.Errorf("failed to create index %s: %w", name, err)
			}
			m.logger.Info("created index", "index", name)
			continue
		}
		if !force {
			continue
		}
		if err := m.client.PutSettings(ctx, name, DynamicSettings()); err != nil {
			return fmt.Errorf("failed to put settings on %s: %w", name, err)
		}
		if err := m.client.PutMapping(ctx, name, Mappings()); err != nil {
			return fmt.Errorf("failed to put mapping on %s: %w", name, err)
		}
		m.logger.Debug("refreshed mapping", "index", name)
	}
	return nil
}

// Truncate drops the indices of tables (all when none are given) and recreates
// them empty.
func (m *Manager) Truncate(ctx context.Context, tables ...string) error {
	indices := m.Indices(tables...)
	if err := m.client.DeleteIndices(ctx, indices...); err != nil {
		return fmt.Errorf("failed to delete indices: %w", err)
	}
	m.logger.Info("truncated indices", "indices", indices)
	return m.RefreshMapping(ctx, true)
}

// Optimize merges the segments of the table's index.
func (m *Manager) Optimize(ctx context.Context, table string) error {
	if err := m.client.ForceMerge(ctx, m.IndexName(table)); err != nil {
		return fmt.Errorf("failed to optimize %s: %w", m.IndexName(table), err)
	}
	return nil
}

// CheckIndexes returns the indices that do not exist yet.
func (m *Manager) CheckIndexes(ctx context.Context) ([]string, error) {
	var missing []string
	for _, name := range m.Indices() {
		ok, err := m.client.IndexExists(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("failed to check index %s: %w", name, err)
		}
		if !ok {
			missing = append(missing, name)
		}
	}
	return missing, nil
}

// Ping checks that the search index is reachable.
func (m *Manager) Ping(ctx context.Context) error {
	return m.client.Ping(ctx)
}
