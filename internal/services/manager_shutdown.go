package services

import (
	"context"
)

// Shutdown stops the HTTP servers and closes every connection Init and the
// component constructors opened.
func (m *Manager) Shutdown(ctx context.Context) {
	for i, srv := range m.servers {
		m.logger.Info("Stopping server", "server", m.serverNames[i])
		if err := srv.Shutdown(ctx); err != nil {
			m.logger.Error("Error shutting down server", "server", m.serverNames[i], "error", err)
		}
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		m.logger.Warn("Timeout waiting for servers to stop")
	}

	if m.natsConn != nil {
		if err := m.natsConn.Drain(); err != nil {
			m.natsConn.Close()
		}
		m.natsConn = nil
	}
	if m.progress != nil {
		if err := m.progress.Close(); err != nil {
			m.logger.Error("Error closing reindex progress store", "error", err)
		}
		m.progress = nil
	}
	if m.store != nil {
		if err := m.store.Close(ctx); err != nil {
			m.logger.Error("Error closing record store", "error", err)
		}
		m.store = nil
	}
}
