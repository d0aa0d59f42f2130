package snapshot

import (
	"context"
	"fmt"
	"time"
)

// Flush writes every pending snapshot to the store in eviction order. On the first
// failure the unwritten snapshots go back to the head of the queue.
func (m *Manager) Flush() error {
	m.flushMu.Lock()
	defer m.flushMu.Unlock()

	batch := m.writes.Drain()
	for i, snap := range batch {
		if err := m.deps.Store.SaveSnapshot(snap); err != nil {
			m.writes.Requeue(batch[i:]...)
			m.metrics.writeFailures.Add(context.Background(), 1)
			return fmt.Errorf("failed to write snapshot for turn %d: %w", snap.Turn, err)
		}
		m.mu.Lock()
		// A newer snapshot for this turn may have been evicted meanwhile.
		if m.pending[snap.Turn] == snap {
			delete(m.pending, snap.Turn)
		}
		m.durable[snap.Turn] = struct{}{}
		m.mu.Unlock()
	}
	return nil
}

func (m *Manager) flushLoop() {
	defer m.wg.Done()
	ticker := time.NewTicker(m.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopChan:
			return
		case <-ticker.C:
			if m.writes.Empty() {
				continue
			}
			start := time.Now()
			n := m.writes.Len()
			if err := m.Flush(); err != nil {
				m.deps.LogManager.WriteLog("snapshot:flushLoop", fmt.Sprintf("Error writing snapshots: %v", err), "ERROR")
			} else {
				m.deps.LogManager.WriteLog("snapshot:flushLoop", fmt.Sprintf("Wrote %d snapshots in %s", n, time.Since(start)), "DEBUG")
			}
		}
	}
}
