package workflow

import (
	"context"

	"reelcast/internal/logging"
	"reelcast/internal/stage"
	"reelcast/internal/store"
)

// StatusSummary represents lightweight workflow diagnostics.
type StatusSummary struct {
	Running     bool                    `json:"running"`
	Looping     bool                    `json:"looping"`
	LastError   string                  `json:"last_error,omitempty"`
	LastRun     *RunSummary             `json:"last_run,omitempty"`
	LastItem    *store.ContentItem      `json:"last_item,omitempty"`
	Stats       store.Stats             `json:"stats"`
	StageHealth map[string]stage.Health `json:"stage_health"`
}

// Status returns the latest workflow information.
func (m *Manager) Status(ctx context.Context) StatusSummary {
	m.mu.RLock()
	summary := StatusSummary{Running: m.running, Looping: m.looping}
	if m.lastErr != nil {
		summary.LastError = m.lastErr.Error()
	}
	if m.lastRun != nil {
		run := *m.lastRun
		summary.LastRun = &run
	}
	if m.lastItem != nil {
		item := *m.lastItem
		summary.LastItem = &item
	}
	m.mu.RUnlock()

	if m.store != nil {
		stats, err := m.store.Stats(ctx)
		if err != nil {
			m.logger.Warn("failed to read store stats", logging.Error(err))
		}
		summary.Stats = stats
	}

	stages := m.stageList()
	summary.StageHealth = make(map[string]stage.Health, len(stages))
	for _, stg := range stages {
		summary.StageHealth[string(stg.name)] = stg.handler.HealthCheck(ctx)
	}
	return summary
}

// Running reports whether a pipeline run is in progress.
func (m *Manager) Running() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

func (m *Manager) setRunning(running bool) {
	m.mu.Lock()
	m.running = running
	m.mu.Unlock()
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) setLastRun(run RunSummary) {
	m.mu.Lock()
	m.lastRun = &run
	m.mu.Unlock()
}

func (m *Manager) setLastItem(item *store.ContentItem) {
	m.mu.Lock()
	if item != nil {
		copy := *item
		m.lastItem = &copy
	} else {
		m.lastItem = nil
	}
	m.mu.Unlock()
}
