package workflow

import "reelcast/internal/store"

// ConfigureStages registers the concrete stage handlers in pipeline order.
// Nil handlers are skipped.
func (m *Manager) ConfigureStages(set StageSet) {
	ordered := []pipelineStage{
		{name: store.StageNarrative, handler: set.Narrative},
		{name: store.StageSynthesis, handler: set.Synthesis},
		{name: store.StageRender, handler: set.Render},
		{name: store.StageMetadata, handler: set.Metadata},
	}
	stages := make([]pipelineStage, 0, len(ordered))
	for _, stg := range ordered {
		if stg.handler != nil {
			stages = append(stages, stg)
		}
	}

	m.mu.Lock()
	m.stages = stages
	m.mu.Unlock()
}

func (m *Manager) stageList() []pipelineStage {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]pipelineStage(nil), m.stages...)
}
