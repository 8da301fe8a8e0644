package health

import (
	"sync"

	"github.com/diogomassis/rinha-dispatch/internal/models"
)

type entry struct {
	mutex  sync.RWMutex
	health models.ProcessorHealth
}

// HealthState holds exactly one record per processor. Only the monitor
// writes it; readers always get copies.
type HealthState struct {
	entries map[models.ProcessorType]*entry
}

func NewHealthState() *HealthState {
	s := &HealthState{entries: make(map[models.ProcessorType]*entry, len(models.Processors))}
	for _, p := range models.Processors {
		s.entries[p] = &entry{health: models.AssumeFailing()}
	}
	return s
}

func (s *HealthState) Snapshot(p models.ProcessorType) models.ProcessorHealth {
	e, ok := s.entries[p]
	if !ok {
		return models.AssumeFailing()
	}
	e.mutex.RLock()
	defer e.mutex.RUnlock()
	return e.health
}

func (s *HealthState) Snapshots() (defaultHealth, fallbackHealth models.ProcessorHealth) {
	return s.Snapshot(models.ProcessorDefault), s.Snapshot(models.ProcessorFallback)
}

func (s *HealthState) apply(p models.ProcessorType, fn func(h *models.ProcessorHealth)) models.ProcessorHealth {
	e, ok := s.entries[p]
	if !ok {
		return models.AssumeFailing()
	}
	e.mutex.Lock()
	defer e.mutex.Unlock()
	fn(&e.health)
	return e.health
}
