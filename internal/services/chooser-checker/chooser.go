package chooserchecker

import (
	"github.com/diogomassis/rinha-dispatch/internal/models"
)

const (
	slowDefaultThreshold = 1000
	fallbackSpeedRatio   = 0.5
)

// HealthReader is satisfied by health.HealthState.
type HealthReader interface {
	Snapshots() (defaultHealth, fallbackHealth models.ProcessorHealth)
}

type ChooserService struct {
	state HealthReader
}

func New(state HealthReader) *ChooserService {
	return &ChooserService{
		state: state,
	}
}

// ChooseNextService always names a processor; when both look failing it
// still returns the one most likely to recover.
func (sc *ChooserService) ChooseNextService() models.ProcessorType {
	return Choose(sc.state.Snapshots())
}

// Choose is a pure function of the two health records.
func Choose(def, fb models.ProcessorHealth) models.ProcessorType {
	switch {
	case def.Failing && fb.Failing:
		if fb.ConsecutiveFailures < def.ConsecutiveFailures {
			return models.ProcessorFallback
		}
		return models.ProcessorDefault
	case def.Failing:
		return models.ProcessorFallback
	case fb.Failing:
		return models.ProcessorDefault
	}

	if def.MinResponseTime > slowDefaultThreshold &&
		float64(fb.MinResponseTime) < fallbackSpeedRatio*float64(def.MinResponseTime) {
		return models.ProcessorFallback
	}
	return models.ProcessorDefault
}
