package health

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/diogomassis/rinha-dispatch/internal/models"
	"github.com/diogomassis/rinha-dispatch/internal/services/processor"
)

var ErrStopTimeout = errors.New("health monitor did not stop in time")

// Mirror publishes health records for other processes. Failures are logged
// and never change the in-process record.
type Mirror interface {
	Publish(ctx context.Context, p models.ProcessorType, h models.ProcessorHealth) error
}

type MonitorConfig struct {
	Interval     time.Duration
	Stagger      time.Duration
	ProbeTimeout time.Duration
}

type RinhaMonitor struct {
	state      *HealthState
	processors []processor.PaymentProcessor
	mirror     Mirror
	cfg        MonitorConfig
	log        zerolog.Logger
	now        func() time.Time

	mutex     sync.Mutex
	cancel    context.CancelFunc
	waitGroup sync.WaitGroup
}

func NewMonitor(state *HealthState, cfg MonitorConfig, mirror Mirror, log zerolog.Logger, processors ...processor.PaymentProcessor) *RinhaMonitor {
	return &RinhaMonitor{
		state:      state,
		processors: processors,
		mirror:     mirror,
		cfg:        cfg,
		log:        log,
		now:        time.Now,
	}
}

func (m *RinhaMonitor) State() *HealthState {
	return m.state
}

// Start launches one probe loop per processor. Loop i waits i*Stagger before
// its first probe.
func (m *RinhaMonitor) Start(ctx context.Context) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.cancel != nil {
		return
	}

	ctx, m.cancel = context.WithCancel(ctx)
	m.log.Info().Dur("interval", m.cfg.Interval).Msg("starting health monitor")
	for i, p := range m.processors {
		m.waitGroup.Add(1)
		go m.run(ctx, p, time.Duration(i)*m.cfg.Stagger)
	}
}

// Stop cancels both loops and waits up to timeout for them to return.
func (m *RinhaMonitor) Stop(timeout time.Duration) error {
	m.mutex.Lock()
	cancel := m.cancel
	m.mutex.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()

	done := make(chan struct{})
	go func() {
		m.waitGroup.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.log.Info().Msg("health monitor stopped")
		return nil
	case <-time.After(timeout):
		return ErrStopTimeout
	}
}

func (m *RinhaMonitor) run(ctx context.Context, p processor.PaymentProcessor, delay time.Duration) {
	defer m.waitGroup.Done()

	if delay > 0 {
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}

	m.probe(ctx, p)
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.probe(ctx, p)
		}
	}
}

func (m *RinhaMonitor) probe(ctx context.Context, p processor.PaymentProcessor) {
	name := p.GetName()
	probeCtx, cancel := context.WithTimeout(ctx, m.cfg.ProbeTimeout)
	status, err := p.CheckHealth(probeCtx)
	cancel()

	if ctx.Err() != nil {
		return
	}
	if errors.Is(err, processor.ErrRateLimited) {
		m.log.Warn().Str("processor", name.String()).Msg("health check rate limited, keeping current status")
		return
	}

	checkedAt := m.now().UTC()
	updated := m.state.apply(name, func(h *models.ProcessorHealth) {
		h.LastCheckedAt = &checkedAt
		if err != nil {
			h.Failing = true
			h.ConsecutiveFailures++
			return
		}
		h.MinResponseTime = status.MinResponseTime
		if status.Failing {
			h.Failing = true
			h.ConsecutiveFailures++
			return
		}
		h.Failing = false
		h.ConsecutiveFailures = 0
	})

	if err != nil {
		m.log.Warn().Err(err).
			Str("processor", name.String()).
			Str("kind", processor.Classify(err)).
			Int("consecutiveFailures", updated.ConsecutiveFailures).
			Msg("health check failed, marking as failing")
	} else {
		m.log.Debug().
			Str("processor", name.String()).
			Bool("failing", updated.Failing).
			Int("minResponseTime", updated.MinResponseTime).
			Msg("health status updated")
	}

	m.publish(ctx, name, updated)
}

func (m *RinhaMonitor) publish(ctx context.Context, name models.ProcessorType, h models.ProcessorHealth) {
	if m.mirror == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, m.cfg.ProbeTimeout)
	defer cancel()
	if err := m.mirror.Publish(ctx, name, h); err != nil {
		m.log.Warn().Err(err).Str("processor", name.String()).Msg("failed to mirror health status")
	}
}
