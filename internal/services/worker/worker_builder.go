package worker

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const defaultIdleSleep = 50 * time.Millisecond

type RinhaWorkerBuilder struct {
	numWorkers int
	queue      Queue
	jobFunc    RinhaJobFunc
	idleSleep  time.Duration
	log        zerolog.Logger
}

func NewRinhaWorkerBuilder() *RinhaWorkerBuilder {
	return &RinhaWorkerBuilder{
		idleSleep: defaultIdleSleep,
		log:       zerolog.Nop(),
	}
}

func (b *RinhaWorkerBuilder) WithNumWorkers(numWorkers int) *RinhaWorkerBuilder {
	b.numWorkers = numWorkers
	return b
}

func (b *RinhaWorkerBuilder) WithQueue(queue Queue) *RinhaWorkerBuilder {
	b.queue = queue
	return b
}

func (b *RinhaWorkerBuilder) WithJob(jobFunc RinhaJobFunc) *RinhaWorkerBuilder {
	b.jobFunc = jobFunc
	return b
}

func (b *RinhaWorkerBuilder) WithDispatcher(dispatcher Dispatcher) *RinhaWorkerBuilder {
	return b.WithJob(PaymentJob(dispatcher))
}

func (b *RinhaWorkerBuilder) WithIdleSleep(idleSleep time.Duration) *RinhaWorkerBuilder {
	b.idleSleep = idleSleep
	return b
}

func (b *RinhaWorkerBuilder) WithLogger(log zerolog.Logger) *RinhaWorkerBuilder {
	b.log = log
	return b
}

func (b *RinhaWorkerBuilder) Build() (*RinhaWorker, error) {
	if b.numWorkers <= 0 {
		return nil, errors.New("number of workers must be positive")
	}
	if b.queue == nil {
		return nil, errors.New("queue is required")
	}
	if b.jobFunc == nil {
		return nil, errors.New("job function is required")
	}
	if b.idleSleep <= 0 {
		return nil, errors.New("idle sleep must be positive")
	}

	return &RinhaWorker{
		numWorkers: b.numWorkers,
		queue:      b.queue,
		jobFunc:    b.jobFunc,
		idleSleep:  b.idleSleep,
		log:        b.log,
		waitGroup:  &sync.WaitGroup{},
	}, nil
}
