package quoting

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"goflare.io/quoting/models"
	"goflare.io/quoting/outbox"
)

const (
	minTickerInterval = 200 * time.Millisecond
	maxTickerInterval = 5 * time.Second
	handoffTimeout    = time.Second
)

// Publisher hands an event to the bus.
type Publisher interface {
	PublishEvent(ctx context.Context, event *models.Event) error
}

// Dispatcher is the outbox relay. It polls undelivered events and fans them
// out to a pool of workers that publish and mark them delivered.
type Dispatcher struct {
	WorkerPool chan chan WorkRequest
	maxWorkers int
	batchSize  int
	jobQueue   chan WorkRequest
	outbox     outbox.Service
	publisher  Publisher
	logger     *zap.Logger
	workers    []Worker
	inFlight   map[uuid.UUID]struct{}
	ctx        context.Context
	cancel     context.CancelFunc
	stop       chan bool
	done       chan struct{}
	stopOnce   sync.Once
	running    bool
	mu         sync.Mutex
	flightMu   sync.Mutex
}

func NewDispatcher(maxWorkers, jobQueueSize, batchSize int, ob outbox.Service, publisher Publisher, logger *zap.Logger) *Dispatcher {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	if batchSize < 1 {
		batchSize = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		WorkerPool: make(chan chan WorkRequest, maxWorkers),
		maxWorkers: maxWorkers,
		batchSize:  batchSize,
		jobQueue:   make(chan WorkRequest, jobQueueSize),
		outbox:     ob,
		publisher:  publisher,
		logger:     logger,
		inFlight:   make(map[uuid.UUID]struct{}),
		ctx:        ctx,
		cancel:     cancel,
		stop:       make(chan bool),
		done:       make(chan struct{}),
	}
}

func (d *Dispatcher) Run() {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return
	}
	d.running = true
	for i := 0; i < d.maxWorkers; i++ {
		worker := NewWorker(i+1, d.WorkerPool, d)
		worker.Start()
		d.workers = append(d.workers, worker)
	}
	d.mu.Unlock()

	go d.dispatch()
}

func (d *Dispatcher) dispatch() {
	defer close(d.done)

	tickerInterval := minTickerInterval
	ticker := time.NewTicker(tickerInterval)
	defer ticker.Stop()
	var wg sync.WaitGroup

	for {
		select {
		case job := <-d.jobQueue:
			wg.Add(1)
			go func(job WorkRequest) {
				defer wg.Done()
				select {
				case jobChannel := <-d.WorkerPool:
					select {
					case jobChannel <- job:
						// 已交給 worker
					case <-time.After(handoffTimeout):
						// The worker was stopped after registering; retry on the next poll.
						d.release(job.Event)
					case <-job.Ctx.Done():
						d.release(job.Event)
					}
				case <-job.Ctx.Done():
					d.release(job.Event)
					d.logger.Warn("Relay stopped while waiting for available worker",
						zap.String("event_type", string(job.Event.Type)),
						zap.String("event_id", job.Event.ID.String()))
				}
			}(job)

		case <-ticker.C:
			fetched := d.poll(d.ctx)
			d.adjustWorkerPool()

			// Poll fast while the outbox is backed up, back off when idle.
			switch {
			case fetched >= d.batchSize:
				tickerInterval = minTickerInterval
			case fetched > 0:
				tickerInterval = time.Second
			default:
				tickerInterval = min(tickerInterval*2, maxTickerInterval)
			}
			ticker.Reset(tickerInterval)

		case <-d.stop:
			wg.Wait()
			return
		}
	}
}

// poll queues the next batch of pending events and returns how many were
// new. Events still being delivered are skipped.
func (d *Dispatcher) poll(ctx context.Context) int {
	events, err := d.outbox.FetchPending(ctx, d.batchSize)
	if err != nil {
		d.logger.Warn("Failed to fetch pending outbox events", zap.Error(err))
		return 0
	}

	queued := 0
	for _, event := range events {
		if !d.claim(event) {
			continue
		}
		select {
		case d.jobQueue <- WorkRequest{Event: event, Ctx: ctx}:
			queued++
		default:
			// Queue is full; the event stays pending for the next poll.
			d.release(event)
		}
	}
	return queued
}

func (d *Dispatcher) claim(event *models.Event) bool {
	d.flightMu.Lock()
	defer d.flightMu.Unlock()
	if _, busy := d.inFlight[event.ID]; busy {
		return false
	}
	d.inFlight[event.ID] = struct{}{}
	return true
}

func (d *Dispatcher) release(event *models.Event) {
	d.flightMu.Lock()
	defer d.flightMu.Unlock()
	delete(d.inFlight, event.ID)
}

func (d *Dispatcher) adjustWorkerPool() {
	d.mu.Lock()
	defer d.mu.Unlock()

	queued := len(d.jobQueue)
	currentWorkerCount := len(d.workers)

	if queued > currentWorkerCount && currentWorkerCount < d.maxWorkers {
		newWorker := NewWorker(currentWorkerCount+1, d.WorkerPool, d)
		newWorker.Start()
		d.workers = append(d.workers, newWorker)
		d.logger.Info("Added new worker", zap.Int("worker_id", newWorker.ID))
	}

	if queued == 0 && currentWorkerCount > 1 {
		worker := d.workers[len(d.workers)-1]
		worker.Stop()
		d.workers = d.workers[:len(d.workers)-1]
		d.logger.Info("Removed worker", zap.Int("worker_id", worker.ID))
	}

	d.cleanupStoppedWorkers()

	if queued > 0 && len(d.workers) == 0 {
		newWorker := NewWorker(1, d.WorkerPool, d)
		newWorker.Start()
		d.workers = append(d.workers, newWorker)
		d.logger.Info("Added a new worker because job queue is not empty but no workers are available")
	}
}

func (d *Dispatcher) cleanupStoppedWorkers() {
	var activeWorkers []Worker
	for _, worker := range d.workers {
		select {
		case <-worker.quit:
			d.logger.Info("Cleaned up stopped worker", zap.Int("worker_id", worker.ID))
		default:
			activeWorkers = append(activeWorkers, worker)
		}
	}
	d.workers = activeWorkers
}

// Stop cancels pending hand-offs and stops every worker. It is safe to call
// more than once.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		d.cancel()
		close(d.stop)

		d.mu.Lock()
		running := d.running
		d.mu.Unlock()
		if running {
			<-d.done
		}

		var wg sync.WaitGroup

		d.mu.Lock()
		for _, worker := range d.workers {
			wg.Add(1)
			go func(w Worker) {
				defer wg.Done()
				w.Stop()
			}(worker)
		}
		d.workers = nil
		d.mu.Unlock()

		wg.Wait()
	})
}
