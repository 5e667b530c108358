package quoting

import (
	"context"

	"go.uber.org/zap"

	"goflare.io/quoting/models"
)

type Worker struct {
	ID         int
	WorkerPool chan chan WorkRequest
	JobChannel chan WorkRequest
	quit       chan bool
	dispatcher *Dispatcher
}

type WorkRequest struct {
	Event *models.Event
	Ctx   context.Context
}

func NewWorker(id int, workerPool chan chan WorkRequest, dispatcher *Dispatcher) Worker {
	return Worker{
		ID:         id,
		WorkerPool: workerPool,
		JobChannel: make(chan WorkRequest),
		quit:       make(chan bool),
		dispatcher: dispatcher,
	}
}

func (w Worker) Start() {
	go func() {
		for {
			select {
			case w.WorkerPool <- w.JobChannel:
			case <-w.quit:
				return
			}

			select {
			case job := <-w.JobChannel:
				w.dispatcher.deliver(job)
			case <-w.quit:
				return
			}
		}
	}()
}

func (w Worker) Stop() {
	close(w.quit)
}

// deliver publishes one outbox event and records the outcome. A failed row
// stays pending and is picked up again by a later poll.
func (d *Dispatcher) deliver(job WorkRequest) {
	defer d.release(job.Event)

	event := job.Event
	if err := d.publisher.PublishEvent(job.Ctx, event); err != nil {
		d.logger.Warn("Failed to publish outbox event",
			zap.Error(err),
			zap.String("event_type", string(event.Type)),
			zap.String("event_id", event.ID.String()))

		if markErr := d.outbox.MarkFailed(context.WithoutCancel(job.Ctx), event.ID.String(), err.Error()); markErr != nil {
			d.logger.Error("Failed to record outbox failure", zap.Error(markErr), zap.String("event_id", event.ID.String()))
		}
		return
	}

	if err := d.outbox.MarkDelivered(context.WithoutCancel(job.Ctx), event.ID.String()); err != nil {
		d.logger.Error("Failed to mark outbox event delivered", zap.Error(err), zap.String("event_id", event.ID.String()))
		return
	}

	d.logger.Debug("Outbox event delivered",
		zap.String("event_type", string(event.Type)),
		zap.String("event_id", event.ID.String()))
}
