package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/frahmantamala/tracker-bot/internal/telegram"
)

var (
	ErrQueueFull = errors.New("update queue full")
	ErrStopped   = errors.New("dispatcher stopped")
)

// EventHandler handles one decoded event.
type EventHandler interface {
	Handle(ctx context.Context, ev Event) error
}

type Worker struct {
	ID         int
	WorkerPool chan chan telegram.Update
	JobChannel chan telegram.Update
	Logger     *slog.Logger
}

func NewWorker(id int, workerPool chan chan telegram.Update, logger *slog.Logger) *Worker {
	return &Worker{
		ID:         id,
		WorkerPool: workerPool,
		JobChannel: make(chan telegram.Update),
		Logger:     logger,
	}
}

func (w *Worker) Start(ctx context.Context, wg *sync.WaitGroup, processFunc func(telegram.Update)) {
	wg.Add(1)
	go func() {
		defer wg.Done()

		for {
			select {
			case w.WorkerPool <- w.JobChannel:
			case <-ctx.Done():
				w.Logger.Debug("worker shutting down", "worker_id", w.ID)
				return
			}

			select {
			case u := <-w.JobChannel:
				w.Logger.Debug("worker processing update", "worker_id", w.ID, "update_id", u.UpdateID)
				processFunc(u)
			case <-ctx.Done():
				w.Logger.Debug("worker shutting down", "worker_id", w.ID)
				return
			}
		}
	}()
}

type DispatcherConfig struct {
	Workers       int
	QueueSize     int
	HandleTimeout time.Duration
}

// Dispatcher feeds updates from the webhook or the poller to a fixed pool
// of workers. It implements telegram.Sink.
type Dispatcher struct {
	handler       EventHandler
	handleTimeout time.Duration
	logger        *slog.Logger

	jobQueue   chan telegram.Update
	workerPool chan chan telegram.Update
	maxWorkers int
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	once       sync.Once
}

func NewDispatcher(handler EventHandler, cfg DispatcherConfig, logger *slog.Logger) *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())

	maxWorkers := cfg.Workers
	if maxWorkers <= 0 {
		maxWorkers = 4
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 100
	}
	timeout := cfg.HandleTimeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	return &Dispatcher{
		handler:       handler,
		handleTimeout: timeout,
		logger:        logger,
		maxWorkers:    maxWorkers,
		jobQueue:      make(chan telegram.Update, queueSize),
		workerPool:    make(chan chan telegram.Update, maxWorkers),
		ctx:           ctx,
		cancel:        cancel,
	}
}

func (d *Dispatcher) Start() {
	d.once.Do(func() {
		for i := 0; i < d.maxWorkers; i++ {
			worker := NewWorker(i, d.workerPool, d.logger)
			worker.Start(d.ctx, &d.wg, d.process)
		}

		d.wg.Add(1)
		go d.dispatch()

		d.logger.Info("bot dispatcher started",
			"max_workers", d.maxWorkers,
			"queue_size", cap(d.jobQueue))
	})
}

func (d *Dispatcher) dispatch() {
	defer d.wg.Done()

	for {
		select {
		case u := <-d.jobQueue:
			select {
			case jobChannel := <-d.workerPool:
				select {
				case jobChannel <- u:
				case <-d.ctx.Done():
					d.logger.Info("dispatcher shutting down")
					return
				}
			case <-d.ctx.Done():
				d.logger.Info("dispatcher shutting down")
				return
			}
		case <-d.ctx.Done():
			d.logger.Info("dispatcher shutting down")
			return
		}
	}
}

// Enqueue never blocks; a full queue is reported to the caller.
func (d *Dispatcher) Enqueue(u telegram.Update) error {
	if d.ctx.Err() != nil {
		return ErrStopped
	}
	select {
	case d.jobQueue <- u:
		return nil
	default:
		d.logger.Warn("update queue full, dropping update",
			"update_id", u.UpdateID,
			"queue_capacity", cap(d.jobQueue))
		return ErrQueueFull
	}
}

// Shutdown stops the workers after their current update. Queued updates
// are dropped.
func (d *Dispatcher) Shutdown() {
	d.logger.Info("shutting down bot dispatcher")
	d.cancel()
	d.wg.Wait()
	d.logger.Info("bot dispatcher shutdown complete", "dropped_updates", len(d.jobQueue))
}

func (d *Dispatcher) process(u telegram.Update) {
	defer func() {
		if rec := recover(); rec != nil {
			d.logger.Error("panic while handling update", "update_id", u.UpdateID, "panic", fmt.Sprint(rec))
		}
	}()

	ev, ok := Decode(u)
	if !ok {
		d.logger.Debug("ignoring update", "update_id", u.UpdateID)
		return
	}

	ctx, cancel := context.WithTimeout(d.ctx, d.handleTimeout)
	defer cancel()

	start := time.Now()
	if err := d.handler.Handle(ctx, ev); err != nil {
		d.logger.Warn("update handled with error", "update_id", u.UpdateID, "duration_ms", time.Since(start).Milliseconds(), "error", err)
		return
	}
	d.logger.Debug("update handled", "update_id", u.UpdateID, "duration_ms", time.Since(start).Milliseconds())
}
