package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"FinCast/pkg/logger"

	"github.com/google/uuid"
)

// WorkerQueue runs registered jobs on a fixed pool of goroutines fed by a
// bounded channel. Enqueue never blocks: a full queue rejects the message.
type WorkerQueue struct {
	logger *logger.Logger
	config *QueueConfig
	jobs   map[string]Job
	msgs   chan Message

	mu        sync.RWMutex
	isRunning bool
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
}

func NewWorkerQueue(lgr *logger.Logger, config *QueueConfig) *WorkerQueue {
	if lgr == nil {
		lgr = logger.NewNop()
	}
	if config == nil {
		config = &QueueConfig{}
	}
	if config.Workers <= 0 {
		config.Workers = 1
	}
	if config.QueueSize <= 0 {
		config.QueueSize = 128
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &WorkerQueue{
		logger: lgr,
		config: config,
		jobs:   make(map[string]Job),
		msgs:   make(chan Message, config.QueueSize),
		ctx:    ctx,
		cancel: cancel,
	}
}

func (q *WorkerQueue) RegisterJobs(jobs []Job) {
	for _, job := range jobs {
		q.RegisterJob(job)
	}
}

func (q *WorkerQueue) RegisterJob(job Job) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, exists := q.jobs[job.Type()]; exists {
		q.logger.Warn("job already registered", logger.String("job", job.Name()))
		return
	}
	q.jobs[job.Type()] = job
	q.logger.Debug("job registered",
		logger.String("job", job.Name()),
		logger.String("type", job.Type()))
}

func (q *WorkerQueue) Start() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.isRunning {
		return ErrAlreadyStart
	}
	if q.ctx.Err() != nil {
		return ErrNotRunning
	}
	q.isRunning = true

	for i := 0; i < q.config.Workers; i++ {
		q.wg.Add(1)
		go q.worker(i)
	}
	q.logger.Info("worker queue started",
		logger.Int("workers", q.config.Workers),
		logger.Int("capacity", q.config.QueueSize))
	return nil
}

// Stop cancels in-flight jobs and waits for workers until ctx expires.
// Messages still buffered are dropped.
func (q *WorkerQueue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if !q.isRunning {
		q.mu.Unlock()
		return nil
	}
	q.isRunning = false
	q.cancel()
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		q.logger.Warn("timeout waiting for queue workers", logger.Error(ctx.Err()))
		return fmt.Errorf("timeout: %w", ctx.Err())
	case <-done:
		q.logger.Info("worker queue stopped")
		return nil
	}
}

func (q *WorkerQueue) Enqueue(_ context.Context, msgType string, payload interface{}) error {
	return q.push(Message{
		ID:        uuid.NewString(),
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now(),
	})
}

func (q *WorkerQueue) push(msg Message) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if !q.isRunning {
		return ErrNotRunning
	}
	if _, ok := q.jobs[msg.Type]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownType, msg.Type)
	}

	select {
	case q.msgs <- msg:
		return nil
	default:
		return ErrQueueFull
	}
}

// Len reports buffered messages not yet picked up by a worker.
func (q *WorkerQueue) Len() int { return len(q.msgs) }

func (q *WorkerQueue) worker(id int) {
	defer q.wg.Done()

	for {
		select {
		case <-q.ctx.Done():
			q.logger.Debug("queue worker stopping", logger.Int("worker_id", id))
			return
		case msg := <-q.msgs:
			q.processMessage(msg)
		}
	}
}

func (q *WorkerQueue) processMessage(msg Message) {
	q.mu.RLock()
	job, ok := q.jobs[msg.Type]
	q.mu.RUnlock()
	if !ok {
		q.logger.Error("no job found", logger.String("type", msg.Type), logger.String("id", msg.ID))
		return
	}

	start := time.Now()
	err := q.handle(job, msg)
	if err == nil {
		return
	}
	if errors.Is(err, context.Canceled) {
		q.logger.Warn("message cancelled",
			logger.String("id", msg.ID),
			logger.String("job", job.Name()),
			logger.Duration("elapsed_ms", time.Since(start)))
		return
	}
	q.handleProcessingError(msg, job, err)
}

// handle turns a panicking job into an error so the worker survives.
func (q *WorkerQueue) handle(job Job, msg Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", job.Name(), r)
		}
	}()
	return job.Handle(q.ctx, msg.Payload)
}

func (q *WorkerQueue) handleProcessingError(msg Message, job Job, err error) {
	q.logger.Error("message processing error",
		logger.String("id", msg.ID),
		logger.String("job", job.Name()),
		logger.Int("attempt", msg.Attempts+1),
		logger.Error(err))

	if msg.Attempts >= q.config.RetryLimit {
		return
	}
	msg.Attempts++
	time.AfterFunc(q.config.RetryDelay, func() {
		if err := q.push(msg); err != nil {
			q.logger.Warn("retry dropped",
				logger.String("id", msg.ID),
				logger.String("job", job.Name()),
				logger.Error(err))
		}
	})
}
