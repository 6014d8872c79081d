// Package worker runs background jobs such as recomputing cached query results.
package worker

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/uuid"
)

type JobType string

const (
	JobTypeWarmQueries JobType = "warm_queries"
)

type Job struct {
	ID        string    `json:"id"`
	Type      JobType   `json:"type"`
	Attempts  int       `json:"attempts"`
	MaxTries  int       `json:"max_tries"`
	CreatedAt time.Time `json:"created_at"`
}

type JobHandler func(ctx context.Context, job *Job) error

type WorkerConfig struct {
	QueueSize  int
	MaxTries   int
	JobTimeout time.Duration
	RetryDelay time.Duration // doubled after every failed attempt
}

func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		QueueSize:  16,
		MaxTries:   3,
		JobTimeout: 30 * time.Second,
		RetryDelay: time.Second,
	}
}

// Worker executes queued jobs in process. At most one job of each type waits in
// the queue; enqueueing a type that is already waiting is a no-op.
type Worker struct {
	config   WorkerConfig
	handlers map[JobType]JobHandler
	pending  map[JobType]bool
	queue    chan *Job
	mu       sync.Mutex

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once

	processed atomic.Int64
	failed    atomic.Int64
	retried   atomic.Int64
	dropped   atomic.Int64
}

func NewWorker(config WorkerConfig) *Worker {
	defaults := DefaultWorkerConfig()
	if config.QueueSize <= 0 {
		config.QueueSize = defaults.QueueSize
	}
	if config.MaxTries <= 0 {
		config.MaxTries = defaults.MaxTries
	}
	if config.JobTimeout <= 0 {
		config.JobTimeout = defaults.JobTimeout
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = defaults.RetryDelay
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Worker{
		config:   config,
		handlers: make(map[JobType]JobHandler),
		pending:  make(map[JobType]bool),
		queue:    make(chan *Job, config.QueueSize),
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (w *Worker) RegisterHandler(jobType JobType, handler JobHandler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers[jobType] = handler
}

func (w *Worker) Start(concurrency int) {
	if concurrency <= 0 {
		concurrency = 1
	}
	log.Printf("⚙️ Starting worker with %d goroutines", concurrency)

	for i := 0; i < concurrency; i++ {
		w.wg.Add(1)
		go w.workerLoop()
	}
}

// Stop cancels running jobs and waits for every goroutine to exit. It is safe to call twice.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() {
		log.Println("⚙️ Stopping worker...")
		w.cancel()
		w.wg.Wait()
		log.Println("⚙️ Worker stopped")
	})
}

// Enqueue queues a job of jobType and reports whether a new job was added.
func (w *Worker) Enqueue(jobType JobType) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.ctx.Err() != nil || w.pending[jobType] {
		return false
	}

	job := &Job{
		ID:        newJobID(),
		Type:      jobType,
		MaxTries:  w.config.MaxTries,
		CreatedAt: time.Now(),
	}

	select {
	case w.queue <- job:
		w.pending[jobType] = true
		return true
	default:
		w.dropped.Add(1)
		log.Printf("⚠️ Job queue full, dropping %s job", jobType)
		return false
	}
}

// Schedule enqueues jobType every interval until the worker stops.
func (w *Worker) Schedule(jobType JobType, interval time.Duration) {
	if interval <= 0 {
		return
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-w.ctx.Done():
				return
			case <-ticker.C:
				w.Enqueue(jobType)
			}
		}
	}()
}

func (w *Worker) Stats() map[string]interface{} {
	return map[string]interface{}{
		"queued":    len(w.queue),
		"processed": w.processed.Load(),
		"failed":    w.failed.Load(),
		"retried":   w.retried.Load(),
		"dropped":   w.dropped.Load(),
	}
}

func (w *Worker) workerLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case job := <-w.queue:
			w.mu.Lock()
			delete(w.pending, job.Type)
			w.mu.Unlock()

			if err := w.executeJob(job); err != nil {
				log.Printf("❌ Error processing job: %v", err)
			}
		}
	}
}

func (w *Worker) executeJob(job *Job) error {
	w.mu.Lock()
	handler, exists := w.handlers[job.Type]
	w.mu.Unlock()

	if !exists {
		w.failed.Add(1)
		return fmt.Errorf("no handler registered for job type: %s", job.Type)
	}

	ctx, cancel := context.WithTimeout(w.ctx, w.config.JobTimeout)
	defer cancel()

	err := handler(ctx, job)
	if err == nil {
		w.processed.Add(1)
		return nil
	}

	job.Attempts++
	if job.Attempts < job.MaxTries && w.ctx.Err() == nil {
		log.Printf("⚠️ Job %s failed (attempt %d/%d), retrying: %v", job.ID, job.Attempts, job.MaxTries, err)
		w.retried.Add(1)
		w.retryJob(job)
		return nil
	}

	w.failed.Add(1)
	return fmt.Errorf("job %s failed permanently after %d attempts: %w", job.ID, job.Attempts, err)
}

// retryJob requeues job after a backoff unless a fresh job of the same type is
// already waiting.
func (w *Worker) retryJob(job *Job) {
	delay := w.config.RetryDelay << (job.Attempts - 1)

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()

		timer := time.NewTimer(delay)
		defer timer.Stop()

		select {
		case <-w.ctx.Done():
			return
		case <-timer.C:
		}

		w.mu.Lock()
		defer w.mu.Unlock()
		if w.pending[job.Type] {
			return
		}
		select {
		case w.queue <- job:
			w.pending[job.Type] = true
		default:
			w.dropped.Add(1)
		}
	}()
}

func newJobID() string {
	id, err := uuid.NewV4()
	if err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return id.String()
}
