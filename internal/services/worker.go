package services

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"resuchain/resume-pipeline/internal/models"
)

type Worker interface {
	Start(ctx context.Context)
	Stop()
	Enqueue(resumeID uuid.UUID) bool
}

// JobProcessor runs the processing pipeline for one record.
type JobProcessor interface {
	Process(ctx context.Context, resumeID uuid.UUID) error
}

// PendingSource lists records still waiting for processing.
type PendingSource interface {
	FindPending(ctx context.Context, limit int) ([]models.ResumeRecord, error)
}

type worker struct {
	processor    JobProcessor
	pending      PendingSource
	jobQueue     chan uuid.UUID
	concurrency  int
	jobTimeout   time.Duration
	pollInterval time.Duration

	mu       sync.Mutex
	inFlight map[uuid.UUID]struct{}
	stopped  bool

	wg       sync.WaitGroup
	stopChan chan struct{}
}

type WorkerOption func(*worker)

func WithConcurrency(n int) WorkerOption {
	return func(w *worker) {
		if n > 0 {
			w.concurrency = n
		}
	}
}

func WithQueueSize(n int) WorkerOption {
	return func(w *worker) {
		if n > 0 {
			w.jobQueue = make(chan uuid.UUID, n)
		}
	}
}

func WithJobTimeout(d time.Duration) WorkerOption {
	return func(w *worker) {
		if d > 0 {
			w.jobTimeout = d
		}
	}
}

// WithPollInterval sets how often PENDING records are re-dispatched.
// Zero disables the poller.
func WithPollInterval(d time.Duration) WorkerOption {
	return func(w *worker) {
		if d >= 0 {
			w.pollInterval = d
		}
	}
}

func NewWorker(processor JobProcessor, pending PendingSource, opts ...WorkerOption) Worker {
	w := &worker{
		processor:    processor,
		pending:      pending,
		jobQueue:     make(chan uuid.UUID, 100),
		concurrency:  3,
		jobTimeout:   3 * time.Minute,
		pollInterval: 10 * time.Second,
		inFlight:     make(map[uuid.UUID]struct{}),
		stopChan:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start implements Worker.
func (w *worker) Start(ctx context.Context) {
	log.Printf("🚀 Starting worker with %d concurrent workers\n", w.concurrency)

	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.processJobs(ctx, i+1)
	}

	if w.pending != nil && w.pollInterval > 0 {
		w.wg.Add(1)
		go w.pollPendingJobs(ctx)
	}

	log.Println("✅ Worker started successfully")
}

// Stop implements Worker. Jobs already running finish first.
func (w *worker) Stop() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	w.mu.Unlock()

	log.Println("🛑 Stopping worker...")
	close(w.stopChan)
	w.wg.Wait()
	log.Println("✅ Worker stopped")
}

// Enqueue implements Worker. It never blocks: a record that is already
// queued or running is ignored, and a full queue rejects the id so the
// poller can pick it up later.
func (w *worker) Enqueue(resumeID uuid.UUID) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		log.Printf("⚠️  Worker stopped, cannot enqueue job %s\n", resumeID)
		return false
	}
	if _, busy := w.inFlight[resumeID]; busy {
		return false
	}

	select {
	case w.jobQueue <- resumeID:
		w.inFlight[resumeID] = struct{}{}
		log.Printf("📥 Job %s enqueued\n", resumeID)
		return true
	default:
		log.Printf("⚠️  Job queue full, job %s deferred\n", resumeID)
		return false
	}
}

func (w *worker) processJobs(ctx context.Context, workerID int) {
	defer w.wg.Done()
	log.Printf("🚀 Worker %d started processing jobs\n", workerID)

	for {
		select {
		case <-w.stopChan:
			log.Printf("👷 Worker #%d stopped\n", workerID)
			return
		case <-ctx.Done():
			log.Printf("👷 Worker #%d stopped: %v\n", workerID, ctx.Err())
			return
		case resumeID := <-w.jobQueue:
			w.runJob(ctx, workerID, resumeID)
		}
	}
}

func (w *worker) runJob(ctx context.Context, workerID int, resumeID uuid.UUID) {
	defer w.release(resumeID)

	log.Printf("👷 Worker #%d processing job %s\n", workerID, resumeID)

	jobCtx, cancel := context.WithTimeout(ctx, w.jobTimeout)
	defer cancel()

	if err := w.processor.Process(jobCtx, resumeID); err != nil {
		log.Printf("❌ Worker #%d failed to process job %s: %v\n", workerID, resumeID, err)
		return
	}
	log.Printf("✅ Worker #%d completed job %s\n", workerID, resumeID)
}

func (w *worker) release(resumeID uuid.UUID) {
	w.mu.Lock()
	delete(w.inFlight, resumeID)
	w.mu.Unlock()
}

func (w *worker) pollPendingJobs(ctx context.Context) {
	defer w.wg.Done()
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	log.Println("🔄 Starting pending jobs poller")

	for {
		select {
		case <-w.stopChan:
			log.Println("🔄 Pending jobs poller stopped")
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			pendingJobs, err := w.pending.FindPending(ctx, cap(w.jobQueue))
			if err != nil {
				log.Printf("⚠️  Failed to fetch pending jobs: %v\n", err)
				continue
			}

			enqueued := 0
			for _, job := range pendingJobs {
				if w.Enqueue(job.ID) {
					enqueued++
				}
			}
			if enqueued > 0 {
				log.Printf("📋 Re-dispatched %d pending jobs\n", enqueued)
			}
		}
	}
}
