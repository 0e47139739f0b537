package diagnosis

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"stealthcompany.com/symptomcheck/internal/metrics"
	"stealthcompany.com/symptomcheck/internal/store"
)

// BatchSink accepts resolved batches for persistence after the response is written.
type BatchSink interface {
	Submit(b Batch)
}

// PersisterConfig sizes the background worker pool
type PersisterConfig struct {
	Workers    int
	QueueSize  int
	JobTimeout time.Duration
}

type persistJob struct {
	id       string
	batch    Batch
	enqueued time.Time
}

// Persister commits batches on a fixed pool of workers. Failures are logged and
// counted, never returned to the caller.
type Persister struct {
	store store.Store
	cfg   PersisterConfig

	queue chan persistJob
	wg    sync.WaitGroup

	mu     sync.RWMutex
	closed bool

	ctx    context.Context
	cancel context.CancelFunc
}

// NewPersister creates a persister; call Start before submitting.
func NewPersister(st store.Store, cfg PersisterConfig) *Persister {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 30 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Persister{
		store:  st,
		cfg:    cfg,
		queue:  make(chan persistJob, cfg.QueueSize),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start launches the workers
func (p *Persister) Start() {
	for i := 0; i < p.cfg.Workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	log.Info().Int("workers", p.cfg.Workers).Int("queueSize", p.cfg.QueueSize).Msg("Persister started")
}

// Submit enqueues b without blocking. A full queue or a stopped persister drops the batch.
func (p *Persister) Submit(b Batch) {
	if b.Empty() {
		return
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	job := persistJob{id: uuid.NewString(), batch: b, enqueued: time.Now()}
	if p.closed {
		log.Warn().Str("jobID", job.id).Msg("Persister stopped, dropping batch")
		metrics.RecordPersistJob("dropped", time.Time{})
		return
	}

	select {
	case p.queue <- job:
		metrics.SetPersistQueueDepth(len(p.queue))
	default:
		log.Warn().
			Str("jobID", job.id).
			Int("diagnoses", len(b.Diagnoses)).
			Int("entries", len(b.Entries)).
			Msg("Persist queue full, dropping batch")
		metrics.RecordPersistJob("dropped", time.Time{})
	}
}

// Shutdown stops accepting batches and waits for queued ones to be committed. If ctx
// ends first, in-flight commits are cancelled.
func (p *Persister) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		log.Info().Msg("Persister drained")
		return nil
	case <-ctx.Done():
		p.cancel()
		<-done
		return errors.Join(errors.New("persister shutdown timed out"), ctx.Err())
	}
}

func (p *Persister) worker(n int) {
	defer p.wg.Done()

	for job := range p.queue {
		metrics.SetPersistQueueDepth(len(p.queue))
		p.run(n, job)
	}
}

func (p *Persister) run(worker int, job persistJob) {
	ctx, cancel := context.WithTimeout(p.ctx, p.cfg.JobTimeout)
	defer cancel()

	start := time.Now()
	if err := Commit(ctx, p.store, job.batch); err != nil {
		log.Error().
			Err(err).
			Str("jobID", job.id).
			Int("worker", worker).
			Int("diagnoses", len(job.batch.Diagnoses)).
			Int("specializations", len(job.batch.Specializations)).
			Int("entries", len(job.batch.Entries)).
			Msg("Failed to persist diagnosis batch")
		metrics.RecordPersistJob("failed", start)
		return
	}

	log.Debug().
		Str("jobID", job.id).
		Int("worker", worker).
		Dur("queued", start.Sub(job.enqueued)).
		Dur("took", time.Since(start)).
		Msg("Diagnosis batch persisted")
	metrics.RecordPersistJob("committed", start)
}
