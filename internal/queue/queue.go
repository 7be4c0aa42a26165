// Package queue implements the store-backed work-queue runtime: named
// queues with bounded worker concurrency, attempt-counted retry with
// exponential backoff, and retention of exhausted jobs for inspection.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/outreach-pipeline/internal/model"
	"github.com/sells-group/outreach-pipeline/internal/resilience"
	"github.com/sells-group/outreach-pipeline/internal/store"
)

// Handler processes one claimed job. A returned error schedules a retry
// until the job's attempts are exhausted.
type Handler func(ctx context.Context, job model.Job) error

// Config tunes one named queue.
type Config struct {
	Name           string        `yaml:"name" mapstructure:"name"`
	Concurrency    int           `yaml:"concurrency" mapstructure:"concurrency"`
	MaxAttempts    int           `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoff time.Duration `yaml:"initial_backoff" mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff" mapstructure:"max_backoff"`
	PollInterval   time.Duration `yaml:"poll_interval" mapstructure:"poll_interval"`
}

// DefaultQueues returns the four pipeline queues. Ingest runs single-file to
// preserve page-cursor ordering; enrich is widest because research is slow
// and parallelizable.
func DefaultQueues() []Config {
	return []Config{
		{Name: model.QueueIngest, Concurrency: 1},
		{Name: model.QueueEnrich, Concurrency: 3},
		{Name: model.QueueSync, Concurrency: 2},
		{Name: model.QueueNotify, Concurrency: 1},
	}
}

func applyDefaults(c Config) Config {
	if c.Concurrency <= 0 {
		c.Concurrency = 1
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = time.Second
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 30 * time.Second
	}
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	return c
}

// Runtime drives the named queues against the store.
type Runtime struct {
	store    store.Store
	queues   []Config
	handlers map[string]Handler
}

// New creates a Runtime over the given queues.
func New(st store.Store, queues []Config) *Runtime {
	cfgs := make([]Config, len(queues))
	for i, q := range queues {
		cfgs[i] = applyDefaults(q)
	}
	return &Runtime{
		store:    st,
		queues:   cfgs,
		handlers: make(map[string]Handler),
	}
}

// Register binds a handler to a job kind. Not safe to call after Run starts.
func (r *Runtime) Register(kind string, h Handler) {
	r.handlers[kind] = h
}

// EnqueueOption adjusts a job before it is persisted.
type EnqueueOption func(*model.Job)

// WithDelay schedules the job to become due after d.
func WithDelay(d time.Duration) EnqueueOption {
	return func(j *model.Job) {
		j.NextRunAt = time.Now().UTC().Add(d)
	}
}

// WithMaxAttempts overrides the queue's default attempt limit.
func WithMaxAttempts(n int) EnqueueOption {
	return func(j *model.Job) {
		j.MaxAttempts = n
	}
}

// Enqueue persists a job on the named queue. payload is marshalled to JSON;
// nil means no payload.
func (r *Runtime) Enqueue(ctx context.Context, queueName, kind string, payload any, opts ...EnqueueOption) error {
	qc, ok := r.config(queueName)
	if !ok {
		return eris.Errorf("queue: unknown queue %q", queueName)
	}

	var raw []byte
	if payload != nil {
		var err error
		raw, err = json.Marshal(payload)
		if err != nil {
			return eris.Wrapf(err, "queue: marshal %s payload", kind)
		}
	}

	job := model.Job{
		Queue:       queueName,
		Kind:        kind,
		Payload:     raw,
		MaxAttempts: qc.MaxAttempts,
	}
	for _, opt := range opts {
		opt(&job)
	}
	return r.store.EnqueueJob(ctx, job)
}

func (r *Runtime) config(name string) (Config, bool) {
	for _, q := range r.queues {
		if q.Name == name {
			return q, true
		}
	}
	return Config{}, false
}

// Run starts the worker pools and blocks until ctx is cancelled.
func (r *Runtime) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, qc := range r.queues {
		for i := 0; i < qc.Concurrency; i++ {
			g.Go(func() error {
				r.workerLoop(gctx, qc)
				return nil
			})
		}
	}
	zap.L().Info("queue: workers started", zap.Int("queues", len(r.queues)))
	return g.Wait()
}

func (r *Runtime) workerLoop(ctx context.Context, qc Config) {
	for {
		if ctx.Err() != nil {
			return
		}

		job, err := r.store.ClaimDueJob(ctx, qc.Name, time.Now().UTC())
		if err != nil {
			zap.L().Error("queue: claim failed",
				zap.String("queue", qc.Name),
				zap.Error(err),
			)
		}
		if job == nil {
			timer := time.NewTimer(qc.PollInterval)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
			continue
		}

		r.process(ctx, qc, *job)
	}
}

// DrainOnce processes every currently-due job across all queues, serially
// per queue, then returns the number of jobs handled. New jobs enqueued by
// handlers are picked up if they are immediately due.
func (r *Runtime) DrainOnce(ctx context.Context) (int, error) {
	handled := 0
	for {
		progressed := false
		for _, qc := range r.queues {
			for {
				job, err := r.store.ClaimDueJob(ctx, qc.Name, time.Now().UTC())
				if err != nil {
					return handled, eris.Wrapf(err, "queue: drain claim on %s", qc.Name)
				}
				if job == nil {
					break
				}
				r.process(ctx, qc, *job)
				handled++
				progressed = true
			}
		}
		if !progressed {
			return handled, nil
		}
	}
}

func (r *Runtime) process(ctx context.Context, qc Config, job model.Job) {
	log := zap.L().With(
		zap.String("queue", qc.Name),
		zap.String("kind", job.Kind),
		zap.String("job_id", job.ID),
		zap.Int("attempt", job.Attempts),
	)

	h, ok := r.handlers[job.Kind]
	if !ok {
		log.Error("queue: no handler registered")
		if err := r.store.MarkJobDead(ctx, job.ID, "no handler registered for kind "+job.Kind); err != nil {
			log.Error("queue: mark dead failed", zap.Error(err))
		}
		return
	}

	start := time.Now()
	err := h(ctx, job)
	if err == nil {
		if cErr := r.store.CompleteJob(ctx, job.ID); cErr != nil {
			log.Error("queue: complete failed", zap.Error(cErr))
		}
		log.Info("queue: job complete", zap.Duration("took", time.Since(start)))
		return
	}

	// Conflicts are non-retriable: the state machine has already moved on.
	dead := job.Attempts >= job.MaxAttempts || errors.Is(err, store.ErrConflict)
	if dead {
		log.Error("queue: job dead", zap.Error(err))
		if dErr := r.store.MarkJobDead(ctx, job.ID, err.Error()); dErr != nil {
			log.Error("queue: mark dead failed", zap.Error(dErr))
		}
		return
	}

	delay := resilience.Backoff(job.Attempts-1, qc.InitialBackoff, qc.MaxBackoff)
	log.Warn("queue: job failed, rescheduling",
		zap.Duration("backoff", delay),
		zap.Error(err),
	)
	if rErr := r.store.RescheduleJob(ctx, job.ID, err.Error(), time.Now().UTC().Add(delay)); rErr != nil {
		log.Error("queue: reschedule failed", zap.Error(rErr))
	}
}
