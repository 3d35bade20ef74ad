// Package admission implements the per-model bounded queue and bounded
// parallelism gate described in spec.md §4.2 (C3): no two requests for
// different models can block each other, ordering within one model is
// FIFO, and the controller auto-sizes itself from host memory when not
// given an explicit parallel limit.
package admission

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// ErrQueueFull is returned when a model's queue is at capacity.
var ErrQueueFull = errors.New("admission: queue full")

// ErrTimeout is returned when the wait for a semaphore permit exceeds the
// caller's budget.
var ErrTimeout = errors.New("admission: timed out waiting for a slot")

const enqueueTimeout = 100 * time.Millisecond

// Limits configures one model queue.
type Limits struct {
	ParallelLimit int
	QueueLimit    int
}

// modelQueue is the per-model state: a bounded FIFO slot counter and a
// bounded-parallelism semaphore. Counters reset whenever the queue is
// reconfigured, per spec.
type modelQueue struct {
	model  string
	limits Limits

	slots chan struct{}
	sem   *semaphore.Weighted

	active    atomic.Int64
	waiting   atomic.Int64
	processed atomic.Int64
	rejected  atomic.Int64

	cumulativeWaitNs atomic.Int64
	cumulativeProcNs atomic.Int64

	lastActivity atomic.Int64 // unix nano
	createdAt    time.Time
}

func newModelQueue(model string, limits Limits) *modelQueue {
	q := &modelQueue{
		model:  model,
		limits: limits,
		slots:  make(chan struct{}, limits.QueueLimit),
		sem:    semaphore.NewWeighted(int64(limits.ParallelLimit)),
		createdAt: time.Now(),
	}
	q.lastActivity.Store(time.Now().UnixNano())
	return q
}

func (q *modelQueue) touch() {
	q.lastActivity.Store(time.Now().UnixNano())
}

func (q *modelQueue) idleSince() time.Time {
	return time.Unix(0, q.lastActivity.Load())
}

func (q *modelQueue) isIdle() bool {
	return q.active.Load() == 0 && q.waiting.Load() == 0
}

// Snapshot is the per-model metrics view exposed by /stats.
type Snapshot struct {
	Model            string  `json:"model"`
	Active           int64   `json:"active"`
	Waiting          int64   `json:"waiting"`
	AvailableSlots   int64   `json:"available_slots"`
	QueueAvailable   int64   `json:"queue_available"`
	Processed        int64   `json:"processed"`
	Rejected         int64   `json:"rejected"`
	AvgWaitMs        float64 `json:"avg_wait_ms"`
	AvgProcessingMs  float64 `json:"avg_processing_ms"`
	UptimeSeconds    float64 `json:"uptime_seconds"`
}

// Controller owns every model's queue state and the janitor that evicts
// idle entries.
type Controller struct {
	mu     sync.Mutex
	queues map[string]*modelQueue

	defaultLimits Limits
	idleTTL       time.Duration

	metrics *metricsSet
	logger  *zap.Logger

	cron   *cron.Cron
	cronMu sync.Mutex

	startedAt time.Time
}

// Option configures a Controller at construction time.
type Option func(*Controller)

// WithDefaultParallel overrides the memory-probe auto-sizing.
func WithDefaultParallel(n int) Option {
	return func(c *Controller) { c.defaultLimits.ParallelLimit = n }
}

// WithDefaultQueueLimit sets the default per-model queue capacity.
func WithDefaultQueueLimit(n int) Option {
	return func(c *Controller) { c.defaultLimits.QueueLimit = n }
}

// WithIdleTTL sets how long a model queue may sit idle before the janitor
// evicts it. Default is one hour.
func WithIdleTTL(d time.Duration) Option {
	return func(c *Controller) { c.idleTTL = d }
}

// WithRegisterer wires the controller's Prometheus instruments into reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(c *Controller) { c.metrics = newMetricsSet(reg) }
}

// New builds a Controller. When no explicit default parallel limit is
// given via WithDefaultParallel, it auto-sizes from host memory.
func New(logger *zap.Logger, opts ...Option) *Controller {
	c := &Controller{
		queues: make(map[string]*modelQueue),
		defaultLimits: Limits{
			ParallelLimit: 0,
			QueueLimit:    512,
		},
		idleTTL:   time.Hour,
		logger:    logger,
		startedAt: time.Now(),
	}
	for _, o := range opts {
		o(c)
	}
	if c.defaultLimits.ParallelLimit <= 0 {
		c.defaultLimits.ParallelLimit = autoParallel()
	}
	if c.metrics == nil {
		c.metrics = newMetricsSet(nil)
	}
	return c
}

// StartJanitor launches a robfig/cron schedule that evicts idle model
// queues every 30s. Call Stop to shut it down.
func (c *Controller) StartJanitor() {
	c.cronMu.Lock()
	defer c.cronMu.Unlock()
	if c.cron != nil {
		return
	}
	c.cron = cron.New(cron.WithSeconds())
	_, err := c.cron.AddFunc("*/30 * * * * *", c.evictIdle)
	if err != nil {
		c.logger.Error("admission: failed to schedule janitor", zap.Error(err))
		c.cron = nil
		return
	}
	c.cron.Start()
}

// Stop shuts down the janitor schedule, if running.
func (c *Controller) Stop() {
	c.cronMu.Lock()
	defer c.cronMu.Unlock()
	if c.cron != nil {
		ctx := c.cron.Stop()
		<-ctx.Done()
		c.cron = nil
	}
}

func (c *Controller) evictIdle() {
	cutoff := time.Now().Add(-c.idleTTL)
	c.mu.Lock()
	defer c.mu.Unlock()
	for model, q := range c.queues {
		if q.isIdle() && q.idleSince().Before(cutoff) {
			delete(c.queues, model)
			c.logger.Debug("admission: evicted idle model queue", zap.String("model", model))
		}
	}
}

func (c *Controller) queueFor(model string) *modelQueue {
	c.mu.Lock()
	defer c.mu.Unlock()
	q, ok := c.queues[model]
	if !ok {
		q = newModelQueue(model, c.defaultLimits)
		c.queues[model] = q
	}
	return q
}

// SetDefaultLimits updates the limits used for models that don't yet have
// a queue. Existing per-model queues are untouched; call Reconfigure for
// those if the reload should apply to them too.
func (c *Controller) SetDefaultLimits(limits Limits) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.defaultLimits = limits
}

// Reconfigure replaces a model's queue with fresh state using new limits.
// Any in-flight request finishes against the old semaphore; new requests
// use the new one. Counters reset, as documented to callers.
func (c *Controller) Reconfigure(model string, limits Limits) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queues[model] = newModelQueue(model, limits)
}

// Execute runs operation under the model's queue-and-semaphore gate. It
// returns ErrQueueFull if the queue was at capacity, ErrTimeout if the
// semaphore wait exceeded timeout, or operation's own result/error.
//
// A permit that is free for the taking is acquired directly, without ever
// occupying a queue slot: the queue only holds requests that are actually
// waiting for parallelism to free up. That keeps queue_limit=0 meaning "no
// waiting room" rather than "no admission at all" — with parallel_limit>0
// and an idle backend, the first request must still be admitted.
func (c *Controller) Execute(ctx context.Context, model, requestID string, timeout time.Duration, operation func(ctx context.Context) (any, error)) (any, error) {
	q := c.queueFor(model)
	q.touch()

	waitStart := time.Now()

	acquireCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		acquireCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if !q.sem.TryAcquire(1) {
		select {
		case q.slots <- struct{}{}:
			q.waiting.Add(1)
		case <-time.After(enqueueTimeout):
			q.rejected.Add(1)
			c.metrics.rejected.WithLabelValues(model).Inc()
			return nil, ErrQueueFull
		}

		c.metrics.waiting.WithLabelValues(model).Inc()
		err := q.sem.Acquire(acquireCtx, 1)
		<-q.slots
		q.waiting.Add(-1)
		c.metrics.waiting.WithLabelValues(model).Dec()

		if err != nil {
			waited := time.Since(waitStart)
			q.cumulativeWaitNs.Add(int64(waited))
			c.metrics.waitTime.WithLabelValues(model).Observe(waited.Seconds())
			return nil, ErrTimeout
		}
	}

	waited := time.Since(waitStart)
	q.cumulativeWaitNs.Add(int64(waited))
	c.metrics.waitTime.WithLabelValues(model).Observe(waited.Seconds())

	q.active.Add(1)
	c.metrics.active.WithLabelValues(model).Inc()
	defer func() {
		q.sem.Release(1)
		q.active.Add(-1)
		c.metrics.active.WithLabelValues(model).Dec()
	}()

	remaining := acquireCtx
	procStart := time.Now()
	result, opErr := operation(remaining)
	procDuration := time.Since(procStart)

	q.processed.Add(1)
	q.cumulativeProcNs.Add(int64(procDuration))
	c.metrics.processed.WithLabelValues(model).Inc()
	c.metrics.procTime.WithLabelValues(model).Observe(procDuration.Seconds())
	q.touch()

	return result, opErr
}

// Stats returns a snapshot for every known model queue.
func (c *Controller) Stats() []Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snaps := make([]Snapshot, 0, len(c.queues))
	for model, q := range c.queues {
		snaps = append(snaps, q.snapshot(model, c.startedAt))
	}
	return snaps
}

func (q *modelQueue) snapshot(model string, startedAt time.Time) Snapshot {
	processed := q.processed.Load()
	var avgWaitMs, avgProcMs float64
	if processed > 0 {
		avgWaitMs = float64(q.cumulativeWaitNs.Load()) / float64(processed) / float64(time.Millisecond)
		avgProcMs = float64(q.cumulativeProcNs.Load()) / float64(processed) / float64(time.Millisecond)
	}
	return Snapshot{
		Model:           model,
		Active:          q.active.Load(),
		Waiting:         q.waiting.Load(),
		AvailableSlots:  int64(q.limits.ParallelLimit) - q.active.Load(),
		QueueAvailable:  int64(q.limits.QueueLimit) - q.waiting.Load(),
		Processed:       processed,
		Rejected:        q.rejected.Load(),
		AvgWaitMs:       avgWaitMs,
		AvgProcessingMs: avgProcMs,
		UptimeSeconds:   time.Since(startedAt).Seconds(),
	}
}
