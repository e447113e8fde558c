// Package queue owns the download job table and the worker pool that drains
// it. Every accepted job is attempted exactly once: the pending list is the
// only hand-off point, a job leaves it before any worker touches it, and a
// failure never stops the loop from draining the rest.
package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"mediagrab/internal/domain"
	"mediagrab/internal/extractor"
)

// Policy selects how workers drain the queue.
type Policy string

const (
	// PolicyParallel runs N independent workers with no artificial delay.
	PolicyParallel Policy = "parallel"
	// PolicySequential runs a single worker and pauses between jobs so the
	// backing services never see bursts of automated requests.
	PolicySequential Policy = "sequential"
)

// ValidPolicy reports whether p is a known scheduling policy.
func ValidPolicy(p Policy) bool {
	return p == PolicyParallel || p == PolicySequential
}

// Publisher receives job lifecycle events for fan-out.
type Publisher interface {
	Publish(sessionID string, event domain.Event)
}

// Store decides where artifacts land and how they are referenced.
type Store interface {
	Dir() string
	BaseName(sessionID, jobID, title string) string
	Ref(path string) string
}

// Config tunes the pool. Capacity 0 means unbounded; when bounded, a batch
// that does not fit is rejected whole. Tick is the length of one countdown
// unit under the sequential policy and exists for tests; it defaults to one
// second.
type Config struct {
	Workers      int
	Policy       Policy
	DelaySeconds int
	Tick         time.Duration
	Capacity     int
	JobTimeout   time.Duration
}

// Queue is the job table plus the pending list feeding the workers.
type Queue struct {
	cfg    Config
	ext    extractor.Extractor
	events Publisher
	store  Store
	logger zerolog.Logger

	mu      sync.Mutex
	jobs    map[string]*domain.Job
	pending []*domain.Job
	active  int
	notify  chan struct{}
}

// New creates a stopped queue; call Start to launch the pool.
func New(cfg Config, ext extractor.Extractor, events Publisher, store Store, logger zerolog.Logger) *Queue {
	if cfg.Tick <= 0 {
		cfg.Tick = time.Second
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &Queue{
		cfg:    cfg,
		ext:    ext,
		events: events,
		store:  store,
		logger: logger,
		jobs:   make(map[string]*domain.Job),
		notify: make(chan struct{}, 1),
	}
}

// EnqueueBatch accepts jobs in submission order, assigning 1-based
// intra-batch positions, and returns the estimated wait in seconds for the
// whole batch. The estimate is (n-1) x delay under the sequential policy
// and zero otherwise. The queue owns the submitted jobs from here on:
// workers may start mutating them before this call returns, so callers get
// snapshots taken under the lock instead of reading the jobs back.
func (q *Queue) EnqueueBatch(jobs []*domain.Job) ([]domain.Job, int, error) {
	if len(jobs) == 0 {
		return nil, 0, domain.ErrEmptySelection
	}

	q.mu.Lock()
	if q.cfg.Capacity > 0 && len(q.pending)+len(jobs) > q.cfg.Capacity {
		q.mu.Unlock()
		return nil, 0, domain.ErrQueueFull
	}
	now := time.Now()
	accepted := make([]domain.Job, len(jobs))
	for i, job := range jobs {
		job.Position = i + 1
		job.Status = domain.JobQueued
		job.CreatedAt = now
		q.jobs[job.ID] = job
		q.pending = append(q.pending, job)
		accepted[i] = *job
	}
	q.mu.Unlock()

	q.wake()
	return accepted, q.EstimateSeconds(len(jobs)), nil
}

// EstimateSeconds is the advertised wait for a batch of n jobs.
func (q *Queue) EstimateSeconds(n int) int {
	if q.cfg.Policy == PolicySequential && n > 1 {
		return (n - 1) * q.cfg.DelaySeconds
	}
	return 0
}

// Job returns a copy of the job, or domain.ErrNotFound.
func (q *Queue) Job(id string) (domain.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	job, ok := q.jobs[id]
	if !ok {
		return domain.Job{}, domain.ErrNotFound
	}
	return *job, nil
}

// Stats reports how many jobs are currently downloading and how many are
// still waiting in the pending list.
func (q *Queue) Stats() (active, queued int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.active, len(q.pending)
}

// Start launches the worker pool. The sequential policy always runs exactly
// one worker regardless of the configured count.
func (q *Queue) Start(ctx context.Context) {
	workers := q.cfg.Workers
	if q.cfg.Policy == PolicySequential {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		go q.worker(ctx, i)
	}
	q.logger.Info().Int("workers", workers).Str("policy", string(q.cfg.Policy)).Msg("queue: worker pool started")
}

func (q *Queue) worker(ctx context.Context, id int) {
	for {
		job, ok := q.next(ctx)
		if !ok {
			return
		}
		if q.cfg.Policy == PolicySequential && job.Position > 1 {
			if !q.pace(ctx, job) {
				return
			}
		}
		q.process(ctx, job)
	}
}

// next blocks until a job is available or ctx is done. Popping under the
// lock is what guarantees no two workers ever hold the same job.
func (q *Queue) next(ctx context.Context) (*domain.Job, bool) {
	for {
		q.mu.Lock()
		if len(q.pending) > 0 {
			job := q.pending[0]
			q.pending = q.pending[1:]
			more := len(q.pending) > 0
			q.mu.Unlock()
			if more {
				q.wake()
			}
			return job, true
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, false
		case <-q.notify:
		}
	}
}

// pace emits a countdown before a delayed job starts so subscribers can
// render the remaining wait.
func (q *Queue) pace(ctx context.Context, job *domain.Job) bool {
	for remaining := q.cfg.DelaySeconds; remaining > 0; remaining-- {
		q.events.Publish(job.SessionID, domain.WaitingEvent(job.ID, remaining))
		select {
		case <-ctx.Done():
			return false
		case <-time.After(q.cfg.Tick):
		}
	}
	return true
}

// process runs one job to a terminal state. A panic anywhere below is
// converted into a Failed job and a logged continuation; a dead worker
// would silently stall every job behind it.
func (q *Queue) process(ctx context.Context, job *domain.Job) {
	q.mu.Lock()
	q.active++
	q.mu.Unlock()
	defer func() {
		q.mu.Lock()
		q.active--
		q.mu.Unlock()
		if r := recover(); r != nil {
			msg := fmt.Sprintf("internal error: %v", r)
			q.logger.Error().Str("job_id", job.ID).Interface("panic", r).Msg("queue: worker recovered")
			if q.fail(job, msg) {
				q.events.Publish(job.SessionID, domain.ErrorEvent(job.ID, msg))
			}
		}
	}()

	jobCtx := ctx
	if q.cfg.JobTimeout > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(ctx, q.cfg.JobTimeout)
		defer cancel()
	}

	q.markDownloading(job)
	q.events.Publish(job.SessionID, domain.ProgressEvent(job.ID, 0))
	q.logger.Info().Str("job_id", job.ID).Str("item_id", job.ItemID).Msg("queue: job started")

	onProgress := func(done, total int64) {
		if total <= 0 {
			// Unknown size: leave the percentage at its last known value
			// rather than guessing.
			return
		}
		pct := int(done * 100 / total)
		if pct > 99 {
			// Never signal "done" from a byte counter; completion owns 100.
			pct = 99
		}
		if q.advanceProgress(job, pct) {
			q.events.Publish(job.SessionID, domain.ProgressEvent(job.ID, pct))
		}
	}

	path, err := q.ext.Retrieve(jobCtx, extractor.RetrieveRequest{
		URL:      job.ItemURL,
		Format:   extractor.Format(job.Format),
		Quality:  job.Quality,
		Dir:      q.store.Dir(),
		BaseName: q.store.BaseName(job.SessionID, job.ID, job.ItemTitle),
	}, onProgress)
	if err != nil {
		q.logger.Error().Err(err).Str("job_id", job.ID).Msg("queue: job failed")
		if q.fail(job, err.Error()) {
			q.events.Publish(job.SessionID, domain.ErrorEvent(job.ID, err.Error()))
		}
		return
	}

	ref := q.store.Ref(path)
	if q.complete(job, ref) {
		q.events.Publish(job.SessionID, domain.CompleteEvent(job.ID, ref))
	}
	q.logger.Info().Str("job_id", job.ID).Str("artifact", ref).Msg("queue: job completed")
}

func (q *Queue) wake() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

func (q *Queue) markDownloading(job *domain.Job) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if job.Status.Terminal() {
		return
	}
	job.Status = domain.JobDownloading
}

// advanceProgress applies pct only while the job is downloading and only
// forward; progress is monotonically non-decreasing.
func (q *Queue) advanceProgress(job *domain.Job, pct int) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if job.Status != domain.JobDownloading || pct <= job.Progress {
		return false
	}
	job.Progress = pct
	return true
}

func (q *Queue) complete(job *domain.Job, ref string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if job.Status.Terminal() {
		return false
	}
	job.Status = domain.JobCompleted
	job.Progress = 100
	job.Artifact = ref
	return true
}

func (q *Queue) fail(job *domain.Job, msg string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if job.Status.Terminal() {
		return false
	}
	job.Status = domain.JobFailed
	job.Error = msg
	return true
}
