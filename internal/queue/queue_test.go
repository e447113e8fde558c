package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"mediagrab/internal/domain"
	"mediagrab/internal/extractor"
)

type fakeExtractor struct {
	mu       sync.Mutex
	starts   []startRecord
	retrieve func(ctx context.Context, req extractor.RetrieveRequest, onProgress extractor.ProgressFunc) (string, error)
}

type startRecord struct {
	url string
	at  time.Time
}

func (f *fakeExtractor) Probe(ctx context.Context, url string) (*extractor.ProbeResult, error) {
	return nil, errors.New("not used")
}

func (f *fakeExtractor) Retrieve(ctx context.Context, req extractor.RetrieveRequest, onProgress extractor.ProgressFunc) (string, error) {
	f.mu.Lock()
	f.starts = append(f.starts, startRecord{url: req.URL, at: time.Now()})
	f.mu.Unlock()
	if f.retrieve != nil {
		return f.retrieve(ctx, req, onProgress)
	}
	return "/tmp/" + req.BaseName + ".mp4", nil
}

func (f *fakeExtractor) startTimes() []startRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]startRecord, len(f.starts))
	copy(out, f.starts)
	return out
}

type fakePublisher struct {
	mu     sync.Mutex
	events []domain.Event
}

func (p *fakePublisher) Publish(_ string, event domain.Event) {
	p.mu.Lock()
	p.events = append(p.events, event)
	p.mu.Unlock()
}

func (p *fakePublisher) byType(kind string) []domain.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []domain.Event
	for _, e := range p.events {
		if e.Type == kind {
			out = append(out, e)
		}
	}
	return out
}

type fakeStore struct{}

func (fakeStore) Dir() string { return "/tmp" }

func (fakeStore) BaseName(sessionID, jobID, title string) string {
	return sessionID + "_" + jobID + "_" + title
}

func (fakeStore) Ref(path string) string {
	return "/downloads/" + path[strings.LastIndexByte(path, '/')+1:]
}

func newJob(i int) *domain.Job {
	return &domain.Job{
		ID:        fmt.Sprintf("job-%d", i),
		SessionID: "sess-1",
		ItemID:    fmt.Sprintf("vid-%d", i),
		ItemURL:   fmt.Sprintf("https://example.com/v/%d", i),
		ItemTitle: fmt.Sprintf("video-%d", i),
		Format:    domain.FormatBest,
	}
}

func newJobs(n int) []*domain.Job {
	jobs := make([]*domain.Job, n)
	for i := range jobs {
		jobs[i] = newJob(i)
	}
	return jobs
}

func startQueue(t *testing.T, cfg Config, ext extractor.Extractor, pub Publisher) *Queue {
	t.Helper()
	q := New(cfg, ext, pub, fakeStore{}, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	q.Start(ctx)
	return q
}

func waitForTerminal(t *testing.T, q *Queue, jobs []*domain.Job) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		done := true
		for _, j := range jobs {
			got, err := q.Job(j.ID)
			if err != nil || !got.Status.Terminal() {
				done = false
				break
			}
		}
		if done {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("jobs did not reach a terminal state before deadline")
}

func TestEnqueueBatchAssignsPositions(t *testing.T) {
	q := New(Config{Policy: PolicyParallel, Workers: 2}, &fakeExtractor{}, &fakePublisher{}, fakeStore{}, zerolog.Nop())

	accepted, estimate, err := q.EnqueueBatch(newJobs(4))
	if err != nil {
		t.Fatalf("EnqueueBatch returned error: %v", err)
	}
	if estimate != 0 {
		t.Fatalf("parallel estimate = %d, want 0", estimate)
	}
	for i, job := range accepted {
		if job.Position != i+1 {
			t.Fatalf("job %d position = %d, want %d", i, job.Position, i+1)
		}
		if job.Status != domain.JobQueued {
			t.Fatalf("job %d status = %q, want queued", i, job.Status)
		}
	}
}

func TestEnqueueBatchSnapshotsPrecedeWorkers(t *testing.T) {
	ext := &fakeExtractor{}
	q := startQueue(t, Config{Policy: PolicyParallel, Workers: 4}, ext, &fakePublisher{})

	// With workers already draining, the returned snapshots must still show
	// the enqueue-time view of every job; live state is read via Job only.
	jobs := newJobs(8)
	accepted, _, err := q.EnqueueBatch(jobs)
	if err != nil {
		t.Fatalf("EnqueueBatch returned error: %v", err)
	}
	if len(accepted) != 8 {
		t.Fatalf("accepted = %d jobs, want 8", len(accepted))
	}
	for i, job := range accepted {
		if job.Status != domain.JobQueued {
			t.Fatalf("snapshot %d status = %q, want queued", i, job.Status)
		}
		if job.Position != i+1 {
			t.Fatalf("snapshot %d position = %d, want %d", i, job.Position, i+1)
		}
		if job.ID != jobs[i].ID {
			t.Fatalf("snapshot %d id = %q, want %q", i, job.ID, jobs[i].ID)
		}
	}
	waitForTerminal(t, q, jobs)
}

func TestEnqueueBatchSequentialEstimate(t *testing.T) {
	q := New(Config{Policy: PolicySequential, DelaySeconds: 5}, &fakeExtractor{}, &fakePublisher{}, fakeStore{}, zerolog.Nop())

	_, estimate, err := q.EnqueueBatch(newJobs(3))
	if err != nil {
		t.Fatalf("EnqueueBatch returned error: %v", err)
	}
	if estimate != 10 {
		t.Fatalf("sequential estimate = %d, want 10", estimate)
	}
}

func TestEnqueueBatchEmpty(t *testing.T) {
	q := New(Config{Policy: PolicyParallel}, &fakeExtractor{}, &fakePublisher{}, fakeStore{}, zerolog.Nop())
	if _, _, err := q.EnqueueBatch(nil); !errors.Is(err, domain.ErrEmptySelection) {
		t.Fatalf("EnqueueBatch error = %v, want ErrEmptySelection", err)
	}
}

func TestEnqueueBatchRejectsWhenFull(t *testing.T) {
	q := New(Config{Policy: PolicyParallel, Capacity: 2}, &fakeExtractor{}, &fakePublisher{}, fakeStore{}, zerolog.Nop())

	if _, _, err := q.EnqueueBatch(newJobs(3)); !errors.Is(err, domain.ErrQueueFull) {
		t.Fatalf("EnqueueBatch error = %v, want ErrQueueFull", err)
	}
	// A rejected batch must leave no trace in the job table.
	if _, err := q.Job("job-0"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("rejected job was recorded: %v", err)
	}
}

func TestParallelJobsComplete(t *testing.T) {
	ext := &fakeExtractor{}
	pub := &fakePublisher{}
	q := startQueue(t, Config{Policy: PolicyParallel, Workers: 3}, ext, pub)

	jobs := newJobs(3)
	if _, _, err := q.EnqueueBatch(jobs); err != nil {
		t.Fatalf("EnqueueBatch returned error: %v", err)
	}
	waitForTerminal(t, q, jobs)

	for _, j := range jobs {
		got, err := q.Job(j.ID)
		if err != nil {
			t.Fatalf("Job(%s) returned error: %v", j.ID, err)
		}
		if got.Status != domain.JobCompleted {
			t.Fatalf("job %s status = %q, want completed", j.ID, got.Status)
		}
		if got.Progress != 100 {
			t.Fatalf("job %s progress = %d, want 100", j.ID, got.Progress)
		}
		if !strings.HasPrefix(got.Artifact, "/downloads/") {
			t.Fatalf("job %s artifact = %q", j.ID, got.Artifact)
		}
	}
	if got := len(pub.byType("complete")); got != 3 {
		t.Fatalf("complete events = %d, want 3", got)
	}
}

func TestFailedJobDoesNotBlockBatch(t *testing.T) {
	ext := &fakeExtractor{
		retrieve: func(_ context.Context, req extractor.RetrieveRequest, _ extractor.ProgressFunc) (string, error) {
			if strings.HasSuffix(req.URL, "/2") {
				return "", errors.New("extraction blocked by upstream")
			}
			return "/tmp/" + req.BaseName + ".mp4", nil
		},
	}
	pub := &fakePublisher{}
	q := startQueue(t, Config{Policy: PolicyParallel, Workers: 1}, ext, pub)

	jobs := newJobs(5)
	if _, _, err := q.EnqueueBatch(jobs); err != nil {
		t.Fatalf("EnqueueBatch returned error: %v", err)
	}
	waitForTerminal(t, q, jobs)

	completed, failed := 0, 0
	for _, j := range jobs {
		got, _ := q.Job(j.ID)
		switch got.Status {
		case domain.JobCompleted:
			completed++
		case domain.JobFailed:
			failed++
			if got.Error != "extraction blocked by upstream" {
				t.Fatalf("failed job error = %q", got.Error)
			}
		}
	}
	if completed != 4 || failed != 1 {
		t.Fatalf("completed=%d failed=%d, want 4/1", completed, failed)
	}
}

func TestProgressMonotonicAndCapped(t *testing.T) {
	ext := &fakeExtractor{
		retrieve: func(_ context.Context, req extractor.RetrieveRequest, onProgress extractor.ProgressFunc) (string, error) {
			onProgress(50, 100)
			onProgress(30, 100)  // stale callback must not move progress backwards
			onProgress(10, 0)    // unknown total leaves progress untouched
			onProgress(100, 100) // byte counter must never report 100
			return "/tmp/" + req.BaseName + ".mp4", nil
		},
	}
	pub := &fakePublisher{}
	q := startQueue(t, Config{Policy: PolicyParallel, Workers: 1}, ext, pub)

	jobs := newJobs(1)
	if _, _, err := q.EnqueueBatch(jobs); err != nil {
		t.Fatalf("EnqueueBatch returned error: %v", err)
	}
	waitForTerminal(t, q, jobs)

	got, _ := q.Job("job-0")
	if got.Status != domain.JobCompleted || got.Progress != 100 {
		t.Fatalf("job = %q/%d, want completed/100", got.Status, got.Progress)
	}

	last := -1
	for _, e := range pub.byType("progress") {
		if *e.Progress < last {
			t.Fatalf("progress went backwards: %d after %d", *e.Progress, last)
		}
		if *e.Progress == 100 {
			t.Fatal("progress event reported 100 before completion")
		}
		last = *e.Progress
	}
	if last != 99 {
		t.Fatalf("last progress event = %d, want 99", last)
	}
}

func TestSequentialDelayPacing(t *testing.T) {
	ext := &fakeExtractor{}
	pub := &fakePublisher{}
	tick := 2 * time.Millisecond
	q := startQueue(t, Config{Policy: PolicySequential, DelaySeconds: 5, Tick: tick}, ext, pub)

	jobs := newJobs(3)
	_, estimate, err := q.EnqueueBatch(jobs)
	if err != nil {
		t.Fatalf("EnqueueBatch returned error: %v", err)
	}
	if estimate != 10 {
		t.Fatalf("estimate = %d, want 10", estimate)
	}
	waitForTerminal(t, q, jobs)

	starts := ext.startTimes()
	if len(starts) != 3 {
		t.Fatalf("retrieve calls = %d, want 3", len(starts))
	}
	for i := range starts {
		if want := jobs[i].ItemURL; starts[i].url != want {
			t.Fatalf("start %d url = %q, want %q (submission order)", i, starts[i].url, want)
		}
	}
	delay := time.Duration(5) * tick
	for i := 1; i < len(starts); i++ {
		if gap := starts[i].at.Sub(starts[i-1].at); gap < delay {
			t.Fatalf("gap between job %d and %d = %v, want >= %v", i-1, i, gap, delay)
		}
	}

	// Jobs 2 and 3 each count down from 5; job 1 starts immediately.
	waiting := pub.byType("waiting")
	if len(waiting) != 10 {
		t.Fatalf("waiting events = %d, want 10", len(waiting))
	}
	for i, e := range waiting {
		if want := 5 - i%5; *e.SecondsRemaining != want {
			t.Fatalf("waiting event %d seconds = %d, want %d", i, *e.SecondsRemaining, want)
		}
	}
}

func TestWorkerSurvivesPanic(t *testing.T) {
	ext := &fakeExtractor{
		retrieve: func(_ context.Context, req extractor.RetrieveRequest, _ extractor.ProgressFunc) (string, error) {
			if strings.HasSuffix(req.URL, "/0") {
				panic("extractor went sideways")
			}
			return "/tmp/" + req.BaseName + ".mp4", nil
		},
	}
	pub := &fakePublisher{}
	q := startQueue(t, Config{Policy: PolicyParallel, Workers: 1}, ext, pub)

	jobs := newJobs(2)
	if _, _, err := q.EnqueueBatch(jobs); err != nil {
		t.Fatalf("EnqueueBatch returned error: %v", err)
	}
	waitForTerminal(t, q, jobs)

	first, _ := q.Job("job-0")
	if first.Status != domain.JobFailed || !strings.Contains(first.Error, "extractor went sideways") {
		t.Fatalf("panicked job = %q/%q, want failed with panic message", first.Status, first.Error)
	}
	second, _ := q.Job("job-1")
	if second.Status != domain.JobCompleted {
		t.Fatalf("job after panic = %q, want completed", second.Status)
	}
}

func TestTerminalStatesAreSticky(t *testing.T) {
	q := New(Config{Policy: PolicyParallel}, &fakeExtractor{}, &fakePublisher{}, fakeStore{}, zerolog.Nop())
	job := newJob(0)
	if _, _, err := q.EnqueueBatch([]*domain.Job{job}); err != nil {
		t.Fatalf("EnqueueBatch returned error: %v", err)
	}

	if !q.complete(job, "/downloads/a.mp4") {
		t.Fatal("first completion rejected")
	}
	if q.fail(job, "late failure") {
		t.Fatal("failure transition allowed out of completed")
	}
	if q.advanceProgress(job, 10) {
		t.Fatal("progress advanced on a terminal job")
	}

	got, _ := q.Job(job.ID)
	if got.Status != domain.JobCompleted || got.Progress != 100 || got.Error != "" {
		t.Fatalf("terminal job mutated: %+v", got)
	}
}

func TestJobUnknown(t *testing.T) {
	q := New(Config{Policy: PolicyParallel}, &fakeExtractor{}, &fakePublisher{}, fakeStore{}, zerolog.Nop())
	if _, err := q.Job("missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Job error = %v, want ErrNotFound", err)
	}
}
