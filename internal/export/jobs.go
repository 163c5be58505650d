package export

// jobs.go runs exports in the background so large renders do not block
// interactive filtering.
//
// Each job owns an immutable Snapshot taken when it was started. Jobs wait
// for a Limiter slot, render, and deliver to their sink. A job cancelled
// before delivery never reaches the sink: the cancelled state is checked
// under the job lock immediately before delivery begins, and Cancel refuses
// once delivery has started. Failed jobs are not retried.

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/datagrid/internal/core"
	"github.com/JonMunkholm/datagrid/internal/logging"
)

// ErrJobNotFound is returned for unknown or pruned job ids.
var ErrJobNotFound = errors.New("export job not found")

// ErrManagerClosed is returned by Start after Shutdown.
var ErrManagerClosed = errors.New("export manager is shut down")

// DefaultJobRetention is how long finished jobs stay queryable.
const DefaultJobRetention = 15 * time.Minute

// JobState is the lifecycle state of an export job.
type JobState string

const (
	JobQueued     JobState = "queued"
	JobRunning    JobState = "running"
	JobDelivering JobState = "delivering"
	JobDone       JobState = "done"
	JobFailed     JobState = "failed"
	JobCancelled  JobState = "cancelled"
)

// Terminal reports whether the state is final.
func (s JobState) Terminal() bool {
	return s == JobDone || s == JobFailed || s == JobCancelled
}

// JobStatus is a point-in-time view of a job.
type JobStatus struct {
	ID         string    `json:"id"`
	Table      string    `json:"table,omitempty"`
	State      JobState  `json:"state"`
	Format     string    `json:"format"`
	Filename   string    `json:"filename"`
	Rows       int       `json:"rows"`
	Error      string    `json:"error,omitempty"`
	Result     *Result   `json:"result,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
}

type job struct {
	mu       sync.Mutex
	id       string
	snap     *Snapshot
	sink     core.DownloadSink
	state    JobState
	cancel   context.CancelFunc
	result   *Result
	err      error
	done     chan struct{}
	created  time.Time
	finished time.Time
}

func (j *job) status() JobStatus {
	j.mu.Lock()
	defer j.mu.Unlock()

	st := JobStatus{
		ID:         j.id,
		Table:      j.snap.Table.Key,
		State:      j.state,
		Format:     j.snap.Request.Format.String(),
		Filename:   j.snap.Request.Filename,
		Rows:       len(j.snap.Rows),
		Result:     j.result,
		CreatedAt:  j.created,
		FinishedAt: j.finished,
	}
	if j.result != nil {
		st.Filename = j.result.Filename
	}
	if j.err != nil {
		st.Error = j.err.Error()
	}
	return st
}

// transition moves a live job to next. It reports false when the job was
// cancelled in the meantime.
func (j *job) transition(next JobState) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state == JobCancelled {
		return false
	}
	j.state = next
	return true
}

func (j *job) finish(res *Result, err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state == JobCancelled {
		return
	}
	j.finished = time.Now()
	j.result = res
	j.err = err
	if err != nil {
		j.state = JobFailed
	} else {
		j.state = JobDone
	}
}

// Manager runs export jobs behind a Limiter.
type Manager struct {
	engine    *Engine
	limiter   *Limiter
	retention time.Duration

	base context.Context
	stop context.CancelFunc

	mu     sync.RWMutex
	jobs   map[string]*job
	closed bool
	wg     sync.WaitGroup
}

// NewManager creates a job manager. A nil limiter uses the defaults.
func NewManager(engine *Engine, limiter *Limiter, retention time.Duration) *Manager {
	if limiter == nil {
		limiter = NewLimiter(0, 0)
	}
	if retention <= 0 {
		retention = DefaultJobRetention
	}
	base, stop := context.WithCancel(context.Background())
	return &Manager{
		engine:    engine,
		limiter:   limiter,
		retention: retention,
		base:      base,
		stop:      stop,
		jobs:      make(map[string]*job),
	}
}

// Limiter returns the limiter gating job execution.
func (m *Manager) Limiter() *Limiter { return m.limiter }

// Start validates the request and launches a job delivering to sink, or to
// the engine's sink when sink is nil. Validation errors are returned
// immediately and no job is created.
func (m *Manager) Start(ctx context.Context, snap *Snapshot, sink core.DownloadSink) (string, error) {
	if _, err := snap.Request.validate(); err != nil {
		return "", err
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return "", ErrManagerClosed
	}
	m.pruneLocked()

	jobCtx, cancel := context.WithCancel(m.base)
	j := &job{
		id:      uuid.NewString(),
		snap:    snap,
		sink:    sink,
		state:   JobQueued,
		cancel:  cancel,
		done:    make(chan struct{}),
		created: time.Now(),
	}
	m.jobs[j.id] = j
	m.wg.Add(1)
	m.mu.Unlock()

	logging.WithFields(ctx,
		"export_job", j.id,
		"table", snap.Table.Key,
		"format", snap.Request.Format.String(),
		"rows", len(snap.Rows),
	).Info("export job queued")

	go m.run(jobCtx, j)
	return j.id, nil
}

func (m *Manager) run(ctx context.Context, j *job) {
	defer m.wg.Done()
	defer close(j.done)
	defer j.cancel()

	logger := logging.WithFields(ctx, "export_job", j.id)

	if err := m.limiter.Acquire(ctx); err != nil {
		if ctx.Err() != nil {
			err = ErrCancelled
		}
		j.finish(nil, err)
		logger.Warn("export job not started", "error", err)
		return
	}
	defer m.limiter.Release()

	if !j.transition(JobRunning) {
		return
	}

	r, err := m.engine.Render(ctx, j.snap)
	if err != nil {
		j.finish(nil, err)
		logger.Error("export job failed", "stage", "render", "error", err)
		return
	}

	if !j.transition(JobDelivering) {
		logger.Info("export job cancelled before delivery")
		return
	}

	var res *Result
	if j.sink != nil {
		res, err = m.engine.DeliverTo(ctx, r, j.sink)
	} else {
		res, err = m.engine.Deliver(ctx, r)
	}
	j.finish(res, err)
	if err != nil {
		logger.Error("export job failed", "stage", "deliver", "error", err)
	}
}

// Cancel abandons a queued or running job. It reports false when the job is
// unknown, already finished, or delivering.
func (m *Manager) Cancel(id string) bool {
	m.mu.RLock()
	j, ok := m.jobs[id]
	m.mu.RUnlock()
	if !ok {
		return false
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state != JobQueued && j.state != JobRunning {
		return false
	}
	j.state = JobCancelled
	j.err = ErrCancelled
	j.finished = time.Now()
	j.cancel()
	return true
}

// Status returns the current status of a job.
func (m *Manager) Status(id string) (JobStatus, error) {
	m.mu.RLock()
	j, ok := m.jobs[id]
	m.mu.RUnlock()
	if !ok {
		return JobStatus{}, ErrJobNotFound
	}
	return j.status(), nil
}

// Wait blocks until the job's goroutine exits or ctx is done.
func (m *Manager) Wait(ctx context.Context, id string) (JobStatus, error) {
	m.mu.RLock()
	j, ok := m.jobs[id]
	m.mu.RUnlock()
	if !ok {
		return JobStatus{}, ErrJobNotFound
	}

	select {
	case <-j.done:
		return j.status(), nil
	case <-ctx.Done():
		return j.status(), ctx.Err()
	}
}

// List returns every retained job, oldest first.
func (m *Manager) List() []JobStatus {
	m.mu.RLock()
	out := make([]JobStatus, 0, len(m.jobs))
	for _, j := range m.jobs {
		out = append(out, j.status())
	}
	m.mu.RUnlock()

	sort.Slice(out, func(a, b int) bool {
		return out[a].CreatedAt.Before(out[b].CreatedAt)
	})
	return out
}

// Active returns the number of jobs not yet in a terminal state.
func (m *Manager) Active() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, j := range m.jobs {
		j.mu.Lock()
		if !j.state.Terminal() {
			n++
		}
		j.mu.Unlock()
	}
	return n
}

// Shutdown stops accepting jobs and waits for running ones. When ctx expires
// first, remaining jobs are cancelled.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.stop()
		return nil
	case <-ctx.Done():
		m.mu.RLock()
		ids := make([]string, 0, len(m.jobs))
		for id := range m.jobs {
			ids = append(ids, id)
		}
		m.mu.RUnlock()
		for _, id := range ids {
			m.Cancel(id)
		}
		m.stop()
		<-done
		return ctx.Err()
	}
}

// pruneLocked drops terminal jobs older than the retention window.
func (m *Manager) pruneLocked() {
	cutoff := time.Now().Add(-m.retention)
	for id, j := range m.jobs {
		j.mu.Lock()
		expired := j.state.Terminal() && !j.finished.IsZero() && j.finished.Before(cutoff)
		j.mu.Unlock()
		if expired {
			delete(m.jobs, id)
		}
	}
}
