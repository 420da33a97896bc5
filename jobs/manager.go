// Package jobs runs scans in the background and keeps their state
// queryable until they expire.
package jobs

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fyxxlabs/sitescan/cache"
	"github.com/fyxxlabs/sitescan/models"
	"github.com/fyxxlabs/sitescan/scan"
	"github.com/fyxxlabs/sitescan/webhook"
)

// ErrNotFound is returned for unknown or expired job IDs.
var ErrNotFound = errors.New("scan not found")

// errDeleted aborts a scan whose job was deleted while running.
var errDeleted = errors.New("scan deleted")

// Runner executes one scan. *scan.Runner satisfies it.
type Runner interface {
	RunGuarded(ctx context.Context, req models.ScanRequest, sink models.ProgressSink, guard scan.Guard) (*models.ScanResult, error)
}

// Snapshot is a point-in-time copy of a job.
type Snapshot struct {
	ID        string
	URL       string
	Status    string
	Progress  models.Progress
	Result    *models.ScanResult
	Error     *models.ErrorDetail
	CacheHit  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Finished reports whether the job reached a terminal status.
func (s Snapshot) Finished() bool {
	return s.Status == models.JobSucceeded || s.Status == models.JobFailed
}

// StatusResponse converts the snapshot to its API representation.
func (s Snapshot) StatusResponse() models.ScanStatusResponse {
	return models.ScanStatusResponse{
		ID:        s.ID,
		URL:       s.URL,
		Status:    s.Status,
		Progress:  s.Progress,
		CreatedAt: s.CreatedAt.Unix(),
		UpdatedAt: s.UpdatedAt.Unix(),
		Error:     s.Error,
	}
}

type job struct {
	snap    Snapshot
	req     models.ScanRequest
	cancel  context.CancelFunc
	deleted bool
	done    chan struct{}
}

// Manager owns every job. It is safe for concurrent use.
type Manager struct {
	runner Runner
	cache  *cache.Cache
	sender *webhook.Sender
	ttl    time.Duration
	now    func() time.Time

	mu   sync.Mutex
	jobs map[string]*job
}

// Options configures a Manager. Cache and Sender may be nil.
type Options struct {
	Cache  *cache.Cache
	Sender *webhook.Sender
	TTL    time.Duration
}

// NewManager creates a Manager. Finished jobs are kept for opts.TTL.
func NewManager(runner Runner, opts Options) *Manager {
	if opts.TTL <= 0 {
		opts.TTL = time.Hour
	}
	return &Manager{
		runner: runner,
		cache:  opts.Cache,
		sender: opts.Sender,
		ttl:    opts.TTL,
		now:    time.Now,
		jobs:   make(map[string]*job),
	}
}

// Submit registers a scan and starts it in the background. A cached
// result younger than req.MaxAge completes the job immediately.
func (m *Manager) Submit(req models.ScanRequest) Snapshot {
	req.Defaults()
	now := m.now()
	j := &job{
		req:  req,
		done: make(chan struct{}),
		snap: Snapshot{
			ID:        uuid.NewString(),
			URL:       req.URL,
			Status:    models.JobQueued,
			CreatedAt: now,
			UpdatedAt: now,
		},
	}

	if m.cache != nil {
		if res, ok := m.cache.Get(cache.Key(req), req.MaxAge); ok {
			j.snap.Status = models.JobSucceeded
			j.snap.Result = res
			j.snap.CacheHit = true
			j.snap.Progress = models.Progress{Percent: 100, Step: models.StepDone, Message: "Served from cache"}
			close(j.done)
			m.mu.Lock()
			m.jobs[j.snap.ID] = j
			m.mu.Unlock()
			slog.Info("scan served from cache", "scan_id", j.snap.ID, "url", req.URL)
			m.notify(j.snap, req)
			return j.snap
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	j.cancel = cancel
	m.mu.Lock()
	m.jobs[j.snap.ID] = j
	snap := j.snap
	m.mu.Unlock()

	go m.run(ctx, j)
	return snap
}

func (m *Manager) run(ctx context.Context, j *job) {
	defer close(j.done)
	defer j.cancel()

	id := j.snap.ID
	m.update(j, func(s *Snapshot) { s.Status = models.JobRunning })
	slog.Info("scan started", "scan_id", id, "url", j.req.URL)

	sink := func(p models.Progress) {
		m.update(j, func(s *Snapshot) { s.Progress = p })
	}
	guard := func(context.Context) error {
		m.mu.Lock()
		defer m.mu.Unlock()
		if j.deleted {
			return errDeleted
		}
		return nil
	}

	res, err := m.runner.RunGuarded(ctx, j.req, sink, guard)
	if err != nil {
		detail := &models.ErrorDetail{Code: models.ErrorCode(err, models.ErrCodeInternal), Message: err.Error()}
		m.update(j, func(s *Snapshot) {
			s.Status = models.JobFailed
			s.Error = detail
		})
		slog.Warn("scan failed", "scan_id", id, "url", j.req.URL, "error", err)
	} else {
		if m.cache != nil {
			m.cache.Set(cache.Key(j.req), res)
		}
		m.update(j, func(s *Snapshot) {
			s.Status = models.JobSucceeded
			s.Result = res
		})
		slog.Info("scan finished", "scan_id", id, "url", j.req.URL, "score", res.Score, "confidence", res.Confidence)
	}

	m.mu.Lock()
	snap, deleted := j.snap, j.deleted
	m.mu.Unlock()
	if !deleted {
		m.notify(snap, j.req)
	}
}

func (m *Manager) update(j *job, fn func(*Snapshot)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(&j.snap)
	j.snap.UpdatedAt = m.now()
}

func (m *Manager) notify(snap Snapshot, req models.ScanRequest) {
	if m.sender == nil || req.WebhookURL == "" {
		return
	}
	ev := &webhook.Event{
		Type:      webhook.EventScanCompleted,
		ScanID:    snap.ID,
		URL:       snap.URL,
		Timestamp: m.now().Unix(),
		Data:      snap.Result,
	}
	if snap.Status == models.JobFailed {
		ev.Type = webhook.EventScanFailed
		ev.Data = snap.Error
	}
	m.sender.DeliverAsync(req.WebhookURL, req.WebhookSecret, ev)
}

// Get returns a snapshot of the job with the given ID.
func (m *Manager) Get(id string) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return Snapshot{}, ErrNotFound
	}
	return j.snap, nil
}

// Wait blocks until the job finishes or ctx is done.
func (m *Manager) Wait(ctx context.Context, id string) (Snapshot, error) {
	m.mu.Lock()
	j, ok := m.jobs[id]
	m.mu.Unlock()
	if !ok {
		return Snapshot{}, ErrNotFound
	}
	select {
	case <-j.done:
		return m.Get(id)
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
}

// Delete forgets a job. A running scan is cancelled and sends no webhook.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	j, ok := m.jobs[id]
	if ok {
		j.deleted = true
		delete(m.jobs, id)
	}
	m.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	if j.cancel != nil {
		j.cancel()
	}
	slog.Info("scan deleted", "scan_id", id)
	return nil
}

// Active returns the number of queued or running jobs.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, j := range m.jobs {
		if !j.snap.Finished() {
			n++
		}
	}
	return n
}

// Shutdown cancels every running scan.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, j := range m.jobs {
		if j.cancel != nil {
			j.cancel()
		}
	}
}

func (m *Manager) evictExpired() {
	cutoff := m.now().Add(-m.ttl)
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, j := range m.jobs {
		if j.snap.Finished() && j.snap.UpdatedAt.Before(cutoff) {
			delete(m.jobs, id)
		}
	}
}

// StartCleanup evicts expired jobs every 5 minutes until ctx is done.
func (m *Manager) StartCleanup(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.evictExpired()
			case <-ctx.Done():
				return
			}
		}
	}()
}
