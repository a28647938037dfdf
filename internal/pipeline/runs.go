package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// RunState is the lifecycle state of a queued run.
type RunState string

const (
	RunQueued    RunState = "queued"
	RunRunning   RunState = "running"
	RunCompleted RunState = "completed"
	RunCancelled RunState = "cancelled"
	RunFailed    RunState = "failed"
)

// RunRequest names the inputs of a run: a directory, or explicit paths.
type RunRequest struct {
	Directory string   `json:"directory,omitempty"`
	Paths     []string `json:"paths,omitempty"`
	UseCache  *bool    `json:"use_cache,omitempty"`
}

// RunProgress counts finished files.
type RunProgress struct {
	Total int `json:"total"`
	Done  int `json:"done"`
}

// Run tracks one asynchronous batch run.
type Run struct {
	mu sync.Mutex

	ID      string
	Request RunRequest

	state      RunState
	progress   RunProgress
	report     *BatchReport
	err        string
	reportPath string
	createdAt  time.Time
	updatedAt  time.Time

	cancel context.CancelFunc
}

// NewRun returns a queued run with a fresh ID.
func NewRun(req RunRequest) *Run {
	now := time.Now()
	return &Run{
		ID:        uuid.NewString(),
		Request:   req,
		state:     RunQueued,
		createdAt: now,
		updatedAt: now,
	}
}

func (r *Run) setState(s RunState, errMsg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = s
	if errMsg != "" {
		r.err = errMsg
	}
	r.updatedAt = time.Now()
}

func (r *Run) setProgress(done, total int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress = RunProgress{Total: total, Done: done}
	r.updatedAt = time.Now()
}

func (r *Run) finish(rep BatchReport, reportPath string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.report = &rep
	r.reportPath = reportPath
	r.progress = RunProgress{Total: rep.Total, Done: rep.Total}
	if rep.Cancelled {
		r.state = RunCancelled
	} else {
		r.state = RunCompleted
	}
	r.updatedAt = time.Now()
}

// start moves a queued run to running. It fails if the run was cancelled
// while queued.
func (r *Run) start(cancel context.CancelFunc) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != RunQueued {
		return false
	}
	r.cancel = cancel
	r.state = RunRunning
	r.updatedAt = time.Now()
	return true
}

// Cancel stops a queued or running run. Files already started finish.
func (r *Run) Cancel() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch r.state {
	case RunQueued:
		r.state = RunCancelled
		r.updatedAt = time.Now()
		return true
	case RunRunning:
		if r.cancel != nil {
			r.cancel()
		}
		return true
	default:
		return false
	}
}

// Report returns the finished report, if any.
func (r *Run) Report() (BatchReport, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.report == nil {
		return BatchReport{}, false
	}
	return *r.report, true
}

// RunSnapshot is a read-only, JSON-safe copy of run state.
type RunSnapshot struct {
	ID         string       `json:"run_id"`
	State      RunState     `json:"state"`
	Request    RunRequest   `json:"request"`
	Progress   RunProgress  `json:"progress"`
	Error      string       `json:"error,omitempty"`
	ReportPath string       `json:"report_path,omitempty"`
	Report     *BatchReport `json:"report,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

// Snapshot returns a JSON-safe copy of the run state.
func (r *Run) Snapshot() RunSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := RunSnapshot{
		ID:         r.ID,
		State:      r.state,
		Request:    r.Request,
		Progress:   r.progress,
		Error:      r.err,
		ReportPath: r.reportPath,
		CreatedAt:  r.createdAt,
		UpdatedAt:  r.updatedAt,
	}
	if r.report != nil {
		rep := *r.report
		s.Report = &rep
	}
	return s
}

func (r *Run) lastUpdate() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.updatedAt
}

// RunStore is a thread-safe in-memory run registry with TTL eviction.
type RunStore struct {
	mu   sync.Mutex
	runs map[string]*Run
	ttl  time.Duration
}

func NewRunStore(ttl time.Duration) *RunStore {
	return &RunStore{
		runs: make(map[string]*Run),
		ttl:  ttl,
	}
}

func (s *RunStore) Put(r *Run) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[r.ID] = r
}

func (s *RunStore) Get(id string) *Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs[id]
}

// Cleanup removes finished runs not updated within the TTL.
func (s *RunStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, r := range s.runs {
		st := r.Snapshot().State
		if st == RunQueued || st == RunRunning {
			continue
		}
		if now.Sub(r.lastUpdate()) > s.ttl {
			delete(s.runs, id)
		}
	}
}
