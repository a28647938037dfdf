package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Runner executes queued runs in the background.
type Runner struct {
	runs      *RunStore
	queue     chan *Run
	coord     *Coordinator
	log       *slog.Logger
	reportDir string
	workers   int

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRunner creates a runner over coord. Reports are saved to reportDir
// when it is set. Runs execute one at a time unless concurrency > 1; each
// run already uses the coordinator's worker pool.
func NewRunner(coord *Coordinator, queueSize, concurrency int, ttl time.Duration, reportDir string, log *slog.Logger) *Runner {
	if queueSize <= 0 {
		queueSize = 16
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Runner{
		runs:      NewRunStore(ttl),
		queue:     make(chan *Run, queueSize),
		coord:     coord,
		log:       log,
		reportDir: reportDir,
		workers:   concurrency,
	}
}

// Start launches the run loop.
func (rn *Runner) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	rn.cancel = cancel

	for range rn.workers {
		rn.wg.Add(1)
		go func() {
			defer rn.wg.Done()
			for {
				select {
				case <-runCtx.Done():
					return
				case r, ok := <-rn.queue:
					if !ok {
						return
					}
					rn.execute(runCtx, r)
				}
			}
		}()
	}

	// Start run store cleanup.
	rn.wg.Add(1)
	go func() {
		defer rn.wg.Done()
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				rn.runs.Cleanup()
			}
		}
	}()
}

// Stop cancels active runs and waits for the loop to exit.
func (rn *Runner) Stop() {
	if rn.cancel != nil {
		rn.cancel()
	}
	close(rn.queue)
	rn.wg.Wait()
	// Cancel runs no worker picked up.
	for r := range rn.queue {
		if r.Cancel() {
			rn.log.Info("cancelled queued run on shutdown", "run", r.ID)
		}
	}
}

// Submit queues a run.
func (rn *Runner) Submit(r *Run) error {
	rn.runs.Put(r)
	select {
	case rn.queue <- r:
		return nil
	default:
		r.setState(RunFailed, "queue_full")
		return fmt.Errorf("run queue is full (%d)", cap(rn.queue))
	}
}

// Get returns a run by ID.
func (rn *Runner) Get(id string) *Run {
	return rn.runs.Get(id)
}

// QueueDepth returns current queue depth.
func (rn *Runner) QueueDepth() int {
	return len(rn.queue)
}

// Coordinator returns the coordinator runs execute on.
func (rn *Runner) Coordinator() *Coordinator {
	return rn.coord
}

func (rn *Runner) execute(ctx context.Context, r *Run) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if !r.start(cancel) {
		return
	}
	log := rn.log.With("run", r.ID)

	coord := rn.coord
	if r.Request.UseCache != nil {
		coord = coord.WithCache(*r.Request.UseCache)
	}
	progress := func(done, total int, _ ProcessingResult) { r.setProgress(done, total) }

	var (
		rep BatchReport
		err error
	)
	if r.Request.Directory != "" {
		rep, err = coord.RunDirectoryObserved(ctx, r.Request.Directory, progress)
	} else {
		sources := make([]Source, len(r.Request.Paths))
		for i, p := range r.Request.Paths {
			sources[i] = Source{Path: p}
		}
		rep, err = coord.RunObserved(ctx, sources, progress)
	}
	if err != nil {
		log.Error("run failed", "error", err)
		r.setState(RunFailed, err.Error())
		return
	}

	var reportPath string
	if rn.reportDir != "" {
		jsonPath, _, err := SaveReport(rn.reportDir, rep)
		if err != nil {
			log.Error("save report failed", "error", err)
		} else {
			reportPath = jsonPath
		}
	}
	r.finish(rep, reportPath)
}
