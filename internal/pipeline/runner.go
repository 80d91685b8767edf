package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/scholarlab/paperparse/internal/docmodel"
	"github.com/scholarlab/paperparse/internal/layout"
	"github.com/scholarlab/paperparse/internal/pdfsource"
	"github.com/scholarlab/paperparse/internal/remoteparse"
	"github.com/scholarlab/paperparse/internal/store"
)

// ErrAlreadyRunning rejects a submit for a document that already has an
// extraction in flight. At most one run per document exists at a time.
var ErrAlreadyRunning = errors.New("extraction already in flight for this document")

// ErrStopped rejects submits that race runner shutdown.
var ErrStopped = errors.New("extraction runner is stopped")

// Job is one queued extraction request.
type Job struct {
	DocID uuid.UUID
	Path  string
}

// RunnerConfig sizes the background worker pool.
type RunnerConfig struct {
	WorkerCount  int
	MaxQueueSize int
}

// Runner owns the worker pool that drains the extraction queue. It tracks
// in-flight documents so a run can be cancelled when its document is
// deleted mid-extraction.
type Runner struct {
	source    *pdfsource.Source
	remote    *remoteparse.Client
	cls       *layout.Classifier
	st        *store.Store
	log       *slog.Logger
	cfg       RunnerConfig
	queue     chan Job

	mu       sync.Mutex
	inflight map[uuid.UUID]*runState
	stopped  bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type runState struct {
	cancelled bool
	cancel    context.CancelFunc
}

// NewRunner creates a stopped runner. remote may be nil for offline
// operation; the remote stages are then skipped.
func NewRunner(source *pdfsource.Source, remote *remoteparse.Client, cls *layout.Classifier, st *store.Store, cfg RunnerConfig, log *slog.Logger) *Runner {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	if cfg.WorkerCount < 1 {
		cfg.WorkerCount = 2
	}
	if cfg.MaxQueueSize < 1 {
		cfg.MaxQueueSize = 64
	}
	return &Runner{
		source:   source,
		remote:   remote,
		cls:      cls,
		st:       st,
		log:      log,
		cfg:      cfg,
		queue:    make(chan Job, cfg.MaxQueueSize),
		inflight: make(map[uuid.UUID]*runState),
	}
}

// Start launches the worker goroutines.
func (r *Runner) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	for range r.cfg.WorkerCount {
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			for {
				select {
				case <-workerCtx.Done():
					return
				case job, ok := <-r.queue:
					if !ok {
						return
					}
					r.process(workerCtx, job)
				}
			}
		}()
	}
}

// Stop drains the pool gracefully. Submits racing the shutdown fail with
// ErrStopped; Stop is idempotent.
func (r *Runner) Stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	close(r.queue)
	r.mu.Unlock()

	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
}

// Submit queues an extraction for the document. It fails when a run for
// the same document is already queued or executing, when the queue is
// full, and after Stop. The queue send happens under the mutex so it
// cannot race the close in Stop.
func (r *Runner) Submit(job Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		return ErrStopped
	}
	if _, ok := r.inflight[job.DocID]; ok {
		return ErrAlreadyRunning
	}

	select {
	case r.queue <- job:
		r.inflight[job.DocID] = &runState{}
		return nil
	default:
		return fmt.Errorf("extraction queue is full (%d)", r.cfg.MaxQueueSize)
	}
}

// Cancel aborts a queued or executing run for the document. It reports
// whether a run was actually in flight.
func (r *Runner) Cancel(docID uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	state, ok := r.inflight[docID]
	if !ok {
		return false
	}
	state.cancelled = true
	if state.cancel != nil {
		state.cancel()
	}
	return true
}

// InFlight reports whether the document currently has a queued or
// executing run.
func (r *Runner) InFlight(docID uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.inflight[docID]
	return ok
}

func (r *Runner) clearInflight(docID uuid.UUID) {
	r.mu.Lock()
	delete(r.inflight, docID)
	r.mu.Unlock()
}

// process runs the full fallback chain for one job and persists the
// result.
func (r *Runner) process(ctx context.Context, job Job) {
	defer r.clearInflight(job.DocID)
	log := r.log.With("doc_id", job.DocID)

	r.mu.Lock()
	state := r.inflight[job.DocID]
	if state == nil || state.cancelled {
		r.mu.Unlock()
		log.Info("run cancelled before start")
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	state.cancel = cancel
	r.mu.Unlock()
	defer cancel()

	if err := r.st.SetStatus(runCtx, job.DocID, store.DocProcessing); err != nil {
		log.Error("status update failed", "error", err)
		return
	}

	start := time.Now()
	doc, err := r.source.Load(job.Path)
	if err != nil {
		log.Error("load failed", "error", err)
		outcome := docmodel.ExtractionOutcome{
			Status:  docmodel.StatusFailed,
			Elapsed: time.Since(start),
			Attempts: []docmodel.Attempt{{
				Method: "load",
				Error:  err.Error(),
			}},
		}
		if err := r.st.MarkFailed(context.WithoutCancel(runCtx), job.DocID, outcome); err != nil {
			log.Error("mark failed errored", "error", err)
		}
		return
	}

	controller := NewController(DefaultStages(doc, r.remote, r.cls), log)
	result, err := controller.Extract(runCtx)

	switch {
	case errors.Is(err, context.Canceled):
		log.Info("run cancelled", "elapsed", time.Since(start))
		return

	case err != nil:
		outcome := docmodel.ExtractionOutcome{
			Status:  docmodel.StatusFailed,
			Elapsed: time.Since(start),
		}
		var allFailed *AllMethodsFailedError
		if errors.As(err, &allFailed) {
			outcome.Attempts = allFailed.Attempts
		}
		log.Error("extraction failed", "error", err)
		if err := r.st.MarkFailed(context.WithoutCancel(runCtx), job.DocID, outcome); err != nil {
			log.Error("mark failed errored", "error", err)
		}

	default:
		// Persist with a fresh context so a cancel that lands after the
		// extraction finished cannot tear the write.
		if err := r.st.SaveResult(context.WithoutCancel(runCtx), job.DocID, doc.Pages, doc.Size, result); err != nil {
			log.Error("save failed", "error", err)
			return
		}
		log.Info("document processed",
			"method", result.Outcome.Method,
			"sections", len(result.Sections),
			"references", len(result.References),
			"figures", len(result.Figures),
			"elapsed", time.Since(start))
	}
}
