package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nemanja-m/parmr/internal/runs/core"
	"github.com/nemanja-m/parmr/internal/shared/logging"
	mrcore "github.com/nemanja-m/parmr/pkg/core"
	"github.com/nemanja-m/parmr/pkg/jobs"
	"github.com/nemanja-m/parmr/pkg/local"
)

var (
	ErrUnknownJob    = errors.New("unknown job")
	ErrInvalidParams = errors.New("invalid job parameters")
	ErrNoInputFiles  = errors.New("no input files found")
	ErrShuttingDown  = errors.New("run service is shutting down")

	ErrInputOutsideRoot = errors.New("input outside of input root")
)

type SubmitRequest struct {
	Job    string
	Params map[string]string
	Inputs []string
}

type RunService interface {
	SubmitRun(req SubmitRequest) (*core.Run, error)
	GetRun(id uuid.UUID) (*core.Run, error)
	GetRuns(filter core.RunFilter) ([]*core.Run, int, error)
	// Shutdown cancels runs still in progress and waits for them to stop.
	Shutdown(ctx context.Context) error
}

type Options struct {
	// OutputDir receives one subdirectory per run, named after the run ID.
	OutputDir  string
	Partitions int
	// InputRoot confines input patterns. Relative patterns are resolved
	// against it and matches outside of it are rejected. Empty means no
	// confinement.
	InputRoot string
	// EngineOptions are passed to every run, e.g. tracer and meter.
	EngineOptions []local.Option
}

type runService struct {
	store  core.RunStore
	logger logging.Logger
	opts   Options

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	closing bool
	wg      sync.WaitGroup
}

func NewRunService(store core.RunStore, logger logging.Logger, opts Options) RunService {
	ctx, cancel := context.WithCancel(context.Background())
	return &runService{
		store:  store,
		logger: logger,
		opts:   opts,
		ctx:    ctx,
		cancel: cancel,
	}
}

// SubmitRun validates the request, records a new run and starts it in the
// background. The returned run is in the CREATED status.
func (s *runService) SubmitRun(req SubmitRequest) (*core.Run, error) {
	job, err := jobs.Get(req.Job)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownJob, req.Job)
	}
	if err := job.Configure(req.Params); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}

	files, err := resolveInputs(s.opts.InputRoot, req.Inputs)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: %v", ErrNoInputFiles, req.Inputs)
	}

	run := core.NewRun(req.Job, req.Params, req.Inputs)
	run.Files = files
	run.Output = filepath.Join(s.opts.OutputDir, run.ID.String())

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return nil, ErrShuttingDown
	}
	if err := s.store.SaveRun(run); err != nil {
		return nil, err
	}

	s.logger.Info("Run submitted",
		"run_id", run.ID.String(),
		"job", run.Job,
		"num_files", len(files),
		"output", run.Output,
	)

	s.wg.Go(func() { s.execute(job, run.Clone()) })
	return run, nil
}

// resolveInputs expands patterns into files under root.
func resolveInputs(root string, patterns []string) ([]string, error) {
	if root == "" {
		return local.FindFiles(patterns...)
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve input root: %w", err)
	}

	anchored := make([]string, 0, len(patterns))
	for _, pattern := range patterns {
		full := pattern
		if !filepath.IsAbs(full) {
			full = filepath.Join(absRoot, full)
		}
		if !within(absRoot, filepath.Clean(full)) {
			return nil, fmt.Errorf("%w: %s", ErrInputOutsideRoot, pattern)
		}
		anchored = append(anchored, full)
	}

	files, err := local.FindFiles(anchored...)
	if err != nil || len(files) == 0 {
		return files, err
	}

	// Symlinks may point anywhere, so matches are checked on their targets.
	realRoot, err := filepath.EvalSymlinks(absRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve input root: %w", err)
	}
	for _, file := range files {
		target, err := filepath.EvalSymlinks(file)
		if err != nil {
			return nil, err
		}
		if !within(realRoot, target) {
			return nil, fmt.Errorf("%w: %s", ErrInputOutsideRoot, file)
		}
	}
	return files, nil
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	return err == nil && filepath.IsLocal(rel)
}

func (s *runService) execute(job jobs.Job, run *core.Run) {
	opts := append([]local.Option{
		local.WithRunID(run.ID),
		local.WithLogger(s.logger),
		local.WithObserver(&storeObserver{store: s.store, logger: s.logger}),
	}, s.opts.EngineOptions...)

	err := job.Run(s.ctx, jobs.Request{
		Files:      run.Files,
		Output:     run.Output,
		Partitions: s.opts.Partitions,
		Options:    opts,
	})
	if err != nil {
		s.logger.Error("Run failed", "run_id", run.ID.String(), "job", run.Job, "error", err)
	} else {
		s.logger.Info("Run completed", "run_id", run.ID.String(), "job", run.Job)
	}

	updateErr := s.store.UpdateRun(run.ID, func(r *core.Run) {
		now := time.Now().UTC()
		if err == nil {
			r.Transition(mrcore.RunStatusCompleted, now)
			return
		}
		r.Errors = append(r.Errors, runErrors(err, now)...)
		r.Transition(mrcore.RunStatusFailed, now)
	})
	if updateErr != nil {
		s.logger.Error("Failed to record run result", "run_id", run.ID.String(), "error", updateErr)
	}
}

// runErrors flattens a phase error into one entry per failed task.
func runErrors(err error, at time.Time) []core.RunError {
	var phaseErr *mrcore.PhaseError
	if !errors.As(err, &phaseErr) {
		return []core.RunError{{Error: err.Error(), Timestamp: at}}
	}
	errs := make([]core.RunError, 0, len(phaseErr.Errs))
	for _, e := range phaseErr.Errs {
		errs = append(errs, core.RunError{Phase: phaseErr.Phase, Error: e.Error(), Timestamp: at})
	}
	return errs
}

func (s *runService) GetRun(id uuid.UUID) (*core.Run, error) {
	return s.store.GetRunByID(id)
}

func (s *runService) GetRuns(filter core.RunFilter) ([]*core.Run, int, error) {
	return s.store.GetRuns(filter)
}

func (s *runService) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closing = true
	s.mu.Unlock()
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
