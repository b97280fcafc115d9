package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/pii-redactor/internal/core/domain"
	"github.com/kirillkom/pii-redactor/internal/core/pipeline"
	"github.com/kirillkom/pii-redactor/internal/core/ports"
)

const defaultRunTimeout = 5 * time.Minute

// PipelineRunnerUseCase executes pipeline runs in background goroutines and keeps them in a
// run store so that clients can poll progress and retry failed runs with the same file.
type PipelineRunnerUseCase struct {
	processor ports.DocumentProcessor
	identity  ports.IdentityProvider
	runs      ports.RunStore
	observer  ports.ProgressObserver
	timeout   time.Duration
	logger    *slog.Logger
	now       func() time.Time

	wg sync.WaitGroup
}

// NewPipelineRunnerUseCase wires the runner. observer is optional and receives every state of
// every run in addition to the run itself.
func NewPipelineRunnerUseCase(
	processor ports.DocumentProcessor,
	identity ports.IdentityProvider,
	runs ports.RunStore,
	observer ports.ProgressObserver,
	timeout time.Duration,
	logger *slog.Logger,
) *PipelineRunnerUseCase {
	if timeout <= 0 {
		timeout = defaultRunTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PipelineRunnerUseCase{
		processor: processor,
		identity:  identity,
		runs:      runs,
		observer:  observer,
		timeout:   timeout,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (uc *PipelineRunnerUseCase) Start(ctx context.Context, file domain.SourceFile) (pipeline.Snapshot, error) {
	if _, err := file.Kind(); err != nil {
		return pipeline.Snapshot{}, err
	}
	user, err := uc.identity.CurrentUser(ctx)
	if err != nil {
		return pipeline.Snapshot{}, fmt.Errorf("resolve current user: %w", err)
	}

	run := pipeline.NewRun(uuid.NewString(), user.Email, file, uc.now())
	uc.runs.Save(run)
	if err := uc.launch(ctx, run); err != nil {
		return pipeline.Snapshot{}, err
	}
	return run.Snapshot(), nil
}

// Retry re-executes a failed run from the first phase with the original file.
func (uc *PipelineRunnerUseCase) Retry(ctx context.Context, runID string) (pipeline.Snapshot, error) {
	run, err := uc.ownedRun(ctx, runID)
	if err != nil {
		return pipeline.Snapshot{}, err
	}
	// A run reports the error phase before its goroutine has released the run.
	if run.InFlight() {
		return pipeline.Snapshot{}, domain.WrapError(
			domain.ErrInvalidTransition,
			"retry run",
			fmt.Errorf("run %s is still in flight", runID),
		)
	}
	if phase := run.Snapshot().Phase; phase != pipeline.PhaseError {
		return pipeline.Snapshot{}, domain.WrapError(
			domain.ErrInvalidTransition,
			"retry run",
			fmt.Errorf("run %s is in phase %q", runID, phase),
		)
	}
	uc.runs.Save(run)
	if err := uc.launch(ctx, run); err != nil {
		return pipeline.Snapshot{}, err
	}
	return run.Snapshot(), nil
}

func (uc *PipelineRunnerUseCase) Status(ctx context.Context, runID string) (pipeline.Snapshot, error) {
	run, err := uc.ownedRun(ctx, runID)
	if err != nil {
		return pipeline.Snapshot{}, err
	}
	return run.Snapshot(), nil
}

// Wait blocks until every launched run has finished.
func (uc *PipelineRunnerUseCase) Wait() {
	uc.wg.Wait()
}

func (uc *PipelineRunnerUseCase) launch(ctx context.Context, run *pipeline.Run) error {
	if err := run.Begin(uc.now()); err != nil {
		return err
	}

	// The request context ends with the response; keep its values (identity) but not its cancel.
	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), uc.timeout)
	observer := multiObserver{run}
	if uc.observer != nil {
		observer = append(observer, uc.observer)
	}

	uc.wg.Add(1)
	go func() {
		defer uc.wg.Done()
		defer cancel()
		defer run.End()

		doc, err := uc.processor.Process(runCtx, run.File(), observer)
		snapshot := run.Snapshot()
		if err != nil {
			uc.logger.Warn("pipeline run failed",
				slog.String("run_id", run.ID()),
				slog.Int("attempt", snapshot.Attempt),
				slog.String("failed_phase", string(snapshot.FailedPhase)),
				slog.String("document_id", doc.ID),
				slog.String("error", err.Error()),
			)
			return
		}
		uc.logger.Info("pipeline run complete",
			slog.String("run_id", run.ID()),
			slog.Int("attempt", snapshot.Attempt),
			slog.String("document_id", doc.ID),
			slog.Int("findings", len(doc.Findings)),
		)
	}()
	return nil
}

func (uc *PipelineRunnerUseCase) ownedRun(ctx context.Context, runID string) (*pipeline.Run, error) {
	user, err := uc.identity.CurrentUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve current user: %w", err)
	}
	run, ok := uc.runs.Get(runID)
	if !ok || run.Owner() != user.Email {
		return nil, domain.WrapError(domain.ErrRunNotFound, "get run", errors.New(runID))
	}
	return run, nil
}

type multiObserver []ports.ProgressObserver

func (m multiObserver) Observe(state pipeline.State) {
	for _, o := range m {
		o.Observe(state)
	}
}
