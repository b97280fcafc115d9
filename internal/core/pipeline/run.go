package pipeline

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kirillkom/pii-redactor/internal/core/domain"
)

// Run is one upload action: the source file, its latest state and an in-flight flag that
// rejects re-submission while an attempt is executing. A retry re-executes from the first
// phase with the same file.
type Run struct {
	id    string
	owner string
	file  domain.SourceFile

	inFlight atomic.Bool

	mu        sync.Mutex
	attempt   int
	state     State
	startedAt time.Time
	updatedAt time.Time
}

func NewRun(id, owner string, file domain.SourceFile, now time.Time) *Run {
	return &Run{
		id:        id,
		owner:     owner,
		file:      file,
		state:     Initial(),
		startedAt: now,
		updatedAt: now,
	}
}

func (r *Run) ID() string    { return r.id }
func (r *Run) Owner() string { return r.owner }

func (r *Run) File() domain.SourceFile { return r.file }

// Begin claims the run for a new attempt. It fails while another attempt is in flight and
// once the run has completed successfully.
func (r *Run) Begin(now time.Time) error {
	if !r.inFlight.CompareAndSwap(false, true) {
		return domain.WrapError(domain.ErrInvalidTransition, "begin run", errors.New("run already in flight"))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state.Phase == PhaseComplete {
		r.inFlight.Store(false)
		return domain.WrapError(domain.ErrInvalidTransition, "begin run", errors.New("run already complete"))
	}
	r.attempt++
	r.state = Initial()
	r.startedAt = now
	r.updatedAt = now
	return nil
}

// End releases the in-flight flag.
func (r *Run) End() {
	r.inFlight.Store(false)
}

func (r *Run) InFlight() bool {
	return r.inFlight.Load()
}

// Observe records the latest state reported by the pipeline.
func (r *Run) Observe(state State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = state
	r.updatedAt = time.Now().UTC()
}

func (r *Run) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Snapshot{
		RunID:     r.id,
		FileName:  r.file.Name,
		Owner:     r.owner,
		Attempt:   r.attempt,
		State:     r.state,
		StartedAt: r.startedAt,
		UpdatedAt: r.updatedAt,
	}
}
