// Package pipeline holds the document processing state machine: typed phases, progress targets
// and a pure transition function. Collaborator calls live in the use case that drives it.
package pipeline

import (
	"fmt"
	"time"

	"github.com/kirillkom/pii-redactor/internal/core/domain"
)

type Phase string

const (
	PhaseIdle              Phase = "idle"
	PhaseUploading         Phase = "uploading"
	PhaseCreatingRecord    Phase = "creating_record"
	PhaseExtractingContent Phase = "extracting_content"
	PhaseAnalyzingPII      Phase = "analyzing_pii"
	PhaseFinalizing        Phase = "finalizing"
	PhaseComplete          Phase = "complete"
	PhaseError             Phase = "error"
)

var progressTargets = map[Phase]int{
	PhaseIdle:              0,
	PhaseUploading:         20,
	PhaseCreatingRecord:    30,
	PhaseExtractingContent: 50,
	PhaseAnalyzingPII:      70,
	PhaseFinalizing:        90,
	PhaseComplete:          100,
}

// ProgressTarget is the progress value reported when a phase starts.
func (p Phase) ProgressTarget() int {
	return progressTargets[p]
}

func (p Phase) Terminal() bool {
	return p == PhaseComplete || p == PhaseError
}

// Active reports whether a collaborator call for this phase may be in flight.
func (p Phase) Active() bool {
	switch p {
	case PhaseUploading, PhaseCreatingRecord, PhaseExtractingContent, PhaseAnalyzingPII, PhaseFinalizing:
		return true
	default:
		return false
	}
}

type EventKind string

const (
	EventStart         EventKind = "start"
	EventUploaded      EventKind = "uploaded"
	EventRecordCreated EventKind = "record_created"
	EventExtracted     EventKind = "extracted"
	EventDetected      EventKind = "detected"
	EventFinalized     EventKind = "finalized"
	EventFailed        EventKind = "failed"
)

// Event is the outcome of one collaborator call (or the start of an attempt).
type Event struct {
	Kind       EventKind
	SourceURI  string
	DocumentID string
	Err        error
}

type State struct {
	Phase       Phase  `json:"phase"`
	Progress    int    `json:"progress"`
	SourceURI   string `json:"source_uri,omitempty"`
	DocumentID  string `json:"document_id,omitempty"`
	FailedPhase Phase  `json:"failed_phase,omitempty"`
	Error       string `json:"error,omitempty"`
}

func Initial() State {
	return State{Phase: PhaseIdle}
}

// successors maps each active phase to the event that completes it and the phase that follows.
var successors = map[Phase]struct {
	on   EventKind
	next Phase
}{
	PhaseUploading:         {on: EventUploaded, next: PhaseCreatingRecord},
	PhaseCreatingRecord:    {on: EventRecordCreated, next: PhaseExtractingContent},
	PhaseExtractingContent: {on: EventExtracted, next: PhaseAnalyzingPII},
	PhaseAnalyzingPII:      {on: EventDetected, next: PhaseFinalizing},
	PhaseFinalizing:        {on: EventFinalized, next: PhaseComplete},
}

// Transition is the pure state function of a pipeline run. Start is accepted from idle and from
// terminal phases and begins a fresh attempt; every other event must match the current phase.
func Transition(s State, e Event) (State, error) {
	switch e.Kind {
	case EventStart:
		if s.Phase.Active() {
			return s, invalid(s, e)
		}
		return State{Phase: PhaseUploading, Progress: PhaseUploading.ProgressTarget()}, nil

	case EventFailed:
		if !s.Phase.Active() {
			return s, invalid(s, e)
		}
		next := s
		next.Phase = PhaseError
		next.FailedPhase = s.Phase
		if e.Err != nil {
			next.Error = e.Err.Error()
		}
		return next, nil
	}

	step, ok := successors[s.Phase]
	if !ok || step.on != e.Kind {
		return s, invalid(s, e)
	}

	next := s
	next.Phase = step.next
	if target := step.next.ProgressTarget(); target > next.Progress {
		next.Progress = target
	}
	switch e.Kind {
	case EventUploaded:
		next.SourceURI = e.SourceURI
	case EventRecordCreated:
		next.DocumentID = e.DocumentID
	}
	return next, nil
}

func invalid(s State, e Event) error {
	return domain.WrapError(domain.ErrInvalidTransition, "pipeline transition", fmt.Errorf("event %q in phase %q", e.Kind, s.Phase))
}

// Snapshot is the externally visible view of one run.
type Snapshot struct {
	RunID    string `json:"run_id"`
	FileName string `json:"file_name"`
	Owner    string `json:"owner,omitempty"`
	Attempt  int    `json:"attempt"`
	State
	StartedAt time.Time `json:"started_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
