package event

import "time"

// Event is anything the engine can publish on the bus.
type Event interface {
	EventName() string
}

// Handler consumes published events.
type Handler interface {
	Handle(event Event)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(event Event)

func (f HandlerFunc) Handle(event Event) { f(event) }

// Run lifecycle event names.
const (
	NameRunStarted         = "run.started"
	NameRunCompleted       = "run.completed"
	NameRunFailed          = "run.failed"
	NameRunRolledBack      = "run.rolled_back"
	NamePhaseStarted       = "phase.started"
	NamePhaseCompleted     = "phase.completed"
	NamePhaseFailed        = "phase.failed"
	NameConsensusRequested = "consensus.requested"
	NameConsensusResolved  = "consensus.resolved"
	NameBudgetRejected     = "budget.rejected"
)

// RunEvent carries the run-level lifecycle payload.
type RunEvent struct {
	Name       string    `json:"name"`
	RunID      string    `json:"runId"`
	Profile    string    `json:"profile"`
	Status     string    `json:"status"`
	OccurredAt time.Time `json:"occurredAt"`
}

func (e RunEvent) EventName() string { return e.Name }

// PhaseEvent carries phase attempt outcomes.
type PhaseEvent struct {
	Name       string    `json:"name"`
	RunID      string    `json:"runId"`
	Phase      string    `json:"phase"`
	Attempt    int       `json:"attempt"`
	Status     string    `json:"status"`
	DurationMs int64     `json:"durationMs"`
	OccurredAt time.Time `json:"occurredAt"`
}

func (e PhaseEvent) EventName() string { return e.Name }

// ConsensusEvent carries human approval gate activity.
type ConsensusEvent struct {
	Name       string    `json:"name"`
	RunID      string    `json:"runId"`
	Phase      string    `json:"phase"`
	Decision   string    `json:"decision,omitempty"`
	DecidedBy  string    `json:"decidedBy,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

func (e ConsensusEvent) EventName() string { return e.Name }

// BudgetEvent carries budget rejections for observability.
type BudgetEvent struct {
	Name       string    `json:"name"`
	Principal  string    `json:"principal"`
	RunID      string    `json:"runId"`
	Scope      string    `json:"scope"`
	Requested  int64     `json:"requested"`
	Limit      int64     `json:"limit"`
	OccurredAt time.Time `json:"occurredAt"`
}

func (e BudgetEvent) EventName() string { return e.Name }
