package core

// StepStatus represents the execution status of a step or workflow
type StepStatus int

const (
	StatusPending StepStatus = iota // Not yet started
	StatusRunning                   // Currently executing
	StatusPassed                    // Completed successfully
	StatusFailed                    // Workflow-fatal failure
	StatusSkipped                   // Optional outcome, unmet when/unless, or an earlier step failed
)

// String returns the string representation of StepStatus
func (s StepStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusPassed:
		return "passed"
	case StatusFailed:
		return "failed"
	case StatusSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// MarshalText renders the status by name in JSON and XML reports.
func (s StepStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// IsTerminal returns true if the status is a final state
func (s StepStatus) IsTerminal() bool {
	switch s {
	case StatusPassed, StatusFailed, StatusSkipped:
		return true
	default:
		return false
	}
}

// Stage is the position of a step inside its Locating → Waiting → Acting → Verifying cycle.
type Stage string

// Stage values.
const (
	StagePending   Stage = "Pending"
	StageLocating  Stage = "Locating"
	StageWaiting   Stage = "Waiting"
	StageActing    Stage = "Acting"
	StageVerifying Stage = "Verifying"
	StageDone      Stage = "Done"
	StageFailed    Stage = "Failed"
)

// OutcomeKind tags a StepOutcome.
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeSkipped
	OutcomeNotFound
	OutcomeTimeout
	OutcomeActionFailed
)

// String returns the string representation of OutcomeKind
func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeTimeout:
		return "timeout"
	case OutcomeActionFailed:
		return "action_failed"
	default:
		return "unknown"
	}
}

func (k OutcomeKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// ErrorCategory classifies the type of error for better debugging and reporting
type ErrorCategory int

const (
	ErrCategoryNone           ErrorCategory = iota // No error
	ErrCategoryNotFound                            // Locator exhausted every strategy
	ErrCategoryTimeout                             // Condition never became true
	ErrCategoryAction                              // Interaction or assertion failed after the target was found
	ErrCategoryAuthentication                      // Login post-condition never satisfied
	ErrCategoryRecorder                            // Diagnostics capture failed
	ErrCategorySession                             // Session closed or could not be opened
	ErrCategoryConfig                              // Invalid configuration or workflow definition
)

// String returns the string representation of ErrorCategory
func (c ErrorCategory) String() string {
	switch c {
	case ErrCategoryNone:
		return "none"
	case ErrCategoryNotFound:
		return "not_found"
	case ErrCategoryTimeout:
		return "timeout"
	case ErrCategoryAction:
		return "action"
	case ErrCategoryAuthentication:
		return "authentication"
	case ErrCategoryRecorder:
		return "recorder"
	case ErrCategorySession:
		return "session"
	case ErrCategoryConfig:
		return "config"
	default:
		return "unknown"
	}
}

// Outcome maps an error category to the step outcome it produces.
func (c ErrorCategory) Outcome() OutcomeKind {
	switch c {
	case ErrCategoryNone:
		return OutcomeSuccess
	case ErrCategoryNotFound:
		return OutcomeNotFound
	case ErrCategoryTimeout:
		return OutcomeTimeout
	default:
		return OutcomeActionFailed
	}
}
