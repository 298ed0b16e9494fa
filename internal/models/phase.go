package models

// Phase is the review workflow state of an issue. It is always computed from
// live external signals and never persisted as authoritative state.
type Phase string

const (
	PhaseInitialReview           Phase = "initial_review"
	PhaseAwaitingApproval        Phase = "awaiting_approval"
	PhaseReadyForArchitectReview Phase = "ready_for_architect_review"
	PhaseWatching                Phase = "watching"
	PhaseReadyToClose            Phase = "ready_to_close"
)

// Phases lists every phase in workflow order.
var Phases = []Phase{
	PhaseInitialReview,
	PhaseAwaitingApproval,
	PhaseReadyForArchitectReview,
	PhaseWatching,
	PhaseReadyToClose,
}

// Label returns a human-readable name for the phase.
func (p Phase) Label() string {
	switch p {
	case PhaseInitialReview:
		return "Initial Review"
	case PhaseAwaitingApproval:
		return "Awaiting Approval"
	case PhaseReadyForArchitectReview:
		return "Ready for Architect Review"
	case PhaseWatching:
		return "Watching"
	case PhaseReadyToClose:
		return "Ready to Close"
	default:
		return string(p)
	}
}
