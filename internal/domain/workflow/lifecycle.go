package workflow

import "context"

// Guards holds the per-candidate conditions the review lifecycle depends on
type Guards struct {
	// MeetsThreshold reports confidence >= the auto-approve threshold
	MeetsThreshold GuardFunc

	// HasTarget reports whether the candidate points at something approvable
	HasTarget GuardFunc

	// CanOverride reports whether an operator may pick a different target
	CanOverride GuardFunc
}

// NewCandidateMachine builds the SUGGESTED -> {AUTO_APPROVED, MANUAL_APPROVED, REJECTED, DEFERRED}
// lifecycle for a single candidate
func NewCandidateMachine(g Guards) (StateMachine, error) {
	b := NewBuilder()

	b.Configure(StateSuggested).
		PermitIf(TriggerAutoApprove, StateAutoApproved, all(g.MeetsThreshold, g.HasTarget)).
		PermitIf(TriggerApprove, StateManualApproved, all(g.HasTarget)).
		PermitIf(TriggerOverride, StateManualApproved, all(g.CanOverride)).
		Permit(TriggerReject, StateRejected).
		Permit(TriggerDefer, StateDeferred)

	return b.Build(StateSuggested)
}

// all combines guards; a nil guard fails closed
func all(guards ...GuardFunc) GuardFunc {
	return func(ctx context.Context) bool {
		for _, g := range guards {
			if g == nil || !g(ctx) {
				return false
			}
		}
		return true
	}
}
