package workflow

// Trigger represents a review decision that moves a candidate out of SUGGESTED
type Trigger string

const (
	TriggerAutoApprove Trigger = "AUTO_APPROVE"
	TriggerApprove     Trigger = "APPROVE"
	TriggerOverride    Trigger = "OVERRIDE"
	TriggerReject      Trigger = "REJECT"
	TriggerDefer       Trigger = "DEFER"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}
