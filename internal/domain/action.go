package domain

import "strings"

// Action names an order mutation a caller can request. VERIFY is the odd one
// out: it carries the one-time code and is the handover path to DELIVERED.
type Action string

const (
	ActionConfirm  Action = "CONFIRM"
	ActionPrepare  Action = "PREPARE"
	ActionReady    Action = "READY"
	ActionVerify   Action = "VERIFY"
	ActionComplete Action = "COMPLETE"
	ActionCancel   Action = "CANCEL"
)

// ParseAction accepts both action-based and state-based spellings, mirroring
// what the status update call has historically been sent ("PREPARE" and
// "PREPARING" both arrive in practice).
func ParseAction(raw string) (Action, bool) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "CONFIRM", "CONFIRMED":
		return ActionConfirm, true
	case "PREPARE", "PREPARING":
		return ActionPrepare, true
	case "READY":
		return ActionReady, true
	case "VERIFY", "DELIVERED":
		return ActionVerify, true
	case "COMPLETE", "COMPLETED":
		return ActionComplete, true
	case "CANCEL", "CANCELLED":
		return ActionCancel, true
	}
	return "", false
}

// TargetStatus is the status the order holds once the action succeeds.
func (a Action) TargetStatus() OrderStatus {
	switch a {
	case ActionConfirm:
		return StatusConfirmed
	case ActionPrepare:
		return StatusPreparing
	case ActionReady:
		return StatusReady
	case ActionVerify:
		return StatusDelivered
	case ActionComplete:
		return StatusCompleted
	case ActionCancel:
		return StatusCancelled
	}
	return StatusUnknown
}

// RequiresOTP reports whether the action must carry the one-time code.
func (a Action) RequiresOTP() bool {
	return a == ActionVerify
}

// ActionStep is one rung of the kitchen ladder: the label shown on the
// slider and the action it fires.
type ActionStep struct {
	Label  string
	Action Action
}

// NextAction maps a non-terminal status to the single forward move offered
// to the store. Terminal and unknown statuses have no next action.
func NextAction(current OrderStatus) (ActionStep, bool) {
	switch current {
	case StatusPending:
		return ActionStep{Label: "Slide to Confirm", Action: ActionConfirm}, true
	case StatusConfirmed:
		return ActionStep{Label: "Slide to Prepare", Action: ActionPrepare}, true
	case StatusPreparing:
		return ActionStep{Label: "Slide to Ready", Action: ActionReady}, true
	case StatusReady:
		return ActionStep{Label: "Slide to Verify", Action: ActionVerify}, true
	}
	return ActionStep{}, false
}
