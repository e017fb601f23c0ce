package ledger

// Operation is a status-changing lifecycle operation.
type Operation string

const (
	OpConfirm Operation = "confirm"
	OpReverse Operation = "reverse"
)

type transitionKey struct {
	From RewardStatus
	Op   Operation
}

// transitions is the single source of truth for the reward state machine.
// PAID and EXPIRED have no outgoing edges.
var transitions = map[transitionKey]RewardStatus{
	{StatusPending, OpConfirm}:   StatusConfirmed,
	{StatusPending, OpReverse}:   StatusReversed,
	{StatusConfirmed, OpReverse}: StatusReversed,
}

// NextStatus returns the status op leads to from current, or false if the
// transition is not allowed.
func NextStatus(current RewardStatus, op Operation) (RewardStatus, bool) {
	next, ok := transitions[transitionKey{current, op}]
	return next, ok
}
