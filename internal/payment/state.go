package payment

// State is the lifecycle of one purchase attempt
type State string

const (
	StateInitiated  State = "INITIATED"  // Cart priced, no processor order yet
	StateAuthorized State = "AUTHORIZED" // Processor order exists, awaiting the payer
	StateCaptured   State = "CAPTURED"   // Funds moved
	StateDenied     State = "DENIED"     // Processor refused the payment
	StateAbandoned  State = "ABANDONED"  // Payer walked away from the redirect
)

// Terminal reports whether no further transition is possible
func (s State) Terminal() bool {
	return s == StateCaptured || s == StateDenied || s == StateAbandoned
}

// StateFromStatus maps a processor order status onto the lifecycle
func StateFromStatus(status string) State {
	switch status {
	case "CREATED", "SAVED", "APPROVED", "PAYER_ACTION_REQUIRED":
		return StateAuthorized
	case "COMPLETED":
		return StateCaptured
	case "VOIDED":
		return StateAbandoned
	case "DECLINED", "DENIED", "FAILED":
		return StateDenied
	default:
		return StateInitiated
	}
}
