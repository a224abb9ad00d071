package domain

// CallInitiated is the first callback of an inbound call.
type CallInitiated struct {
	CallID string
	From   string
	To     string
}

// InputReceived carries the answer to a Collect, Record or Transfer node.
type InputReceived struct {
	CallID string
	Input  Input
}

// StatusChanged reports a carrier-side call state transition.
type StatusChanged struct {
	CallID string
	Status CallStatus
}
