package mesh

type State int

const (
	StateNew State = iota
	StateOfferSent
	StateOfferReceived
	StateAnswerSent
	StateConnected
	StateClosed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateOfferSent:
		return "offer-sent"
	case StateOfferReceived:
		return "offer-received"
	case StateAnswerSent:
		return "answer-sent"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal states never leave on their own; a failed link only restarts on a
// fresh remote offer.
func (s State) Terminal() bool { return s == StateClosed || s == StateFailed }
