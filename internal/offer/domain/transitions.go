package domain

// Status is the closed set of offer states.
type Status string

const (
	StatusPendingGatewayApproval Status = "pendingGatewayApproval"
	StatusAuthorized             Status = "authorized"
	StatusPendingProof           Status = "pendingProof"
	StatusProofSubmitted         Status = "proofSubmitted"
	StatusCompleted              Status = "completed"
	StatusCancelled              Status = "cancelled"
	StatusDeclined               Status = "declined"
	StatusRefunded               Status = "refunded"
	StatusDisputed               Status = "disputed"
)

// AllStatuses lists every state in lifecycle order.
var AllStatuses = []Status{
	StatusPendingGatewayApproval,
	StatusAuthorized,
	StatusPendingProof,
	StatusProofSubmitted,
	StatusCompleted,
	StatusCancelled,
	StatusDeclined,
	StatusRefunded,
	StatusDisputed,
}

var transitions = map[Status][]Status{
	StatusPendingGatewayApproval: {StatusAuthorized, StatusDeclined, StatusCancelled, StatusDisputed},
	StatusAuthorized:             {StatusPendingProof, StatusDeclined, StatusCancelled, StatusDisputed},
	StatusPendingProof:           {StatusProofSubmitted, StatusDeclined, StatusCancelled, StatusDisputed},
	StatusProofSubmitted:         {StatusCompleted, StatusRefunded, StatusDisputed},
	StatusCompleted:              nil,
	StatusCancelled:              nil,
	StatusDeclined:               nil,
	StatusRefunded:               nil,
	StatusDisputed:               nil,
}

func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// CanTransition reports whether from → to is an edge of the state graph.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is possible. Disputed is
// quasi-terminal: it is resolved outside this service.
func (s Status) IsTerminal() bool {
	next, ok := transitions[s]
	return ok && len(next) == 0
}

// ReceiverActionable lists statuses where the receiver has something to do.
var ReceiverActionable = []Status{StatusAuthorized, StatusPendingProof}

// Sources returns every status with an edge to the given status.
func Sources(to Status) []Status {
	var out []Status
	for _, from := range AllStatuses {
		if CanTransition(from, to) {
			out = append(out, from)
		}
	}
	return out
}
