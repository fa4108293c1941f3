package orders

type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusPaid     Status = "paid"
)

var validNext = map[Status]map[Status]bool{
	StatusPending:  {StatusAccepted: true},
	StatusAccepted: {StatusPaid: true},
	StatusPaid:     {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

func (s Status) Valid() bool {
	_, ok := validNext[s]
	return ok
}
