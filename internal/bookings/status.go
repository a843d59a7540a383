package bookings

type Status string

const (
	StatusPaid     Status = "PAID"
	StatusRefunded Status = "REFUNDED"
	StatusCanceled Status = "CANCELED"
)

var validNext = map[Status]map[Status]bool{
	StatusPaid:     {StatusRefunded: true, StatusCanceled: true},
	StatusRefunded: {},
	StatusCanceled: {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

// HoldsDate reports whether a booking in this status occupies its event date.
// Refunded and canceled bookings release the date for new reservations.
func (s Status) HoldsDate() bool {
	return s == StatusPaid
}

func ParseStatus(s string) (Status, bool) {
	st := Status(s)
	_, ok := validNext[st]
	return st, ok
}
