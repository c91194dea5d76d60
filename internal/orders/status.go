package orders

type Status string

const (
	StatusProcessing Status = "Processing"
	StatusConfirmed  Status = "Confirmed"
	StatusShipped    Status = "Shipped"
	StatusDelivered  Status = "Delivered"
	StatusCancelled  Status = "Cancelled"
)

// AllStatuses is the fulfillment order, Cancelled last.
var AllStatuses = []Status{StatusProcessing, StatusConfirmed, StatusShipped, StatusDelivered, StatusCancelled}

// Steps may be skipped going forward (Processing -> Delivered is fine) but
// never walked back. Delivered and Cancelled are terminal.
var validNext = map[Status]map[Status]bool{
	StatusProcessing: {StatusConfirmed: true, StatusShipped: true, StatusDelivered: true, StatusCancelled: true},
	StatusConfirmed:  {StatusShipped: true, StatusDelivered: true, StatusCancelled: true},
	StatusShipped:    {StatusDelivered: true, StatusCancelled: true},
	StatusDelivered:  {},
	StatusCancelled:  {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

func (s Status) Valid() bool {
	_, ok := validNext[s]
	return ok
}

func (s Status) Terminal() bool {
	return s.Valid() && len(validNext[s]) == 0
}
