package book

import "github.com/shopspring/decimal"

// OrderType is the semantics an order is submitted with.
type OrderType int

const (
	Market OrderType = iota
	Limit
	IOC
	FOK
)

func (t OrderType) String() string {
	switch t {
	case Market:
		return "market"
	case Limit:
		return "limit"
	case IOC:
		return "ioc"
	case FOK:
		return "fok"
	default:
		return "unknown"
	}
}

// OrderStatus is the lifecycle state of an Order. Transitions only ever
// move Open -> {Filled, Cancelled, Rejected}; there is no transition out of
// a terminal state.
type OrderStatus int

const (
	Open OrderStatus = iota
	Filled
	Cancelled
	Rejected
)

func (s OrderStatus) String() string {
	switch s {
	case Open:
		return "open"
	case Filled:
		return "filled"
	case Cancelled:
		return "cancelled"
	case Rejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether s is a status an Order cannot transition out
// of.
func (s OrderStatus) IsTerminal() bool {
	return s == Filled || s == Cancelled || s == Rejected
}

// Order represents a single order submitted to an exchange.
type Order struct {
	ID     string
	Pair   ExchangePair
	Side   Direction
	Type   OrderType
	Price  decimal.Decimal
	Volume decimal.Decimal
	Status OrderStatus
}

// UpdateStatus transitions the order to status, refusing any transition out
// of a terminal state.
func (o *Order) UpdateStatus(status OrderStatus) error {
	if o.Status.IsTerminal() {
		return errInvalidTransition(o.Status, status)
	}
	o.Status = status
	return nil
}

func errInvalidTransition(from, to OrderStatus) error {
	return &transitionError{from: from, to: to}
}

type transitionError struct {
	from, to OrderStatus
}

func (e *transitionError) Error() string {
	return "book: invalid order status transition " + e.from.String() + " -> " + e.to.String()
}
