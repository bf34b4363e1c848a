package domain

// Status describes the lifecycle state of an auction.
type Status int

const (
	// StatusUnspecified represents an invalid status value.
	StatusUnspecified Status = iota
	// StatusActive indicates the auction accepts bids and may be ended or cancelled.
	StatusActive
	// StatusEnded indicates the auction resolved at its deadline. Terminal.
	StatusEnded
	// StatusCancelled indicates the seller withdrew the auction. Terminal.
	StatusCancelled
)

// Terminal reports whether the status permits no further mutation.
func (s Status) Terminal() bool {
	return s == StatusEnded || s == StatusCancelled
}

// Valid reports whether the status is a known lifecycle state.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusEnded, StatusCancelled:
		return true
	}
	return false
}

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusEnded:
		return "ended"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unspecified"
	}
}
