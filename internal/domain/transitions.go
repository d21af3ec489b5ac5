package domain

// allowedTransitions is the single authority on status edges. The reopen edges
// (IN_PROGRESS/RESOLVED back to OPEN) exist only for the field-report coupling,
// never for a direct user action.
var allowedTransitions = map[TicketStatus][]TicketStatus{
	TicketStatusOpen:       {TicketStatusInProgress},
	TicketStatusInProgress: {TicketStatusResolved, TicketStatusOpen},
	TicketStatusResolved:   {TicketStatusClosed, TicketStatusOpen},
	TicketStatusClosed:     {},
}

// IsValidTransition reports whether the status edge exists in the table.
func IsValidTransition(current, next TicketStatus) bool {
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}

// CanReopen reports whether a ticket status admits the field-report reopen edge.
func CanReopen(current TicketStatus) bool {
	return current == TicketStatusInProgress || current == TicketStatusResolved
}
