package schedule

// Terminal reports whether no further transition is permitted from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusNoShow
}

// transitions is the forward edge set of the appointment lifecycle:
//
//	scheduled -> confirmed -> in_progress -> completed
//
// with no_show reachable while the visit has not started. Cancellation is
// handled separately in CanTransition since every non-terminal state
// allows it.
var transitions = map[Status]map[Status]bool{
	StatusScheduled: {
		StatusConfirmed: true,
		StatusNoShow:    true,
	},
	StatusConfirmed: {
		StatusInProgress: true,
		StatusNoShow:     true,
	},
	StatusInProgress: {
		StatusCompleted: true,
	},
}

// CanTransition reports whether an appointment may move from one status
// to another. Terminal states accept nothing; any non-terminal state may
// be cancelled.
func CanTransition(from, to Status) bool {
	if !from.Valid() || !to.Valid() || from == to {
		return false
	}
	if from.Terminal() {
		return false
	}
	if to == StatusCancelled {
		return true
	}
	return transitions[from][to]
}
