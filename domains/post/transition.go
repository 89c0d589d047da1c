package post

// legalTransitions is the full status state machine. "publishing" can go
// back to "scheduled" both for retry rescheduling and for crash recovery of
// rows stranded mid-publish; "failed" back to "scheduled" is the operator
// retry path.
var legalTransitions = map[PostStatus][]PostStatus{
	StatusScheduled:  {StatusPublishing, StatusPaused, StatusCancelled},
	StatusPublishing: {StatusPublished, StatusFailed, StatusScheduled, StatusCancelled},
	StatusPaused:     {StatusScheduled, StatusCancelled},
	StatusFailed:     {StatusScheduled, StatusCancelled},
}

// CanTransition reports whether moving from one status to another is legal.
// Terminal statuses ("published", "cancelled") have no outgoing edges.
func CanTransition(from, to PostStatus) bool {
	for _, next := range legalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func (s PostStatus) Terminal() bool {
	return len(legalTransitions[s]) == 0
}

func ValidStatus(s PostStatus) bool {
	switch s {
	case StatusScheduled, StatusPublishing, StatusPublished, StatusFailed, StatusPaused, StatusCancelled:
		return true
	}
	return false
}

func ValidRecurrence(r RecurrenceType) bool {
	switch r {
	case RecurrenceNone, RecurrenceDaily, RecurrenceWeekly, RecurrenceMonthly:
		return true
	}
	return false
}
