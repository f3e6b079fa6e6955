package booking

// ===============================
// Appointment Status
// ===============================

type Status string

const (
	StatusConfirmed Status = "confirmed"
	StatusPending   Status = "pending"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

// IsTerminal reports whether no further transitions are allowed.
// Terminal rows stay in the store for history.
func (s Status) IsTerminal() bool {
	return s == StatusCancelled || s == StatusCompleted
}

// ActiveStatuses are the statuses that occupy a slot: two appointments
// with either of these may never overlap for the same (shop, barber).
func ActiveStatuses() []string {
	return []string{string(StatusConfirmed), string(StatusPending)}
}

// InitialStatus is the status a publicly admitted booking starts in.
func InitialStatus() Status {
	return StatusPending
}
