package models

const (
	RoleAdmin      = "admin"
	RoleInstructor = "instructor"
	RoleStudent    = "student"
)

const (
	StatusPending   = "pending"
	StatusApproved  = "approved"
	StatusDeclined  = "declined"
	StatusCancelled = "cancelled"
)

const (
	NotificationReservationCreated   = "reservation_created"
	NotificationReservationApproved  = "reservation_approved"
	NotificationReservationDeclined  = "reservation_declined"
	NotificationReservationCancelled = "reservation_cancelled"
)

const (
	// DefaultPageLimit is applied when a list request carries no limit.
	DefaultPageLimit = 50

	// MaxPageLimit caps the limit a client may request.
	MaxPageLimit = 100

	// DefaultMaxReservationDays bounds how far ahead a slot can be reserved.
	DefaultMaxReservationDays = 180

	// DefaultRateLimitRequests / DefaultRateLimitWindow shape the per-user
	// request budget enforced through the state repository.
	DefaultRateLimitRequests = 60
	DefaultRateLimitWindow   = 60 // seconds

	// ScheduleCacheTTL is how long a rendered lab schedule stays cached.
	ScheduleCacheTTL = 5 * 60 // seconds

	// WorkerQueueSize is the buffered channel size of the sheets worker.
	WorkerQueueSize = 256
)

// TerminalStatus reports whether no further transition is permitted.
func TerminalStatus(status string) bool {
	return status == StatusDeclined || status == StatusCancelled
}

// BlockingStatus reports whether a reservation in this status occupies its
// time slot. Pending reservations hold the slot tentatively until reviewed.
func BlockingStatus(status string) bool {
	return status == StatusPending || status == StatusApproved
}
