package messages

// Broker name constants kept in one place so producers, the processor and the
// broadcaster never drift on spelling.
const (
	// ExchangeReservations carries booking attempts into the work queue.
	ExchangeReservations = "reservations"
	// ExchangeStateChanges is the fanout exchange every broadcaster
	// instance binds its own ephemeral queue to.
	ExchangeStateChanges = "reservation.state"

	QueueReservationRequests = "reservation_requests"

	TopicReservationRequested = "reservation.requested"
)

// Reservation status values. The processor only ever writes PENDING and
// EXPIRED; CONFIRMED and CANCELLED belong to the external confirm/cancel path.
const (
	StatusPending   = "PENDING"
	StatusConfirmed = "CONFIRMED"
	StatusCancelled = "CANCELLED"
	StatusExpired   = "EXPIRED"
)

// Slot is the time interval a resource is being reserved for. Start and End
// are the exact ISO interval strings supplied by the requester; they are used
// verbatim when building the hold key so two requests for the same interval
// always collide.
type Slot struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Key returns the normalized slot portion of a hold key.
func (s Slot) Key() string {
	return s.Start + "/" + s.End
}

// ReservationRequestMessage is one booking attempt, consumed from the work
// queue by exactly one processor worker.
type ReservationRequestMessage struct {
	ReservationID string `json:"reservation_id"`
	RequesterID   string `json:"requester_id"`
	ResourceID    string `json:"resource_id"`
	Slot          Slot   `json:"slot"`
}

// StateChangeEvent is published on every externally visible status change.
// Timestamp is zero on the wire and assigned by the broadcaster at delivery
// time.
type StateChangeEvent struct {
	ResourceID  string `json:"resource_id"`
	Slot        Slot   `json:"slot"`
	Status      string `json:"status"`
	RequesterID string `json:"requester_id"`
	Timestamp   int64  `json:"timestamp,omitempty"`
}
