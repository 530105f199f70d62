package models

import "time"

// Reservation is the durable booking record. It is created as PENDING by the
// external booking path before the request ever reaches the processor; the
// core only moves its status, never deletes it. Terminal rows stay around for
// audit history.
type Reservation struct {
	ID          string    `db:"id" json:"id"`
	RequesterID string    `db:"requester_id" json:"requester_id"`
	ResourceID  string    `db:"resource_id" json:"resource_id"`
	SlotStart   string    `db:"slot_start" json:"slot_start"`
	SlotEnd     string    `db:"slot_end" json:"slot_end"`
	Status      string    `db:"status" json:"status"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
