package repos

import (
	"time"

	"github.com/jmoiron/sqlx"

	"roombook/internal/db/models"
)

// ReservationRepository handles database operations for reservation records.
type ReservationRepository struct {
	db *sqlx.DB
}

// NewReservationRepository creates a new ReservationRepository.
func NewReservationRepository(db *sqlx.DB) *ReservationRepository {
	return &ReservationRepository{db: db}
}

// GetReservation retrieves a reservation by ID.
func (r *ReservationRepository) GetReservation(reservationID string) (*models.Reservation, error) {
	var reservation models.Reservation

	err := r.db.Get(
		&reservation,
		`SELECT * FROM reservations WHERE id = $1`,
		reservationID,
	)

	if err != nil {
		return nil, err
	}

	return &reservation, nil
}

// UpdateStatus sets the status of a reservation. A plain UPDATE keeps it
// idempotent: writing the same status twice leaves the row unchanged with no
// error, which is all the processor needs since duplicate deliveries are
// resolved by the hold store, not here.
func (r *ReservationRepository) UpdateStatus(reservationID, status string) error {
	_, err := r.db.Exec(
		`UPDATE reservations SET status = $1 WHERE id = $2`,
		status, reservationID,
	)

	return err
}

// GetOverduePending returns reservations still PENDING that were created
// before the cutoff. Their hold keys have long since decayed in redis; the
// sweeper uses this to reconcile the durable records.
func (r *ReservationRepository) GetOverduePending(cutoff time.Time) ([]*models.Reservation, error) {
	reservations := []*models.Reservation{}

	err := r.db.Select(
		&reservations,
		`SELECT * FROM reservations
		 WHERE status = 'PENDING'
		 AND created_at < $1`,
		cutoff,
	)

	if err != nil {
		return nil, err
	}

	return reservations, nil
}
