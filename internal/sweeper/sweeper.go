package sweeper

import (
	"context"
	"log"
	"time"

	"roombook/internal/db/models"
	"roombook/internal/holdstore"
	"roombook/internal/messages"
)

// ReservationStore is the slice of the repository the sweeper needs.
type ReservationStore interface {
	GetOverduePending(cutoff time.Time) ([]*models.Reservation, error)
	UpdateStatus(reservationID, status string) error
}

// HoldStore answers whether a hold key is still occupied.
type HoldStore interface {
	Exists(ctx context.Context, key string) (bool, error)
}

// ChangePublisher fans expiries out to viewers.
type ChangePublisher interface {
	PublishChange(resourceID string, slot messages.Slot, status, requesterID string)
}

// Sweeper reconciles durable records with hold decay. Redis drops the hold
// key on its own when the TTL runs out, but the PENDING row in the record
// store knows nothing about that; the sweeper periodically expires rows whose
// hold has decayed without a confirmation.
type Sweeper struct {
	store     ReservationStore
	holds     HoldStore
	publisher ChangePublisher
	holdTTL   time.Duration
	interval  time.Duration
}

func New(store ReservationStore, holds HoldStore, publisher ChangePublisher, holdTTL, interval time.Duration) *Sweeper {
	return &Sweeper{
		store:     store,
		holds:     holds,
		publisher: publisher,
		holdTTL:   holdTTL,
		interval:  interval,
	}
}

// Run sweeps on a ticker until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Sweep(ctx)
		case <-ctx.Done():
			log.Println("Sweeper shutting down")
			return
		}
	}
}

// Sweep expires PENDING reservations older than the hold TTL and publishes
// the change for each. Row age alone is not enough: a hold acquired late
// (queue backlog, requeue after a store outage) can still be live inside the
// requester's confirmation window, so any row whose hold key still exists is
// left for a later sweep.
func (s *Sweeper) Sweep(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-s.holdTTL)

	overdue, err := s.store.GetOverduePending(cutoff)
	if err != nil {
		log.Printf("Failed to list overdue reservations: %v", err)
		return
	}

	for _, reservation := range overdue {
		slot := messages.Slot{Start: reservation.SlotStart, End: reservation.SlotEnd}
		key := holdstore.Key(reservation.ResourceID, slot)

		held, err := s.holds.Exists(ctx, key)
		if err != nil {
			log.Printf("Failed to check hold for reservation %s: %v", reservation.ID, err)
			continue
		}
		if held {
			continue
		}

		if err := s.store.UpdateStatus(reservation.ID, messages.StatusExpired); err != nil {
			log.Printf("Failed to expire reservation %s: %v", reservation.ID, err)
			continue
		}
		s.publisher.PublishChange(reservation.ResourceID, slot, messages.StatusExpired, reservation.RequesterID)
		log.Printf("Expired overdue reservation %s for %s %s", reservation.ID, reservation.ResourceID, slot.Key())
	}
}
