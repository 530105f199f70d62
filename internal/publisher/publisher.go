package publisher

import (
	"log"

	"roombook/internal/messages"
)

// Broker is the slice of the broker the publisher needs.
type Broker interface {
	Publish(message interface{}, key string) error
}

// ChangePublisher emits a StateChangeEvent to the fanout exchange whenever a
// reservation's externally visible state changes. Publishing happens
// synchronously right after the record write, never batched, so events for
// the same resource+slot leave a single processor in order.
type ChangePublisher struct {
	broker Broker
}

func New(broker Broker) *ChangePublisher {
	return &ChangePublisher{broker: broker}
}

// PublishChange is fire-and-forget: a missed notification must never change
// a reservation outcome, clients re-fetch authoritative state after a gap.
// Failures are logged and swallowed.
func (p *ChangePublisher) PublishChange(resourceID string, slot messages.Slot, status, requesterID string) {
	event := messages.StateChangeEvent{
		ResourceID:  resourceID,
		Slot:        slot,
		Status:      status,
		RequesterID: requesterID,
	}

	if err := p.broker.Publish(event, ""); err != nil {
		log.Printf("Failed to publish state change for %s %s: %v", resourceID, slot.Key(), err)
	}
}
