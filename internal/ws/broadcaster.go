package ws

import (
	"encoding/json"
	"fmt"
	"log"

	"roombook/internal/broker"
	"roombook/internal/messages"
)

// Broadcaster bridges the state-change fanout exchange to the hub. Each
// instance binds its own ephemeral queue so every broadcaster sees every
// event.
type Broadcaster struct {
	broker *broker.Broker
	hub    *Hub
}

func NewBroadcaster(b *broker.Broker, hub *Hub) *Broadcaster {
	return &Broadcaster{broker: b, hub: hub}
}

// Start binds an ephemeral queue to the fanout exchange and rebroadcasts
// every event to the hub's connections until the channel closes.
func (b *Broadcaster) Start() error {
	queueName, err := b.broker.DeclareEphemeralQueue()
	if err != nil {
		return fmt.Errorf("failed to declare broadcast queue: %v", err)
	}

	// Auto-ack: there is no replay contract, a dropped event is resolved by
	// the client re-fetching state.
	deliveries, err := b.broker.Consume(queueName, true)
	if err != nil {
		return fmt.Errorf("failed to consume broadcast queue: %v", err)
	}

	go func() {
		for msg := range deliveries {
			var event messages.StateChangeEvent
			if err := json.Unmarshal(msg.Body, &event); err != nil {
				log.Printf("Skipping unreadable state change event: %v", err)
				continue
			}
			b.hub.Broadcast(event)
		}
		log.Println("Broadcast channel closed")
	}()

	log.Printf("Fan-out broadcaster consuming from %s", queueName)
	return nil
}
