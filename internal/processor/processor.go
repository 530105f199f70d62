package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"roombook/internal/broker"
	"roombook/internal/circuitbreaker"
	"roombook/internal/holdstore"
	"roombook/internal/messages"
)

// ErrMalformedRequest marks a message that can never be processed and must
// not be requeued.
var ErrMalformedRequest = errors.New("malformed reservation request")

// HoldStore is the atomic hold primitive the processor races on.
type HoldStore interface {
	TryAcquire(ctx context.Context, key, owner string, ttl time.Duration) (bool, error)
	Exists(ctx context.Context, key string) (bool, error)
}

// ReservationStore is the durable record the processor moves status on.
type ReservationStore interface {
	UpdateStatus(reservationID, status string) error
}

// ChangePublisher fans the resulting state change out to viewers.
type ChangePublisher interface {
	PublishChange(resourceID string, slot messages.Slot, status, requesterID string)
}

// Outcome is the resolution of one booking attempt.
type Outcome struct {
	Held bool
	// HoldExpiresInSeconds is set when Held is true; the requester has this
	// long to confirm through the external path before the hold decays.
	HoldExpiresInSeconds int
	Reason               string
}

// Processor consumes reservation requests from the shared work queue and
// resolves each one against the hold store. Many processor instances can run
// in parallel; the only cross-worker synchronization is TryAcquire itself.
type Processor struct {
	broker        *broker.Broker
	holds         HoldStore
	reservations  ReservationStore
	publisher     ChangePublisher
	holdBreaker   *circuitbreaker.CircuitBreaker
	recordBreaker *circuitbreaker.CircuitBreaker
	holdTTL       time.Duration
	numWorkers    int
	prefetchCount int
	processWg     sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

type Config struct {
	NumWorkers    int
	PrefetchCount int
	HoldTTL       time.Duration
}

func DefaultConfig() Config {
	return Config{
		NumWorkers:    5,
		PrefetchCount: 10,
		HoldTTL:       600 * time.Second,
	}
}

func New(b *broker.Broker, holds HoldStore, reservations ReservationStore, publisher ChangePublisher, config Config) *Processor {
	ctx, cancel := context.WithCancel(context.Background())

	return &Processor{
		broker:        b,
		holds:         holds,
		reservations:  reservations,
		publisher:     publisher,
		holdBreaker:   circuitbreaker.NewCircuitBreaker(circuitbreaker.DefaultSettings("hold-store")),
		recordBreaker: circuitbreaker.NewCircuitBreaker(circuitbreaker.DefaultSettings("record-store")),
		holdTTL:       config.HoldTTL,
		numWorkers:    config.NumWorkers,
		prefetchCount: config.PrefetchCount,
		ctx:           ctx,
		cancel:        cancel,
	}
}

// Start declares and binds the request queue, sets prefetch and launches the
// worker pool. It returns once consumption is running; Shutdown stops it.
func (p *Processor) Start() error {
	err := p.broker.DeclareAndBindQueue(messages.QueueReservationRequests, messages.TopicReservationRequested)
	if err != nil {
		return fmt.Errorf("failed to declare and bind queue: %v", err)
	}

	if err := p.broker.SetQoS(p.prefetchCount, 0, false); err != nil {
		return fmt.Errorf("failed to set QoS: %v", err)
	}

	deliveries, err := p.broker.Consume(messages.QueueReservationRequests, false)
	if err != nil {
		return fmt.Errorf("failed to start consuming messages: %v", err)
	}

	for i := 0; i < p.numWorkers; i++ {
		go p.startWorker(deliveries, i+1)
	}

	log.Printf("Reservation processor started with %d workers (hold TTL %s)", p.numWorkers, p.holdTTL)
	return nil
}

func (p *Processor) startWorker(deliveries <-chan amqp.Delivery, workerID int) {
	for {
		select {
		case msg, ok := <-deliveries:
			if !ok {
				log.Printf("Worker %d channel closed", workerID)
				return
			}
			p.processWg.Add(1)
			p.handleDelivery(msg)
		case <-p.ctx.Done():
			log.Printf("Worker %d shutting down", workerID)
			return
		}
	}
}

func (p *Processor) handleDelivery(msg amqp.Delivery) {
	defer p.processWg.Done()

	var req messages.ReservationRequestMessage
	if err := json.Unmarshal(msg.Body, &req); err != nil {
		log.Printf("Error unmarshaling reservation request: %v", err)
		msg.Reject(false)
		return
	}
	if err := validate(req); err != nil {
		log.Printf("Dropping reservation request: %v", err)
		msg.Reject(false)
		return
	}

	ctx, cancel := context.WithTimeout(p.ctx, 30*time.Second)
	defer cancel()

	outcome, err := p.Process(ctx, req)
	if err != nil {
		// Requeue so the queue layer can redeliver or dead-letter per its
		// own policy; the record was already forced to EXPIRED.
		if circuitbreaker.IsCircuitBreakerError(err) {
			log.Printf("Circuit breaker rejected reservation %s: %v", req.ReservationID, err)
		} else {
			log.Printf("Error processing reservation %s: %v", req.ReservationID, err)
		}
		msg.Reject(true)
		return
	}

	if outcome.Held {
		log.Printf("Reservation %s holds %s %s for %ds", req.ReservationID, req.ResourceID, req.Slot.Key(), outcome.HoldExpiresInSeconds)
	} else {
		log.Printf("Reservation %s rejected: %s", req.ReservationID, outcome.Reason)
	}
	msg.Ack(false)
}

func validate(req messages.ReservationRequestMessage) error {
	switch {
	case req.ReservationID == "":
		return fmt.Errorf("%w: missing reservation_id", ErrMalformedRequest)
	case req.RequesterID == "":
		return fmt.Errorf("%w: missing requester_id", ErrMalformedRequest)
	case req.ResourceID == "":
		return fmt.Errorf("%w: missing resource_id", ErrMalformedRequest)
	case req.Slot.Start == "" || req.Slot.End == "":
		return fmt.Errorf("%w: missing slot interval", ErrMalformedRequest)
	}
	return nil
}

// Process resolves one booking attempt. Exactly one of N concurrent attempts
// on the same resource+slot wins the atomic acquisition and becomes PENDING;
// every other attempt is resolved to EXPIRED. A store error forces the record
// to EXPIRED defensively and is returned to the caller.
func (p *Processor) Process(ctx context.Context, req messages.ReservationRequestMessage) (Outcome, error) {
	key := holdstore.Key(req.ResourceID, req.Slot)

	// Cheap short-circuit only. A stale answer here is fine: the atomic
	// acquisition below is the safety mechanism, and a probe error just
	// means we skip the hint.
	if occupied, err := p.holds.Exists(ctx, key); err == nil && occupied {
		return p.reject(req, "resource not available")
	}

	result := p.holdBreaker.Execute(func() (interface{}, error) {
		return p.holds.TryAcquire(ctx, key, req.RequesterID, p.holdTTL)
	})
	if result.Error != nil {
		return Outcome{}, p.fail(req, result.Error)
	}

	if !result.Data.(bool) {
		// A genuine race: another requester's TryAcquire won between the
		// probe and ours.
		return p.reject(req, "lost race")
	}

	if err := p.updateStatus(req.ReservationID, messages.StatusPending); err != nil {
		return Outcome{}, p.fail(req, err)
	}
	p.publisher.PublishChange(req.ResourceID, req.Slot, messages.StatusPending, req.RequesterID)

	return Outcome{
		Held:                 true,
		HoldExpiresInSeconds: int(p.holdTTL / time.Second),
	}, nil
}

// updateStatus runs the record-store write under its own breaker so a
// postgres outage sheds instead of being hammered by every worker.
func (p *Processor) updateStatus(reservationID, status string) error {
	result := p.recordBreaker.Execute(func() (interface{}, error) {
		return nil, p.reservations.UpdateStatus(reservationID, status)
	})
	return result.Error
}

func (p *Processor) reject(req messages.ReservationRequestMessage, reason string) (Outcome, error) {
	if err := p.updateStatus(req.ReservationID, messages.StatusExpired); err != nil {
		return Outcome{}, p.fail(req, err)
	}
	p.publisher.PublishChange(req.ResourceID, req.Slot, messages.StatusExpired, req.RequesterID)
	return Outcome{Reason: reason}, nil
}

// fail force-writes EXPIRED so the record never sticks in limbo, then hands
// the original error back up. An acquired hold is deliberately left to TTL
// decay; there is no compensating release step.
func (p *Processor) fail(req messages.ReservationRequestMessage, cause error) error {
	if err := p.updateStatus(req.ReservationID, messages.StatusExpired); err != nil {
		log.Printf("Failed to force reservation %s to EXPIRED: %v", req.ReservationID, err)
	}
	return cause
}

// Shutdown stops the workers and waits for in-flight messages, bounded by
// the timeout.
func (p *Processor) Shutdown(timeout time.Duration) error {
	p.cancel()

	done := make(chan struct{})
	go func() {
		p.processWg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("All processor workers completed gracefully")
	case <-time.After(timeout):
		log.Println("Shutdown timed out waiting for processor workers")
	}

	return p.broker.Close()
}
