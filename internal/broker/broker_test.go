package broker

import (
	"testing"
)

// newMockBroker builds a broker with no live AMQP connection.
func newMockBroker() *Broker {
	return &Broker{
		conn:     nil,
		channel:  nil,
		exchange: "test-exchange",
		url:      "mock://localhost",
	}
}

func TestPublishWithoutConnection(t *testing.T) {
	type TestMessage struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	}

	// Without a live connection Publish must surface a connection error.
	b := newMockBroker()
	if err := b.Publish(TestMessage{ID: 123, Name: "Test Message"}, "test.key"); err == nil {
		t.Error("Expected error with mock connection, but got nil")
	}
}

func TestDeclareAndBindQueueWithoutConnection(t *testing.T) {
	b := newMockBroker()

	if err := b.DeclareAndBindQueue("test-queue", "test.key"); err == nil {
		t.Error("Expected error with mock connection, but got nil")
	}
}

func TestDeclareEphemeralQueueWithoutConnection(t *testing.T) {
	b := newMockBroker()

	if _, err := b.DeclareEphemeralQueue(); err == nil {
		t.Error("Expected error with mock connection, but got nil")
	}
}

func TestEnsureConnection(t *testing.T) {
	b := newMockBroker()

	if err := b.ensureConnection(); err == nil {
		t.Error("Expected error with mock connection, but got nil")
	}
}

func TestClose(t *testing.T) {
	b := newMockBroker()

	// Should not panic even with nil connection and channel.
	if err := b.Close(); err != nil {
		t.Errorf("Close returned an error with nil connection: %v", err)
	}
}
