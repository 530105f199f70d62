package sweeper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"

	"roombook/internal/db/models"
	"roombook/internal/messages"
)

// MockReservationStore mocks the record repository
type MockReservationStore struct {
	mock.Mock
}

func (m *MockReservationStore) GetOverduePending(cutoff time.Time) ([]*models.Reservation, error) {
	args := m.Called(cutoff)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Reservation), args.Error(1)
}

func (m *MockReservationStore) UpdateStatus(reservationID, status string) error {
	args := m.Called(reservationID, status)
	return args.Error(0)
}

// MockHoldStore mocks the hold existence probe
type MockHoldStore struct {
	mock.Mock
}

func (m *MockHoldStore) Exists(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

// MockPublisher mocks the change publisher
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishChange(resourceID string, slot messages.Slot, status, requesterID string) {
	m.Called(resourceID, slot, status, requesterID)
}

func overdueRow(id, requester, resource string) *models.Reservation {
	return &models.Reservation{
		ID:          id,
		RequesterID: requester,
		ResourceID:  resource,
		SlotStart:   "s-" + id,
		SlotEnd:     "e-" + id,
		Status:      messages.StatusPending,
		CreatedAt:   time.Now().UTC().Add(-11 * time.Minute),
	}
}

func TestSweepExpiresOverduePending(t *testing.T) {
	store := new(MockReservationStore)
	holds := new(MockHoldStore)
	pub := new(MockPublisher)

	overdue := []*models.Reservation{
		overdueRow("res-1", "alice", "R101"),
		overdueRow("res-2", "bob", "R202"),
	}
	store.On("GetOverduePending", mock.Anything).Return(overdue, nil)
	holds.On("Exists", mock.Anything, mock.Anything).Return(false, nil)
	store.On("UpdateStatus", "res-1", messages.StatusExpired).Return(nil)
	store.On("UpdateStatus", "res-2", messages.StatusExpired).Return(nil)
	pub.On("PublishChange", "R101", messages.Slot{Start: "s-res-1", End: "e-res-1"}, messages.StatusExpired, "alice").Return()
	pub.On("PublishChange", "R202", messages.Slot{Start: "s-res-2", End: "e-res-2"}, messages.StatusExpired, "bob").Return()

	New(store, holds, pub, 600*time.Second, time.Minute).Sweep(context.Background())

	store.AssertExpectations(t)
	pub.AssertExpectations(t)
}

func TestSweepSkipsLateAcquiredLiveHold(t *testing.T) {
	store := new(MockReservationStore)
	holds := new(MockHoldStore)
	pub := new(MockPublisher)

	// The row is well past the TTL cutoff by creation time, but its hold was
	// acquired late (queue backlog) and is still live in redis: the
	// requester is inside the confirmation window and must not be expired.
	row := overdueRow("res-live", "alice", "R101")
	store.On("GetOverduePending", mock.Anything).Return([]*models.Reservation{row}, nil)
	holds.On("Exists", mock.Anything, "hold:R101:s-res-live/e-res-live").Return(true, nil)

	New(store, holds, pub, 600*time.Second, time.Minute).Sweep(context.Background())

	store.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything)
	pub.AssertNotCalled(t, "PublishChange", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSweepSkipsRowOnHoldProbeFailure(t *testing.T) {
	store := new(MockReservationStore)
	holds := new(MockHoldStore)
	pub := new(MockPublisher)

	row := overdueRow("res-1", "alice", "R101")
	store.On("GetOverduePending", mock.Anything).Return([]*models.Reservation{row}, nil)
	holds.On("Exists", mock.Anything, mock.Anything).Return(false, errors.New("redis timeout"))

	New(store, holds, pub, 600*time.Second, time.Minute).Sweep(context.Background())

	// A hold that cannot be checked might still be live; leave the row for a
	// later sweep.
	store.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything)
	pub.AssertNotCalled(t, "PublishChange", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSweepSkipsEventOnWriteFailure(t *testing.T) {
	store := new(MockReservationStore)
	holds := new(MockHoldStore)
	pub := new(MockPublisher)

	row := overdueRow("res-1", "alice", "R101")
	store.On("GetOverduePending", mock.Anything).Return([]*models.Reservation{row}, nil)
	holds.On("Exists", mock.Anything, mock.Anything).Return(false, nil)
	store.On("UpdateStatus", "res-1", messages.StatusExpired).Return(errors.New("postgres down"))

	New(store, holds, pub, 600*time.Second, time.Minute).Sweep(context.Background())

	pub.AssertNotCalled(t, "PublishChange", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSweepListFailureDoesNothing(t *testing.T) {
	store := new(MockReservationStore)
	holds := new(MockHoldStore)
	pub := new(MockPublisher)

	store.On("GetOverduePending", mock.Anything).Return(nil, errors.New("postgres down"))

	New(store, holds, pub, 600*time.Second, time.Minute).Sweep(context.Background())

	store.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything)
	pub.AssertNotCalled(t, "PublishChange", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
