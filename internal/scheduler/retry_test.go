package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/pilltick/backend/internal/clock"
	"github.com/pilltick/backend/internal/events"
	"github.com/pilltick/backend/internal/notify"
	"github.com/pilltick/backend/internal/repository"
	"github.com/pilltick/backend/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRetryController(gateway notify.Gateway, store RetryStore, lookup MedicationLookup, now time.Time) *RetryController {
	return NewRetryController(store, gateway, lookup, 10*time.Minute, clock.NewFake(now), zap.NewNop())
}

func TestRetryController_Arm(t *testing.T) {
	now := time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)
	original := time.Date(2024, 1, 3, 8, 0, 0, 0, time.UTC)

	t.Run("BooksChainAtFixedSpacing", func(t *testing.T) {
		gateway := newFakeGateway()
		store := new(MockRetryStore)
		store.On("DeactivateByOccurrence", mock.Anything, "med-1", original).Return(int64(0), nil)
		store.On("Create", mock.Anything, mock.MatchedBy(func(r *model.RetryNotification) bool {
			return r.MedicationID == "med-1" && r.OriginalTime.Equal(original) && r.IsActive
		})).Return(nil)
		c := newTestRetryController(gateway, store, &MockMedicationLookup{}, now)

		med := testMedication()
		med.RetryCount = 2
		err := c.Arm(context.Background(), med, original)

		require.NoError(t, err)
		store.AssertNumberOfCalls(t, "Create", 2)
		require.Len(t, gateway.bookings, 2)
		assert.Contains(t, gateway.bookings, BookingID("med-1", original, 1))
		assert.Contains(t, gateway.bookings, BookingID("med-1", original, 2))
		assert.Equal(t, original.Add(10*time.Minute), gateway.bookings[BookingID("med-1", original, 1)].FireAt)
		assert.Equal(t, original.Add(20*time.Minute), gateway.bookings[BookingID("med-1", original, 2)].FireAt)
	})

	t.Run("RearmingSupersedesExistingRows", func(t *testing.T) {
		gateway := newFakeGateway()
		store := new(MockRetryStore)
		store.On("DeactivateByOccurrence", mock.Anything, "med-1", original).Return(int64(2), nil)
		store.On("Create", mock.Anything, mock.Anything).Return(nil)
		c := newTestRetryController(gateway, store, &MockMedicationLookup{}, now)

		med := testMedication()
		med.RetryCount = 2
		require.NoError(t, c.Arm(context.Background(), med, original))

		// Prior rows for the occurrence are deactivated before fresh ones land,
		// so the store never holds two active rows per sequence.
		store.AssertCalled(t, "DeactivateByOccurrence", mock.Anything, "med-1", original)
		store.AssertNumberOfCalls(t, "Create", 2)
	})

	t.Run("ZeroRetriesBooksNothing", func(t *testing.T) {
		gateway := newFakeGateway()
		store := new(MockRetryStore)
		store.On("DeactivateByOccurrence", mock.Anything, "med-1", original).Return(int64(0), nil)
		c := newTestRetryController(gateway, store, &MockMedicationLookup{}, now)

		med := testMedication()
		med.RetryCount = 0
		require.NoError(t, c.Arm(context.Background(), med, original))

		assert.Empty(t, gateway.bookings)
		store.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})
}

func TestRetryController_Resolve(t *testing.T) {
	now := time.Date(2024, 1, 3, 8, 5, 0, 0, time.UTC)
	original := time.Date(2024, 1, 3, 8, 0, 0, 0, time.UTC)
	other := time.Date(2024, 1, 4, 8, 0, 0, 0, time.UTC)

	seed := func(gateway *fakeGateway, medicationID string, occurrence time.Time, sequence int) {
		booking := notify.Booking{
			ID:     BookingID(medicationID, occurrence, sequence),
			FireAt: occurrence.Add(time.Duration(sequence) * 10 * time.Minute),
			Payload: notify.Payload{
				MedicationID:   medicationID,
				OccurrenceTime: occurrence,
				Sequence:       sequence,
			},
		}
		require.NoError(t, gateway.Schedule(context.Background(), booking))
	}

	t.Run("CancelsOriginalAndRetries", func(t *testing.T) {
		gateway := newFakeGateway()
		seed(gateway, "med-1", original, 0)
		seed(gateway, "med-1", original, 1)
		seed(gateway, "med-1", other, 0)
		seed(gateway, "med-2", original, 1)

		store := new(MockRetryStore)
		store.On("DeactivateByOccurrence", mock.Anything, "med-1", original).Return(int64(1), nil)
		c := newTestRetryController(gateway, store, &MockMedicationLookup{}, now)

		c.Resolve(context.Background(), "med-1", original)

		store.AssertExpectations(t)
		assert.Len(t, gateway.bookings, 2)
		assert.Contains(t, gateway.bookings, BookingID("med-1", other, 0))
		assert.Contains(t, gateway.bookings, BookingID("med-2", original, 1))
	})

	t.Run("StoreFailureStillCancelsBookings", func(t *testing.T) {
		gateway := newFakeGateway()
		seed(gateway, "med-1", original, 1)

		store := new(MockRetryStore)
		store.On("DeactivateByOccurrence", mock.Anything, "med-1", original).Return(int64(0), assert.AnError)
		c := newTestRetryController(gateway, store, &MockMedicationLookup{}, now)

		c.Resolve(context.Background(), "med-1", original)

		assert.Empty(t, gateway.bookings)
	})

	t.Run("ResolveMedicationDropsEverything", func(t *testing.T) {
		gateway := newFakeGateway()
		seed(gateway, "med-1", original, 0)
		seed(gateway, "med-1", other, 1)
		seed(gateway, "med-2", original, 0)

		store := new(MockRetryStore)
		store.On("DeactivateByMedication", mock.Anything, "med-1").Return(int64(2), nil)
		c := newTestRetryController(gateway, store, &MockMedicationLookup{}, now)

		c.ResolveMedication(context.Background(), "med-1")

		store.AssertExpectations(t)
		assert.Len(t, gateway.bookings, 1)
		assert.Contains(t, gateway.bookings, BookingID("med-2", original, 0))
	})
}

func TestRetryController_SubscribeDoseLogged(t *testing.T) {
	now := time.Date(2024, 1, 3, 8, 5, 0, 0, time.UTC)
	original := time.Date(2024, 1, 3, 8, 0, 0, 0, time.UTC)

	gateway := newFakeGateway()
	require.NoError(t, gateway.Schedule(context.Background(), notify.Booking{
		ID:     BookingID("med-1", original, 1),
		FireAt: original.Add(10 * time.Minute),
		Payload: notify.Payload{
			MedicationID:   "med-1",
			OccurrenceTime: original,
			Sequence:       1,
		},
	}))

	store := new(MockRetryStore)
	store.On("DeactivateByOccurrence", mock.Anything, "med-1", original).Return(int64(1), nil)
	c := newTestRetryController(gateway, store, &MockMedicationLookup{}, now)

	bus := events.NewBus[events.DoseLogged]()
	c.SubscribeDoseLogged(bus)

	bus.Publish(context.Background(), events.DoseLogged{
		MedicationID:  "med-1",
		ScheduledTime: original,
		Status:        model.DoseStatusTaken,
	})

	// Publish is synchronous, the chain is resolved before it returns
	store.AssertExpectations(t)
	assert.Empty(t, gateway.bookings)
}

func TestRetryController_SubscribeMedicationChanged(t *testing.T) {
	now := time.Date(2024, 1, 3, 8, 5, 0, 0, time.UTC)
	original := time.Date(2024, 1, 3, 8, 0, 0, 0, time.UTC)

	t.Run("DeletionTearsDownChains", func(t *testing.T) {
		gateway := newFakeGateway()
		require.NoError(t, gateway.Schedule(context.Background(), notify.Booking{
			ID:     BookingID("med-1", original, 1),
			FireAt: original.Add(10 * time.Minute),
			Payload: notify.Payload{
				MedicationID:   "med-1",
				OccurrenceTime: original,
				Sequence:       1,
			},
		}))

		store := new(MockRetryStore)
		store.On("DeactivateByMedication", mock.Anything, "med-1").Return(int64(1), nil)
		c := newTestRetryController(gateway, store, &MockMedicationLookup{}, now)

		bus := events.NewBus[events.MedicationChanged]()
		c.SubscribeMedicationChanged(bus)

		bus.Publish(context.Background(), events.MedicationChanged{MedicationID: "med-1", Deleted: true})

		store.AssertExpectations(t)
		assert.Empty(t, gateway.bookings)
	})

	t.Run("UpdatesLeaveChainsAlone", func(t *testing.T) {
		store := new(MockRetryStore)
		c := newTestRetryController(newFakeGateway(), store, &MockMedicationLookup{}, now)

		bus := events.NewBus[events.MedicationChanged]()
		c.SubscribeMedicationChanged(bus)

		bus.Publish(context.Background(), events.MedicationChanged{MedicationID: "med-1"})

		store.AssertNotCalled(t, "DeactivateByMedication", mock.Anything, mock.Anything)
	})
}

func TestRetryController_FilterDelivery(t *testing.T) {
	now := time.Date(2024, 1, 3, 8, 10, 0, 0, time.UTC)
	original := time.Date(2024, 1, 3, 8, 0, 0, 0, time.UTC)

	retryBooking := notify.Booking{
		ID:     BookingID("med-1", original, 1),
		FireAt: original.Add(10 * time.Minute),
		Payload: notify.Payload{
			MedicationID:   "med-1",
			OccurrenceTime: original,
			Sequence:       1,
		},
	}

	t.Run("DeliversWhenMedicationExists", func(t *testing.T) {
		lookup := new(MockMedicationLookup)
		med := testMedication()
		med.RetryCount = 2
		lookup.On("FindByID", mock.Anything, "med-1").Return(&med, nil)
		store := new(MockRetryStore)
		c := newTestRetryController(newFakeGateway(), store, lookup, now)

		delivered := 0
		c.FilterDelivery(func(context.Context, notify.Booking) { delivered++ })(context.Background(), retryBooking)

		assert.Equal(t, 1, delivered)
		// Sequence 1 of 2 leaves the chain armed for the next retry
		store.AssertNotCalled(t, "DeactivateByOccurrence", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("FinalRetryExpiresChain", func(t *testing.T) {
		lookup := new(MockMedicationLookup)
		med := testMedication()
		med.RetryCount = 1
		lookup.On("FindByID", mock.Anything, "med-1").Return(&med, nil)
		store := new(MockRetryStore)
		store.On("DeactivateByOccurrence", mock.Anything, "med-1", original).Return(int64(1), nil)
		c := newTestRetryController(newFakeGateway(), store, lookup, now)

		delivered := 0
		c.FilterDelivery(func(context.Context, notify.Booking) { delivered++ })(context.Background(), retryBooking)

		// The last retry still fires, then its rows go inactive so the audit
		// listing no longer reports a live chain.
		assert.Equal(t, 1, delivered)
		store.AssertExpectations(t)
	})

	t.Run("ResolvesInsteadOfFiringWhenMedicationDeleted", func(t *testing.T) {
		lookup := new(MockMedicationLookup)
		lookup.On("FindByID", mock.Anything, "med-1").Return(nil, repository.ErrNotFound)
		gateway := newFakeGateway()
		store := new(MockRetryStore)
		store.On("DeactivateByOccurrence", mock.Anything, "med-1", original).Return(int64(1), nil)
		c := newTestRetryController(gateway, store, lookup, now)

		delivered := 0
		c.FilterDelivery(func(context.Context, notify.Booking) { delivered++ })(context.Background(), retryBooking)

		assert.Zero(t, delivered)
		store.AssertExpectations(t)
	})

	t.Run("OriginalsPassThroughUnchecked", func(t *testing.T) {
		lookup := new(MockMedicationLookup)
		c := newTestRetryController(newFakeGateway(), new(MockRetryStore), lookup, now)

		originalBooking := retryBooking
		originalBooking.Payload.Sequence = 0

		delivered := 0
		c.FilterDelivery(func(context.Context, notify.Booking) { delivered++ })(context.Background(), originalBooking)

		assert.Equal(t, 1, delivered)
		lookup.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
	})
}
