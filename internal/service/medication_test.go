package service

import (
	"context"
	"testing"
	"time"

	"github.com/pilltick/backend/internal/clock"
	"github.com/pilltick/backend/internal/events"
	"github.com/pilltick/backend/internal/notify"
	"github.com/pilltick/backend/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func validMedication() *model.Medication {
	return &model.Medication{
		Name:              "Metformin",
		Dosage:            "500mg",
		ReminderTime:      "08:00",
		ReminderDays:      []int{1, 3, 5},
		NotificationTypes: []model.NotificationChannel{model.ChannelVisual},
		IsActive:          true,
		RetryCount:        2,
	}
}

type medicationFixture struct {
	meds      *MockMedicationStore
	logs      *MockDoseLogStore
	scheduler *MockRescheduler
	bus       *events.Bus[events.MedicationChanged]
	clock     *clock.Fake
	service   *MedicationService
}

func newMedicationFixture() *medicationFixture {
	f := &medicationFixture{
		meds:      new(MockMedicationStore),
		logs:      new(MockDoseLogStore),
		scheduler: new(MockRescheduler),
		bus:       events.NewBus[events.MedicationChanged](),
		clock:     clock.NewFake(time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)),
	}
	f.service = NewMedicationService(f.meds, f.logs, f.scheduler, f.bus, f.clock, zap.NewNop())
	return f
}

func TestMedicationService_Create(t *testing.T) {
	t.Run("Validation", func(t *testing.T) {
		tests := []struct {
			name   string
			mutate func(*model.Medication)
		}{
			{"EmptyName", func(m *model.Medication) { m.Name = "" }},
			{"EmptyDosage", func(m *model.Medication) { m.Dosage = "" }},
			{"MalformedReminderTime", func(m *model.Medication) { m.ReminderTime = "8am" }},
			{"HourOutOfRange", func(m *model.Medication) { m.ReminderTime = "25:00" }},
			{"NegativeRetryCount", func(m *model.Medication) { m.RetryCount = -1 }},
			{"DayOutOfRange", func(m *model.Medication) { m.ReminderDays = []int{0, 7} }},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				f := newMedicationFixture()
				med := validMedication()
				tt.mutate(med)

				err := f.service.Create(context.Background(), med)

				assert.Error(t, err)
				f.meds.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
			})
		}
	})

	t.Run("Success", func(t *testing.T) {
		f := newMedicationFixture()
		f.meds.On("Create", mock.Anything, mock.Anything).Return(nil)
		f.scheduler.On("Reschedule", mock.Anything, mock.Anything).Return(nil)

		var published []events.MedicationChanged
		f.bus.Subscribe(func(_ context.Context, ev events.MedicationChanged) {
			published = append(published, ev)
		})

		med := validMedication()
		err := f.service.Create(context.Background(), med)

		require.NoError(t, err)
		assert.NotEmpty(t, med.ID)
		assert.Equal(t, f.clock.Now(), med.CreatedAt)
		assert.Equal(t, f.clock.Now(), med.UpdatedAt)
		f.scheduler.AssertCalled(t, "Reschedule", mock.Anything, mock.Anything)
		require.Len(t, published, 1)
		assert.Equal(t, med.ID, published[0].MedicationID)
		assert.False(t, published[0].Deleted)
	})

	t.Run("EmptyReminderDaysAllowed", func(t *testing.T) {
		f := newMedicationFixture()
		f.meds.On("Create", mock.Anything, mock.Anything).Return(nil)
		f.scheduler.On("Reschedule", mock.Anything, mock.Anything).Return(nil)

		med := validMedication()
		med.ReminderDays = nil

		assert.NoError(t, f.service.Create(context.Background(), med))
	})

	t.Run("PermissionDeniedStillSaves", func(t *testing.T) {
		f := newMedicationFixture()
		f.meds.On("Create", mock.Anything, mock.Anything).Return(nil)
		f.scheduler.On("Reschedule", mock.Anything, mock.Anything).Return(notify.ErrPermissionDenied)

		err := f.service.Create(context.Background(), validMedication())

		assert.NoError(t, err)
		f.meds.AssertExpectations(t)
	})

	t.Run("StoreError", func(t *testing.T) {
		f := newMedicationFixture()
		f.meds.On("Create", mock.Anything, mock.Anything).Return(assert.AnError)

		err := f.service.Create(context.Background(), validMedication())

		assert.Error(t, err)
		f.scheduler.AssertNotCalled(t, "Reschedule", mock.Anything, mock.Anything)
	})
}

func TestMedicationService_Update(t *testing.T) {
	existing := func() *model.Medication {
		med := validMedication()
		med.ID = "med-1"
		med.CreatedAt = time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC)
		return med
	}

	t.Run("NotFound", func(t *testing.T) {
		f := newMedicationFixture()
		f.meds.On("FindByID", mock.Anything, "missing").Return(nil, assert.AnError)

		err := f.service.Update(context.Background(), "missing", validMedication())

		assert.Error(t, err)
	})

	t.Run("ScheduleChangeTriggersReschedule", func(t *testing.T) {
		f := newMedicationFixture()
		f.meds.On("FindByID", mock.Anything, "med-1").Return(existing(), nil)
		f.meds.On("Update", mock.Anything, mock.Anything).Return(nil)
		f.scheduler.On("Reschedule", mock.Anything, mock.Anything).Return(nil)

		updates := validMedication()
		updates.ReminderTime = "21:30"
		err := f.service.Update(context.Background(), "med-1", updates)

		require.NoError(t, err)
		assert.Equal(t, "med-1", updates.ID)
		assert.Equal(t, existing().CreatedAt, updates.CreatedAt)
		f.scheduler.AssertCalled(t, "Reschedule", mock.Anything, mock.Anything)
	})

	t.Run("CosmeticChangeSkipsReschedule", func(t *testing.T) {
		f := newMedicationFixture()
		f.meds.On("FindByID", mock.Anything, "med-1").Return(existing(), nil)
		f.meds.On("Update", mock.Anything, mock.Anything).Return(nil)

		updates := validMedication()
		updates.Name = "Metformin XR"
		err := f.service.Update(context.Background(), "med-1", updates)

		require.NoError(t, err)
		f.scheduler.AssertNotCalled(t, "Reschedule", mock.Anything, mock.Anything)
	})

	t.Run("DeactivationTriggersReschedule", func(t *testing.T) {
		f := newMedicationFixture()
		f.meds.On("FindByID", mock.Anything, "med-1").Return(existing(), nil)
		f.meds.On("Update", mock.Anything, mock.Anything).Return(nil)
		f.scheduler.On("Reschedule", mock.Anything, mock.MatchedBy(func(m model.Medication) bool {
			return !m.IsActive
		})).Return(nil)

		updates := validMedication()
		updates.IsActive = false
		err := f.service.Update(context.Background(), "med-1", updates)

		require.NoError(t, err)
		f.scheduler.AssertExpectations(t)
	})
}

func TestMedicationService_Delete(t *testing.T) {
	t.Run("Cascade", func(t *testing.T) {
		f := newMedicationFixture()
		f.scheduler.On("CancelMedication", mock.Anything, "med-1").Return(nil)
		f.logs.On("DeleteByMedication", mock.Anything, "med-1").Return(int64(4), nil)
		f.meds.On("Delete", mock.Anything, "med-1").Return(nil)

		var published []events.MedicationChanged
		f.bus.Subscribe(func(_ context.Context, ev events.MedicationChanged) {
			published = append(published, ev)
		})

		err := f.service.Delete(context.Background(), "med-1")

		require.NoError(t, err)
		f.scheduler.AssertExpectations(t)
		f.logs.AssertExpectations(t)
		f.meds.AssertExpectations(t)
		require.Len(t, published, 1)
		assert.True(t, published[0].Deleted)
	})

	t.Run("BookingCancelFailureDoesNotBlockDelete", func(t *testing.T) {
		f := newMedicationFixture()
		f.scheduler.On("CancelMedication", mock.Anything, "med-1").Return(assert.AnError)
		f.logs.On("DeleteByMedication", mock.Anything, "med-1").Return(int64(0), nil)
		f.meds.On("Delete", mock.Anything, "med-1").Return(nil)

		assert.NoError(t, f.service.Delete(context.Background(), "med-1"))
	})

	t.Run("DoseLogDeleteFailureAborts", func(t *testing.T) {
		f := newMedicationFixture()
		f.scheduler.On("CancelMedication", mock.Anything, "med-1").Return(nil)
		f.logs.On("DeleteByMedication", mock.Anything, "med-1").Return(int64(0), assert.AnError)

		assert.Error(t, f.service.Delete(context.Background(), "med-1"))
		f.meds.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	})
}

func TestMedicationService_RescheduleAll(t *testing.T) {
	t.Run("SkipsInactive", func(t *testing.T) {
		f := newMedicationFixture()
		active := *validMedication()
		active.ID = "med-1"
		inactive := *validMedication()
		inactive.ID = "med-2"
		inactive.IsActive = false
		f.meds.On("FindAll", mock.Anything).Return([]model.Medication{active, inactive}, nil)
		f.scheduler.On("Reschedule", mock.Anything, active).Return(nil)

		err := f.service.RescheduleAll(context.Background())

		require.NoError(t, err)
		f.scheduler.AssertNumberOfCalls(t, "Reschedule", 1)
	})

	t.Run("PermissionDeniedStopsQuietly", func(t *testing.T) {
		f := newMedicationFixture()
		first := *validMedication()
		first.ID = "med-1"
		second := *validMedication()
		second.ID = "med-2"
		f.meds.On("FindAll", mock.Anything).Return([]model.Medication{first, second}, nil)
		f.scheduler.On("Reschedule", mock.Anything, mock.Anything).Return(notify.ErrPermissionDenied)

		err := f.service.RescheduleAll(context.Background())

		assert.NoError(t, err)
		f.scheduler.AssertNumberOfCalls(t, "Reschedule", 1)
	})
}
