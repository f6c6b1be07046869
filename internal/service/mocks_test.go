package service

import (
	"context"
	"time"

	"github.com/pilltick/backend/pkg/model"
	"github.com/stretchr/testify/mock"
)

// MockMedicationStore is a mock implementation of MedicationStore
type MockMedicationStore struct {
	mock.Mock
}

func (m *MockMedicationStore) Create(ctx context.Context, med *model.Medication) error {
	args := m.Called(ctx, med)
	return args.Error(0)
}

func (m *MockMedicationStore) FindAll(ctx context.Context) ([]model.Medication, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Medication), args.Error(1)
}

func (m *MockMedicationStore) FindByID(ctx context.Context, medicationID string) (*model.Medication, error) {
	args := m.Called(ctx, medicationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Medication), args.Error(1)
}

func (m *MockMedicationStore) Update(ctx context.Context, med *model.Medication) error {
	args := m.Called(ctx, med)
	return args.Error(0)
}

func (m *MockMedicationStore) Delete(ctx context.Context, medicationID string) error {
	args := m.Called(ctx, medicationID)
	return args.Error(0)
}

// MockDoseLogStore is a mock implementation of DoseLogStore
type MockDoseLogStore struct {
	mock.Mock
}

func (m *MockDoseLogStore) Create(ctx context.Context, log *model.DoseLog) error {
	args := m.Called(ctx, log)
	return args.Error(0)
}

func (m *MockDoseLogStore) FindCreatedBetween(ctx context.Context, from, to time.Time) ([]model.DoseLog, error) {
	args := m.Called(ctx, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.DoseLog), args.Error(1)
}

func (m *MockDoseLogStore) FindAll(ctx context.Context) ([]model.DoseLog, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.DoseLog), args.Error(1)
}

func (m *MockDoseLogStore) Delete(ctx context.Context, logID string) error {
	args := m.Called(ctx, logID)
	return args.Error(0)
}

func (m *MockDoseLogStore) DeleteByMedication(ctx context.Context, medicationID string) (int64, error) {
	args := m.Called(ctx, medicationID)
	return args.Get(0).(int64), args.Error(1)
}

// MockRescheduler is a mock implementation of Rescheduler
type MockRescheduler struct {
	mock.Mock
}

func (m *MockRescheduler) Reschedule(ctx context.Context, med model.Medication) error {
	args := m.Called(ctx, med)
	return args.Error(0)
}

func (m *MockRescheduler) CancelMedication(ctx context.Context, medicationID string) error {
	args := m.Called(ctx, medicationID)
	return args.Error(0)
}
