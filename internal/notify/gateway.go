// Package notify defines the notification gateway contract and an
// in-process implementation that delivers bookings at their fire time.
package notify

import (
	"context"
	"errors"
	"time"
)

// ErrPermissionDenied is returned when the platform has not granted
// notification permission. Scheduling is a precondition failure, not
// something the caller should retry.
var ErrPermissionDenied = errors.New("notification permission denied")

// Payload is the opaque content attached to a booking. Channel hints and
// the critical flag pass straight through to the delivery layer.
type Payload struct {
	MedicationID   string    `json:"medication_id,omitempty"`
	OccurrenceTime time.Time `json:"occurrence_time,omitempty"`
	// Sequence is 0 for the original reminder and 1..n for retries.
	Sequence    int      `json:"sequence,omitempty"`
	RecipientID string   `json:"recipient_id,omitempty"`
	Title       string   `json:"title"`
	Body        string   `json:"body"`
	Channels    []string `json:"channels,omitempty"`
	Critical    bool     `json:"critical,omitempty"`
}

// Booking is one pending delivery
type Booking struct {
	ID      string    `json:"id"`
	FireAt  time.Time `json:"fire_at"`
	Payload Payload   `json:"payload"`
}

// Gateway accepts bookings and guarantees delivery at their fire time
type Gateway interface {
	// Schedule books a delivery. Booking an already-known id replaces the
	// previous entry instead of duplicating it.
	Schedule(ctx context.Context, booking Booking) error
	// Cancel removes a pending booking by id. Cancelling an unknown or
	// already-fired id is a no-op.
	Cancel(ctx context.Context, id string) error
	// ListPending returns every booking that has not yet fired.
	ListPending(ctx context.Context) ([]Booking, error)
	// Enabled reports whether notification delivery is permitted.
	Enabled(ctx context.Context) bool
}
