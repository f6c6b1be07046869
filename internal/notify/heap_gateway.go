package notify

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/pilltick/backend/internal/clock"
	"go.uber.org/zap"
)

// DeliverFunc is invoked for each booking when its fire time arrives
type DeliverFunc func(ctx context.Context, booking Booking)

// HeapGateway is an in-process Gateway backed by a fire-time ordered heap.
// A ticker loop pops due bookings and hands them to the delivery callback.
type HeapGateway struct {
	deliver      DeliverFunc
	clock        clock.Clock
	tickInterval time.Duration
	logger       *zap.Logger

	mu      sync.Mutex
	pending bookingHeap
	// byID points at the live heap entry per booking id. Cancelled or
	// replaced entries stay in the heap and are dropped when they surface.
	byID    map[string]*Booking
	enabled bool
}

// NewHeapGateway creates a HeapGateway. Delivery does not start until Run
// is called.
func NewHeapGateway(deliver DeliverFunc, clk clock.Clock, tickInterval time.Duration, logger *zap.Logger) *HeapGateway {
	g := &HeapGateway{
		deliver:      deliver,
		clock:        clk,
		tickInterval: tickInterval,
		logger:       logger,
		byID:         make(map[string]*Booking),
		enabled:      true,
	}
	heap.Init(&g.pending)

	return g
}

// SetEnabled flips the permission state. A disabled gateway refuses new
// bookings and stops delivering.
func (g *HeapGateway) SetEnabled(enabled bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.enabled = enabled
}

// Enabled reports whether notification delivery is permitted
func (g *HeapGateway) Enabled(ctx context.Context) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.enabled
}

// Schedule books a delivery, replacing any pending booking with the same id
func (g *HeapGateway) Schedule(ctx context.Context, booking Booking) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.enabled {
		return ErrPermissionDenied
	}

	b := booking
	g.byID[b.ID] = &b
	heap.Push(&g.pending, &b)

	return nil
}

// Cancel removes a pending booking by id. Unknown ids are a no-op.
func (g *HeapGateway) Cancel(ctx context.Context, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	delete(g.byID, id)

	return nil
}

// ListPending returns a snapshot of every booking that has not yet fired
func (g *HeapGateway) ListPending(ctx context.Context) ([]Booking, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	bookings := make([]Booking, 0, len(g.byID))
	for _, b := range g.byID {
		bookings = append(bookings, *b)
	}

	return bookings, nil
}

// Run drives delivery until ctx is cancelled
func (g *HeapGateway) Run(ctx context.Context) {
	ticker := time.NewTicker(g.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.deliverDue(ctx, g.clock.Now())
		}
	}
}

// deliverDue pops and delivers every booking whose fire time has passed
func (g *HeapGateway) deliverDue(ctx context.Context, now time.Time) {
	for {
		g.mu.Lock()

		// Due bookings stay queued while disabled and deliver after re-enable.
		if !g.enabled {
			g.mu.Unlock()
			return
		}

		next := g.pending.peek()
		if next == nil || next.FireAt.After(now) {
			g.mu.Unlock()
			return
		}

		booking := heap.Pop(&g.pending).(*Booking)
		if g.byID[booking.ID] != booking {
			// Cancelled, or superseded by a later booking with the same id.
			g.mu.Unlock()
			continue
		}
		delete(g.byID, booking.ID)
		g.mu.Unlock()

		g.logger.Info("delivering notification",
			zap.String("booking_id", booking.ID),
			zap.String("medication_id", booking.Payload.MedicationID),
			zap.Int("sequence", booking.Payload.Sequence),
			zap.Time("fire_at", booking.FireAt),
		)
		g.deliver(ctx, *booking)
	}
}
