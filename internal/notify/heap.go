package notify

// bookingHeap is a min-heap of bookings ordered by fire time, so the next
// due delivery is always at the root.
type bookingHeap []*Booking

func (h bookingHeap) Len() int { return len(h) }

func (h bookingHeap) Less(i, j int) bool {
	return h[i].FireAt.Before(h[j].FireAt)
}

func (h bookingHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *bookingHeap) Push(x any) {
	*h = append(*h, x.(*Booking))
}

func (h *bookingHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return x
}

func (h bookingHeap) peek() *Booking {
	if len(h) == 0 {
		return nil
	}
	return h[0]
}
