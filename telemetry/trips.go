package telemetry

// TripTracker measures how long each robot carries a resource between
// pickup and delivery.
type TripTracker struct {
	pickedAt map[uint32]int32

	completed int
	total     int64
}

// NewTripTracker creates a new trip tracker.
func NewTripTracker() *TripTracker {
	return &TripTracker{
		pickedAt: make(map[uint32]int32),
	}
}

// Pickup starts a trip for robot id.
func (tt *TripTracker) Pickup(id uint32, tick int32) {
	tt.pickedAt[id] = tick
}

// Deliver ends the trip of robot id and returns its duration in ticks.
// ok is false when no pickup was recorded, e.g. for a robot that was
// carrying before tracking began.
func (tt *TripTracker) Deliver(id uint32, tick int32) (ticks int32, ok bool) {
	start, ok := tt.pickedAt[id]
	if !ok {
		return 0, false
	}
	delete(tt.pickedAt, id)
	ticks = tick - start
	tt.completed++
	tt.total += int64(ticks)
	return ticks, true
}

// Forget drops an open trip, for robots removed by a resize.
func (tt *TripTracker) Forget(id uint32) {
	delete(tt.pickedAt, id)
}

// Open returns the number of trips in progress.
func (tt *TripTracker) Open() int {
	return len(tt.pickedAt)
}

// Completed returns the number of finished trips.
func (tt *TripTracker) Completed() int {
	return tt.completed
}

// MeanTicks returns the mean duration of all finished trips.
func (tt *TripTracker) MeanTicks() float64 {
	if tt.completed == 0 {
		return 0
	}
	return float64(tt.total) / float64(tt.completed)
}
