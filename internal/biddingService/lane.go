package bidding

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// lane serializes admission decisions for one auction.
// sem is held across fetch -> decide -> journal -> commit; commit guards the
// short window in which the auction record and its bid history change
// together, so readers never see one without the other.
type lane struct {
	sem     *semaphore.Weighted
	commit  sync.RWMutex
	pending int // guarded by Coordinator.mu
}

func newLane() *lane {
	return &lane{sem: semaphore.NewWeighted(1)}
}

// enter blocks until the lane is free or ctx is done
func (l *lane) enter(ctx context.Context) error {
	return l.sem.Acquire(ctx, 1)
}

func (l *lane) leave() {
	l.sem.Release(1)
}
