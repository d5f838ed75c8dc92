package bidding

import (
	"context"
	"fmt"

	"github.com/Olivier33jnspe/bidmenow/utils"

	"github.com/robfig/cron/v3"
)

// DefaultJanitorSchedule runs the sweep once a minute. Schedules use the
// standard five-field cron format or descriptors such as "@every 30s".
const DefaultJanitorSchedule = "@every 1m"

// Janitor periodically archives Ended auctions and drops their idle lanes
type Janitor struct {
	cron        *cron.Cron
	coordinator *Coordinator
	schedule    string
}

// NewJanitor creates a janitor for coordinator on a cron schedule
func NewJanitor(coordinator *Coordinator, schedule string) *Janitor {
	if schedule == "" {
		schedule = DefaultJanitorSchedule
	}
	return &Janitor{
		cron:        cron.New(),
		coordinator: coordinator,
		schedule:    schedule,
	}
}

// Start registers the sweep and starts the scheduler
func (j *Janitor) Start(ctx context.Context) error {
	if _, err := j.cron.AddFunc(j.schedule, func() { j.Sweep(ctx) }); err != nil {
		return fmt.Errorf("janitor: schedule %q: %w", j.schedule, err)
	}

	utils.Info("starting lane janitor", map[string]any{"schedule": j.schedule})
	j.cron.Start()
	return nil
}

// Stop stops the scheduler and waits for a running sweep to finish
func (j *Janitor) Stop() {
	<-j.cron.Stop().Done()
	utils.Info("lane janitor stopped", nil)
}

// Sweep archives Ended auctions, then reaps lanes that can no longer be used
func (j *Janitor) Sweep(ctx context.Context) (archived, reaped int) {
	archived = j.coordinator.ArchiveEnded(ctx)
	reaped = j.coordinator.ReapLanes()
	return archived, reaped
}
