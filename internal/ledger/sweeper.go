package ledger

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// DefaultSweepSchedule runs the low stock sweep every morning at 8
const DefaultSweepSchedule = "0 8 * * *"

// Sweeper runs the low stock sweep on a cron schedule
type Sweeper struct {
	cron    *cron.Cron
	service *Service
}

// NewSweeper schedules SweepLowStock. schedule is a standard five field cron
// expression or a descriptor such as "@hourly".
func NewSweeper(service *Service, schedule string) (*Sweeper, error) {
	sw := &Sweeper{
		cron:    cron.New(),
		service: service,
	}
	if _, err := sw.cron.AddFunc(schedule, sw.Run); err != nil {
		return nil, fmt.Errorf("scheduling low stock sweep %q: %w", schedule, err)
	}
	return sw, nil
}

// Run sweeps once
func (sw *Sweeper) Run() {
	alerts, err := sw.service.SweepLowStock()
	if err != nil {
		slog.Error("Low stock sweep failed", "error", err)
		return
	}
	slog.Info("Low stock sweep finished", "alerts", len(alerts))
}

// Start starts the scheduler in its own goroutine
func (sw *Sweeper) Start() {
	slog.Info("Starting low stock sweeper", "entries", len(sw.cron.Entries()))
	sw.cron.Start()
}

// Stop stops the scheduler; the returned context is done once a running
// sweep has finished
func (sw *Sweeper) Stop() context.Context {
	return sw.cron.Stop()
}
