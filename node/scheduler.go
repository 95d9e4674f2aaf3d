package node

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/AvaProtocol/ap-router/pkg/timekeeper"
)

const uptimeInterval = 15 * time.Second

// startScheduler registers the periodic maintenance jobs: backups, badger
// value log GC and the uptime counter.
func (n *Node) startScheduler(ctx context.Context) error {
	scheduler, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return fmt.Errorf("failed to initialize scheduler: %w", err)
	}
	n.scheduler = scheduler

	if n.config.BackupInterval > 0 && n.backup != nil {
		if _, err := scheduler.NewJob(
			gocron.DurationJob(n.config.BackupInterval),
			gocron.NewTask(func() { n.runMaintenance("backup", func() error { return n.backupAndPrune(ctx) }) }),
		); err != nil {
			return fmt.Errorf("failed to create backup job: %w", err)
		}
	}

	if n.config.VacuumInterval > 0 {
		if _, err := scheduler.NewJob(
			gocron.DurationJob(n.config.VacuumInterval),
			gocron.NewTask(func() { n.runMaintenance("vacuum", n.db.Vacuum) }),
		); err != nil {
			return fmt.Errorf("failed to create vacuum job: %w", err)
		}
	}

	elapsing := timekeeper.NewElapsing()
	if _, err := scheduler.NewJob(
		gocron.DurationJob(uptimeInterval),
		gocron.NewTask(func() {
			n.metrics.AddUptime(float64(elapsing.Report().Milliseconds()))
		}),
	); err != nil {
		return fmt.Errorf("failed to create uptime job: %w", err)
	}

	scheduler.Start()
	return nil
}

func (n *Node) stopScheduler() {
	if n.scheduler == nil {
		return
	}
	if err := n.scheduler.Shutdown(); err != nil {
		n.logger.Warn("scheduler shutdown", "error", err)
	}
}

func (n *Node) backupAndPrune(ctx context.Context) error {
	if _, err := n.backup.PerformBackup(ctx); err != nil {
		return err
	}
	_, err := n.backup.Prune(n.config.BackupKeep)
	return err
}

func (n *Node) runMaintenance(job string, fn func() error) {
	if err := fn(); err != nil {
		n.logger.Error("maintenance job failed", "job", job, "error", err)
		n.metrics.IncMaintenance(job, "failed")
		return
	}
	n.logger.Debug("maintenance job done", "job", job)
	n.metrics.IncMaintenance(job, "success")
}
