package app

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"sqlzibar/internal/domain"
)

// Maintenance runs periodic store upkeep: WAL checkpointing, planner
// statistics, and a report of grants about to expire.
type Maintenance struct {
	cron     *cron.Cron
	schedule string
	db       *sql.DB
	grants   domain.GrantRepository
	logger   *slog.Logger
}

func NewMaintenance(schedule string, db *sql.DB, grants domain.GrantRepository, logger *slog.Logger) *Maintenance {
	return &Maintenance{
		cron:     cron.New(),
		schedule: schedule,
		db:       db,
		grants:   grants,
		logger:   logger.With("component", "maintenance"),
	}
}

// Start registers the job and starts the scheduler. An empty schedule
// disables maintenance entirely.
func (m *Maintenance) Start() error {
	if m.schedule == "" {
		m.logger.Info("maintenance disabled")
		return nil
	}
	if _, err := m.cron.AddFunc(m.schedule, m.run); err != nil {
		return err
	}
	m.cron.Start()
	m.logger.Info("maintenance scheduler started", "schedule", m.schedule)
	return nil
}

// Stop stops the scheduler and waits for a running job to finish.
func (m *Maintenance) Stop() {
	ctx := m.cron.Stop()
	<-ctx.Done()
	m.logger.Info("maintenance scheduler stopped")
}

func (m *Maintenance) run() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if _, err := m.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		m.logger.Warn("wal checkpoint failed", "error", err)
	}
	if _, err := m.db.ExecContext(ctx, "PRAGMA optimize"); err != nil {
		m.logger.Warn("optimize failed", "error", err)
	}

	now := time.Now().UTC()
	expiring, err := m.grants.ListExpiringBetween(ctx, now, now.Add(24*time.Hour))
	if err != nil {
		m.logger.Warn("expiring grants report failed", "error", err)
		return
	}
	if len(expiring) > 0 {
		m.logger.Info("grants expiring within 24h", "count", len(expiring))
		for _, g := range expiring {
			m.logger.Info("grant expiring",
				"grant", g.ID,
				"principal", g.PrincipalID,
				"resource", g.ResourceID,
				"expires", g.EffectiveTo,
			)
		}
	}
}
