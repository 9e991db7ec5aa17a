package services

import (
	"context"
	"fmt"
	"time"

	"ticketing-realtime/internal/domain"
	"ticketing-realtime/pkg/logger"

	"github.com/robfig/cron/v3"
)

// AdminLister reports the admin connections currently admitted.
type AdminLister interface {
	ListByRole(role domain.Role) []domain.Connection
}

// CronScheduler runs the periodic jobs of the realtime core: the idle reaper and the
// dashboard push to connected admins.
type CronScheduler struct {
	cron         *cron.Cron
	reaper       *IdleReaper
	dashboard    domain.DashboardPusher
	admins       AdminLister
	reapInterval time.Duration
	pushInterval time.Duration
	jobTimeout   time.Duration
	log          logger.Logger
}

func NewCronScheduler(reaper *IdleReaper, dashboard domain.DashboardPusher, admins AdminLister,
	reapInterval, pushInterval time.Duration, log logger.Logger) *CronScheduler {
	cronLog := cronLogger{log: log}
	return &CronScheduler{
		cron: cron.New(cron.WithSeconds(), cron.WithChain(
			cron.Recover(cronLog),
			cron.SkipIfStillRunning(cronLog),
		)),
		reaper:       reaper,
		dashboard:    dashboard,
		admins:       admins,
		reapInterval: reapInterval,
		pushInterval: pushInterval,
		jobTimeout:   pushInterval,
		log:          log,
	}
}

func (s *CronScheduler) Start(ctx context.Context) error {
	s.log.Info("Starting realtime scheduler", "reap_interval", s.reapInterval, "push_interval", s.pushInterval)

	if _, err := s.cron.AddFunc(every(s.reapInterval), func() {
		s.reaper.Run()
	}); err != nil {
		return fmt.Errorf("schedule reaper: %w", err)
	}

	if _, err := s.cron.AddFunc(every(s.pushInterval), func() {
		s.pushDashboard(ctx)
	}); err != nil {
		return fmt.Errorf("schedule dashboard push: %w", err)
	}

	s.cron.Start()
	return nil
}

// Stop waits for running jobs to finish.
func (s *CronScheduler) Stop() error {
	s.log.Info("Stopping realtime scheduler")
	<-s.cron.Stop().Done()
	return nil
}

// pushDashboard recomputes and pushes the snapshot, skipping the query when no admin
// is connected.
func (s *CronScheduler) pushDashboard(ctx context.Context) {
	if len(s.admins.ListByRole(domain.RoleAdmin)) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, s.jobTimeout)
	defer cancel()

	s.dashboard.Invalidate()
	if err := s.dashboard.PushToAdmins(ctx); err != nil {
		s.log.Warn("Periodic dashboard push degraded", "error", err)
	}
}

func every(d time.Duration) string {
	return "@every " + d.String()
}

// cronLogger adapts the service logger to cron's job wrappers.
type cronLogger struct {
	log logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error(msg, append(keysAndValues, "error", err)...)
}
