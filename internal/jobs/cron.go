/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/HamedShams/sprint-audit/internal/config"
	"github.com/HamedShams/sprint-audit/internal/services"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// lockKey serialises scheduled runs across replicas sharing one database.
const lockKey int64 = 424243

type service interface {
	RunDaily(ctx context.Context, opts services.RunOptions) (*services.RunResult, error)
}

type Locker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (bool, error)
	AdvisoryUnlock(ctx context.Context, key int64) error
}

type Cron struct {
	cfg  config.Config
	log  zerolog.Logger
	svc  service
	lock Locker
	c    *cron.Cron
}

// NewCron schedules the daily audit. lock may be nil when no database is configured.
func NewCron(cfg config.Config, log zerolog.Logger, svc service, lock Locker) (*Cron, error) {
	loc := time.Local
	if cfg.TZ != "" && cfg.TZ != "Local" {
		l, err := time.LoadLocation(cfg.TZ)
		if err != nil {
			return nil, fmt.Errorf("cron: timezone %q: %w", cfg.TZ, err)
		}
		loc = l
	}
	c := cron.New(cron.WithLocation(loc), cron.WithParser(cron.NewParser(cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow)))
	cr := &Cron{cfg: cfg, log: log, svc: svc, lock: lock, c: c}
	if _, err := c.AddFunc(cfg.DailyCron, cr.daily); err != nil {
		return nil, fmt.Errorf("cron: spec %q: %w", cfg.DailyCron, err)
	}
	return cr, nil
}

func (cr *Cron) Start() { cr.c.Start() }

// Stop waits for a running job to finish.
func (cr *Cron) Stop() { <-cr.c.Stop().Done() }

func (cr *Cron) daily() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	if cr.lock != nil {
		ok, err := cr.lock.TryAdvisoryLock(ctx, lockKey)
		if err != nil {
			cr.log.Error().Err(err).Msg("cron: lock error")
			return
		}
		if !ok {
			cr.log.Info().Msg("cron: already running elsewhere")
			return
		}
		defer func() { _ = cr.lock.AdvisoryUnlock(context.Background(), lockKey) }()
	}
	cr.log.Info().Msg("cron: daily audit")
	if _, err := cr.svc.RunDaily(ctx, services.RunOptions{SendMail: cr.cfg.SendMail}); err != nil {
		cr.log.Error().Err(err).Msg("cron: daily audit failed")
	}
}
