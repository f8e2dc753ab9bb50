/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	apihttp "github.com/HamedShams/sprint-audit/internal/http"
	"github.com/HamedShams/sprint-audit/internal/jobs"
	"github.com/HamedShams/sprint-audit/internal/logger"
	"github.com/HamedShams/sprint-audit/internal/repo"
	"github.com/HamedShams/sprint-audit/internal/services"
	"github.com/spf13/cobra"
)

func newServeCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the audit on a weekday schedule with an admin HTTP API",
		Long: `Schedules the daily audit with CRON_SPEC and serves:

  GET  /healthz
  GET  /admin/last-run   (requires DB_DSN)
  POST /admin/run        (?mail=false to skip delivery)

Runs are recorded in Postgres when DB_DSN is set; an advisory lock keeps
replicas from running the same schedule twice.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(f)
			if err != nil {
				return err
			}
			if !cfg.HasCredentials() {
				return errors.New("serve needs JIRA_PAT or JIRA_USERNAME and JIRA_PASSWORD")
			}
			log := logger.New(cfg)
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			var store services.RunStore
			var lock jobs.Locker
			if cfg.DBDSN != "" {
				db, err := repo.Open(ctx, cfg, log)
				if err != nil {
					return fmt.Errorf("db connect: %w", err)
				}
				defer db.Close()
				r := repo.NewRepository(db, log)
				if err := r.EnsureSchema(ctx); err != nil {
					return fmt.Errorf("db schema: %w", err)
				}
				store, lock = r, r
			} else {
				log.Warn().Msg("DB_DSN not set: run history and cron lock disabled")
			}

			svc := newService(cfg, log, store)

			cr, err := jobs.NewCron(cfg, log, svc, lock)
			if err != nil {
				return err
			}
			cr.Start()
			defer cr.Stop()

			srv := &http.Server{Addr: cfg.HTTPAddr, Handler: apihttp.NewRouter(cfg, log, svc)}
			errCh := make(chan error, 1)
			go func() { errCh <- srv.ListenAndServe() }()
			log.Info().Str("addr", cfg.HTTPAddr).Str("cron", cfg.DailyCron).Msg("serving")

			select {
			case <-ctx.Done():
				log.Info().Msg("shutting down...")
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("http server: %w", err)
				}
			}
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
}
