/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/HamedShams/sprint-audit/internal/config"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// ErrNoRuns is returned by GetLastRun before the first run has been recorded.
var ErrNoRuns = errors.New("no audit runs recorded")

type DB struct {
	Pool *pgxpool.Pool
	log  zerolog.Logger
}

func Open(ctx context.Context, cfg config.Config, log zerolog.Logger) (*DB, error) {
	pool, err := pgxpool.New(ctx, cfg.DBDSN)
	if err != nil {
		return nil, err
	}
	ctx2, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := pool.Ping(ctx2); err != nil {
		pool.Close()
		return nil, err
	}
	return &DB{Pool: pool, log: log}, nil
}

func MustOpen(ctx context.Context, cfg config.Config, log zerolog.Logger) *DB {
	db, err := Open(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect failed")
	}
	return db
}

func (d *DB) Close() { d.Pool.Close() }

type Repository struct {
	db  *DB
	log zerolog.Logger
}

func NewRepository(d *DB, log zerolog.Logger) *Repository { return &Repository{db: d, log: log} }

const schema = `
CREATE TABLE IF NOT EXISTS audit_runs (
    id          BIGSERIAL PRIMARY KEY,
    run_uid     UUID NOT NULL UNIQUE,
    sprint      TEXT NOT NULL,
    started_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
    finished_at TIMESTAMPTZ,
    findings    INT,
    recipients  INT,
    mailed      BOOLEAN NOT NULL DEFAULT false,
    success     BOOLEAN NOT NULL DEFAULT false,
    error       TEXT,
    report      TEXT
)`

// EnsureSchema creates the bookkeeping table when missing.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	_, err := r.db.Pool.Exec(ctx, schema)
	return err
}

func (r *Repository) TryAdvisoryLock(ctx context.Context, key int64) (bool, error) {
	var ok bool
	err := r.db.Pool.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", key).Scan(&ok)
	return ok, err
}

func (r *Repository) AdvisoryUnlock(ctx context.Context, key int64) error {
	var ok bool
	err := r.db.Pool.QueryRow(ctx, "SELECT pg_advisory_unlock($1)", key).Scan(&ok)
	if !ok && err == nil {
		return errors.New("advisory unlock returned false")
	}
	return err
}

func (r *Repository) StartRun(ctx context.Context, runUID, sprint string) (int64, error) {
	const q = `INSERT INTO audit_runs(run_uid, sprint, started_at) VALUES($1, $2, now()) RETURNING id`
	var id int64
	if err := r.db.Pool.QueryRow(ctx, q, runUID, sprint).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// RunOutcome is what FinishRun records about a completed or failed run.
type RunOutcome struct {
	Findings   int
	Recipients int
	Mailed     bool
	Success    bool
	Error      string
	Report     string
}

func (r *Repository) FinishRun(ctx context.Context, id int64, o RunOutcome) error {
	const q = `UPDATE audit_runs SET finished_at=now(), findings=$2, recipients=$3, mailed=$4, success=$5, error=$6, report=$7 WHERE id=$1`
	_, err := r.db.Pool.Exec(ctx, q, id, o.Findings, o.Recipients, o.Mailed, o.Success, o.Error, o.Report)
	return err
}

type LastRun struct {
	RunUID     string     `json:"run_uid"`
	Sprint     string     `json:"sprint"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at"`
	Findings   int        `json:"findings"`
	Recipients int        `json:"recipients"`
	Mailed     bool       `json:"mailed"`
	Success    bool       `json:"success"`
	Error      string     `json:"error"`
	Report     string     `json:"report"`
}

// GetLastRun returns the most recent run only; older rows are not exposed.
func (r *Repository) GetLastRun(ctx context.Context) (*LastRun, error) {
	const q = `SELECT run_uid::text, sprint, started_at, finished_at,
        coalesce(findings,0), coalesce(recipients,0), mailed, success,
        coalesce(error,''), coalesce(report,'')
		FROM audit_runs ORDER BY id DESC LIMIT 1`
	lr := &LastRun{}
	err := r.db.Pool.QueryRow(ctx, q).Scan(&lr.RunUID, &lr.Sprint, &lr.StartedAt, &lr.FinishedAt,
		&lr.Findings, &lr.Recipients, &lr.Mailed, &lr.Success, &lr.Error, &lr.Report)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoRuns
	}
	if err != nil {
		return nil, err
	}
	return lr, nil
}
