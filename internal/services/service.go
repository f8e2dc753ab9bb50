/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/HamedShams/sprint-audit/internal/config"
	"github.com/HamedShams/sprint-audit/internal/domain"
	"github.com/HamedShams/sprint-audit/internal/metrics"
	"github.com/HamedShams/sprint-audit/internal/repo"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	ErrRunInProgress   = errors.New("an audit run is already in progress")
	ErrHistoryDisabled = errors.New("run history is disabled (no DB_DSN)")
)

// JiraClient is the issue tracker as seen by a run.
type JiraClient interface {
	metrics.IssueSource
	ResolveSprint(ctx context.Context, project, name string) (domain.SprintWindow, error)
}

type Mailer interface {
	Send(ctx context.Context, from string, to []string, report string) error
}

type Notifier interface {
	Enabled() bool
	Broadcast(ctx context.Context, text string) error
}

// RunStore records run outcomes. It is optional.
type RunStore interface {
	StartRun(ctx context.Context, runUID, sprint string) (int64, error)
	FinishRun(ctx context.Context, id int64, o repo.RunOutcome) error
	GetLastRun(ctx context.Context) (*repo.LastRun, error)
}

type Service struct {
	cfg      config.Config
	log      zerolog.Logger
	store    RunStore
	jira     JiraClient
	mailer   Mailer
	tg       Notifier
	narrator metrics.Narrator
	out      io.Writer
	now      func() time.Time
	running  atomic.Bool
}

type Option func(*Service)

func WithNarrator(n metrics.Narrator) Option { return func(s *Service) { s.narrator = n } }

// WithOutput sets where the rendered report is printed. Defaults to stdout.
func WithOutput(w io.Writer) Option { return func(s *Service) { s.out = w } }

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// New wires a service; store and tg may be nil.
func New(cfg config.Config, log zerolog.Logger, store RunStore, jira JiraClient, mailer Mailer, tg Notifier, opts ...Option) *Service {
	s := &Service{
		cfg: cfg, log: log, store: store, jira: jira, mailer: mailer, tg: tg,
		narrator: metrics.LogNarrator{Log: log},
		out:      os.Stdout,
		now:      time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// RunOptions override the configured team for a single run.
type RunOptions struct {
	SendMail   bool
	Developers []string
	Vacation   []string
}

type RunResult struct {
	RunID      string
	Sprint     domain.SprintWindow
	Report     *domain.AggregateReport
	Text       string
	Recipients []string
	Mailed     bool
}

// RunDaily resolves the sprint, runs every rule, prints the report and
// optionally mails it. Nothing is printed or sent when a rule fails.
func (s *Service) RunDaily(ctx context.Context, opts RunOptions) (*RunResult, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, ErrRunInProgress
	}
	defer s.running.Store(false)

	res := &RunResult{RunID: uuid.NewString()}
	log := s.log.With().Str("run_id", res.RunID).Str("sprint", s.cfg.Sprint).Logger()

	var outcome repo.RunOutcome
	if s.store != nil {
		id, err := s.store.StartRun(ctx, res.RunID, s.cfg.Sprint)
		if err != nil {
			log.Error().Err(err).Msg("start run record failed")
		} else {
			defer func() {
				if err := s.store.FinishRun(context.WithoutCancel(ctx), id, outcome); err != nil {
					log.Error().Err(err).Msg("finish run record failed")
				}
			}()
		}
	}

	err := s.runDaily(ctx, log, opts, res)
	outcome = repo.RunOutcome{
		Findings:   findingCount(res.Report),
		Recipients: len(res.Recipients),
		Mailed:     res.Mailed,
		Success:    err == nil,
		Report:     res.Text,
	}
	if err != nil {
		outcome.Error = err.Error()
		log.Error().Err(err).Msg("daily audit failed")
		return nil, err
	}
	log.Info().Int("findings", outcome.Findings).Int("recipients", outcome.Recipients).Bool("mailed", res.Mailed).Msg("daily audit done")
	return res, nil
}

func (s *Service) runDaily(ctx context.Context, log zerolog.Logger, opts RunOptions, res *RunResult) error {
	roster := s.cfg.Developers
	if len(opts.Developers) > 0 {
		roster = opts.Developers
	}
	vacation := s.cfg.Vacation
	if len(opts.Vacation) > 0 {
		vacation = opts.Vacation
	}

	sprint, err := s.jira.ResolveSprint(ctx, s.cfg.JiraProject, s.cfg.Sprint)
	if err != nil {
		return fmt.Errorf("resolve sprint: %w", err)
	}
	if !sprint.Resolved() {
		return fmt.Errorf("resolve sprint: %w: %q", domain.ErrUnresolvedSprint, s.cfg.Sprint)
	}
	res.Sprint = sprint
	log.Info().Time("start", sprint.StartDate).Time("release", sprint.ReleaseDate).Strs("roster", roster).Strs("vacation", vacation).Msg("sprint resolved")

	engine := metrics.NewEngine(s.jira, log,
		metrics.WithNarrator(s.narrator),
		metrics.WithConcurrency(s.cfg.RuleConcurrency))
	report, err := engine.Run(ctx, metrics.RunConfig{
		Roster:   roster,
		Vacation: vacation,
		Sprint:   sprint,
		Now:      s.now(),
		Tracker: metrics.Tracker{
			LinkBase:         s.cfg.JiraBaseURL,
			WorklogGroup:     s.cfg.WorklogGroup,
			VacationIssueKey: s.cfg.VacationIssueKey,
			BacklogVersion:   s.cfg.BacklogVersion,
			ExcludeLabel:     s.cfg.ExcludeLabel,
		},
	})
	if err != nil {
		return err
	}
	res.Report = report
	res.Text = metrics.Render(report)
	res.Recipients = metrics.NotificationSet(report, s.cfg.MailDomain)
	fmt.Fprint(s.out, res.Text)

	if s.tg != nil && s.tg.Enabled() {
		if err := s.tg.Broadcast(ctx, res.Text); err != nil {
			log.Error().Err(err).Msg("telegram broadcast failed")
		}
	}

	if !opts.SendMail {
		return nil
	}
	log.Info().Strs("recipients", res.Recipients).Msg("mailing report")
	if err := s.mailer.Send(ctx, s.cfg.Sender(), res.Recipients, res.Text); err != nil {
		return fmt.Errorf("deliver report: %w", err)
	}
	res.Mailed = true
	return nil
}

func (s *Service) GetLastRun(ctx context.Context) (*repo.LastRun, error) {
	if s.store == nil {
		return nil, ErrHistoryDisabled
	}
	return s.store.GetLastRun(ctx)
}

func findingCount(r *domain.AggregateReport) int {
	if r == nil {
		return 0
	}
	return r.FindingCount()
}
