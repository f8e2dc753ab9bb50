/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */

// Package metrics runs the daily compliance rules against an issue tracker
// and aggregates their findings into one ordered report.
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/HamedShams/sprint-audit/internal/calendar"
	"github.com/HamedShams/sprint-audit/internal/domain"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// IssueSource executes tracker queries. Implementations own timeouts and retries.
type IssueSource interface {
	Search(ctx context.Context, jql string) ([]domain.Issue, error)
	Worklogs(ctx context.Context, issueKey string) ([]domain.Worklog, error)
}

// Tracker holds installation-specific names the rules refer to.
type Tracker struct {
	LinkBase         string // issue links are LinkBase + "/browse/" + key
	WorklogGroup     string
	VacationIssueKey string
	BacklogVersion   string
	ExcludeLabel     string
}

// RunConfig is the explicit input of one run. It is not modified by the engine.
type RunConfig struct {
	Roster   []string
	Vacation []string
	Sprint   domain.SprintWindow
	Now      time.Time
	Tracker  Tracker
}

// RuleError identifies the rule that aborted a run.
type RuleError struct {
	Label string
	Err   error
}

func (e *RuleError) Error() string { return fmt.Sprintf("rule %q: %v", e.Label, e.Err) }
func (e *RuleError) Unwrap() error { return e.Err }

type Engine struct {
	src         IssueSource
	log         zerolog.Logger
	narrator    Narrator
	concurrency int
}

type Option func(*Engine)

func WithNarrator(n Narrator) Option { return func(e *Engine) { e.narrator = n } }

// WithConcurrency runs up to n rules at once. Section order is unaffected.
func WithConcurrency(n int) Option { return func(e *Engine) { e.concurrency = n } }

func NewEngine(src IssueSource, log zerolog.Logger, opts ...Option) *Engine {
	e := &Engine{src: src, log: log, narrator: NopNarrator{}, concurrency: 1}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Run executes every rule and returns the aggregate report. The first rule
// failure aborts the run and no report is returned.
func (e *Engine) Run(ctx context.Context, cfg RunConfig) (*domain.AggregateReport, error) {
	if cfg.Now.IsZero() {
		cfg.Now = time.Now()
	}
	in := &input{RunConfig: cfg, src: e.src, today: calendar.Date(cfg.Now)}
	rules := Rules()
	results := make([]result, len(rules))

	if e.concurrency <= 1 {
		for i, r := range rules {
			res, err := e.runRule(ctx, r, in)
			if err != nil {
				return nil, err
			}
			results[i] = res
			e.narrate(r.Label, res)
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(e.concurrency)
		for i, r := range rules {
			i, r := i, r
			g.Go(func() error {
				res, err := e.runRule(gctx, r, in)
				if err != nil {
					return err
				}
				results[i] = res
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		for i, r := range rules {
			e.narrate(r.Label, results[i])
		}
	}

	report := &domain.AggregateReport{}
	for i, r := range rules {
		report.Add(r.Label, results[i].Findings)
	}
	return report, nil
}

func (e *Engine) runRule(ctx context.Context, r Rule, in *input) (result, error) {
	start := time.Now()
	res, err := r.run(ctx, in)
	if err != nil {
		e.log.Error().Err(err).Str("rule", r.Label).Msg("rule failed")
		return result{}, &RuleError{Label: r.Label, Err: err}
	}
	e.log.Debug().Str("rule", r.Label).Int("findings", len(res.Findings)).Dur("took", time.Since(start)).Msg("rule done")
	return res, nil
}

func (e *Engine) narrate(label string, res result) {
	for _, n := range res.Notes {
		e.narrator.Note(label, n)
	}
	for _, f := range res.Findings {
		e.narrator.Finding(label, f)
	}
}
