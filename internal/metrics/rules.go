/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package metrics

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/HamedShams/sprint-audit/internal/calendar"
	"github.com/HamedShams/sprint-audit/internal/domain"
	"github.com/HamedShams/sprint-audit/internal/jql"
	"github.com/HamedShams/sprint-audit/internal/timespent"
)

// Canonical section labels, in display order.
const (
	LabelMissingDueDate   = "1. Tickets with incorrect or empty due date (except ongoing activities)"
	LabelExpiredDueDate   = "2. Tickets with expired due dates"
	LabelNoInProgress     = `3. Absence of "in progress" issues assigned to each team member report`
	LabelStaleInProgress  = `4. Tickets "in progress" without updating during last 2 days`
	LabelMissingEstimate  = "5. Open issues without correct estimation"
	LabelCodeReviews      = "6. Open code reviews with age more 2 days"
	LabelOverload         = "7. Overload"
	LabelPreviousDayLog   = "8. Previous day work time logging"
	LabelUnloggedVacation = "9. Not logged vacation"
	LabelWrongFixVersion  = "10. Tickets with wrong FixVersion"
	LabelWrongDueDate     = "11. Wrong due date"
)

const (
	statusInProgress = "In Progress"
	typeQuestion     = "Question"
	hoursPerDay      = 8.0
	staleAfter       = 48 * time.Hour
)

const NotImplementedDetail = "ERROR: Feature is not implemented yet"

var (
	doneOrSuspended = jql.Strs("Closed", "Resolved", "Suspended")
	doneOrApproved  = jql.Strs("Closed", "Resolved", "Approved")
	done            = jql.Strs("Closed", "Resolved")
)

// Rule is one compliance check.
type Rule struct {
	Label string
	run   func(ctx context.Context, in *input) (result, error)
}

type result struct {
	Findings domain.RuleReport
	Notes    []string
}

// Rules returns the daily rule set in display order.
func Rules() []Rule {
	return []Rule{
		{LabelMissingDueDate, missingDueDate.run},
		{LabelExpiredDueDate, expiredDueDate.run},
		{LabelNoInProgress, absenceInProgress},
		{LabelStaleInProgress, staleInProgress.run},
		{LabelMissingEstimate, missingEstimate.run},
		{LabelCodeReviews, notImplemented},
		{LabelOverload, overload},
		{LabelPreviousDayLog, previousDayLogging},
		{LabelUnloggedVacation, unloggedVacation},
		{LabelWrongFixVersion, wrongFixVersion.run},
		{LabelWrongDueDate, wrongDueDate.run},
	}
}

// input is the read-only state shared by every rule of one run.
type input struct {
	RunConfig
	src   IssueSource
	today time.Time
}

func (in *input) search(ctx context.Context, q jql.Clause) ([]domain.Issue, error) {
	issues, err := in.src.Search(ctx, jql.String(q))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrSourceQuery, err)
	}
	return issues, nil
}

func (in *input) worklogs(ctx context.Context, key string) ([]domain.Worklog, error) {
	wls, err := in.src.Worklogs(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("%w: worklogs %s: %w", domain.ErrSourceQuery, key, err)
	}
	return wls, nil
}

func (in *input) link(key string) string {
	return strings.TrimRight(in.Tracker.LinkBase, "/") + "/browse/" + key
}

func (in *input) onVacation(dev string) bool {
	for _, v := range in.Vacation {
		if v == dev {
			return true
		}
	}
	return false
}

func (in *input) requireWindow() error {
	if !in.Sprint.Resolved() {
		return fmt.Errorf("%w: %q", domain.ErrUnresolvedSprint, in.Sprint.Name)
	}
	return nil
}

func (in *input) sprintStart() time.Time   { return calendar.Date(in.Sprint.StartDate) }
func (in *input) sprintRelease() time.Time { return calendar.Date(in.Sprint.ReleaseDate) }

// issueRule reports every issue a per-developer query returns that also
// passes keep.
type issueRule struct {
	needsWindow bool
	query       func(in *input, dev string) jql.Clause
	keep        func(in *input, is domain.Issue) bool
}

func (r issueRule) run(ctx context.Context, in *input) (result, error) {
	var res result
	if r.needsWindow {
		if err := in.requireWindow(); err != nil {
			return res, err
		}
	}
	for _, dev := range in.Roster {
		issues, err := in.search(ctx, r.query(in, dev))
		if err != nil {
			return res, err
		}
		for _, is := range issues {
			if r.keep != nil && !r.keep(in, is) {
				continue
			}
			link := in.link(is.Key)
			res.Findings = append(res.Findings, domain.Finding{Developer: dev, Detail: link, Reference: link})
		}
	}
	return res, nil
}

func assignee(dev string) jql.Clause { return jql.Eq(jql.Assignee, jql.Str(dev)) }

func dueOn(is domain.Issue) (time.Time, bool) {
	if is.DueDate == nil {
		return time.Time{}, false
	}
	return calendar.Date(*is.DueDate), true
}

var missingDueDate = issueRule{
	query: func(in *input, dev string) jql.Clause {
		return jql.And(
			assignee(dev),
			jql.NotIn(jql.Type, jql.Str(typeQuestion)),
			jql.In(jql.FixVersion, jql.Str(in.Sprint.Name)),
			jql.NotIn(jql.Status, doneOrSuspended...),
			jql.IsEmpty(jql.DueDate),
		)
	},
	keep: func(in *input, is domain.Issue) bool {
		return is.DueDate == nil && is.Type != typeQuestion
	},
}

var expiredDueDate = issueRule{
	query: func(in *input, dev string) jql.Clause {
		return jql.And(
			assignee(dev),
			jql.NotIn(jql.Status, doneOrApproved...),
			jql.Lt(jql.DueDate, jql.StartOfDay()),
		)
	},
	keep: func(in *input, is domain.Issue) bool {
		due, ok := dueOn(is)
		return ok && due.Before(in.today)
	},
}

func absenceInProgress(ctx context.Context, in *input) (result, error) {
	var res result
	for _, dev := range in.Roster {
		if in.onVacation(dev) {
			continue
		}
		issues, err := in.search(ctx, jql.And(assignee(dev), jql.Eq(jql.Status, jql.Str(statusInProgress))))
		if err != nil {
			return res, err
		}
		if len(issues) == 0 {
			res.Findings = append(res.Findings, domain.Finding{Developer: dev, Detail: "no issues in progress"})
		}
	}
	return res, nil
}

var staleInProgress = issueRule{
	query: func(in *input, dev string) jql.Clause {
		return jql.And(
			assignee(dev),
			jql.Eq(jql.Status, jql.Str(statusInProgress)),
			jql.Or(
				jql.Lt(jql.Updated, jql.DaysAgo(2)),
				jql.Eq(jql.FixVersion, jql.Str(in.Tracker.BacklogVersion)),
			),
		)
	},
	keep: func(in *input, is domain.Issue) bool {
		return is.Updated.Before(in.Now.Add(-staleAfter)) || is.HasFixVersion(in.Tracker.BacklogVersion)
	},
}

var missingEstimate = issueRule{
	query: func(in *input, dev string) jql.Clause {
		return jql.And(
			assignee(dev),
			jql.NotIn(jql.Type, jql.Str(typeQuestion)),
			jql.In(jql.FixVersion, jql.Str(in.Sprint.Name)),
			jql.NotIn(jql.Status, doneOrSuspended...),
			jql.Or(jql.Eq(jql.RemainingEstimate, jql.Num(0)), jql.IsEmpty(jql.RemainingEstimate)),
		)
	},
	keep: func(in *input, is domain.Issue) bool {
		return is.Type != typeQuestion && (is.TimeEstimate == nil || *is.TimeEstimate == 0)
	},
}

// notImplemented stands in for the code review age check until a code review
// source is wired.
func notImplemented(context.Context, *input) (result, error) {
	return result{Findings: domain.RuleReport{{Detail: NotImplementedDetail}}}, nil
}

func overload(ctx context.Context, in *input) (result, error) {
	var res result
	if err := in.requireWindow(); err != nil {
		return res, err
	}
	hoursLeft := float64(calendar.WorkingDaysBetween(in.today, in.sprintRelease())) * hoursPerDay
	for _, dev := range in.Roster {
		issues, err := in.search(ctx, jql.And(
			assignee(dev),
			jql.NotIn(jql.Status, doneOrSuspended...),
			jql.In(jql.FixVersion, jql.Str(in.Sprint.Name)),
		))
		if err != nil {
			return res, err
		}
		load, skipped := workload(issues)
		for _, key := range skipped {
			res.Notes = append(res.Notes, fmt.Sprintf("not estimated issue %s (%s) skipped", key, dev))
		}
		if f, ok := overloadFinding(dev, load, hoursLeft); ok {
			res.Findings = append(res.Findings, f)
		}
	}
	return res, nil
}

// workload sums remaining estimates in hours. Issues without an estimate are
// returned separately and contribute nothing.
func workload(issues []domain.Issue) (float64, []string) {
	var load float64
	var skipped []string
	for _, is := range issues {
		if is.TimeEstimate == nil || *is.TimeEstimate == 0 {
			skipped = append(skipped, is.Key)
			continue
		}
		load += float64(*is.TimeEstimate) / 3600.0
	}
	return load, skipped
}

func overloadFinding(dev string, load, hoursLeft float64) (domain.Finding, bool) {
	over := hoursLeft - load
	if over >= 0 {
		return domain.Finding{}, false
	}
	return domain.Finding{
		Developer: dev,
		Detail:    fmt.Sprintf("%s/%s : OVERLOAD : %s", hours(load), hours(hoursLeft), hours(-over)),
	}, true
}

func previousDayLogging(ctx context.Context, in *input) (result, error) {
	var res result
	lastWork := calendar.LastWorkingDay(in.today)
	issues, err := in.search(ctx, jql.In(jql.Key, jql.WorkedIssues(lastWork, in.today, in.Tracker.WorklogGroup)))
	if err != nil {
		return res, err
	}
	logged := make(map[string]float64, len(in.Roster))
	for _, dev := range in.Roster {
		logged[dev] = 0
	}
	for _, is := range issues {
		wls, err := in.worklogs(ctx, is.Key)
		if err != nil {
			return res, err
		}
		for _, w := range wls {
			if !calendar.SameDay(w.Started, lastWork) {
				continue
			}
			if _, member := logged[w.Author]; !member {
				continue
			}
			h, ok := timespent.ParseStrict(w.TimeSpent)
			if !ok {
				res.Notes = append(res.Notes, fmt.Sprintf("%v: %q on %s by %s counted as 0h", domain.ErrMalformedDuration, w.TimeSpent, is.Key, w.Author))
			}
			logged[w.Author] += h
		}
	}
	for _, dev := range in.Roster {
		if logged[dev] < hoursPerDay {
			res.Findings = append(res.Findings, domain.Finding{
				Developer: dev,
				Detail:    fmt.Sprintf("Logged for %s : %sh", lastWork.Format("2006/01/02"), hours(logged[dev])),
			})
		}
	}
	return res, nil
}

func unloggedVacation(ctx context.Context, in *input) (result, error) {
	var res result
	if len(in.Vacation) == 0 {
		return res, nil
	}
	if in.Tracker.VacationIssueKey == "" {
		res.Findings = append(res.Findings, domain.Finding{Detail: "ERROR: vacation issue is not configured"})
		return res, nil
	}
	yesterday := in.today.AddDate(0, 0, -1)
	wls, err := in.worklogs(ctx, in.Tracker.VacationIssueKey)
	if err != nil {
		return res, err
	}
	logged := map[string]bool{}
	for _, w := range wls {
		if calendar.SameDay(w.Started, yesterday) {
			logged[w.Author] = true
		}
	}
	for _, dev := range in.Vacation {
		if !logged[dev] {
			res.Findings = append(res.Findings, domain.Finding{
				Developer: dev,
				Detail:    "Not logged vacation for " + yesterday.Format("2006-01-02"),
			})
		}
	}
	return res, nil
}

var wrongFixVersion = issueRule{
	needsWindow: true,
	query: func(in *input, dev string) jql.Clause {
		return jql.And(
			assignee(dev),
			jql.NotIn(jql.FixVersion, jql.Str(in.Sprint.Name)),
			jql.Or(jql.IsEmpty(jql.Labels), jql.Neq(jql.Labels, jql.Str(in.Tracker.ExcludeLabel))),
			jql.NotIn(jql.Status, done...),
			jql.Gt(jql.DueDate, jql.Date(in.Sprint.StartDate)),
			jql.Lte(jql.DueDate, jql.Date(in.Sprint.ReleaseDate)),
		)
	},
	keep: func(in *input, is domain.Issue) bool {
		due, ok := dueOn(is)
		return ok &&
			!is.HasFixVersion(in.Sprint.Name) &&
			!is.HasLabel(in.Tracker.ExcludeLabel) &&
			due.After(in.sprintStart()) && !due.After(in.sprintRelease())
	},
}

var wrongDueDate = issueRule{
	needsWindow: true,
	query: func(in *input, dev string) jql.Clause {
		return jql.And(
			assignee(dev),
			jql.NotIn(jql.Type, jql.Str(typeQuestion)),
			jql.In(jql.FixVersion, jql.Str(in.Sprint.Name)),
			jql.Or(
				jql.Lt(jql.DueDate, jql.Date(in.Sprint.StartDate)),
				jql.Gt(jql.DueDate, jql.Date(in.Sprint.ReleaseDate)),
			),
			jql.NotIn(jql.Status, done...),
		)
	},
	keep: func(in *input, is domain.Issue) bool {
		due, ok := dueOn(is)
		return ok && is.Type != typeQuestion &&
			(due.Before(in.sprintStart()) || due.After(in.sprintRelease()))
	},
}

func hours(h float64) string {
	return strconv.FormatFloat(math.Round(h*100)/100, 'f', -1, 64)
}
