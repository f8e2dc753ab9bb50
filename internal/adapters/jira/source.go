/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package jira

import (
	"context"
	"fmt"
	"time"

	"github.com/HamedShams/sprint-audit/internal/domain"
	"github.com/rs/zerolog"
)

const defaultPageSize = 50

// Source reads issues and worklogs for the audit rules, following pagination.
type Source struct {
	c        *Client
	log      zerolog.Logger
	pageSize int
}

func NewSource(c *Client, log zerolog.Logger) *Source {
	return &Source{c: c, log: log, pageSize: defaultPageSize}
}

func (s *Source) Search(ctx context.Context, jql string) ([]domain.Issue, error) {
	var out []domain.Issue
	startAt := 0
	for {
		page, err := s.c.Search(ctx, jql, startAt, s.pageSize)
		if err != nil {
			return nil, err
		}
		for _, it := range page.Issues {
			is, err := toIssue(it)
			if err != nil {
				return nil, err
			}
			out = append(out, is)
		}
		startAt += len(page.Issues)
		if len(page.Issues) == 0 || startAt >= page.Total {
			break
		}
	}
	s.log.Debug().Str("jql", jql).Int("issues", len(out)).Msg("jira search")
	return out, nil
}

func (s *Source) Worklogs(ctx context.Context, key string) ([]domain.Worklog, error) {
	var out []domain.Worklog
	startAt := 0
	for {
		page, err := s.c.Worklogs(ctx, key, startAt, 100)
		if err != nil {
			return nil, err
		}
		for _, w := range page.Worklogs {
			started, err := parseTimestamp(w.Started)
			if err != nil {
				return nil, fmt.Errorf("jira: worklog on %s: %w", key, err)
			}
			out = append(out, domain.Worklog{IssueKey: key, Author: w.Author.login(), Started: started, TimeSpent: w.TimeSpent})
		}
		startAt += len(page.Worklogs)
		if len(page.Worklogs) == 0 || startAt >= page.Total {
			break
		}
	}
	return out, nil
}

// ResolveSprint finds the fix-version called name in project.
func (s *Source) ResolveSprint(ctx context.Context, project, name string) (domain.SprintWindow, error) {
	versions, err := s.c.ProjectVersions(ctx, project)
	if err != nil {
		return domain.SprintWindow{}, fmt.Errorf("%w: %q: %w", domain.ErrUnresolvedSprint, name, err)
	}
	for _, v := range versions {
		if v.Name != name {
			continue
		}
		w := domain.SprintWindow{Name: v.Name}
		if w.StartDate, err = parseDate(v.StartDate); err != nil {
			return domain.SprintWindow{}, fmt.Errorf("jira: version %q start: %w", name, err)
		}
		if w.ReleaseDate, err = parseDate(v.ReleaseDate); err != nil {
			return domain.SprintWindow{}, fmt.Errorf("jira: version %q release: %w", name, err)
		}
		if !w.Resolved() {
			return w, fmt.Errorf("%w: %q has no start or release date", domain.ErrUnresolvedSprint, name)
		}
		return w, nil
	}
	return domain.SprintWindow{}, fmt.Errorf("%w: %q not found in project %s", domain.ErrUnresolvedSprint, name, project)
}

func toIssue(it issue) (domain.Issue, error) {
	f := it.Fields
	is := domain.Issue{
		Key:          it.Key,
		Assignee:     f.Assignee.login(),
		TimeEstimate: f.TimeEstimate,
		Labels:       f.Labels,
	}
	if f.Status != nil {
		is.Status = f.Status.Name
	}
	if f.IssueType != nil {
		is.Type = f.IssueType.Name
	}
	for _, v := range f.FixVersions {
		is.FixVersions = append(is.FixVersions, v.Name)
	}
	if f.DueDate != "" {
		due, err := parseDate(f.DueDate)
		if err != nil {
			return is, fmt.Errorf("jira: %s duedate: %w", it.Key, err)
		}
		is.DueDate = &due
	}
	if f.Updated != "" {
		upd, err := parseTimestamp(f.Updated)
		if err != nil {
			return is, fmt.Errorf("jira: %s updated: %w", it.Key, err)
		}
		is.Updated = upd
	}
	return is, nil
}

// parseDate reads a yyyy-mm-dd field as local midnight. Empty is the zero time.
func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.ParseInLocation("2006-01-02", s, time.Local)
}

// parseTimestamp keeps the offset Jira sent, so the calendar day is the
// one the author saw.
func parseTimestamp(s string) (time.Time, error) {
	layouts := []string{"2006-01-02T15:04:05.000-0700", "2006-01-02T15:04:05-0700", time.RFC3339Nano, time.RFC3339}
	for _, l := range layouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}
