/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package domain

import "time"

// SprintWindow is the fix-version a run is scoped to.
type SprintWindow struct {
	Name        string
	StartDate   time.Time
	ReleaseDate time.Time
}

// Resolved reports whether both window dates are known.
func (s SprintWindow) Resolved() bool { return !s.StartDate.IsZero() && !s.ReleaseDate.IsZero() }

type Issue struct {
	Key          string
	Assignee     string
	Status       string
	Type         string
	DueDate      *time.Time
	TimeEstimate *int64 // remaining, seconds
	FixVersions  []string
	Labels       []string
	Updated      time.Time
}

func (i Issue) HasFixVersion(name string) bool { return contains(i.FixVersions, name) }
func (i Issue) HasLabel(name string) bool      { return contains(i.Labels, name) }

type Worklog struct {
	IssueKey  string
	Author    string
	Started   time.Time
	TimeSpent string
}

// Finding is one reported violation. An empty Developer marks a system-level line.
type Finding struct {
	Developer string
	Detail    string
	Reference string
}

type RuleReport []Finding

type Section struct {
	Label    string
	Findings RuleReport
}

// AggregateReport keeps sections in display order.
type AggregateReport struct {
	Sections []Section
}

func (r *AggregateReport) Add(label string, findings RuleReport) {
	r.Sections = append(r.Sections, Section{Label: label, Findings: findings})
}

// Section returns the findings stored under label.
func (r *AggregateReport) Section(label string) (RuleReport, bool) {
	for _, s := range r.Sections {
		if s.Label == label {
			return s.Findings, true
		}
	}
	return nil, false
}

func (r *AggregateReport) Labels() []string {
	out := make([]string, 0, len(r.Sections))
	for _, s := range r.Sections {
		out = append(out, s.Label)
	}
	return out
}

// FindingCount sums findings over all sections.
func (r *AggregateReport) FindingCount() int {
	n := 0
	for _, s := range r.Sections {
		n += len(s.Findings)
	}
	return n
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
