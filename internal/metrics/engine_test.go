package metrics

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/HamedShams/sprint-audit/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	mu       sync.Mutex
	search   func(jql string) ([]domain.Issue, error)
	worklogs map[string][]domain.Worklog
	queries  []string
	wlCalls  []string
}

func (f *fakeSource) Search(_ context.Context, q string) ([]domain.Issue, error) {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	f.mu.Unlock()
	if f.search == nil {
		return nil, nil
	}
	return f.search(q)
}

func (f *fakeSource) Worklogs(_ context.Context, key string) ([]domain.Worklog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.wlCalls = append(f.wlCalls, key)
	return f.worklogs[key], nil
}

func date(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }
func ptrTime(t time.Time) *time.Time { return &t }
func ptrInt(n int64) *int64 { return &n }

// Monday; five working days remain until the release on the following Monday.
var monday = time.Date(2026, time.October, 12, 10, 0, 0, 0, time.UTC)

func testConfig(roster ...string) RunConfig {
	return RunConfig{
		Roster: roster,
		Sprint: domain.SprintWindow{Name: "R1", StartDate: date(2026, time.October, 5), ReleaseDate: date(2026, time.October, 19)},
		Now:    monday,
		Tracker: Tracker{
			LinkBase:         "https://jira.example.com/",
			WorklogGroup:     "Team Devs",
			VacationIssueKey: "VAC-1",
			BacklogVersion:   "Backlog",
			ExcludeLabel:     "exclude_from_metrics",
		},
	}
}

func TestRun_EndToEnd(t *testing.T) {
	src := &fakeSource{search: func(q string) ([]domain.Issue, error) {
		if strings.Contains(q, `assignee = "alice"`) {
			return []domain.Issue{{Key: "APP-1", Assignee: "alice", Type: "Bug", Status: "Open", Updated: monday}}, nil
		}
		return nil, nil
	}}
	report, err := NewEngine(src, zerolog.Nop()).Run(context.Background(), testConfig("alice", "bob"))
	require.NoError(t, err)

	require.Len(t, report.Sections, 11)
	assert.Equal(t, []string{
		LabelMissingDueDate, LabelExpiredDueDate, LabelNoInProgress, LabelStaleInProgress,
		LabelMissingEstimate, LabelCodeReviews, LabelOverload, LabelPreviousDayLog,
		LabelUnloggedVacation, LabelWrongFixVersion, LabelWrongDueDate,
	}, report.Labels())

	missing, ok := report.Section(LabelMissingDueDate)
	require.True(t, ok)
	link := "https://jira.example.com/browse/APP-1"
	assert.Equal(t, domain.RuleReport{{Developer: "alice", Detail: link, Reference: link}}, missing)

	text := Render(report)
	assert.Contains(t, text, LabelMissingDueDate+" :\n\talice : "+link+"\n")

	addrs := NotificationSet(report, "example.com")
	assert.Contains(t, addrs, "alice@example.com")
	count := 0
	for _, a := range addrs {
		if a == "alice@example.com" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestRun_FailsFastOnSourceError(t *testing.T) {
	boom := errors.New("connection reset")
	src := &fakeSource{search: func(q string) ([]domain.Issue, error) {
		if q == `assignee = "alice" AND status = "In Progress"` {
			return nil, boom
		}
		return nil, nil
	}}
	report, err := NewEngine(src, zerolog.Nop()).Run(context.Background(), testConfig("alice", "bob"))
	require.Error(t, err)
	assert.Nil(t, report)

	var rerr *RuleError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, LabelNoInProgress, rerr.Label)
	assert.ErrorIs(t, err, domain.ErrSourceQuery)
	assert.ErrorIs(t, err, boom)

	last := src.queries[len(src.queries)-1]
	assert.Equal(t, `assignee = "alice" AND status = "In Progress"`, last, "no query after the failure")
}

func TestRun_ParallelKeepsOrder(t *testing.T) {
	search := func(q string) ([]domain.Issue, error) {
		switch {
		case strings.Contains(q, "duedate is EMPTY"):
			return []domain.Issue{{Key: "APP-1", Type: "Task"}}, nil
		case strings.Contains(q, "remainingEstimate"):
			return []domain.Issue{{Key: "APP-2", Type: "Task"}}, nil
		}
		return nil, nil
	}
	cfg := testConfig("alice", "bob", "carol")
	seq, err := NewEngine(&fakeSource{search: search}, zerolog.Nop()).Run(context.Background(), cfg)
	require.NoError(t, err)
	par, err := NewEngine(&fakeSource{search: search}, zerolog.Nop(), WithConcurrency(4)).Run(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, seq, par)
	assert.Equal(t, Render(seq), Render(par))
}

type recordingNarrator struct {
	findings []string
	notes    []string
}

func (r *recordingNarrator) Finding(label string, f domain.Finding) {
	r.findings = append(r.findings, f.Developer+" "+f.Detail)
}
func (r *recordingNarrator) Note(label, note string) { r.notes = append(r.notes, note) }

func TestRun_NarratesWithoutChangingReport(t *testing.T) {
	src := &fakeSource{search: func(q string) ([]domain.Issue, error) {
		if strings.Contains(q, `status not in ("Closed", "Resolved", "Suspended") AND fixVersion in ("R1")`) {
			return []domain.Issue{{Key: "APP-9"}}, nil
		}
		return nil, nil
	}}
	n := &recordingNarrator{}
	report, err := NewEngine(src, zerolog.Nop(), WithNarrator(n)).Run(context.Background(), testConfig("alice"))
	require.NoError(t, err)
	assert.Len(t, n.findings, report.FindingCount())
	assert.Contains(t, n.notes, "not estimated issue APP-9 (alice) skipped")
}
