package jql

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestString_NestsMixedGroups(t *testing.T) {
	q := And(
		Eq(Assignee, Str("alice")),
		Eq(Status, Str("In Progress")),
		Or(Lt(Updated, DaysAgo(2)), Eq(FixVersion, Str("Backlog"))),
	)
	assert.Equal(t,
		`assignee = "alice" AND status = "In Progress" AND (updated < -2d OR fixVersion = "Backlog")`,
		String(q))
}

func TestString_SetsAndEmpty(t *testing.T) {
	q := And(
		NotIn(Type, Strs("Question")...),
		In(FixVersion, Str("R1")),
		NotIn(Status, Strs("Closed", "Resolved", "Suspended")...),
		Or(Eq(RemainingEstimate, Num(0)), IsEmpty(RemainingEstimate)),
		Lt(DueDate, StartOfDay()),
	)
	assert.Equal(t,
		`type not in ("Question") AND fixVersion in ("R1") AND status not in ("Closed", "Resolved", "Suspended") AND (remainingEstimate = 0 OR remainingEstimate is EMPTY) AND duedate < startOfDay()`,
		String(q))
}

func TestString_QuotesHostileValues(t *testing.T) {
	q := Eq(Assignee, Str(`bob" OR assignee is EMPTY OR "x`))
	assert.Equal(t, `assignee = "bob\" OR assignee is EMPTY OR \"x"`, String(q))
}

func TestString_DatesAndFunctions(t *testing.T) {
	from := time.Date(2026, time.October, 15, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 1)
	assert.Equal(t, `duedate > "2026-10-15"`, String(Gt(DueDate, Date(from))))
	assert.Equal(t,
		`key in workedIssues("2026/10/15", "2026/10/16", "Team Developers")`,
		String(In(Key, WorkedIssues(from, to, "Team Developers"))))
	assert.Empty(t, String(nil))
}
