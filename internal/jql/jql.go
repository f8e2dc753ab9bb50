/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */

// Package jql builds Jira filter queries from typed clauses. All quoting and
// JQL syntax lives in String; callers never concatenate query text.
package jql

import (
	"strconv"
	"strings"
	"time"
)

type Field string

const (
	Assignee          Field = "assignee"
	Status            Field = "status"
	Type              Field = "type"
	FixVersion        Field = "fixVersion"
	DueDate           Field = "duedate"
	Updated           Field = "updated"
	Labels            Field = "labels"
	RemainingEstimate Field = "remainingEstimate"
	Key               Field = "key"
	Project           Field = "project"
)

// Value is a right-hand operand.
type Value interface{ jql() string }

// Str is a quoted string literal.
type Str string

func (s Str) jql() string { return quote(string(s)) }

// Date renders as a quoted yyyy-mm-dd literal.
type Date time.Time

func (d Date) jql() string { return quote(time.Time(d).Format("2006-01-02")) }

// Num is an unquoted integer literal.
type Num int64

func (n Num) jql() string { return strconv.FormatInt(int64(n), 10) }

// Offset is a relative period such as -2d.
type Offset struct {
	N    int
	Unit byte
}

func DaysAgo(n int) Offset { return Offset{N: -n, Unit: 'd'} }

func (o Offset) jql() string { return strconv.Itoa(o.N) + string(o.Unit) }

type function struct {
	name string
	args []Value
}

func (f function) jql() string {
	parts := make([]string, 0, len(f.args))
	for _, a := range f.args {
		parts = append(parts, a.jql())
	}
	return f.name + "(" + strings.Join(parts, ", ") + ")"
}

// StartOfDay is the JQL startOfDay() function.
func StartOfDay() Value { return function{name: "startOfDay"} }

// WorkedIssues is the Tempo/Timesheets workedIssues(from, to, group) function.
func WorkedIssues(from, to time.Time, group string) Value {
	return function{name: "workedIssues", args: []Value{
		Str(from.Format("2006/01/02")), Str(to.Format("2006/01/02")), Str(group),
	}}
}

// Clause is a boolean filter expression.
type Clause interface{ clause() string }

type cmp struct {
	field Field
	op    string
	val   Value
}

func (c cmp) clause() string { return string(c.field) + " " + c.op + " " + c.val.jql() }

func Eq(f Field, v Value) Clause  { return cmp{f, "=", v} }
func Neq(f Field, v Value) Clause { return cmp{f, "!=", v} }
func Lt(f Field, v Value) Clause  { return cmp{f, "<", v} }
func Gt(f Field, v Value) Clause  { return cmp{f, ">", v} }
func Lte(f Field, v Value) Clause { return cmp{f, "<=", v} }

type set struct {
	field Field
	not   bool
	vals  []Value
}

func (s set) clause() string {
	parts := make([]string, 0, len(s.vals))
	for _, v := range s.vals {
		parts = append(parts, v.jql())
	}
	op := " in ("
	if s.not {
		op = " not in ("
	}
	return string(s.field) + op + strings.Join(parts, ", ") + ")"
}

func In(f Field, vals ...Value) Clause    { return set{field: f, vals: vals} }
func NotIn(f Field, vals ...Value) Clause { return set{field: f, not: true, vals: vals} }

// Strs converts plain strings to quoted literals for In/NotIn.
func Strs(ss ...string) []Value {
	out := make([]Value, 0, len(ss))
	for _, s := range ss {
		out = append(out, Str(s))
	}
	return out
}

type empty struct{ field Field }

func (e empty) clause() string { return string(e.field) + " is EMPTY" }

func IsEmpty(f Field) Clause { return empty{f} }

type group struct {
	op    string
	parts []Clause
}

func (g group) clause() string {
	parts := make([]string, 0, len(g.parts))
	for _, p := range g.parts {
		s := p.clause()
		if inner, ok := p.(group); ok && inner.op != g.op && len(inner.parts) > 1 {
			s = "(" + s + ")"
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, " "+g.op+" ")
}

func And(parts ...Clause) Clause { return group{op: "AND", parts: parts} }
func Or(parts ...Clause) Clause  { return group{op: "OR", parts: parts} }

// String renders c as JQL text.
func String(c Clause) string {
	if c == nil {
		return ""
	}
	return c.clause()
}

func quote(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return `"` + r.Replace(s) + `"`
}
