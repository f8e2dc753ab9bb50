/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */

// Package calendar implements working-day arithmetic. Only Saturday and
// Sunday are non-working; public holidays are not modelled.
package calendar

import "time"

// Date truncates t to midnight in t's own location.
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// SameDay reports whether a and b fall on the same calendar date, each read in
// its own location.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func IsWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// WorkingDaysBetween counts non-weekend days strictly after from, up to and
// including to. It is 0 when to is not after from.
func WorkingDaysBetween(from, to time.Time) int {
	from, to = Date(from), Date(to)
	n := 0
	for day := from.AddDate(0, 0, 1); !day.After(to); day = day.AddDate(0, 0, 1) {
		if !IsWeekend(day) {
			n++
		}
	}
	return n
}

// LastWorkingDay steps back from the day before today to the nearest weekday.
func LastWorkingDay(today time.Time) time.Time {
	day := Date(today).AddDate(0, 0, -1)
	for IsWeekend(day) {
		day = day.AddDate(0, 0, -1)
	}
	return day
}
