/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */

// Package timespent converts Jira worklog durations such as "1d 2h 30m" to
// work hours.
package timespent

import (
	"regexp"
	"strconv"
)

// HoursPerDay is the length of a work day used for the "d" component.
const HoursPerDay = 8.0

var (
	daysRe    = regexp.MustCompile(`([0-9]+)d`)
	hoursRe   = regexp.MustCompile(`([0-9]+)h`)
	minutesRe = regexp.MustCompile(`([0-9]+)m`)
)

// Parse returns the number of work hours in text. Unrecognised input is 0.
func Parse(text string) float64 {
	h, _ := ParseStrict(text)
	return h
}

// ParseStrict is Parse, additionally reporting whether any component matched.
func ParseStrict(text string) (float64, bool) {
	var res float64
	matched := false
	if n, ok := component(daysRe, text); ok {
		res += float64(n) * HoursPerDay
		matched = true
	}
	if n, ok := component(hoursRe, text); ok {
		res += float64(n)
		matched = true
	}
	if n, ok := component(minutesRe, text); ok {
		res += float64(n) / 60.0
		matched = true
	}
	return res, matched
}

func component(re *regexp.Regexp, text string) (int, bool) {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}
