/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package metrics

import (
	"fmt"
	"strings"

	"github.com/HamedShams/sprint-audit/internal/domain"
)

// Render lays the report out as plain text, one block per section.
func Render(r *domain.AggregateReport) string {
	b := &strings.Builder{}
	if r == nil {
		return ""
	}
	for _, s := range r.Sections {
		fmt.Fprintf(b, "%s :\n", s.Label)
		for _, f := range s.Findings {
			fmt.Fprintf(b, "\t%s : %s\n", f.Developer, f.Detail)
		}
	}
	return b.String()
}

// NotificationSet maps every attributed finding to developer@domain, once per
// developer, in first-seen order.
func NotificationSet(r *domain.AggregateReport, mailDomain string) []string {
	var out []string
	if r == nil {
		return out
	}
	seen := map[string]struct{}{}
	for _, s := range r.Sections {
		for _, f := range s.Findings {
			dev := strings.TrimSpace(f.Developer)
			if dev == "" {
				continue
			}
			addr := dev + "@" + mailDomain
			if _, ok := seen[addr]; ok {
				continue
			}
			seen[addr] = struct{}{}
			out = append(out, addr)
		}
	}
	return out
}
