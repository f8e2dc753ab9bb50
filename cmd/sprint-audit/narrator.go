/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package main

import (
	"io"

	"github.com/HamedShams/sprint-audit/internal/domain"
	"github.com/fatih/color"
)

// colorNarrator prints findings as rules finish, so the operator sees
// progress before the report.
type colorNarrator struct {
	w     io.Writer
	label *color.Color
	dev   *color.Color
	warn  *color.Color
	last  string
}

func newColorNarrator(w io.Writer) *colorNarrator {
	return &colorNarrator{
		w:     w,
		label: color.New(color.FgCyan, color.Bold),
		dev:   color.New(color.FgYellow),
		warn:  color.New(color.FgRed),
	}
}

func (n *colorNarrator) header(label string) {
	if n.last == label {
		return
	}
	n.last = label
	n.label.Fprintln(n.w, label)
}

func (n *colorNarrator) Finding(label string, f domain.Finding) {
	n.header(label)
	dev := f.Developer
	if dev == "" {
		dev = "-"
	}
	n.dev.Fprintf(n.w, "  %s", dev)
	io.WriteString(n.w, " : "+f.Detail)
	if f.Reference != "" {
		io.WriteString(n.w, " ("+f.Reference+")")
	}
	io.WriteString(n.w, "\n")
}

func (n *colorNarrator) Note(label, note string) {
	n.header(label)
	n.warn.Fprintf(n.w, "  ! %s\n", note)
}
