package metrics

import (
	"github.com/HamedShams/sprint-audit/internal/domain"
	"github.com/rs/zerolog"
)

// Narrator receives progress as rules complete. It has no influence on the report.
type Narrator interface {
	Finding(label string, f domain.Finding)
	Note(label, note string)
}

type NopNarrator struct{}

func (NopNarrator) Finding(string, domain.Finding) {}
func (NopNarrator) Note(string, string)            {}

// LogNarrator writes findings at info and notes at warn.
type LogNarrator struct{ Log zerolog.Logger }

func (n LogNarrator) Finding(label string, f domain.Finding) {
	n.Log.Info().Str("rule", label).Str("developer", f.Developer).Str("ref", f.Reference).Msg(f.Detail)
}

func (n LogNarrator) Note(label, note string) {
	n.Log.Warn().Str("rule", label).Msg(note)
}
