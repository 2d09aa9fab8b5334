package app

import (
	"github.com/albertocavalcante/modlayer/cmd/modlayer/internal/artifact"
	"github.com/albertocavalcante/modlayer/cmd/modlayer/internal/incremental"
)

// MountStatus describes one content root.
type MountStatus struct {
	Name     string `json:"name"`
	Path     string `json:"path"`
	Priority int    `json:"priority"`
	Default  bool   `json:"default,omitempty"`
	Enabled  bool   `json:"enabled"`
	History  bool   `json:"history"`

	// Changes found by the last refresh, nil for disabled roots.
	Changes *incremental.ChangeSet `json:"changes,omitempty"`
}

// TargetStatus describes one target.
type TargetStatus struct {
	Output string `json:"output"`
	Kind   string `json:"kind"`
	Stale  bool   `json:"stale"`
}

// Status is a snapshot of the application state.
type Status struct {
	Mounts    []MountStatus         `json:"mounts"`
	Targets   []TargetStatus        `json:"targets"`
	Pending   []artifact.SourceRef  `json:"pending,omitempty"`
	Passes    int                   `json:"passes"`
	LastBuild *artifact.BuildReport `json:"last_build,omitempty"`
}

// StaleCount returns how many targets need rebuilding.
func (s *Status) StaleCount() int {
	n := 0
	for _, t := range s.Targets {
		if t.Stale {
			n++
		}
	}
	return n
}

// Status reports the current state. Call Refresh first for an up-to-date
// view of what changed on disk.
func (a *App) Status() *Status {
	st := &Status{
		Pending:   a.reg.Pending(),
		Passes:    a.passes,
		LastBuild: a.last,
	}
	for _, r := range a.roots {
		st.Mounts = append(st.Mounts, MountStatus{
			Name:     r.Config.DisplayName(),
			Path:     r.Config.Path,
			Priority: r.Config.Priority,
			Default:  r.Config.Default,
			Enabled:  r.Mount != nil,
			History:  r.Tracker.HasHistory(),
			Changes:  r.Changes,
		})
	}
	for _, t := range a.reg.Targets() {
		st.Targets = append(st.Targets, TargetStatus{
			Output: t.Output,
			Kind:   t.Kind,
			Stale:  a.reg.NeedsRebuild(t.Output),
		})
	}
	return st
}
