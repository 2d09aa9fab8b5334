package artifact

import (
	"time"
)

// Status is the outcome of one target in a build pass.
type Status string

const (
	StatusBuilt   Status = "built"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// TargetResult describes what happened to one target.
type TargetResult struct {
	Output   string        `json:"output"`
	Status   Status        `json:"status"`
	Path     string        `json:"path,omitempty"`
	Applied  int           `json:"applied"`
	Missing  []string      `json:"missing,omitempty"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// BuildReport summarizes a build pass.
type BuildReport struct {
	Results   []TargetResult `json:"results"`
	CacheHits int            `json:"cache_hits"`
	Decoded   int            `json:"decoded"`
	Duration  time.Duration  `json:"duration"`
}

// Count returns how many targets ended with status s.
func (r *BuildReport) Count(s Status) int {
	if r == nil {
		return 0
	}
	n := 0
	for _, res := range r.Results {
		if res.Status == s {
			n++
		}
	}
	return n
}

// Built returns the outputs that were rebuilt, in build order.
func (r *BuildReport) Built() []string {
	if r == nil {
		return nil
	}
	var out []string
	for _, res := range r.Results {
		if res.Status == StatusBuilt {
			out = append(out, res.Output)
		}
	}
	return out
}

// IsEmpty reports whether no target needed rebuilding.
func (r *BuildReport) IsEmpty() bool {
	return r == nil || len(r.Results) == 0
}
