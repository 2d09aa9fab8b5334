package incremental

import (
	"path"
	"slices"
)

// ChangeSet lists the differences between a root's snapshot and its current
// state. Paths are root-relative with forward slashes.
type ChangeSet struct {
	Added          []string `json:"added"`
	Modified       []string `json:"modified"`
	Deleted        []string `json:"deleted"`
	StaleFolders   []string `json:"stale_folders,omitempty"`
	DeletedFolders []string `json:"deleted_folders,omitempty"`
}

// NewChangeSet creates an empty ChangeSet.
func NewChangeSet() *ChangeSet {
	return &ChangeSet{
		Added:    []string{},
		Modified: []string{},
		Deleted:  []string{},
	}
}

// IsEmpty returns true if there are no changes.
func (cs *ChangeSet) IsEmpty() bool {
	return cs.TotalChanges() == 0
}

// TotalChanges returns the total number of changed items.
func (cs *ChangeSet) TotalChanges() int {
	if cs == nil {
		return 0
	}
	return len(cs.Added) + len(cs.Modified) + len(cs.Deleted) +
		len(cs.StaleFolders) + len(cs.DeletedFolders)
}

// Outdated returns added and modified files, sorted.
func (cs *ChangeSet) Outdated() []string {
	if cs == nil {
		return nil
	}
	out := make([]string, 0, len(cs.Added)+len(cs.Modified))
	out = append(out, cs.Added...)
	out = append(out, cs.Modified...)
	slices.Sort(out)
	return out
}

// AffectedDirs returns sorted unique directories containing changes.
func (cs *ChangeSet) AffectedDirs() []string {
	if cs == nil {
		return nil
	}

	dirs := make(map[string]struct{})
	for _, list := range [][]string{cs.Added, cs.Modified, cs.Deleted} {
		for _, p := range list {
			dirs[path.Dir(p)] = struct{}{}
		}
	}
	for _, list := range [][]string{cs.StaleFolders, cs.DeletedFolders} {
		for _, p := range list {
			dirs[p] = struct{}{}
		}
	}

	result := make([]string, 0, len(dirs))
	for dir := range dirs {
		result = append(result, dir)
	}
	slices.Sort(result)
	return result
}

// sort sorts all slices for deterministic output.
func (cs *ChangeSet) sort() {
	if cs == nil {
		return
	}
	slices.Sort(cs.Added)
	slices.Sort(cs.Modified)
	slices.Sort(cs.Deleted)
	slices.Sort(cs.StaleFolders)
	slices.Sort(cs.DeletedFolders)
}
