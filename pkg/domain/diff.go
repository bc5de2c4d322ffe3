package domain

import "sort"

// VariableDiff represents the changes between two variable snapshots.
// It is designed to be serialized to JSON for partial updates on the client.
type VariableDiff struct {
	// Changed contains added or modified variables.
	Changed map[string]Value `json:"changed,omitempty"`

	// Removed lists variables present in the old snapshot only, sorted.
	Removed []string `json:"removed,omitempty"`
}

// Diff calculates the difference between two snapshots.
// If old is nil, every variable in new is reported as changed (initial load).
// Returns nil when nothing changed.
func Diff(old, new VariableSnapshot) *VariableDiff {
	d := &VariableDiff{}

	for k, v := range new {
		if ov, ok := old[k]; !ok || !ov.Equal(v) {
			if d.Changed == nil {
				d.Changed = make(map[string]Value)
			}
			d.Changed[k] = v
		}
	}

	for k := range old {
		if _, ok := new[k]; !ok {
			d.Removed = append(d.Removed, k)
		}
	}
	sort.Strings(d.Removed)

	if d.IsEmpty() {
		return nil
	}
	return d
}

// IsEmpty checks if the diff contains any actionable changes.
func (d *VariableDiff) IsEmpty() bool {
	return d == nil || (len(d.Changed) == 0 && len(d.Removed) == 0)
}
