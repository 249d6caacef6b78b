package types

import "sort"

// PICS is the capability-flag set describing which optional DUT features are
// implemented. The bool value marks a flag as enabled.
type PICS map[string]bool

// Enabled returns the enabled PICS items in stable order.
func (p PICS) Enabled() []string {
	var items []string
	for k, v := range p {
		if v {
			items = append(items, k)
		}
	}
	sort.Strings(items)
	return items
}

// HasEnabled reports whether at least one PICS item is enabled.
func (p PICS) HasEnabled() bool {
	for _, v := range p {
		if v {
			return true
		}
	}
	return false
}
