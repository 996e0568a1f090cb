package provider

import (
	"slices"
)

// Entry pairs a descriptor with its client. Provider may be nil when the
// descriptor is unavailable.
type Entry struct {
	Descriptor Descriptor
	Provider   Provider
}

// Selector picks providers by capability in fixed priority order. It is
// immutable after construction and safe for concurrent use.
type Selector struct {
	entries []Entry
}

// NewSelector orders entries by ascending priority. Entries marked
// available without a client are demoted to unavailable.
func NewSelector(entries ...Entry) *Selector {
	sorted := slices.Clone(entries)
	for i := range sorted {
		if sorted[i].Provider == nil && sorted[i].Descriptor.Available {
			sorted[i].Descriptor.Available = false
			sorted[i].Descriptor.Reason = "no client"
		}
	}
	slices.SortStableFunc(sorted, func(a, b Entry) int {
		return a.Descriptor.Priority - b.Descriptor.Priority
	})
	return &Selector{entries: sorted}
}

// Select returns the highest-priority available provider with the required
// capability. ok is false when none matches; callers fall back to the mock
// generator.
func (s *Selector) Select(required Capability) (p Provider, ok bool) {
	if s == nil {
		return nil, false
	}
	for _, e := range s.entries {
		if e.Descriptor.Available && e.Descriptor.Capabilities.Has(required) {
			return e.Provider, true
		}
	}
	return nil, false
}

// SelectFirst tries each capability in turn and reports which one matched.
func (s *Selector) SelectFirst(caps ...Capability) (Provider, Capability, bool) {
	for _, c := range caps {
		if p, ok := s.Select(c); ok {
			return p, c, true
		}
	}
	return nil, 0, false
}

// Descriptors returns a copy of the descriptors in priority order.
func (s *Selector) Descriptors() []Descriptor {
	if s == nil {
		return nil
	}
	out := make([]Descriptor, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.Descriptor
	}
	return out
}
