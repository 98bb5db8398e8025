package models

import "sort"

// DomainSet is the set of domains already seen by the poller.
type DomainSet map[string]struct{}

// NewDomainSet builds a set from the given domains.
func NewDomainSet(domains ...string) DomainSet {
	set := make(DomainSet, len(domains))
	for _, d := range domains {
		set[d] = struct{}{}
	}
	return set
}

// Has reports whether the domain is already known.
func (s DomainSet) Has(domain string) bool {
	_, ok := s[domain]
	return ok
}

// Add inserts the domain and reports whether it was not present before.
func (s DomainSet) Add(domain string) bool {
	if s.Has(domain) {
		return false
	}
	s[domain] = struct{}{}
	return true
}

// Merge adds every domain in the slice.
func (s DomainSet) Merge(domains []string) {
	for _, d := range domains {
		s[d] = struct{}{}
	}
}

// Len returns the number of known domains.
func (s DomainSet) Len() int {
	return len(s)
}

// Sorted returns the members in lexical order.
func (s DomainSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for d := range s {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// Diff returns the fetched domains missing from the set, in fetched order.
// A domain repeated in fetched is reported once.
func (s DomainSet) Diff(fetched []string) []string {
	var fresh []string
	seen := make(map[string]struct{})
	for _, d := range fetched {
		if s.Has(d) {
			continue
		}
		if _, dup := seen[d]; dup {
			continue
		}
		seen[d] = struct{}{}
		fresh = append(fresh, d)
	}
	return fresh
}

// Clone returns an independent copy of the set.
func (s DomainSet) Clone() DomainSet {
	out := make(DomainSet, len(s))
	for d := range s {
		out[d] = struct{}{}
	}
	return out
}
