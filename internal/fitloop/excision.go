// Public domain.

package fitloop

import "github.com/cuantar/timing-analysis/internal/tim"

// ExcisionSet is the set of observations withheld from fits, each with the
// reason it was withheld.  It only grows, except through Session.Reset.
type ExcisionSet struct {
	reason map[tim.ObsID]string
	order  []tim.ObsID
}

// Add inserts id, reporting false if it was already present.  An existing
// reason is kept.
func (x *ExcisionSet) Add(id tim.ObsID, reason string) bool {
	if x.reason == nil {
		x.reason = make(map[tim.ObsID]string)
	}
	if _, ok := x.reason[id]; ok {
		return false
	}
	x.reason[id] = reason
	x.order = append(x.order, id)
	return true
}

// Has reports whether id is excised.
func (x ExcisionSet) Has(id tim.ObsID) bool {
	_, ok := x.reason[id]
	return ok
}

// Reason returns the reason id was excised.
func (x ExcisionSet) Reason(id tim.ObsID) (string, bool) {
	r, ok := x.reason[id]
	return r, ok
}

// Len returns the number of excised observations.
func (x ExcisionSet) Len() int { return len(x.order) }

// IDs returns the excised IDs in the order they were added.
func (x ExcisionSet) IDs() []tim.ObsID {
	return append([]tim.ObsID{}, x.order...)
}

// Cuts returns a copy of the set as an ID to reason map, the form
// tim.Write takes.
func (x ExcisionSet) Cuts() map[tim.ObsID]string {
	m := make(map[tim.ObsID]string, len(x.reason))
	for k, v := range x.reason {
		m[k] = v
	}
	return m
}

func (x ExcisionSet) clone() ExcisionSet {
	return ExcisionSet{reason: x.Cuts(), order: x.IDs()}
}
