// Public domain.

package excise

import (
	"strconv"
	"strings"

	"github.com/cuantar/timing-analysis/internal/tim"
)

// BadTOA names a single TOA by archive, channel and subintegration.
// Channel is not compared for wideband TOAs, which have none, or when
// negative.
type BadTOA struct {
	Name         string
	Chan, Subint int
}

// BadRange excludes TOAs strictly between Start and End, MJD, optionally
// only those of one backend.
type BadRange struct {
	Start, End float64
	Backend    string
}

// Ignore lists observations to exclude before any fit.
type Ignore struct {
	MJDStart, MJDEnd *float64
	BadTOAs          []BadTOA
	BadRanges        []BadRange
	BadEpochs        []string // archive name substrings
	BadIDs           []tim.ObsID
}

// Exclusion is an observation excluded by an Ignore block.
type Exclusion struct {
	ID     tim.ObsID
	Reason string // -cut flag value
}

// InUse returns the configuration keys of ig that are set.
func (ig *Ignore) InUse() []string {
	var keys []string
	add := func(set bool, k string) {
		if set {
			keys = append(keys, k)
		}
	}
	add(ig.MJDStart != nil, "mjd-start")
	add(ig.MJDEnd != nil, "mjd-end")
	add(len(ig.BadTOAs) > 0, "bad-toa")
	add(len(ig.BadRanges) > 0, "bad-range")
	add(len(ig.BadEpochs) > 0, "bad-epoch")
	add(len(ig.BadIDs) > 0, "bad-id")
	return keys
}

// Apply returns the exclusions ig makes among toas, in TOA order.  Each
// TOA is excluded at most once, with the first matching reason.
func (ig *Ignore) Apply(toas []tim.TOA, typ tim.Type) []Exclusion {
	ids := make(map[tim.ObsID]bool, len(ig.BadIDs))
	for _, id := range ig.BadIDs {
		ids[id] = true
	}
	var ex []Exclusion
	for i := range toas {
		t := &toas[i]
		if r := ig.match(t, typ, ids); r != "" {
			ex = append(ex, Exclusion{ID: t.ID(), Reason: r})
		}
	}
	return ex
}

func (ig *Ignore) match(t *tim.TOA, typ tim.Type, ids map[tim.ObsID]bool) string {
	switch {
	case ig.MJDStart != nil && t.MJD <= *ig.MJDStart:
		return "mjdstart"
	case ig.MJDEnd != nil && t.MJD >= *ig.MJDEnd:
		return "mjdend"
	}
	for _, e := range ig.BadEpochs {
		if strings.Contains(t.Name, e) {
			return "badepoch"
		}
	}
	for _, r := range ig.BadRanges {
		if t.MJD > r.Start && t.MJD < r.End && (r.Backend == "" || r.Backend == t.Backend()) {
			return "badrange"
		}
	}
	for _, b := range ig.BadTOAs {
		if b.matches(t, typ) {
			return "badtoa"
		}
	}
	if ids[t.ID()] {
		return "badid"
	}
	return ""
}

func (b *BadTOA) matches(t *tim.TOA, typ tim.Type) bool {
	if t.Name != b.Name || !intFlag(t, "subint", b.Subint) {
		return false
	}
	return typ == tim.Wideband || b.Chan < 0 || intFlag(t, "chan", b.Chan)
}

func intFlag(t *tim.TOA, key string, want int) bool {
	s, ok := t.Flag(key)
	if !ok {
		return false
	}
	v, err := strconv.Atoi(s)
	return err == nil && v == want
}
