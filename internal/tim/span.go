// Public domain.

package tim

import (
	"time"

	"github.com/soniakeys/meeus/v3/julian"
)

// MJDOffset is JD - MJD.
const MJDOffset = 2400000.5

// MJDToTime converts an MJD (UTC-like, leap seconds ignored) to a time.
func MJDToTime(mjd float64) time.Time {
	return julian.JDToTime(mjd + MJDOffset)
}

// TimeToMJD is the inverse of MJDToTime.
func TimeToMJD(t time.Time) float64 {
	return julian.TimeToJD(t) - MJDOffset
}

// Span summarizes the time coverage of a TOA set.
type Span struct {
	First, Last float64 // MJD
	N           int
}

// Years returns the span length in Julian years.
func (s Span) Years() float64 {
	return (s.Last - s.First) / 365.25
}

// Dates returns the first and last TOA as calendar times.
func (s Span) Dates() (first, last time.Time) {
	return MJDToTime(s.First), MJDToTime(s.Last)
}

// SpanOf returns the span of toas for which keep returns true.  A nil keep
// selects all.
func SpanOf(toas []TOA, keep func(*TOA) bool) Span {
	var s Span
	for i := range toas {
		t := &toas[i]
		if keep != nil && !keep(t) {
			continue
		}
		if s.N == 0 || t.MJD < s.First {
			s.First = t.MJD
		}
		if s.N == 0 || t.MJD > s.Last {
			s.Last = t.MJD
		}
		s.N++
	}
	return s
}
