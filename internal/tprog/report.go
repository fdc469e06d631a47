// Public domain.

package tprog

import (
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/cuantar/timing-analysis/internal/excise"
	"github.com/cuantar/timing-analysis/internal/fitloop"
	"github.com/cuantar/timing-analysis/internal/parfile"
	"github.com/cuantar/timing-analysis/internal/sessionlog"
	"github.com/cuantar/timing-analysis/internal/tim"
)

// writeReport prints the outcome of a session: fit statistics, cuts by
// reason, parameter changes, epoch tests and the TOAs the loop excised as
// bad-toa lines.
func writeReport(w io.Writer, s *fitloop.Session, diffs []parfile.Diff, epochs []fitloop.EpochTest) {
	x := s.Excised()
	fmt.Fprintf(w, "session %s: %s after %d fits, %d of %d TOAs excised\n",
		s.ID(), s.State(), s.Iterations(), x.Len(), len(s.TOAs()))
	if st := s.Stats(); st != nil {
		writeStats(w, st)
	}
	writeCuts(w, cutSummary(s.TOAs(), x.Cuts()), len(s.TOAs()))
	writeDiffs(w, diffs)
	if len(epochs) > 0 {
		writeEpochs(w, epochs)
	}
	if lines := badTOALines(s); len(lines) > 0 {
		fmt.Fprintln(w, "\nexcised by the loop, as bad-toa entries:")
		for _, l := range lines {
			fmt.Fprintln(w, l)
		}
	}
}

func writeStats(w io.Writer, st *fitloop.Stats) {
	fmt.Fprintf(w, "\n%d TOAs  RMS %.3f µs  WRMS %.3f µs  χ² %.2f / %d = %.3f\n",
		st.N, st.RMS, st.WRMS, st.Chi2, st.DOF, st.ReducedChi2)
	if len(st.Groups) == 0 {
		return
	}
	fmt.Fprintf(w, "%-24s %6s %10s %10s\n", "group", "N", "RMS", "WRMS")
	for _, g := range st.Groups {
		fmt.Fprintf(w, "%-24s %6d %10.3f %10.3f\n", g.Group, g.N, g.RMS, g.WRMS)
	}
}

// cutCount is the number of TOAs cut for one reason, "good" for those
// kept.
type cutCount struct {
	Reason string
	N      int
}

// cutSummary counts toas by -cut reason, largest count first.
func cutSummary(toas []tim.TOA, cuts map[tim.ObsID]string) []cutCount {
	n := make(map[string]int)
	for i := range toas {
		r, ok := cuts[toas[i].ID()]
		if !ok {
			r = "good"
		}
		n[r]++
	}
	cs := make([]cutCount, 0, len(n))
	for r, c := range n {
		cs = append(cs, cutCount{r, c})
	}
	sort.Slice(cs, func(i, j int) bool {
		if cs[i].N != cs[j].N {
			return cs[i].N > cs[j].N
		}
		return cs[i].Reason < cs[j].Reason
	})
	return cs
}

func writeCuts(w io.Writer, cs []cutCount, total int) {
	if total == 0 {
		return
	}
	fmt.Fprintln(w, "\nTOAs by cut reason:")
	for _, c := range cs {
		fmt.Fprintf(w, "  %-12s %6d %6.1f%%\n", c.Reason, c.N, 100*float64(c.N)/float64(total))
	}
}

func writeEpochs(w io.Writer, epochs []fitloop.EpochTest) {
	fmt.Fprintf(w, "\n%-40s %-20s %6s %4s %12s %10s\n", "epoch", "group", "MJD", "N", "F-test", "err µs")
	for _, e := range epochs {
		ft := "-"
		if !math.IsNaN(e.FTest) {
			ft = fmt.Sprintf("%.3e", e.FTest)
		}
		mark := ""
		if e.Dropped {
			mark = "  dropped"
		}
		fmt.Fprintf(w, "%-40s %-20s %6d %4d %12s %10.3f%s\n", e.Name, e.Group, e.MJD, e.Removed, ft, e.Err, mark)
	}
}

func writeDiffs(w io.Writer, diffs []parfile.Diff) {
	var sig []parfile.Diff
	for _, d := range diffs {
		if d.Significant {
			sig = append(sig, d)
		}
	}
	if len(sig) == 0 {
		fmt.Fprintf(w, "\nno parameter changed by more than %dσ\n", compareSigma)
		return
	}
	fmt.Fprintf(w, "\nparameters changed by more than %dσ:\n", compareSigma)
	for _, d := range sig {
		switch {
		case d.Ref == "":
			fmt.Fprintf(w, "  %-12s added %s\n", d.ID, d.Cur)
		case d.Cur == "":
			fmt.Fprintf(w, "  %-12s removed, was %s\n", d.ID, d.Ref)
		case d.Sigma > 0:
			fmt.Fprintf(w, "  %-12s %s -> %s (%.1fσ)\n", d.ID, d.Ref, d.Cur, d.Sigma)
		default:
			fmt.Fprintf(w, "  %-12s %s -> %s\n", d.ID, d.Ref, d.Cur)
		}
	}
}

// badTOALines formats the TOAs excised by excise steps, in excision order.
// Configured exclusions are not repeated.
func badTOALines(s *fitloop.Session) []string {
	toas := s.TOAs()
	byID := make(map[tim.ObsID]*tim.TOA, len(toas))
	for i := range toas {
		byID[toas[i].ID()] = &toas[i]
	}
	var lines []string
	for _, d := range s.Deltas() {
		if d.Kind != fitloop.DeltaExcise {
			continue
		}
		for i, id := range d.Excised {
			if t, ok := byID[id]; ok {
				lines = append(lines, fmt.Sprintf("%s  # %s", excise.BadTOALine(t), d.Reasons[i]))
			}
		}
	}
	return lines
}

// writeRecord prints a saved session.
func writeRecord(w io.Writer, r *sessionlog.Record) {
	fmt.Fprintf(w, "session %s  %s %s\n", r.SessionID, r.Source, r.TOAType)
	fmt.Fprintf(w, "started %s, finished %s\n",
		r.Started.Format("2006-01-02 15:04:05"), r.Finished.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "%s after %d fits, %d of %d TOAs excised\n", r.State, r.Iterations, len(r.Excised), r.TOAs)
	if r.Error != "" {
		fmt.Fprintf(w, "error (%s): %s\n", r.ErrorKind, r.Error)
	}
	for _, st := range r.Steps {
		fmt.Fprintf(w, "  %2d %-7s", st.Iteration, st.Kind)
		if st.HasStats {
			fmt.Fprintf(w, " N %d  WRMS %.3f µs  χ²r %.3f", st.N, st.WRMS, st.ReducedChi2)
		}
		if len(st.Excised) > 0 {
			fmt.Fprintf(w, " excised %d", len(st.Excised))
		}
		if st.Note != "" {
			fmt.Fprintf(w, " (%s)", st.Note)
		}
		fmt.Fprintln(w)
	}
}
