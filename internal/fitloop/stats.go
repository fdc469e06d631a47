// Public domain.

package fitloop

import (
	"math"
	"sort"

	"github.com/cuantar/timing-analysis/internal/engine"
	"github.com/cuantar/timing-analysis/internal/tim"
)

// GroupStats are residual statistics of one receiver/backend system.
type GroupStats struct {
	Group     string
	N         int
	RMS, WRMS float64 // µs
}

// Stats summarize the residuals of one fit.
type Stats struct {
	N           int
	RMS, WRMS   float64 // µs
	Chi2        float64
	DOF         int
	ReducedChi2 float64
	Groups      []GroupStats // sorted by Group
}

type accum struct {
	n          int
	sq, wsq, w float64
}

func (a *accum) add(r *engine.Residual) {
	a.n++
	a.sq += r.Value * r.Value
	if r.Err > 0 {
		w := 1 / (r.Err * r.Err)
		a.wsq += w * r.Value * r.Value
		a.w += w
	}
}

func (a *accum) rms() (rms, wrms float64) {
	if a.n == 0 {
		return 0, 0
	}
	rms = math.Sqrt(a.sq / float64(a.n))
	if a.w > 0 {
		wrms = math.Sqrt(a.wsq / a.w)
	}
	return
}

// ComputeStats computes RMS and weighted RMS of res, overall and per
// tim.TOA.Group.  Weights are inverse squared uncertainties.
func ComputeStats(res *engine.FitResult, toas []tim.TOA) Stats {
	group := make(map[tim.ObsID]string, len(toas))
	for i := range toas {
		group[toas[i].ID()] = toas[i].Group()
	}
	var all accum
	byGroup := map[string]*accum{}
	for i := range res.Residuals {
		r := &res.Residuals[i]
		all.add(r)
		g := group[r.ID]
		a := byGroup[g]
		if a == nil {
			a = &accum{}
			byGroup[g] = a
		}
		a.add(r)
	}
	s := Stats{
		N:           all.n,
		Chi2:        res.Chi2,
		DOF:         res.DOF,
		ReducedChi2: res.ReducedChi2(),
	}
	s.RMS, s.WRMS = all.rms()
	for g, a := range byGroup {
		gs := GroupStats{Group: g, N: a.n}
		gs.RMS, gs.WRMS = a.rms()
		s.Groups = append(s.Groups, gs)
	}
	sort.Slice(s.Groups, func(i, j int) bool { return s.Groups[i].Group < s.Groups[j].Group })
	return s
}
