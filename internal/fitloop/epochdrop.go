// Public domain.

package fitloop

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cuantar/timing-analysis/internal/engine"
	"github.com/cuantar/timing-analysis/internal/parfile"
	"github.com/cuantar/timing-analysis/internal/tim"
	"github.com/cuantar/timing-analysis/internal/timingerr"
)

// EpochDropCut is the -cut value of TOAs removed by DropEpochs.
const EpochDropCut = "epochdrop"

// EpochTest is the outcome of refitting without one epoch, the TOAs of
// one archive file.
type EpochTest struct {
	Name    string
	Group   string
	MJD     int
	Removed int // TOAs withheld
	// FTest is the chance probability of the χ² improvement, 1 if there
	// was none and NaN if the refit did not run to convergence or left the
	// degrees of freedom unchanged.
	FTest   float64
	Err     float64 // µs, combined uncertainty of the epoch
	Dropped bool
}

// DropEpochs refits a converged session once per epoch with that epoch
// withheld, and excises every epoch whose F-test probability is below
// threshold.  A DMX window left without TOAs is removed from the model of
// that refit.  If epochs were dropped the session returns to Loaded, so a
// further Run fits the reduced set.
func (s *Session) DropEpochs(ctx context.Context, threshold float64) ([]EpochTest, error) {
	if s.state != Converged {
		return nil, fmt.Errorf("epoch drop needs a converged session, state is %s", s.state)
	}
	chi0, dof0 := s.last.Chi2, s.last.DOF
	active := s.lastActive
	model := s.Model()

	byName := make(map[string][]int)
	for i := range active {
		byName[active[i].Name] = append(byName[active[i].Name], i)
	}
	names := make([]string, 0, len(byName))
	for n := range byName {
		names = append(names, n)
	}
	sort.Strings(names)
	s.log.WithField("epochs", len(names)).Info("testing epochs")

	var tests []EpochTest
	for _, name := range names {
		idx := byName[name]
		if len(idx) == len(active) {
			continue
		}
		first := &active[idx[0]]
		et := EpochTest{
			Name:    name,
			Group:   first.Group(),
			MJD:     int(first.MJD),
			Removed: len(idx),
			FTest:   math.NaN(),
		}
		drop := make(map[int]bool, len(idx))
		sum := 0.
		for _, i := range idx {
			drop[i] = true
			if e := active[i].Err; e > 0 {
				sum += 1 / (e * e)
			}
		}
		if sum > 0 {
			et.Err = 1 / math.Sqrt(sum)
		}
		var rest []tim.TOA
		for i := range active {
			if !drop[i] {
				rest = append(rest, active[i])
			}
		}
		req := &engine.FitRequest{
			Model:  withoutEmptyDMX(model, active, rest),
			TOAs:   rest,
			Type:   s.opt.Type,
			Fitter: s.opt.Fitter,
			Ephem:  s.opt.Ephem,
			BIPM:   s.opt.BIPM,
		}
		res, err := s.eng.Fit(ctx, req)
		switch {
		case err != nil && !timingerr.KindOf(err).Recoverable():
			return tests, err
		case err != nil || !res.Converged:
			s.log.WithField("epoch", name).Warn("refit without epoch did not converge")
		case res.DOF != dof0:
			et.FTest = FTest(chi0, dof0, res.Chi2, res.DOF)
			et.Dropped = et.FTest < threshold
		}
		tests = append(tests, et)
	}

	d := Delta{Kind: DeltaExcise, Iteration: s.iteration, Time: time.Now()}
	epochs := 0
	for _, et := range tests {
		if !et.Dropped {
			continue
		}
		epochs++
		for _, i := range byName[et.Name] {
			id := active[i].ID()
			if s.excised.Add(id, EpochDropCut) {
				d.Excised = append(d.Excised, id)
				d.Reasons = append(d.Reasons, EpochDropCut)
			}
		}
	}
	if epochs == 0 {
		s.log.Info("no epochs dropped")
		return tests, nil
	}
	d.Note = fmt.Sprintf("dropped %d epochs", epochs)
	s.deltas = append(s.deltas, d)
	s.log.WithFields(logrus.Fields{
		"epochs": epochs,
		"toas":   len(d.Excised),
	}).Info("dropped epochs")
	s.state = Loaded
	return tests, nil
}

// withoutEmptyDMX returns m, or a copy of m without the DMX windows that
// hold TOAs in all but none in rest.
func withoutEmptyDMX(m *parfile.Model, all, rest []tim.TOA) *parfile.Model {
	var c *parfile.Model
	for _, r1 := range m.WithPrefix("DMXR1_") {
		n := r1[len("DMXR1_"):]
		lo, ok1 := floatParam(m, r1)
		hi, ok2 := floatParam(m, "DMXR2_"+n)
		if !ok1 || !ok2 || countIn(all, lo, hi) == 0 || countIn(rest, lo, hi) > 0 {
			continue
		}
		if c == nil {
			c = m.Clone()
		}
		for _, id := range []string{"DMX_" + n, "DMXR1_" + n, "DMXR2_" + n} {
			c.Delete(id)
		}
	}
	if c == nil {
		return m
	}
	return c
}

func floatParam(m *parfile.Model, id string) (float64, bool) {
	p, ok := m.Get(id)
	if !ok {
		return 0, false
	}
	return p.Float()
}

func countIn(toas []tim.TOA, lo, hi float64) int {
	n := 0
	for i := range toas {
		if toas[i].MJD > lo && toas[i].MJD < hi {
			n++
		}
	}
	return n
}
