// Public domain.

// Package excise decides which observations to remove from a fit.
//
// Two mechanisms exist.  A Policy inspects the residuals of a fit and
// proposes outliers, the large_residuals rule.  An Ignore block lists
// observations excluded up front by configuration.  Both identify
// observations by tim.ObsID and carry a reason that ends up as the -cut
// flag of the written tim file.
package excise

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/cuantar/timing-analysis/internal/engine"
	"github.com/cuantar/timing-analysis/internal/tim"
)

// Reason says why a candidate was selected.
type Reason int

const (
	LargeResidual Reason = iota + 1
	LowSNR
	LargeError
	LargeDMResidual
)

var reasonCuts = [...]string{
	LargeResidual:   "outlier",
	LowSNR:          "snr",
	LargeError:      "maxerr",
	LargeDMResidual: "dmoutlier",
}

// Cut returns the -cut flag value for r.
func (r Reason) Cut() string {
	if r <= 0 || int(r) >= len(reasonCuts) {
		return "excise"
	}
	return reasonCuts[r]
}

func (r Reason) String() string { return r.Cut() }

// Point is the per-observation input to Select.
type Point struct {
	ID       tim.ObsID
	MJD      float64
	Residual float64 // µs
	Err      float64 // µs
	Backend  string

	DM, DMErr float64
	HasDM     bool
}

// Sigma returns Residual/Err.
func (p *Point) Sigma() float64 {
	if p.Err <= 0 {
		return math.Inf(1)
	}
	return p.Residual / p.Err
}

// Points joins residuals with the TOAs they belong to.  Residuals for IDs
// not in toas are an error.
func Points(res []engine.Residual, toas []tim.TOA) ([]Point, error) {
	byID := make(map[tim.ObsID]*tim.TOA, len(toas))
	for i := range toas {
		byID[toas[i].ID()] = &toas[i]
	}
	pts := make([]Point, len(res))
	for i := range res {
		r := &res[i]
		t, ok := byID[r.ID]
		if !ok {
			return nil, fmt.Errorf("residual for unknown observation %s", r.ID)
		}
		pts[i] = Point{
			ID:       r.ID,
			MJD:      t.MJD,
			Residual: r.Value,
			Err:      r.Err,
			Backend:  t.Backend(),
			DM:       r.DM,
			DMErr:    r.DMErr,
			HasDM:    r.HasDM,
		}
	}
	return pts, nil
}

// Candidate is an observation proposed for excision.
type Candidate struct {
	ID     tim.ObsID
	MJD    float64
	Sigma  float64
	Reason Reason
}

// Policy is the outlier selection rule.
//
// An observation is a candidate when any of these hold:
//
//   - |σ| exceeds SigmaThreshold and, if ThresholdUS is set, |residual|
//     exceeds ThresholdUS;
//   - MaxErrorUS is set and the claimed uncertainty exceeds it;
//   - ThresholdDM is set, the observation has a wideband DM residual
//     exceeding it and at least SigmaThreshold in DM σ.
//
// SNRCut is not a residual test.  BelowSNR applies it to the observations
// before any fit.
type Policy struct {
	SigmaThreshold float64
	MaxCandidates  int // 0 for no limit
	SNRCut         *float64
	ThresholdUS    *float64
	MaxErrorUS     *float64
	ThresholdDM    *float64
	// IgnoreASPDMs exempts ASP and GASP backends from the DM test.
	IgnoreASPDMs bool
}

// ErrNoThreshold is returned by Validate for a policy without a sigma
// threshold.  There is no default.
var ErrNoThreshold = errors.New("excision sigma-threshold must be set and positive")

// Validate checks p for usable settings.
func (p *Policy) Validate() error {
	if !(p.SigmaThreshold > 0) {
		return ErrNoThreshold
	}
	if p.MaxCandidates < 0 {
		return fmt.Errorf("excision max-candidates %d is negative", p.MaxCandidates)
	}
	for name, v := range map[string]*float64{
		"snr-cut":      p.SNRCut,
		"threshold-us": p.ThresholdUS,
		"max-error-us": p.MaxErrorUS,
		"threshold-dm": p.ThresholdDM,
	} {
		if v != nil && !(*v >= 0) {
			return fmt.Errorf("excision %s %g is invalid", name, *v)
		}
	}
	return nil
}

// Select returns the candidates among pts, ordered by |σ| descending, then
// MJD ascending, then ID ascending, and truncated to MaxCandidates.  It
// depends only on its inputs.
func (p *Policy) Select(pts []Point) []Candidate {
	var cs []Candidate
	for i := range pts {
		if r, ok := p.reason(&pts[i]); ok {
			cs = append(cs, Candidate{
				ID:     pts[i].ID,
				MJD:    pts[i].MJD,
				Sigma:  pts[i].Sigma(),
				Reason: r,
			})
		}
	}
	sort.SliceStable(cs, func(i, j int) bool {
		a, b := math.Abs(cs[i].Sigma), math.Abs(cs[j].Sigma)
		switch {
		case a != b:
			return a > b
		case cs[i].MJD != cs[j].MJD:
			return cs[i].MJD < cs[j].MJD
		}
		return cs[i].ID < cs[j].ID
	})
	if p.MaxCandidates > 0 && len(cs) > p.MaxCandidates {
		cs = cs[:p.MaxCandidates]
	}
	return cs
}

// BelowSNR returns the observations among toas whose -snr flag is below
// SNRCut, in TOA order.  TOAs without the flag are kept.
func (p *Policy) BelowSNR(toas []tim.TOA) []Exclusion {
	if p.SNRCut == nil {
		return nil
	}
	var ex []Exclusion
	for i := range toas {
		if snr, ok := toas[i].SNR(); ok && snr < *p.SNRCut {
			ex = append(ex, Exclusion{ID: toas[i].ID(), Reason: LowSNR.Cut()})
		}
	}
	return ex
}

func (p *Policy) reason(pt *Point) (Reason, bool) {
	if math.Abs(pt.Sigma()) > p.SigmaThreshold &&
		(p.ThresholdUS == nil || math.Abs(pt.Residual) > *p.ThresholdUS) {
		return LargeResidual, true
	}
	if p.MaxErrorUS != nil && pt.Err > *p.MaxErrorUS {
		return LargeError, true
	}
	if p.ThresholdDM != nil && pt.HasDM &&
		!(p.IgnoreASPDMs && strings.HasSuffix(pt.Backend, "ASP")) &&
		math.Abs(pt.DM) > *p.ThresholdDM &&
		math.Abs(pt.DM/pt.DMErr) > p.SigmaThreshold {
		return LargeDMResidual, true
	}
	return 0, false
}

// BadTOALine formats t as a bad-toa entry for the configuration file.
// Missing chan or subint flags are written as YAML nulls.
func BadTOALine(t *tim.TOA) string {
	ch, _ := t.Flag("chan")
	si, _ := t.Flag("subint")
	if ch == "" {
		ch = "~"
	}
	if si == "" {
		si = "~"
	}
	return fmt.Sprintf("  - [%s, %s, %s]", t.Name, ch, si)
}
