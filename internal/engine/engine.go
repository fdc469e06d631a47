// Public domain.

// Package engine defines the boundary to an external timing fitter.
//
// The loop in package fitloop never fits anything itself.  It hands a
// model and the active TOAs to an Engine and gets back an updated model
// with per-TOA residuals.
package engine

import (
	"context"
	"math"

	"github.com/cuantar/timing-analysis/internal/parfile"
	"github.com/cuantar/timing-analysis/internal/tim"
)

// Engine fits a timing model to TOAs.
//
// Implementations report fatal conditions with timingerr kinds, for
// example UnsupportedTimescale.  A fit that ran but did not converge is
// returned as a result with Converged false, not as an error.
type Engine interface {
	Fit(ctx context.Context, req *FitRequest) (*FitResult, error)
}

// FitRequest is the input to one fit.
type FitRequest struct {
	Model  *parfile.Model // fit flags mark the free parameters
	TOAs   []tim.TOA      // active TOAs only
	Type   tim.Type
	Fitter string // engine fitter name, e.g. GLSFitter
	Ephem  string // solar system ephemeris, "" for the model's own
	BIPM   string // clock realization, "" for the model's own
}

// Residual is the post-fit residual of one TOA.
type Residual struct {
	ID    tim.ObsID
	Value float64 // µs
	Err   float64 // µs, uncertainty as used by the fit

	// wideband DM residual, pc cm^-3
	DM, DMErr float64
	HasDM     bool
}

// Sigma returns the residual normalized by its uncertainty.
func (r *Residual) Sigma() float64 {
	if r.Err <= 0 {
		return math.Inf(1)
	}
	return r.Value / r.Err
}

// DMSigma returns the DM residual normalized by its uncertainty.
func (r *Residual) DMSigma() float64 {
	if r.DMErr <= 0 {
		return math.Inf(1)
	}
	return r.DM / r.DMErr
}

// FitResult is the output of one fit.
type FitResult struct {
	Model     *parfile.Model
	Residuals []Residual // one per requested TOA, in request order
	Chi2      float64
	DOF       int
	Converged bool
	Warnings  []string
}

// ReducedChi2 returns Chi2/DOF, or NaN with no degrees of freedom.
func (r *FitResult) ReducedChi2() float64 {
	if r.DOF <= 0 {
		return math.NaN()
	}
	return r.Chi2 / float64(r.DOF)
}
