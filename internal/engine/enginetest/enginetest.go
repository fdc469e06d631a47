// Public domain.

// Package enginetest provides in-process engines and synthetic data for
// testing code that drives an engine.Engine.
package enginetest

import (
	"context"
	"fmt"
	"strings"

	xrand "golang.org/x/exp/rand"

	"github.com/cuantar/timing-analysis/internal/engine"
	"github.com/cuantar/timing-analysis/internal/parfile"
	"github.com/cuantar/timing-analysis/internal/tim"
)

// Call records one request seen by an Engine.
type Call struct {
	IDs  []tim.ObsID
	Free []string
}

// Engine is a scripted engine.  Residuals are drawn as Gaussian noise of
// standard deviation Noise (in units of the TOA uncertainty), except for
// TOAs listed in Sigma, which get exactly that normalized residual.
//
// With equal Seed, equal requests produce equal results.
type Engine struct {
	Sigma map[tim.ObsID]float64
	Noise float64
	Seed  uint64

	// Diverge lists call numbers, starting at 1, that return an
	// unconverged result.
	Diverge map[int]bool
	// Err, if not nil, is returned by every call.
	Err error
	// Func, if not nil, replaces the scripted behavior.
	Func func(call int, req *engine.FitRequest) (*engine.FitResult, error)

	Calls []Call
}

// Fit implements engine.Engine.
func (e *Engine) Fit(ctx context.Context, req *engine.FitRequest) (*engine.FitResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c := Call{Free: req.Model.FreeParams()}
	for i := range req.TOAs {
		c.IDs = append(c.IDs, req.TOAs[i].ID())
	}
	e.Calls = append(e.Calls, c)
	n := len(e.Calls)
	if e.Err != nil {
		return nil, e.Err
	}
	if e.Func != nil {
		return e.Func(n, req)
	}

	rnd := xrand.New(&xrand.PCGSource{})
	rnd.Seed(e.Seed)
	res := &engine.FitResult{
		Model:     fitted(req.Model),
		Converged: !e.Diverge[n],
		DOF:       len(req.TOAs) - len(c.Free),
	}
	for i := range req.TOAs {
		t := &req.TOAs[i]
		s := rnd.NormFloat64() * e.Noise
		if v, ok := e.Sigma[t.ID()]; ok {
			s = v
		}
		errUS := t.Err
		if errUS <= 0 {
			errUS = 1
		}
		res.Residuals = append(res.Residuals, engine.Residual{
			ID:    t.ID(),
			Value: s * errUS,
			Err:   errUS,
		})
		res.Chi2 += s * s
	}
	return res, nil
}

// fitted marks free parameters as fit by giving any without an
// uncertainty a nominal one.
func fitted(m *parfile.Model) *parfile.Model {
	c := m.Clone()
	for _, id := range c.FreeParams() {
		p, _ := c.Get(id)
		if p.Uncertainty == "" {
			p.Uncertainty = "1e-6"
			c.Set(p)
		}
	}
	return c
}

// TOAs returns n narrowband TOAs, one day apart starting at MJD start,
// alternating between two receiver systems.  Each has -chan, -subint and
// -snr flags; SNR is 50 unless lowSNR lists the index.
func TOAs(n int, start float64, lowSNR ...int) []tim.TOA {
	low := make(map[int]bool, len(lowSNR))
	for _, i := range lowSNR {
		low[i] = true
	}
	var b strings.Builder
	for i := 0; i < n; i++ {
		sys := [2]string{"L-wide_PUPPI", "430_PUPPI"}[i%2]
		snr := 50
		if low[i] {
			snr = 3
		}
		fmt.Fprintf(&b, "obs%03d.ff 1400.0 %.6f 1.0 ao -f %s -be PUPPI -chan 0 -subint 0 -snr %d\n",
			i, start+float64(i), sys, snr)
	}
	toas, err := tim.Read(strings.NewReader(b.String()), "synthetic.tim")
	if err != nil {
		panic(err)
	}
	return toas
}

// Model returns a minimal ecliptic model with every required parameter
// free.
func Model() *parfile.Model {
	m, err := parfile.Read(strings.NewReader(`PSRJ J1909-3744
ELONG 284.2208635882 1 1e-8
ELAT -15.1558178194 1 3e-8
PMELONG -9.5196 1 0.001
PMELAT -35.7799 1 0.004
PX 0.8601 1 0.013
F0 339.31568728824689431 1 2.3e-14
F1 -1.6148392896525e-15 1 1.1e-22
PEPOCH 55000
DM 10.391
UNITS TDB
`))
	if err != nil {
		panic(err)
	}
	return m
}
