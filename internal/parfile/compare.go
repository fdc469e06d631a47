// Public domain.

package parfile

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Diff describes how one parameter differs between a reference model and
// a current model.
type Diff struct {
	ID          string
	Ref, Cur    string          // value text, "" when absent from that model
	Delta       decimal.Decimal // Cur - Ref, numeric parameters only
	Sigma       float64         // |Delta| in units of the current uncertainty, 0 if unknown
	Significant bool            // Sigma exceeds the comparison threshold, or value text changed
}

// Compare lists parameters that differ between ref and cur.  Numeric
// parameters are compared in units of their uncertainty (taken from cur,
// falling back to ref) and flagged significant beyond thresholdSigma.
// Non-numeric parameters are significant whenever their text differs.
// With noDMX set, DMX parameters are skipped.
//
// Parameters present in only one model are always reported.
func Compare(ref, cur *Model, thresholdSigma float64, noDMX bool) []Diff {
	var diffs []Diff
	skip := func(id string) bool {
		return noDMX && strings.HasPrefix(id, "DMX")
	}
	for _, c := range cur.params {
		id := c.ID()
		if skip(id) {
			continue
		}
		r, ok := ref.Get(id)
		if !ok {
			diffs = append(diffs, Diff{ID: id, Cur: c.Value, Significant: true})
			continue
		}
		if d, ok := compareParam(&r, &c, thresholdSigma); ok {
			diffs = append(diffs, d)
		}
	}
	for _, r := range ref.params {
		id := r.ID()
		if skip(id) || cur.Has(id) {
			continue
		}
		diffs = append(diffs, Diff{ID: id, Ref: r.Value, Significant: true})
	}
	return diffs
}

func compareParam(r, c *Param, thresholdSigma float64) (Diff, bool) {
	d := Diff{ID: c.ID(), Ref: r.Value, Cur: c.Value}
	rv, rok := r.Decimal()
	cv, cok := c.Decimal()
	if !rok || !cok {
		if r.Value == c.Value {
			return d, false
		}
		d.Significant = true
		return d, true
	}
	d.Delta = cv.Sub(rv)
	if d.Delta.IsZero() {
		return d, false
	}
	unc, ok := c.UncertaintyDecimal()
	if !ok || unc.IsZero() {
		unc, ok = r.UncertaintyDecimal()
	}
	if ok && !unc.IsZero() {
		d.Sigma, _ = d.Delta.Abs().Div(unc.Abs()).Float64()
		d.Significant = d.Sigma > thresholdSigma
	}
	return d, true
}
