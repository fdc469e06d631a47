// Public domain.

package fitloop

import (
	"context"
	"fmt"
	"strings"

	"github.com/cuantar/timing-analysis/internal/excise"
	"github.com/cuantar/timing-analysis/internal/parfile"
	"github.com/cuantar/timing-analysis/internal/tim"
)

// CorrectionInput describes a fit that failed to converge.
type CorrectionInput struct {
	Model   *parfile.Model // model sent to the failed fit, do not modify
	Active  []tim.TOA      // observations sent to the failed fit
	Cause   error
	Attempt int // 1 for the first correction of a session
}

// Correction is a remedy for a failed fit.  Either field may be empty.
type Correction struct {
	Model   *parfile.Model     // replacement model
	Exclude []excise.Exclusion // further observations to withhold
	Note    string
}

// CorrectionStrategy proposes a remedy when a fit diverges.  Returning a
// nil Correction and nil error means the strategy has nothing to offer and
// the session fails with the original cause.
type CorrectionStrategy interface {
	Correct(ctx context.Context, in *CorrectionInput) (*Correction, error)
}

// TrimWindow withholds the latest Fraction of the active data span.
type TrimWindow struct {
	Fraction float64
}

// Correct implements CorrectionStrategy.
func (tw TrimWindow) Correct(_ context.Context, in *CorrectionInput) (*Correction, error) {
	if !(tw.Fraction > 0 && tw.Fraction < 1) {
		return nil, fmt.Errorf("trim fraction %g not in (0, 1)", tw.Fraction)
	}
	sp := tim.SpanOf(in.Active, nil)
	if sp.N < 2 {
		return nil, nil
	}
	cutoff := sp.Last - tw.Fraction*(sp.Last-sp.First)
	c := &Correction{}
	for i := range in.Active {
		if t := &in.Active[i]; t.MJD > cutoff {
			c.Exclude = append(c.Exclude, excise.Exclusion{ID: t.ID(), Reason: "trim"})
		}
	}
	if len(c.Exclude) == 0 || len(c.Exclude) == sp.N {
		return nil, nil
	}
	c.Note = fmt.Sprintf("trimmed %d TOAs after MJD %.3f", len(c.Exclude), cutoff)
	return c, nil
}

// FreezeParams clears the fit flag of the listed parameters.  Required
// parameters are never frozen.
type FreezeParams struct {
	Params []string
}

// Correct implements CorrectionStrategy.
func (fp FreezeParams) Correct(_ context.Context, in *CorrectionInput) (*Correction, error) {
	req := make(map[string]bool, len(parfile.Required))
	for _, r := range parfile.Required {
		req[r] = true
	}
	m := in.Model.Clone()
	var frozen []string
	for _, id := range in.Model.Resolve(fp.Params) {
		p, ok := m.Get(id)
		if !ok || !p.Fit || req[parfile.Canonical(id)] {
			continue
		}
		p.Fit = false
		m.Set(p)
		frozen = append(frozen, id)
	}
	if len(frozen) == 0 {
		return nil, nil
	}
	return &Correction{Model: m, Note: "froze " + strings.Join(frozen, ", ")}, nil
}

// Chain offers the first remedy any of its strategies offers.
type Chain []CorrectionStrategy

// Correct implements CorrectionStrategy.
func (ch Chain) Correct(ctx context.Context, in *CorrectionInput) (*Correction, error) {
	for _, s := range ch {
		c, err := s.Correct(ctx, in)
		if err != nil || c != nil {
			return c, err
		}
	}
	return nil, nil
}
