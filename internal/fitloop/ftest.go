// Public domain.

package fitloop

import "gonum.org/v1/gonum/stat/distuv"

// FTest returns the probability that the improvement from chi1 with dof1
// degrees of freedom to chi2 with dof2 < dof1 arises by chance.  A small
// value means the second fit is significantly better.  It is 1 when chi2
// is not an improvement.
func FTest(chi1 float64, dof1 int, chi2 float64, dof2 int) float64 {
	d := chi1 - chi2
	n := dof1 - dof2
	if !(d > 0) || n <= 0 || dof2 <= 0 {
		return 1
	}
	if chi2 <= 0 {
		return 0
	}
	f := (d / float64(n)) / (chi2 / float64(dof2))
	return distuv.F{D1: float64(n), D2: float64(dof2)}.Survival(f)
}
