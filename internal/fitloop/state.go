// Public domain.

package fitloop

import "strconv"

// State is a step of the fit-excise-iterate loop.
type State int

const (
	Loaded State = iota
	Fitted
	Reviewed
	Excised
	Converged
	Failed
)

var stateNames = [...]string{"Loaded", "Fitted", "Reviewed", "Excised", "Converged", "Failed"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "State(" + strconv.Itoa(int(s)) + ")"
	}
	return stateNames[s]
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return s == Converged || s == Failed
}
