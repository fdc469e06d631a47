// Public domain.

package parfile

// Required lists the parameters every timing model must fit: ecliptic
// position, its proper motion, parallax and the two leading spin terms.
var Required = []string{"ELONG", "ELAT", "PMELONG", "PMELAT", "PX", "F0", "F1"}

// aliases accepted by the engines for the ecliptic parameters
var aliases = map[string]string{
	"LAMBDA":   "ELONG",
	"BETA":     "ELAT",
	"PMLAMBDA": "PMELONG",
	"PMBETA":   "PMELAT",
}

// Canonical maps an alias to its canonical parameter name.
func Canonical(name string) string {
	if c, ok := aliases[name]; ok {
		return c
	}
	return name
}

func isRequired(name string) bool {
	for _, r := range Required {
		if r == name {
			return true
		}
	}
	return false
}

// MissingRequired returns the Required names absent from free, in
// Required order.
func MissingRequired(free []string) []string {
	have := make(map[string]bool, len(free))
	for _, f := range free {
		have[Canonical(f)] = true
	}
	var missing []string
	for _, r := range Required {
		if !have[r] {
			missing = append(missing, r)
		}
	}
	return missing
}

// MissingFromModel returns the Required names, and any extra IDs, that the
// model does not contain.  Aliases in the model satisfy their canonical
// names.
func (m *Model) MissingFromModel(extra ...string) []string {
	have := make(map[string]bool, len(m.params))
	for i := range m.params {
		have[Canonical(m.params[i].ID())] = true
	}
	var missing []string
	for _, r := range Required {
		if !have[r] {
			missing = append(missing, r)
		}
	}
	for _, e := range extra {
		if !have[Canonical(e)] && !have[e] {
			have[e] = true
			if !isRequired(Canonical(e)) {
				missing = append(missing, e)
			}
		}
	}
	return missing
}

// Resolve maps free parameter names onto the IDs the model actually uses,
// so a configuration naming ELONG frees LAMBDA in a model written with the
// alias, and JUMP2 frees the second JUMP of the model.
func (m *Model) Resolve(names []string) []string {
	rev := make(map[string]string, len(aliases))
	for a, c := range aliases {
		rev[c] = a
	}
	ids := make([]string, len(names))
	for i, n := range names {
		switch {
		case m.Has(n):
			ids[i] = n
		case m.Has(Canonical(n)):
			ids[i] = Canonical(n)
		case m.Has(rev[n]):
			ids[i] = rev[n]
		default:
			ids[i] = n
			if id, ok := m.numbered(n); ok {
				ids[i] = id
			}
		}
	}
	return ids
}
