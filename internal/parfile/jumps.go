// Public domain.

package parfile

import (
	"sort"
	"strconv"
	"strings"
)

// frontendJumped returns the frontends that already have a name -fe
// parameter.
func (m *Model) frontendJumped(name string) map[string]bool {
	have := make(map[string]bool)
	for i := range m.params {
		p := &m.params[i]
		if p.Name == name && p.Key == "-fe" && len(p.KeyValue) == 1 {
			have[p.KeyValue[0]] = true
		}
	}
	return have
}

func (m *Model) addFrontend(name string, fes []string) []string {
	var added []string
	for _, fe := range fes {
		p := Param{Name: name, Key: "-fe", KeyValue: []string{fe}, Value: "0", Fit: true, HasFit: true}
		m.Set(p)
		added = append(added, p.ID())
	}
	return added
}

func sortedMissing(fes []string, have map[string]bool) []string {
	set := make(map[string]bool, len(fes))
	var missing []string
	for _, fe := range fes {
		if fe != "" && !have[fe] && !set[fe] {
			set[fe] = true
			missing = append(missing, fe)
		}
	}
	sort.Strings(missing)
	return missing
}

// AddFrontendJumps adds free zero-valued "JUMP -fe" parameters so that
// all but one of the frontends fes carry a phase jump.  The last
// unjumped frontend in sort order is left as the reference.  It returns
// the IDs added, and allJumped true if every frontend already had a jump,
// which over-parameterizes the model.
func (m *Model) AddFrontendJumps(fes []string) (added []string, allJumped bool) {
	have := m.frontendJumped("JUMP")
	missing := sortedMissing(fes, have)
	if len(missing) == 0 {
		return nil, len(have) > 0 && len(fes) > 1
	}
	if len(fes) < 2 || len(missing) == 1 {
		return nil, false
	}
	return m.addFrontend("JUMP", missing[:len(missing)-1]), false
}

// AddFrontendDMJumps adds a free zero-valued "DMJUMP -fe" parameter for
// every frontend in fes that lacks one and returns the IDs added.
func (m *Model) AddFrontendDMJumps(fes []string) []string {
	return m.addFrontend("DMJUMP", sortedMissing(fes, m.frontendJumped("DMJUMP")))
}

// numbered resolves engine style numbered mask names, JUMP1 being the
// first JUMP in file order.
func (m *Model) numbered(n string) (string, bool) {
	name := strings.TrimRight(n, "0123456789")
	if name == n || !maskParams[name] {
		return "", false
	}
	k, err := strconv.Atoi(n[len(name):])
	if err != nil || k < 1 {
		return "", false
	}
	for i := range m.params {
		if m.params[i].Name == name && m.params[i].Key != "" {
			if k--; k == 0 {
				return m.params[i].ID(), true
			}
		}
	}
	return "", false
}
