// Public domain.

package parfile_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuantar/timing-analysis/internal/parfile"
)

func TestMissingRequired(t *testing.T) {
	all := []string{"ELONG", "ELAT", "PMELONG", "PMELAT", "PX", "F0", "F1", "DM"}
	assert.Empty(t, parfile.MissingRequired(all))

	aliased := []string{"LAMBDA", "BETA", "PMLAMBDA", "PMBETA", "PX", "F0", "F1"}
	assert.Empty(t, parfile.MissingRequired(aliased))

	// each required name on its own is detected
	for i, r := range parfile.Required {
		free := append(append([]string{}, parfile.Required[:i]...), parfile.Required[i+1:]...)
		assert.Equal(t, []string{r}, parfile.MissingRequired(free), r)
	}
}

func TestMissingFromModel(t *testing.T) {
	m, err := parfile.Read(strings.NewReader(`PSR J1
LAMBDA 10 1
BETA 5 1
PMLAMBDA 1 1
PMBETA 1 1
PX 1 1
F0 100 1
`))
	require.NoError(t, err)
	assert.Equal(t, []string{"F1", "A1"}, m.MissingFromModel("PX", "A1"))
}

func TestResolve(t *testing.T) {
	m, err := parfile.Read(strings.NewReader("PSR J1\nLAMBDA 10 1\nELAT 5 1\nF0 1 1\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"LAMBDA", "ELAT", "F0", "F9"},
		m.Resolve([]string{"ELONG", "BETA", "F0", "F9"}))
}

func TestCompare(t *testing.T) {
	ref, err := parfile.Read(strings.NewReader(`PSR J1
F0 100.000000000000 1 0.000000000001
F1 -1e-15 1 1e-18
DM 10.0
DMX_0001 0.001 1 0.0001
EPHEM DE438
GLEP_1 55000
`))
	require.NoError(t, err)
	cur, err := parfile.Read(strings.NewReader(`PSR J1
F0 100.000000000005 1 0.000000000001
F1 -1.000001e-15 1 1e-18
DM 10.0
DMX_0001 0.002 1 0.0001
EPHEM DE440
A1 1.2
`))
	require.NoError(t, err)

	diffs := parfile.Compare(ref, cur, 3, true)
	byID := make(map[string]parfile.Diff)
	for _, d := range diffs {
		byID[d.ID] = d
	}
	require.Len(t, byID, 5)

	f0 := byID["F0"]
	assert.InDelta(t, 5, f0.Sigma, 1e-9)
	assert.True(t, f0.Significant)
	assert.Equal(t, "0.000000000005", f0.Delta.String())

	f1 := byID["F1"]
	assert.InDelta(t, 0.001, f1.Sigma, 1e-9)
	assert.False(t, f1.Significant)

	assert.True(t, byID["EPHEM"].Significant)
	assert.Equal(t, "", byID["A1"].Ref)
	assert.Equal(t, "", byID["GLEP_1"].Cur)
	_, hasDMX := byID["DMX_0001"]
	assert.False(t, hasDMX)
	_, hasDM := byID["DM"]
	assert.False(t, hasDM)
}
