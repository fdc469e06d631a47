// Public domain.

package parfile_test

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuantar/timing-analysis/internal/parfile"
)

const samplePar = `# sample model
PSR                    J1909-3744
EPHEM                       DE440
CLK                  TT(BIPM2019)
UNITS                         TDB
ELONG       284.22086358818640120 1 0.00000001126585
ELAT        -15.15581781941305683 1 0.00000003081220
PMELONG     -9.5196              1 0.0012
PMELAT      -35.7799             1 0.0041
PX          0.8601               1 0.0132
F0          339.31568728824689431 1 2.3D-14
F1          -1.6148392896525D-15 1 1.1e-22
PEPOCH      55000.000000000000000
DM          10.391
JUMP -fe 430 -0.000012 1 0.000001
JUMP MJD 53000 54000 0.0000021 0
EFAC -f L-wide_PUPPI 1.05
C a tempo style comment
`

func readSample(t *testing.T) *parfile.Model {
	t.Helper()
	m, err := parfile.Read(strings.NewReader(samplePar))
	require.NoError(t, err)
	return m
}

func TestRead(t *testing.T) {
	m := readSample(t)
	assert.Equal(t, 16, m.Len())
	assert.Equal(t, "J1909-3744", m.Source())
	assert.Equal(t, "TDB", m.Timescale())

	f0, ok := m.Get("F0")
	require.True(t, ok)
	assert.Equal(t, "339.31568728824689431", f0.Value)
	assert.True(t, f0.Fit)
	unc, ok := f0.UncertaintyDecimal()
	require.True(t, ok)
	assert.Equal(t, "0.000000000000023", unc.String())

	f1, ok := m.Get("F1")
	require.True(t, ok)
	v, ok := f1.Float()
	require.True(t, ok)
	assert.InDelta(t, -1.6148392896525e-15, v, 1e-28)

	pe, ok := m.Get("PEPOCH")
	require.True(t, ok)
	assert.False(t, pe.HasFit)
	assert.False(t, pe.Fit)

	j, ok := m.Get("JUMP -fe 430")
	require.True(t, ok)
	assert.Equal(t, "-0.000012", j.Value)
	assert.True(t, j.Fit)

	jm, ok := m.Get("JUMP MJD 53000 54000")
	require.True(t, ok)
	assert.Equal(t, []string{"53000", "54000"}, jm.KeyValue)
	assert.False(t, jm.Fit)

	_, ok = m.Get("EFAC -f L-wide_PUPPI")
	assert.True(t, ok)

	clk, _ := m.Get("CLK")
	_, numeric := clk.Decimal()
	assert.False(t, numeric)
}

func TestFreeParams(t *testing.T) {
	m := readSample(t)
	assert.Equal(t, []string{"ELONG", "ELAT", "PMELONG", "PMELAT", "PX", "F0", "F1", "JUMP -fe 430"},
		m.FreeParams())

	missing := m.SetFree([]string{"F0", "F2"})
	assert.Equal(t, []string{"F2"}, missing)
	// unchanged on failure
	assert.Len(t, m.FreeParams(), 8)

	require.Nil(t, m.SetFree([]string{"F0", "DM"}))
	assert.Equal(t, []string{"F0", "DM"}, m.FreeParams())
	dm, _ := m.Get("DM")
	assert.True(t, dm.HasFit)
}

// Writing a model and reading it back reproduces every value exactly.
func TestRoundTrip(t *testing.T) {
	m := readSample(t)
	fn := filepath.Join(t.TempDir(), "out.par")
	var buf bytes.Buffer
	require.NoError(t, m.Write(&buf))
	require.NoError(t, os.WriteFile(fn, buf.Bytes(), 0o644))

	back, err := parfile.ReadFile(fn)
	require.NoError(t, err)
	require.Equal(t, m.Len(), back.Len())
	for _, p := range m.Params() {
		q, ok := back.Get(p.ID())
		require.True(t, ok, p.ID())
		assert.Equal(t, p.Value, q.Value, p.ID())
		assert.Equal(t, p.Fit, q.Fit, p.ID())
		assert.Equal(t, p.Uncertainty, q.Uncertainty, p.ID())
		if d, ok := p.Decimal(); ok {
			e, _ := q.Decimal()
			assert.True(t, d.Equal(e), p.ID())
		}
	}
}

func TestParseLineErrors(t *testing.T) {
	for _, line := range []string{
		"F0",
		"JUMP -fe 0.1",
		"JUMP MJD 53000 0.1",
	} {
		_, err := parfile.ParseLine(line)
		assert.Error(t, err, line)
	}
}

func TestReadEmpty(t *testing.T) {
	_, err := parfile.Read(strings.NewReader("# nothing\n\n"))
	assert.Error(t, err)
}

func TestTimescale(t *testing.T) {
	m, err := parfile.Read(strings.NewReader("PSR J0000+0000\nUNITS tcb\n"))
	require.NoError(t, err)
	assert.Equal(t, "TCB", m.Timescale())

	m, err = parfile.Read(strings.NewReader("PSR J0000+0000\n"))
	require.NoError(t, err)
	assert.Equal(t, "TDB", m.Timescale())
}

func TestCloneIsIndependent(t *testing.T) {
	m := readSample(t)
	c := m.Clone()
	p, _ := c.Get("F0")
	p.Value = "1.0"
	c.Set(p)
	require.True(t, c.Delete("DM"))

	orig, _ := m.Get("F0")
	assert.Equal(t, "339.31568728824689431", orig.Value)
	assert.True(t, m.Has("DM"))
	assert.False(t, c.Has("DM"))
}

func TestRename(t *testing.T) {
	m := readSample(t)
	require.True(t, m.Rename("ELONG", "LAMBDA"))
	assert.False(t, m.Has("ELONG"))
	p, ok := m.Get("LAMBDA")
	require.True(t, ok)
	assert.Equal(t, "284.22086358818640120", p.Value)
	assert.Equal(t, "LAMBDA", m.Params()[4].Name)
	assert.False(t, m.Rename("ELAT", "LAMBDA"))
}

func ExampleParam_ID() {
	p, _ := parfile.ParseLine("JUMP -fe 430 -0.000012 1 0.000001")
	fmt.Println(p.ID())
	fmt.Println(p.Value, p.Fit, p.Uncertainty)
	// Output:
	// JUMP -fe 430
	// -0.000012 true 0.000001
}
