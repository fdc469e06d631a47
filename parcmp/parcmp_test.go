// Public domain.

package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuantar/timing-analysis/internal/parfile"
)

func TestParseThreshold(t *testing.T) {
	th, prec, err := parseThreshold("")
	require.NoError(t, err)
	assert.Equal(t, 3., th)
	assert.Equal(t, 0, prec)

	th, prec, err = parseThreshold("2.50")
	require.NoError(t, err)
	assert.Equal(t, 2.5, th)
	assert.Equal(t, 2, prec)

	for _, s := range []string{"x", "0", "-1"} {
		_, _, err = parseThreshold(s)
		assert.Error(t, err, s)
	}
}

func readPar(t *testing.T, text string) *parfile.Model {
	t.Helper()
	m, err := parfile.Read(strings.NewReader(text))
	require.NoError(t, err)
	return m
}

func TestComparisonWrite(t *testing.T) {
	ref := readPar(t, "PSRJ J1\nF0 100.000000000000 1 0.000000000001\nF1 -1e-15 1 1e-18\n")
	cur := readPar(t, "PSRJ J1\nF0 100.000000000005 1 0.000000000001\nF1 -1.0000001e-15 1 1e-18\nPX 1.2 1 0.1\n")
	c := comparison{
		refName:   "ref.par",
		curName:   "cur.par",
		ref:       ref,
		cur:       cur,
		diffs:     parfile.Compare(ref, cur, 3, true),
		threshold: 3,
	}
	var buf bytes.Buffer
	c.write(&buf, false)
	out := buf.String()
	assert.Contains(t, out, "Threshold:  3σ")
	assert.Contains(t, out, "Significant: 2")
	assert.Contains(t, out, "position unknown")
	assert.Contains(t, out, "F0")
	assert.Contains(t, out, "PX")
	assert.NotContains(t, out, "F1 ")

	buf.Reset()
	c.write(&buf, true)
	assert.Contains(t, buf.String(), "F1 ")
}
