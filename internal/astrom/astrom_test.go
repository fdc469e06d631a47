// Public domain.

package astrom_test

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuantar/timing-analysis/internal/astrom"
	"github.com/cuantar/timing-analysis/internal/parfile"
)

const eqPar = `PSRJ J1909-3744
RAJ 19:09:47.4346749 1 0.0000009
DECJ -37:44:14.46674 1 0.00004
PMRA -9.512 1 0.002
PMDEC -35.776 1 0.006
PX 0.86 1 0.013
F0 339.315687288 1 2e-14
F1 -1.6148e-15 1 1e-22
`

func TestParseRADec(t *testing.T) {
	ra, err := astrom.ParseRA("19:09:47.4346749")
	require.NoError(t, err)
	assert.InDelta(t, 287.4476444787, ra.Deg(), 1e-9)

	dec, err := astrom.ParseDec("-37:44:14.46674")
	require.NoError(t, err)
	assert.InDelta(t, -37.737351872, dec.Deg(), 1e-9)

	dec, err = astrom.ParseDec("-00:30")
	require.NoError(t, err)
	assert.InDelta(t, -.5, dec.Deg(), 1e-12)

	for _, s := range []string{"x:00:00", "01:61:00", "1:2:3:4"} {
		_, err := astrom.ParseDec(s)
		assert.Error(t, err, s)
	}
	_, err = astrom.ParseRA("-01:00:00")
	assert.Error(t, err)
}

func TestToEcliptic(t *testing.T) {
	m, err := parfile.Read(strings.NewReader(eqPar))
	require.NoError(t, err)
	orig, err := astrom.Equatorial(m)
	require.NoError(t, err)

	converted, err := astrom.ToEcliptic(m)
	require.NoError(t, err)
	require.True(t, converted)

	assert.False(t, m.Has("RAJ"))
	assert.Empty(t, m.MissingFromModel())
	assert.Equal(t, []string{"ELONG", "ELAT", "PMELONG", "PMELAT", "PX", "F0", "F1"}, m.FreeParams())
	ecl, _ := m.Get("ECL")
	assert.Equal(t, astrom.EclFrame, ecl.Value)

	lon, _ := m.Get("ELONG")
	v, _ := lon.Float()
	assert.InDelta(t, 284.22086, v, 1e-4)
	lat, _ := m.Get("ELAT")
	v, _ = lat.Float()
	assert.InDelta(t, -15.1558, v, 1e-3)

	// rotation preserves the total proper motion
	p, err := astrom.Ecliptic(m)
	require.NoError(t, err)
	pmEq := math.Hypot(-9.512, -35.776)
	pmEcl := math.Hypot(p.PMLon.Sec(), p.PMLat.Sec()) * 1e3
	assert.InDelta(t, pmEq, pmEcl, 1e-3)

	// and converting back gives the original position
	assert.InDelta(t, orig.RA.Rad(), p.RA.Rad(), 1e-9)
	assert.InDelta(t, orig.Dec.Rad(), p.Dec.Rad(), 1e-9)

	again, err := astrom.ToEcliptic(m)
	require.NoError(t, err)
	assert.False(t, again)
}

func TestDescribe(t *testing.T) {
	m, err := parfile.Read(strings.NewReader(eqPar))
	require.NoError(t, err)
	d := astrom.Describe(m)
	assert.Contains(t, d, "λ 284.22086")

	m, err = parfile.Read(strings.NewReader("PSRJ J0\nF0 1\n"))
	require.NoError(t, err)
	assert.Contains(t, astrom.Describe(m), "position unknown")
}
