// Public domain.

package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuantar/timing-analysis/internal/config"
	"github.com/cuantar/timing-analysis/internal/engine/enginetest"
	"github.com/cuantar/timing-analysis/internal/fitloop"
	"github.com/cuantar/timing-analysis/internal/parfile"
	"github.com/cuantar/timing-analysis/internal/tim"
)

const sample = `source: J1909-3744
toa-type: NB
par-file: J1909-3744.par
tim-files: [J1909-3744.Rcvr1_2.GUPPI.tim, J1909-3744.Rcvr_800.GUPPI.tim]
free-params: [ELONG, ELAT, PMELONG, PMELAT, PX, F0, F1]
snr-cut: 12
excision:
  sigma-threshold: 5
  max-candidates: 3
  mjd-start: 53000
  bad-toa:
    - [guppi_55000_J1909-3744_0001.ff, 7, 0]
    - [guppi_55001_J1909-3744_0002.ff, ~, 1]
  bad-range:
    - [54000, 54100]
    - [55000, 55010, PUPPI]
  bad-epoch: [guppi_55500_J1909-3744_0003]
correction:
  freeze: [PX]
  trim-fraction: 0.1
changelog:
  - "2026-10-18 someone@example.org INIT: initial configuration"
`

func writeConfig(t *testing.T, text string) string {
	t.Helper()
	fn := filepath.Join(t.TempDir(), "J1909-3744.nb.yaml")
	require.NoError(t, os.WriteFile(fn, []byte(text), 0o644))
	return fn
}

func TestLoad(t *testing.T) {
	fn := writeConfig(t, sample)
	c, err := config.Load(fn)
	require.NoError(t, err)

	assert.Equal(t, "J1909-3744", c.Source)
	assert.Equal(t, tim.Narrowband, c.Type)
	assert.Equal(t, "GLSFitter", c.Fitter)
	assert.True(t, c.FreeDMX)
	assert.True(t, c.FEJumps)
	assert.Nil(t, c.Excision.EpochDrop)
	assert.Equal(t, "info", c.LogLevel)
	assert.Equal(t, filepath.Join(filepath.Dir(fn), "results", "J1909-3744.par"), c.ParPath())
	require.Len(t, c.TimPaths(), 2)
	assert.Equal(t, filepath.Join(filepath.Dir(fn), "tim", "J1909-3744.Rcvr_800.GUPPI.tim"), c.TimPaths()[1])
	assert.Empty(t, c.ComparePath())

	p := c.Policy()
	assert.Equal(t, 5., p.SigmaThreshold)
	assert.Equal(t, 3, p.MaxCandidates)
	require.NotNil(t, p.SNRCut)
	assert.Equal(t, 12., *p.SNRCut)
	assert.True(t, p.IgnoreASPDMs)

	ig := c.Ignore()
	require.NotNil(t, ig.MJDStart)
	assert.Equal(t, 53000., *ig.MJDStart)
	assert.Nil(t, ig.MJDEnd)
	require.Len(t, ig.BadTOAs, 2)
	assert.Equal(t, 7, ig.BadTOAs[0].Chan)
	assert.Equal(t, -1, ig.BadTOAs[1].Chan)
	assert.Equal(t, 1, ig.BadTOAs[1].Subint)
	require.Len(t, ig.BadRanges, 2)
	assert.Equal(t, "", ig.BadRanges[0].Backend)
	assert.Equal(t, "PUPPI", ig.BadRanges[1].Backend)
	assert.Equal(t, 55010., ig.BadRanges[1].End)
	assert.Equal(t, []string{"guppi_55500_J1909-3744_0003"}, ig.BadEpochs)

	ch, ok := c.Strategy().(fitloop.Chain)
	require.True(t, ok)
	require.Len(t, ch, 2)
	assert.Equal(t, fitloop.FreezeParams{Params: []string{"PX"}}, ch[0])
	assert.Equal(t, fitloop.TrimWindow{Fraction: 0.1}, ch[1])

	// snr-cut 12 is above the narrowband recommendation
	adv := c.Advisories()
	require.Len(t, adv, 1)
	assert.Contains(t, adv[0], "snr-cut")
}

func TestLoadAliases(t *testing.T) {
	fn := writeConfig(t, `source: J0030+0451
toa-type: wideband
timing-model: /data/J0030+0451.par
toas: [J0030+0451.tim]
excision:
  sigma-threshold: 4
`)
	c, err := config.Load(fn)
	require.NoError(t, err)
	assert.Equal(t, tim.Wideband, c.Type)
	assert.Equal(t, "WidebandTOAFitter", c.Fitter)
	assert.Equal(t, "/data/J0030+0451.par", c.ParPath())
	assert.Equal(t, []string{"J0030+0451.tim"}, c.TimFiles)
	assert.Nil(t, c.Strategy())
}

func TestLoadEnvOverride(t *testing.T) {
	fn := writeConfig(t, sample)
	t.Setenv("TIMING_EXCISION_SIGMA_THRESHOLD", "3.5")
	t.Setenv("TIMING_LOG_LEVEL", "debug")
	c, err := config.Load(fn)
	require.NoError(t, err)
	assert.Equal(t, 3.5, c.Policy().SigmaThreshold)
	assert.Equal(t, "debug", c.LogLevel)
}

func TestLoadDotEnv(t *testing.T) {
	fn := writeConfig(t, sample)
	env := filepath.Join(filepath.Dir(fn), ".env")
	require.NoError(t, os.WriteFile(env, []byte("TIMING_FITTER=DownhillGLSFitter\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("TIMING_FITTER") })
	c, err := config.Load(fn)
	require.NoError(t, err)
	assert.Equal(t, "DownhillGLSFitter", c.Fitter)
}

func TestLoadInvalid(t *testing.T) {
	for _, tc := range []struct {
		name, text, key string
	}{
		{"no source", "par-file: a.par\ntim-files: [a.tim]\ntoa-type: nb\nexcision: {sigma-threshold: 5}\n", "source"},
		{"no threshold", "source: X\npar-file: a.par\ntim-files: [a.tim]\ntoa-type: nb\n", "excision.sigma-threshold"},
		{"bad type", "source: X\npar-file: a.par\ntim-files: [a.tim]\ntoa-type: both\nexcision: {sigma-threshold: 5}\n", "toa-type"},
		{"negative threshold", "source: X\npar-file: a.par\ntim-files: [a.tim]\ntoa-type: nb\nexcision: {sigma-threshold: -1}\n", "excision"},
		{"short bad-toa", "source: X\npar-file: a.par\ntim-files: [a.tim]\ntoa-type: nb\nexcision: {sigma-threshold: 5, bad-toa: [[a.ff, 1]]}\n", "excision.bad-toa"},
		{"mjd window", "source: X\npar-file: a.par\ntim-files: [a.tim]\ntoa-type: nb\nexcision: {sigma-threshold: 5, mjd-start: 56000, mjd-end: 55000}\n", "excision.mjd-start"},
		{"misspelled key", "source: X\npar-file: a.par\ntim-files: [a.tim]\ntoa-type: nb\nexcision:\n  sigma-threshold: 5\n  bad-epochs: [x]\n", "excision.bad-epochs"},
		{"epoch drop", "source: X\npar-file: a.par\ntim-files: [a.tim]\ntoa-type: nb\nexcision: {sigma-threshold: 5, epoch-drop-threshold: 2}\n", "excision.epoch-drop-threshold"},
		{"trim", "source: X\npar-file: a.par\ntim-files: [a.tim]\ntoa-type: nb\nexcision: {sigma-threshold: 5}\ncorrection: {trim-fraction: 1.5}\n", "correction.trim-fraction"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := config.Load(writeConfig(t, tc.text))
			require.Error(t, err)
			var ve *config.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tc.key, ve.Key)
		})
	}
}

func TestLoadUnsetKeys(t *testing.T) {
	c, err := config.Load(writeConfig(t, `source: X
par-file: a.par
tim-files: [a.tim]
toa-type: nb
excision:
  sigma-threshold: 5
  bad-toa:
  mjd-end:
  bad-epoch: [x]
`))
	require.NoError(t, err)
	assert.Equal(t, []string{"bad-toa", "mjd-end"}, c.UnsetKeys())
	assert.Equal(t, []string{"bad-epoch"}, c.Ignore().InUse())
}

func TestFreeParamsDMX(t *testing.T) {
	m := enginetest.Model()
	for _, l := range []string{"DMX_0001 0.001 1", "DMX_0002 -0.002 1", "DMXR1_0001 55000"} {
		p, err := parfile.ParseLine(l)
		require.NoError(t, err)
		m.Set(p)
	}
	c := &config.Config{FreeParams: []string{"F0", "F1"}, FreeDMX: true}
	assert.Equal(t, []string{"F0", "F1", "DMX_0001", "DMX_0002"}, c.Free(m))

	c.FreeDMX = false
	assert.Equal(t, []string{"F0", "F1"}, c.Free(m))

	c.FreeParams = nil
	assert.Nil(t, c.Free(m))
}

func TestWriteInitial(t *testing.T) {
	dir := t.TempDir()
	fn, err := config.WriteInitial(dir, "J1909-3744", tim.Wideband, "J1909-3744.par", []string{"J1909-3744.wb.tim"})
	require.NoError(t, err)
	assert.Equal(t, "J1909-3744.wb.yaml", filepath.Base(fn))

	c, err := config.Load(fn)
	require.NoError(t, err)
	assert.Equal(t, tim.Wideband, c.Type)
	assert.Equal(t, "WidebandTOAFitter", c.Fitter)
	assert.Contains(t, c.FreeParams, "DMJUMP2")
	require.NotNil(t, c.SNRCut)
	assert.Equal(t, 25., *c.SNRCut)
	assert.True(t, c.ConvertEcliptic)

	_, err = config.WriteInitial(dir, "J1909-3744", tim.Wideband, "J1909-3744.par", nil)
	assert.Error(t, err)
}
