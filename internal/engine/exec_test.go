// Public domain.

package engine_test

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuantar/timing-analysis/internal/engine"
	"github.com/cuantar/timing-analysis/internal/engine/enginetest"
	"github.com/cuantar/timing-analysis/internal/tim"
	"github.com/cuantar/timing-analysis/internal/timingerr"
)

// fakeFitter answers with residual i µs for the i-th TOA and updates F0.
const fakeFitter = `#!/bin/sh
while [ $# -gt 0 ]; do
  case "$1" in
    --out) out="$2"; shift;;
    --tim) timf="$2"; shift;;
    --free) free="$2"; shift;;
  esac
  shift
done
echo "fitting $free"
n=$(grep -vc '^FORMAT' "$timf")
{
  printf '{"converged":true,"chi2":%d,"dof":%d,' "$n" "$n"
  printf '"params":[{"name":"F0","value":"339.5","uncertainty":"1e-12","fit":true},'
  printf '{"name":"JUMP -fe 430","value":"0.1","fit":false}],'
  printf '"residuals":['
  i=0
  while [ $i -lt $n ]; do
    if [ $i -gt 0 ]; then printf ','; fi
    printf '{"index":%d,"residual_us":%d,"error_us":2}' $i $i
    i=$((i+1))
  done
  printf '],"warnings":["ok"]}'
} > "$out"
`

const failingFitter = `#!/bin/sh
while [ $# -gt 0 ]; do
  case "$1" in
    --out) out="$2"; shift;;
  esac
  shift
done
printf '{"error":{"kind":"UnsupportedTimescale","message":"UNITS TCB"}}' > "$out"
exit 1
`

const crashingFitter = `#!/bin/sh
echo boom >&2
exit 3
`

func script(t *testing.T, text string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("needs /bin/sh")
	}
	fn := filepath.Join(t.TempDir(), "fitter.sh")
	require.NoError(t, os.WriteFile(fn, []byte(text), 0o755))
	return fn
}

func request() *engine.FitRequest {
	return &engine.FitRequest{
		Model:  enginetest.Model(),
		TOAs:   enginetest.TOAs(4, 55000),
		Type:   tim.Narrowband,
		Fitter: "GLSFitter",
	}
}

func TestExecEngine(t *testing.T) {
	e := &engine.ExecEngine{Command: script(t, fakeFitter)}
	req := request()
	res, err := e.Fit(context.Background(), req)
	require.NoError(t, err)

	assert.True(t, res.Converged)
	assert.Equal(t, 4.0, res.Chi2)
	assert.Equal(t, 1.0, res.ReducedChi2())
	assert.Equal(t, []string{"ok"}, res.Warnings)
	require.Len(t, res.Residuals, 4)
	for i, r := range res.Residuals {
		assert.Equal(t, req.TOAs[i].ID(), r.ID)
		assert.Equal(t, float64(i), r.Value)
		assert.Equal(t, float64(i)/2, r.Sigma())
	}

	f0, ok := res.Model.Get("F0")
	require.True(t, ok)
	assert.Equal(t, "339.5", f0.Value)
	assert.Equal(t, "1e-12", f0.Uncertainty)
	j, ok := res.Model.Get("JUMP -fe 430")
	require.True(t, ok)
	assert.Equal(t, "0.1", j.Value)

	// the request model is not modified
	orig, _ := req.Model.Get("F0")
	assert.Equal(t, "339.31568728824689431", orig.Value)
	assert.False(t, req.Model.Has("JUMP -fe 430"))
}

func TestExecEngineError(t *testing.T) {
	e := &engine.ExecEngine{Command: script(t, failingFitter)}
	_, err := e.Fit(context.Background(), request())
	require.Error(t, err)
	assert.True(t, errors.Is(err, timingerr.ErrUnsupportedTimescale))
	assert.Contains(t, err.Error(), "UNITS TCB")
}

func TestExecEngineCrash(t *testing.T) {
	e := &engine.ExecEngine{Command: script(t, crashingFitter)}
	_, err := e.Fit(context.Background(), request())
	require.Error(t, err)
	assert.Equal(t, timingerr.Unknown, timingerr.KindOf(err))
}

func TestExecEngineUnconfigured(t *testing.T) {
	_, err := (&engine.ExecEngine{}).Fit(context.Background(), request())
	assert.Error(t, err)
}

func TestSigma(t *testing.T) {
	r := engine.Residual{Value: -3, Err: 1.5}
	assert.Equal(t, -2.0, r.Sigma())
	r.Err = 0
	assert.True(t, math.IsInf(r.Sigma(), 1))
	assert.True(t, math.IsNaN((&engine.FitResult{}).ReducedChi2()))
}
