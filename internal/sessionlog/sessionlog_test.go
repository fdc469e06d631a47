// Public domain.

package sessionlog_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuantar/timing-analysis/internal/engine/enginetest"
	"github.com/cuantar/timing-analysis/internal/excise"
	"github.com/cuantar/timing-analysis/internal/fitloop"
	"github.com/cuantar/timing-analysis/internal/sessionlog"
	"github.com/cuantar/timing-analysis/internal/tim"
)

func TestRoundTrip(t *testing.T) {
	toas := enginetest.TOAs(12, 55000)
	e := &enginetest.Engine{Sigma: map[tim.ObsID]float64{toas[3].ID(): 9}}
	s, err := fitloop.New(enginetest.Model(), toas, e, fitloop.Options{
		Type:   tim.Narrowband,
		Policy: excise.Policy{SigmaThreshold: 5},
	})
	require.NoError(t, err)
	started := time.Now()
	require.NoError(t, s.Run(context.Background()))

	rec := sessionlog.FromSession(s, "J1909-3744", "nb", started)
	fn := filepath.Join(t.TempDir(), "J1909-3744"+sessionlog.Ext)
	require.NoError(t, sessionlog.WriteFile(fn, rec))

	back, err := sessionlog.ReadFile(fn)
	require.NoError(t, err)
	assert.Equal(t, s.ID().String(), back.SessionID)
	assert.Equal(t, "Converged", back.State)
	assert.Equal(t, 2, back.Iterations)
	assert.Equal(t, 12, back.TOAs)
	assert.Equal(t, []sessionlog.Excision{{ID: string(toas[3].ID()), Reason: "outlier"}}, back.Excised)
	require.Len(t, back.Steps, 3)
	assert.Equal(t, "fit", back.Steps[0].Kind)
	assert.True(t, back.Steps[0].HasStats)
	assert.NotEmpty(t, back.Steps[0].Model)
	assert.Equal(t, "excise", back.Steps[1].Kind)
	assert.Equal(t, rec.FinalModel, back.FinalModel)
	assert.True(t, rec.Started.Equal(back.Started))
	assert.Empty(t, back.Error)
}

func TestReadFileRejectsOther(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "junk")
	require.NoError(t, os.WriteFile(fn, []byte("not zstd"), 0o644))
	_, err := sessionlog.ReadFile(fn)
	assert.Error(t, err)
}
