// Public domain.

package parstore_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuantar/timing-analysis/internal/engine/enginetest"
	"github.com/cuantar/timing-analysis/internal/parfile"
	"github.com/cuantar/timing-analysis/internal/parstore"
	"github.com/cuantar/timing-analysis/internal/tim"
)

func store(t *testing.T) *parstore.Store {
	dir := t.TempDir()
	day := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	return &parstore.Store{
		ResultsDir: filepath.Join(dir, "results"),
		ArchiveDir: filepath.Join(dir, "results", "archive"),
		Now:        func() time.Time { return day },
	}
}

func TestPublish(t *testing.T) {
	s := store(t)
	m := enginetest.Model()

	p, err := s.Publish(m, "J1909-3744", tim.Narrowband)
	require.NoError(t, err)
	assert.Equal(t, "J1909-3744_PINT_20261018.nb.par", filepath.Base(p.Path))
	assert.False(t, p.Unchanged)
	assert.Empty(t, p.Archived)

	back, err := parfile.ReadFile(p.Path)
	require.NoError(t, err)
	assert.Equal(t, m.String(), back.String())

	// same content: no new file
	again, err := s.Publish(m.Clone(), "J1909-3744", tim.Narrowband)
	require.NoError(t, err)
	assert.True(t, again.Unchanged)
	assert.Equal(t, p.Path, again.Path)

	// changed content on the same day: suffixed name, old one archived
	f0, _ := m.Get("F0")
	f0.Value = "339.3156872882469"
	m.Set(f0)
	next, err := s.Publish(m, "J1909-3744", tim.Narrowband)
	require.NoError(t, err)
	assert.Equal(t, "J1909-3744_PINT_20261018_1.nb.par", filepath.Base(next.Path))
	require.Len(t, next.Archived, 1)
	assert.Equal(t, filepath.Join(s.ArchiveDir, "J1909-3744_PINT_20261018.nb.par"), next.Archived[0])
	_, err = os.Stat(p.Path)
	assert.True(t, os.IsNotExist(err))

	active, err := s.Active("J1909-3744", tim.Narrowband)
	require.NoError(t, err)
	assert.Equal(t, []string{next.Path}, active)

	// a third version may not reuse the archived name
	f0.Value = "339.3"
	m.Set(f0)
	third, err := s.Publish(m, "J1909-3744", tim.Narrowband)
	require.NoError(t, err)
	assert.Equal(t, "J1909-3744_PINT_20261018_2.nb.par", filepath.Base(third.Path))
}

// Without an archive directory a second version is refused before
// anything is written, leaving a single active model.
func TestPublishNoArchive(t *testing.T) {
	s := store(t)
	s.ArchiveDir = ""
	m := enginetest.Model()
	first, err := s.Publish(m, "J1909-3744", tim.Narrowband)
	require.NoError(t, err)

	f0, _ := m.Get("F0")
	f0.Value = "339.3"
	m.Set(f0)
	_, err = s.Publish(m, "J1909-3744", tim.Narrowband)
	require.Error(t, err)
	active, err := s.Active("J1909-3744", tim.Narrowband)
	require.NoError(t, err)
	assert.Equal(t, []string{first.Path}, active)
}

// An active file with other content is never reported unchanged.
func TestPublishComparesContent(t *testing.T) {
	s := store(t)
	m := enginetest.Model()
	p, err := s.Publish(m, "J1909-3744", tim.Narrowband)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(p.Path, []byte("PSRJ J1909-3744\n"), 0o644))

	again, err := s.Publish(m, "J1909-3744", tim.Narrowband)
	require.NoError(t, err)
	assert.False(t, again.Unchanged)
	assert.NotEqual(t, p.Path, again.Path)
	assert.Len(t, again.Archived, 1)
}

func TestPublishTypesSeparate(t *testing.T) {
	s := store(t)
	nb, err := s.Publish(enginetest.Model(), "J1909-3744", tim.Narrowband)
	require.NoError(t, err)
	wb, err := s.Publish(enginetest.Model(), "J1909-3744", tim.Wideband)
	require.NoError(t, err)
	assert.False(t, wb.Unchanged)
	assert.Empty(t, wb.Archived)
	assert.NotEqual(t, nb.Path, wb.Path)
}

func TestWriteExcise(t *testing.T) {
	s := store(t)
	toas := enginetest.TOAs(5, 55000)
	cuts := map[tim.ObsID]string{toas[2].ID(): "outlier"}
	fn, err := s.WriteExcise(toas, cuts, "J1909-3744")
	require.NoError(t, err)
	assert.Equal(t, "J1909-3744_PINT_20261018_excise.tim", filepath.Base(fn))

	back, err := tim.ReadFile(fn)
	require.NoError(t, err)
	require.Len(t, back, 5)
	c, ok := back[2].Flag("cut")
	require.True(t, ok)
	assert.Equal(t, "outlier", c)

	fn2, err := s.WriteExcise(toas, cuts, "J1909-3744")
	require.NoError(t, err)
	assert.Equal(t, "J1909-3744_PINT_20261018_1_excise.tim", filepath.Base(fn2))
}
