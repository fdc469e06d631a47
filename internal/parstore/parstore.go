// Public domain.

// Package parstore publishes timing models and excision tim files.
//
// Published files are never edited or overwritten.  A new model is written
// under a fresh name, by temp file and rename, and only then are the
// previously active models of the same pulsar and TOA type moved to the
// archive directory.
package parstore

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/sirupsen/logrus"

	"github.com/cuantar/timing-analysis/internal/parfile"
	"github.com/cuantar/timing-analysis/internal/tim"
)

// Store is a results directory with its archive.
type Store struct {
	ResultsDir string
	ArchiveDir string
	Now        func() time.Time // nil for time.Now
	Log        logrus.FieldLogger
}

// Published describes the outcome of Publish.
type Published struct {
	Path      string   // the active model file
	Archived  []string // files moved to the archive, new paths
	Unchanged bool     // an active file already held the same model
}

func (s *Store) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Store) logf(format string, args ...interface{}) {
	if s.Log != nil {
		s.Log.Infof(format, args...)
	}
}

// Active returns the active model files for source and typ, sorted.
func (s *Store) Active(source string, typ tim.Type) ([]string, error) {
	pat := filepath.Join(s.ResultsDir, globEscape(source)+"_PINT_*."+typ.Abbr()+".par")
	m, err := filepath.Glob(pat)
	if err != nil {
		return nil, err
	}
	sort.Strings(m)
	return m, nil
}

func globEscape(s string) string {
	var b bytes.Buffer
	for _, r := range s {
		switch r {
		case '*', '?', '[', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Publish writes m as the active model for source and typ.  If an active
// file holds byte-identical content, nothing is written.
func (s *Store) Publish(m *parfile.Model, source string, typ tim.Type) (*Published, error) {
	var buf bytes.Buffer
	if err := m.Write(&buf); err != nil {
		return nil, err
	}
	content := buf.Bytes()
	active, err := s.Active(source, typ)
	if err != nil {
		return nil, err
	}
	sum := xxhash.Sum64(content)
	for _, fn := range active {
		b, err := os.ReadFile(fn)
		if err != nil {
			return nil, err
		}
		if xxhash.Sum64(b) == sum && bytes.Equal(b, content) {
			s.logf("model unchanged, %s remains active", filepath.Base(fn))
			return &Published{Path: fn, Unchanged: true}, nil
		}
	}
	for _, old := range active {
		if err := s.canArchive(old); err != nil {
			return nil, err
		}
	}

	if err := os.MkdirAll(s.ResultsDir, 0o755); err != nil {
		return nil, err
	}
	stem := fmt.Sprintf("%s_PINT_%s", source, s.now().Format("20060102"))
	fn, err := s.freeName(stem, "."+typ.Abbr()+".par")
	if err != nil {
		return nil, err
	}
	if err := writeAtomic(fn, content); err != nil {
		return nil, err
	}
	p := &Published{Path: fn}
	s.logf("wrote %s", filepath.Base(fn))

	for _, old := range active {
		to, err := s.archive(old)
		if err != nil {
			return p, err
		}
		p.Archived = append(p.Archived, to)
	}
	return p, nil
}

// WriteExcise writes all toas to a new tim file with -cut flags on the
// excised ones and returns its path.
func (s *Store) WriteExcise(toas []tim.TOA, cuts map[tim.ObsID]string, source string) (string, error) {
	var buf bytes.Buffer
	if err := tim.Write(&buf, toas, cuts); err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.ResultsDir, 0o755); err != nil {
		return "", err
	}
	stem := fmt.Sprintf("%s_PINT_%s", source, s.now().Format("20060102"))
	fn, err := s.freeName(stem, "_excise.tim")
	if err != nil {
		return "", err
	}
	if err := writeAtomic(fn, buf.Bytes()); err != nil {
		return "", err
	}
	s.logf("wrote %s, %d of %d TOAs cut", filepath.Base(fn), len(cuts), len(toas))
	return fn, nil
}

// freeName returns the first of stem+ext, stem_1+ext, ... that exists in
// neither the results nor the archive directory.
func (s *Store) freeName(stem, ext string) (string, error) {
	for n := 0; n < 1000; n++ {
		name := stem
		if n > 0 {
			name += "_" + strconv.Itoa(n)
		}
		name += ext
		if !exists(filepath.Join(s.ResultsDir, name)) &&
			(s.ArchiveDir == "" || !exists(filepath.Join(s.ArchiveDir, name))) {
			return filepath.Join(s.ResultsDir, name), nil
		}
	}
	return "", fmt.Errorf("no free file name for %s%s", stem, ext)
}

// canArchive reports why fn could not be moved to the archive.
func (s *Store) canArchive(fn string) error {
	if s.ArchiveDir == "" {
		return fmt.Errorf("no archive directory configured for %s", fn)
	}
	if exists(filepath.Join(s.ArchiveDir, filepath.Base(fn))) {
		return fmt.Errorf("archive already holds %s", filepath.Base(fn))
	}
	return nil
}

func (s *Store) archive(fn string) (string, error) {
	if err := s.canArchive(fn); err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.ArchiveDir, 0o755); err != nil {
		return "", err
	}
	to := filepath.Join(s.ArchiveDir, filepath.Base(fn))
	if err := os.Rename(fn, to); err != nil {
		return "", err
	}
	s.logf("archived %s", filepath.Base(fn))
	return to, nil
}

func exists(fn string) bool {
	_, err := os.Lstat(fn)
	return err == nil
}

// writeAtomic writes b to a temp file beside fn and renames it into place.
func writeAtomic(fn string, b []byte) error {
	f, err := os.CreateTemp(filepath.Dir(fn), "."+filepath.Base(fn)+".tmp*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	if _, err = f.Write(b); err == nil {
		err = f.Sync()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Chmod(tmp, 0o644)
	}
	if err == nil {
		err = os.Rename(tmp, fn)
	}
	if err != nil {
		os.Remove(tmp)
	}
	return err
}
