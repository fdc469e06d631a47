// Public domain.

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuantar/timing-analysis/internal/tim"
)

const (
	nbTim = "FORMAT 1\na.ff 1400.0 55000.1 1.5 ao -fe L-wide -be PUPPI\n"
	wbTim = "FORMAT 1\nw.ff 1400.0 55000.1 0.5 ao -fe L-wide -be PUPPI -pp_dm 10.39 -pp_dme 0.001\n"
)

func timDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for fn, text := range map[string]string{"nb.tim": nbTim, "wb.tim": wbTim, "empty.tim": "FORMAT 1\n"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, fn), []byte(text), 0o644))
	}
	return dir
}

func TestDetectType(t *testing.T) {
	dir := timDir(t)
	for _, tc := range []struct {
		name string
		fns  []string
		want tim.Type
		warn string
	}{
		{"narrowband", []string{"nb.tim", "nb.tim"}, tim.Narrowband, ""},
		{"wideband", []string{"empty.tim", "wb.tim"}, tim.Wideband, ""},
		{"unreadable skipped", []string{"missing.tim", "wb.tim"}, tim.Wideband, "missing.tim"},
		{"nothing read", []string{"missing.tim", "empty.tim"}, tim.Narrowband, "no TOAs read"},
		{"absolute path", []string{filepath.Join(dir, "wb.tim")}, tim.Wideband, ""},
	} {
		t.Run(tc.name, func(t *testing.T) {
			var warn bytes.Buffer
			got, err := detectType(dir, tc.fns, &warn)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
			if tc.warn == "" {
				assert.Empty(t, warn.String())
			} else {
				assert.Contains(t, warn.String(), tc.warn)
			}
		})
	}
}

func TestDetectTypeMixed(t *testing.T) {
	var warn bytes.Buffer
	_, err := detectType(timDir(t), []string{"nb.tim", "wb.tim"}, &warn)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wb.tim holds wideband TOAs")
}
