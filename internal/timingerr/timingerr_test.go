// Public domain.

package timingerr_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cuantar/timing-analysis/internal/timingerr"
)

func TestIsMatchesKind(t *testing.T) {
	err := timingerr.New(timingerr.ToaTypeMismatch, "file %s is wideband", "a.tim")
	wrapped := fmt.Errorf("loading: %w", err)

	assert.True(t, errors.Is(wrapped, timingerr.ErrToaTypeMismatch))
	assert.False(t, errors.Is(wrapped, timingerr.ErrFitDivergence))
	assert.Equal(t, timingerr.ToaTypeMismatch, timingerr.KindOf(wrapped))
	assert.Equal(t, "ToaTypeMismatch: file a.tim is wideband", err.Error())
}

func TestWrap(t *testing.T) {
	assert.Nil(t, timingerr.Wrap(timingerr.FitDivergence, nil, "x"))

	cause := errors.New("chi2 increased")
	err := timingerr.Wrap(timingerr.FitDivergence, cause, "iteration 3")
	assert.True(t, errors.Is(err, cause))
	assert.True(t, errors.Is(err, timingerr.ErrFitDivergence))
	assert.Equal(t, "FitDivergence: iteration 3: chi2 increased", err.Error())
}

func TestKindOfPlainError(t *testing.T) {
	assert.Equal(t, timingerr.Unknown, timingerr.KindOf(errors.New("x")))
	assert.Equal(t, timingerr.Unknown, timingerr.KindOf(nil))
}

func TestParseKind(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want timingerr.Kind
	}{
		{"FitDivergence", timingerr.FitDivergence},
		{"fit-divergence", timingerr.FitDivergence},
		{"unsupported_timescale", timingerr.UnsupportedTimescale},
		{"ModelIncompatible", timingerr.ModelIncompatible},
		{"nonsense", timingerr.Unknown},
	} {
		assert.Equal(t, tc.want, timingerr.ParseKind(tc.in), tc.in)
	}
}

func TestRecoverable(t *testing.T) {
	assert.True(t, timingerr.FitDivergence.Recoverable())
	assert.False(t, timingerr.UnsupportedTimescale.Recoverable())
	assert.False(t, timingerr.InsufficientParameterSet.Recoverable())
}
