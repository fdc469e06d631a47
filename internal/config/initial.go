// Public domain.

package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cuantar/timing-analysis/internal/parfile"
	"github.com/cuantar/timing-analysis/internal/tim"
)

// defaultFree is the usual free set for a binary millisecond pulsar.
var defaultFree = []string{
	"ELONG", "ELAT", "PMELONG", "PMELAT", "PX",
	"F0", "F1", "A1", "PB", "TASC", "EPS1", "EPS2", "JUMP1",
}

// DefaultFreeParams returns the starting free set written by WriteInitial.
func DefaultFreeParams(t tim.Type) []string {
	f := append([]string{}, defaultFree...)
	if t == tim.Wideband {
		f = append(f, "DMJUMP1", "DMJUMP2")
	}
	return f
}

// Free returns the parameters to fit in m.  With free-dmx set, every
// DMX_ parameter of m is added.  An empty result means the fit flags of m.
func (c *Config) Free(m *parfile.Model) []string {
	if len(c.FreeParams) == 0 {
		return nil
	}
	f := append([]string{}, c.FreeParams...)
	if c.FreeDMX {
		have := make(map[string]bool, len(f))
		for _, p := range f {
			have[p] = true
		}
		for _, id := range m.WithPrefix("DMX_") {
			if !have[id] {
				f = append(f, id)
			}
		}
	}
	return f
}

type initialExcision struct {
	SigmaThreshold float64 `yaml:"sigma-threshold"`
	MaxCandidates  int     `yaml:"max-candidates"`
	IgnoreASPDMs   bool    `yaml:"ignore-asp-dms"`
	BadTOA         []any   `yaml:"bad-toa"`
	BadRange       []any   `yaml:"bad-range"`
	BadEpoch       []any   `yaml:"bad-epoch"`
}

type initial struct {
	Source          string          `yaml:"source"`
	TOAType         string          `yaml:"toa-type"`
	ParDirectory    string          `yaml:"par-directory"`
	TimDirectory    string          `yaml:"tim-directory"`
	ParFile         string          `yaml:"par-file"`
	TimFiles        []string        `yaml:"tim-files"`
	Fitter          string          `yaml:"fitter"`
	FreeParams      []string        `yaml:"free-params"`
	FreeDMX         bool            `yaml:"free-dmx"`
	SNRCut          float64         `yaml:"snr-cut"`
	ConvertEcliptic bool            `yaml:"convert-ecliptic"`
	FEJumps         bool            `yaml:"fe-jumps"`
	Excision        initialExcision `yaml:"excision"`
	Changelog       []string        `yaml:"changelog"`
}

// WriteInitial writes a starting configuration for source and t into
// dir, named <source>.<nb|wb>.yaml, and returns its path.  An existing
// file is not replaced.
func WriteInitial(dir, source string, t tim.Type, parFile string, timFiles []string) (string, error) {
	fn := filepath.Join(dir, source+"."+t.Abbr()+".yaml")
	if _, err := os.Stat(fn); err == nil {
		return "", fmt.Errorf("%s already exists", fn)
	}
	in := initial{
		Source:          source,
		TOAType:         strings.ToUpper(t.Abbr()),
		ParDirectory:    "results",
		TimDirectory:    "tim",
		ParFile:         parFile,
		TimFiles:        timFiles,
		Fitter:          DefaultFitter(t),
		FreeParams:      DefaultFreeParams(t),
		FreeDMX:         true,
		SNRCut:          DefaultSNRCut(t),
		ConvertEcliptic: true,
		FEJumps:         true,
		Excision: initialExcision{
			SigmaThreshold: 5,
			IgnoreASPDMs:   true,
			BadTOA:         []any{},
			BadRange:       []any{},
			BadEpoch:       []any{},
		},
		Changelog: []string{},
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&in); err != nil {
		return "", err
	}
	if err := enc.Close(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return fn, os.WriteFile(fn, buf.Bytes(), 0o644)
}
