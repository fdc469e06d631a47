// Public domain.

// Package config loads the per-pulsar timing configuration.
//
// A configuration is a YAML file, one per pulsar and TOA type, naming the
// input model and TOAs, the parameters to fit and the excision rules.
// Values may be overridden by environment variables prefixed TIMING_, with
// dashes and dots replaced by underscores, for example
// TIMING_EXCISION_SIGMA_THRESHOLD.  A .env file beside the configuration
// is loaded into the environment first.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/cuantar/timing-analysis/internal/excise"
	"github.com/cuantar/timing-analysis/internal/fitloop"
	"github.com/cuantar/timing-analysis/internal/tim"
)

// EnvPrefix prefixes environment overrides.
const EnvPrefix = "TIMING"

// Config is a loaded configuration.
type Config struct {
	Source          string           `mapstructure:"source"`
	ParDirectory    string           `mapstructure:"par-directory"`
	TimDirectory    string           `mapstructure:"tim-directory"`
	ParFile         string           `mapstructure:"par-file"`
	TimFiles        []string         `mapstructure:"tim-files"`
	TOAType         string           `mapstructure:"toa-type"`
	FreeParams      []string         `mapstructure:"free-params"`
	FreeDMX         bool             `mapstructure:"free-dmx"`
	Fitter          string           `mapstructure:"fitter"`
	Ephem           string           `mapstructure:"ephem"`
	BIPM            string           `mapstructure:"bipm"`
	SNRCut          *float64         `mapstructure:"snr-cut"`
	CompareModel    string           `mapstructure:"compare-model"`
	ConvertEcliptic bool             `mapstructure:"convert-ecliptic"`
	FEJumps         bool             `mapstructure:"fe-jumps"`
	MaxIterations   int              `mapstructure:"max-iterations"`
	MaxCorrections  int              `mapstructure:"max-corrections"`
	Correction      CorrectionConfig `mapstructure:"correction"`
	SitesFile       string           `mapstructure:"sites-file"`
	LogLevel        string           `mapstructure:"log-level"`
	Changelog       []string         `mapstructure:"changelog"`
	Excision        ExcisionConfig   `mapstructure:"excision"`
	Engine          EngineConfig     `mapstructure:"engine"`
	Output          OutputConfig     `mapstructure:"output"`

	// set by Load
	Path   string   `mapstructure:"-"`
	Type   tim.Type `mapstructure:"-"`
	ignore *excise.Ignore
	unset  []string
}

// ExcisionConfig holds the outlier policy and the explicit exclusions.
type ExcisionConfig struct {
	SigmaThreshold *float64 `mapstructure:"sigma-threshold"`
	MaxCandidates  int      `mapstructure:"max-candidates"`
	ThresholdUS    *float64 `mapstructure:"threshold-us"`
	MaxErrorUS     *float64 `mapstructure:"max-error-us"`
	ThresholdDM    *float64 `mapstructure:"threshold-dm"`
	IgnoreASPDMs   bool     `mapstructure:"ignore-asp-dms"`
	// EpochDrop is the F-test probability below which an epoch is
	// dropped after convergence, nil to skip the test.
	EpochDrop      *float64 `mapstructure:"epoch-drop-threshold"`

	MJDStart *float64        `mapstructure:"mjd-start"`
	MJDEnd   *float64        `mapstructure:"mjd-end"`
	BadTOA   [][]interface{} `mapstructure:"bad-toa"`
	BadRange [][]interface{} `mapstructure:"bad-range"`
	BadEpoch []string        `mapstructure:"bad-epoch"`
	BadID    []string        `mapstructure:"bad-id"`
}

// excisionKeys are the keys recognized in the excision block.
var excisionKeys = map[string]bool{
	"sigma-threshold": true, "max-candidates": true, "threshold-us": true,
	"max-error-us": true, "threshold-dm": true, "ignore-asp-dms": true,
	"epoch-drop-threshold": true, "mjd-start": true, "mjd-end": true, "bad-toa": true,
	"bad-range": true, "bad-epoch": true, "bad-id": true,
}

// CorrectionConfig selects remedies for fits that fail to converge.
type CorrectionConfig struct {
	Freeze       []string `mapstructure:"freeze"`
	TrimFraction float64  `mapstructure:"trim-fraction"`
}

// EngineConfig names the external fitter command.
type EngineConfig struct {
	Command string   `mapstructure:"command"`
	Args    []string `mapstructure:"args"`
	Env     []string `mapstructure:"env"`
}

// OutputConfig names output directories.
type OutputConfig struct {
	ResultsDir string `mapstructure:"results-dir"`
	ArchiveDir string `mapstructure:"archive-dir"`
	LogDir     string `mapstructure:"log-dir"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("par-directory", "results")
	v.SetDefault("tim-directory", "tim")
	v.SetDefault("free-dmx", true)
	v.SetDefault("fe-jumps", true)
	v.SetDefault("fitter", "")
	v.SetDefault("ephem", "")
	v.SetDefault("bipm", "")
	v.SetDefault("max-iterations", 0)
	v.SetDefault("max-corrections", 0)
	v.SetDefault("log-level", "info")
	v.SetDefault("excision.max-candidates", 0)
	v.SetDefault("excision.ignore-asp-dms", true)
	v.SetDefault("engine.command", "")
	v.SetDefault("output.results-dir", "results")
	v.SetDefault("output.archive-dir", "results/archive")
	v.SetDefault("output.log-dir", "logs")
}

// Load reads the configuration file path.
func Load(path string) (*Config, error) {
	env := filepath.Join(filepath.Dir(path), ".env")
	if err := godotenv.Load(env); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading %s: %w", env, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	for _, k := range []string{"source", "par-file", "tim-files", "toa-type",
		"free-params", "snr-cut", "excision.sigma-threshold", "compare-model"} {
		if err := v.BindEnv(k); err != nil {
			return nil, err
		}
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	// registered after reading so values under the old names move over
	v.RegisterAlias("timing-model", "par-file")
	v.RegisterAlias("toas", "tim-files")
	unset, err := excisionNulls(v.GetStringMap("excision"))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	c.Path = path
	c.unset = unset
	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &c, nil
}

// excisionNulls rejects unknown keys of the excision block and returns the
// known ones present with no value, sorted.
func excisionNulls(block map[string]interface{}) ([]string, error) {
	var unset []string
	for k, val := range block {
		if !excisionKeys[k] {
			return nil, invalid("excision."+k, "unknown key")
		}
		if val == nil {
			unset = append(unset, k)
		}
	}
	sort.Strings(unset)
	return unset, nil
}

// ValidationError reports an unusable configuration value.
type ValidationError struct {
	Key, Message string
}

func (e *ValidationError) Error() string {
	return e.Key + ": " + e.Message
}

func invalid(key, format string, args ...interface{}) error {
	return &ValidationError{Key: key, Message: fmt.Sprintf(format, args...)}
}

func (c *Config) validate() (err error) {
	switch {
	case c.Source == "":
		return invalid("source", "required")
	case c.ParFile == "":
		return invalid("par-file", "required")
	case len(c.TimFiles) == 0:
		return invalid("tim-files", "at least one file required")
	case c.Excision.SigmaThreshold == nil:
		return invalid("excision.sigma-threshold", "required, there is no default")
	case c.MaxIterations < 0:
		return invalid("max-iterations", "must not be negative")
	case c.MaxCorrections < 0:
		return invalid("max-corrections", "must not be negative")
	}
	if c.Type, err = tim.ParseType(c.TOAType); err != nil {
		return invalid("toa-type", "%v", err)
	}
	if c.Fitter == "" {
		c.Fitter = DefaultFitter(c.Type)
	}
	if _, err = logrus.ParseLevel(c.LogLevel); err != nil {
		return invalid("log-level", "%v", err)
	}
	p := c.Policy()
	if err = p.Validate(); err != nil {
		return invalid("excision", "%v", err)
	}
	if c.ignore, err = c.Excision.ignore(); err != nil {
		return err
	}
	if p := c.Excision.EpochDrop; p != nil && !(*p > 0 && *p < 1) {
		return invalid("excision.epoch-drop-threshold", "%g not in (0, 1)", *p)
	}
	if f := c.Correction.TrimFraction; f < 0 || f >= 1 {
		return invalid("correction.trim-fraction", "%g not in [0, 1)", f)
	}
	return nil
}

// DefaultFitter returns the engine fitter normally used for t.
func DefaultFitter(t tim.Type) string {
	if t == tim.Wideband {
		return "WidebandTOAFitter"
	}
	return "GLSFitter"
}

// DefaultSNRCut returns the recommended snr-cut for t.
func DefaultSNRCut(t tim.Type) float64 {
	if t == tim.Wideband {
		return 25
	}
	return 8
}

// ParPath returns the path of the input model.
func (c *Config) ParPath() string {
	return c.resolve(c.ParDirectory, c.ParFile)
}

// TimPaths returns the paths of the input tim files.
func (c *Config) TimPaths() []string {
	p := make([]string, len(c.TimFiles))
	for i, f := range c.TimFiles {
		p[i] = c.resolve(c.TimDirectory, f)
	}
	return p
}

// ComparePath returns the path of the comparison model, "" if none.
func (c *Config) ComparePath() string {
	if c.CompareModel == "" {
		return ""
	}
	return c.resolve(c.ParDirectory, c.CompareModel)
}

// resolve joins relative paths to dir, and relative dirs to the directory
// of the configuration file.
func (c *Config) resolve(dir, fn string) string {
	if filepath.IsAbs(fn) {
		return fn
	}
	return filepath.Join(c.Dir(dir), fn)
}

// Dir resolves a directory relative to the configuration file.
func (c *Config) Dir(dir string) string {
	if filepath.IsAbs(dir) || c.Path == "" {
		return dir
	}
	return filepath.Join(filepath.Dir(c.Path), dir)
}

// Policy returns the outlier excision policy.
func (c *Config) Policy() excise.Policy {
	p := excise.Policy{
		MaxCandidates: c.Excision.MaxCandidates,
		SNRCut:        c.SNRCut,
		ThresholdUS:   c.Excision.ThresholdUS,
		MaxErrorUS:    c.Excision.MaxErrorUS,
		ThresholdDM:   c.Excision.ThresholdDM,
		IgnoreASPDMs:  c.Excision.IgnoreASPDMs,
	}
	if c.Excision.SigmaThreshold != nil {
		p.SigmaThreshold = *c.Excision.SigmaThreshold
	}
	return p
}

// Ignore returns the explicit exclusions.
func (c *Config) Ignore() *excise.Ignore { return c.ignore }

// UnsetKeys returns the excision keys present in the file without a value.
func (c *Config) UnsetKeys() []string { return c.unset }

// Strategy returns the configured correction strategy, nil if none.
// Freezing is tried before trimming.
func (c *Config) Strategy() fitloop.CorrectionStrategy {
	var ch fitloop.Chain
	if len(c.Correction.Freeze) > 0 {
		ch = append(ch, fitloop.FreezeParams{Params: c.Correction.Freeze})
	}
	if c.Correction.TrimFraction > 0 {
		ch = append(ch, fitloop.TrimWindow{Fraction: c.Correction.TrimFraction})
	}
	if len(ch) == 0 {
		return nil
	}
	return ch
}

// Advisories returns warnings about settings that are valid but unusual.
func (c *Config) Advisories() []string {
	var a []string
	if c.SNRCut != nil && *c.SNRCut > DefaultSNRCut(c.Type) {
		a = append(a, fmt.Sprintf("snr-cut should be set to %g for %s TOAs; try excising TOAs using other methods",
			DefaultSNRCut(c.Type), c.Type))
	}
	if c.Type == tim.Narrowband && c.Excision.ThresholdDM != nil {
		a = append(a, "excision.threshold-dm applies only to wideband TOAs and will be ignored")
	}
	if c.MaxCorrections > 0 && c.Strategy() == nil {
		a = append(a, "max-corrections is set but no correction strategy is configured")
	}
	if len(c.Changelog) == 0 {
		a = append(a, "changelog is empty")
	}
	return a
}

func (e *ExcisionConfig) ignore() (*excise.Ignore, error) {
	ig := &excise.Ignore{
		MJDStart:  e.MJDStart,
		MJDEnd:    e.MJDEnd,
		BadEpochs: e.BadEpoch,
	}
	for _, id := range e.BadID {
		ig.BadIDs = append(ig.BadIDs, tim.ObsID(id))
	}
	for i, bt := range e.BadTOA {
		if len(bt) != 3 {
			return nil, invalid("excision.bad-toa", "entry %d needs [name, chan, subint]", i+1)
		}
		b := excise.BadTOA{Name: fmt.Sprint(bt[0]), Chan: -1}
		if bt[1] != nil {
			ch, err := toInt(bt[1])
			if err != nil {
				return nil, invalid("excision.bad-toa", "entry %d chan: %v", i+1, err)
			}
			b.Chan = ch
		}
		si, err := toInt(bt[2])
		if err != nil {
			return nil, invalid("excision.bad-toa", "entry %d subint: %v", i+1, err)
		}
		b.Subint = si
		ig.BadTOAs = append(ig.BadTOAs, b)
	}
	for i, br := range e.BadRange {
		if len(br) != 2 && len(br) != 3 {
			return nil, invalid("excision.bad-range", "entry %d needs [mjd1, mjd2] or [mjd1, mjd2, backend]", i+1)
		}
		r := excise.BadRange{}
		var err error
		if r.Start, err = toFloat(br[0]); err != nil {
			return nil, invalid("excision.bad-range", "entry %d: %v", i+1, err)
		}
		if r.End, err = toFloat(br[1]); err != nil {
			return nil, invalid("excision.bad-range", "entry %d: %v", i+1, err)
		}
		if len(br) == 3 {
			r.Backend = fmt.Sprint(br[2])
		}
		ig.BadRanges = append(ig.BadRanges, r)
	}
	if ig.MJDStart != nil && ig.MJDEnd != nil && *ig.MJDStart >= *ig.MJDEnd {
		return nil, invalid("excision.mjd-start", "%g is not before mjd-end %g", *ig.MJDStart, *ig.MJDEnd)
	}
	return ig, nil
}

func toInt(x interface{}) (int, error) {
	switch v := x.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case uint64:
		return int(v), nil
	case float64:
		if v == float64(int(v)) {
			return int(v), nil
		}
	case string:
		return strconv.Atoi(v)
	}
	return 0, fmt.Errorf("%v is not an integer", x)
}

func toFloat(x interface{}) (float64, error) {
	switch v := x.(type) {
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	case float64:
		return v, nil
	case string:
		return strconv.ParseFloat(v, 64)
	}
	return 0, fmt.Errorf("%v is not a number", x)
}
