// Public domain.

// Package tim reads and writes pulsar times of arrival.
//
// Input is Tempo2 "FORMAT 1" tim files, one TOA per line:
//
//	name freq mjd err site -flag value ...
//
// with freq in MHz, err in microseconds.  Comment lines start with "C " or
// '#'.  INCLUDE lines read further files relative to the including file.
// Other Tempo2 commands are recognized and skipped.
//
// Wideband TOAs carry a DM measurement in -pp_dm and -pp_dme flags, which
// is how the two TOA types are told apart.
package tim

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/cuantar/timing-analysis/internal/timingerr"
)

// Type is the TOA measurement technique.
type Type int

const (
	Narrowband Type = iota + 1
	Wideband
)

// ParseType accepts "narrowband", "wideband" and the NB/WB abbreviations
// used in file names.
func ParseType(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "narrowband", "nb":
		return Narrowband, nil
	case "wideband", "wb":
		return Wideband, nil
	}
	return 0, fmt.Errorf("unknown toa-type %q (want narrowband or wideband)", s)
}

func (t Type) String() string {
	switch t {
	case Narrowband:
		return "narrowband"
	case Wideband:
		return "wideband"
	}
	return "Type(" + strconv.Itoa(int(t)) + ")"
}

// Abbr returns "nb" or "wb", as used in output file names.
func (t Type) Abbr() string {
	if t == Wideband {
		return "wb"
	}
	return "nb"
}

// ObsID identifies an observation across sessions.
type ObsID string

// Flag is a -key value pair.  Key is stored without the dash.
type Flag struct {
	Key, Value string
}

// TOA is a single time of arrival.  TOAs are not modified after loading.
type TOA struct {
	Index   int     // position in the loaded sequence
	Name    string  // archive file name
	Freq    float64 // MHz
	MJDText string  // MJD as written, full precision
	MJD     float64
	Err     float64 // uncertainty, µs
	Site    string
	Flags   []Flag

	File string // source tim file
	Line int

	id ObsID
}

// ID returns the observation identifier, derived from the archive name
// and the -chan and -subint flags when present, else the archive name and
// MJD.
func (t *TOA) ID() ObsID {
	if t.id != "" {
		return t.id
	}
	return baseID(t)
}

func baseID(t *TOA) ObsID {
	ch, hasCh := t.Flag("chan")
	si, hasSi := t.Flag("subint")
	if hasCh || hasSi {
		return ObsID(t.Name + "/" + ch + "/" + si)
	}
	return ObsID(t.Name + "@" + t.MJDText)
}

// Flag returns the value of flag key (without the dash).
func (t *TOA) Flag(key string) (string, bool) {
	for _, f := range t.Flags {
		if f.Key == key {
			return f.Value, true
		}
	}
	return "", false
}

// SNR returns the -snr flag value.
func (t *TOA) SNR() (float64, bool) {
	s, ok := t.Flag("snr")
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Wideband reports whether the TOA carries a wideband DM measurement.
func (t *TOA) Wideband() bool {
	_, ok := t.Flag("pp_dm")
	return ok
}

// Group returns the receiver/backend combination used for per-system
// statistics: the -f flag, else -fe_-be, else the site.
func (t *TOA) Group() string {
	if f, ok := t.Flag("f"); ok {
		return f
	}
	fe, ok1 := t.Flag("fe")
	be, ok2 := t.Flag("be")
	if ok1 || ok2 {
		return fe + "_" + be
	}
	return t.Site
}

// Backend returns the -be flag value.
func (t *TOA) Backend() string {
	be, _ := t.Flag("be")
	return be
}

// commands are Tempo2 tim file commands skipped by the reader.
var commands = map[string]bool{
	"FORMAT": true, "MODE": true, "TIME": true, "PHASE": true,
	"EFAC": true, "EQUAD": true, "JUMP": true, "SKIP": true,
	"NOSKIP": true, "END": true, "TRACK": true, "INFO": true,
	"EMIN": true, "EMAX": true, "FMIN": true, "FMAX": true,
	"SIGMA": true, "PHA1": true, "PHA2": true,
}

const maxIncludeDepth = 10

// ErrNoTOAs is returned when the input holds no TOA lines.
var ErrNoTOAs = errors.New("no TOAs found")

// Options adjust loading.
type Options struct {
	// Sites, if not nil, is used to reject TOAs with unknown site codes.
	Sites SiteMap
}

// Load reads tim files in order and checks that every TOA is of type
// want.  A mismatch fails with timingerr.ToaTypeMismatch naming the first
// offending file.
func Load(files []string, want Type, opt Options) ([]TOA, error) {
	var all []TOA
	for _, fn := range files {
		toas, err := ReadFile(fn)
		if err != nil {
			return nil, err
		}
		all = append(all, toas...)
	}
	if len(all) == 0 {
		return nil, ErrNoTOAs
	}
	if err := CheckType(all, want); err != nil {
		return nil, err
	}
	if opt.Sites != nil {
		if err := opt.Sites.Check(all); err != nil {
			return nil, err
		}
	}
	index(all)
	return all, nil
}

// CheckType verifies every TOA matches want.
func CheckType(toas []TOA, want Type) error {
	for i := range toas {
		t := &toas[i]
		if t.Wideband() == (want == Wideband) {
			continue
		}
		got := Narrowband
		if t.Wideband() {
			got = Wideband
		}
		return timingerr.New(timingerr.ToaTypeMismatch,
			"toa-type is %s but %s line %d holds a %s TOA", want, t.File, t.Line, got)
	}
	return nil
}

// index numbers TOAs and makes IDs unique by suffixing repeats.
func index(toas []TOA) {
	seen := make(map[ObsID]int, len(toas))
	for i := range toas {
		t := &toas[i]
		t.Index = i
		id := baseID(t)
		seen[id]++
		if n := seen[id]; n > 1 {
			id = ObsID(string(id) + "#" + strconv.Itoa(n))
		}
		t.id = id
	}
}

// ReadFile reads a tim file, following INCLUDE lines.
func ReadFile(fn string) ([]TOA, error) {
	return readFile(fn, 0)
}

func readFile(fn string, depth int) ([]TOA, error) {
	if depth > maxIncludeDepth {
		return nil, fmt.Errorf("%s: INCLUDE nested too deeply", fn)
	}
	f, err := os.Open(fn)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var toas []TOA
	err = scan(f, fn, func(t TOA) { toas = append(toas, t) },
		func(inc string) error {
			if !filepath.IsAbs(inc) {
				inc = filepath.Join(filepath.Dir(fn), inc)
			}
			more, err := readFile(inc, depth+1)
			toas = append(toas, more...)
			return err
		})
	return toas, err
}

// Read parses TOAs from r.  INCLUDE lines are an error since there is no
// file to resolve them against.
func Read(r io.Reader, name string) ([]TOA, error) {
	var toas []TOA
	err := scan(r, name, func(t TOA) { toas = append(toas, t) },
		func(inc string) error {
			return fmt.Errorf("%s: INCLUDE %s not supported on a stream", name, inc)
		})
	if err != nil {
		return nil, err
	}
	index(toas)
	return toas, nil
}

func scan(r io.Reader, fn string, add func(TOA), include func(string) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for n := 1; sc.Scan(); n++ {
		line := strings.TrimSpace(sc.Text())
		switch {
		case line == "", line[0] == '#', line == "C", line == "c",
			strings.HasPrefix(line, "C "), strings.HasPrefix(line, "c "):
			continue
		}
		f := strings.Fields(line)
		if f[0] == "INCLUDE" {
			if len(f) != 2 {
				return fmt.Errorf("%s line %d: INCLUDE needs one file name", fn, n)
			}
			if err := include(f[1]); err != nil {
				return err
			}
			continue
		}
		if commands[f[0]] {
			continue
		}
		t, err := ParseLine(f)
		if err != nil {
			return fmt.Errorf("%s line %d: %w", fn, n, err)
		}
		t.File = fn
		t.Line = n
		add(t)
	}
	return sc.Err()
}

// ParseLine parses the fields of one TOA line.
func ParseLine(f []string) (t TOA, err error) {
	if len(f) < 5 {
		return t, fmt.Errorf("TOA line needs 5 fields, has %d", len(f))
	}
	t.Name = f[0]
	if t.Freq, err = strconv.ParseFloat(f[1], 64); err != nil {
		return t, fmt.Errorf("invalid frequency (%s)", f[1])
	}
	t.MJDText = f[2]
	if t.MJD, err = strconv.ParseFloat(f[2], 64); err != nil || t.MJD <= 0 {
		return t, fmt.Errorf("invalid MJD (%s)", f[2])
	}
	if t.Err, err = strconv.ParseFloat(f[3], 64); err != nil || t.Err < 0 {
		return t, fmt.Errorf("invalid uncertainty (%s)", f[3])
	}
	t.Site = f[4]
	rest := f[5:]
	for len(rest) > 0 {
		k := rest[0]
		if len(k) < 2 || k[0] != '-' {
			return t, fmt.Errorf("expected flag, found %q", k)
		}
		// a flag may be the last token, with no value
		v := ""
		if len(rest) > 1 && !isFlag(rest[1]) {
			v = rest[1]
			rest = rest[2:]
		} else {
			rest = rest[1:]
		}
		t.Flags = append(t.Flags, Flag{Key: k[1:], Value: v})
	}
	return t, nil
}

// isFlag distinguishes "-fe" from a negative number value.
func isFlag(s string) bool {
	if len(s) < 2 || s[0] != '-' {
		return false
	}
	_, err := strconv.ParseFloat(s, 64)
	return err != nil
}

// Write writes TOAs in FORMAT 1.  TOAs whose ID is in cuts get a -cut
// flag carrying the reason, replacing any earlier -cut flag.
func Write(w io.Writer, toas []TOA, cuts map[ObsID]string) error {
	bw := bufio.NewWriter(w)
	bw.WriteString("FORMAT 1\n")
	for i := range toas {
		t := &toas[i]
		fmt.Fprintf(bw, "%s %s %s %s %s", t.Name,
			strconv.FormatFloat(t.Freq, 'f', -1, 64), t.MJDText,
			strconv.FormatFloat(t.Err, 'f', -1, 64), t.Site)
		for _, f := range t.Flags {
			if f.Key == "cut" && cuts != nil {
				if _, ok := cuts[t.ID()]; ok {
					continue
				}
			}
			fmt.Fprintf(bw, " -%s %s", f.Key, f.Value)
		}
		if reason, ok := cuts[t.ID()]; ok {
			fmt.Fprintf(bw, " -cut %s", reason)
		}
		bw.WriteString("\n")
	}
	return bw.Flush()
}

// Groups returns the distinct Group values, sorted.
func Groups(toas []TOA) []string {
	set := make(map[string]bool)
	for i := range toas {
		set[toas[i].Group()] = true
	}
	g := make([]string, 0, len(set))
	for k := range set {
		g = append(g, k)
	}
	sort.Strings(g)
	return g
}

// Frontends returns the distinct -fe flag values of toas, sorted.
func Frontends(toas []TOA) []string {
	set := make(map[string]bool)
	for i := range toas {
		if fe, ok := toas[i].Flag("fe"); ok && fe != "" {
			set[fe] = true
		}
	}
	fes := make([]string, 0, len(set))
	for k := range set {
		fes = append(fes, k)
	}
	sort.Strings(fes)
	return fes
}
