// Public domain.

// Package parfile reads and writes pulsar timing model parameter files.
//
// A parameter file holds one parameter per line:
//
//	NAME VALUE [FIT [UNCERTAINTY]]
//
// Mask parameters such as JUMP or EFAC carry a selector between the name
// and the value, for example "JUMP -fe L-wide 0.0 1 0.0" or
// "JUMP MJD 53000 54000 0.0".  Values are kept as the text found in the
// file so that writing a model reproduces every value exactly; numeric
// access goes through shopspring/decimal, which holds the full precision
// that spin frequencies and epochs need.
package parfile

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Param is one line of a parameter file.
type Param struct {
	Name        string
	Key         string   // mask selector flag, e.g. "-fe" or "MJD"
	KeyValue    []string // selector values
	Value       string   // value text as written
	Fit         bool     // free in the fit
	HasFit      bool     // a fit flag column is present
	Uncertainty string   // uncertainty text, "" if none
}

// ID identifies a parameter within a model.  Plain parameters are
// identified by name, mask parameters by name and selector.
func (p *Param) ID() string {
	if p.Key == "" {
		return p.Name
	}
	return p.Name + " " + p.Key + " " + strings.Join(p.KeyValue, " ")
}

// Decimal returns the value as a decimal, ok false for non-numeric values
// such as RAJ or EPHEM.
func (p *Param) Decimal() (d decimal.Decimal, ok bool) {
	return parseDecimal(p.Value)
}

// UncertaintyDecimal returns the uncertainty, ok false if absent.
func (p *Param) UncertaintyDecimal() (decimal.Decimal, bool) {
	if p.Uncertainty == "" {
		return decimal.Zero, false
	}
	return parseDecimal(p.Uncertainty)
}

// Float returns the value as a float64.
func (p *Param) Float() (float64, bool) {
	d, ok := p.Decimal()
	if !ok {
		return 0, false
	}
	f, _ := d.Float64()
	return f, true
}

// parseDecimal accepts Fortran style D exponents as well as E.
func parseDecimal(s string) (decimal.Decimal, bool) {
	if s == "" {
		return decimal.Zero, false
	}
	s = strings.NewReplacer("D", "e", "d", "e").Replace(s)
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// maskParams take a selector before the value.
var maskParams = map[string]bool{
	"JUMP":    true,
	"DMJUMP":  true,
	"EFAC":    true,
	"EQUAD":   true,
	"ECORR":   true,
	"DMEFAC":  true,
	"DMEQUAD": true,
	"T2EFAC":  true,
	"T2EQUAD": true,
	"TNECORR": true,
}

// two-valued selectors
var rangeKeys = map[string]bool{"MJD": true, "FREQ": true, "-MJD": true, "-FREQ": true}

// Model is an ordered timing model.  The zero value is not usable; create
// models with New, Read or ReadFile.
type Model struct {
	params []Param
	index  map[string]int
}

// New returns an empty model.
func New() *Model {
	return &Model{index: make(map[string]int)}
}

// ReadFile reads the parameter file fn.
func ReadFile(fn string) (*Model, error) {
	f, err := os.Open(fn)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	m, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fn, err)
	}
	return m, nil
}

// Read parses a parameter file.  Blank lines and comment lines, those
// starting with '#' or "C ", are skipped.  A repeated parameter replaces
// the earlier one, as later lines win in the fitting engines.
func Read(r io.Reader) (*Model, error) {
	m := New()
	sc := bufio.NewScanner(r)
	for n := 1; sc.Scan(); n++ {
		line := strings.TrimSpace(sc.Text())
		if line == "" || line[0] == '#' || line == "C" || strings.HasPrefix(line, "C ") {
			continue
		}
		p, err := ParseLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", n, err)
		}
		m.Set(p)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if m.Len() == 0 {
		return nil, fmt.Errorf("no parameters found")
	}
	return m, nil
}

// ParseLine parses a single parameter line.
func ParseLine(line string) (p Param, err error) {
	f := strings.Fields(line)
	if len(f) < 2 {
		return p, fmt.Errorf("parameter %q has no value", line)
	}
	p.Name = strings.ToUpper(f[0])
	f = f[1:]
	if maskParams[p.Name] {
		nv := 1
		if rangeKeys[strings.ToUpper(f[0])] {
			nv = 2
		}
		if len(f) < nv+2 {
			return p, fmt.Errorf("mask parameter %q needs selector and value", line)
		}
		p.Key = f[0]
		p.KeyValue = append([]string{}, f[1:1+nv]...)
		f = f[1+nv:]
	}
	p.Value = f[0]
	f = f[1:]
	if len(f) == 0 {
		return p, nil
	}
	switch f[0] {
	case "0", "1":
		p.HasFit = true
		p.Fit = f[0] == "1"
		f = f[1:]
	default:
		// some writers omit the flag and give only an uncertainty
		if _, ok := parseDecimal(f[0]); !ok {
			// multi-token values such as "TZRSITE @" variants
			p.Value = p.Value + " " + strings.Join(f, " ")
			return p, nil
		}
	}
	if len(f) > 0 {
		p.Uncertainty = f[0]
	}
	return p, nil
}

// Len returns the number of parameters.
func (m *Model) Len() int { return len(m.params) }

// Get returns a copy of the parameter with the given ID.
func (m *Model) Get(id string) (Param, bool) {
	i, ok := m.index[id]
	if !ok {
		return Param{}, false
	}
	return m.params[i].clone(), true
}

// Has reports whether the model holds id.
func (m *Model) Has(id string) bool {
	_, ok := m.index[id]
	return ok
}

// Set replaces the parameter with the same ID or appends p.
func (m *Model) Set(p Param) {
	p = p.clone()
	id := p.ID()
	if i, ok := m.index[id]; ok {
		m.params[i] = p
		return
	}
	m.index[id] = len(m.params)
	m.params = append(m.params, p)
}

// Delete removes id, reporting whether it was present.
func (m *Model) Delete(id string) bool {
	i, ok := m.index[id]
	if !ok {
		return false
	}
	m.params = append(m.params[:i], m.params[i+1:]...)
	m.reindex()
	return true
}

// Rename changes the name of plain parameter from to to, keeping its
// position in the model.
func (m *Model) Rename(from, to string) bool {
	i, ok := m.index[from]
	if !ok || m.params[i].Key != "" {
		return false
	}
	if _, dup := m.index[to]; dup {
		return false
	}
	m.params[i].Name = to
	m.reindex()
	return true
}

func (m *Model) reindex() {
	m.index = make(map[string]int, len(m.params))
	for i := range m.params {
		m.index[m.params[i].ID()] = i
	}
}

// Params returns copies of all parameters in file order.
func (m *Model) Params() []Param {
	ps := make([]Param, len(m.params))
	for i := range m.params {
		ps[i] = m.params[i].clone()
	}
	return ps
}

// Clone returns a deep copy.
func (m *Model) Clone() *Model {
	c := &Model{params: m.Params()}
	c.reindex()
	return c
}

func (p Param) clone() Param {
	if p.KeyValue != nil {
		p.KeyValue = append([]string{}, p.KeyValue...)
	}
	return p
}

// Source returns the pulsar name from PSRJ or PSR.
func (m *Model) Source() string {
	for _, n := range []string{"PSRJ", "PSR", "PSRB"} {
		if p, ok := m.Get(n); ok {
			return p.Value
		}
	}
	return ""
}

// Timescale returns the UNITS value, upper case.  Models without UNITS are
// in TDB, the engine's default.
func (m *Model) Timescale() string {
	if p, ok := m.Get("UNITS"); ok {
		return strings.ToUpper(p.Value)
	}
	return "TDB"
}

// FreeParams returns the IDs of parameters flagged for fitting, in file
// order.
func (m *Model) FreeParams() []string {
	var free []string
	for i := range m.params {
		if m.params[i].Fit {
			free = append(free, m.params[i].ID())
		}
	}
	return free
}

// SetFree freezes every parameter and then frees those listed.  IDs not in
// the model are returned, sorted, and leave the model unchanged.
func (m *Model) SetFree(ids []string) (missing []string) {
	for _, id := range ids {
		if !m.Has(id) {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return missing
	}
	for i := range m.params {
		if m.params[i].Fit {
			m.params[i].Fit = false
		}
	}
	for _, id := range ids {
		p := &m.params[m.index[id]]
		p.Fit = true
		p.HasFit = true
	}
	return nil
}

// WithPrefix returns IDs of parameters whose name starts with prefix.
func (m *Model) WithPrefix(prefix string) []string {
	var ids []string
	for i := range m.params {
		if strings.HasPrefix(m.params[i].Name, prefix) {
			ids = append(ids, m.params[i].ID())
		}
	}
	return ids
}

// Write writes the model in parameter file format.
func (m *Model) Write(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for i := range m.params {
		if _, err := bw.WriteString(m.params[i].Line() + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Line formats p as a parameter file line.
func (p *Param) Line() string {
	name := p.Name
	if p.Key != "" {
		name += " " + p.Key + " " + strings.Join(p.KeyValue, " ")
	}
	s := fmt.Sprintf("%-15s %25s", name, p.Value)
	switch {
	case p.HasFit || p.Uncertainty != "":
		fit := "0"
		if p.Fit {
			fit = "1"
		}
		s += " " + fit
		if p.Uncertainty != "" {
			s += " " + p.Uncertainty
		}
	}
	return strings.TrimRight(s, " ")
}

// String returns the model as parameter file text.
func (m *Model) String() string {
	var b strings.Builder
	m.Write(&b)
	return b.String()
}
