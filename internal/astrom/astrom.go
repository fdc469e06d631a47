// Public domain.

// Package astrom handles the astrometric parameters of a timing model.
//
// Timing models carry position either as equatorial RAJ/DECJ with proper
// motion PMRA/PMDEC, or as ecliptic ELONG/ELAT with PMELONG/PMELAT.  Fits
// here are done in ecliptic coordinates, which decorrelate position from
// the annual parallax signature, so equatorial models are converted before
// the first fit.
package astrom

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/soniakeys/meeus/v3/coord"
	sexa "github.com/soniakeys/sexagesimal"
	"github.com/soniakeys/unit"

	"github.com/cuantar/timing-analysis/internal/parfile"
)

// EclFrame names the obliquity convention written to converted models.
const EclFrame = "IERS2010"

// obliquity of the IERS 2010 conventions
var obliquity = coord.NewObliquity(unit.AngleFromSec(84381.406))

// mas/yr to radians/yr
var masPerYr = unit.AngleFromSec(1e-3).Rad()

// Position is a sky position with proper motion.
type Position struct {
	RA  unit.RA
	Dec unit.Angle
	// PMRA is the proper motion in RA including the cos(Dec) factor.
	PMRA, PMDec unit.Angle // per year

	Lon, Lat          unit.Angle
	PMLon, PMLat      unit.Angle // per year, PMLon including cos(Lat)
	PosErrRA          unit.Angle // RA uncertainty projected on the sky
	PosErrDec         unit.Angle
	PMErrRA, PMErrDec unit.Angle
}

// ParseRA parses hh:mm:ss.s.
func ParseRA(s string) (unit.RA, error) {
	neg, h, m, sec, err := parseSexa(s)
	if err != nil || neg {
		return 0, fmt.Errorf("invalid RA %q", s)
	}
	return unit.NewRA(h, m, sec), nil
}

// ParseDec parses [+-]dd:mm:ss.s.
func ParseDec(s string) (unit.Angle, error) {
	neg, d, m, sec, err := parseSexa(s)
	if err != nil {
		return 0, fmt.Errorf("invalid declination %q", s)
	}
	var n byte
	if neg {
		n = '-'
	}
	return unit.NewAngle(n, d, m, sec), nil
}

func parseSexa(s string) (neg bool, a, b int, c float64, err error) {
	s = strings.TrimSpace(s)
	switch {
	case strings.HasPrefix(s, "-"):
		neg = true
		s = s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}
	f := strings.Split(s, ":")
	if len(f) == 0 || len(f) > 3 {
		return false, 0, 0, 0, fmt.Errorf("bad field count")
	}
	for len(f) < 3 {
		f = append(f, "0")
	}
	if a, err = strconv.Atoi(f[0]); err != nil {
		return
	}
	if b, err = strconv.Atoi(f[1]); err != nil {
		return
	}
	if b < 0 || b >= 60 {
		return false, 0, 0, 0, fmt.Errorf("minutes out of range")
	}
	c, err = strconv.ParseFloat(strings.Replace(f[2], "D", "e", 1), 64)
	return
}

// IsEquatorial reports whether m gives its position as RAJ/DECJ.
func IsEquatorial(m *parfile.Model) bool {
	return m.Has("RAJ") && m.Has("DECJ")
}

// Equatorial reads the equatorial astrometry of m.  Missing proper motions
// are zero.
func Equatorial(m *parfile.Model) (*Position, error) {
	ra, ok := m.Get("RAJ")
	if !ok {
		return nil, fmt.Errorf("model has no RAJ")
	}
	dec, ok := m.Get("DECJ")
	if !ok {
		return nil, fmt.Errorf("model has no DECJ")
	}
	p := &Position{}
	var err error
	if p.RA, err = ParseRA(ra.Value); err != nil {
		return nil, err
	}
	if p.Dec, err = ParseDec(dec.Value); err != nil {
		return nil, err
	}
	p.PMRA = unit.Angle(floatParam(m, "PMRA") * masPerYr)
	p.PMDec = unit.Angle(floatParam(m, "PMDEC") * masPerYr)
	// RAJ uncertainty is in seconds of time, DECJ in arc seconds
	if u, err := strconv.ParseFloat(ra.Uncertainty, 64); err == nil {
		p.PosErrRA = unit.AngleFromSec(15 * u * math.Cos(p.Dec.Rad()))
	}
	if u, err := strconv.ParseFloat(dec.Uncertainty, 64); err == nil {
		p.PosErrDec = unit.AngleFromSec(u)
	}
	p.PMErrRA = unit.Angle(uncParam(m, "PMRA") * masPerYr)
	p.PMErrDec = unit.Angle(uncParam(m, "PMDEC") * masPerYr)
	p.toEcliptic()
	return p, nil
}

func floatParam(m *parfile.Model, id string) float64 {
	p, ok := m.Get(id)
	if !ok {
		return 0
	}
	f, _ := p.Float()
	return f
}

func uncParam(m *parfile.Model, id string) float64 {
	p, ok := m.Get(id)
	if !ok {
		return 0
	}
	u, ok := p.UncertaintyDecimal()
	if !ok {
		return 0
	}
	f, _ := u.Float64()
	return f
}

func eqToEcl(ra unit.RA, dec unit.Angle) *coord.Ecliptic {
	return new(coord.Ecliptic).EqToEcl(&coord.Equatorial{RA: ra, Dec: dec}, obliquity)
}

// toEcliptic fills the ecliptic fields.  Proper motion is rotated by
// differencing positions one year apart.
func (p *Position) toEcliptic() {
	e0 := eqToEcl(p.RA, p.Dec)
	p.Lon, p.Lat = e0.Lon, e0.Lat
	if p.Lon < 0 {
		p.Lon += 2 * math.Pi
	}

	cd := math.Cos(p.Dec.Rad())
	ra1 := unit.RA(p.RA.Rad() + p.PMRA.Rad()/cd)
	dec1 := unit.Angle(p.Dec.Rad() + p.PMDec.Rad())
	e1 := eqToEcl(ra1, dec1)
	dLon := math.Remainder(e1.Lon.Rad()-e0.Lon.Rad(), 2*math.Pi)
	p.PMLon = unit.Angle(dLon * math.Cos(e0.Lat.Rad()))
	p.PMLat = unit.Angle(e1.Lat.Rad() - e0.Lat.Rad())
}

// ToEcliptic rewrites an equatorial model in place with ecliptic
// parameters, keeping each parameter's position and fit flag.  Models
// already in ecliptic coordinates are left unchanged and false returned.
//
// Uncertainties are carried over as the larger of the two equatorial
// components, a conservative bound since the rotation mixes them.
func ToEcliptic(m *parfile.Model) (bool, error) {
	if !IsEquatorial(m) {
		return false, nil
	}
	p, err := Equatorial(m)
	if err != nil {
		return false, err
	}
	posErr := math.Max(p.PosErrRA.Deg(), p.PosErrDec.Deg())
	pmErr := math.Max(p.PMErrRA.Rad(), p.PMErrDec.Rad()) / masPerYr

	replace(m, "RAJ", "ELONG", strconv.FormatFloat(p.Lon.Deg(), 'f', 13, 64), posErr)
	replace(m, "DECJ", "ELAT", strconv.FormatFloat(p.Lat.Deg(), 'f', 13, 64), posErr)
	replace(m, "PMRA", "PMELONG", strconv.FormatFloat(p.PMLon.Rad()/masPerYr, 'f', 6, 64), pmErr)
	replace(m, "PMDEC", "PMELAT", strconv.FormatFloat(p.PMLat.Rad()/masPerYr, 'f', 6, 64), pmErr)
	m.Set(parfile.Param{Name: "ECL", Value: EclFrame})
	return true, nil
}

func replace(m *parfile.Model, from, to, value string, unc float64) {
	p, ok := m.Get(from)
	if !ok {
		p = parfile.Param{Name: to}
		p.Value = value
		m.Set(p)
		return
	}
	m.Rename(from, to)
	p.Name = to
	p.Value = value
	if unc > 0 {
		p.Uncertainty = strconv.FormatFloat(unc, 'g', 6, 64)
	} else {
		p.Uncertainty = ""
	}
	m.Set(p)
}

// Ecliptic reads ecliptic astrometry of m, accepting the LAMBDA/BETA
// aliases, and fills in the equivalent equatorial position.
func Ecliptic(m *parfile.Model) (*Position, error) {
	get := func(names ...string) (float64, bool) {
		for _, n := range names {
			if p, ok := m.Get(n); ok {
				return p.Float()
			}
		}
		return 0, false
	}
	lon, ok1 := get("ELONG", "LAMBDA")
	lat, ok2 := get("ELAT", "BETA")
	if !ok1 || !ok2 {
		return nil, fmt.Errorf("model has no ecliptic position")
	}
	pml, _ := get("PMELONG", "PMLAMBDA")
	pmb, _ := get("PMELAT", "PMBETA")
	p := &Position{
		Lon:   unit.AngleFromDeg(lon),
		Lat:   unit.AngleFromDeg(lat),
		PMLon: unit.Angle(pml * masPerYr),
		PMLat: unit.Angle(pmb * masPerYr),
	}
	eq := new(coord.Equatorial).EclToEq(&coord.Ecliptic{Lon: p.Lon, Lat: p.Lat}, obliquity)
	p.RA, p.Dec = eq.RA, eq.Dec
	return p, nil
}

// Describe formats the sky position of m for logs and reports.
func Describe(m *parfile.Model) string {
	var p *Position
	var err error
	if IsEquatorial(m) {
		p, err = Equatorial(m)
	} else {
		p, err = Ecliptic(m)
	}
	if err != nil {
		return "position unknown: " + err.Error()
	}
	return fmt.Sprintf("α %.3d δ %.2d (λ %.6f° β %.6f°)",
		sexa.FmtRA(p.RA), sexa.FmtAngle(p.Dec), p.Lon.Deg(), p.Lat.Deg())
}
