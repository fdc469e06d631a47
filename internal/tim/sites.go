// Public domain.

package tim

import (
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/soniakeys/unit"
)

// SitesURL links to the Tempo2 observatory list, a flat file of
// geocentric site coordinates and names:
//
//	X Y Z full-name code
//
// with X, Y, Z in meters, ITRF.
var SitesURL = "https://bitbucket.org/psrsoft/tempo2/raw/master/T2runtime/observatory/observatories.dat"

// Site is an observatory position.
type Site struct {
	Name    string
	Code    string
	X, Y, Z float64 // meters
}

// Lon returns the geocentric east longitude.
func (s *Site) Lon() unit.Angle {
	return unit.Angle(math.Atan2(s.Y, s.X))
}

// Lat returns the geocentric latitude.
func (s *Site) Lat() unit.Angle {
	return unit.Angle(math.Atan2(s.Z, math.Hypot(s.X, s.Y)))
}

// SiteMap maps lower case site names and codes to sites.  Barycentric and
// geocentric pseudo-sites are always present.
type SiteMap map[string]*Site

// FetchSites gets a fresh copy of the data at SitesURL and writes it to
// the file fn.
func FetchSites(fn string) error {
	r, err := http.Get(SitesURL)
	if err != nil {
		return err
	}
	defer r.Body.Close()
	if r.StatusCode != http.StatusOK {
		return fmt.Errorf("fetching %s: %s", SitesURL, r.Status)
	}
	f, err := os.Create(fn)
	if err != nil {
		return err
	}
	if _, err = io.Copy(f, r.Body); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadSites reads an observatories file.  Lines that do not parse as data
// are quietly ignored.
func ReadSites(fn string) (SiteMap, error) {
	b, err := os.ReadFile(fn)
	if err != nil {
		return nil, err
	}
	m := pseudoSites()
	n := 0
	for _, line := range strings.Split(string(b), "\n") {
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		f := strings.Fields(line)
		if len(f) < 5 {
			continue
		}
		var xyz [3]float64
		ok := true
		for i := range xyz {
			if xyz[i], err = strconv.ParseFloat(f[i], 64); err != nil {
				ok = false
				break
			}
		}
		if !ok {
			continue
		}
		s := &Site{
			Name: strings.Join(f[3:len(f)-1], " "),
			Code: f[len(f)-1],
			X:    xyz[0], Y: xyz[1], Z: xyz[2],
		}
		m[strings.ToLower(s.Code)] = s
		m[strings.ToLower(s.Name)] = s
		n++
	}
	if n == 0 {
		return nil, errors.New("data unreadable in " + fn)
	}
	return m, nil
}

func pseudoSites() SiteMap {
	bat := &Site{Name: "barycenter", Code: "@"}
	geo := &Site{Name: "geocenter", Code: "coe"}
	return SiteMap{"@": bat, "bat": bat, "barycenter": bat, "coe": geo, "geocenter": geo}
}

// Check returns an error listing site codes of toas not in m.
func (m SiteMap) Check(toas []TOA) error {
	unknown := map[string]bool{}
	for i := range toas {
		if _, ok := m[strings.ToLower(toas[i].Site)]; !ok {
			unknown[toas[i].Site] = true
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	codes := make([]string, 0, len(unknown))
	for c := range unknown {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return fmt.Errorf("unknown observatory sites: %s", strings.Join(codes, ", "))
}

// Used returns the sites of toas found in m, each once, in order of first
// use.
func (m SiteMap) Used(toas []TOA) []*Site {
	seen := map[*Site]bool{}
	var used []*Site
	for i := range toas {
		s, ok := m[strings.ToLower(toas[i].Site)]
		if ok && !seen[s] {
			seen[s] = true
			used = append(used, s)
		}
	}
	return used
}
