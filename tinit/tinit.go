// Public domain.

package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/soniakeys/exit"

	"github.com/cuantar/timing-analysis/internal/config"
	"github.com/cuantar/timing-analysis/internal/tim"
)

const versionString = "tinit version 0.1 Go source."
const copyrightString = "Public domain."
const sitesFn = "observatories.dat"

func main() {
	defer exit.Handler()

	flag.Usage = func() {
		os.Stderr.WriteString(`Usage:
  tinit [options] <source> <par-file> <tim-file>...
                          Write <source>.<nb|wb>.yaml in the current directory.
  tinit -v                Display version and copyright.

Options:
  -d <dir>                configuration directory
  -t nb|wb                TOA type, by default taken from the tim files
  -s                      fetch ` + sitesFn + ` if not present

For full documentation:
   go doc github.com/cuantar/timing-analysis/tinit
`)
	}
	dir := flag.String("d", ".", "")
	typ := flag.String("t", "", "")
	sites := flag.Bool("s", false, "")
	vers := flag.Bool("v", false, "")
	flag.Parse()
	if *vers {
		fmt.Println(versionString)
		fmt.Println(copyrightString)
		os.Exit(0)
	}
	if flag.NArg() < 3 {
		flag.Usage()
		os.Exit(1)
	}
	source, parFn, timFns := flag.Arg(0), flag.Arg(1), flag.Args()[2:]

	var t tim.Type
	if *typ > "" {
		var err error
		if t, err = tim.ParseType(*typ); err != nil {
			exit.Log(err)
		}
	} else {
		var err error
		if t, err = detectType(filepath.Join(*dir, "tim"), timFns, os.Stderr); err != nil {
			exit.Log(err)
		}
	}

	fn, err := config.WriteInitial(*dir, source, t, parFn, timFns)
	if err != nil {
		exit.Log(err)
	}
	fmt.Println("wrote", fn)

	if *sites {
		fetchSites(filepath.Join(*dir, sitesFn))
	}
}

// detectType reads the tim files from dir and reports their type.  Files
// that cannot be read are reported to warn and otherwise ignored; if none
// can be read the type is narrowband.  Files of both types are an error.
func detectType(dir string, fns []string, warn io.Writer) (tim.Type, error) {
	t := tim.Narrowband
	var seen bool
	for _, fn := range fns {
		if !filepath.IsAbs(fn) {
			fn = filepath.Join(dir, fn)
		}
		toas, err := tim.ReadFile(fn)
		if err != nil {
			fmt.Fprintln(warn, err)
			continue
		}
		if len(toas) == 0 {
			continue
		}
		ft := tim.Narrowband
		if toas[0].Wideband() {
			ft = tim.Wideband
		}
		if seen && ft != t {
			return t, fmt.Errorf("%s holds %s TOAs, earlier files %s", fn, ft, t)
		}
		t, seen = ft, true
	}
	if !seen {
		fmt.Fprintln(warn, "no TOAs read, assuming", t)
	}
	return t, nil
}

func fetchSites(fn string) {
	if _, err := tim.ReadSites(fn); err == nil {
		return
	}
	fmt.Printf("%s not found.\nAccessing %s...\n", fn, tim.SitesURL)
	if err := tim.FetchSites(fn); err != nil {
		exit.Log(err)
	}
	m, err := tim.ReadSites(fn)
	if err != nil {
		exit.Log(err)
	}
	fmt.Printf("wrote %s, %d names and codes\n", fn, len(m))
}
