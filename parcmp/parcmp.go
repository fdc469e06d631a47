// Public domain.

package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/cuantar/timing-analysis/internal/astrom"
	"github.com/cuantar/timing-analysis/internal/parfile"
)

const versionString = "parcmp version 0.1"
const copyrightString = "Public domain."

func main() {
	// parse command line
	flag.Usage = func() {
		os.Stderr.WriteString(
			"Usage: parcmp [options] <reference.par> <current.par> [threshold]\n")
		flag.PrintDefaults()
		os.Stderr.WriteString(`
For full documentation:
   go doc github.com/cuantar/timing-analysis/parcmp
`)
	}
	all := flag.Bool("a", false, "list all differences, not only significant ones")
	dmx := flag.Bool("dmx", false, "include DMX parameters")
	ecl := flag.Bool("e", false, "convert equatorial models to ecliptic before comparing")
	vers := flag.Bool("v", false, "display version and copyright")
	flag.Parse()
	if *vers {
		fmt.Println(versionString)
		fmt.Println(copyrightString)
		os.Exit(0)
	}
	if n := flag.NArg(); n < 2 || n > 3 {
		flag.Usage()
		os.Exit(1)
	}
	threshold, prec, err := parseThreshold(flag.Arg(2))
	if err != nil {
		log.Fatalln(err)
	}
	ref := readModel(flag.Arg(0), *ecl)
	cur := readModel(flag.Arg(1), *ecl)
	c := comparison{
		refName:   flag.Arg(0),
		curName:   flag.Arg(1),
		ref:       ref,
		cur:       cur,
		diffs:     parfile.Compare(ref, cur, threshold, !*dmx),
		threshold: threshold,
		prec:      prec,
	}
	c.write(os.Stdout, *all)
}

// parseThreshold parses the optional threshold argument, returning the
// default of 3σ for "".  prec is the number of decimals given.
func parseThreshold(s string) (threshold float64, prec int, err error) {
	if s == "" {
		return 3, 0, nil
	}
	threshold, err = strconv.ParseFloat(s, 64)
	if err != nil || threshold <= 0 {
		return 0, 0, fmt.Errorf("bad threshold: %s", s)
	}
	if p := strings.Index(s, "."); p >= 0 {
		prec = len(s) - p - 1
	}
	return threshold, prec, nil
}

type comparison struct {
	refName, curName string
	ref, cur         *parfile.Model
	diffs            []parfile.Diff
	threshold        float64
	prec             int
}

// write reports the comparison.  With all false only significant
// differences are listed.
func (c *comparison) write(w io.Writer, all bool) {
	var nSig int
	for _, d := range c.diffs {
		if d.Significant {
			nSig++
		}
	}
	fmt.Fprintln(w, "\nReference: ", c.refName)
	fmt.Fprintln(w, "            ", astrom.Describe(c.ref))
	fmt.Fprintln(w, "Current:   ", c.curName)
	fmt.Fprintln(w, "            ", astrom.Describe(c.cur))
	fmt.Fprintf(w, "Threshold:  %.*fσ\n", c.prec, c.threshold)
	fmt.Fprintln(w, "Differing: ", len(c.diffs))
	fmt.Fprintln(w, "Significant:", nSig)
	if len(c.diffs) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%-16s %26s %26s %8s\n", "Parameter", "Reference", "Current", "σ")
	for _, d := range c.diffs {
		if !all && !d.Significant {
			continue
		}
		sig := ""
		if d.Sigma > 0 {
			sig = fmt.Sprintf("%8.2f", d.Sigma)
		}
		mark := " "
		if d.Significant {
			mark = "*"
		}
		fmt.Fprintf(w, "%-16s %26s %26s %8s %s\n", d.ID, dash(d.Ref), dash(d.Cur), sig, mark)
	}
}

func readModel(fn string, ecl bool) *parfile.Model {
	m, err := parfile.ReadFile(fn)
	if err != nil {
		log.Fatalln(err)
	}
	if ecl {
		if _, err := astrom.ToEcliptic(m); err != nil {
			log.Fatalln(fn+":", err)
		}
	}
	return m
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
