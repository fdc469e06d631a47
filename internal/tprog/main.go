// Public domain.

// Package tprog is the timing-analysis command.
package tprog

import (
	"flag"
	"fmt"
	"os"

	"github.com/soniakeys/exit"

	"github.com/cuantar/timing-analysis/internal/changelog"
	"github.com/cuantar/timing-analysis/internal/excise"
	"github.com/cuantar/timing-analysis/internal/sessionlog"
)

const versionString = "timing-analysis version 0.1 Go source."
const copyrightString = "Public domain."

// compareSigma is the significance threshold of the model comparison.
const compareSigma = 3

type commandLine struct {
	fnConfig  string
	check     bool   // -check
	show      string // -show session file
	changelog string // -changelog tag
	note      string // -note text
	engine    string // -engine command, overrides engine.command
	noPublish bool   // -n
}

func Main() {
	defer exit.Handler()

	cl := parseCommandLine()
	switch {
	case cl.changelog > "":
		e, err := changelog.New(cl.changelog, cl.note)
		if err != nil {
			exit.Log(err)
		}
		fmt.Println(e)
		return
	case cl.show > "":
		r, err := sessionlog.ReadFile(cl.show)
		if err != nil {
			exit.Log(err)
		}
		writeRecord(os.Stdout, r)
		return
	}
	r := newRun(cl)
	defer r.close()
	r.load()
	if cl.check {
		r.check()
		return
	}
	r.fit()
}

func parseCommandLine() *commandLine {
	var cl commandLine
	dh := flag.Bool("h", false, "")
	dv := flag.Bool("v", false, "")
	flag.BoolVar(&cl.check, "check", false, "")
	flag.StringVar(&cl.show, "show", "", "")
	flag.StringVar(&cl.changelog, "changelog", "", "")
	flag.StringVar(&cl.note, "note", "", "")
	flag.StringVar(&cl.engine, "engine", "", "")
	flag.BoolVar(&cl.noPublish, "n", false, "")
	flag.Usage = func() {
		os.Stderr.WriteString(`
Usage: timing-analysis [options] <config>      fit, excise and publish
       timing-analysis -check <config>        validate inputs without fitting
       timing-analysis -show <session-file>   display a saved session
       timing-analysis -changelog <tag> -note <text>
                                              print a changelog entry
       timing-analysis -h                     display help
       timing-analysis -v                     display version and copyright

Options:
       -engine <command>   fitting engine, overrides engine.command
       -n                  do not publish the model or excise file
`)
	}
	flag.Parse()
	switch {
	case *dh:
		printHelp()
		os.Exit(0)
	case *dv:
		fmt.Println(versionString)
		fmt.Println(copyrightString)
		os.Exit(0)
	case cl.changelog > "" || cl.show > "":
		if flag.NArg() != 0 {
			flag.Usage()
			os.Exit(1)
		}
	case flag.NArg() != 1:
		flag.Usage()
		os.Exit(1)
	}
	if cl.changelog > "" && cl.note == "" {
		exit.Log("-changelog requires -note")
	}
	cl.fnConfig = flag.Arg(0)
	return &cl
}

func printHelp() {
	fmt.Println(`
Timing-analysis fits a pulsar timing model to TOAs with an external fitting
engine, excises outlying TOAs and refits until no new outliers are found.
The fitted model is published under a new name in the results directory.

Configuration keys:
   source  toa-type  par-file  tim-files  free-params  free-dmx
   fitter  ephem  bipm  snr-cut  compare-model  convert-ecliptic
   max-iterations  max-corrections  correction  sites-file
   log-level  changelog  excision  engine  output

Excision reasons:`)
	for _, r := range []excise.Reason{excise.LowSNR, excise.LargeResidual, excise.LargeError, excise.LargeDMResidual} {
		fmt.Printf("   %s\n", r)
	}
	fmt.Print(`
Changelog tags:
  `)
	for _, t := range changelog.Tags {
		fmt.Print(" ", t)
	}
	fmt.Println(`

For full documentation:
   go doc github.com/cuantar/timing-analysis`)
}
