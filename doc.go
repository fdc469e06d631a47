/*
Command timing-analysis fits pulsar timing models, excises outlying TOAs
and publishes the result.

Contents

  Program overview
  Command line usage
  Configuration
  Fitting engine
  Output files
  Related commands


Program overview

Input is a timing model (a tempo2 style parameter file) and one or more
files of times of arrival (TOAs) for a single pulsar, all narrowband or all
wideband.  The program fits the model to the TOAs, looks for outlying TOAs,
excises them and fits again, until a fit produces no new outliers.  The
fitted model is then written to the results directory under a new name,
together with a copy of the TOAs marked with -cut flags.

Fits are done by an external engine, normally a small wrapper around PINT.
Timing-analysis does no timing arithmetic itself; it drives the engine,
keeps track of which TOAs are excised and why, and records every step.

TOAs whose -snr flag is below snr-cut are dropped before the first fit,
along with those named in the excision block.

Each fit is followed by a review of the residuals.  A TOA is an outlier if
any of these hold:

  outlier    |residual / uncertainty| exceeds excision.sigma-threshold, and
             |residual| exceeds excision.threshold-us if that is set
  maxerr     its uncertainty exceeds excision.max-error-us
  dmoutlier  wideband only, its DM residual exceeds excision.threshold-dm
             and is significant at sigma-threshold

Candidates are ordered by significance, largest first, with ties broken by
MJD and then by TOA identifier.  excision.max-candidates limits how many are
excised per iteration.  An excised TOA is never refit.

If a fit fails to converge and correction is configured, the program may
freeze parameters or trim the latest part of the data set and fit again,
at most max-corrections times.  Any other failure stops the run.


Command line usage

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

-check reads the configuration, model and TOAs, applies the ignore block
and checks the free parameters, without running the engine.

-changelog formats an entry for the changelog block of a configuration,
dated today and signed with the local part of git's user.email.  Valid tags
are INIT, READY_FOR, ADD, REMOVE, BINARY, NOISE, CURATE, NOTE and TEST.


Configuration

The configuration is a YAML file, one per pulsar and TOA type.  A starter
file can be written with tinit.  Example:

  source: J1909-3744
  toa-type: NB
  par-file: J1909-3744_PINT_20260901.nb.par
  tim-files: [J1909-3744.Rcvr1_2.GUPPI.tim, J1909-3744.Rcvr_800.GUPPI.tim]
  free-params: [ELONG, ELAT, PMELONG, PMELAT, PX, F0, F1, A1, PB, TASC, EPS1, EPS2]
  free-dmx: true
  snr-cut: 8
  excision:
    sigma-threshold: 5
    bad-toa:
      - [guppi_55000_J1909-3744_0001.ff, 7, 0]
    bad-range:
      - [55100, 55110, PUPPI]
  engine:
    command: pint-fit

Relative par-file and tim-files are taken from par-directory (default
"results") and tim-directory (default "tim"), themselves relative to the
configuration file.  free-params must include ELONG, ELAT, PMELONG, PMELAT,
PX, F0 and F1.  excision.sigma-threshold has no default.

Any key can be overridden from the environment with the prefix TIMING_,
upper case, dashes and dots replaced by underscores:

  TIMING_EXCISION_SIGMA_THRESHOLD=4 timing-analysis J1909-3744.nb.yaml

A file .env beside the configuration is read into the environment first.

With sites-file set, TOA site codes are checked against a tempo2
observatories.dat file, which is downloaded if missing.  Each site in use
is logged with its longitude and latitude.

With fe-jumps (default true), every frontend but one without a JUMP gets a
free phase jump, and for wideband TOAs every frontend without a DMJUMP gets
one.  Numbered names such as JUMP1 in free-params refer to the model's
jumps in file order.

Unknown keys under excision are an error.  Keys given with no value are
logged as unset.  excision.epoch-drop-threshold, between 0 and 1, enables
the epoch drop test after the loop converges: each epoch is withheld in
turn, the fit is repeated, and epochs whose F-test probability is below
the threshold are cut with reason epochdrop before the loop resumes.  The
report then lists each epoch's probability.  The report also counts TOAs
per cut reason.


Fitting engine

engine.command is run once per fit as

  <command> <args...> --par FILE --tim FILE --toa-type nb|wb --fitter NAME
      --free LIST --out FILE [--ephem NAME] [--bipm NAME]

and must write a JSON document to the --out file holding the fitted
parameters, one residual per input TOA in file order, chi-square, degrees
of freedom and a converged flag.  A failure may be reported as an error
object with a kind such as "FitDivergence".


Output files

  results/<source>_PINT_<YYYYMMDD>.<nb|wb>.par
      the fitted model.  A name already used, in results or in the
      archive, gets a _1, _2 ... suffix.  Previously active models of the
      same source and type are moved to results/archive.  If the fitted
      model is identical to an active one nothing is written.
  results/<source>_PINT_<YYYYMMDD>_excise.tim
      all TOAs, excised ones carrying -cut <reason>.
  logs/<source>.<nb|wb>.<YYYY-MM-DD_HH:MM:SS>.log
      the run log.
  logs/<source>.<nb|wb>.<YYYY-MM-DD_HH:MM:SS>.session.zst
      a compressed record of every step, for -show.


Related commands

tinit writes starter configurations.  parcmp compares two models parameter
by parameter.

-------------
Public domain.
*/
package main
