/*
Command tinit writes a starter configuration for timing-analysis.

Usage

  tinit [options] <source> <par-file> <tim-file>...
  tinit -v

  Options:
    -d <dir>    configuration directory, default the current directory
    -t nb|wb    TOA type
    -s          fetch observatories.dat if not present

Output

The output is a single file, <source>.nb.yaml or <source>.wb.yaml, in the
configuration directory.  An existing file is never replaced.

The file names the given model and TOA files and fills in the usual
starting values for the TOA type:

  fitter        GLSFitter for narrowband, WidebandTOAFitter for wideband
  free-params   ELONG ELAT PMELONG PMELAT PX F0 F1 A1 PB TASC EPS1 EPS2
                JUMP1, and for wideband also DMJUMP1 DMJUMP2
  free-dmx      true
  fe-jumps      true
  snr-cut       8 for narrowband, 25 for wideband
  excision      sigma-threshold 5, empty bad-toa, bad-range and bad-epoch

Edit free-params to suit the binary model before the first run, and add
an INIT entry to the changelog with timing-analysis -changelog.

TOA type

Without -t the type is taken from the tim files, looked for in the tim
subdirectory of the configuration directory.  Files with -pp_dm flags hold
wideband TOAs.  Mixing the two types is an error.

Observatories

With -s, the tempo2 observatory list is downloaded to observatories.dat in
the configuration directory unless a readable copy is already there.  Set
sites-file: observatories.dat in the configuration to have timing-analysis
check TOA site codes against it.
*/
package main
