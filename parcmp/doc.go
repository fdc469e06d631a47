/*
Command parcmp compares two pulsar timing models parameter by parameter.

  Usage: parcmp [options] <reference.par> <current.par> [threshold]
    -a=false: list all differences, not only significant ones
    -dmx=false: include DMX parameters
    -e=false: convert equatorial models to ecliptic before comparing
    -v=false: display version and copyright

A numeric parameter differs significantly when the change in its value is
more than threshold times its uncertainty.  The uncertainty is taken from
the current model, or from the reference model when the current one has
none.  The default threshold is 3.  Parameters with text values, such as
BINARY or UNITS, differ significantly whenever the text changes, and so
do parameters present in only one of the models.

Values are compared as exact decimals, so changes in the last digits of
F0 are seen even when they are far below float64 resolution.

DMX parameters are skipped unless -dmx is given; a refit normally moves
every one of them a little and they drown out the rest.

With -e, a model in RAJ/DECJ is converted to ELONG/ELAT first so it can
be compared with an ecliptic one.

Example:

  $ parcmp J1909-3744_PINT_20260901.nb.par J1909-3744_PINT_20261018.nb.par

  Reference:  J1909-3744_PINT_20260901.nb.par
              α 19ʰ09ᵐ47.438ˢ δ -37°44′14.52″ (λ 284.220864° β -15.155818°)
  Current:    J1909-3744_PINT_20261018.nb.par
              α 19ʰ09ᵐ47.438ˢ δ -37°44′14.52″ (λ 284.220864° β -15.155818°)
  Threshold:  3σ
  Differing:  14
  Significant: 1

  Parameter                         Reference                    Current        σ
  F0                   339.31568728824689431     339.31568728824691238     4.52 *

Parameters flagged * are significant.
*/
package main
