// Public domain.

// Package timingerr defines the error kinds that halt a timing session.
//
// Every error surfaced by the loop, the loaders and the engine boundary is
// either a *Error or wraps one, so callers can classify failures with
// errors.Is against the exported sentinels:
//
//	if errors.Is(err, timingerr.ErrToaTypeMismatch) { ... }
package timingerr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind int

const (
	Unknown Kind = iota
	FitDivergence
	ModelIncompatible
	InsufficientParameterSet
	ToaTypeMismatch
	UnsupportedTimescale
	EmptyObservationSet
	IterationLimit
)

var kindNames = [...]string{
	Unknown:                  "Unknown",
	FitDivergence:            "FitDivergence",
	ModelIncompatible:        "ModelIncompatible",
	InsufficientParameterSet: "InsufficientParameterSet",
	ToaTypeMismatch:          "ToaTypeMismatch",
	UnsupportedTimescale:     "UnsupportedTimescale",
	EmptyObservationSet:      "EmptyObservationSet",
	IterationLimit:           "IterationLimit",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// Recoverable reports whether a correction strategy may be consulted
// for errors of this kind.  Only a fit that failed to converge qualifies;
// everything else needs an operator.
func (k Kind) Recoverable() bool {
	return k == FitDivergence
}

// Error is a classified failure.
type Error struct {
	Kind Kind
	Msg  string
	Err  error // optional cause
}

func (e *Error) Error() string {
	switch {
	case e.Msg == "" && e.Err == nil:
		return e.Kind.String()
	case e.Err == nil:
		return e.Kind.String() + ": " + e.Msg
	case e.Msg == "":
		return e.Kind.String() + ": " + e.Err.Error()
	}
	return e.Kind.String() + ": " + e.Msg + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so the bare sentinels below
// identify a class of failure regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrFitDivergence            = &Error{Kind: FitDivergence}
	ErrModelIncompatible        = &Error{Kind: ModelIncompatible}
	ErrInsufficientParameterSet = &Error{Kind: InsufficientParameterSet}
	ErrToaTypeMismatch          = &Error{Kind: ToaTypeMismatch}
	ErrUnsupportedTimescale     = &Error{Kind: UnsupportedTimescale}
	ErrEmptyObservationSet      = &Error{Kind: EmptyObservationSet}
	ErrIterationLimit           = &Error{Kind: IterationLimit}
)

// New returns a *Error of kind k with a formatted message.
func New(k Kind, format string, args ...interface{}) error {
	return &Error{Kind: k, Msg: fmt.Sprintf(format, args...)}
}

// Wrap classifies err as kind k.  A nil err returns nil.
func Wrap(k Kind, err error, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: k, Msg: msg, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or Unknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

// ParseKind maps a kind name, as used by external engines, back to a Kind.
// Names are matched case-insensitively and may use dashes, so both
// "FitDivergence" and "fit-divergence" are recognized.
func ParseKind(s string) Kind {
	n := normalize(s)
	for k, name := range kindNames {
		if normalize(name) == n {
			return Kind(k)
		}
	}
	return Unknown
}

func normalize(s string) string {
	b := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '-' || c == '_' || c == ' ':
			continue
		case c >= 'A' && c <= 'Z':
			c += 'a' - 'A'
		}
		b = append(b, c)
	}
	return string(b)
}
