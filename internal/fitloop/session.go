// Public domain.

// Package fitloop runs the fit-excise-iterate loop of a timing session.
//
// A Session moves through the states
//
//	Loaded -> Fitted -> Reviewed -> Excised -> Loaded ...
//
// until a review proposes no new outliers (Converged) or an error stops it
// (Failed).  Each excision cycle withholds at least one more observation
// and the observation set is finite, so the loop ends even without an
// iteration limit.
package fitloop

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/cuantar/timing-analysis/internal/engine"
	"github.com/cuantar/timing-analysis/internal/excise"
	"github.com/cuantar/timing-analysis/internal/parfile"
	"github.com/cuantar/timing-analysis/internal/tim"
	"github.com/cuantar/timing-analysis/internal/timingerr"
)

// Options configure a Session.
type Options struct {
	Type   tim.Type
	Policy excise.Policy
	Ignore *excise.Ignore // exclusions applied when the session is built

	// FreeParams lists the parameters to fit.  Empty means the fit flags
	// of the base model.
	FreeParams []string

	Fitter, Ephem, BIPM string

	MaxIterations  int // fits allowed, 0 for no limit
	MaxCorrections int // correction attempts allowed, 0 disables Correction
	Correction     CorrectionStrategy

	Log logrus.FieldLogger
}

// DeltaKind classifies a Delta.
type DeltaKind int

const (
	DeltaIgnore DeltaKind = iota + 1 // configured exclusions
	DeltaFit
	DeltaExcise
	DeltaCorrect
)

func (k DeltaKind) String() string {
	switch k {
	case DeltaIgnore:
		return "ignore"
	case DeltaFit:
		return "fit"
	case DeltaExcise:
		return "excise"
	case DeltaCorrect:
		return "correct"
	}
	return fmt.Sprintf("DeltaKind(%d)", int(k))
}

// Delta is one entry of a session's change log.  The current model is the
// Model of the latest delta that has one, else the base model.
type Delta struct {
	Kind      DeltaKind
	Iteration int
	Time      time.Time
	Model     *parfile.Model // nil if unchanged
	Excised   []tim.ObsID
	Reasons   []string // parallel to Excised
	Stats     *Stats   // fit deltas, once reviewed
	Note      string
}

// Session is one timing session for a pulsar.
type Session struct {
	id     uuid.UUID
	base   *parfile.Model
	toas   []tim.TOA
	eng    engine.Engine
	opt    Options
	log    logrus.FieldLogger
	ignore []excise.Exclusion

	state       State
	err         error
	start       *parfile.Model // base with the free set applied
	excised     ExcisionSet
	deltas      []Delta
	last        *engine.FitResult
	lastActive  []tim.TOA
	stats       *Stats
	iteration   int
	corrections int
}

// New builds a session.  base and toas are not modified.  TOAs already
// carrying a -cut flag, those matched by opt.Ignore and those below the
// policy's SNR cut start out excised.
func New(base *parfile.Model, toas []tim.TOA, eng engine.Engine, opt Options) (*Session, error) {
	if err := opt.Policy.Validate(); err != nil {
		return nil, err
	}
	s := &Session{
		id:   uuid.New(),
		base: base.Clone(),
		toas: toas,
		eng:  eng,
		opt:  opt,
	}
	l := opt.Log
	if l == nil {
		nl := logrus.New()
		nl.SetOutput(io.Discard)
		l = nl
	}
	s.log = l.WithField("session", s.id.String()[:8])

	for i := range toas {
		if c, ok := toas[i].Flag("cut"); ok {
			s.ignore = append(s.ignore, excise.Exclusion{ID: toas[i].ID(), Reason: c})
		}
	}
	if opt.Ignore != nil {
		s.ignore = append(s.ignore, opt.Ignore.Apply(toas, opt.Type)...)
	}
	s.ignore = append(s.ignore, opt.Policy.BelowSNR(toas)...)
	s.Reset()
	return s, nil
}

// Reset returns the session to Loaded with only the exclusions it was
// built with.  The base model and observations are unchanged.
func (s *Session) Reset() {
	s.state = Loaded
	s.err = nil
	s.start = nil
	s.excised = ExcisionSet{}
	s.deltas = nil
	s.last = nil
	s.lastActive = nil
	s.stats = nil
	s.iteration = 0
	s.corrections = 0
	if len(s.ignore) > 0 {
		d := Delta{Kind: DeltaIgnore, Time: time.Now()}
		for _, e := range s.ignore {
			if s.excised.Add(e.ID, e.Reason) {
				d.Excised = append(d.Excised, e.ID)
				d.Reasons = append(d.Reasons, e.Reason)
			}
		}
		d.Note = fmt.Sprintf("%d TOAs excluded by configuration", len(d.Excised))
		s.deltas = append(s.deltas, d)
		s.log.WithField("excluded", len(d.Excised)).Info("applied configured exclusions")
	}
}

// ID returns the session identifier.
func (s *Session) ID() uuid.UUID { return s.id }

// State returns the current state.
func (s *Session) State() State { return s.state }

// Err returns the error that failed the session, if any.
func (s *Session) Err() error { return s.err }

// Base returns a copy of the model the session started from.
func (s *Session) Base() *parfile.Model { return s.base.Clone() }

// TOAs returns the session's observations, excised or not.
func (s *Session) TOAs() []tim.TOA { return s.toas }

// Excised returns a copy of the excision set.
func (s *Session) Excised() ExcisionSet { return s.excised.clone() }

// Deltas returns the change log.
func (s *Session) Deltas() []Delta { return append([]Delta{}, s.deltas...) }

// Iterations returns the number of fits run.
func (s *Session) Iterations() int { return s.iteration }

// LastFit returns the latest successful fit, nil before the first.
func (s *Session) LastFit() *engine.FitResult { return s.last }

// Stats returns statistics of the latest reviewed fit.
func (s *Session) Stats() *Stats { return s.stats }

// Model returns the current model.
func (s *Session) Model() *parfile.Model {
	for i := len(s.deltas) - 1; i >= 0; i-- {
		if m := s.deltas[i].Model; m != nil {
			return m
		}
	}
	if s.start != nil {
		return s.start
	}
	return s.base
}

// Active returns the observations not excised.
func (s *Session) Active() []tim.TOA {
	var a []tim.TOA
	for i := range s.toas {
		if !s.excised.Has(s.toas[i].ID()) {
			a = append(a, s.toas[i])
		}
	}
	return a
}

// Run steps the session until it reaches a terminal state and returns the
// error that failed it, if any.
func (s *Session) Run(ctx context.Context) error {
	for !s.state.Terminal() {
		if err := s.Step(ctx); err != nil {
			return err
		}
	}
	return s.err
}

// Step makes one state transition.  In a terminal state it does nothing
// and returns the session error.  Cancellation of ctx fails the session.
func (s *Session) Step(ctx context.Context) error {
	from := s.state
	switch s.state {
	case Loaded:
		s.fit(ctx)
	case Fitted:
		s.review()
	case Reviewed:
		s.excise()
	case Excised:
		s.state = Loaded
	default:
		return s.err
	}
	s.log.WithFields(logrus.Fields{
		"iteration": s.iteration,
		"from":      from,
		"to":        s.state,
	}).Debug("transition")
	return s.err
}

func (s *Session) fail(err error) {
	s.state = Failed
	s.err = err
	s.log.WithFields(logrus.Fields{
		"iteration": s.iteration,
		"kind":      timingerr.KindOf(err),
	}).WithError(err).Error("session failed")
}

// Check validates the free parameter set and timescale against the base
// model without fitting.  A failed check fails the session.
func (s *Session) Check() error {
	if s.state.Terminal() {
		return s.err
	}
	if s.start == nil {
		if err := s.checkPreconditions(); err != nil {
			s.fail(err)
			return err
		}
	}
	return nil
}

// checkPreconditions validates the configuration against the base model
// before the first fit and sets up the starting model.
func (s *Session) checkPreconditions() error {
	free := s.opt.FreeParams
	if len(free) == 0 {
		free = s.base.FreeParams()
	}
	if missing := parfile.MissingRequired(free); len(missing) > 0 {
		return timingerr.New(timingerr.InsufficientParameterSet,
			"free parameters must include %v", missing)
	}
	if ts := s.base.Timescale(); ts != "TDB" {
		return timingerr.New(timingerr.UnsupportedTimescale,
			"model is in %s, only TDB is supported", ts)
	}
	if missing := s.base.MissingFromModel(s.base.Resolve(free)...); len(missing) > 0 {
		return timingerr.New(timingerr.ModelIncompatible,
			"model lacks parameters %v", missing)
	}
	start := s.base.Clone()
	if missing := start.SetFree(start.Resolve(free)); len(missing) > 0 {
		return timingerr.New(timingerr.ModelIncompatible,
			"model lacks parameters %v", missing)
	}
	s.start = start
	return nil
}

func (s *Session) fit(ctx context.Context) {
	if s.start == nil {
		if err := s.checkPreconditions(); err != nil {
			s.fail(err)
			return
		}
	}
	active := s.Active()
	if len(active) == 0 {
		s.fail(timingerr.New(timingerr.EmptyObservationSet,
			"all %d observations are excised", len(s.toas)))
		return
	}
	if err := ctx.Err(); err != nil {
		s.fail(err)
		return
	}
	if s.opt.MaxIterations > 0 && s.iteration >= s.opt.MaxIterations {
		s.fail(timingerr.New(timingerr.IterationLimit,
			"no convergence after %d fits", s.iteration))
		return
	}
	s.iteration++
	model := s.Model()
	req := &engine.FitRequest{
		Model:  model,
		TOAs:   active,
		Type:   s.opt.Type,
		Fitter: s.opt.Fitter,
		Ephem:  s.opt.Ephem,
		BIPM:   s.opt.BIPM,
	}
	s.log.WithFields(logrus.Fields{
		"iteration": s.iteration,
		"toas":      len(active),
		"free":      len(model.FreeParams()),
	}).Info("fitting")
	res, err := s.eng.Fit(ctx, req)
	if err == nil && !res.Converged {
		err = timingerr.New(timingerr.FitDivergence,
			"fit %d did not converge (chi2 %.4g, dof %d)", s.iteration, res.Chi2, res.DOF)
	}
	if err != nil {
		if timingerr.KindOf(err).Recoverable() {
			s.correct(ctx, req, err)
			return
		}
		s.fail(err)
		return
	}
	for _, w := range res.Warnings {
		s.log.WithField("iteration", s.iteration).Warn(w)
	}
	s.last = res
	s.lastActive = active
	s.deltas = append(s.deltas, Delta{
		Kind:      DeltaFit,
		Iteration: s.iteration,
		Time:      time.Now(),
		Model:     res.Model,
	})
	s.state = Fitted
}

// correct consults the correction strategy after a divergent fit.
func (s *Session) correct(ctx context.Context, req *engine.FitRequest, cause error) {
	if s.opt.Correction == nil || s.corrections >= s.opt.MaxCorrections {
		s.fail(cause)
		return
	}
	s.corrections++
	c, err := s.opt.Correction.Correct(ctx, &CorrectionInput{
		Model:   req.Model,
		Active:  req.TOAs,
		Cause:   cause,
		Attempt: s.corrections,
	})
	if err != nil {
		s.fail(fmt.Errorf("correcting %v: %w", cause, err))
		return
	}
	if c == nil {
		s.fail(cause)
		return
	}
	d := Delta{
		Kind:      DeltaCorrect,
		Iteration: s.iteration,
		Time:      time.Now(),
		Model:     c.Model,
		Note:      c.Note,
	}
	for _, e := range c.Exclude {
		if s.excised.Add(e.ID, e.Reason) {
			d.Excised = append(d.Excised, e.ID)
			d.Reasons = append(d.Reasons, e.Reason)
		}
	}
	s.deltas = append(s.deltas, d)
	s.log.WithFields(logrus.Fields{
		"iteration": s.iteration,
		"attempt":   s.corrections,
	}).WithError(cause).Warn("applied correction: " + c.Note)
}

func (s *Session) review() {
	st := ComputeStats(s.last, s.lastActive)
	s.stats = &st
	s.deltas[len(s.deltas)-1].Stats = &st
	s.log.WithFields(logrus.Fields{
		"iteration": s.iteration,
		"rms_us":    fmt.Sprintf("%.4g", st.RMS),
		"wrms_us":   fmt.Sprintf("%.4g", st.WRMS),
		"chi2r":     fmt.Sprintf("%.4g", st.ReducedChi2),
	}).Info("reviewed fit")
	s.state = Reviewed
}

func (s *Session) excise() {
	pts, err := excise.Points(s.last.Residuals, s.lastActive)
	if err != nil {
		s.fail(err)
		return
	}
	d := Delta{Kind: DeltaExcise, Iteration: s.iteration, Time: time.Now()}
	for _, c := range s.opt.Policy.Select(pts) {
		if s.excised.Add(c.ID, c.Reason.Cut()) {
			d.Excised = append(d.Excised, c.ID)
			d.Reasons = append(d.Reasons, c.Reason.Cut())
		}
	}
	if len(d.Excised) == 0 {
		s.state = Converged
		s.log.WithFields(logrus.Fields{
			"iteration": s.iteration,
			"excised":   s.excised.Len(),
		}).Info("converged")
		return
	}
	d.Note = fmt.Sprintf("excised %d TOAs", len(d.Excised))
	s.deltas = append(s.deltas, d)
	s.log.WithFields(logrus.Fields{
		"iteration": s.iteration,
		"new":       len(d.Excised),
		"total":     s.excised.Len(),
	}).Info("excised outliers")
	s.state = Excised
}
