// Public domain.

// Package sessionlog saves a record of a timing session for later audit.
//
// A session file is a zstd compressed gob stream holding a header string,
// a format version and one Record.
package sessionlog

import (
	"encoding/gob"
	"fmt"
	"os"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/cuantar/timing-analysis/internal/fitloop"
	"github.com/cuantar/timing-analysis/internal/timingerr"
)

// Ext is the session file extension.
const Ext = ".session.zst"

const (
	header  = "timing-analysis session"
	version = 1
)

// Excision is one withheld observation.
type Excision struct {
	ID, Reason string
}

// Step is one delta of the session's change log.
type Step struct {
	Kind        string
	Iteration   int
	Time        time.Time
	Model       string // parameter file text, "" if unchanged
	Excised     []Excision
	Note        string
	HasStats    bool
	N           int
	RMS, WRMS   float64
	ReducedChi2 float64
}

// Record is the saved form of a session.
type Record struct {
	SessionID  string
	Source     string
	TOAType    string
	Started    time.Time
	Finished   time.Time
	State      string
	Error      string
	ErrorKind  string
	Iterations int
	TOAs       int
	BaseModel  string
	FinalModel string
	Excised    []Excision
	Steps      []Step
}

// FromSession builds a record of s.
func FromSession(s *fitloop.Session, source, toaType string, started time.Time) *Record {
	r := &Record{
		SessionID:  s.ID().String(),
		Source:     source,
		TOAType:    toaType,
		Started:    started,
		Finished:   time.Now(),
		State:      s.State().String(),
		Iterations: s.Iterations(),
		TOAs:       len(s.TOAs()),
		BaseModel:  s.Base().String(),
		FinalModel: s.Model().String(),
	}
	if err := s.Err(); err != nil {
		r.Error = err.Error()
		r.ErrorKind = timingerr.KindOf(err).String()
	}
	x := s.Excised()
	for _, id := range x.IDs() {
		reason, _ := x.Reason(id)
		r.Excised = append(r.Excised, Excision{ID: string(id), Reason: reason})
	}
	for _, d := range s.Deltas() {
		st := Step{
			Kind:      d.Kind.String(),
			Iteration: d.Iteration,
			Time:      d.Time,
			Note:      d.Note,
		}
		if d.Model != nil {
			st.Model = d.Model.String()
		}
		for i, id := range d.Excised {
			st.Excised = append(st.Excised, Excision{ID: string(id), Reason: d.Reasons[i]})
		}
		if d.Stats != nil {
			st.HasStats = true
			st.N = d.Stats.N
			st.RMS = d.Stats.RMS
			st.WRMS = d.Stats.WRMS
			st.ReducedChi2 = d.Stats.ReducedChi2
		}
		r.Steps = append(r.Steps, st)
	}
	return r
}

// WriteFile writes r to fn.
func WriteFile(fn string, r *Record) (err error) {
	f, err := os.Create(fn)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	zw, err := zstd.NewWriter(f)
	if err != nil {
		return err
	}
	enc := gob.NewEncoder(zw)
	if err = enc.Encode(header); err != nil {
		zw.Close()
		return err
	}
	if err = enc.Encode(version); err != nil {
		zw.Close()
		return err
	}
	if err = enc.Encode(r); err != nil {
		zw.Close()
		return err
	}
	return zw.Close()
}

// ReadFile reads a record written by WriteFile.
func ReadFile(fn string) (*Record, error) {
	f, err := os.Open(fn)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	zr, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	dec := gob.NewDecoder(zr)
	var h string
	if err = dec.Decode(&h); err != nil {
		return nil, fmt.Errorf("%s: %w", fn, err)
	}
	if h != header {
		return nil, fmt.Errorf("%s: not a session file", fn)
	}
	var v int
	if err = dec.Decode(&v); err != nil {
		return nil, err
	}
	if v != version {
		return nil, fmt.Errorf("%s: session format %d, want %d", fn, v, version)
	}
	var r Record
	if err = dec.Decode(&r); err != nil {
		return nil, err
	}
	return &r, nil
}
