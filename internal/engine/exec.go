// Public domain.

package engine

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/cuantar/timing-analysis/internal/parfile"
	"github.com/cuantar/timing-analysis/internal/tim"
	"github.com/cuantar/timing-analysis/internal/timingerr"
)

// ExecEngine runs an external fitter command once per fit.
//
// The command is invoked as
//
//	Command Args... --par FILE --tim FILE --toa-type nb|wb --fitter NAME
//	    --free LIST --out FILE [--ephem NAME] [--bipm NAME]
//
// and must write a JSON document (see wireResult) to the --out file.
// Residuals refer to TOAs by their zero based line order in the --tim
// file, which holds exactly the requested TOAs.
type ExecEngine struct {
	Command string
	Args    []string
	Env     []string // added to the inherited environment
	TempDir string   // "" for the system default
	Log     logrus.FieldLogger
}

type wireParam struct {
	Name        string `json:"name"` // parameter ID, including any mask selector
	Value       string `json:"value"`
	Uncertainty string `json:"uncertainty,omitempty"`
	Fit         bool   `json:"fit"`
}

type wireResidual struct {
	Index   int      `json:"index"`
	Value   float64  `json:"residual_us"`
	Err     float64  `json:"error_us"`
	DM      *float64 `json:"dm_residual,omitempty"`
	DMError *float64 `json:"dm_error,omitempty"`
}

type wireError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type wireResult struct {
	Converged bool           `json:"converged"`
	Chi2      float64        `json:"chi2"`
	DOF       int            `json:"dof"`
	Params    []wireParam    `json:"params"`
	Residuals []wireResidual `json:"residuals"`
	Warnings  []string       `json:"warnings"`
	Error     *wireError     `json:"error,omitempty"`
}

// Fit implements Engine.
func (e *ExecEngine) Fit(ctx context.Context, req *FitRequest) (*FitResult, error) {
	if e.Command == "" {
		return nil, errors.New("engine command not configured")
	}
	dir, err := os.MkdirTemp(e.TempDir, "timing-fit-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	parFn := filepath.Join(dir, "model.par")
	timFn := filepath.Join(dir, "toas.tim")
	outFn := filepath.Join(dir, "result.json")
	if err := writeWith(parFn, req.Model.Write); err != nil {
		return nil, err
	}
	if err := writeWith(timFn, func(w io.Writer) error {
		return tim.Write(w, req.TOAs, nil)
	}); err != nil {
		return nil, err
	}

	args := append(append([]string{}, e.Args...),
		"--par", parFn,
		"--tim", timFn,
		"--toa-type", req.Type.Abbr(),
		"--fitter", req.Fitter,
		"--free", strings.Join(req.Model.FreeParams(), ","),
		"--out", outFn)
	if req.Ephem != "" {
		args = append(args, "--ephem", req.Ephem)
	}
	if req.BIPM != "" {
		args = append(args, "--bipm", req.BIPM)
	}
	cmd := exec.CommandContext(ctx, e.Command, args...)
	cmd.Env = append(os.Environ(), e.Env...)
	cmd.Dir = dir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	cmd.Stdout = &stderr
	runErr := cmd.Run()
	e.logOutput(&stderr)
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	b, err := os.ReadFile(outFn)
	if err != nil {
		if runErr != nil {
			return nil, fmt.Errorf("engine %s: %w", e.Command, runErr)
		}
		return nil, fmt.Errorf("engine %s wrote no result: %w", e.Command, err)
	}
	var wr wireResult
	if err := json.Unmarshal(b, &wr); err != nil {
		return nil, fmt.Errorf("engine result: %w", err)
	}
	if wr.Error != nil {
		return nil, decodeError(wr.Error)
	}
	if runErr != nil {
		return nil, fmt.Errorf("engine %s: %w", e.Command, runErr)
	}
	return decodeResult(req, &wr)
}

func (e *ExecEngine) logOutput(r io.Reader) {
	if e.Log == nil {
		return
	}
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			e.Log.WithField("engine", filepath.Base(e.Command)).Debug(line)
		}
	}
}

func writeWith(fn string, write func(io.Writer) error) error {
	f, err := os.Create(fn)
	if err != nil {
		return err
	}
	if err = write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func decodeError(we *wireError) error {
	k := timingerr.ParseKind(we.Kind)
	if k == timingerr.Unknown {
		return fmt.Errorf("engine error %s: %s", we.Kind, we.Message)
	}
	return timingerr.New(k, "%s", we.Message)
}

func decodeResult(req *FitRequest, wr *wireResult) (*FitResult, error) {
	m := req.Model.Clone()
	for _, wp := range wr.Params {
		p, ok := m.Get(wp.Name)
		if !ok {
			var err error
			if p, err = parfile.ParseLine(wp.Name + " " + wp.Value); err != nil {
				return nil, fmt.Errorf("engine parameter %q: %w", wp.Name, err)
			}
		}
		p.Value = wp.Value
		p.Uncertainty = wp.Uncertainty
		if wp.Fit || p.HasFit || wp.Uncertainty != "" {
			p.HasFit = true
		}
		p.Fit = wp.Fit
		m.Set(p)
	}
	if len(wr.Residuals) != len(req.TOAs) {
		return nil, fmt.Errorf("engine returned %d residuals for %d TOAs",
			len(wr.Residuals), len(req.TOAs))
	}
	res := make([]Residual, len(req.TOAs))
	seen := make([]bool, len(req.TOAs))
	for _, w := range wr.Residuals {
		if w.Index < 0 || w.Index >= len(req.TOAs) || seen[w.Index] {
			return nil, fmt.Errorf("engine residual index %d invalid", w.Index)
		}
		seen[w.Index] = true
		r := Residual{ID: req.TOAs[w.Index].ID(), Value: w.Value, Err: w.Err}
		if w.DM != nil && w.DMError != nil {
			r.DM, r.DMErr, r.HasDM = *w.DM, *w.DMError, true
		}
		res[w.Index] = r
	}
	return &FitResult{
		Model:     m,
		Residuals: res,
		Chi2:      wr.Chi2,
		DOF:       wr.DOF,
		Converged: wr.Converged,
		Warnings:  wr.Warnings,
	}, nil
}
