// Public domain.

package tprog

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/soniakeys/exit"

	"github.com/cuantar/timing-analysis/internal/astrom"
	"github.com/cuantar/timing-analysis/internal/config"
	"github.com/cuantar/timing-analysis/internal/engine"
	"github.com/cuantar/timing-analysis/internal/fitloop"
	"github.com/cuantar/timing-analysis/internal/logging"
	"github.com/cuantar/timing-analysis/internal/parfile"
	"github.com/cuantar/timing-analysis/internal/parstore"
	"github.com/cuantar/timing-analysis/internal/sessionlog"
	"github.com/cuantar/timing-analysis/internal/tim"
)

// minSpanYears is the observation span below which a warning is logged.
const minSpanYears = 2

// run holds the state of one invocation on a configuration.
type run struct {
	cl       *commandLine
	cfg      *config.Config
	log      *logrus.Logger
	closeLog func() error
	started  time.Time

	model *parfile.Model
	toas  []tim.TOA
	jumps []string // parameters added by addJumps
}

// newRun loads the configuration and sets up logging.  It terminates on
// error.
func newRun(cl *commandLine) *run {
	cfg, err := config.Load(cl.fnConfig)
	if err != nil {
		exit.Log(err)
	}
	l, err := logging.New(cfg.LogLevel, os.Stderr)
	if err != nil {
		exit.Log(err)
	}
	r := &run{cl: cl, cfg: cfg, log: l, started: time.Now()}
	if !cl.check {
		fn, c, err := logging.Tee(l, cfg.Dir(cfg.Output.LogDir), cfg.Source, cfg.Type, r.started)
		if err != nil {
			exit.Log(err)
		}
		r.closeLog = c
		l.WithField("file", fn).Debug("logging to file")
	}
	for _, a := range cfg.Advisories() {
		l.Warn(a)
	}
	return r
}

func (r *run) close() {
	if r.closeLog != nil {
		r.closeLog()
	}
}

// load reads the model and TOAs.
func (r *run) load() {
	cfg := r.cfg
	m, err := parfile.ReadFile(cfg.ParPath())
	if err != nil {
		exit.Log(err)
	}
	if cfg.ConvertEcliptic {
		changed, err := astrom.ToEcliptic(m)
		if err != nil {
			exit.Log(err)
		}
		if changed {
			r.log.Info("converted model to ecliptic coordinates, " + astrom.EclFrame)
		}
	}
	r.log.WithField("model", filepath.Base(cfg.ParPath())).Info(astrom.Describe(m))
	if psr := m.Source(); psr != "" && psr != cfg.Source {
		r.log.Warnf("source %s does not match model PSR %s", cfg.Source, psr)
	}
	r.model = m

	sites := r.readSites()
	toas, err := tim.Load(cfg.TimPaths(), cfg.Type, tim.Options{Sites: sites})
	if err != nil {
		exit.Log(err)
	}
	r.toas = toas
	for _, s := range sites.Used(toas) {
		r.log.WithFields(logrus.Fields{
			"code": s.Code,
			"lon":  fmt.Sprintf("%.4f°", s.Lon().Deg()),
			"lat":  fmt.Sprintf("%.4f°", s.Lat().Deg()),
		}).Info("site " + s.Name)
	}

	sp := tim.SpanOf(toas, nil)
	first, last := sp.Dates()
	r.log.WithFields(logrus.Fields{
		"toas":   sp.N,
		"first":  first.Format("2006-01-02"),
		"last":   last.Format("2006-01-02"),
		"groups": strings.Join(tim.Groups(toas), " "),
	}).Infof("loaded %s TOAs", cfg.Type)
	if cfg.FEJumps {
		r.addJumps()
	}
	if y := sp.Years(); y < minSpanYears {
		r.log.Warnf("observation span %.2f years is under %d; the fit may be poorly constrained", y, minSpanYears)
	}
	if ig := cfg.Ignore(); ig != nil {
		if keys := ig.InUse(); len(keys) > 0 {
			r.log.Infof("ignore keys set: %s", strings.Join(keys, ", "))
		}
	}
	if keys := cfg.UnsetKeys(); len(keys) > 0 {
		r.log.Infof("excision keys unset: %s", strings.Join(keys, ", "))
	}
}

// addJumps gives all frontends but one a phase jump, and for wideband
// TOAs every frontend a DM jump.
func (r *run) addJumps() {
	fes := tim.Frontends(r.toas)
	added, all := r.model.AddFrontendJumps(fes)
	if all {
		r.log.Warn("all frontends are JUMPed; one JUMP should be removed from the model")
	}
	if r.cfg.Type == tim.Wideband {
		added = append(added, r.model.AddFrontendDMJumps(fes)...)
	}
	for _, id := range added {
		r.log.Infof("added %s", id)
	}
	r.jumps = added
}

// readSites reads the configured observatory file.  If the file is
// missing or unreadable a fresh copy is fetched.  Without sites-file, site
// codes are not checked.
func (r *run) readSites() tim.SiteMap {
	fn := r.cfg.SitesFile
	if fn == "" {
		return nil
	}
	fn = r.cfg.Dir(fn)
	m, readErr := tim.ReadSites(fn)
	if readErr == nil {
		return m
	}
	if err := tim.FetchSites(fn); err != nil {
		r.log.Error(readErr)
		exit.Log(err)
	}
	if m, readErr = tim.ReadSites(fn); readErr != nil {
		exit.Log(readErr)
	}
	return m
}

func (r *run) session(eng engine.Engine) *fitloop.Session {
	cfg := r.cfg
	free := cfg.Free(r.model)
	if free != nil {
		free = append(free, r.jumps...)
	}
	s, err := fitloop.New(r.model, r.toas, eng, fitloop.Options{
		Type:           cfg.Type,
		Policy:         cfg.Policy(),
		Ignore:         cfg.Ignore(),
		FreeParams:     free,
		Fitter:         cfg.Fitter,
		Ephem:          cfg.Ephem,
		BIPM:           cfg.BIPM,
		MaxIterations:  cfg.MaxIterations,
		MaxCorrections: cfg.MaxCorrections,
		Correction:     cfg.Strategy(),
		Log:            r.log,
	})
	if err != nil {
		exit.Log(err)
	}
	return s
}

// check validates everything short of fitting.
func (r *run) check() {
	s := r.session(nil)
	if err := s.Check(); err != nil {
		exit.Log(err)
	}
	r.log.WithField("excluded", s.Excised().Len()).Infof("%s OK", r.cl.fnConfig)
}

func (r *run) engine() engine.Engine {
	e := r.cfg.Engine
	if r.cl.engine > "" {
		e.Command = r.cl.engine
	}
	if e.Command == "" {
		exit.Log("no fitting engine; set engine.command or use -engine")
	}
	return &engine.ExecEngine{
		Command: e.Command,
		Args:    e.Args,
		Env:     e.Env,
		Log:     r.log,
	}
}

// fit runs the session, with the epoch drop test if configured, saves its
// record and publishes the results.
func (r *run) fit() {
	cfg := r.cfg
	s := r.session(r.engine())
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	runErr := s.Run(ctx)
	var epochs []fitloop.EpochTest
	if thr := cfg.Excision.EpochDrop; runErr == nil && thr != nil {
		epochs, runErr = s.DropEpochs(ctx, *thr)
		if runErr == nil && s.State() == fitloop.Loaded {
			runErr = s.Run(ctx)
		}
	}
	stop()

	rec := sessionlog.FromSession(s, cfg.Source, cfg.Type.Abbr(), r.started)
	fn := filepath.Join(cfg.Dir(cfg.Output.LogDir),
		strings.TrimSuffix(logging.SessionFileName(cfg.Source, cfg.Type, r.started), ".log")+sessionlog.Ext)
	if err := sessionlog.WriteFile(fn, rec); err != nil {
		r.log.WithError(err).Error("session record not saved")
	} else {
		r.log.WithField("file", fn).Info("session record saved")
	}
	if runErr != nil {
		exit.Log(runErr)
	}

	ref := s.Base()
	if p := cfg.ComparePath(); p > "" {
		m, err := parfile.ReadFile(p)
		if err != nil {
			exit.Log(err)
		}
		ref = m
	}
	writeReport(os.Stdout, s, parfile.Compare(ref, s.Model(), compareSigma, true), epochs)

	if r.cl.noPublish {
		return
	}
	st := &parstore.Store{
		ResultsDir: cfg.Dir(cfg.Output.ResultsDir),
		ArchiveDir: cfg.Dir(cfg.Output.ArchiveDir),
		Log:        r.log,
	}
	if _, err := st.Publish(s.Model(), cfg.Source, cfg.Type); err != nil {
		exit.Log(err)
	}
	if x := s.Excised(); x.Len() > 0 {
		if _, err := st.WriteExcise(s.TOAs(), x.Cuts(), cfg.Source); err != nil {
			exit.Log(err)
		}
	}
}
