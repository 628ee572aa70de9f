package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mastercactapus/fieldmap/config"
	"github.com/mastercactapus/fieldmap/datalog"
	"github.com/mastercactapus/fieldmap/machine"
	"github.com/mastercactapus/fieldmap/machine/zaber"
	"github.com/mastercactapus/fieldmap/probe"
	"github.com/mastercactapus/fieldmap/scanpath"
	"github.com/mastercactapus/fieldmap/spjs"
	"github.com/mastercactapus/fieldmap/store"
)

// probeBackoff is slept after the probe channel fails.
const probeBackoff = 500 * time.Millisecond

type app struct {
	name    string
	prof    config.Profile
	baseDir string
	dir     string

	db     *store.Store
	bridge *spjs.Client

	// openDriver connects to the stage chain.
	openDriver func(port string) (machine.Driver, error)

	once sync.Once
}

func openZaber(port string) (machine.Driver, error) {
	c, err := zaber.Open(port, zaber.PortOptions{})
	if err != nil {
		return nil, err
	}
	return c, nil
}

func newApp(cfgPath, name string, prof config.Profile, dir, dbPath, bridgeURL string) (*app, error) {
	a := &app{
		name:       name,
		prof:       prof,
		baseDir:    filepath.Dir(cfgPath),
		dir:        dir,
		openDriver: openZaber,
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	if dbPath != "" {
		db, err := store.Open(dbPath)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		a.db = db
	}
	if bridgeURL != "" {
		a.bridge = spjs.NewClient(bridgeURL)
	}
	return a, nil
}

func (a *app) Close() error {
	var err error
	a.once.Do(func() {
		if a.bridge != nil {
			a.bridge.Close()
		}
		if a.db != nil {
			err = a.db.Close()
		}
	})
	return err
}

// path resolves an output file name against the data directory.
func (a *app) path(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(a.dir, name)
}

type generated struct {
	Points        int      `json:"points"`
	EdgePoints    int      `json:"edgePoints"`
	Estimate      string   `json:"estimate"`
	EdgesEstimate string   `json:"edgesEstimate"`
	Warnings      []string `json:"warnings,omitempty"`
}

// generate writes the full and boundary path files.
func (a *app) generate() (*generated, error) {
	res := &generated{Warnings: a.prof.CheckTravel()}
	for _, msg := range res.Warnings {
		log.Println("WARN:", msg)
	}

	r, err := a.prof.Region(a.baseDir)
	if err != nil {
		return nil, err
	}
	if err := a.prof.CheckProbe(); err != nil {
		return nil, err
	}
	sw := a.prof.Sweep()
	plan, err := scanpath.Generate(r, sw)
	if err != nil {
		return nil, err
	}
	edges, err := scanpath.Edges(plan.Points, plan.Traversal)
	if err != nil {
		return nil, err
	}
	if err := scanpath.WriteFile(a.path(a.prof.PathFilename), plan.Points); err != nil {
		return nil, err
	}
	if err := scanpath.WriteFile(a.path(a.prof.PathEdgesFilename), edges); err != nil {
		return nil, err
	}

	res.Points = len(plan.Points)
	res.EdgePoints = len(edges)
	res.Estimate = scanpath.FormatEstimate(scanpath.Estimate(res.Points, sw.Dwell))
	res.EdgesEstimate = scanpath.FormatEstimate(scanpath.Estimate(res.EdgePoints, machine.EdgeDwell))
	log.Printf("Generated %d points, estimated run time %s", res.Points, res.Estimate)
	log.Printf("Generated %d boundary points, estimated run time %s", res.EdgePoints, res.EdgesEstimate)
	return res, nil
}

func (a *app) probeLoop() (*probe.Loop, error) {
	if a.prof.CommPortProbe == "" {
		return nil, errors.New("comm_port_probe is required to collect data")
	}
	if err := a.prof.CheckProbe(); err != nil {
		return nil, err
	}
	var op probe.Opener = probe.SerialOpener{}
	if a.bridge != nil {
		op = &spjs.Opener{Client: a.bridge}
	}
	return &probe.Loop{
		Opener:  op,
		Port:    a.prof.CommPortProbe,
		Baud:    a.prof.ProbeBaud,
		Timeout: a.prof.ProbeTimeout(),
		Discard: a.prof.ProbeDiscardLines,
		Backoff: probeBackoff,
	}, nil
}

// newSequencer connects to the stages. The probe is attached only when the
// profile collects data.
func (a *app) newSequencer(onState func(machine.State)) (*machine.Sequencer, func(), error) {
	port := a.prof.StagePort()
	if port == "" {
		return nil, nil, errors.New("comm_port_stage is required")
	}
	cfg := machine.Config{
		Sweep: a.prof.Sweep(),
		Accel: machine.Accel{
			X: a.prof.XAccel,
			Y: a.prof.YAccel,
			Z: a.prof.ZAccel,
		},
		OnState: onState,
	}

	var loop *probe.Loop
	if cfg.Sweep.CollectData {
		var err error
		loop, err = a.probeLoop()
		if err != nil {
			return nil, nil, err
		}
		cfg.Acquirer = loop
	}

	drv, err := a.openDriver(port)
	if err != nil {
		return nil, nil, fmt.Errorf("open stage port %s: %w", port, err)
	}
	cfg.Driver = drv
	seq := machine.New(cfg)

	closeAll := func() {
		if err := seq.Close(); err != nil {
			log.Printf("ERROR: close stages: %+v", err)
		}
		if loop != nil {
			if err := loop.Close(); err != nil {
				log.Printf("ERROR: close probe: %+v", err)
			}
		}
	}
	return seq, closeAll, nil
}

func (a *app) home(ctx context.Context) error {
	seq, done, err := a.newSequencer(nil)
	if err != nil {
		return err
	}
	defer done()
	return seq.Home(ctx)
}

func (a *app) homeAndScan(ctx context.Context, edges bool) error {
	seq, done, err := a.newSequencer(nil)
	if err != nil {
		return err
	}
	defer done()
	if err := seq.Home(ctx); err != nil {
		return err
	}
	return a.scan(ctx, seq, edges)
}

// scan runs the full or boundary path file through seq. Records go to the
// data log (full runs that collect data), the run database and extra.
func (a *app) scan(ctx context.Context, seq *machine.Sequencer, edges bool, extra ...machine.RecordWriter) (err error) {
	name, kind := a.path(a.prof.PathFilename), store.KindFull
	if edges {
		name, kind = a.path(a.prof.PathEdgesFilename), store.KindEdges
	}
	f, err := os.Open(name)
	if err != nil {
		return &scanpath.IOError{Op: "open", Path: name, Err: err}
	}
	defer f.Close()

	writers := append([]machine.RecordWriter(nil), extra...)
	if !edges && bool(a.prof.CollectData) {
		dl, cerr := datalog.Create(a.path(a.prof.DataFilename))
		if cerr != nil {
			return cerr
		}
		defer func() {
			if cerr := dl.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}()
		writers = append(writers, dl)
	}

	var run *store.Run
	if a.db != nil {
		run, err = a.db.Begin(kind, a.name)
		if err != nil {
			return err
		}
		writers = append(writers, run)
	}

	w := machine.MultiWriter(writers...)
	r := scanpath.NewCSVReader(f)
	if edges {
		err = seq.RunEdges(ctx, r, w)
	} else {
		err = seq.Run(ctx, r, w)
	}

	if run != nil {
		if ferr := run.Finish(seq.State(), err); ferr != nil {
			log.Printf("ERROR: record run %s: %+v", run.ID, ferr)
		}
	}
	return err
}
