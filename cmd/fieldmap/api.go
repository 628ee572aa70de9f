package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"sync"

	sse "github.com/alexandrevicenzi/go-sse"
	"github.com/gorilla/mux"

	"github.com/mastercactapus/fieldmap/machine"
)

var (
	errBusy     = errors.New("a run is already in progress")
	errNotHomed = errors.New("stages are not homed")
	errHoming   = errors.New("homing cannot be stopped")
)

type api struct {
	http.Handler
	app *app
	sse *sse.Server

	mx       sync.Mutex
	seq      *machine.Sequencer
	closeSeq func()
	cancel   context.CancelFunc
	done     chan struct{}
	homing   bool
}

type stateEvent struct {
	State string `json:"state"`
	Busy  bool   `json:"busy"`
	Error string `json:"error,omitempty"`
}

type recordEvent struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Z        float64 `json:"z"`
	Rotation float64 `json:"rotation"`
	Status   string  `json:"status"`
	Value    float64 `json:"value,omitempty"`
	Unit     string  `json:"unit,omitempty"`
	Reason   string  `json:"reason,omitempty"`
}

func newAPI(app *app) *api {
	r := mux.NewRouter()
	a := &api{
		Handler: r,
		app:     app,
		sse: sse.NewServer(&sse.Options{
			Logger: log.New(io.Discard, "", 0),
		}),
	}

	r.HandleFunc("/api/state", a.state).Methods("GET")
	r.HandleFunc("/api/generate", a.generate).Methods("POST")
	r.HandleFunc("/api/home", a.home).Methods("POST")
	r.HandleFunc("/api/run", a.run).Methods("POST")
	r.HandleFunc("/api/stop", a.stop).Methods("POST")
	r.PathPrefix("/data/").Handler(http.StripPrefix("/data", http.FileServer(http.Dir(app.dir)))).Methods("GET")
	r.PathPrefix("/events/").Handler(a.sse)

	return a
}

func (a *api) Close() {
	a.mx.Lock()
	cancel, done := a.cancel, a.done
	a.mx.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}

	a.mx.Lock()
	if a.closeSeq != nil {
		a.closeSeq()
		a.seq, a.closeSeq = nil, nil
	}
	a.mx.Unlock()
	a.sse.Shutdown()
}

func (a *api) send(channel string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("ERROR: marshal json: %+v", err)
		return
	}
	a.sse.SendMessage(channel, sse.SimpleMessage(string(data)))
}

func (a *api) current() stateEvent {
	a.mx.Lock()
	defer a.mx.Unlock()
	ev := stateEvent{State: machine.Idle.String(), Busy: a.cancel != nil}
	if a.seq != nil {
		ev.State = a.seq.State().String()
	}
	return ev
}

func (a *api) onState(st machine.State) {
	// runs on the job goroutine; must not take a.mx
	a.send("/events/state", stateEvent{State: st.String(), Busy: true})
}

func (a *api) writeRecord(rec machine.Record) error {
	a.send("/events/records", recordEvent{
		X:        rec.X,
		Y:        rec.Y,
		Z:        rec.Z,
		Rotation: rec.R,
		Status:   rec.Status.String(),
		Value:    rec.Value,
		Unit:     rec.Unit,
		Reason:   rec.Reason,
	})
	return nil
}

// sequencer returns the current sequencer, replacing an aborted one. a.mx
// must be held.
func (a *api) sequencer() (*machine.Sequencer, error) {
	if a.seq != nil && a.seq.State() != machine.Aborted {
		return a.seq, nil
	}
	if a.closeSeq != nil {
		a.closeSeq()
		a.seq, a.closeSeq = nil, nil
	}
	seq, closeSeq, err := a.app.newSequencer(a.onState)
	if err != nil {
		return nil, err
	}
	a.seq, a.closeSeq = seq, closeSeq
	return seq, nil
}

// start runs job in the background. Only one job runs at a time.
func (a *api) start(needHome, homing bool, job func(context.Context, *machine.Sequencer) error) error {
	a.mx.Lock()
	defer a.mx.Unlock()
	if a.cancel != nil {
		return errBusy
	}
	seq, err := a.sequencer()
	if err != nil {
		return err
	}
	if needHome && !seq.State().Ready() {
		return errNotHomed
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	a.cancel, a.done, a.homing = cancel, done, homing
	go func() {
		defer close(done)
		err := job(ctx, seq)

		a.mx.Lock()
		a.cancel, a.done, a.homing = nil, nil, false
		a.mx.Unlock()
		cancel()

		ev := stateEvent{State: seq.State().String()}
		if err != nil {
			log.Printf("ERROR: job: %+v", err)
			ev.Error = err.Error()
		}
		a.send("/events/state", ev)
	}()
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Println("ERROR: encode:", err)
	}
}

func (a *api) startError(w http.ResponseWriter, err error) {
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, a.current())
	case errors.Is(err, errBusy), errors.Is(err, errNotHomed):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		log.Printf("ERROR: start: %+v", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (a *api) state(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, a.current())
}

func (a *api) generate(w http.ResponseWriter, req *http.Request) {
	a.mx.Lock()
	busy := a.cancel != nil
	a.mx.Unlock()
	if busy {
		http.Error(w, errBusy.Error(), http.StatusConflict)
		return
	}

	res, err := a.app.generate()
	if err != nil {
		log.Printf("ERROR: generate: %+v", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *api) home(w http.ResponseWriter, req *http.Request) {
	a.startError(w, a.start(false, true, func(ctx context.Context, seq *machine.Sequencer) error {
		return seq.Home(ctx)
	}))
}

func (a *api) run(w http.ResponseWriter, req *http.Request) {
	edges := req.FormValue("edges") == "1"
	a.startError(w, a.start(true, false, func(ctx context.Context, seq *machine.Sequencer) error {
		return a.app.scan(ctx, seq, edges, machine.RecordWriterFunc(a.writeRecord))
	}))
}

func (a *api) stop(w http.ResponseWriter, req *http.Request) {
	a.mx.Lock()
	cancel, homing := a.cancel, a.homing
	a.mx.Unlock()
	if cancel == nil {
		http.Error(w, "nothing is running", http.StatusConflict)
		return
	}
	if homing {
		http.Error(w, errHoming.Error(), http.StatusConflict)
		return
	}
	cancel()
	w.WriteHeader(http.StatusAccepted)
}
