package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mastercactapus/fieldmap/config"
	"github.com/mastercactapus/fieldmap/machine"
	"github.com/mastercactapus/fieldmap/store"
)

type fakeDriver struct {
	mx    sync.Mutex
	moves int

	// homeGate, if set, holds every device Home until closed.
	homeGate chan struct{}
}

func (d *fakeDriver) DetectDevices(context.Context) ([]machine.Device, error) {
	devs := make([]machine.Device, 4)
	for i := range devs {
		devs[i] = &fakeDevice{d: d, addr: i + 1}
	}
	return devs, nil
}
func (d *fakeDriver) Close() error { return nil }

type fakeDevice struct {
	d    *fakeDriver
	addr int
}

func (f *fakeDevice) Address() int { return f.addr }
func (f *fakeDevice) Home(ctx context.Context) error {
	if f.d.homeGate != nil {
		<-f.d.homeGate
	}
	return ctx.Err()
}
func (f *fakeDevice) Axis(int) machine.Axis               { return f }
func (f *fakeDevice) WaitUntilIdle(context.Context) error { return nil }
func (f *fakeDevice) WarningFlags(context.Context) ([]string, error) {
	return nil, nil
}
func (f *fakeDevice) SetAcceleration(context.Context, float64) error { return nil }
func (f *fakeDevice) MoveAbsolute(context.Context, float64, machine.Unit, bool) error {
	f.d.mx.Lock()
	f.d.moves++
	f.d.mx.Unlock()
	return nil
}

func testProfile() config.Profile {
	p := config.Default()
	p.XRange, p.XSpacing = 20, 10
	p.YRange, p.YSpacing = 20, 10
	p.ZRange, p.ZSpacing = 10, 10
	p.RotationPoints = []float64{0}
	p.XOffset, p.YOffset, p.ZOffset = 250, 250, 500
	p.CommPortStage = "/dev/null"
	return p
}

func testServer(t *testing.T, p config.Profile) (*httptest.Server, *app, *fakeDriver) {
	t.Helper()
	dir := t.TempDir()
	db, err := store.Open(filepath.Join(dir, "runs.db"))
	require.NoError(t, err)

	drv := &fakeDriver{}
	a := &app{
		name:       "bench",
		prof:       p,
		baseDir:    dir,
		dir:        dir,
		db:         db,
		openDriver: func(string) (machine.Driver, error) { return drv, nil },
	}
	api := newAPI(a)
	srv := httptest.NewServer(api)
	t.Cleanup(func() {
		srv.Close()
		api.Close()
		a.Close()
	})
	return srv, a, drv
}

func post(t *testing.T, url string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "text/plain", nil)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func getState(t *testing.T, base string) stateEvent {
	t.Helper()
	resp, err := http.Get(base + "/api/state")
	require.NoError(t, err)
	defer resp.Body.Close()
	var ev stateEvent
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&ev))
	return ev
}

func waitFor(t *testing.T, base, state string) {
	t.Helper()
	require.Eventually(t, func() bool {
		ev := getState(t, base)
		return !ev.Busy && ev.State == state
	}, 5*time.Second, 10*time.Millisecond, "waiting for %s", state)
}

func TestAPI_GenerateHomeRun(t *testing.T) {
	srv, a, drv := testServer(t, testProfile())

	assert.Equal(t, stateEvent{State: "Idle"}, getState(t, srv.URL))

	resp := post(t, srv.URL+"/api/run")
	assert.Equal(t, http.StatusConflict, resp.StatusCode, "not homed")

	resp = post(t, srv.URL+"/api/generate")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var gen generated
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&gen))
	assert.Equal(t, 18, gen.Points)
	assert.Equal(t, 12, gen.EdgePoints)
	assert.Equal(t, "18.0 seconds", gen.Estimate)
	assert.Empty(t, gen.Warnings)

	pathResp, err := http.Get(srv.URL + "/data/path.csv")
	require.NoError(t, err)
	pathResp.Body.Close()
	assert.Equal(t, http.StatusOK, pathResp.StatusCode)

	resp = post(t, srv.URL+"/api/home")
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	waitFor(t, srv.URL, "Homed")

	resp = post(t, srv.URL+"/api/run")
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	waitFor(t, srv.URL, "Complete")

	drv.mx.Lock()
	assert.Equal(t, 18*4, drv.moves)
	drv.mx.Unlock()

	runs, err := a.db.Runs()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, store.KindFull, runs[0].Kind)
	assert.Equal(t, "bench", runs[0].Profile)
	assert.Equal(t, "Complete", runs[0].State)
	assert.Equal(t, 18, runs[0].Points)

	recs, err := a.db.Records(runs[0].ID)
	require.NoError(t, err)
	assert.Len(t, recs, 18)
	assert.Equal(t, machine.Moved, recs[0].Status)
}

func TestAPI_Stop(t *testing.T) {
	srv, _, _ := testServer(t, testProfile())

	resp := post(t, srv.URL+"/api/stop")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestAPI_StopWhileHoming(t *testing.T) {
	srv, _, drv := testServer(t, testProfile())
	drv.homeGate = make(chan struct{})

	resp := post(t, srv.URL+"/api/home")
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.True(t, getState(t, srv.URL).Busy)

	resp = post(t, srv.URL+"/api/stop")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	close(drv.homeGate)
	waitFor(t, srv.URL, "Homed")
}

func TestAPI_GenerateInvalid(t *testing.T) {
	p := testProfile()
	p.XSpacing = 0
	srv, _, _ := testServer(t, p)

	resp := post(t, srv.URL+"/api/generate")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_NoStagePort(t *testing.T) {
	p := testProfile()
	p.CommPortStage = ""
	srv, _, _ := testServer(t, p)

	resp := post(t, srv.URL+"/api/home")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestSetFlags(t *testing.T) {
	var s setFlags
	require.NoError(t, s.Set("x_range=12"))
	require.NoError(t, s.Set("rotation_points=0,90"))
	assert.ErrorContains(t, s.Set("x_range"), "expected key=value")

	p := config.Default()
	require.NoError(t, s.apply(&p))
	assert.Equal(t, 12.0, p.XRange)
	assert.Equal(t, []float64{0, 90}, p.RotationPoints)

	s = setFlags{"bogus=1"}
	assert.ErrorContains(t, s.apply(&p), "unknown setting")
}

func TestInterp(t *testing.T) {
	dir := t.TempDir()
	name := filepath.Join(dir, "data.csv")
	var b strings.Builder
	b.WriteString("X,Y,Z,Rotation,Value,Unit\n")
	for _, row := range []string{"0,0,0,0,0,G", "10,0,0,0,1,G", "0,10,0,0,0,G", "10,10,0,0,1,G"} {
		b.WriteString(row + "\n")
	}
	require.NoError(t, os.WriteFile(name, []byte(b.String()), 0o644))

	assert.NoError(t, interp(name, []string{"0", "0", "5", "5"}))
	assert.ErrorContains(t, interp(name, []string{"0", "0", "50", "5"}), "outside the sampled area")
	assert.ErrorContains(t, interp(name, []string{"0", "0"}), "got 2 values")
	assert.ErrorContains(t, interp(name, []string{"1", "0", "5", "5"}), "plane z=1 r=0")
}
