package spjs

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mastercactapus/fieldmap/probe"
)

// fakeServer answers "open" by streaming frames for the opened port, split
// across message boundaries.
func fakeServer(t *testing.T, frames []string) (*httptest.Server, chan string) {
	t.Helper()
	cmds := make(chan string, 10)
	up := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		for {
			_, data, err := ws.ReadMessage()
			if err != nil {
				return
			}
			cmd := string(data)
			cmds <- cmd
			switch {
			case cmd == "list":
				ws.WriteMessage(websocket.TextMessage, []byte(`{"SerialPorts":[{"Name":"COM3","IsOpen":false,"Baud":9600}]}`))
			case strings.HasPrefix(cmd, "open "):
				ws.WriteMessage(websocket.TextMessage, []byte(cmd)) // echo
				for _, f := range frames {
					ws.WriteMessage(websocket.TextMessage, []byte(`{"P":"COM3","D":"`+f+`"}`))
				}
				ws.WriteMessage(websocket.TextMessage, []byte(`{"P":"COM9","D":"9.99G\n"}`))
			}
		}
	}))
	return srv, cmds
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestOpener_ReadLines(t *testing.T) {
	srv, cmds := fakeServer(t, []string{`noise\n1.2`, `3G\n`, `-4.5G\n`})
	defer srv.Close()
	c := NewClient(wsURL(srv))
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	o := &Opener{Client: c, ReadTimeout: 2 * time.Second}
	ch, err := o.Open(ctx, "COM3", 9600)
	require.NoError(t, err)

	var lines []string
	for range 3 {
		l, err := ch.ReadLine(ctx)
		require.NoError(t, err)
		lines = append(lines, l)
	}
	assert.Equal(t, []string{"noise\n", "1.23G\n", "-4.5G\n"}, lines)

	ch.(*Channel).timeout = 50 * time.Millisecond
	_, err = ch.ReadLine(ctx)
	assert.Equal(t, probe.ErrNoLine, err)

	require.NoError(t, ch.Close())
	assert.Equal(t, "list", <-cmds)
	assert.Equal(t, "open COM3 9600", <-cmds)
	assert.Equal(t, "close COM3", <-cmds)
	assert.Equal(t, []SerialPort{{Name: "COM3", Baud: 9600}}, c.SerialPorts())
}

func TestOpener_ProbeLoop(t *testing.T) {
	srv, _ := fakeServer(t, []string{`garbage\n`, `0.01G\n`, `bad\n`, `12.5G\n`})
	defer srv.Close()
	c := NewClient(wsURL(srv))
	defer c.Close()

	l := &probe.Loop{
		Opener:  &Opener{Client: c, ReadTimeout: time.Second},
		Port:    "COM3",
		Baud:    9600,
		Timeout: 5 * time.Second,
		Discard: 2,
	}
	defer l.Close()

	r, err := l.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, probe.Reading{Value: 12.5, Unit: "G"}, r)
}

func TestParseMessage(t *testing.T) {
	for data, want := range map[string]any{
		`{"Error":"port busy"}`:              &ErrorMessage{Error: "port busy"},
		`{"P":"COM1","D":"1.0G"}`:            &DataFrame{Port: "COM1", Data: "1.0G"},
		`{"Cmd":"Complete","Id":"x","P":""}`: &CmdStatus{Cmd: "Complete", ID: "x"},
	} {
		var msg map[string]json.RawMessage
		require.NoError(t, json.Unmarshal([]byte(data), &msg))
		got, err := parseMessage([]byte(data), msg)
		require.NoError(t, err, data)
		assert.Equal(t, want, got, data)
	}
}
