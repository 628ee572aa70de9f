// Package zaber drives a daisy chain of Zaber stages over the ASCII protocol.
package zaber

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mastercactapus/fieldmap/machine"
)

// Default resolutions of the reference stages.
const (
	// LinearResolution is the distance of one microstep in mm.
	LinearResolution = 0.000047625

	// RotaryResolution is the angle of one microstep in degrees.
	RotaryResolution = 0.000234375
)

// ErrNoReply is returned when the addressed device stays silent.
var ErrNoReply = errors.New("no reply from device")

// RejectedError is returned for an "RJ" reply.
type RejectedError struct {
	Command string
	Reason  string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("command %q rejected: %s", e.Command, e.Reason)
}

// Conn is a connection to a chain of devices. Commands are serialized; one
// command is in flight at a time.
type Conn struct {
	rw io.ReadWriter

	mx      sync.Mutex
	pending []byte

	// MaxSilentReads is the number of consecutive empty reads tolerated
	// while waiting for a reply.
	MaxSilentReads int

	// PollInterval is the pause between idle checks.
	PollInterval time.Duration

	Linear, Rotary float64
}

var _ machine.Driver = &Conn{}

// NewConn creates a new Conn using rw. A Read returning no data and no
// error is treated as a read timeout.
func NewConn(rw io.ReadWriter) *Conn {
	return &Conn{
		rw:             rw,
		MaxSilentReads: 10,
		PollInterval:   50 * time.Millisecond,
		Linear:         LinearResolution,
		Rotary:         RotaryResolution,
	}
}

// Close closes the underlying ReadWriter, if it implements io.Closer.
func (c *Conn) Close() error {
	if closer, ok := c.rw.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

var errSilent = errors.New("read timeout")

// readLine returns the next line, or errSilent if nothing complete arrived.
func (c *Conn) readLine() (string, error) {
	buf := make([]byte, 256)
	for {
		if i := bytes.IndexByte(c.pending, '\n'); i >= 0 {
			line := string(c.pending[:i])
			c.pending = c.pending[i+1:]
			return line, nil
		}
		n, err := c.rw.Read(buf)
		c.pending = append(c.pending, buf[:n]...)
		if err != nil && !errors.Is(err, io.EOF) {
			return "", err
		}
		if n == 0 {
			return "", errSilent
		}
	}
}

func (c *Conn) write(addr, axis int, cmd string) (string, error) {
	var line string
	switch {
	case addr == 0:
		line = "/" + cmd
	case axis == 0:
		line = fmt.Sprintf("/%d %s", addr, cmd)
	default:
		line = fmt.Sprintf("/%d %d %s", addr, axis, cmd)
	}
	line = strings.TrimSpace(line)
	_, err := io.WriteString(c.rw, line+"\n")
	return line, err
}

// Command sends cmd to one device (axis 0 addresses the whole device) and
// waits for its reply. Info and alert messages are skipped.
func (c *Conn) Command(ctx context.Context, addr, axis int, cmd string) (*Reply, error) {
	c.mx.Lock()
	defer c.mx.Unlock()

	line, err := c.write(addr, axis, cmd)
	if err != nil {
		return nil, err
	}
	silent := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s, err := c.readLine()
		if errors.Is(err, errSilent) {
			silent++
			if silent > c.MaxSilentReads {
				return nil, fmt.Errorf("%s: %w", line, ErrNoReply)
			}
			continue
		}
		if err != nil {
			return nil, err
		}
		silent = 0
		if len(s) == 0 || s[0] != '@' {
			continue
		}
		r, err := parseReply(s)
		if err != nil {
			log.Println("ERROR: parse reply:", err)
			continue
		}
		if r.Device != addr || r.Axis != axis {
			continue
		}
		if r.Rejected {
			return r, &RejectedError{Command: line, Reason: r.Data}
		}
		return r, nil
	}
}

// DetectDevices broadcasts an empty command and collects every reply until
// the chain goes quiet.
func (c *Conn) DetectDevices(ctx context.Context) ([]machine.Device, error) {
	c.mx.Lock()
	defer c.mx.Unlock()

	if _, err := c.write(0, 0, ""); err != nil {
		return nil, err
	}
	seen := map[int]bool{}
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s, err := c.readLine()
		if errors.Is(err, errSilent) {
			break
		}
		if err != nil {
			return nil, err
		}
		r, err := parseReply(s)
		if err != nil {
			continue
		}
		seen[r.Device] = true
	}

	addrs := make([]int, 0, len(seen))
	for a := range seen {
		addrs = append(addrs, a)
	}
	sort.Ints(addrs)
	devs := make([]machine.Device, len(addrs))
	for i, a := range addrs {
		devs[i] = &Device{c: c, addr: a}
	}
	return devs, nil
}
