package probe

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/tarm/serial"
)

// ErrNoLine is returned by Channel.ReadLine when the device produced no
// complete line before its read timeout. It is not a connection failure.
var ErrNoLine = errors.New("no complete line")

// A Channel is an open connection to the sensor.
type Channel interface {
	ReadLine(ctx context.Context) (string, error)
	Close() error
}

// An Opener opens channels to the sensor.
type Opener interface {
	Open(ctx context.Context, port string, baud int) (Channel, error)
}

// SerialOpener opens a local serial port.
type SerialOpener struct {
	// ReadTimeout bounds a single read; defaults to one second.
	ReadTimeout time.Duration
}

var _ Opener = SerialOpener{}

func (o SerialOpener) Open(_ context.Context, port string, baud int) (Channel, error) {
	timeout := o.ReadTimeout
	if timeout <= 0 {
		timeout = time.Second
	}
	p, err := serial.OpenPort(&serial.Config{Name: port, Baud: baud, ReadTimeout: timeout})
	if err != nil {
		return nil, err
	}
	return NewLineChannel(p), nil
}

// LineChannel splits a byte stream into lines. A read that returns io.EOF
// with no error is treated as a read timeout.
type LineChannel struct {
	rc  io.ReadCloser
	r   *bufio.Reader
	buf strings.Builder
}

// NewLineChannel returns a Channel reading lines from rc.
func NewLineChannel(rc io.ReadCloser) *LineChannel {
	return &LineChannel{rc: rc, r: bufio.NewReader(rc)}
}

func (c *LineChannel) ReadLine(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	chunk, err := c.r.ReadString('\n')
	c.buf.WriteString(chunk)
	switch {
	case err == nil:
		line := c.buf.String()
		c.buf.Reset()
		return line, nil
	case errors.Is(err, io.EOF):
		// partial lines are kept for the next call
		return "", ErrNoLine
	default:
		return "", err
	}
}

func (c *LineChannel) Close() error { return c.rc.Close() }
