package spjs

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mastercactapus/fieldmap/probe"
)

// Opener opens probe channels on ports of the remote server.
type Opener struct {
	Client *Client

	// ReadTimeout bounds one ReadLine; defaults to one second.
	ReadTimeout time.Duration
}

var _ probe.Opener = &Opener{}

func (o *Opener) Open(ctx context.Context, port string, baud int) (probe.Channel, error) {
	data := o.Client.subscribe(port)
	if err := o.Client.WriteString(ctx, fmt.Sprintf("open %s %d", port, baud)); err != nil {
		o.Client.unsubscribe(port, data)
		return nil, err
	}
	timeout := o.ReadTimeout
	if timeout <= 0 {
		timeout = time.Second
	}
	return &Channel{c: o.Client, port: port, data: data, timeout: timeout}, nil
}

// Channel assembles lines from the data frames of one port.
type Channel struct {
	c       *Client
	port    string
	data    chan string
	timeout time.Duration
	buf     strings.Builder
}

var _ probe.Channel = &Channel{}

func (ch *Channel) line() (string, bool) {
	s := ch.buf.String()
	i := strings.IndexByte(s, '\n')
	if i < 0 {
		return "", false
	}
	ch.buf.Reset()
	ch.buf.WriteString(s[i+1:])
	return s[:i+1], true
}

func (ch *Channel) ReadLine(ctx context.Context) (string, error) {
	t := time.NewTimer(ch.timeout)
	defer t.Stop()
	for {
		if l, ok := ch.line(); ok {
			return l, nil
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ch.c.closeCh:
			return "", ErrClosed
		case <-t.C:
			return "", probe.ErrNoLine
		case d := <-ch.data:
			ch.buf.WriteString(d)
		}
	}
}

// Close stops delivering data and asks the server to close the port.
func (ch *Channel) Close() error {
	ch.c.unsubscribe(ch.port, ch.data)
	ctx, cancel := context.WithTimeout(context.Background(), ch.timeout)
	defer cancel()
	return ch.c.WriteString(ctx, "close "+ch.port)
}
