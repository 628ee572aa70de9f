package probe

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mastercactapus/fieldmap/clock"
)

// step is one scripted ReadLine result.
type step struct {
	line string
	err  error
}

type fakeChannel struct {
	o      *fakeOpener
	closed bool
}

func (c *fakeChannel) ReadLine(ctx context.Context) (string, error) {
	c.o.clock.Advance(c.o.perRead)
	c.o.reads++
	if len(c.o.script) == 0 {
		return "", ErrNoLine
	}
	s := c.o.script[0]
	c.o.script = c.o.script[1:]
	return s.line, s.err
}

func (c *fakeChannel) Close() error {
	c.closed = true
	return nil
}

type fakeOpener struct {
	clock   *clock.Manual
	perRead time.Duration
	script  []step
	opens   int
	openErr []error
	reads   int
	chans   []*fakeChannel
}

func (o *fakeOpener) Open(ctx context.Context, port string, baud int) (Channel, error) {
	o.opens++
	if len(o.openErr) > 0 {
		err := o.openErr[0]
		o.openErr = o.openErr[1:]
		if err != nil {
			return nil, err
		}
	}
	ch := &fakeChannel{o: o}
	o.chans = append(o.chans, ch)
	return ch, nil
}

func newLoop(script ...step) (*Loop, *fakeOpener) {
	c := clock.NewManual(time.Unix(0, 0))
	o := &fakeOpener{clock: c, perRead: 100 * time.Millisecond, script: script}
	return &Loop{
		Opener:  o,
		Port:    "/dev/ttyACM0",
		Baud:    9600,
		Timeout: 2 * time.Second,
		Discard: 2,
		Backoff: 500 * time.Millisecond,
		Clock:   c,
	}, o
}

func TestLoop_DiscardsThenReads(t *testing.T) {
	l, o := newLoop(step{line: "garbage"}, step{line: "9.99G"}, step{line: "1.23G\n"})

	r, err := l.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Reading{Value: 1.23, Unit: "G"}, r)
	assert.Equal(t, 1, o.opens)
	assert.Equal(t, 3, o.reads)
}

func TestLoop_ReusesChannel(t *testing.T) {
	l, o := newLoop(step{line: "x"}, step{line: "x"}, step{line: "1.0G"}, step{line: "2.0G"})

	_, err := l.Acquire(context.Background())
	require.NoError(t, err)
	r, err := l.Acquire(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2.0, r.Value)
	assert.Equal(t, 1, o.opens, "channel reopened between readings")

	require.NoError(t, l.Close())
	assert.True(t, o.chans[0].closed)
}

func TestLoop_RetriesMalformed(t *testing.T) {
	l, o := newLoop(step{line: "a"}, step{line: "b"}, step{line: "noise"}, step{line: "1.2"}, step{line: "-0.5T"})

	r, err := l.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Reading{Value: -0.5, Unit: "T"}, r)
	assert.Equal(t, 1, o.opens)
}

func TestLoop_Timeout(t *testing.T) {
	var script []step
	for range 100 {
		script = append(script, step{line: "noise"})
	}
	l, o := newLoop(script...)

	_, err := l.Acquire(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTimeout))
	assert.True(t, errors.Is(err, ErrMalformed))

	var te *TimeoutError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, 2*time.Second, te.Timeout)
	// 100ms per read; the attempt ending exactly at 2s is still retried
	assert.Equal(t, 21, te.Attempts)
	assert.Equal(t, 21, o.reads)
	assert.Empty(t, o.clock.Sleeps(), "malformed lines are retried without waiting")
}

func TestLoop_ReopensAfterChannelError(t *testing.T) {
	l, o := newLoop(
		step{line: "x"}, step{line: "x"},
		step{err: io.ErrUnexpectedEOF},
		step{line: "x"}, step{line: "x"},
		step{line: "4.5G"},
	)

	r, err := l.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4.5, r.Value)
	assert.Equal(t, 2, o.opens)
	assert.True(t, o.chans[0].closed)
	assert.False(t, o.chans[1].closed)
	assert.Equal(t, []time.Duration{500 * time.Millisecond}, o.clock.Sleeps())
}

func TestLoop_OpenFailureTimesOut(t *testing.T) {
	l, o := newLoop()
	o.openErr = []error{errors.New("busy"), errors.New("busy"), errors.New("busy"), errors.New("busy"), errors.New("busy")}

	_, err := l.Acquire(context.Background())
	var te *TimeoutError
	require.True(t, errors.As(err, &te))
	assert.ErrorContains(t, te.Last, "busy")
	// each failed open waits the 500ms backoff until the next wait would pass 2s
	assert.Equal(t, 5, o.opens)
	assert.Len(t, o.clock.Sleeps(), 4)
}

func TestLoop_RequiresTimeout(t *testing.T) {
	l, o := newLoop(step{line: "1.0G"})
	l.Timeout = 0

	_, err := l.Acquire(context.Background())
	assert.ErrorContains(t, err, "must be positive")
	assert.Equal(t, 0, o.opens)
}

func TestLoop_Cancelled(t *testing.T) {
	l, _ := newLoop(step{line: "noise"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := l.Acquire(ctx)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.False(t, errors.Is(err, ErrTimeout))
}

type nopCloser struct{ io.Reader }

func (nopCloser) Close() error { return nil }

func TestLineChannel(t *testing.T) {
	ch := NewLineChannel(nopCloser{strings.NewReader("1.0G\n2.0")})

	line, err := ch.ReadLine(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1.0G\n", line)

	_, err = ch.ReadLine(context.Background())
	assert.Equal(t, ErrNoLine, err)
}
