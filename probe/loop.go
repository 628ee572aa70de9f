package probe

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/mastercactapus/fieldmap/clock"
)

// ErrTimeout is the kind of every TimeoutError.
var ErrTimeout = errors.New("probe timeout")

// TimeoutError is returned by Loop.Acquire when no valid reading arrived in
// time. Last is the final rejection (a malformed line or a channel error).
type TimeoutError struct {
	Timeout  time.Duration
	Attempts int
	Last     error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("probe timeout: no valid reading within %s after %d attempts: %v", e.Timeout, e.Attempts, e.Last)
}

func (e *TimeoutError) Unwrap() []error { return []error{ErrTimeout, e.Last} }

// errSettling rejects a line discarded after (re)opening the channel.
var errSettling = errors.New("discarding settling line")

// Loop reads validated values from the sensor. The channel is opened on
// first use and kept open across calls; it is reopened only after a channel
// error. A Loop is not safe for concurrent use.
type Loop struct {
	Opener Opener
	Port   string
	Baud   int

	// Timeout bounds a single Acquire call.
	Timeout time.Duration

	// Discard is the number of lines dropped after every (re)open.
	Discard int

	// Backoff is waited after a failed open or a channel error.
	Backoff time.Duration

	Clock clock.Clock

	ch     Channel
	settle int
}

func (l *Loop) clock() clock.Clock {
	if l.Clock == nil {
		return clock.Real{}
	}
	return l.Clock
}

// timer returns nil for the system clock so backoff uses a real timer.
func (l *Loop) timer() backoff.Timer {
	if l.Clock == nil {
		return nil
	}
	return &clockTimer{c: l.Clock, ch: make(chan time.Time, 1)}
}

// clockTimer waits on a Clock, so a manual clock advances instead of blocking.
type clockTimer struct {
	c  clock.Clock
	ch chan time.Time
}

func (t *clockTimer) Start(d time.Duration) {
	t.c.Sleep(d)
	select {
	case t.ch <- t.c.Now():
	default:
	}
}

func (t *clockTimer) Stop()               {}
func (t *clockTimer) C() <-chan time.Time { return t.ch }

// pacing retries rejected lines at once and waits Backoff after a channel
// fault. The deadline is kept by the embedded policy.
type pacing struct {
	*backoff.ExponentialBackOff
	wait  time.Duration
	fault bool
}

func (p *pacing) NextBackOff() time.Duration {
	next := p.ExponentialBackOff.NextBackOff()
	if next == backoff.Stop || !p.fault {
		return next
	}
	if p.GetElapsedTime()+p.wait > p.MaxElapsedTime {
		return backoff.Stop
	}
	return p.wait
}

// Acquire returns the next valid reading. Malformed lines are rejected and
// the read retried on the same channel until Timeout elapses, at which point
// a *TimeoutError is returned. Context cancellation is returned as is.
func (l *Loop) Acquire(ctx context.Context) (Reading, error) {
	if l.Timeout <= 0 {
		return Reading{}, fmt.Errorf("probe timeout must be positive, got %s", l.Timeout)
	}
	pace := &pacing{
		ExponentialBackOff: backoff.NewExponentialBackOff(
			backoff.WithInitialInterval(0),
			backoff.WithRandomizationFactor(0),
			backoff.WithMultiplier(1),
			backoff.WithMaxInterval(0),
			backoff.WithMaxElapsedTime(l.Timeout),
			backoff.WithClockProvider(l.clock()),
		),
		wait: l.Backoff,
	}

	var attempts int
	r, err := backoff.RetryNotifyWithTimerAndData(func() (Reading, error) {
		attempts++
		r, fault, err := l.attempt(ctx)
		pace.fault = fault
		return r, err
	}, backoff.WithContext(pace, ctx), func(err error, next time.Duration) {
		if pace.fault {
			log.Printf("WARN: probe %s: %v; retrying in %s", l.Port, err, next)
		}
	}, l.timer())
	if err == nil {
		return r, nil
	}
	if ctx.Err() != nil {
		return Reading{}, ctx.Err()
	}
	return Reading{}, &TimeoutError{Timeout: l.Timeout, Attempts: attempts, Last: err}
}

// attempt makes one read. fault reports a failed open or a channel error,
// after which the channel is reopened on the next attempt.
func (l *Loop) attempt(ctx context.Context) (r Reading, fault bool, err error) {
	if l.ch == nil {
		ch, err := l.Opener.Open(ctx, l.Port, l.Baud)
		if err != nil {
			if ctx.Err() != nil {
				return Reading{}, false, backoff.Permanent(ctx.Err())
			}
			return Reading{}, true, fmt.Errorf("open %s: %w", l.Port, err)
		}
		l.ch = ch
		l.settle = l.Discard
	}

	line, err := l.ch.ReadLine(ctx)
	if errors.Is(err, ErrNoLine) {
		return Reading{}, false, err
	}
	if err != nil {
		if ctx.Err() != nil {
			return Reading{}, false, backoff.Permanent(ctx.Err())
		}
		l.drop()
		return Reading{}, true, fmt.Errorf("read %s: %w", l.Port, err)
	}
	if l.settle > 0 {
		l.settle--
		return Reading{}, false, errSettling
	}
	r, err = Parse(line)
	return r, false, err
}

func (l *Loop) drop() {
	if l.ch == nil {
		return
	}
	if err := l.ch.Close(); err != nil {
		log.Printf("WARN: close probe %s: %v", l.Port, err)
	}
	l.ch = nil
}

// Close releases the channel, if open.
func (l *Loop) Close() error {
	if l.ch == nil {
		return nil
	}
	err := l.ch.Close()
	l.ch = nil
	return err
}
