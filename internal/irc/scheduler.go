package irc

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// rateWindow counts commands sent since start. It is owned by a single
// worker goroutine and never shared.
type rateWindow struct {
	start   time.Time
	sent    int
	length  time.Duration
	ceiling int
}

// wait returns how long the worker must sleep before its next send. A window
// that has already elapsed is rolled over in place; a full one must be
// rolled over by the caller once the wait is done.
func (w *rateWindow) wait(now time.Time) (time.Duration, bool) {
	elapsed := now.Sub(w.start)
	if elapsed > w.length {
		w.rollover(now)
		return 0, false
	}
	if w.sent >= w.ceiling {
		return w.length - elapsed, true
	}
	return 0, false
}

func (w *rateWindow) rollover(now time.Time) {
	w.start = now
	w.sent = 0
}

// lineSink is where a worker delivers commands: the current connection.
type lineSink interface {
	// online reports whether the session is Connected.
	online() bool
	writeLine(line string) error
	// lost is called once when a write fails.
	lost(err error)
}

// scheduler is one outbound queue and the limits its worker enforces.
// The queue outlives connections; a worker is started per connection.
type scheduler struct {
	name    string
	queue   chan string
	window  time.Duration
	ceiling int
	pacing  time.Duration
	clock   clock.Clock
	log     *zap.Logger
}

func newScheduler(name string, window time.Duration, ceiling int, cfg *Config, log *zap.Logger) *scheduler {
	return &scheduler{
		name:    name,
		queue:   make(chan string, cfg.QueueSize),
		window:  window,
		ceiling: ceiling,
		pacing:  cfg.Pacing,
		clock:   cfg.Clock,
		log:     log.Named("scheduler." + name),
	}
}

// enqueue hands line to the worker. It blocks only when the queue is full.
func (q *scheduler) enqueue(ctx context.Context, line string) error {
	select {
	case q.queue <- line:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// pending returns the number of queued commands.
func (q *scheduler) pending() int {
	return len(q.queue)
}

// run drains the queue into sink until ctx is cancelled or a write fails.
func (q *scheduler) run(ctx context.Context, sink lineSink) {
	limit := rate.Inf
	if q.pacing > 0 {
		limit = rate.Every(q.pacing)
	}
	// Reservations are made at q.clock time, never wall time.
	pace := rate.NewLimiter(limit, 1)
	win := rateWindow{start: q.clock.Now(), length: q.window, ceiling: q.ceiling}

	for {
		var line string
		select {
		case <-ctx.Done():
			return
		case line = <-q.queue:
		}

		if d, full := win.wait(q.clock.Now()); full {
			q.log.Debug("rate window exhausted", zap.Int("ceiling", q.ceiling), zap.Duration("wait", d))
			if d > 0 {
				select {
				case <-ctx.Done():
					q.log.Debug("dropping command, connection closed", zap.String("line", trimCRLF(line)))
					return
				case <-q.clock.After(d):
				}
			}
			win.rollover(q.clock.Now())
		}

		now := q.clock.Now()
		if d := pace.ReserveN(now, 1).DelayFrom(now); d > 0 {
			select {
			case <-ctx.Done():
				return
			case <-q.clock.After(d):
			}
		}

		if !sink.online() {
			q.log.Debug("dropping command, not connected", zap.String("line", trimCRLF(line)))
			continue
		}
		if err := sink.writeLine(line); err != nil {
			q.log.Warn("write failed", zap.Error(err))
			sink.lost(err)
			return
		}
		win.sent++
	}
}
