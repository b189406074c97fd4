package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonwraymond/satauth/observe"
	"github.com/jonwraymond/satauth/storage"
)

// DefaultInterval is the polling interval when Config leaves it unset.
const DefaultInterval = time.Second

const mailboxSize = 16

// ErrNoStorage is returned by New without a storage.
var ErrNoStorage = errors.New("worker: storage is required")

// Config configures a Worker.
type Config struct {
	// Storage holds the persisted session. Required.
	Storage storage.Storage

	// Interval between ticks. Default: 1s
	Interval time.Duration

	// Now is the clock. Default: time.Now
	Now func() time.Time

	Logger observe.Logger
}

// Worker runs the timer protocol on its own goroutine.
//
// Contract:
//   - Concurrency: Send, Outbox and Close are safe for concurrent use.
//   - Ownership: the worker never mutates storage; it only reads it.
type Worker struct {
	cfg    Config
	inbox  chan Inbound
	outbox chan Outbound

	startOnce sync.Once
	closeOnce sync.Once
	done      chan struct{}
	stopped   chan struct{}
}

// New creates a stopped Worker.
func New(cfg Config) (*Worker, error) {
	if cfg.Storage == nil {
		return nil, ErrNoStorage
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = observe.NopLogger()
	}
	return &Worker{
		cfg:     cfg,
		inbox:   make(chan Inbound, mailboxSize),
		outbox:  make(chan Outbound, mailboxSize),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}, nil
}

// Start launches the worker goroutine. It runs until ctx ends or Close is
// called; later calls do nothing.
func (w *Worker) Start(ctx context.Context) {
	w.startOnce.Do(func() {
		go w.run(ctx)
	})
}

// Send queues a message for the worker. Messages sent after Close are
// dropped.
func (w *Worker) Send(in Inbound) {
	select {
	case w.inbox <- in:
	case <-w.done:
	}
}

// Outbox returns the messages from the worker. It is closed when the
// worker goroutine exits.
func (w *Worker) Outbox() <-chan Outbound {
	return w.outbox
}

// Close stops the worker and waits for its goroutine when it was started.
func (w *Worker) Close() error {
	w.closeOnce.Do(func() { close(w.done) })
	started := true
	w.startOnce.Do(func() {
		started = false
		close(w.stopped)
		close(w.outbox)
	})
	if started {
		<-w.stopped
	}
	return nil
}

func (w *Worker) run(ctx context.Context) {
	defer close(w.stopped)
	defer close(w.outbox)

	state := Stopped
	var ticker *time.Ticker
	var tick <-chan time.Time
	stopTicker := func() {
		if ticker != nil {
			ticker.Stop()
			ticker, tick = nil, nil
		}
	}
	defer stopTicker()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case in := <-w.inbox:
			next := Transition(state, in)
			if next == Running && ticker == nil {
				ticker = time.NewTicker(w.cfg.Interval)
				tick = ticker.C
			}
			if next == Stopped {
				stopTicker()
			}
			if next != state {
				w.cfg.Logger.Debug(ctx, "auth timer "+next.String(), observe.F("message", in.Kind.String()))
			}
			state = next
		case <-tick:
			now := w.cfg.Now()
			next, out := Evaluate(state, Inspect(ctx, w.cfg.Storage, now), now)
			if next == Stopped {
				stopTicker()
			}
			state = next
			for _, msg := range out {
				if msg.Kind == SignOutAuthTimer {
					w.cfg.Logger.Info(ctx, "session expired, signing out")
				}
				select {
				case w.outbox <- msg:
				case <-w.done:
					return
				case <-ctx.Done():
					return
				}
			}
		}
	}
}
