package poller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/kmrl/dochub/constants"
	"github.com/kmrl/dochub/internal/client"
	"github.com/kmrl/dochub/internal/jobs"
)

type State int

const (
	Idle State = iota
	Polling
)

func (s State) String() string {
	if s == Polling {
		return "polling"
	}
	return "idle"
}

// Source supplies job list snapshots. *client.Client satisfies it.
type Source interface {
	GetTasks(ctx context.Context) []jobs.Job
}

// Observer is told about every new snapshot and the state it led to.
type Observer func(snapshot []jobs.Job, state State)

type Option func(*Poller)

func WithTickerFactory(f TickerFactory) Option {
	return func(p *Poller) { p.newTicker = f }
}

func WithObserver(o Observer) Option {
	return func(p *Poller) { p.observers = append(p.observers, o) }
}

// Poller caches the job list and runs a refresh timer only while some job is processing.
type Poller struct {
	source    Source
	interval  time.Duration
	newTicker TickerFactory
	observers []Observer
	logger    *slog.Logger

	mu       sync.Mutex
	ctx      context.Context
	state    State
	snapshot []jobs.Job
	ticker   Ticker
	stop     chan struct{}
	closed   bool
}

func New(source Source, interval time.Duration, logger *slog.Logger, opts ...Option) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Poller{
		source:    source,
		interval:  interval,
		newTicker: NewRealTicker,
		logger:    logger,
		ctx:       context.Background(),
		state:     Idle,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Start binds the poller to ctx and performs the first fetch. Cancelling ctx closes the poller.
func (p *Poller) Start(ctx context.Context) []jobs.Job {
	p.mu.Lock()
	p.ctx = ctx
	p.mu.Unlock()
	context.AfterFunc(ctx, p.Close)
	return p.Refresh(ctx)
}

// Refresh fetches a snapshot from the source and observes it.
func (p *Poller) Refresh(ctx context.Context) []jobs.Job {
	list := p.source.GetTasks(ctx)
	p.Observe(list)
	return p.Snapshot()
}

// Observe replaces the cached snapshot and moves between Idle and Polling.
func (p *Poller) Observe(list []jobs.Job) State {
	snap := append([]jobs.Job(nil), list...)
	client.SortJobs(snap)

	p.mu.Lock()
	p.snapshot = snap
	busy := anyProcessing(snap)
	switch {
	case busy && p.state == Idle && !p.closed:
		p.startLocked()
	case !busy && p.state == Polling:
		p.stopLocked()
	}
	state := p.state
	observers := p.observers
	p.mu.Unlock()

	for _, o := range observers {
		o(append([]jobs.Job(nil), snap...), state)
	}
	return state
}

// Close stops any active timer. Later snapshots are cached but never restart polling.
func (p *Poller) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.stopLocked()
}

func (p *Poller) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Poller) Snapshot() []jobs.Job {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]jobs.Job(nil), p.snapshot...)
}

// startLocked is a no-op when a timer is already running.
func (p *Poller) startLocked() {
	if p.ticker != nil {
		return
	}
	t := p.newTicker(p.interval)
	stop := make(chan struct{})
	p.ticker, p.stop, p.state = t, stop, Polling
	p.logger.Info("poller.start", "interval", p.interval)

	ctx := p.ctx
	go func() {
		for {
			select {
			case <-stop:
				return
			case <-t.C():
				select {
				case <-stop:
					return
				default:
				}
				p.Refresh(ctx)
			}
		}
	}()
}

// stopLocked is a no-op when no timer is running.
func (p *Poller) stopLocked() {
	if p.ticker == nil {
		return
	}
	p.ticker.Stop()
	close(p.stop)
	p.ticker, p.stop, p.state = nil, nil, Idle
	p.logger.Info("poller.stop")
}

func anyProcessing(list []jobs.Job) bool {
	for _, j := range list {
		if j.Status == constants.JobStatusProcessing {
			return true
		}
	}
	return false
}
