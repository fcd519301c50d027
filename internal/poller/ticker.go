package poller

import "time"

// Ticker is the periodic timer driving refreshes while jobs are processing.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFactory creates a running Ticker with period d.
type TickerFactory func(d time.Duration) Ticker

type realTicker struct{ t *time.Ticker }

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

// NewRealTicker is the default TickerFactory.
func NewRealTicker(d time.Duration) Ticker {
	return realTicker{t: time.NewTicker(d)}
}
