package clock

import (
	"sync"
	"time"
)

// Fake is a manually driven Clock. Advance moves time without delivering
// ticks, which is how a backgrounded host behaves; Fire delivers one tick to
// every live ticker.
type Fake struct {
	mu      sync.Mutex
	now     time.Time
	tickers map[*fakeTicker]struct{}
}

func NewFake(start time.Time) *Fake {
	return &Fake{now: start, tickers: make(map[*fakeTicker]struct{})}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func (f *Fake) Set(t time.Time) {
	f.mu.Lock()
	f.now = t
	f.mu.Unlock()
}

func (f *Fake) NewTicker(time.Duration) Ticker {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := &fakeTicker{clock: f, ch: make(chan time.Time, 1)}
	f.tickers[t] = struct{}{}
	return t
}

// Fire sends the current time to every live ticker. Ticks that the receiver
// has not consumed yet are dropped, as with time.Ticker.
func (f *Fake) Fire() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for t := range f.tickers {
		select {
		case t.ch <- f.now:
		default:
		}
	}
}

// ActiveTickers reports how many tickers have been created and not stopped.
func (f *Fake) ActiveTickers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tickers)
}

type fakeTicker struct {
	clock *Fake
	ch    chan time.Time
}

func (t *fakeTicker) C() <-chan time.Time {
	return t.ch
}

func (t *fakeTicker) Stop() {
	t.clock.mu.Lock()
	delete(t.clock.tickers, t)
	t.clock.mu.Unlock()
}

var _ Clock = (*Fake)(nil)
