package clock

import (
	"sync"
	"time"
)

// Clock es la única fuente de "ahora" del engine y del agent loop.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
}

type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// Real usa el reloj del sistema.
type Real struct{}

func (Real) Now() time.Time { return time.Now() }

func (Real) NewTicker(d time.Duration) Ticker {
	return &realTicker{t: time.NewTicker(d)}
}

type realTicker struct {
	t *time.Ticker
}

func (r *realTicker) C() <-chan time.Time { return r.t.C }
func (r *realTicker) Stop()               { r.t.Stop() }

// Virtual es un reloj controlado a mano (tests / simulaciones).
// Advance mueve el tiempo y dispara los tickers cuyo periodo se cumplió.
type Virtual struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*virtualTicker
}

func NewVirtual(start time.Time) *Virtual {
	return &Virtual{now: start}
}

func (v *Virtual) Now() time.Time {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.now
}

// Set fija el instante actual sin disparar tickers.
func (v *Virtual) Set(t time.Time) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.now = t
}

func (v *Virtual) Advance(d time.Duration) {
	v.mu.Lock()
	v.now = v.now.Add(d)
	now := v.now
	tickers := append([]*virtualTicker(nil), v.tickers...)
	v.mu.Unlock()

	for _, t := range tickers {
		t.fire(now)
	}
}

func (v *Virtual) NewTicker(d time.Duration) Ticker {
	if d <= 0 {
		panic("clock: non-positive ticker interval")
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	t := &virtualTicker{
		owner:  v,
		period: d,
		next:   v.now.Add(d),
		ch:     make(chan time.Time, 1),
	}
	v.tickers = append(v.tickers, t)
	return t
}

func (v *Virtual) remove(t *virtualTicker) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for i, x := range v.tickers {
		if x == t {
			v.tickers = append(v.tickers[:i], v.tickers[i+1:]...)
			return
		}
	}
}

type virtualTicker struct {
	owner  *Virtual
	mu     sync.Mutex
	period time.Duration
	next   time.Time
	ch     chan time.Time
}

func (t *virtualTicker) C() <-chan time.Time { return t.ch }

func (t *virtualTicker) Stop() { t.owner.remove(t) }

// fire emula time.Ticker: si el consumidor va lento, los ticks se descartan.
func (t *virtualTicker) fire(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for !t.next.After(now) {
		select {
		case t.ch <- t.next:
		default:
		}
		t.next = t.next.Add(t.period)
	}
}
