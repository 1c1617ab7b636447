// Package debounce collapses bursts of edits into one persist call per key.
package debounce

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

const DefaultDelay = 500 * time.Millisecond

// Timer is the part of *time.Timer the debouncer uses.
type Timer interface {
	Stop() bool
}

type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// FireFunc persists the settled value for key. A nil error records value as
// the last known server value.
type FireFunc func(key, value string) error

type pending struct {
	value string
	timer Timer
	gen   uint64
}

type Debouncer struct {
	mu      sync.Mutex
	delay   time.Duration
	clock   Clock
	fire    FireFunc
	pending map[string]*pending
	// fired values whose persist call has not returned yet
	inflight map[string]string
	known    map[string]string
	gen      uint64
}

type Option func(*Debouncer)

func WithClock(c Clock) Option {
	return func(d *Debouncer) { d.clock = c }
}

func New(delay time.Duration, fire FireFunc, opts ...Option) *Debouncer {
	if delay <= 0 {
		delay = DefaultDelay
	}
	d := &Debouncer{
		delay:    delay,
		clock:    realClock{},
		fire:     fire,
		pending:  make(map[string]*pending),
		inflight: make(map[string]string),
		known:    make(map[string]string),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// SetKnown records the value the server currently holds for key.
func (d *Debouncer) SetKnown(key, value string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.known[key] = value
}

func (d *Debouncer) Known(key string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	v, ok := d.known[key]
	return v, ok
}

// Waiting reports whether a value for key has been pushed but not fired.
func (d *Debouncer) Waiting(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.pending[key]
	return ok
}

// Unsettled returns every value the server has not confirmed yet, whether it
// is still waiting or being persisted. A waiting value wins over an older
// one in flight.
func (d *Debouncer) Unsettled() map[string]string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[string]string, len(d.pending)+len(d.inflight))
	for key, value := range d.inflight {
		out[key] = value
	}
	for key, p := range d.pending {
		out[key] = p.value
	}
	return out
}

// Push schedules value for key, replacing any value still waiting. The timer
// restarts on every push.
func (d *Debouncer) Push(key, value string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if p, ok := d.pending[key]; ok {
		p.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.pending[key] = &pending{
		value: value,
		gen:   gen,
		timer: d.clock.AfterFunc(d.delay, func() { d.expire(key, gen) }),
	}
}

func (d *Debouncer) expire(key string, gen uint64) {
	d.mu.Lock()
	p, ok := d.pending[key]
	if !ok || p.gen != gen {
		d.mu.Unlock()
		return
	}
	delete(d.pending, key)
	if known, ok := d.known[key]; ok && known == p.value {
		d.mu.Unlock()
		return
	}
	d.inflight[key] = p.value
	d.mu.Unlock()

	d.run(key, p.value)
}

func (d *Debouncer) run(key, value string) {
	err := d.fire(key, value)

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.inflight[key] == value {
		delete(d.inflight, key)
	}
	if err != nil {
		log.WithError(err).WithField("key", key).Warn("debounced persist failed")
		return
	}
	d.known[key] = value
}

// Flush fires every waiting value now.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	ready := make(map[string]string, len(d.pending))
	for key, p := range d.pending {
		p.timer.Stop()
		if known, ok := d.known[key]; !ok || known != p.value {
			ready[key] = p.value
			d.inflight[key] = p.value
		}
	}
	d.pending = make(map[string]*pending)
	d.mu.Unlock()

	for key, value := range ready {
		d.run(key, value)
	}
}

// Stop drops every waiting value without firing it.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, p := range d.pending {
		p.timer.Stop()
	}
	d.pending = make(map[string]*pending)
	d.inflight = make(map[string]string)
}

func (d *Debouncer) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}
