package connectivity

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/parcelsync/internal/logging"
)

// Monitor polls a Prober on an interval and fans state changes out to
// subscribers. Subscriber channels hold one value; a slow reader only
// ever sees the latest state.
type Monitor struct {
	prober   Prober
	interval time.Duration
	log      logging.Logger

	mu      sync.Mutex
	current State
	known   bool
	subs    []chan State
}

func NewMonitor(prober Prober, interval time.Duration, log logging.Logger) *Monitor {
	if log == nil {
		log = logging.Nop()
	}
	return &Monitor{prober: prober, interval: interval, log: log.With("module", "connectivity")}
}

// Subscribe returns a channel receiving every state change. If a state is
// already known it is delivered immediately.
func (m *Monitor) Subscribe() <-chan State {
	ch := make(chan State, 1)
	m.mu.Lock()
	m.subs = append(m.subs, ch)
	if m.known {
		ch <- m.current
	}
	m.mu.Unlock()
	return ch
}

// Current returns the last observed state.
func (m *Monitor) Current() (State, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current, m.known
}

// Poll probes once, publishes a change if there is one, and returns the
// observed state.
func (m *Monitor) Poll(ctx context.Context) State {
	s := m.prober.Probe(ctx)

	m.mu.Lock()
	changed := !m.known || s != m.current
	if changed {
		m.current = s
		m.known = true
		for _, ch := range m.subs {
			publish(ch, s)
		}
	}
	m.mu.Unlock()

	if changed {
		m.log.Info(ctx, "connectivity changed",
			"connected", s.Connected, "reachable", s.InternetReachable.String(), "online", s.Online())
	}
	return s
}

// publish replaces any unread value with s.
func publish(ch chan State, s State) {
	for {
		select {
		case ch <- s:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

// Run polls until ctx is done and then closes every subscriber channel.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	defer m.closeSubscribers()

	m.Poll(ctx)
	for {
		select {
		case <-ticker.C:
			m.Poll(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (m *Monitor) closeSubscribers() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ch := range m.subs {
		close(ch)
	}
	m.subs = nil
}
