package netmon

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"
)

// Probe is a Status implementation that determines reachability by
// periodically dialing a TCP address (normally the remote store's host).
//
// The probe must be started with Start() before it reports anything other
// than offline.
type Probe struct {
	signal

	addr     string
	interval time.Duration
	timeout  time.Duration

	// Dial can be replaced in tests. Defaults to a TCP dial.
	Dial func(addr string, timeout time.Duration) error

	lifecycleMu sync.Mutex
	cancel      context.CancelFunc
	wg          sync.WaitGroup
}

// NewProbe creates a probe for the given address. Zero interval and timeout
// default to 15s and 3s.
func NewProbe(addr string, interval, timeout time.Duration) *Probe {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Probe{
		addr:     addr,
		interval: interval,
		timeout:  timeout,
		Dial:     tcpDial,
	}
}

func tcpDial(addr string, timeout time.Duration) error {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return err
	}
	return conn.Close()
}

// Start probes once immediately, then on every interval tick until the
// context is cancelled or Stop is called. A second Start while running
// is an error.
func (p *Probe) Start(ctx context.Context) error {
	p.lifecycleMu.Lock()
	defer p.lifecycleMu.Unlock()

	if p.cancel != nil {
		return fmt.Errorf("probe already running")
	}

	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.probe()

	p.wg.Add(1)
	go p.loop(ctx)
	return nil
}

// Stop halts probing. Safe to call when not started.
func (p *Probe) Stop() {
	p.lifecycleMu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.lifecycleMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	p.wg.Wait()
}

func (p *Probe) loop(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.probe()
		}
	}
}

func (p *Probe) probe() {
	err := p.Dial(p.addr, p.timeout)
	p.set(err == nil)
}
