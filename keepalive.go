package comelithkbridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/brutella/hap/log"
)

// ErrKeepaliveStarted is returned by Start on a keepalive that already ran
var ErrKeepaliveStarted = errors.New("keepalive already started")

type KeepaliveState int

const (
	KeepaliveIdle KeepaliveState = iota
	KeepaliveScheduled
	KeepaliveRunning
	KeepaliveStopped
)

func (s KeepaliveState) String() string {
	switch s {
	case KeepaliveIdle:
		return "idle"
	case KeepaliveScheduled:
		return "scheduled"
	case KeepaliveRunning:
		return "running"
	case KeepaliveStopped:
		return "stopped"
	}
	return fmt.Sprintf("state-%d", int(s))
}

// TickFunc is one keepalive cycle
type TickFunc func(ctx context.Context) error

// Keepalive runs tick every interval until stopped.
// A failed tick is reported and the timer is armed again regardless;
// the timer is only armed after the previous tick returned, so ticks never overlap.
type Keepalive struct {
	interval time.Duration
	tick     TickFunc
	reporter Reporter

	mu     sync.Mutex
	state  KeepaliveState
	timer  *time.Timer
	ctx    context.Context
	cancel context.CancelFunc
}

func NewKeepalive(interval time.Duration, tick TickFunc, reporter Reporter) *Keepalive {
	if reporter == nil {
		reporter = logReporter{}
	}
	return &Keepalive{
		interval: interval,
		tick:     tick,
		reporter: reporter,
	}
}

// Start schedules the first tick one interval from now.
// Cancelling ctx stops the keepalive.
func (k *Keepalive) Start(ctx context.Context) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.state != KeepaliveIdle {
		return fmt.Errorf("%w: %s", ErrKeepaliveStarted, k.state)
	}

	k.ctx, k.cancel = context.WithCancel(ctx)
	k.state = KeepaliveScheduled
	k.timer = time.AfterFunc(k.interval, k.fire)

	go func(ctx context.Context) {
		<-ctx.Done()
		k.Stop()
	}(k.ctx)

	log.Debug.Printf("keepalive started, every %s", k.interval)
	return nil
}

func (k *Keepalive) fire() {
	k.mu.Lock()
	if k.state != KeepaliveScheduled {
		k.mu.Unlock()
		return
	}
	k.state = KeepaliveRunning
	ctx := k.ctx
	k.mu.Unlock()

	if err := k.run(ctx); err != nil {
		k.reporter.Report(fmt.Errorf("keepalive: %w", err))
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	if k.state != KeepaliveRunning {
		// stopped while the tick was in flight
		return
	}
	k.state = KeepaliveScheduled
	k.timer = time.AfterFunc(k.interval, k.fire)
}

func (k *Keepalive) run(ctx context.Context) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("tick panic: %v", p)
		}
	}()
	return k.tick(ctx)
}

// Stop cancels the pending timer and any tick in flight. It reports whether
// a pending timer was cancelled; calling it again does nothing.
func (k *Keepalive) Stop() bool {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.state == KeepaliveStopped {
		return false
	}

	cancelled := false
	if k.timer != nil {
		cancelled = k.timer.Stop()
		k.timer = nil
	}
	if k.cancel != nil {
		k.cancel()
	}
	k.state = KeepaliveStopped
	log.Debug.Printf("keepalive stopped")
	return cancelled
}

func (k *Keepalive) State() KeepaliveState {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.state
}
