package comelithkbridge

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/brutella/hap/accessory"
	"github.com/brutella/hap/characteristic"
	"github.com/brutella/hap/service"

	"github.com/cloudkucooland/HomeKitBridges/ComelitHKBridge/comelit"
)

// PositionState
const (
	positionDecreasing = 0
	positionIncreasing = 1
	positionStopped    = 2
)

type BlindState struct {
	CurrentPosition int `json:"current_position"`
	TargetPosition  int `json:"target_position"`
	PositionState   int `json:"position_state"`
}

// blindMotion is the history the bridge does not keep: where the blind
// was when the current motion began, and where it was asked to go
type blindMotion struct {
	position int
	since    time.Time
	target   int // -1 when no target was requested
}

func moving(status string) bool {
	return status == comelit.BlindOpening || status == comelit.BlindClosing
}

// estimatePosition assumes constant speed, a full travel takes closing
func estimatePosition(status string, m blindMotion, now time.Time, closing time.Duration) int {
	if !moving(status) || closing <= 0 || m.since.IsZero() {
		return clamp(m.position, 0, 100)
	}

	elapsed := now.Sub(m.since)
	if elapsed < 0 {
		elapsed = 0
	}
	delta := int(elapsed * 100 / closing)

	if status == comelit.BlindOpening {
		return clamp(m.position+delta, 0, 100)
	}
	return clamp(m.position-delta, 0, 100)
}

func deriveBlind(d comelit.DeviceData, m blindMotion, now time.Time, closing time.Duration) BlindState {
	pos := estimatePosition(d.Status, m, now, closing)
	s := BlindState{CurrentPosition: pos}

	switch d.Status {
	case comelit.BlindOpening:
		s.PositionState = positionIncreasing
		s.TargetPosition = 100
		if m.target >= 0 {
			s.TargetPosition = m.target
		}
	case comelit.BlindClosing:
		s.PositionState = positionDecreasing
		s.TargetPosition = 0
		if m.target >= 0 {
			s.TargetPosition = m.target
		}
	default:
		s.PositionState = positionStopped
		s.TargetPosition = pos
	}
	return s
}

// blindCommand picks the direction for target; intermediate targets
// need a stop after the returned duration. ok is false when nothing needs sending.
func blindCommand(id string, target, current int, isMoving bool, closing time.Duration) (cmd comelit.Command, stopAfter time.Duration, ok bool) {
	switch {
	case target > current:
		cmd = comelit.Toggle(comelit.TypeBlind, id, comelit.BlindUp)
	case target < current:
		cmd = comelit.Toggle(comelit.TypeBlind, id, comelit.BlindDown)
	case isMoving:
		return comelit.Toggle(comelit.TypeBlind, id, comelit.BlindStop), 0, true
	default:
		return comelit.Command{}, 0, false
	}

	if target > 0 && target < 100 {
		diff := target - current
		if diff < 0 {
			diff = -diff
		}
		stopAfter = time.Duration(diff) * closing / 100
	}
	return cmd, stopAfter, true
}

type Blind struct {
	*generic

	WindowCovering *windowCoveringSvc

	closing  time.Duration
	reporter Reporter
	now      func() time.Time

	// guarded by generic.mu
	motion blindMotion
	status string

	stopMu    sync.Mutex
	stopTimer *time.Timer
}

func newBlind(ctx context.Context, d comelit.DeviceData, cmd Commander, closing time.Duration, reporter Reporter) *Blind {
	acc := Blind{
		closing:  closing,
		reporter: reporter,
		now:      time.Now,
		motion:   blindMotion{target: -1},
	}
	acc.generic = newGeneric(ctx, d, cmd)
	acc.A = accessory.New(acc.info("shutter"), accessory.TypeWindowCovering)
	acc.finalize()

	acc.WindowCovering = newWindowCoveringSvc()
	acc.AddS(acc.WindowCovering.S)
	acc.WindowCovering.TargetPosition.OnSetRemoteValue(acc.setTargetPosition)
	acc.WindowCovering.TargetPosition.OnValueRemoteUpdate(func(int) { acc.resync() })

	acc.update(d)
	return &acc
}

func (b *Blind) update(d comelit.DeviceData) {
	b.mu.Lock()
	now := b.now()
	if d.Status != b.status {
		// fold the finished motion into the starting point of the new one
		b.motion.position = estimatePosition(b.status, b.motion, now, b.closing)
		b.motion.since = now
		if !moving(d.Status) {
			b.motion.target = -1
		}
		b.status = d.Status
	}
	b.record = d
	b.mu.Unlock()

	b.resync()
}

func (b *Blind) resync() {
	b.applyMu.Lock()
	defer b.applyMu.Unlock()

	s := b.state()
	b.WindowCovering.CurrentPosition.SetValue(s.CurrentPosition)
	b.WindowCovering.TargetPosition.SetValue(s.TargetPosition)
	b.WindowCovering.PositionState.SetValue(s.PositionState)
}

func (b *Blind) state() BlindState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return deriveBlind(b.record, b.motion, b.now(), b.closing)
}

func (b *Blind) snapshot() DeviceSnapshot {
	return b.snapshotOf(b.state())
}

func (b *Blind) setTargetPosition(target int) error {
	b.mu.Lock()
	current := estimatePosition(b.status, b.motion, b.now(), b.closing)
	isMoving := moving(b.status)
	b.mu.Unlock()

	target = clamp(target, 0, 100)
	cmd, stopAfter, ok := blindCommand(b.k.ID, target, current, isMoving, b.closing)
	if !ok {
		return nil
	}

	b.cancelStop()
	if err := b.send(cmd); err != nil {
		return err
	}

	b.mu.Lock()
	b.motion.target = target
	b.mu.Unlock()

	if stopAfter > 0 {
		b.stopMu.Lock()
		b.stopTimer = time.AfterFunc(stopAfter, b.stop)
		b.stopMu.Unlock()
	}
	return nil
}

func (b *Blind) cancelStop() {
	b.stopMu.Lock()
	defer b.stopMu.Unlock()
	if b.stopTimer != nil {
		b.stopTimer.Stop()
		b.stopTimer = nil
	}
}

func (b *Blind) stop() {
	if b.ctx.Err() != nil {
		return
	}
	if err := b.send(comelit.Toggle(comelit.TypeBlind, b.k.ID, comelit.BlindStop)); err != nil {
		b.reporter.Report(fmt.Errorf("stopping blind %s: %w", b.k, err))
	}
}

type windowCoveringSvc struct {
	*service.S

	CurrentPosition *characteristic.CurrentPosition
	TargetPosition  *characteristic.TargetPosition
	PositionState   *characteristic.PositionState
}

func newWindowCoveringSvc() *windowCoveringSvc {
	s := windowCoveringSvc{}
	s.S = service.New(service.TypeWindowCovering)

	s.CurrentPosition = characteristic.NewCurrentPosition()
	s.AddC(s.CurrentPosition.C)

	s.TargetPosition = characteristic.NewTargetPosition()
	s.AddC(s.TargetPosition.C)

	s.PositionState = characteristic.NewPositionState()
	s.AddC(s.PositionState.C)

	return &s
}
