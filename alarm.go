package comelithkbridge

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/brutella/hap/accessory"
	"github.com/brutella/hap/characteristic"
	"github.com/brutella/hap/log"
	"github.com/brutella/hap/service"

	"github.com/cloudkucooland/HomeKitBridges/ComelitHKBridge/comelit"
)

// alarmClient is the part of comelit.VedoClient the alarm accessory uses
type alarmClient interface {
	Login(ctx context.Context) (bool, error)
	AlarmStatus(ctx context.Context) (*comelit.AlarmStatus, error)
	Send(ctx context.Context, cmd comelit.AlarmCommand) error
}

type AlarmState struct {
	Current int    `json:"current"`
	Target  int    `json:"target"`
	Zones   []bool `json:"zones"` // motion detected, by zone index
}

// deriveAlarm: any triggered area wins, then any armed area, else disarmed
func deriveAlarm(status comelit.AlarmStatus) AlarmState {
	var armed, triggered bool
	for _, a := range status.Areas {
		armed = armed || a.Armed
		triggered = triggered || a.Triggered
	}

	s := AlarmState{
		Current: characteristic.SecuritySystemCurrentStateDisarmed,
		Target:  characteristic.SecuritySystemCurrentStateDisarmed,
		Zones:   make([]bool, len(status.Zones)),
	}
	switch {
	case triggered:
		s.Current = characteristic.SecuritySystemCurrentStateAlarmTriggered
		s.Target = characteristic.SecuritySystemCurrentStateAwayArm
	case armed:
		s.Current = characteristic.SecuritySystemCurrentStateAwayArm
		s.Target = characteristic.SecuritySystemCurrentStateAwayArm
	}

	for i, z := range status.Zones {
		s.Zones[i] = z.Open
	}
	return s
}

// alarmCommand: the panel only knows armed and disarmed, so stay and night arm everything
func alarmCommand(target int) (comelit.AlarmCommand, error) {
	switch target {
	case characteristic.SecuritySystemCurrentStateDisarmed:
		return comelit.AlarmCommand{Arm: false, Area: comelit.AllAreas}, nil
	case characteristic.SecuritySystemCurrentStateStayArm,
		characteristic.SecuritySystemCurrentStateAwayArm,
		characteristic.SecuritySystemCurrentStateNightArm:
		return comelit.AlarmCommand{Arm: true, Area: comelit.AllAreas}, nil
	}
	return comelit.AlarmCommand{}, fmt.Errorf("unknown security system state %d", target)
}

// Alarm is the Vedo panel: a security system plus one motion sensor per zone.
// It is polled from the keepalive tick rather than pushed by the bridge.
type Alarm struct {
	*accessory.A

	SecuritySystem *securitySystemSvc
	Zones          []*motionSensorSvc

	ctx    context.Context
	client alarmClient

	mu     sync.Mutex
	status comelit.AlarmStatus

	applyMu sync.Mutex
}

var alarmKey = deviceKey{Category: comelit.TypeAlarm, ID: "0"}

func newAlarm(ctx context.Context, client alarmClient, status *comelit.AlarmStatus) *Alarm {
	acc := Alarm{ctx: ctx, client: client}
	if status != nil {
		acc.status = *status
	}

	acc.A = accessory.New(accessory.Info{
		Name:         "Vedo Alarm",
		SerialNumber: alarmKey.String(),
		Manufacturer: "Comelit",
		Model:        "vedo",
		Firmware:     firmware,
	}, accessory.TypeSecuritySystem)
	acc.A.Id = accessoryID(alarmKey)

	acc.SecuritySystem = newSecuritySystemSvc()
	acc.AddS(acc.SecuritySystem.S)
	acc.SecuritySystem.SecuritySystemTargetState.OnSetRemoteValue(acc.setTarget)
	acc.SecuritySystem.SecuritySystemTargetState.OnValueRemoteUpdate(func(int) { acc.resync() })

	// zones are fixed at startup, like the serial bridge devices
	for _, z := range acc.status.Zones {
		name := z.Description
		if name == "" {
			name = "Zone " + strconv.Itoa(z.Index)
		}
		m := newMotionSensorSvc(name)
		acc.AddS(m.S)
		acc.Zones = append(acc.Zones, m)
	}

	acc.apply(acc.status)
	return &acc
}

func (a *Alarm) getA() *accessory.A {
	return a.A
}

func (a *Alarm) key() deviceKey {
	return alarmKey
}

func (a *Alarm) snapshot() DeviceSnapshot {
	a.mu.Lock()
	s := deriveAlarm(a.status)
	a.mu.Unlock()
	return DeviceSnapshot{
		Category: alarmKey.Category,
		ID:       alarmKey.ID,
		Name:     a.A.Info.Name.Value(),
		State:    s,
	}
}

func (a *Alarm) apply(status comelit.AlarmStatus) {
	a.mu.Lock()
	a.status = status
	a.mu.Unlock()
	a.resync()
}

func (a *Alarm) resync() {
	a.applyMu.Lock()
	defer a.applyMu.Unlock()

	a.mu.Lock()
	s := deriveAlarm(a.status)
	a.mu.Unlock()
	a.SecuritySystem.SecuritySystemCurrentState.SetValue(s.Current)
	a.SecuritySystem.SecuritySystemTargetState.SetValue(s.Target)
	for i, open := range s.Zones {
		if i < len(a.Zones) {
			a.Zones[i].MotionDetected.SetValue(open)
		}
	}
}

// poll reads the panel and updates the accessory
func (a *Alarm) poll(ctx context.Context) error {
	var status *comelit.AlarmStatus
	err := a.withSession(ctx, func() error {
		var err error
		status, err = a.client.AlarmStatus(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("alarm status: %w", err)
	}
	a.apply(*status)
	return nil
}

func (a *Alarm) setTarget(target int) error {
	cmd, err := alarmCommand(target)
	if err != nil {
		return err
	}

	if err := a.withSession(a.ctx, func() error { return a.client.Send(a.ctx, cmd) }); err != nil {
		log.Info.Printf("[%s] arm=%t failed: %s", alarmKey, cmd.Arm, err.Error())
		return err
	}
	log.Info.Printf("[%s] arm=%t", alarmKey, cmd.Arm)
	return nil
}

// withSession runs fn, logging in again once if the panel dropped the session
func (a *Alarm) withSession(ctx context.Context, fn func() error) error {
	err := fn()
	if !errors.Is(err, comelit.ErrSessionExpired) {
		return err
	}

	log.Info.Printf("vedo session expired, logging in again")
	ok, lerr := a.client.Login(ctx)
	if lerr != nil {
		return errors.Join(err, lerr)
	}
	if !ok {
		return fmt.Errorf("%w: vedo refused the alarm code", err)
	}
	return fn()
}

type securitySystemSvc struct {
	*service.S

	SecuritySystemCurrentState *characteristic.SecuritySystemCurrentState
	SecuritySystemTargetState  *characteristic.SecuritySystemTargetState
}

func newSecuritySystemSvc() *securitySystemSvc {
	s := securitySystemSvc{}
	s.S = service.New(service.TypeSecuritySystem)

	s.SecuritySystemCurrentState = characteristic.NewSecuritySystemCurrentState()
	s.AddC(s.SecuritySystemCurrentState.C)

	s.SecuritySystemTargetState = characteristic.NewSecuritySystemTargetState()
	s.AddC(s.SecuritySystemTargetState.C)

	return &s
}

type motionSensorSvc struct {
	*service.S

	MotionDetected *characteristic.MotionDetected
	Name           *characteristic.Name
}

func newMotionSensorSvc(name string) *motionSensorSvc {
	s := motionSensorSvc{}
	s.S = service.New(service.TypeMotionSensor)

	s.MotionDetected = characteristic.NewMotionDetected()
	s.AddC(s.MotionDetected.C)

	s.Name = characteristic.NewName()
	s.Name.SetValue(name)
	s.AddC(s.Name.C)

	return &s
}
