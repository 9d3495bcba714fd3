package comelithkbridge

import (
	"context"

	"github.com/brutella/hap/accessory"
	"github.com/brutella/hap/characteristic"
	"github.com/brutella/hap/service"

	"github.com/cloudkucooland/HomeKitBridges/ComelitHKBridge/comelit"
)

type LightState struct {
	On         bool `json:"on"`
	Brightness int  `json:"brightness"`
}

func deriveLight(d comelit.DeviceData) LightState {
	s := LightState{On: d.Status == comelit.StatusOn}
	switch {
	case d.Dimmable():
		s.Brightness = clamp(atoi(d.Value), 0, 100)
	case s.On:
		s.Brightness = 100
	}
	return s
}

func lightOnCommand(id string, on bool) comelit.Command {
	if on {
		return comelit.Toggle(comelit.TypeLight, id, 1)
	}
	return comelit.Toggle(comelit.TypeLight, id, 0)
}

func lightBrightnessCommand(id string, brightness int) comelit.Command {
	return comelit.SetValue(comelit.TypeLight, id, clamp(brightness, 0, 100))
}

type Lightbulb struct {
	*generic

	Lightbulb *lightbulbSvc
}

func newLightbulb(ctx context.Context, d comelit.DeviceData, cmd Commander) *Lightbulb {
	acc := Lightbulb{}
	acc.generic = newGeneric(ctx, d, cmd)
	acc.A = accessory.New(acc.info("light"), accessory.TypeLightbulb)
	acc.finalize()

	acc.Lightbulb = newLightbulbSvc(d.Dimmable())
	acc.AddS(acc.Lightbulb.S)

	acc.Lightbulb.On.OnSetRemoteValue(acc.setOn)
	acc.Lightbulb.On.OnValueRemoteUpdate(func(bool) { acc.resync() })
	if acc.Lightbulb.Brightness != nil {
		acc.Lightbulb.Brightness.OnSetRemoteValue(acc.setBrightness)
		acc.Lightbulb.Brightness.OnValueRemoteUpdate(func(int) { acc.resync() })
	}

	acc.update(d)
	return &acc
}

func (l *Lightbulb) update(d comelit.DeviceData) {
	l.store(d)
	l.resync()
}

func (l *Lightbulb) resync() {
	l.applyMu.Lock()
	defer l.applyMu.Unlock()

	s := deriveLight(l.current())
	l.Lightbulb.On.SetValue(s.On)
	if l.Lightbulb.Brightness != nil {
		l.Lightbulb.Brightness.SetValue(s.Brightness)
	}
}

func (l *Lightbulb) snapshot() DeviceSnapshot {
	return l.snapshotOf(deriveLight(l.current()))
}

func (l *Lightbulb) setOn(on bool) error {
	return l.send(lightOnCommand(l.k.ID, on))
}

func (l *Lightbulb) setBrightness(brightness int) error {
	return l.send(lightBrightnessCommand(l.k.ID, brightness))
}

type lightbulbSvc struct {
	*service.S

	On         *characteristic.On
	Brightness *characteristic.Brightness // dimmers only
}

func newLightbulbSvc(dimmable bool) *lightbulbSvc {
	s := lightbulbSvc{}
	s.S = service.New(service.TypeLightbulb)

	s.On = characteristic.NewOn()
	s.AddC(s.On.C)

	if dimmable {
		s.Brightness = characteristic.NewBrightness()
		s.AddC(s.Brightness.C)
	}

	return &s
}
