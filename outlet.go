package comelithkbridge

import (
	"context"

	"github.com/brutella/hap/accessory"
	"github.com/brutella/hap/characteristic"
	"github.com/brutella/hap/service"

	"github.com/cloudkucooland/HomeKitBridges/ComelitHKBridge/comelit"
)

type OutletState struct {
	On    bool `json:"on"`
	InUse bool `json:"in_use"`
	Watts int  `json:"watts"`
}

func deriveOutlet(d comelit.DeviceData) OutletState {
	on := d.Status == comelit.StatusOn
	return OutletState{
		On:    on,
		InUse: on,
		Watts: clamp(atoi(d.InstantPower), 0, maxWatts),
	}
}

const maxWatts = 100000

func powerCommand(t comelit.DeviceType, id string, on bool) comelit.Command {
	if on {
		return comelit.Toggle(t, id, 1)
	}
	return comelit.Toggle(t, id, 0)
}

// Outlet is an "other" device: a switched load with a power reading
type Outlet struct {
	*generic

	Outlet *outletSvc
}

func newOutlet(ctx context.Context, d comelit.DeviceData, cmd Commander) *Outlet {
	acc := Outlet{}
	acc.generic = newGeneric(ctx, d, cmd)
	acc.A = accessory.New(acc.info("other"), accessory.TypeOutlet)
	acc.finalize()

	acc.Outlet = newOutletSvc()
	acc.AddS(acc.Outlet.S)
	acc.Outlet.On.OnSetRemoteValue(acc.setOn)
	acc.Outlet.On.OnValueRemoteUpdate(func(bool) { acc.resync() })

	acc.update(d)
	return &acc
}

func (o *Outlet) update(d comelit.DeviceData) {
	o.store(d)
	o.resync()
}

func (o *Outlet) resync() {
	o.applyMu.Lock()
	defer o.applyMu.Unlock()
	o.Outlet.apply(deriveOutlet(o.current()))
}

func (o *Outlet) snapshot() DeviceSnapshot {
	return o.snapshotOf(deriveOutlet(o.current()))
}

func (o *Outlet) setOn(on bool) error {
	return o.send(powerCommand(comelit.TypeOutlet, o.k.ID, on))
}

type outletSvc struct {
	*service.S

	On          *characteristic.On
	OutletInUse *characteristic.OutletInUse
	Watt        *watt
}

func newOutletSvc() *outletSvc {
	s := outletSvc{}
	s.S = service.New(service.TypeOutlet)

	s.On = characteristic.NewOn()
	s.AddC(s.On.C)

	s.OutletInUse = characteristic.NewOutletInUse()
	s.AddC(s.OutletInUse.C)

	s.Watt = newWatt()
	s.AddC(s.Watt.C)

	return &s
}

func (s *outletSvc) apply(o OutletState) {
	s.On.SetValue(o.On)
	s.OutletInUse.SetValue(o.InUse)
	s.Watt.SetValue(o.Watts)
}
