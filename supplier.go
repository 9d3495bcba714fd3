package comelithkbridge

import (
	"context"

	"github.com/brutella/hap/accessory"

	"github.com/cloudkucooland/HomeKitBridges/ComelitHKBridge/comelit"
)

// SupplierState has the same shape as an outlet; a supplier is a whole circuit
type SupplierState OutletState

func deriveSupplier(d comelit.DeviceData) SupplierState {
	return SupplierState(deriveOutlet(d))
}

// PowerSupplier is a "supplier" device, exposed as an outlet
type PowerSupplier struct {
	*generic

	Outlet *outletSvc
}

func newPowerSupplier(ctx context.Context, d comelit.DeviceData, cmd Commander) *PowerSupplier {
	acc := PowerSupplier{}
	acc.generic = newGeneric(ctx, d, cmd)
	acc.A = accessory.New(acc.info("supplier"), accessory.TypeOutlet)
	acc.finalize()

	acc.Outlet = newOutletSvc()
	acc.AddS(acc.Outlet.S)
	acc.Outlet.On.OnSetRemoteValue(acc.setOn)
	acc.Outlet.On.OnValueRemoteUpdate(func(bool) { acc.resync() })

	acc.update(d)
	return &acc
}

func (p *PowerSupplier) update(d comelit.DeviceData) {
	p.store(d)
	p.resync()
}

func (p *PowerSupplier) resync() {
	p.applyMu.Lock()
	defer p.applyMu.Unlock()
	p.Outlet.apply(OutletState(deriveSupplier(p.current())))
}

func (p *PowerSupplier) snapshot() DeviceSnapshot {
	return p.snapshotOf(deriveSupplier(p.current()))
}

func (p *PowerSupplier) setOn(on bool) error {
	return p.send(powerCommand(comelit.TypeSupplier, p.k.ID, on))
}
