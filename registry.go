package comelithkbridge

import (
	"context"
	"fmt"

	"github.com/brutella/hap/accessory"
	"github.com/brutella/hap/log"

	"github.com/cloudkucooland/HomeKitBridges/ComelitHKBridge/comelit"
)

// Deps are the collaborators handed to every accessory
type Deps struct {
	Commander Commander
	Reporter  Reporter
	Publisher StatePublisher

	// Vedo; Alarm is nil when the alarm could not be reached
	Alarm       alarmClient
	AlarmStatus *comelit.AlarmStatus
}

// Registry maps (category, id) to the accessory for the platform session.
// The map is never written after BuildRegistry returns.
type Registry struct {
	entries   map[deviceKey]deviceAccessory
	order     []comelitAccessory
	alarm     *Alarm
	reporter  Reporter
	publisher StatePublisher
}

// BuildRegistry creates one accessory per device, lights first, then
// thermostats, blinds, outlets and suppliers, each in id order.
// The alarm is added last, and only when enabled with a code.
func BuildRegistry(ctx context.Context, index *comelit.HomeIndex, cfg *Config, deps Deps) *Registry {
	if deps.Reporter == nil {
		deps.Reporter = logReporter{}
	}
	if deps.Publisher == nil {
		deps.Publisher = nopPublisher{}
	}

	r := &Registry{
		entries:   make(map[deviceKey]deviceAccessory),
		reporter:  deps.Reporter,
		publisher: deps.Publisher,
	}

	if index != nil {
		for _, t := range comelit.Categories {
			devices := index.Category(t)
			for _, id := range index.IDs(t) {
				d := *devices[id]
				d.ID, d.Type = id, t
				r.add(newDeviceAccessory(ctx, d, cfg, deps))
			}
		}
	}

	switch {
	case !cfg.AlarmEnabled():
		log.Info.Printf("vedo alarm disabled or no alarm code configured, skipping")
	case deps.Alarm == nil:
		log.Info.Printf("vedo alarm not reachable, skipping")
	default:
		r.alarm = newAlarm(ctx, deps.Alarm, deps.AlarmStatus)
		r.order = append(r.order, r.alarm)
	}

	log.Info.Printf("registry built with %d accessories", len(r.order))
	return r
}

func newDeviceAccessory(ctx context.Context, d comelit.DeviceData, cfg *Config, deps Deps) deviceAccessory {
	switch d.Type {
	case comelit.TypeLight:
		return newLightbulb(ctx, d, deps.Commander)
	case comelit.TypeClima:
		return newThermostat(ctx, d, deps.Commander)
	case comelit.TypeBlind:
		return newBlind(ctx, d, deps.Commander, cfg.closingTime(), deps.Reporter)
	case comelit.TypeOutlet:
		return newOutlet(ctx, d, deps.Commander)
	case comelit.TypeSupplier:
		return newPowerSupplier(ctx, d, deps.Commander)
	}
	return nil
}

func (r *Registry) add(a deviceAccessory) {
	if a == nil {
		return
	}
	r.entries[a.key()] = a
	r.order = append(r.order, a)
}

// Dispatch hands an updated record to its accessory.
// Unknown devices are ignored; they are never registered late.
func (r *Registry) Dispatch(id string, d comelit.DeviceData) {
	k := deviceKey{Category: d.Type, ID: id}
	a, ok := r.entries[k]
	if !ok {
		log.Debug.Printf("ignoring update: %s: %s", ErrUnknownDevice, k)
		return
	}

	defer func() {
		if p := recover(); p != nil {
			r.reporter.Report(fmt.Errorf("updating %s: panic: %v", k, p))
		}
	}()

	d.ID = id
	a.update(d)
	log.Debug.Printf("updated %s", k)
	r.publisher.Publish(a.snapshot())
}

// PollAlarm refreshes the alarm, if there is one
func (r *Registry) PollAlarm(ctx context.Context) error {
	if r.alarm == nil {
		return nil
	}
	if err := r.alarm.poll(ctx); err != nil {
		return err
	}
	r.publisher.Publish(r.alarm.snapshot())
	return nil
}

// Resync puts every accessory back on the state derived from its last record
func (r *Registry) Resync() {
	for _, a := range r.order {
		r.resync(a)
	}
}

func (r *Registry) resync(a comelitAccessory) {
	defer func() {
		if p := recover(); p != nil {
			r.reporter.Report(fmt.Errorf("resync %s: panic: %v", a.key(), p))
		}
	}()
	a.resync()
}

// PublishAll sends every current state to the publisher
func (r *Registry) PublishAll() {
	for _, a := range r.order {
		r.publisher.Publish(a.snapshot())
	}
}

// All returns the accessories in insertion order
func (r *Registry) All() []comelitAccessory {
	out := make([]comelitAccessory, len(r.order))
	copy(out, r.order)
	return out
}

// Accessories is All for the HAP server
func (r *Registry) Accessories() []*accessory.A {
	out := make([]*accessory.A, 0, len(r.order))
	for _, a := range r.order {
		out = append(out, a.getA())
	}
	return out
}

// Snapshots returns the current state of every accessory, in insertion order
func (r *Registry) Snapshots() []DeviceSnapshot {
	out := make([]DeviceSnapshot, 0, len(r.order))
	for _, a := range r.order {
		out = append(out, a.snapshot())
	}
	return out
}

// Snapshot returns one device, ErrUnknownDevice if it is not registered
func (r *Registry) Snapshot(category comelit.DeviceType, id string) (DeviceSnapshot, error) {
	k := deviceKey{Category: category, ID: id}
	if k == alarmKey && r.alarm != nil {
		return r.alarm.snapshot(), nil
	}
	a, ok := r.entries[k]
	if !ok {
		return DeviceSnapshot{}, fmt.Errorf("%w: %s", ErrUnknownDevice, k)
	}
	return a.snapshot(), nil
}

// Len is the number of accessories, the alarm included
func (r *Registry) Len() int {
	return len(r.order)
}
