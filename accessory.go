package comelithkbridge

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strconv"
	"sync"

	"github.com/brutella/hap/accessory"
	"github.com/brutella/hap/log"

	"github.com/cloudkucooland/HomeKitBridges/ComelitHKBridge/comelit"
)

// ErrUnknownDevice is returned when a (category, id) pair is not in the registry
var ErrUnknownDevice = errors.New("unknown device")

// Commander sends one command to the serial bridge
type Commander interface {
	Send(ctx context.Context, cmd comelit.Command) error
}

// deviceKey identifies a device; ids are only unique within a category
type deviceKey struct {
	Category comelit.DeviceType
	ID       string
}

func (k deviceKey) String() string {
	return string(k.Category) + "/" + k.ID
}

// comelitAccessory is implemented by every device type, the alarm included
type comelitAccessory interface {
	getA() *accessory.A
	key() deviceKey
	snapshot() DeviceSnapshot

	// resync sets every characteristic to the state derived from the last
	// record. It runs after each HomeKit write, which hap has already stored;
	// the characteristics only move when the bridge reports the change.
	resync()
}

// deviceAccessory is a serial bridge device, updated by dispatch
type deviceAccessory interface {
	comelitAccessory
	update(d comelit.DeviceData)
}

// DeviceSnapshot is the view of one accessory exposed over MQTT and the status server
type DeviceSnapshot struct {
	Category comelit.DeviceType  `json:"category"`
	ID       string              `json:"id"`
	Name     string              `json:"name"`
	Record   *comelit.DeviceData `json:"record,omitempty"`
	State    any                 `json:"state"`
}

// included in all serial bridge device types
type generic struct {
	*accessory.A

	ctx context.Context
	cmd Commander
	k   deviceKey

	mu     sync.Mutex
	record comelit.DeviceData

	// serializes resync so the last one applied reflects the latest record
	applyMu sync.Mutex
}

func newGeneric(ctx context.Context, d comelit.DeviceData, cmd Commander) *generic {
	return &generic{
		ctx:    ctx,
		cmd:    cmd,
		k:      deviceKey{Category: d.Type, ID: d.ID},
		record: d,
	}
}

func (g *generic) info(model string) accessory.Info {
	name := g.record.Description
	if name == "" {
		name = fmt.Sprintf("%s %s", g.k.Category, g.k.ID)
	}

	return accessory.Info{
		Name:         name,
		SerialNumber: g.k.String(),
		Manufacturer: "Comelit",
		Model:        model,
		Firmware:     firmware,
	}
}

// finalize sets the ID so the device remains consistent in HomeKit across reboots
func (g *generic) finalize() {
	g.A.Id = accessoryID(g.k)
}

func (g *generic) getA() *accessory.A {
	return g.A
}

func (g *generic) key() deviceKey {
	return g.k
}

// store replaces the record and returns a copy for derivation
func (g *generic) store(d comelit.DeviceData) comelit.DeviceData {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.record = d
	return d
}

func (g *generic) current() comelit.DeviceData {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.record
}

func (g *generic) send(cmd comelit.Command) error {
	if err := g.cmd.Send(g.ctx, cmd); err != nil {
		log.Info.Printf("[%s] %s failed: %s", g.k, cmd.Action, err.Error())
		return err
	}
	log.Info.Printf("[%s] %s %s", g.k, cmd.Action, cmd.Value)
	return nil
}

func (g *generic) snapshotOf(state any) DeviceSnapshot {
	r := g.current()
	return DeviceSnapshot{
		Category: g.k.Category,
		ID:       g.k.ID,
		Name:     g.A.Info.Name.Value(),
		Record:   &r,
		State:    state,
	}
}

// accessoryID is stable for a given key; 1 is reserved for the bridge
func accessoryID(k deviceKey) uint64 {
	h := fnv.New64a()
	h.Write([]byte(k.String()))
	id := h.Sum64()
	if id <= 1 {
		id += 2
	}
	return id
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return 0
		}
		return int(f)
	}
	return n
}

func atof(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
