package comelithkbridge

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/brutella/hap/accessory"
	"github.com/brutella/hap/log"

	"github.com/cloudkucooland/HomeKitBridges/ComelitHKBridge/comelit"
)

// bridgeClient is the part of comelit.Client the platform uses
type bridgeClient interface {
	Commander
	Login(ctx context.Context) (bool, error)
	FetchHomeIndex(ctx context.Context) (*comelit.HomeIndex, error)
	UpdateHomeStatus(ctx context.Context, index *comelit.HomeIndex) error
	OnUpdate(fn comelit.UpdateFunc)
	Shutdown()
}

type vedoClient interface {
	alarmClient
	Shutdown()
}

// ErrLoginRefused is reported when the bridge answers but refuses the session
var ErrLoginRefused = errors.New("login refused")

// Platform is one session with the serial bridge: it owns the registry and the keepalive
type Platform struct {
	cfg       *Config
	client    bridgeClient
	vedo      vedoClient
	reporter  Reporter
	publisher StatePublisher

	bridge *Bridge

	mu        sync.Mutex
	index     *comelit.HomeIndex
	registry  *Registry
	keepalive *Keepalive
}

// NewPlatform wires the collaborators; vedo and publisher may be nil
func NewPlatform(cfg *Config, client bridgeClient, vedo vedoClient, reporter Reporter, publisher StatePublisher) *Platform {
	if reporter == nil {
		reporter = logReporter{}
	}
	if publisher == nil {
		publisher = nopPublisher{}
	}
	p := &Platform{
		cfg:       cfg,
		client:    client,
		reporter:  reporter,
		publisher: publisher,
		bridge:    NewBridge(cfg),
	}
	if vedo != nil && cfg.AlarmEnabled() {
		p.vedo = vedo
	}
	return p
}

// Startup logs in, fetches the devices, builds the registry and starts the keepalive.
// Bridge failures are reported and leave an empty accessory set; they never fail startup.
func (p *Platform) Startup(ctx context.Context) error {
	index, err := p.bootstrap(ctx)
	if err != nil {
		log.Info.Printf("bootstrap failed, serving no devices: %s", err.Error())
		p.reporter.Report(fmt.Errorf("bootstrap: %w", err))
		index = nil
	}
	p.bridge.SetOnline(err == nil)

	deps := Deps{
		Commander: p.client,
		Reporter:  p.reporter,
		Publisher: p.publisher,
	}
	if p.vedo != nil {
		status, err := p.bootstrapAlarm(ctx)
		if err != nil {
			log.Info.Printf("vedo bootstrap failed: %s", err.Error())
			p.reporter.Report(fmt.Errorf("vedo bootstrap: %w", err))
		} else {
			deps.Alarm = p.vedo
			deps.AlarmStatus = status
		}
	}

	registry := BuildRegistry(ctx, index, p.cfg, deps)
	p.client.OnUpdate(registry.Dispatch)
	registry.PublishAll()

	keepalive := NewKeepalive(p.cfg.refreshInterval(), p.tick, p.reporter)

	p.mu.Lock()
	p.index = index
	p.registry = registry
	p.keepalive = keepalive
	p.mu.Unlock()

	if index == nil && deps.Alarm == nil {
		log.Info.Printf("nothing to keep alive")
		return nil
	}
	return keepalive.Start(ctx)
}

func (p *Platform) bootstrap(ctx context.Context) (*comelit.HomeIndex, error) {
	ok, err := p.client.Login(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLoginRefused
	}

	index, err := p.client.FetchHomeIndex(ctx)
	if err != nil {
		return nil, err
	}
	log.Info.Printf("found %d lights, %d thermostats, %d blinds, %d outlets, %d suppliers",
		len(index.Lights), len(index.Thermostats), len(index.Blinds), len(index.Outlets), len(index.Suppliers))
	return index, nil
}

func (p *Platform) bootstrapAlarm(ctx context.Context) (*comelit.AlarmStatus, error) {
	ok, err := p.vedo.Login(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("vedo: %w", ErrLoginRefused)
	}
	return p.vedo.AlarmStatus(ctx)
}

// tick is one keepalive cycle: refresh every device, then poll the alarm
func (p *Platform) tick(ctx context.Context) error {
	p.mu.Lock()
	index, registry := p.index, p.registry
	p.mu.Unlock()

	var errs []error
	if index != nil {
		err := p.client.UpdateHomeStatus(ctx, index)
		p.bridge.SetOnline(err == nil)
		if err != nil {
			errs = append(errs, fmt.Errorf("refresh: %w", err))
		}
	}
	if registry != nil {
		if err := registry.PollAlarm(ctx); err != nil {
			errs = append(errs, err)
		}
		registry.Resync()
	}
	return errors.Join(errs...)
}

// Shutdown stops the keepalive and closes the clients; safe to call more than once
func (p *Platform) Shutdown() {
	p.mu.Lock()
	keepalive := p.keepalive
	p.mu.Unlock()

	if keepalive != nil {
		keepalive.Stop()
	}
	p.client.Shutdown()
	if p.vedo != nil {
		p.vedo.Shutdown()
	}
	log.Info.Printf("platform shut down")
}

// Bridge is the root accessory, always served
func (p *Platform) Bridge() *accessory.A {
	return p.bridge.A
}

// Accessories is the device list for the HAP server, empty before Startup
func (p *Platform) Accessories() []*accessory.A {
	if r := p.Registry(); r != nil {
		return r.Accessories()
	}
	return nil
}

func (p *Platform) Registry() *Registry {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.registry
}

func (p *Platform) KeepaliveState() KeepaliveState {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.keepalive == nil {
		return KeepaliveIdle
	}
	return p.keepalive.State()
}
