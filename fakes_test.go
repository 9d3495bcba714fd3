package comelithkbridge

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cloudkucooland/HomeKitBridges/ComelitHKBridge/comelit"
)

type fakeCommander struct {
	mu   sync.Mutex
	cmds []comelit.Command
	err  error
}

func (f *fakeCommander) Send(_ context.Context, cmd comelit.Command) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cmds = append(f.cmds, cmd)
	return f.err
}

func (f *fakeCommander) sent() []comelit.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]comelit.Command(nil), f.cmds...)
}

type fakeReporter struct {
	mu   sync.Mutex
	errs []error
}

func (f *fakeReporter) Report(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs = append(f.errs, err)
}

func (f *fakeReporter) reported() []error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]error(nil), f.errs...)
}

type fakePublisher struct {
	mu        sync.Mutex
	snapshots []DeviceSnapshot
}

func (f *fakePublisher) Publish(s DeviceSnapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshots = append(f.snapshots, s)
}

func (f *fakePublisher) published() []DeviceSnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]DeviceSnapshot(nil), f.snapshots...)
}

type fakeAlarmClient struct {
	mu       sync.Mutex
	status   comelit.AlarmStatus
	expired  int // number of calls that fail with ErrSessionExpired
	loginOK  bool
	loginErr error
	logins   int
	sent     []comelit.AlarmCommand
}

func (f *fakeAlarmClient) Login(context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logins++
	return f.loginOK, f.loginErr
}

func (f *fakeAlarmClient) AlarmStatus(context.Context) (*comelit.AlarmStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.expired > 0 {
		f.expired--
		return nil, comelit.ErrSessionExpired
	}
	s := f.status
	return &s, nil
}

func (f *fakeAlarmClient) Send(_ context.Context, cmd comelit.AlarmCommand) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.expired > 0 {
		f.expired--
		return comelit.ErrSessionExpired
	}
	f.sent = append(f.sent, cmd)
	return nil
}

func (f *fakeAlarmClient) Shutdown() {}

// fakeBridgeClient stands in for comelit.Client
type fakeBridgeClient struct {
	fakeCommander

	loginOK   bool
	loginErr  error
	index     *comelit.HomeIndex
	fetchErr  error
	updateErr error

	mu2      sync.Mutex
	updates  int
	onUpdate comelit.UpdateFunc
	shutdown int
}

func (f *fakeBridgeClient) Login(context.Context) (bool, error) {
	return f.loginOK, f.loginErr
}

func (f *fakeBridgeClient) FetchHomeIndex(context.Context) (*comelit.HomeIndex, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.index, nil
}

func (f *fakeBridgeClient) UpdateHomeStatus(context.Context, *comelit.HomeIndex) error {
	f.mu2.Lock()
	defer f.mu2.Unlock()
	f.updates++
	return f.updateErr
}

func (f *fakeBridgeClient) OnUpdate(fn comelit.UpdateFunc) {
	f.mu2.Lock()
	defer f.mu2.Unlock()
	f.onUpdate = fn
}

func (f *fakeBridgeClient) Shutdown() {
	f.mu2.Lock()
	defer f.mu2.Unlock()
	f.shutdown++
}

func (f *fakeBridgeClient) push(id string, d comelit.DeviceData) {
	f.mu2.Lock()
	fn := f.onUpdate
	f.mu2.Unlock()
	fn(id, d)
}

func (f *fakeBridgeClient) updateCount() int {
	f.mu2.Lock()
	defer f.mu2.Unlock()
	return f.updates
}

func testIndex() *comelit.HomeIndex {
	index := comelit.NewHomeIndex()
	index.Add(comelit.DeviceData{ID: "0", Type: comelit.TypeLight, Description: "Kitchen", Status: comelit.StatusOff, SubType: "1"})
	index.Add(comelit.DeviceData{ID: "1", Type: comelit.TypeLight, Description: "Hall", Status: comelit.StatusOn, SubType: "2", Value: "40"})
	index.Add(comelit.DeviceData{
		ID:                "12",
		Type:              comelit.TypeClima,
		Description:       "Living",
		Temperature:       "205",
		ActiveThreshold:   "210",
		Mode:              comelit.ModeManual,
		Season:            comelit.Winter,
		Humidity:          "55",
		HumidityThreshold: "60",
		HumidityMode:      comelit.ModeManual,
	})
	index.Add(comelit.DeviceData{ID: "0", Type: comelit.TypeBlind, Description: "Bedroom", Status: comelit.BlindStopped})
	index.Add(comelit.DeviceData{ID: "0", Type: comelit.TypeOutlet, Description: "Washer", Status: comelit.StatusOn, InstantPower: "1200"})
	index.Add(comelit.DeviceData{ID: "0", Type: comelit.TypeSupplier, Description: "Garden", Status: comelit.StatusOff})
	return index
}

func testConfig() *Config {
	c := DefaultConfig()
	c.BridgeURL = "192.168.1.2"
	return &c
}

type remoteWritable interface {
	SetValueRequest(v interface{}, req *http.Request) (interface{}, int)
}

// homeKitWrite sets v the way a paired controller does and expects hap to accept it
func homeKitWrite(t *testing.T, c remoteWritable, v interface{}) {
	t.Helper()
	_, status := c.SetValueRequest(v, httptest.NewRequest(http.MethodPut, "/characteristics", nil))
	require.Zero(t, status)
}
