package comelit

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBridge struct {
	mu      sync.Mutex
	desc    map[DeviceType]map[string]any
	status  map[DeviceType]map[string]any
	actions []url.Values
	code    int
}

func newFakeBridge() *fakeBridge {
	return &fakeBridge{
		desc: map[DeviceType]map[string]any{
			TypeLight: {
				"num":      2,
				"desc":     []string{"Kitchen", "Hall"},
				"status":   []int{0, 1},
				"val":      []string{"0", "40"},
				"sub_type": []string{"1", "2"},
			},
			TypeClima: {
				"num":               1,
				"desc":              []string{"Living"},
				"status":            []string{"1"},
				"temp":              []string{"205"},
				"soglia_attiva":     []string{"210"},
				"auto_man":          []string{"2"},
				"est_inv":           []string{"1"},
				"umidita":           []string{"55"},
				"soglia_attiva_umi": []string{"60"},
				"auto_man_umi":      []string{"2"},
			},
			TypeOutlet: {
				"num":           1,
				"desc":          []string{"Washer"},
				"status":        []string{"1"},
				"instant_power": []string{"1200"},
			},
		},
		status: map[DeviceType]map[string]any{},
		code:   http.StatusOK,
	}
}

func (f *fakeBridge) setStatus(t DeviceType, body map[string]any) {
	f.mu.Lock()
	f.status[t] = body
	f.mu.Unlock()
}

func (f *fakeBridge) setCode(code int) {
	f.mu.Lock()
	f.code = code
	f.mu.Unlock()
}

func (f *fakeBridge) calls() []url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]url.Values(nil), f.actions...)
}

func (f *fakeBridge) router() http.Handler {
	r := chi.NewRouter()
	serve := func(src map[DeviceType]map[string]any) http.HandlerFunc {
		return func(w http.ResponseWriter, req *http.Request) {
			f.mu.Lock()
			code := f.code
			body, ok := src[DeviceType(req.URL.Query().Get("type"))]
			f.mu.Unlock()
			if code != http.StatusOK {
				w.WriteHeader(code)
				return
			}
			if !ok {
				body = map[string]any{"num": 0}
			}
			_ = json.NewEncoder(w).Encode(body)
		}
	}
	r.Get(descPath, serve(f.desc))
	r.Get(statusPath, serve(f.status))
	r.Get(actionPath, func(w http.ResponseWriter, req *http.Request) {
		f.mu.Lock()
		f.actions = append(f.actions, req.URL.Query())
		code := f.code
		f.mu.Unlock()
		w.WriteHeader(code)
	})
	return r
}

func newTestClient(t *testing.T) (*Client, *fakeBridge) {
	t.Helper()
	f := newFakeBridge()
	srv := httptest.NewServer(f.router())
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, 0, 1000), f
}

func TestBaseURL(t *testing.T) {
	assert.Equal(t, "http://192.168.1.2:8080", baseURL("192.168.1.2", 8080))
	assert.Equal(t, "http://192.168.1.2:81", baseURL("http://192.168.1.2:81/", 8080))
	assert.Equal(t, "http://bridge.local", baseURL("bridge.local", 0))
}

func TestLogin(t *testing.T) {
	c, f := newTestClient(t)

	ok, err := c.Login(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)

	f.setCode(http.StatusForbidden)
	ok, err = c.Login(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLoginUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	c := NewClient(srv.URL, 0, 1000)
	ok, err := c.Login(context.Background())
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrConnection)
}

func TestFetchHomeIndex(t *testing.T) {
	c, _ := newTestClient(t)

	index, err := c.FetchHomeIndex(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, index.Len())

	require.Contains(t, index.Lights, "1")
	hall := index.Lights["1"]
	assert.Equal(t, "Hall", hall.Description)
	assert.Equal(t, StatusOn, hall.Status)
	assert.Equal(t, "40", hall.Value)
	assert.True(t, hall.Dimmable())
	assert.False(t, index.Lights["0"].Dimmable())

	living := index.Thermostats["0"]
	require.NotNil(t, living)
	assert.Equal(t, ModeManual, living.Mode)
	assert.Equal(t, Winter, living.Season)
	assert.Equal(t, "205", living.Temperature)
	assert.True(t, living.HasHumidity())
	assert.Equal(t, ModeManual, living.HumidityMode)

	assert.Equal(t, "1200", index.Outlets["0"].InstantPower)
	assert.Empty(t, index.Blinds)
	assert.Equal(t, []string{"0", "1"}, index.IDs(TypeLight))
}

func TestFetchHomeIndexSessionExpired(t *testing.T) {
	c, f := newTestClient(t)
	f.setCode(http.StatusUnauthorized)

	_, err := c.FetchHomeIndex(context.Background())
	assert.ErrorIs(t, err, ErrSessionExpired)
}

func TestUpdateHomeStatusPushesChanges(t *testing.T) {
	c, f := newTestClient(t)
	index, err := c.FetchHomeIndex(context.Background())
	require.NoError(t, err)

	var pushed []DeviceData
	c.OnUpdate(func(id string, d DeviceData) {
		assert.Equal(t, d.ID, id)
		pushed = append(pushed, d)
	})

	// light 0 turns on, light 1 unchanged, slot 2 is not a known device
	f.setStatus(TypeLight, map[string]any{
		"num":    3,
		"status": []int{1, 1, 1},
		"val":    []string{"0", "40", "10"},
	})

	require.NoError(t, c.UpdateHomeStatus(context.Background(), index))
	require.Len(t, pushed, 1)
	assert.Equal(t, "0", pushed[0].ID)
	assert.Equal(t, StatusOn, pushed[0].Status)
	assert.Equal(t, "Kitchen", pushed[0].Description)
	assert.Len(t, index.Lights, 2)
	assert.Equal(t, StatusOn, index.Lights["0"].Status)

	pushed = nil
	require.NoError(t, c.UpdateHomeStatus(context.Background(), index))
	assert.Empty(t, pushed)
}

func TestUpdateHomeStatusErrors(t *testing.T) {
	c, f := newTestClient(t)
	index, err := c.FetchHomeIndex(context.Background())
	require.NoError(t, err)

	f.setCode(http.StatusForbidden)
	assert.ErrorIs(t, c.UpdateHomeStatus(context.Background(), index), ErrSessionExpired)

	assert.ErrorIs(t, c.UpdateHomeStatus(context.Background(), nil), ErrConnection)
}

func TestSendQueries(t *testing.T) {
	tests := []struct {
		name string
		cmd  Command
		want url.Values
	}{
		{"light on", Toggle(TypeLight, "3", 1), url.Values{"type": {"light"}, "num1": {"3"}}},
		{"blind stop", Toggle(TypeBlind, "0", BlindStop), url.Values{"type": {"shutter"}, "num2": {"0"}}},
		{"brightness", SetValue(TypeLight, "1", 55), url.Values{"type": {"light"}, "act": {"set"}, "num": {"1"}, "val": {"55"}}},
		{"temperature", SetTemperature("12", 215), url.Values{"type": {"clima"}, "clima": {"12"}, "thermo": {"set"}, "val": {"215"}}},
		{"thermo mode", SwitchThermostatMode("12", ModeAuto), url.Values{"type": {"clima"}, "clima": {"12"}, "thermo": {"mode"}, "val": {"1"}}},
		{"season", SwitchThermostatSeason("12", Summer), url.Values{"type": {"clima"}, "clima": {"12"}, "thermo": {"season"}, "val": {"0"}}},
		{"thermo off", ToggleThermostatStatus("12", OffThermo), url.Values{"type": {"clima"}, "clima": {"12"}, "thermo": {"onoff"}, "val": {"0"}}},
		{"humidity", SetHumidity("12", 45), url.Values{"type": {"clima"}, "clima": {"12"}, "humi": {"set"}, "val": {"45"}}},
		{"humi mode", SwitchHumidifierMode("12", ModeManual), url.Values{"type": {"clima"}, "clima": {"12"}, "humi": {"mode"}, "val": {"2"}}},
		{"humi off", ToggleHumidifierStatus("12", OffHumi), url.Values{"type": {"clima"}, "clima": {"12"}, "humi": {"onoff"}, "val": {"2"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, f := newTestClient(t)
			require.NoError(t, c.Send(context.Background(), tt.cmd))
			calls := f.calls()
			require.Len(t, calls, 1)
			assert.Equal(t, tt.want, calls[0])
		})
	}
}

func TestSendBadID(t *testing.T) {
	c, f := newTestClient(t)

	err := c.Send(context.Background(), Toggle(TypeLight, "kitchen", 1))
	var cerr *CommandError
	require.True(t, errors.As(err, &cerr))
	assert.ErrorIs(t, err, ErrCommand)
	assert.Equal(t, "kitchen", cerr.Command.ID)
	assert.Empty(t, f.calls())
}

func TestSendRejected(t *testing.T) {
	c, f := newTestClient(t)
	f.setCode(http.StatusInternalServerError)

	err := c.Send(context.Background(), SetHumidity("0", 45))
	assert.ErrorIs(t, err, ErrCommand)

	f.setCode(http.StatusForbidden)
	err = c.Send(context.Background(), SetHumidity("0", 45))
	assert.ErrorIs(t, err, ErrSessionExpired)
	assert.NotErrorIs(t, err, ErrCommand)
}

func TestShutdown(t *testing.T) {
	c, f := newTestClient(t)
	c.Shutdown()

	err := c.Send(context.Background(), Toggle(TypeLight, "0", 1))
	assert.ErrorIs(t, err, ErrConnection)
	assert.Empty(t, f.calls())
}

func TestValuesMixedTypes(t *testing.T) {
	var v values
	require.NoError(t, json.Unmarshal([]byte(`["1", 2, 3.5]`), &v))
	assert.Equal(t, values{"1", "2", "3.5"}, v)

	assert.Error(t, json.Unmarshal([]byte(`[true]`), &v))
}

func TestCancelledContextIsConnectionError(t *testing.T) {
	c, f := newTestClient(t)
	index, err := c.FetchHomeIndex(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = c.Send(ctx, Toggle(TypeLight, "0", 1))
	assert.ErrorIs(t, err, ErrConnection)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrCommand)
	assert.Empty(t, f.calls())

	err = c.UpdateHomeStatus(ctx, index)
	assert.ErrorIs(t, err, ErrConnection)
}
