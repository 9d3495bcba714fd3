package comelit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/brutella/hap/log"
	"golang.org/x/time/rate"
)

const (
	descPath   = "/user/icon_desc.json"
	statusPath = "/user/icon_status.json"
	actionPath = "/user/action.cgi"

	// DefaultRate is the number of calls per second the serial bridge tolerates
	DefaultRate = 4

	requestTimeout = 10 * time.Second
)

// UpdateFunc receives every device whose state changed during a refresh
type UpdateFunc func(id string, data DeviceData)

// Client talks to a Comelit Serial Bridge over its local HTTP interface.
// The bridge falls over when hammered, so every call waits on a shared limiter.
type Client struct {
	base    string
	http    *http.Client
	limiter *rate.Limiter

	mu       sync.RWMutex
	onUpdate UpdateFunc
	closed   bool
}

// NewClient returns a client for the bridge at address (host, host:port or url)
func NewClient(address string, port int, callsPerSecond float64) *Client {
	if callsPerSecond <= 0 {
		callsPerSecond = DefaultRate
	}
	return &Client{
		base: baseURL(address, port),
		http: &http.Client{
			Transport: &http.Transport{MaxIdleConns: 2, IdleConnTimeout: 30 * time.Second},
			Timeout:   requestTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(callsPerSecond), 1),
	}
}

func baseURL(address string, port int) string {
	if !strings.HasPrefix(address, "http://") && !strings.HasPrefix(address, "https://") {
		address = "http://" + address
	}
	u, err := url.Parse(address)
	if err != nil {
		return strings.TrimSuffix(address, "/")
	}
	if port > 0 && u.Port() == "" {
		u.Host = fmt.Sprintf("%s:%d", u.Hostname(), port)
	}
	u.Path = strings.TrimSuffix(u.Path, "/")
	return u.String()
}

// OnUpdate registers the callback for pushed device changes
func (c *Client) OnUpdate(fn UpdateFunc) {
	c.mu.Lock()
	c.onUpdate = fn
	c.mu.Unlock()
}

func (c *Client) push(id string, d DeviceData) {
	c.mu.RLock()
	fn := c.onUpdate
	c.mu.RUnlock()
	if fn != nil {
		fn(id, d)
	}
}

// Login checks that the bridge accepts our requests.
// false with a nil error means the bridge answered but refused the session.
func (c *Client) Login(ctx context.Context) (bool, error) {
	if _, err := c.get(ctx, statusPath, url.Values{"type": {string(TypeLight)}}); err != nil {
		if isSessionExpired(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// FetchHomeIndex reads the description of every category
func (c *Client) FetchHomeIndex(ctx context.Context) (*HomeIndex, error) {
	index := NewHomeIndex()

	for _, t := range Categories {
		r, err := c.icons(ctx, descPath, t)
		if err != nil {
			return nil, err
		}
		n := r.Num
		if n == 0 {
			n = len(r.Desc)
		}
		for i := 0; i < n; i++ {
			d := DeviceData{ID: strconv.Itoa(i), Type: t}
			r.patch(&d, i)
			index.Add(d)
		}
		log.Debug.Printf("fetched %d %s devices", n, t)
	}
	return index, nil
}

// UpdateHomeStatus re-reads the status of every known device.
// Identifiers are never added or removed, only payload fields change;
// every device that changed is pushed to the OnUpdate callback.
func (c *Client) UpdateHomeStatus(ctx context.Context, index *HomeIndex) error {
	if index == nil {
		return fmt.Errorf("%w: no home index", ErrConnection)
	}

	for _, t := range Categories {
		devices := index.Category(t)
		if len(devices) == 0 {
			continue
		}

		r, err := c.icons(ctx, statusPath, t)
		if err != nil {
			return err
		}

		for _, id := range index.IDs(t) {
			i, err := strconv.Atoi(id)
			if err != nil {
				continue
			}
			d := devices[id]
			before := *d
			r.patch(d, i)
			if *d != before {
				c.push(id, *d)
			}
		}
	}
	return nil
}

// Send issues a single command
func (c *Client) Send(ctx context.Context, cmd Command) error {
	q, err := cmd.query()
	if err != nil {
		return &CommandError{Command: cmd, Err: err}
	}

	log.Debug.Printf("sending %s %s#%s %s", cmd.Action, cmd.Type, cmd.ID, cmd.Value)
	if _, err := c.get(ctx, actionPath, q); err != nil {
		if isConnection(err) || isSessionExpired(err) {
			return err
		}
		return &CommandError{Command: cmd, Err: err}
	}
	return nil
}

// Shutdown drops idle connections; any later call fails
func (c *Client) Shutdown() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.http.CloseIdleConnections()
}

func (c *Client) icons(ctx context.Context, path string, t DeviceType) (*iconResponse, error) {
	body, err := c.get(ctx, path, url.Values{"type": {string(t)}})
	if err != nil {
		return nil, err
	}

	var r iconResponse
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, fmt.Errorf("%w: unable to parse %s %s: %w", ErrConnection, path, t, err)
	}
	return &r, nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values) ([]byte, error) {
	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		return nil, fmt.Errorf("%w: client shut down", ErrConnection)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnection, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnection, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: http status %d", ErrSessionExpired, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("http status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnection, err)
	}
	return body, nil
}

func (cmd Command) query() (url.Values, error) {
	if _, err := strconv.Atoi(cmd.ID); err != nil {
		return nil, fmt.Errorf("bad device id %q", cmd.ID)
	}

	q := url.Values{"type": {string(cmd.Type)}}
	switch cmd.Action {
	case ActionToggle:
		q.Set("num"+cmd.Value, cmd.ID)
	case ActionSetValue:
		q.Set("act", "set")
		q.Set("num", cmd.ID)
		q.Set("val", cmd.Value)
	case ActionSetTemperature:
		q.Set("clima", cmd.ID)
		q.Set("thermo", "set")
		q.Set("val", cmd.Value)
	case ActionThermostatMode:
		q.Set("clima", cmd.ID)
		q.Set("thermo", "mode")
		q.Set("val", cmd.Value)
	case ActionThermostatSeason:
		q.Set("clima", cmd.ID)
		q.Set("thermo", "season")
		q.Set("val", cmd.Value)
	case ActionThermostatStatus:
		q.Set("clima", cmd.ID)
		q.Set("thermo", "onoff")
		q.Set("val", cmd.Value)
	case ActionSetHumidity:
		q.Set("clima", cmd.ID)
		q.Set("humi", "set")
		q.Set("val", cmd.Value)
	case ActionHumidifierMode:
		q.Set("clima", cmd.ID)
		q.Set("humi", "mode")
		q.Set("val", cmd.Value)
	case ActionHumidifierStatus:
		q.Set("clima", cmd.ID)
		q.Set("humi", "onoff")
		q.Set("val", cmd.Value)
	default:
		return nil, fmt.Errorf("unknown action %s", cmd.Action)
	}
	return q, nil
}

// iconResponse is the body of icon_desc.json and icon_status.json.
// icon_status.json carries no descriptions.
type iconResponse struct {
	Num          int    `json:"num"`
	Desc         values `json:"desc"`
	Status       values `json:"status"`
	Val          values `json:"val"`
	SubType      values `json:"sub_type"`
	Temp         values `json:"temp"`
	Threshold    values `json:"soglia_attiva"`
	AutoMan      values `json:"auto_man"`
	EstInv       values `json:"est_inv"`
	Humidity     values `json:"umidita"`
	HumThreshold values `json:"soglia_attiva_umi"`
	AutoManUmi   values `json:"auto_man_umi"`
	InstantPower values `json:"instant_power"`
}

// patch copies slot i of every array present in the response into d
func (r *iconResponse) patch(d *DeviceData, i int) {
	r.Desc.set(&d.Description, i)
	r.Status.set(&d.Status, i)
	r.Val.set(&d.Value, i)
	r.SubType.set(&d.SubType, i)
	r.Temp.set(&d.Temperature, i)
	r.Threshold.set(&d.ActiveThreshold, i)
	r.Humidity.set(&d.Humidity, i)
	r.HumThreshold.set(&d.HumidityThreshold, i)
	r.InstantPower.set(&d.InstantPower, i)

	var s string
	if r.AutoMan.set(&s, i) {
		d.Mode = ClimaMode(s)
	}
	if r.EstInv.set(&s, i) {
		d.Season = Season(s)
	}
	if r.AutoManUmi.set(&s, i) {
		d.HumidityMode = ClimaMode(s)
	}
}

// values accepts arrays of strings or numbers, the firmware mixes both
type values []string

func (v *values) UnmarshalJSON(b []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	out := make([]string, len(raw))
	for i, r := range raw {
		var s string
		if err := json.Unmarshal(r, &s); err == nil {
			out[i] = s
			continue
		}
		var n json.Number
		if err := json.Unmarshal(r, &n); err != nil {
			return err
		}
		out[i] = n.String()
	}
	*v = out
	return nil
}

func (v values) set(dst *string, i int) bool {
	if i >= len(v) {
		return false
	}
	*dst = v[i]
	return true
}
