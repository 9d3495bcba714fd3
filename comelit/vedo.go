package comelit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/brutella/hap/log"
	"golang.org/x/time/rate"
)

const (
	vedoLoginPath    = "/login.cgi"
	vedoActionPath   = "/action.cgi"
	vedoAreaDescPath = "/user/area_desc.json"
	vedoAreaStatPath = "/user/area_stat.json"
	vedoZoneDescPath = "/user/zone_desc.json"
	vedoZoneStatPath = "/user/zone_stat.json"

	zoneOpen = 1 << 0
)

// AreaStatus is one Vedo area
type AreaStatus struct {
	Index       int    `json:"index"`
	Description string `json:"description"`
	Ready       bool   `json:"ready"`
	Armed       bool   `json:"armed"`
	Triggered   bool   `json:"triggered"`
	Sabotaged   bool   `json:"sabotaged"`
}

// ZoneStatus is one Vedo zone (a sensor)
type ZoneStatus struct {
	Index       int    `json:"index"`
	Description string `json:"description"`
	Open        bool   `json:"open"`
}

// AlarmStatus is the snapshot returned by VedoClient.AlarmStatus
type AlarmStatus struct {
	Areas []AreaStatus `json:"areas"`
	Zones []ZoneStatus `json:"zones"`
}

// VedoClient talks to the web interface of a Comelit Vedo alarm panel.
// The panel keeps the session in a cookie.
type VedoClient struct {
	base    string
	code    string
	http    *http.Client
	limiter *rate.Limiter

	mu       sync.Mutex
	areaDesc []string
	zoneDesc []string
	loggedIn bool
	shutdown bool
}

// NewVedoClient returns a client for the panel at address, authenticating with code
func NewVedoClient(address string, port int, code string) *VedoClient {
	jar, _ := cookiejar.New(nil)
	return &VedoClient{
		base: baseURL(address, port),
		code: code,
		http: &http.Client{
			Jar:     jar,
			Timeout: requestTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRate), 1),
	}
}

type vedoLogin struct {
	Logged int `json:"logged"`
}

// Login opens a session with the configured code
func (v *VedoClient) Login(ctx context.Context) (bool, error) {
	form := url.Values{"code": {v.code}}
	body, err := v.do(ctx, http.MethodPost, vedoLoginPath, form)
	if err != nil {
		if isSessionExpired(err) {
			return false, nil
		}
		return false, err
	}

	var r vedoLogin
	if err := json.Unmarshal(body, &r); err != nil {
		return false, fmt.Errorf("%w: unable to parse login response: %w", ErrConnection, err)
	}

	v.mu.Lock()
	v.loggedIn = r.Logged == 1
	v.mu.Unlock()
	return r.Logged == 1, nil
}

// LoggedIn reports whether the last login succeeded and no call saw the session expire since
func (v *VedoClient) LoggedIn() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.loggedIn
}

type vedoDesc struct {
	Logged      int      `json:"logged"`
	Num         int      `json:"num"`
	Description []string `json:"description"`
}

type vedoAreaStat struct {
	Logged   int   `json:"logged"`
	Ready    []int `json:"ready"`
	Armed    []int `json:"armed"`
	Alarm    []int `json:"alarm"`
	Sabotage []int `json:"sabotage"`
}

type vedoZoneStat struct {
	Logged int   `json:"logged"`
	Status []int `json:"status"`
}

// AlarmStatus reads every area and zone. Descriptions are read once per session.
func (v *VedoClient) AlarmStatus(ctx context.Context) (*AlarmStatus, error) {
	areaDesc, zoneDesc, err := v.descriptions(ctx)
	if err != nil {
		return nil, err
	}

	var as vedoAreaStat
	if err := v.getJSON(ctx, vedoAreaStatPath, &as, func() int { return as.Logged }); err != nil {
		return nil, err
	}
	var zs vedoZoneStat
	if err := v.getJSON(ctx, vedoZoneStatPath, &zs, func() int { return zs.Logged }); err != nil {
		return nil, err
	}

	status := &AlarmStatus{
		Areas: make([]AreaStatus, 0, len(areaDesc)),
		Zones: make([]ZoneStatus, 0, len(zoneDesc)),
	}
	for i, d := range areaDesc {
		status.Areas = append(status.Areas, AreaStatus{
			Index:       i,
			Description: d,
			Ready:       flag(as.Ready, i),
			Armed:       flag(as.Armed, i),
			Triggered:   flag(as.Alarm, i),
			Sabotaged:   flag(as.Sabotage, i),
		})
	}
	for i, d := range zoneDesc {
		open := i < len(zs.Status) && zs.Status[i]&zoneOpen != 0
		status.Zones = append(status.Zones, ZoneStatus{Index: i, Description: d, Open: open})
	}
	return status, nil
}

func (v *VedoClient) descriptions(ctx context.Context) ([]string, []string, error) {
	v.mu.Lock()
	areas, zones := v.areaDesc, v.zoneDesc
	v.mu.Unlock()
	if areas != nil && zones != nil {
		return areas, zones, nil
	}

	var ad vedoDesc
	if err := v.getJSON(ctx, vedoAreaDescPath, &ad, func() int { return ad.Logged }); err != nil {
		return nil, nil, err
	}
	var zd vedoDesc
	if err := v.getJSON(ctx, vedoZoneDescPath, &zd, func() int { return zd.Logged }); err != nil {
		return nil, nil, err
	}
	areas, zones = trimDesc(ad), trimDesc(zd)

	v.mu.Lock()
	v.areaDesc, v.zoneDesc = areas, zones
	v.mu.Unlock()
	return areas, zones, nil
}

// Arm arms area, AllAreas arms everything
func (v *VedoClient) Arm(ctx context.Context, area int) error {
	return v.Send(ctx, AlarmCommand{Arm: true, Area: area})
}

// Disarm disarms area, AllAreas disarms everything
func (v *VedoClient) Disarm(ctx context.Context, area int) error {
	return v.Send(ctx, AlarmCommand{Arm: false, Area: area})
}

// Send issues one arm/disarm command
func (v *VedoClient) Send(ctx context.Context, cmd AlarmCommand) error {
	q := url.Values{"vedo": {"1"}}
	a := strconv.Itoa(cmd.Area)
	if cmd.Arm {
		q.Set("force", "1")
		q.Set("tot", a)
	} else {
		q.Set("dis", a)
	}

	log.Debug.Printf("vedo arm=%t area=%d", cmd.Arm, cmd.Area)
	body, err := v.do(ctx, http.MethodGet, vedoActionPath, q)
	if err != nil {
		if isConnection(err) || isSessionExpired(err) {
			return err
		}
		return &CommandError{Command: cmd.command(), Err: err}
	}

	// {"logged":0} means the panel dropped the session and did nothing; an empty body is a success
	var r vedoAction
	if json.Unmarshal(body, &r) == nil && r.Logged != nil && *r.Logged == 0 {
		v.expire()
		return fmt.Errorf("%w: %s", ErrSessionExpired, vedoActionPath)
	}
	return nil
}

type vedoAction struct {
	Logged *int `json:"logged"`
}

// Shutdown forgets the session; any later call fails
func (v *VedoClient) Shutdown() {
	v.mu.Lock()
	v.shutdown = true
	v.loggedIn = false
	v.mu.Unlock()
	v.http.CloseIdleConnections()
}

func (v *VedoClient) getJSON(ctx context.Context, path string, dst any, logged func() int) error {
	body, err := v.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("%w: unable to parse %s: %w", ErrConnection, path, err)
	}
	if logged() == 0 {
		v.expire()
		return fmt.Errorf("%w: %s", ErrSessionExpired, path)
	}
	return nil
}

// expire forgets the session and the cached descriptions
func (v *VedoClient) expire() {
	v.mu.Lock()
	v.loggedIn = false
	v.areaDesc, v.zoneDesc = nil, nil
	v.mu.Unlock()
}

func (v *VedoClient) do(ctx context.Context, method, path string, q url.Values) ([]byte, error) {
	v.mu.Lock()
	shutdown := v.shutdown
	v.mu.Unlock()
	if shutdown {
		return nil, fmt.Errorf("%w: client shut down", ErrConnection)
	}

	if err := v.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnection, err)
	}

	var req *http.Request
	var err error
	if method == http.MethodPost {
		req, err = http.NewRequestWithContext(ctx, method, v.base+path, strings.NewReader(q.Encode()))
		if err == nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	} else {
		u := v.base + path
		if len(q) > 0 {
			u += "?" + q.Encode()
		}
		req, err = http.NewRequestWithContext(ctx, method, u, nil)
	}
	if err != nil {
		return nil, err
	}

	resp, err := v.http.Do(req)
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

func trimDesc(d vedoDesc) []string {
	out := d.Description
	if d.Num > 0 && d.Num < len(out) {
		out = out[:d.Num]
	}
	if out == nil {
		out = []string{}
	}
	return out
}

func flag(a []int, i int) bool {
	return i < len(a) && a[i] != 0
}
