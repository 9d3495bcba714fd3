package comelithkbridge

import (
	"fmt"
	"math"

	"github.com/brutella/hap/characteristic"
	"github.com/brutella/hap/service"

	"github.com/cloudkucooland/HomeKitBridges/ComelitHKBridge/comelit"
)

// CurrentHumidifierDehumidifierState
const (
	humidifierInactive      = 0
	humidifierIdle          = 1
	humidifierHumidifying   = 2
	humidifierDehumidifying = 3
)

// TargetHumidifierDehumidifierState, there is no "off", that is Active
const (
	targetHumidifierOrDehumidifier = 0
	targetHumidifier               = 1
	targetDehumidifier             = 2
)

// HumidityState is the presentation of the dehumidifier half of a thermostat
type HumidityState struct {
	CurrentHumidity       float64 `json:"current_humidity"`
	HumidifierThreshold   float64 `json:"humidifier_threshold"`
	DehumidifierThreshold float64 `json:"dehumidifier_threshold"`
	Current               int     `json:"current"`
	Target                int     `json:"target"`
	Active                int     `json:"active"`
}

// deriveHumidity maps the auto_man_umi code, first match wins:
// off codes are inactive, auto is idle in auto mode, anything else is dehumidifying
func deriveHumidity(d comelit.DeviceData) HumidityState {
	s := HumidityState{
		CurrentHumidity:       atof(d.Humidity),
		HumidifierThreshold:   atof(d.Humidity),
		DehumidifierThreshold: atof(d.HumidityThreshold),
	}

	switch d.HumidityMode {
	case comelit.ModeOffAuto, comelit.ModeOffManual, comelit.ModeNone:
		s.Current = humidifierInactive
		s.Target = targetDehumidifier
		s.Active = characteristic.ActiveInactive
	case comelit.ModeAuto:
		s.Current = humidifierIdle
		s.Target = targetHumidifierOrDehumidifier
		s.Active = characteristic.ActiveActive
	default:
		s.Current = humidifierDehumidifying
		s.Target = targetDehumidifier
		s.Active = characteristic.ActiveActive
	}
	return s
}

func humidityThresholdCommand(id string, percent float64) comelit.Command {
	return comelit.SetHumidity(id, int(math.Round(percent)))
}

// humidifier and dehumidifier both mean manual on the bridge
func humidityTargetCommand(id string, target int) (comelit.Command, error) {
	switch target {
	case targetHumidifierOrDehumidifier:
		return comelit.SwitchHumidifierMode(id, comelit.ModeAuto), nil
	case targetHumidifier, targetDehumidifier:
		return comelit.SwitchHumidifierMode(id, comelit.ModeManual), nil
	}
	return comelit.Command{}, fmt.Errorf("unknown humidifier target state %d", target)
}

func humidityActiveCommand(id string, active int) comelit.Command {
	if active == characteristic.ActiveActive {
		return comelit.SwitchHumidifierMode(id, comelit.ModeManual)
	}
	return comelit.ToggleHumidifierStatus(id, comelit.OffHumi)
}

type dehumidifierSvc struct {
	*service.S

	Active                                *characteristic.Active
	CurrentRelativeHumidity               *characteristic.CurrentRelativeHumidity
	CurrentHumidifierDehumidifierState    *characteristic.CurrentHumidifierDehumidifierState
	TargetHumidifierDehumidifierState     *characteristic.TargetHumidifierDehumidifierState
	RelativeHumidityDehumidifierThreshold *characteristic.RelativeHumidityDehumidifierThreshold
	RelativeHumidityHumidifierThreshold   *characteristic.RelativeHumidityHumidifierThreshold
}

func newDehumidifierSvc() *dehumidifierSvc {
	s := dehumidifierSvc{}
	s.S = service.New("BD") // HumidifierDehumidifier

	s.Active = characteristic.NewActive()
	s.AddC(s.Active.C)

	s.CurrentRelativeHumidity = characteristic.NewCurrentRelativeHumidity()
	s.AddC(s.CurrentRelativeHumidity.C)

	s.CurrentHumidifierDehumidifierState = characteristic.NewCurrentHumidifierDehumidifierState()
	s.AddC(s.CurrentHumidifierDehumidifierState.C)

	s.TargetHumidifierDehumidifierState = characteristic.NewTargetHumidifierDehumidifierState()
	s.AddC(s.TargetHumidifierDehumidifierState.C)

	s.RelativeHumidityDehumidifierThreshold = characteristic.NewRelativeHumidityDehumidifierThreshold()
	s.AddC(s.RelativeHumidityDehumidifierThreshold.C)

	s.RelativeHumidityHumidifierThreshold = characteristic.NewRelativeHumidityHumidifierThreshold()
	s.AddC(s.RelativeHumidityHumidifierThreshold.C)

	return &s
}

func (s *dehumidifierSvc) apply(h HumidityState) {
	s.Active.SetValue(h.Active)
	s.CurrentRelativeHumidity.SetValue(h.CurrentHumidity)
	s.CurrentHumidifierDehumidifierState.SetValue(h.Current)
	s.TargetHumidifierDehumidifierState.SetValue(h.Target)
	s.RelativeHumidityDehumidifierThreshold.SetValue(h.DehumidifierThreshold)
	s.RelativeHumidityHumidifierThreshold.SetValue(h.HumidifierThreshold)
}
