package comelithkbridge

import (
	"context"
	"fmt"
	"math"

	"github.com/brutella/hap/accessory"
	"github.com/brutella/hap/characteristic"
	"github.com/brutella/hap/service"

	"github.com/cloudkucooland/HomeKitBridges/ComelitHKBridge/comelit"
)

// TargetHeatingCoolingState
const (
	targetHeatingCoolingOff  = 0
	targetHeatingCoolingHeat = 1
	targetHeatingCoolingCool = 2
	targetHeatingCoolingAuto = 3
)

// ThermostatState is the presentation of a clima device; temperatures are in °C
type ThermostatState struct {
	CurrentTemperature float64        `json:"current_temperature"`
	TargetTemperature  float64        `json:"target_temperature"`
	Current            int            `json:"current"`
	Target             int            `json:"target"`
	Humidity           *HumidityState `json:"humidity,omitempty"`
}

func thermostatOff(d comelit.DeviceData) bool {
	return d.Mode == comelit.ModeOffAuto || d.Mode == comelit.ModeOffManual
}

func deriveThermostat(d comelit.DeviceData) ThermostatState {
	s := ThermostatState{
		CurrentTemperature: atof(d.Temperature) / 10,
		TargetTemperature:  atof(d.ActiveThreshold) / 10,
	}

	winter := d.Season == comelit.Winter
	switch {
	case thermostatOff(d):
		s.Current = characteristic.CurrentHeatingCoolingStateOff
	case winter:
		s.Current = characteristic.CurrentHeatingCoolingStateHeat
	default:
		s.Current = characteristic.CurrentHeatingCoolingStateCool
	}

	switch {
	case thermostatOff(d):
		s.Target = targetHeatingCoolingOff
	case d.Mode == comelit.ModeAuto:
		s.Target = targetHeatingCoolingAuto
	case winter:
		s.Target = targetHeatingCoolingHeat
	default:
		s.Target = targetHeatingCoolingCool
	}

	if d.HasHumidity() {
		h := deriveHumidity(d)
		s.Humidity = &h
	}
	return s
}

func thermostatTemperatureCommand(id string, celsius float64) comelit.Command {
	return comelit.SetTemperature(id, int(math.Round(celsius*10)))
}

func thermostatTargetCommand(id string, target int) (comelit.Command, error) {
	switch target {
	case targetHeatingCoolingOff:
		return comelit.ToggleThermostatStatus(id, comelit.OffThermo), nil
	case targetHeatingCoolingAuto:
		return comelit.SwitchThermostatMode(id, comelit.ModeAuto), nil
	case targetHeatingCoolingHeat:
		return comelit.SwitchThermostatSeason(id, comelit.Winter), nil
	case targetHeatingCoolingCool:
		return comelit.SwitchThermostatSeason(id, comelit.Summer), nil
	}
	return comelit.Command{}, fmt.Errorf("unknown thermostat target state %d", target)
}

// Thermostat is a clima device; when the bridge reports humidity it
// also carries a dehumidifier service
type Thermostat struct {
	*generic

	Thermostat   *thermostatSvc
	Dehumidifier *dehumidifierSvc
}

func newThermostat(ctx context.Context, d comelit.DeviceData, cmd Commander) *Thermostat {
	acc := Thermostat{}
	acc.generic = newGeneric(ctx, d, cmd)
	acc.A = accessory.New(acc.info("clima"), accessory.TypeThermostat)
	acc.finalize()

	acc.Thermostat = newThermostatSvc()
	acc.AddS(acc.Thermostat.S)
	acc.Thermostat.TemperatureDisplayUnits.SetValue(characteristic.TemperatureDisplayUnitsCelsius)

	acc.Thermostat.TargetTemperature.OnSetRemoteValue(acc.setTargetTemperature)
	acc.Thermostat.TargetTemperature.OnValueRemoteUpdate(func(float64) { acc.resync() })
	acc.Thermostat.TargetHeatingCoolingState.OnSetRemoteValue(acc.setTargetState)
	acc.Thermostat.TargetHeatingCoolingState.OnValueRemoteUpdate(func(int) { acc.resync() })

	if d.HasHumidity() {
		acc.Dehumidifier = newDehumidifierSvc()
		acc.AddS(acc.Dehumidifier.S)

		acc.Dehumidifier.RelativeHumidityDehumidifierThreshold.OnSetRemoteValue(acc.setHumidityThreshold)
		acc.Dehumidifier.RelativeHumidityDehumidifierThreshold.OnValueRemoteUpdate(func(float64) { acc.resync() })
		acc.Dehumidifier.TargetHumidifierDehumidifierState.OnSetRemoteValue(acc.setHumidityTarget)
		acc.Dehumidifier.TargetHumidifierDehumidifierState.OnValueRemoteUpdate(func(int) { acc.resync() })
		acc.Dehumidifier.Active.OnSetRemoteValue(acc.setHumidityActive)
		acc.Dehumidifier.Active.OnValueRemoteUpdate(func(int) { acc.resync() })
	}

	acc.update(d)
	return &acc
}

func (t *Thermostat) update(d comelit.DeviceData) {
	t.store(d)
	t.resync()
}

func (t *Thermostat) resync() {
	t.applyMu.Lock()
	defer t.applyMu.Unlock()

	s := t.state()

	t.Thermostat.CurrentTemperature.SetValue(s.CurrentTemperature)
	t.Thermostat.TargetTemperature.SetValue(s.TargetTemperature)
	t.Thermostat.CurrentHeatingCoolingState.SetValue(s.Current)
	t.Thermostat.TargetHeatingCoolingState.SetValue(s.Target)

	if t.Dehumidifier != nil && s.Humidity != nil {
		t.Dehumidifier.apply(*s.Humidity)
	}
}

func (t *Thermostat) state() ThermostatState {
	return deriveThermostat(t.current())
}

func (t *Thermostat) snapshot() DeviceSnapshot {
	return t.snapshotOf(t.state())
}

func (t *Thermostat) setTargetTemperature(celsius float64) error {
	return t.send(thermostatTemperatureCommand(t.k.ID, celsius))
}

func (t *Thermostat) setTargetState(target int) error {
	cmd, err := thermostatTargetCommand(t.k.ID, target)
	if err != nil {
		return err
	}
	return t.send(cmd)
}

func (t *Thermostat) setHumidityThreshold(percent float64) error {
	return t.send(humidityThresholdCommand(t.k.ID, percent))
}

func (t *Thermostat) setHumidityTarget(target int) error {
	cmd, err := humidityTargetCommand(t.k.ID, target)
	if err != nil {
		return err
	}
	return t.send(cmd)
}

func (t *Thermostat) setHumidityActive(active int) error {
	return t.send(humidityActiveCommand(t.k.ID, active))
}

type thermostatSvc struct {
	*service.S

	CurrentHeatingCoolingState *characteristic.CurrentHeatingCoolingState
	TargetHeatingCoolingState  *characteristic.TargetHeatingCoolingState
	CurrentTemperature         *characteristic.CurrentTemperature
	TargetTemperature          *characteristic.TargetTemperature
	TemperatureDisplayUnits    *characteristic.TemperatureDisplayUnits
}

func newThermostatSvc() *thermostatSvc {
	s := thermostatSvc{}
	s.S = service.New(service.TypeThermostat)

	s.CurrentHeatingCoolingState = characteristic.NewCurrentHeatingCoolingState()
	s.AddC(s.CurrentHeatingCoolingState.C)

	s.TargetHeatingCoolingState = characteristic.NewTargetHeatingCoolingState()
	s.AddC(s.TargetHeatingCoolingState.C)

	s.CurrentTemperature = characteristic.NewCurrentTemperature()
	s.AddC(s.CurrentTemperature.C)

	s.TargetTemperature = characteristic.NewTargetTemperature()
	s.AddC(s.TargetTemperature.C)

	s.TemperatureDisplayUnits = characteristic.NewTemperatureDisplayUnits()
	s.AddC(s.TemperatureDisplayUnits.C)

	return &s
}
