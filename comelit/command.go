package comelit

import (
	"strconv"
)

// Action selects the bridge call a Command turns into
type Action int

const (
	ActionToggle Action = iota
	ActionSetValue
	ActionSetTemperature
	ActionThermostatMode
	ActionThermostatSeason
	ActionThermostatStatus
	ActionSetHumidity
	ActionHumidifierMode
	ActionHumidifierStatus
	ActionArm
	ActionDisarm
)

func (a Action) String() string {
	switch a {
	case ActionToggle:
		return "toggle"
	case ActionSetValue:
		return "set-value"
	case ActionSetTemperature:
		return "set-temperature"
	case ActionThermostatMode:
		return "thermostat-mode"
	case ActionThermostatSeason:
		return "thermostat-season"
	case ActionThermostatStatus:
		return "thermostat-status"
	case ActionSetHumidity:
		return "set-humidity"
	case ActionHumidifierMode:
		return "humidifier-mode"
	case ActionHumidifierStatus:
		return "humidifier-status"
	case ActionArm:
		return "arm"
	case ActionDisarm:
		return "disarm"
	}
	return "action-" + strconv.Itoa(int(a))
}

// Command is one call to the bridge, addressed by category and identifier
type Command struct {
	Type   DeviceType
	ID     string
	Action Action
	Value  string
}

// Toggle switches a light, outlet or supplier on (1) or off (0), or moves a blind
func Toggle(t DeviceType, id string, status int) Command {
	return Command{Type: t, ID: id, Action: ActionToggle, Value: strconv.Itoa(status)}
}

// SetValue sets the brightness of a dimmable light
func SetValue(t DeviceType, id string, value int) Command {
	return Command{Type: t, ID: id, Action: ActionSetValue, Value: strconv.Itoa(value)}
}

// SetTemperature takes tenths of a degree
func SetTemperature(id string, tenths int) Command {
	return Command{Type: TypeClima, ID: id, Action: ActionSetTemperature, Value: strconv.Itoa(tenths)}
}

func SwitchThermostatMode(id string, mode ClimaMode) Command {
	return Command{Type: TypeClima, ID: id, Action: ActionThermostatMode, Value: string(mode)}
}

func SwitchThermostatSeason(id string, season Season) Command {
	return Command{Type: TypeClima, ID: id, Action: ActionThermostatSeason, Value: string(season)}
}

func ToggleThermostatStatus(id string, s ClimaOnOff) Command {
	return Command{Type: TypeClima, ID: id, Action: ActionThermostatStatus, Value: strconv.Itoa(int(s))}
}

// SetHumidity sets the active dehumidifier threshold, in percent
func SetHumidity(id string, percent int) Command {
	return Command{Type: TypeClima, ID: id, Action: ActionSetHumidity, Value: strconv.Itoa(percent)}
}

func SwitchHumidifierMode(id string, mode ClimaMode) Command {
	return Command{Type: TypeClima, ID: id, Action: ActionHumidifierMode, Value: string(mode)}
}

func ToggleHumidifierStatus(id string, s ClimaOnOff) Command {
	return Command{Type: TypeClima, ID: id, Action: ActionHumidifierStatus, Value: strconv.Itoa(int(s))}
}

// AllAreas addresses every area of the Vedo alarm
const AllAreas = 32

// AlarmCommand arms or disarms one Vedo area
type AlarmCommand struct {
	Arm  bool
	Area int
}

func (c AlarmCommand) command() Command {
	a := ActionDisarm
	if c.Arm {
		a = ActionArm
	}
	return Command{Type: TypeAlarm, ID: strconv.Itoa(c.Area), Action: a}
}
