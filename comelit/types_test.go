package comelit

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHomeIndex(t *testing.T) {
	h := NewHomeIndex()
	h.Add(DeviceData{ID: "10", Type: TypeLight})
	h.Add(DeviceData{ID: "9", Type: TypeLight})
	h.Add(DeviceData{ID: "0", Type: TypeBlind})
	h.Add(DeviceData{ID: "0", Type: TypeOutlet})
	h.Add(DeviceData{ID: "1", Type: DeviceType("scenario")})

	assert.Equal(t, 4, h.Len())
	assert.Equal(t, []string{"9", "10"}, h.IDs(TypeLight))
	assert.Equal(t, []string{"0"}, h.IDs(TypeBlind))
	assert.Empty(t, h.IDs(TypeClima))
	assert.Nil(t, h.Category(TypeAlarm))

	// same id, different categories
	assert.Equal(t, TypeBlind, h.Blinds["0"].Type)
	assert.Equal(t, TypeOutlet, h.Outlets["0"].Type)
}

func TestDeviceDataCapabilities(t *testing.T) {
	assert.True(t, DeviceData{Type: TypeLight, SubType: "2"}.Dimmable())
	assert.False(t, DeviceData{Type: TypeLight, SubType: "1"}.Dimmable())
	assert.False(t, DeviceData{Type: TypeOutlet, SubType: "2"}.Dimmable())

	assert.True(t, DeviceData{Type: TypeClima, Humidity: "40"}.HasHumidity())
	assert.False(t, DeviceData{Type: TypeClima}.HasHumidity())
}

func TestActionString(t *testing.T) {
	assert.Equal(t, "toggle", ActionToggle.String())
	assert.Equal(t, "humidifier-status", ActionHumidifierStatus.String())
	assert.Equal(t, "disarm", ActionDisarm.String())
	assert.Equal(t, "action-42", Action(42).String())
}

func TestAlarmCommand(t *testing.T) {
	assert.Equal(t, Command{Type: TypeAlarm, ID: "32", Action: ActionArm}, AlarmCommand{Arm: true, Area: AllAreas}.command())
	assert.Equal(t, Command{Type: TypeAlarm, ID: "1", Action: ActionDisarm}, AlarmCommand{Area: 1}.command())
}

func TestCommandError(t *testing.T) {
	cause := errors.New("bridge said no")
	err := error(&CommandError{Command: SetHumidity("12", 45), Err: cause})
	assert.ErrorIs(t, err, ErrCommand)
	assert.ErrorIs(t, err, cause)

	var ce *CommandError
	assert.ErrorAs(t, err, &ce)
	assert.Equal(t, ActionSetHumidity, ce.Command.Action)
}
