package comelithkbridge

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudkucooland/HomeKitBridges/ComelitHKBridge/comelit"
)

func TestDeriveLight(t *testing.T) {
	tests := []struct {
		name string
		d    comelit.DeviceData
		want LightState
	}{
		{"on", comelit.DeviceData{Type: comelit.TypeLight, Status: comelit.StatusOn, SubType: "1"}, LightState{On: true, Brightness: 100}},
		{"off", comelit.DeviceData{Type: comelit.TypeLight, Status: comelit.StatusOff, SubType: "1"}, LightState{}},
		{"dimmer", comelit.DeviceData{Type: comelit.TypeLight, Status: comelit.StatusOn, SubType: "2", Value: "40"}, LightState{On: true, Brightness: 40}},
		{"dimmer over", comelit.DeviceData{Type: comelit.TypeLight, Status: comelit.StatusOn, SubType: "2", Value: "255"}, LightState{On: true, Brightness: 100}},
		{"dimmer garbage", comelit.DeviceData{Type: comelit.TypeLight, Status: comelit.StatusOff, SubType: "2", Value: "?"}, LightState{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, deriveLight(tt.d))
		})
	}
}

func TestLightbulb(t *testing.T) {
	cmd := &fakeCommander{}
	plain := newLightbulb(context.Background(), comelit.DeviceData{ID: "0", Type: comelit.TypeLight, Description: "Kitchen", Status: comelit.StatusOff}, cmd)
	assert.Nil(t, plain.Lightbulb.Brightness)
	assert.False(t, plain.Lightbulb.On.Value())

	dimmer := newLightbulb(context.Background(), comelit.DeviceData{ID: "1", Type: comelit.TypeLight, Status: comelit.StatusOn, SubType: "2", Value: "40"}, cmd)
	require.NotNil(t, dimmer.Lightbulb.Brightness)
	assert.True(t, dimmer.Lightbulb.On.Value())
	assert.Equal(t, 40, dimmer.Lightbulb.Brightness.Value())
	assert.Equal(t, "light 1", dimmer.A.Info.Name.Value())

	require.NoError(t, plain.setOn(true))
	require.NoError(t, dimmer.setOn(false))
	require.NoError(t, dimmer.setBrightness(70))
	assert.Equal(t, []comelit.Command{
		comelit.Toggle(comelit.TypeLight, "0", 1),
		comelit.Toggle(comelit.TypeLight, "1", 0),
		comelit.SetValue(comelit.TypeLight, "1", 70),
	}, cmd.sent())

	plain.update(comelit.DeviceData{ID: "0", Type: comelit.TypeLight, Status: comelit.StatusOn})
	assert.True(t, plain.Lightbulb.On.Value())
	assert.Equal(t, LightState{On: true, Brightness: 100}, plain.snapshot().State)
}

func TestLightbulbRemoteWriteFollowsBridge(t *testing.T) {
	cmd := &fakeCommander{}
	acc := newLightbulb(context.Background(), comelit.DeviceData{ID: "1", Type: comelit.TypeLight, Status: comelit.StatusOff, SubType: "2", Value: "40"}, cmd)

	homeKitWrite(t, acc.Lightbulb.On, true)
	homeKitWrite(t, acc.Lightbulb.Brightness, 90)
	assert.Equal(t, []comelit.Command{
		comelit.Toggle(comelit.TypeLight, "1", 1),
		comelit.SetValue(comelit.TypeLight, "1", 90),
	}, cmd.sent())

	// still what the bridge last reported
	want := deriveLight(acc.current())
	assert.Equal(t, want.On, acc.Lightbulb.On.Value())
	assert.False(t, acc.Lightbulb.On.Value())
	assert.Equal(t, 40, acc.Lightbulb.Brightness.Value())

	acc.update(comelit.DeviceData{ID: "1", Type: comelit.TypeLight, Status: comelit.StatusOn, SubType: "2", Value: "90"})
	assert.True(t, acc.Lightbulb.On.Value())
	assert.Equal(t, 90, acc.Lightbulb.Brightness.Value())
}

func TestAccessoryIDStable(t *testing.T) {
	a := accessoryID(deviceKey{Category: comelit.TypeLight, ID: "0"})
	b := accessoryID(deviceKey{Category: comelit.TypeOutlet, ID: "0"})
	assert.Equal(t, a, accessoryID(deviceKey{Category: comelit.TypeLight, ID: "0"}))
	assert.NotEqual(t, a, b)
	assert.Greater(t, a, uint64(1))
}
