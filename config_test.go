package comelithkbridge

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadConfigMissing(t *testing.T) {
	conf, err := LoadConfig(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), *conf)
}

func TestLoadConfigJSON(t *testing.T) {
	path := writeConfig(t, "config.json", `{
		"pin": "11122333",
		"bridge_url": "192.168.1.2",
		"refresh_rate": 10,
		"alarm_code": "1234",
		"mqtt": {"broker": "tcp://localhost:1883"}
	}`)

	conf, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "11122333", conf.Pin)
	assert.Equal(t, "192.168.1.2", conf.BridgeURL)
	assert.Equal(t, 10, conf.RefreshRate)
	assert.Equal(t, 80, conf.BridgePort)
	assert.Equal(t, 35, conf.BlindClosingTime)
	assert.Equal(t, "tcp://localhost:1883", conf.MQTT.Broker)
	assert.Equal(t, "comelit", conf.MQTT.Prefix)
	assert.True(t, conf.AlarmEnabled())
}

func TestLoadConfigYAML(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
bridge_url: comelit.lan
bridge_port: 8080
blind_closing_time: 50
disable_alarm: true
alarm_code: "1234"
alarm_address: vedo.lan
alarm_port: 8081
listen_addr: ":8500"
`)

	conf, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "comelit.lan", conf.BridgeURL)
	assert.Equal(t, 8080, conf.BridgePort)
	assert.Equal(t, 50, conf.BlindClosingTime)
	assert.Equal(t, ":8500", conf.ListenAddr)
	assert.False(t, conf.AlarmEnabled())

	addr, port := conf.AlarmAddressPort()
	assert.Equal(t, "vedo.lan", addr)
	assert.Equal(t, 8081, port)
}

func TestLoadConfigInvalid(t *testing.T) {
	tests := map[string]string{
		"refresh":   `{"refresh_rate": 0}`,
		"closing":   `{"blind_closing_time": -1}`,
		"port":      `{"bridge_port": 70000}`,
		"alarm":     `{"alarm_port": -2}`,
		"ratelimit": `{"rate_limit": -1}`,
	}
	for name, contents := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, "config.json", contents))
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}

	_, err := LoadConfig(writeConfig(t, "config.json", `{"pin": `))
	assert.Error(t, err)
}

func TestAlarmAddressDefaultsToBridge(t *testing.T) {
	conf := DefaultConfig()
	conf.BridgeURL = "192.168.1.2"
	addr, port := conf.AlarmAddressPort()
	assert.Equal(t, "192.168.1.2", addr)
	assert.Zero(t, port)
	assert.False(t, conf.AlarmEnabled())
}

func TestConfigStringMasksSecrets(t *testing.T) {
	conf := DefaultConfig()
	conf.AlarmCode = "1234"
	conf.MQTT.Password = "hunter2"

	s := conf.String()
	assert.NotContains(t, s, "1234")
	assert.NotContains(t, s, "hunter2")
	assert.Contains(t, s, "****")
	assert.Equal(t, "1234", conf.AlarmCode)
}
