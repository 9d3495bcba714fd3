package comelithkbridge

import (
	"github.com/brutella/hap/accessory"
	"github.com/brutella/hap/characteristic"
	"github.com/brutella/hap/service"
)

const firmware = "0.1.0"

// Bridge is the root accessory on which all other devices hang.
// It is served even when the serial bridge cannot be reached.
type Bridge struct {
	*accessory.Bridge

	Settings *settingsService
}

// NewBridge builds the root accessory with its settings service
func NewBridge(cfg *Config) *Bridge {
	b := Bridge{}
	b.Bridge = accessory.NewBridge(accessory.Info{
		Name:         "Comelit-Homekit Bridge",
		SerialNumber: "1201",
		Manufacturer: "cloudkucooland",
		Model:        "comelit-homekit",
		Firmware:     firmware,
	})
	b.A.Id = 1

	// create the settings service
	settings := settingsService{}
	settings.S = service.New("E880") // custom

	settings.Name = characteristic.NewName()
	settings.Name.SetValue("Settings")
	settings.S.AddC(settings.Name.C)

	settings.PollRate = newPollRate(cfg.RefreshRate)
	settings.S.AddC(settings.PollRate.C)

	settings.ClosingTime = newClosingTime(cfg.BlindClosingTime)
	settings.S.AddC(settings.ClosingTime.C)

	settings.Online = newBridgeStatus()
	settings.S.AddC(settings.Online.C)

	b.A.AddS(settings.S)
	b.Settings = &settings

	return &b
}

// SetOnline reflects the outcome of the last login or refresh
func (b *Bridge) SetOnline(online bool) {
	v := 0
	if online {
		v = 1
	}
	if b.Settings.Online.Value() != v {
		b.Settings.Online.SetValue(v)
	}
}

// bridge-wide parameters, read-only from HomeKit
type settingsService struct {
	*service.S

	Name        *characteristic.Name
	PollRate    *pollRate
	ClosingTime *closingTime
	Online      *bridgeStatus
}
