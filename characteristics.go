package comelithkbridge

import (
	"github.com/brutella/hap/characteristic"
)

// same UUIDs as the other bridges so Eve shows the values
// watt E863F10D-079E-48FF-8F27-9C2605A29F52

type watt struct {
	*characteristic.Int
}

func newWatt() *watt {
	c := characteristic.NewInt("E863F10D")
	c.Format = characteristic.FormatUInt32
	c.Permissions = []string{characteristic.PermissionRead, characteristic.PermissionEvents}
	c.Description = "Watts"
	c.SetMinValue(0)
	c.SetValue(0)

	return &watt{c}
}

// custom to us
// poll rate     E8802
// closing time  E8803
// bridge status E8804

type pollRate struct {
	*characteristic.Int
}

func newPollRate(seconds int) *pollRate {
	c := characteristic.NewInt("E8802")
	c.Format = characteristic.FormatUInt32
	c.Permissions = []string{characteristic.PermissionRead}
	c.Description = "Poll Rate"
	c.SetMinValue(1)
	c.SetMaxValue(3600)
	c.SetValue(seconds)

	return &pollRate{c}
}

type closingTime struct {
	*characteristic.Int
}

func newClosingTime(seconds int) *closingTime {
	c := characteristic.NewInt("E8803")
	c.Format = characteristic.FormatUInt32
	c.Permissions = []string{characteristic.PermissionRead}
	c.Description = "Blind Closing Time"
	c.SetMinValue(1)
	c.SetMaxValue(600)
	c.SetValue(seconds)

	return &closingTime{c}
}

type bridgeStatus struct {
	*characteristic.Int
}

// 0 offline, 1 online
func newBridgeStatus() *bridgeStatus {
	c := characteristic.NewInt("E8804")
	c.Format = characteristic.FormatUInt8
	c.Permissions = []string{characteristic.PermissionRead, characteristic.PermissionEvents}
	c.Description = "Serial Bridge Online"
	c.SetMinValue(0)
	c.SetMaxValue(1)
	c.SetValue(0)

	return &bridgeStatus{c}
}
