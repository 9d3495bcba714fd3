package comelithkbridge

import (
	"errors"
	"net/url"
	"strings"

	"github.com/brutella/hap/log"
	"github.com/huin/goupnp"
	"github.com/huin/goupnp/ssdp"
)

// ErrNotDiscovered is returned when no serial bridge answered the SSDP search
var ErrNotDiscovered = errors.New("no comelit bridge discovered")

// Discover looks for a Comelit bridge on the local network and returns its host
func Discover() (string, error) {
	log.Info.Printf("Discovering Comelit serial bridge")

	devices, err := goupnp.DiscoverDevices(ssdp.SSDPAll)
	if err != nil {
		log.Info.Println("discovery failed: ", err.Error())
		return "", err
	}

	if host := pickBridge(devices); host != "" {
		return host, nil
	}
	return "", ErrNotDiscovered
}

func pickBridge(devices []goupnp.MaybeRootDevice) string {
	for _, device := range devices {
		if !strings.Contains(strings.ToLower(device.USN), "comelit") {
			continue
		}

		if device.Location != nil && device.Location.Host != "" {
			log.Info.Printf("found: %s", device.Location.Host)
			return device.Location.Hostname()
		}

		if device.Root == nil {
			log.Info.Printf("odd format: %+v", device)
			continue
		}

		u, err := url.Parse(device.Root.URLBaseStr)
		if err != nil || u.Host == "" {
			log.Info.Printf("found device, wrong url format: %s", device.Root.URLBaseStr)
			continue
		}
		log.Info.Printf("found: %s", u.Host)
		return u.Hostname()
	}
	return ""
}
