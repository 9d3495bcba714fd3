package comelithkbridge

import (
	"github.com/brutella/hap/log"
)

// Reporter receives every error the bridge cannot hand back to a caller
type Reporter interface {
	Report(err error)
}

// StatePublisher receives the presentation state of a device after each update
type StatePublisher interface {
	Publish(s DeviceSnapshot)
}

type logReporter struct{}

func (logReporter) Report(err error) {
	if err != nil {
		log.Info.Printf("error: %s", err.Error())
	}
}

type multiReporter []Reporter

func (m multiReporter) Report(err error) {
	if err == nil {
		return
	}
	for _, r := range m {
		r.Report(err)
	}
}

// NewReporter fans out to the log and to every extra reporter given
func NewReporter(extra ...Reporter) Reporter {
	m := multiReporter{logReporter{}}
	for _, r := range extra {
		if r != nil {
			m = append(m, r)
		}
	}
	return m
}

type nopPublisher struct{}

func (nopPublisher) Publish(DeviceSnapshot) {}
