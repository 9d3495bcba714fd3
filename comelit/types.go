package comelit

import (
	"sort"
	"strconv"
)

// DeviceType is the category name the serial bridge uses in its query strings
type DeviceType string

const (
	TypeLight    DeviceType = "light"
	TypeBlind    DeviceType = "shutter"
	TypeClima    DeviceType = "clima"
	TypeOutlet   DeviceType = "other"
	TypeSupplier DeviceType = "supplier"

	// not a serial bridge category, used to key the Vedo alarm
	TypeAlarm DeviceType = "vedo"
)

// Categories is the order in which the bridge is walked on fetch and refresh
var Categories = []DeviceType{TypeLight, TypeClima, TypeBlind, TypeOutlet, TypeSupplier}

// ClimaMode is the auto_man / auto_man_umi code of a thermostat
type ClimaMode string

const (
	ModeNone       ClimaMode = "0"
	ModeAuto       ClimaMode = "1"
	ModeManual     ClimaMode = "2"
	ModeSemiAuto   ClimaMode = "3"
	ModeSemiManual ClimaMode = "4"
	ModeOffAuto    ClimaMode = "5"
	ModeOffManual  ClimaMode = "6"
)

// ClimaOnOff is the argument of the thermostat/humidifier status toggles
type ClimaOnOff int

const (
	OffThermo ClimaOnOff = 0
	OnThermo  ClimaOnOff = 1
	OffHumi   ClimaOnOff = 2
	OnHumi    ClimaOnOff = 3
)

// Season is the est_inv field of a thermostat
type Season string

const (
	Summer Season = "0"
	Winter Season = "1"
)

// status values
const (
	StatusOff = "0"
	StatusOn  = "1"

	BlindStopped = "0"
	BlindOpening = "1"
	BlindClosing = "2"
)

// blind toggle arguments
const (
	BlindDown = 0
	BlindUp   = 1
	BlindStop = 2
)

const subTypeDimmer = "2"

// DeviceData is a single device as reported by the serial bridge.
// The json names are the ones the bridge uses.
type DeviceData struct {
	ID          string     `json:"id"`
	Type        DeviceType `json:"type"`
	SubType     string     `json:"sub_type"`
	Description string     `json:"descrizione"`
	Status      string     `json:"status"`
	Value       string     `json:"val,omitempty"`

	// clima
	Temperature       string    `json:"temperatura,omitempty"`
	ActiveThreshold   string    `json:"soglia_attiva,omitempty"`
	Mode              ClimaMode `json:"auto_man,omitempty"`
	Season            Season    `json:"est_inv,omitempty"`
	Humidity          string    `json:"umidita,omitempty"`
	HumidityThreshold string    `json:"soglia_attiva_umi,omitempty"`
	HumidityMode      ClimaMode `json:"auto_man_umi,omitempty"`

	// other, supplier
	InstantPower string `json:"instant_power,omitempty"`
}

// Dimmable reports whether a light accepts a brightness value
func (d DeviceData) Dimmable() bool {
	return d.Type == TypeLight && d.SubType == subTypeDimmer
}

// HasHumidity reports whether a thermostat also drives a dehumidifier
func (d DeviceData) HasHumidity() bool {
	return d.Type == TypeClima && d.Humidity != ""
}

// HomeIndex is the snapshot of every device known to the bridge.
// Identifiers are unique within one category only.
type HomeIndex struct {
	Lights      map[string]*DeviceData
	Thermostats map[string]*DeviceData
	Blinds      map[string]*DeviceData
	Outlets     map[string]*DeviceData
	Suppliers   map[string]*DeviceData
}

// NewHomeIndex returns an empty index
func NewHomeIndex() *HomeIndex {
	return &HomeIndex{
		Lights:      make(map[string]*DeviceData),
		Thermostats: make(map[string]*DeviceData),
		Blinds:      make(map[string]*DeviceData),
		Outlets:     make(map[string]*DeviceData),
		Suppliers:   make(map[string]*DeviceData),
	}
}

// Category returns the map holding devices of type t, nil for unknown types
func (h *HomeIndex) Category(t DeviceType) map[string]*DeviceData {
	switch t {
	case TypeLight:
		return h.Lights
	case TypeClima:
		return h.Thermostats
	case TypeBlind:
		return h.Blinds
	case TypeOutlet:
		return h.Outlets
	case TypeSupplier:
		return h.Suppliers
	}
	return nil
}

// Add stores d in the category given by d.Type
func (h *HomeIndex) Add(d DeviceData) {
	if m := h.Category(d.Type); m != nil {
		m[d.ID] = &d
	}
}

// IDs returns the identifiers of a category, numeric ids in numeric order
func (h *HomeIndex) IDs(t DeviceType) []string {
	m := h.Category(t)
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, erra := strconv.Atoi(ids[i])
		b, errb := strconv.Atoi(ids[j])
		if erra == nil && errb == nil {
			return a < b
		}
		return ids[i] < ids[j]
	})
	return ids
}

// Len is the number of devices across all categories
func (h *HomeIndex) Len() int {
	return len(h.Lights) + len(h.Thermostats) + len(h.Blinds) + len(h.Outlets) + len(h.Suppliers)
}
