package comelithkbridge

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/brutella/hap/log"
	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	mqttConnectTimeout = 10 * time.Second
	mqttPublishTimeout = 5 * time.Second
	mqttQuiesce        = 250 // milliseconds
	mqttQoS            = 1
)

var (
	ErrMQTTConnect = errors.New("mqtt: connection failed")
	ErrMQTTPublish = errors.New("mqtt: publish failed")
)

// Telemetry publishes device states (retained) and errors to an MQTT broker
//
//	<prefix>/<category>/<id>/state
//	<prefix>/errors
//	<prefix>/status  online/offline, retained, offline is the will
type Telemetry struct {
	client mqtt.Client
	prefix string
	now    func() time.Time
}

// NewTelemetry connects to cfg.Broker
func NewTelemetry(cfg MQTTConfig) (*Telemetry, error) {
	prefix := strings.TrimSuffix(cfg.Prefix, "/")
	if prefix == "" {
		prefix = "comelit"
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(mqttConnectTimeout)
	opts.SetWill(prefix+"/status", "offline", mqttQoS, true)
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		log.Info.Printf("mqtt connected to %s", cfg.Broker)
		c.Publish(prefix+"/status", mqttQoS, true, "online")
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Info.Printf("mqtt connection lost: %s", err.Error())
	})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(mqttConnectTimeout) {
		return nil, fmt.Errorf("%w: timeout after %v", ErrMQTTConnect, mqttConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMQTTConnect, err)
	}

	return newTelemetry(client, prefix), nil
}

func newTelemetry(client mqtt.Client, prefix string) *Telemetry {
	return &Telemetry{client: client, prefix: prefix, now: time.Now}
}

type errorPayload struct {
	Time  time.Time `json:"time"`
	Error string    `json:"error"`
}

// Report publishes err on <prefix>/errors, not retained
func (t *Telemetry) Report(err error) {
	if err == nil {
		return
	}
	payload, _ := json.Marshal(errorPayload{Time: t.now().UTC(), Error: err.Error()})
	if perr := t.publish(t.prefix+"/errors", payload, false); perr != nil {
		log.Debug.Printf("%s", perr.Error())
	}
}

// Publish sends the snapshot on <prefix>/<category>/<id>/state, retained
func (t *Telemetry) Publish(s DeviceSnapshot) {
	payload, err := json.Marshal(s)
	if err != nil {
		log.Info.Printf("unable to encode %s/%s: %s", s.Category, s.ID, err.Error())
		return
	}
	topic := fmt.Sprintf("%s/%s/%s/state", t.prefix, s.Category, s.ID)
	if err := t.publish(topic, payload, true); err != nil {
		log.Debug.Printf("%s", err.Error())
	}
}

func (t *Telemetry) publish(topic string, payload []byte, retained bool) error {
	if !t.client.IsConnectionOpen() {
		return fmt.Errorf("%w: not connected", ErrMQTTPublish)
	}
	token := t.client.Publish(topic, mqttQoS, retained, payload)
	if !token.WaitTimeout(mqttPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrMQTTPublish, mqttPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrMQTTPublish, err)
	}
	return nil
}

// Close announces offline and disconnects
func (t *Telemetry) Close() {
	if t.client.IsConnectionOpen() {
		t.client.Publish(t.prefix+"/status", mqttQoS, true, "offline").WaitTimeout(mqttPublishTimeout)
	}
	t.client.Disconnect(mqttQuiesce)
}
