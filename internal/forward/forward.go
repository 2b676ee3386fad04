// Package forward delivers decoded measurements to the remote collector.
// Failures are never fatal to the receive loop: log and keep listening.
package forward

import (
	"time"

	"github.com/openaqua/tdslink/internal/wire"
)

const defaultTimeout = 7 * time.Second

type Forwarder interface {
	Forward(m wire.Measurement) error
}

type Config struct { //nolint:maligned
	Driver string `hcl:"driver"` // http|mqtt

	// http collector, ThingSpeak-style update endpoint
	URL        string `hcl:"url"`
	WriteKey   string `hcl:"write_key"`
	TimeoutSec int    `hcl:"timeout_sec"`

	// mqtt collector
	MqttBroker   string `hcl:"mqtt_broker"`
	MqttClientID string `hcl:"mqtt_client_id"`
	MqttUser     string `hcl:"mqtt_user"`
	MqttPassword string `hcl:"mqtt_password"`
	MqttTopic    string `hcl:"mqtt_topic"`
}

func (c *Config) SetDefaults() {
	if c.Driver == "" {
		c.Driver = "http"
	}
	if c.URL == "" {
		c.URL = "https://api.thingspeak.com/update"
	}
	if c.MqttClientID == "" {
		c.MqttClientID = "tdslink-gate"
	}
	if c.MqttTopic == "" {
		c.MqttTopic = "tdslink/update"
	}
}

func (c *Config) Timeout() time.Duration {
	if c.TimeoutSec == 0 {
		return defaultTimeout
	}
	return time.Duration(c.TimeoutSec) * time.Second
}
