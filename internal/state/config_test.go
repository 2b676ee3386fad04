package state

import (
	"strings"
	"testing"

	"github.com/juju/errors"
	"github.com/openaqua/tdslink/log2"
	"github.com/stretchr/testify/assert"
)

func TestReadConfig(t *testing.T) {
	t.Parallel()

	type Case struct {
		name      string
		input     string
		check     func(testing.TB, *Config)
		expectErr string
	}
	cases := []Case{
		{"empty", "", func(t testing.TB, c *Config) {
			assert.Equal(t, 32, c.Sensor.Samples)
			assert.Equal(t, "sx127x", c.Radio.Driver)
			assert.Equal(t, int64(915000000), c.Radio.FrequencyHz)
			assert.Equal(t, 5, c.Link.RetryMax)
		}, ""},

		{"radio",
			`radio { driver = "rylr" serial_device = "/dev/shmoo" spreading_factor = 12 }`,
			func(t testing.TB, c *Config) {
				assert.Equal(t, "rylr", c.Radio.Driver)
				assert.Equal(t, "/dev/shmoo", c.Radio.SerialDevice)
				assert.Equal(t, 12, c.Radio.SpreadingFactor)
			},
			"",
		},

		{"node-gate", `
node { sleep_sec = 60 burst_window_ms = 2000 }
gate { inactivity_restart_sec = 300 no_restart_after_publish = true }`,
			func(t testing.TB, c *Config) {
				assert.Equal(t, 60, c.Node.SleepSec)
				assert.Equal(t, 2000, c.Node.BurstWindowMs)
				assert.Equal(t, 300, c.Gate.InactivityRestartSec)
				assert.True(t, c.Gate.NoRestartAfterPublish)
			},
			"",
		},

		{"forward", `
forward { driver = "mqtt" mqtt_broker = "tcp://collector:1883" write_key = "k" }
link { retry_max = 3 }`,
			func(t testing.TB, c *Config) {
				assert.Equal(t, "mqtt", c.Forward.Driver)
				assert.Equal(t, "tcp://collector:1883", c.Forward.MqttBroker)
				assert.Equal(t, 3, c.Link.RetryMax)
			},
			"",
		},

		{"include-normalize", `
sensor { samples = 8 }
include "./empty" {}`,
			nil, ""},

		{"include-optional", `
include "sf-12" {}
include "non-exist" { optional = true }`,
			func(t testing.TB, c *Config) {
				assert.Equal(t, 12, c.Radio.SpreadingFactor)
			}, ""},

		{"include-overwrites", `
radio { spreading_factor = 7 }
include "sf-12" {}`,
			func(t testing.TB, c *Config) {
				assert.Equal(t, 12, c.Radio.SpreadingFactor)
			}, ""},

		{"error-syntax", `hello`, nil, "key 'hello' expected start of object"},
		{"error-include-loop", `include "include-loop" {}`, nil, "config include loop: from=include-loop include=include-loop"},
	}
	mkCheck := func(c Case) func(*testing.T) {
		return func(t *testing.T) {
			log := log2.NewTest(t, log2.LDebug)

			fs := NewMockFullReader(map[string]string{
				"test-inline":  c.input,
				"empty":        "",
				"sf-12":        `radio{spreading_factor=12}`,
				"include-loop": `include "include-loop" {}`,
			})
			cfg, err := ReadConfig(log, fs, "test-inline")
			if c.expectErr == "" {
				if err != nil {
					t.Fatalf("error expected=nil actual='%v'", errors.ErrorStack(err))
				}
				if c.check != nil {
					c.check(t, cfg)
				}
			} else {
				if err == nil || !strings.Contains(err.Error(), c.expectErr) {
					t.Fatalf("error expected='%s' actual='%v'", c.expectErr, err)
				}
			}
		}
	}
	for _, c := range cases {
		t.Run(c.name, mkCheck(c))
	}
}
