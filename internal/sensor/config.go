package sensor

type Config struct { //nolint:maligned
	// number of raw reads averaged per measurement
	Samples       int     `hcl:"samples"`
	SampleDelayMs int     `hcl:"sample_delay_ms"`
	Vref          float64 `hcl:"vref"`
	FullScale     int     `hcl:"full_scale"`
	// fixed compensation temperature, sensor has no thermometer
	TemperatureC float64 `hcl:"temperature_c"`

	I2CBus  int `hcl:"i2c_bus"`
	I2CAddr int `hcl:"i2c_addr"`
}

func (c *Config) SetDefaults() {
	if c.Samples == 0 {
		c.Samples = 32
	}
	if c.SampleDelayMs == 0 {
		c.SampleDelayMs = 2
	}
	if c.Vref == 0 {
		c.Vref = 3.3
	}
	if c.FullScale == 0 {
		c.FullScale = 4095
	}
	if c.TemperatureC == 0 {
		c.TemperatureC = 25.0
	}
	if c.I2CAddr == 0 {
		c.I2CAddr = 0x48
	}
}
