package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validConfig() *Config {
	c := &Config{Environment: "test"}
	c.Pipeline.SLAMs = 500
	c.SPRT.Alpha = 0.05
	c.SPRT.Beta = 0.10
	c.Risk.ClipMin = 0.01
	c.Risk.ClipMax = 0.2
	c.Health.WarnP95Ms = 100
	c.Health.HaltP95Ms = 500
	return c
}

func TestValidateAcceptsSaneConfig(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing environment", func(c *Config) { c.Environment = "" }},
		{"negative sla", func(c *Config) { c.Pipeline.SLAMs = -1 }},
		{"alpha out of range", func(c *Config) { c.SPRT.Alpha = 1 }},
		{"beta out of range", func(c *Config) { c.SPRT.Beta = -0.1 }},
		{"clip order inverted", func(c *Config) { c.Risk.ClipMin = 0.5 }},
		{"warn above halt", func(c *Config) { c.Health.WarnP95Ms = 600 }},
		{"brokers without event topic", func(c *Config) { c.Kafka.Brokers = []string{"localhost:9092"} }},
		{"feed enabled without url", func(c *Config) { c.Feed.Enabled = true; c.Feed.Symbols = []string{"BTCUSDT"} }},
		{"feed enabled without symbols", func(c *Config) { c.Feed.Enabled = true; c.Feed.WebSocketURL = "wss://x" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}
