package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gotest.tools/v3/assert"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load("")
	assert.NilError(t, err)
	assert.Equal(t, cfg.Sim.Tick, 20*time.Millisecond)
	assert.Equal(t, cfg.Sim.Passes, 5)
	assert.Equal(t, cfg.Sim.Ordering, "stored")
	assert.Assert(t, cfg.Sim.Seed)
	assert.Equal(t, cfg.HTTP.Addr, ":8080")
	assert.Equal(t, cfg.Modbus.PollRate, time.Second)
	assert.Equal(t, cfg.NATS.URL, "")
}

func TestFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "powersim.json")
	err := os.WriteFile(path, []byte(`{
		"sim": {"passes": 8, "ordering": "topological"},
		"http": {"addr": ":9090"},
		"kafka": {"brokers": ["k1:9092", "k2:9092"]}
	}`), 0o644)
	assert.NilError(t, err)

	t.Setenv("POWERSIM_HTTP_ADDR", ":7070")
	t.Setenv("POWERSIM_SIM_TICK", "50ms")

	cfg, err := Load(path)
	assert.NilError(t, err)
	assert.Equal(t, cfg.Sim.Passes, 8)
	assert.Equal(t, cfg.Sim.Ordering, "topological")
	assert.Equal(t, cfg.Sim.Tick, 50*time.Millisecond)
	assert.Equal(t, cfg.HTTP.Addr, ":7070")
	assert.DeepEqual(t, cfg.Kafka.Brokers, []string{"k1:9092", "k2:9092"})
}

func TestInvalid(t *testing.T) {
	t.Setenv("POWERSIM_SIM_ORDERING", "random")
	_, err := Load("")
	assert.ErrorContains(t, err, "sim.ordering")

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorContains(t, err, "read config")
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewLoggerTo(Log{Level: "warn"}, &buf)
	assert.NilError(t, err)

	l.Info().Msg("hidden")
	l.Warn().Str("component", "engine").Msg("shown")
	out := buf.String()
	assert.Assert(t, !strings.Contains(out, "hidden"))
	assert.Assert(t, strings.Contains(out, `"component":"engine"`))

	_, err = NewLoggerTo(Log{Level: "loud"}, &buf)
	assert.Assert(t, err != nil)
}
