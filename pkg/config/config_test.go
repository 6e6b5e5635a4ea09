package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.NotNil(t, cfg)
	assert.Equal(t, "WXF-001", cfg.Device.ID)
	assert.Equal(t, TypeFlow, cfg.Device.Type)
	assert.Equal(t, "1.0.0", cfg.Device.FirmwareVersion)

	assert.Equal(t, float32(0.000125), cfg.Sensors.ADCVoltsPerCount)
	assert.Equal(t, float32(3.3), cfg.Sensors.SupplyVolts)
	assert.Equal(t, float32(1.0), cfg.Sensors.Pressure.VMin)
	assert.Equal(t, float32(5.0), cfg.Sensors.Pressure.VMax)
	assert.Equal(t, float32(10.0), cfg.Sensors.Pressure.PSIMax)
	assert.Equal(t, float32(2.31), cfg.Sensors.Pressure.PSIToFt)
	assert.Equal(t, float32(10000), cfg.Sensors.Thermistor.NominalR)
	assert.Equal(t, float32(3950), cfg.Sensors.Thermistor.BCoeff)

	assert.Equal(t, 10, cfg.HeatPulse.BaselineSamples)
	assert.Equal(t, 50*time.Millisecond, cfg.HeatPulse.BaselineInterval)
	assert.Equal(t, 4*time.Second, cfg.HeatPulse.HeaterDuration)
	assert.Equal(t, 500*time.Millisecond, cfg.HeatPulse.SettleDuration)
	assert.Equal(t, 100*time.Millisecond, cfg.HeatPulse.SampleInterval)
	assert.Equal(t, 60*time.Second, cfg.HeatPulse.MonitorWindow)
	assert.Equal(t, float32(900.0), cfg.HeatPulse.CalK)

	assert.Equal(t, 915e6, cfg.LoRa.FrequencyHz)
	assert.Equal(t, 7, cfg.LoRa.SpreadingFactor)
	assert.Equal(t, "iot.1nce.net", cfg.Cellular.APN)
	assert.Equal(t, "api.waterxchange.io", cfg.Cellular.Host)
	assert.Equal(t, "/hardware/data", cfg.Cellular.Path)
	assert.Equal(t, "200", cfg.Cellular.StatusToken)
	assert.Equal(t, 15*time.Minute, cfg.Cycle.TxInterval)
}

func TestDefaultLevel(t *testing.T) {
	cfg := DefaultLevel()

	assert.Equal(t, "WXL-001", cfg.Device.ID)
	assert.Equal(t, TypeLevel, cfg.Device.Type)
	// Shared transmission architecture.
	assert.Equal(t, 915e6, cfg.LoRa.FrequencyHz)
	assert.Equal(t, float32(1013.25), cfg.Sensors.Baro.StandardHPa)
}

func TestLoad_FileNotExists(t *testing.T) {
	cfg, err := Load("nonexistent.yaml")
	require.NoError(t, err)
	assert.NotNil(t, cfg)
	assert.Equal(t, "WXF-001", cfg.Device.ID)
}

func TestLoad_ValidYAML(t *testing.T) {
	tmpfile, err := os.CreateTemp("", "test_config_*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpfile.Name())

	yamlContent := `
device:
  id: "WXF-042"

serial:
  port: "/dev/ttyS2"

heat_pulse:
  cal_k: 850

cellular:
  apn: "custom.apn"
`
	_, err = tmpfile.WriteString(yamlContent)
	require.NoError(t, err)
	require.NoError(t, tmpfile.Close())

	cfg, err := Load(tmpfile.Name())
	require.NoError(t, err)

	assert.Equal(t, "WXF-042", cfg.Device.ID)
	assert.Equal(t, "/dev/ttyS2", cfg.Serial.Port)
	assert.Equal(t, float32(850), cfg.HeatPulse.CalK)
	assert.Equal(t, "custom.apn", cfg.Cellular.APN)

	// Missing fields fall back to defaults.
	assert.Equal(t, TypeFlow, cfg.Device.Type)
	assert.Equal(t, 60*time.Second, cfg.HeatPulse.MonitorWindow)
	assert.Equal(t, "api.waterxchange.io", cfg.Cellular.Host)
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpfile, err := os.CreateTemp("", "test_config_*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpfile.Name())

	_, err = tmpfile.WriteString("device: [not a mapping")
	require.NoError(t, err)
	require.NoError(t, tmpfile.Close())

	_, err = Load(tmpfile.Name())
	assert.Error(t, err)
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg := Default()
	cfg.Device.ID = "WXF-007"
	cfg.HeatPulse.CalK = 925.5
	cfg.Cycle.TxInterval = 30 * time.Minute
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "WXF-007", loaded.Device.ID)
	assert.Equal(t, float32(925.5), loaded.HeatPulse.CalK)
	assert.Equal(t, 30*time.Minute, loaded.Cycle.TxInterval)
}

func TestLoadLevel_Defaults(t *testing.T) {
	cfg, err := LoadLevel("nonexistent.yaml")
	require.NoError(t, err)
	assert.Equal(t, TypeLevel, cfg.Device.Type)
	assert.Equal(t, "WXL-001", cfg.Device.ID)
}
