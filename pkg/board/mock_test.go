package board

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taejoonest/waterxchange/pkg/clock"
	"github.com/taejoonest/waterxchange/pkg/config"
	"github.com/taejoonest/waterxchange/pkg/sensor"
)

func quietCfg() *config.Config {
	cfg := config.Default()
	cfg.Mock.NoiseC = 0
	return cfg
}

// thermTempC decodes a thermistor ADC code back to degrees, the same path
// the measurement engine uses.
func thermTempC(t *testing.T, cfg *config.Config, m *Mock, ch int) float32 {
	t.Helper()
	raw, err := m.ReadTherm(ch)
	require.NoError(t, err)
	volts := sensor.ADCToVolts(raw, &cfg.Sensors)
	return sensor.ThermistorTempC(volts, cfg.Sensors.SupplyVolts, &cfg.Sensors.Thermistor)
}

func TestMock_AmbientBeforePulse(t *testing.T) {
	cfg := quietCfg()
	m := NewMock(cfg, clock.NewSim(time.Unix(1700000000, 0)))

	for ch := 0; ch < NumTherm; ch++ {
		assert.InDelta(t, cfg.Mock.AmbientC, thermTempC(t, cfg, m, ch), 0.05)
	}
}

func TestMock_PlumeFavorsDownstream(t *testing.T) {
	cfg := quietCfg()
	cfg.Mock.VelocityCmDay = 45
	cfg.Mock.DirectionDeg = 90
	clk := clock.NewSim(time.Unix(1700000000, 0))
	m := NewMock(cfg, clk)

	require.NoError(t, m.SetHeater(true))
	assert.True(t, m.HeaterOn())
	clk.Advance(cfg.HeatPulse.HeaterDuration)
	require.NoError(t, m.SetHeater(false))

	// Sample at the downstream time-to-peak: K/v = 20s after heater off.
	clk.Advance(20 * time.Second)

	ambient := cfg.Mock.AmbientC
	east := thermTempC(t, cfg, m, ChThermE) - ambient
	west := thermTempC(t, cfg, m, ChThermW) - ambient
	north := thermTempC(t, cfg, m, ChThermN) - ambient

	assert.InDelta(t, cfg.Mock.PlumeC, east, 0.05, "aligned channel peaks at full amplitude")
	assert.Greater(t, east, north)
	assert.Greater(t, north, west, "upstream channel sees the weakest plume")
}

func TestMock_NoPlumeWithoutPulse(t *testing.T) {
	cfg := quietCfg()
	clk := clock.NewSim(time.Unix(1700000000, 0))
	m := NewMock(cfg, clk)

	clk.Advance(time.Minute)
	assert.InDelta(t, cfg.Mock.AmbientC, thermTempC(t, cfg, m, ChThermE), 0.05)
}

func TestMock_SensorChannels(t *testing.T) {
	cfg := quietCfg()
	m := NewMock(cfg, clock.NewSim(time.Unix(0, 0)))

	raw, err := m.ReadSensor(ChPressure)
	require.NoError(t, err)
	assert.InDelta(t, cfg.Mock.PressureVolts, sensor.ADCToVolts(raw, &cfg.Sensors), 1e-3)

	raw, err = m.ReadSensor(ChConductivity)
	require.NoError(t, err)
	assert.InDelta(t, cfg.Mock.ConductivityV, sensor.ADCToVolts(raw, &cfg.Sensors), 1e-3)

	_, err = m.ReadSensor(7)
	assert.Error(t, err)
	_, err = m.ReadTherm(NumTherm)
	assert.Error(t, err)
}

func TestMock_BaroAndRails(t *testing.T) {
	cfg := quietCfg()
	m := NewMock(cfg, clock.NewSim(time.Unix(0, 0)))

	baro, err := m.ReadBaro()
	require.NoError(t, err)
	assert.Equal(t, cfg.Mock.BaroHPa, baro.PressureHPa)
	assert.Equal(t, cfg.Mock.BaroTempC, baro.TempC)
	assert.Equal(t, cfg.Mock.HumidityPct, baro.HumidityPct)

	batt, err := m.BatteryVolts()
	require.NoError(t, err)
	assert.Equal(t, cfg.Mock.BatteryVolts, batt)

	solar, err := m.SolarVolts()
	require.NoError(t, err)
	assert.Equal(t, cfg.Mock.SolarVolts, solar)
}

func TestMock_AvailabilityToggles(t *testing.T) {
	m := NewMock(quietCfg(), clock.NewSim(time.Unix(0, 0)))

	m.SetAvailable(PeriphBaro, false)
	assert.False(t, m.Available(PeriphBaro))
	_, err := m.ReadBaro()
	assert.Error(t, err)

	m.SetAvailable(PeriphHeater, false)
	assert.Error(t, m.SetHeater(true))

	m.SetAvailable(PeriphPowerRails, false)
	_, err = m.BatteryVolts()
	assert.Error(t, err)
}
