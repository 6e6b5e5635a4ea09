package board

import (
	"fmt"
	"sync"
	"time"

	"github.com/chewxy/math32"

	"github.com/taejoonest/waterxchange/pkg/clock"
	"github.com/taejoonest/waterxchange/pkg/config"
)

// Bearings of the four thermistors in canonical channel order.
var thermBearings = [NumTherm]float32{0, 90, 180, 270}

// Mock simulates the probe front end. After a heater pulse it synthesizes a
// thermal plume whose per-channel amplitude and time-to-peak follow the
// configured flow velocity and direction, so the full control cycle runs
// without hardware and the flow engine sees physically plausible series.
type Mock struct {
	cfg *config.Config
	clk clock.Clock

	mu          sync.Mutex
	available   map[Peripheral]bool
	heaterOn    bool
	heaterOffAt time.Time
	pulsed      bool
}

// NewMock creates a simulated probe driven by the given clock.
func NewMock(cfg *config.Config, clk clock.Clock) *Mock {
	if cfg == nil {
		cfg = config.Default()
	}
	if clk == nil {
		clk = clock.Wall{}
	}
	m := &Mock{
		cfg:       cfg,
		clk:       clk,
		available: make(map[Peripheral]bool),
	}
	for _, p := range []Peripheral{PeriphSensorADC, PeriphThermADC, PeriphBaro, PeriphHeater, PeriphPowerRails} {
		m.available[p] = true
	}
	return m
}

// SetAvailable marks a simulated peripheral present or missing.
func (m *Mock) SetAvailable(p Peripheral, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.available[p] = ok
}

func (m *Mock) Available(p Peripheral) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.available[p]
}

func (m *Mock) ReadSensor(ch int) (int16, error) {
	if !m.Available(PeriphSensorADC) {
		return 0, fmt.Errorf("%s unavailable", PeriphSensorADC)
	}
	switch ch {
	case ChPressure:
		return m.voltsToCode(m.cfg.Mock.PressureVolts), nil
	case ChConductivity:
		return m.voltsToCode(m.cfg.Mock.ConductivityV), nil
	case ChPT1000:
		// Bridge voltage for water at ambient temperature.
		rtd := &m.cfg.Sensors.RTD
		volts := rtd.BridgeVolts + m.cfg.Mock.AmbientC*rtd.NominalR*rtd.Alpha/rtd.OhmsPerVolt
		return m.voltsToCode(volts), nil
	}
	return 0, fmt.Errorf("unknown sensor channel %d", ch)
}

func (m *Mock) ReadTherm(ch int) (int16, error) {
	if !m.Available(PeriphThermADC) {
		return 0, fmt.Errorf("%s unavailable", PeriphThermADC)
	}
	if ch < 0 || ch >= NumTherm {
		return 0, fmt.Errorf("unknown thermistor channel %d", ch)
	}
	temp := m.cfg.Mock.AmbientC + m.plumeDeltaT(ch) + m.noise()
	return m.voltsToCode(m.thermVolts(temp)), nil
}

func (m *Mock) ReadBaro() (BaroSample, error) {
	if !m.Available(PeriphBaro) {
		return BaroSample{}, fmt.Errorf("%s unavailable", PeriphBaro)
	}
	return BaroSample{
		PressureHPa: m.cfg.Mock.BaroHPa,
		TempC:       m.cfg.Mock.BaroTempC,
		HumidityPct: m.cfg.Mock.HumidityPct,
	}, nil
}

func (m *Mock) SetHeater(on bool) error {
	if !m.Available(PeriphHeater) {
		return fmt.Errorf("%s unavailable", PeriphHeater)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.heaterOn && !on {
		m.heaterOffAt = m.clk.Now()
		m.pulsed = true
	}
	m.heaterOn = on
	return nil
}

// HeaterOn reports the simulated heater gate state.
func (m *Mock) HeaterOn() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.heaterOn
}

func (m *Mock) BatteryVolts() (float32, error) {
	if !m.Available(PeriphPowerRails) {
		return 0, fmt.Errorf("%s unavailable", PeriphPowerRails)
	}
	return m.cfg.Mock.BatteryVolts, nil
}

func (m *Mock) SolarVolts() (float32, error) {
	if !m.Available(PeriphPowerRails) {
		return 0, fmt.Errorf("%s unavailable", PeriphPowerRails)
	}
	return m.cfg.Mock.SolarVolts, nil
}

func (m *Mock) SetModemPower(on bool) error { return nil }

func (m *Mock) Close() error { return nil }

// plumeDeltaT models heat advection after a pulse. The channel aligned with
// the flow bearing sees the full amplitude peaking at t = K/v; misaligned
// channels see a weaker, later peak. Shape x·e^(1-x) peaks at exactly x=1.
func (m *Mock) plumeDeltaT(ch int) float32 {
	m.mu.Lock()
	pulsed := m.pulsed
	offAt := m.heaterOffAt
	m.mu.Unlock()

	if !pulsed {
		return 0
	}
	v := m.cfg.Mock.VelocityCmDay
	if v <= 0 {
		// Stagnant water: conduction only, below the detection threshold.
		return 0.02
	}

	delta := (thermBearings[ch] - m.cfg.Mock.DirectionDeg) * math32.Pi / 180
	align := (1 + math32.Cos(delta)) / 2 // 1 downstream, 0 upstream

	amp := m.cfg.Mock.PlumeC * (0.1 + 0.9*align)
	tPeak := m.cfg.HeatPulse.CalK / v * (2.5 - 1.5*align)

	elapsed := float32(m.clk.Now().Sub(offAt).Seconds())
	if elapsed <= 0 {
		return 0
	}
	x := elapsed / tPeak
	return amp * x * math32.Exp(1-x)
}

// noise is a small deterministic ripple rather than a random source, so
// repeated runs reproduce exactly.
func (m *Mock) noise() float32 {
	if m.cfg.Mock.NoiseC == 0 {
		return 0
	}
	t := float32(m.clk.Now().UnixNano()%1e9) / 1e9
	return (math32.Sin(t*271) + math32.Cos(t*353)) * m.cfg.Mock.NoiseC * 0.5
}

// thermVolts inverts the B-parameter model to produce the divider voltage
// the front end would report for the given temperature.
func (m *Mock) thermVolts(tempC float32) float32 {
	th := &m.cfg.Sensors.Thermistor
	invT := 1/(tempC+273.15) - 1/(th.NominalT+273.15)
	r := th.NominalR * math32.Exp(th.BCoeff*invT)
	return m.cfg.Sensors.SupplyVolts * r / (th.SeriesR + r)
}

func (m *Mock) voltsToCode(volts float32) int16 {
	code := volts / m.cfg.Sensors.ADCVoltsPerCount
	if code > 32767 {
		code = 32767
	}
	if code < -32768 {
		code = -32768
	}
	return int16(code)
}
