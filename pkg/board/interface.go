// Package board abstracts the probe's analog front end so the control cycle
// can run against real hardware or a simulated probe.
package board

// Sensor ADC channels (ADS #1).
const (
	ChPressure     = 0 // 4-20mA across 250Ω
	ChConductivity = 1 // EC circuit analog output
	ChPT1000       = 2 // RTD via Wheatstone bridge
)

// Thermistor ADC channels (ADS #2), fixed canonical order.
const (
	ChThermN = 0 // 0°
	ChThermE = 1 // 90°
	ChThermS = 2 // 180°
	ChThermW = 3 // 270°
)

// NumTherm is the number of directional thermistors around the heater.
const NumTherm = 4

// Peripheral identifies an independently-initialized hardware subsystem.
type Peripheral int

const (
	PeriphSensorADC Peripheral = iota
	PeriphThermADC
	PeriphBaro
	PeriphHeater
	PeriphPowerRails
)

func (p Peripheral) String() string {
	switch p {
	case PeriphSensorADC:
		return "sensor-adc"
	case PeriphThermADC:
		return "therm-adc"
	case PeriphBaro:
		return "baro"
	case PeriphHeater:
		return "heater"
	case PeriphPowerRails:
		return "power-rails"
	}
	return "unknown"
}

// BaroSample is one BME280 reading (level variant).
type BaroSample struct {
	PressureHPa float32
	TempC       float32
	HumidityPct float32
}

// Board is the probe hardware. A missing peripheral makes Available report
// false and the corresponding reads return errors; it never aborts a cycle.
type Board interface {
	Available(p Peripheral) bool
	ReadSensor(ch int) (int16, error)
	ReadTherm(ch int) (int16, error)
	ReadBaro() (BaroSample, error)
	SetHeater(on bool) error
	BatteryVolts() (float32, error)
	SolarVolts() (float32, error)
	SetModemPower(on bool) error
	Close() error
}

var (
	_ Board = (*Serial)(nil)
	_ Board = (*Mock)(nil)
)
