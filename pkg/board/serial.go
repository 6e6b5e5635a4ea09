package board

import (
	"bufio"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"

	"github.com/taejoonest/waterxchange/pkg/config"
)

// DefaultBaudRate is the standard baud rate for the front-end MCU link.
const DefaultBaudRate = 115200

// readTimeout bounds every bridge exchange so a wedged front end cannot
// stall the wake cycle.
const readTimeout = 500 * time.Millisecond

// Serial talks to the analog front-end MCU over a line-oriented
// request/response protocol:
//
//	"A0 <ch>"  read sensor ADC channel      -> "<code>"
//	"A1 <ch>"  read thermistor ADC channel  -> "<code>"
//	"B"        read barometer               -> "<hpa>,<temp>,<hum>"
//	"V"        read battery/solar dividers  -> "<batt>,<solar>"
//	"H <0|1>"  heater MOSFET gate           -> "OK"
//	"P <0|1>"  modem power rail             -> "OK"
//
// Peripheral availability is probed once at open; a subsystem that fails its
// probe stays unavailable for the rest of the wake cycle.
type Serial struct {
	mu        sync.Mutex
	conn      serial.Port
	reader    *bufio.Reader
	available map[Peripheral]bool
}

// Open connects to the front-end bridge and probes each peripheral.
func Open(cfg *config.SerialConfig) (*Serial, error) {
	baud := cfg.BaudRate
	if baud == 0 {
		baud = DefaultBaudRate
	}

	conn, err := serial.Open(cfg.Port, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("failed to open bridge port %s: %w", cfg.Port, err)
	}
	if err := conn.SetReadTimeout(readTimeout); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to set read timeout: %w", err)
	}

	s := &Serial{
		conn:      conn,
		reader:    bufio.NewReader(conn),
		available: make(map[Peripheral]bool),
	}
	s.probe()
	return s, nil
}

// probe checks each subsystem once. Failures are logged, not fatal: the
// probe is unattended and must measure and transmit whatever it still can.
func (s *Serial) probe() {
	checks := []struct {
		p   Peripheral
		cmd string
	}{
		{PeriphSensorADC, "A0 0"},
		{PeriphThermADC, "A1 0"},
		{PeriphBaro, "B"},
		{PeriphPowerRails, "V"},
		{PeriphHeater, "H 0"},
	}
	for _, c := range checks {
		_, err := s.request(c.cmd)
		s.available[c.p] = err == nil
		if err != nil {
			log.Printf("peripheral %s not responding: %v", c.p, err)
		}
	}
}

// Available reports whether the peripheral answered its init probe.
func (s *Serial) Available(p Peripheral) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.available[p]
}

// ReadSensor reads one channel of the sensor ADS1115.
func (s *Serial) ReadSensor(ch int) (int16, error) {
	return s.readADC("A0", PeriphSensorADC, ch)
}

// ReadTherm reads one channel of the thermistor ADS1115.
func (s *Serial) ReadTherm(ch int) (int16, error) {
	return s.readADC("A1", PeriphThermADC, ch)
}

func (s *Serial) readADC(cmd string, p Peripheral, ch int) (int16, error) {
	if !s.Available(p) {
		return 0, fmt.Errorf("%s unavailable", p)
	}
	line, err := s.request(fmt.Sprintf("%s %d", cmd, ch))
	if err != nil {
		return 0, err
	}
	code, err := strconv.ParseInt(line, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid ADC response %q: %w", line, err)
	}
	return int16(code), nil
}

// ReadBaro reads the BME280 (level variant front end).
func (s *Serial) ReadBaro() (BaroSample, error) {
	if !s.Available(PeriphBaro) {
		return BaroSample{}, fmt.Errorf("%s unavailable", PeriphBaro)
	}
	line, err := s.request("B")
	if err != nil {
		return BaroSample{}, err
	}
	parts := strings.Split(line, ",")
	if len(parts) != 3 {
		return BaroSample{}, fmt.Errorf("invalid baro response %q", line)
	}
	vals := make([]float32, 3)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return BaroSample{}, fmt.Errorf("invalid baro field %q: %w", p, err)
		}
		vals[i] = float32(v)
	}
	return BaroSample{PressureHPa: vals[0], TempC: vals[1], HumidityPct: vals[2]}, nil
}

// SetHeater drives the nichrome heater MOSFET gate.
func (s *Serial) SetHeater(on bool) error {
	return s.setPin("H", PeriphHeater, on)
}

// SetModemPower drives the modem power rail.
func (s *Serial) SetModemPower(on bool) error {
	return s.setPin("P", PeriphPowerRails, on)
}

func (s *Serial) setPin(cmd string, p Peripheral, on bool) error {
	if !s.Available(p) {
		return fmt.Errorf("%s unavailable", p)
	}
	state := "0"
	if on {
		state = "1"
	}
	line, err := s.request(cmd + " " + state)
	if err != nil {
		return err
	}
	if line != "OK" {
		return fmt.Errorf("unexpected response %q", line)
	}
	return nil
}

// BatteryVolts reads the LiPo divider.
func (s *Serial) BatteryVolts() (float32, error) {
	batt, _, err := s.readRails()
	return batt, err
}

// SolarVolts reads the solar panel divider.
func (s *Serial) SolarVolts() (float32, error) {
	_, solar, err := s.readRails()
	return solar, err
}

func (s *Serial) readRails() (float32, float32, error) {
	if !s.Available(PeriphPowerRails) {
		return 0, 0, fmt.Errorf("%s unavailable", PeriphPowerRails)
	}
	line, err := s.request("V")
	if err != nil {
		return 0, 0, err
	}
	parts := strings.Split(line, ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid rail response %q", line)
	}
	batt, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 32)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid battery field: %w", err)
	}
	solar, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 32)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid solar field: %w", err)
	}
	return float32(batt), float32(solar), nil
}

// Close shuts the bridge port. The heater is forced off first; the front end
// must never be left heating across cycle boundaries.
func (s *Serial) Close() error {
	if s.Available(PeriphHeater) {
		if err := s.SetHeater(false); err != nil {
			log.Printf("failed to deassert heater on close: %v", err)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}

// request sends one command line and reads one response line.
func (s *Serial) request(cmd string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return "", fmt.Errorf("bridge port closed")
	}
	if _, err := s.conn.Write([]byte(cmd + "\n")); err != nil {
		return "", fmt.Errorf("failed to send %q: %w", cmd, err)
	}
	line, err := s.reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("no response to %q: %w", cmd, err)
	}
	return strings.TrimSpace(line), nil
}
