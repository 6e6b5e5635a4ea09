package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Device type identifiers reported in telemetry.
const (
	TypeFlow  = "wx-flow"
	TypeLevel = "wx-level"
)

// Config represents a probe deployment configuration.
type Config struct {
	Device    DeviceConfig    `yaml:"device"`
	Serial    SerialConfig    `yaml:"serial"`
	Sensors   SensorConfig    `yaml:"sensors"`
	HeatPulse HeatPulseConfig `yaml:"heat_pulse"`
	LoRa      LoRaConfig      `yaml:"lora"`
	Cellular  CellularConfig  `yaml:"cellular"`
	Cycle     CycleConfig     `yaml:"cycle"`
	Mock      MockConfig      `yaml:"mock"`
}

// DeviceConfig contains the static device identity.
type DeviceConfig struct {
	ID              string `yaml:"id"`
	Type            string `yaml:"type"`
	FirmwareVersion string `yaml:"fw_version"`
}

// SerialConfig contains the analog front-end bridge port configuration.
type SerialConfig struct {
	Port     string `yaml:"port"`
	BaudRate int    `yaml:"baud_rate"`
}

// SensorConfig contains per-sensor calibration constants. Loaded once at
// startup and never mutated.
type SensorConfig struct {
	ADCVoltsPerCount float32            `yaml:"adc_volts_per_count"` // ADS1115 LSB
	SupplyVolts      float32            `yaml:"supply_volts"`        // divider reference
	Pressure         PressureConfig     `yaml:"pressure"`
	Conductivity     ConductivityConfig `yaml:"conductivity"`
	Thermistor       ThermistorConfig   `yaml:"thermistor"`
	RTD              RTDConfig          `yaml:"rtd"`
	Baro             BaroConfig         `yaml:"baro"`
}

// PressureConfig maps the 4-20mA transducer voltage to PSI and water level.
type PressureConfig struct {
	VMin    float32 `yaml:"v_min"`
	VMax    float32 `yaml:"v_max"`
	PSIMin  float32 `yaml:"psi_min"`
	PSIMax  float32 `yaml:"psi_max"`
	PSIToFt float32 `yaml:"psi_to_ft"`
}

// ConductivityConfig maps the EC circuit output voltage to µS/cm.
type ConductivityConfig struct {
	VMin      float32 `yaml:"v_min"`
	VMax      float32 `yaml:"v_max"`
	USMin     float32 `yaml:"us_min"`
	USMax     float32 `yaml:"us_max"`
	TDSFactor float32 `yaml:"tds_factor"` // ppm per µS/cm
}

// ThermistorConfig contains NTC thermistor divider parameters.
type ThermistorConfig struct {
	NominalR float32 `yaml:"nominal_r"` // resistance at nominal temperature
	NominalT float32 `yaml:"nominal_t"` // °C
	BCoeff   float32 `yaml:"b_coeff"`
	SeriesR  float32 `yaml:"series_r"`
}

// RTDConfig contains PT1000 bridge parameters.
type RTDConfig struct {
	NominalR    float32 `yaml:"nominal_r"`     // Ω at 0 °C
	Alpha       float32 `yaml:"alpha"`         // Ω/Ω/°C
	BridgeVolts float32 `yaml:"bridge_volts"`  // excitation midpoint
	OhmsPerVolt float32 `yaml:"ohms_per_volt"` // bridge transfer gain
}

// BaroConfig contains barometric compensation parameters (level variant).
type BaroConfig struct {
	StandardHPa float32 `yaml:"standard_hpa"`
	PSIPerHPa   float32 `yaml:"psi_per_hpa"`
}

// HeatPulseConfig contains the measurement sequence timing and the
// velocity calibration constant.
type HeatPulseConfig struct {
	BaselineSamples  int           `yaml:"baseline_samples"`
	BaselineInterval time.Duration `yaml:"baseline_interval"`
	HeaterDuration   time.Duration `yaml:"heater_duration"`
	SettleDuration   time.Duration `yaml:"settle_duration"`
	SampleInterval   time.Duration `yaml:"sample_interval"`
	MonitorWindow    time.Duration `yaml:"monitor_window"`
	CalK             float32       `yaml:"cal_k"` // cm·s/day, lab calibrated
	ThermSpacingMM   float32       `yaml:"therm_spacing_mm"`
}

// LoRaConfig contains radio module parameters.
type LoRaConfig struct {
	Port            string  `yaml:"port"`
	BaudRate        int     `yaml:"baud_rate"`
	FrequencyHz     float64 `yaml:"frequency_hz"`
	BandwidthHz     float64 `yaml:"bandwidth_hz"`
	SpreadingFactor int     `yaml:"spreading_factor"`
	TxPowerDBm      int     `yaml:"tx_power_dbm"`
}

// CellularConfig contains modem and upload endpoint parameters.
type CellularConfig struct {
	Port           string        `yaml:"port"`
	BaudRate       int           `yaml:"baud_rate"`
	APN            string        `yaml:"apn"`
	Host           string        `yaml:"host"`
	HostPort       int           `yaml:"host_port"`
	Path           string        `yaml:"path"`
	StatusToken    string        `yaml:"status_token"`
	PowerSettle    time.Duration `yaml:"power_settle"`
	CommandTimeout time.Duration `yaml:"command_timeout"`
	ResponseWindow time.Duration `yaml:"response_window"`
}

// CycleConfig contains wake-cycle parameters.
type CycleConfig struct {
	TxInterval time.Duration `yaml:"tx_interval"`
	StateFile  string        `yaml:"state_file"`
}

// MockConfig contains simulated probe parameters for hardware-free runs.
type MockConfig struct {
	AmbientC      float32 `yaml:"ambient_c"`
	NoiseC        float32 `yaml:"noise_c"`
	VelocityCmDay float32 `yaml:"velocity_cm_day"`
	DirectionDeg  float32 `yaml:"direction_deg"`
	PlumeC        float32 `yaml:"plume_c"` // peak ΔT on the downstream channel
	PressureVolts float32 `yaml:"pressure_volts"`
	ConductivityV float32 `yaml:"conductivity_v"`
	BatteryVolts  float32 `yaml:"battery_volts"`
	SolarVolts    float32 `yaml:"solar_volts"`
	BaroHPa       float32 `yaml:"baro_hpa"`
	BaroTempC     float32 `yaml:"baro_temp_c"`
	HumidityPct   float32 `yaml:"humidity_pct"`
}

// Default returns the WX-Flow configuration with factory calibration values.
func Default() *Config {
	return &Config{
		Device: DeviceConfig{
			ID:              "WXF-001",
			Type:            TypeFlow,
			FirmwareVersion: "1.0.0",
		},
		Serial: SerialConfig{
			Port:     "/dev/ttyACM0",
			BaudRate: 115200,
		},
		Sensors: SensorConfig{
			ADCVoltsPerCount: 0.000125,
			SupplyVolts:      3.3,
			Pressure: PressureConfig{
				VMin:    1.0,
				VMax:    5.0,
				PSIMin:  0.0,
				PSIMax:  10.0,
				PSIToFt: 2.31,
			},
			Conductivity: ConductivityConfig{
				VMin:      0.0,
				VMax:      3.3,
				USMin:     0.0,
				USMax:     5000.0,
				TDSFactor: 0.5,
			},
			Thermistor: ThermistorConfig{
				NominalR: 10000.0,
				NominalT: 25.0,
				BCoeff:   3950.0,
				SeriesR:  10000.0,
			},
			RTD: RTDConfig{
				NominalR:    1000.0,
				Alpha:       0.00385,
				BridgeVolts: 1.65,
				OhmsPerVolt: 1000.0,
			},
			Baro: BaroConfig{
				StandardHPa: 1013.25,
				PSIPerHPa:   0.0145038,
			},
		},
		HeatPulse: HeatPulseConfig{
			BaselineSamples:  10,
			BaselineInterval: 50 * time.Millisecond,
			HeaterDuration:   4 * time.Second,
			SettleDuration:   500 * time.Millisecond,
			SampleInterval:   100 * time.Millisecond,
			MonitorWindow:    60 * time.Second,
			CalK:             900.0,
			ThermSpacingMM:   15.0,
		},
		LoRa: LoRaConfig{
			Port:            "/dev/ttyUSB0",
			BaudRate:        115200,
			FrequencyHz:     915e6,
			BandwidthHz:     125e3,
			SpreadingFactor: 7,
			TxPowerDBm:      17,
		},
		Cellular: CellularConfig{
			Port:           "/dev/ttyUSB1",
			BaudRate:       115200,
			APN:            "iot.1nce.net",
			Host:           "api.waterxchange.io",
			HostPort:       443,
			Path:           "/hardware/data",
			StatusToken:    "200",
			PowerSettle:    3 * time.Second,
			CommandTimeout: time.Second,
			ResponseWindow: 10 * time.Second,
		},
		Cycle: CycleConfig{
			TxInterval: 15 * time.Minute,
			StateFile:  "wx-state.yaml",
		},
		Mock: MockConfig{
			AmbientC:      14.0,
			NoiseC:        0.005,
			VelocityCmDay: 45.0,
			DirectionDeg:  90.0,
			PlumeC:        0.8,
			PressureVolts: 2.6,
			ConductivityV: 0.55,
			BatteryVolts:  3.92,
			SolarVolts:    5.18,
			BaroHPa:       1009.2,
			BaroTempC:     19.5,
			HumidityPct:   41.0,
		},
	}
}

// DefaultLevel returns the WX-Level configuration. The level probe shares the
// transmission and power architecture but has no heat-pulse array.
func DefaultLevel() *Config {
	cfg := Default()
	cfg.Device.ID = "WXL-001"
	cfg.Device.Type = TypeLevel
	cfg.Cycle.StateFile = "wxl-state.yaml"
	return cfg
}

// Load loads configuration from a YAML file. If the file doesn't exist or
// fields are missing, it uses default values.
func Load(filename string) (*Config, error) {
	return load(filename, Default())
}

// LoadLevel loads configuration for the level variant, falling back to
// DefaultLevel values.
func LoadLevel(filename string) (*Config, error) {
	return load(filename, DefaultLevel())
}

func load(filename string, cfg *Config) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			// File doesn't exist, return defaults
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Ensure minimum required fields are set (use defaults if missing)
	cfg.ensureDefaults()

	return cfg, nil
}

// Save saves the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ensureDefaults ensures that all required fields have default values if missing.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.Device.ID == "" {
		c.Device.ID = def.Device.ID
	}
	if c.Device.Type == "" {
		c.Device.Type = def.Device.Type
	}
	if c.Device.FirmwareVersion == "" {
		c.Device.FirmwareVersion = def.Device.FirmwareVersion
	}

	if c.Serial.Port == "" {
		c.Serial.Port = def.Serial.Port
	}
	if c.Serial.BaudRate == 0 {
		c.Serial.BaudRate = def.Serial.BaudRate
	}

	if c.Sensors.ADCVoltsPerCount == 0 {
		c.Sensors.ADCVoltsPerCount = def.Sensors.ADCVoltsPerCount
	}
	if c.Sensors.SupplyVolts == 0 {
		c.Sensors.SupplyVolts = def.Sensors.SupplyVolts
	}
	if c.Sensors.Pressure.VMax == 0 {
		c.Sensors.Pressure = def.Sensors.Pressure
	}
	if c.Sensors.Conductivity.VMax == 0 {
		c.Sensors.Conductivity = def.Sensors.Conductivity
	}
	if c.Sensors.Thermistor.NominalR == 0 {
		c.Sensors.Thermistor = def.Sensors.Thermistor
	}
	if c.Sensors.RTD.NominalR == 0 {
		c.Sensors.RTD = def.Sensors.RTD
	}
	if c.Sensors.Baro.StandardHPa == 0 {
		c.Sensors.Baro = def.Sensors.Baro
	}

	if c.HeatPulse.BaselineSamples == 0 {
		c.HeatPulse.BaselineSamples = def.HeatPulse.BaselineSamples
	}
	if c.HeatPulse.BaselineInterval == 0 {
		c.HeatPulse.BaselineInterval = def.HeatPulse.BaselineInterval
	}
	if c.HeatPulse.HeaterDuration == 0 {
		c.HeatPulse.HeaterDuration = def.HeatPulse.HeaterDuration
	}
	if c.HeatPulse.SettleDuration == 0 {
		c.HeatPulse.SettleDuration = def.HeatPulse.SettleDuration
	}
	if c.HeatPulse.SampleInterval == 0 {
		c.HeatPulse.SampleInterval = def.HeatPulse.SampleInterval
	}
	if c.HeatPulse.MonitorWindow == 0 {
		c.HeatPulse.MonitorWindow = def.HeatPulse.MonitorWindow
	}
	if c.HeatPulse.CalK == 0 {
		c.HeatPulse.CalK = def.HeatPulse.CalK
	}
	if c.HeatPulse.ThermSpacingMM == 0 {
		c.HeatPulse.ThermSpacingMM = def.HeatPulse.ThermSpacingMM
	}

	if c.LoRa.BaudRate == 0 {
		c.LoRa.BaudRate = def.LoRa.BaudRate
	}
	if c.LoRa.FrequencyHz == 0 {
		c.LoRa.FrequencyHz = def.LoRa.FrequencyHz
	}
	if c.LoRa.BandwidthHz == 0 {
		c.LoRa.BandwidthHz = def.LoRa.BandwidthHz
	}
	if c.LoRa.SpreadingFactor == 0 {
		c.LoRa.SpreadingFactor = def.LoRa.SpreadingFactor
	}
	if c.LoRa.TxPowerDBm == 0 {
		c.LoRa.TxPowerDBm = def.LoRa.TxPowerDBm
	}

	if c.Cellular.BaudRate == 0 {
		c.Cellular.BaudRate = def.Cellular.BaudRate
	}
	if c.Cellular.APN == "" {
		c.Cellular.APN = def.Cellular.APN
	}
	if c.Cellular.Host == "" {
		c.Cellular.Host = def.Cellular.Host
	}
	if c.Cellular.HostPort == 0 {
		c.Cellular.HostPort = def.Cellular.HostPort
	}
	if c.Cellular.Path == "" {
		c.Cellular.Path = def.Cellular.Path
	}
	if c.Cellular.StatusToken == "" {
		c.Cellular.StatusToken = def.Cellular.StatusToken
	}
	if c.Cellular.PowerSettle == 0 {
		c.Cellular.PowerSettle = def.Cellular.PowerSettle
	}
	if c.Cellular.CommandTimeout == 0 {
		c.Cellular.CommandTimeout = def.Cellular.CommandTimeout
	}
	if c.Cellular.ResponseWindow == 0 {
		c.Cellular.ResponseWindow = def.Cellular.ResponseWindow
	}

	if c.Cycle.TxInterval == 0 {
		c.Cycle.TxInterval = def.Cycle.TxInterval
	}
	if c.Cycle.StateFile == "" {
		c.Cycle.StateFile = def.Cycle.StateFile
	}

	if c.Mock.AmbientC == 0 {
		c.Mock.AmbientC = def.Mock.AmbientC
	}
	if c.Mock.PlumeC == 0 {
		c.Mock.PlumeC = def.Mock.PlumeC
	}
	if c.Mock.BatteryVolts == 0 {
		c.Mock.BatteryVolts = def.Mock.BatteryVolts
	}
}
