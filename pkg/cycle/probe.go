package cycle

import (
	"log"

	"github.com/taejoonest/waterxchange/pkg/board"
	"github.com/taejoonest/waterxchange/pkg/config"
	"github.com/taejoonest/waterxchange/pkg/heatpulse"
	"github.com/taejoonest/waterxchange/pkg/sensor"
	"github.com/taejoonest/waterxchange/pkg/telemetry"
)

// Probe builds one FullReading per wake cycle. A missing peripheral degrades
// the reading to sentinel values; measurement never aborts.
type Probe interface {
	Measure() telemetry.FullReading
}

// FlowProbe measures the WX-Flow sensor suite: water quality scalars plus
// the heat-pulse flow measurement.
type FlowProbe struct {
	cfg    *config.Config
	brd    board.Board
	engine *heatpulse.Engine
}

// NewFlowProbe creates the flow probe measurement path.
func NewFlowProbe(cfg *config.Config, brd board.Board, engine *heatpulse.Engine) *FlowProbe {
	return &FlowProbe{cfg: cfg, brd: brd, engine: engine}
}

func (p *FlowProbe) Measure() telemetry.FullReading {
	r := telemetry.FullReading{}

	sc := &p.cfg.Sensors
	r.PressurePSI = readPressure(p.brd, sc)
	r.WaterLevelFt = sensor.LevelFeet(r.PressurePSI, &sc.Pressure)
	r.ConductivityUS = readConductivity(p.brd, sc)
	r.TDSppm = sensor.TDSppm(r.ConductivityUS, &sc.Conductivity)
	r.WaterTempC = readRTD(p.brd, sc)
	r.BatteryV, r.SolarV = readRails(p.brd)

	// Dominates the cycle: baseline + heat + settle + monitor is about a
	// minute of wall time on hardware.
	r.Flow = p.engine.Run()

	return r
}

// LevelProbe measures the WX-Level suite: pressure with barometric
// compensation. No heat-pulse array, no water-quality sensors.
type LevelProbe struct {
	cfg *config.Config
	brd board.Board
}

// NewLevelProbe creates the level probe measurement path.
func NewLevelProbe(cfg *config.Config, brd board.Board) *LevelProbe {
	return &LevelProbe{cfg: cfg, brd: brd}
}

func (p *LevelProbe) Measure() telemetry.FullReading {
	r := telemetry.FullReading{}

	sc := &p.cfg.Sensors
	rawPSI := readPressure(p.brd, sc)

	r.BaroPressureHPa = sensor.Invalid
	r.BaroTempC = sensor.Invalid
	r.HumidityPct = sensor.Invalid
	if baro, err := p.brd.ReadBaro(); err != nil {
		log.Printf("baro read failed: %v", err)
	} else {
		r.BaroPressureHPa = baro.PressureHPa
		r.BaroTempC = baro.TempC
		r.HumidityPct = baro.HumidityPct
	}

	r.PressurePSI = sensor.BaroCompensatedPSI(rawPSI, r.BaroPressureHPa, &sc.Baro)
	r.WaterLevelFt = sensor.LevelFeet(r.PressurePSI, &sc.Pressure)
	// The level probe has no immersed temperature sensor.
	r.WaterTempC = sensor.Invalid
	r.BatteryV, r.SolarV = readRails(p.brd)

	return r
}

func readPressure(brd board.Board, sc *config.SensorConfig) float32 {
	raw, err := brd.ReadSensor(board.ChPressure)
	if err != nil {
		log.Printf("pressure read failed: %v", err)
		return sensor.Invalid
	}
	return sensor.PressurePSI(sensor.ADCToVolts(raw, sc), &sc.Pressure)
}

func readConductivity(brd board.Board, sc *config.SensorConfig) float32 {
	raw, err := brd.ReadSensor(board.ChConductivity)
	if err != nil {
		log.Printf("conductivity read failed: %v", err)
		return sensor.Invalid
	}
	return sensor.ConductivityUS(sensor.ADCToVolts(raw, sc), &sc.Conductivity)
}

func readRTD(brd board.Board, sc *config.SensorConfig) float32 {
	raw, err := brd.ReadSensor(board.ChPT1000)
	if err != nil {
		log.Printf("water temp read failed: %v", err)
		return sensor.Invalid
	}
	return sensor.RTDTempC(sensor.ADCToVolts(raw, sc), &sc.RTD)
}

func readRails(brd board.Board) (batt, solar float32) {
	batt, err := brd.BatteryVolts()
	if err != nil {
		log.Printf("battery read failed: %v", err)
		batt = sensor.Invalid
	}
	solar, err = brd.SolarVolts()
	if err != nil {
		log.Printf("solar read failed: %v", err)
		solar = sensor.Invalid
	}
	return batt, solar
}
