// Package telemetry assembles the canonical payload uploaded by both probe
// variants. Encoding is pure and deterministic: the same reading always
// marshals to byte-identical JSON, with field precision fixed per the
// backend ingest schema.
package telemetry

import (
	"encoding/json"
	"math"

	"github.com/taejoonest/waterxchange/pkg/board"
	"github.com/taejoonest/waterxchange/pkg/config"
	"github.com/taejoonest/waterxchange/pkg/heatpulse"
)

// FullReading aggregates everything measured in one wake cycle. Created once
// per cycle and immutable thereafter.
type FullReading struct {
	Device    config.DeviceConfig
	BootCount uint32

	Flow heatpulse.FlowResult

	ConductivityUS float32
	TDSppm         float32
	WaterTempC     float32
	WaterLevelFt   float32
	PressurePSI    float32
	BatteryV       float32
	SolarV         float32

	// Level variant only.
	BaroPressureHPa float32
	BaroTempC       float32
	HumidityPct     float32
}

// FlowData is the nested flow block of the wx-flow payload.
type FlowData struct {
	VelocityCmDay float32                       `json:"velocity_cm_day"`
	DirectionDeg  int                           `json:"direction_deg"`
	Valid         bool                          `json:"valid"`
	PeakTemps     [board.NumTherm]float32       `json:"peak_temps"`
	PeakTimes     [board.NumTherm]float32       `json:"peak_times"`
}

// FlowPayload matches the backend's wx-flow ingest schema.
type FlowPayload struct {
	DeviceID       string   `json:"device_id"`
	DeviceType     string   `json:"device_type"`
	FWVersion      string   `json:"fw_version"`
	BootCount      uint32   `json:"boot_count"`
	Flow           FlowData `json:"flow"`
	ConductivityUS int      `json:"conductivity_us"`
	TDSppm         int      `json:"tds_ppm"`
	WaterTempC     float32  `json:"water_temp_c"`
	WaterLevelFt   float32  `json:"water_level_ft"`
	PressurePSI    float32  `json:"pressure_psi"`
	BatteryV       float32  `json:"battery_v"`
	SolarV         float32  `json:"solar_v"`
}

// LevelPayload matches the backend's wx-level ingest schema.
type LevelPayload struct {
	DeviceID        string  `json:"device_id"`
	DeviceType      string  `json:"device_type"`
	FWVersion       string  `json:"fw_version"`
	BootCount       uint32  `json:"boot_count"`
	WaterLevelFt    float32 `json:"water_level_ft"`
	PressurePSI     float32 `json:"pressure_psi"`
	WaterTempC      float32 `json:"water_temp_c"`
	BaroPressureHPa float32 `json:"baro_pressure_hpa"`
	BaroTempC       float32 `json:"baro_temp_c"`
	HumidityPct     float32 `json:"humidity_pct"`
	BatteryV        float32 `json:"battery_v"`
	SolarV          float32 `json:"solar_v"`
}

// EncodeFlow builds the rounded wx-flow payload from a reading.
func EncodeFlow(r FullReading) FlowPayload {
	p := FlowPayload{
		DeviceID:   r.Device.ID,
		DeviceType: r.Device.Type,
		FWVersion:  r.Device.FirmwareVersion,
		BootCount:  r.BootCount,
		Flow: FlowData{
			VelocityCmDay: round(r.Flow.VelocityCmDay, 1),
			DirectionDeg:  roundInt(r.Flow.DirectionDeg),
			Valid:         r.Flow.Valid,
		},
		ConductivityUS: roundInt(r.ConductivityUS),
		TDSppm:         roundInt(r.TDSppm),
		WaterTempC:     round(r.WaterTempC, 1),
		WaterLevelFt:   round(r.WaterLevelFt, 2),
		PressurePSI:    round(r.PressurePSI, 3),
		BatteryV:       round(r.BatteryV, 2),
		SolarV:         round(r.SolarV, 2),
	}
	for j := 0; j < board.NumTherm; j++ {
		p.Flow.PeakTemps[j] = round(r.Flow.PeakTemps[j], 2)
		p.Flow.PeakTimes[j] = round(r.Flow.PeakTimes[j], 1)
	}
	return p
}

// EncodeLevel builds the rounded wx-level payload from a reading.
func EncodeLevel(r FullReading) LevelPayload {
	return LevelPayload{
		DeviceID:        r.Device.ID,
		DeviceType:      r.Device.Type,
		FWVersion:       r.Device.FirmwareVersion,
		BootCount:       r.BootCount,
		WaterLevelFt:    round(r.WaterLevelFt, 2),
		PressurePSI:     round(r.PressurePSI, 3),
		WaterTempC:      round(r.WaterTempC, 1),
		BaroPressureHPa: round(r.BaroPressureHPa, 2),
		BaroTempC:       round(r.BaroTempC, 1),
		HumidityPct:     round(r.HumidityPct, 1),
		BatteryV:        round(r.BatteryV, 2),
		SolarV:          round(r.SolarV, 2),
	}
}

// Encode produces the serialized payload for the reading's device type.
func Encode(r FullReading) ([]byte, error) {
	if r.Device.Type == config.TypeLevel {
		return json.Marshal(EncodeLevel(r))
	}
	return json.Marshal(EncodeFlow(r))
}

// round rounds half away from zero to the given number of decimals,
// matching the firmware's roundf semantics.
func round(v float32, decimals int) float32 {
	p := math.Pow(10, float64(decimals))
	return float32(math.Round(float64(v)*p) / p)
}

func roundInt(v float32) int {
	return int(math.Round(float64(v)))
}
