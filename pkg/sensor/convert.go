// Package sensor converts raw ADC readings into calibrated physical
// quantities. All functions are pure so they can be tested without hardware;
// non-physical inputs produce the Invalid sentinel rather than an error.
package sensor

import (
	"github.com/chewxy/math32"

	"github.com/taejoonest/waterxchange/pkg/config"
)

// Invalid marks a reading whose backing peripheral is missing or whose
// raw value resolves to a non-physical quantity.
const Invalid float32 = -999.0

// IsInvalid reports whether v is the sentinel for a failed reading.
func IsInvalid(v float32) bool {
	return v <= Invalid
}

// ADCToVolts converts a signed ADS1115 code to volts using the configured LSB.
func ADCToVolts(raw int16, cfg *config.SensorConfig) float32 {
	return float32(raw) * cfg.ADCVoltsPerCount
}

// PressurePSI maps transducer voltage linearly onto the calibrated PSI range.
// Out-of-range voltages saturate at the range limits rather than being
// rejected: a 4-20mA loop reads slightly below 1V when the line sags.
func PressurePSI(volts float32, cfg *config.PressureConfig) float32 {
	span := cfg.VMax - cfg.VMin
	if span <= 0 {
		return Invalid
	}
	psi := cfg.PSIMin + (volts-cfg.VMin)/span*(cfg.PSIMax-cfg.PSIMin)
	if psi < cfg.PSIMin {
		return cfg.PSIMin
	}
	if psi > cfg.PSIMax {
		return cfg.PSIMax
	}
	return psi
}

// LevelFeet converts gauge pressure to feet of water head, floored at zero.
func LevelFeet(psi float32, cfg *config.PressureConfig) float32 {
	if IsInvalid(psi) {
		return Invalid
	}
	ft := psi * cfg.PSIToFt
	if ft < 0 {
		return 0
	}
	return ft
}

// ConductivityUS maps EC circuit voltage linearly onto the µS/cm range.
func ConductivityUS(volts float32, cfg *config.ConductivityConfig) float32 {
	span := cfg.VMax - cfg.VMin
	if span <= 0 {
		return Invalid
	}
	us := cfg.USMin + (volts-cfg.VMin)/span*(cfg.USMax-cfg.USMin)
	if us < cfg.USMin {
		return cfg.USMin
	}
	if us > cfg.USMax {
		return cfg.USMax
	}
	return us
}

// TDSppm estimates total dissolved solids from conductivity using the
// empirical NaCl factor.
func TDSppm(conductivityUS float32, cfg *config.ConductivityConfig) float32 {
	if IsInvalid(conductivityUS) {
		return Invalid
	}
	return conductivityUS * cfg.TDSFactor
}

// RTDTempC converts a Wheatstone bridge voltage deviation to temperature via
// the linear PT1000 coefficient model.
func RTDTempC(volts float32, cfg *config.RTDConfig) float32 {
	if cfg.NominalR <= 0 || cfg.Alpha <= 0 {
		return Invalid
	}
	deltaOhms := (volts - cfg.BridgeVolts) * cfg.OhmsPerVolt
	return deltaOhms / (cfg.NominalR * cfg.Alpha)
}

// ThermistorTempC resolves the divider to an NTC resistance and applies the
// B-parameter Steinhart-Hart equation. Returns Invalid when the divider
// saturates or resolves to a non-positive resistance.
func ThermistorTempC(volts, supplyVolts float32, cfg *config.ThermistorConfig) float32 {
	if volts >= supplyVolts {
		return Invalid
	}
	// Divider with the thermistor on the low side: V = Vcc·Rt/(Rs+Rt)
	rTherm := cfg.SeriesR * volts / (supplyVolts - volts)
	if rTherm <= 0 {
		return Invalid
	}

	steinhart := math32.Log(rTherm / cfg.NominalR)
	steinhart /= cfg.BCoeff
	steinhart += 1.0 / (cfg.NominalT + 273.15)
	return 1.0/steinhart - 273.15
}

// BaroCompensatedPSI removes the barometric component from an absolute
// pressure reading, referencing the standard atmosphere.
func BaroCompensatedPSI(rawPSI, baroHPa float32, cfg *config.BaroConfig) float32 {
	if IsInvalid(rawPSI) {
		return Invalid
	}
	if IsInvalid(baroHPa) {
		// No barometer, report the uncompensated value.
		return rawPSI
	}
	return rawPSI - (baroHPa-cfg.StandardHPa)*cfg.PSIPerHPa
}
