// Package heatpulse implements the heat-pulse flow measurement: fire a
// heater at the probe center and watch four thermistors (N/E/S/W at 15mm
// radius) for the thermal plume. The downstream thermistor sees the fastest
// and largest rise; timing and magnitude give flow direction and velocity.
package heatpulse

import (
	"log"

	"github.com/chewxy/math32"

	"github.com/taejoonest/waterxchange/pkg/board"
	"github.com/taejoonest/waterxchange/pkg/clock"
	"github.com/taejoonest/waterxchange/pkg/config"
	"github.com/taejoonest/waterxchange/pkg/sensor"
)

// StagnantThresholdC is the minimum peak ΔT for a reading to count as flow.
// Below it the water is treated as stagnant.
const StagnantThresholdC float32 = 0.05

// minPeakSeconds floors the velocity divisor so very fast transients report
// a bounded maximum velocity.
const minPeakSeconds float32 = 0.5

// Phase is one step of the measurement sequence. The sequence is strictly
// forward: Idle → BaselineCapture → HeaterOn → SettleWait → Monitoring →
// Evaluate → Done.
type Phase int

const (
	Idle Phase = iota
	BaselineCapture
	HeaterOn
	SettleWait
	Monitoring
	Evaluate
	Done
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case BaselineCapture:
		return "baseline"
	case HeaterOn:
		return "heater-on"
	case SettleWait:
		return "settle"
	case Monitoring:
		return "monitoring"
	case Evaluate:
		return "evaluate"
	case Done:
		return "done"
	}
	return "unknown"
}

// FlowResult is the outcome of one heat-pulse measurement.
type FlowResult struct {
	VelocityCmDay float32
	DirectionDeg  float32 // 0=N, 90=E, 180=S, 270=W; -1 when stagnant
	PeakTemps     [board.NumTherm]float32
	PeakTimes     [board.NumTherm]float32
	Valid         bool
}

// Engine runs the measurement sequence against a board. All waits go through
// the clock so the full ~65 second schedule is simulable in tests.
type Engine struct {
	cfg   *config.Config
	brd   board.Board
	clk   clock.Clock
	phase Phase
}

// New creates an engine. A nil clock means wall time.
func New(cfg *config.Config, brd board.Board, clk clock.Clock) *Engine {
	if clk == nil {
		clk = clock.Wall{}
	}
	return &Engine{cfg: cfg, brd: brd, clk: clk, phase: Idle}
}

// Phase returns the current phase, for diagnostics.
func (e *Engine) Phase() Phase { return e.phase }

// Run executes the full sequence and always produces a FlowResult; there is
// no recoverable-error path. A dead thermistor array yields the stagnant
// result rather than a failure.
func (e *Engine) Run() FlowResult {
	hp := &e.cfg.HeatPulse

	e.phase = BaselineCapture
	baseline := e.captureBaseline()

	e.phase = HeaterOn
	e.fireHeater()

	e.phase = SettleWait
	e.clk.Sleep(hp.SettleDuration)

	e.phase = Monitoring
	peaks, times := e.monitor(baseline)

	e.phase = Evaluate
	result := EvaluatePeaks(peaks, times, hp.CalK)

	e.phase = Done
	return result
}

// captureBaseline averages a fixed number of samples per channel before the
// pulse to suppress sensor noise. Invalid samples are skipped, not averaged.
func (e *Engine) captureBaseline() [board.NumTherm]float32 {
	hp := &e.cfg.HeatPulse

	var sum [board.NumTherm]float32
	var n [board.NumTherm]int
	for i := 0; i < hp.BaselineSamples; i++ {
		temps := e.readAll()
		for j, t := range temps {
			if sensor.IsInvalid(t) {
				continue
			}
			sum[j] += t
			n[j]++
		}
		e.clk.Sleep(hp.BaselineInterval)
	}

	var baseline [board.NumTherm]float32
	for j := range baseline {
		if n[j] == 0 {
			baseline[j] = sensor.Invalid
			continue
		}
		baseline[j] = sum[j] / float32(n[j])
	}
	return baseline
}

// fireHeater asserts the heater for the configured duration. The deassert is
// deferred: the heater must never stay on past this phase, whatever happens
// in between.
func (e *Engine) fireHeater() {
	if err := e.brd.SetHeater(true); err != nil {
		log.Printf("heater assert failed: %v", err)
		return
	}
	defer func() {
		if err := e.brd.SetHeater(false); err != nil {
			log.Printf("heater deassert failed: %v", err)
		}
	}()
	e.clk.Sleep(e.cfg.HeatPulse.HeaterDuration)
}

// monitor samples all channels at a fixed cadence for the monitoring window,
// tracking the running maximum ΔT and its elapsed time per channel. The
// cadence is constant; peak times are only physically meaningful if no
// samples are skipped.
func (e *Engine) monitor(baseline [board.NumTherm]float32) (peaks, times [board.NumTherm]float32) {
	hp := &e.cfg.HeatPulse

	start := e.clk.Now()
	for {
		elapsed := e.clk.Now().Sub(start)
		if elapsed >= hp.MonitorWindow {
			break
		}
		temps := e.readAll()
		elapsedS := float32(elapsed.Seconds())
		for j, t := range temps {
			if sensor.IsInvalid(t) || sensor.IsInvalid(baseline[j]) {
				continue
			}
			dt := t - baseline[j]
			if dt > peaks[j] {
				peaks[j] = dt
				times[j] = elapsedS
			}
		}
		e.clk.Sleep(hp.SampleInterval)
	}
	return peaks, times
}

// readAll reads the four thermistors in canonical N,E,S,W order.
func (e *Engine) readAll() [board.NumTherm]float32 {
	var out [board.NumTherm]float32
	for ch := 0; ch < board.NumTherm; ch++ {
		raw, err := e.brd.ReadTherm(ch)
		if err != nil {
			out[ch] = sensor.Invalid
			continue
		}
		volts := sensor.ADCToVolts(raw, &e.cfg.Sensors)
		out[ch] = sensor.ThermistorTempC(volts, e.cfg.Sensors.SupplyVolts, &e.cfg.Sensors.Thermistor)
	}
	return out
}

// EvaluatePeaks derives flow direction and velocity from per-channel peak
// ΔT and time-to-peak. Direction is the circular mean of the four fixed
// bearings weighted by peak ΔT, which is more robust to near-ties between
// adjacent channels than picking the single maximum. Velocity follows the
// calibrated inverse-time model v = K / t_peak.
func EvaluatePeaks(peaks, times [board.NumTherm]float32, calK float32) FlowResult {
	result := FlowResult{
		PeakTemps: peaks,
		PeakTimes: times,
	}

	maxIdx := 0
	for j := 1; j < board.NumTherm; j++ {
		if peaks[j] > peaks[maxIdx] {
			maxIdx = j
		}
	}

	if peaks[maxIdx] < StagnantThresholdC {
		// No measurable flow, treat as stagnant. Peak arrays are still
		// reported for diagnostics.
		result.VelocityCmDay = 0
		result.DirectionDeg = -1
		result.Valid = true
		return result
	}

	bearings := [board.NumTherm]float32{0, 90, 180, 270}
	var sinSum, cosSum float32
	for j := 0; j < board.NumTherm; j++ {
		rad := bearings[j] * math32.Pi / 180
		sinSum += peaks[j] * math32.Sin(rad)
		cosSum += peaks[j] * math32.Cos(rad)
	}
	direction := math32.Atan2(sinSum, cosSum) * 180 / math32.Pi
	if direction < 0 {
		direction += 360
	}

	tPeak := times[maxIdx]
	if tPeak < minPeakSeconds {
		tPeak = minPeakSeconds
	}

	result.VelocityCmDay = calK / tPeak
	result.DirectionDeg = direction
	result.Valid = true
	return result
}
