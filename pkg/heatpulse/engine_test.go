package heatpulse

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taejoonest/waterxchange/pkg/board"
	"github.com/taejoonest/waterxchange/pkg/clock"
	"github.com/taejoonest/waterxchange/pkg/config"
)

func TestEvaluatePeaks_SingleDownstreamChannel(t *testing.T) {
	peaks := [board.NumTherm]float32{0, 0.10, 0, 0}
	times := [board.NumTherm]float32{0, 5.0, 0, 0}

	res := EvaluatePeaks(peaks, times, 900)

	assert.True(t, res.Valid)
	assert.InDelta(t, 90.0, res.DirectionDeg, 0.01)
	assert.InDelta(t, 180.0, res.VelocityCmDay, 0.01) // 900 / 5
	assert.Equal(t, peaks, res.PeakTemps)
	assert.Equal(t, times, res.PeakTimes)
}

func TestEvaluatePeaks_FastTransientFloorsDivisor(t *testing.T) {
	peaks := [board.NumTherm]float32{0, 0.30, 0, 0}
	times := [board.NumTherm]float32{0, 0.3, 0, 0}

	res := EvaluatePeaks(peaks, times, 900)

	assert.True(t, res.Valid)
	assert.InDelta(t, 1800.0, res.VelocityCmDay, 0.01) // divisor floored at 0.5s
}

func TestEvaluatePeaks_Stagnant(t *testing.T) {
	peaks := [board.NumTherm]float32{0.01, 0.04, 0.02, 0.03}
	times := [board.NumTherm]float32{3, 7, 11, 5}

	res := EvaluatePeaks(peaks, times, 900)

	assert.True(t, res.Valid, "stagnant is a valid reading, not a failure")
	assert.Equal(t, float32(0), res.VelocityCmDay)
	assert.Equal(t, float32(-1), res.DirectionDeg)
	assert.Equal(t, peaks, res.PeakTemps, "peaks still reported for diagnostics")
}

func TestEvaluatePeaks_AdjacentTieSplitsBearing(t *testing.T) {
	// Equal plumes on E and S: the weighted circular mean lands between them.
	peaks := [board.NumTherm]float32{0, 0.20, 0.20, 0}
	times := [board.NumTherm]float32{0, 6, 6, 0}

	res := EvaluatePeaks(peaks, times, 900)

	assert.True(t, res.Valid)
	assert.InDelta(t, 135.0, res.DirectionDeg, 0.01)
}

func TestEvaluatePeaks_NorthWestWrapsPast270(t *testing.T) {
	peaks := [board.NumTherm]float32{0.20, 0, 0, 0.20}
	times := [board.NumTherm]float32{6, 0, 0, 6}

	res := EvaluatePeaks(peaks, times, 900)

	assert.InDelta(t, 315.0, res.DirectionDeg, 0.01, "direction normalized to [0,360)")
}

func TestEvaluatePeaks_DirectionScaleInvariant(t *testing.T) {
	peaks := [board.NumTherm]float32{0.02, 0.18, 0.06, 0.01}
	times := [board.NumTherm]float32{9, 4, 12, 15}

	a := EvaluatePeaks(peaks, times, 900)

	for j := range peaks {
		peaks[j] *= 2.5
	}
	b := EvaluatePeaks(peaks, times, 900)

	assert.InDelta(t, a.DirectionDeg, b.DirectionDeg, 1e-3)
}

// TestEngineRun_SimulatedEastFlow runs the full ~65 second sequence against
// the simulated probe on a virtual clock. The mock advects a plume eastward
// at 45 cm/day, so the east thermistor must dominate and the inverse-time
// model must land near the configured velocity.
func TestEngineRun_SimulatedEastFlow(t *testing.T) {
	cfg := config.Default()
	cfg.Mock.NoiseC = 0
	cfg.Mock.VelocityCmDay = 45
	cfg.Mock.DirectionDeg = 90

	clk := clock.NewSim(time.Unix(1700000000, 0))
	brd := board.NewMock(cfg, clk)
	eng := New(cfg, brd, clk)

	res := eng.Run()

	require.True(t, res.Valid)
	assert.Equal(t, Done, eng.Phase())
	assert.False(t, brd.HeaterOn(), "heater must be off after the sequence")

	assert.InDelta(t, 90.0, res.DirectionDeg, 1.0)

	// ADC quantization flattens the plume crest, so the recorded time-to-peak
	// lands a little early and the velocity reads a few cm/day high.
	assert.Greater(t, res.VelocityCmDay, float32(42))
	assert.Less(t, res.VelocityCmDay, float32(58))

	maxIdx := 0
	for j := 1; j < board.NumTherm; j++ {
		if res.PeakTemps[j] > res.PeakTemps[maxIdx] {
			maxIdx = j
		}
	}
	assert.Equal(t, board.ChThermE, maxIdx, "east channel sees the largest rise")
	assert.InDelta(t, cfg.Mock.PlumeC, res.PeakTemps[board.ChThermE], 0.05)
}

func TestEngineRun_SimulatedStagnant(t *testing.T) {
	cfg := config.Default()
	cfg.Mock.NoiseC = 0
	cfg.Mock.VelocityCmDay = 0

	clk := clock.NewSim(time.Unix(1700000000, 0))
	brd := board.NewMock(cfg, clk)
	eng := New(cfg, brd, clk)

	res := eng.Run()

	require.True(t, res.Valid)
	assert.Equal(t, float32(0), res.VelocityCmDay)
	assert.Equal(t, float32(-1), res.DirectionDeg)
}

// A dead thermistor array must still produce the stagnant result rather than
// an error, so the cycle can report water quality without flow.
func TestEngineRun_DeadThermistorArray(t *testing.T) {
	cfg := config.Default()
	clk := clock.NewSim(time.Unix(1700000000, 0))
	brd := board.NewMock(cfg, clk)
	brd.SetAvailable(board.PeriphThermADC, false)
	eng := New(cfg, brd, clk)

	res := eng.Run()

	assert.True(t, res.Valid)
	assert.Equal(t, float32(0), res.VelocityCmDay)
	assert.Equal(t, float32(-1), res.DirectionDeg)
}
