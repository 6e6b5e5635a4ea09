// Package cycle orchestrates one power cycle of the probe: boot, measure,
// encode, transmit, persist counters, sleep. On hardware each wake is a
// fresh boot out of deep sleep; nothing carries over except DeviceState.
package cycle

import (
	"context"
	"log"

	"github.com/taejoonest/waterxchange/pkg/board"
	"github.com/taejoonest/waterxchange/pkg/clock"
	"github.com/taejoonest/waterxchange/pkg/config"
	"github.com/taejoonest/waterxchange/pkg/telemetry"
	"github.com/taejoonest/waterxchange/pkg/transport"
)

// Report summarizes one completed wake cycle.
type Report struct {
	State   DeviceState
	Payload []byte
	Sent    bool
}

// Controller drives the wake cycle. Steps run strictly in order; no step
// begins before its predecessor completes, and every cycle reaches the
// sleep boundary regardless of failures along the way.
type Controller struct {
	cfg   *config.Config
	brd   board.Board
	probe Probe
	mgr   *transport.Manager
	store StateStore
	clk   clock.Clock
}

// New creates a controller. A nil clock means wall time.
func New(cfg *config.Config, brd board.Board, probe Probe, mgr *transport.Manager, store StateStore, clk clock.Clock) *Controller {
	if clk == nil {
		clk = clock.Wall{}
	}
	return &Controller{cfg: cfg, brd: brd, probe: probe, mgr: mgr, store: store, clk: clk}
}

// RunCycle executes one wake: Boot → InitPeripherals → Measure → Encode →
// Transmit → PersistState. The caller owns the sleep that follows.
func (c *Controller) RunCycle() Report {
	// Boot: load retained counters. A corrupt or missing store degrades to
	// zeroed counters; it never blocks the cycle.
	st, err := c.store.Load()
	if err != nil {
		log.Printf("state load failed, starting from zero: %v", err)
		st = DeviceState{}
	}
	st.BootCount++

	// InitPeripherals: report what answered. Missing peripherals degrade
	// data quality; the cycle proceeds with whatever is available.
	for _, p := range []board.Peripheral{
		board.PeriphSensorADC, board.PeriphThermADC, board.PeriphBaro,
		board.PeriphHeater, board.PeriphPowerRails,
	} {
		if !c.brd.Available(p) {
			log.Printf("peripheral %s missing, readings will be degraded", p)
		}
	}

	// Measure.
	reading := c.probe.Measure()
	reading.Device = c.cfg.Device
	reading.BootCount = st.BootCount

	// Encode.
	payload, err := telemetry.Encode(reading)
	sent := false
	if err != nil {
		log.Printf("payload encode failed: %v", err)
	} else {
		// Transmit: primary, then fallback, no retries this cycle.
		sent = c.mgr.Attempt(payload)
	}

	// PersistState: boot count always advances; the fail counter resets on
	// any success and grows by exactly one per fully failed cycle.
	if sent {
		st.TxFailCount = 0
	} else {
		st.TxFailCount++
		log.Printf("transmit failed, consecutive failures: %d", st.TxFailCount)
	}
	if err := c.store.Save(st); err != nil {
		// The counters may be stale next wake, but sleep must still happen.
		log.Printf("state save failed: %v", err)
	}

	return Report{State: st, Payload: payload, Sent: sent}
}

// Run loops wake cycles separated by the configured transmit interval until
// the context is cancelled. On the MCU the interval is spent in deep sleep
// with a timer wake; in-process it blocks on the clock.
func (c *Controller) Run(ctx context.Context) {
	for {
		report := c.RunCycle()
		log.Printf("cycle %d complete, sent=%v", report.State.BootCount, report.Sent)

		if ctx.Err() != nil {
			return
		}
		c.clk.Sleep(c.cfg.Cycle.TxInterval)
		if ctx.Err() != nil {
			return
		}
	}
}
