package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/taejoonest/waterxchange/pkg/board"
	"github.com/taejoonest/waterxchange/pkg/clock"
	"github.com/taejoonest/waterxchange/pkg/config"
	"github.com/taejoonest/waterxchange/pkg/cycle"
	"github.com/taejoonest/waterxchange/pkg/heatpulse"
	"github.com/taejoonest/waterxchange/pkg/transport"
)

// timeScale compresses the measurement schedule so a bench cycle takes a few
// seconds instead of a minute. The velocity calibration constant is scaled
// with it so reported velocities stay physical. Compressing harder than this
// pushes typical peak times under the velocity floor clamp.
const timeScale = 10

var (
	flagBroker   string
	flagTopic    string
	flagDeviceID string
	flagInterval time.Duration
	flagVelocity float64
	flagBearing  float64
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "simulator",
		Short: "Bench probe simulator publishing telemetry to MQTT",
		Long: `simulator runs full WX-Flow wake cycles against the simulated probe on a
compressed schedule and publishes each encoded payload to an MQTT broker,
so backend ingest can be exercised without field hardware.`,
		RunE: run,
	}

	rootCmd.Flags().StringVar(&flagBroker, "broker", "tcp://localhost:1883", "MQTT broker address")
	rootCmd.Flags().StringVar(&flagTopic, "topic", "hardware/data", "MQTT topic for payloads")
	rootCmd.Flags().StringVar(&flagDeviceID, "device-id", "WXF-SIM", "Simulated device identity")
	rootCmd.Flags().DurationVar(&flagInterval, "interval", 10*time.Second, "Delay between simulated wake cycles")
	rootCmd.Flags().Float64Var(&flagVelocity, "velocity", 45, "Simulated flow velocity (cm/day)")
	rootCmd.Flags().Float64Var(&flagBearing, "bearing", 90, "Simulated flow direction (degrees)")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg := config.Default()
	cfg.Device.ID = flagDeviceID
	cfg.Cycle.TxInterval = flagInterval
	cfg.Mock.VelocityCmDay = float32(flagVelocity)
	cfg.Mock.DirectionDeg = float32(flagBearing)
	compressSchedule(cfg)

	uplink, err := transport.NewMQTT(flagBroker, flagDeviceID, flagTopic)
	if err != nil {
		return fmt.Errorf("failed to reach broker: %w", err)
	}
	defer uplink.Close()

	clk := clock.Wall{}
	brd := board.NewMock(cfg, clk)
	engine := heatpulse.New(cfg, brd, clk)
	probe := cycle.NewFlowProbe(cfg, brd, engine)
	ctrl := cycle.New(cfg, brd, probe, transport.NewManager(uplink, nil), &cycle.MemStore{}, clk)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctrl.Run(ctx)
	return nil
}

// compressSchedule divides every heat-pulse duration by timeScale. Peak times
// shrink with the schedule, so CalK shrinks too and v = K/t is unchanged.
func compressSchedule(cfg *config.Config) {
	hp := &cfg.HeatPulse
	hp.BaselineInterval /= timeScale
	hp.HeaterDuration /= timeScale
	hp.SettleDuration /= timeScale
	hp.SampleInterval /= timeScale
	hp.MonitorWindow /= timeScale
	hp.CalK /= timeScale
}
