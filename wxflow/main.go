package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/taejoonest/waterxchange/pkg/board"
	"github.com/taejoonest/waterxchange/pkg/clock"
	"github.com/taejoonest/waterxchange/pkg/config"
	"github.com/taejoonest/waterxchange/pkg/cycle"
	"github.com/taejoonest/waterxchange/pkg/heatpulse"
	"github.com/taejoonest/waterxchange/pkg/transport"
)

var (
	flagConfig string
	flagPort   string
	flagState  string
	flagMock   bool
	flagOnce   bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "wxflow",
		Short: "WX-Flow groundwater flow probe control cycle",
		Long: `wxflow runs the WX-Flow probe: heat-pulse flow velocimetry plus water
quality sensing, uplinked over LoRa with cellular fallback on a fixed
transmit interval.`,
		RunE: run,
	}

	rootCmd.Flags().StringVar(&flagConfig, "config", "wxflow.yaml", "Configuration file path")
	rootCmd.Flags().StringVar(&flagPort, "port", "", "Front-end bridge port override (e.g. /dev/ttyACM0)")
	rootCmd.Flags().StringVar(&flagState, "state", "", "Retained state file override")
	rootCmd.Flags().BoolVar(&flagMock, "mock", false, "Run against the simulated probe (no hardware)")
	rootCmd.Flags().BoolVar(&flagOnce, "once", false, "Run a single wake cycle and exit")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if flagPort != "" {
		cfg.Serial.Port = flagPort
	}
	if flagState != "" {
		cfg.Cycle.StateFile = flagState
	}

	clk := clock.Wall{}

	var brd board.Board
	var mgr *transport.Manager
	if flagMock {
		brd = board.NewMock(cfg, clk)
		mgr = transport.NewManager(transport.Loopback{}, nil)
	} else {
		serial, err := board.Open(&cfg.Serial)
		if err != nil {
			return fmt.Errorf("failed to open front-end bridge: %w", err)
		}
		brd = serial
		mgr = transport.NewManager(openRadio(cfg, clk), openCellular(cfg, clk, brd))
	}
	defer brd.Close()

	engine := heatpulse.New(cfg, brd, clk)
	probe := cycle.NewFlowProbe(cfg, brd, engine)
	store := &cycle.FileStore{Path: cfg.Cycle.StateFile}
	ctrl := cycle.New(cfg, brd, probe, mgr, store, clk)

	if flagOnce {
		report := ctrl.RunCycle()
		fmt.Println(string(report.Payload))
		if !report.Sent {
			return fmt.Errorf("transmit failed (consecutive failures: %d)", report.State.TxFailCount)
		}
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctrl.Run(ctx)
	return nil
}

// openRadio opens the LoRa module. A missing radio is logged and skipped;
// the cellular fallback still runs.
func openRadio(cfg *config.Config, clk clock.Clock) transport.Transport {
	radio, err := transport.OpenLoRa(&cfg.LoRa, clk)
	if err != nil {
		log.Printf("radio unavailable: %v", err)
		return nil
	}
	return radio
}

func openCellular(cfg *config.Config, clk clock.Clock, brd board.Board) transport.Transport {
	return transport.NewCellular(&cfg.Cellular, clk, brd.SetModemPower, nil)
}
