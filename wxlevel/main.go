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
		Use:   "wxlevel",
		Short: "WX-Level water level probe control cycle",
		Long: `wxlevel runs the WX-Level probe: pressure-derived water level with
barometric compensation, uplinked over LoRa with cellular fallback on a
fixed transmit interval.`,
		RunE: run,
	}

	rootCmd.Flags().StringVar(&flagConfig, "config", "wxlevel.yaml", "Configuration file path")
	rootCmd.Flags().StringVar(&flagPort, "port", "", "Front-end bridge port override (e.g. /dev/ttyACM0)")
	rootCmd.Flags().StringVar(&flagState, "state", "", "Retained state file override")
	rootCmd.Flags().BoolVar(&flagMock, "mock", false, "Run against the simulated probe (no hardware)")
	rootCmd.Flags().BoolVar(&flagOnce, "once", false, "Run a single wake cycle and exit")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadLevel(flagConfig)
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

		var primary transport.Transport
		if radio, err := transport.OpenLoRa(&cfg.LoRa, clk); err != nil {
			log.Printf("radio unavailable: %v", err)
		} else {
			primary = radio
		}
		secondary := transport.NewCellular(&cfg.Cellular, clk, brd.SetModemPower, nil)
		mgr = transport.NewManager(primary, secondary)
	}
	defer brd.Close()

	probe := cycle.NewLevelProbe(cfg, brd)
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
