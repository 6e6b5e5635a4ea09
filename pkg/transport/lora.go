package transport

import (
	"fmt"
	"io"
	"strings"
	"time"

	"go.bug.st/serial"

	"github.com/taejoonest/waterxchange/pkg/clock"
	"github.com/taejoonest/waterxchange/pkg/config"
)

// loraAckWindow bounds the wait for the module's transmit acknowledgment.
// LoRa here is connectionless: the ack is the radio driver confirming the
// packet left the antenna, not a delivery receipt.
const (
	loraAckWindow    = 32 // polls of loraPollInterval
	loraPollInterval = 250 * time.Millisecond
)

// LoRa is the primary uplink: a UART-attached LoRa modem sending the payload
// as a single packet.
type LoRa struct {
	cfg        *config.LoRaConfig
	clk        clock.Clock
	port       io.ReadWriteCloser
	configured bool
}

// OpenLoRa opens the radio module's serial port. An open failure returns an
// error; the caller treats the radio as unavailable, not fatal.
func OpenLoRa(cfg *config.LoRaConfig, clk clock.Clock) (*LoRa, error) {
	port, err := serial.Open(cfg.Port, &serial.Mode{BaudRate: cfg.BaudRate})
	if err != nil {
		return nil, fmt.Errorf("failed to open radio port %s: %w", cfg.Port, err)
	}
	return NewLoRa(cfg, clk, port), nil
}

// NewLoRa wraps an already-open module port. Used by tests and bench rigs.
func NewLoRa(cfg *config.LoRaConfig, clk clock.Clock, port io.ReadWriteCloser) *LoRa {
	if clk == nil {
		clk = clock.Wall{}
	}
	return &LoRa{cfg: cfg, clk: clk, port: port}
}

func (l *LoRa) Name() string { return "lora" }

func (l *LoRa) Available() bool { return l.port != nil }

// Send configures the radio on first use, then transmits the payload as one
// packet. Success is the module's "+OK" transmit ack.
func (l *LoRa) Send(payload []byte) error {
	if l.port == nil {
		return fmt.Errorf("radio not open")
	}

	if !l.configured {
		cmds := []string{
			fmt.Sprintf("AT+FREQ=%.0f", l.cfg.FrequencyHz),
			fmt.Sprintf("AT+BW=%.0f", l.cfg.BandwidthHz),
			fmt.Sprintf("AT+SF=%d", l.cfg.SpreadingFactor),
			fmt.Sprintf("AT+POWER=%d", l.cfg.TxPowerDBm),
		}
		for _, cmd := range cmds {
			if err := l.exchange(cmd, "+OK"); err != nil {
				return fmt.Errorf("radio config %q: %w", cmd, err)
			}
		}
		l.configured = true
	}

	cmd := fmt.Sprintf("AT+SEND=%d,%s", len(payload), payload)
	if err := l.exchange(cmd, "+OK"); err != nil {
		return fmt.Errorf("radio transmit: %w", err)
	}
	return nil
}

// Close releases the module port.
func (l *LoRa) Close() error {
	if l.port == nil {
		return nil
	}
	err := l.port.Close()
	l.port = nil
	return err
}

// exchange writes one command and polls for the expected token within the
// ack window.
func (l *LoRa) exchange(cmd, want string) error {
	if _, err := l.port.Write([]byte(cmd + "\r\n")); err != nil {
		return fmt.Errorf("write failed: %w", err)
	}

	var resp strings.Builder
	buf := make([]byte, 256)
	for i := 0; i < loraAckWindow; i++ {
		n, err := l.port.Read(buf)
		if n > 0 {
			resp.Write(buf[:n])
			if strings.Contains(resp.String(), want) {
				return nil
			}
		}
		if err != nil {
			break
		}
		l.clk.Sleep(loraPollInterval)
	}
	if strings.Contains(resp.String(), "+ERR") {
		return fmt.Errorf("module error: %s", strings.TrimSpace(resp.String()))
	}
	return fmt.Errorf("no ack (got %q)", strings.TrimSpace(resp.String()))
}
