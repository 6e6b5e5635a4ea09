package cycle

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taejoonest/waterxchange/pkg/board"
	"github.com/taejoonest/waterxchange/pkg/clock"
	"github.com/taejoonest/waterxchange/pkg/config"
	"github.com/taejoonest/waterxchange/pkg/telemetry"
	"github.com/taejoonest/waterxchange/pkg/transport"
)

type stubProbe struct {
	reading telemetry.FullReading
}

func (s stubProbe) Measure() telemetry.FullReading { return s.reading }

type stubUplink struct {
	err    error
	sends  int
	onSend func()
}

func (s *stubUplink) Name() string    { return "stub" }
func (s *stubUplink) Available() bool { return true }
func (s *stubUplink) Send(payload []byte) error {
	s.sends++
	if s.onSend != nil {
		s.onSend()
	}
	return s.err
}

type brokenStore struct {
	loadErr error
	saveErr error
	state   DeviceState
}

func (b *brokenStore) Load() (DeviceState, error) { return b.state, b.loadErr }
func (b *brokenStore) Save(st DeviceState) error {
	if b.saveErr != nil {
		return b.saveErr
	}
	b.state = st
	return nil
}

func newTestController(store StateStore, uplink transport.Transport) *Controller {
	cfg := config.Default()
	clk := clock.NewSim(time.Unix(1700000000, 0))
	brd := board.NewMock(cfg, clk)
	return New(cfg, brd, stubProbe{}, transport.NewManager(uplink, nil), store, clk)
}

func TestRunCycle_BootCountAdvancesAcrossSleeps(t *testing.T) {
	store := &MemStore{}
	uplink := &stubUplink{}
	ctrl := newTestController(store, uplink)

	for want := uint32(1); want <= 3; want++ {
		report := ctrl.RunCycle()
		assert.Equal(t, want, report.State.BootCount)
		assert.True(t, report.Sent)
	}
	assert.Equal(t, uint32(3), store.State.BootCount, "count persisted before each sleep")
	assert.Equal(t, uint32(0), store.State.TxFailCount)
	assert.Equal(t, 3, uplink.sends)
}

func TestRunCycle_TxFailCounter(t *testing.T) {
	store := &MemStore{}
	uplink := &stubUplink{err: errors.New("no ack")}
	ctrl := newTestController(store, uplink)

	for want := uint32(1); want <= 2; want++ {
		report := ctrl.RunCycle()
		assert.False(t, report.Sent)
		assert.Equal(t, want, report.State.TxFailCount, "one increment per fully failed cycle")
	}

	// Link recovers: the counter resets on the first success.
	uplink.err = nil
	report := ctrl.RunCycle()
	assert.True(t, report.Sent)
	assert.Equal(t, uint32(0), report.State.TxFailCount)
	assert.Equal(t, uint32(3), report.State.BootCount)
}

func TestRunCycle_PayloadCarriesIdentity(t *testing.T) {
	ctrl := newTestController(&MemStore{}, &stubUplink{})

	report := ctrl.RunCycle()

	var m map[string]any
	require.NoError(t, json.Unmarshal(report.Payload, &m))
	assert.Equal(t, "WXF-001", m["device_id"])
	assert.Equal(t, config.TypeFlow, m["device_type"])
	assert.Equal(t, float64(1), m["boot_count"])
}

func TestRunCycle_CorruptStoreStartsFromZero(t *testing.T) {
	store := &brokenStore{loadErr: errors.New("parse error")}
	ctrl := newTestController(store, &stubUplink{})

	report := ctrl.RunCycle()

	assert.Equal(t, uint32(1), report.State.BootCount, "corrupt counters degrade to zero, never block the cycle")
	assert.True(t, report.Sent)
}

func TestRunCycle_SaveFailureStillCompletes(t *testing.T) {
	store := &brokenStore{saveErr: errors.New("flash write failed")}
	ctrl := newTestController(store, &stubUplink{})

	report := ctrl.RunCycle()

	assert.True(t, report.Sent)
	assert.Equal(t, uint32(1), report.State.BootCount)
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	store := &MemStore{}
	ctx, cancel := context.WithCancel(context.Background())
	uplink := &stubUplink{}
	uplink.onSend = func() {
		if uplink.sends == 3 {
			cancel()
		}
	}
	ctrl := newTestController(store, uplink)

	ctrl.Run(ctx)

	assert.Equal(t, 3, uplink.sends)
	assert.Equal(t, uint32(3), store.State.BootCount)
}
