// Package transport carries the encoded payload uplink. Two independent,
// failure-prone paths exist: the LoRa radio (primary) and the cellular modem
// (secondary). Each attempt runs under hard timeouts and is tried at most
// once per wake cycle.
package transport

import "log"

// Transport is one uplink path.
type Transport interface {
	Name() string
	// Available reports whether the path's hardware responded at boot.
	Available() bool
	// Send transmits the payload once. Implementations must bound their
	// total duration; a nil error means the path-level acknowledgment was
	// seen, not end-to-end delivery.
	Send(payload []byte) error
}

// Manager applies the failover policy: primary first, then secondary, no
// retries within a cycle. Every step's timeout is unconditional so the wake
// duration stays bounded even under total transport failure.
type Manager struct {
	primary   Transport
	secondary Transport
}

// NewManager creates a manager with the given primary and secondary paths.
// Either may be nil.
func NewManager(primary, secondary Transport) *Manager {
	return &Manager{primary: primary, secondary: secondary}
}

// Attempt tries each path once in order and reports whether any succeeded.
func (m *Manager) Attempt(payload []byte) bool {
	for _, t := range []Transport{m.primary, m.secondary} {
		if t == nil {
			continue
		}
		if !t.Available() {
			log.Printf("transport %s unavailable, skipping", t.Name())
			continue
		}
		if err := t.Send(payload); err != nil {
			log.Printf("transport %s failed: %v", t.Name(), err)
			continue
		}
		log.Printf("transport %s: payload sent (%d bytes)", t.Name(), len(payload))
		return true
	}
	return false
}
