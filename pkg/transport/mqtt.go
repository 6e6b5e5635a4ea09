package transport

import (
	"fmt"
	"log"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTT publishes payloads to a broker topic. Used by the bench simulator in
// place of the field radios so backend integration can be tested against a
// local broker.
type MQTT struct {
	client mqtt.Client
	topic  string
}

// NewMQTT connects to the broker and returns the publishing transport.
func NewMQTT(brokerAddr, clientID, topic string) (*MQTT, error) {
	opts := mqtt.NewClientOptions().AddBroker(brokerAddr).SetClientID(clientID)
	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to broker %s: %w", brokerAddr, token.Error())
	}
	return &MQTT{client: client, topic: topic}, nil
}

func (m *MQTT) Name() string { return "mqtt" }

func (m *MQTT) Available() bool { return m.client.IsConnected() }

func (m *MQTT) Send(payload []byte) error {
	token := m.client.Publish(m.topic, 0, false, payload)
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish payload: %w", err)
	}
	return nil
}

// Close disconnects from the broker.
func (m *MQTT) Close() {
	m.client.Disconnect(250)
}

// Loopback accepts every payload and logs it. Stands in for the radios in
// mock runs.
type Loopback struct{}

func (Loopback) Name() string { return "loopback" }

func (Loopback) Available() bool { return true }

func (Loopback) Send(payload []byte) error {
	log.Printf("loopback payload: %s", payload)
	return nil
}
