// Package mqtt publishes committed reservations to an MQTT broker so site
// controllers can act on confirmed flexibility without polling the API.
package mqtt

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/flexcompute/flexd/core/protocol"
	"github.com/flexcompute/flexd/infra/logger"
)

// Config defines the connection parameters for the Paho MQTT client.
type Config struct {
	Enabled     bool   `json:"enabled" yaml:"enabled"`
	Broker      string `json:"broker" yaml:"broker"`
	ClientID    string `json:"client_id" yaml:"client_id"`
	Username    string `json:"username" yaml:"username"`
	Password    string `json:"password" yaml:"password"`
	TopicPrefix string `json:"topic_prefix" yaml:"topic_prefix"`
	QoS         byte   `json:"qos" yaml:"qos"`
}

// SetDefaults fills unset fields with defaults.
func (c *Config) SetDefaults() {
	if c.ClientID == "" {
		c.ClientID = "flexd"
	}
	if c.TopicPrefix == "" {
		c.TopicPrefix = "flexd/reservations"
	}
}

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// Publisher implements protocol.ReservationPublisher over Paho MQTT.
type Publisher struct {
	cli    pahoClient
	prefix string
	qos    byte
	log    logger.Logger
}

// NewPublisher connects to the broker and returns a Publisher.
func NewPublisher(cfg Config) (*Publisher, error) {
	cfg.SetDefaults()
	log := logger.New("mqtt-publisher")
	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetConnectTimeout(5 * time.Second).
		SetAutoReconnect(true)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}

	cli := newMQTTClient(opts)
	if token := cli.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	return &Publisher{cli: cli, prefix: cfg.TopicPrefix, qos: cfg.QoS, log: log}, nil
}

// PublishReservation publishes the reservation JSON under
// <prefix>/<transaction_id>.
func (p *Publisher) PublishReservation(res protocol.Reservation) error {
	payload, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshal reservation: %w", err)
	}
	topic := p.prefix + "/" + res.TransactionID
	token := p.cli.Publish(topic, p.qos, false, payload)
	token.Wait()
	if err := token.Error(); err != nil {
		return err
	}
	p.log.Infof("reservation %s published to %s", res.TransactionID, topic)
	return nil
}

// Close disconnects the client.
func (p *Publisher) Close() {
	if p.cli.IsConnected() {
		p.cli.Disconnect(250)
	}
}

// MockPublisher records reservations for tests.
type MockPublisher struct {
	mu           sync.Mutex
	Reservations []protocol.Reservation
	Fail         bool
}

// NewMockPublisher creates a new MockPublisher.
func NewMockPublisher() *MockPublisher { return &MockPublisher{} }

// PublishReservation records the reservation or fails when configured to.
func (m *MockPublisher) PublishReservation(res protocol.Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail {
		return fmt.Errorf("publish failed")
	}
	m.Reservations = append(m.Reservations, res)
	return nil
}

// Published returns a copy of the recorded reservations.
func (m *MockPublisher) Published() []protocol.Reservation {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]protocol.Reservation, len(m.Reservations))
	copy(out, m.Reservations)
	return out
}
