// Package ingest provides alternative inbound paths for sensor readings.
// Every source normalizes through the same validation as the HTTP ingest
// endpoint and feeds the store and hub identically.
package ingest

import (
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/blessed-py/traffic-management/internal/event"
	"github.com/blessed-py/traffic-management/internal/metrics"
	"github.com/blessed-py/traffic-management/internal/store"
	"github.com/blessed-py/traffic-management/internal/ws"
)

const connectTimeout = 10 * time.Second

// MQTTSource subscribes to a broker topic carrying JSON sensor readings.
// Field-site bridges publish over MQTT where HTTP egress is not available.
type MQTTSource struct {
	store   *store.MemoryStore
	hub     *ws.Hub
	metrics *metrics.Metrics

	client mqtt.Client
	topic  string
}

func NewMQTTSource(st *store.MemoryStore, hub *ws.Hub, m *metrics.Metrics, brokerURL, clientID, topic string) *MQTTSource {
	src := &MQTTSource{store: st, hub: hub, metrics: m, topic: topic}

	opts := mqtt.NewClientOptions().
		AddBroker(brokerURL).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetOnConnectHandler(func(c mqtt.Client) {
			if token := c.Subscribe(topic, 1, src.handleMessage); token.Wait() && token.Error() != nil {
				log.Printf("ingest: mqtt subscribe %s: %v", topic, token.Error())
			}
		})

	src.client = mqtt.NewClient(opts)
	return src
}

// Start connects to the broker; the subscription is (re)established by the
// connect handler on every reconnect.
func (s *MQTTSource) Start() error {
	token := s.client.Connect()
	if ok := token.WaitTimeout(connectTimeout); !ok {
		return fmt.Errorf("mqtt connect timed out after %s", connectTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	log.Printf("ingest: mqtt connected, subscribed to %s", s.topic)
	return nil
}

// Stop disconnects from the broker.
func (s *MQTTSource) Stop() {
	s.client.Disconnect(250)
}

// handleMessage runs the normal ingest path on one published reading. A bad
// payload is counted and dropped; it never stops the subscription.
func (s *MQTTSource) handleMessage(_ mqtt.Client, msg mqtt.Message) {
	ev, err := event.ParseReading(msg.Payload())
	if err != nil {
		s.metrics.ValidationFailures.Inc()
		log.Printf("ingest: mqtt reading rejected: %v", err)
		return
	}

	stored := s.store.Add(ev)
	s.metrics.EventsIngested.WithLabelValues("mqtt").Inc()
	s.hub.NotifyEvent(stored)
}
