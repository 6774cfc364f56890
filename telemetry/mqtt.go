package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	logger "github.com/sirupsen/logrus"
)

const defaultMQTTTimeout = 30 * time.Second

var (
	ErrPublishTimeout = errors.New("telemetry: mqtt publish timed out")
)

type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTSubmitter publishes each batch as a JSON array on <prefix>/<category>.
type MQTTSubmitter[T any] struct {
	client  publisher
	prefix  string
	timeout time.Duration
}

type MQTTConfig struct {
	Broker      string
	ClientID    string
	TopicPrefix string
	Timeout     time.Duration
}

// ConnectMQTT dials the broker. The returned client is shared by the
// submitters of every category.
func ConnectMQTT(cfg MQTTConfig) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(false).
		SetConnectTimeout(timeoutOrDefault(cfg.Timeout))
	c := mqtt.NewClient(opts)
	t := c.Connect()
	if !t.WaitTimeout(timeoutOrDefault(cfg.Timeout)) {
		return nil, fmt.Errorf("mqtt connect %v: %w", cfg.Broker, ErrPublishTimeout)
	}
	if err := t.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect %v: %w", cfg.Broker, err)
	}
	logger.Infof("Connected to broker [%v] as [%v]", cfg.Broker, cfg.ClientID)
	return c, nil
}

func NewMQTTSubmitter[T any](client publisher, prefix string, timeout time.Duration) *MQTTSubmitter[T] {
	return &MQTTSubmitter[T]{client: client, prefix: prefix, timeout: timeoutOrDefault(timeout)}
}

func (m *MQTTSubmitter[T]) Topic(category string) string {
	if m.prefix == "" {
		return category
	}
	return m.prefix + "/" + category
}

func (m *MQTTSubmitter[T]) Submit(ctx context.Context, category string, batch []T) error {
	body, err := json.Marshal(batch)
	if err != nil {
		return err
	}
	topic := m.Topic(category)
	t := m.client.Publish(topic, 1, false, body)

	timer := time.NewTimer(m.timeout)
	defer timer.Stop()
	select {
	case <-t.Done():
	case <-timer.C:
		return fmt.Errorf("%v: %w", topic, ErrPublishTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := t.Error(); err != nil {
		return fmt.Errorf("publish %v: %w", topic, err)
	}
	logger.Debugf("Published [%v] records to [%v]", len(batch), topic)
	return nil
}

func timeoutOrDefault(d time.Duration) time.Duration {
	if d <= 0 {
		return defaultMQTTTimeout
	}
	return d
}
