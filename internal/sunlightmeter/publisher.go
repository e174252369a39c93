package sunlightmeter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"
)

// Publisher forwards recorded readings to an external consumer.
type Publisher interface {
	Publish(ctx context.Context, result LuxResults) error
	Close()
}

type MQTTOptions struct {
	Broker   string
	Port     int
	ClientID string
	Topic    string
}

// MQTTPublisher publishes each reading as JSON on a single topic.
type MQTTPublisher struct {
	client mqtt.Client
	topic  string
	log    *logrus.Logger
}

func NewMQTTPublisher(o MQTTOptions, log *logrus.Logger) *MQTTPublisher {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", o.Broker, o.Port))
	opts.SetClientID(o.ClientID)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)
	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		log.WithField("broker", o.Broker).Info("mqtt connected")
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.WithError(err).Warn("mqtt connection lost")
	})

	return &MQTTPublisher{
		client: mqtt.NewClient(opts),
		topic:  o.Topic,
		log:    log,
	}
}

// Connect waits for the initial broker connection, respecting ctx.
func (p *MQTTPublisher) Connect(ctx context.Context) error {
	token := p.client.Connect()
	const poll = 200 * time.Millisecond
	for {
		if token.WaitTimeout(poll) {
			if err := token.Error(); err != nil {
				return fmt.Errorf("mqtt connect: %w", err)
			}
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
}

func (p *MQTTPublisher) Publish(ctx context.Context, result LuxResults) error {
	if !p.client.IsConnected() {
		return fmt.Errorf("mqtt client not connected")
	}
	data, err := encodeResult(result)
	if err != nil {
		return err
	}

	token := p.client.Publish(p.topic, 1, false, data)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(5 * time.Second):
		return fmt.Errorf("publish timeout for topic %s", p.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish reading: %w", err)
	}
	p.log.WithField("topic", p.topic).Debug("published reading")
	return nil
}

func (p *MQTTPublisher) Close() {
	p.client.Disconnect(250)
}

func encodeResult(result LuxResults) ([]byte, error) {
	if result.Timestamp.IsZero() {
		result.Timestamp = time.Now().UTC()
	}
	data, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("marshal reading: %w", err)
	}
	return data, nil
}
