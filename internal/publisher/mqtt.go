package publisher

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"potrosnja/internal/core"
)

const (
	defaultTopicPrefix = "potrosnja"
	publishTimeout     = 5 * time.Second
	qos                = 1
)

// published is the set of fields pushed per period.
var published = []core.Field{
	core.FieldHouseholdConsumption,
	core.FieldCarConsumption,
	core.FieldBojlerConsumption,
	core.FieldTotalConsumption,
	core.FieldHouseholdState,
	core.FieldCarState,
}

// Config holds MQTT broker settings.
type Config struct {
	Broker      string // host:port
	ClientID    string
	TopicPrefix string
	Username    string
	Password    string
}

// MQTTPublisher pushes saved periods to an MQTT broker as retained messages,
// one topic per field: <prefix>/<year>/<month>/<field>.
type MQTTPublisher struct {
	client      mqtt.Client
	topicPrefix string
}

// New connects to the broker.
func New(cfg Config) (*MQTTPublisher, error) {
	if cfg.Broker == "" {
		return nil, errors.New("MQTT broker address is required when enabled")
	}
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "potrosnja"
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(brokerURL(cfg.Broker))
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectTimeout(10 * time.Second)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(15*time.Second) {
		return nil, fmt.Errorf("connecting to MQTT broker %s: timed out", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connecting to MQTT broker: %w", err)
	}
	return newWithClient(client, cfg.TopicPrefix), nil
}

func newWithClient(client mqtt.Client, prefix string) *MQTTPublisher {
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		prefix = defaultTopicPrefix
	}
	return &MQTTPublisher{client: client, topicPrefix: prefix}
}

// Topic returns the topic of one field of one period.
func (p *MQTTPublisher) Topic(period core.Period, field core.Field) string {
	return fmt.Sprintf("%s/%d/%02d/%s", p.topicPrefix, period.Year, period.Month, field)
}

// RecordSaved publishes the record's values.
func (p *MQTTPublisher) RecordSaved(ctx context.Context, r core.Record) error {
	var errs []error
	for _, f := range published {
		payload := strconv.FormatFloat(f.Of(r), 'f', -1, 64)
		if err := p.publish(ctx, p.Topic(r.Period(), f), payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RecordDeleted clears the retained messages of the record's period.
func (p *MQTTPublisher) RecordDeleted(ctx context.Context, r core.Record) error {
	var errs []error
	for _, f := range published {
		// an empty retained payload removes the retained message
		if err := p.publish(ctx, p.Topic(r.Period(), f), ""); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (p *MQTTPublisher) publish(ctx context.Context, topic, payload string) error {
	token := p.client.Publish(topic, qos, true, payload)

	timeout := publishTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if d := time.Until(deadline); d < timeout {
			timeout = d
		}
	}
	select {
	case <-token.Done():
	case <-ctx.Done():
		return fmt.Errorf("publish %s: %w", topic, ctx.Err())
	case <-time.After(timeout):
		return fmt.Errorf("publish %s: timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Close disconnects from the MQTT broker
func (p *MQTTPublisher) Close() {
	if p.client != nil && p.client.IsConnected() {
		p.client.Disconnect(250)
	}
}

func brokerURL(broker string) string {
	if strings.Contains(broker, "://") {
		return broker
	}
	return "tcp://" + broker
}
