package mqtt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/couchcryptid/metar-etl-service/internal/config"
	"github.com/couchcryptid/metar-etl-service/internal/metar"
)

// qos 1: at least once delivery.
const qos = byte(1)

const publishTimeout = 5 * time.Second

// Publisher publishes each decoded observation as a retained message on
// {prefix}/{station}, so a new subscriber immediately receives the latest
// report for every station. It implements pipeline.BatchLoader.
type Publisher struct {
	client    paho.Client
	prefix    string
	logger    *slog.Logger
	connected atomic.Bool
}

// NewPublisher creates a publisher for the configured broker. Call Connect
// before publishing.
func NewPublisher(cfg *config.Config, logger *slog.Logger) *Publisher {
	p := &Publisher{prefix: cfg.MQTTTopicPrefix, logger: logger}

	opts := paho.NewClientOptions()
	opts.AddBroker(brokerURL(cfg.MQTTBroker))
	opts.SetClientID(cfg.MQTTClientID)
	opts.SetCleanSession(true)

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)

	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	opts.SetOnConnectHandler(func(_ paho.Client) {
		p.connected.Store(true)
		logger.Info("mqtt connected", "broker", cfg.MQTTBroker)
	})
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		p.connected.Store(false)
		logger.Warn("mqtt connection lost", "error", err)
	})

	p.client = paho.NewClient(opts)
	return p
}

// newPublisher wires an existing client, used by tests.
func newPublisher(client paho.Client, prefix string, logger *slog.Logger) *Publisher {
	p := &Publisher{client: client, prefix: prefix, logger: logger}
	p.connected.Store(client.IsConnected())
	return p
}

// brokerURL accepts host:port or a full tcp://, ssl:// or ws:// URL.
func brokerURL(broker string) string {
	if strings.Contains(broker, "://") {
		return broker
	}
	return "tcp://" + broker
}

// Name identifies the sink in logs and metrics.
func (p *Publisher) Name() string { return "mqtt" }

// Connect waits for the broker connection or ctx cancellation.
func (p *Publisher) Connect(ctx context.Context) error {
	if p.client.IsConnected() {
		return nil
	}

	token := p.client.Connect()
	if err := waitToken(ctx, token); err != nil {
		p.client.Disconnect(0)
		return fmt.Errorf("mqtt connect: %w", err)
	}
	p.connected.Store(true)
	return nil
}

// LoadBatch publishes every event and waits for the broker acknowledgements.
func (p *Publisher) LoadBatch(ctx context.Context, events []metar.OutputEvent) error {
	if len(events) == 0 {
		return nil
	}
	if !p.connected.Load() {
		return errors.New("mqtt client not connected")
	}

	tokens := make([]paho.Token, len(events))
	for i, ev := range events {
		tokens[i] = p.client.Publish(p.Topic(string(ev.Key)), qos, true, ev.Value)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	var errs []error
	for i, token := range tokens {
		if err := waitToken(ctx, token); err != nil {
			errs = append(errs, fmt.Errorf("publish %s: %w", events[i].Key, err))
		}
	}
	return errors.Join(errs...)
}

// Topic returns the retained topic for a station.
func (p *Publisher) Topic(station string) string {
	if p.prefix == "" {
		return station
	}
	return p.prefix + "/" + station
}

// Close disconnects, allowing 250ms for in-flight work.
func (p *Publisher) Close() error {
	p.client.Disconnect(250)
	p.connected.Store(false)
	p.logger.Info("mqtt publisher disconnected")
	return nil
}

// waitToken blocks until the token completes or ctx is done.
func waitToken(ctx context.Context, token paho.Token) error {
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}
