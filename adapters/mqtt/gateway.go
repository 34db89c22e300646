// Package mqtt provides the paho-based BrokerGateway implementation.
//
// Each configured broker gets its own MQTT client with auto-reconnect;
// connection lifecycle callbacks keep per-broker runtime state current, and
// the engine reads that state as snapshots. The gateway owns all broker
// runtime state: nothing else mutates it.
package mqtt

import (
	"context"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/coregx/mqpub"
	"github.com/coregx/mqpub/model"
)

// DefaultPublishTimeout bounds how long one publish waits for broker
// acknowledgement before it is reported as failed.
const DefaultPublishTimeout = 5 * time.Second

// brokerConn couples one broker's client with its runtime state.
type brokerConn struct {
	config model.BrokerConfig
	client paho.Client

	mu     sync.Mutex
	status model.BrokerStatus
}

// Gateway implements mqpub.BrokerGateway over eclipse/paho MQTT clients.
type Gateway struct {
	brokers        map[string]*brokerConn
	order          []string
	logger         mqpub.Logger
	publishTimeout time.Duration
	clientIDPrefix string
}

// GatewayOption configures a Gateway.
type GatewayOption func(*Gateway)

// WithPublishTimeout sets the per-publish acknowledgement timeout.
func WithPublishTimeout(d time.Duration) GatewayOption {
	return func(g *Gateway) {
		if d > 0 {
			g.publishTimeout = d
		}
	}
}

// WithClientIDPrefix sets the MQTT client ID prefix (default "mqpub-").
func WithClientIDPrefix(prefix string) GatewayOption {
	return func(g *Gateway) {
		if prefix != "" {
			g.clientIDPrefix = prefix
		}
	}
}

// NewGateway creates a gateway for the given broker configurations and
// starts connecting. Connection establishment is asynchronous: brokers come
// up in state "connecting" and the engine observes the transition through
// Connected/AllConnected. Inactive configurations are skipped.
func NewGateway(configs []model.BrokerConfig, logger mqpub.Logger, opts ...GatewayOption) (*Gateway, error) {
	if logger == nil {
		return nil, mqpub.NewError(mqpub.ErrCodeConfiguration, "logger cannot be nil")
	}

	g := &Gateway{
		brokers:        make(map[string]*brokerConn),
		logger:         logger,
		publishTimeout: DefaultPublishTimeout,
		clientIDPrefix: "mqpub-",
	}
	for _, opt := range opts {
		opt(g)
	}

	for _, cfg := range configs {
		if !cfg.Active {
			continue
		}
		if err := cfg.Validate(); err != nil {
			return nil, mqpub.NewErrorWithCause(mqpub.ErrCodeConfiguration,
				fmt.Sprintf("invalid broker configuration: %s", cfg.Name), err)
		}
		if _, ok := g.brokers[cfg.Name]; ok {
			return nil, mqpub.NewError(mqpub.ErrCodeConfiguration,
				fmt.Sprintf("duplicate broker name: %s", cfg.Name))
		}
		if len(g.brokers) >= model.MaxBrokers {
			return nil, mqpub.NewError(mqpub.ErrCodeConfiguration,
				fmt.Sprintf("too many brokers (max %d)", model.MaxBrokers))
		}

		conn, err := g.newConn(cfg)
		if err != nil {
			return nil, err
		}
		g.brokers[cfg.Name] = conn
		g.order = append(g.order, cfg.Name)
	}

	if len(g.brokers) == 0 {
		return nil, mqpub.NewError(mqpub.ErrCodeConfiguration, "no active brokers configured")
	}

	return g, nil
}

// newConn builds a paho client for one broker and starts its connection.
func (g *Gateway) newConn(cfg model.BrokerConfig) (*brokerConn, error) {
	conn := &brokerConn{
		config: cfg,
		status: model.BrokerStatus{
			Name:  cfg.Name,
			State: model.ConnConnecting,
		},
	}

	opts := paho.NewClientOptions().
		AddBroker(cfg.URI()).
		SetClientID(g.clientIDPrefix + cfg.Name).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectRetry(true)

	if cfg.UseTLS {
		tlsConfig, err := newTLSConfig(cfg.CACertPath, cfg.ClientCertPath, cfg.ClientKeyPath)
		if err != nil {
			return nil, mqpub.NewErrorWithCause(mqpub.ErrCodeConfiguration,
				fmt.Sprintf("failed to create TLS config for broker %s", cfg.Name), err)
		}
		opts.SetTLSConfig(tlsConfig)
	}

	opts.SetOnConnectHandler(func(_ paho.Client) {
		conn.setConnected()
		g.logger.Infof("Connected to broker %s (%s)", cfg.Name, cfg.URI())
	})
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		conn.setDisconnected(err)
		g.logger.Warnf("Lost connection to broker %s: %v", cfg.Name, err)
	})

	conn.client = paho.NewClient(opts)

	// Asynchronous connect; SetConnectRetry keeps trying in the background
	// and the OnConnect handler flips the state when it succeeds.
	conn.client.Connect()

	return conn, nil
}

// Close disconnects all brokers, allowing in-flight work to finish.
func (g *Gateway) Close() {
	for _, name := range g.order {
		conn := g.brokers[name]
		conn.client.Disconnect(250)
		conn.setDisconnected(nil)
	}
}

// Brokers returns the names of all configured active brokers.
func (g *Gateway) Brokers() []string {
	names := make([]string, len(g.order))
	copy(names, g.order)
	return names
}

// Knows reports whether the named broker is configured.
func (g *Gateway) Knows(broker string) bool {
	_, ok := g.brokers[broker]
	return ok
}

// Connected reports whether the named broker is currently connected.
func (g *Gateway) Connected(broker string) bool {
	conn, ok := g.brokers[broker]
	if !ok {
		return false
	}
	conn.mu.Lock()
	defer conn.mu.Unlock()
	return conn.status.IsConnected()
}

// AllConnected reports whether every configured broker is connected.
func (g *Gateway) AllConnected() bool {
	for _, name := range g.order {
		if !g.Connected(name) {
			return false
		}
	}
	return true
}

// Publish delivers a message to its destination broker and waits up to the
// publish timeout for acknowledgement. Updates the broker's sent/failed
// counters and last error.
func (g *Gateway) Publish(ctx context.Context, m model.Message) error {
	conn, ok := g.brokers[m.Broker]
	if !ok {
		return mqpub.NewError(mqpub.ErrCodeUnknownBroker, fmt.Sprintf("broker not configured: %s", m.Broker))
	}

	timeout := g.publishTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}

	token := conn.client.Publish(m.Topic, m.QoS, m.Retain, m.Payload)
	if !token.WaitTimeout(timeout) {
		err := fmt.Errorf("publish to %s timed out after %v", m.Broker, timeout)
		conn.noteFailed(err)
		return mqpub.NewErrorWithCause(mqpub.ErrCodeDelivery, "publish timeout", err)
	}
	if err := token.Error(); err != nil {
		conn.noteFailed(err)
		return mqpub.NewErrorWithCause(mqpub.ErrCodeDelivery, "publish failed", err)
	}

	conn.noteSent()
	return nil
}

// Status returns a snapshot of one broker's runtime state.
func (g *Gateway) Status(broker string) (model.BrokerStatus, bool) {
	conn, ok := g.brokers[broker]
	if !ok {
		return model.BrokerStatus{}, false
	}
	conn.mu.Lock()
	defer conn.mu.Unlock()
	return conn.status, true
}

// Statuses returns snapshots for all configured brokers.
func (g *Gateway) Statuses() []model.BrokerStatus {
	statuses := make([]model.BrokerStatus, 0, len(g.order))
	for _, name := range g.order {
		if s, ok := g.Status(name); ok {
			statuses = append(statuses, s)
		}
	}
	return statuses
}

// NoteDeadLettered increments the broker's dead-lettered counter.
func (g *Gateway) NoteDeadLettered(broker string) {
	conn, ok := g.brokers[broker]
	if !ok {
		return
	}
	conn.mu.Lock()
	defer conn.mu.Unlock()
	conn.status.DeadLettered++
}

func (c *brokerConn) setConnected() {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status.State = model.ConnConnected
	c.status.ConnectedSince = &now
	c.status.DisconnectedSince = nil
	c.status.LastError = ""
}

func (c *brokerConn) setDisconnected(err error) {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.status.State = model.ConnError
		c.status.LastError = err.Error()
	} else {
		c.status.State = model.ConnDisconnected
	}
	c.status.ConnectedSince = nil
	c.status.DisconnectedSince = &now
}

func (c *brokerConn) noteSent() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status.Sent++
}

func (c *brokerConn) noteFailed(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status.Failed++
	if err != nil {
		c.status.LastError = err.Error()
	}
}
