package model

import (
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// MaxBrokers bounds the number of configured destination brokers.
const MaxBrokers = 8

// ConnState represents a broker connection's lifecycle state.
type ConnState string

const (
	// ConnDisconnected indicates no connection to the broker.
	ConnDisconnected ConnState = "disconnected"

	// ConnConnecting indicates a connection attempt is in progress.
	ConnConnecting ConnState = "connecting"

	// ConnConnected indicates an established, usable connection.
	ConnConnected ConnState = "connected"

	// ConnError indicates the last connection attempt failed.
	ConnError ConnState = "error"
)

// BrokerConfig describes a destination MQTT broker.
// Only active brokers participate in connectivity evaluation and delivery.
type BrokerConfig struct {
	Name           string `json:"name" yaml:"name"`
	Host           string `json:"host" yaml:"host"`
	Port           int    `json:"port" yaml:"port"`
	Username       string `json:"username" yaml:"username"`
	Password       string `json:"password" yaml:"password"`
	UseTLS         bool   `json:"useTLS" yaml:"use_tls"`
	CACertPath     string `json:"caCertPath" yaml:"ca_cert"`
	ClientCertPath string `json:"clientCertPath" yaml:"client_cert"`
	ClientKeyPath  string `json:"clientKeyPath" yaml:"client_key"`
	Active         bool   `json:"active" yaml:"active"`
}

// Validate checks the broker configuration.
func (c BrokerConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Name, validation.Required, validation.Length(1, MaxBrokerName)),
		validation.Field(&c.Host, validation.Required),
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// URI returns the paho broker URI for this configuration.
func (c BrokerConfig) URI() string {
	scheme := "tcp"
	if c.UseTLS {
		scheme = "ssl"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, c.Host, c.Port)
}

// BrokerStatus is the runtime state of one broker connection.
// Mutated only by the component owning the connection (the gateway);
// everything else reads snapshots.
type BrokerStatus struct {
	Name              string     `json:"name"`
	State             ConnState  `json:"state"`
	Sent              uint64     `json:"sent"`
	Failed            uint64     `json:"failed"`
	DeadLettered      uint64     `json:"deadLettered"`
	ConnectedSince    *time.Time `json:"connectedSince,omitempty"`
	DisconnectedSince *time.Time `json:"disconnectedSince,omitempty"`
	LastError         string     `json:"lastError,omitempty"`
}

// IsConnected reports whether the broker is currently usable for delivery.
func (s BrokerStatus) IsConnected() bool {
	return s.State == ConnConnected
}
