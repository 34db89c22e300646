// Package model contains all domain models and data structures for the mqpub engine.
package model

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// tablePrefix is prepended to every table name owned by the engine.
const tablePrefix = "mqpub_"

// Size limits for a single message. Oversized messages are rejected by the
// router before they reach either delivery path.
const (
	MaxTopicLen     = 1024
	MaxPayloadLen   = 256 * 1024
	MaxBrokerName   = 32
	DefaultSlotSize = 2048
)

// QoS flag encoding used when a message is packed into a single byte of
// delivery flags (wire-compatible with the outbox `flags` column).
const (
	FlagQoSMask byte = 0x03
	FlagRetain  byte = 0x04
)

// Message is the ephemeral unit of work flowing through the engine.
// It is never persisted as its own entity: it is either copied into a ring
// queue slot (hot path) or materialized as an OutboxRow (cold path).
type Message struct {
	Broker  string `json:"broker"`  // Destination broker name
	Topic   string `json:"topic"`   // MQTT topic
	Payload []byte `json:"payload"` // Raw payload bytes
	QoS     byte   `json:"qos"`     // Delivery quality level (0, 1, 2)
	Retain  bool   `json:"retain"`  // MQTT retain flag
}

// NewMessage creates a message bound for the named broker.
func NewMessage(broker, topic string, payload []byte, qos byte, retain bool) Message {
	return Message{
		Broker:  broker,
		Topic:   topic,
		Payload: payload,
		QoS:     qos,
		Retain:  retain,
	}
}

// Validate checks the message against the engine's size and range limits.
// Returns a validation error describing the first violated rule.
func (m Message) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Broker, validation.Required, validation.Length(1, MaxBrokerName)),
		validation.Field(&m.Topic, validation.Required, validation.Length(1, MaxTopicLen)),
		validation.Field(&m.Payload, validation.Length(0, MaxPayloadLen)),
		validation.Field(&m.QoS, validation.In(byte(0), byte(1), byte(2))),
	)
}

// Size returns the number of bytes the message occupies in a ring queue slot:
// topic plus payload. Broker name and flags live in the slot header and are
// bounded separately.
func (m Message) Size() int {
	return len(m.Topic) + len(m.Payload)
}

// Flags packs QoS and retain into a single delivery-flags byte.
func (m Message) Flags() byte {
	f := m.QoS & FlagQoSMask
	if m.Retain {
		f |= FlagRetain
	}
	return f
}

// FlagsQoS extracts the QoS level from a delivery-flags byte.
func FlagsQoS(flags byte) byte {
	return flags & FlagQoSMask
}

// FlagsRetain extracts the retain bit from a delivery-flags byte.
func FlagsRetain(flags byte) bool {
	return flags&FlagRetain != 0
}
