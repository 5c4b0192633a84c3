/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package eventbus

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/friendsincode/taskslot/internal/events"
	"github.com/friendsincode/taskslot/internal/telemetry"
)

// NATSConfig contains NATS connection configuration.
type NATSConfig struct {
	URL           string // empty keeps events in-process
	Subject       string // prefix; events go to <Subject>.<event type>
	MaxReconnects int
	ReconnectWait time.Duration
	Timeout       time.Duration
}

// DefaultNATSConfig returns default NATS configuration.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           "nats://localhost:4222",
		Subject:       "taskslot.events",
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
		Timeout:       5 * time.Second,
	}
}

// NATSBus delivers events locally and mirrors them to NATS so other
// instances and external consumers see them. Events received from other
// instances are re-published on the local bus.
type NATSBus struct {
	local   *events.Bus
	conn    *nats.Conn
	sub     *nats.Subscription
	subject string
	nodeID  string
	logger  zerolog.Logger
}

// NewNATSBus wraps local. With an empty URL it behaves like the local bus.
func NewNATSBus(cfg NATSConfig, local *events.Bus, logger zerolog.Logger) (*NATSBus, error) {
	nb := &NATSBus{
		local:   local,
		subject: strings.TrimSuffix(cfg.Subject, "."),
		nodeID:  generateNodeID(),
		logger:  logger.With().Str("component", "eventbus").Logger(),
	}
	if nb.subject == "" {
		nb.subject = DefaultNATSConfig().Subject
	}
	if cfg.URL == "" {
		nb.logger.Debug().Msg("NATS disabled, events stay in-process")
		return nb, nil
	}

	conn, err := nats.Connect(cfg.URL,
		nats.Name("taskslot-"+nb.nodeID),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.Timeout(cfg.Timeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			nb.logger.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			nb.logger.Info().Str("url", c.ConnectedUrl()).Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	nb.conn = conn

	sub, err := conn.Subscribe(nb.subject+".>", func(m *nats.Msg) {
		nb.handleRemote(m.Data)
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("subscribe %s: %w", nb.subject, err)
	}
	nb.sub = sub

	nb.logger.Info().Str("url", cfg.URL).Str("subject", nb.subject).Msg("NATS event forwarding enabled")
	return nb, nil
}

// Subscribe registers a local subscriber.
func (nb *NATSBus) Subscribe(eventType events.EventType) events.Subscriber {
	return nb.local.Subscribe(eventType)
}

// Unsubscribe removes a local subscriber.
func (nb *NATSBus) Unsubscribe(eventType events.EventType, sub events.Subscriber) {
	nb.local.Unsubscribe(eventType, sub)
}

// Publish delivers locally and, when connected, to NATS.
func (nb *NATSBus) Publish(eventType events.EventType, payload events.Payload) {
	nb.local.Publish(eventType, payload)
	telemetry.EventsPublishedTotal.WithLabelValues(string(eventType)).Inc()

	if nb.conn == nil {
		return
	}
	data, err := marshalMessage(eventType, payload, nb.nodeID)
	if err != nil {
		nb.logger.Warn().Err(err).Str("event", string(eventType)).Msg("encode event")
		return
	}
	if err := nb.conn.Publish(nb.subject+"."+string(eventType), data); err != nil {
		nb.logger.Warn().Err(err).Str("event", string(eventType)).Msg("publish event to NATS")
	}
}

// Close drains the subscription and closes the connection.
func (nb *NATSBus) Close() error {
	if nb.conn == nil {
		return nil
	}
	if err := nb.conn.Drain(); err != nil {
		nb.conn.Close()
		return fmt.Errorf("drain nats: %w", err)
	}
	return nil
}

func (nb *NATSBus) handleRemote(data []byte) {
	msg, err := unmarshalMessage(data)
	if err != nil {
		nb.logger.Debug().Err(err).Msg("ignoring malformed event")
		return
	}
	if msg.NodeID == nb.nodeID {
		return
	}
	nb.local.Publish(msg.EventType, msg.Payload)
}

// message is the wire form of an event.
type message struct {
	EventType events.EventType `json:"event_type"`
	Payload   events.Payload   `json:"payload"`
	Timestamp time.Time        `json:"timestamp"`
	NodeID    string           `json:"node_id"`
	MessageID string           `json:"message_id"`
}

func marshalMessage(eventType events.EventType, payload events.Payload, nodeID string) ([]byte, error) {
	return json.Marshal(message{
		EventType: eventType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
		NodeID:    nodeID,
		MessageID: uuid.NewString(),
	})
}

func unmarshalMessage(data []byte) (*message, error) {
	var msg message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("unmarshal nats message: %w", err)
	}
	if msg.EventType == "" {
		return nil, fmt.Errorf("nats message without event type")
	}
	return &msg, nil
}

func generateNodeID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "node"
	}
	return host + "-" + uuid.NewString()[:8]
}
