// Herald - Real-Time Message Center and Notification Fan-Out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/herald

package channel

import (
	"context"
	"fmt"
	"strings"
	"time"

	natsgo "github.com/nats-io/nats.go"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/herald/internal/config"
	"github.com/tomtom215/herald/internal/logging"
	"github.com/tomtom215/herald/internal/metrics"
	"github.com/tomtom215/herald/internal/websocket"
)

// NATSLayer publishes group sends on per-group NATS subjects and bridges
// received payloads into the local hub. Every Herald process runs its own
// bridge subscription, so a send from any process reaches the members
// connected to all of them.
//
// Publishes are protected by a circuit breaker: when NATS is persistently
// unreachable the breaker opens and sends fail fast instead of piling up.
type NATSLayer struct {
	hub     *websocket.Hub
	conn    *natsgo.Conn
	prefix  string
	breaker *gobreaker.CircuitBreaker[interface{}]
	sub     *natsgo.Subscription
}

// NewNATSLayer connects to NATS and starts the bridge subscription.
func NewNATSLayer(cfg *config.NATSConfig, hub *websocket.Hub) (*NATSLayer, error) {
	opts := []natsgo.Option{
		natsgo.Name("herald"),
		natsgo.Timeout(cfg.ConnectTimeout),
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(cfg.MaxReconnects),
		natsgo.ReconnectWait(cfg.ReconnectWait),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				logging.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logging.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		natsgo.ErrorHandler(func(_ *natsgo.Conn, sub *natsgo.Subscription, err error) {
			subject := ""
			if sub != nil {
				subject = sub.Subject
			}
			logging.Error().Err(err).Str("subject", subject).Msg("NATS error")
		}),
	}

	conn, err := natsgo.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.URL, err)
	}

	breaker := gobreaker.NewCircuitBreaker[interface{}](gobreaker.Settings{
		Name:        "nats-group-send",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			open := 0.0
			if to == gobreaker.StateOpen {
				open = 1.0
			}
			metrics.ChannelBreakerState.Set(open)
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state change")
		},
	})

	l := &NATSLayer{
		hub:     hub,
		conn:    conn,
		prefix:  cfg.SubjectPrefix,
		breaker: breaker,
	}

	sub, err := conn.Subscribe(l.prefix+".>", l.bridge)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to subscribe to %s.>: %w", l.prefix, err)
	}
	l.sub = sub

	logging.Info().
		Str("url", conn.ConnectedUrl()).
		Str("prefix", l.prefix).
		Msg("NATS channel layer connected")

	return l, nil
}

// bridge forwards a received group payload into the local hub.
func (l *NATSLayer) bridge(msg *natsgo.Msg) {
	group := l.groupFromSubject(msg.Subject)
	if group == "" {
		logging.Debug().Str("subject", msg.Subject).Msg("ignoring message with unexpected subject")
		return
	}
	l.hub.SendToGroup(group, msg.Data)
}

// GroupAdd joins a session to a group in the local hub. Membership is not
// replicated; each process only tracks its own sessions.
func (l *NATSLayer) GroupAdd(group string, s *websocket.Session) error {
	return l.hub.Join(group, s)
}

// GroupDiscard removes a session from a group in the local hub.
func (l *NATSLayer) GroupDiscard(group string, s *websocket.Session) {
	l.hub.Leave(group, s)
}

// GroupSend publishes the payload on the group's subject. The local hub
// receives it through the bridge subscription like every other process.
func (l *NATSLayer) GroupSend(_ context.Context, group string, payload []byte) error {
	_, err := l.breaker.Execute(func() (interface{}, error) {
		return nil, l.conn.Publish(l.subjectForGroup(group), payload)
	})
	metrics.RecordChannelPublish("nats", err)
	if err != nil {
		return fmt.Errorf("failed to publish to group %s: %w", group, err)
	}
	return nil
}

// RunWithContext keeps the bridge alive until the context is canceled,
// then drains the subscription. Designed for suture supervision.
func (l *NATSLayer) RunWithContext(ctx context.Context) error {
	<-ctx.Done()
	if err := l.sub.Drain(); err != nil {
		logging.Warn().Err(err).Msg("failed to drain NATS subscription")
	}
	return ctx.Err()
}

// Close drains and closes the NATS connection.
func (l *NATSLayer) Close() error {
	if l.conn == nil {
		return nil
	}
	if err := l.conn.Drain(); err != nil {
		l.conn.Close()
		return fmt.Errorf("failed to drain NATS connection: %w", err)
	}
	return nil
}

// subjectForGroup maps a group name onto the layer's subject space.
func (l *NATSLayer) subjectForGroup(group string) string {
	return l.prefix + "." + group
}

// groupFromSubject inverts subjectForGroup. Returns "" for foreign subjects.
func (l *NATSLayer) groupFromSubject(subject string) string {
	group, ok := strings.CutPrefix(subject, l.prefix+".")
	if !ok {
		return ""
	}
	return group
}
