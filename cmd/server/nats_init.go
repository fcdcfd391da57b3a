// Herald - Real-Time Message Center and Notification Fan-Out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/herald

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/herald/internal/channel"
	"github.com/tomtom215/herald/internal/config"
	"github.com/tomtom215/herald/internal/logging"
	"github.com/tomtom215/herald/internal/supervisor"
	"github.com/tomtom215/herald/internal/supervisor/services"
	ws "github.com/tomtom215/herald/internal/websocket"
)

// initChannelLayer selects the channel layer for this deployment. With NATS
// disabled, group sends stay in-process. With NATS enabled, an optional
// embedded server is started first, then the NATS layer connects and its
// bridge joins the messaging layer of the supervision tree.
//
// The returned cleanup stops whatever was started, in reverse order.
func initChannelLayer(cfg *config.Config, hub *ws.Hub, tree *supervisor.Tree) (channel.Layer, func(), error) {
	if !cfg.NATS.Enabled {
		logging.Info().Msg("NATS disabled, running single-process fan-out")
		return channel.NewLocalLayer(hub), func() {}, nil
	}

	var embedded *channel.EmbeddedServer
	natsCfg := cfg.NATS

	if cfg.NATS.EmbeddedServer {
		srv, err := channel.NewEmbeddedServer(&cfg.NATS)
		if err != nil {
			return nil, nil, fmt.Errorf("embedded NATS server: %w", err)
		}
		embedded = srv
		natsCfg.URL = srv.ClientURL()
		logging.Info().Str("url", natsCfg.URL).Msg("Embedded NATS server started")
	}

	layer, err := channel.NewNATSLayer(&natsCfg, hub)
	if err != nil {
		if embedded != nil {
			_ = embedded.Shutdown(context.Background())
		}
		return nil, nil, fmt.Errorf("NATS channel layer: %w", err)
	}

	tree.AddMessagingService(services.NewNATSBridgeService(layer))

	cleanup := func() {
		if err := layer.Close(); err != nil {
			logging.Warn().Err(err).Msg("Error closing NATS channel layer")
		}
		if embedded != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := embedded.Shutdown(shutdownCtx); err != nil {
				logging.Warn().Err(err).Msg("Error shutting down embedded NATS server")
			}
		}
	}
	return layer, cleanup, nil
}
