// Parkwatch - Parking Session Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parkwatch

package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/tomtom215/parkwatch/internal/api"
	"github.com/tomtom215/parkwatch/internal/archive"
	"github.com/tomtom215/parkwatch/internal/auth"
	"github.com/tomtom215/parkwatch/internal/config"
	"github.com/tomtom215/parkwatch/internal/eventprocessor"
	"github.com/tomtom215/parkwatch/internal/lifecycle"
	"github.com/tomtom215/parkwatch/internal/logging"
	"github.com/tomtom215/parkwatch/internal/notify"
	"github.com/tomtom215/parkwatch/internal/publisher"
	"github.com/tomtom215/parkwatch/internal/simulation"
	"github.com/tomtom215/parkwatch/internal/store"
	"github.com/tomtom215/parkwatch/internal/supervisor"
	"github.com/tomtom215/parkwatch/internal/supervisor/services"
	"github.com/tomtom215/parkwatch/internal/websocket"
)

const (
	httpShutdownTimeout = 10 * time.Second
	natsShutdownTimeout = 5 * time.Second
)

// app holds every component main wires together.
type app struct {
	cfg *config.Config

	embedded  *eventprocessor.EmbeddedServer
	transport *eventprocessor.Transport
	store     store.Store
	archive   *archive.Archive
	hub       *websocket.Hub
	publisher *publisher.Publisher
	engine    *lifecycle.Engine
	router    *eventprocessor.Router
	simulator *simulation.Simulator
	server    *http.Server
}

// newApp builds the application. On error everything opened so far is closed.
func newApp(ctx context.Context, cfg *config.Config) (a *app, err error) {
	a = &app{cfg: cfg}
	defer func() {
		if err != nil {
			a.close()
			a = nil
		}
	}()

	if err = a.initTransport(ctx); err != nil {
		return a, err
	}
	if err = a.initStore(); err != nil {
		return a, err
	}

	a.hub = websocket.NewHub()
	a.publisher = publisher.New(a.transport.Publisher(), a.hub, cfg.Topics)
	a.engine = lifecycle.New(lifecycle.SettingsFromConfig(&cfg.Engine), a.store, a.publisher)

	if err = a.initRouter(); err != nil {
		return a, err
	}

	a.simulator = simulation.New(a.transport.Publisher(), cfg.Topics.Presence)

	handler, err := a.initAPI()
	if err != nil {
		return a, err
	}
	// No WriteTimeout: the WebSocket and SSE streams are long-lived.
	a.server = &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           handler,
		ReadTimeout:       cfg.Server.Timeout,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return a, nil
}

// initTransport selects the memory or NATS transport. With an embedded
// server the transport connects to its client URL.
func (a *app) initTransport(ctx context.Context) error {
	wmLogger := logging.NewWatermillLogger()
	natsCfg := &a.cfg.NATS

	if !natsCfg.Enabled {
		a.transport = eventprocessor.NewMemoryTransport(wmLogger)
		logging.Info().Msg("Using in-process memory transport")
		return nil
	}

	url := natsCfg.URL
	if natsCfg.EmbeddedServer {
		sc, err := eventprocessor.ServerConfigFrom(natsCfg)
		if err != nil {
			return err
		}
		srv, err := eventprocessor.NewEmbeddedServer(&sc)
		if err != nil {
			return fmt.Errorf("start embedded NATS: %w", err)
		}
		a.embedded = srv
		url = srv.ClientURL()
		logging.Info().Str("url", url).Str("store_dir", sc.StoreDir).Msg("Embedded NATS server started")
	}

	t, err := eventprocessor.NewNATSTransport(ctx, url, natsCfg, &a.cfg.Topics, wmLogger)
	if err != nil {
		return err
	}
	a.transport = t
	logging.Info().Str("url", url).Str("stream", natsCfg.StreamName).Msg("Using NATS JetStream transport")
	return nil
}

func (a *app) initStore() error {
	if a.cfg.Store.Backend != "badger" {
		a.store = store.NewMemoryStore()
		return nil
	}
	bs, err := store.OpenBadger(store.BadgerConfig{
		Path:       a.cfg.Store.Path,
		SyncWrites: a.cfg.Store.SyncWrites,
	})
	if err != nil {
		return err
	}
	a.store = bs
	return nil
}

// initRouter registers the controller and the optional archive and
// notification consumers.
func (a *app) initRouter() error {
	routerCfg := eventprocessor.RouterConfigFrom(&a.cfg.NATS)
	r, err := eventprocessor.NewRouter(&routerCfg, logging.NewWatermillLogger())
	if err != nil {
		return err
	}
	a.router = r

	if err := eventprocessor.NewHandlers(a.engine.Controller()).Register(r, a.transport, &a.cfg.Topics); err != nil {
		return err
	}

	if a.cfg.Notify.Enabled {
		d := notify.NewDispatcherFromConfig(&a.cfg.Notify)
		if err := d.Register(r, a.transport, a.cfg.Topics.Alerts); err != nil {
			return err
		}
		logging.Info().Strs("channels", d.Channels()).Msg("Alert notifications enabled")
	}

	if a.cfg.Archive.Enabled {
		arc, err := archive.Open(&a.cfg.Archive)
		if err != nil {
			return err
		}
		a.archive = arc
		if err := arc.Register(r, a.transport, &a.cfg.Topics); err != nil {
			return err
		}
	}

	logging.Info().Strs("handlers", r.Handlers()).Msg("Event router configured")
	return nil
}

func (a *app) initAPI() (http.Handler, error) {
	var jwtManager *auth.JWTManager
	if a.cfg.Security.RequirePaymentAuth {
		m, err := auth.NewJWTManager(&a.cfg.Security)
		if err != nil {
			return nil, err
		}
		jwtManager = m
	}

	deps := api.Dependencies{
		Store:          a.store,
		Publisher:      a.transport.Publisher(),
		Transport:      a.transport,
		Hub:            a.hub,
		Simulator:      a.simulator,
		Archive:        a.archive,
		JWT:            jwtManager,
		Topics:         a.cfg.Topics,
		AllowedOrigins: a.cfg.Server.CORSOrigins,
	}
	if a.embedded != nil {
		deps.Broker = a.embedded
	}
	h := api.NewHandler(deps)
	return api.NewRouter(h, api.MiddlewareConfigFromServer(&a.cfg.Server)), nil
}

// addServices places every long-running component in its layer.
func (a *app) addServices(tree *supervisor.SupervisorTree) {
	engineCfg := a.cfg.Engine

	tree.AddEngineService(services.NewSweepService(a.engine.Monitor(), engineCfg.SweepInterval))
	tree.AddEngineService(services.NewSweepService(a.engine.Watchdog(), engineCfg.EffectiveWatchdogInterval()))
	if bs, ok := a.store.(*store.BadgerStore); ok {
		tree.AddEngineService(services.NewStoreGCService(bs, 0))
	}

	tree.AddMessagingService(services.NewLiveHubService(a.hub))
	tree.AddMessagingService(services.NewRouterService(a.router))
	tree.AddMessagingService(a.publisher)
	tree.AddMessagingService(a.simulator)

	tree.AddAPIService(services.NewHTTPServerService(a.server, httpShutdownTimeout))
}

// close releases resources in reverse dependency order. Safe on a
// partially built app.
func (a *app) close() {
	if a.transport != nil {
		if err := a.transport.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing transport")
		}
	}
	if a.archive != nil {
		if err := a.archive.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing archive")
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing session store")
		}
	}
	if a.embedded != nil {
		ctx, cancel := context.WithTimeout(context.Background(), natsShutdownTimeout)
		defer cancel()
		if err := a.embedded.Shutdown(ctx); err != nil {
			logging.Error().Err(err).Msg("Error shutting down embedded NATS")
		}
	}
}
