// Parkwatch - Parking Session Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parkwatch

/*
Package supervisor runs the long-lived services of parkwatch under suture v4.

The tree has three layers so a crash in one does not stop the others:

	RootSupervisor ("parkwatch")
	├── EngineSupervisor ("engine-layer")
	│   ├── SweepService (overstay monitor)
	│   └── SweepService (termination watchdog)
	├── MessagingSupervisor ("messaging-layer")
	│   ├── LiveHubService
	│   ├── RouterService (controller, archive and notify handlers)
	│   └── sensor simulator
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

Crashed services restart with suture's backoff. Supervisor events are
logged through sutureslog into the zerolog-backed slog handler:

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddEngineService(services.NewSweepService(engine.Monitor(), cfg.Engine.SweepInterval))
	tree.AddMessagingService(services.NewLiveHubService(hub))
	tree.AddAPIService(services.NewHTTPServerService(srv, 10*time.Second))
	err = tree.Serve(ctx)

Service adapters live in the services subpackage.
*/
package supervisor
