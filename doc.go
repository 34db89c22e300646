// Package mqpub provides a hybrid hot/cold MQTT delivery engine for Go:
// producers hand messages to a router that never blocks on broker
// availability, and a single background drain worker guarantees at-least-once
// delivery to one or more remote brokers.
//
// # Delivery model
//
// Two paths share one mode flag:
//
//   - Hot path: a bounded in-memory ring queue. Sub-millisecond handoff,
//     volatile. Active while every configured broker is connected and no
//     durable backlog remains.
//   - Cold path: a durable SQL-backed outbox. Survives process crashes.
//     Active while any broker is down, and until the outage backlog is
//     fully flushed — which is what preserves ordering across the switch.
//
// The drain worker owns both drains: it flushes the outbox first (FIFO),
// then the ring, applies exponential backoff to failed deliveries
// (1s → 2s → 4s → 8s → 16s, capped at 30s) and quarantines poison messages
// in a dead letter table after 5 attempts. A message that cannot be
// delivered never blocks the messages behind it: backing-off rows are simply
// invisible to the drain until due.
//
// # Features
//
//   - Non-blocking producer API: the only wait is an optional bounded
//     full-ring wait before spilling to the outbox
//   - At-least-once delivery with FIFO outbox draining and ordered failover
//   - Poison message quarantine with replay and retention pruning
//   - Per-broker runtime state: connection lifecycle, counters, last error
//   - Repository Pattern for clean data access abstraction
//   - Options Pattern for service construction
//   - Pluggable architecture: bring your own Logger and NotificationService
//   - Multi-Database Support: MySQL, PostgreSQL, SQLite via Relica adapters
//   - Paho-based MQTT gateway with TLS and auto-reconnect (adapters/mqtt)
//   - Embedded migrations for easy database setup
//
// # Quick Start
//
// Wire the shared state, both delivery paths and the worker:
//
//	db, _ := sql.Open("mysql", "user:pass@tcp(localhost:3306)/mqpub?parseTime=true")
//	repos := relica.NewRepositories(db, "mysql")
//
//	modeState := mqpub.NewModeState(mqpub.ModeHot)
//	ring, _ := mqpub.NewRingQueue(mqpub.DefaultRingCapacity)
//
//	gateway, _ := mqtt.NewGateway(brokerConfigs, logger)
//
//	router, _ := mqpub.NewRouter(
//	    mqpub.WithRouterQueues(modeState, ring, repos.Outbox),
//	    mqpub.WithRouterGateway(gateway),
//	    mqpub.WithRouterLogger(logger),
//	)
//
//	worker, _ := mqpub.NewDrainWorker(
//	    mqpub.WithRepositories(repos.Outbox, repos.DeadLetter),
//	    mqpub.WithQueues(modeState, ring),
//	    mqpub.WithGateway(gateway),
//	    mqpub.WithLogger(logger),
//	)
//	go worker.Run(ctx, 100*time.Millisecond)
//
// Route a message:
//
//	err := router.Route(ctx, "default", "sensors/temperature", payload, 1, false)
//
// Route returns as soon as the message is committed to a path. Producer-facing
// errors (oversized message, unknown broker, outbox storage failure) surface
// synchronously; delivery failures are retried in the background and
// eventually dead-lettered, never bubbled back to the producer.
//
// # Durability contract
//
// Messages in the ring queue are volatile: an unclean shutdown loses
// whatever the worker has not yet drained. Messages in the outbox survive
// crashes and are recovered on the next start. Consumers downstream of the
// broker must tolerate duplicates; exactly-once is explicitly not offered.
package mqpub
