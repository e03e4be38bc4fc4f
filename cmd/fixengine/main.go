/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Command fixengine is the unattended process entrypoint of spec.md
// §6: it loads configuration, dials the transport, builds the
// pipeline from the configured processor list, and runs the engine
// until the transport closes or a fatal protocol error occurs,
// reporting the exit codes spec.md §6 defines.
//
// The teacher ships no main package of its own - fixclient is a
// library meant to be driven by an external caller that constructs a
// FixApp (fixclient/fixapp.go's NewFixApp(config, db)) and hands it to
// quickfix, then optionally to fixclient/repl.go's Repl(app) for
// interactive use. This command is grounded on that same order
// (config -> app construction -> transport/session wiring -> run
// loop), generalized from the teacher's hardcoded quickfix.Initiator
// and interactive Repl to this module's own transport/engine stack
// running unattended.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"fixengine/admin"
	"fixengine/broker"
	"fixengine/config"
	"fixengine/engine"
	"fixengine/message"
	"fixengine/pipeline"
	"fixengine/session"
	"fixengine/store"
	"fixengine/transport"
	"fixengine/wire"
)

func main() {
	configPath := flag.String("config", "fixengine.yaml", "path to configuration file")
	adminAddr := flag.String("admin-addr", "", "REST admin listen address, e.g. :8081 (empty disables)")
	natsAddr := flag.String("nats-addr", "", "NATS server address (empty disables pub/sub admin)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Printf("fixengine: %v", err)
		os.Exit(engine.ExitConfigError)
	}

	backend, err := openStore(cfg.MessageStore)
	if err != nil {
		log.Printf("fixengine: message store: %v", err)
		os.Exit(engine.ExitConfigError)
	}

	addr := cfg.Host + ":" + strconv.Itoa(cfg.Port)
	t, err := transport.Dial(addr, 10*time.Second)
	if err != nil {
		log.Printf("fixengine: dial %s: %v", addr, err)
		os.Exit(engine.ExitTransportFailed)
	}

	codec := wire.New(false)

	sess, err := session.New(session.Config{
		ConnectionName: cfg.ConnectionName,
		Identity: message.Identity{
			BeginString:  cfg.BeginString,
			SenderCompID: cfg.SenderCompID,
			TargetCompID: cfg.TargetCompID,
		},
		Username:     cfg.Username,
		Password:     cfg.Password,
		HeartBtInt:   cfg.HeartbeatInterval,
		ResetOnLogon: cfg.ResetOnLogon,
		Codec:        codec,
		Store:        backend,
		Send:         t.Write,
	})
	if err != nil {
		log.Printf("fixengine: session init: %v", err)
		os.Exit(engine.ExitConfigError)
	}

	pl, auth, err := buildPipeline(cfg)
	if err != nil {
		log.Printf("fixengine: pipeline: %v", err)
		os.Exit(engine.ExitConfigError)
	}
	auth.Session = sess

	e := engine.New(t, codec, sess, pl)

	var bus *broker.Broker
	if *natsAddr != "" {
		bus, err = broker.Connect(*natsAddr, cfg.ConnectionName+".delivered", cfg.ConnectionName+".send",
			func(m *message.Message) error { return e.Send(context.Background(), m) })
		if err != nil {
			log.Printf("fixengine: nats: %v", err)
			os.Exit(engine.ExitConfigError)
		}
		if err := bus.Start(); err != nil {
			log.Printf("fixengine: nats subscribe: %v", err)
			os.Exit(engine.ExitConfigError)
		}
		defer bus.Close()
	}

	e.Deliver = func(m *message.Message) {
		if bus != nil {
			bus.Publish(m)
		}
	}

	if *adminAddr != "" {
		router := admin.Router(sess, func(m *message.Message) error { return e.Send(context.Background(), m) })
		go func() {
			if err := router.Run(*adminAddr); err != nil {
				log.Printf("fixengine: admin server: %v", err)
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := e.Start(ctx); err != nil {
		log.Printf("fixengine: start: %v", err)
		os.Exit(engine.ExitFatalProtocol)
	}

	code := e.Run(ctx)
	if err := e.Fatal(); err != nil {
		log.Printf("fixengine: exiting (%d): %v", code, err)
	}
	os.Exit(code)
}

func buildPipeline(cfg *config.Config) (*pipeline.Pipeline, *pipeline.AuthenticationApp, error) {
	auth := pipeline.NewAuthenticationApp(cfg.Username, cfg.Password)

	reg := pipeline.NewRegistry()
	reg.Register("authentication", func() (pipeline.Processor, error) { return auth, nil })

	names := cfg.PipelineApps
	if len(names) == 0 {
		names = []string{"authentication"}
	}
	apps, err := reg.Build(names)
	if err != nil {
		return nil, nil, err
	}
	return pipeline.New(apps), auth, nil
}

func openStore(cfg config.StoreConfig) (store.Store, error) {
	switch cfg.Selector {
	case "sqlite":
		return store.NewSQLiteStore(cfg.Path)
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.Addr})
		return store.NewRedisStore(client), nil
	default:
		return store.NewMemoryStore(), nil
	}
}
