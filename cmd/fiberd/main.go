/* Copyright 2019 Comcast Cable Communications Management, LLC
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 * http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package main is a process that hosts one driver fiber and
// dispatches actions to it from stdin, websockets, or MQTT.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/Comcast/fibers/capabilities"
	"github.com/Comcast/fibers/tools"

	"go.uber.org/zap"
)

func main() {

	var (
		configFile = flag.String("c", "", "optional YAML config file")
		engine     = flag.String("e", "", "engine (lua, ecmascript)")
		script     = flag.String("s", "", "driver script filename (default is the built-in driver)")
		modules    = flag.String("m", "", "module directory")
		journal    = flag.String("j", "", "bbolt journal filename")
		wsAddr     = flag.String("w", "", "websocket service address (e.g. :8080)")
		broker     = flag.String("mqtt", "", "MQTT broker (e.g. tcp://localhost:1883)")
		sub        = flag.String("sub", "fibers/in", "MQTT request topic (TOPIC or TOPIC:QOS)")
		pub        = flag.String("pub", "fibers/out", "MQTT reply topic (TOPIC or TOPIC:QOS)")
		doc        = flag.Bool("doc", false, "write capability documentation as HTML and exit")
		wsClient   = flag.String("client", "", "websocket URL that sends us requests")
		stdin      = flag.Bool("i", false, "read requests from stdin even with other front ends")
		prod       = flag.Bool("prod", false, "production logging")
	)

	flag.Parse()

	cfg, err := ReadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %s\n", err)
		os.Exit(1)
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "e":
			cfg.Engine = *engine
		case "s":
			cfg.Script = *script
		case "m":
			cfg.ModuleDir = *modules
		case "j":
			cfg.Journal = *journal
		case "w":
			cfg.WebSocket = *wsAddr
		case "client":
			cfg.Client = *wsClient
		case "prod":
			cfg.Production = *prod
		}
	})
	if *broker != "" {
		cfg.MQTT = &MQTTConfig{
			Broker: *broker,
			Sub:    *sub,
			Pub:    *pub,
		}
	}

	var logger *zap.Logger
	if cfg.Production {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if *doc {
		err := tools.RenderCapabilitiesPage("fiber capabilities", capabilities.Standard(logger), os.Stdout, nil)
		if err != nil {
			logger.Fatal("doc", zap.Error(err))
		}
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s, err := NewService(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("service", zap.Error(err))
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.Run(ctx)
	}()

	if cfg.WebSocket != "" {
		go func() {
			if err := s.WebSocketService(ctx, cfg.WebSocket); err != nil {
				logger.Error("websocket service", zap.Error(err))
				cancel()
			}
		}()
	}

	if cfg.Client != "" {
		go func() {
			if err := s.WebSocketClient(ctx, cfg.Client); err != nil {
				logger.Error("websocket client", zap.Error(err))
			}
			cancel()
		}()
	}

	if cfg.MQTT != nil {
		c, err := NewMQTTCoupling(s, cfg.MQTT)
		if err != nil {
			logger.Fatal("mqtt", zap.Error(err))
		}
		if err = c.Start(ctx); err != nil {
			logger.Fatal("mqtt", zap.Error(err))
		}
	}

	if *stdin || (cfg.WebSocket == "" && cfg.Client == "" && cfg.MQTT == nil) {
		go func() {
			if err := s.Stdio(ctx, os.Stdin, os.Stdout); err != nil {
				logger.Error("stdio", zap.Error(err))
			}
			logger.Debug("stdin done")
			cancel()
		}()
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigs:
		logger.Info("signal")
		cancel()
	case <-ctx.Done():
	}

	wg.Wait()
}
