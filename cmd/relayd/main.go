// relayd - The routerchat relay server.
//
// The relay holds the OpenRouter API key so chat clients never see it.
// It exposes POST /api/chat and streams model output back to the client
// as server-sent events.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jeranaias/routerchat/internal/config"
	"github.com/jeranaias/routerchat/internal/relay"
)

// shutdownGrace is how long in-flight streams get to finish on SIGTERM.
const shutdownGrace = 10 * time.Second

func main() {
	var (
		configPath = flag.String("config", "", "path to config file")
		host       = flag.String("host", "", "listen address (overrides config)")
		port       = flag.Int("port", 0, "listen port (overrides config)")
	)
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	key := cfg.Relay.OpenRouterKey
	if env := os.Getenv("OPENROUTER_API_KEY"); env != "" {
		key = env
	}
	if key == "" {
		fmt.Fprintln(os.Stderr, "Error: no OpenRouter API key configured")
		fmt.Fprintln(os.Stderr, "Set relay.openrouter_key in the config file or OPENROUTER_API_KEY in the environment.")
		os.Exit(1)
	}

	upstream := relay.NewUpstream(key)
	if cfg.Relay.OpenRouterURL != "" {
		upstream = upstream.WithBaseURL(cfg.Relay.OpenRouterURL)
	}
	if cfg.Relay.SiteURL != "" {
		upstream = upstream.WithSiteURL(cfg.Relay.SiteURL)
	}
	if cfg.Relay.SiteName != "" {
		upstream = upstream.WithSiteName(cfg.Relay.SiteName)
	}

	listenPort := cfg.Relay.Port
	if *port > 0 {
		listenPort = *port
	}
	srv := relay.NewServer(upstream, listenPort)
	if *host != "" {
		srv = srv.WithHost(*host)
	} else if cfg.Relay.Host != "" {
		srv = srv.WithHost(cfg.Relay.Host)
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("RELAY: listening on %s", srv.Addr())
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatalf("RELAY: server error: %v", err)
		}
	case sig := <-sigCh:
		log.Printf("RELAY: received %v, shutting down", sig)
		ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("RELAY: shutdown error: %v", err)
		}
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromPath(path)
	}
	return config.Load()
}
