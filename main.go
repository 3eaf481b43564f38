// routerchat - OpenRouter chat in the terminal.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	chatctrl "github.com/jeranaias/routerchat/internal/chat"
	"github.com/jeranaias/routerchat/internal/cli"
	"github.com/jeranaias/routerchat/internal/config"
	"github.com/jeranaias/routerchat/internal/relay"
	"github.com/jeranaias/routerchat/internal/storage"
	"github.com/jeranaias/routerchat/internal/telemetry"
	"github.com/jeranaias/routerchat/internal/ui"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func main() {
	var (
		plain       = flag.Bool("plain", false, "use the line-based REPL instead of the full-screen UI")
		quiet       = flag.Bool("quiet", false, "suppress the welcome banner")
		showVersion = flag.Bool("version", false, "print version and exit")
		configPath  = flag.String("config", "", "path to config file")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("routerchat %s (%s, built %s)\n", Version, GitCommit, BuildDate)
		return
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg, *plain, *quiet); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromPath(path)
	}
	return config.Load()
}

func run(cfg *config.Config, plain, quiet bool) error {
	persist, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("could not open conversation store: %w", err)
	}

	store := chatctrl.NewStore()
	client := relay.NewClient(cfg.Client.RelayURL)
	ctrl := chatctrl.NewController(store, persist, client)
	if err := ctrl.Load(); err != nil {
		return fmt.Errorf("could not load conversations: %w", err)
	}
	if store.SelectedModel() == "" && cfg.DefaultModel != "" {
		store.SetSelectedModel(cfg.DefaultModel)
	}

	// Pick up external rewrites of the collection file (another routerchat
	// process, a sync tool) without restarting.
	if cfg.Storage.WatchEnabled {
		watcher, err := storage.NewWatcher(persist, func() {
			store.Replace(persist.LoadConversations())
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: conversation watcher unavailable: %v\n", err)
		} else {
			defer watcher.Close()
		}
	}

	var usage *telemetry.Store
	if cfg.Telemetry.Enabled {
		usage, err = telemetry.Open(usageDBPath(cfg, persist))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: usage stats unavailable: %v\n", err)
		} else {
			defer usage.Close()
		}
	}

	// The full-screen UI needs a real terminal. Piped input falls back to
	// the REPL, which handles non-interactive stdin.
	if plain || cfg.UI.Plain || !cli.IsTTY() {
		session := cli.NewChatSession(ctrl, cfg, usage, quiet)
		return cli.RunChat(session)
	}
	return ui.Run(ctrl, cfg, usage)
}

func openStore(cfg *config.Config) (*storage.ConversationStore, error) {
	if cfg.Storage.DataDir != "" {
		return storage.NewConversationStoreWithDir(cfg.Storage.DataDir)
	}
	return storage.NewConversationStore()
}

func usageDBPath(cfg *config.Config, persist *storage.ConversationStore) string {
	if cfg.Telemetry.DBPath != "" {
		return cfg.Telemetry.DBPath
	}
	return filepath.Join(persist.BaseDir, "usage.db")
}
