package main

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/OCAP2/demotimeline/internal/config"
	"github.com/OCAP2/demotimeline/internal/database"
	"github.com/OCAP2/demotimeline/internal/storage"
	"github.com/OCAP2/demotimeline/internal/storage/memory"
	pgstorage "github.com/OCAP2/demotimeline/internal/storage/postgres"
	sqlitestorage "github.com/OCAP2/demotimeline/internal/storage/sqlite"
	wsstorage "github.com/OCAP2/demotimeline/internal/storage/websocket"
)

func noCleanup() error { return nil }

// createStorageBackend builds the configured backend. cleanup runs after
// the backend is closed.
func createStorageBackend(storageCfg config.StorageConfig, a *app) (backend storage.Backend, cleanup func() error, err error) {
	switch storageCfg.Type {
	case "postgres":
		mgr := database.NewManager(a.zlog.With().Str("component", "database").Logger())
		if err := mgr.Connect(); err != nil {
			return nil, nil, err
		}
		cleanup = noCleanup
		if mgr.IsLocal {
			// postgres unreachable: keep the timeline in memory and dump it on exit
			mgr.SqliteFilePath = storageCfg.SQLite.DumpPath
			cleanup = mgr.DumpMemoryToDisk
		}
		a.logger.Info("Postgres storage backend initialized", "local", mgr.IsLocal)
		return pgstorage.New(pgstorage.Dependencies{DB: mgr.DB, Logger: a.logger}), cleanup, nil

	case "sqlite":
		b, err := sqlitestorage.New(storageCfg.SQLite, a.logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create SQLite backend: %w", err)
		}
		a.logger.Info("SQLite storage backend initialized", "path", storageCfg.SQLite.Path)
		return b, noCleanup, nil

	case "websocket":
		wsCfg := wsstorage.Config{
			URL:    storageCfg.WebSocket.URL,
			Secret: storageCfg.WebSocket.Secret,
		}
		if wsCfg.URL == "" {
			wsCfg.URL = httpToWS(viper.GetString("api.serverUrl")) + "/api"
		}
		if wsCfg.Secret == "" {
			wsCfg.Secret = viper.GetString("api.apiKey")
		}
		a.logger.Info("WebSocket storage backend initialized", "url", wsCfg.URL)
		return wsstorage.New(wsCfg, a.logger), noCleanup, nil

	case "memory", "":
		a.logger.Info("Memory storage backend initialized", "outputDir", storageCfg.Memory.OutputDir)
		return memory.New(storageCfg.Memory), noCleanup, nil

	default:
		return nil, nil, fmt.Errorf("unknown storage type %q", storageCfg.Type)
	}
}

// httpToWS converts an HTTP(S) URL to a WebSocket URL.
func httpToWS(httpURL string) string {
	s := strings.TrimRight(httpURL, "/")
	if rest, ok := strings.CutPrefix(s, "https://"); ok {
		return "wss://" + rest
	}
	if rest, ok := strings.CutPrefix(s, "http://"); ok {
		return "ws://" + rest
	}
	return s
}
