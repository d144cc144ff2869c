package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/OCAP2/coil/internal/config"
	"github.com/OCAP2/coil/internal/storage"
	"github.com/OCAP2/coil/internal/storage/memory"
	pgstorage "github.com/OCAP2/coil/internal/storage/postgres"
	sqlitestorage "github.com/OCAP2/coil/internal/storage/sqlite"
	wsstorage "github.com/OCAP2/coil/internal/storage/websocket"
	"github.com/spf13/viper"
)

func createStorageBackend(storageCfg config.StorageConfig) (storage.Backend, error) {
	flushInterval := config.GetRecordingConfig().FlushInterval

	switch storageCfg.Type {
	case "postgres":
		Logger.Info("Postgres storage backend selected")
		return pgstorage.New(pgstorage.Dependencies{
			Logger:            Logger,
			DBLogger:          DBLogger,
			FlushInterval:     flushInterval,
			RecordPerformance: true,
		}), nil

	case "sqlite":
		sqliteDBFilePath := filepath.Join(AddonFolder, fmt.Sprintf("%s_%s.db", ExtensionName, SessionStartTime.Format("20060102_150405")))
		backend, err := sqlitestorage.New(sqlitestorage.Config{
			DumpInterval:  storageCfg.SQLite.DumpInterval,
			DumpPath:      sqliteDBFilePath,
			FlushInterval: flushInterval,
		}, Logger, DBLogger)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite backend: %w", err)
		}
		Logger.Info("SQLite storage backend selected", "dumpPath", sqliteDBFilePath)
		return backend, nil

	case "websocket":
		wsURL := storageCfg.WebSocket.URL
		if wsURL == "" {
			wsURL = httpToWS(viper.GetString("api.serverUrl")) + "/api/v1/stream"
		}
		secret := storageCfg.WebSocket.Secret
		if secret == "" {
			secret = viper.GetString("api.apiKey")
		}
		Logger.Info("WebSocket storage backend selected", "url", wsURL)
		return wsstorage.New(wsstorage.Config{
			URL:    wsURL,
			Secret: secret,
		}, Logger), nil

	case "memory", "":
		Logger.Info("Memory storage backend selected", "outputDir", storageCfg.Memory.OutputDir)
		return memory.New(storageCfg.Memory), nil

	default:
		return nil, fmt.Errorf("unknown storage type %q", storageCfg.Type)
	}
}

// httpToWS converts an HTTP(S) URL to a WebSocket URL.
func httpToWS(httpURL string) string {
	s := strings.TrimRight(httpURL, "/")
	s = strings.Replace(s, "https://", "wss://", 1)
	s = strings.Replace(s, "http://", "ws://", 1)
	return s
}
