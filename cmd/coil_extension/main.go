package main

/*
#include <stdlib.h>
#include <stdio.h>
#include <string.h>
*/
import "C" // This is required to import the C code

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/OCAP2/coil/internal/api"
	"github.com/OCAP2/coil/internal/cache"
	"github.com/OCAP2/coil/internal/config"
	"github.com/OCAP2/coil/internal/dispatcher"
	"github.com/OCAP2/coil/internal/geo"
	"github.com/OCAP2/coil/internal/handlers"
	"github.com/OCAP2/coil/internal/influx"
	"github.com/OCAP2/coil/internal/logging"
	"github.com/OCAP2/coil/internal/mission"
	"github.com/OCAP2/coil/internal/monitor"
	intOtel "github.com/OCAP2/coil/internal/otel"
	"github.com/OCAP2/coil/internal/parser"
	"github.com/OCAP2/coil/internal/storage"
	"github.com/OCAP2/coil/internal/weapon"
	"github.com/OCAP2/coil/internal/worker"
	"github.com/OCAP2/coil/pkg/a3interface"
	"github.com/OCAP2/coil/pkg/core"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// module defs - BuildDate can be set at build time via ldflags
var (
	CurrentExtensionVersion string = "0.0.1"
	BuildDate               string = "unknown"

	ExtensionName string = "coil_extension"
)

// file paths
var (
	// ModulePath is the absolute path to this library file.
	ModulePath string

	// AddonFolder holds the config file, the status file and sqlite dumps.
	// It is the folder the library was loaded from.
	AddonFolder string

	InitLogFilePath string
	InitLogFile     *os.File
	CoilLogFilePath string
	CoilLogFile     *os.File
)

// global variables
var (
	// SlogManager handles all slog-based logging
	SlogManager *logging.SlogManager

	// Logger is the slog logger (convenience reference)
	Logger *slog.Logger

	// DBLogger is handed to the database, influx and dispatcher layers
	DBLogger zerolog.Logger

	// OTelProvider handles OpenTelemetry
	OTelProvider *intOtel.Provider

	SessionStartTime time.Time = time.Now()

	// Services
	missionCtx      *mission.Context
	platformCache   *cache.NetworkCache
	handlerService  *handlers.Service
	coordinator     *weapon.Coordinator
	workerManager   *worker.Manager
	monitorService  *monitor.Service
	influxManager   *influx.Manager
	eventDispatcher *dispatcher.Dispatcher
	storageBackend  storage.Backend
)

// init is run automatically when the module is loaded
func init() {
	var err error

	ModulePath = a3interface.GetModulePath()
	AddonFolder = filepath.Dir(ModulePath)
	if AddonFolder == "" || AddonFolder == "." {
		AddonFolder, _ = os.Getwd()
	}

	InitLogFilePath = filepath.Join(AddonFolder, "coil_init.log")
	InitLogFile, err = os.Create(InitLogFilePath)
	if err != nil {
		// Log to stderr since logging isn't set up yet
		fmt.Fprintf(os.Stderr, "Failed to create init log file: %v\n", err)
	}

	SlogManager = logging.NewSlogManager()
	SlogManager.Setup(logging.Options{File: fileOrNil(InitLogFile), Level: "info"})
	Logger = SlogManager.Logger()

	err = config.Load(AddonFolder)
	if err != nil {
		Logger.Warn("Failed to load config, using defaults!", "error", err)
	} else {
		Logger.Info("Loaded config")
	}

	setupLogging()

	Logger.Info("Setting up a3interface...")
	if err = setupA3Interface(); err != nil {
		Logger.Error("Failed to set up a3interface!", "error", err)
		panic(err)
	}
	Logger.Info("Set up a3interface")

	go checkServerStatus()
}

// setupLogging moves logging from the init log to the session log file and
// adds the OTel and Graylog outputs when configured.
func setupLogging() {
	var err error
	logsDir := viper.GetString("logsDir")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		Logger.Error("Failed to create logs directory", "error", err, "path", logsDir)
	}

	CoilLogFilePath = logging.LogFilePath(logsDir, ExtensionName, SessionStartTime)
	if _, err := os.Stat(CoilLogFilePath); err == nil {
		os.Rename(CoilLogFilePath, CoilLogFilePath+".old")
	}
	CoilLogFile, err = os.OpenFile(CoilLogFilePath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		Logger.Error("Failed to create/open log file!", "error", err, "path", CoilLogFilePath)
	}
	Logger.Info("Begin logging in logs directory", "path", CoilLogFilePath)

	otelCfg := config.GetOTelConfig()
	OTelProvider, err = intOtel.New(context.Background(), intOtel.Config{
		Enabled:      otelCfg.Enabled,
		ServiceName:  otelCfg.ServiceName,
		Version:      CurrentExtensionVersion,
		BatchTimeout: otelCfg.BatchTimeout,
		LogWriter:    fileOrNil(CoilLogFile),
		Endpoint:     otelCfg.Endpoint,
		Insecure:     otelCfg.Insecure,
	})
	if err != nil {
		Logger.Error("Failed to initialize OTel provider", "error", err)
		OTelProvider = nil
	} else if OTelProvider.Enabled() {
		Logger.Info("OTel provider initialized", "file", CoilLogFilePath, "endpoint", otelCfg.Endpoint)
	}

	var otelLogProvider *sdklog.LoggerProvider
	if OTelProvider != nil {
		otelLogProvider = OTelProvider.LoggerProvider()
	}

	var graylog io.Writer
	if g := config.GetGraylogConfig(); g.Enabled {
		w, err := logging.DialGraylog(g.Address, ExtensionName)
		if err != nil {
			Logger.Error("Failed to connect to Graylog", "error", err)
		} else {
			graylog = w
		}
	}

	level := viper.GetString("logLevel")
	SlogManager.Setup(logging.Options{
		File:     fileOrNil(CoilLogFile),
		Level:    level,
		Provider: otelLogProvider,
		Graylog:  graylog,
		Context:  logContext,
	})
	Logger = SlogManager.Logger()
	Logger.Info("Logging to file", "path", CoilLogFilePath)

	var dbLogOut io.Writer = os.Stdout
	if CoilLogFile != nil {
		dbLogOut = CoilLogFile
	}
	DBLogger = logging.NewZerolog(dbLogOut, level)
}

// logContext adds the active session and the platform count to every record.
// It must not touch the coordinator, which logs while its handler lock is held.
func logContext() []slog.Attr {
	if missionCtx == nil || platformCache == nil {
		return nil
	}
	attrs := []slog.Attr{slog.Int("platforms", platformCache.Len())}
	if session := missionCtx.GetSession(); session != nil {
		attrs = append(attrs, slog.String("session", session.Name))
	}
	return attrs
}

// fileOrNil keeps a nil *os.File from becoming a non-nil io.Writer.
func fileOrNil(f *os.File) io.Writer {
	if f == nil {
		return nil
	}
	return f
}

func setupA3Interface() (err error) {
	a3interface.SetVersion(CurrentExtensionVersion)

	eventDispatcher, err = dispatcher.New(logging.NewDispatcherLogger(DBLogger))
	if err != nil {
		return fmt.Errorf("failed to create dispatcher: %w", err)
	}

	if err = startServices(); err != nil {
		return err
	}
	handlerService.Register(eventDispatcher)
	a3interface.SetDispatcher(eventDispatcher)

	Logger.Info("Dispatcher initialized", "storage", config.GetStorageConfig().Type)
	return nil
}

// startServices builds the scene caches, the weapon coordinator and the
// engagement recorder. A storage failure leaves the extension running
// without a recorder.
func startServices() error {
	sceneCfg := config.GetSceneConfig()
	projector := geo.NewProjector(sceneCfg.Geodetic, sceneCfg.RefLon, sceneCfg.RefLat)

	platforms := cache.NewNetworkCache()
	contacts := cache.NewContactCache(platforms)
	platformCache = platforms
	scene := geo.NewScene(contacts, sceneCfg.BodyRadius)
	collector := handlers.NewCollector()
	missionCtx = mission.NewContext()

	var err error
	coordinator, err = weapon.NewCoordinator(buildWeaponConfig(), weapon.Deps{
		Registry:  contacts,
		Raycaster: scene,
		Damage:    collector,
		Ammo:      collector,
		Logger:    Logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create weapon coordinator: %w", err)
	}

	if err := initStorage(); err != nil {
		Logger.Error("Storage initialization failed, recording disabled", "error", err)
	}

	handlerService = handlers.NewService(handlers.Dependencies{
		Logger:           Logger,
		Coordinator:      coordinator,
		Collector:        collector,
		Contacts:         contacts,
		Platforms:        platforms,
		Scene:            scene,
		Parser:           parser.NewParser(Logger, projector),
		Mission:          missionCtx,
		Recorder:         workerManager,
		OnSessionEnd:     onSessionEnd,
		ExtensionVersion: CurrentExtensionVersion,
		BuildDate:        BuildDate,
	})

	if workerManager == nil {
		return nil
	}
	monitorService = monitor.NewService(monitor.Dependencies{
		Logger:     Logger,
		Recorder:   workerManager,
		Weapons:    handlerService.Weapons,
		Session:    handlerService.Session,
		Influx:     influxManager,
		StatusFile: filepath.Join(AddonFolder, "coil_status.txt"),
		Interval:   config.GetRecordingConfig().MonitorInterval,
	})
	monitorService.Start()
	return nil
}

// buildWeaponConfig overlays the configured tuning values on the stock profile.
func buildWeaponConfig() weapon.Config {
	w := config.GetWeaponConfig()
	o := config.GetOverrideConfig()

	cfg := weapon.DefaultConfig()
	cfg.MaxRange = w.MaxRange
	cfg.Capacity = w.Capacity
	cfg.DamagePerSecond = w.DamagePerSecond
	cfg.FiringArcDegrees = w.FiringArcDegrees
	cfg.AutoFireEnabledDefault = w.AutoFireEnabledDefault
	cfg.AutoFireAllowed = w.AutoFireAllowed
	cfg.SwitchDelaySeconds = w.SwitchDelaySeconds
	cfg.SurfaceTargetDamagePercent = w.SurfaceTargetDamagePercent
	cfg.ScanIntervalSeconds = w.ScanIntervalSeconds
	cfg.DamageTickIntervalSeconds = w.DamageTickIntervalSeconds
	cfg.ManualTimeoutSeconds = w.ManualFireTimeoutSeconds
	cfg.BeamOriginOffset = w.BeamOriginOffset
	cfg.Weights.UrgentDistance = w.UrgentDistance
	cfg.Override.ScanIntervalSeconds = o.ScanIntervalSeconds
	cfg.Override.MaxRange = o.MaxRange
	return cfg
}

func initStorage() error {
	storageCfg := config.GetStorageConfig()

	backend, err := createStorageBackend(storageCfg)
	if err != nil {
		return fmt.Errorf("failed to create storage backend: %w", err)
	}
	if err := backend.Init(); err != nil {
		return fmt.Errorf("failed to initialize %s storage backend: %w", storageCfg.Type, err)
	}
	storageBackend = backend

	influxManager = influx.NewManager(DBLogger, filepath.Join(AddonFolder, "coil_influx_backup.gz"))
	if err := influxManager.Connect(); err != nil {
		if !errors.Is(err, influx.ErrDisabled) {
			Logger.Warn("InfluxDB unavailable, telemetry mirror disabled", "error", err)
		}
		influxManager = nil
	}

	recCfg := config.GetRecordingConfig()
	workerManager = worker.NewManager(worker.Dependencies{
		Logger:        Logger,
		Influx:        influxManager,
		StateInterval: recCfg.StateIntervalSeconds,
	}, storageBackend)
	workerManager.Start()

	Logger.Info("Storage initialized", "type", storageCfg.Type)
	return nil
}

// onSessionEnd flushes telemetry and uploads the export when the backend
// produced one.
func onSessionEnd(s *core.Session) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if OTelProvider != nil {
		if err := OTelProvider.Flush(ctx); err != nil {
			Logger.Warn("Failed to flush OTel data", "error", err)
		}
	}

	apiCfg := config.GetAPIConfig()
	if !apiCfg.Enabled {
		return
	}
	exporter, ok := storageBackend.(storage.Uploadable)
	if !ok {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		client := api.New(apiCfg.ServerURL, apiCfg.APIKey, apiCfg.Tag)
		if err := client.UploadExport(ctx, exporter); err != nil {
			Logger.Error("Failed to upload engagement export", "error", err, "session", s.Name)
			return
		}
		Logger.Info("Uploaded engagement export", "session", s.Name, "path", exporter.GetExportedFilePath())
	}()
}

func checkServerStatus() {
	apiCfg := config.GetAPIConfig()
	if !apiCfg.Enabled {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := api.New(apiCfg.ServerURL, apiCfg.APIKey, apiCfg.Tag).Healthcheck(ctx); err != nil {
		Logger.Info("AAR frontend is offline", "error", err)
	} else {
		Logger.Info("AAR frontend is online")
	}
}

// shutdown stops the recorder and flushes every sink.
func shutdown() {
	if monitorService != nil {
		monitorService.Stop()
	}
	if eventDispatcher != nil {
		eventDispatcher.Close()
	}
	if workerManager != nil {
		workerManager.Close()
	}
	if storageBackend != nil {
		if err := storageBackend.Close(); err != nil {
			Logger.Error("Failed to close storage backend", "error", err)
		}
	}
	if influxManager != nil {
		if err := influxManager.Close(); err != nil {
			Logger.Error("Failed to close InfluxDB manager", "error", err)
		}
	}
	if coordinator != nil {
		coordinator.Close()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if OTelProvider != nil {
		if err := OTelProvider.Shutdown(ctx); err != nil {
			Logger.Warn("Failed to shut down OTel provider", "error", err)
		}
	}
}

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		fmt.Println("No arguments provided.")
		fmt.Println(usage)
		return
	}
	err := runCLI(strings.ToLower(args[0]), args[1:])
	shutdown()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
