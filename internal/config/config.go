package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// FileName is the configuration file looked up in the addon folder.
const FileName = "coil_extension.cfg.json"

// WeaponConfig holds the beam weapon tuning values.
type WeaponConfig struct {
	MaxRange                   float64 `json:"maxRange" mapstructure:"maxRange"`
	Capacity                   float64 `json:"capacity" mapstructure:"capacity"`
	DamagePerSecond            float64 `json:"damagePerSecond" mapstructure:"damagePerSecond"`
	FiringArcDegrees           float64 `json:"firingArcDegrees" mapstructure:"firingArcDegrees"`
	AutoFireEnabledDefault     bool    `json:"autoFireEnabledDefault" mapstructure:"autoFireEnabledDefault"`
	AutoFireAllowed            bool    `json:"autoFireAllowed" mapstructure:"autoFireAllowed"`
	SwitchDelaySeconds         float64 `json:"switchDelaySeconds" mapstructure:"switchDelaySeconds"`
	SurfaceTargetDamagePercent float64 `json:"surfaceTargetDamagePercent" mapstructure:"surfaceTargetDamagePercent"`
	ScanIntervalSeconds        float64 `json:"scanIntervalSeconds" mapstructure:"scanIntervalSeconds"`
	DamageTickIntervalSeconds  float64 `json:"damageTickIntervalSeconds" mapstructure:"damageTickIntervalSeconds"`
	ManualFireTimeoutSeconds   float64 `json:"manualFireTimeoutSeconds" mapstructure:"manualFireTimeoutSeconds"`
	BeamOriginOffset           float64 `json:"beamOriginOffset" mapstructure:"beamOriginOffset"`
	UrgentDistance             float64 `json:"urgentDistance" mapstructure:"urgentDistance"`
}

// OverrideConfig holds the turret priority override settings.
type OverrideConfig struct {
	ScanIntervalSeconds float64 `json:"scanIntervalSeconds" mapstructure:"scanIntervalSeconds"`
	MaxRange            float64 `json:"maxRange" mapstructure:"maxRange"`
}

// MemoryConfig holds in-memory/JSON storage backend settings
type MemoryConfig struct {
	OutputDir      string `json:"outputDir" mapstructure:"outputDir"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
}

// SQLiteConfig holds settings for the in-memory SQLite backend.
type SQLiteConfig struct {
	DumpInterval time.Duration
}

// WebSocketConfig holds settings for the live streaming backend.
type WebSocketConfig struct {
	URL    string `json:"url" mapstructure:"url"`
	Secret string `json:"secret" mapstructure:"secret"`
}

// StorageConfig selects and configures the engagement recording backend.
type StorageConfig struct {
	Type      string
	Memory    MemoryConfig
	SQLite    SQLiteConfig
	WebSocket WebSocketConfig
}

// APIConfig configures the upload of finished recordings to a web frontend.
type APIConfig struct {
	Enabled   bool
	ServerURL string
	APIKey    string
	Tag       string
}

// RecordingConfig controls what the recorder samples and how often.
type RecordingConfig struct {
	// StateIntervalSeconds is the simulation time between weapon state snapshots.
	StateIntervalSeconds float64
	FlushInterval        time.Duration
	MonitorInterval      time.Duration
}

// OTelConfig configures the OpenTelemetry log provider.
type OTelConfig struct {
	Enabled      bool
	ServiceName  string
	BatchTimeout time.Duration
	Endpoint     string
	Insecure     bool
}

// SceneConfig configures coordinate projection and the host raycaster.
type SceneConfig struct {
	Geodetic   bool
	RefLon     float64
	RefLat     float64
	BodyRadius float64
}

// GraylogConfig configures the GELF log output.
type GraylogConfig struct {
	Enabled bool
	Address string
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./coillogs")

	viper.SetDefault("weapon.maxRange", 52202.0)
	viper.SetDefault("weapon.capacity", 30.0)
	viper.SetDefault("weapon.damagePerSecond", 2000.0)
	viper.SetDefault("weapon.firingArcDegrees", 180.0)
	viper.SetDefault("weapon.autoFireEnabledDefault", false)
	viper.SetDefault("weapon.autoFireAllowed", true)
	viper.SetDefault("weapon.switchDelaySeconds", 1.0)
	viper.SetDefault("weapon.surfaceTargetDamagePercent", 5.0)
	viper.SetDefault("weapon.scanIntervalSeconds", 0.5)
	viper.SetDefault("weapon.damageTickIntervalSeconds", 0.2)
	viper.SetDefault("weapon.manualFireTimeoutSeconds", 0.2)
	viper.SetDefault("weapon.beamOriginOffset", 30.0)
	viper.SetDefault("weapon.urgentDistance", 5000.0)

	viper.SetDefault("override.scanIntervalSeconds", 0.25)
	viper.SetDefault("override.maxRange", 52202.0)

	viper.SetDefault("scene.bodyRadius", 15.0)
	viper.SetDefault("geo.geodetic", false)
	viper.SetDefault("geo.refLon", 0.0)
	viper.SetDefault("geo.refLat", 0.0)

	viper.SetDefault("api.enabled", false)
	viper.SetDefault("api.serverUrl", "http://localhost:5000")
	viper.SetDefault("api.apiKey", "")
	viper.SetDefault("api.tag", "")

	viper.SetDefault("recording.stateIntervalSeconds", 1.0)
	viper.SetDefault("recording.flushInterval", "2s")
	viper.SetDefault("recording.monitorInterval", "10s")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "coil")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "coil-metrics")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("storage.memory.outputDir", "./engagements")
	viper.SetDefault("storage.memory.compressOutput", true)
	viper.SetDefault("storage.sqlite.dumpInterval", "3m")
	viper.SetDefault("storage.websocket.url", "ws://localhost:5000/api/v1/stream")
	viper.SetDefault("storage.websocket.secret", "")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "coil-extension")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetFloat returns a float config value.
func GetFloat(key string) float64 {
	return viper.GetFloat64(key)
}

// GetWeaponConfig returns the weapon section.
func GetWeaponConfig() WeaponConfig {
	return WeaponConfig{
		MaxRange:                   viper.GetFloat64("weapon.maxRange"),
		Capacity:                   viper.GetFloat64("weapon.capacity"),
		DamagePerSecond:            viper.GetFloat64("weapon.damagePerSecond"),
		FiringArcDegrees:           viper.GetFloat64("weapon.firingArcDegrees"),
		AutoFireEnabledDefault:     viper.GetBool("weapon.autoFireEnabledDefault"),
		AutoFireAllowed:            viper.GetBool("weapon.autoFireAllowed"),
		SwitchDelaySeconds:         viper.GetFloat64("weapon.switchDelaySeconds"),
		SurfaceTargetDamagePercent: viper.GetFloat64("weapon.surfaceTargetDamagePercent"),
		ScanIntervalSeconds:        viper.GetFloat64("weapon.scanIntervalSeconds"),
		DamageTickIntervalSeconds:  viper.GetFloat64("weapon.damageTickIntervalSeconds"),
		ManualFireTimeoutSeconds:   viper.GetFloat64("weapon.manualFireTimeoutSeconds"),
		BeamOriginOffset:           viper.GetFloat64("weapon.beamOriginOffset"),
		UrgentDistance:             viper.GetFloat64("weapon.urgentDistance"),
	}
}

// GetOverrideConfig returns the turret override section.
func GetOverrideConfig() OverrideConfig {
	return OverrideConfig{
		ScanIntervalSeconds: viper.GetFloat64("override.scanIntervalSeconds"),
		MaxRange:            viper.GetFloat64("override.maxRange"),
	}
}

// GetStorageConfig returns the storage section.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type: viper.GetString("storage.type"),
		Memory: MemoryConfig{
			OutputDir:      viper.GetString("storage.memory.outputDir"),
			CompressOutput: viper.GetBool("storage.memory.compressOutput"),
		},
		SQLite: SQLiteConfig{
			DumpInterval: viper.GetDuration("storage.sqlite.dumpInterval"),
		},
		WebSocket: WebSocketConfig{
			URL:    viper.GetString("storage.websocket.url"),
			Secret: viper.GetString("storage.websocket.secret"),
		},
	}
}

// GetAPIConfig returns the upload section.
func GetAPIConfig() APIConfig {
	return APIConfig{
		Enabled:   viper.GetBool("api.enabled"),
		ServerURL: viper.GetString("api.serverUrl"),
		APIKey:    viper.GetString("api.apiKey"),
		Tag:       viper.GetString("api.tag"),
	}
}

// GetRecordingConfig returns the recording section.
func GetRecordingConfig() RecordingConfig {
	return RecordingConfig{
		StateIntervalSeconds: viper.GetFloat64("recording.stateIntervalSeconds"),
		FlushInterval:        viper.GetDuration("recording.flushInterval"),
		MonitorInterval:      viper.GetDuration("recording.monitorInterval"),
	}
}

// GetOTelConfig returns the OpenTelemetry section.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}

// GetSceneConfig returns the geo and scene sections.
func GetSceneConfig() SceneConfig {
	return SceneConfig{
		Geodetic:   viper.GetBool("geo.geodetic"),
		RefLon:     viper.GetFloat64("geo.refLon"),
		RefLat:     viper.GetFloat64("geo.refLat"),
		BodyRadius: viper.GetFloat64("scene.bodyRadius"),
	}
}

// GetGraylogConfig returns the Graylog section.
func GetGraylogConfig() GraylogConfig {
	return GraylogConfig{
		Enabled: viper.GetBool("graylog.enabled"),
		Address: viper.GetString("graylog.address"),
	}
}
