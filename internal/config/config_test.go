package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(body), 0644))
	return dir
}

func TestLoad_WithValidConfigFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := writeConfig(t, `{
		"logLevel": "debug",
		"weapon": { "capacity": 12, "autoFireEnabledDefault": true },
		"db": { "host": "10.0.0.1", "port": "5433" }
	}`)

	err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "debug", viper.GetString("logLevel"))
	assert.Equal(t, 12.0, viper.GetFloat64("weapon.capacity"))
	assert.Equal(t, true, viper.GetBool("weapon.autoFireEnabledDefault"))
	assert.Equal(t, "10.0.0.1", viper.GetString("db.host"))
	assert.Equal(t, "5433", viper.GetString("db.port"))
}

func TestLoad_DefaultValues(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(writeConfig(t, `{}`)))

	assert.Equal(t, "info", viper.GetString("logLevel"))
	assert.Equal(t, "./coillogs", viper.GetString("logsDir"))
	assert.Equal(t, "http://localhost:5000", viper.GetString("api.serverUrl"))
	assert.Equal(t, "", viper.GetString("api.apiKey"))
	assert.Equal(t, "localhost", viper.GetString("db.host"))
	assert.Equal(t, "5432", viper.GetString("db.port"))
	assert.Equal(t, "coil", viper.GetString("db.database"))
	assert.Equal(t, false, viper.GetBool("graylog.enabled"))
	assert.Equal(t, "localhost:12201", viper.GetString("graylog.address"))
	assert.Equal(t, false, viper.GetBool("influx.enabled"))
	assert.Equal(t, "memory", viper.GetString("storage.type"))
	assert.Equal(t, "./engagements", viper.GetString("storage.memory.outputDir"))
	assert.Equal(t, 15.0, viper.GetFloat64("scene.bodyRadius"))
	assert.Equal(t, false, viper.GetBool("geo.geodetic"))
}

func TestLoad_MissingFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	err := Load("/nonexistent/path")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestGetters(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("testKey", "testValue")
	viper.Set("testInt", 42)
	viper.Set("testBool", true)
	viper.Set("testFloat", 0.25)

	assert.Equal(t, "testValue", GetString("testKey"))
	assert.Equal(t, 42, GetInt("testInt"))
	assert.Equal(t, true, GetBool("testBool"))
	assert.Equal(t, 0.25, GetFloat("testFloat"))
}

func TestGetWeaponConfig_Defaults(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{}`)))

	w := GetWeaponConfig()
	assert.Equal(t, 52202.0, w.MaxRange)
	assert.Equal(t, 30.0, w.Capacity)
	assert.Equal(t, 2000.0, w.DamagePerSecond)
	assert.Equal(t, 180.0, w.FiringArcDegrees)
	assert.False(t, w.AutoFireEnabledDefault)
	assert.True(t, w.AutoFireAllowed)
	assert.Equal(t, 1.0, w.SwitchDelaySeconds)
	assert.Equal(t, 5.0, w.SurfaceTargetDamagePercent)
	assert.Equal(t, 0.5, w.ScanIntervalSeconds)
	assert.Equal(t, 0.2, w.DamageTickIntervalSeconds)
	assert.Equal(t, 0.2, w.ManualFireTimeoutSeconds)
	assert.Equal(t, 30.0, w.BeamOriginOffset)
	assert.Equal(t, 5000.0, w.UrgentDistance)

	o := GetOverrideConfig()
	assert.Equal(t, 0.25, o.ScanIntervalSeconds)
	assert.Equal(t, 52202.0, o.MaxRange)
}

func TestGetWeaponConfig_Override(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{
		"weapon": { "maxRange": 8000, "firingArcDegrees": 90, "autoFireAllowed": false },
		"override": { "scanIntervalSeconds": 1 }
	}`)))

	w := GetWeaponConfig()
	assert.Equal(t, 8000.0, w.MaxRange)
	assert.Equal(t, 90.0, w.FiringArcDegrees)
	assert.False(t, w.AutoFireAllowed)
	assert.Equal(t, 30.0, w.Capacity)
	assert.Equal(t, 1.0, GetOverrideConfig().ScanIntervalSeconds)
}

func TestGetStorageConfig_Defaults(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{}`)))

	cfg := GetStorageConfig()
	assert.Equal(t, "memory", cfg.Type)
	assert.Equal(t, "./engagements", cfg.Memory.OutputDir)
	assert.Equal(t, true, cfg.Memory.CompressOutput)
	assert.Equal(t, 3*time.Minute, cfg.SQLite.DumpInterval)
}

func TestGetStorageConfig_Override(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{
		"storage": {
			"type": "sqlite",
			"memory": { "outputDir": "/tmp/out", "compressOutput": false },
			"sqlite": { "dumpInterval": "10m" }
		}
	}`)))

	sc := GetStorageConfig()
	assert.Equal(t, "sqlite", sc.Type)
	assert.Equal(t, "/tmp/out", sc.Memory.OutputDir)
	assert.Equal(t, false, sc.Memory.CompressOutput)
	assert.Equal(t, 10*time.Minute, sc.SQLite.DumpInterval)
}

func TestGetOTelConfig_Defaults(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{}`)))

	cfg := GetOTelConfig()
	assert.Equal(t, false, cfg.Enabled)
	assert.Equal(t, "coil-extension", cfg.ServiceName)
	assert.Equal(t, 5*time.Second, cfg.BatchTimeout)
	assert.Equal(t, "", cfg.Endpoint)
	assert.Equal(t, true, cfg.Insecure)
}

func TestGetGraylogConfig_Override(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{ "graylog": { "enabled": true, "address": "gelf:12201" } }`)))

	g := GetGraylogConfig()
	assert.True(t, g.Enabled)
	assert.Equal(t, "gelf:12201", g.Address)
}

func TestGetAPIAndRecordingConfig(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{
		"api": { "enabled": true, "serverUrl": "https://aar.example", "apiKey": "k" },
		"recording": { "stateIntervalSeconds": 0.5 },
		"storage": { "websocket": { "url": "ws://stream:5000", "secret": "s" } }
	}`)))

	a := GetAPIConfig()
	assert.True(t, a.Enabled)
	assert.Equal(t, "https://aar.example", a.ServerURL)
	assert.Equal(t, "k", a.APIKey)

	r := GetRecordingConfig()
	assert.Equal(t, 0.5, r.StateIntervalSeconds)
	assert.Equal(t, 2*time.Second, r.FlushInterval)
	assert.Equal(t, 10*time.Second, r.MonitorInterval)

	ws := GetStorageConfig().WebSocket
	assert.Equal(t, "ws://stream:5000", ws.URL)
	assert.Equal(t, "s", ws.Secret)
}

func TestGetSceneConfig(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{
		"geo": { "geodetic": true, "refLon": 13.4, "refLat": 52.5 }
	}`)))

	s := GetSceneConfig()
	assert.True(t, s.Geodetic)
	assert.Equal(t, 13.4, s.RefLon)
	assert.Equal(t, 52.5, s.RefLat)
	assert.Equal(t, 15.0, s.BodyRadius)
}
