package weapon

import (
	"github.com/OCAP2/coil/internal/acquisition"
	"github.com/OCAP2/coil/internal/engagement"
	"github.com/OCAP2/coil/internal/geometry"
	"github.com/OCAP2/coil/internal/override"
	"github.com/OCAP2/coil/internal/threat"
)

// Config is the owned configuration of every beam the coordinator creates.
type Config struct {
	MaxRange                   float64
	Capacity                   float64
	DamagePerSecond            float64
	FiringArcDegrees           float64
	AutoFireEnabledDefault     bool
	AutoFireAllowed            bool
	SwitchDelaySeconds         float64
	SurfaceTargetDamagePercent float64
	ScanIntervalSeconds        float64
	DamageTickIntervalSeconds  float64
	ManualTimeoutSeconds       float64
	BeamOriginOffset           float64

	Weights  threat.Weights
	Override override.Config
}

// DefaultConfig returns the stock COIL profile.
func DefaultConfig() Config {
	return Config{
		MaxRange:                   52202,
		Capacity:                   30,
		DamagePerSecond:            2000,
		FiringArcDegrees:           180,
		AutoFireEnabledDefault:     false,
		AutoFireAllowed:            true,
		SwitchDelaySeconds:         1,
		SurfaceTargetDamagePercent: 5,
		ScanIntervalSeconds:        0.5,
		DamageTickIntervalSeconds:  0.2,
		ManualTimeoutSeconds:       0.2,
		BeamOriginOffset:           30,
		Weights:                    threat.DefaultWeights(),
		Override:                   override.DefaultConfig(),
	}
}

func (c Config) acquisitionConfig() acquisition.Config {
	return acquisition.Config{
		MaxRange:               c.MaxRange,
		SwitchDelaySeconds:     c.SwitchDelaySeconds,
		ManualTimeoutSeconds:   c.ManualTimeoutSeconds,
		AutoFireEnabledDefault: c.AutoFireEnabledDefault,
		AutoFireAllowed:        c.AutoFireAllowed,
	}
}

func (c Config) executorConfig() engagement.Config {
	d := engagement.DefaultConfig()
	d.DamagePerSecond = c.DamagePerSecond
	d.TickIntervalSeconds = c.DamageTickIntervalSeconds
	d.SurfaceTargetDamagePercent = c.SurfaceTargetDamagePercent
	return d
}

func (c Config) gateConfig() geometry.Config {
	return geometry.Config{
		FiringArcDegrees: c.FiringArcDegrees,
		MaxRange:         c.MaxRange,
		OriginOffset:     c.BeamOriginOffset,
	}
}
