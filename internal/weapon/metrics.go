package weapon

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/OCAP2/coil/internal/weapon"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

type metrics struct {
	consumed    metric.Float64Counter
	damage      metric.Int64Counter
	switches    metric.Int64Counter
	assignments metric.Int64Counter
	resupplies  metric.Int64Counter
}

func newMetrics() (*metrics, error) {
	m := meter()
	out := &metrics{}
	var err error

	out.consumed, err = m.Float64Counter("coil.ammo.consumed",
		metric.WithDescription("Reserve units consumed"))
	if err != nil {
		return nil, fmt.Errorf("creating consumed counter: %w", err)
	}
	out.damage, err = m.Int64Counter("coil.damage.applications",
		metric.WithDescription("Damage applications passed to the sink"))
	if err != nil {
		return nil, fmt.Errorf("creating damage counter: %w", err)
	}
	out.switches, err = m.Int64Counter("coil.target.switches",
		metric.WithDescription("Committed target changes"))
	if err != nil {
		return nil, fmt.Errorf("creating switch counter: %w", err)
	}
	out.assignments, err = m.Int64Counter("coil.priority.assignments",
		metric.WithDescription("Turret orders issued by the priority override"))
	if err != nil {
		return nil, fmt.Errorf("creating assignment counter: %w", err)
	}
	out.resupplies, err = m.Int64Counter("coil.resupply.requests",
		metric.WithDescription("Resupply requests sent to the ammo sink"))
	if err != nil {
		return nil, fmt.Errorf("creating resupply counter: %w", err)
	}
	return out, nil
}

func platformAttr(platform string) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("platform", platform))
}

func (m *metrics) addConsumed(platform string, units float64) {
	if m == nil {
		return
	}
	m.consumed.Add(context.Background(), units, platformAttr(platform))
}

func (m *metrics) addDamage(platform string) {
	if m == nil {
		return
	}
	m.damage.Add(context.Background(), 1, platformAttr(platform))
}

func (m *metrics) addSwitch(platform string) {
	if m == nil {
		return
	}
	m.switches.Add(context.Background(), 1, platformAttr(platform))
}

func (m *metrics) addAssignments(platform string, n int) {
	if m == nil {
		return
	}
	m.assignments.Add(context.Background(), int64(n), platformAttr(platform))
}

func (m *metrics) addResupply(platform string) {
	if m == nil {
		return
	}
	m.resupplies.Add(context.Background(), 1, platformAttr(platform))
}
