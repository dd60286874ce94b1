package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/cuihairu/arcade"

// Attribute keys shared by spans and counters.
const (
	GameIDKey     = attribute.Key("arcade.game.id")
	EngineTypeKey = attribute.Key("arcade.engine.type")
	TaskIDKey     = attribute.Key("arcade.task.id")
	VersionKey    = attribute.Key("arcade.runtime.version")
	FlavorKey     = attribute.Key("arcade.runtime.flavor")
	OutcomeKey    = attribute.Key("arcade.outcome")
)

// Metrics holds the launcher counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	launches      metric.Int64Counter
	imports       metric.Int64Counter
	installs      metric.Int64Counter
	scannedDirs   metric.Int64Counter
	downloadBytes metric.Int64Counter
}

func NewMetrics(meter metric.Meter) (*Metrics, error) {
	var (
		m   Metrics
		err error
	)
	if m.launches, err = meter.Int64Counter("arcade.launches", metric.WithDescription("game launches")); err != nil {
		return nil, err
	}
	if m.imports, err = meter.Int64Counter("arcade.imports", metric.WithDescription("games registered")); err != nil {
		return nil, err
	}
	if m.installs, err = meter.Int64Counter("arcade.runtime.installs", metric.WithDescription("runtime install tasks")); err != nil {
		return nil, err
	}
	if m.scannedDirs, err = meter.Int64Counter("arcade.scan.directories", metric.WithDescription("directories visited by scans")); err != nil {
		return nil, err
	}
	if m.downloadBytes, err = meter.Int64Counter("arcade.runtime.download_bytes", metric.WithUnit("By")); err != nil {
		return nil, err
	}
	return &m, nil
}

func outcome(err error) attribute.KeyValue {
	if err != nil {
		return OutcomeKey.String("error")
	}
	return OutcomeKey.String("ok")
}

func (m *Metrics) Launch(ctx context.Context, engine string, err error) {
	if m == nil {
		return
	}
	m.launches.Add(ctx, 1, metric.WithAttributes(EngineTypeKey.String(engine), outcome(err)))
}

func (m *Metrics) Import(ctx context.Context, engine string) {
	if m == nil {
		return
	}
	m.imports.Add(ctx, 1, metric.WithAttributes(EngineTypeKey.String(engine)))
}

func (m *Metrics) Install(ctx context.Context, flavor string, err error) {
	if m == nil {
		return
	}
	m.installs.Add(ctx, 1, metric.WithAttributes(FlavorKey.String(flavor), outcome(err)))
}

func (m *Metrics) ScannedDir(ctx context.Context) {
	if m == nil {
		return
	}
	m.scannedDirs.Add(ctx, 1)
}

func (m *Metrics) Downloaded(ctx context.Context, n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.downloadBytes.Add(ctx, n)
}
