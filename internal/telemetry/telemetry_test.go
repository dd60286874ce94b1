package telemetry

import (
	"context"
	"errors"
	"testing"
)

func TestDisabledProviderIsUsable(t *testing.T) {
	ctx := context.Background()
	p, err := NewProvider(ctx, Config{}, nil)
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	if p.Metrics == nil {
		t.Fatal("metrics must be created even when disabled")
	}
	p.Metrics.Launch(ctx, "rpgmakermv", nil)
	p.Metrics.Downloaded(ctx, 42)

	_, span := Start(ctx, "test")
	End(span, errors.New("boom"))

	if err := p.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestNilMetricsRecordsNothing(t *testing.T) {
	var m *Metrics
	m.Import(context.Background(), "renpy")
	m.Install(context.Background(), "sdk", errors.New("x"))
	m.ScannedDir(context.Background())
}
