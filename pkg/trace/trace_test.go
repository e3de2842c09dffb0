package trace

import (
	"context"
	"testing"
)

func TestConfigSetDefaults(t *testing.T) {
	cfg := Config{}
	cfg.SetDefaults()
	if cfg.Endpoint != "127.0.0.1:4317" {
		t.Errorf("unexpected default endpoint: %s", cfg.Endpoint)
	}
	if cfg.SampleRate != 1.0 {
		t.Errorf("unexpected default sample rate: %v", cfg.SampleRate)
	}
}

func TestInitDisabled(t *testing.T) {
	cleanup, err := Init(context.Background(), "stagecraft", "test", Config{Enabled: false})
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer cleanup()

	tracer := Tracer("test")
	_, span := tracer.Start(context.Background(), "noop")
	if span.SpanContext().IsValid() {
		t.Error("expected noop span when tracing disabled")
	}
	span.End()
}
