package observability

import (
	"context"
	"testing"
)

func TestParseHeaders(t *testing.T) {
	got := parseHeaders(" api-key = abc ,broken, =x,tenant=fq")
	if len(got) != 2 || got["api-key"] != "abc" || got["tenant"] != "fq" {
		t.Fatalf("headers: %v", got)
	}
	if parseHeaders("") != nil {
		t.Fatalf("empty header string should yield nil")
	}
}

func TestExporterSettingsClampRatio(t *testing.T) {
	t.Setenv("OTEL_SAMPLER_RATIO", "7")
	if s := loadExporterSettings(); s.SampleRatio != 1 {
		t.Fatalf("ratio: %v", s.SampleRatio)
	}
	t.Setenv("OTEL_SAMPLER_RATIO", "-1")
	if s := loadExporterSettings(); s.SampleRatio != 0 {
		t.Fatalf("ratio: %v", s.SampleRatio)
	}
}

func TestStdoutExporterWithoutEndpoint(t *testing.T) {
	exp, err := newSpanExporter(context.Background(), exporterSettings{})
	if err != nil || exp == nil {
		t.Fatalf("stdout exporter: %v", err)
	}
	_ = exp.Shutdown(context.Background())
}
