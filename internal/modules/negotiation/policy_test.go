package negotiation

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParsePolicyOverlaysDefaults(t *testing.T) {
	p, err := ParsePolicy([]byte("max_carrier_retries: 5\nwindow: 72h\nrequire_counter_above_original: true\n"))
	if err != nil {
		t.Fatalf("ParsePolicy: %v", err)
	}
	if p.MaxCarrierRetries != 5 || p.Window != 72*time.Hour || !p.RequireCounterAboveOriginal {
		t.Fatalf("policy: %+v", p)
	}
	if p.PollInterval != DefaultPollInterval || !p.ResetRetriesOnAcceptOriginal {
		t.Fatalf("unset fields should keep defaults: %+v", p)
	}
}

func TestParsePolicyRejectsInvalidValues(t *testing.T) {
	for _, raw := range []string{"max_carrier_retries: 0\n", "window: -1h\n", "window: soon\n", "max_carrier_retries: [1\n"} {
		if _, err := ParsePolicy([]byte(raw)); err == nil {
			t.Fatalf("ParsePolicy(%q) expected error", raw)
		}
	}
}

func TestLoadPolicyFromFile(t *testing.T) {
	p, err := LoadPolicy("")
	if err != nil || p.MaxCarrierRetries != DefaultMaxCarrierRetries {
		t.Fatalf("empty path: p=%+v err=%v", p, err)
	}
	path := filepath.Join(t.TempDir(), "policy.yaml")
	if err := os.WriteFile(path, []byte("poll_interval: 2s\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	p, err = LoadPolicy(path)
	if err != nil || p.PollInterval != 2*time.Second {
		t.Fatalf("file policy: p=%+v err=%v", p, err)
	}
	if _, err := LoadPolicy(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("missing file should error")
	}
}
