package negotiation

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultMaxCarrierRetries = 3
	DefaultWindow            = 7 * 24 * time.Hour
	DefaultPollInterval      = 5 * time.Second
)

// Policy holds the tunable protocol limits.
type Policy struct {
	MaxCarrierRetries int
	Window            time.Duration
	PollInterval      time.Duration

	// RequireCounterAboveOriginal makes the engine reject counter-proposals
	// that do not exceed the thread's original value.
	RequireCounterAboveOriginal bool

	// ResetRetriesOnAcceptOriginal zeroes carrierRetryCount when the carrier
	// settles for the original value.
	ResetRetriesOnAcceptOriginal bool
}

func DefaultPolicy() Policy {
	return Policy{
		MaxCarrierRetries:            DefaultMaxCarrierRetries,
		Window:                       DefaultWindow,
		PollInterval:                 DefaultPollInterval,
		ResetRetriesOnAcceptOriginal: true,
	}
}

func (p Policy) Validate() error {
	if p.MaxCarrierRetries < 1 {
		return fmt.Errorf("negotiation policy: max_carrier_retries must be >= 1, got %d", p.MaxCarrierRetries)
	}
	if p.Window <= 0 {
		return fmt.Errorf("negotiation policy: window must be positive, got %s", p.Window)
	}
	if p.PollInterval < 0 {
		return fmt.Errorf("negotiation policy: poll_interval must not be negative")
	}
	return nil
}

// policyFile mirrors Policy with string durations ("168h", "5s").
type policyFile struct {
	MaxCarrierRetries            *int    `yaml:"max_carrier_retries"`
	Window                       *string `yaml:"window"`
	PollInterval                 *string `yaml:"poll_interval"`
	RequireCounterAboveOriginal  *bool   `yaml:"require_counter_above_original"`
	ResetRetriesOnAcceptOriginal *bool   `yaml:"reset_retries_on_accept_original"`
}

// LoadPolicy overlays the YAML file at path on DefaultPolicy. An empty path
// returns the defaults.
func LoadPolicy(path string) (Policy, error) {
	p := DefaultPolicy()
	path = strings.TrimSpace(path)
	if path == "" {
		return p, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("read negotiation policy %s: %w", path, err)
	}
	return ParsePolicy(raw)
}

func ParsePolicy(raw []byte) (Policy, error) {
	p := DefaultPolicy()
	var f policyFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return p, fmt.Errorf("parse negotiation policy: %w", err)
	}
	if f.MaxCarrierRetries != nil {
		p.MaxCarrierRetries = *f.MaxCarrierRetries
	}
	if f.Window != nil {
		d, err := time.ParseDuration(strings.TrimSpace(*f.Window))
		if err != nil {
			return p, fmt.Errorf("negotiation policy window: %w", err)
		}
		p.Window = d
	}
	if f.PollInterval != nil {
		d, err := time.ParseDuration(strings.TrimSpace(*f.PollInterval))
		if err != nil {
			return p, fmt.Errorf("negotiation policy poll_interval: %w", err)
		}
		p.PollInterval = d
	}
	if f.RequireCounterAboveOriginal != nil {
		p.RequireCounterAboveOriginal = *f.RequireCounterAboveOriginal
	}
	if f.ResetRetriesOnAcceptOriginal != nil {
		p.ResetRetriesOnAcceptOriginal = *f.ResetRetriesOnAcceptOriginal
	}
	return p, p.Validate()
}
