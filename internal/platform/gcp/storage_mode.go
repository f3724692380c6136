package gcp

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/yungbote/freightquote-backend/internal/platform/envutil"
)

type StorageMode string

const (
	StorageModeGCS         StorageMode = "gcs"
	StorageModeGCSEmulator StorageMode = "gcs_emulator"
)

// StorageConfig selects between real GCS and a fake-gcs emulator for
// document lookups.
type StorageConfig struct {
	Mode         StorageMode
	EmulatorHost string
	// Inferred is set when the mode came from STORAGE_EMULATOR_HOST alone.
	Inferred bool
}

func (cfg StorageConfig) Emulated() bool { return cfg.Mode == StorageModeGCSEmulator }

type StorageConfigError struct {
	Field string
	Value string
	Cause error
}

func (e *StorageConfigError) Error() string {
	if e == nil {
		return "invalid storage config"
	}
	switch e.Field {
	case "OBJECT_STORAGE_MODE":
		return fmt.Sprintf("invalid OBJECT_STORAGE_MODE=%q (allowed: %q, %q)", e.Value, StorageModeGCS, StorageModeGCSEmulator)
	case "STORAGE_EMULATOR_HOST":
		if e.Value == "" {
			return fmt.Sprintf("OBJECT_STORAGE_MODE=%q requires STORAGE_EMULATOR_HOST", StorageModeGCSEmulator)
		}
		return fmt.Sprintf("invalid STORAGE_EMULATOR_HOST=%q; expected an absolute URL like http://fake-gcs:4443", e.Value)
	}
	return "invalid storage config"
}

func (e *StorageConfigError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func LoadStorageConfig() (StorageConfig, error) {
	cfg := StorageConfig{EmulatorHost: strings.TrimRight(envutil.String("STORAGE_EMULATOR_HOST", ""), "/")}
	raw := envutil.String("OBJECT_STORAGE_MODE", "")
	switch mode := StorageMode(strings.ToLower(raw)); mode {
	case "":
		cfg.Mode = StorageModeGCS
		if cfg.EmulatorHost != "" {
			cfg.Mode = StorageModeGCSEmulator
			cfg.Inferred = true
		}
	case StorageModeGCS, StorageModeGCSEmulator:
		cfg.Mode = mode
	default:
		return cfg, &StorageConfigError{Field: "OBJECT_STORAGE_MODE", Value: raw}
	}
	if !cfg.Emulated() {
		return cfg, nil
	}
	if cfg.EmulatorHost == "" {
		return cfg, &StorageConfigError{Field: "STORAGE_EMULATOR_HOST"}
	}
	u, err := url.Parse(cfg.EmulatorHost)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return cfg, &StorageConfigError{Field: "STORAGE_EMULATOR_HOST", Value: cfg.EmulatorHost, Cause: err}
	}
	return cfg, nil
}
