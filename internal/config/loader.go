package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults, and
// validates the result. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{Recognition: DefaultRecognition()}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults fills zero values whose documented default is non-zero.
func applyDefaults(cfg *Config) {
	if cfg.WorldSize == 0 {
		cfg.WorldSize = 1
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = LogInfo
	}
	if cfg.Evaluation.SubsampleWord == 0 {
		cfg.Evaluation.SubsampleWord = 1
	}
	if cfg.Evaluation.SubsampleChar == 0 {
		cfg.Evaluation.SubsampleChar = 1
	}
}

// Validate checks that cfg contains a coherent set of values. It returns a
// joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Manifest == "" {
		errs = append(errs, errors.New("manifest is required"))
	}
	if cfg.OutputDir == "" {
		errs = append(errs, errors.New("output_dir is required"))
	}
	if cfg.WorldSize < 1 {
		errs = append(errs, fmt.Errorf("world_size %d must be at least 1", cfg.WorldSize))
	}
	if !cfg.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("log_level %q is invalid; valid values: debug, info, warn, error", cfg.LogLevel))
	}

	if err := ValidateRecognition(cfg.Recognition); err != nil {
		errs = append(errs, err)
	}

	if cfg.Recognition.ResolvingUNK && (cfg.Evaluation.Streaming || cfg.Recognition.BlockSync) {
		errs = append(errs, errors.New("recognition.resolving_unk is not supported with streaming or block-synchronous decoding"))
	}

	return errors.Join(errs...)
}

// ValidateRecognition checks the recognition hyperparameters in isolation.
// The evaluation driver calls this at construction, so programmatic callers
// that never touch YAML get the same validation.
func ValidateRecognition(r Recognition) error {
	var errs []error

	if r.BeamWidth < 1 {
		errs = append(errs, fmt.Errorf("recognition.beam_width %d must be at least 1", r.BeamWidth))
	}
	if r.BatchSize < 1 {
		errs = append(errs, fmt.Errorf("recognition.batch_size %d must be at least 1", r.BatchSize))
	}
	if r.MinLenRatio < 0 || r.MaxLenRatio < 0 {
		errs = append(errs, errors.New("recognition length ratios must be non-negative"))
	}
	if r.MinLenRatio > r.MaxLenRatio {
		errs = append(errs, fmt.Errorf("recognition.min_len_ratio %.2f exceeds max_len_ratio %.2f", r.MinLenRatio, r.MaxLenRatio))
	}
	if r.LMWeight < 0 {
		errs = append(errs, fmt.Errorf("recognition.lm_weight %.2f must be non-negative", r.LMWeight))
	}

	return errors.Join(errs...)
}
